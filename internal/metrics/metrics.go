// Package metrics provides Prometheus instrumentation for optrack.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TradesFolded counts trades applied to a ledger.
	TradesFolded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "optrack_trades_folded_total",
		Help: "Trades folded into a ledger",
	})

	// RealizedMatches counts lot matches emitted by closing trades.
	RealizedMatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "optrack_realized_matches_total",
		Help: "Realized lot matches emitted",
	})

	// RejectedRecords counts stored records that failed validation, by field.
	RejectedRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "optrack_rejected_records_total",
		Help: "Trade records rejected by validation",
	}, []string{"field"})

	// ReportDuration tracks how long building a report takes.
	ReportDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "optrack_report_duration_seconds",
		Help:    "Report build duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
	})

	// MarksFetched counts quote lookups by outcome (ok, none, error).
	MarksFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "optrack_marks_fetched_total",
		Help: "Mark lookups against the quote service",
	}, []string{"outcome"})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "optrack_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "optrack_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request metrics. The path label is the chi route
// pattern when one matched, so ids in URLs do not explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				path = p
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
