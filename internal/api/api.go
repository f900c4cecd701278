// Package api serves reports and accepts mark observations over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rustyeddy/optrack/internal/metrics"
	"github.com/rustyeddy/optrack/journal"
	"github.com/rustyeddy/optrack/ledger"
	"github.com/rustyeddy/optrack/market"
	"github.com/rustyeddy/optrack/report"
	"github.com/rustyeddy/optrack/trade"
	"github.com/shopspring/decimal"
)

// Server holds the handlers' dependencies.
type Server struct {
	reports *report.Builder
	marks   market.MarkRecorder
	log     *slog.Logger
	now     func() time.Time
}

func NewServer(b *report.Builder, marks market.MarkRecorder, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{reports: b, marks: marks, log: log, now: time.Now}
}

// Handler returns the router with the middleware stack installed.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Get("/report", s.GetReport)
	r.Get("/positions", s.GetPositions)
	r.Get("/realized", s.GetRealized)
	r.Post("/marks", s.PostMark)
	return r
}

func (s *Server) build(w http.ResponseWriter, r *http.Request) (*report.Report, bool) {
	q := r.URL.Query()
	win, err := journal.ParseWindow(q.Get("from"), q.Get("to"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	rep, err := s.reports.Build(r.Context(), win)
	if err != nil {
		status := http.StatusInternalServerError
		var ve *trade.ValidationError
		if errors.As(err, &ve) || errors.Is(err, ledger.ErrInvariant) {
			status = http.StatusUnprocessableEntity
		}
		s.log.Error("report failed", "window", win.String(), "err", err,
			"request_id", middleware.GetReqID(r.Context()))
		writeError(w, err.Error(), status)
		return nil, false
	}
	return rep, true
}

// GetReport handles GET /report?from&to
func (s *Server) GetReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.build(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, report.NewView(rep))
}

// GetPositions handles GET /positions. Only open positions are listed.
func (s *Server) GetPositions(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.build(w, r)
	if !ok {
		return
	}
	out := make([]report.PositionView, 0)
	for _, l := range rep.Open() {
		out = append(out, report.NewPositionView(l))
	}
	writeJSON(w, http.StatusOK, out)
}

type realizedResponse struct {
	Realized decimal.Decimal     `json:"realized"`
	Matches  []report.MatchView  `json:"matches"`
	BySymbol []report.AmountView `json:"by_symbol"`
	ByTag    []report.AmountView `json:"by_tag"`
}

// GetRealized handles GET /realized
func (s *Server) GetRealized(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.build(w, r)
	if !ok {
		return
	}
	v := report.NewView(rep)
	writeJSON(w, http.StatusOK, realizedResponse{
		Realized: v.Realized,
		Matches:  v.Matches,
		BySymbol: v.BySymbol,
		ByTag:    v.ByTag,
	})
}

// MarkRequest is the body of POST /marks. ObservedAt defaults to now.
type MarkRequest struct {
	Symbol     string          `json:"symbol"`
	Expiry     string          `json:"expiry"`
	Strike     decimal.Decimal `json:"strike"`
	Right      string          `json:"right"`
	Mark       decimal.Decimal `json:"mark"`
	ObservedAt *time.Time      `json:"observed_at,omitempty"`
}

func (req MarkRequest) toMark(now time.Time) (market.Mark, error) {
	if strings.TrimSpace(req.Symbol) == "" {
		return market.Mark{}, errors.New("symbol is required")
	}
	exp, err := time.Parse(market.DateLayout, strings.TrimSpace(req.Expiry))
	if err != nil {
		return market.Mark{}, errors.New("expiry must be YYYY-MM-DD")
	}
	right, err := market.ParseRight(req.Right)
	if err != nil {
		return market.Mark{}, err
	}
	if req.Strike.IsNegative() {
		return market.Mark{}, errors.New("strike must not be negative")
	}
	if req.Mark.IsNegative() {
		return market.Mark{}, errors.New("mark must not be negative")
	}
	at := now
	if req.ObservedAt != nil {
		at = *req.ObservedAt
	}
	return market.Mark{
		Contract:   market.NewContractKey(req.Symbol, exp, req.Strike, right),
		Price:      req.Mark,
		ObservedAt: at.UTC(),
	}, nil
}

// PostMark handles POST /marks
func (s *Server) PostMark(w http.ResponseWriter, r *http.Request) {
	var req MarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	m, err := req.toMark(s.now())
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.marks.RecordMark(r.Context(), m); err != nil {
		s.log.Error("record mark failed", "contract", m.Contract.ID(), "err", err)
		writeError(w, "record mark failed", http.StatusInternalServerError)
		return
	}

	s.log.Info("mark recorded",
		"contract", m.Contract.ID(),
		"mark", m.Price.String(),
		"observed_at", m.ObservedAt,
	)
	writeJSON(w, http.StatusCreated, map[string]any{
		"contract":    m.Contract.ID(),
		"mark":        m.Price,
		"observed_at": m.ObservedAt,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
