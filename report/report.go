// Package report turns stored trades and marks into a P&L report: realized
// matches, open positions valued against the latest marks, and totals by
// symbol and tag.
package report

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/rustyeddy/optrack/internal/metrics"
	"github.com/rustyeddy/optrack/journal"
	"github.com/rustyeddy/optrack/ledger"
	"github.com/rustyeddy/optrack/market"
	"github.com/rustyeddy/optrack/pkg/id"
	"github.com/rustyeddy/optrack/trade"
	"github.com/shopspring/decimal"
)

// Rejected is a stored record that failed validation and was left out.
type Rejected struct {
	RecordID string `json:"record_id"`
	Field    string `json:"field"`
	Reason   string `json:"reason"`
}

// Line is one contract's row in the report.
type Line struct {
	Position  ledger.Position
	Summary   ledger.Summary
	Valuation ledger.Valuation // zero for closed positions
}

// Amount is a realized total under a grouping key.
type Amount struct {
	Key      string
	Realized decimal.Decimal
	Matches  int
}

// Report is the outcome of one Build.
type Report struct {
	RunID       string
	GeneratedAt time.Time
	Window      journal.Window
	Trades      int
	Lines       []Line // every traded contract, in contract order
	Matches     []ledger.RealizedMatch
	Realized    decimal.Decimal
	Unrealized  decimal.Decimal // over marked open positions only
	Missing     []market.ContractKey
	BySymbol    []Amount
	ByTag       []Amount
	Rejected    []Rejected
}

// Open returns the lines with open exposure.
func (r *Report) Open() []Line {
	var out []Line
	for _, l := range r.Lines {
		if l.Position.IsOpen() {
			out = append(out, l)
		}
	}
	return out
}

// Builder loads trades and marks and assembles a Report.
type Builder struct {
	Trades journal.TradeStore
	Marks  market.MarkSource // nil values every open position as unmarked

	// SkipInvalid drops records that fail validation and lists them in
	// Report.Rejected; otherwise the first one aborts the build.
	SkipInvalid bool

	// DefaultMultiplier fills records that carry no multiplier; zero
	// leaves the normalizer's default.
	DefaultMultiplier int64

	Log *slog.Logger
	Now func() time.Time
}

// Build loads the trades inside w, folds them, and values what is still
// open against the latest marks.
func (b *Builder) Build(ctx context.Context, w journal.Window) (*Report, error) {
	start := time.Now()
	defer func() { metrics.ReportDuration.Observe(time.Since(start).Seconds()) }()

	recs, err := b.Trades.ListTrades(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("load trades: %w", err)
	}
	trades, rejected, err := b.normalize(recs)
	if err != nil {
		return nil, err
	}

	res, err := ledger.Build(trades)
	if err != nil {
		b.logger().Error("ledger build failed", "window", w.String(), "err", err)
		return nil, err
	}
	metrics.TradesFolded.Add(float64(res.Trades))
	metrics.RealizedMatches.Add(float64(len(res.Matches)))

	marks := market.Marks{}
	if b.Marks != nil {
		var keys []market.ContractKey
		for _, p := range res.Open() {
			keys = append(keys, p.Contract)
		}
		if marks, err = market.Snapshot(ctx, b.Marks, keys); err != nil {
			return nil, fmt.Errorf("load marks: %w", err)
		}
	}

	rep := Assemble(res, marks)
	rep.RunID = id.New()
	rep.GeneratedAt = b.now()
	rep.Window = w
	rep.Rejected = rejected

	b.logger().Info("report built",
		"run_id", rep.RunID,
		"window", w.String(),
		"trades", rep.Trades,
		"rejected", len(rejected),
		"matches", len(rep.Matches),
		"open", len(rep.Open()),
		"missing_marks", len(rep.Missing),
	)
	return rep, nil
}

func (b *Builder) normalize(recs []trade.Record) ([]trade.Trade, []Rejected, error) {
	trades := make([]trade.Trade, 0, len(recs))
	var rejected []Rejected
	for _, r := range recs {
		if b.DefaultMultiplier > 0 {
			if _, ok := r.Get(trade.ColMultiplier); !ok {
				r[trade.ColMultiplier] = b.DefaultMultiplier
			}
		}
		t, err := trade.Normalize(r)
		if err == nil {
			trades = append(trades, t)
			continue
		}

		var ve *trade.ValidationError
		if !errors.As(err, &ve) {
			return nil, nil, err
		}
		metrics.RejectedRecords.WithLabelValues(ve.Field).Inc()
		if !b.SkipInvalid {
			return nil, nil, err
		}
		b.logger().Warn("skipping invalid trade record",
			"record", ve.RecordID, "field", ve.Field, "reason", ve.Reason)
		rejected = append(rejected, Rejected{RecordID: ve.RecordID, Field: ve.Field, Reason: ve.Reason})
	}
	return trades, rejected, nil
}

func (b *Builder) logger() *slog.Logger {
	if b.Log != nil {
		return b.Log
	}
	return slog.Default()
}

func (b *Builder) now() time.Time {
	if b.Now != nil {
		return b.Now().UTC()
	}
	return time.Now().UTC()
}

// Assemble derives a Report from a ledger result and a mark snapshot. It does
// no I/O; RunID, GeneratedAt, Window and Rejected are left for the caller.
func Assemble(res ledger.Result, marks market.Marks) *Report {
	pf := ledger.ValueAll(res.Positions, marks)
	vals := make(map[string]ledger.Valuation, len(pf.Valuations))
	for _, v := range pf.Valuations {
		vals[v.Contract.ID()] = v
	}

	rep := &Report{
		Trades:     res.Trades,
		Matches:    res.Matches,
		Realized:   res.Realized,
		Unrealized: pf.Unrealized,
		Missing:    pf.Missing,
	}
	for _, p := range res.Positions {
		rep.Lines = append(rep.Lines, Line{
			Position:  p,
			Summary:   p.Summary(),
			Valuation: vals[p.Contract.ID()],
		})
	}

	rep.BySymbol = groupRealized(res.Matches, func(m ledger.RealizedMatch) string { return m.Contract.Symbol })
	rep.ByTag = groupRealized(res.Matches, func(m ledger.RealizedMatch) string { return m.Tag })
	return rep
}

// groupRealized sums realized P&L per key, sorted by key. Untagged matches
// group under the empty key.
func groupRealized(matches []ledger.RealizedMatch, key func(ledger.RealizedMatch) string) []Amount {
	idx := make(map[string]int)
	var out []Amount
	for _, m := range matches {
		k := key(m)
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, Amount{Key: k})
		}
		out[i].Realized = out[i].Realized.Add(m.Realized)
		out[i].Matches++
	}
	slices.SortFunc(out, func(a, b Amount) int { return cmp.Compare(a.Key, b.Key) })
	return out
}
