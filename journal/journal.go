// Package journal persists option trades and mark observations.
//
// Stores hand trades back as raw trade.Record rows so that every consumer
// goes through trade.Normalize; nothing downstream trusts a stored row.
package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/optrack/market"
	"github.com/rustyeddy/optrack/trade"
)

// ErrNotFound is returned (wrapped) when a trade id does not exist.
var ErrNotFound = errors.New("not found")

// Window bounds a trade listing by datetime. Zero bounds are open; set
// bounds are inclusive.
type Window struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if !w.From.IsZero() && t.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && t.After(w.To) {
		return false
	}
	return true
}

func (w Window) String() string {
	bound := func(t time.Time) string {
		if t.IsZero() {
			return "*"
		}
		return t.UTC().Format(trade.TimeLayout)
	}
	return fmt.Sprintf("[%s, %s]", bound(w.From), bound(w.To))
}

// ParseWindow builds a Window from optional bounds in any trade.ParseTime
// layout. A date-only upper bound covers that whole day.
func ParseWindow(from, to string) (Window, error) {
	var w Window
	var err error
	if from = strings.TrimSpace(from); from != "" {
		if w.From, err = trade.ParseTime(from); err != nil {
			return Window{}, fmt.Errorf("from: %w", err)
		}
		w.From = w.From.UTC()
	}
	if to = strings.TrimSpace(to); to != "" {
		if w.To, err = trade.ParseTime(to); err != nil {
			return Window{}, fmt.Errorf("to: %w", err)
		}
		w.To = w.To.UTC()
		if len(to) == len(market.DateLayout) {
			w.To = w.To.Add(24*time.Hour - time.Second)
		}
	}
	if !w.From.IsZero() && !w.To.IsZero() && w.To.Before(w.From) {
		return Window{}, fmt.Errorf("window ends before it starts: %s", w)
	}
	return w, nil
}

// TradeStore is the trade source. ListTrades returns rows ordered by
// (datetime, id).
type TradeStore interface {
	InsertTrade(ctx context.Context, t trade.Trade) (int64, error)
	InsertTrades(ctx context.Context, ts []trade.Trade) (int, error)
	UpdateTrade(ctx context.Context, t trade.Trade) error
	DeleteTrade(ctx context.Context, id int64) error
	GetTrade(ctx context.Context, id int64) (trade.Record, error)
	ListTrades(ctx context.Context, w Window) ([]trade.Record, error)
}

// MarkStore is an append-only log of mark observations.
type MarkStore interface {
	market.MarkSource
	market.MarkRecorder
}

// Store is a full backend: trades, marks and a Close.
type Store interface {
	TradeStore
	MarkStore
	Close() error
}

// markTimeLayout is fixed width so stored text timestamps sort correctly.
const markTimeLayout = "2006-01-02T15:04:05.000000000Z"

func notFound(id int64) error {
	return fmt.Errorf("trade %d: %w", id, ErrNotFound)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
