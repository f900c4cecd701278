package quote

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/rustyeddy/optrack/internal/metrics"
	"github.com/rustyeddy/optrack/market"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// MarkLooker is the part of Client the Fetcher needs.
type MarkLooker interface {
	Mark(ctx context.Context, key market.ContractKey) (decimal.Decimal, bool, error)
}

// Fetcher looks up marks for a set of contracts and appends each one found
// to a MarkRecorder, all stamped with the same observation time.
type Fetcher struct {
	Source      MarkLooker
	Recorder    market.MarkRecorder
	Concurrency int // parallel lookups; <= 0 means 4
	Log         *slog.Logger
	Now         func() time.Time
}

// FetchResult sorts the requested contracts by outcome.
type FetchResult struct {
	Updated []market.ContractKey
	Missing []market.ContractKey // looked up, no usable price
	Failed  map[string]error     // by ContractKey.ID
}

// Fetch looks up every distinct key. A failed lookup is recorded in the
// result and does not stop the others; a failed store write aborts.
func (f *Fetcher) Fetch(ctx context.Context, keys []market.ContractKey) (FetchResult, error) {
	log := f.Log
	if log == nil {
		log = slog.Default()
	}
	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	limit := f.Concurrency
	if limit <= 0 {
		limit = 4
	}
	at := now().UTC()

	seen := make(map[string]bool, len(keys))
	var uniq []market.ContractKey
	for _, k := range keys {
		if !seen[k.ID()] {
			seen[k.ID()] = true
			uniq = append(uniq, k)
		}
	}

	var (
		mu  sync.Mutex
		res = FetchResult{Failed: make(map[string]error)}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, k := range uniq {
		g.Go(func() error {
			price, ok, err := f.Source.Mark(gctx, k)
			switch {
			case err != nil:
				metrics.MarksFetched.WithLabelValues("error").Inc()
				log.Warn("mark lookup failed", "contract", k.ID(), "err", err)
				mu.Lock()
				res.Failed[k.ID()] = err
				mu.Unlock()
				return nil
			case !ok:
				metrics.MarksFetched.WithLabelValues("none").Inc()
				log.Info("no mark available", "contract", k.ID())
				mu.Lock()
				res.Missing = append(res.Missing, k)
				mu.Unlock()
				return nil
			}

			metrics.MarksFetched.WithLabelValues("ok").Inc()
			if err := f.Recorder.RecordMark(gctx, market.Mark{Contract: k, Price: price, ObservedAt: at}); err != nil {
				return fmt.Errorf("record mark %s: %w", k, err)
			}
			log.Debug("mark recorded", "contract", k.ID(), "price", price.String())
			mu.Lock()
			res.Updated = append(res.Updated, k)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	byKey := func(a, b market.ContractKey) int { return a.Compare(b) }
	slices.SortFunc(res.Updated, byKey)
	slices.SortFunc(res.Missing, byKey)
	return res, nil
}
