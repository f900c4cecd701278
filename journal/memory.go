package journal

import (
	"context"
	"slices"
	"sync"

	"github.com/rustyeddy/optrack/market"
	"github.com/rustyeddy/optrack/trade"
)

// MemoryStore keeps trades and marks in process memory. Used for tests and
// the "memory" driver; nothing survives a restart.
type MemoryStore struct {
	mu     sync.RWMutex
	trades map[int64]trade.Trade
	nextID int64
	marks  *market.MarkBook
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		trades: make(map[int64]trade.Trade),
		marks:  market.NewMarkBook(),
	}
}

func (s *MemoryStore) InsertTrade(_ context.Context, t trade.Trade) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	t.ID = s.nextID
	s.trades[t.ID] = t
	return t.ID, nil
}

func (s *MemoryStore) InsertTrades(ctx context.Context, ts []trade.Trade) (int, error) {
	for _, t := range ts {
		if _, err := s.InsertTrade(ctx, t); err != nil {
			return 0, err
		}
	}
	return len(ts), nil
}

func (s *MemoryStore) UpdateTrade(_ context.Context, t trade.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.trades[t.ID]; !ok {
		return notFound(t.ID)
	}
	s.trades[t.ID] = t
	return nil
}

func (s *MemoryStore) DeleteTrade(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.trades[id]; !ok {
		return notFound(id)
	}
	delete(s.trades, id)
	return nil
}

func (s *MemoryStore) GetTrade(_ context.Context, id int64) (trade.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.trades[id]
	if !ok {
		return nil, notFound(id)
	}
	return t.Record(), nil
}

func (s *MemoryStore) ListTrades(_ context.Context, w Window) ([]trade.Record, error) {
	s.mu.RLock()
	ts := make([]trade.Trade, 0, len(s.trades))
	for _, t := range s.trades {
		if w.Contains(t.Time) {
			ts = append(ts, t)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(ts, trade.Compare)
	out := make([]trade.Record, len(ts))
	for i, t := range ts {
		out[i] = t.Record()
	}
	return out, nil
}

func (s *MemoryStore) RecordMark(ctx context.Context, m market.Mark) error {
	return s.marks.RecordMark(ctx, m)
}

func (s *MemoryStore) LatestMark(ctx context.Context, key market.ContractKey) (market.Mark, bool, error) {
	return s.marks.LatestMark(ctx, key)
}

func (s *MemoryStore) Close() error { return nil }
