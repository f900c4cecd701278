package market

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Mark is an externally observed price for one contract.
type Mark struct {
	Contract   ContractKey
	Price      decimal.Decimal
	ObservedAt time.Time
}

// MarkSource returns the most recently observed mark for a contract. ok is
// false when no mark was ever recorded.
type MarkSource interface {
	LatestMark(ctx context.Context, key ContractKey) (m Mark, ok bool, err error)
}

// MarkRecorder appends a mark observation. Observations are never updated in
// place; readers take the latest one.
type MarkRecorder interface {
	RecordMark(ctx context.Context, m Mark) error
}

// Marks is a point-in-time snapshot of latest marks keyed by ContractKey.ID.
type Marks map[string]Mark

// Get returns the mark for key, if any.
func (ms Marks) Get(key ContractKey) (Mark, bool) {
	m, ok := ms[key.ID()]
	return m, ok
}

// Put keeps m if it is at least as recent as the mark already held.
func (ms Marks) Put(m Mark) {
	id := m.Contract.ID()
	if cur, ok := ms[id]; ok && m.ObservedAt.Before(cur.ObservedAt) {
		return
	}
	ms[id] = m
}

// Snapshot collects the latest mark of every key from src. Keys without a mark
// are simply absent from the result.
func Snapshot(ctx context.Context, src MarkSource, keys []ContractKey) (Marks, error) {
	out := make(Marks, len(keys))
	for _, k := range keys {
		m, ok, err := src.LatestMark(ctx, k)
		if err != nil {
			return nil, err
		}
		if ok {
			out.Put(m)
		}
	}
	return out, nil
}

// MarkBook is an in-memory, append-only mark store with latest-wins reads.
type MarkBook struct {
	mu    sync.RWMutex
	marks map[string][]Mark
}

func NewMarkBook() *MarkBook {
	return &MarkBook{marks: make(map[string][]Mark)}
}

func (b *MarkBook) RecordMark(_ context.Context, m Mark) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := m.Contract.ID()
	b.marks[id] = append(b.marks[id], m)
	return nil
}

// LatestMark returns the observation with the greatest ObservedAt; among equal
// timestamps the last recorded wins.
func (b *MarkBook) LatestMark(_ context.Context, key ContractKey) (Mark, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	obs := b.marks[key.ID()]
	if len(obs) == 0 {
		return Mark{}, false, nil
	}
	best := obs[0]
	for _, m := range obs[1:] {
		if !m.ObservedAt.Before(best.ObservedAt) {
			best = m
		}
	}
	return best, true, nil
}

// count returns the number of observations recorded for key.
func (b *MarkBook) count(key ContractKey) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.marks[key.ID()])
}
