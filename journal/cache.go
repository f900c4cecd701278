package journal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rustyeddy/optrack/market"
	"github.com/shopspring/decimal"
)

// CachedMarks puts a Redis read-through cache of the latest mark per
// contract in front of a MarkStore. Cache failures fall back to the primary.
type CachedMarks struct {
	primary MarkStore
	rdb     *redis.Client
	ttl     time.Duration
}

func NewCachedMarks(primary MarkStore, rdb *redis.Client, ttl time.Duration) *CachedMarks {
	return &CachedMarks{primary: primary, rdb: rdb, ttl: ttl}
}

type cachedMark struct {
	Price      decimal.Decimal `json:"price"`
	ObservedAt time.Time       `json:"observed_at"`
}

func markKey(key market.ContractKey) string {
	return "optrack:mark:" + key.ID()
}

// RecordMark appends to the primary, then refreshes the cached latest value
// from it so the cache never holds an older observation than the store.
func (c *CachedMarks) RecordMark(ctx context.Context, m market.Mark) error {
	if err := c.primary.RecordMark(ctx, m); err != nil {
		return err
	}
	c.rdb.Del(ctx, markKey(m.Contract))
	latest, ok, err := c.primary.LatestMark(ctx, m.Contract)
	if err == nil && ok {
		c.cache(ctx, latest)
	}
	return nil
}

func (c *CachedMarks) LatestMark(ctx context.Context, key market.ContractKey) (market.Mark, bool, error) {
	data, err := c.rdb.Get(ctx, markKey(key)).Bytes()
	if err == nil {
		var cm cachedMark
		if json.Unmarshal(data, &cm) == nil {
			return market.Mark{Contract: key, Price: cm.Price, ObservedAt: cm.ObservedAt}, true, nil
		}
	}

	m, ok, err := c.primary.LatestMark(ctx, key)
	if err != nil || !ok {
		return m, ok, err
	}
	c.cache(ctx, m)
	return m, true, nil
}

func (c *CachedMarks) cache(ctx context.Context, m market.Mark) {
	data, err := json.Marshal(cachedMark{Price: m.Price, ObservedAt: m.ObservedAt})
	if err != nil {
		return
	}
	c.rdb.Set(ctx, markKey(m.Contract), data, c.ttl)
}

// WithMarkCache returns s with its mark reads and writes routed through c.
func WithMarkCache(s Store, c *CachedMarks) Store {
	return cachedStore{Store: s, marks: c}
}

type cachedStore struct {
	Store
	marks *CachedMarks
}

func (s cachedStore) RecordMark(ctx context.Context, m market.Mark) error {
	return s.marks.RecordMark(ctx, m)
}

func (s cachedStore) LatestMark(ctx context.Context, key market.ContractKey) (market.Mark, bool, error) {
	return s.marks.LatestMark(ctx, key)
}

// Close closes the wrapped store and the Redis client.
func (s cachedStore) Close() error {
	err := s.Store.Close()
	if cerr := s.marks.rdb.Close(); err == nil {
		err = cerr
	}
	return err
}
