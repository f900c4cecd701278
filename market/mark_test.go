package market

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() ContractKey {
	return NewContractKey("SPY", time.Date(2025, 1, 17, 0, 0, 0, 0, time.UTC), decimal.NewFromInt(450), Call)
}

func TestMarkBookLatestWins(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := NewMarkBook()
	k := testKey()

	_, ok, err := b.LatestMark(ctx, k)
	require.NoError(t, err)
	assert.False(t, ok)

	t0 := time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)
	require.NoError(t, b.RecordMark(ctx, Mark{Contract: k, Price: decimal.RequireFromString("1.10"), ObservedAt: t0.Add(time.Hour)}))
	require.NoError(t, b.RecordMark(ctx, Mark{Contract: k, Price: decimal.RequireFromString("1.00"), ObservedAt: t0}))

	m, ok, err := b.LatestMark(ctx, k)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, m.Price.Equal(decimal.RequireFromString("1.10")))
	assert.Equal(t, 2, b.count(k))

	// Same timestamp: the later insert wins.
	require.NoError(t, b.RecordMark(ctx, Mark{Contract: k, Price: decimal.RequireFromString("1.20"), ObservedAt: t0.Add(time.Hour)}))
	m, _, _ = b.LatestMark(ctx, k)
	assert.True(t, m.Price.Equal(decimal.RequireFromString("1.20")))
}

func TestMarkBookConcurrent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := NewMarkBook()
	k := testKey()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = b.RecordMark(ctx, Mark{Contract: k, Price: decimal.NewFromInt(int64(i)), ObservedAt: time.Unix(int64(i), 0)})
			_, _, _ = b.LatestMark(ctx, k)
		}(i)
	}
	wg.Wait()

	m, ok, err := b.LatestMark(ctx, k)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, m.Price.Equal(decimal.NewFromInt(49)))
}

func TestSnapshot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := NewMarkBook()
	k := testKey()
	other := NewContractKey("QQQ", k.Expiry, decimal.NewFromInt(400), Put)

	require.NoError(t, b.RecordMark(ctx, Mark{Contract: k, Price: decimal.NewFromInt(2), ObservedAt: time.Now()}))

	ms, err := Snapshot(ctx, b, []ContractKey{k, other})
	require.NoError(t, err)
	assert.Len(t, ms, 1)

	_, ok := ms.Get(other)
	assert.False(t, ok)
	m, ok := ms.Get(k)
	require.True(t, ok)
	assert.True(t, m.Price.Equal(decimal.NewFromInt(2)))
}

func TestMarksPutKeepsNewest(t *testing.T) {
	t.Parallel()

	k := testKey()
	ms := Marks{}
	now := time.Now()
	ms.Put(Mark{Contract: k, Price: decimal.NewFromInt(3), ObservedAt: now})
	ms.Put(Mark{Contract: k, Price: decimal.NewFromInt(1), ObservedAt: now.Add(-time.Minute)})

	m, ok := ms.Get(k)
	require.True(t, ok)
	assert.True(t, m.Price.Equal(decimal.NewFromInt(3)))
}
