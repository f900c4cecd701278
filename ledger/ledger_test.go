package ledger

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/rustyeddy/optrack/market"
	"github.com/rustyeddy/optrack/trade"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 1, 2, 14, 30, 0, 0, time.UTC)

func spyCall() market.ContractKey {
	return market.NewContractKey("SPY", time.Date(2025, 1, 17, 0, 0, 0, 0, time.UTC), decimal.NewFromInt(450), market.Call)
}

func qqqPut() market.ContractKey {
	return market.NewContractKey("QQQ", time.Date(2025, 2, 21, 0, 0, 0, 0, time.UTC), decimal.NewFromInt(400), market.Put)
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// mk builds a trade on SPY 450C; at is minutes after t0.
func mk(id int64, at int, action string, qty int64, price, fee string) trade.Trade {
	a, err := trade.ParseAction(action)
	if err != nil {
		panic(err)
	}
	return trade.Trade{
		ID:         id,
		Time:       t0.Add(time.Duration(at) * time.Minute),
		Contract:   spyCall(),
		Action:     a,
		Quantity:   qty,
		Price:      d(price),
		Commission: d(fee),
		Fees:       decimal.Zero,
		Multiplier: 100,
	}
}

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, d(want).Equal(got), "want %s got %s", want, got)
}

func TestFIFOOrder(t *testing.T) {
	t.Parallel()

	res, err := Build([]trade.Trade{
		mk(1, 0, "BTO", 3, "1.00", "0"),
		mk(2, 1, "BTO", 2, "2.00", "0"),
		mk(3, 2, "STC", 4, "3.00", "0"),
	})
	require.NoError(t, err)
	require.Len(t, res.Matches, 2)

	first, second := res.Matches[0], res.Matches[1]
	assert.Equal(t, int64(1), first.OpenTradeID)
	assert.Equal(t, int64(3), first.Quantity)
	assertDec(t, "1.00", first.OpenPrice)
	assertDec(t, "600", first.Realized)
	assert.Equal(t, Long, first.Side)

	assert.Equal(t, int64(2), second.OpenTradeID)
	assert.Equal(t, int64(1), second.Quantity)
	assertDec(t, "2.00", second.OpenPrice)
	assertDec(t, "100", second.Realized)
	assert.Equal(t, int64(3), second.CloseTradeID)

	pos, ok := res.Position(spyCall().ID())
	require.True(t, ok)
	assert.Equal(t, int64(1), pos.Net)
	require.Len(t, pos.Lots, 1)
	assert.Equal(t, int64(2), pos.Lots[0].TradeID)
	assert.Equal(t, int64(1), pos.Lots[0].Remaining)
	assertDec(t, "700", res.Realized)
	assertDec(t, "700", pos.Realized)
}

func TestFlipOpensOppositeLot(t *testing.T) {
	t.Parallel()

	res, err := Build([]trade.Trade{
		mk(1, 0, "BUY", 2, "5.00", "0"),
		mk(2, 1, "SELL", 5, "6.00", "0"),
	})
	require.NoError(t, err)

	require.Len(t, res.Matches, 1)
	assert.Equal(t, int64(2), res.Matches[0].Quantity)
	assertDec(t, "200", res.Matches[0].Gross)
	assertDec(t, "200", res.Matches[0].Realized)

	pos, _ := res.Position(spyCall().ID())
	assert.Equal(t, int64(-3), pos.Net)
	assert.Equal(t, Short, pos.Side())
	require.Len(t, pos.Lots, 1)
	assert.Equal(t, int64(-3), pos.Lots[0].Remaining)
	assert.Equal(t, int64(3), pos.Lots[0].OpenQuantity)
	assertDec(t, "6.00", pos.Lots[0].OpenPrice)
	assert.Equal(t, int64(2), pos.Lots[0].TradeID)
}

func TestFlipWithFees(t *testing.T) {
	t.Parallel()

	res, err := Build([]trade.Trade{
		mk(1, 0, "BUY", 2, "5.00", "1.00"),
		mk(2, 1, "SELL", 5, "6.00", "2.50"),
	})
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)

	m := res.Matches[0]
	assertDec(t, "1.00", m.OpenFee)
	assertDec(t, "1.00", m.CloseFee)
	assertDec(t, "198", m.Realized)

	pos, _ := res.Position(spyCall().ID())
	require.Len(t, pos.Lots, 1)
	// The flipped lot carries the closing trade's full fee as its open fee.
	assertDec(t, "2.50", pos.Lots[0].OpenFee)
}

func TestShortRoundTrip(t *testing.T) {
	t.Parallel()

	res, err := Build([]trade.Trade{
		mk(1, 0, "STO", 2, "3.00", "0"),
		mk(2, 1, "BTC", 2, "1.00", "0"),
	})
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, Short, res.Matches[0].Side)
	assertDec(t, "400", res.Matches[0].Realized)

	pos, _ := res.Position(spyCall().ID())
	assert.False(t, pos.IsOpen())
	assert.Empty(t, pos.Lots)
}

func TestLosingCloseKeepsFees(t *testing.T) {
	t.Parallel()

	res, err := Build([]trade.Trade{
		mk(1, 0, "BUY", 1, "2.00", "0.65"),
		mk(2, 1, "SELL", 1, "1.50", "0.65"),
	})
	require.NoError(t, err)
	assertDec(t, "-51.30", res.Realized)
}

func TestFeeProrationRoundTrip(t *testing.T) {
	t.Parallel()

	res, err := Build([]trade.Trade{
		mk(1, 0, "BUY", 10, "1.00", "10.00"),
		mk(2, 1, "SELL", 4, "1.00", "0"),
		mk(3, 2, "SELL", 6, "1.00", "0"),
	})
	require.NoError(t, err)
	require.Len(t, res.Matches, 2)
	assertDec(t, "4.00", res.Matches[0].OpenFee)
	assertDec(t, "6.00", res.Matches[1].OpenFee)
	assertDec(t, "-10", res.Realized)
}

func TestFeeProrationSumsExactly(t *testing.T) {
	t.Parallel()

	res, err := Build([]trade.Trade{
		mk(1, 0, "BUY", 3, "1.00", "10.00"),
		mk(2, 1, "SELL", 1, "1.00", "0"),
		mk(3, 2, "SELL", 1, "1.00", "0"),
		mk(4, 3, "SELL", 1, "1.00", "0"),
	})
	require.NoError(t, err)

	sum := decimal.Zero
	for _, m := range res.Matches {
		sum = sum.Add(m.OpenFee)
	}
	assertDec(t, "10", sum)
}

func TestClosingFeeSplitAcrossLots(t *testing.T) {
	t.Parallel()

	res, err := Build([]trade.Trade{
		mk(1, 0, "BUY", 1, "1.00", "0"),
		mk(2, 1, "BUY", 1, "1.00", "0"),
		mk(3, 2, "BUY", 1, "1.00", "0"),
		mk(4, 3, "SELL", 3, "1.00", "1.00"),
	})
	require.NoError(t, err)
	require.Len(t, res.Matches, 3)

	sum := decimal.Zero
	for _, m := range res.Matches {
		sum = sum.Add(m.CloseFee)
		assert.Equal(t, int64(4), m.CloseTradeID)
	}
	assertDec(t, "1.00", sum)
}

func TestSameTimestampTieBreakByID(t *testing.T) {
	t.Parallel()

	res, err := Build([]trade.Trade{
		mk(5, 0, "BUY", 1, "2.00", "0"),
		mk(3, 0, "BUY", 1, "1.00", "0"),
		mk(9, 1, "SELL", 1, "3.00", "0"),
	})
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, int64(3), res.Matches[0].OpenTradeID)
	assertDec(t, "200", res.Matches[0].Realized)
}

func TestDeterminism(t *testing.T) {
	t.Parallel()

	trades := randomTrades(rand.New(rand.NewSource(42)), 200)

	sorted := append([]trade.Trade(nil), trades...)
	trade.Sort(sorted)
	want, err := Build(sorted)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		shuffled := append([]trade.Trade(nil), trades...)
		rand.New(rand.NewSource(int64(i))).Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		got, err := Build(shuffled)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestConservationEveryStep(t *testing.T) {
	t.Parallel()

	trades := randomTrades(rand.New(rand.NewSource(7)), 300)
	trade.Sort(trades)

	acc := NewAccumulator()
	for _, tr := range trades {
		require.NoError(t, acc.Apply(tr))
		for _, p := range acc.Result().Positions {
			var sum int64
			for _, l := range p.Lots {
				sum += l.Remaining
				assert.NotZero(t, l.Remaining)
				assert.Equal(t, p.Side(), l.Side(), "lots share the side of the net position")
			}
			require.Equal(t, p.Net, sum)
		}
	}

	total := decimal.Zero
	for _, m := range acc.Result().Matches {
		total = total.Add(m.Realized)
	}
	assert.True(t, total.Equal(acc.Realized()))
}

func TestMultiplierChangeAborts(t *testing.T) {
	t.Parallel()

	bad := mk(2, 1, "SELL", 1, "1.00", "0")
	bad.Multiplier = 10

	_, err := Build([]trade.Trade{mk(1, 0, "BUY", 1, "1.00", "0"), bad})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvariant))

	var ie *InvariantError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, int64(2), ie.TradeID)
	assert.Contains(t, ie.Detail, "multiplier")
}

func TestApplyRejectsOutOfOrder(t *testing.T) {
	t.Parallel()

	acc := NewAccumulator()
	require.NoError(t, acc.Apply(mk(2, 5, "BUY", 1, "1.00", "0")))
	err := acc.Apply(mk(1, 0, "BUY", 1, "1.00", "0"))
	assert.True(t, errors.Is(err, ErrOutOfOrder))

	// Same instant, lower id also sorts first.
	err = acc.Apply(mk(1, 5, "BUY", 1, "1.00", "0"))
	assert.True(t, errors.Is(err, ErrOutOfOrder))
}

func TestApplyRejectsZeroQuantity(t *testing.T) {
	t.Parallel()

	acc := NewAccumulator()
	err := acc.Apply(mk(1, 0, "BUY", 0, "1.00", "0"))
	assert.True(t, errors.Is(err, ErrInvariant))
}

func TestContractsAreIndependent(t *testing.T) {
	t.Parallel()

	q1 := mk(2, 1, "STO", 1, "4.00", "0")
	q1.Contract = qqqPut()
	q2 := mk(4, 3, "BTC", 1, "3.00", "0")
	q2.Contract = qqqPut()

	res, err := Build([]trade.Trade{
		mk(1, 0, "BTO", 1, "1.00", "0"),
		q1,
		mk(3, 2, "STC", 1, "1.50", "0"),
		q2,
	})
	require.NoError(t, err)
	require.Len(t, res.Positions, 2)
	// Ordered by contract: QQQ before SPY.
	assert.Equal(t, "QQQ", res.Positions[0].Contract.Symbol)
	assertDec(t, "100", res.Positions[0].Realized)
	assertDec(t, "50", res.Positions[1].Realized)
	assertDec(t, "150", res.Realized)
	assert.Empty(t, res.Open())
	assert.Equal(t, 4, res.Trades)
}

func TestTagCounts(t *testing.T) {
	t.Parallel()

	a := mk(1, 0, "BUY", 2, "1.00", "0")
	a.Tag = "wheel"
	b := mk(2, 1, "SELL", 1, "1.00", "0")
	b.Tag = "wheel"
	c := mk(3, 2, "BUY", 4, "1.00", "0")
	c.Tag = "hedge"

	res, err := Build([]trade.Trade{a, b, c})
	require.NoError(t, err)
	pos, _ := res.Position(spyCall().ID())
	assert.Equal(t, map[string]int64{"wheel": 3, "hedge": 4}, pos.TagCounts)
	assert.Equal(t, "wheel", res.Matches[0].Tag)
}

func TestResultDoesNotAliasAccumulator(t *testing.T) {
	t.Parallel()

	acc := NewAccumulator()
	require.NoError(t, acc.Apply(mk(1, 0, "BUY", 2, "1.00", "0")))
	snap := acc.Result()
	require.NoError(t, acc.Apply(mk(2, 1, "SELL", 1, "1.00", "0")))

	pos, _ := snap.Position(spyCall().ID())
	assert.Equal(t, int64(2), pos.Lots[0].Remaining)
	assert.Empty(t, snap.Matches)
}

func TestBuildEmpty(t *testing.T) {
	t.Parallel()

	res, err := Build(nil)
	require.NoError(t, err)
	assert.Empty(t, res.Positions)
	assert.Empty(t, res.Matches)
	assert.True(t, res.Realized.IsZero())
}

// randomTrades produces a valid mix of buys and sells on two contracts with
// distinct (time, id) pairs.
func randomTrades(r *rand.Rand, n int) []trade.Trade {
	out := make([]trade.Trade, 0, n)
	for i := 0; i < n; i++ {
		action := "BUY"
		if r.Intn(2) == 0 {
			action = "SELL"
		}
		price := decimal.NewFromInt(int64(r.Intn(500))).Div(decimal.NewFromInt(100))
		fee := decimal.NewFromInt(int64(r.Intn(300))).Div(decimal.NewFromInt(100))
		tr := mk(int64(i+1), r.Intn(n/4+1), action, int64(r.Intn(9)+1), price.String(), fee.String())
		if r.Intn(3) == 0 {
			tr.Contract = qqqPut()
		}
		out = append(out, tr)
	}
	return out
}
