package ledger

import (
	"testing"

	"github.com/rustyeddy/optrack/market"
	"github.com/rustyeddy/optrack/trade"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func markAt(key market.ContractKey, price string) *market.Mark {
	return &market.Mark{Contract: key, Price: d(price), ObservedAt: t0}
}

func TestValueWithoutMarkIsUndefined(t *testing.T) {
	t.Parallel()

	res, err := Build([]trade.Trade{mk(1, 0, "BUY", 2, "1.00", "1.30")})
	require.NoError(t, err)
	pos, _ := res.Position(spyCall().ID())

	v := Value(pos, nil)
	assert.False(t, v.HasMark())
	assert.False(t, v.Unrealized.Valid)
	require.Len(t, v.Legs, 1)
	assert.False(t, v.Legs[0].Unrealized.Valid)
}

func TestValueLong(t *testing.T) {
	t.Parallel()

	res, err := Build([]trade.Trade{mk(1, 0, "BUY", 2, "1.00", "1.30")})
	require.NoError(t, err)
	pos, _ := res.Position(spyCall().ID())

	v := Value(pos, markAt(spyCall(), "1.50"))
	require.True(t, v.Unrealized.Valid)
	assertDec(t, "98.70", v.Unrealized.Decimal)
}

func TestValueShort(t *testing.T) {
	t.Parallel()

	res, err := Build([]trade.Trade{mk(1, 0, "STO", 3, "6.00", "0")})
	require.NoError(t, err)
	pos, _ := res.Position(spyCall().ID())

	v := Value(pos, markAt(spyCall(), "5.00"))
	require.True(t, v.Unrealized.Valid)
	assertDec(t, "300", v.Unrealized.Decimal)

	v = Value(pos, markAt(spyCall(), "7.00"))
	assertDec(t, "-300", v.Unrealized.Decimal)
}

func TestValueChargesOnlyEmbeddedFee(t *testing.T) {
	t.Parallel()

	res, err := Build([]trade.Trade{
		mk(1, 0, "BUY", 10, "1.00", "10.00"),
		mk(2, 1, "SELL", 4, "1.00", "0"),
	})
	require.NoError(t, err)
	pos, _ := res.Position(spyCall().ID())
	require.Len(t, pos.Lots, 1)
	assertDec(t, "6.00", pos.Lots[0].EmbeddedFee())

	// At the open price the only unrealized loss is the fee not yet realized.
	v := Value(pos, markAt(spyCall(), "1.00"))
	assertDec(t, "-6.00", v.Unrealized.Decimal)
}

func TestValuePerLeg(t *testing.T) {
	t.Parallel()

	res, err := Build([]trade.Trade{
		mk(1, 0, "BUY", 1, "1.00", "0"),
		mk(2, 1, "BUY", 1, "3.00", "0"),
	})
	require.NoError(t, err)
	pos, _ := res.Position(spyCall().ID())

	v := Value(pos, markAt(spyCall(), "2.00"))
	require.Len(t, v.Legs, 2)
	assertDec(t, "100", v.Legs[0].Unrealized.Decimal)
	assertDec(t, "-100", v.Legs[1].Unrealized.Decimal)
	assertDec(t, "0", v.Unrealized.Decimal)
	assert.True(t, v.Unrealized.Valid)
}

func TestValueAllReportsMissing(t *testing.T) {
	t.Parallel()

	q := mk(2, 1, "BUY", 1, "2.00", "0")
	q.Contract = qqqPut()
	res, err := Build([]trade.Trade{
		mk(1, 0, "BUY", 1, "1.00", "0"),
		q,
		mk(3, 2, "BUY", 1, "1.00", "0"),
	})
	require.NoError(t, err)

	marks := market.Marks{}
	marks.Put(*markAt(spyCall(), "1.25"))

	pf := ValueAll(res.Positions, marks)
	require.Len(t, pf.Valuations, 2)
	assert.False(t, pf.Complete())
	require.Len(t, pf.Missing, 1)
	assert.Equal(t, qqqPut().ID(), pf.Missing[0].ID())
	assertDec(t, "50", pf.Unrealized)
}

func TestValueAllSkipsClosedPositions(t *testing.T) {
	t.Parallel()

	res, err := Build([]trade.Trade{
		mk(1, 0, "BUY", 1, "1.00", "0"),
		mk(2, 1, "SELL", 1, "2.00", "0"),
	})
	require.NoError(t, err)

	pf := ValueAll(res.Positions, market.Marks{})
	assert.Empty(t, pf.Valuations)
	assert.True(t, pf.Complete())
	assert.True(t, pf.Unrealized.IsZero())
}
