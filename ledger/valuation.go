package ledger

import (
	"github.com/rustyeddy/optrack/market"
	"github.com/shopspring/decimal"
)

// LegValuation is the unrealized P&L of one open lot. Unrealized is invalid
// when the contract has no mark.
type LegValuation struct {
	Lot        OpenLot
	Unrealized decimal.NullDecimal
}

// Valuation is the mark-to-market of one position. Without a mark, Mark is
// nil and every amount is invalid: "no mark" is never reported as zero or as
// the cost basis.
type Valuation struct {
	Contract   market.ContractKey
	Mark       *market.Mark
	Legs       []LegValuation
	Unrealized decimal.NullDecimal
}

// HasMark reports whether the valuation is defined.
func (v Valuation) HasMark() bool { return v.Mark != nil }

// Value computes unrealized P&L per lot as
// (mark - open) * multiplier * |q| * sign(q) minus the lot's embedded open
// fee. Closing fees are unknown until a real close and are not estimated.
func Value(p Position, mark *market.Mark) Valuation {
	v := Valuation{Contract: p.Contract}
	if mark != nil {
		m := *mark
		v.Mark = &m
	}
	mult := decimal.NewFromInt(p.Multiplier)
	total := decimal.Zero

	for _, l := range p.Lots {
		if l.Remaining == 0 {
			continue
		}
		leg := LegValuation{Lot: l}
		if v.Mark != nil {
			amt := v.Mark.Price.Sub(l.OpenPrice).
				Mul(mult).
				Mul(decimal.NewFromInt(l.Remaining)).
				Sub(l.EmbeddedFee())
			leg.Unrealized = decimal.NewNullDecimal(amt)
			total = total.Add(amt)
		}
		v.Legs = append(v.Legs, leg)
	}
	if v.Mark != nil {
		v.Unrealized = decimal.NewNullDecimal(total)
	}
	return v
}

// Portfolio is the valuation of every open position against one snapshot of
// marks.
type Portfolio struct {
	Valuations []Valuation
	Unrealized decimal.Decimal // sum over marked positions only
	Missing    []market.ContractKey
}

// Complete reports whether every open position had a mark.
func (p Portfolio) Complete() bool { return len(p.Missing) == 0 }

// ValueAll values the open positions in order.
func ValueAll(positions []Position, marks market.Marks) Portfolio {
	var out Portfolio
	for _, p := range positions {
		if !p.IsOpen() {
			continue
		}
		var mp *market.Mark
		if m, ok := marks.Get(p.Contract); ok {
			mp = &m
		}
		v := Value(p, mp)
		out.Valuations = append(out.Valuations, v)
		if v.Unrealized.Valid {
			out.Unrealized = out.Unrealized.Add(v.Unrealized.Decimal)
		} else {
			out.Missing = append(out.Missing, p.Contract)
		}
	}
	return out
}
