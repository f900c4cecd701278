// Package ledger folds time-ordered option trades into FIFO lots, realized
// matches and per-contract positions, and values open lots against marks.
//
// The fold is a pure function of its sorted input: no I/O, no globals. Many
// independent folds may run in parallel.
package ledger

import (
	"fmt"
	"slices"

	"github.com/rustyeddy/optrack/trade"
	"github.com/shopspring/decimal"
)

// Result is the outcome of folding a trade sequence.
type Result struct {
	Positions []Position // ordered by contract
	Matches   []RealizedMatch
	Realized  decimal.Decimal
	Trades    int
}

// Position returns the position for a contract ID, if the contract traded.
func (r Result) Position(id string) (Position, bool) {
	for _, p := range r.Positions {
		if p.Contract.ID() == id {
			return p, true
		}
	}
	return Position{}, false
}

// Open returns the positions with non-zero net quantity.
func (r Result) Open() []Position {
	var out []Position
	for _, p := range r.Positions {
		if p.IsOpen() {
			out = append(out, p)
		}
	}
	return out
}

// Accumulator is the explicit fold state: positions by contract ID, the match
// log and the running realized total.
type Accumulator struct {
	positions map[string]*Position
	matches   []RealizedMatch
	realized  decimal.Decimal
	last      *trade.Trade
	applied   int
}

func NewAccumulator() *Accumulator {
	return &Accumulator{positions: make(map[string]*Position)}
}

// Build sorts a copy of trades by (time, id) and folds them. Zero lots are
// pruned from the returned positions.
func Build(trades []trade.Trade) (Result, error) {
	sorted := slices.Clone(trades)
	trade.Sort(sorted)

	acc := NewAccumulator()
	for _, t := range sorted {
		if err := acc.Apply(t); err != nil {
			return Result{}, err
		}
	}
	return acc.Result(), nil
}

// Apply folds one trade. Trades must arrive in ascending (time, id) order.
func (a *Accumulator) Apply(t trade.Trade) error {
	if a.last != nil && trade.Compare(t, *a.last) < 0 {
		return fmt.Errorf("%w: trade %d at %s after trade %d at %s",
			ErrOutOfOrder, t.ID, t.Time, a.last.ID, a.last.Time)
	}
	if t.Quantity <= 0 {
		return &InvariantError{Contract: t.Contract.ID(), TradeID: t.ID,
			Detail: fmt.Sprintf("non-positive quantity %d reached the ledger", t.Quantity)}
	}

	id := t.Contract.ID()
	pos, ok := a.positions[id]
	if !ok {
		pos = newPosition(t.Contract, t.Multiplier)
		a.positions[id] = pos
	}
	if pos.Multiplier != t.Multiplier {
		return &InvariantError{Contract: id, TradeID: t.ID,
			Detail: fmt.Sprintf("multiplier %d differs from %d seen earlier", t.Multiplier, pos.Multiplier)}
	}
	if t.Tag != "" {
		pos.TagCounts[t.Tag] += t.Quantity
	}

	delta := t.Delta()
	if pos.Net == 0 || sign(pos.Net) == sign(delta) {
		a.open(pos, t, delta, t.TotalFee())
	} else {
		a.reduce(pos, t, delta)
	}

	if sum := pos.lotSum(); sum != pos.Net {
		return &InvariantError{Contract: id, TradeID: t.ID,
			Detail: fmt.Sprintf("net quantity %d != sum of lots %d", pos.Net, sum)}
	}
	tc := t
	a.last = &tc
	a.applied++
	return nil
}

func (a *Accumulator) open(pos *Position, t trade.Trade, qty int64, fee decimal.Decimal) {
	pos.Lots = append(pos.Lots, OpenLot{
		Remaining:    qty,
		OpenQuantity: abs(qty),
		OpenPrice:    t.Price,
		OpenFee:      fee,
		TradeID:      t.ID,
		OpenedAt:     t.Time,
	})
	pos.Net += qty
}

// reduce closes delta against opposing lots oldest first. Whatever cannot be
// matched opens a lot on the other side.
func (a *Accumulator) reduce(pos *Position, t trade.Trade, delta int64) {
	outstanding := abs(delta)
	closeFee := t.TotalFee()
	closeFeeUsed := decimal.Zero
	mult := decimal.NewFromInt(pos.Multiplier)

	for i := 0; i < len(pos.Lots) && outstanding > 0; i++ {
		lot := &pos.Lots[i]
		if lot.Remaining == 0 || sign(lot.Remaining) == sign(delta) {
			continue
		}
		lotSign := sign(lot.Remaining)
		qty := min(abs(lot.Remaining), outstanding)

		gross := t.Price.Sub(lot.OpenPrice).
			Mul(decimal.NewFromInt(qty)).
			Mul(mult).
			Mul(decimal.NewFromInt(lotSign))
		openFee := lot.allocateFee(qty)

		var cf decimal.Decimal
		if qty == outstanding {
			// last unit of the closing trade: take the remainder
			cf = closeFee.Sub(closeFeeUsed)
		} else {
			cf = prorate(closeFee, qty, t.Quantity)
		}
		closeFeeUsed = closeFeeUsed.Add(cf)

		net := gross.Sub(openFee).Sub(cf)
		a.matches = append(a.matches, RealizedMatch{
			Contract:     pos.Contract,
			Side:         sideOf(lot.Remaining),
			Quantity:     qty,
			OpenPrice:    lot.OpenPrice,
			ClosePrice:   t.Price,
			Gross:        gross,
			OpenFee:      openFee,
			CloseFee:     cf,
			Realized:     net,
			OpenTradeID:  lot.TradeID,
			CloseTradeID: t.ID,
			ClosedAt:     t.Time,
			Tag:          t.Tag,
		})
		pos.Realized = pos.Realized.Add(net)
		a.realized = a.realized.Add(net)

		lot.Remaining -= lotSign * qty
		pos.Net -= lotSign * qty
		outstanding -= qty
	}

	if outstanding > 0 {
		// Crossed through zero: the rest is new exposure on the trade's side,
		// carrying the trade's full fee as its open fee.
		a.open(pos, t, sign(delta)*outstanding, closeFee)
	}
}

// Realized is the running grand total of realized P&L.
func (a *Accumulator) Realized() decimal.Decimal { return a.realized }

// Result snapshots the state with zero lots pruned. The accumulator can keep
// folding afterwards.
func (a *Accumulator) Result() Result {
	res := Result{
		Matches:  slices.Clone(a.matches),
		Realized: a.realized,
		Trades:   a.applied,
	}
	for _, p := range a.positions {
		c := p.clone()
		c.prune()
		res.Positions = append(res.Positions, c)
	}
	slices.SortFunc(res.Positions, func(x, y Position) int {
		return x.Contract.Compare(y.Contract)
	})
	return res
}
