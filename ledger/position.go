package ledger

import (
	"maps"

	"github.com/rustyeddy/optrack/market"
	"github.com/shopspring/decimal"
)

// Position is the ledger's view of one contract: its FIFO lot list, net
// quantity and realized P&L so far.
type Position struct {
	Contract   market.ContractKey
	Multiplier int64
	Net        int64
	Lots       []OpenLot // oldest first
	Realized   decimal.Decimal
	TagCounts  map[string]int64
}

func newPosition(key market.ContractKey, multiplier int64) *Position {
	return &Position{
		Contract:   key,
		Multiplier: multiplier,
		TagCounts:  make(map[string]int64),
	}
}

// IsOpen reports whether any exposure remains.
func (p Position) IsOpen() bool { return p.Net != 0 }

// Side is the direction of the net exposure.
func (p Position) Side() Side { return sideOf(p.Net) }

// Summary aggregates the position's open lots.
func (p Position) Summary() Summary { return Summarize(p.Lots) }

// lotSum is the algebraic sum of remaining lot quantities.
func (p Position) lotSum() int64 {
	var n int64
	for _, l := range p.Lots {
		n += l.Remaining
	}
	return n
}

func (p *Position) prune() {
	kept := p.Lots[:0]
	for _, l := range p.Lots {
		if l.Remaining != 0 {
			kept = append(kept, l)
		}
	}
	p.Lots = kept
}

// clone returns a deep copy so results handed to callers never alias the
// accumulator's state.
func (p *Position) clone() Position {
	c := *p
	c.Lots = append([]OpenLot(nil), p.Lots...)
	c.TagCounts = maps.Clone(p.TagCounts)
	return c
}
