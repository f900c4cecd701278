package ledger

import "github.com/shopspring/decimal"

// Summary collapses a lot list into one net position.
type Summary struct {
	Net          int64
	Quantity     int64 // |Net|
	Side         Side
	AvgOpenPrice decimal.Decimal // weighted by |remaining|
	OpenFees     decimal.Decimal // sum of each lot's open fee as attributed at open
	EmbeddedFees decimal.Decimal // open fees not yet charged to a realized match
}

// Summarize is a pure function of lots. An empty list yields the zero Summary
// with Side Flat.
func Summarize(lots []OpenLot) Summary {
	s := Summary{Side: Flat}
	var weight int64
	notional := decimal.Zero
	for _, l := range lots {
		q := abs(l.Remaining)
		s.Net += l.Remaining
		weight += q
		notional = notional.Add(l.OpenPrice.Mul(decimal.NewFromInt(q)))
		s.OpenFees = s.OpenFees.Add(l.OpenFee)
		s.EmbeddedFees = s.EmbeddedFees.Add(l.EmbeddedFee())
	}
	s.Quantity = abs(s.Net)
	s.Side = sideOf(s.Net)
	if weight > 0 {
		s.AvgOpenPrice = notional.Div(decimal.NewFromInt(weight))
	}
	return s
}
