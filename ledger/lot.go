package ledger

import (
	"time"

	"github.com/rustyeddy/optrack/market"
	"github.com/shopspring/decimal"
)

// Side is the direction of open exposure.
type Side string

const (
	Flat  Side = "FLAT"
	Long  Side = "LONG"
	Short Side = "SHORT"
)

func sideOf(q int64) Side {
	switch {
	case q > 0:
		return Long
	case q < 0:
		return Short
	}
	return Flat
}

func sign(q int64) int64 {
	switch {
	case q > 0:
		return 1
	case q < 0:
		return -1
	}
	return 0
}

func abs(q int64) int64 {
	if q < 0 {
		return -q
	}
	return q
}

// OpenLot is still-open exposure from one opening trade.
type OpenLot struct {
	Remaining    int64 // signed: > 0 long, < 0 short
	OpenQuantity int64 // |Remaining| when the lot was opened
	OpenPrice    decimal.Decimal
	OpenFee      decimal.Decimal // total fee attributed at open; never changes
	FeeAllocated decimal.Decimal // part of OpenFee already charged to matches
	TradeID      int64
	OpenedAt     time.Time
}

// Side reports whether the lot is long or short.
func (l OpenLot) Side() Side { return sideOf(l.Remaining) }

// EmbeddedFee is the part of the open fee not yet charged to a realized match.
func (l OpenLot) EmbeddedFee() decimal.Decimal {
	return l.OpenFee.Sub(l.FeeAllocated)
}

// allocateFee returns the open fee share for closing qty contracts. A close
// that empties the lot takes whatever is left so the shares sum to OpenFee.
func (l *OpenLot) allocateFee(qty int64) decimal.Decimal {
	var share decimal.Decimal
	if qty == abs(l.Remaining) {
		share = l.EmbeddedFee()
	} else {
		share = prorate(l.OpenFee, qty, l.OpenQuantity)
	}
	l.FeeAllocated = l.FeeAllocated.Add(share)
	return share
}

func prorate(total decimal.Decimal, part, whole int64) decimal.Decimal {
	if whole == 0 || total.IsZero() {
		return decimal.Zero
	}
	return total.Mul(decimal.NewFromInt(part)).Div(decimal.NewFromInt(whole))
}

// RealizedMatch records one closing trade matched against one lot.
type RealizedMatch struct {
	Contract     market.ContractKey
	Side         Side // side of the lot that was closed
	Quantity     int64
	OpenPrice    decimal.Decimal
	ClosePrice   decimal.Decimal
	Gross        decimal.Decimal
	OpenFee      decimal.Decimal
	CloseFee     decimal.Decimal
	Realized     decimal.Decimal // Gross - OpenFee - CloseFee
	OpenTradeID  int64
	CloseTradeID int64
	ClosedAt     time.Time
	Tag          string
}
