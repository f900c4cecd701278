// Package trade defines the immutable option Trade and the single fallible
// step that turns a loosely typed stored record into one.
package trade

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rustyeddy/optrack/market"
	"github.com/shopspring/decimal"
)

// Side is the base direction of a trade.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Intent records whether the trader meant to open or close. The ledger
// matches on the signed quantity alone; intent is kept for display.
type Intent string

const (
	Unspecified Intent = ""
	Open        Intent = "OPEN"
	Close       Intent = "CLOSE"
)

// Action is the combined side/intent pair, parsed from any of the encodings
// found in stored records.
type Action struct {
	Side   Side
	Intent Intent
}

var actionCodes = map[string]Action{
	"BUY":         {Buy, Unspecified},
	"SELL":        {Sell, Unspecified},
	"BTO":         {Buy, Open},
	"STO":         {Sell, Open},
	"BTC":         {Buy, Close},
	"STC":         {Sell, Close},
	"OPEN_LONG":   {Buy, Open},
	"OPEN_SHORT":  {Sell, Open},
	"CLOSE_SHORT": {Buy, Close},
	"CLOSE_LONG":  {Sell, Close},
}

// ParseAction recognizes BUY/SELL, BTO/STO/BTC/STC and
// OPEN_LONG/OPEN_SHORT/CLOSE_LONG/CLOSE_SHORT, case-insensitively.
func ParseAction(s string) (Action, error) {
	a, ok := actionCodes[strings.ToUpper(strings.TrimSpace(s))]
	if !ok {
		return Action{}, fmt.Errorf("unknown action %q", s)
	}
	return a, nil
}

// Code returns the short code for the action: BTO/STO/BTC/STC when the
// intent is known, BUY/SELL otherwise.
func (a Action) Code() string {
	switch {
	case a.Intent == Open && a.Side == Buy:
		return "BTO"
	case a.Intent == Open && a.Side == Sell:
		return "STO"
	case a.Intent == Close && a.Side == Buy:
		return "BTC"
	case a.Intent == Close && a.Side == Sell:
		return "STC"
	}
	return string(a.Side)
}

// Trade is one executed option trade. It is created once from a stored record
// and never mutated afterwards.
type Trade struct {
	ID         int64
	Time       time.Time // UTC, second precision
	Contract   market.ContractKey
	Action     Action
	Quantity   int64 // contracts, always > 0
	Price      decimal.Decimal
	Commission decimal.Decimal
	Fees       decimal.Decimal
	Multiplier int64
	Tag        string
}

// Delta is the signed quantity: positive for buys (open long, close short),
// negative for sells (open short, close long).
func (t Trade) Delta() int64 {
	if t.Action.Side == Sell {
		return -t.Quantity
	}
	return t.Quantity
}

// TotalFee is commission plus fees.
func (t Trade) TotalFee() decimal.Decimal {
	return t.Commission.Add(t.Fees)
}

// Compare orders trades by (Time, ID), the ledger's processing order.
func Compare(a, b Trade) int {
	if c := a.Time.Compare(b.Time); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// Sort orders trades in place by (Time, ID).
func Sort(ts []Trade) {
	slices.SortStableFunc(ts, Compare)
}
