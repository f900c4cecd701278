package trade

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/optrack/market"
	"github.com/shopspring/decimal"
)

// ValidationError rejects one record before it reaches the ledger. Callers
// decide whether to skip the record or abort the batch.
type ValidationError struct {
	RecordID string
	Field    string
	Reason   string
}

func (e *ValidationError) Error() string {
	if e.RecordID == "" {
		return fmt.Sprintf("invalid trade record: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid trade record %s: %s: %s", e.RecordID, e.Field, e.Reason)
}

// Normalize validates a stored record and returns the canonical Trade. The
// record must carry the positive integer id assigned by its store.
func Normalize(r Record) (Trade, error) {
	return normalize(r, true)
}

// NormalizeDraft is Normalize for a record that has not been stored yet; a
// missing id is allowed and left at zero.
func NormalizeDraft(r Record) (Trade, error) {
	return normalize(r, false)
}

func normalize(r Record, requireID bool) (Trade, error) {
	var t Trade
	label := r.Label()
	invalid := func(field string, err error) (Trade, error) {
		reason := err.Error()
		if errors.Is(err, errMissing) {
			reason = "required"
		}
		return Trade{}, &ValidationError{RecordID: label, Field: field, Reason: reason}
	}

	id, err := r.integer(ColID)
	switch {
	case errors.Is(err, errMissing) && !requireID:
	case err != nil:
		return invalid(ColID, err)
	case id <= 0:
		return invalid(ColID, fmt.Errorf("must be positive, got %d", id))
	}
	t.ID = id

	ts, err := r.timestamp(ColDatetime)
	if err != nil {
		return invalid(ColDatetime, err)
	}
	t.Time = ts.UTC().Truncate(time.Second)

	symbol, err := r.str(ColSymbol)
	if err != nil {
		return invalid(ColSymbol, err)
	}
	expiry, err := r.timestamp(ColExpiry)
	if err != nil {
		return invalid(ColExpiry, err)
	}
	strike, err := r.dec(ColStrike)
	if err != nil {
		return invalid(ColStrike, err)
	}
	if strike.IsNegative() {
		return invalid(ColStrike, fmt.Errorf("must not be negative, got %s", strike))
	}
	rs, err := r.str(ColRight)
	if err != nil {
		return invalid(ColRight, err)
	}
	right, err := parseRightCode(rs)
	if err != nil {
		return invalid(ColRight, err)
	}
	t.Contract = market.NewContractKey(symbol, expiry, strike, right)
	if t.Contract.Symbol == "" {
		return invalid(ColSymbol, errMissing)
	}

	as, err := r.str(ColAction)
	if err != nil {
		return invalid(ColAction, err)
	}
	if t.Action, err = ParseAction(as); err != nil {
		return invalid(ColAction, err)
	}

	if t.Quantity, err = r.integer(ColQuantity); err != nil {
		return invalid(ColQuantity, err)
	}
	if t.Quantity <= 0 {
		return invalid(ColQuantity, fmt.Errorf("must be positive, got %d", t.Quantity))
	}

	if t.Price, err = r.dec(ColPrice); err != nil {
		return invalid(ColPrice, err)
	}
	if t.Price.IsNegative() {
		return invalid(ColPrice, fmt.Errorf("must not be negative, got %s", t.Price))
	}

	for _, f := range []struct {
		col string
		dst *decimal.Decimal
	}{{ColCommission, &t.Commission}, {ColFees, &t.Fees}} {
		v, err := r.dec(f.col)
		switch {
		case errors.Is(err, errMissing):
			v = decimal.Zero
		case err != nil:
			return invalid(f.col, err)
		case v.IsNegative():
			return invalid(f.col, fmt.Errorf("must not be negative, got %s", v))
		}
		*f.dst = v
	}

	t.Multiplier, err = r.integer(ColMultiplier)
	switch {
	case errors.Is(err, errMissing):
		t.Multiplier = market.DefaultMultiplier
	case err != nil:
		return invalid(ColMultiplier, err)
	case t.Multiplier <= 0:
		return invalid(ColMultiplier, fmt.Errorf("must be positive, got %d", t.Multiplier))
	}

	if tag, err := r.str(ColTag); err == nil {
		t.Tag = tag
	}
	return t, nil
}

// parseRightCode is stricter than market.ParseRight: stored records carry the
// single-letter code only.
func parseRightCode(s string) (market.Right, error) {
	switch strings.ToUpper(s) {
	case "C":
		return market.Call, nil
	case "P":
		return market.Put, nil
	}
	return "", fmt.Errorf("must be C or P, got %q", s)
}
