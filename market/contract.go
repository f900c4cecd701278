package market

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultMultiplier is the contract size of a standard equity option.
const DefaultMultiplier int64 = 100

// DateLayout is the canonical expiry format.
const DateLayout = "2006-01-02"

// Right is the option right: call or put.
type Right string

const (
	Call Right = "C"
	Put  Right = "P"
)

// ParseRight accepts C/P and CALL/PUT in any case.
func ParseRight(s string) (Right, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "C", "CALL":
		return Call, nil
	case "P", "PUT":
		return Put, nil
	}
	return "", fmt.Errorf("unknown option right %q", s)
}

func (r Right) String() string { return string(r) }

// ContractKey identifies one option series. Two keys are the same series when
// symbol, expiry, strike and right match; the multiplier is a property of the
// traded contract and is deliberately not part of the key.
type ContractKey struct {
	Symbol string
	Expiry time.Time // UTC midnight
	Strike decimal.Decimal
	Right  Right
}

// NewContractKey canonicalizes its inputs: upper-case symbol, expiry truncated
// to the UTC calendar date.
func NewContractKey(symbol string, expiry time.Time, strike decimal.Decimal, right Right) ContractKey {
	y, m, d := expiry.Date()
	return ContractKey{
		Symbol: strings.ToUpper(strings.TrimSpace(symbol)),
		Expiry: time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		Strike: strike,
		Right:  right,
	}
}

// ID is the canonical string form of the key, e.g. "SPY 2025-01-17 450 C".
// It is stable across equivalent strikes (450 and 450.00) and is what maps and
// stores use to index contracts.
func (k ContractKey) ID() string {
	return fmt.Sprintf("%s %s %s %s", k.Symbol, k.ExpiryString(), k.Strike.String(), k.Right)
}

func (k ContractKey) String() string { return k.ID() }

// ExpiryString formats the expiry as YYYY-MM-DD.
func (k ContractKey) ExpiryString() string { return k.Expiry.Format(DateLayout) }

// Equal reports whether both keys name the same series.
func (k ContractKey) Equal(o ContractKey) bool { return k.Compare(o) == 0 }

// Compare orders keys by symbol, expiry, strike, then right.
func (k ContractKey) Compare(o ContractKey) int {
	if c := strings.Compare(k.Symbol, o.Symbol); c != 0 {
		return c
	}
	if c := k.Expiry.Compare(o.Expiry); c != 0 {
		return c
	}
	if c := k.Strike.Cmp(o.Strike); c != 0 {
		return c
	}
	return strings.Compare(string(k.Right), string(o.Right))
}
