package trade

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Record is a raw stored trade row: column name to value. Values are whatever
// the row store or CSV reader produced (string, []byte, int64, float64,
// decimal.Decimal, time.Time or nil).
type Record map[string]any

// Column names shared by every store and the CSV format.
const (
	ColID         = "id"
	ColDatetime   = "datetime"
	ColSymbol     = "symbol"
	ColExpiry     = "expiry"
	ColStrike     = "strike"
	ColRight      = "right"
	ColAction     = "action"
	ColQuantity   = "quantity"
	ColPrice      = "price"
	ColCommission = "commission"
	ColFees       = "fees"
	ColMultiplier = "multiplier"
	ColTag        = "tag"
)

// aliases maps canonical columns to the alternative names used by older
// flat-file exports.
var aliases = map[string][]string{
	ColDatetime: {"trade_datetime", "timestamp"},
	ColRight:    {"option_type"},
	ColTag:      {"group_id"},
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

var errMissing = errors.New("missing")

// Get returns the value for col or one of its aliases. Nil values and blank
// strings count as absent.
func (r Record) Get(col string) (any, bool) {
	for _, name := range append([]string{col}, aliases[col]...) {
		v, ok := r[name]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			continue
		}
		if b, isBytes := v.([]byte); isBytes && len(strings.TrimSpace(string(b))) == 0 {
			continue
		}
		return v, true
	}
	return nil, false
}

// Label identifies the record in error messages: its id when present.
func (r Record) Label() string {
	v, ok := r.Get(ColID)
	if !ok {
		return ""
	}
	s, err := toString(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return s
}

func (r Record) str(col string) (string, error) {
	v, ok := r.Get(col)
	if !ok {
		return "", errMissing
	}
	return toString(v)
}

func (r Record) dec(col string) (decimal.Decimal, error) {
	v, ok := r.Get(col)
	if !ok {
		return decimal.Zero, errMissing
	}
	return toDecimal(v)
}

var (
	minInt64 = decimal.NewFromInt(math.MinInt64)
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
)

func (r Record) integer(col string) (int64, error) {
	d, err := r.dec(col)
	if err != nil {
		return 0, err
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("%s is not a whole number", d)
	}
	if d.LessThan(minInt64) || d.GreaterThan(maxInt64) {
		return 0, fmt.Errorf("%s is out of range", d)
	}
	return d.IntPart(), nil
}

func (r Record) timestamp(col string) (time.Time, error) {
	v, ok := r.Get(col)
	if !ok {
		return time.Time{}, errMissing
	}
	if t, isTime := v.(time.Time); isTime {
		return t, nil
	}
	s, err := toString(v)
	if err != nil {
		return time.Time{}, err
	}
	return ParseTime(s)
}

// ParseTime accepts RFC3339 and the common space/T separated layouts; values
// without a zone are taken as UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable time %q", s)
}

func toString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x), nil
	case []byte:
		return strings.TrimSpace(string(x)), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case int:
		return strconv.Itoa(x), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case decimal.Decimal:
		return x.String(), nil
	case fmt.Stringer:
		return x.String(), nil
	}
	return "", fmt.Errorf("unsupported type %T", v)
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, nil
	case int64:
		return decimal.NewFromInt(x), nil
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case int32:
		return decimal.NewFromInt32(x), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return decimal.Zero, fmt.Errorf("not a finite number: %v", x)
		}
		return decimal.NewFromFloat(x), nil
	case float32:
		if f := float64(x); math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Zero, fmt.Errorf("not a finite number: %v", x)
		}
		return decimal.NewFromFloat32(x), nil
	case string, []byte:
		s, _ := toString(x)
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, fmt.Errorf("not a number: %q", s)
		}
		return d, nil
	}
	return decimal.Zero, fmt.Errorf("unsupported type %T", v)
}

// TimeLayout is the stored datetime format (UTC, second precision); it sorts
// lexically in time order.
const TimeLayout = "2006-01-02 15:04:05"

// Record renders t in the stored column layout. A zero id is left out.
func (t Trade) Record() Record {
	r := Record{
		ColDatetime:   t.Time.UTC().Format(TimeLayout),
		ColSymbol:     t.Contract.Symbol,
		ColExpiry:     t.Contract.ExpiryString(),
		ColStrike:     t.Contract.Strike.String(),
		ColRight:      string(t.Contract.Right),
		ColAction:     t.Action.Code(),
		ColQuantity:   t.Quantity,
		ColPrice:      t.Price.String(),
		ColCommission: t.Commission.String(),
		ColFees:       t.Fees.String(),
		ColMultiplier: t.Multiplier,
	}
	if t.ID != 0 {
		r[ColID] = t.ID
	}
	if t.Tag != "" {
		r[ColTag] = t.Tag
	}
	return r
}
