package report

import (
	"time"

	"github.com/rustyeddy/optrack/ledger"
	"github.com/shopspring/decimal"
)

// View is the JSON shape of a Report. Money is a decimal string and an
// unmarked position's unrealized P&L is null.
type View struct {
	RunID       string          `json:"run_id"`
	GeneratedAt time.Time       `json:"generated_at"`
	From        *time.Time      `json:"from,omitempty"`
	To          *time.Time      `json:"to,omitempty"`
	Trades      int             `json:"trades"`
	Realized    decimal.Decimal `json:"realized"`
	Unrealized  decimal.Decimal `json:"unrealized"`
	Positions   []PositionView  `json:"positions"`
	Matches     []MatchView     `json:"matches"`
	Missing     []string        `json:"missing_marks"`
	BySymbol    []AmountView    `json:"by_symbol"`
	ByTag       []AmountView    `json:"by_tag"`
	Rejected    []Rejected      `json:"rejected"`
}

type LotView struct {
	TradeID     int64               `json:"trade_id"`
	OpenedAt    time.Time           `json:"opened_at"`
	Quantity    int64               `json:"quantity"`
	OpenPrice   decimal.Decimal     `json:"open_price"`
	EmbeddedFee decimal.Decimal     `json:"embedded_fee"`
	Unrealized  decimal.NullDecimal `json:"unrealized"`
}

type PositionView struct {
	Contract     string              `json:"contract"`
	Symbol       string              `json:"symbol"`
	Expiry       string              `json:"expiry"`
	Strike       decimal.Decimal     `json:"strike"`
	Right        string              `json:"right"`
	Multiplier   int64               `json:"multiplier"`
	Net          int64               `json:"net"`
	Side         string              `json:"side"`
	AvgOpenPrice decimal.Decimal     `json:"avg_open_price"`
	EmbeddedFees decimal.Decimal     `json:"embedded_fees"`
	Realized     decimal.Decimal     `json:"realized"`
	Mark         decimal.NullDecimal `json:"mark"`
	MarkedAt     *time.Time          `json:"marked_at,omitempty"`
	Unrealized   decimal.NullDecimal `json:"unrealized"`
	Lots         []LotView           `json:"lots"`
	Tags         map[string]int64    `json:"tags,omitempty"`
}

type MatchView struct {
	Contract     string          `json:"contract"`
	Side         string          `json:"side"`
	Quantity     int64           `json:"quantity"`
	OpenPrice    decimal.Decimal `json:"open_price"`
	ClosePrice   decimal.Decimal `json:"close_price"`
	Gross        decimal.Decimal `json:"gross"`
	OpenFee      decimal.Decimal `json:"open_fee"`
	CloseFee     decimal.Decimal `json:"close_fee"`
	Realized     decimal.Decimal `json:"realized"`
	OpenTradeID  int64           `json:"open_trade_id"`
	CloseTradeID int64           `json:"close_trade_id"`
	ClosedAt     time.Time       `json:"closed_at"`
	Tag          string          `json:"tag,omitempty"`
}

type AmountView struct {
	Key      string          `json:"key"`
	Realized decimal.Decimal `json:"realized"`
	Matches  int             `json:"matches"`
}

// NewView flattens r for encoding. Slices are never nil so they encode as [].
func NewView(r *Report) View {
	v := View{
		RunID:       r.RunID,
		GeneratedAt: r.GeneratedAt,
		Trades:      r.Trades,
		Realized:    r.Realized,
		Unrealized:  r.Unrealized,
		Positions:   make([]PositionView, 0, len(r.Lines)),
		Matches:     NewMatchViews(r.Matches),
		Missing:     make([]string, 0, len(r.Missing)),
		BySymbol:    amountViews(r.BySymbol),
		ByTag:       amountViews(r.ByTag),
		Rejected:    r.Rejected,
	}
	if v.Rejected == nil {
		v.Rejected = []Rejected{}
	}
	if !r.Window.From.IsZero() {
		from := r.Window.From
		v.From = &from
	}
	if !r.Window.To.IsZero() {
		to := r.Window.To
		v.To = &to
	}
	for _, l := range r.Lines {
		v.Positions = append(v.Positions, NewPositionView(l))
	}
	for _, k := range r.Missing {
		v.Missing = append(v.Missing, k.ID())
	}
	return v
}

// NewPositionView flattens one report line.
func NewPositionView(l Line) PositionView {
	p := l.Position
	pv := PositionView{
		Contract:     p.Contract.ID(),
		Symbol:       p.Contract.Symbol,
		Expiry:       p.Contract.ExpiryString(),
		Strike:       p.Contract.Strike,
		Right:        string(p.Contract.Right),
		Multiplier:   p.Multiplier,
		Net:          p.Net,
		Side:         string(p.Side()),
		AvgOpenPrice: l.Summary.AvgOpenPrice,
		EmbeddedFees: l.Summary.EmbeddedFees,
		Realized:     p.Realized,
		Unrealized:   l.Valuation.Unrealized,
		Lots:         make([]LotView, 0, len(p.Lots)),
		Tags:         p.TagCounts,
	}
	if m := l.Valuation.Mark; m != nil {
		pv.Mark = decimal.NewNullDecimal(m.Price)
		at := m.ObservedAt
		pv.MarkedAt = &at
	}

	legs := make(map[int64]decimal.NullDecimal, len(l.Valuation.Legs))
	for _, leg := range l.Valuation.Legs {
		legs[leg.Lot.TradeID] = leg.Unrealized
	}
	for _, lot := range p.Lots {
		pv.Lots = append(pv.Lots, LotView{
			TradeID:     lot.TradeID,
			OpenedAt:    lot.OpenedAt,
			Quantity:    lot.Remaining,
			OpenPrice:   lot.OpenPrice,
			EmbeddedFee: lot.EmbeddedFee(),
			Unrealized:  legs[lot.TradeID],
		})
	}
	return pv
}

// NewMatchViews flattens the realized match log.
func NewMatchViews(ms []ledger.RealizedMatch) []MatchView {
	out := make([]MatchView, 0, len(ms))
	for _, m := range ms {
		out = append(out, MatchView{
			Contract:     m.Contract.ID(),
			Side:         string(m.Side),
			Quantity:     m.Quantity,
			OpenPrice:    m.OpenPrice,
			ClosePrice:   m.ClosePrice,
			Gross:        m.Gross,
			OpenFee:      m.OpenFee,
			CloseFee:     m.CloseFee,
			Realized:     m.Realized,
			OpenTradeID:  m.OpenTradeID,
			CloseTradeID: m.CloseTradeID,
			ClosedAt:     m.ClosedAt,
			Tag:          m.Tag,
		})
	}
	return out
}

func amountViews(as []Amount) []AmountView {
	out := make([]AmountView, 0, len(as))
	for _, a := range as {
		out = append(out, AmountView{Key: a.Key, Realized: a.Realized, Matches: a.Matches})
	}
	return out
}
