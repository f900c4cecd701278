package report

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rustyeddy/optrack/ledger"
	"github.com/rustyeddy/optrack/trade"
	"github.com/shopspring/decimal"
)

// Format names an output rendering.
type Format string

const (
	FormatTable Format = "table"
	FormatOrg   Format = "org"
	FormatJSON  Format = "json"
)

// ParseFormat accepts table, org or json.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatTable:
		return FormatTable, nil
	case FormatOrg, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown format %q (want table, org or json)", s)
}

// Write renders r to w.
func Write(w io.Writer, r *Report, f Format) error {
	switch f {
	case FormatOrg:
		return WriteOrg(w, r)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(NewView(r))
	default:
		return WriteTable(w, r)
	}
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }

// maybe renders an undefined amount as "-", never as zero.
func maybe(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return money(d.Decimal)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// WriteTable renders the positions, totals and groupings as aligned text.
func WriteTable(w io.Writer, r *Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Run %s  window %s  trades %d\n\n", r.RunID, r.Window, r.Trades)

	fmt.Fprintln(tw, "CONTRACT\tNET\tAVG OPEN\tMARK\tUNREALIZED\tREALIZED\tTAGS")
	for _, l := range r.Lines {
		p := l.Position
		mark := "-"
		if l.Valuation.Mark != nil {
			mark = l.Valuation.Mark.Price.String()
		}
		avg, unreal := "-", "-"
		if p.IsOpen() {
			avg = l.Summary.AvgOpenPrice.StringFixed(4)
			unreal = maybe(l.Valuation.Unrealized)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			p.Contract, p.Net, avg, mark, unreal, money(p.Realized), tagList(p.TagCounts))
	}
	fmt.Fprintln(tw)

	fmt.Fprintf(tw, "Total realized:\t%s\n", money(r.Realized))
	fmt.Fprintf(tw, "Total unrealized:\t%s\n", money(r.Unrealized))
	if len(r.Missing) > 0 {
		ids := make([]string, len(r.Missing))
		for i, k := range r.Missing {
			ids[i] = k.ID()
		}
		fmt.Fprintf(tw, "No mark:\t%s\n", strings.Join(ids, ", "))
	}

	if len(r.BySymbol) > 0 {
		fmt.Fprintln(tw, "\nSYMBOL\tREALIZED\tMATCHES")
		for _, a := range r.BySymbol {
			fmt.Fprintf(tw, "%s\t%s\t%d\n", a.Key, money(a.Realized), a.Matches)
		}
	}
	if len(r.ByTag) > 0 {
		fmt.Fprintln(tw, "\nTAG\tREALIZED\tMATCHES")
		for _, a := range r.ByTag {
			fmt.Fprintf(tw, "%s\t%s\t%d\n", orDash(a.Key), money(a.Realized), a.Matches)
		}
	}
	if len(r.Rejected) > 0 {
		fmt.Fprintln(tw, "\nREJECTED\tFIELD\tREASON")
		for _, x := range r.Rejected {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", orDash(x.RecordID), x.Field, x.Reason)
		}
	}
	return tw.Flush()
}

func tagList(tags map[string]int64) string {
	if len(tags) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(tags))
	for t, q := range tags {
		parts = append(parts, fmt.Sprintf("%s:%d", t, q))
	}
	slices.Sort(parts)
	return strings.Join(parts, ",")
}

// WriteMatches renders the realized match log.
func WriteMatches(w io.Writer, matches []ledger.RealizedMatch) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CLOSED\tCONTRACT\tSIDE\tQTY\tOPEN\tCLOSE\tGROSS\tFEES\tREALIZED\tOPEN ID\tCLOSE ID")
	for _, m := range matches {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\t%d\t%d\n",
			m.ClosedAt.Format(trade.TimeLayout), m.Contract, m.Side, m.Quantity,
			m.OpenPrice, m.ClosePrice, money(m.Gross), money(m.OpenFee.Add(m.CloseFee)),
			money(m.Realized), m.OpenTradeID, m.CloseTradeID)
	}
	return tw.Flush()
}

// WriteTrades lists trades one per line.
func WriteTrades(w io.Writer, trades []trade.Trade) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATETIME\tSYMBOL\tEXPIRY\tSTRIKE\tRIGHT\tACTION\tQTY\tPRICE\tCOMM\tFEES\tMULT\tTAG")
	for _, t := range trades {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\t%d\t%s\n",
			t.ID, t.Time.Format(time.RFC3339), t.Contract.Symbol, t.Contract.ExpiryString(),
			t.Contract.Strike, t.Contract.Right, t.Action.Code(), t.Quantity,
			money(t.Price), money(t.Commission), money(t.Fees), t.Multiplier, t.Tag)
	}
	return tw.Flush()
}
