package report

import (
	"io"
	"text/template"
	"time"

	"github.com/shopspring/decimal"
)

var orgFuncs = template.FuncMap{
	"money": money,
	"maybe": maybe,
	"dash":  orDash,
	"tags":  tagList,
	"fee":   func(a, b decimal.Decimal) string { return money(a.Add(b)) },
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now().UTC()
		}
		return t
	},
}

var orgTemplate = template.Must(template.New("report").Funcs(orgFuncs).Parse(OrgTemplate))

// WriteOrg renders r as an Org-mode entry: structured facts in a PROPERTIES
// drawer, then one table per section.
func WriteOrg(w io.Writer, r *Report) error {
	return orgTemplate.Execute(w, r)
}

const OrgTemplate = `* REPORT: {{.Window}}
:PROPERTIES:
:RUN_ID:      {{if .RunID}}{{.RunID}}{{else}}(run-id?){{end}}
:WINDOW:      {{.Window}}
:TRADES:      {{.Trades}}
:MATCHES:     {{len .Matches}}
:REALIZED:    {{money .Realized}}
:UNREALIZED:  {{money .Unrealized}}
:NO_MARK:     {{len .Missing}}
:REJECTED:    {{len .Rejected}}
:CREATED:     [{{(orTime .GeneratedAt).Format "2006-01-02 Mon 15:04"}}]
:END:

** Positions
| Contract | Net | Avg Open | Mark | Unrealized | Realized | Tags |
|----------+-----+----------+------+------------+----------+------|
{{- range .Lines}}
| {{.Position.Contract}} | {{.Position.Net}} | {{if .Position.IsOpen}}{{.Summary.AvgOpenPrice.StringFixed 4}}{{else}}-{{end}} | {{with .Valuation.Mark}}{{.Price}}{{else}}-{{end}} | {{if .Position.IsOpen}}{{maybe .Valuation.Unrealized}}{{else}}-{{end}} | {{money .Position.Realized}} | {{tags .Position.TagCounts}} |
{{- end}}
{{if .Missing}}
No mark: {{range $i, $k := .Missing}}{{if $i}}, {{end}}{{$k}}{{end}}
{{end}}
** Realized
| Closed | Contract | Side | Qty | Open | Close | Fees | Realized |
|--------+----------+------+-----+------+-------+------+----------|
{{- range .Matches}}
| {{.ClosedAt.Format "2006-01-02 15:04"}} | {{.Contract}} | {{.Side}} | {{.Quantity}} | {{.OpenPrice}} | {{.ClosePrice}} | {{fee .OpenFee .CloseFee}} | {{money .Realized}} |
{{- end}}

** By Symbol
| Symbol | Realized | Matches |
|--------+----------+---------|
{{- range .BySymbol}}
| {{.Key}} | {{money .Realized}} | {{.Matches}} |
{{- end}}

** By Tag
| Tag | Realized | Matches |
|-----+----------+---------|
{{- range .ByTag}}
| {{dash .Key}} | {{money .Realized}} | {{.Matches}} |
{{- end}}
{{if .Rejected}}
** Rejected Records
| Record | Field | Reason |
|--------+-------+--------|
{{- range .Rejected}}
| {{dash .RecordID}} | {{.Field}} | {{.Reason}} |
{{- end}}
{{end}}`
