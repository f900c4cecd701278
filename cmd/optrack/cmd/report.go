package cmd

import (
	"fmt"

	"github.com/rustyeddy/optrack/journal"
	"github.com/rustyeddy/optrack/report"
	"github.com/spf13/cobra"
)

var positionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "Show open positions, unrealized and realized totals",
	Long: `Fold every stored trade and list what is still open, valued against the
latest recorded mark. A contract without a mark shows "-" for mark and
unrealized P&L and is left out of the unrealized total.`,
	Args: cobra.NoArgs,
	RunE: runPositions,
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Realized P&L over a time window",
	Long: `Fold the trades inside the window and report realized P&L by symbol and
tag, open positions and marks.

Examples:
  optrack report --from 2025-01-01 --to 2025-03-31
  optrack report --format org >> journal.org
  optrack report --format json`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

var (
	reportFrom    string
	reportTo      string
	reportFormat  string
	reportMatches bool
)

func init() {
	rootCmd.AddCommand(positionsCmd)
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVar(&reportFrom, "from", "", "from datetime (inclusive)")
	reportCmd.Flags().StringVar(&reportTo, "to", "", "to datetime (inclusive; a bare date covers the day)")
	reportCmd.Flags().StringVarP(&reportFormat, "format", "f", "table", "output format: table|org|json")
	reportCmd.Flags().BoolVar(&reportMatches, "matches", false, "also list every realized match (table format)")
}

func buildReport(cmd *cobra.Command, w journal.Window) (*report.Report, error) {
	st, err := openStore(cmd.Context())
	if err != nil {
		return nil, err
	}
	defer st.Close()
	return newBuilder(st).Build(cmd.Context(), w)
}

func newBuilder(st journal.Store) *report.Builder {
	return &report.Builder{
		Trades:            st,
		Marks:             st,
		SkipInvalid:       cfg.Ledger.SkipInvalid,
		DefaultMultiplier: cfg.Ledger.DefaultMultiplier,
		Log:               log,
	}
}

func runPositions(cmd *cobra.Command, args []string) error {
	rep, err := buildReport(cmd, journal.Window{})
	if err != nil {
		return err
	}
	open := *rep
	open.Lines = rep.Open()
	open.BySymbol, open.ByTag = nil, nil
	return report.WriteTable(cmd.OutOrStdout(), &open)
}

func runReport(cmd *cobra.Command, args []string) error {
	format, err := report.ParseFormat(reportFormat)
	if err != nil {
		return err
	}
	w, err := journal.ParseWindow(reportFrom, reportTo)
	if err != nil {
		return err
	}
	rep, err := buildReport(cmd, w)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := report.Write(out, rep, format); err != nil {
		return err
	}
	if reportMatches && format == report.FormatTable {
		fmt.Fprintln(out)
		return report.WriteMatches(out, rep.Matches)
	}
	return nil
}
