package cmd

import (
	"fmt"
	"os"

	"github.com/rustyeddy/optrack/journal"
	"github.com/rustyeddy/optrack/trade"
	"github.com/spf13/cobra"
)

var importCSVCmd = &cobra.Command{
	Use:   "import-csv",
	Short: "Import trades from CSV",
	Long: `Import trades from a CSV file with a header row. Required columns:
datetime, symbol, expiry, strike, right, action, quantity, price.
Optional: commission, fees, multiplier, tag. An id column is ignored.

Every row is validated before anything is written; the import is all or
nothing.`,
	Args: cobra.NoArgs,
	RunE: runImportCSV,
}

var exportCSVCmd = &cobra.Command{
	Use:   "export-csv",
	Short: "Export trades to CSV",
	Args:  cobra.NoArgs,
	RunE:  runExportCSV,
}

var (
	importPath string
	exportPath string
	exportFrom string
	exportTo   string
)

func init() {
	rootCmd.AddCommand(importCSVCmd)
	rootCmd.AddCommand(exportCSVCmd)

	importCSVCmd.Flags().StringVarP(&importPath, "path", "p", "", "CSV file to import")
	_ = importCSVCmd.MarkFlagRequired("path")

	exportCSVCmd.Flags().StringVarP(&exportPath, "path", "p", "", "output file (default stdout)")
	exportCSVCmd.Flags().StringVar(&exportFrom, "from", "", "from datetime (inclusive)")
	exportCSVCmd.Flags().StringVar(&exportTo, "to", "", "to datetime (inclusive; a bare date covers the day)")
}

func runImportCSV(cmd *cobra.Command, args []string) error {
	f, err := os.Open(importPath)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	recs, err := journal.ReadTradesCSV(f)
	if err != nil {
		return err
	}
	trades := make([]trade.Trade, 0, len(recs))
	for i, r := range recs {
		delete(r, trade.ColID)
		if _, ok := r.Get(trade.ColMultiplier); !ok {
			r[trade.ColMultiplier] = cfg.Ledger.DefaultMultiplier
		}
		t, err := trade.NormalizeDraft(r)
		if err != nil {
			// header is line 1
			return fmt.Errorf("line %d: %w", i+2, err)
		}
		trades = append(trades, t)
	}

	st, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	n, err := st.InsertTrades(cmd.Context(), trades)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	log.Info("csv imported", "path", importPath, "trades", n)
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d trades from %s\n", n, importPath)
	return nil
}

func runExportCSV(cmd *cobra.Command, args []string) error {
	w, err := journal.ParseWindow(exportFrom, exportTo)
	if err != nil {
		return err
	}
	st, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	recs, err := st.ListTrades(cmd.Context(), w)
	if err != nil {
		return fmt.Errorf("list trades: %w", err)
	}
	trades := make([]trade.Trade, 0, len(recs))
	for _, r := range recs {
		t, err := trade.Normalize(r)
		if err != nil {
			return err
		}
		trades = append(trades, t)
	}

	out := cmd.OutOrStdout()
	if exportPath != "" {
		f, err := os.Create(exportPath)
		if err != nil {
			return fmt.Errorf("create csv: %w", err)
		}
		defer f.Close()
		out = f
	}
	if err := journal.WriteTradesCSV(out, trades); err != nil {
		return err
	}
	if exportPath != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d trades to %s\n", len(trades), exportPath)
	}
	return nil
}
