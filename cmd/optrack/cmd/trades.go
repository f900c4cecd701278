package cmd

import (
	"fmt"
	"strconv"

	"github.com/rustyeddy/optrack/journal"
	"github.com/rustyeddy/optrack/report"
	"github.com/rustyeddy/optrack/trade"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the database",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a trade record",
	Long: `Validate and store one trade.

Actions: BUY/SELL, or BTO/STO/BTC/STC. The open/close intent of the four
letter codes is kept, but matching is always by sign: a close larger than the
open position flips it.

Example:
  optrack add --datetime 2025-01-10T15:32:00 --symbol SPY --expiry 2025-01-17 \
    --strike 450 --right C --action BUY --quantity 2 --price 1.25 --commission 1.30`,
	Args: cobra.NoArgs,
	RunE: runAdd,
}

var listTradesCmd = &cobra.Command{
	Use:   "list-trades",
	Short: "List all trades",
	Args:  cobra.NoArgs,
	RunE:  runListTrades,
}

var deleteTradeCmd = &cobra.Command{
	Use:   "delete-trade <id>",
	Short: "Delete a trade by id",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeleteTrade,
}

var addFlags struct {
	datetime, symbol, expiry, strike, right, action string
	quantity                                        int64
	price, commission, fees                         string
	multiplier                                      int64
	tag                                             string
}

var listFrom, listTo string

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listTradesCmd)
	rootCmd.AddCommand(deleteTradeCmd)

	f := addCmd.Flags()
	f.StringVar(&addFlags.datetime, "datetime", "", "trade time, e.g. 2025-01-10T15:32:00 (UTC unless zoned)")
	f.StringVar(&addFlags.symbol, "symbol", "", "underlying symbol")
	f.StringVar(&addFlags.expiry, "expiry", "", "option expiry YYYY-MM-DD")
	f.StringVar(&addFlags.strike, "strike", "", "strike price")
	f.StringVar(&addFlags.right, "right", "", "C or P")
	f.StringVar(&addFlags.action, "action", "", "BUY, SELL, BTO, STO, BTC or STC")
	f.Int64Var(&addFlags.quantity, "quantity", 0, "contracts")
	f.StringVar(&addFlags.price, "price", "", "per-share premium")
	f.StringVar(&addFlags.commission, "commission", "0", "commission")
	f.StringVar(&addFlags.fees, "fees", "0", "regulatory and exchange fees")
	f.Int64Var(&addFlags.multiplier, "multiplier", 0, "shares per contract (default ledger.default_multiplier)")
	f.StringVar(&addFlags.tag, "tag", "", "free-form grouping tag")
	for _, name := range []string{"datetime", "symbol", "expiry", "strike", "right", "action", "quantity", "price"} {
		_ = addCmd.MarkFlagRequired(name)
	}

	listTradesCmd.Flags().StringVar(&listFrom, "from", "", "from datetime (inclusive)")
	listTradesCmd.Flags().StringVar(&listTo, "to", "", "to datetime (inclusive; a bare date covers the day)")
}

func runInit(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	switch cfg.Store.Driver {
	case "postgres":
		fmt.Fprintln(cmd.OutOrStdout(), "Initialized postgres database")
	default:
		fmt.Fprintf(cmd.OutOrStdout(), "Initialized database at %s\n", cfg.Store.Path)
	}
	return nil
}

func runAdd(cmd *cobra.Command, args []string) error {
	mult := addFlags.multiplier
	if mult == 0 {
		mult = cfg.Ledger.DefaultMultiplier
	}
	t, err := trade.NormalizeDraft(trade.Record{
		trade.ColDatetime:   addFlags.datetime,
		trade.ColSymbol:     addFlags.symbol,
		trade.ColExpiry:     addFlags.expiry,
		trade.ColStrike:     addFlags.strike,
		trade.ColRight:      addFlags.right,
		trade.ColAction:     addFlags.action,
		trade.ColQuantity:   addFlags.quantity,
		trade.ColPrice:      addFlags.price,
		trade.ColCommission: addFlags.commission,
		trade.ColFees:       addFlags.fees,
		trade.ColMultiplier: mult,
		trade.ColTag:        addFlags.tag,
	})
	if err != nil {
		return err
	}

	st, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	id, err := st.InsertTrade(cmd.Context(), t)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	log.Debug("trade inserted", "id", id, "contract", t.Contract.ID(), "action", t.Action.Code())
	fmt.Fprintf(cmd.OutOrStdout(), "Inserted trade id=%d\n", id)
	return nil
}

func runListTrades(cmd *cobra.Command, args []string) error {
	w, err := journal.ParseWindow(listFrom, listTo)
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
			if !cfg.Ledger.SkipInvalid {
				return err
			}
			log.Warn("skipping invalid trade record", "err", err)
			continue
		}
		trades = append(trades, t)
	}
	return report.WriteTrades(cmd.OutOrStdout(), trades)
}

func runDeleteTrade(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("trade id: %w", err)
	}
	st, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.DeleteTrade(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted trade id=%d\n", id)
	return nil
}
