package cmd

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/rustyeddy/optrack/journal"
	"github.com/rustyeddy/optrack/market"
	"github.com/rustyeddy/optrack/quote"
	"github.com/rustyeddy/optrack/trade"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var updateMarkCmd = &cobra.Command{
	Use:   "update-mark",
	Short: "Record a manual mark for a contract",
	Args:  cobra.NoArgs,
	RunE:  runUpdateMark,
}

var fetchMarksCmd = &cobra.Command{
	Use:   "fetch-marks",
	Short: "Fetch marks for open contracts from the quote service",
	Long: `Look up every contract with an open position in the configured option
chain service (quotes.base_url) and record the mid, or the last trade when
the quote is one-sided. Contracts the service cannot price are listed and
keep their previous mark.`,
	Args: cobra.NoArgs,
	RunE: runFetchMarks,
}

var markFlags struct {
	symbol, expiry, strike, right, mark string
}

var fetchAll bool

func init() {
	rootCmd.AddCommand(updateMarkCmd)
	rootCmd.AddCommand(fetchMarksCmd)

	f := updateMarkCmd.Flags()
	f.StringVar(&markFlags.symbol, "symbol", "", "underlying symbol")
	f.StringVar(&markFlags.expiry, "expiry", "", "option expiry YYYY-MM-DD")
	f.StringVar(&markFlags.strike, "strike", "", "strike price")
	f.StringVar(&markFlags.right, "right", "", "C or P")
	f.StringVar(&markFlags.mark, "mark", "", "per-share mark price")
	for _, name := range []string{"symbol", "expiry", "strike", "right", "mark"} {
		_ = updateMarkCmd.MarkFlagRequired(name)
	}

	fetchMarksCmd.Flags().BoolVar(&fetchAll, "all", false, "fetch every traded contract, not only open ones")
}

func parseMarkFlags() (market.Mark, error) {
	exp, err := time.Parse(market.DateLayout, markFlags.expiry)
	if err != nil {
		return market.Mark{}, fmt.Errorf("expiry: %w", err)
	}
	strike, err := decimal.NewFromString(markFlags.strike)
	if err != nil {
		return market.Mark{}, fmt.Errorf("strike: %w", err)
	}
	right, err := market.ParseRight(markFlags.right)
	if err != nil {
		return market.Mark{}, err
	}
	price, err := decimal.NewFromString(markFlags.mark)
	if err != nil {
		return market.Mark{}, fmt.Errorf("mark: %w", err)
	}
	if price.IsNegative() {
		return market.Mark{}, fmt.Errorf("mark must not be negative, got %s", price)
	}
	return market.Mark{
		Contract:   market.NewContractKey(markFlags.symbol, exp, strike, right),
		Price:      price,
		ObservedAt: time.Now().UTC(),
	}, nil
}

func runUpdateMark(cmd *cobra.Command, args []string) error {
	m, err := parseMarkFlags()
	if err != nil {
		return err
	}
	st, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.RecordMark(cmd.Context(), m); err != nil {
		return fmt.Errorf("record mark: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Mark updated: %s %s\n", m.Contract, m.Price)
	return nil
}

// fetchKeys returns the contracts to price: the open ones, or every traded
// one with all set.
func fetchKeys(cmd *cobra.Command, st journal.Store, all bool) ([]market.ContractKey, error) {
	if !all {
		rep, err := newBuilder(st).Build(cmd.Context(), journal.Window{})
		if err != nil {
			return nil, err
		}
		var keys []market.ContractKey
		for _, l := range rep.Open() {
			keys = append(keys, l.Position.Contract)
		}
		return keys, nil
	}

	recs, err := st.ListTrades(cmd.Context(), journal.Window{})
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	var keys []market.ContractKey
	for _, r := range recs {
		t, err := trade.Normalize(r)
		if err != nil {
			continue
		}
		keys = append(keys, t.Contract)
	}
	slices.SortFunc(keys, market.ContractKey.Compare)
	return slices.CompactFunc(keys, market.ContractKey.Equal), nil
}

func runFetchMarks(cmd *cobra.Command, args []string) error {
	if cfg.Quotes.BaseURL == "" {
		return fmt.Errorf("quotes.base_url is not configured")
	}
	timeout, err := cfg.Quotes.TimeoutDuration()
	if err != nil {
		return err
	}

	st, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	keys, err := fetchKeys(cmd, st, fetchAll)
	if err != nil {
		return err
	}

	f := &quote.Fetcher{
		Source:      quote.NewClient(cfg.Quotes.BaseURL, cfg.Quotes.Token, timeout, log),
		Recorder:    st,
		Concurrency: cfg.Quotes.Concurrency,
		Log:         log,
	}
	res, err := f.Fetch(cmd.Context(), keys)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Fetched marks for %d contracts.\n", len(res.Updated))
	for _, k := range res.Missing {
		fmt.Fprintf(out, "  no quote: %s\n", k)
	}
	failed := slices.Sorted(maps.Keys(res.Failed))
	for _, id := range failed {
		fmt.Fprintf(out, "  failed:   %s: %v\n", id, res.Failed[id])
	}
	return nil
}
