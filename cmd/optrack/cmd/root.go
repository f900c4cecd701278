package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/rustyeddy/optrack/config"
	"github.com/rustyeddy/optrack/internal/logging"
	"github.com/rustyeddy/optrack/journal"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "optrack",
	Short: "Options profit tracker with FIFO lot matching",
	Long: `optrack records option trades, matches closes against open lots first in,
first out, and reports realized and unrealized P&L.

It provides tools for:
  - Recording trades by hand or importing them from CSV
  - Tracking open positions and their lots
  - Recording marks manually or fetching them from a quote service
  - Realized P&L reports by window, symbol and tag
  - Serving reports over HTTP

Trades live in SQLite by default (OPTIONS_TRACKER_DB or --db), or Postgres.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var (
	cfgFile   string
	dbPath    string
	logLevel  string
	logFormat string

	cfg *config.Config
	log *slog.Logger
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "SQLite database path (overrides config and "+config.DBEnv+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug|info|warn|error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text|json")
}

// setup loads configuration, applies flag overrides and installs the logger.
func setup(cmd *cobra.Command, args []string) error {
	c, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if dbPath != "" {
		c.Store.Driver = "sqlite"
		c.Store.Path = dbPath
	}
	if logLevel != "" {
		c.Log.Level = logLevel
	}
	if logFormat != "" {
		c.Log.Format = logFormat
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	l, err := logging.New(c.Log.Level, c.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	slog.SetDefault(l)
	cfg, log = c, l
	return nil
}

// openStore opens the configured backend, with the Redis mark cache in
// front of it when cache.redis_url is set.
func openStore(ctx context.Context) (journal.Store, error) {
	var st journal.Store
	switch cfg.Store.Driver {
	case "postgres":
		pg, err := journal.OpenPostgres(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		st = pg
	case "memory":
		st = journal.NewMemoryStore()
	default:
		j, err := journal.NewSQLite(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		st = j
	}

	if cfg.Cache.RedisURL == "" {
		return st, nil
	}
	opts, err := redis.ParseURL(cfg.Cache.RedisURL)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("cache.redis_url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("redis unavailable, mark cache disabled", "err", err)
		_ = rdb.Close()
		return st, nil
	}
	ttl, _ := cfg.Cache.TTLDuration()
	return journal.WithMarkCache(st, journal.NewCachedMarks(st, rdb, ttl)), nil
}
