package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rustyeddy/optrack/internal/logging"
	"gopkg.in/yaml.v3"
)

// DBEnv overrides store.path when set.
const DBEnv = "OPTIONS_TRACKER_DB"

// Config represents the complete optrack configuration
type Config struct {
	Store  StoreConfig  `json:"store" yaml:"store"`
	Cache  CacheConfig  `json:"cache" yaml:"cache"`
	Quotes QuotesConfig `json:"quotes" yaml:"quotes"`
	Ledger LedgerConfig `json:"ledger" yaml:"ledger"`
	Log    LogConfig    `json:"log" yaml:"log"`
	Server ServerConfig `json:"server" yaml:"server"`
}

// StoreConfig selects the trade and mark backend
type StoreConfig struct {
	Driver string `json:"driver" yaml:"driver"` // "sqlite", "postgres" or "memory"
	Path   string `json:"path,omitempty" yaml:"path,omitempty"`
	DSN    string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

// CacheConfig enables the Redis mark cache when RedisURL is set
type CacheConfig struct {
	RedisURL string `json:"redis_url,omitempty" yaml:"redis_url,omitempty"`
	TTL      string `json:"ttl,omitempty" yaml:"ttl,omitempty"` // e.g. "30s", "5m"
}

// QuotesConfig points fetch-marks at an option chain service
type QuotesConfig struct {
	BaseURL     string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Token       string `json:"token,omitempty" yaml:"token,omitempty"`
	Timeout     string `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Concurrency int    `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
}

// LedgerConfig holds ledger defaults
type LedgerConfig struct {
	DefaultMultiplier int64 `json:"default_multiplier" yaml:"default_multiplier"`
	SkipInvalid       bool  `json:"skip_invalid" yaml:"skip_invalid"`
}

// LogConfig configures the slog handler
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // text or json
}

// ServerConfig configures `optrack serve`
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// TTLDuration parses the cache TTL; empty means 30s.
func (c CacheConfig) TTLDuration() (time.Duration, error) {
	if c.TTL == "" {
		return 30 * time.Second, nil
	}
	return time.ParseDuration(c.TTL)
}

// TimeoutDuration parses the quote timeout; empty means zero (client default).
func (q QuotesConfig) TimeoutDuration() (time.Duration, error) {
	if q.Timeout == "" {
		return 0, nil
	}
	return time.ParseDuration(q.Timeout)
}

// LoadFromFile loads configuration from a file (YAML or JSON)
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		cfg = Default()
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Load reads path when it exists and otherwise returns Default with the
// environment applied.
func Load(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return LoadFromFile(path)
		}
	}
	cfg := Default()
	cfg.ApplyEnv()
	return cfg, cfg.Validate()
}

// ApplyEnv applies environment overrides.
func (c *Config) ApplyEnv() {
	if p := os.Getenv(DBEnv); p != "" {
		c.Store.Path = p
	}
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path required for sqlite driver")
		}
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn required for postgres driver")
		}
	case "memory":
	default:
		return fmt.Errorf("store.driver must be 'sqlite', 'postgres' or 'memory'")
	}
	if _, err := c.Cache.TTLDuration(); err != nil {
		return fmt.Errorf("cache.ttl: %w", err)
	}
	if _, err := c.Quotes.TimeoutDuration(); err != nil {
		return fmt.Errorf("quotes.timeout: %w", err)
	}
	if c.Quotes.Concurrency < 0 {
		return fmt.Errorf("quotes.concurrency must not be negative")
	}
	if c.Ledger.DefaultMultiplier <= 0 {
		return fmt.Errorf("ledger.default_multiplier must be positive")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if f := c.Log.Format; f != "" && f != "text" && f != "json" {
		return fmt.Errorf("log.format must be 'text' or 'json'")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Driver: "sqlite",
			Path:   "./options_tracker.db",
		},
		Cache: CacheConfig{
			TTL: "30s",
		},
		Quotes: QuotesConfig{
			Timeout:     "10s",
			Concurrency: 4,
		},
		Ledger: LedgerConfig{
			DefaultMultiplier: 100,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}
