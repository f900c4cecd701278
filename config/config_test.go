package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NotNil(t, cfg)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, int64(100), cfg.Ledger.DefaultMultiplier)
	assert.False(t, cfg.Ledger.SkipInvalid)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:   "memory driver needs nothing else",
			mutate: func(c *Config) { c.Store = StoreConfig{Driver: "memory"} },
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Store.Driver = "mysql" },
			wantErr: true,
			errMsg:  "store.driver must be",
		},
		{
			name:    "sqlite without path",
			mutate:  func(c *Config) { c.Store.Path = "" },
			wantErr: true,
			errMsg:  "store.path required",
		},
		{
			name:    "postgres without dsn",
			mutate:  func(c *Config) { c.Store.Driver = "postgres" },
			wantErr: true,
			errMsg:  "store.dsn required",
		},
		{
			name:    "bad ttl",
			mutate:  func(c *Config) { c.Cache.TTL = "soon" },
			wantErr: true,
			errMsg:  "cache.ttl",
		},
		{
			name:    "bad timeout",
			mutate:  func(c *Config) { c.Quotes.Timeout = "10" },
			wantErr: true,
			errMsg:  "quotes.timeout",
		},
		{
			name:    "zero multiplier",
			mutate:  func(c *Config) { c.Ledger.DefaultMultiplier = 0 },
			wantErr: true,
			errMsg:  "ledger.default_multiplier must be positive",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Log.Level = "chatty" },
			wantErr: true,
			errMsg:  "log.level",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: true,
			errMsg:  "log.format must be",
		},
		{
			name:    "no server addr",
			mutate:  func(c *Config) { c.Server.Addr = "" },
			wantErr: true,
			errMsg:  "server.addr is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name string
		ext  string
	}{
		{"json format", ".json"},
		{"yaml format", ".yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Ledger.SkipInvalid = true
			cfg.Cache.RedisURL = "redis://localhost:6379/0"
			path := filepath.Join(tmpDir, "test"+tt.ext)

			err := cfg.SaveToFile(path)
			require.NoError(t, err)

			_, err = os.Stat(path)
			require.NoError(t, err)

			loaded, err := LoadFromFile(path)
			require.NoError(t, err)

			assert.Equal(t, cfg.Store, loaded.Store)
			assert.Equal(t, cfg.Cache, loaded.Cache)
			assert.Equal(t, cfg.Ledger, loaded.Ledger)
			assert.Equal(t, cfg.Server.Addr, loaded.Server.Addr)
		})
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "optrack.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ledger:\n  skip_invalid: true\n"), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.True(t, cfg.Ledger.SkipInvalid)
	assert.Equal(t, int64(100), cfg.Ledger.DefaultMultiplier)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
}

func TestLoadInvalidFile(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path.yaml")
	assert.Error(t, err)
}

func TestEnvOverridesStorePath(t *testing.T) {
	t.Setenv(DBEnv, "/tmp/elsewhere.db")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/elsewhere.db", cfg.Store.Path)
}

func TestDurations(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"", 30 * time.Second, false},
		{"5m", 5 * time.Minute, false},
		{"1s", time.Second, false},
		{"invalid", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, err := CacheConfig{TTL: tt.in}.TTLDuration()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.want, d)
			}
		})
	}

	d, err := QuotesConfig{}.TimeoutDuration()
	require.NoError(t, err)
	assert.Zero(t, d)
}
