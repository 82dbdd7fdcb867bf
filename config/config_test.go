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
	assert.Equal(t, "practice", cfg.OANDA.Env)
	assert.Equal(t, "firestore", cfg.Store.Type)
	assert.Equal(t, 1200*time.Millisecond, cfg.Backfill.Delay)
	assert.Equal(t, 50.0, cfg.Risk.MaxRiskGBP)
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
			name:    "live env",
			mutate:  func(c *Config) { c.OANDA.Env = "live" },
			wantErr: true,
			errMsg:  "live trading is not allowed",
		},
		{
			name:    "unknown env",
			mutate:  func(c *Config) { c.OANDA.Env = "staging" },
			wantErr: true,
			errMsg:  "oanda.env",
		},
		{
			name:    "unknown store",
			mutate:  func(c *Config) { c.Store.Type = "postgres" },
			wantErr: true,
			errMsg:  "store.type",
		},
		{
			name:    "sqlite without path",
			mutate:  func(c *Config) { c.Store.Type = "sqlite"; c.Store.SQLitePath = "" },
			wantErr: true,
			errMsg:  "store.sqlite_path required",
		},
		{
			name:   "memory store",
			mutate: func(c *Config) { c.Store.Type = "memory" },
		},
		{
			name:    "http explain without endpoint",
			mutate:  func(c *Config) { c.Explain.Endpoint = "" },
			wantErr: true,
			errMsg:  "explain.endpoint required",
		},
		{
			name:   "template explain",
			mutate: func(c *Config) { c.Explain.Type = "template"; c.Explain.Endpoint = "" },
		},
		{
			name:    "negative delay",
			mutate:  func(c *Config) { c.Backfill.Delay = -time.Second },
			wantErr: true,
			errMsg:  "backfill.delay",
		},
		{
			name:    "negative risk",
			mutate:  func(c *Config) { c.Risk.MaxRiskGBP = -1 },
			wantErr: true,
			errMsg:  "risk limits",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Log.Level = "loud" },
			wantErr: true,
			errMsg:  "log.level",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: true,
			errMsg:  "log.format",
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
			cfg.Store.Type = "sqlite"
			cfg.OANDA.AccountID = "101-004-1234567-001"
			cfg.Backfill.Delay = 2 * time.Second
			path := filepath.Join(tmpDir, "test"+tt.ext)

			require.NoError(t, cfg.SaveToFile(path))
			_, err := os.Stat(path)
			require.NoError(t, err)

			loaded, err := LoadFromFile(path)
			require.NoError(t, err)
			assert.Equal(t, cfg.Store, loaded.Store)
			assert.Equal(t, cfg.OANDA.AccountID, loaded.OANDA.AccountID)
			assert.Equal(t, cfg.Backfill.Delay, loaded.Backfill.Delay)
			assert.Equal(t, cfg.Risk, loaded.Risk)
		})
	}
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  type: memory\nbackfill:\n  delay: 250ms\n"), 0o600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Type)
	assert.Equal(t, 250*time.Millisecond, cfg.Backfill.Delay)
	assert.Equal(t, "practice", cfg.OANDA.Env)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadInvalidFile(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path.yaml")
	assert.Error(t, err)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PAPERTRADE_OANDA_TOKEN", "secret")
	t.Setenv("PAPERTRADE_OANDA_ACCOUNT_ID", "101-1")
	t.Setenv("PAPERTRADE_STORE_TYPE", "memory")
	t.Setenv("PAPERTRADE_BACKFILL_DELAY", "3s")
	t.Setenv("PAPERTRADE_REDIS_DB", "2")
	t.Setenv("PAPERTRADE_OANDA_RATE_LIMIT", "not-a-number")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.OANDA.Token)
	assert.Equal(t, "101-1", cfg.OANDA.AccountID)
	assert.Equal(t, "memory", cfg.Store.Type)
	assert.Equal(t, 3*time.Second, cfg.Backfill.Delay)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, 20.0, cfg.OANDA.RateLimit)
}

func TestLoadRejectsInvalidOverride(t *testing.T) {
	t.Setenv("PAPERTRADE_OANDA_ENV", "live")
	_, err := Load("")
	assert.ErrorContains(t, err, "live trading is not allowed")
}
