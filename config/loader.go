package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "PAPERTRADE_"

// Load builds the runtime configuration: Default, then the file at path if
// one is given and exists, then .env, then PAPERTRADE_* variables. The result
// is validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		fromFile, err := readFile(path)
		switch {
		case err == nil:
			cfg = fromFile
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, err
		}
	}

	// a missing .env is fine
	_ = godotenv.Load()
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.OANDA.Env, "OANDA_ENV")
	setStr(&cfg.OANDA.Token, "OANDA_TOKEN")
	setStr(&cfg.OANDA.AccountID, "OANDA_ACCOUNT_ID")
	setFloat(&cfg.OANDA.RateLimit, "OANDA_RATE_LIMIT")

	setStr(&cfg.Store.Type, "STORE_TYPE")
	setStr(&cfg.Store.ProjectID, "FIREBASE_PROJECT_ID")
	setStr(&cfg.Store.CredentialsFile, "FIREBASE_CREDENTIALS_FILE")
	setStr(&cfg.Store.SQLitePath, "SQLITE_PATH")

	setStr(&cfg.Explain.Type, "EXPLAIN_TYPE")
	setStr(&cfg.Explain.Endpoint, "EXPLAIN_ENDPOINT")
	setStr(&cfg.Explain.Model, "EXPLAIN_MODEL")
	setStr(&cfg.Explain.APIKey, "EXPLAIN_API_KEY")

	setDuration(&cfg.Backfill.Delay, "BACKFILL_DELAY")
	setStr(&cfg.Backfill.MetricsFile, "BACKFILL_METRICS_FILE")

	setStr(&cfg.Redis.Addr, "REDIS_ADDR")
	setStr(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")

	setStr(&cfg.Log.Level, "LOG_LEVEL")
	setStr(&cfg.Log.Format, "LOG_FORMAT")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
