package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/papertrade/risk"
)

// Config is the complete papertrade configuration.
type Config struct {
	OANDA    OANDAConfig    `json:"oanda" yaml:"oanda"`
	Store    StoreConfig    `json:"store" yaml:"store"`
	Explain  ExplainConfig  `json:"explain" yaml:"explain"`
	Backfill BackfillConfig `json:"backfill" yaml:"backfill"`
	Risk     risk.Policy    `json:"risk" yaml:"risk"`
	Redis    RedisConfig    `json:"redis" yaml:"redis"`
	Log      LogConfig      `json:"log" yaml:"log"`
}

// OANDAConfig selects the practice account orders go to.
type OANDAConfig struct {
	Env       string        `json:"env" yaml:"env"` // practice|demo
	Token     string        `json:"token,omitempty" yaml:"token,omitempty"`
	AccountID string        `json:"account_id" yaml:"account_id"`
	RateLimit float64       `json:"rate_limit" yaml:"rate_limit"` // requests per second
	Timeout   time.Duration `json:"timeout" yaml:"timeout"`
}

// StoreConfig selects the document store.
type StoreConfig struct {
	Type            string `json:"type" yaml:"type"` // firestore|sqlite|memory
	ProjectID       string `json:"project_id,omitempty" yaml:"project_id,omitempty"`
	CredentialsFile string `json:"credentials_file,omitempty" yaml:"credentials_file,omitempty"`
	SQLitePath      string `json:"sqlite_path,omitempty" yaml:"sqlite_path,omitempty"`
}

// ExplainConfig selects the text generator.
type ExplainConfig struct {
	Type     string        `json:"type" yaml:"type"` // http|template
	Endpoint string        `json:"endpoint" yaml:"endpoint"`
	Model    string        `json:"model" yaml:"model"`
	APIKey   string        `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Timeout  time.Duration `json:"timeout" yaml:"timeout"`
}

type BackfillConfig struct {
	Delay       time.Duration `json:"delay" yaml:"delay"`
	MetricsFile string        `json:"metrics_file,omitempty" yaml:"metrics_file,omitempty"`
	LockTTL     time.Duration `json:"lock_ttl" yaml:"lock_ttl"`
}

// RedisConfig is optional. With no Addr the backfill runs unlocked.
type RedisConfig struct {
	Addr     string `json:"addr,omitempty" yaml:"addr,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	DB       int    `json:"db" yaml:"db"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // console|json
}

// LoadFromFile loads configuration from a file (YAML, or JSON as a fallback)
// on top of Default and validates it.
func LoadFromFile(path string) (*Config, error) {
	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func readFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = Default()
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}
	return cfg, nil
}

// SaveToFile writes YAML for .yaml/.yml paths and indented JSON otherwise.
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

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks structure only. Credentials are checked by the component
// that needs them, so commands that never talk to OANDA run without a token.
func (c *Config) Validate() error {
	switch strings.ToLower(c.OANDA.Env) {
	case "", "practice", "demo":
	case "live":
		return fmt.Errorf("oanda.env: live trading is not allowed")
	default:
		return fmt.Errorf("oanda.env must be 'practice' or 'demo', got %q", c.OANDA.Env)
	}
	if c.OANDA.RateLimit < 0 {
		return fmt.Errorf("oanda.rate_limit must not be negative")
	}

	switch c.Store.Type {
	case "firestore", "memory":
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path required for sqlite type")
		}
	default:
		return fmt.Errorf("store.type must be 'firestore', 'sqlite' or 'memory'")
	}

	switch c.Explain.Type {
	case "http":
		if c.Explain.Endpoint == "" {
			return fmt.Errorf("explain.endpoint required for http type")
		}
	case "template":
	default:
		return fmt.Errorf("explain.type must be 'http' or 'template'")
	}

	if c.Backfill.Delay < 0 {
		return fmt.Errorf("backfill.delay must not be negative")
	}
	if c.Risk.MaxRiskGBP < 0 || c.Risk.MinRR < 0 || c.Risk.MaxUnits < 0 {
		return fmt.Errorf("risk limits must not be negative")
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be 'console' or 'json'")
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		OANDA: OANDAConfig{
			Env:       "practice",
			RateLimit: 20,
			Timeout:   10 * time.Second,
		},
		Store: StoreConfig{
			Type:       "firestore",
			SQLitePath: "./papertrade.sqlite",
		},
		Explain: ExplainConfig{
			Type:     "http",
			Endpoint: "https://api.openai.com/v1",
			Model:    "gpt-4o-mini",
			Timeout:  30 * time.Second,
		},
		Backfill: BackfillConfig{
			Delay:   1200 * time.Millisecond,
			LockTTL: 30 * time.Minute,
		},
		Risk: risk.DefaultPolicy(),
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
