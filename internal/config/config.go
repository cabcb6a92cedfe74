// Package config loads service configuration from YAML, .env and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"edgeai-booster/internal/solana"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Defaults.
const (
	DefaultRPCURL         = "https://api.devnet.solana.com"
	DefaultProgramID      = "JG8fS89RdsLUGUst41UTj8kFFEjBxQKV6yzPaBmAEwL"
	DefaultHTTPAddr       = ":8000"
	DefaultRequestTimeout = 10 * time.Second
	DefaultRPCRateLimit   = 10.0
	DefaultConfigPath     = "./config.yaml"
)

// Config holds all application configuration.
type Config struct {
	BotToken       string        `yaml:"bot_token"`
	WebhookURL     string        `yaml:"webhook_url"`
	RPCURL         string        `yaml:"rpc_url"`
	WSURL          string        `yaml:"ws_url"`
	ProgramID      string        `yaml:"program_id"`
	FeeWallet      string        `yaml:"fee_wallet"`
	HTTPAddr       string        `yaml:"http_addr"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RPCRateLimit   float64       `yaml:"rpc_rate_limit"` // requests per second, 0 = unlimited

	Log       LogConfig       `yaml:"log"`
	Storage   StorageConfig   `yaml:"storage"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	Poller    PollerConfig    `yaml:"poller"`
	Market    MarketConfig    `yaml:"market"`
	PriceFeed PriceFeedConfig `yaml:"price_feed"`
}

// LogConfig controls the root logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console | json
}

// StorageConfig selects the subscriber registry and delivery log backends.
type StorageConfig struct {
	Driver        string `yaml:"driver"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	SQLitePath    string `yaml:"sqlite_path"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"` // empty keeps the delivery log in memory
}

// BroadcastConfig controls the periodic signal push.
type BroadcastConfig struct {
	Disabled     bool          `yaml:"disabled"`
	Interval     time.Duration `yaml:"interval"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MarketLimit  int           `yaml:"market_limit"`
	TopN         int           `yaml:"top_n"`
	Fanout       int           `yaml:"fanout"`
	SendRate     float64       `yaml:"send_rate"`
}

// PollerConfig controls post-subscribe confirmation.
type PollerConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Interval    time.Duration `yaml:"interval"`
}

// MarketConfig points at the prediction market provider.
type MarketConfig struct {
	BaseURL  string `yaml:"base_url"`
	Category string `yaml:"category"`
}

// PriceFeedConfig points at the spot price provider.
type PriceFeedConfig struct {
	BaseURL string `yaml:"base_url"`
}

// Load reads .env (if present), the YAML file at path (if non-empty),
// then applies defaults and environment overrides. It does not validate.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config yaml: %w", err)
		}
	}

	applyDefaults(cfg)
	if err := applyEnvironmentOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GetConfigPath returns EDGEAI_CONFIG, or DefaultConfigPath when that file
// exists, or "".
func GetConfigPath() string {
	if path := os.Getenv("EDGEAI_CONFIG"); path != "" {
		return path
	}
	if _, err := os.Stat(DefaultConfigPath); err == nil {
		return DefaultConfigPath
	}
	return ""
}

func applyDefaults(cfg *Config) {
	if cfg.RPCURL == "" {
		cfg.RPCURL = DefaultRPCURL
	}
	if cfg.ProgramID == "" {
		cfg.ProgramID = DefaultProgramID
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = DefaultHTTPAddr
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.RPCRateLimit == 0 {
		cfg.RPCRateLimit = DefaultRPCRateLimit
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DriverMemory
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "./edgeai.db"
	}
	if cfg.Broadcast.Interval == 0 {
		cfg.Broadcast.Interval = 10 * time.Minute
	}
	if cfg.Broadcast.InitialDelay == 0 {
		cfg.Broadcast.InitialDelay = time.Minute
	}
	if cfg.Broadcast.MarketLimit == 0 {
		cfg.Broadcast.MarketLimit = 50
	}
	if cfg.Broadcast.TopN == 0 {
		cfg.Broadcast.TopN = 3
	}
	if cfg.Broadcast.Fanout == 0 {
		cfg.Broadcast.Fanout = 8
	}
	if cfg.Broadcast.SendRate == 0 {
		cfg.Broadcast.SendRate = 20
	}
	if cfg.Poller.MaxAttempts == 0 {
		cfg.Poller.MaxAttempts = 10
	}
	if cfg.Poller.Interval == 0 {
		cfg.Poller.Interval = 30 * time.Second
	}
	if cfg.Market.Category == "" {
		cfg.Market.Category = "crypto"
	}
}

func applyEnvironmentOverrides(cfg *Config) error {
	overrides := []struct {
		env string
		dst *string
	}{
		{"BOT_TOKEN", &cfg.BotToken},
		{"RPC_URL", &cfg.RPCURL},
		{"WS_URL", &cfg.WSURL},
		{"PROGRAM_ID", &cfg.ProgramID},
		{"FEE_WALLET", &cfg.FeeWallet},
		{"WEBHOOK_URL", &cfg.WebhookURL},
		{"POSTGRES_DSN", &cfg.Storage.PostgresDSN},
		{"SQLITE_PATH", &cfg.Storage.SQLitePath},
		{"CLICKHOUSE_DSN", &cfg.Storage.ClickhouseDSN},
		{"STORAGE_DRIVER", &cfg.Storage.Driver},
		{"LOG_LEVEL", &cfg.Log.Level},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(os.Getenv(o.env)); v != "" {
			*o.dst = v
		}
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		if _, err := strconv.ParseUint(port, 10, 16); err != nil {
			return fmt.Errorf("invalid PORT %q: %w", port, err)
		}
		cfg.HTTPAddr = ":" + port
	}
	return nil
}

// Validate reports the first invalid or missing setting.
func (c *Config) Validate() error {
	if _, err := solana.ParsePublicKey(c.ProgramID); err != nil {
		return fmt.Errorf("program_id: %w", err)
	}
	if c.FeeWallet != "" {
		if _, err := solana.ParsePublicKey(c.FeeWallet); err != nil {
			return fmt.Errorf("fee_wallet: %w", err)
		}
	}
	if c.RPCURL == "" {
		return errors.New("rpc_url is required")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request_timeout must be positive")
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return errors.New("storage.sqlite_path is required for sqlite driver")
		}
	case DriverPostgres:
		if c.Storage.PostgresDSN == "" {
			return errors.New("storage.postgres_dsn is required for postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}

	if c.Poller.MaxAttempts < 1 {
		return errors.New("poller.max_attempts must be at least 1")
	}
	if c.Broadcast.TopN < 1 || c.Broadcast.Fanout < 1 || c.Broadcast.SendRate <= 0 {
		return errors.New("broadcast top_n, fanout and send_rate must be positive")
	}
	return nil
}

// HasBot reports whether a chat transport is configured.
func (c *Config) HasBot() bool {
	return c.BotToken != ""
}
