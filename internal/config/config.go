// Package config defines the top-level configuration for the arbitrage bot
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ARBBOT_* environment variables.
type Config struct {
	Wallet   WalletConfig   `toml:"wallet"`
	Venue    VenueConfig    `toml:"venue"`
	Market   MarketConfig   `toml:"market"`
	Trading  TradingConfig  `toml:"trading"`
	Risk     RiskConfig     `toml:"risk"`
	Stats    StatsConfig    `toml:"stats"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	LogLevel string         `toml:"log_level"`
}

// WalletConfig holds Ethereum wallet credentials. Either a raw private key or
// an encrypted key file may be supplied; the key is only used to derive the
// funding address for operator display.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// VenueConfig holds the exchange API endpoints and credentials.
type VenueConfig struct {
	APIBase       string `toml:"api_base"`
	WsURL         string `toml:"ws_url"`
	APIKey        string `toml:"api_key"`
	APISecret     string `toml:"api_secret"`
	APIPassphrase string `toml:"api_passphrase"`
}

// MarketConfig controls market discovery.
type MarketConfig struct {
	// Keyword is matched case-insensitively against market questions.
	Keyword string `toml:"keyword"`
	// RetryInterval spaces discovery attempts while no market matches.
	RetryInterval duration `toml:"retry_interval"`
	// MaxWait bounds discovery; zero or negative waits forever.
	MaxWait duration `toml:"max_wait"`
}

// TradingConfig holds detection and execution parameters.
type TradingConfig struct {
	OrderSize      float64 `toml:"order_size"`
	TargetPairCost float64 `toml:"target_pair_cost"`
	// SafetyBuffer overrides the built-in 0.4% cushion when > 0.
	SafetyBuffer float64 `toml:"safety_buffer"`

	Cooldown     duration `toml:"cooldown"`
	PollInterval duration `toml:"poll_interval"`
	// UseStreaming selects the websocket feed; false falls back to REST
	// polling of both orderbooks.
	UseStreaming bool `toml:"use_streaming"`

	DryRun          bool    `toml:"dry_run"`
	SimStartBalance float64 `toml:"sim_start_balance"`
}

// RiskConfig holds the daily risk limits. Zero-valued optional limits are
// treated as unset.
type RiskConfig struct {
	MaxDailyLoss          float64 `toml:"max_daily_loss"`
	MaxTradesPerDay       int     `toml:"max_trades_per_day"`
	MaxPositionSize       float64 `toml:"max_position_size"`
	MinBalanceRequired    float64 `toml:"min_balance_required"`
	MaxBalanceUtilization float64 `toml:"max_balance_utilization"`
}

// StatsConfig controls the CSV trade log.
type StatsConfig struct {
	Enabled bool   `toml:"enabled"`
	LogFile string `toml:"log_file"`
}

// PostgresConfig holds the optional trade-history database. An empty DSN
// disables persistence.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds the optional event-publishing connection. An empty Addr
// disables publishing.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	PoolSize int    `toml:"pool_size"`
}

// S3Config holds the optional trade-log archive target. An empty Bucket
// disables archiving.
type S3Config struct {
	Endpoint       string   `toml:"endpoint"`
	Region         string   `toml:"region"`
	Bucket         string   `toml:"bucket"`
	AccessKey      string   `toml:"access_key"`
	SecretKey      string   `toml:"secret_key"`
	ForcePathStyle bool     `toml:"force_path_style"`
	Interval       duration `toml:"interval"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Venue: VenueConfig{
			APIBase: "https://clob.polymarket.com",
			WsURL:   "wss://ws-subscriptions-clob.polymarket.com/ws/market",
		},
		Market: MarketConfig{
			Keyword:       "bitcoin up or down",
			RetryInterval: duration{5 * time.Second},
			MaxWait:       duration{0},
		},
		Trading: TradingConfig{
			OrderSize:       10,
			TargetPairCost:  0.99,
			Cooldown:        duration{30 * time.Second},
			PollInterval:    duration{time.Second},
			UseStreaming:    true,
			DryRun:          true,
			SimStartBalance: 1000,
		},
		Risk: RiskConfig{
			MaxDailyLoss:          50,
			MaxTradesPerDay:       20,
			MinBalanceRequired:    10,
			MaxBalanceUtilization: 0.5,
		},
		Stats: StatsConfig{
			Enabled: true,
			LogFile: "trades.csv",
		},
		Postgres: PostgresConfig{
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			PoolSize: 20,
		},
		S3: S3Config{
			Region:   "us-east-1",
			Interval: duration{time.Hour},
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Venue — real-money trading needs the full credential triple.
	if c.Venue.APIBase == "" {
		errs = append(errs, "venue: api_base must not be empty")
	}
	if c.Trading.UseStreaming && c.Venue.WsURL == "" {
		errs = append(errs, "venue: ws_url is required when trading.use_streaming is set")
	}
	if !c.Trading.DryRun {
		if c.Venue.APIKey == "" || c.Venue.APISecret == "" || c.Venue.APIPassphrase == "" {
			errs = append(errs, "venue: api_key, api_secret, and api_passphrase are required unless trading.dry_run is set")
		}
	}

	// Wallet — optional, but an encrypted key file needs its password.
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
	}

	// Market
	if strings.TrimSpace(c.Market.Keyword) == "" {
		errs = append(errs, "market: keyword must not be empty")
	}
	if c.Market.RetryInterval.Duration <= 0 {
		errs = append(errs, "market: retry_interval must be > 0")
	}

	// Trading
	if c.Trading.OrderSize <= 0 {
		errs = append(errs, "trading: order_size must be > 0")
	}
	if c.Trading.TargetPairCost <= 0 || c.Trading.TargetPairCost > 1 {
		errs = append(errs, fmt.Sprintf("trading: target_pair_cost must be in (0, 1], got %v", c.Trading.TargetPairCost))
	}
	if c.Trading.SafetyBuffer < 0 {
		errs = append(errs, "trading: safety_buffer must be >= 0")
	}
	if c.Trading.Cooldown.Duration < 0 {
		errs = append(errs, "trading: cooldown must be >= 0")
	}
	if !c.Trading.UseStreaming && c.Trading.PollInterval.Duration <= 0 {
		errs = append(errs, "trading: poll_interval must be > 0 in polling mode")
	}
	if c.Trading.DryRun && c.Trading.SimStartBalance <= 0 {
		errs = append(errs, "trading: sim_start_balance must be > 0 in dry-run mode")
	}

	// Risk
	if c.Risk.MaxDailyLoss < 0 {
		errs = append(errs, "risk: max_daily_loss must be >= 0")
	}
	if c.Risk.MaxTradesPerDay < 0 {
		errs = append(errs, "risk: max_trades_per_day must be >= 0")
	}
	if c.Risk.MaxPositionSize < 0 {
		errs = append(errs, "risk: max_position_size must be >= 0")
	}
	if c.Risk.MinBalanceRequired < 0 {
		errs = append(errs, "risk: min_balance_required must be >= 0")
	}
	if c.Risk.MaxBalanceUtilization <= 0 || c.Risk.MaxBalanceUtilization > 1 {
		errs = append(errs, fmt.Sprintf("risk: max_balance_utilization must be in (0, 1], got %v", c.Risk.MaxBalanceUtilization))
	}

	// Stats
	if c.Stats.Enabled && c.Stats.LogFile == "" {
		errs = append(errs, "stats: log_file must not be empty when enabled")
	}

	// Postgres — only checked when persistence is on.
	if c.Postgres.DSN != "" {
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be in [0, pool_max_conns]")
		}
	}

	// Redis
	if c.Redis.Addr != "" && c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Bucket != "" {
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when a bucket is set")
		}
		if c.S3.Interval.Duration <= 0 {
			errs = append(errs, "s3: interval must be > 0 when a bucket is set")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
