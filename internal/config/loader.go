package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ARBBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ARBBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "ARBBOT_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "ARBBOT_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "ARBBOT_WALLET_KEY_PASSWORD")

	// ── Venue ──
	setStr(&cfg.Venue.APIBase, "ARBBOT_VENUE_API_BASE")
	setStr(&cfg.Venue.WsURL, "ARBBOT_VENUE_WS_URL")
	setStr(&cfg.Venue.APIKey, "ARBBOT_VENUE_API_KEY")
	setStr(&cfg.Venue.APISecret, "ARBBOT_VENUE_API_SECRET")
	setStr(&cfg.Venue.APIPassphrase, "ARBBOT_VENUE_API_PASSPHRASE")

	// ── Market ──
	setStr(&cfg.Market.Keyword, "ARBBOT_MARKET_KEYWORD")
	setDuration(&cfg.Market.RetryInterval, "ARBBOT_MARKET_RETRY_INTERVAL")
	setDuration(&cfg.Market.MaxWait, "ARBBOT_MARKET_MAX_WAIT")

	// ── Trading ──
	setFloat64(&cfg.Trading.OrderSize, "ARBBOT_TRADING_ORDER_SIZE")
	setFloat64(&cfg.Trading.TargetPairCost, "ARBBOT_TRADING_TARGET_PAIR_COST")
	setFloat64(&cfg.Trading.SafetyBuffer, "ARBBOT_TRADING_SAFETY_BUFFER")
	setDuration(&cfg.Trading.Cooldown, "ARBBOT_TRADING_COOLDOWN")
	setDuration(&cfg.Trading.PollInterval, "ARBBOT_TRADING_POLL_INTERVAL")
	setBool(&cfg.Trading.UseStreaming, "ARBBOT_TRADING_USE_STREAMING")
	setBool(&cfg.Trading.DryRun, "ARBBOT_TRADING_DRY_RUN")
	setFloat64(&cfg.Trading.SimStartBalance, "ARBBOT_TRADING_SIM_START_BALANCE")

	// ── Risk ──
	setFloat64(&cfg.Risk.MaxDailyLoss, "ARBBOT_RISK_MAX_DAILY_LOSS")
	setInt(&cfg.Risk.MaxTradesPerDay, "ARBBOT_RISK_MAX_TRADES_PER_DAY")
	setFloat64(&cfg.Risk.MaxPositionSize, "ARBBOT_RISK_MAX_POSITION_SIZE")
	setFloat64(&cfg.Risk.MinBalanceRequired, "ARBBOT_RISK_MIN_BALANCE_REQUIRED")
	setFloat64(&cfg.Risk.MaxBalanceUtilization, "ARBBOT_RISK_MAX_BALANCE_UTILIZATION")

	// ── Stats ──
	setBool(&cfg.Stats.Enabled, "ARBBOT_STATS_ENABLED")
	setStr(&cfg.Stats.LogFile, "ARBBOT_STATS_LOG_FILE")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "ARBBOT_POSTGRES_DSN")
	setInt(&cfg.Postgres.PoolMaxConns, "ARBBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ARBBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ARBBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ARBBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ARBBOT_REDIS_POOL_SIZE")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "ARBBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ARBBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "ARBBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ARBBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ARBBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.ForcePathStyle, "ARBBOT_S3_FORCE_PATH_STYLE")
	setDuration(&cfg.S3.Interval, "ARBBOT_S3_INTERVAL")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "ARBBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
