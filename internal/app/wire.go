package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/liuxing5/Polymarket-trading-bot-15min-BTC/internal/blob/s3"
	"github.com/liuxing5/Polymarket-trading-bot-15min-BTC/internal/cache/redis"
	"github.com/liuxing5/Polymarket-trading-bot-15min-BTC/internal/config"
	"github.com/liuxing5/Polymarket-trading-bot-15min-BTC/internal/crypto"
	"github.com/liuxing5/Polymarket-trading-bot-15min-BTC/internal/domain"
	"github.com/liuxing5/Polymarket-trading-bot-15min-BTC/internal/platform/polymarket"
	"github.com/liuxing5/Polymarket-trading-bot-15min-BTC/internal/risk"
	"github.com/liuxing5/Polymarket-trading-bot-15min-BTC/internal/stats"
	"github.com/liuxing5/Polymarket-trading-bot-15min-BTC/internal/store/postgres"
)

// Dependencies bundles the long-lived components the run loop needs. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Venue   *polymarket.Client
	RiskMgr *risk.Manager
	Tracker *stats.Tracker

	// Optional, nil when not configured.
	TradeStore domain.TradeStore
	Publisher  domain.EventPublisher
	Archiver   *s3blob.Archiver
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Wallet (optional; the funding address is derived for display) ---
	if cfg.Wallet.PrivateKey != "" || cfg.Wallet.EncryptedKeyPath != "" {
		wallet, err := crypto.LoadWallet(crypto.KeyConfig{
			RawPrivateKey:    cfg.Wallet.PrivateKey,
			EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
			KeyPassword:      cfg.Wallet.KeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: wallet: %w", err)
		}
		logger.Info("wallet loaded", slog.String("address", wallet.Address.Hex()))
	}

	// --- Venue client ---
	deps.Venue = polymarket.NewClient(cfg.Venue.APIBase, polymarket.Credentials{
		APIKey:        cfg.Venue.APIKey,
		APISecret:     cfg.Venue.APISecret,
		APIPassphrase: cfg.Venue.APIPassphrase,
	}, logger)

	// --- Risk and stats ---
	deps.RiskMgr = risk.NewManager(riskLimits(cfg.Risk), logger)

	logFile := ""
	if cfg.Stats.Enabled {
		logFile = cfg.Stats.LogFile
	}
	deps.Tracker = stats.NewTracker(logFile, logger)

	// --- PostgreSQL (optional trade history) ---
	if cfg.Postgres.DSN != "" {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		deps.TradeStore = postgres.NewPairTradeStore(pgClient.Pool())
	}

	// --- Redis (optional event publishing) ---
	if cfg.Redis.Addr != "" {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Publisher = redis.NewPublisher(redisClient)
	}

	// --- S3 (optional trade-log archive) ---
	if cfg.S3.Bucket != "" && cfg.Stats.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			deps.Tracker.LogFile(),
			logger,
		)
	}

	return deps, cleanup, nil
}

// riskLimits converts the zero-means-unset config fields to the risk
// manager's pointer-based optional limits.
func riskLimits(cfg config.RiskConfig) risk.Limits {
	limits := risk.Limits{
		MinBalanceRequired:    cfg.MinBalanceRequired,
		MaxBalanceUtilization: cfg.MaxBalanceUtilization,
	}
	if cfg.MaxDailyLoss > 0 {
		v := cfg.MaxDailyLoss
		limits.MaxDailyLoss = &v
	}
	if cfg.MaxTradesPerDay > 0 {
		v := cfg.MaxTradesPerDay
		limits.MaxTradesPerDay = &v
	}
	if cfg.MaxPositionSize > 0 {
		v := cfg.MaxPositionSize
		limits.MaxPositionSize = &v
	}
	return limits
}
