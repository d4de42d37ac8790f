// Package app wires the bot together and owns its lifecycle: market
// discovery, the orderbook source (websocket feed or REST polling), the
// detection loop, and the optional archive job.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/liuxing5/Polymarket-trading-bot-15min-BTC/internal/arbitrage"
	"github.com/liuxing5/Polymarket-trading-bot-15min-BTC/internal/book"
	"github.com/liuxing5/Polymarket-trading-bot-15min-BTC/internal/config"
	"github.com/liuxing5/Polymarket-trading-bot-15min-BTC/internal/executor"
	"github.com/liuxing5/Polymarket-trading-bot-15min-BTC/internal/feed"
	"github.com/liuxing5/Polymarket-trading-bot-15min-BTC/internal/monitor"
)

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, discovers the
// target market, starts the feed and detection goroutines, and blocks until
// the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting bot",
		slog.Bool("dry_run", a.cfg.Trading.DryRun),
		slog.Bool("streaming", a.cfg.Trading.UseStreaming),
		slog.String("keyword", a.cfg.Market.Keyword),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	// Market discovery blocks until a matching market appears (or MaxWait
	// elapses when configured).
	market, err := deps.Venue.WaitForMarket(ctx,
		a.cfg.Market.Keyword,
		a.cfg.Market.RetryInterval.Duration,
		a.cfg.Market.MaxWait.Duration,
	)
	if err != nil {
		return fmt.Errorf("app: market discovery: %w", err)
	}
	a.logger.InfoContext(ctx, "market selected",
		slog.String("slug", market.Slug),
		slog.String("question", market.Question),
	)

	exec := executor.New(executor.Config{
		MarketSlug:      market.Slug,
		YesTokenID:      market.YesTokenID,
		NoTokenID:       market.NoTokenID,
		Cooldown:        a.cfg.Trading.Cooldown.Duration,
		DryRun:          a.cfg.Trading.DryRun,
		SimStartBalance: a.cfg.Trading.SimStartBalance,
	}, deps.Venue, deps.RiskMgr, deps.Tracker, a.logger)
	if deps.TradeStore != nil {
		exec.SetTradeStore(deps.TradeStore)
	}
	if deps.Publisher != nil {
		exec.SetPublisher(deps.Publisher)
	}

	engine := arbitrage.NewEngine(arbitrage.EngineConfig{
		OrderSize:    a.cfg.Trading.OrderSize,
		MaxPairCost:  a.cfg.Trading.TargetPairCost,
		SafetyBuffer: a.cfg.Trading.SafetyBuffer,
	}, a.logger)

	books := book.NewStore([]string{market.YesTokenID, market.NoTokenID})

	// Redemption needs real positions; dry runs have none.
	var redeemer monitor.Redeemer
	if !a.cfg.Trading.DryRun {
		redeemer = deps.Venue
	}

	mon := monitor.New(monitor.Config{
		Market:       market,
		PollInterval: a.cfg.Trading.PollInterval.Duration,
	}, engine, books, exec, deps.Venue, redeemer, deps.RiskMgr, deps.Tracker, a.logger)
	if deps.Publisher != nil {
		mon.SetPublisher(deps.Publisher)
	}

	g, ctx := errgroup.WithContext(ctx)

	if a.cfg.Trading.UseStreaming {
		wsFeed := feed.NewClient(a.cfg.Venue.WsURL,
			[]string{market.YesTokenID, market.NoTokenID}, books, a.logger)
		g.Go(func() error {
			return wsFeed.Run(ctx)
		})
		g.Go(func() error {
			return mon.RunStreaming(ctx, wsFeed.Updates())
		})
	} else {
		g.Go(func() error {
			return mon.RunPolling(ctx)
		})
	}

	if deps.Archiver != nil {
		archiver := deps.Archiver
		g.Go(func() error {
			return archiver.Run(ctx, a.cfg.S3.Interval.Duration)
		})
	}

	return g.Wait()
}

// Close tears down all resources in reverse registration order. It is safe
// to call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
