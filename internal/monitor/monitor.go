// Package monitor runs the detection loop over one binary market: it keeps
// the yes/no ladders current (from the websocket feed or by REST polling),
// asks the engine for an opportunity, hands hits to the executor, and sweeps
// redeemable positions on the side. Errors inside an iteration are logged and
// never stop the loop.
package monitor

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/liuxing5/Polymarket-trading-bot-15min-BTC/internal/arbitrage"
	"github.com/liuxing5/Polymarket-trading-bot-15min-BTC/internal/book"
	"github.com/liuxing5/Polymarket-trading-bot-15min-BTC/internal/domain"
	"github.com/liuxing5/Polymarket-trading-bot-15min-BTC/internal/risk"
	"github.com/liuxing5/Polymarket-trading-bot-15min-BTC/internal/stats"
)

// Trader consumes detected opportunities. Implemented by the executor; tests
// provide fakes.
type Trader interface {
	Execute(ctx context.Context, opp *domain.Opportunity)
	// CountFailure feeds loop-level failures (e.g. REST fetch errors) into
	// the same throttle that execution failures use.
	CountFailure()
}

// BookSource fetches the current ladders for one token over REST. Used by the
// polling mode only.
type BookSource interface {
	GetOrderBook(ctx context.Context, tokenID string) (asks, bids []domain.PriceLevel, err error)
}

// Redeemer converts resolved positions back into settlement currency.
type Redeemer interface {
	HasRedeemable(ctx context.Context) (bool, error)
	RedeemAll(ctx context.Context) error
}

// Config holds the loop parameters.
type Config struct {
	Market domain.Market

	// PollInterval spaces REST polling iterations.
	PollInterval time.Duration
	// SweepInterval spaces redemption checks in both modes.
	SweepInterval time.Duration
	// StatsInterval spaces the periodic daily-stats log line.
	StatsInterval time.Duration
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 5 * time.Minute
	}
	if c.StatsInterval <= 0 {
		c.StatsInterval = time.Minute
	}
}

// Monitor owns one market's detection loop.
type Monitor struct {
	cfg      Config
	engine   *arbitrage.Engine
	books    *book.Store
	trader   Trader
	source   BookSource
	redeemer Redeemer
	riskMgr  *risk.Manager
	tracker  *stats.Tracker

	publisher domain.EventPublisher // optional

	logger *slog.Logger

	lastSweep time.Time
	lastStats time.Time
	now       func() time.Time
}

// New creates a Monitor. source may be nil when only the streaming mode is
// used; redeemer may be nil to disable redemption sweeps.
func New(cfg Config, engine *arbitrage.Engine, books *book.Store, trader Trader,
	source BookSource, redeemer Redeemer, riskMgr *risk.Manager, tracker *stats.Tracker,
	logger *slog.Logger) *Monitor {
	cfg.applyDefaults()
	return &Monitor{
		cfg:      cfg,
		engine:   engine,
		books:    books,
		trader:   trader,
		source:   source,
		redeemer: redeemer,
		riskMgr:  riskMgr,
		tracker:  tracker,
		logger:   logger.With(slog.String("component", "monitor")),
		now:      time.Now,
	}
}

// SetPublisher enables best-effort book update publishing in streaming mode.
func (m *Monitor) SetPublisher(pub domain.EventPublisher) { m.publisher = pub }

// SetClock overrides the time source for tests.
func (m *Monitor) SetClock(now func() time.Time) { m.now = now }

// RunStreaming consumes book updates until ctx is cancelled or the channel is
// closed. Every update triggers a detection pass; the ladders themselves are
// maintained by the feed writing into the shared book store.
func (m *Monitor) RunStreaming(ctx context.Context, updates <-chan domain.BookUpdate) error {
	m.logger.Info("monitoring in streaming mode",
		slog.String("market", m.cfg.Market.Slug),
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if m.publisher != nil {
				if err := m.publisher.PublishBookUpdate(ctx, update); err != nil {
					m.logger.Warn("book update publish failed", slog.String("error", err.Error()))
				}
			}
			m.iterate(ctx)
		}
	}
}

// RunPolling refreshes both ladders over REST on every tick until ctx is
// cancelled. Fetch errors count one failure and skip the iteration.
func (m *Monitor) RunPolling(ctx context.Context) error {
	m.logger.Info("monitoring in polling mode",
		slog.String("market", m.cfg.Market.Slug),
		slog.Duration("interval", m.cfg.PollInterval),
	)
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := m.refreshBooks(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.logger.Warn("orderbook fetch failed", slog.String("error", err.Error()))
			m.trader.CountFailure()
		} else {
			m.iterate(ctx)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// refreshBooks pulls both tokens' ladders and stores them.
func (m *Monitor) refreshBooks(ctx context.Context) error {
	for _, tokenID := range []string{m.cfg.Market.YesTokenID, m.cfg.Market.NoTokenID} {
		asks, bids, err := m.source.GetOrderBook(ctx, tokenID)
		if err != nil {
			return err
		}
		m.books.ApplySnapshot(domain.BookSideAsk, tokenID, asks)
		m.books.ApplySnapshot(domain.BookSideBid, tokenID, bids)
	}
	return nil
}

// iterate runs one detection pass plus the periodic side work.
func (m *Monitor) iterate(ctx context.Context) {
	yesAsks, _ := m.books.Read(m.cfg.Market.YesTokenID)
	noAsks, _ := m.books.Read(m.cfg.Market.NoTokenID)
	sortAsks(yesAsks)
	sortAsks(noAsks)

	if opp := m.engine.Check(yesAsks, noAsks); opp != nil {
		m.trader.Execute(ctx, opp)
	}

	m.maybeSweep(ctx)
	m.maybeLogStats()
}

// maybeSweep redeems resolved positions at most once per SweepInterval.
// Everything here is best-effort.
func (m *Monitor) maybeSweep(ctx context.Context) {
	if m.redeemer == nil {
		return
	}
	now := m.now()
	if now.Sub(m.lastSweep) < m.cfg.SweepInterval {
		return
	}
	m.lastSweep = now

	redeemable, err := m.redeemer.HasRedeemable(ctx)
	if err != nil {
		m.logger.Warn("redeemable check failed", slog.String("error", err.Error()))
		return
	}
	if !redeemable {
		return
	}
	if err := m.redeemer.RedeemAll(ctx); err != nil {
		m.logger.Warn("redemption failed", slog.String("error", err.Error()))
		return
	}
	m.logger.Info("redeemed resolved positions")
}

func (m *Monitor) maybeLogStats() {
	now := m.now()
	if now.Sub(m.lastStats) < m.cfg.StatsInterval {
		return
	}
	m.lastStats = now

	daily := m.riskMgr.DailyStats()
	m.logger.Info("session stats",
		slog.String("totals", m.tracker.Stats().String()),
		slog.Int("trades_today", daily.TradesCount),
		slog.Float64("pnl_today", daily.NetPnL),
	)
}

// sortAsks orders a ladder best-price-first. The book store keeps levels in
// feed order, which carries no guarantee.
func sortAsks(asks []domain.PriceLevel) {
	sort.Slice(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })
}
