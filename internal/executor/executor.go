// Package executor drives the paired-order execution protocol: cooldown and
// failure throttling, balance and risk gating, bulk submission with
// sequential fallback, fill polling to a terminal state, and best-effort
// unwind on partial fills. No error escapes an execution cycle; failures are
// counted and the monitor loop keeps running.
package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/liuxing5/Polymarket-trading-bot-15min-BTC/internal/domain"
	"github.com/liuxing5/Polymarket-trading-bot-15min-BTC/internal/risk"
	"github.com/liuxing5/Polymarket-trading-bot-15min-BTC/internal/stats"
)

// Venue is the trading surface the executor needs. Implemented by the
// polymarket client; tests provide fakes.
type Venue interface {
	GetBalance(ctx context.Context) (float64, error)
	// SubmitOrders places all legs (bulk with sequential fallback) and
	// returns the order IDs positionally; an empty ID means the venue
	// response carried none.
	SubmitOrders(ctx context.Context, reqs []domain.OrderRequest) ([]string, error)
	GetOrderState(ctx context.Context, orderID string) (domain.OrderState, error)
	CancelOrder(ctx context.Context, orderID string) error
}

// Config holds the execution parameters.
type Config struct {
	MarketSlug string
	YesTokenID string
	NoTokenID  string

	// Cooldown is the minimum spacing between execution attempts; a cycle
	// inside the window is skipped without counting a failure.
	Cooldown time.Duration

	// FailureThreshold consecutive failures trigger one CoolOff sleep, after
	// which the counter resets.
	FailureThreshold int
	CoolOff          time.Duration

	// BalanceOvershoot inflates the required balance to tolerate price and
	// fee drift (1.1 = need 10% headroom).
	BalanceOvershoot float64

	// PollInterval and PollTimeout bound the per-leg fill polling.
	PollInterval time.Duration
	PollTimeout  time.Duration

	DryRun          bool
	SimStartBalance float64
}

func (c *Config) applyDefaults() {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	if c.CoolOff <= 0 {
		c.CoolOff = 60 * time.Second
	}
	if c.BalanceOvershoot <= 0 {
		c.BalanceOvershoot = 1.1
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = 15 * time.Second
	}
}

// Executor consumes opportunities one at a time. It is not safe for
// concurrent use; the monitor loop serializes entry.
type Executor struct {
	cfg     Config
	venue   Venue
	riskMgr *risk.Manager
	tracker *stats.Tracker

	// Optional sinks; nil disables them.
	tradeStore domain.TradeStore
	publisher  domain.EventPublisher

	logger *slog.Logger

	failCount     int
	lastExecution time.Time
	cachedBalance *float64
	simBalance    float64
	positions     []domain.PairTrade

	now func() time.Time
}

// New creates an Executor.
func New(cfg Config, venue Venue, riskMgr *risk.Manager, tracker *stats.Tracker, logger *slog.Logger) *Executor {
	cfg.applyDefaults()
	return &Executor{
		cfg:        cfg,
		venue:      venue,
		riskMgr:    riskMgr,
		tracker:    tracker,
		logger:     logger.With(slog.String("component", "executor")),
		simBalance: cfg.SimStartBalance,
		now:        time.Now,
	}
}

// SetTradeStore enables persistence of executed pairs.
func (e *Executor) SetTradeStore(store domain.TradeStore) { e.tradeStore = store }

// SetPublisher enables trade event publishing.
func (e *Executor) SetPublisher(pub domain.EventPublisher) { e.publisher = pub }

// SetClock overrides the time source for tests.
func (e *Executor) SetClock(now func() time.Time) { e.now = now }

// FailCount returns the current consecutive-failure counter.
func (e *Executor) FailCount() int { return e.failCount }

// Positions returns a copy of the executed pair records.
func (e *Executor) Positions() []domain.PairTrade {
	out := make([]domain.PairTrade, len(e.positions))
	copy(out, e.positions)
	return out
}

// CountFailure increments the consecutive-failure counter. The monitor also
// counts empty detection cycles through this, matching the throttle's view
// of "nothing good happened".
func (e *Executor) CountFailure() { e.failCount++ }

// sleep waits for d or until ctx is cancelled.
func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// Execute runs one execution cycle for the opportunity. All failures are
// absorbed: logged, counted, and the method returns so the monitor loop can
// continue.
func (e *Executor) Execute(ctx context.Context, opp *domain.Opportunity) {
	// Too many consecutive failures: cool off once, then start fresh.
	if e.failCount >= e.cfg.FailureThreshold {
		e.logger.Warn("failure threshold reached, cooling off",
			slog.Int("failures", e.failCount),
			slog.Duration("cool_off", e.cfg.CoolOff),
		)
		sleep(ctx, e.cfg.CoolOff)
		e.failCount = 0
		if ctx.Err() != nil {
			return
		}
	}

	now := e.now()
	if e.cfg.Cooldown > 0 && now.Sub(e.lastExecution) < e.cfg.Cooldown {
		e.logger.Info("cooldown active", slog.Duration("cooldown", e.cfg.Cooldown))
		return
	}
	e.lastExecution = now

	if e.cfg.DryRun {
		e.executeDryRun(opp)
		return
	}

	bal, err := e.getBalance(ctx)
	if err != nil {
		e.logger.Error("balance fetch failed", slog.String("error", err.Error()))
		e.failCount++
		return
	}

	need := opp.TotalInvestment
	if bal < need*e.cfg.BalanceOvershoot {
		e.logger.Error("balance too low",
			slog.Float64("need", need),
			slog.Float64("have", bal),
		)
		e.failCount++
		return
	}

	if ok, reason := e.riskMgr.CanTrade(need, bal); !ok {
		e.logger.Warn("trade blocked by risk manager", slog.String("reason", reason))
		e.failCount++
		return
	}

	e.submitAndSettle(ctx, opp)
}

// executeDryRun simulates the trade against the local balance.
func (e *Executor) executeDryRun(opp *domain.Opportunity) {
	if e.simBalance < opp.TotalInvestment {
		e.logger.Error("insufficient simulated balance",
			slog.Float64("need", opp.TotalInvestment),
			slog.Float64("have", e.simBalance),
		)
		e.failCount++
		return
	}
	e.simBalance -= opp.TotalInvestment

	trade := e.buildTrade(opp, nil)
	e.positions = append(e.positions, trade)
	e.tracker.RecordTrade(trade)
	e.failCount = 0

	e.logger.Info("dry-run trade simulated",
		slog.Float64("expected_profit", opp.ExpectedProfit),
		slog.Float64("sim_balance", e.simBalance),
	)
}

// submitAndSettle places both legs, polls them to terminal state, and
// settles: bookkeeping on success, best-effort cancel of both on any
// under-fill.
func (e *Executor) submitAndSettle(ctx context.Context, opp *domain.Opportunity) {
	reqs := []domain.OrderRequest{
		{Side: domain.OrderSideBuy, TokenID: e.cfg.YesTokenID, Price: opp.PriceYes, Size: opp.Size},
		{Side: domain.OrderSideBuy, TokenID: e.cfg.NoTokenID, Price: opp.PriceNo, Size: opp.Size},
	}

	ids, err := e.venue.SubmitOrders(ctx, reqs)
	if err != nil {
		e.logger.Error("order submission failed", slog.String("error", err.Error()))
		e.failCount++
		return
	}
	if len(ids) < 2 || ids[0] == "" || ids[1] == "" {
		// No partial submission is silently accepted.
		e.logger.Error("order id missing from response",
			slog.String("error", domain.ErrMissingOrderID.Error()),
		)
		e.failCount++
		return
	}
	yesID, noID := ids[0], ids[1]

	yesState := e.waitForTerminal(ctx, yesID, opp.Size)
	noState := e.waitForTerminal(ctx, noID, opp.Size)

	if !yesState.FilledFor(opp.Size) || !noState.FilledFor(opp.Size) {
		e.logger.Error("partial fill, attempting unwind",
			slog.String("yes_status", string(yesState.Status)),
			slog.Float64("yes_filled", yesState.FilledSize),
			slog.String("no_status", string(noState.Status)),
			slog.Float64("no_filled", noState.FilledSize),
		)
		e.cancelBestEffort(ctx, yesID, noID)
		e.failCount++
		return
	}

	e.settleSuccess(ctx, opp, []string{yesID, noID})
}

// waitForTerminal polls one order until it fills the requested size, reaches
// a terminal non-fill status, or the timeout elapses. Timeout yields a
// synthetic terminal record with filled size 0. Poll errors are logged and
// retried until the deadline.
func (e *Executor) waitForTerminal(ctx context.Context, orderID string, requested float64) domain.OrderState {
	deadline := e.now().Add(e.cfg.PollTimeout)

	for e.now().Before(deadline) {
		if ctx.Err() != nil {
			break
		}
		state, err := e.venue.GetOrderState(ctx, orderID)
		if err != nil {
			e.logger.Warn("order status poll failed",
				slog.String("order_id", orderID),
				slog.String("error", err.Error()),
			)
		} else if state.FilledFor(requested) || state.Status.Terminal() {
			return state
		}
		sleep(ctx, e.cfg.PollInterval)
	}

	return domain.OrderState{OrderID: orderID, Status: domain.OrderStatusTimeout, FilledSize: 0}
}

// cancelBestEffort cancels both order ids; errors are logged and swallowed.
// Leaving an unhedged leg open is accepted residual risk the operator
// monitors externally.
func (e *Executor) cancelBestEffort(ctx context.Context, orderIDs ...string) {
	for _, id := range orderIDs {
		if err := e.venue.CancelOrder(ctx, id); err != nil {
			e.logger.Warn("cancel failed",
				slog.String("order_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
}

// settleSuccess books a fully-filled pair.
func (e *Executor) settleSuccess(ctx context.Context, opp *domain.Opportunity, orderIDs []string) {
	e.failCount = 0
	e.cachedBalance = nil // force re-fetch on the next balance check

	trade := e.buildTrade(opp, orderIDs)
	e.positions = append(e.positions, trade)

	e.riskMgr.RecordTradeResult(opp.ExpectedProfit, opp.TotalInvestment)
	e.tracker.RecordTrade(trade)

	if e.tradeStore != nil {
		if err := e.tradeStore.Insert(ctx, trade); err != nil {
			e.logger.Warn("trade persistence failed", slog.String("error", err.Error()))
		}
	}
	if e.publisher != nil {
		if err := e.publisher.PublishTrade(ctx, trade); err != nil {
			e.logger.Warn("trade publish failed", slog.String("error", err.Error()))
		}
	}

	e.logger.Info("arbitrage pair filled",
		slog.Float64("expected_profit", opp.ExpectedProfit),
		slog.Float64("pair_cost", opp.BufferedCost),
		slog.String("yes_order", orderIDs[0]),
		slog.String("no_order", orderIDs[1]),
	)
}

func (e *Executor) buildTrade(opp *domain.Opportunity, orderIDs []string) domain.PairTrade {
	return domain.PairTrade{
		ID:             uuid.New().String(),
		Timestamp:      e.now().UTC(),
		MarketSlug:     e.cfg.MarketSlug,
		PriceYes:       opp.PriceYes,
		PriceNo:        opp.PriceNo,
		TotalCost:      opp.BufferedCost,
		Size:           opp.Size,
		ExpectedProfit: opp.ExpectedProfit,
		OrderIDs:       orderIDs,
	}
}

// AttachResolution records a market resolution against an executed pair and
// applies the realized-vs-expected PnL correction to the risk state.
func (e *Executor) AttachResolution(ctx context.Context, tradeID, resolution string, pnlAdjustment float64) {
	for i := range e.positions {
		if e.positions[i].ID == tradeID {
			e.positions[i].Resolution = resolution
			break
		}
	}
	e.riskMgr.AdjustActualPnL(pnlAdjustment)

	if e.tradeStore != nil {
		if err := e.tradeStore.AttachResolution(ctx, tradeID, resolution); err != nil {
			e.logger.Warn("resolution persistence failed", slog.String("error", err.Error()))
		}
	}
}

// getBalance returns the cached balance or fetches a fresh one.
func (e *Executor) getBalance(ctx context.Context) (float64, error) {
	if e.cachedBalance != nil {
		return *e.cachedBalance, nil
	}
	bal, err := e.venue.GetBalance(ctx)
	if err != nil {
		return 0, err
	}
	e.cachedBalance = &bal
	return bal, nil
}
