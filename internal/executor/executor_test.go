package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/liuxing5/Polymarket-trading-bot-15min-BTC/internal/domain"
	"github.com/liuxing5/Polymarket-trading-bot-15min-BTC/internal/risk"
	"github.com/liuxing5/Polymarket-trading-bot-15min-BTC/internal/stats"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeVenue scripts the venue behavior per order id.
type fakeVenue struct {
	balance    float64
	balanceErr error

	submitIDs []string
	submitErr error
	submitted [][]domain.OrderRequest

	states map[string]domain.OrderState // terminal state per order id
	polls  map[string]int

	canceled []string
	cancelErr error
}

func (f *fakeVenue) GetBalance(ctx context.Context) (float64, error) {
	return f.balance, f.balanceErr
}

func (f *fakeVenue) SubmitOrders(ctx context.Context, reqs []domain.OrderRequest) ([]string, error) {
	f.submitted = append(f.submitted, reqs)
	return f.submitIDs, f.submitErr
}

func (f *fakeVenue) GetOrderState(ctx context.Context, orderID string) (domain.OrderState, error) {
	if f.polls == nil {
		f.polls = make(map[string]int)
	}
	f.polls[orderID]++
	state, ok := f.states[orderID]
	if !ok {
		// Never terminal: poller will time out.
		return domain.OrderState{OrderID: orderID, Status: domain.OrderStatusPending}, nil
	}
	return state, nil
}

func (f *fakeVenue) CancelOrder(ctx context.Context, orderID string) error {
	f.canceled = append(f.canceled, orderID)
	return f.cancelErr
}

func testOpportunity() *domain.Opportunity {
	return &domain.Opportunity{
		PriceYes:        0.46,
		PriceNo:         0.50,
		RawCost:         0.96,
		BufferedCost:    0.96384,
		Size:            10,
		ExpectedProfit:  2*10 - 0.96384*10,
		TotalInvestment: 0.96384 * 10,
	}
}

func newTestExecutor(venue Venue, cfg Config) (*Executor, *risk.Manager) {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 100 // keep cool-off out of the way unless tested
	}
	cfg.PollInterval = time.Millisecond
	cfg.PollTimeout = 20 * time.Millisecond
	cfg.CoolOff = time.Millisecond
	rm := risk.NewManager(risk.Limits{MaxBalanceUtilization: 1.0}, testLogger())
	tr := stats.NewTracker("", testLogger())
	return New(cfg, venue, rm, tr, testLogger()), rm
}

func TestExecuteSuccessRecordsTrade(t *testing.T) {
	venue := &fakeVenue{
		balance:   100,
		submitIDs: []string{"yes-1", "no-1"},
		states: map[string]domain.OrderState{
			"yes-1": {OrderID: "yes-1", FilledSize: 10},
			"no-1":  {OrderID: "no-1", FilledSize: 10},
		},
	}
	e, rm := newTestExecutor(venue, Config{YesTokenID: "ty", NoTokenID: "tn", MarketSlug: "btc"})

	e.Execute(context.Background(), testOpportunity())

	if e.FailCount() != 0 {
		t.Errorf("fail count = %d, want 0", e.FailCount())
	}
	positions := e.Positions()
	if len(positions) != 1 {
		t.Fatalf("positions = %d, want 1", len(positions))
	}
	if len(positions[0].OrderIDs) != 2 {
		t.Errorf("order ids = %v", positions[0].OrderIDs)
	}
	if stats := rm.DailyStats(); stats.TradesCount != 1 || stats.NetPnL <= 0 {
		t.Errorf("risk state = %+v", stats)
	}
	if len(venue.submitted) != 1 || len(venue.submitted[0]) != 2 {
		t.Errorf("submissions = %+v", venue.submitted)
	}
	if venue.submitted[0][0].Side != domain.OrderSideBuy || venue.submitted[0][1].Side != domain.OrderSideBuy {
		t.Error("both legs must be buys")
	}
}

func TestExecutePartialFillUnwinds(t *testing.T) {
	venue := &fakeVenue{
		balance:   100,
		submitIDs: []string{"yes-1", "no-1"},
		states: map[string]domain.OrderState{
			"yes-1": {OrderID: "yes-1", FilledSize: 10},
			// no-1 never fills: poller times out with a synthetic record.
		},
	}
	e, rm := newTestExecutor(venue, Config{})

	e.Execute(context.Background(), testOpportunity())

	if len(venue.canceled) != 2 {
		t.Fatalf("canceled = %v, want both ids", venue.canceled)
	}
	if e.FailCount() != 1 {
		t.Errorf("fail count = %d, want 1", e.FailCount())
	}
	if len(e.Positions()) != 0 {
		t.Error("partial fill must not record a position")
	}
	if stats := rm.DailyStats(); stats.TradesCount != 0 || stats.NetPnL != 0 {
		t.Errorf("risk state mutated on failure: %+v", stats)
	}
}

func TestExecuteCancelErrorsSwallowed(t *testing.T) {
	venue := &fakeVenue{
		balance:   100,
		submitIDs: []string{"a", "b"},
		cancelErr: errors.New("cancel unavailable"),
	}
	e, _ := newTestExecutor(venue, Config{})

	e.Execute(context.Background(), testOpportunity()) // must not panic or propagate
	if e.FailCount() != 1 {
		t.Errorf("fail count = %d, want 1", e.FailCount())
	}
}

func TestExecuteMissingOrderIDAborts(t *testing.T) {
	venue := &fakeVenue{balance: 100, submitIDs: []string{"yes-1", ""}}
	e, _ := newTestExecutor(venue, Config{})

	e.Execute(context.Background(), testOpportunity())

	if e.FailCount() != 1 {
		t.Errorf("fail count = %d, want 1", e.FailCount())
	}
	if venue.polls != nil {
		t.Error("polling must not start when an order id is missing")
	}
}

func TestExecuteInsufficientBalance(t *testing.T) {
	venue := &fakeVenue{balance: 10} // need 9.6384 * 1.1
	e, _ := newTestExecutor(venue, Config{})

	e.Execute(context.Background(), testOpportunity())

	if e.FailCount() != 1 {
		t.Errorf("fail count = %d, want 1", e.FailCount())
	}
	if len(venue.submitted) != 0 {
		t.Error("no orders may be submitted on balance failure")
	}
}

func TestExecuteRiskRejection(t *testing.T) {
	venue := &fakeVenue{balance: 100, submitIDs: []string{"a", "b"}}
	cfg := Config{}
	cfg.FailureThreshold = 100
	cfg.PollInterval = time.Millisecond
	cfg.PollTimeout = 10 * time.Millisecond
	rm := risk.NewManager(risk.Limits{MaxBalanceUtilization: 0.01}, testLogger())
	e := New(cfg, venue, rm, stats.NewTracker("", testLogger()), testLogger())

	e.Execute(context.Background(), testOpportunity())

	if e.FailCount() != 1 {
		t.Errorf("fail count = %d, want 1", e.FailCount())
	}
	if len(venue.submitted) != 0 {
		t.Error("no orders may be submitted on risk rejection")
	}
}

func TestExecuteCooldownSkipsWithoutFailure(t *testing.T) {
	venue := &fakeVenue{
		balance:   100,
		submitIDs: []string{"a", "b"},
		states: map[string]domain.OrderState{
			"a": {OrderID: "a", FilledSize: 10},
			"b": {OrderID: "b", FilledSize: 10},
		},
	}
	e, _ := newTestExecutor(venue, Config{Cooldown: time.Hour})

	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	e.SetClock(func() time.Time { return now })

	e.Execute(context.Background(), testOpportunity())
	if len(e.Positions()) != 1 {
		t.Fatal("first cycle should execute")
	}

	// Second cycle within the cooldown window: skipped, not a failure.
	now = now.Add(time.Minute)
	e.Execute(context.Background(), testOpportunity())
	if len(e.Positions()) != 1 {
		t.Error("cooldown cycle must not execute")
	}
	if e.FailCount() != 0 {
		t.Errorf("cooldown skip counted as failure: %d", e.FailCount())
	}
}

func TestFailureThresholdCoolOffResetsCounter(t *testing.T) {
	venue := &fakeVenue{balance: 0} // every cycle fails the balance check
	e, _ := newTestExecutor(venue, Config{FailureThreshold: 3})

	for i := 0; i < 3; i++ {
		e.Execute(context.Background(), testOpportunity())
	}
	if e.FailCount() != 3 {
		t.Fatalf("fail count = %d, want 3", e.FailCount())
	}

	// Next cycle trips the cool-off (1ms in tests) and resets, then fails once more.
	e.Execute(context.Background(), testOpportunity())
	if e.FailCount() != 1 {
		t.Errorf("fail count after cool-off = %d, want 1", e.FailCount())
	}
}

func TestDryRunDebitsSimulatedBalance(t *testing.T) {
	venue := &fakeVenue{} // must never be touched
	e, _ := newTestExecutor(venue, Config{DryRun: true, SimStartBalance: 100})

	e.Execute(context.Background(), testOpportunity())

	if len(venue.submitted) != 0 {
		t.Error("dry run must not submit orders")
	}
	if len(e.Positions()) != 1 {
		t.Error("dry run should record the position")
	}
	if e.simBalance >= 100 {
		t.Errorf("sim balance not debited: %v", e.simBalance)
	}

	// Exhaust the simulated balance: later cycles fail and count.
	for i := 0; i < 12; i++ {
		e.Execute(context.Background(), testOpportunity())
	}
	if e.simBalance >= testOpportunity().TotalInvestment {
		t.Errorf("sim balance not exhausted: %v", e.simBalance)
	}
	if e.FailCount() == 0 {
		t.Error("insufficient sim balance should count failures")
	}
}

func TestBalanceCacheInvalidatedOnSuccess(t *testing.T) {
	venue := &fakeVenue{
		balance:   100,
		submitIDs: []string{"a", "b"},
		states: map[string]domain.OrderState{
			"a": {OrderID: "a", FilledSize: 10},
			"b": {OrderID: "b", FilledSize: 10},
		},
	}
	e, _ := newTestExecutor(venue, Config{})

	e.Execute(context.Background(), testOpportunity())
	if e.cachedBalance != nil {
		t.Error("balance cache must be invalidated after a successful trade")
	}
}

func TestAttachResolution(t *testing.T) {
	venue := &fakeVenue{
		balance:   100,
		submitIDs: []string{"a", "b"},
		states: map[string]domain.OrderState{
			"a": {OrderID: "a", FilledSize: 10},
			"b": {OrderID: "b", FilledSize: 10},
		},
	}
	e, rm := newTestExecutor(venue, Config{})
	e.Execute(context.Background(), testOpportunity())

	id := e.Positions()[0].ID
	before := rm.DailyStats().NetPnL
	e.AttachResolution(context.Background(), id, "yes", -1.5)

	if got := e.Positions()[0].Resolution; got != "yes" {
		t.Errorf("resolution = %q", got)
	}
	if after := rm.DailyStats().NetPnL; after != before-1.5 {
		t.Errorf("pnl adjustment not applied: %v -> %v", before, after)
	}
}
