package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/liuxing5/Polymarket-trading-bot-15min-BTC/internal/arbitrage"
	"github.com/liuxing5/Polymarket-trading-bot-15min-BTC/internal/book"
	"github.com/liuxing5/Polymarket-trading-bot-15min-BTC/internal/domain"
	"github.com/liuxing5/Polymarket-trading-bot-15min-BTC/internal/risk"
	"github.com/liuxing5/Polymarket-trading-bot-15min-BTC/internal/stats"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const (
	yesToken = "token-yes"
	noToken  = "token-no"
)

var testMarket = domain.Market{
	Slug:       "btc-updown-15m",
	YesTokenID: yesToken,
	NoTokenID:  noToken,
}

type fakeTrader struct {
	mu       sync.Mutex
	executed []*domain.Opportunity
	failures int
}

func (f *fakeTrader) Execute(ctx context.Context, opp *domain.Opportunity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executed = append(f.executed, opp)
}

func (f *fakeTrader) CountFailure() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures++
}

func (f *fakeTrader) executions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.executed)
}

func (f *fakeTrader) failureCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failures
}

type fakeSource struct {
	asks map[string][]domain.PriceLevel
	err  error
}

func (f *fakeSource) GetOrderBook(ctx context.Context, tokenID string) (asks, bids []domain.PriceLevel, err error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.asks[tokenID], nil, nil
}

type fakeRedeemer struct {
	mu         sync.Mutex
	redeemable bool
	checkErr   error
	redeemed   int
}

func (f *fakeRedeemer) HasRedeemable(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.redeemable, f.checkErr
}

func (f *fakeRedeemer) RedeemAll(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.redeemed++
	f.redeemable = false
	return nil
}

func (f *fakeRedeemer) redeemCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.redeemed
}

// profitableAsks is deep enough for size 10 on both sides at a pair cost of
// 0.96, inside the default buffer and a 1.0 ceiling.
func profitableAsks() map[string][]domain.PriceLevel {
	return map[string][]domain.PriceLevel{
		yesToken: {{Price: 0.46, Size: 50}},
		noToken:  {{Price: 0.50, Size: 50}},
	}
}

func newTestMonitor(t *testing.T, trader Trader, source BookSource, redeemer Redeemer) (*Monitor, *book.Store) {
	t.Helper()
	engine := arbitrage.NewEngine(arbitrage.EngineConfig{OrderSize: 10, MaxPairCost: 1.0}, testLogger())
	books := book.NewStore([]string{yesToken, noToken})
	rm := risk.NewManager(risk.Limits{MaxBalanceUtilization: 1.0}, testLogger())
	tr := stats.NewTracker("", testLogger())
	cfg := Config{Market: testMarket, PollInterval: time.Millisecond}
	return New(cfg, engine, books, trader, source, redeemer, rm, tr, testLogger()), books
}

func TestPollingDetectsAndExecutes(t *testing.T) {
	trader := &fakeTrader{}
	source := &fakeSource{asks: profitableAsks()}
	m, _ := newTestMonitor(t, trader, source, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.RunPolling(ctx) }()

	waitFor(t, func() bool { return trader.executions() > 0 })
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("RunPolling returned %v", err)
	}
	opp := trader.executed[0]
	if opp.RawCost != 0.96 {
		t.Errorf("raw cost = %v, want 0.96", opp.RawCost)
	}
}

func TestPollingFetchErrorCountsFailure(t *testing.T) {
	trader := &fakeTrader{}
	source := &fakeSource{err: errors.New("gateway timeout")}
	m, _ := newTestMonitor(t, trader, source, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.RunPolling(ctx) }()

	waitFor(t, func() bool { return trader.failureCount() > 0 })
	cancel()
	<-done

	if trader.executions() != 0 {
		t.Error("fetch errors must not reach the trader")
	}
}

func TestPollingStopsPromptlyOnCancel(t *testing.T) {
	trader := &fakeTrader{}
	source := &fakeSource{asks: profitableAsks()}
	m, _ := newTestMonitor(t, trader, source, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.RunPolling(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("RunPolling returned %v", err)
	}
}

func TestStreamingExecutesOnUpdate(t *testing.T) {
	trader := &fakeTrader{}
	m, books := newTestMonitor(t, trader, nil, nil)

	books.ApplySnapshot(domain.BookSideAsk, yesToken, []domain.PriceLevel{{Price: 0.46, Size: 50}})
	books.ApplySnapshot(domain.BookSideAsk, noToken, []domain.PriceLevel{{Price: 0.50, Size: 50}})

	updates := make(chan domain.BookUpdate, 1)
	updates <- domain.BookUpdate{AssetID: yesToken, Timestamp: time.Now()}
	close(updates)

	if err := m.RunStreaming(context.Background(), updates); err != nil {
		t.Fatalf("RunStreaming: %v", err)
	}
	if trader.executions() != 1 {
		t.Errorf("executions = %d, want 1", trader.executions())
	}
}

func TestStreamingNoOpportunityNoExecution(t *testing.T) {
	trader := &fakeTrader{}
	m, books := newTestMonitor(t, trader, nil, nil)

	// Pair cost 1.02: never profitable.
	books.ApplySnapshot(domain.BookSideAsk, yesToken, []domain.PriceLevel{{Price: 0.52, Size: 50}})
	books.ApplySnapshot(domain.BookSideAsk, noToken, []domain.PriceLevel{{Price: 0.50, Size: 50}})

	updates := make(chan domain.BookUpdate, 1)
	updates <- domain.BookUpdate{AssetID: noToken, Timestamp: time.Now()}
	close(updates)

	if err := m.RunStreaming(context.Background(), updates); err != nil {
		t.Fatalf("RunStreaming: %v", err)
	}
	if trader.executions() != 0 {
		t.Errorf("executions = %d, want 0", trader.executions())
	}
}

func TestStreamingStopsOnCancel(t *testing.T) {
	trader := &fakeTrader{}
	m, _ := newTestMonitor(t, trader, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	updates := make(chan domain.BookUpdate)
	if err := m.RunStreaming(ctx, updates); !errors.Is(err, context.Canceled) {
		t.Errorf("RunStreaming returned %v", err)
	}
}

func TestSweepRedeemsOncePerInterval(t *testing.T) {
	trader := &fakeTrader{}
	redeemer := &fakeRedeemer{redeemable: true}
	m, books := newTestMonitor(t, trader, nil, redeemer)
	m.cfg.SweepInterval = time.Hour

	books.ApplySnapshot(domain.BookSideAsk, yesToken, []domain.PriceLevel{{Price: 0.46, Size: 50}})
	books.ApplySnapshot(domain.BookSideAsk, noToken, []domain.PriceLevel{{Price: 0.50, Size: 50}})

	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return now })

	updates := make(chan domain.BookUpdate, 3)
	for i := 0; i < 3; i++ {
		updates <- domain.BookUpdate{AssetID: yesToken, Timestamp: now}
	}
	close(updates)
	redeemer.redeemable = true

	if err := m.RunStreaming(context.Background(), updates); err != nil {
		t.Fatalf("RunStreaming: %v", err)
	}
	if redeemer.redeemCount() != 1 {
		t.Errorf("redeem count = %d, want 1 (interval gate)", redeemer.redeemCount())
	}
}

func TestSweepErrorIsNonFatal(t *testing.T) {
	trader := &fakeTrader{}
	redeemer := &fakeRedeemer{checkErr: errors.New("positions endpoint down")}
	m, books := newTestMonitor(t, trader, nil, redeemer)

	books.ApplySnapshot(domain.BookSideAsk, yesToken, []domain.PriceLevel{{Price: 0.46, Size: 50}})
	books.ApplySnapshot(domain.BookSideAsk, noToken, []domain.PriceLevel{{Price: 0.50, Size: 50}})

	updates := make(chan domain.BookUpdate, 1)
	updates <- domain.BookUpdate{AssetID: yesToken, Timestamp: time.Now()}
	close(updates)

	if err := m.RunStreaming(context.Background(), updates); err != nil {
		t.Fatalf("sweep error must not stop the loop: %v", err)
	}
	if trader.executions() != 1 {
		t.Error("detection must still run when the sweep fails")
	}
}

func TestUnsortedLadderStillDetects(t *testing.T) {
	trader := &fakeTrader{}
	m, books := newTestMonitor(t, trader, nil, nil)

	// Worse price first: the monitor must sort before estimating, otherwise
	// the worst-fill price comes out as 0.40 and the cost is wrong.
	books.ApplySnapshot(domain.BookSideAsk, yesToken, []domain.PriceLevel{
		{Price: 0.46, Size: 50}, {Price: 0.40, Size: 5},
	})
	books.ApplySnapshot(domain.BookSideAsk, noToken, []domain.PriceLevel{{Price: 0.50, Size: 50}})

	updates := make(chan domain.BookUpdate, 1)
	updates <- domain.BookUpdate{AssetID: yesToken, Timestamp: time.Now()}
	close(updates)

	if err := m.RunStreaming(context.Background(), updates); err != nil {
		t.Fatalf("RunStreaming: %v", err)
	}
	if trader.executions() != 1 {
		t.Fatal("expected one execution")
	}
	// Size 10 consumes all of 0.40x5 plus 5 of 0.46: worst price 0.46.
	if got := trader.executed[0].PriceYes; got != 0.46 {
		t.Errorf("yes worst price = %v, want 0.46", got)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
