package arbitrage

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/liuxing5/Polymarket-trading-bot-15min-BTC/internal/domain"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestEstimateFill(t *testing.T) {
	ladder := []domain.PriceLevel{
		{Price: 0.40, Size: 5},
		{Price: 0.42, Size: 10},
	}

	est, err := EstimateFill(ladder, 8)
	if err != nil {
		t.Fatalf("EstimateFill: %v", err)
	}
	// (5*0.40 + 3*0.42) / 8 = 0.40750
	if !almostEqual(est.VWAP, 0.40750) {
		t.Errorf("VWAP = %v, want 0.40750", est.VWAP)
	}
	if est.Worst != 0.42 {
		t.Errorf("Worst = %v, want 0.42", est.Worst)
	}
}

func TestEstimateFillInsufficientDepth(t *testing.T) {
	ladder := []domain.PriceLevel{
		{Price: 0.40, Size: 5},
		{Price: 0.42, Size: 10},
	}

	_, err := EstimateFill(ladder, 20)
	if !errors.Is(err, domain.ErrInsufficientDepth) {
		t.Fatalf("err = %v, want ErrInsufficientDepth", err)
	}
}

func TestEstimateFillMonotonicVWAP(t *testing.T) {
	ladder := []domain.PriceLevel{
		{Price: 0.10, Size: 3},
		{Price: 0.25, Size: 4},
		{Price: 0.30, Size: 6},
		{Price: 0.55, Size: 9},
	}

	prev := 0.0
	for size := 1.0; size <= 22; size++ {
		est, err := EstimateFill(ladder, size)
		if err != nil {
			t.Fatalf("size %v: %v", size, err)
		}
		if est.VWAP < prev {
			t.Fatalf("VWAP decreased: size %v gave %v after %v", size, est.VWAP, prev)
		}
		prev = est.VWAP
	}
}

func TestCheckAcceptsProfitablePair(t *testing.T) {
	e := NewEngine(EngineConfig{OrderSize: 1, MaxPairCost: 1.00, SafetyBuffer: 0.004}, discard())

	yes := []domain.PriceLevel{{Price: 0.46, Size: 10}}
	no := []domain.PriceLevel{{Price: 0.50, Size: 10}}

	opp := e.Check(yes, no)
	if opp == nil {
		t.Fatal("expected an opportunity")
	}
	if !almostEqual(opp.RawCost, 0.96) {
		t.Errorf("RawCost = %v, want 0.96", opp.RawCost)
	}
	if !almostEqual(opp.BufferedCost, 0.96384) {
		t.Errorf("BufferedCost = %v, want 0.96384", opp.BufferedCost)
	}
	if !almostEqual(opp.ExpectedProfit, 2-0.96384) {
		t.Errorf("ExpectedProfit = %v, want %v", opp.ExpectedProfit, 2-0.96384)
	}
}

func TestCheckRejectsAboveCeiling(t *testing.T) {
	// Same ladders, tighter ceiling: positive expected profit is irrelevant.
	e := NewEngine(EngineConfig{OrderSize: 1, MaxPairCost: 0.95, SafetyBuffer: 0.004}, discard())

	yes := []domain.PriceLevel{{Price: 0.46, Size: 10}}
	no := []domain.PriceLevel{{Price: 0.50, Size: 10}}

	if opp := e.Check(yes, no); opp != nil {
		t.Fatalf("expected rejection, got %+v", opp)
	}
}

func TestCheckRejectsThinSide(t *testing.T) {
	e := NewEngine(EngineConfig{OrderSize: 5, MaxPairCost: 1.00}, discard())

	yes := []domain.PriceLevel{{Price: 0.46, Size: 10}}
	no := []domain.PriceLevel{{Price: 0.50, Size: 2}} // cannot fill 5

	if opp := e.Check(yes, no); opp != nil {
		t.Fatalf("expected nil on insufficient depth, got %+v", opp)
	}
}
