// Package arbitrage implements the detection engine: worst-fill estimation
// over an ask ladder and the paired yes/no profitability decision.
package arbitrage

import (
	"errors"
	"log/slog"
	"time"

	"github.com/liuxing5/Polymarket-trading-bot-15min-BTC/internal/domain"
)

// defaultSafetyBuffer is the proportional cushion applied to the raw pair
// cost to absorb slippage and fees before the profitability comparison.
const defaultSafetyBuffer = 0.004

// EngineConfig holds the detection parameters.
type EngineConfig struct {
	// OrderSize is the target size for each leg.
	OrderSize float64
	// MaxPairCost is the maximum acceptable buffered pair cost, in (0, 1].
	// Each side pays out exactly 1 on resolution, so a pair cost below 1 is
	// the profitability condition.
	MaxPairCost float64
	// SafetyBuffer overrides the default proportional buffer when > 0.
	SafetyBuffer float64
}

// Engine computes fill estimates and detects yes/no pair opportunities.
// The gating cost is the sum of the two worst prices; VWAPs are carried on
// the opportunity for diagnostics only.
type Engine struct {
	cfg    EngineConfig
	logger *slog.Logger
}

// NewEngine creates an Engine with the given parameters.
func NewEngine(cfg EngineConfig, logger *slog.Logger) *Engine {
	if cfg.SafetyBuffer <= 0 {
		cfg.SafetyBuffer = defaultSafetyBuffer
	}
	return &Engine{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "arb_engine")),
	}
}

// EstimateFill walks the ask ladder in the order given, accumulating size and
// cost until the target size is reached. It returns the VWAP over the
// consumed levels and the price of the last level touched. When the ladder is
// exhausted first it returns domain.ErrInsufficientDepth; there is no partial
// estimate.
func EstimateFill(asks []domain.PriceLevel, targetSize float64) (domain.FillEstimate, error) {
	if targetSize <= 0 {
		return domain.FillEstimate{}, errors.New("arbitrage: target size must be > 0")
	}

	var filled, cost, worst float64
	for _, lvl := range asks {
		take := targetSize - filled
		if take > lvl.Size {
			take = lvl.Size
		}
		filled += take
		cost += take * lvl.Price
		worst = lvl.Price
		if filled >= targetSize {
			return domain.FillEstimate{VWAP: cost / targetSize, Worst: worst}, nil
		}
	}
	return domain.FillEstimate{}, domain.ErrInsufficientDepth
}

// Check estimates a full fill on each side's asks and decides whether a
// profitable pair exists. A nil result means no opportunity: either side
// lacking depth, or the buffered pair cost exceeding the configured ceiling.
func (e *Engine) Check(yesAsks, noAsks []domain.PriceLevel) *domain.Opportunity {
	size := e.cfg.OrderSize

	fillYes, err := EstimateFill(yesAsks, size)
	if err != nil {
		return nil
	}
	fillNo, err := EstimateFill(noAsks, size)
	if err != nil {
		return nil
	}

	rawCost := fillYes.Worst + fillNo.Worst
	bufferedCost := rawCost * (1 + e.cfg.SafetyBuffer)

	if bufferedCost > e.cfg.MaxPairCost {
		return nil
	}

	investment := bufferedCost * size
	opp := &domain.Opportunity{
		PriceYes:        fillYes.Worst,
		PriceNo:         fillNo.Worst,
		VWAPYes:         fillYes.VWAP,
		VWAPNo:          fillNo.VWAP,
		RawCost:         rawCost,
		BufferedCost:    bufferedCost,
		Size:            size,
		ExpectedProfit:  size*2 - investment,
		TotalInvestment: investment,
		ProfitPct:       (1 - bufferedCost) * 100,
		DetectedAt:      time.Now().UTC(),
	}

	e.logger.Debug("opportunity detected",
		slog.Float64("raw_cost", opp.RawCost),
		slog.Float64("buffered_cost", opp.BufferedCost),
		slog.Float64("expected_profit", opp.ExpectedProfit),
	)
	return opp
}
