// Package risk implements per-day trade gating: balance floor, utilization
// cap, trade count, position size, and a daily loss stop. State rolls over
// automatically at UTC midnight.
package risk

import (
	"fmt"
	"log/slog"
	"math"
	"time"
)

// Limits is the read-only risk configuration. A nil pointer field means the
// corresponding limit is unset and imposes no constraint.
type Limits struct {
	MaxDailyLoss    *float64 // block once running net PnL < -|MaxDailyLoss|
	MaxTradesPerDay *int
	MaxPositionSize *float64 // per-trade notional cap

	MinBalanceRequired    float64
	MaxBalanceUtilization float64 // 0.5 = never spend more than half the wallet per trade
}

// DailyState is the mutable running total for one UTC calendar day.
type DailyState struct {
	Date        string // "2006-01-02", UTC
	TradesCount int
	NetPnL      float64 // expected on record, adjusted toward realized later
	Invested    float64
}

// Manager gates prospective trades against Limits and tracks DailyState.
// It is not safe for concurrent use; the monitor loop is its only caller.
type Manager struct {
	limits Limits
	state  DailyState
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates a Manager with a fresh state for today (UTC).
func NewManager(limits Limits, logger *slog.Logger) *Manager {
	m := &Manager{
		limits: limits,
		logger: logger.With(slog.String("component", "risk_manager")),
		now:    time.Now,
	}
	m.state = DailyState{Date: m.today()}
	return m
}

// SetClock overrides the time source. Tests use this to force rollovers.
func (m *Manager) SetClock(now func() time.Time) { m.now = now }

func (m *Manager) today() string {
	return m.now().UTC().Format("2006-01-02")
}

// rolloverIfNeeded replaces the state with a fresh zeroed record when the UTC
// date has changed. Calling it repeatedly within the same day is a no-op.
func (m *Manager) rolloverIfNeeded() {
	today := m.today()
	if m.state.Date != today {
		m.logger.Info("risk state rolled over",
			slog.String("from", m.state.Date),
			slog.String("to", today),
		)
		m.state = DailyState{Date: today}
	}
}

// CanTrade reports whether a trade of the given notional size is allowed for
// the current balance. The first failing check wins; the returned reason is
// empty when the trade is allowed.
func (m *Manager) CanTrade(tradeSize, currentBalance float64) (bool, string) {
	m.rolloverIfNeeded()

	if currentBalance < m.limits.MinBalanceRequired {
		return false, fmt.Sprintf("balance too low: %.2f < %.2f",
			currentBalance, m.limits.MinBalanceRequired)
	}

	maxSpend := currentBalance * m.limits.MaxBalanceUtilization
	if tradeSize > maxSpend {
		return false, fmt.Sprintf("trade cost %.2f > utilization limit %.2f",
			tradeSize, maxSpend)
	}

	if m.limits.MaxTradesPerDay != nil && m.state.TradesCount >= *m.limits.MaxTradesPerDay {
		return false, fmt.Sprintf("hit daily trade cap %d/%d",
			m.state.TradesCount, *m.limits.MaxTradesPerDay)
	}

	if m.limits.MaxPositionSize != nil && tradeSize > *m.limits.MaxPositionSize {
		return false, fmt.Sprintf("trade too large: %.2f > %.2f",
			tradeSize, *m.limits.MaxPositionSize)
	}

	if m.limits.MaxDailyLoss != nil && m.state.NetPnL < -math.Abs(*m.limits.MaxDailyLoss) {
		return false, fmt.Sprintf("daily PnL %.2f < limit -%.2f",
			m.state.NetPnL, math.Abs(*m.limits.MaxDailyLoss))
	}

	return true, ""
}

// RecordTradeResult books a successfully executed trade. The profit passed
// here is the EXPECTED profit until the market settles.
func (m *Manager) RecordTradeResult(profit, invested float64) {
	m.rolloverIfNeeded()
	m.state.TradesCount++
	m.state.NetPnL += profit
	m.state.Invested += invested
}

// AdjustActualPnL applies an additive correction when a market resolves and
// the realized figure differs from the expected one booked earlier. It does
// not replace or reset the expected figure.
func (m *Manager) AdjustActualPnL(realizedProfit float64) {
	m.rolloverIfNeeded()
	m.state.NetPnL += realizedProfit
}

// DailyStats returns a copy of today's running state for logging/display.
func (m *Manager) DailyStats() DailyState {
	m.rolloverIfNeeded()
	return m.state
}
