// Package stats tracks executed pair trades in memory and appends each one
// to a CSV log. File errors are logged and swallowed so statistics can never
// take down the trading loop.
package stats

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/liuxing5/Polymarket-trading-bot-15min-BTC/internal/domain"
)

var csvHeader = []string{
	"timestamp",
	"market_slug",
	"price_yes",
	"price_no",
	"total_cost",
	"order_size",
	"expected_profit",
	"order_ids",
	"market_result",
}

// Snapshot is a summary over all recorded trades.
type Snapshot struct {
	TotalTrades         int
	TotalInvested       float64
	TotalExpectedProfit float64
	WinRate             float64 // percent of trades with positive expected profit
	AvgProfitPerTrade   float64
	AvgProfitPct        float64
}

// Tracker records trades in memory and optionally to an append-only CSV file.
// An empty logFile disables file output.
type Tracker struct {
	logFile string
	trades  []domain.PairTrade
	logger  *slog.Logger
}

// NewTracker creates a Tracker. When logFile is non-empty the CSV header is
// written once if the file does not exist yet; failures are non-fatal.
func NewTracker(logFile string, logger *slog.Logger) *Tracker {
	t := &Tracker{
		logFile: logFile,
		logger:  logger.With(slog.String("component", "stats")),
	}
	if logFile != "" {
		if err := t.ensureHeader(); err != nil {
			t.logger.Warn("trade log header write failed", slog.String("error", err.Error()))
		}
	}
	return t
}

func (t *Tracker) ensureHeader() error {
	if _, err := os.Stat(t.logFile); err == nil {
		return nil
	}
	f, err := os.OpenFile(t.logFile, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// RecordTrade stores the trade and appends one CSV row. The CSV write is
// best-effort: errors are logged and the in-memory record is kept.
func (t *Tracker) RecordTrade(trade domain.PairTrade) {
	t.trades = append(t.trades, trade)

	if t.logFile == "" {
		return
	}
	if err := t.appendRow(trade); err != nil {
		t.logger.Warn("trade log append failed", slog.String("error", err.Error()))
	}
}

func (t *Tracker) appendRow(trade domain.PairTrade) error {
	f, err := os.OpenFile(t.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	row := []string{
		strconv.FormatInt(trade.Timestamp.Unix(), 10),
		trade.MarketSlug,
		formatFloat(trade.PriceYes),
		formatFloat(trade.PriceNo),
		formatFloat(trade.TotalCost),
		formatFloat(trade.Size),
		formatFloat(trade.ExpectedProfit),
		strings.Join(trade.OrderIDs, ";"),
		trade.Resolution,
	}
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Trades returns a copy of the in-memory trade records.
func (t *Tracker) Trades() []domain.PairTrade {
	out := make([]domain.PairTrade, len(t.trades))
	copy(out, t.trades)
	return out
}

// LogFile returns the configured CSV path ("" when file output is disabled).
func (t *Tracker) LogFile() string { return t.logFile }

// Stats computes the summary over all recorded trades.
func (t *Tracker) Stats() Snapshot {
	n := len(t.trades)
	if n == 0 {
		return Snapshot{}
	}

	var invested, expected float64
	wins := 0
	for _, tr := range t.trades {
		invested += tr.TotalCost * tr.Size
		expected += tr.ExpectedProfit
		if tr.ExpectedProfit > 0 {
			wins++
		}
	}

	snap := Snapshot{
		TotalTrades:         n,
		TotalInvested:       invested,
		TotalExpectedProfit: expected,
		WinRate:             float64(wins) / float64(n) * 100,
		AvgProfitPerTrade:   expected / float64(n),
	}
	if invested > 0 {
		snap.AvgProfitPct = snap.AvgProfitPerTrade / (invested / float64(n)) * 100
	}
	return snap
}

// String implements fmt.Stringer for compact log lines.
func (s Snapshot) String() string {
	return fmt.Sprintf("trades=%d invested=%.2f expected_profit=%.2f win_rate=%.1f%%",
		s.TotalTrades, s.TotalInvested, s.TotalExpectedProfit, s.WinRate)
}
