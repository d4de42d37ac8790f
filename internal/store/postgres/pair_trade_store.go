package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/liuxing5/Polymarket-trading-bot-15min-BTC/internal/domain"
)

// PairTradeStore implements domain.TradeStore using PostgreSQL.
type PairTradeStore struct {
	pool *pgxpool.Pool
}

// NewPairTradeStore creates a PairTradeStore backed by the given pool.
func NewPairTradeStore(pool *pgxpool.Pool) *PairTradeStore {
	return &PairTradeStore{pool: pool}
}

const pairTradeCols = `id, executed_at, market_slug, price_yes, price_no,
	total_cost, order_size, expected_profit, order_ids, resolution`

// Insert stores one executed pair. Re-inserting the same id is a no-op so
// retries after transient failures stay safe.
func (s *PairTradeStore) Insert(ctx context.Context, trade domain.PairTrade) error {
	const query = `
		INSERT INTO pair_trades (
			id, executed_at, market_slug, price_yes, price_no,
			total_cost, order_size, expected_profit, order_ids, resolution
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		trade.ID, trade.Timestamp, trade.MarketSlug,
		trade.PriceYes, trade.PriceNo,
		trade.TotalCost, trade.Size, trade.ExpectedProfit,
		trade.OrderIDs, trade.Resolution,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert pair trade: %w", err)
	}
	return nil
}

// AttachResolution records the market outcome for an executed pair.
func (s *PairTradeStore) AttachResolution(ctx context.Context, tradeID, resolution string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE pair_trades SET resolution = $2 WHERE id = $1`,
		tradeID, resolution,
	)
	if err != nil {
		return fmt.Errorf("postgres: attach resolution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: attach resolution %s: %w", tradeID, domain.ErrNotFound)
	}
	return nil
}

// ListRecent returns the newest trades, most recent first.
func (s *PairTradeStore) ListRecent(ctx context.Context, limit int) ([]domain.PairTrade, error) {
	query := `SELECT ` + pairTradeCols + ` FROM pair_trades ORDER BY executed_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list pair trades: %w", err)
	}
	defer rows.Close()

	trades, err := scanPairTrades(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan pair trades: %w", err)
	}
	return trades, nil
}

func scanPairTrades(rows pgx.Rows) ([]domain.PairTrade, error) {
	var trades []domain.PairTrade
	for rows.Next() {
		var t domain.PairTrade
		if err := rows.Scan(
			&t.ID, &t.Timestamp, &t.MarketSlug,
			&t.PriceYes, &t.PriceNo,
			&t.TotalCost, &t.Size, &t.ExpectedProfit,
			&t.OrderIDs, &t.Resolution,
		); err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}
