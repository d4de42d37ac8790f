package domain

import "context"

// TradeStore persists executed pair trades. Implemented by the Postgres
// store; absent a configured DSN the bot keeps records in memory and CSV only.
type TradeStore interface {
	Insert(ctx context.Context, trade PairTrade) error
	AttachResolution(ctx context.Context, tradeID, resolution string) error
	ListRecent(ctx context.Context, limit int) ([]PairTrade, error)
}

// EventPublisher broadcasts bot events to external observers. Publishing is
// best-effort: callers log failures and continue.
type EventPublisher interface {
	PublishBookUpdate(ctx context.Context, update BookUpdate) error
	PublishTrade(ctx context.Context, trade PairTrade) error
}
