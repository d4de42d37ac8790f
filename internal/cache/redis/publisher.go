package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/liuxing5/Polymarket-trading-bot-15min-BTC/internal/domain"
)

// Pub/Sub channels. Subscribers receive JSON-encoded domain structs.
const (
	ChannelBookUpdates = "arbbot:book_updates"
	ChannelTrades      = "arbbot:trades"
)

// Publisher implements domain.EventPublisher using Redis Pub/Sub. Messages
// are fire-and-forget: a subscriber that is not listening misses them.
type Publisher struct {
	rdb *redis.Client
}

// NewPublisher creates a Publisher backed by the given Client.
func NewPublisher(c *Client) *Publisher {
	return &Publisher{rdb: c.Underlying()}
}

// PublishBookUpdate broadcasts one orderbook update notification.
func (p *Publisher) PublishBookUpdate(ctx context.Context, update domain.BookUpdate) error {
	return p.publish(ctx, ChannelBookUpdates, update)
}

// PublishTrade broadcasts one executed pair trade.
func (p *Publisher) PublishTrade(ctx context.Context, trade domain.PairTrade) error {
	return p.publish(ctx, ChannelTrades, trade)
}

func (p *Publisher) publish(ctx context.Context, channel string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}
	if err := p.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.EventPublisher = (*Publisher)(nil)
