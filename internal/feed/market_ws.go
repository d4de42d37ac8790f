// Package feed maintains the live market-data stream: it connects to the
// venue WebSocket, subscribes to the tracked assets, applies each orderbook
// update to the book store, and republishes a notification per update.
// Disconnects are retried with capped exponential backoff plus jitter.
package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"time"

	"github.com/gorilla/websocket"

	"github.com/liuxing5/Polymarket-trading-bot-15min-BTC/internal/book"
	"github.com/liuxing5/Polymarket-trading-bot-15min-BTC/internal/domain"
)

const (
	// handshakeTimeout bounds the WebSocket dial.
	handshakeTimeout = 15 * time.Second

	// writeWait is the time allowed to write the subscribe message.
	writeWait = 10 * time.Second

	// minReconnect and maxReconnect bound the backoff between reconnect
	// attempts. Backoff grows by backoffFactor plus up to maxJitter per
	// consecutive failure and resets the moment a subscription succeeds.
	minReconnect  = 1 * time.Second
	maxReconnect  = 10 * time.Second
	backoffFactor = 1.5
	maxJitter     = 1 * time.Second
)

// subscribeCommand is the single message sent after connecting.
type subscribeCommand struct {
	Type     string   `json:"type"`
	AssetIDs []string `json:"assetIds"`
}

// wsMessage is the envelope of an incoming stream message. Bids and asks are
// optional; a nil side leaves the stored ladder untouched.
type wsMessage struct {
	Type    string    `json:"type"`
	AssetID string    `json:"assetId"`
	Bids    []wsLevel `json:"bids"`
	Asks    []wsLevel `json:"asks"`
}

// wsLevel decodes a [price, size] pair whose elements may be JSON numbers or
// numeric strings.
type wsLevel struct {
	Price float64
	Size  float64
}

func (l *wsLevel) UnmarshalJSON(data []byte) error {
	var pair [2]json.Number
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	price, err := pair[0].Float64()
	if err != nil {
		return err
	}
	size, err := pair[1].Float64()
	if err != nil {
		return err
	}
	l.Price = price
	l.Size = size
	return nil
}

// Client is the streaming feed client. One instance tracks a fixed set of
// assets for the process lifetime.
type Client struct {
	wsURL    string
	assetIDs []string
	books    *book.Store
	logger   *slog.Logger

	updates chan domain.BookUpdate

	// jitter returns a fraction in [0, 1); replaced in tests.
	jitter func() float64
}

// NewClient creates a feed client that applies updates to books and emits a
// notification per applied update on Updates().
func NewClient(wsURL string, assetIDs []string, books *book.Store, logger *slog.Logger) *Client {
	return &Client{
		wsURL:    wsURL,
		assetIDs: assetIDs,
		books:    books,
		logger:   logger.With(slog.String("component", "market_feed")),
		updates:  make(chan domain.BookUpdate, 64),
		jitter:   rand.Float64,
	}
}

// Updates is the stream of applied book updates. It is closed when Run
// returns.
func (c *Client) Updates() <-chan domain.BookUpdate {
	return c.updates
}

// Run connects, subscribes, and pumps messages until ctx is cancelled. Any
// connect or read failure triggers a reconnect after the current backoff
// delay; cancellation between attempts or inside the read loop exits
// promptly without further reconnects. The connection is closed on every
// exit path.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.updates)

	backoff := minReconnect
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := c.runConnection(ctx, &backoff)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.logger.Warn("stream disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("backoff", backoff),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = c.nextBackoff(backoff)
	}
}

// runConnection performs one connect/subscribe/read-loop cycle. On successful
// subscription it resets *backoff to the minimum.
func (c *Client) runConnection(ctx context.Context, backoff *time.Duration) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Unblock ReadMessage when the context is cancelled.
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-connCtx.Done()
		conn.Close()
	}()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	cmd := subscribeCommand{Type: "subscribe", AssetIDs: c.assetIDs}
	if err := conn.WriteJSON(cmd); err != nil {
		return err
	}

	c.logger.Info("stream subscribed", slog.Int("assets", len(c.assetIDs)))
	*backoff = minReconnect

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.handleMessage(ctx, raw)
	}
}

// handleMessage parses one raw frame and applies it. Malformed payloads,
// unexpected types, and unknown assets are silently dropped; they never
// abort the connection.
func (c *Client) handleMessage(ctx context.Context, raw []byte) {
	var msg wsMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	if msg.Type != "orderbookUpdate" || msg.AssetID == "" {
		return
	}
	if !c.books.Tracks(msg.AssetID) {
		return
	}

	applied := false
	if msg.Bids != nil {
		c.books.ApplySnapshot(domain.BookSideBid, msg.AssetID, toPriceLevels(msg.Bids))
		applied = true
	}
	if msg.Asks != nil {
		c.books.ApplySnapshot(domain.BookSideAsk, msg.AssetID, toPriceLevels(msg.Asks))
		applied = true
	}
	if !applied {
		return
	}

	update := domain.BookUpdate{AssetID: msg.AssetID, Timestamp: time.Now().UTC()}
	select {
	case c.updates <- update:
	case <-ctx.Done():
	}
}

// nextBackoff grows the delay by backoffFactor plus bounded random jitter,
// capped at maxReconnect.
func (c *Client) nextBackoff(cur time.Duration) time.Duration {
	next := time.Duration(float64(cur)*backoffFactor) +
		time.Duration(c.jitter()*float64(maxJitter))
	if next > maxReconnect {
		next = maxReconnect
	}
	return next
}

func toPriceLevels(levels []wsLevel) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(levels))
	for _, l := range levels {
		out = append(out, domain.PriceLevel{Price: l.Price, Size: l.Size})
	}
	return out
}
