package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/liuxing5/Polymarket-trading-bot-15min-BTC/internal/domain"
)

// ListMarkets fetches the full market list. The response mixes bare slug
// strings and full market objects; see APIMarketEntry.
func (c *Client) ListMarkets(ctx context.Context) ([]APIMarketEntry, error) {
	var raw []byte
	err := c.retry.Do(ctx, func() error {
		var reqErr error
		raw, reqErr = c.doRequest(ctx, http.MethodGet, "/markets", nil)
		return reqErr
	})
	if err != nil {
		return nil, fmt.Errorf("polymarket: list markets: %w", err)
	}

	var entries []APIMarketEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("polymarket: decode markets: %w", err)
	}
	return entries, nil
}

// FindMarketByKeyword returns the first market whose question contains the
// keyword (case-insensitive). Slug-only entries match on their slug text but
// carry no tokens, so they resolve to a non-binary Market.
func (c *Client) FindMarketByKeyword(ctx context.Context, keyword string) (domain.Market, error) {
	keyword = strings.ToLower(strings.TrimSpace(keyword))

	entries, err := c.ListMarkets(ctx)
	if err != nil {
		return domain.Market{}, err
	}

	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.Question), keyword) {
			return e.ToDomainMarket(), nil
		}
	}
	return domain.Market{}, domain.ErrNoMarket
}

// WaitForMarket polls FindMarketByKeyword until a binary market matches,
// sleeping retryInterval between attempts. When maxWait > 0 and no market is
// found within it, the error is fatal and must stop startup; maxWait <= 0
// waits indefinitely (until ctx is cancelled).
func (c *Client) WaitForMarket(ctx context.Context, keyword string, retryInterval, maxWait time.Duration) (domain.Market, error) {
	start := time.Now()

	for {
		mkt, err := c.FindMarketByKeyword(ctx, keyword)
		if err == nil && mkt.Binary() {
			c.logger.Info("found target market",
				slog.String("slug", mkt.Slug),
				slog.String("question", mkt.Question),
			)
			return mkt, nil
		}
		if err != nil && !errors.Is(err, domain.ErrNoMarket) {
			c.logger.Warn("market lookup failed", slog.String("error", err.Error()))
		}

		if maxWait > 0 && time.Since(start) > maxWait {
			return domain.Market{}, fmt.Errorf("polymarket: no market for %q within %s: %w",
				keyword, maxWait, domain.ErrNoMarket)
		}

		c.logger.Warn("no market found, retrying",
			slog.String("keyword", keyword),
			slog.Duration("retry_in", retryInterval),
		)
		select {
		case <-ctx.Done():
			return domain.Market{}, ctx.Err()
		case <-time.After(retryInterval):
		}
	}
}
