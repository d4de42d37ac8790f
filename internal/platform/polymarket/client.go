// Package polymarket is the REST client for the venue: order books, order
// placement and status, positions, redemption, wallet balance, and market
// discovery.
package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/liuxing5/Polymarket-trading-bot-15min-BTC/internal/domain"
	"github.com/liuxing5/Polymarket-trading-bot-15min-BTC/internal/platform/retry"
)

// requestTimeout bounds every REST call; nothing may block indefinitely.
const requestTimeout = 10 * time.Second

// Credentials carries the API-key auth triple sent on every request.
type Credentials struct {
	APIKey        string
	APISecret     string
	APIPassphrase string
}

// Client talks to the venue REST API.
type Client struct {
	baseURL    string
	creds      Credentials
	httpClient *http.Client
	retry      retry.Policy
	logger     *slog.Logger
}

// NewClient creates a Client for the given API root,
// e.g. "https://clob.polymarket.com".
func NewClient(baseURL string, creds Credentials, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		creds:   creds,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		retry:  retry.Default,
		logger: logger.With(slog.String("component", "polymarket_client")),
	}
}

// doRequest performs one HTTP request with auth headers and returns the raw
// response body. Non-2xx statuses are errors.
func (c *Client) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("polymarket: marshal body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("polymarket: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.creds.APIKey)
	req.Header.Set("X-API-Secret", c.creds.APISecret)
	req.Header.Set("X-API-Passphrase", c.creds.APIPassphrase)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("polymarket: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("polymarket: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return respBody, fmt.Errorf("polymarket: %s %s: HTTP %d", method, path, resp.StatusCode)
	}
	return respBody, nil
}

// GetOrderBook fetches the current ask/bid ladders for a token.
func (c *Client) GetOrderBook(ctx context.Context, tokenID string) (asks, bids []domain.PriceLevel, err error) {
	var raw []byte
	err = c.retry.Do(ctx, func() error {
		var reqErr error
		raw, reqErr = c.doRequest(ctx, http.MethodGet, "/orderbook/"+tokenID, nil)
		return reqErr
	})
	if err != nil {
		return nil, nil, fmt.Errorf("polymarket: get orderbook %s: %w", tokenID, err)
	}

	var book APIOrderBook
	if err := json.Unmarshal(raw, &book); err != nil {
		return nil, nil, fmt.Errorf("polymarket: decode orderbook: %w", err)
	}
	return toLevels(book.Asks), toLevels(book.Bids), nil
}

// GetBalance returns the wallet's USDC balance.
func (c *Client) GetBalance(ctx context.Context) (float64, error) {
	raw, err := c.doRequest(ctx, http.MethodGet, "/wallet", nil)
	if err != nil {
		return 0, fmt.Errorf("polymarket: get wallet: %w", err)
	}

	var wallet APIWallet
	if err := json.Unmarshal(raw, &wallet); err != nil {
		return 0, fmt.Errorf("polymarket: decode wallet: %w", err)
	}
	return float64(wallet.Balances["USDC"]), nil
}

func orderPayload(req domain.OrderRequest) map[string]any {
	tif := req.TimeInForce
	if tif == "" {
		tif = "GTC"
	}
	return map[string]any{
		"side":          string(req.Side),
		"token_id":      req.TokenID,
		"price":         req.Price,
		"size":          req.Size,
		"time_in_force": tif,
	}
}

// PlaceOrder submits a single order and returns the placement result.
func (c *Client) PlaceOrder(ctx context.Context, req domain.OrderRequest) (APIOrderResult, error) {
	raw, err := c.doRequest(ctx, http.MethodPost, "/orders", orderPayload(req))
	if err != nil {
		return APIOrderResult{}, fmt.Errorf("polymarket: place order: %w", err)
	}

	var result APIOrderResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return APIOrderResult{}, fmt.Errorf("polymarket: decode order result: %w", err)
	}
	return result, nil
}

// PlaceOrders submits all legs via the bulk endpoint when available, falling
// back to sequential single submissions when the bulk request fails for any
// reason. The returned slice is positionally aligned with the input.
func (c *Client) PlaceOrders(ctx context.Context, reqs []domain.OrderRequest) ([]APIOrderResult, error) {
	payloads := make([]map[string]any, 0, len(reqs))
	for _, r := range reqs {
		payloads = append(payloads, orderPayload(r))
	}

	raw, err := c.doRequest(ctx, http.MethodPost, "/orders/bulk", map[string]any{"orders": payloads})
	if err == nil {
		var results []APIOrderResult
		if decErr := json.Unmarshal(raw, &results); decErr == nil && len(results) == len(reqs) {
			return results, nil
		}
		c.logger.Warn("bulk order response malformed, falling back to sequential")
	} else {
		c.logger.Warn("bulk order failed, falling back to sequential",
			slog.String("error", err.Error()),
		)
	}

	results := make([]APIOrderResult, 0, len(reqs))
	for _, r := range reqs {
		res, err := c.PlaceOrder(ctx, r)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// SubmitOrders places all legs via PlaceOrders and resolves each response to
// its order ID. An empty ID at a position means that response carried none;
// the executor treats that as a hard abort.
func (c *Client) SubmitOrders(ctx context.Context, reqs []domain.OrderRequest) ([]string, error) {
	results, err := c.PlaceOrders(ctx, reqs)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.OrderID()
	}
	return ids, nil
}

// GetOrderState polls the status of one order.
func (c *Client) GetOrderState(ctx context.Context, orderID string) (domain.OrderState, error) {
	raw, err := c.doRequest(ctx, http.MethodGet, "/orders/"+orderID, nil)
	if err != nil {
		return domain.OrderState{}, fmt.Errorf("polymarket: get order %s: %w", orderID, err)
	}

	var status APIOrderStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return domain.OrderState{}, fmt.Errorf("polymarket: decode order status: %w", err)
	}
	return status.ToDomainState(orderID), nil
}

// CancelOrder requests cancellation of one order. Callers treat failures as
// best-effort: log and continue.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	if _, err := c.doRequest(ctx, http.MethodPost, "/orders/"+orderID+"/cancel", nil); err != nil {
		return fmt.Errorf("polymarket: cancel order %s: %w", orderID, err)
	}
	return nil
}

// GetPositions returns the wallet's positions.
func (c *Client) GetPositions(ctx context.Context) ([]domain.VenuePosition, error) {
	raw, err := c.doRequest(ctx, http.MethodGet, "/positions", nil)
	if err != nil {
		return nil, fmt.Errorf("polymarket: get positions: %w", err)
	}

	var positions []APIPosition
	if err := json.Unmarshal(raw, &positions); err != nil {
		return nil, fmt.Errorf("polymarket: decode positions: %w", err)
	}

	out := make([]domain.VenuePosition, 0, len(positions))
	for _, p := range positions {
		out = append(out, domain.VenuePosition{
			TokenID:    p.TokenID,
			Size:       float64(p.Size),
			Redeemable: p.Redeemable,
		})
	}
	return out, nil
}

// HasRedeemable reports whether any position belongs to a resolved market.
func (c *Client) HasRedeemable(ctx context.Context) (bool, error) {
	positions, err := c.GetPositions(ctx)
	if err != nil {
		return false, err
	}
	for _, p := range positions {
		if p.Redeemable {
			return true, nil
		}
	}
	return false, nil
}

// RedeemAll converts all redeemable shares into settlement currency.
func (c *Client) RedeemAll(ctx context.Context) error {
	if _, err := c.doRequest(ctx, http.MethodPost, "/positions/redeem-all", map[string]any{}); err != nil {
		return fmt.Errorf("polymarket: redeem all: %w", err)
	}
	return nil
}
