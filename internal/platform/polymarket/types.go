package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/liuxing5/Polymarket-trading-bot-15min-BTC/internal/domain"
)

// flexFloat unmarshals from a JSON number or a numeric string, since the API
// sends prices and sizes in both shapes depending on the endpoint.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(n)
	return nil
}

// --------------------------------------------------------------------------
// Order book DTOs
// --------------------------------------------------------------------------

// APIBookLevel is one ladder entry of the REST orderbook response.
type APIBookLevel struct {
	Price flexFloat `json:"px"`
	Size  flexFloat `json:"sz"`
}

// APIOrderBook is the GET /orderbook/{tokenID} response.
type APIOrderBook struct {
	Asks    []APIBookLevel `json:"asks"`
	Bids    []APIBookLevel `json:"bids"`
	BestBid flexFloat      `json:"bestBid"`
	BestAsk flexFloat      `json:"bestAsk"`
}

func toLevels(in []APIBookLevel) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(in))
	for _, lvl := range in {
		out = append(out, domain.PriceLevel{Price: float64(lvl.Price), Size: float64(lvl.Size)})
	}
	return out
}

// --------------------------------------------------------------------------
// Order DTOs
// --------------------------------------------------------------------------

// APIOrderResult is the response from placing an order. Different deployments
// return the identifier under different field names.
type APIOrderResult struct {
	OrderIDField string `json:"order_id"`
	IDField      string `json:"id"`
	Status       string `json:"status"`
	ErrorMsg     string `json:"errorMsg"`
}

// OrderID resolves the order identifier using an explicit first-matching
// known field name: "order_id", then "id". Empty means the response carried
// no identifier.
func (r APIOrderResult) OrderID() string {
	if r.OrderIDField != "" {
		return r.OrderIDField
	}
	return r.IDField
}

// APIOrderStatus is the GET /orders/{id} response.
type APIOrderStatus struct {
	OrderIDField string    `json:"order_id"`
	IDField      string    `json:"id"`
	Status       string    `json:"status"`
	FilledSize   flexFloat `json:"filled_size"`
}

// ToDomainState maps the venue status string onto the domain order state.
// Unknown statuses map to pending: the poller treats them as "keep waiting".
func (s APIOrderStatus) ToDomainState(orderID string) domain.OrderState {
	state := domain.OrderState{
		OrderID:    orderID,
		Status:     domain.OrderStatusPending,
		FilledSize: float64(s.FilledSize),
	}
	switch strings.ToLower(s.Status) {
	case "canceled", "cancelled":
		state.Status = domain.OrderStatusCanceled
	case "rejected":
		state.Status = domain.OrderStatusRejected
	case "expired":
		state.Status = domain.OrderStatusExpired
	}
	return state
}

// --------------------------------------------------------------------------
// Position / wallet DTOs
// --------------------------------------------------------------------------

// APIPosition is one row of the GET /positions response.
type APIPosition struct {
	TokenID    string    `json:"token_id"`
	Size       flexFloat `json:"size"`
	Redeemable bool      `json:"redeemable"`
}

// APIWallet is the GET /wallet response.
type APIWallet struct {
	Balances map[string]flexFloat `json:"balances"`
}

// --------------------------------------------------------------------------
// Market DTOs
// --------------------------------------------------------------------------

// APIToken is one outcome token of a market entry.
type APIToken struct {
	TokenID string `json:"token_id"`
	Outcome string `json:"outcome"`
}

// APIMarketEntry is one element of the GET /markets response. The API mixes
// two variants in the same array: a bare slug string, or a full market
// object. UnmarshalJSON decodes both into an explicit tagged form instead of
// probing fields at use sites.
type APIMarketEntry struct {
	Slug     string
	Question string
	Tokens   []APIToken

	// SlugOnly is true when the entry was a bare string and carries no
	// question or token information.
	SlugOnly bool
}

func (m *APIMarketEntry) UnmarshalJSON(data []byte) error {
	var slug string
	if err := json.Unmarshal(data, &slug); err == nil {
		*m = APIMarketEntry{Slug: slug, Question: slug, SlugOnly: true}
		return nil
	}

	var obj struct {
		Slug     string     `json:"slug"`
		Question string     `json:"question"`
		Tokens   []APIToken `json:"tokens"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*m = APIMarketEntry{Slug: obj.Slug, Question: obj.Question, Tokens: obj.Tokens}
	return nil
}

// ToDomainMarket resolves the yes/no token IDs from the entry's token list.
func (m APIMarketEntry) ToDomainMarket() domain.Market {
	mkt := domain.Market{Slug: m.Slug, Question: m.Question}
	for _, tok := range m.Tokens {
		switch strings.ToLower(tok.Outcome) {
		case "yes":
			mkt.YesTokenID = tok.TokenID
		case "no":
			mkt.NoTokenID = tok.TokenID
		}
	}
	return mkt
}
