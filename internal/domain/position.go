package domain

import "time"

// PairTrade is the record of one executed yes/no pair. Append-only; only the
// Resolution field is attached later, when the market settles.
type PairTrade struct {
	ID             string
	Timestamp      time.Time
	MarketSlug     string
	PriceYes       float64
	PriceNo        float64
	TotalCost      float64 // buffered pair cost per share
	Size           float64
	ExpectedProfit float64
	OrderIDs       []string
	Resolution     string // "", "yes", or "no"
}

// VenuePosition is a position row as reported by the venue positions
// endpoint. Redeemable positions belong to resolved markets and can be
// converted into settlement currency.
type VenuePosition struct {
	TokenID    string
	Size       float64
	Redeemable bool
}
