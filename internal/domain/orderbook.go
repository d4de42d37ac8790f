package domain

import "time"

// PriceLevel is a single price+size entry in an orderbook ladder.
type PriceLevel struct {
	Price float64
	Size  float64
}

// BookSide selects which ladder of an orderbook an update applies to.
type BookSide string

const (
	BookSideBid BookSide = "bids"
	BookSideAsk BookSide = "asks"
)

// BookUpdate is the notification emitted after an orderbook ladder has been
// replaced, telling consumers which asset changed.
type BookUpdate struct {
	AssetID   string
	Timestamp time.Time
}

// FillEstimate is the result of walking an ask ladder for a target size:
// the volume-weighted average price over the consumed levels and the price
// of the last (least favorable) level touched.
type FillEstimate struct {
	VWAP  float64
	Worst float64
}
