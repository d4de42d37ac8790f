package domain

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderStatus tracks the venue-reported order lifecycle. An order is also
// considered terminal once its filled size reaches the requested size,
// regardless of the reported status string.
type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "pending"
	OrderStatusCanceled OrderStatus = "canceled"
	OrderStatusRejected OrderStatus = "rejected"
	OrderStatusExpired  OrderStatus = "expired"

	// OrderStatusTimeout is synthesized locally when polling gives up before
	// the venue reports a terminal status. Filled size is reported as 0.
	OrderStatusTimeout OrderStatus = "timeout"
)

// Terminal reports whether no further fill can be expected for this status.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusCanceled, OrderStatusRejected, OrderStatusExpired, OrderStatusTimeout:
		return true
	}
	return false
}

// OrderRequest is one leg of a paired submission.
type OrderRequest struct {
	Side        OrderSide
	TokenID     string
	Price       float64
	Size        float64
	TimeInForce string // "GTC" unless overridden
}

// OrderState is an order-status poll result. FilledSize is compared against
// the requested size to decide whether the leg completed.
type OrderState struct {
	OrderID    string
	Status     OrderStatus
	FilledSize float64
}

// FilledFor reports whether the order has filled the full requested size.
func (s OrderState) FilledFor(requested float64) bool {
	return s.FilledSize >= requested
}
