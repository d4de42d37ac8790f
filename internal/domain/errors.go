package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrMissingOrderID    = errors.New("order response carried no order id")
	ErrInsufficientDepth = errors.New("insufficient market depth")
	ErrNoMarket          = errors.New("no matching market found")
	ErrWSDisconnect      = errors.New("websocket disconnected")
)
