package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID         string          `json:"id"`
	ProductID  string          `json:"product_id"`
	Side       OrderSide       `json:"side"`
	Type       OrderType       `json:"type"`
	Price      decimal.Decimal `json:"price"`
	Size       decimal.Decimal `json:"size"`
	Funds      decimal.Decimal `json:"funds"`
	FilledSize decimal.Decimal `json:"filled_size"`
	Status     OrderStatus     `json:"status"`
	PostOnly   bool            `json:"post_only"`
	Settled    bool            `json:"settled"`
	CreatedAt  time.Time       `json:"created_at"`
}

type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

func ParseOrderSide(s string) (OrderSide, bool) {
	switch OrderSide(s) {
	case OrderSideBuy, OrderSideSell:
		return OrderSide(s), true
	}
	return "", false
}

type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
	OrderTypeStop   OrderType = "stop"
)

func ParseOrderType(s string) (OrderType, bool) {
	switch OrderType(s) {
	case OrderTypeMarket, OrderTypeLimit, OrderTypeStop:
		return OrderType(s), true
	}
	return "", false
}

// OrderStatus is the server-assigned order state. Only pending and open
// are non-terminal; done and settled are terminal success, rejected is
// terminal failure, and any value we do not recognize is treated as
// terminal so a watch loop never spins on it.
type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "pending"
	OrderStatusOpen     OrderStatus = "open"
	OrderStatusDone     OrderStatus = "done"
	OrderStatusSettled  OrderStatus = "settled"
	OrderStatusRejected OrderStatus = "rejected"
)

func (s OrderStatus) Terminal() bool {
	return s != OrderStatusPending && s != OrderStatusOpen
}

func (s OrderStatus) Completed() bool {
	return s == OrderStatusDone || s == OrderStatusSettled
}

func (s OrderStatus) Recognized() bool {
	switch s {
	case OrderStatusPending, OrderStatusOpen, OrderStatusDone, OrderStatusSettled, OrderStatusRejected:
		return true
	}
	return false
}

// OrderRequest describes an order to be placed. Wire encoding is owned
// by the coinbase client, which formats size and price with exactly 8
// fractional digits.
type OrderRequest struct {
	ProductID string
	Side      OrderSide
	Type      OrderType
	Size      decimal.Decimal
	Price     decimal.Decimal
	PostOnly  bool
}
