package domain

import "time"

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderType distinguishes market orders from resting limit orders. The
// simulator assigns different base fill probabilities per type.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// OrderStatus tracks the child-order lifecycle.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusPartial   OrderStatus = "partial"
	OrderStatusRejected  OrderStatus = "rejected"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order is a child order recorded in the ledger. Once appended it is never
// mutated; a resubmission of the same slice produces a fresh Order.
type Order struct {
	ID          string
	ExecutionID string // parent execution this order belongs to
	Symbol      string
	Side        OrderSide
	Type        OrderType
	Quantity    float64
	Price       float64 // target price at submission time
	Status      OrderStatus
	ExecutedQty float64
	ExecutedPx  float64
	Fees        float64
	CreatedAt   time.Time
}

// SubmitResult is the fill outcome returned by an order submission venue
// (the execution simulator here, a broker adapter in production).
type SubmitResult struct {
	Filled      bool
	ExecutedQty float64
	ExecutedPx  float64
	Fees        float64
	Slippage    float64 // realized slippage as a fraction of the reference price
}
