package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// OrderStore persists child orders.
type OrderStore interface {
	Create(ctx context.Context, order Order) error
	ListByExecution(ctx context.Context, executionID string) ([]Order, error)
}

// TradeStore persists realized fills.
type TradeStore interface {
	Create(ctx context.Context, trade Trade) error
	ListByExecution(ctx context.Context, executionID string) ([]Trade, error)
	ListBySymbol(ctx context.Context, symbol string, opts ListOpts) ([]Trade, error)
}

// ExecutionSummary is the terminal snapshot of a parent execution persisted
// for dashboards and post-trade analysis.
type ExecutionSummary struct {
	ID             string
	Symbol         string
	Side           OrderSide
	Algorithm      SchedulingAlgorithm
	Quantity       float64
	FilledQuantity float64
	AvgFillPrice   float64
	SlippagePct    float64
	Status         ExecutionStatus
	StartedAt      time.Time
	EndedAt        *time.Time
}

// ExecutionStore persists terminal execution summaries.
type ExecutionStore interface {
	Create(ctx context.Context, summary ExecutionSummary) error
	GetByID(ctx context.Context, id string) (ExecutionSummary, error)
	ListRecent(ctx context.Context, limit int) ([]ExecutionSummary, error)
}
