package domain

import (
	"fmt"
	"time"
)

// SchedulingAlgorithm selects how a parent order is sliced over its window.
type SchedulingAlgorithm string

const (
	AlgoTWAP      SchedulingAlgorithm = "twap"
	AlgoVWAP      SchedulingAlgorithm = "vwap"
	AlgoShortfall SchedulingAlgorithm = "implementation_shortfall"
	AlgoArrival   SchedulingAlgorithm = "arrival_price"
)

// Aggressiveness controls how child-order prices relate to the spread.
type Aggressiveness string

const (
	AggressivenessPassive    Aggressiveness = "passive"
	AggressivenessNeutral    Aggressiveness = "neutral"
	AggressivenessAggressive Aggressiveness = "aggressive"
)

// Multiplier returns the weight-scaling factor applied by the front-loaded
// and U-shaped schedules.
func (a Aggressiveness) Multiplier() float64 {
	switch a {
	case AggressivenessPassive:
		return 0.7
	case AggressivenessAggressive:
		return 1.5
	default:
		return 1.0
	}
}

// ExecutionStatus tracks the parent execution lifecycle. Transitions are
// monotonic: active moves to exactly one terminal state and never back.
type ExecutionStatus string

const (
	ExecutionActive    ExecutionStatus = "active"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionCancelled ExecutionStatus = "cancelled"
	ExecutionFailed    ExecutionStatus = "failed"
)

// IsTerminal reports whether the status admits no further transitions.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionCompleted || s == ExecutionCancelled || s == ExecutionFailed
}

// ParentOrderConfig is the immutable request that starts a smart order
// execution. It is read-only for the lifetime of the execution.
type ParentOrderConfig struct {
	Symbol         string
	Quantity       float64
	Side           OrderSide
	Algorithm      SchedulingAlgorithm
	TimeWindow     time.Duration
	MaxSlippage    float64 // max deviation from reference price, as a fraction
	MinFillSize    float64
	Aggressiveness Aggressiveness
}

// Validate rejects configurations that must never enter the router.
func (c ParentOrderConfig) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("%w: symbol must not be empty", ErrInvalidConfig)
	}
	if c.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be > 0, got %v", ErrInvalidConfig, c.Quantity)
	}
	if c.TimeWindow <= 0 {
		return fmt.Errorf("%w: time window must be > 0, got %v", ErrInvalidConfig, c.TimeWindow)
	}
	switch c.Side {
	case OrderSideBuy, OrderSideSell:
	default:
		return fmt.Errorf("%w: unknown side %q", ErrInvalidConfig, c.Side)
	}
	switch c.Algorithm {
	case AlgoTWAP, AlgoVWAP, AlgoShortfall, AlgoArrival:
	default:
		return fmt.Errorf("%w: unknown algorithm %q", ErrInvalidConfig, c.Algorithm)
	}
	if c.MaxSlippage < 0 {
		return fmt.Errorf("%w: max slippage must be >= 0, got %v", ErrInvalidConfig, c.MaxSlippage)
	}
	return nil
}

// OrderSlice is one planned child order. It is owned by exactly one
// execution, mutated only by the router, and immutable once filled.
type OrderSlice struct {
	ID          string
	Quantity    float64
	TargetPrice float64 // resolved at execution time, zero until submitted
	ScheduledAt time.Time
	Filled      bool
	FillPrice   float64
	FilledAt    *time.Time
}

// ParentOrderExecution is the aggregate state of one smart order execution.
// Snapshots handed out by the router are deep copies; callers never observe
// in-place mutation.
type ParentOrderExecution struct {
	ID             string
	Config         ParentOrderConfig
	Slices         []OrderSlice
	FilledQuantity float64
	AvgFillPrice   float64 // volume-weighted across filled slices
	SlippagePct    float64 // realized, relative to the first observed reference price
	Status         ExecutionStatus
	StartedAt      time.Time
	EndedAt        *time.Time
}

// FillRatio returns filled quantity over planned quantity in [0, 1].
func (e ParentOrderExecution) FillRatio() float64 {
	var planned float64
	for _, s := range e.Slices {
		planned += s.Quantity
	}
	if planned <= 0 {
		return 0
	}
	return e.FilledQuantity / planned
}
