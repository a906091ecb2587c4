package domain

import "time"

// Trade is a realized fill recorded in the ledger. Entries are append-only.
type Trade struct {
	ID          string
	ExecutionID string // parent execution id
	SignalID    string // originating signal, empty for router slices
	Symbol      string
	Side        OrderSide
	Price       float64
	Quantity    float64
	Fees        float64
	Slippage    float64 // fraction of the reference price
	Timestamp   time.Time
	Profit      *float64 // set on closing trades, nil otherwise
}
