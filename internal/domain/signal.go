package domain

import "time"

// Signal is a trade recommendation produced upstream (screeners, strategy
// backends). Strength is a [0, 1] confidence used as a win-probability proxy
// by the sizer and as a fill-probability input by the simulator.
type Signal struct {
	ID             string
	Symbol         string
	Side           OrderSide
	Strength       float64
	Price          float64 // reference price at signal time
	ExpectedReturn float64 // fractional, e.g. 0.03 for +3%
	Metadata       map[string]string
	Timestamp      time.Time
}
