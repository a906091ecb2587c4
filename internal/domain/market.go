package domain

import "time"

// PriceSample is one observation from the price feed.
type PriceSample struct {
	Symbol    string
	Price     float64
	Volume    float64
	Timestamp time.Time
}

// PriceFeed supplies the most recent trade price, volume, and bounded
// history for a symbol, plus a push subscription. Implementations buffer
// per symbol and must never block on slow subscribers.
type PriceFeed interface {
	Latest(symbol string) (PriceSample, error)
	// History returns up to n most recent samples, oldest first.
	History(symbol string, n int) []PriceSample
	// Subscribe delivers push updates for the symbol. The returned cancel
	// function releases the subscription.
	Subscribe(symbol string) (<-chan PriceSample, func())
}
