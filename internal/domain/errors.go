package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidConfig = errors.New("invalid order config")
	ErrNotActive     = errors.New("execution not active")
	ErrNoMarketData  = errors.New("no market data for symbol")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrFeedClosed    = errors.New("price feed closed")
)
