package feed

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/TheMalluBot/stratosphere-trading-hub-sub004/internal/domain"
)

// SimSource generates a seeded random-walk price stream per symbol, used in
// paper-trading mode and tests. Deterministic for a given seed.
type SimSource struct {
	hub      *Hub
	symbols  []string
	prices   map[string]float64
	interval time.Duration
	drift    float64
	vol      float64

	rng   *rand.Rand
	rngMu sync.Mutex

	logger *slog.Logger
}

// NewSimSource creates a SimSource that publishes one sample per symbol per
// interval into hub, starting each symbol at its entry in startPrices.
func NewSimSource(hub *Hub, startPrices map[string]float64, interval time.Duration, seed int64, logger *slog.Logger) *SimSource {
	symbols := make([]string, 0, len(startPrices))
	prices := make(map[string]float64, len(startPrices))
	for sym, px := range startPrices {
		symbols = append(symbols, sym)
		prices[sym] = px
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &SimSource{
		hub:      hub,
		symbols:  symbols,
		prices:   prices,
		interval: interval,
		drift:    0.0,
		vol:      0.0005, // per-tick log-return stddev
		rng:      rand.New(rand.NewSource(seed)),
		logger:   logger.With(slog.String("component", "sim_feed")),
	}
}

// Run publishes samples until the context is cancelled.
func (s *SimSource) Run(ctx context.Context) error {
	s.logger.Info("simulated feed started", slog.Int("symbols", len(s.symbols)))
	defer s.logger.Info("simulated feed stopped")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			for _, sym := range s.symbols {
				s.hub.Publish(ctx, s.nextSample(sym, now))
			}
		}
	}
}

func (s *SimSource) nextSample(symbol string, now time.Time) domain.PriceSample {
	s.rngMu.Lock()
	z := s.rng.NormFloat64()
	vol := 50 + s.rng.Float64()*150
	s.rngMu.Unlock()

	px := s.prices[symbol] * math.Exp(s.drift+s.vol*z)
	s.prices[symbol] = px
	return domain.PriceSample{
		Symbol:    symbol,
		Price:     px,
		Volume:    vol,
		Timestamp: now,
	}
}
