package router

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TheMalluBot/stratosphere-trading-hub-sub004/internal/domain"
)

// vwapLookback is the number of recent feed samples used to derive VWAP
// volume weights. With fewer samples the plan falls back to TWAP.
const vwapLookback = 20

// planner turns a parent order into a quantity vector and schedule. The
// seeded rng drives TWAP jitter so plans are reproducible.
type planner struct {
	feed  domain.PriceFeed
	rng   *rand.Rand
	rngMu sync.Mutex
}

func newPlanner(feed domain.PriceFeed, seed int64) *planner {
	return &planner{feed: feed, rng: rand.New(rand.NewSource(seed))}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// plan builds the slice sequence for a config, scheduled evenly across the
// time window from start.
func (p *planner) plan(cfg domain.ParentOrderConfig, start time.Time) []domain.OrderSlice {
	var quantities []float64
	switch cfg.Algorithm {
	case domain.AlgoVWAP:
		quantities = p.vwapQuantities(cfg)
	case domain.AlgoShortfall:
		quantities = shortfallQuantities(cfg)
	case domain.AlgoArrival:
		quantities = arrivalQuantities(cfg)
	default:
		quantities = p.twapQuantities(cfg)
	}

	// A configured minimum fill size lowers the slice count so no planned
	// slice is economically unviable.
	if cfg.MinFillSize > 0 {
		maxSlices := int(cfg.Quantity / cfg.MinFillSize)
		if maxSlices < 1 {
			maxSlices = 1
		}
		if len(quantities) > maxSlices {
			quantities = p.redistribute(cfg, maxSlices)
		}
	}

	interval := cfg.TimeWindow / time.Duration(len(quantities))
	slices := make([]domain.OrderSlice, len(quantities))
	for i, qty := range quantities {
		slices[i] = domain.OrderSlice{
			ID:          uuid.New().String(),
			Quantity:    qty,
			ScheduledAt: start.Add(interval * time.Duration(i)),
		}
	}
	return slices
}

// redistribute rebuilds the quantity vector equal-sized at a forced count,
// keeping the sum exact.
func (p *planner) redistribute(cfg domain.ParentOrderConfig, n int) []float64 {
	out := make([]float64, n)
	each := cfg.Quantity / float64(n)
	var sum float64
	for i := 0; i < n-1; i++ {
		out[i] = each
		sum += each
	}
	out[n-1] = cfg.Quantity - sum
	return out
}

func (p *planner) jitter() float64 {
	p.rngMu.Lock()
	defer p.rngMu.Unlock()
	return (p.rng.Float64() - 0.5) * 0.2 // +/-10%
}

// twapQuantities slices equal-sized with per-slice random jitter to avoid
// detection. The jittered quantities are deliberately not renormalized, so
// the planned total drifts from the target by the jitter sum. Known
// limitation carried over from the product behavior; do not true up here.
func (p *planner) twapQuantities(cfg domain.ParentOrderConfig) []float64 {
	n := clampInt(int(cfg.TimeWindow.Minutes()/2), 5, 20)
	base := cfg.Quantity / float64(n)
	out := make([]float64, n)
	for i := range out {
		out[i] = base * (1 + p.jitter())
	}
	return out
}

// vwapQuantities weights slices by recent traded volume. The last slice
// absorbs the remainder so the sum is exact.
func (p *planner) vwapQuantities(cfg domain.ParentOrderConfig) []float64 {
	samples := p.feed.History(cfg.Symbol, vwapLookback)
	if len(samples) < vwapLookback {
		return p.twapQuantities(cfg)
	}

	n := clampInt(int(cfg.TimeWindow.Minutes()/3), 5, 15)

	// Bucket the lookback volumes into n slice weights.
	weights := make([]float64, n)
	var total float64
	for i, s := range samples {
		bucket := i * n / len(samples)
		weights[bucket] += s.Volume
		total += s.Volume
	}
	if total <= 0 {
		return p.twapQuantities(cfg)
	}

	out := make([]float64, n)
	var allocated float64
	for i := 0; i < n-1; i++ {
		out[i] = cfg.Quantity * weights[i] / total
		allocated += out[i]
	}
	out[n-1] = cfg.Quantity - allocated
	return out
}

// shortfallQuantities front-loads execution with exponentially decaying
// weights scaled by aggressiveness, capping each slice at 40% of the
// remaining quantity; the cap shortfall is spread evenly afterwards so the
// sum stays exact.
func shortfallQuantities(cfg domain.ParentOrderConfig) []float64 {
	n := clampInt(int(cfg.TimeWindow.Minutes()/5), 3, 12)
	mult := cfg.Aggressiveness.Multiplier()

	weights := make([]float64, n)
	var sum float64
	for i := range weights {
		weights[i] = math.Exp(-0.3 * float64(i))
		sum += weights[i]
	}

	out := make([]float64, n)
	remaining := cfg.Quantity
	var allocated float64
	for i := range out {
		qty := cfg.Quantity * weights[i] / sum * mult
		if cap := 0.4 * remaining; qty > cap {
			qty = cap
		}
		out[i] = qty
		remaining -= qty
		allocated += qty
	}

	// True up the cap/multiplier drift evenly across all slices.
	adjust := (cfg.Quantity - allocated) / float64(n)
	for i := range out {
		out[i] += adjust
	}
	return out
}

// arrivalQuantities uses a U-shaped weighting, heavier at the start and end
// of the window, normalized so the sum is exact.
func arrivalQuantities(cfg domain.ParentOrderConfig) []float64 {
	n := clampInt(int(cfg.TimeWindow.Minutes()/1.5), 8, 25)
	mult := cfg.Aggressiveness.Multiplier()

	weights := make([]float64, n)
	var sum float64
	for i := range weights {
		pos := 0.5
		if n > 1 {
			pos = float64(i) / float64(n-1)
		}
		weights[i] = (1 + 0.5*4*(pos-0.5)*(pos-0.5)) * mult
		sum += weights[i]
	}

	out := make([]float64, n)
	var allocated float64
	for i := 0; i < n-1; i++ {
		out[i] = cfg.Quantity * weights[i] / sum
		allocated += out[i]
	}
	out[n-1] = cfg.Quantity - allocated
	return out
}
