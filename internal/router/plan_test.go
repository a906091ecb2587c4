package router

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMalluBot/stratosphere-trading-hub-sub004/internal/domain"
)

// stubFeed is a minimal in-memory PriceFeed for planner and router tests.
type stubFeed struct {
	samples map[string][]domain.PriceSample
}

func newStubFeed() *stubFeed {
	return &stubFeed{samples: make(map[string][]domain.PriceSample)}
}

func (f *stubFeed) push(s domain.PriceSample) {
	f.samples[s.Symbol] = append(f.samples[s.Symbol], s)
}

func (f *stubFeed) Latest(symbol string) (domain.PriceSample, error) {
	ss := f.samples[symbol]
	if len(ss) == 0 {
		return domain.PriceSample{}, domain.ErrNoMarketData
	}
	return ss[len(ss)-1], nil
}

func (f *stubFeed) History(symbol string, n int) []domain.PriceSample {
	ss := f.samples[symbol]
	if len(ss) <= n {
		return ss
	}
	return ss[len(ss)-n:]
}

func (f *stubFeed) Subscribe(symbol string) (<-chan domain.PriceSample, func()) {
	ch := make(chan domain.PriceSample)
	return ch, func() {}
}

var _ domain.PriceFeed = (*stubFeed)(nil)

func sumQuantities(slices []domain.OrderSlice) float64 {
	var sum float64
	for _, s := range slices {
		sum += s.Quantity
	}
	return sum
}

func baseConfig(algo domain.SchedulingAlgorithm, window time.Duration) domain.ParentOrderConfig {
	return domain.ParentOrderConfig{
		Symbol:         "BTCUSDT",
		Quantity:       1000,
		Side:           domain.OrderSideBuy,
		Algorithm:      algo,
		TimeWindow:     window,
		Aggressiveness: domain.AggressivenessNeutral,
	}
}

func TestPlanTWAP(t *testing.T) {
	p := newPlanner(newStubFeed(), 42)
	cfg := baseConfig(domain.AlgoTWAP, 30*time.Minute)
	start := time.Now().UTC()

	slices := p.plan(cfg, start)

	// 30 minutes / 2 = 15 slices, within the [5, 20] clamp.
	require.Len(t, slices, 15)

	base := cfg.Quantity / float64(len(slices))
	for _, s := range slices {
		assert.InDelta(t, base, s.Quantity, base*0.1+1e-9)
	}

	// Jitter is deliberately not renormalized; the total drifts but stays
	// within the aggregate jitter bound.
	assert.InDelta(t, cfg.Quantity, sumQuantities(slices), cfg.Quantity*0.1)
}

func TestPlanTWAPClamps(t *testing.T) {
	p := newPlanner(newStubFeed(), 1)

	short := p.plan(baseConfig(domain.AlgoTWAP, 2*time.Minute), time.Now())
	assert.Len(t, short, 5)

	long := p.plan(baseConfig(domain.AlgoTWAP, 4*time.Hour), time.Now())
	assert.Len(t, long, 20)
}

func TestPlanVWAPExactSum(t *testing.T) {
	f := newStubFeed()
	now := time.Now().UTC()
	for i := 0; i < 25; i++ {
		f.push(domain.PriceSample{
			Symbol:    "BTCUSDT",
			Price:     100,
			Volume:    float64(10 + i*5),
			Timestamp: now.Add(time.Duration(i) * time.Second),
		})
	}

	p := newPlanner(f, 1)
	cfg := baseConfig(domain.AlgoVWAP, 30*time.Minute)
	slices := p.plan(cfg, now)

	// 30 minutes / 3 = 10 slices, within the [5, 15] clamp.
	require.Len(t, slices, 10)
	assert.InDelta(t, cfg.Quantity, sumQuantities(slices), 1e-9)
}

func TestPlanVWAPFallsBackToTWAP(t *testing.T) {
	f := newStubFeed()
	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		f.push(domain.PriceSample{Symbol: "BTCUSDT", Price: 100, Volume: 10, Timestamp: now})
	}

	p := newPlanner(f, 1)
	slices := p.plan(baseConfig(domain.AlgoVWAP, 30*time.Minute), now)

	// Too little history: TWAP slice count, not VWAP's.
	assert.Len(t, slices, 15)
}

func TestPlanShortfallExactSumAndFrontLoad(t *testing.T) {
	p := newPlanner(newStubFeed(), 1)
	cfg := baseConfig(domain.AlgoShortfall, 30*time.Minute)
	cfg.Aggressiveness = domain.AggressivenessAggressive
	slices := p.plan(cfg, time.Now().UTC())

	// 30 minutes / 5 = 6 slices, within the [3, 12] clamp.
	require.Len(t, slices, 6)
	assert.InDelta(t, cfg.Quantity, sumQuantities(slices), 1e-9)

	// Front-loaded: first slice is the largest.
	for _, s := range slices[1:] {
		assert.LessOrEqual(t, s.Quantity, slices[0].Quantity)
	}

	// No slice exceeded 40% of what remained when it was planned.
	remaining := cfg.Quantity
	adjustBound := cfg.Quantity // the even true-up can only add so much
	for _, s := range slices {
		assert.LessOrEqual(t, s.Quantity, 0.4*remaining+adjustBound/float64(len(slices)))
		remaining -= s.Quantity
	}
}

func TestPlanArrivalExactSumAndUShape(t *testing.T) {
	p := newPlanner(newStubFeed(), 1)
	cfg := baseConfig(domain.AlgoArrival, 30*time.Minute)
	slices := p.plan(cfg, time.Now().UTC())

	// 30 minutes / 1.5 = 20 slices, within the [8, 25] clamp.
	require.Len(t, slices, 20)
	assert.InDelta(t, cfg.Quantity, sumQuantities(slices), 1e-9)

	// U-shape: endpoints are heavier than the middle.
	mid := slices[len(slices)/2].Quantity
	assert.Greater(t, slices[0].Quantity, mid)
	assert.Greater(t, slices[len(slices)-2].Quantity, mid)
}

func TestPlanScheduleIsEvenAndInsideWindow(t *testing.T) {
	p := newPlanner(newStubFeed(), 7)
	cfg := baseConfig(domain.AlgoTWAP, 30*time.Minute)
	start := time.Now().UTC()
	slices := p.plan(cfg, start)

	deadline := start.Add(cfg.TimeWindow)
	interval := cfg.TimeWindow / time.Duration(len(slices))
	for i, s := range slices {
		assert.Equal(t, start.Add(interval*time.Duration(i)), s.ScheduledAt)
		assert.True(t, s.ScheduledAt.Before(deadline))
	}
}

func TestPlanMinFillSizeLowersSliceCount(t *testing.T) {
	p := newPlanner(newStubFeed(), 1)
	cfg := baseConfig(domain.AlgoTWAP, 30*time.Minute)
	cfg.Quantity = 100
	cfg.MinFillSize = 30

	slices := p.plan(cfg, time.Now().UTC())

	require.Len(t, slices, 3)
	assert.InDelta(t, cfg.Quantity, sumQuantities(slices), 1e-9)
	for _, s := range slices {
		assert.GreaterOrEqual(t, s.Quantity, cfg.MinFillSize)
	}
}

func TestPlanSeededJitterIsReproducible(t *testing.T) {
	cfg := baseConfig(domain.AlgoTWAP, 30*time.Minute)
	start := time.Now().UTC()

	a := newPlanner(newStubFeed(), 99).plan(cfg, start)
	b := newPlanner(newStubFeed(), 99).plan(cfg, start)

	require.Len(t, b, len(a))
	for i := range a {
		assert.Equal(t, a[i].Quantity, b[i].Quantity)
	}
}
