package risk

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMalluBot/stratosphere-trading-hub-sub004/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSignal(symbol string, strength, expectedReturn float64) domain.Signal {
	return domain.Signal{
		ID:             symbol + "-sig",
		Symbol:         symbol,
		Side:           domain.OrderSideBuy,
		Strength:       strength,
		Price:          100,
		ExpectedReturn: expectedReturn,
		Timestamp:      time.Now().UTC(),
	}
}

func TestKellyFractionClampedToMax(t *testing.T) {
	s := NewSizer(DefaultSizerConfig(), testLogger())

	// Strength 1 with positive edge pushes raw Kelly to 1; the clamp holds.
	k := s.kellyFraction(testSignal("BTCUSDT", 1.0, 0.03))
	assert.InDelta(t, 0.25, k, 1e-9)
}

func TestKellyFractionZeroOnBadEdge(t *testing.T) {
	s := NewSizer(DefaultSizerConfig(), testLogger())

	assert.Zero(t, s.kellyFraction(testSignal("BTCUSDT", 0.9, 0)))
	assert.Zero(t, s.kellyFraction(testSignal("BTCUSDT", 0.9, -0.02)))

	// Weak signal with thin edge: b*p - q < 0.
	assert.Zero(t, s.kellyFraction(testSignal("BTCUSDT", 0.1, 0.005)))
}

func TestSizeEmptyInputs(t *testing.T) {
	s := NewSizer(DefaultSizerConfig(), testLogger())

	assert.Nil(t, s.Size(nil, 100_000))
	assert.Nil(t, s.Size([]domain.Signal{testSignal("BTCUSDT", 0.8, 0.02)}, 0))
}

func TestSizeRespectsPortfolioVARBudget(t *testing.T) {
	cfg := DefaultSizerConfig()
	s := NewSizer(cfg, testLogger())

	signals := []domain.Signal{
		testSignal("BTCUSDT", 0.9, 0.03),
		testSignal("ETHUSDT", 0.8, 0.025),
		testSignal("SOLUSDT", 0.85, 0.02),
		testSignal("BNBUSDT", 0.7, 0.015),
		testSignal("XRPUSDT", 0.75, 0.018),
	}

	out := s.Size(signals, 100_000)
	require.NotEmpty(t, out)

	var used float64
	for _, p := range out {
		assert.Greater(t, p.Size, 0.0)
		assert.LessOrEqual(t, p.Size, p.VARConstrainedSize+1e-9)
		used += p.RiskContribution
	}
	assert.LessOrEqual(t, used, cfg.MaxPortfolioVAR+1e-9)
}

func TestSizeRanksByRiskAdjustedReturn(t *testing.T) {
	s := NewSizer(DefaultSizerConfig(), testLogger())
	s.SetVolatility("GOOD", 0.02)
	s.SetVolatility("WEAK", 0.02)

	out := s.Size([]domain.Signal{
		testSignal("WEAK", 0.2, 0.01),
		testSignal("GOOD", 0.9, 0.03),
	}, 100_000)

	require.NotEmpty(t, out)
	assert.Equal(t, "GOOD", out[0].Signal.Symbol)
}

func TestSizeZeroVolatilitySkipsVARConstraint(t *testing.T) {
	s := NewSizer(DefaultSizerConfig(), testLogger())
	s.SetVolatility("BTCUSDT", 0)

	out := s.Size([]domain.Signal{testSignal("BTCUSDT", 0.9, 0.03)}, 100_000)
	require.Len(t, out, 1)

	// Without a volatility estimate the VAR cap never binds.
	assert.InDelta(t, out[0].KellyFraction*100_000, out[0].VARConstrainedSize, 1e-9)
	assert.Zero(t, out[0].RiskContribution)
}

func TestRiskParityWeightsSumToOne(t *testing.T) {
	s := NewSizer(DefaultSizerConfig(), testLogger())
	s.SetVolatility("A", 0.01)
	s.SetVolatility("B", 0.02)
	s.SetVolatility("C", 0.04)

	out := s.Size([]domain.Signal{
		testSignal("A", 0.9, 0.03),
		testSignal("B", 0.9, 0.03),
		testSignal("C", 0.9, 0.03),
	}, 100_000)
	require.Len(t, out, 3)

	var wtSum float64
	for _, p := range out {
		wtSum += p.RiskParityWeight
	}
	assert.InDelta(t, 1.0, wtSum, 1e-9)

	// Lower volatility earns the larger weight.
	bySymbol := make(map[string]domain.PositionSizing, 3)
	for _, p := range out {
		bySymbol[p.Signal.Symbol] = p
	}
	assert.Greater(t, bySymbol["A"].RiskParityWeight, bySymbol["B"].RiskParityWeight)
	assert.Greater(t, bySymbol["B"].RiskParityWeight, bySymbol["C"].RiskParityWeight)
}

func TestUpdateFromSamples(t *testing.T) {
	s := NewSizer(DefaultSizerConfig(), testLogger())

	now := time.Now().UTC()
	samples := []domain.PriceSample{
		{Symbol: "BTCUSDT", Price: 100, Timestamp: now},
		{Symbol: "BTCUSDT", Price: 102, Timestamp: now.Add(time.Second)},
		{Symbol: "BTCUSDT", Price: 99, Timestamp: now.Add(2 * time.Second)},
		{Symbol: "BTCUSDT", Price: 101, Timestamp: now.Add(3 * time.Second)},
	}
	s.UpdateFromSamples("BTCUSDT", samples)

	sig := testSignal("BTCUSDT", 0.5, 0.02)
	assert.Greater(t, s.volatility(sig), 0.0)

	// Constant prices collapse volatility to zero.
	flat := []domain.PriceSample{
		{Symbol: "ETHUSDT", Price: 50, Timestamp: now},
		{Symbol: "ETHUSDT", Price: 50, Timestamp: now.Add(time.Second)},
		{Symbol: "ETHUSDT", Price: 50, Timestamp: now.Add(2 * time.Second)},
	}
	s.UpdateFromSamples("ETHUSDT", flat)
	assert.Zero(t, s.volatility(testSignal("ETHUSDT", 0.5, 0.02)))
}

func TestUpdateFromSamplesNeedsHistory(t *testing.T) {
	s := NewSizer(DefaultSizerConfig(), testLogger())

	now := time.Now().UTC()
	s.UpdateFromSamples("BTCUSDT", []domain.PriceSample{
		{Symbol: "BTCUSDT", Price: 100, Timestamp: now},
		{Symbol: "BTCUSDT", Price: 101, Timestamp: now.Add(time.Second)},
	})

	// Cache untouched: the strength-adjusted baseline still applies.
	sig := testSignal("BTCUSDT", 1.0, 0.02)
	assert.InDelta(t, 0.01, s.volatility(sig), 1e-9)
}
