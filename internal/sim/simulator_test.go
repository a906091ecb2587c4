package sim

import (
	"context"
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

type stubFeed struct {
	samples map[string]domain.PriceSample
}

func (f *stubFeed) Latest(symbol string) (domain.PriceSample, error) {
	s, ok := f.samples[symbol]
	if !ok {
		return domain.PriceSample{}, domain.ErrNoMarketData
	}
	return s, nil
}

func (f *stubFeed) History(string, int) []domain.PriceSample { return nil }

func (f *stubFeed) Subscribe(string) (<-chan domain.PriceSample, func()) {
	return make(chan domain.PriceSample), func() {}
}

var _ domain.PriceFeed = (*stubFeed)(nil)

func testSim(t *testing.T) *Simulator {
	t.Helper()
	feed := &stubFeed{samples: map[string]domain.PriceSample{
		"BTCUSDT": {Symbol: "BTCUSDT", Price: 100, Volume: 5, Timestamp: time.Now().UTC()},
	}}
	// Seed 1 keeps the first several fill draws below the market-order
	// probability, so fills in these tests are deterministic.
	return New(feed, Config{Capital: 100_000, RiskPercent: 0.01}, 1, testLogger())
}

func marketOrder(side domain.OrderSide, qty float64) domain.Order {
	return domain.Order{
		ExecutionID: "exec-1",
		Symbol:      "BTCUSDT",
		Side:        side,
		Type:        domain.OrderTypeMarket,
		Quantity:    qty,
	}
}

func TestSlippageComponents(t *testing.T) {
	// Base only: tiny order, full conviction.
	assert.InDelta(t, 0.0001, slippageFor(1, 1.0), 1e-12)

	// Quantity impact scales linearly below the clamp.
	assert.InDelta(t, 0.0001+0.0005, slippageFor(50_000, 1.0), 1e-12)

	// And clamps at 0.1% no matter how large the order.
	assert.InDelta(t, 0.0001+0.001, slippageFor(1e6, 1.0), 1e-12)
	assert.InDelta(t, 0.0001+0.001, slippageFor(1e9, 1.0), 1e-12)

	// Weak conviction adds up to 0.05%.
	assert.InDelta(t, 0.0001+0.0005, slippageFor(1, 0.0), 1e-12)
}

func TestFillProbability(t *testing.T) {
	assert.InDelta(t, 0.95, fillProbability(domain.OrderTypeMarket, 1.0), 1e-12)
	assert.InDelta(t, 0.475, fillProbability(domain.OrderTypeMarket, 0.0), 1e-12)
	assert.InDelta(t, 0.80, fillProbability(domain.OrderTypeLimit, 1.0), 1e-12)
	assert.LessOrEqual(t, fillProbability(domain.OrderTypeMarket, 1.0), 0.98)
}

func TestSubmitBuyPaysUp(t *testing.T) {
	s := testSim(t)

	res, err := s.Submit(context.Background(), marketOrder(domain.OrderSideBuy, 10))
	require.NoError(t, err)
	require.True(t, res.Filled)

	assert.Greater(t, res.ExecutedPx, 100.0)
	assert.InDelta(t, 10.0, res.ExecutedQty, 1e-12)
	assert.InDelta(t, res.ExecutedPx*10*0.001, res.Fees, 1e-9)
	assert.InDelta(t, slippageFor(10, 1.0), res.Slippage, 1e-12)
}

func TestSubmitSellReceivesLess(t *testing.T) {
	s := testSim(t)

	res, err := s.Submit(context.Background(), marketOrder(domain.OrderSideSell, 10))
	require.NoError(t, err)
	require.True(t, res.Filled)
	assert.Less(t, res.ExecutedPx, 100.0)
}

func TestSubmitUsesOrderPriceWhenSet(t *testing.T) {
	s := testSim(t)

	order := marketOrder(domain.OrderSideBuy, 10)
	order.Price = 99.5
	res, err := s.Submit(context.Background(), order)
	require.NoError(t, err)
	require.True(t, res.Filled)
	assert.InDelta(t, 99.5*(1+res.Slippage), res.ExecutedPx, 1e-9)
}

func TestSubmitNoReferencePrice(t *testing.T) {
	s := testSim(t)

	order := marketOrder(domain.OrderSideBuy, 10)
	order.Symbol = "UNKNOWN"
	_, err := s.Submit(context.Background(), order)
	require.ErrorIs(t, err, domain.ErrNoMarketData)
}

func TestSubmitCancelledContext(t *testing.T) {
	s := testSim(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Submit(ctx, marketOrder(domain.OrderSideBuy, 10))
	require.ErrorIs(t, err, context.Canceled)
}

func TestExecuteDerivesQuantityFromSignal(t *testing.T) {
	s := testSim(t)

	sig := domain.Signal{
		ID:       "sig-1",
		Symbol:   "BTCUSDT",
		Side:     domain.OrderSideBuy,
		Strength: 1.0,
		Price:    100,
	}
	order, trade, err := s.Execute(context.Background(), marketOrder(domain.OrderSideBuy, 0), sig)
	require.NoError(t, err)
	require.NotNil(t, trade)

	// floor(100000 * 0.01 * 1.0 / 100) = 10 units.
	assert.InDelta(t, 10.0, order.Quantity, 1e-12)
	assert.Equal(t, domain.OrderStatusFilled, order.Status)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, "sig-1", trade.SignalID)
	assert.Nil(t, trade.Profit, "opening trade carries no profit")
}

func TestProfitAttributionRoundTrip(t *testing.T) {
	s := testSim(t)

	sig := domain.Signal{ID: "sig-1", Symbol: "BTCUSDT", Strength: 1.0, Price: 100}

	_, buy, err := s.Execute(context.Background(), marketOrder(domain.OrderSideBuy, 10), sig)
	require.NoError(t, err)
	require.NotNil(t, buy)

	_, sell, err := s.Execute(context.Background(), marketOrder(domain.OrderSideSell, 10), sig)
	require.NoError(t, err)
	require.NotNil(t, sell)

	require.NotNil(t, sell.Profit)
	want := (sell.Price-buy.Price)*10 - sell.Fees - buy.Fees
	assert.InDelta(t, want, *sell.Profit, 1e-9)
}

func TestProfitAttributionUsesSmallerQuantity(t *testing.T) {
	s := testSim(t)

	sig := domain.Signal{ID: "sig-1", Symbol: "BTCUSDT", Strength: 1.0, Price: 100}

	_, buy, err := s.Execute(context.Background(), marketOrder(domain.OrderSideBuy, 10), sig)
	require.NoError(t, err)
	require.NotNil(t, buy)

	_, sell, err := s.Execute(context.Background(), marketOrder(domain.OrderSideSell, 4), sig)
	require.NoError(t, err)
	require.NotNil(t, sell)

	require.NotNil(t, sell.Profit)
	want := (sell.Price-buy.Price)*4 - sell.Fees - buy.Fees
	assert.InDelta(t, want, *sell.Profit, 1e-9)
}

func TestForgetDropsLookbackState(t *testing.T) {
	s := testSim(t)

	sig := domain.Signal{ID: "sig-1", Symbol: "BTCUSDT", Strength: 1.0, Price: 100}

	_, buy, err := s.Execute(context.Background(), marketOrder(domain.OrderSideBuy, 10), sig)
	require.NoError(t, err)
	require.NotNil(t, buy)

	s.Forget("exec-1")

	_, sell, err := s.Execute(context.Background(), marketOrder(domain.OrderSideSell, 10), sig)
	require.NoError(t, err)
	require.NotNil(t, sell)
	assert.Nil(t, sell.Profit)
}
