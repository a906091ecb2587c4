package ledger

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

func filledOrder(id string) domain.Order {
	return domain.Order{
		ID:          id,
		ExecutionID: "exec-1",
		Symbol:      "BTCUSDT",
		Side:        domain.OrderSideBuy,
		Type:        domain.OrderTypeMarket,
		Quantity:    10,
		Price:       100,
		Status:      domain.OrderStatusFilled,
		ExecutedQty: 10,
		ExecutedPx:  100.05,
		Fees:        1.0005,
		CreatedAt:   time.Now().UTC(),
	}
}

func tradeFor(order domain.Order, slippage float64) *domain.Trade {
	return &domain.Trade{
		ID:          "trade-" + order.ID,
		ExecutionID: order.ExecutionID,
		Symbol:      order.Symbol,
		Side:        order.Side,
		Price:       order.ExecutedPx,
		Quantity:    order.ExecutedQty,
		Fees:        order.Fees,
		Slippage:    slippage,
		Timestamp:   time.Now().UTC(),
	}
}

func TestRecordAccumulatesStats(t *testing.T) {
	l := New(testLogger())
	ctx := context.Background()

	o1 := filledOrder("o1")
	l.Record(ctx, "exec-1", o1, tradeFor(o1, 0.0002))

	o2 := filledOrder("o2")
	o2.Fees = 2.0
	l.Record(ctx, "exec-1", o2, tradeFor(o2, 0.0004))

	rejected := filledOrder("o3")
	rejected.Status = domain.OrderStatusRejected
	rejected.ExecutedQty = 0
	l.Record(ctx, "exec-1", rejected, nil)

	st, ok := l.Stats("exec-1")
	require.True(t, ok)
	assert.Equal(t, 3, st.TotalOrders)
	assert.Equal(t, 2, st.FilledOrders)
	assert.Equal(t, 1, st.RejectedOrders)
	assert.Equal(t, 2, st.TradeCount)
	assert.InDelta(t, 2.0/3.0, st.FillRate, 1e-9)
	assert.InDelta(t, 0.0003, st.AvgSlippage, 1e-12)
	assert.InDelta(t, (1.0005+2.0)/2, st.AvgFees, 1e-9)
}

func TestStatsUnknownExecution(t *testing.T) {
	l := New(testLogger())

	_, ok := l.Stats("nope")
	assert.False(t, ok)
}

func TestOrdersAndTradesReturnCopies(t *testing.T) {
	l := New(testLogger())
	ctx := context.Background()

	o := filledOrder("o1")
	l.Record(ctx, "exec-1", o, tradeFor(o, 0.0002))

	orders := l.Orders("exec-1")
	require.Len(t, orders, 1)
	orders[0].Quantity = -1

	again := l.Orders("exec-1")
	require.Len(t, again, 1)
	assert.InDelta(t, 10.0, again[0].Quantity, 1e-12)

	trades := l.Trades("exec-1")
	require.Len(t, trades, 1)
	trades[0].Price = -1
	assert.InDelta(t, 100.05, l.Trades("exec-1")[0].Price, 1e-12)
}

func TestEmptyExecutionReturnsEmptySlices(t *testing.T) {
	l := New(testLogger())

	assert.Empty(t, l.Orders("exec-1"))
	assert.Empty(t, l.Trades("exec-1"))
}

func TestCleanupRemovesAllRecords(t *testing.T) {
	l := New(testLogger())
	ctx := context.Background()

	o := filledOrder("o1")
	l.Record(ctx, "exec-1", o, tradeFor(o, 0.0002))
	l.Record(ctx, "exec-2", filledOrder("o2"), nil)

	l.Cleanup("exec-1")

	assert.Empty(t, l.Orders("exec-1"))
	assert.Empty(t, l.Trades("exec-1"))
	_, ok := l.Stats("exec-1")
	assert.False(t, ok)

	// Other executions are untouched.
	assert.Len(t, l.Orders("exec-2"), 1)
}

// failingStore always errors; persistence failures must never surface.
type failingStore struct{}

func (failingStore) Create(context.Context, domain.Order) error {
	return assert.AnError
}

func (failingStore) ListByExecution(context.Context, string) ([]domain.Order, error) {
	return nil, assert.AnError
}

type failingTradeStore struct{}

func (failingTradeStore) Create(context.Context, domain.Trade) error {
	return assert.AnError
}

func (failingTradeStore) ListByExecution(context.Context, string) ([]domain.Trade, error) {
	return nil, assert.AnError
}

func (failingTradeStore) ListBySymbol(context.Context, string, domain.ListOpts) ([]domain.Trade, error) {
	return nil, assert.AnError
}

func TestStoreFailuresStayLocal(t *testing.T) {
	l := New(testLogger()).WithStores(failingStore{}, failingTradeStore{})
	ctx := context.Background()

	o := filledOrder("o1")
	l.Record(ctx, "exec-1", o, tradeFor(o, 0.0002))

	// In-memory records are authoritative regardless of store errors.
	assert.Len(t, l.Orders("exec-1"), 1)
	assert.Len(t, l.Trades("exec-1"), 1)
}
