// Package ledger keeps the append-only record of child orders and trades per
// parent execution, with running statistics computed incrementally.
package ledger

import (
	"context"
	"log/slog"
	"sync"

	"github.com/TheMalluBot/stratosphere-trading-hub-sub004/internal/domain"
)

// ExecutionStats summarizes one execution's ledger entries. Averages are
// maintained incrementally as records arrive.
type ExecutionStats struct {
	TotalOrders    int
	FilledOrders   int
	RejectedOrders int
	TradeCount     int
	AvgSlippage    float64
	AvgFees        float64
	FillRate       float64 // filled / total
}

// Ledger is the in-memory system of record for the lifetime of an
// execution. Entries are never mutated after being appended; Cleanup is the
// explicit teardown for finished executions. Appends are mirrored
// best-effort to the attached stores when present.
type Ledger struct {
	mu     sync.RWMutex
	orders map[string][]domain.Order
	trades map[string][]domain.Trade
	stats  map[string]*ExecutionStats

	orderStore domain.OrderStore
	tradeStore domain.TradeStore
	logger     *slog.Logger
}

// New creates an empty Ledger.
func New(logger *slog.Logger) *Ledger {
	return &Ledger{
		orders: make(map[string][]domain.Order),
		trades: make(map[string][]domain.Trade),
		stats:  make(map[string]*ExecutionStats),
		logger: logger.With(slog.String("component", "ledger")),
	}
}

// WithStores attaches persistence. Store failures are logged, never
// propagated: the in-memory ledger stays authoritative.
func (l *Ledger) WithStores(orders domain.OrderStore, trades domain.TradeStore) *Ledger {
	l.orderStore = orders
	l.tradeStore = trades
	return l
}

// Record appends a child order and its optional trade to the execution's
// ledger and updates the running stats.
func (l *Ledger) Record(ctx context.Context, executionID string, order domain.Order, trade *domain.Trade) {
	l.mu.Lock()
	l.orders[executionID] = append(l.orders[executionID], order)

	st, ok := l.stats[executionID]
	if !ok {
		st = &ExecutionStats{}
		l.stats[executionID] = st
	}
	st.TotalOrders++
	switch order.Status {
	case domain.OrderStatusFilled, domain.OrderStatusPartial:
		st.FilledOrders++
	case domain.OrderStatusRejected:
		st.RejectedOrders++
	}
	st.FillRate = float64(st.FilledOrders) / float64(st.TotalOrders)

	if trade != nil {
		l.trades[executionID] = append(l.trades[executionID], *trade)
		st.TradeCount++
		n := float64(st.TradeCount)
		st.AvgSlippage += (trade.Slippage - st.AvgSlippage) / n
		st.AvgFees += (trade.Fees - st.AvgFees) / n
	}
	l.mu.Unlock()

	if l.orderStore != nil {
		if err := l.orderStore.Create(ctx, order); err != nil {
			l.logger.WarnContext(ctx, "order persist failed",
				slog.String("order_id", order.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	if trade != nil && l.tradeStore != nil {
		if err := l.tradeStore.Create(ctx, *trade); err != nil {
			l.logger.WarnContext(ctx, "trade persist failed",
				slog.String("trade_id", trade.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Orders returns a copy of the execution's order records in append order.
func (l *Ledger) Orders(executionID string) []domain.Order {
	l.mu.RLock()
	defer l.mu.RUnlock()
	src := l.orders[executionID]
	out := make([]domain.Order, len(src))
	copy(out, src)
	return out
}

// Trades returns a copy of the execution's trade records in append order.
func (l *Ledger) Trades(executionID string) []domain.Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()
	src := l.trades[executionID]
	out := make([]domain.Trade, len(src))
	copy(out, src)
	return out
}

// Stats returns the running stats for an execution. The second return is
// false when nothing has been recorded under the id.
func (l *Ledger) Stats(executionID string) (ExecutionStats, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	st, ok := l.stats[executionID]
	if !ok {
		return ExecutionStats{}, false
	}
	return *st, true
}

// Cleanup removes all in-memory records for a finished execution. Persisted
// rows are unaffected.
func (l *Ledger) Cleanup(executionID string) {
	l.mu.Lock()
	delete(l.orders, executionID)
	delete(l.trades, executionID)
	delete(l.stats, executionID)
	l.mu.Unlock()
}
