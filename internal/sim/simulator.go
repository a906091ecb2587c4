// Package sim implements a stochastic execution venue: fills, slippage, and
// fees are modeled against feed prices with a seeded PRNG so runs are
// reproducible. It stands in for a real broker adapter behind the router's
// submission interface.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TheMalluBot/stratosphere-trading-hub-sub004/internal/domain"
)

const (
	baseSlippage     = 0.0001 // 0.01%
	maxQtyImpact     = 0.001  // quantity impact clamps at 0.1%
	qtyImpactPerUnit = 1e-8   // 0.01% per 10k units
	feeRate          = 0.001  // flat 0.1% of notional
	fillProbMarket   = 0.95
	fillProbLimit    = 0.80
	fillProbCap      = 0.98
)

// Config holds the simulated account parameters used when deriving order
// quantity from a raw signal.
type Config struct {
	Capital     float64 // simulated account equity
	RiskPercent float64 // fraction of capital risked per signal
}

// Simulator models order execution. Safe for concurrent use.
type Simulator struct {
	feed   domain.PriceFeed
	cfg    Config
	logger *slog.Logger

	rng   *rand.Rand
	rngMu sync.Mutex

	// lastTrades keeps the most recent trade per execution id and side for
	// single-lookback profit attribution. Not full lot accounting.
	mu         sync.Mutex
	lastTrades map[string]domain.Trade
}

// New creates a Simulator reading reference prices from feed. The seed makes
// fill draws reproducible.
func New(feed domain.PriceFeed, cfg Config, seed int64, logger *slog.Logger) *Simulator {
	return &Simulator{
		feed:       feed,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "simulator")),
		rng:        rand.New(rand.NewSource(seed)),
		lastTrades: make(map[string]domain.Trade),
	}
}

// slippageFor returns the total adverse slippage fraction for an order.
func slippageFor(quantity, strength float64) float64 {
	qtyImpact := math.Min(quantity*qtyImpactPerUnit, maxQtyImpact)
	strengthImpact := (1 - strength) * 0.0005
	return baseSlippage + qtyImpact + strengthImpact
}

// fillProbability combines the per-type base probability with signal
// strength, capped below certainty.
func fillProbability(orderType domain.OrderType, strength float64) float64 {
	base := fillProbMarket
	if orderType == domain.OrderTypeLimit {
		base = fillProbLimit
	}
	p := base * (0.5 + strength*0.5)
	return math.Min(p, fillProbCap)
}

func (s *Simulator) draw() float64 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Float64()
}

// Submit executes a child order against the current reference price. A
// rejected outcome is a normal result, not an error: the caller sees
// Filled=false with zero executed quantity. Child orders submitted by the
// router carry no signal strength; they are treated as full-conviction.
func (s *Simulator) Submit(ctx context.Context, order domain.Order) (domain.SubmitResult, error) {
	return s.fill(ctx, order, 1.0)
}

func (s *Simulator) fill(ctx context.Context, order domain.Order, strength float64) (domain.SubmitResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.SubmitResult{}, err
	}
	ref, err := s.feed.Latest(order.Symbol)
	if err != nil {
		return domain.SubmitResult{}, fmt.Errorf("sim: reference price for %q: %w", order.Symbol, err)
	}

	if s.draw() > fillProbability(order.Type, strength) {
		return domain.SubmitResult{Filled: false}, nil
	}

	slip := slippageFor(order.Quantity, strength)
	px := ref.Price
	if order.Price > 0 {
		px = order.Price
	}
	// Buys pay up, sells receive less.
	if order.Side == domain.OrderSideBuy {
		px *= 1 + slip
	} else {
		px *= 1 - slip
	}

	return domain.SubmitResult{
		Filled:      true,
		ExecutedQty: order.Quantity,
		ExecutedPx:  px,
		Fees:        px * order.Quantity * feeRate,
		Slippage:    slip,
	}, nil
}

// Execute runs a signal-driven order through the fill model and produces the
// final Order plus a Trade when filled. When the order carries no quantity it
// is derived from the simulated account: floor(capital * riskPercent *
// strength / price).
func (s *Simulator) Execute(ctx context.Context, order domain.Order, sig domain.Signal) (domain.Order, *domain.Trade, error) {
	if order.Quantity <= 0 && sig.Price > 0 {
		order.Quantity = math.Floor(s.cfg.Capital * s.cfg.RiskPercent * sig.Strength / sig.Price)
	}
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}

	res, err := s.fill(ctx, order, sig.Strength)
	if err != nil {
		return order, nil, err
	}
	if !res.Filled {
		order.Status = domain.OrderStatusRejected
		order.ExecutedQty = 0
		s.logger.DebugContext(ctx, "order rejected by fill model",
			slog.String("order_id", order.ID),
			slog.String("symbol", order.Symbol),
		)
		return order, nil, nil
	}

	order.Status = domain.OrderStatusFilled
	order.ExecutedQty = res.ExecutedQty
	order.ExecutedPx = res.ExecutedPx
	order.Fees = res.Fees

	trade := domain.Trade{
		ID:          uuid.New().String(),
		ExecutionID: order.ExecutionID,
		SignalID:    sig.ID,
		Symbol:      order.Symbol,
		Side:        order.Side,
		Price:       res.ExecutedPx,
		Quantity:    res.ExecutedQty,
		Fees:        res.Fees,
		Slippage:    res.Slippage,
		Timestamp:   time.Now().UTC(),
	}
	s.attributeProfit(&trade)

	return order, &trade, nil
}

// attributeProfit sets Profit on a closing trade by looking back at the most
// recent opposite-direction trade for the same execution id, then records
// the trade as the new lookback entry for its own direction.
func (s *Simulator) attributeProfit(t *domain.Trade) {
	opposite := domain.OrderSideBuy
	if t.Side == domain.OrderSideBuy {
		opposite = domain.OrderSideSell
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.lastTrades[t.ExecutionID+":"+string(opposite)]; ok {
		qty := math.Min(t.Quantity, prev.Quantity)
		var profit float64
		if t.Side == domain.OrderSideSell {
			profit = (t.Price - prev.Price) * qty
		} else {
			profit = (prev.Price - t.Price) * qty
		}
		profit -= t.Fees + prev.Fees
		t.Profit = &profit
	}
	s.lastTrades[t.ExecutionID+":"+string(t.Side)] = *t
}

// Forget drops the profit-attribution lookback state for an execution.
// The router calls this when a terminal execution is cleaned up, so the
// lookback map does not grow without bound.
func (s *Simulator) Forget(executionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lastTrades, executionID+":"+string(domain.OrderSideBuy))
	delete(s.lastTrades, executionID+":"+string(domain.OrderSideSell))
}
