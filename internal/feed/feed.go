// Package feed buffers market data per symbol and fans pushed updates out to
// subscribers. Sources (simulated or live websocket) publish into a Hub; the
// router and sizer read from it through the domain.PriceFeed interface.
package feed

import (
	"context"
	"log/slog"
	"sync"

	"github.com/TheMalluBot/stratosphere-trading-hub-sub004/internal/domain"
)

// DefaultHistorySize is the per-symbol sample retention.
const DefaultHistorySize = 1000

// subscriberBuffer is the channel depth per subscriber. Sends never block;
// a subscriber that falls this far behind loses the oldest updates.
const subscriberBuffer = 64

// Hub implements domain.PriceFeed over bounded per-symbol ring buffers.
// Producers call Publish; consumers never block producers.
type Hub struct {
	mu      sync.RWMutex
	buffers map[string]*ringBuffer
	subs    map[string]map[int]chan domain.PriceSample
	nextSub int
	history int
	mirror  domain.PriceCache // optional, best-effort latest-price mirror
	logger  *slog.Logger
}

// NewHub creates a Hub retaining historySize samples per symbol.
func NewHub(historySize int, logger *slog.Logger) *Hub {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	return &Hub{
		buffers: make(map[string]*ringBuffer),
		subs:    make(map[string]map[int]chan domain.PriceSample),
		history: historySize,
		logger:  logger.With(slog.String("component", "price_feed")),
	}
}

// WithMirror attaches a price cache that receives every published sample.
// Mirror failures are logged and never propagate to producers.
func (h *Hub) WithMirror(mirror domain.PriceCache) *Hub {
	h.mirror = mirror
	return h
}

// Publish records a sample and pushes it to the symbol's subscribers.
func (h *Hub) Publish(ctx context.Context, s domain.PriceSample) {
	h.mu.Lock()
	rb, ok := h.buffers[s.Symbol]
	if !ok {
		rb = newRingBuffer(h.history)
		h.buffers[s.Symbol] = rb
	}
	rb.push(s)
	var targets []chan domain.PriceSample
	for _, ch := range h.subs[s.Symbol] {
		targets = append(targets, ch)
	}
	h.mu.Unlock()

	for _, ch := range targets {
		select {
		case ch <- s:
		default:
			// Subscriber is saturated; drop rather than stall the source.
		}
	}

	if h.mirror != nil {
		if err := h.mirror.SetPrice(ctx, s.Symbol, s.Price, s.Timestamp); err != nil {
			h.logger.DebugContext(ctx, "price mirror write failed",
				slog.String("symbol", s.Symbol),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Latest returns the most recent sample for the symbol.
func (h *Hub) Latest(symbol string) (domain.PriceSample, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rb, ok := h.buffers[symbol]
	if !ok {
		return domain.PriceSample{}, domain.ErrNoMarketData
	}
	s, ok := rb.latest()
	if !ok {
		return domain.PriceSample{}, domain.ErrNoMarketData
	}
	return s, nil
}

// History returns up to n most recent samples for the symbol, oldest first.
func (h *Hub) History(symbol string, n int) []domain.PriceSample {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rb, ok := h.buffers[symbol]
	if !ok {
		return nil
	}
	return rb.recent(n)
}

// Subscribe registers a push subscription for the symbol. The cancel
// function must be called to release it.
func (h *Hub) Subscribe(symbol string) (<-chan domain.PriceSample, func()) {
	ch := make(chan domain.PriceSample, subscriberBuffer)

	h.mu.Lock()
	id := h.nextSub
	h.nextSub++
	if h.subs[symbol] == nil {
		h.subs[symbol] = make(map[int]chan domain.PriceSample)
	}
	h.subs[symbol][id] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if m, ok := h.subs[symbol]; ok {
			delete(m, id)
			if len(m) == 0 {
				delete(h.subs, symbol)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Symbols returns every symbol with at least one buffered sample.
func (h *Hub) Symbols() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.buffers))
	for sym := range h.buffers {
		out = append(out, sym)
	}
	return out
}

var _ domain.PriceFeed = (*Hub)(nil)
