package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/TheMalluBot/stratosphere-trading-hub-sub004/internal/domain"
)

// BinanceSource streams public aggTrade events over websocket and publishes
// them into a Hub. It reconnects with capped exponential backoff.
type BinanceSource struct {
	hub     *Hub
	url     string
	symbols []string
	logger  *slog.Logger
}

// NewBinanceSource creates a live feed source for the given symbols.
func NewBinanceSource(hub *Hub, wsURL string, symbols []string, logger *slog.Logger) *BinanceSource {
	return &BinanceSource{
		hub:     hub,
		url:     wsURL,
		symbols: symbols,
		logger:  logger.With(slog.String("component", "binance_feed")),
	}
}

// aggTrade is the subset of the Binance aggTrade payload we consume.
type aggTrade struct {
	Event    string `json:"e"`
	Symbol   string `json:"s"`
	Price    string `json:"p"`
	Quantity string `json:"q"`
	TradeTs  int64  `json:"T"`
}

// Run connects, subscribes, and pumps trades into the hub until the context
// is cancelled. Connection errors trigger a reconnect, not a return.
func (b *BinanceSource) Run(ctx context.Context) error {
	b.logger.Info("live feed started", slog.Int("symbols", len(b.symbols)))
	defer b.logger.Info("live feed stopped")

	backoff := time.Second
	for {
		if err := b.stream(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.logger.Warn("feed stream dropped, reconnecting",
				slog.String("error", err.Error()),
				slog.Duration("backoff", backoff),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second
	}
}

func (b *BinanceSource) stream(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, b.url, nil)
	if err != nil {
		return fmt.Errorf("feed: dial %s: %w", b.url, err)
	}
	defer conn.Close()

	params := make([]string, 0, len(b.symbols))
	for _, s := range b.symbols {
		params = append(params, strings.ToLower(s)+"@aggTrade")
	}
	sub := map[string]any{
		"method": "SUBSCRIBE",
		"params": params,
		"id":     time.Now().Unix(),
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("feed: subscribe: %w", err)
	}

	// Close the connection when the context ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("feed: read: %w", err)
		}
		var t aggTrade
		if err := json.Unmarshal(raw, &t); err != nil || t.Event != "aggTrade" {
			continue
		}
		price, err := strconv.ParseFloat(t.Price, 64)
		if err != nil || price <= 0 {
			continue
		}
		qty, _ := strconv.ParseFloat(t.Quantity, 64)

		b.hub.Publish(ctx, domain.PriceSample{
			Symbol:    t.Symbol,
			Price:     price,
			Volume:    qty,
			Timestamp: time.UnixMilli(t.TradeTs),
		})
	}
}
