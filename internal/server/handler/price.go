package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/TheMalluBot/stratosphere-trading-hub-sub004/internal/domain"
	"github.com/TheMalluBot/stratosphere-trading-hub-sub004/internal/feed"
)

// PriceHandler serves market data endpoints backed by the in-process feed hub,
// with an optional Redis cache behind it. The cache answers for symbols the
// hub has not seen yet, which matters right after a restart when Redis still
// holds the last mirrored quotes.
type PriceHandler struct {
	hub    *feed.Hub
	cache  domain.PriceCache // may be nil when the cache is disabled
	logger *slog.Logger
}

// NewPriceHandler creates a PriceHandler. cache may be nil.
func NewPriceHandler(hub *feed.Hub, cache domain.PriceCache, logger *slog.Logger) *PriceHandler {
	return &PriceHandler{hub: hub, cache: cache, logger: logHandler(logger, "prices")}
}

type priceResponse struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Volume    float64 `json:"volume"`
	Timestamp int64   `json:"timestamp"` // Unix milliseconds
	Cached    bool    `json:"cached,omitempty"`
}

func toPriceResponse(s domain.PriceSample) priceResponse {
	return priceResponse{
		Symbol:    s.Symbol,
		Price:     s.Price,
		Volume:    s.Volume,
		Timestamp: s.Timestamp.UnixMilli(),
	}
}

// ListPrices returns the latest sample for every tracked symbol. With
// ?symbols=a,b,c it answers for that set instead, filling symbols the hub
// does not track from the cache.
// GET /api/prices
func (h *PriceHandler) ListPrices(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("symbols"); raw != "" {
		h.listRequestedPrices(w, r, strings.Split(raw, ","))
		return
	}

	symbols := h.hub.Symbols()
	out := make([]priceResponse, 0, len(symbols))
	for _, sym := range symbols {
		sample, err := h.hub.Latest(sym)
		if err != nil {
			continue
		}
		out = append(out, toPriceResponse(sample))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *PriceHandler) listRequestedPrices(w http.ResponseWriter, r *http.Request, symbols []string) {
	out := make([]priceResponse, 0, len(symbols))
	var misses []string
	for _, sym := range symbols {
		sym = strings.TrimSpace(sym)
		if sym == "" {
			continue
		}
		sample, err := h.hub.Latest(sym)
		if err != nil {
			misses = append(misses, sym)
			continue
		}
		out = append(out, toPriceResponse(sample))
	}

	if len(misses) > 0 && h.cache != nil {
		cached, err := h.cache.GetPrices(r.Context(), misses)
		if err != nil {
			h.logger.WarnContext(r.Context(), "price cache lookup failed",
				slog.String("error", err.Error()),
			)
		}
		for _, sym := range misses {
			price, ok := cached[sym]
			if !ok {
				continue
			}
			out = append(out, priceResponse{Symbol: sym, Price: price, Cached: true})
		}
	}

	writeJSON(w, http.StatusOK, out)
}

// GetPrice returns the latest sample for one symbol, with optional history
// via the ?history=N query parameter. When the hub has no data for the
// symbol, the cache is consulted before answering 404.
// GET /api/prices/{symbol}
func (h *PriceHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	symbol := pathParam(r, "symbol")

	latest, err := h.hub.Latest(symbol)
	if err != nil {
		if errors.Is(err, domain.ErrNoMarketData) {
			h.getCachedPrice(w, r, symbol)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to read price")
		return
	}

	resp := map[string]any{"latest": toPriceResponse(latest)}

	if v := r.URL.Query().Get("history"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "history must be a positive integer")
			return
		}
		samples := h.hub.History(symbol, n)
		hist := make([]priceResponse, len(samples))
		for i, s := range samples {
			hist[i] = toPriceResponse(s)
		}
		resp["history"] = hist
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *PriceHandler) getCachedPrice(w http.ResponseWriter, r *http.Request, symbol string) {
	if h.cache == nil {
		writeError(w, http.StatusNotFound, "no market data for symbol")
		return
	}
	price, ts, err := h.cache.GetPrice(r.Context(), symbol)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no market data for symbol")
			return
		}
		h.logger.WarnContext(r.Context(), "price cache lookup failed",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusNotFound, "no market data for symbol")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"latest": priceResponse{
			Symbol:    symbol,
			Price:     price,
			Timestamp: ts.UnixMilli(),
			Cached:    true,
		},
	})
}
