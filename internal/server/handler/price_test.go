package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMalluBot/stratosphere-trading-hub-sub004/internal/domain"
	"github.com/TheMalluBot/stratosphere-trading-hub-sub004/internal/feed"
)

// fakePriceCache returns canned prices for symbols the hub has not seen.
type fakePriceCache struct {
	prices map[string]float64
	ts     time.Time
}

func (c *fakePriceCache) SetPrice(_ context.Context, symbol string, price float64, _ time.Time) error {
	c.prices[symbol] = price
	return nil
}

func (c *fakePriceCache) GetPrice(_ context.Context, symbol string) (float64, time.Time, error) {
	p, ok := c.prices[symbol]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return p, c.ts, nil
}

func (c *fakePriceCache) GetPrices(_ context.Context, symbols []string) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, sym := range symbols {
		if p, ok := c.prices[sym]; ok {
			out[sym] = p
		}
	}
	return out, nil
}

var _ domain.PriceCache = (*fakePriceCache)(nil)

func priceMux(h *PriceHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/prices", h.ListPrices)
	mux.HandleFunc("GET /api/prices/{symbol}", h.GetPrice)
	return mux
}

func pricesTestHub(t *testing.T) *feed.Hub {
	t.Helper()
	hub := feed.NewHub(16, testLogger())
	hub.Publish(context.Background(), domain.PriceSample{
		Symbol:    "BTCUSDT",
		Price:     100.5,
		Volume:    3,
		Timestamp: time.Now().UTC(),
	})
	return hub
}

func TestGetPriceFallsBackToCache(t *testing.T) {
	cache := &fakePriceCache{
		prices: map[string]float64{"ETHUSDT": 2001.25},
		ts:     time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
	}
	h := NewPriceHandler(pricesTestHub(t), cache, testLogger())
	mux := priceMux(h)

	// Hub-tracked symbol answers live, not cached.
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/prices/BTCUSDT", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Latest priceResponse `json:"latest"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.InDelta(t, 100.5, resp.Latest.Price, 1e-9)
	assert.False(t, resp.Latest.Cached)

	// Unknown to the hub but mirrored in the cache.
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/prices/ETHUSDT", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.InDelta(t, 2001.25, resp.Latest.Price, 1e-9)
	assert.True(t, resp.Latest.Cached)

	// Unknown everywhere.
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/prices/DOGEUSDT", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetPriceWithoutCache(t *testing.T) {
	h := NewPriceHandler(pricesTestHub(t), nil, testLogger())
	mux := priceMux(h)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/prices/ETHUSDT", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListPricesRequestedSymbolsMixesHubAndCache(t *testing.T) {
	cache := &fakePriceCache{prices: map[string]float64{"ETHUSDT": 2001.25}}
	h := NewPriceHandler(pricesTestHub(t), cache, testLogger())
	mux := priceMux(h)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/prices?symbols=BTCUSDT,ETHUSDT,DOGEUSDT", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var out []priceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 2)

	bySymbol := make(map[string]priceResponse, len(out))
	for _, p := range out {
		bySymbol[p.Symbol] = p
	}
	require.Contains(t, bySymbol, "BTCUSDT")
	require.Contains(t, bySymbol, "ETHUSDT")
	assert.False(t, bySymbol["BTCUSDT"].Cached)
	assert.True(t, bySymbol["ETHUSDT"].Cached)
	assert.NotContains(t, bySymbol, "DOGEUSDT")
}
