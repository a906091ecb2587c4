package feed

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

func sample(symbol string, price float64, i int) domain.PriceSample {
	return domain.PriceSample{
		Symbol:    symbol,
		Price:     price,
		Volume:    1,
		Timestamp: time.Unix(int64(i), 0).UTC(),
	}
}

func TestLatestAndHistory(t *testing.T) {
	h := NewHub(100, testLogger())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		h.Publish(ctx, sample("BTCUSDT", 100+float64(i), i))
	}

	latest, err := h.Latest("BTCUSDT")
	require.NoError(t, err)
	assert.InDelta(t, 104.0, latest.Price, 1e-12)

	hist := h.History("BTCUSDT", 3)
	require.Len(t, hist, 3)
	assert.InDelta(t, 102.0, hist[0].Price, 1e-12)
	assert.InDelta(t, 104.0, hist[2].Price, 1e-12)
}

func TestLatestUnknownSymbol(t *testing.T) {
	h := NewHub(100, testLogger())

	_, err := h.Latest("NOPE")
	require.ErrorIs(t, err, domain.ErrNoMarketData)
	assert.Nil(t, h.History("NOPE", 10))
}

func TestHistoryDropsOldestAtCapacity(t *testing.T) {
	h := NewHub(5, testLogger())
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		h.Publish(ctx, sample("BTCUSDT", float64(i), i))
	}

	hist := h.History("BTCUSDT", 100)
	require.Len(t, hist, 5)

	// Oldest first, only the newest five retained.
	for i, s := range hist {
		assert.InDelta(t, float64(7+i), s.Price, 1e-12)
	}
}

func TestSubscribeReceivesPublishedSamples(t *testing.T) {
	h := NewHub(100, testLogger())
	ctx := context.Background()

	ch, cancel := h.Subscribe("BTCUSDT")
	defer cancel()

	h.Publish(ctx, sample("BTCUSDT", 101, 1))

	select {
	case s := <-ch:
		assert.InDelta(t, 101.0, s.Price, 1e-12)
	case <-time.After(time.Second):
		t.Fatal("no sample delivered")
	}
}

func TestSubscribeCancelStopsDelivery(t *testing.T) {
	h := NewHub(100, testLogger())
	ctx := context.Background()

	ch, cancel := h.Subscribe("BTCUSDT")
	cancel()

	h.Publish(ctx, sample("BTCUSDT", 101, 1))

	select {
	case <-ch:
		t.Fatal("sample delivered after cancel")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestPublishNeverBlocksOnSlowSubscriber(t *testing.T) {
	h := NewHub(100, testLogger())
	ctx := context.Background()

	_, cancel := h.Subscribe("BTCUSDT")
	defer cancel()

	// Overfill the subscriber buffer without draining it. Publish must not
	// stall the producer.
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*3; i++ {
			h.Publish(ctx, sample("BTCUSDT", float64(i), i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on saturated subscriber")
	}
}

func TestSymbols(t *testing.T) {
	h := NewHub(100, testLogger())
	ctx := context.Background()

	assert.Empty(t, h.Symbols())

	h.Publish(ctx, sample("BTCUSDT", 100, 1))
	h.Publish(ctx, sample("ETHUSDT", 50, 1))

	assert.ElementsMatch(t, []string{"BTCUSDT", "ETHUSDT"}, h.Symbols())
}

func TestRingBuffer(t *testing.T) {
	rb := newRingBuffer(3)

	_, ok := rb.latest()
	assert.False(t, ok)
	assert.Empty(t, rb.recent(5))

	for i := 0; i < 5; i++ {
		rb.push(sample("X", float64(i), i))
	}

	latest, ok := rb.latest()
	require.True(t, ok)
	assert.InDelta(t, 4.0, latest.Price, 1e-12)

	got := rb.recent(10)
	require.Len(t, got, 3)
	assert.InDelta(t, 2.0, got[0].Price, 1e-12)
	assert.InDelta(t, 4.0, got[2].Price, 1e-12)

	two := rb.recent(2)
	require.Len(t, two, 2)
	assert.InDelta(t, 3.0, two[0].Price, 1e-12)
}
