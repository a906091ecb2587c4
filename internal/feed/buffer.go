package feed

import "github.com/TheMalluBot/stratosphere-trading-hub-sub004/internal/domain"

// ringBuffer holds the most recent samples for one symbol in a fixed-size
// circular buffer. Oldest samples are overwritten once the capacity is
// reached; the buffer never grows.
type ringBuffer struct {
	samples []domain.PriceSample
	next    int // write position
	size    int // number of valid entries, <= cap
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &ringBuffer{samples: make([]domain.PriceSample, capacity)}
}

// push appends a sample, evicting the oldest when full.
func (rb *ringBuffer) push(s domain.PriceSample) {
	rb.samples[rb.next] = s
	rb.next = (rb.next + 1) % len(rb.samples)
	if rb.size < len(rb.samples) {
		rb.size++
	}
}

// latest returns the most recently pushed sample.
func (rb *ringBuffer) latest() (domain.PriceSample, bool) {
	if rb.size == 0 {
		return domain.PriceSample{}, false
	}
	idx := (rb.next - 1 + len(rb.samples)) % len(rb.samples)
	return rb.samples[idx], true
}

// recent returns up to n most recent samples in chronological order.
func (rb *ringBuffer) recent(n int) []domain.PriceSample {
	if n <= 0 || rb.size == 0 {
		return nil
	}
	if n > rb.size {
		n = rb.size
	}
	out := make([]domain.PriceSample, n)
	start := (rb.next - n + len(rb.samples)) % len(rb.samples)
	for i := 0; i < n; i++ {
		out[i] = rb.samples[(start+i)%len(rb.samples)]
	}
	return out
}
