package view

import "github.com/zappabad/exchange/internal/orderbook/core"

// FillTape is a ring buffer for storing fill notifications (bounded memory).
type FillTape struct {
	buf   []core.OrderExecutedEvent
	size  int
	start int
	count int
}

// NewFillTape creates a FillTape with the given capacity.
func NewFillTape(capacity int) *FillTape {
	if capacity <= 0 {
		capacity = 1
	}
	return &FillTape{
		buf:  make([]core.OrderExecutedEvent, capacity),
		size: capacity,
	}
}

// Append adds a fill to the tape.
func (t *FillTape) Append(e core.OrderExecutedEvent) {
	if t.count < t.size {
		t.buf[(t.start+t.count)%t.size] = e
		t.count++
		return
	}
	// overwrite oldest
	t.buf[t.start] = e
	t.start = (t.start + 1) % t.size
}

// Last returns the last n fills in chronological order.
func (t *FillTape) Last(n int) []core.OrderExecutedEvent {
	if n <= 0 || t.count == 0 {
		return nil
	}
	if n > t.count {
		n = t.count
	}
	out := make([]core.OrderExecutedEvent, n)
	first := (t.start + (t.count - n)) % t.size
	for i := 0; i < n; i++ {
		out[i] = t.buf[(first+i)%t.size]
	}
	return out
}

// Count returns the number of fills in the tape.
func (t *FillTape) Count() int {
	return t.count
}
