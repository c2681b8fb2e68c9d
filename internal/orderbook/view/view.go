package view

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/zappabad/exchange/internal/orderbook/core"
)

// Level represents aggregate resting amount at a price level.
type Level struct {
	Price  decimal.Decimal
	Amount decimal.Decimal
}

type orderState struct {
	side      core.Side
	price     decimal.Decimal
	remaining decimal.Decimal
}

// BookView maintains a read-only depth view of a book, derived from the
// core's event stream. It is thread-safe and returns copies, never
// internal references.
type BookView struct {
	mu     sync.RWMutex
	orders map[string]orderState
	bids   map[string]Level
	asks   map[string]Level
	tape   *FillTape
}

// NewBookView creates a BookView with the given fill tape capacity.
func NewBookView(tapeCapacity int) *BookView {
	return &BookView{
		orders: map[string]orderState{},
		bids:   map[string]Level{},
		asks:   map[string]Level{},
		tape:   NewFillTape(tapeCapacity),
	}
}

// Apply processes an event and updates the view accordingly.
func (v *BookView) Apply(ev core.Event) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch e := ev.(type) {
	case core.OrderExecutedEvent:
		v.tape.Append(e)

	case core.OrderRestedEvent:
		v.orders[e.OrderID] = orderState{
			side:      e.Side,
			price:     e.Price.Amount,
			remaining: e.Amount,
		}
		v.adjust(e.Side, e.Price.Amount, e.Amount)

	case core.OrderReducedEvent:
		st, ok := v.orders[e.OrderID]
		if !ok {
			// if this happens, the event stream is incomplete or out of order
			return
		}
		v.adjust(st.side, st.price, e.Remaining.Sub(st.remaining))
		st.remaining = e.Remaining
		v.orders[e.OrderID] = st

	case core.OrderRemovedEvent:
		st, ok := v.orders[e.OrderID]
		if !ok {
			return
		}
		v.adjust(st.side, st.price, st.remaining.Neg())
		delete(v.orders, e.OrderID)
	}
}

func (v *BookView) adjust(side core.Side, price, delta decimal.Decimal) {
	levels := v.asks
	if side == core.SideBuy {
		levels = v.bids
	}
	key := price.String()
	l, ok := levels[key]
	if !ok {
		l = Level{Price: price}
	}
	l.Amount = l.Amount.Add(delta)
	if l.Amount.Sign() <= 0 {
		delete(levels, key)
		return
	}
	levels[key] = l
}

// Levels returns aggregate amount at each price level, sorted best to
// worst for the given side.
func (v *BookView) Levels(side core.Side) []Level {
	v.mu.RLock()
	defer v.mu.RUnlock()

	src := v.asks
	if side == core.SideBuy {
		src = v.bids
	}

	out := make([]Level, 0, len(src))
	for _, l := range src {
		out = append(out, l)
	}

	sort.Slice(out, func(i, j int) bool {
		if side == core.SideBuy {
			return out[i].Price.GreaterThan(out[j].Price) // best bid is highest
		}
		return out[i].Price.LessThan(out[j].Price) // best ask is lowest
	})
	return out
}

// FillsLast returns the last n fill notifications in chronological
// order. Each trade appears twice, once per counterparty.
func (v *BookView) FillsLast(n int) []core.OrderExecutedEvent {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.tape.Last(n)
}
