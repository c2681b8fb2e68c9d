package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// placedOrder is an internal resting order node (never exposed). The
// remaining amount is tracked here so the original Order stays immutable.
type placedOrder struct {
	order     Order
	side      Side
	remaining decimal.Decimal
}

func (p *placedOrder) isFilled() bool { return p.remaining.Sign() <= 0 }

// level holds resting orders at one price in arrival order.
type level struct {
	price  decimal.Decimal
	orders []*placedOrder
}

func (l *level) append(p *placedOrder) {
	l.orders = append(l.orders, p)
}

func (l *level) popHead() *placedOrder {
	if len(l.orders) == 0 {
		return nil
	}
	p := l.orders[0]
	l.orders = l.orders[1:]
	return p
}

func (l *level) head() *placedOrder {
	if len(l.orders) == 0 {
		return nil
	}
	return l.orders[0]
}

// bookSide keeps levels sorted best-first: descending price for bids,
// ascending for asks. Lookup by price string since decimal.Decimal is
// not a comparable map key.
type bookSide struct {
	isBid  bool
	levels []*level
	index  map[string]*level
}

func newBookSide(isBid bool) *bookSide {
	return &bookSide{
		isBid:  isBid,
		levels: []*level{},
		index:  map[string]*level{},
	}
}

func (bs *bookSide) bestLevel() *level {
	if len(bs.levels) == 0 {
		return nil
	}
	return bs.levels[0]
}

// better reports whether price a ranks before price b on this side.
func (bs *bookSide) better(a, b decimal.Decimal) bool {
	if bs.isBid {
		return a.GreaterThan(b)
	}
	return a.LessThan(b)
}

func (bs *bookSide) getOrCreate(price decimal.Decimal) *level {
	key := price.String()
	if l, ok := bs.index[key]; ok {
		return l
	}
	l := &level{price: price}
	bs.index[key] = l
	i := sort.Search(len(bs.levels), func(i int) bool {
		return !bs.better(bs.levels[i].price, price)
	})
	bs.levels = append(bs.levels, nil)
	copy(bs.levels[i+1:], bs.levels[i:])
	bs.levels[i] = l
	return l
}

func (bs *bookSide) removeLevel(l *level) {
	delete(bs.index, l.price.String())
	for i, cand := range bs.levels {
		if cand == l {
			bs.levels = append(bs.levels[:i], bs.levels[i+1:]...)
			return
		}
	}
}

// orderBook owns both sides plus an id index of resting orders.
type orderBook struct {
	bids *bookSide
	asks *bookSide

	orders map[string]*placedOrder // resting only
}

func newOrderBook() *orderBook {
	return &orderBook{
		bids:   newBookSide(true),
		asks:   newBookSide(false),
		orders: map[string]*placedOrder{},
	}
}

func (ob *orderBook) sideFor(s Side) *bookSide {
	if s == SideBuy {
		return ob.bids
	}
	return ob.asks
}

func (ob *orderBook) addResting(o Order, side Side, remaining decimal.Decimal) *placedOrder {
	node := &placedOrder{
		order:     o,
		side:      side,
		remaining: remaining,
	}
	l := ob.sideFor(side).getOrCreate(o.Price.Amount)
	l.append(node)
	ob.orders[o.ID] = node
	return node
}
