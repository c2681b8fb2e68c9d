package core

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/zappabad/exchange/internal/money"
)

var (
	ErrInvalidOrder = errors.New("invalid order")
	ErrDuplicateID  = errors.New("duplicate order id")
)

// Fill represents a single fill from a match, taker perspective.
type Fill struct {
	MakerOrderID string
	Price        money.Money
	Amount       decimal.Decimal
}

// SubmitReport is returned after submitting an order.
type SubmitReport struct {
	OrderID   string
	Remaining decimal.Decimal
	Fills     []Fill
	Rested    bool
}

// Core is the deterministic price-time-priority matching engine for a
// single symbol. It has no goroutines, mutexes, channels, or time calls.
type Core struct {
	symbol money.Symbol
	ob     *orderBook
}

// NewCore creates a matching engine for the given symbol.
func NewCore(symbol money.Symbol) *Core {
	return &Core{symbol: symbol, ob: newOrderBook()}
}

// Symbol returns the symbol this core matches.
func (c *Core) Symbol() money.Symbol { return c.symbol }

func (c *Core) validate(o Order) error {
	if o.ID == "" {
		return ErrInvalidOrder
	}
	if o.Symbol != c.symbol {
		return ErrInvalidOrder
	}
	if o.Amount.Sign() <= 0 {
		return ErrInvalidOrder
	}
	if o.Price.Currency != c.symbol.Base || o.Price.Amount.Sign() <= 0 {
		return ErrInvalidOrder
	}
	if o.Time <= 0 {
		return ErrInvalidOrder
	}
	return nil
}

// Submit matches an incoming limit order against the opposite side and
// rests any residual quantity at its limit price, after any orders
// already at that price.
func (c *Core) Submit(o Order, side Side) (SubmitReport, []Event, error) {
	if err := c.validate(o); err != nil {
		return SubmitReport{}, nil, err
	}
	if _, exists := c.ob.orders[o.ID]; exists {
		return SubmitReport{}, nil, ErrDuplicateID
	}

	remaining := o.Amount
	fills, evs := c.match(o, side, &remaining)

	rested := false
	if remaining.Sign() > 0 {
		c.ob.addResting(o, side, remaining)
		rested = true
		evs = append(evs, OrderRestedEvent{
			OrderID: o.ID, Side: side,
			Price: o.Price, Amount: remaining, Time: o.Time,
		})
	}

	return SubmitReport{
		OrderID:   o.ID,
		Remaining: remaining,
		Fills:     fills,
		Rested:    rested,
	}, evs, nil
}

// accepts reports whether the taker's limit crosses the given resting price.
func accepts(side Side, limit, resting decimal.Decimal) bool {
	if side == SideBuy {
		return resting.LessThanOrEqual(limit)
	}
	return resting.GreaterThanOrEqual(limit)
}

// match consumes resting liquidity in price order, then arrival order
// within a price. Fills execute at the resting order's price, so price
// improvement goes to the taker.
func (c *Core) match(taker Order, side Side, remaining *decimal.Decimal) ([]Fill, []Event) {
	var (
		fills  []Fill
		events []Event
	)

	opp := c.ob.asks
	if side == SideSell {
		opp = c.ob.bids
	}

	for remaining.Sign() > 0 {
		best := opp.bestLevel()
		if best == nil || !accepts(side, taker.Price.Amount, best.price) {
			break
		}

		for remaining.Sign() > 0 && best.head() != nil {
			maker := best.head()

			traded := *remaining
			if maker.remaining.LessThan(traded) {
				traded = maker.remaining
			}

			*remaining = remaining.Sub(traded)
			maker.remaining = maker.remaining.Sub(traded)

			fillPrice := maker.order.Price
			fills = append(fills, Fill{
				MakerOrderID: maker.order.ID,
				Price:        fillPrice,
				Amount:       traded,
			})
			events = append(events,
				OrderExecutedEvent{OrderID: maker.order.ID, Amount: traded, Price: fillPrice, Time: taker.Time},
				OrderExecutedEvent{OrderID: taker.ID, Amount: traded, Price: fillPrice, Time: taker.Time},
			)

			if maker.isFilled() {
				best.popHead()
				delete(c.ob.orders, maker.order.ID)
				events = append(events, OrderRemovedEvent{
					OrderID: maker.order.ID, Side: maker.side,
					Price: fillPrice, Time: taker.Time,
				})
			} else {
				events = append(events, OrderReducedEvent{
					OrderID: maker.order.ID, Side: maker.side,
					Price: fillPrice, Remaining: maker.remaining, Time: taker.Time,
				})
			}
		}

		if best.head() == nil {
			opp.removeLevel(best)
		}
	}

	return fills, events
}
