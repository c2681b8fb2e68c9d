package core

import (
	"github.com/shopspring/decimal"

	"github.com/zappabad/exchange/internal/money"
)

// Event is the interface for all orderbook events.
type Event interface {
	isEvent()
}

// OrderExecutedEvent is emitted once per counterparty per fill. Each
// side of a trade gets its own event carrying only its own order id;
// there is no single atomic trade message.
type OrderExecutedEvent struct {
	OrderID string
	Amount  decimal.Decimal
	Price   money.Money // the resting order's price
	Time    int64
}

func (OrderExecutedEvent) isEvent() {}

// OrderRestedEvent is emitted when residual quantity rests on the book.
type OrderRestedEvent struct {
	OrderID string
	Side    Side
	Price   money.Money
	Amount  decimal.Decimal
	Time    int64
}

func (OrderRestedEvent) isEvent() {}

// OrderRemovedEvent is emitted when a resting order is fully consumed
// and leaves the book.
type OrderRemovedEvent struct {
	OrderID string
	Side    Side
	Price   money.Money
	Time    int64
}

func (OrderRemovedEvent) isEvent() {}

// OrderReducedEvent is emitted when a resting order is partially
// consumed and stays on the book.
type OrderReducedEvent struct {
	OrderID   string
	Side      Side
	Price     money.Money
	Remaining decimal.Decimal
	Time      int64
}

func (OrderReducedEvent) isEvent() {}
