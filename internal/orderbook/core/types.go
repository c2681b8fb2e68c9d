package core

import (
	"github.com/shopspring/decimal"

	"github.com/zappabad/exchange/internal/money"
)

// Side represents the order side: buy or sell. Side is submission
// context only; it is not part of the Order value itself.
type Side uint8

const (
	SideBuy Side = iota
	SideSell
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Opposite returns the opposite side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Order is an immutable value describing the side-independent terms of
// a trade. The core mutates its own internal resting orders, never this.
type Order struct {
	ID     string
	Symbol money.Symbol
	Price  money.Money // per one unit of Symbol.Target, in Symbol.Base
	Amount decimal.Decimal
	Time   int64 // unix nanos set by the caller
}

// Total returns the full cost of the order at its limit price.
func (o Order) Total() money.Money {
	return o.Price.Mul(o.Amount)
}
