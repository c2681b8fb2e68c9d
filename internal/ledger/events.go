package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/zappabad/exchange/internal/money"
	"github.com/zappabad/exchange/internal/orderbook/core"
)

// Event is a persisted ledger or order-process state transition.
type Event interface {
	isLedgerEvent()
}

// MoneyAdded credits a balance unconditionally.
type MoneyAdded struct {
	Value money.Money
}

// BuyOrderCreated records an accepted buy order. The reservation
// (limit price times amount, in the quote currency) is debited when the
// event is applied.
type BuyOrderCreated struct {
	Order core.Order
}

// SellOrderCreated records an accepted sell order. The reservation
// (the full amount of the traded asset) is debited when the event is
// applied.
type SellOrderCreated struct {
	Order core.Order
}

// BalanceChanged credits the ledger with the proceeds of one fill.
type BalanceChanged struct {
	OrderID string
	Credit  money.Money
}

// OrderCompleted removes a fully filled order from active tracking.
type OrderCompleted struct {
	OrderID string
}

// OrderAssigned is the first event of an order process journal.
type OrderAssigned struct {
	Order core.Order
	Side  core.Side
}

// OrderExecution records one fill against an order process.
type OrderExecution struct {
	Amount decimal.Decimal
}

func (MoneyAdded) isLedgerEvent()       {}
func (BuyOrderCreated) isLedgerEvent()  {}
func (SellOrderCreated) isLedgerEvent() {}
func (BalanceChanged) isLedgerEvent()   {}
func (OrderCompleted) isLedgerEvent()   {}
func (OrderAssigned) isLedgerEvent()    {}
func (OrderExecution) isLedgerEvent()   {}

// state is the ledger's in-memory state, owned exclusively by the
// service's command loop.
type state struct {
	balances    map[money.Currency]money.Money
	active      map[string]struct{}
	pendingBuy  map[string]core.Order
	pendingSell map[string]core.Order
}

func newState() *state {
	return &state{
		balances:    map[money.Currency]money.Money{},
		active:      map[string]struct{}{},
		pendingBuy:  map[string]core.Order{},
		pendingSell: map[string]core.Order{},
	}
}

func (s *state) balance(c money.Currency) money.Money {
	if m, ok := s.balances[c]; ok {
		return m
	}
	return c.Zero()
}

func (s *state) credit(m money.Money) error {
	sum, err := s.balance(m.Currency).Add(m)
	if err != nil {
		return err
	}
	s.balances[m.Currency] = sum
	return nil
}

func (s *state) debit(m money.Money) error {
	have := s.balance(m.Currency)
	enough, err := have.GreaterOrEqual(m)
	if err != nil {
		return err
	}
	if !enough {
		return ErrNotEnoughFunds
	}
	rest, err := have.Sub(m)
	if err != nil {
		return err
	}
	s.balances[m.Currency] = rest
	return nil
}

// apply folds one event into the state. The same fold runs after every
// durable append during live operation and over the full journal during
// recovery, so both paths reconstruct identical state.
func (s *state) apply(ev Event) error {
	switch e := ev.(type) {
	case MoneyAdded:
		return s.credit(e.Value)

	case BuyOrderCreated:
		if err := s.debit(e.Order.Total()); err != nil {
			return err
		}
		s.pendingBuy[e.Order.ID] = e.Order
		s.active[e.Order.ID] = struct{}{}
		return nil

	case SellOrderCreated:
		if err := s.debit(e.Order.Symbol.Target.Emit(e.Order.Amount)); err != nil {
			return err
		}
		s.pendingSell[e.Order.ID] = e.Order
		s.active[e.Order.ID] = struct{}{}
		return nil

	case BalanceChanged:
		return s.credit(e.Credit)

	case OrderCompleted:
		delete(s.active, e.OrderID)
		delete(s.pendingBuy, e.OrderID)
		delete(s.pendingSell, e.OrderID)
		return nil

	default:
		return fmt.Errorf("unknown ledger event %T", ev)
	}
}
