package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrCurrencyMismatch is returned by any binary operation on two Money
// values of different currencies. There is no implicit conversion.
var ErrCurrencyMismatch = errors.New("currency mismatch")

// Currency is a comparable tag identifying a currency. Currencies are
// compared by code and are safe to use as map keys.
type Currency struct {
	code string
}

// Predeclared currencies.
var (
	USD = NewCurrency("USD")
	BTC = NewCurrency("BTC")
)

// NewCurrency creates a Currency with the given code.
func NewCurrency(code string) Currency {
	return Currency{code: code}
}

// Code returns the currency code, e.g. "USD".
func (c Currency) Code() string { return c.code }

func (c Currency) String() string { return c.code }

// Emit creates a Money of the given amount in this currency.
func (c Currency) Emit(amount decimal.Decimal) Money {
	return Money{Amount: amount, Currency: c}
}

// Zero returns zero money in this currency.
func (c Currency) Zero() Money {
	return Money{Amount: decimal.Zero, Currency: c}
}

// Money is an amount tagged by currency. Money values are immutable;
// arithmetic produces new values.
type Money struct {
	Amount   decimal.Decimal
	Currency Currency
}

// Add returns m + other. The currencies must match.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("add %s to %s: %w", other.Currency, m.Currency, ErrCurrencyMismatch)
	}
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}, nil
}

// Sub returns m - other. The currencies must match.
func (m Money) Sub(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("subtract %s from %s: %w", other.Currency, m.Currency, ErrCurrencyMismatch)
	}
	return Money{Amount: m.Amount.Sub(other.Amount), Currency: m.Currency}, nil
}

// Mul scales the amount by a dimensionless factor. Scaling keeps the
// currency, so no mismatch is possible.
func (m Money) Mul(factor decimal.Decimal) Money {
	return Money{Amount: m.Amount.Mul(factor), Currency: m.Currency}
}

// Cmp compares two Money values of the same currency. It returns -1, 0
// or 1 like decimal.Decimal.Cmp.
func (m Money) Cmp(other Money) (int, error) {
	if m.Currency != other.Currency {
		return 0, fmt.Errorf("compare %s with %s: %w", m.Currency, other.Currency, ErrCurrencyMismatch)
	}
	return m.Amount.Cmp(other.Amount), nil
}

// GreaterOrEqual reports whether m >= other.
func (m Money) GreaterOrEqual(other Money) (bool, error) {
	c, err := m.Cmp(other)
	if err != nil {
		return false, err
	}
	return c >= 0, nil
}

// LessThan reports whether m < other.
func (m Money) LessThan(other Money) (bool, error) {
	c, err := m.Cmp(other)
	if err != nil {
		return false, err
	}
	return c < 0, nil
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.Amount.IsZero() }

// IsPositive reports whether the amount is strictly positive.
func (m Money) IsPositive() bool { return m.Amount.IsPositive() }

// IsNegative reports whether the amount is strictly negative.
func (m Money) IsNegative() bool { return m.Amount.IsNegative() }

func (m Money) String() string {
	return m.Amount.String() + " " + m.Currency.code
}
