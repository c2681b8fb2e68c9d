package money

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestAddSameCurrency(t *testing.T) {
	a := USD.Emit(decimal.NewFromInt(100))
	b := USD.Emit(decimal.NewFromInt(50))

	sum, err := a.Add(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sum.Amount.Equal(decimal.NewFromInt(150)) {
		t.Errorf("expected 150, got %s", sum.Amount)
	}
	if sum.Currency != USD {
		t.Errorf("expected USD, got %s", sum.Currency)
	}
}

func TestCrossCurrencyOperationsFail(t *testing.T) {
	usd := USD.Emit(decimal.NewFromInt(100))
	btc := BTC.Emit(decimal.NewFromInt(1))

	if _, err := usd.Add(btc); !errors.Is(err, ErrCurrencyMismatch) {
		t.Errorf("Add: expected ErrCurrencyMismatch, got %v", err)
	}
	if _, err := usd.Sub(btc); !errors.Is(err, ErrCurrencyMismatch) {
		t.Errorf("Sub: expected ErrCurrencyMismatch, got %v", err)
	}
	if _, err := usd.Cmp(btc); !errors.Is(err, ErrCurrencyMismatch) {
		t.Errorf("Cmp: expected ErrCurrencyMismatch, got %v", err)
	}
	if _, err := usd.GreaterOrEqual(btc); !errors.Is(err, ErrCurrencyMismatch) {
		t.Errorf("GreaterOrEqual: expected ErrCurrencyMismatch, got %v", err)
	}
}

func TestSubProducesNewValue(t *testing.T) {
	a := USD.Emit(decimal.NewFromInt(100))
	b := USD.Emit(decimal.NewFromInt(30))

	diff, err := a.Sub(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !diff.Amount.Equal(decimal.NewFromInt(70)) {
		t.Errorf("expected 70, got %s", diff.Amount)
	}
	// original operands untouched
	if !a.Amount.Equal(decimal.NewFromInt(100)) || !b.Amount.Equal(decimal.NewFromInt(30)) {
		t.Error("operands must be immutable")
	}
}

func TestMulKeepsCurrency(t *testing.T) {
	price := USD.Emit(decimal.NewFromInt(11000))
	total := price.Mul(decimal.NewFromInt(3))
	if !total.Amount.Equal(decimal.NewFromInt(33000)) {
		t.Errorf("expected 33000, got %s", total.Amount)
	}
	if total.Currency != USD {
		t.Errorf("expected USD, got %s", total.Currency)
	}
}

func TestExactDecimalArithmetic(t *testing.T) {
	// 0.1 + 0.2 must be exactly 0.3
	a := BTC.Emit(decimal.RequireFromString("0.1"))
	b := BTC.Emit(decimal.RequireFromString("0.2"))
	sum, err := a.Add(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sum.Amount.Equal(decimal.RequireFromString("0.3")) {
		t.Errorf("expected exactly 0.3, got %s", sum.Amount)
	}
}

func TestZero(t *testing.T) {
	z := BTC.Zero()
	if !z.IsZero() {
		t.Error("expected zero")
	}
	if z.Currency != BTC {
		t.Errorf("expected BTC, got %s", z.Currency)
	}
}

func TestSymbol(t *testing.T) {
	if UsdBtc.String() != "USDBTC" {
		t.Errorf("expected USDBTC, got %s", UsdBtc.String())
	}
	if UsdBtc != NewSymbol(USD, BTC) {
		t.Error("symbols with equal pairs must be equal")
	}
	if UsdBtc == NewSymbol(BTC, USD) {
		t.Error("symbol equality must respect pair order")
	}
}
