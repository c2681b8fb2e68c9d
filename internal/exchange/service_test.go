package exchange

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/zappabad/exchange/internal/eventlog"
	"github.com/zappabad/exchange/internal/ledger"
	"github.com/zappabad/exchange/internal/money"
)

func usd(v int64) money.Money { return money.USD.Emit(decimal.NewFromInt(v)) }
func btc(v int64) money.Money { return money.BTC.Emit(decimal.NewFromInt(v)) }

func mustBalance(t *testing.T, l *ledger.Service, c money.Currency) decimal.Decimal {
	t.Helper()
	bal, err := l.GetBalance(context.Background(), c)
	require.NoError(t, err)
	return bal.Amount
}

func TestRegisterMarketTwiceFails(t *testing.T) {
	e := New(eventlog.NewMemStore(), DefaultConfig())
	t.Cleanup(e.Close)

	_, err := e.RegisterMarket(context.Background(), money.UsdBtc)
	require.NoError(t, err)
	_, err = e.RegisterMarket(context.Background(), money.UsdBtc)
	require.ErrorIs(t, err, ErrMarketExists)
}

func TestBookLookup(t *testing.T) {
	e := New(eventlog.NewMemStore(), DefaultConfig())
	t.Cleanup(e.Close)

	_, err := e.Book(money.UsdBtc)
	require.ErrorIs(t, err, ErrUnknownMarket)

	registered, err := e.RegisterMarket(context.Background(), money.UsdBtc)
	require.NoError(t, err)

	got, err := e.Book(money.UsdBtc)
	require.NoError(t, err)
	require.Same(t, registered, got)
}

func TestLedgerIsPerUserSingleton(t *testing.T) {
	ctx := context.Background()
	e := New(eventlog.NewMemStore(), DefaultConfig())
	t.Cleanup(e.Close)

	a, err := e.Ledger(ctx, "alice")
	require.NoError(t, err)
	b, err := e.Ledger(ctx, "alice")
	require.NoError(t, err)
	require.Same(t, a, b)

	other, err := e.Ledger(ctx, "bob")
	require.NoError(t, err)
	require.NotSame(t, a, other)
}

func TestMarketVisibleToLedgersCreatedBeforeAndAfter(t *testing.T) {
	ctx := context.Background()
	e := New(eventlog.NewMemStore(), DefaultConfig())
	t.Cleanup(e.Close)

	before, err := e.Ledger(ctx, "before")
	require.NoError(t, err)
	require.NoError(t, before.AddFunds(ctx, btc(1)))

	_, err = e.RegisterMarket(ctx, money.UsdBtc)
	require.NoError(t, err)

	after, err := e.Ledger(ctx, "after")
	require.NoError(t, err)
	require.NoError(t, after.AddFunds(ctx, btc(1)))

	_, err = before.PlaceSellOrder(ctx, money.UsdBtc, usd(7000), decimal.NewFromInt(1))
	require.NoError(t, err)
	_, err = after.PlaceSellOrder(ctx, money.UsdBtc, usd(7000), decimal.NewFromInt(1))
	require.NoError(t, err)
}

func TestCrossingTradeConservesMoney(t *testing.T) {
	ctx := context.Background()
	e := New(eventlog.NewMemStore(), DefaultConfig())
	t.Cleanup(e.Close)

	_, err := e.RegisterMarket(ctx, money.UsdBtc)
	require.NoError(t, err)

	alice, err := e.Ledger(ctx, "alice")
	require.NoError(t, err)
	bob, err := e.Ledger(ctx, "bob")
	require.NoError(t, err)

	require.NoError(t, alice.AddFunds(ctx, usd(50000)))
	require.NoError(t, bob.AddFunds(ctx, btc(10)))

	_, err = bob.PlaceSellOrder(ctx, money.UsdBtc, usd(7000), decimal.NewFromInt(5))
	require.NoError(t, err)
	_, err = alice.PlaceBuyOrder(ctx, money.UsdBtc, usd(7000), decimal.NewFromInt(5))
	require.NoError(t, err)

	settled := func() bool {
		a, err := alice.ActiveOrders(ctx)
		require.NoError(t, err)
		b, err := bob.ActiveOrders(ctx)
		require.NoError(t, err)
		return len(a) == 0 && len(b) == 0
	}
	require.Eventually(t, settled, 2*time.Second, 10*time.Millisecond, "both orders must fill completely")

	require.Eventually(t, func() bool {
		return mustBalance(t, alice, money.BTC).Equal(decimal.NewFromInt(5))
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return mustBalance(t, bob, money.USD).Equal(decimal.NewFromInt(35000))
	}, 2*time.Second, 10*time.Millisecond)

	require.True(t, mustBalance(t, alice, money.USD).Equal(decimal.NewFromInt(15000)))
	require.True(t, mustBalance(t, bob, money.BTC).Equal(decimal.NewFromInt(5)))

	// matched at the same price, money only moved between the two
	totalUSD := mustBalance(t, alice, money.USD).Add(mustBalance(t, bob, money.USD))
	totalBTC := mustBalance(t, alice, money.BTC).Add(mustBalance(t, bob, money.BTC))
	require.True(t, totalUSD.Equal(decimal.NewFromInt(50000)))
	require.True(t, totalBTC.Equal(decimal.NewFromInt(10)))
}
