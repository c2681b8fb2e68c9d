package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/zappabad/exchange/internal/eventlog"
	"github.com/zappabad/exchange/internal/money"
	bookservice "github.com/zappabad/exchange/internal/orderbook/service"
)

func newTestService(t *testing.T, userID string, store eventlog.Store) *Service {
	t.Helper()
	s, err := NewService(userID, store, DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func mustBalance(t *testing.T, s *Service, c money.Currency) money.Money {
	t.Helper()
	bal, err := s.GetBalance(context.Background(), c)
	require.NoError(t, err)
	return bal
}

func fund(t *testing.T, s *Service, value money.Money) {
	t.Helper()
	require.NoError(t, s.AddFunds(context.Background(), value))
}

func usd(v int64) money.Money { return money.USD.Emit(decimal.NewFromInt(v)) }
func btc(v string) money.Money {
	return money.BTC.Emit(decimal.RequireFromString(v))
}

func eventuallyBalance(t *testing.T, s *Service, want money.Money) {
	t.Helper()
	require.Eventually(t, func() bool {
		return mustBalance(t, s, want.Currency).Amount.Equal(want.Amount)
	}, 2*time.Second, 10*time.Millisecond, "waiting for balance %s", want)
}

func TestPlaceSellOrderReservesAndReachesBook(t *testing.T) {
	ctx := context.Background()
	store := eventlog.NewMemStore()
	s := newTestService(t, "alice", store)

	book := newFakeBook()
	fund(t, s, btc("10"))
	require.NoError(t, s.AddMarket(ctx, money.UsdBtc, book))

	id, err := s.PlaceSellOrder(ctx, money.UsdBtc, usd(7000), decimal.NewFromInt(5))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	sub := book.expectSubmission(t)
	require.Equal(t, id, sub.order.ID)
	require.Equal(t, "5", sub.order.Amount.String())

	// the sold amount is reserved up front
	require.Equal(t, "5", mustBalance(t, s, money.BTC).Amount.String())

	active, err := s.ActiveOrders(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{id}, active)
}

func TestRejectedOrdersLeaveNoTrace(t *testing.T) {
	ctx := context.Background()
	store := eventlog.NewMemStore()
	s := newTestService(t, "alice", store)
	book := newFakeBook()

	fund(t, s, usd(1000))
	require.NoError(t, s.AddMarket(ctx, money.UsdBtc, book))
	funded := len(store.Events("balance_alice"))

	t.Run("unsupported market", func(t *testing.T) {
		eur := money.NewCurrency("EUR")
		_, err := s.PlaceBuyOrder(ctx, money.NewSymbol(eur, money.BTC), eur.Emit(decimal.NewFromInt(100)), decimal.NewFromInt(1))
		require.ErrorIs(t, err, ErrUnsupportedMarket)
	})

	t.Run("non-positive amount", func(t *testing.T) {
		_, err := s.PlaceBuyOrder(ctx, money.UsdBtc, usd(100), decimal.Zero)
		require.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("price in wrong currency", func(t *testing.T) {
		_, err := s.PlaceBuyOrder(ctx, money.UsdBtc, btc("1"), decimal.NewFromInt(1))
		require.ErrorIs(t, err, money.ErrCurrencyMismatch)
	})

	t.Run("not enough funds", func(t *testing.T) {
		_, err := s.PlaceBuyOrder(ctx, money.UsdBtc, usd(7000), decimal.NewFromInt(1))
		require.ErrorIs(t, err, ErrNotEnoughFunds)
	})

	// a rejected order persists nothing and moves no money
	require.Len(t, store.Events("balance_alice"), funded)
	require.Equal(t, "1000", mustBalance(t, s, money.USD).Amount.String())
	book.expectNoSubmission(t)

	active, err := s.ActiveOrders(ctx)
	require.NoError(t, err)
	require.Empty(t, active)
}

func TestPartialFillKeepsReservationAndCreditsFills(t *testing.T) {
	ctx := context.Background()
	store := eventlog.NewMemStore()
	book := bookservice.NewService(money.UsdBtc, bookservice.DefaultConfig())
	t.Cleanup(book.Close)

	seller := newTestService(t, "bob", store)
	fund(t, seller, btc("10"))
	require.NoError(t, seller.AddMarket(ctx, money.UsdBtc, book))

	_, err := seller.PlaceSellOrder(ctx, money.UsdBtc, usd(20000), decimal.NewFromInt(1))
	require.NoError(t, err)
	_, err = seller.PlaceSellOrder(ctx, money.UsdBtc, usd(10000), decimal.RequireFromString("0.25"))
	require.NoError(t, err)
	_, err = seller.PlaceSellOrder(ctx, money.UsdBtc, usd(5000), decimal.NewFromInt(1))
	require.NoError(t, err)

	buyer := newTestService(t, "alice", store)
	fund(t, buyer, usd(50000))
	fund(t, buyer, btc("10"))
	require.NoError(t, buyer.AddMarket(ctx, money.UsdBtc, book))

	buyID, err := buyer.PlaceBuyOrder(ctx, money.UsdBtc, usd(11000), decimal.NewFromInt(3))
	require.NoError(t, err)

	// fills at the resting prices: 1 at 5000 and 0.25 at 10000
	eventuallyBalance(t, buyer, btc("11.25"))
	eventuallyBalance(t, seller, usd(7500))

	// the full limit reservation stays out, price improvement included
	require.Equal(t, "17000", mustBalance(t, buyer, money.USD).Amount.String())
	require.Equal(t, "7.75", mustBalance(t, seller, money.BTC).Amount.String())

	// the residual 1.75 rests, so the buy stays active
	active, err := buyer.ActiveOrders(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{buyID}, active)

	require.Eventually(t, func() bool {
		ids, err := seller.ActiveOrders(ctx)
		require.NoError(t, err)
		return len(ids) == 1
	}, 2*time.Second, 10*time.Millisecond, "filled sells must complete")
}

func TestRestartRebuildsBalancesAndActiveOrders(t *testing.T) {
	ctx := context.Background()
	store := eventlog.NewMemStore()
	s := newTestService(t, "alice", store)

	fund(t, s, btc("10"))
	require.NoError(t, s.AddMarket(ctx, money.UsdBtc, newFakeBook()))
	id, err := s.PlaceSellOrder(ctx, money.UsdBtc, usd(7000), decimal.NewFromInt(5))
	require.NoError(t, err)

	s.AddDueOrderExecuted(id, usd(20000))
	s.AddDueOrderExecuted(id, usd(20000))
	eventuallyBalance(t, s, usd(40000))
	s.Close()

	restarted := newTestService(t, "alice", store)
	require.Equal(t, "40000", mustBalance(t, restarted, money.USD).Amount.String())
	require.Equal(t, "5", mustBalance(t, restarted, money.BTC).Amount.String())

	active, err := restarted.ActiveOrders(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{id}, active)
}

func TestCompletionRemovesOrderAndStaleCreditsAreIgnored(t *testing.T) {
	ctx := context.Background()
	store := eventlog.NewMemStore()
	s := newTestService(t, "alice", store)

	fund(t, s, btc("10"))
	require.NoError(t, s.AddMarket(ctx, money.UsdBtc, newFakeBook()))
	id, err := s.PlaceSellOrder(ctx, money.UsdBtc, usd(7000), decimal.NewFromInt(5))
	require.NoError(t, err)

	s.AddDueOrderExecuted(id, usd(35000))
	eventuallyBalance(t, s, usd(35000))

	s.OrderCompleted(id)
	require.Eventually(t, func() bool {
		ids, err := s.ActiveOrders(ctx)
		require.NoError(t, err)
		return len(ids) == 0
	}, 2*time.Second, 10*time.Millisecond)
	journal := len(store.Events("balance_alice"))

	// a credit for a completed order must not change anything
	s.AddDueOrderExecuted(id, usd(1000))
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, "35000", mustBalance(t, s, money.USD).Amount.String())
	require.Len(t, store.Events("balance_alice"), journal)
}

func TestPendingOrderActivatedOnMarketRegistration(t *testing.T) {
	ctx := context.Background()
	store := eventlog.NewMemStore()
	s := newTestService(t, "alice", store)

	fund(t, s, btc("10"))
	require.NoError(t, s.AddMarket(ctx, money.UsdBtc, newFakeBook()))
	id, err := s.PlaceSellOrder(ctx, money.UsdBtc, usd(7000), decimal.NewFromInt(5))
	require.NoError(t, err)
	s.Close()

	// after a restart the order is pending again until a book shows up
	restarted := newTestService(t, "alice", store)
	book := newFakeBook()
	require.NoError(t, restarted.AddMarket(ctx, money.UsdBtc, book))

	sub := book.expectSubmission(t)
	require.Equal(t, id, sub.order.ID)
	require.Equal(t, "5", sub.order.Amount.String())
}
