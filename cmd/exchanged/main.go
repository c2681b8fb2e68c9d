package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/zappabad/exchange/internal/config"
	"github.com/zappabad/exchange/internal/eventlog"
	"github.com/zappabad/exchange/internal/exchange"
	"github.com/zappabad/exchange/internal/ledger"
	"github.com/zappabad/exchange/internal/money"
	"github.com/zappabad/exchange/internal/orderbook/core"
)

func main() {
	config.LoadEnv()

	logger, err := newLogger(config.GetEnv("ENV", "development"))
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	cfg := config.FromEnv()
	cfg.Logger = logger

	ctx := context.Background()
	store := eventlog.NewMemStore()
	ex := exchange.New(store, cfg)
	defer ex.Close()

	if _, err := ex.RegisterMarket(ctx, money.UsdBtc); err != nil {
		log.Fatalf("register market: %v", err)
	}

	alice, err := ex.Ledger(ctx, "alice")
	if err != nil {
		log.Fatalf("ledger alice: %v", err)
	}
	bob, err := ex.Ledger(ctx, "bob")
	if err != nil {
		log.Fatalf("ledger bob: %v", err)
	}

	if err := alice.AddFunds(ctx, money.USD.Emit(decimal.NewFromInt(50000))); err != nil {
		log.Fatalf("fund alice: %v", err)
	}
	if err := bob.AddFunds(ctx, money.BTC.Emit(decimal.NewFromInt(10))); err != nil {
		log.Fatalf("fund bob: %v", err)
	}

	if _, err := bob.PlaceSellOrder(ctx, money.UsdBtc, money.USD.Emit(decimal.NewFromInt(7000)), decimal.NewFromInt(5)); err != nil {
		log.Fatalf("sell: %v", err)
	}
	if _, err := alice.PlaceBuyOrder(ctx, money.UsdBtc, money.USD.Emit(decimal.NewFromInt(7000)), decimal.NewFromInt(3)); err != nil {
		log.Fatalf("buy: %v", err)
	}

	waitForSettlement(ctx, alice, money.BTC, decimal.NewFromInt(3))

	printBalances("alice", alice)
	printBalances("bob", bob)

	book, err := ex.Book(money.UsdBtc)
	if err != nil {
		log.Fatalf("book: %v", err)
	}
	fmt.Println("asks:")
	for _, lvl := range book.Levels(core.SideSell) {
		fmt.Printf("  %s x %s\n", lvl.Price, lvl.Amount)
	}
	fmt.Println("bids:")
	for _, lvl := range book.Levels(core.SideBuy) {
		fmt.Printf("  %s x %s\n", lvl.Price, lvl.Amount)
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// waitForSettlement polls until the ledger shows the expected balance,
// giving in-flight fill notifications time to land.
func waitForSettlement(ctx context.Context, l *ledger.Service, c money.Currency, want decimal.Decimal) {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		bal, err := l.GetBalance(ctx, c)
		if err == nil && bal.Amount.Equal(want) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func printBalances(name string, l *ledger.Service) {
	ctx := context.Background()
	for _, c := range []money.Currency{money.USD, money.BTC} {
		bal, err := l.GetBalance(ctx, c)
		if err != nil {
			fmt.Printf("%s %s: unavailable\n", name, c)
			continue
		}
		fmt.Printf("%s: %s\n", name, bal)
	}
}
