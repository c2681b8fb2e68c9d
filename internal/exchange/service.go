// Package exchange wires order books and per-user balance ledgers into
// one addressable unit. Markets registered here become visible to every
// ledger, existing and future ones alike.
package exchange

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/zappabad/exchange/internal/eventlog"
	"github.com/zappabad/exchange/internal/ledger"
	"github.com/zappabad/exchange/internal/money"
	bookservice "github.com/zappabad/exchange/internal/orderbook/service"
)

var (
	ErrMarketExists  = errors.New("market already registered")
	ErrUnknownMarket = errors.New("unknown market")
)

// Exchange manages order books per symbol and balance ledgers per user.
type Exchange struct {
	cfg   Config
	store eventlog.Store
	log   *zap.Logger

	mu      sync.RWMutex
	books   map[money.Symbol]*bookservice.Service
	ledgers map[string]*ledger.Service

	closed    chan struct{}
	closeOnce sync.Once
}

// New creates an Exchange backed by the given event store. Ledgers are
// created lazily per user and recover their state from the store.
func New(store eventlog.Store, cfg Config) *Exchange {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	cfg.Book.Logger = cfg.Logger
	cfg.Ledger.Logger = cfg.Logger

	return &Exchange{
		cfg:     cfg,
		store:   store,
		log:     cfg.Logger,
		books:   map[money.Symbol]*bookservice.Service{},
		ledgers: map[string]*ledger.Service{},
		closed:  make(chan struct{}),
	}
}

// RegisterMarket opens an order book for the symbol and announces it to
// every existing ledger.
func (e *Exchange) RegisterMarket(ctx context.Context, symbol money.Symbol) (*bookservice.Service, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.books[symbol]; ok {
		return nil, ErrMarketExists
	}

	book := bookservice.NewService(symbol, e.cfg.Book)
	e.books[symbol] = book
	e.log.Info("market registered", zap.Stringer("symbol", symbol))

	for _, l := range e.ledgers {
		if err := l.AddMarket(ctx, symbol, book); err != nil {
			return nil, err
		}
	}
	return book, nil
}

// Book returns the order book for a registered symbol.
func (e *Exchange) Book(symbol money.Symbol) (*bookservice.Service, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	book, ok := e.books[symbol]
	if !ok {
		return nil, ErrUnknownMarket
	}
	return book, nil
}

// Ledger returns the balance ledger for a user, creating and recovering
// it on first use. New ledgers learn all currently registered markets.
func (e *Exchange) Ledger(ctx context.Context, userID string) (*ledger.Service, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if l, ok := e.ledgers[userID]; ok {
		return l, nil
	}

	l, err := ledger.NewService(userID, e.store, e.cfg.Ledger)
	if err != nil {
		return nil, err
	}
	for symbol, book := range e.books {
		if err := l.AddMarket(ctx, symbol, book); err != nil {
			l.Close()
			return nil, err
		}
	}
	e.ledgers[userID] = l
	e.log.Info("ledger created", zap.String("user_id", userID))
	return l, nil
}

// Close stops all ledgers first, letting their order processes settle,
// then the order books.
func (e *Exchange) Close() {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		defer e.mu.Unlock()

		for _, l := range e.ledgers {
			l.Close()
		}
		for _, book := range e.books {
			book.Close()
		}
		close(e.closed)
	})
}
