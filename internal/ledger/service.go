package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/zappabad/exchange/internal/eventlog"
	"github.com/zappabad/exchange/internal/money"
	"github.com/zappabad/exchange/internal/orderbook/core"
)

type cmdType int

const (
	cmdPlaceOrder cmdType = iota
	cmdAddFunds
	cmdAddMarket
	cmdGetBalance
	cmdDueExecuted
	cmdOrderCompleted
	cmdActiveOrders
	cmdShutdown
)

type command struct {
	typ      cmdType
	ctx      context.Context
	side     core.Side
	symbol   money.Symbol
	price    money.Money
	amount   decimal.Decimal
	value    money.Money
	currency money.Currency
	orderID  string
	book     OrderBook

	placeCh   chan<- placeResult
	errCh     chan<- error
	balanceCh chan<- money.Money
	idsCh     chan<- []string
	doneCh    chan<- struct{}
}

// Service is the event-sourced balance ledger of one user. It owns its
// order process children and processes every command strictly in
// arrival order on a single goroutine.
type Service struct {
	cfg           Config
	userID        string
	persistenceID string
	store         eventlog.Store
	log           *zap.Logger

	st       *state
	markets  map[money.Symbol]OrderBook
	children map[string]*OrderProcess

	cmdCh chan command
	now   func() int64

	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewService creates a ledger for the given user and rebuilds its state
// by replaying the user's journal: balances, the active-order set and
// the pending-order maps. Pending orders come back to life when their
// market is registered again.
func NewService(userID string, store eventlog.Store, cfg Config) (*Service, error) {
	if cfg.CommandBuffer <= 0 {
		cfg.CommandBuffer = DefaultConfig().CommandBuffer
	}
	if cfg.MailboxBuffer <= 0 {
		cfg.MailboxBuffer = DefaultConfig().MailboxBuffer
	}
	if cfg.StashLimit <= 0 {
		cfg.StashLimit = DefaultConfig().StashLimit
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultConfig().StopTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	s := &Service{
		cfg:           cfg,
		userID:        userID,
		persistenceID: "balance_" + userID,
		store:         store,
		log:           cfg.Logger.With(zap.String("user_id", userID)),
		st:            newState(),
		markets:       map[money.Symbol]OrderBook{},
		children:      map[string]*OrderProcess{},
		cmdCh:         make(chan command, cfg.CommandBuffer),
		now:           func() int64 { return time.Now().UnixNano() },
		closed:        make(chan struct{}),
	}

	err := store.Replay(s.persistenceID, func(ev eventlog.Event) error {
		lev, ok := ev.(Event)
		if !ok {
			return nil
		}
		return s.st.apply(lev)
	})
	if err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go s.runCommandProcessor()

	return s, nil
}

// UserID returns the owning user of this ledger.
func (s *Service) UserID() string { return s.userID }

func (s *Service) runCommandProcessor() {
	defer s.wg.Done()

	for {
		select {
		case <-s.closed:
			return
		case cmd := <-s.cmdCh:
			if cmd.typ == cmdShutdown {
				s.stopChildren()
				if cmd.doneCh != nil {
					close(cmd.doneCh)
				}
				return
			}
			s.processCommand(cmd)
		}
	}
}

func (s *Service) processCommand(cmd command) {
	switch cmd.typ {
	case cmdPlaceOrder:
		s.handlePlaceOrder(cmd)
	case cmdAddFunds:
		s.handleAddFunds(cmd)
	case cmdAddMarket:
		s.handleAddMarket(cmd)
	case cmdGetBalance:
		cmd.balanceCh <- s.st.balance(cmd.currency)
	case cmdDueExecuted:
		s.handleDueExecuted(cmd)
	case cmdOrderCompleted:
		s.handleOrderCompleted(cmd)
	case cmdActiveOrders:
		ids := make([]string, 0, len(s.st.active))
		for id := range s.st.active {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		cmd.idsCh <- ids
	}
}

func (s *Service) handlePlaceOrder(cmd command) {
	book, ok := s.markets[cmd.symbol]
	if !ok {
		s.log.Info("order rejected: unsupported market", zap.Stringer("symbol", cmd.symbol))
		cmd.placeCh <- placeResult{Err: ErrUnsupportedMarket}
		return
	}
	if cmd.amount.Sign() <= 0 {
		cmd.placeCh <- placeResult{Err: ErrInvalidAmount}
		return
	}
	if cmd.price.Currency != cmd.symbol.Base {
		cmd.placeCh <- placeResult{Err: money.ErrCurrencyMismatch}
		return
	}

	reservation := cmd.price.Mul(cmd.amount)
	if cmd.side == core.SideSell {
		reservation = cmd.symbol.Target.Emit(cmd.amount)
	}
	enough, err := s.st.balance(reservation.Currency).GreaterOrEqual(reservation)
	if err != nil {
		cmd.placeCh <- placeResult{Err: err}
		return
	}
	if !enough {
		s.log.Info("order rejected: not enough funds",
			zap.Stringer("symbol", cmd.symbol),
			zap.String("required", reservation.String()))
		cmd.placeCh <- placeResult{Err: ErrNotEnoughFunds}
		return
	}

	ord := core.Order{
		ID:     cmd.orderID,
		Symbol: cmd.symbol,
		Price:  cmd.price,
		Amount: cmd.amount,
		Time:   s.now(),
	}
	if ord.ID == "" {
		ord.ID = uuid.NewString()
	}

	var created Event = BuyOrderCreated{Order: ord}
	if cmd.side == core.SideSell {
		created = SellOrderCreated{Order: ord}
	}
	if err := s.store.Append(s.persistenceID, created); err != nil {
		cmd.placeCh <- placeResult{Err: err}
		return
	}
	if err := s.st.apply(created); err != nil {
		// the guard above makes this unreachable for a fresh event
		cmd.placeCh <- placeResult{Err: err}
		return
	}

	child, err := s.spawn(ord, cmd.side)
	if err != nil {
		cmd.placeCh <- placeResult{Err: err}
		return
	}

	s.log.Info("order placed",
		zap.String("order_id", ord.ID),
		zap.Stringer("side", cmd.side),
		zap.String("price", cmd.price.String()),
		zap.String("amount", cmd.amount.String()))

	// the child relays the book's ack to the waiting caller
	child.Execute(cmd.ctx, book, cmd.placeCh)
}

// spawn creates, assigns and links an order process child.
func (s *Service) spawn(ord core.Order, side core.Side) (*OrderProcess, error) {
	child, err := newOrderProcess(ord.ID, side, s.store, s.cfg, s.log)
	if err != nil {
		return nil, err
	}
	child.Assign(ord)
	child.Link(s)
	s.children[ord.ID] = child
	return child, nil
}

func (s *Service) handleAddFunds(cmd command) {
	ev := MoneyAdded{Value: cmd.value}
	if err := s.store.Append(s.persistenceID, ev); err != nil {
		cmd.errCh <- err
		return
	}
	if err := s.st.apply(ev); err != nil {
		cmd.errCh <- err
		return
	}
	s.log.Info("funds added", zap.String("value", cmd.value.String()))
	cmd.errCh <- nil
}

func (s *Service) handleAddMarket(cmd command) {
	s.markets[cmd.symbol] = cmd.book

	// pending orders for this symbol become live order processes now
	// that a book is known
	for id, ord := range s.st.pendingBuy {
		if ord.Symbol != cmd.symbol {
			continue
		}
		if _, live := s.children[id]; live {
			continue
		}
		if err := s.activatePending(cmd.ctx, ord, core.SideBuy, cmd.book); err != nil {
			cmd.errCh <- err
			return
		}
	}
	for id, ord := range s.st.pendingSell {
		if ord.Symbol != cmd.symbol {
			continue
		}
		if _, live := s.children[id]; live {
			continue
		}
		if err := s.activatePending(cmd.ctx, ord, core.SideSell, cmd.book); err != nil {
			cmd.errCh <- err
			return
		}
	}

	cmd.errCh <- nil
}

func (s *Service) activatePending(ctx context.Context, ord core.Order, side core.Side, book OrderBook) error {
	child, err := s.spawn(ord, side)
	if err != nil {
		return err
	}
	s.log.Info("pending order activated", zap.String("order_id", ord.ID), zap.Stringer("side", side))
	child.Execute(ctx, book, nil)
	return nil
}

func (s *Service) handleDueExecuted(cmd command) {
	if _, active := s.st.active[cmd.orderID]; !active {
		s.log.Debug("ignoring execution for inactive order", zap.String("order_id", cmd.orderID))
		return
	}
	ev := BalanceChanged{OrderID: cmd.orderID, Credit: cmd.value}
	if err := s.store.Append(s.persistenceID, ev); err != nil {
		s.log.Error("failed to persist balance change", zap.Error(err))
		return
	}
	if err := s.st.apply(ev); err != nil {
		s.log.Error("failed to apply balance change", zap.Error(err))
		return
	}
	s.log.Info("balance changed due to order execution",
		zap.String("order_id", cmd.orderID),
		zap.String("credit", cmd.value.String()))
}

func (s *Service) handleOrderCompleted(cmd command) {
	if _, active := s.st.active[cmd.orderID]; !active {
		return
	}
	ev := OrderCompleted{OrderID: cmd.orderID}
	if err := s.store.Append(s.persistenceID, ev); err != nil {
		s.log.Error("failed to persist order completion", zap.Error(err))
		return
	}
	if err := s.st.apply(ev); err != nil {
		s.log.Error("failed to apply order completion", zap.Error(err))
		return
	}
	delete(s.children, cmd.orderID)
	s.log.Info("order completed", zap.String("order_id", cmd.orderID))
}

func (s *Service) stopChildren() {
	deadline := time.Now().Add(s.cfg.StopTimeout)
	for id, child := range s.children {
		ctx, cancel := context.WithDeadline(context.Background(), deadline)
		if err := child.Stop(ctx); err != nil {
			s.log.Warn("order process did not stop in time", zap.String("order_id", id), zap.Error(err))
		}
		cancel()
	}
}

// PlaceBuyOrder reserves price*amount in the quote currency and submits
// a buy order. It returns the generated order id once the book has
// acknowledged the order.
func (s *Service) PlaceBuyOrder(ctx context.Context, symbol money.Symbol, price money.Money, amount decimal.Decimal) (string, error) {
	return s.placeOrder(ctx, core.SideBuy, symbol, price, amount)
}

// PlaceSellOrder reserves the sold amount of the traded asset and
// submits a sell order.
func (s *Service) PlaceSellOrder(ctx context.Context, symbol money.Symbol, price money.Money, amount decimal.Decimal) (string, error) {
	return s.placeOrder(ctx, core.SideSell, symbol, price, amount)
}

func (s *Service) placeOrder(ctx context.Context, side core.Side, symbol money.Symbol, price money.Money, amount decimal.Decimal) (string, error) {
	placeCh := make(chan placeResult, 1)
	cmd := command{
		typ:     cmdPlaceOrder,
		ctx:     ctx,
		side:    side,
		symbol:  symbol,
		price:   price,
		amount:  amount,
		placeCh: placeCh,
	}

	if err := s.enqueue(ctx, cmd); err != nil {
		return "", err
	}

	select {
	case <-s.closed:
		return "", context.Canceled
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-placeCh:
		return res.OrderID, res.Err
	}
}

// AddFunds credits the ledger unconditionally.
func (s *Service) AddFunds(ctx context.Context, value money.Money) error {
	errCh := make(chan error, 1)
	if err := s.enqueue(ctx, command{typ: cmdAddFunds, value: value, errCh: errCh}); err != nil {
		return err
	}
	return s.awaitErr(ctx, errCh)
}

// AddMarket binds a symbol to a book and activates any pending orders
// for that symbol.
func (s *Service) AddMarket(ctx context.Context, symbol money.Symbol, book OrderBook) error {
	errCh := make(chan error, 1)
	if err := s.enqueue(ctx, command{typ: cmdAddMarket, ctx: ctx, symbol: symbol, book: book, errCh: errCh}); err != nil {
		return err
	}
	return s.awaitErr(ctx, errCh)
}

// GetBalance returns the current balance for a currency, zero money of
// that currency if none was ever held.
func (s *Service) GetBalance(ctx context.Context, currency money.Currency) (money.Money, error) {
	balanceCh := make(chan money.Money, 1)
	if err := s.enqueue(ctx, command{typ: cmdGetBalance, currency: currency, balanceCh: balanceCh}); err != nil {
		return money.Money{}, err
	}
	select {
	case <-s.closed:
		return money.Money{}, context.Canceled
	case <-ctx.Done():
		return money.Money{}, ctx.Err()
	case m := <-balanceCh:
		return m, nil
	}
}

// ActiveOrders returns the ids of currently active orders, sorted.
func (s *Service) ActiveOrders(ctx context.Context) ([]string, error) {
	idsCh := make(chan []string, 1)
	if err := s.enqueue(ctx, command{typ: cmdActiveOrders, idsCh: idsCh}); err != nil {
		return nil, err
	}
	select {
	case <-s.closed:
		return nil, context.Canceled
	case <-ctx.Done():
		return nil, ctx.Err()
	case ids := <-idsCh:
		return ids, nil
	}
}

// AddDueOrderExecuted implements Settler: credits the ledger with the
// proceeds of one fill. Credits for ids outside the active set are
// ignored.
func (s *Service) AddDueOrderExecuted(orderID string, credit money.Money) {
	s.enqueueAsync(command{typ: cmdDueExecuted, orderID: orderID, value: credit})
}

// OrderCompleted implements Settler: removes a fully filled order from
// active tracking.
func (s *Service) OrderCompleted(orderID string) {
	s.enqueueAsync(command{typ: cmdOrderCompleted, orderID: orderID})
}

func (s *Service) enqueue(ctx context.Context, cmd command) error {
	select {
	case <-s.closed:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	case s.cmdCh <- cmd:
		return nil
	}
}

func (s *Service) enqueueAsync(cmd command) {
	select {
	case <-s.closed:
	case s.cmdCh <- cmd:
	}
}

func (s *Service) awaitErr(ctx context.Context, errCh <-chan error) error {
	select {
	case <-s.closed:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Close gracefully stops all order process children within the
// configured bound, then stops the service.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		done := make(chan struct{})
		s.cmdCh <- command{typ: cmdShutdown, doneCh: done}
		<-done
		close(s.closed)
	})
	s.wg.Wait()
}
