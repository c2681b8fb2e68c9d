package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zappabad/exchange/internal/money"
	"github.com/zappabad/exchange/internal/orderbook/core"
	"github.com/zappabad/exchange/internal/orderbook/view"
)

// Notifier receives fill notifications for one counterparty. Each side
// of a trade is notified independently; implementations typically
// enqueue into their own mailbox.
type Notifier interface {
	OrderExecuted(ev core.OrderExecutedEvent)
}

// Ack acknowledges that the book accepted an order. It is sent to the
// submitter before any fill notification and says nothing about the
// matching outcome.
type Ack struct {
	OrderID string
}

type command struct {
	order  core.Order
	side   core.Side
	owner  Notifier
	respCh chan<- response
}

type response struct {
	ack Ack
	err error
}

// Service owns the matching core for one market. All submissions are
// processed strictly sequentially by a single goroutine, which is what
// gives matching its price-time determinism.
type Service struct {
	cfg    Config
	core   *core.Core
	view   *view.BookView
	owners map[string]Notifier
	log    *zap.Logger

	cmdCh chan command
	now   func() int64

	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewService creates a book service for the given symbol.
func NewService(symbol money.Symbol, cfg Config) *Service {
	if cfg.CommandBuffer <= 0 {
		cfg.CommandBuffer = DefaultConfig().CommandBuffer
	}
	if cfg.FillTapeSize <= 0 {
		cfg.FillTapeSize = DefaultConfig().FillTapeSize
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	s := &Service{
		cfg:    cfg,
		core:   core.NewCore(symbol),
		view:   view.NewBookView(cfg.FillTapeSize),
		owners: map[string]Notifier{},
		log:    cfg.Logger.With(zap.String("symbol", symbol.String())),
		cmdCh:  make(chan command, cfg.CommandBuffer),
		now:    func() int64 { return time.Now().UnixNano() },
		closed: make(chan struct{}),
	}

	s.wg.Add(1)
	go s.runCommandProcessor()

	return s
}

// Symbol returns the market this book matches.
func (s *Service) Symbol() money.Symbol { return s.core.Symbol() }

func (s *Service) runCommandProcessor() {
	defer s.wg.Done()

	for {
		select {
		case <-s.closed:
			return
		case cmd := <-s.cmdCh:
			s.processCommand(cmd)
		}
	}
}

func (s *Service) processCommand(cmd command) {
	if cmd.order.Time == 0 {
		cmd.order.Time = s.now()
	}

	report, events, err := s.core.Submit(cmd.order, cmd.side)
	if err != nil {
		if cmd.respCh != nil {
			cmd.respCh <- response{err: err}
		}
		return
	}

	// Register the owner before dispatching so the submitter's own
	// fills can be routed, then acknowledge. The ack always reaches the
	// submitter before any of its fill notifications.
	if cmd.owner != nil {
		s.owners[cmd.order.ID] = cmd.owner
	}
	if cmd.respCh != nil {
		cmd.respCh <- response{ack: Ack{OrderID: cmd.order.ID}}
	}

	for _, ev := range events {
		s.view.Apply(ev)

		switch e := ev.(type) {
		case core.OrderExecutedEvent:
			s.log.Debug("order executed",
				zap.String("order_id", e.OrderID),
				zap.String("amount", e.Amount.String()),
				zap.String("price", e.Price.String()))
			if owner, ok := s.owners[e.OrderID]; ok {
				owner.OrderExecuted(e)
			}
		case core.OrderRemovedEvent:
			delete(s.owners, e.OrderID)
		}
	}

	if !report.Rested {
		delete(s.owners, cmd.order.ID)
	}
}

// Submit sends an order to the book and waits for the acceptance ack.
// Fill notifications are delivered asynchronously to owner.
func (s *Service) Submit(ctx context.Context, order core.Order, side core.Side, owner Notifier) (Ack, error) {
	respCh := make(chan response, 1)
	cmd := command{
		order:  order,
		side:   side,
		owner:  owner,
		respCh: respCh,
	}

	select {
	case <-s.closed:
		return Ack{}, context.Canceled
	case <-ctx.Done():
		return Ack{}, ctx.Err()
	case s.cmdCh <- cmd:
	}

	select {
	case <-s.closed:
		return Ack{}, context.Canceled
	case <-ctx.Done():
		return Ack{}, ctx.Err()
	case resp := <-respCh:
		return resp.ack, resp.err
	}
}

// Levels returns aggregate depth for a side (from the view).
func (s *Service) Levels(side core.Side) []view.Level {
	return s.view.Levels(side)
}

// FillsLast returns the last n fill notifications (from the view).
func (s *Service) FillsLast(n int) []core.OrderExecutedEvent {
	return s.view.FillsLast(n)
}

// Close shuts down the service and waits for the command loop to finish.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
	s.wg.Wait()
}
