package ledger

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/zappabad/exchange/internal/eventlog"
	"github.com/zappabad/exchange/internal/money"
	"github.com/zappabad/exchange/internal/orderbook/core"
	bookservice "github.com/zappabad/exchange/internal/orderbook/service"
)

// Settler receives balance effects from an order process. The owning
// ledger service implements it; tests substitute a fake.
type Settler interface {
	AddDueOrderExecuted(orderID string, credit money.Money)
	OrderCompleted(orderID string)
}

// OrderBook is the book surface an order process submits to.
// *bookservice.Service satisfies it.
type OrderBook interface {
	Submit(ctx context.Context, order core.Order, side core.Side, owner bookservice.Notifier) (bookservice.Ack, error)
}

type procPhase int

const (
	// procInitializing waits for the order assignment and the settler
	// link, which may arrive in either relative order.
	procInitializing procPhase = iota
	procWorking
	procCompleted
	procFailed
)

type procMsg interface{ isProcMsg() }

type assignMsg struct{ order core.Order }

type linkMsg struct{ settler Settler }

type executeMsg struct {
	ctx     context.Context
	book    OrderBook
	replyTo chan<- placeResult
}

type executedMsg struct{ ev core.OrderExecutedEvent }

type stopMsg struct{}

func (assignMsg) isProcMsg()   {}
func (linkMsg) isProcMsg()     {}
func (executeMsg) isProcMsg()  {}
func (executedMsg) isProcMsg() {}
func (stopMsg) isProcMsg()     {}

// placeResult answers a placement request. On the success path it is
// sent by the order process after the book's ack, relaying the
// acknowledgment transparently to the original caller.
type placeResult struct {
	OrderID string
	Err     error
}

// OrderProcess tracks the lifecycle of a single order: it persists its
// own creation and every fill, forwards balance deltas to its settler,
// and signals completion once the remaining amount reaches exactly
// zero. One process exists per active order, owned by its ledger.
type OrderProcess struct {
	id            string
	side          core.Side
	persistenceID string
	store         eventlog.Store
	log           *zap.Logger
	stashLimit    int

	mailbox chan procMsg
	done    chan struct{}

	mu        sync.Mutex
	order     core.Order
	hasOrder  bool
	remaining decimal.Decimal
	settler   Settler
	phase     procPhase
	err       error
}

// newOrderProcess creates an order process and replays its journal, so
// a process restarted under the same id resumes with the remaining
// amount it had before the crash.
func newOrderProcess(id string, side core.Side, store eventlog.Store, cfg Config, log *zap.Logger) (*OrderProcess, error) {
	p := &OrderProcess{
		id:            id,
		side:          side,
		persistenceID: "order_" + id,
		store:         store,
		log:           log.With(zap.String("order_id", id), zap.Stringer("side", side)),
		stashLimit:    cfg.StashLimit,
		mailbox:       make(chan procMsg, cfg.MailboxBuffer),
		done:          make(chan struct{}),
	}

	err := store.Replay(p.persistenceID, func(ev eventlog.Event) error {
		switch e := ev.(type) {
		case OrderAssigned:
			p.order = e.Order
			p.hasOrder = true
			p.remaining = e.Order.Amount
		case OrderExecution:
			p.remaining = p.remaining.Sub(e.Amount)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	go p.run()
	return p, nil
}

// Assign delivers the order data. Idempotent: an already-assigned
// process (for example after replay) ignores the duplicate.
func (p *OrderProcess) Assign(o core.Order) {
	p.send(assignMsg{order: o})
}

// Link delivers the settler reference.
func (p *OrderProcess) Link(s Settler) {
	p.send(linkMsg{settler: s})
}

// Execute submits the order to the book. The book's ack is relayed to
// replyTo, which may be nil when no caller is waiting.
func (p *OrderProcess) Execute(ctx context.Context, book OrderBook, replyTo chan<- placeResult) {
	p.send(executeMsg{ctx: ctx, book: book, replyTo: replyTo})
}

// OrderExecuted implements bookservice.Notifier.
func (p *OrderProcess) OrderExecuted(ev core.OrderExecutedEvent) {
	p.send(executedMsg{ev: ev})
}

func (p *OrderProcess) send(msg procMsg) {
	select {
	case p.mailbox <- msg:
	case <-p.done:
	}
}

// Stop asks the process to terminate and waits for it, bounded by ctx.
func (p *OrderProcess) Stop(ctx context.Context) error {
	select {
	case p.mailbox <- stopMsg{}:
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when the process has terminated.
func (p *OrderProcess) Done() <-chan struct{} { return p.done }

// Err reports why the process terminated; ErrOverFill marks the fatal
// bookkeeping divergence.
func (p *OrderProcess) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Remaining returns the unfilled amount.
func (p *OrderProcess) Remaining() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remaining
}

func (p *OrderProcess) run() {
	defer close(p.done)

	var stash []procMsg

	for msg := range p.mailbox {
		if _, ok := msg.(stopMsg); ok {
			return
		}

		if p.phase == procInitializing {
			switch m := msg.(type) {
			case assignMsg:
				p.handleAssign(m)
			case linkMsg:
				p.mu.Lock()
				p.settler = m.settler
				p.mu.Unlock()
			default:
				// can't act on it yet; buffer until setup completes
				if len(stash) >= p.stashLimit {
					p.log.Warn("stash full, dropping message", zap.Int("limit", p.stashLimit))
					continue
				}
				stash = append(stash, msg)
				continue
			}

			if p.hasOrder && p.settler != nil {
				p.setPhase(procWorking)
				for _, buffered := range stash {
					if p.handleWorking(buffered) {
						return
					}
				}
				stash = nil
			}
			continue
		}

		if p.handleWorking(msg) {
			return
		}
	}
}

func (p *OrderProcess) handleAssign(m assignMsg) {
	if p.hasOrder {
		return
	}
	if err := p.store.Append(p.persistenceID, OrderAssigned{Order: m.order, Side: p.side}); err != nil {
		p.log.Error("failed to persist order assignment", zap.Error(err))
		return
	}
	p.mu.Lock()
	p.order = m.order
	p.hasOrder = true
	p.remaining = m.order.Amount
	p.mu.Unlock()
}

// handleWorking processes one message in the working phase. It reports
// whether the process should terminate.
func (p *OrderProcess) handleWorking(msg procMsg) bool {
	switch m := msg.(type) {
	case executeMsg:
		ack, err := m.book.Submit(m.ctx, p.order, p.side, p)
		if m.replyTo != nil {
			m.replyTo <- placeResult{OrderID: ack.OrderID, Err: err}
		}
		if err != nil {
			p.log.Error("book rejected order submission", zap.Error(err))
		}
		return false

	case executedMsg:
		return p.handleExecuted(m.ev)

	case assignMsg, linkMsg:
		// duplicate setup messages are ignored once working
		return false

	default:
		return false
	}
}

func (p *OrderProcess) handleExecuted(ev core.OrderExecutedEvent) bool {
	if ev.OrderID != p.order.ID {
		// not for me
		return false
	}

	if ev.Amount.GreaterThan(p.remaining) {
		// the matching engine and this order's bookkeeping have
		// diverged; terminating is the only safe move
		p.log.Error("fill exceeds remaining amount",
			zap.String("fill", ev.Amount.String()),
			zap.String("remaining", p.remaining.String()))
		p.mu.Lock()
		p.err = ErrOverFill
		p.mu.Unlock()
		p.setPhase(procFailed)
		return true
	}

	if err := p.store.Append(p.persistenceID, OrderExecution{Amount: ev.Amount}); err != nil {
		p.log.Error("failed to persist execution", zap.Error(err))
		return false
	}

	p.mu.Lock()
	p.remaining = p.remaining.Sub(ev.Amount)
	remaining := p.remaining
	p.mu.Unlock()

	p.settler.AddDueOrderExecuted(p.id, p.credit(ev))

	if remaining.IsZero() {
		p.settler.OrderCompleted(p.id)
		p.setPhase(procCompleted)
		return true
	}
	return false
}

// credit computes the side-specific balance delta for a fill: a buy
// credits the purchased asset, a sell credits the proceeds at the fill
// price.
func (p *OrderProcess) credit(ev core.OrderExecutedEvent) money.Money {
	if p.side == core.SideBuy {
		return p.order.Symbol.Target.Emit(ev.Amount)
	}
	return ev.Price.Mul(ev.Amount)
}

func (p *OrderProcess) setPhase(ph procPhase) {
	p.mu.Lock()
	p.phase = ph
	p.mu.Unlock()
}
