package ledger

import "errors"

var (
	// ErrUnsupportedMarket rejects a placement for a symbol with no
	// registered book. Nothing is persisted.
	ErrUnsupportedMarket = errors.New("unsupported market")

	// ErrNotEnoughFunds rejects a placement whose reservation exceeds
	// the free balance. Nothing is persisted.
	ErrNotEnoughFunds = errors.New("not enough funds")

	// ErrInvalidAmount rejects zero or negative order amounts at the
	// ledger boundary, before they can reach a book.
	ErrInvalidAmount = errors.New("order amount must be positive")

	// ErrOverFill is the fatal invariant violation raised when a fill
	// exceeds an order's remaining amount. It terminates the order
	// process; it is never clamped or absorbed.
	ErrOverFill = errors.New("fill exceeds remaining order amount")
)
