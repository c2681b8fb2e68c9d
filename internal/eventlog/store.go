// Package eventlog defines the append-only event store boundary used by
// the event-sourced services. State transitions are appended as
// immutable events before any in-memory mutation is applied, and are
// replayed in write order on restart.
package eventlog

// Event is a persisted state transition. Concrete event types are owned
// by the persisting package.
type Event any

// Store is the persistence collaborator. Append must not return until
// the event is durably written; callers apply the corresponding
// in-memory mutation only on a nil error.
type Store interface {
	// Append durably appends an event to the journal of the given
	// persistent identity.
	Append(persistenceID string, ev Event) error

	// Replay invokes fn for every event of the given persistent
	// identity, in write order. A non-nil error from fn stops the
	// replay and is returned.
	Replay(persistenceID string, fn func(Event) error) error
}

// Snapshotter is optionally implemented by stores that support
// snapshots. Snapshots only shorten replay; they are never required for
// correctness.
type Snapshotter interface {
	SaveSnapshot(persistenceID string, state any) error
	LoadSnapshot(persistenceID string) (state any, ok bool, err error)
}
