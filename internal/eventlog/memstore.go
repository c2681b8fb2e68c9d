package eventlog

import "sync"

// MemStore is the in-process Store used by tests and the demo binary.
// Journals are kept per persistence id, in append order.
type MemStore struct {
	mu        sync.Mutex
	journals  map[string][]Event
	snapshots map[string]any
	appendErr error
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		journals:  map[string][]Event{},
		snapshots: map[string]any{},
	}
}

// Append appends an event to the journal of the given persistence id.
func (s *MemStore) Append(persistenceID string, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	s.journals[persistenceID] = append(s.journals[persistenceID], ev)
	return nil
}

// Replay invokes fn for every stored event of the persistence id, in
// append order.
func (s *MemStore) Replay(persistenceID string, fn func(Event) error) error {
	s.mu.Lock()
	journal := make([]Event, len(s.journals[persistenceID]))
	copy(journal, s.journals[persistenceID])
	s.mu.Unlock()

	for _, ev := range journal {
		if err := fn(ev); err != nil {
			return err
		}
	}
	return nil
}

// SaveSnapshot stores a snapshot for the persistence id.
func (s *MemStore) SaveSnapshot(persistenceID string, state any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[persistenceID] = state
	return nil
}

// LoadSnapshot returns the stored snapshot, if any.
func (s *MemStore) LoadSnapshot(persistenceID string) (any, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.snapshots[persistenceID]
	return state, ok, nil
}

// Events returns a copy of the journal for the persistence id.
func (s *MemStore) Events(persistenceID string) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.journals[persistenceID]))
	copy(out, s.journals[persistenceID])
	return out
}

// SetAppendErr makes every subsequent Append fail with err until reset
// with nil. Used to exercise persistence-failure paths.
func (s *MemStore) SetAppendErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendErr = err
}
