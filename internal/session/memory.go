package session

import (
	"context"
	"sync"
	"time"
)

// maxSweepInterval caps how long expired sessions linger before Update drops them.
const maxSweepInterval = time.Minute

type memoryEntry struct {
	state   State
	expires time.Time
}

// MemoryStore keeps sessions in process. Entries expire after ttl of inactivity.
type MemoryStore struct {
	mu        sync.Mutex
	ttl       time.Duration
	now       func() time.Time
	entries   map[string]memoryEntry
	lastSweep time.Time
}

// NewMemoryStore creates an in-process store. A non-positive ttl never expires.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

// Get returns a copy of the stored state.
func (s *MemoryStore) Get(_ context.Context, id string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(id), nil
}

// Update runs fn under the store lock; fn must not block.
func (s *MemoryStore) Update(_ context.Context, id string, fn UpdateFunc) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep()
	st := s.load(id)
	if err := fn(&st); err != nil {
		return State{}, err
	}
	st.UpdatedAt = s.now()
	e := memoryEntry{state: st}
	if s.ttl > 0 {
		e.expires = st.UpdatedAt.Add(s.ttl)
	}
	s.entries[id] = e
	return st, nil
}

// Delete drops the session.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

// Close drops every session.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]memoryEntry)
	return nil
}

// sweep drops every expired session, at most once per sweep interval.
// It expects s.mu held.
func (s *MemoryStore) sweep() {
	if s.ttl <= 0 {
		return
	}
	now := s.now()
	if now.Sub(s.lastSweep) < min(s.ttl, maxSweepInterval) {
		return
	}
	s.lastSweep = now
	for id, e := range s.entries {
		if !now.Before(e.expires) {
			delete(s.entries, id)
		}
	}
}

// load expects s.mu held.
func (s *MemoryStore) load(id string) State {
	e, ok := s.entries[id]
	if !ok {
		return State{}
	}
	if !e.expires.IsZero() && !s.now().Before(e.expires) {
		delete(s.entries, id)
		return State{}
	}
	// File is shared read-only between copies; writers replace the pointer.
	return e.state
}
