package stateful

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// DefaultShardCount is the number of store shards used by NewHandler.
const DefaultShardCount = 32

type stateKey struct {
	scope string
	id    string
}

// stateEntry holds one resource's state. Its mutex serializes the
// read-modify-write of a transition.
type stateEntry struct {
	mu    sync.Mutex
	state string
}

type storeShard struct {
	mu      sync.RWMutex
	entries map[stateKey]*stateEntry
}

// Store tracks the current state of every resource, keyed by scope and
// resource id. Keys are spread over shards by hash so unrelated resources
// never contend on the same lock.
type Store struct {
	shards []*storeShard
}

// NewStore creates a store with n shards (DefaultShardCount when n < 1).
func NewStore(n int) *Store {
	if n < 1 {
		n = DefaultShardCount
	}
	s := &Store{shards: make([]*storeShard, n)}
	for i := range s.shards {
		s.shards[i] = &storeShard{entries: make(map[stateKey]*stateEntry)}
	}
	return s
}

func (s *Store) shardFor(k stateKey) *storeShard {
	h := xxhash.Sum64String(k.scope + "\x00" + k.id)
	return s.shards[h%uint64(len(s.shards))]
}

// entry returns the entry for k, creating it in state initial when missing.
func (s *Store) entry(k stateKey, initial string) *stateEntry {
	sh := s.shardFor(k)

	sh.mu.RLock()
	e, ok := sh.entries[k]
	sh.mu.RUnlock()
	if ok {
		return e
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if e, ok = sh.entries[k]; ok {
		return e
	}
	e = &stateEntry{state: initial}
	sh.entries[k] = e
	return e
}

// GetOrInit returns the resource's state, initializing it to InitialState on
// first access.
func (s *Store) GetOrInit(scope, id string) string {
	e := s.entry(stateKey{scope, id}, InitialState)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Get returns the resource's state without initializing it.
func (s *Store) Get(scope, id string) (string, bool) {
	k := stateKey{scope, id}
	sh := s.shardFor(k)
	sh.mu.RLock()
	e, ok := sh.entries[k]
	sh.mu.RUnlock()
	if !ok {
		return "", false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, true
}

// Set overwrites the resource's state.
func (s *Store) Set(scope, id, state string) {
	e := s.entry(stateKey{scope, id}, state)
	e.mu.Lock()
	e.state = state
	e.mu.Unlock()
}

// Update applies fn to the resource's current state and stores the result,
// holding the resource's lock for the duration. A missing resource starts in
// InitialState.
func (s *Store) Update(scope, id string, fn func(current string) string) (previous, next string) {
	return s.UpdateFrom(scope, id, InitialState, fn)
}

// UpdateFrom is Update with a custom initial state for new resources.
func (s *Store) UpdateFrom(scope, id, initial string, fn func(current string) string) (previous, next string) {
	e := s.entry(stateKey{scope, id}, initial)
	e.mu.Lock()
	defer e.mu.Unlock()
	previous = e.state
	e.state = fn(previous)
	return previous, e.state
}

// Reset removes every resource in scope, or every resource when scope is
// empty. It returns the number of resources removed.
func (s *Store) Reset(scope string) int {
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for k := range sh.entries {
			if scope == "" || k.scope == scope {
				delete(sh.entries, k)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Count returns the number of resources tracked in scope, or in total when
// scope is empty.
func (s *Store) Count(scope string) int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		if scope == "" {
			n += len(sh.entries)
		} else {
			for k := range sh.entries {
				if k.scope == scope {
					n++
				}
			}
		}
		sh.mu.RUnlock()
	}
	return n
}

// Scopes returns the number of tracked resources per scope.
func (s *Store) Scopes() map[string]int {
	out := make(map[string]int)
	for _, sh := range s.shards {
		sh.mu.RLock()
		for k := range sh.entries {
			out[k.scope]++
		}
		sh.mu.RUnlock()
	}
	return out
}
