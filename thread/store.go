package thread

import (
	"sync"

	"github.com/hupe1980/cmdmesh/core"
)

// Store persists threads by id. Implementations must be safe for concurrent
// access since sessions of different kinds open threads in parallel.
type Store interface {
	Get(id string) (*Thread, error)
	Create(id string) (*Thread, error)
	Delete(id string) error
}

// InMemoryStore is a volatile Store keeping threads in a process local map.
// It is best suited for tests and single-process deployments. Get hands out
// the live thread so appends made by the session are visible to later
// readers.
type InMemoryStore struct {
	mu      sync.RWMutex
	threads map[string]*Thread
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty in‑memory thread store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{threads: make(map[string]*Thread)}
}

// Get returns an existing thread or creates a new one lazily.
func (s *InMemoryStore) Get(id string) (*Thread, error) {
	s.mu.RLock()
	th, ok := s.threads[id]
	s.mu.RUnlock()
	if ok {
		return th, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if th, ok := s.threads[id]; ok {
		return th, nil
	}
	return s.createLocked(id), nil
}

// Create forces the creation (or replacement) of a thread with the given id.
func (s *InMemoryStore) Create(id string) (*Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(id), nil
}

// Delete removes a thread.
func (s *InMemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.threads[id]; !ok {
		return core.Errorf(core.ErrCodeNotFound, "thread %s not found", id)
	}
	delete(s.threads, id)
	return nil
}

// createLocked allocates and stores a new thread; caller must hold the write lock.
func (s *InMemoryStore) createLocked(id string) *Thread {
	th := New(id)
	s.threads[id] = th
	return th
}
