package schedule

import (
	"sort"
	"sync"

	"github.com/hupe1980/cmdmesh/core"
)

// Store persists schedulers.
type Store interface {
	Save(s *Scheduler) error
	Get(id string) (*Scheduler, error)
	Delete(id string) error
	// List returns all schedulers ordered by ID.
	List() ([]*Scheduler, error)
	// Update loads the scheduler with id, applies fn and saves the result as
	// one step. Writers racing on the same scheduler are serialized. An error
	// from fn leaves the stored scheduler unchanged and is returned.
	Update(id string, fn func(s *Scheduler) error) (*Scheduler, error)
}

// InMemoryStore is a process-local Store. Schedulers are copied on the way
// in and out.
type InMemoryStore struct {
	mu         sync.RWMutex
	schedulers map[string]*Scheduler
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{schedulers: make(map[string]*Scheduler)}
}

// Save inserts or replaces s.
func (st *InMemoryStore) Save(s *Scheduler) error {
	if err := s.Schedule.Validate(); err != nil {
		return err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	st.schedulers[s.ID] = s.Clone()

	return nil
}

// Get returns the scheduler with id.
func (st *InMemoryStore) Get(id string) (*Scheduler, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	s, ok := st.schedulers[id]
	if !ok {
		return nil, core.Errorf(core.ErrCodeNotFound, "scheduler %q not found", id)
	}
	return s.Clone(), nil
}

// Delete removes the scheduler with id.
func (st *InMemoryStore) Delete(id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.schedulers[id]; !ok {
		return core.Errorf(core.ErrCodeNotFound, "scheduler %q not found", id)
	}
	delete(st.schedulers, id)
	return nil
}

// Update implements Store.
func (st *InMemoryStore) Update(id string, fn func(s *Scheduler) error) (*Scheduler, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	cur, ok := st.schedulers[id]
	if !ok {
		return nil, core.Errorf(core.ErrCodeNotFound, "scheduler %q not found", id)
	}

	s := cur.Clone()
	if err := fn(s); err != nil {
		return nil, err
	}
	if err := s.Schedule.Validate(); err != nil {
		return nil, err
	}
	st.schedulers[id] = s.Clone()

	return s, nil
}

// List implements Store.
func (st *InMemoryStore) List() ([]*Scheduler, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := make([]*Scheduler, 0, len(st.schedulers))
	for _, s := range st.schedulers {
		out = append(out, s.Clone())
	}
	SortByID(out)

	return out, nil
}

// SortByID orders schedulers by ID.
func SortByID(ss []*Scheduler) {
	sort.Slice(ss, func(i, j int) bool { return ss[i].ID < ss[j].ID })
}

var _ Store = (*InMemoryStore)(nil)
