package prompt

import (
	"sort"
	"sync"

	"github.com/hupe1980/cmdmesh/core"
)

// Store persists prompts.
type Store interface {
	Save(p *Prompt) error
	Get(id string) (*Prompt, error)
	GetByName(name string) (*Prompt, error)
	List() ([]*Prompt, error)
	Delete(id string) error
}

// InMemoryStore is a concurrency-safe Store. Names are unique and the
// source of a stored prompt is immutable.
type InMemoryStore struct {
	mu      sync.RWMutex
	prompts map[string]*Prompt
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{prompts: make(map[string]*Prompt)}
}

// Save inserts or updates p.
func (s *InMemoryStore) Save(p *Prompt) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := CheckUpdate(s.prompts[p.ID], p); err != nil {
		return err
	}
	for id, other := range s.prompts {
		if id != p.ID && other.Name == p.Name {
			return core.Errorf(core.ErrCodeInvalidPrompt, "prompt name %q already used by %s", p.Name, id)
		}
	}

	s.prompts[p.ID] = p.Clone()

	return nil
}

// Get returns the prompt with id.
func (s *InMemoryStore) Get(id string) (*Prompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.prompts[id]
	if !ok {
		return nil, core.Errorf(core.ErrCodeNotFound, "prompt %q not found", id)
	}
	return p.Clone(), nil
}

// GetByName returns the prompt named name.
func (s *InMemoryStore) GetByName(name string) (*Prompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.prompts {
		if p.Name == name {
			return p.Clone(), nil
		}
	}
	return nil, core.Errorf(core.ErrCodeNotFound, "prompt %q not found", name)
}

// List returns all prompts sorted by name.
func (s *InMemoryStore) List() ([]*Prompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Prompt, 0, len(s.prompts))
	for _, p := range s.prompts {
		out = append(out, p.Clone())
	}
	SortByName(out)

	return out, nil
}

// Delete removes the prompt with id.
func (s *InMemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.prompts[id]; !ok {
		return core.Errorf(core.ErrCodeNotFound, "prompt %q not found", id)
	}
	delete(s.prompts, id)

	return nil
}

// CheckUpdate rejects updates that change a stored prompt's source.
func CheckUpdate(existing, next *Prompt) error {
	if existing != nil && existing.Source != next.Source {
		return core.Errorf(core.ErrCodeInvalidPrompt, "prompt %s: source is immutable (%s)", next.Name, existing.Source)
	}
	return nil
}

// SortByName orders prompts by name.
func SortByName(ps []*Prompt) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].Name < ps[j].Name })
}

var _ Store = (*InMemoryStore)(nil)
