package memory

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/cmdmesh/core"
)

// StoredMemory is the internal representation persisted by InMemoryStore.
type StoredMemory struct {
	ID       string
	Content  string
	Metadata map[string]any
	seq      int
}

// InMemoryStore is a process-local MemoryStore. It offers:
//  1. Scoped key/value memory (Get / Put)
//  2. Append-only stored memories with keyword Search
//
// Search scores an entry by the fraction of query terms it contains
// (case-insensitive). Ties keep insertion order.
type InMemoryStore struct {
	mu      sync.RWMutex
	memory  map[string]map[string]any          // scope -> key -> value
	storage map[string]map[string]StoredMemory // scope -> memoryID -> stored memory
	next    int
}

// NewInMemoryStore creates a new in-memory memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		memory:  make(map[string]map[string]any),
		storage: make(map[string]map[string]StoredMemory),
	}
}

// Get returns a shallow copy of the key/value memory map for the scope.
func (m *InMemoryStore) Get(scope string) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]any, len(m.memory[scope]))
	for k, v := range m.memory[scope] {
		result[k] = v
	}

	return result, nil
}

// Put merges delta into the scope's key/value memory.
func (m *InMemoryStore) Put(scope string, delta map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.memory[scope]; !exists {
		m.memory[scope] = make(map[string]any)
	}
	for k, v := range delta {
		m.memory[scope][k] = v
	}

	return nil
}

// Search returns up to limit stored memories matching query, best first.
// An empty query matches everything with score 1.
func (m *InMemoryStore) Search(scope string, query string, limit int) ([]core.SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	terms := Terms(query)

	type hit struct {
		stored StoredMemory
		score  float64
	}

	hits := make([]hit, 0, len(m.storage[scope]))
	for _, stored := range m.storage[scope] {
		score := Score(stored.Content, terms)
		if score > 0 {
			hits = append(hits, hit{stored: stored, score: score})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].stored.seq < hits[j].stored.seq
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}

	results := make([]core.SearchResult, 0, len(hits))
	for _, h := range hits {
		md := make(map[string]any, len(h.stored.Metadata))
		for k, v := range h.stored.Metadata {
			md[k] = v
		}
		results = append(results, core.SearchResult{ID: h.stored.ID, Content: h.stored.Content, Score: h.score, Metadata: md})
	}

	return results, nil
}

// Store appends a new stored memory and returns its id.
func (m *InMemoryStore) Store(scope string, content string, metadata map[string]any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.storage[scope]; !exists {
		m.storage[scope] = make(map[string]StoredMemory)
	}

	m.next++
	memoryID := fmt.Sprintf("mem_%d", m.next)
	m.storage[scope][memoryID] = StoredMemory{ID: memoryID, Content: content, Metadata: metadata, seq: m.next}

	return memoryID, nil
}

// Delete removes a stored memory entry by id.
func (m *InMemoryStore) Delete(scope string, memoryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.storage[scope][memoryID]; !exists {
		return core.Errorf(core.ErrCodeNotFound, "memory %q not found", memoryID)
	}
	delete(m.storage[scope], memoryID)

	return nil
}

// Terms lowercases and splits a query into unique search terms.
func Terms(query string) []string {
	seen := make(map[string]struct{})
	var terms []string
	for _, f := range strings.Fields(strings.ToLower(query)) {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		terms = append(terms, f)
	}
	return terms
}

// Score returns the fraction of terms contained in content. No terms scores 1.
func Score(content string, terms []string) float64 {
	if len(terms) == 0 {
		return 1
	}

	lc := strings.ToLower(content)
	matched := 0
	for _, t := range terms {
		if strings.Contains(lc, t) {
			matched++
		}
	}

	return float64(matched) / float64(len(terms))
}

var _ core.MemoryStore = (*InMemoryStore)(nil)
