package command

import (
	"sort"
	"sync"

	"github.com/hupe1980/cmdmesh/core"
)

// Well-known integration names.
const (
	IntegrationFS      = "fs"
	IntegrationMemory  = "memory"
	IntegrationPrompts = "prompts"
)

// Integrations is the process-wide pool of domain integrations (file
// access, memory, prompt storage, ...). It is safe for concurrent reads and
// serializes its writes.
type Integrations struct {
	mu    sync.RWMutex
	items map[string]any
}

// NewIntegrations creates an empty pool.
func NewIntegrations() *Integrations {
	return &Integrations{items: make(map[string]any)}
}

// Register adds or replaces an integration.
func (in *Integrations) Register(name string, v any) *Integrations {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.items[name] = v
	return in
}

// Unregister removes an integration.
func (in *Integrations) Unregister(name string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	delete(in.items, name)
}

// Get returns the integration registered under name.
func (in *Integrations) Get(name string) (any, bool) {
	if in == nil {
		return nil, false
	}
	in.mu.RLock()
	defer in.mu.RUnlock()
	v, ok := in.items[name]
	return v, ok
}

// Has reports whether name is registered.
func (in *Integrations) Has(name string) bool {
	_, ok := in.Get(name)
	return ok
}

// Names lists registered integrations alphabetically.
func (in *Integrations) Names() []string {
	in.mu.RLock()
	defer in.mu.RUnlock()
	out := make([]string, 0, len(in.items))
	for k := range in.items {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Lookup returns the integration registered under name as a T.
func Lookup[T any](in *Integrations, name string) (T, error) {
	var zero T
	v, ok := in.Get(name)
	if !ok {
		return zero, core.Errorf(core.ErrCodeMissingIntegration, "integration %q is not configured", name)
	}
	t, ok := v.(T)
	if !ok {
		return zero, core.Errorf(core.ErrCodeMissingIntegration, "integration %q has unexpected type %T", name, v)
	}
	return t, nil
}
