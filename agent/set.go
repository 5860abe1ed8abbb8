package agent

import (
	"context"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/hupe1980/cmdmesh/command"
	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/thread"
	"github.com/hupe1980/cmdmesh/tool"
)

// SetOptions configures a Set.
type SetOptions struct {
	// Default overrides the registry's default agent.
	Default string
}

// Set is the per-session cache of instantiated agents. Agents are created on
// first use and live until the Set is closed.
type Set struct {
	registry *Registry
	scope    tool.Scope
	opts     SetOptions

	mu     sync.Mutex
	agents map[string]*Agent
	closed bool
}

// NewSet creates an agent set bound to scope.
func NewSet(registry *Registry, scope tool.Scope, optFns ...func(o *SetOptions)) *Set {
	opts := SetOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Set{
		registry: registry,
		scope:    scope,
		opts:     opts,
		agents:   make(map[string]*Agent),
	}
}

// Get returns the session's instance of name, instantiating it lazily.
func (s *Set) Get(name string) (*Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, core.Errorf(core.ErrCodeStreamAborted, "agent set is closed")
	}
	if a, ok := s.agents[name]; ok {
		return a, nil
	}

	a, err := s.registry.Instantiate(name, s.scope)
	if err != nil {
		return nil, err
	}
	s.agents[name] = a

	return a, nil
}

// Run starts the named agent.
func (s *Set) Run(ctx context.Context, name, command string, th *thread.Thread) (*core.Stream, error) {
	a, err := s.Get(name)
	if err != nil {
		return nil, err
	}
	return a.Run(ctx, command, th), nil
}

// Has reports whether name is a registered agent.
func (s *Set) Has(name string) bool { return s.registry.Has(name) }

// Names lists the registered agents.
func (s *Set) Names() []string { return s.registry.Names() }

// Default names the agent used when none is addressed.
func (s *Set) Default() string {
	if s.opts.Default != "" {
		return s.opts.Default
	}
	return s.registry.Default()
}

// Active lists the agents instantiated so far, sorted.
func (s *Set) Active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.agents))
	for n := range s.agents {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Close tears down every instantiated agent. It is idempotent.
func (s *Set) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	agents := s.agents
	s.agents = nil
	s.mu.Unlock()

	var result *multierror.Error
	for _, a := range agents {
		if err := a.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}

var _ command.AgentSet = (*Set)(nil)
