package tool

import (
	"context"
	"sync"

	"github.com/spf13/afero"

	"github.com/hupe1980/cmdmesh/core"
)

// Factory produces the tool instances of one agent. Factories are created
// per session and closed when the owning agent is torn down.
type Factory interface {
	Tools(ctx context.Context) ([]Tool, error)
	Close() error
}

// Scope binds a factory to the session that owns the agent.
type Scope struct {
	SessionID string
	Project   string
	Username  string
	Agent     string

	// Enqueue appends a command line to the session's work queue.
	Enqueue func(line string)
	// Memory is the memory integration, nil when not registered.
	Memory core.MemoryStore
	// FS is the workspace filesystem, nil when not registered.
	FS afero.Fs
}

// Constructor builds a Factory for a scope.
type Constructor func(scope Scope) (Factory, error)

// StaticFactory serves a fixed tool list.
type StaticFactory struct {
	tools   []Tool
	onClose func() error

	mu     sync.Mutex
	closed bool
}

// NewStaticFactory creates a factory returning tools.
func NewStaticFactory(tools ...Tool) *StaticFactory {
	return &StaticFactory{tools: tools}
}

// OnClose registers a hook run once on Close.
func (f *StaticFactory) OnClose(fn func() error) *StaticFactory {
	f.onClose = fn
	return f
}

// Tools returns the tool list. After Close it returns an error.
func (f *StaticFactory) Tools(_ context.Context) ([]Tool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, core.Errorf(core.ErrCodeNotFound, "tool factory closed")
	}

	out := make([]Tool, len(f.tools))
	copy(out, f.tools)

	return out, nil
}

// Close is idempotent.
func (f *StaticFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true

	if f.onClose != nil {
		return f.onClose()
	}

	return nil
}

// Closed reports whether Close was called.
func (f *StaticFactory) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Builtin constructor names.
const (
	FactoryMemory   = "memory"
	FactoryRedirect = "redirect"
	FactoryFiles    = "files"
)

// Builtins returns the constructors shipped with the package. A constructor
// whose dependency is missing from the scope yields an empty factory.
func Builtins() map[string]Constructor {
	return map[string]Constructor{
		FactoryMemory: func(scope Scope) (Factory, error) {
			if scope.Memory == nil {
				return NewStaticFactory(), nil
			}
			ns := MemoryScope(scope)
			return NewStaticFactory(NewRememberTool(scope.Memory, ns), NewRecallTool(scope.Memory, ns)), nil
		},
		FactoryRedirect: func(scope Scope) (Factory, error) {
			if scope.Enqueue == nil {
				return NewStaticFactory(), nil
			}
			return NewStaticFactory(NewRedirectTool(scope.Enqueue)), nil
		},
		FactoryFiles: func(scope Scope) (Factory, error) {
			if scope.FS == nil {
				return NewStaticFactory(), nil
			}
			return NewStaticFactory(NewReadFileTool(scope.FS)), nil
		},
	}
}

// MemoryScope derives the memory namespace for a scope: the project when set,
// otherwise the session.
func MemoryScope(scope Scope) string {
	if scope.Project != "" {
		return "project:" + scope.Project
	}
	return "session:" + scope.SessionID
}

var _ Factory = (*StaticFactory)(nil)
