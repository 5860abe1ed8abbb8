package agent

import (
	"io"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/logging"
	"github.com/hupe1980/cmdmesh/model"
	"github.com/hupe1980/cmdmesh/tool"
)

// Backends holds one model per tier.
type Backends struct {
	Small model.Model
	Big   model.Model
}

// For returns the backend for t. A missing tier falls back to the other one.
func (b Backends) For(t Tier) model.Model {
	if t == TierBig {
		if b.Big != nil {
			return b.Big
		}
		return b.Small
	}
	if b.Small != nil {
		return b.Small
	}
	return b.Big
}

// Observer receives run measurements.
type Observer interface {
	ObserveModelCall(agent string, tier Tier, d time.Duration, err error)
	ObserveToolCall(agent, tool string, d time.Duration, err error)
	ObserveTokens(tier Tier, prompt, completion int)
}

// Options configures the agents a Registry instantiates.
type Options struct {
	// WindowBudget is the context-window character budget; nil is unbounded.
	WindowBudget *int
	// MaxModelCalls bounds the model turns of one run; 0 is unlimited.
	MaxModelCalls int
	// MaxParallelTools bounds concurrent tool executions; < 1 is unbounded.
	MaxParallelTools int
	// Stream requests partial chunks from the backend.
	Stream   bool
	Logger   logging.Logger
	Observer Observer
}

// Registry is the process-wide agent service: definitions, backends and tool
// factory constructors. Reads are concurrent; writes are serialized.
type Registry struct {
	core.LoggerAdapter

	mu        sync.RWMutex
	templates map[string]Definition
	order     []string
	factories map[string]tool.Constructor
	backends  Backends
	opts      Options
}

// NewRegistry creates a registry with the builtin tool factories registered.
func NewRegistry(backends Backends, optFns ...func(o *Options)) *Registry {
	opts := Options{
		MaxModelCalls:    16,
		MaxParallelTools: 4,
		Stream:           true,
		Logger:           logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	r := &Registry{
		LoggerAdapter: core.NewLoggerAdapter(opts.Logger),
		templates:     make(map[string]Definition),
		factories:     make(map[string]tool.Constructor),
		backends:      backends,
		opts:          opts,
	}
	for name, ctor := range tool.Builtins() {
		r.factories[name] = ctor
	}

	return r
}

// Register adds or replaces an agent definition.
func (r *Registry) Register(def Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	if def.Tier == "" {
		def.Tier = TierSmall
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range def.Tools {
		if _, ok := r.factories[name]; !ok {
			return core.Errorf(core.ErrCodeNotFound, "agent %s: unknown tool factory %q", def.Name, name)
		}
	}

	if _, exists := r.templates[def.Name]; !exists {
		r.order = append(r.order, def.Name)
	}
	r.templates[def.Name] = def.Clone()

	r.LogDebug("agent.registered", "agent", def.Name, "tier", def.Tier, "tools", len(def.Tools))

	return nil
}

// RegisterFactory adds or replaces a tool factory constructor.
func (r *Registry) RegisterFactory(name string, ctor tool.Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = ctor
}

// Has reports whether an agent named name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.templates[name]
	return ok
}

// Names returns the registered agent names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}

// Default returns the first registered agent, or "" when empty.
func (r *Registry) Default() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.order) == 0 {
		return ""
	}
	return r.order[0]
}

// Definition returns a copy of the registered definition.
func (r *Registry) Definition(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.templates[name]
	return def.Clone(), ok
}

// Instantiate creates a session-scoped agent with its own definition copy
// and its own tool factories.
func (r *Registry) Instantiate(name string, scope tool.Scope) (*Agent, error) {
	r.mu.RLock()
	def, ok := r.templates[name]
	ctors := make([]tool.Constructor, 0, len(def.Tools))
	for _, f := range def.Tools {
		ctors = append(ctors, r.factories[f])
	}
	r.mu.RUnlock()

	if !ok {
		return nil, core.Errorf(core.ErrCodeNotFound, "agent %q is not registered", name)
	}

	scope.Agent = name

	factories := make([]tool.Factory, 0, len(ctors))
	for i, ctor := range ctors {
		f, err := ctor(scope)
		if err != nil {
			var result *multierror.Error
			result = multierror.Append(result, core.NewError(core.ErrCodeBackendFailed, "tool factory "+def.Tools[i], err))
			for _, created := range factories {
				if cerr := created.Close(); cerr != nil {
					result = multierror.Append(result, cerr)
				}
			}
			return nil, result.ErrorOrNil()
		}
		factories = append(factories, f)
	}

	return newAgent(def.Clone(), r.backends, factories, scope, r.opts), nil
}

// Close releases backends that hold resources.
func (r *Registry) Close() error {
	var result *multierror.Error
	seen := map[model.Model]bool{}
	for _, m := range []model.Model{r.backends.Small, r.backends.Big} {
		if m == nil || seen[m] {
			continue
		}
		seen[m] = true
		if c, ok := m.(io.Closer); ok {
			if err := c.Close(); err != nil {
				result = multierror.Append(result, err)
			}
		}
	}
	return result.ErrorOrNil()
}
