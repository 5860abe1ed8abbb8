package command

import (
	"context"

	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/logging"
	"github.com/hupe1980/cmdmesh/thread"
)

// SessionKind distinguishes how a session was started.
type SessionKind string

const (
	KindInteractive SessionKind = "interactive"
	KindScheduled   SessionKind = "scheduled"
	KindOneShot     SessionKind = "oneshot"
)

// AgentSet resolves the session's agents by name.
type AgentSet interface {
	// Run starts the named agent on command against th. The returned stream
	// carries the agent's output and terminal state.
	Run(ctx context.Context, name, command string, th *thread.Thread) (*core.Stream, error)
	Has(name string) bool
	Names() []string
	// Default names the agent used when no agent is addressed explicitly.
	Default() string
}

// Context is the mutable per-session state handed to every handler. It is
// only ever used by one queue drain at a time, so handlers need no locking.
type Context struct {
	core.LoggerAdapter

	SessionID    string
	Kind         SessionKind
	Project      string
	Username     string
	Thread       *thread.Thread
	Queue        *Queue
	Integrations *Integrations
	Interaction  core.Interaction
	Agents       AgentSet
	// WindowBudget is the context-window character budget; nil means
	// unbounded.
	WindowBudget *int
	// Values holds free-form session variables set by handlers.
	Values map[string]string
}

// ContextOptions configures NewContext.
type ContextOptions struct {
	SessionID    string
	Kind         SessionKind
	Project      string
	Username     string
	Thread       *thread.Thread
	Integrations *Integrations
	Interaction  core.Interaction
	Agents       AgentSet
	WindowBudget *int
	Logger       logging.Logger
}

// NewContext creates a session context with an empty queue. Unset
// collaborators get usable defaults.
func NewContext(optFns ...func(o *ContextOptions)) *Context {
	opts := ContextOptions{
		SessionID: core.NewID(),
		Kind:      KindInteractive,
		Logger:    logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Thread == nil {
		opts.Thread = thread.New(opts.SessionID)
	}
	if opts.Integrations == nil {
		opts.Integrations = NewIntegrations()
	}
	if opts.Interaction == nil {
		opts.Interaction = discard{}
	}

	return &Context{
		LoggerAdapter: core.NewLoggerAdapter(opts.Logger),
		SessionID:     opts.SessionID,
		Kind:          opts.Kind,
		Project:       opts.Project,
		Username:      opts.Username,
		Thread:        opts.Thread,
		Queue:         NewQueue(),
		Integrations:  opts.Integrations,
		Interaction:   opts.Interaction,
		Agents:        opts.Agents,
		WindowBudget:  opts.WindowBudget,
		Values:        make(map[string]string),
	}
}

// Enqueue appends follow-up commands to the tail of the queue.
func (cc *Context) Enqueue(cmds ...string) { cc.Queue.Push(cmds...) }

// Say emits an informational Text event.
func (cc *Context) Say(text string) { cc.Interaction.Notify(core.NewText("", text)) }

// Warn emits a Warn event.
func (cc *Context) Warn(format string, args ...any) {
	cc.Interaction.Notify(core.NewWarn(format, args...))
}

// Ask forwards q to the interaction; the session is suspended meanwhile.
func (cc *Context) Ask(ctx context.Context, q core.Question) (core.Answer, error) {
	return cc.Interaction.Ask(ctx, q)
}

type discard struct{}

func (discard) Notify(core.Event) {}

func (discard) Ask(context.Context, core.Question) (core.Answer, error) {
	return core.Answer{}, core.Errorf(core.ErrCodeMissingIntegration, "no interaction attached")
}
