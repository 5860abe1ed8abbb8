package session

import (
	"context"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"

	"github.com/hupe1980/cmdmesh/agent"
	"github.com/hupe1980/cmdmesh/command"
	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/interaction"
	"github.com/hupe1980/cmdmesh/logging"
	"github.com/hupe1980/cmdmesh/prompt"
	"github.com/hupe1980/cmdmesh/thread"
	"github.com/hupe1980/cmdmesh/tool"
)

// Observer is notified when sessions open and close.
type Observer interface {
	SessionOpened(kind command.SessionKind)
	SessionClosed(kind command.SessionKind)
}

// Options configures a Manager.
type Options struct {
	// Tree is the dispatch root shared by all sessions.
	Tree *command.Tree
	// Integrations is the process-wide integration pool.
	Integrations *command.Integrations
	Threads      thread.Store
	// WindowBudget is the context-window character budget; nil is unbounded.
	WindowBudget *int
	// Project is the default project of new sessions.
	Project string
	// DefaultAgent overrides the registry's default agent.
	DefaultAgent string
	// LaunchSink receives the events of launched unattended sessions.
	LaunchSink core.Interaction
	Logger     logging.Logger
	// CommandObserver measures dispatched commands.
	CommandObserver command.Observer
	Observer        Observer
}

// Manager opens and tracks sessions. It is safe for concurrent use.
type Manager struct {
	core.LoggerAdapter

	registry  *agent.Registry
	processor *command.Processor
	opts      Options

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// NewManager creates a session manager over registry.
func NewManager(registry *agent.Registry, optFns ...func(o *Options)) *Manager {
	opts := Options{
		Threads: thread.NewInMemoryStore(),
		Logger:  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Tree == nil {
		opts.Tree = command.NewTree()
	}
	if opts.Integrations == nil {
		opts.Integrations = command.NewIntegrations()
	}

	return &Manager{
		LoggerAdapter: core.NewLoggerAdapter(opts.Logger),
		registry:      registry,
		processor: command.NewProcessor(opts.Tree, func(o *command.ProcessorOptions) {
			o.Logger = opts.Logger
			if opts.CommandObserver != nil {
				o.Observer = opts.CommandObserver
			}
		}),
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// Integrations returns the shared integration pool.
func (m *Manager) Integrations() *command.Integrations { return m.opts.Integrations }

// OpenOptions configures a new session.
type OpenOptions struct {
	// ID resumes the thread stored under ID; empty generates a fresh id.
	ID       string
	Kind     command.SessionKind
	Project  string
	Username string
	// Interaction receives the session's events. Nil records them only.
	Interaction core.Interaction
}

// Open creates a session.
func (m *Manager) Open(ctx context.Context, optFns ...func(o *OpenOptions)) (*Session, error) {
	opts := OpenOptions{
		Kind:    command.KindInteractive,
		Project: m.opts.Project,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.ID == "" {
		opts.ID = core.NewID()
	}
	if opts.Interaction == nil {
		opts.Interaction = interaction.NewRecorder()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, core.Errorf(core.ErrCodeStreamAborted, "session manager is closed")
	}
	if _, ok := m.sessions[opts.ID]; ok {
		return nil, core.Errorf(core.ErrCodeInvalidArguments, "session %s is already open", opts.ID)
	}

	th, err := m.opts.Threads.Get(opts.ID)
	if err != nil {
		return nil, err
	}

	queue := command.NewQueue()
	scope := tool.Scope{
		SessionID: opts.ID,
		Project:   opts.Project,
		Username:  opts.Username,
		Enqueue:   func(line string) { queue.Push(line) },
	}
	if mem, err := command.Lookup[core.MemoryStore](m.opts.Integrations, command.IntegrationMemory); err == nil {
		scope.Memory = mem
	}
	if fs, err := command.Lookup[afero.Fs](m.opts.Integrations, command.IntegrationFS); err == nil {
		scope.FS = fs
	}

	agents := agent.NewSet(m.registry, scope, func(o *agent.SetOptions) { o.Default = m.opts.DefaultAgent })

	cc := command.NewContext(func(o *command.ContextOptions) {
		o.SessionID = opts.ID
		o.Kind = opts.Kind
		o.Project = opts.Project
		o.Username = opts.Username
		o.Thread = th
		o.Integrations = m.opts.Integrations
		o.Interaction = opts.Interaction
		o.Agents = agents
		o.WindowBudget = m.opts.WindowBudget
		o.Logger = logging.With(m.opts.Logger, "project", opts.Project, "session_kind", string(opts.Kind))
	})
	cc.Queue = queue

	s := newSession(m, cc, agents)
	m.sessions[s.ID()] = s

	m.LogInfo("session.open", "session", s.ID(), "kind", string(opts.Kind), "project", opts.Project, "username", opts.Username)
	if m.opts.Observer != nil {
		m.opts.Observer.SessionOpened(opts.Kind)
	}

	return s, nil
}

// Get returns the open session id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Sessions lists the ids of open sessions.
func (m *Manager) Sessions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Launch runs req.Commands in a fresh unattended session and closes it. The
// error aggregates every error event the commands produced.
func (m *Manager) Launch(ctx context.Context, req prompt.LaunchRequest) error {
	kind := command.SessionKind(req.Kind)
	if kind == "" {
		kind = command.KindOneShot
	}

	script := interaction.NewScripted()
	script.Sink = m.opts.LaunchSink

	s, err := m.Open(ctx, func(o *OpenOptions) {
		o.Kind = kind
		o.Username = req.Username
		if req.Project != "" {
			o.Project = req.Project
		}
		o.Interaction = script
	})
	if err != nil {
		return err
	}

	m.LogInfo("session.launch", "session", s.ID(), "kind", string(kind), "origin", req.Origin, "commands", len(req.Commands))

	var result *multierror.Error
	for _, line := range req.Commands {
		if err := s.Submit(ctx, line); err != nil {
			result = multierror.Append(result, err)
			break
		}
	}
	for _, ev := range script.Errors() {
		if ev.Err != nil {
			result = multierror.Append(result, ev.Err)
		} else {
			result = multierror.Append(result, core.NewError(ev.Code, ev.Message, nil))
		}
	}
	if err := s.Close(); err != nil {
		result = multierror.Append(result, err)
	}

	return result.ErrorOrNil()
}

// Close closes every open session and then the registry's backends.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	var result *multierror.Error
	for _, s := range sessions {
		if err := s.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := m.registry.Close(); err != nil {
		result = multierror.Append(result, err)
	}

	return result.ErrorOrNil()
}

func (m *Manager) remove(s *Session) {
	m.mu.Lock()
	delete(m.sessions, s.ID())
	m.mu.Unlock()

	m.LogInfo("session.closed", "session", s.ID(), "kind", string(s.Kind()))
	if m.opts.Observer != nil {
		m.opts.Observer.SessionClosed(s.Kind())
	}
}

var _ prompt.Launcher = (*Manager)(nil)
