// Package cmdmesh assembles a complete command mesh from a configuration:
// model backends, the agent registry, stores, integrations, the session
// manager, the interval scheduler service, the project prompt watcher and
// the webhook trigger. Most applications:
//  1. load a config.Config (or use config.DefaultConfig),
//  2. create a Mesh with New,
//  3. Start background services and Open sessions,
//  4. Close the Mesh on shutdown.
package cmdmesh

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"k8s.io/utils/clock"

	"github.com/hupe1980/cmdmesh/agent"
	"github.com/hupe1980/cmdmesh/command"
	"github.com/hupe1980/cmdmesh/commands"
	"github.com/hupe1980/cmdmesh/config"
	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/interaction"
	"github.com/hupe1980/cmdmesh/logging"
	"github.com/hupe1980/cmdmesh/memory"
	"github.com/hupe1980/cmdmesh/metrics"
	"github.com/hupe1980/cmdmesh/model"
	anthropicmodel "github.com/hupe1980/cmdmesh/model/anthropic"
	openaimodel "github.com/hupe1980/cmdmesh/model/openai"
	"github.com/hupe1980/cmdmesh/prompt"
	"github.com/hupe1980/cmdmesh/schedule"
	"github.com/hupe1980/cmdmesh/session"
	"github.com/hupe1980/cmdmesh/store/sqlite"
)

// Options overrides the components New would otherwise build from the
// configuration.
type Options struct {
	Logger logging.Logger
	// Backends replaces the configured model backends.
	Backends *agent.Backends
	// HostFs is the filesystem the workspace and prompt directory live on.
	// Defaults to the OS filesystem.
	HostFs afero.Fs
	Clock  clock.WithTicker
	// LaunchSink receives the events of scheduled and webhook sessions.
	// Defaults to a LogSink.
	LaunchSink core.Interaction
	// Metrics receives measurements; nil disables them.
	Metrics *metrics.Collector
	// Commands are added to the dispatch tree next to the builtins.
	Commands []command.Handler
}

// Mesh is the assembled application.
type Mesh struct {
	core.LoggerAdapter

	cfg  *config.Config
	opts Options

	registry   *agent.Registry
	manager    *session.Manager
	prompts    prompt.Store
	schedulers schedule.Store
	memory     core.MemoryStore
	db         *sqlite.DB

	scheduler *schedule.Service
	watcher   *prompt.Watcher
	webhook   *prompt.Webhook
	root      string
	promptDir string
}

// New builds a Mesh from cfg. cfg is validated first.
func New(cfg *config.Config, optFns ...func(o *Options)) (*Mesh, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	opts := Options{
		Logger: logging.NoOpLogger{},
		HostFs: afero.NewOsFs(),
		Clock:  clock.RealClock{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.LaunchSink == nil {
		opts.LaunchSink = interaction.NewLogSink(opts.Logger)
	}

	root, err := filepath.Abs(cfg.Workspace.Root)
	if err != nil {
		return nil, fmt.Errorf("workspace root: %w", err)
	}

	m := &Mesh{
		LoggerAdapter: core.NewLoggerAdapter(opts.Logger),
		cfg:           cfg,
		opts:          opts,
		root:          root,
	}

	backends, err := m.backends()
	if err != nil {
		return nil, err
	}

	if err := m.openStores(); err != nil {
		return nil, err
	}

	m.registry = agent.NewRegistry(backends, func(o *agent.Options) {
		o.WindowBudget = cfg.Context.Budget()
		o.MaxModelCalls = cfg.Agents.MaxModelCalls
		o.MaxParallelTools = cfg.Agents.MaxParallelTools
		o.Stream = *cfg.Agents.Stream
		o.Logger = opts.Logger
		if opts.Metrics != nil {
			o.Observer = opts.Metrics
		}
	})
	for _, def := range cfg.Agents.Definitions {
		if err := m.registry.Register(def); err != nil {
			_ = m.closeStores()
			return nil, err
		}
	}

	integrations := command.NewIntegrations().
		Register(command.IntegrationFS, m.workspaceFs()).
		Register(command.IntegrationMemory, m.memory).
		Register(command.IntegrationPrompts, m.prompts).
		Register(commands.IntegrationSchedulers, m.schedulers).
		Register(commands.IntegrationClock, clock.PassiveClock(opts.Clock))

	m.manager = session.NewManager(m.registry, func(o *session.Options) {
		o.Tree = commands.NewTree(opts.Commands...)
		o.Integrations = integrations
		o.WindowBudget = cfg.Context.Budget()
		o.Project = cfg.Project
		o.DefaultAgent = cfg.Agents.Default
		o.LaunchSink = opts.LaunchSink
		o.Logger = opts.Logger
		if opts.Metrics != nil {
			o.CommandObserver = opts.Metrics
			o.Observer = opts.Metrics
		}
	})

	m.scheduler = schedule.NewService(m.schedulers, m.prompts, m.manager, func(o *schedule.ServiceOptions) {
		o.Clock = opts.Clock
		o.Tick = cfg.Scheduler.Tick
		o.Concurrency = cfg.Scheduler.Concurrency
		o.Logger = opts.Logger
		if opts.Metrics != nil {
			o.Observer = opts.Metrics
		}
	})

	m.webhook = prompt.NewWebhook(m.prompts, m.manager, cfg.Project, cfg.Webhook.Username, opts.Logger)

	m.promptDir = cfg.Prompts.Dir
	if !filepath.IsAbs(m.promptDir) {
		m.promptDir = filepath.Join(root, m.promptDir)
	}

	m.LogInfo("mesh.created",
		"project", cfg.Project,
		"agents", len(cfg.Agents.Definitions),
		"storage", cfg.Storage.Driver,
		"workspace", root,
	)

	return m, nil
}

func (m *Mesh) backends() (agent.Backends, error) {
	if m.opts.Backends != nil {
		return *m.opts.Backends, nil
	}

	small, err := NewModel(m.cfg.Models.Small)
	if err != nil {
		return agent.Backends{}, fmt.Errorf("models.small: %w", err)
	}
	big, err := NewModel(m.cfg.Models.Big)
	if err != nil {
		return agent.Backends{}, fmt.Errorf("models.big: %w", err)
	}

	return agent.Backends{Small: small, Big: big}, nil
}

func (m *Mesh) openStores() error {
	switch m.cfg.Storage.Driver {
	case config.StorageSQLite:
		path := m.cfg.Storage.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(m.root, path)
		}
		db, err := sqlite.Open(path)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		m.db = db
		m.prompts = db.Prompts()
		m.schedulers = db.Schedulers()
		m.memory = db.Memory()
		m.LogDebug("mesh.storage.opened", "driver", config.StorageSQLite, "path", db.Path())
	default:
		m.prompts = prompt.NewInMemoryStore()
		m.schedulers = schedule.NewInMemoryStore()
		m.memory = memory.NewInMemoryStore()
	}
	return nil
}

func (m *Mesh) closeStores() error {
	if m.db == nil {
		return nil
	}
	return m.db.Close()
}

func (m *Mesh) workspaceFs() afero.Fs {
	fs := afero.NewBasePathFs(m.opts.HostFs, m.root)
	if m.cfg.Workspace.ReadOnly {
		fs = afero.NewReadOnlyFs(fs)
	}
	return fs
}

// NewModel builds the backend described by mc. An unset provider yields a
// nil model so the registry falls back to the other tier.
func NewModel(mc config.ModelConfig) (model.Model, error) {
	switch mc.Provider {
	case "":
		return nil, nil
	case config.ProviderScripted:
		name := mc.Model
		if name == "" {
			name = "scripted"
		}
		return model.NewScriptedModel(name), nil
	case config.ProviderAnthropic:
		return anthropicmodel.NewModel(func(o *anthropicmodel.Options) {
			o.Model = anthropic.Model(mc.Model)
			o.APIKey = mc.APIKey
			o.BaseURL = mc.BaseURL
			if mc.MaxTokens > 0 {
				o.MaxTokens = int64(mc.MaxTokens)
			}
		}), nil
	case config.ProviderOpenAI:
		return openaimodel.NewModel(func(o *openaimodel.Options) {
			o.Model = mc.Model
			o.APIKey = mc.APIKey
			o.BaseURL = mc.BaseURL
			if mc.MaxTokens > 0 {
				o.MaxCompletionTokens = int64(mc.MaxTokens)
			}
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", mc.Provider)
	}
}

// Root returns the absolute workspace root.
func (m *Mesh) Root() string { return m.root }

// Config returns the configuration the mesh was built from.
func (m *Mesh) Config() *config.Config { return m.cfg }

// Registry returns the agent registry.
func (m *Mesh) Registry() *agent.Registry { return m.registry }

// Manager returns the session manager.
func (m *Mesh) Manager() *session.Manager { return m.manager }

// Prompts returns the prompt store.
func (m *Mesh) Prompts() prompt.Store { return m.prompts }

// Schedulers returns the scheduler store.
func (m *Mesh) Schedulers() schedule.Store { return m.schedulers }

// Memory returns the memory store.
func (m *Mesh) Memory() core.MemoryStore { return m.memory }

// Scheduler returns the background scheduler service.
func (m *Mesh) Scheduler() *schedule.Service { return m.scheduler }

// Webhook returns the webhook trigger.
func (m *Mesh) Webhook() *prompt.Webhook { return m.webhook }

// Open opens a session.
func (m *Mesh) Open(ctx context.Context, optFns ...func(o *session.OpenOptions)) (*session.Session, error) {
	return m.manager.Open(ctx, optFns...)
}

// ReloadPrompts loads the project prompt directory into the prompt store
// once. A missing directory loads nothing.
func (m *Mesh) ReloadPrompts() (int, error) {
	exists, err := afero.DirExists(m.opts.HostFs, m.promptDir)
	if err != nil || !exists {
		return 0, err
	}
	prompts, err := prompt.LoadDir(m.opts.HostFs, m.promptDir)
	if err != nil {
		return 0, err
	}
	return len(prompts), prompt.Sync(m.prompts, prompts)
}

// Start loads project prompts and starts the background services the
// configuration enables: the prompt watcher and the scheduler service.
func (m *Mesh) Start(ctx context.Context) error {
	if m.cfg.Prompts.Watch {
		w, err := prompt.NewWatcher(m.opts.HostFs, m.promptDir, m.prompts, func(o *prompt.WatcherOptions) {
			o.Logger = m.Logger()
		})
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			w.Stop()
			return err
		}
		m.watcher = w
	} else if _, err := m.ReloadPrompts(); err != nil {
		m.LogWarn("mesh.prompts.load_failed", "dir", m.promptDir, "error", err.Error())
	}

	if m.cfg.Scheduler.Enabled {
		m.scheduler.Start(ctx)
	}

	m.LogInfo("mesh.started", "watch_prompts", m.cfg.Prompts.Watch, "scheduler", m.cfg.Scheduler.Enabled)

	return nil
}

// Close stops background services, closes all sessions and backends, and
// releases storage.
func (m *Mesh) Close() error {
	if m.watcher != nil {
		m.watcher.Stop()
	}
	m.scheduler.Stop()

	var result *multierror.Error
	if err := m.manager.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := m.closeStores(); err != nil {
		result = multierror.Append(result, err)
	}

	m.LogInfo("mesh.closed")

	return result.ErrorOrNil()
}
