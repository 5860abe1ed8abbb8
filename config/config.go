// Package config loads the cmdmesh configuration from YAML, applies
// environment overrides and validates it.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/cmdmesh/agent"
	"github.com/hupe1980/cmdmesh/logging"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CMDMESH_"

// Model providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderScripted  = "scripted"
)

// Storage drivers.
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
)

// Config is the root configuration.
type Config struct {
	Project   string          `yaml:"project"`
	Logging   LoggingConfig   `yaml:"logging"`
	Context   ContextConfig   `yaml:"context"`
	Models    ModelsConfig    `yaml:"models"`
	Agents    AgentsConfig    `yaml:"agents"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Prompts   PromptsConfig   `yaml:"prompts"`
	Storage   StorageConfig   `yaml:"storage"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Webhook   WebhookConfig   `yaml:"webhook"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ContextConfig configures the model context window.
type ContextConfig struct {
	// WindowBudget is the character budget; 0 means unbounded.
	WindowBudget int `yaml:"window_budget"`
}

// Budget returns the window budget as used by the thread package.
func (c ContextConfig) Budget() *int {
	if c.WindowBudget <= 0 {
		return nil
	}
	n := c.WindowBudget
	return &n
}

// ModelsConfig holds one backend per tier.
type ModelsConfig struct {
	Small ModelConfig `yaml:"small"`
	Big   ModelConfig `yaml:"big"`
}

// ModelConfig configures a model backend.
type ModelConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	APIKey    string `yaml:"api_key,omitempty"`
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
	BaseURL   string `yaml:"base_url,omitempty"`
	MaxTokens int    `yaml:"max_tokens,omitempty"`
}

// AgentsConfig holds the agent definitions and run limits.
type AgentsConfig struct {
	Default          string             `yaml:"default"`
	MaxModelCalls    int                `yaml:"max_model_calls"`
	MaxParallelTools int                `yaml:"max_parallel_tools"`
	Stream           *bool              `yaml:"stream,omitempty"`
	Definitions      []agent.Definition `yaml:"definitions"`
}

// SchedulerConfig configures the background scheduler service.
type SchedulerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Tick        time.Duration `yaml:"tick"`
	Concurrency int           `yaml:"concurrency"`
}

// PromptsConfig configures project prompts.
type PromptsConfig struct {
	Dir   string `yaml:"dir"`
	Watch bool   `yaml:"watch"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// WorkspaceConfig configures the "fs" integration.
type WorkspaceConfig struct {
	Root     string `yaml:"root"`
	ReadOnly bool   `yaml:"read_only"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// WebhookConfig configures webhook launches.
type WebhookConfig struct {
	Username string `yaml:"username"`
}

// DefaultConfig returns a configuration runnable without any file: a
// scripted backend, an assistant and a curator agent, in-memory storage.
func DefaultConfig() *Config {
	c := &Config{
		Models: ModelsConfig{
			Small: ModelConfig{Provider: ProviderScripted, Model: "echo"},
		},
		Agents: AgentsConfig{
			Definitions: []agent.Definition{
				{
					Name:        "assistant",
					Description: "general purpose assistant",
					Tools:       []string{"memory", "redirect", "files"},
				},
				{
					Name:         "curator",
					Description:  "organizes project memory",
					Instructions: "Recall what the project memory holds about the topic, then remember a concise summary.",
					Tools:        []string{"memory"},
				},
			},
		},
	}
	c.SetDefaults()
	return c
}

// Load reads the configuration file at path from the OS filesystem.
func Load(path string) (*Config, error) {
	return LoadFS(afero.NewOsFs(), path, os.LookupEnv)
}

// LoadFS reads the configuration at path from fs, applies environment
// overrides through lookup, resolves api_key_env references and sets
// defaults. The result is not validated.
func LoadFS(fs afero.Fs, path string, lookup func(string) (string, bool)) (*Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := c.ApplyEnv(lookup); err != nil {
		return nil, err
	}
	c.SetDefaults()

	return &c, nil
}

// ApplyEnv applies CMDMESH_* overrides and resolves api_key_env
// references.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}

	str("PROJECT", &c.Project)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)
	str("SMALL_MODEL", &c.Models.Small.Model)
	str("BIG_MODEL", &c.Models.Big.Model)
	str("DEFAULT_AGENT", &c.Agents.Default)
	str("PROMPTS_DIR", &c.Prompts.Dir)
	str("STORAGE_DRIVER", &c.Storage.Driver)
	str("STORAGE_PATH", &c.Storage.Path)
	str("WORKSPACE", &c.Workspace.Root)
	str("METRICS_ADDR", &c.Metrics.Addr)

	if v, ok := lookup(EnvPrefix + "WINDOW_BUDGET"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%sWINDOW_BUDGET: %w", EnvPrefix, err)
		}
		c.Context.WindowBudget = n
	}

	for _, m := range []*ModelConfig{&c.Models.Small, &c.Models.Big} {
		if m.APIKeyEnv != "" {
			if v, ok := lookup(m.APIKeyEnv); ok {
				m.APIKey = v
			}
		}
	}

	return nil
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Project == "" {
		c.Project = "default"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Agents.MaxModelCalls == 0 {
		c.Agents.MaxModelCalls = 16
	}
	if c.Agents.MaxParallelTools == 0 {
		c.Agents.MaxParallelTools = 4
	}
	if c.Agents.Stream == nil {
		stream := true
		c.Agents.Stream = &stream
	}
	for i := range c.Agents.Definitions {
		if c.Agents.Definitions[i].Tier == "" {
			c.Agents.Definitions[i].Tier = agent.TierSmall
		}
	}
	if c.Scheduler.Tick == 0 {
		c.Scheduler.Tick = 30 * time.Second
	}
	if c.Scheduler.Concurrency == 0 {
		c.Scheduler.Concurrency = 4
	}
	if c.Prompts.Dir == "" {
		c.Prompts.Dir = ".cmdmesh/prompts"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = StorageMemory
	}
	if c.Storage.Driver == StorageSQLite && c.Storage.Path == "" {
		c.Storage.Path = ".cmdmesh/cmdmesh.db"
	}
	if c.Workspace.Root == "" {
		c.Workspace.Root = "."
	}
	if c.Webhook.Username == "" {
		c.Webhook.Username = "webhook"
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	if c.Context.WindowBudget < 0 {
		return fmt.Errorf("context.window_budget must not be negative")
	}

	if c.Models.Small.Provider == "" && c.Models.Big.Provider == "" {
		return fmt.Errorf("at least one of models.small and models.big must be configured")
	}
	for name, m := range map[string]ModelConfig{"small": c.Models.Small, "big": c.Models.Big} {
		if err := m.validate(); err != nil {
			return fmt.Errorf("models.%s: %w", name, err)
		}
	}

	if len(c.Agents.Definitions) == 0 {
		return fmt.Errorf("at least one agent must be defined")
	}
	seen := map[string]bool{}
	for _, def := range c.Agents.Definitions {
		if err := def.Validate(); err != nil {
			return fmt.Errorf("agents.definitions: %w", err)
		}
		if seen[def.Name] {
			return fmt.Errorf("agents.definitions: duplicate agent %q", def.Name)
		}
		seen[def.Name] = true
	}
	if c.Agents.Default != "" && !seen[c.Agents.Default] {
		return fmt.Errorf("agents.default: unknown agent %q", c.Agents.Default)
	}
	if c.Agents.MaxModelCalls < 0 || c.Agents.MaxParallelTools < 0 {
		return fmt.Errorf("agents limits must not be negative")
	}

	if c.Scheduler.Tick < time.Second {
		return fmt.Errorf("scheduler.tick must be at least 1s")
	}
	if c.Scheduler.Concurrency < 1 {
		return fmt.Errorf("scheduler.concurrency must be at least 1")
	}

	switch c.Storage.Driver {
	case StorageMemory:
	case StorageSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for sqlite")
		}
	default:
		return fmt.Errorf("storage.driver must be memory or sqlite, got %q", c.Storage.Driver)
	}

	return nil
}

func (m ModelConfig) validate() error {
	switch m.Provider {
	case "":
		return nil
	case ProviderScripted:
		return nil
	case ProviderAnthropic, ProviderOpenAI:
		if m.Model == "" {
			return fmt.Errorf("model is required")
		}
		if m.APIKey == "" && m.APIKeyEnv == "" {
			return fmt.Errorf("provider %s requires api_key or api_key_env", m.Provider)
		}
		return nil
	default:
		return fmt.Errorf("unknown provider %q", m.Provider)
	}
}

// Marshal renders c as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
