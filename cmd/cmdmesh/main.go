package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/hupe1980/cmdmesh"
	"github.com/hupe1980/cmdmesh/config"
	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/interaction"
	"github.com/hupe1980/cmdmesh/logging"
	"github.com/hupe1980/cmdmesh/metrics"
)

const defaultConfigFile = "cmdmesh.yaml"

var (
	// Global flags
	configPath string
	workspace  string
	verbose    bool
	noColor    bool
	showTools  bool

	cfg    *config.Config
	logger *logging.ZapAdapter
)

var rootCmd = &cobra.Command{
	Use:   "cmdmesh",
	Short: "cmdmesh - command-driven agent sessions",
	Long: `cmdmesh runs conversational agent sessions driven by typed commands.

Lines are dispatched through a command tree ("load file", "prompt run",
"schedule add", ...); "@agent text" addresses an agent directly and a
leading "+" or "-" switches its model tier.

Run without arguments to start an interactive session.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = loadConfig(afero.NewOsFs(), configPath, os.LookupEnv)
		if err != nil {
			return err
		}
		if workspace != "" {
			cfg.Workspace.Root = workspace
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}

		level, err := logging.ParseLevel(cfg.Logging.Level)
		if err != nil {
			return err
		}
		logger, err = logging.NewZapLogger(level, cfg.Logging.Format)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runREPL(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./"+defaultConfigFile+" when present)")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "workspace root (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&showTools, "show-tools", false, "render tool requests and responses")

	rootCmd.AddCommand(replCmd, execCmd, serveCmd, webhookCmd, configCmd)
}

// loadConfig reads path, or ./cmdmesh.yaml when path is empty and the file
// exists. Without a file the defaults apply, with environment overrides.
func loadConfig(fs afero.Fs, path string, lookup func(string) (string, bool)) (*config.Config, error) {
	if path == "" {
		if ok, _ := afero.Exists(fs, defaultConfigFile); ok {
			path = defaultConfigFile
		}
	}
	if path != "" {
		return config.LoadFS(fs, path, lookup)
	}

	c := config.DefaultConfig()
	if err := c.ApplyEnv(lookup); err != nil {
		return nil, err
	}
	c.SetDefaults()
	return c, nil
}

// newMesh builds the mesh for the loaded configuration. A nil sink logs
// unattended sessions.
func newMesh(collector *metrics.Collector, sink core.Interaction) (*cmdmesh.Mesh, error) {
	return cmdmesh.New(cfg, func(o *cmdmesh.Options) {
		o.Logger = logger
		o.Metrics = collector
		o.LaunchSink = sink
	})
}

func newConsole(cmd *cobra.Command) *interaction.Console {
	return interaction.NewConsole(cmd.InOrStdin(), cmd.OutOrStdout(), func(o *interaction.ConsoleOptions) {
		o.NoColor = noColor
		o.ShowTools = showTools
	})
}

func username() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "user"
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
