package main

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/hupe1980/cmdmesh/command"
	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/session"
)

var resumeID string

// replCmd starts an interactive session
var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start an interactive session",
	Long: `Reads command lines from stdin until "exit", "quit" or end of input.
Questions raised by commands or agents are answered on the same input.`,
	Args: cobra.NoArgs,
	RunE: runREPL,
}

// execCmd runs command lines in a one-shot session
var execCmd = &cobra.Command{
	Use:   "exec <line>...",
	Short: "Run command lines in a one-shot session",
	Long: `Runs each argument as one command line in a fresh one-shot session and
exits non-zero when any command reported an error.

Example:
  cmdmesh exec "load folder docs" "@assistant summarize the docs"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExec,
}

func init() {
	replCmd.Flags().StringVar(&resumeID, "session", "", "resume the thread stored under this session id")
}

func runREPL(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	mesh, err := newMesh(nil, nil)
	if err != nil {
		return err
	}
	defer mesh.Close()

	if err := mesh.Start(ctx); err != nil {
		return err
	}

	console := newConsole(cmd)
	s, err := mesh.Open(ctx, func(o *session.OpenOptions) {
		o.ID = resumeID
		o.Username = username()
		o.Interaction = console
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "session %s in project %s; type help, or exit to quit\n", s.ID(), cfg.Project)

	for {
		line, ok := console.ReadLine("> ")
		if !ok {
			return nil
		}
		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}
		if err := s.Submit(ctx, line); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func runExec(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	mesh, err := newMesh(nil, nil)
	if err != nil {
		return err
	}
	defer mesh.Close()

	if _, err := mesh.ReloadPrompts(); err != nil {
		return err
	}

	ix := &errorCounter{Interaction: newConsole(cmd)}
	s, err := mesh.Open(ctx, func(o *session.OpenOptions) {
		o.Kind = command.KindOneShot
		o.Username = username()
		o.Interaction = ix
	})
	if err != nil {
		return err
	}

	for _, line := range args {
		if err := s.Submit(ctx, line); err != nil {
			return err
		}
	}

	if n := ix.errors.Load(); n > 0 {
		return fmt.Errorf("%d command(s) failed", n)
	}
	return nil
}

// errorCounter counts the error events passing through to an interaction.
type errorCounter struct {
	core.Interaction
	errors atomic.Int32
}

func (e *errorCounter) Notify(ev core.Event) {
	if ev.Kind() == core.KindError {
		e.errors.Add(1)
	}
	e.Interaction.Notify(ev)
}
