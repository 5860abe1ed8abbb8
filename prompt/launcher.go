package prompt

import "context"

// LaunchRequest describes an unattended run of a command sequence.
type LaunchRequest struct {
	// Kind is the session kind, "scheduled" or "oneshot".
	Kind string
	// Origin identifies the trigger (scheduler or prompt id) for logs.
	Origin   string
	Project  string
	Username string
	Commands []string
}

// Launcher runs a command sequence in a fresh session.
type Launcher interface {
	Launch(ctx context.Context, req LaunchRequest) error
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(ctx context.Context, req LaunchRequest) error

// Launch implements Launcher.
func (f LauncherFunc) Launch(ctx context.Context, req LaunchRequest) error { return f(ctx, req) }
