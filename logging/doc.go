// Package logging provides a minimal logging interface and adapters for cmdmesh.
//
// The Logger interface defines the leveled, key/value logging methods
// (Debug, Info, Warn, Error) that commands, agents, sessions and the
// scheduler use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - ZapAdapter wrapping a zap SugaredLogger (used by the CLI)
//   - MeshLogger, a slog-backed logger with component/session attributes
//   - With, which binds key/value pairs to any Logger
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger, _ := logging.NewZapLogger(logging.LogLevelInfo, "json")
//	mgr := session.NewManager(registry, tree, func(o *session.Options) { o.Logger = logger })
//
// Messages are dot-named events ("command.dispatch", "agent.run.start")
// followed by key/value pairs.
package logging
