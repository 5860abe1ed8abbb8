package interaction

import (
	"context"

	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/logging"
)

// LogSink writes the events of unattended sessions to a logger. Partial
// text chunks are skipped. It never answers questions.
type LogSink struct {
	core.LoggerAdapter
}

var _ core.Interaction = (*LogSink)(nil)

// NewLogSink creates a sink logging to logger.
func NewLogSink(logger logging.Logger) *LogSink {
	return &LogSink{LoggerAdapter: core.NewLoggerAdapter(logger)}
}

// Notify logs ev.
func (l *LogSink) Notify(ev core.Event) {
	switch e := ev.(type) {
	case core.Text:
		if !e.Partial {
			l.LogInfo("launch.text", "speaker", e.Speaker, "text", e.Text)
		}
	case core.Warn:
		l.LogWarn("launch.warn", "message", e.Message)
	case core.ErrorEvent:
		l.LogError("launch.error", "code", e.Code, "message", e.Message)
	case core.ToolRequest:
		l.LogDebug("launch.tool.request", "tool", e.Tool, "request", e.RequestID)
	case core.Invite:
		l.LogInfo("launch.question", "prompt", e.Prompt, "default", e.Default)
	case core.Choice:
		l.LogInfo("launch.question", "prompt", e.Prompt, "options", e.Options, "default", e.Default)
	default:
		l.LogDebug("launch.event", "kind", string(ev.Kind()), "key", ev.Key().String())
	}
}

// Ask logs q and fails.
func (l *LogSink) Ask(_ context.Context, q core.Question) (core.Answer, error) {
	l.Notify(q)
	return core.Answer{}, ErrNoAnswer
}
