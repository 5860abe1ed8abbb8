package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	dec := json.NewDecoder(buf)
	for dec.More() {
		var m map[string]any
		require.NoError(t, dec.Decode(&m))
		out = append(out, m)
	}
	return out
}

func TestMeshLogger_KeyValueArgs(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelDebug, Format: "json", Output: &buf, Component: "command"})

	l.WithSession("s-1", "demo").Info("command.dispatch", "word", "load", "queued", 2)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "command.dispatch", lines[0]["msg"])
	assert.Equal(t, "command", lines[0]["component"])
	assert.Equal(t, "s-1", lines[0]["session_id"])
	assert.Equal(t, "demo", lines[0]["project"])
	assert.Equal(t, "load", lines[0]["word"])
	assert.EqualValues(t, 2, lines[0]["queued"])
}

func TestMeshLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelWarn, Format: "json", Output: &buf})

	l.Debug("dropped")
	l.Info("dropped")
	l.Warn("kept")
	l.Error("command.failed", "error", errors.New("boom").Error())

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "kept", lines[0]["msg"])
	assert.Equal(t, "command.failed", lines[1]["msg"])
	assert.Equal(t, "boom", lines[1]["error"])
}

func TestMeshLogger_WithContextDoesNotLeak(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "json", Output: &buf})
	child := base.With("agent", "coder")

	base.Info("base")
	child.Info("child")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.NotContains(t, lines[0], "agent")
	assert.Equal(t, "coder", lines[1]["agent"])
}

func TestMeshLogger_OddArgs(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "json", Output: &buf})
	l.Info("odd", "dangling")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "dangling", lines[0]["!BADKEY"])
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]LogLevel{"debug": LogLevelDebug, "INFO": LogLevelInfo, "": LogLevelInfo, "warning": LogLevelWarn, "error": LogLevelError} {
		got, err := ParseLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestZapAdapter_ForwardsFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	var l Logger = NewZapAdapter(zap.New(core))

	l.Info("scheduler.fire", "scheduler", "sch-1", "count", 3)
	l.Error("scheduler.launch.failed", "error", "boom")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "scheduler.fire", entries[0].Message)
	assert.Equal(t, "sch-1", entries[0].ContextMap()["scheduler"])
	assert.EqualValues(t, 3, entries[0].ContextMap()["count"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
}

func TestWith_PrependsPairs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := With(With(NewZapAdapter(zap.New(core)), "session", "s-1"), "kind", "oneshot")

	l.Warn("session.submit.failed", "error", "boom")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, map[string]any{"session": "s-1", "kind": "oneshot", "error": "boom"}, entries[0].ContextMap())

	assert.Equal(t, NoOpLogger{}, With(nil, "k", "v"))
}

func TestNoOpLogger(t *testing.T) {
	var l Logger = NoOpLogger{}
	assert.NotPanics(t, func() {
		l.Debug("x")
		l.Info("x", "k", "v")
		l.Warn("x")
		l.Error("x")
	})
}
