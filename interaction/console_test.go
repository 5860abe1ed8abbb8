package interaction

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/logging"
)

func newTestConsole(input string) (*Console, *bytes.Buffer) {
	var out bytes.Buffer
	c := NewConsole(strings.NewReader(input), &out, func(o *ConsoleOptions) {
		o.NoColor = true
		o.ShowTools = true
	})
	return c, &out
}

func TestConsole_RendersStreamedReplyOnce(t *testing.T) {
	c, out := newTestConsole("")

	c.Notify(core.NewTextChunk("helper", "hel"))
	c.Notify(core.NewTextChunk("helper", "lo"))
	c.Notify(core.NewText("helper", "hello"))
	c.Notify(core.NewText("", "loaded docs/a.md (12 bytes)"))

	assert.Equal(t, "helper> hello\nloaded docs/a.md (12 bytes)\n", out.String())
}

func TestConsole_RendersNotices(t *testing.T) {
	c, out := newTestConsole("")

	c.Notify(core.NewWarn("folder %s is empty", "docs"))
	c.Notify(core.NewErrorEvent(core.Errorf(core.ErrCodeNotFound, "no such file")))
	c.Notify(core.NewToolRequest("helper", core.FunctionCall{ID: "1", Name: "recall", Arguments: `{"query":"x"}`}))
	c.Notify(core.NewToolResponse("helper", core.FunctionResponse{ID: "1", Name: "recall"}))

	assert.Equal(t,
		"warning: folder docs is empty\n"+
			"error [NOT_FOUND]: no such file\n"+
			"-> recall {\"query\":\"x\"}\n"+
			"<- recall ok\n",
		out.String())
}

func TestConsole_AskInvite(t *testing.T) {
	c, out := newTestConsole("Berlin\n\n")

	q := core.NewInvite("city?", "Paris")
	ans, err := c.Ask(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, "Berlin", ans.Value)
	assert.Equal(t, q.Key(), ans.ParentKey)

	ans, err = c.Ask(context.Background(), core.NewInvite("city?", "Paris"))
	require.NoError(t, err)
	assert.Equal(t, "Paris", ans.Value)

	assert.Contains(t, out.String(), "city? [Paris] ")
}

func TestConsole_AskChoiceByNumberOrName(t *testing.T) {
	c, out := newTestConsole("2\ncurator\n\n")
	opts := []string{"coder", "curator"}

	ans, err := c.Ask(context.Background(), core.NewChoice("which agent?", opts, "coder"))
	require.NoError(t, err)
	assert.Equal(t, "curator", ans.Value)

	ans, err = c.Ask(context.Background(), core.NewChoice("which agent?", opts, "coder"))
	require.NoError(t, err)
	assert.Equal(t, "curator", ans.Value)

	ans, err = c.Ask(context.Background(), core.NewChoice("which agent?", opts, "coder"))
	require.NoError(t, err)
	assert.Equal(t, "coder", ans.Value)

	assert.Contains(t, out.String(), " * 1) coder\n   2) curator\n> ")
}

func TestConsole_AskAfterInputClosed(t *testing.T) {
	c, _ := newTestConsole("")

	_, err := c.Ask(context.Background(), core.NewInvite("name?", ""))
	require.Error(t, err)
	assert.Equal(t, core.ErrCodeStreamAborted, core.CodeOf(err))
}

func TestConsole_AskCancelled(t *testing.T) {
	c, _ := newTestConsole("ignored\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Ask(ctx, core.NewInvite("name?", ""))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConsole_ReadLine(t *testing.T) {
	c, out := newTestConsole("help\r\nlast")

	line, ok := c.ReadLine("> ")
	require.True(t, ok)
	assert.Equal(t, "help", line)

	line, ok = c.ReadLine("> ")
	require.True(t, ok)
	assert.Equal(t, "last", line)

	_, ok = c.ReadLine("> ")
	assert.False(t, ok)
	assert.Equal(t, "> > > ", out.String())
}

type capturingLogger struct {
	logging.NoOpLogger
	infos  []string
	errors []string
}

func (l *capturingLogger) Info(msg string, _ ...any)  { l.infos = append(l.infos, msg) }
func (l *capturingLogger) Error(msg string, _ ...any) { l.errors = append(l.errors, msg) }

func TestLogSink(t *testing.T) {
	logger := &capturingLogger{}
	sink := NewLogSink(logger)

	sink.Notify(core.NewTextChunk("helper", "partial"))
	sink.Notify(core.NewText("helper", "done"))
	sink.Notify(core.NewErrorEvent(errors.New("boom")))

	_, err := sink.Ask(context.Background(), core.NewInvite("value?", ""))
	assert.ErrorIs(t, err, ErrNoAnswer)

	assert.Equal(t, []string{"launch.text", "launch.question"}, logger.infos)
	assert.Equal(t, []string{"launch.error"}, logger.errors)
}
