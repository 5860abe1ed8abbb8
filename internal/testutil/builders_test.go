package testutil

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/cmdmesh/thread"
)

func TestThreadBuilder(t *testing.T) {
	th := NewThreadBuilder("s1").
		User("ana", "hi").
		Assistant("helper", "hello").
		ToolResult("helper", "c1", "recall", nil, errors.New("empty")).
		Sized("ana", 3, 4).
		Build()

	assert.Equal(t, "s1", th.ID())
	msgs := th.Messages()
	require.Len(t, msgs, 5)
	assert.Equal(t, thread.RoleAssistant, msgs[1].Role)
	assert.Equal(t, thread.RoleTool, msgs[2].Role)
	assert.Equal(t, 3, msgs[3].Length)
	assert.Equal(t, "xxxx", msgs[4].Text())
}

func TestTurnBuilder(t *testing.T) {
	turns := NewTurnBuilder().
		Call("c1", "recall", `{}`).Call("c2", "remember", `{}`).
		Next().
		Chunks("do", "ne").
		Build()

	require.Len(t, turns, 2)
	assert.Len(t, turns[0].ToolCalls, 2)
	assert.Equal(t, []string{"do", "ne"}, turns[1].Chunks)

	assert.Empty(t, NewTurnBuilder().Build())
	assert.Len(t, NewTurnBuilder().Text("x").Next().Build(), 1)
}
