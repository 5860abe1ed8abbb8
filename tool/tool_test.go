package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/cmdmesh/internal/util"
	"github.com/hupe1980/cmdmesh/logging"
	"github.com/hupe1980/cmdmesh/memory"
)

// -------------------- Schema & Validation Tests --------------------

func TestObjectSchema(t *testing.T) {
	schema := util.ObjectSchema(
		util.String("a", "Field A", true),
		util.Integer("b", "Optional count", false),
		util.Property{Name: "mode", Type: "string", Enum: []string{"fast", "slow"}},
	)
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "a")
	assert.Contains(t, props, "b")
	assert.Equal(t, map[string]any{"type": "integer", "description": "Optional count"}, props["b"])

	req, _ := schema["required"].([]string)
	assert.Equal(t, []string{"a"}, req)

	assert.NoError(t, util.ValidateParameters(map[string]any{"a": "x", "mode": "fast"}, schema))

	err := util.ValidateParameters(map[string]any{"a": "x", "mode": "medium"}, schema)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "mode", vErr.Field)
}

func TestValidateParameters(t *testing.T) {
	for name, required := range map[string]any{
		"decoded json": []any{"x"},
		"go literal":   []string{"x"},
	} {
		t.Run(name, func(t *testing.T) {
			schema := map[string]any{
				"type": "object",
				"properties": map[string]any{
					"x": map[string]any{"type": "integer"},
				},
				"required": required,
			}

			assert.NoError(t, util.ValidateParameters(map[string]any{"x": 5}, schema))

			err := util.ValidateParameters(map[string]any{}, schema)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, "x", vErr.Field)

			err = util.ValidateParameters(map[string]any{"x": "not-int"}, schema)
			require.ErrorAs(t, err, &vErr)
			assert.Contains(t, vErr.Message, "expected type integer")
		})
	}
}

// -------------------- FunctionTool Tests --------------------

func newTestContext(callID string) *Context {
	return NewContext(context.Background(), callID, "tester", logging.NoOpLogger{})
}

func TestFunctionTool_Success(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}

	sumTool := NewFunctionTool("sum", "Add numbers", params, func(tc *Context, args map[string]any) (any, error) {
		assert.Equal(t, "fc1", tc.FunctionCallID())
		assert.Equal(t, "tester", tc.Agent())
		return args["a"].(float64) + args["b"].(float64), nil
	})

	result, err := sumTool.Call(newTestContext("fc1"), map[string]any{"a": 2.0, "b": 3.0})
	assert.NoError(t, err)
	assert.Equal(t, 5.0, result)

	def := Describe(sumTool)
	assert.Equal(t, "sum", def.Name)
	assert.Equal(t, params, def.Parameters)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
		},
		"required": []string{"a"},
	}
	called := false
	tTool := NewFunctionTool("test", "Test", params, func(_ *Context, _ map[string]any) (any, error) {
		called = true
		return 0, nil
	})

	_, err := tTool.Call(newTestContext("fc2"), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)
	assert.False(t, called)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	params := map[string]any{"type": "object", "properties": map[string]any{}}
	execTool := NewFunctionTool("fail", "Fails", params, func(_ *Context, _ map[string]any) (any, error) {
		return nil, errors.New("boom")
	})

	_, err := execTool.Call(newTestContext("fc3"), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeExecution, toolErr.Code)
	assert.Equal(t, "boom", toolErr.Message)
}

func TestFunctionTool_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	execTool := NewFunctionTool("noop", "Noop", map[string]any{"type": "object"}, func(_ *Context, _ map[string]any) (any, error) {
		called = true
		return nil, nil
	})

	_, err := execTool.Call(NewContext(ctx, "fc4", "a", nil), map[string]any{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

// -------------------- Builtin Tools --------------------

func TestRedirectTool(t *testing.T) {
	var queued []string
	redirect := NewRedirectTool(func(line string) { queued = append(queued, line) })

	res, err := redirect.Call(newTestContext("r1"), map[string]any{"agent": "@coder", "query": " fix the build "})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"queued": "@coder fix the build"}, res)
	assert.Equal(t, []string{"@coder fix the build"}, queued)

	_, err = redirect.Call(newTestContext("r2"), map[string]any{"agent": "tester", "query": "loop"})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)

	_, err = redirect.Call(newTestContext("r3"), map[string]any{"agent": "two words", "query": "x"})
	assert.Error(t, err)
	assert.Len(t, queued, 1)
}

func TestMemoryTools(t *testing.T) {
	store := memory.NewInMemoryStore()
	remember := NewRememberTool(store, "project:demo")
	recall := NewRecallTool(store, "project:demo")

	res, err := remember.Call(newTestContext("m1"), map[string]any{"content": "the build uses make", "topic": "build"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.(map[string]any)["id"])

	_, err = remember.Call(newTestContext("m2"), map[string]any{"content": ""})
	assert.Error(t, err)

	res, err = recall.Call(newTestContext("m3"), map[string]any{"query": "build", "limit": 3.0})
	require.NoError(t, err)
	results := res.(map[string]any)["results"].([]map[string]any)
	require.Len(t, results, 1)
	assert.Equal(t, "the build uses make", results[0]["content"])

	stored, _ := store.Search("project:demo", "", 0)
	require.Len(t, stored, 1)
	assert.Equal(t, "tester", stored[0].Metadata["agent"])
	assert.Equal(t, "build", stored[0].Metadata["topic"])
}

func TestReadFileTool(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "docs/a.md", []byte("alpha"), 0o644))

	read := NewReadFileTool(fs)

	res, err := read.Call(newTestContext("f1"), map[string]any{"path": "docs/a.md"})
	require.NoError(t, err)
	assert.Equal(t, "alpha", res.(map[string]any)["content"])
	assert.Equal(t, false, res.(map[string]any)["truncated"])

	_, err = read.Call(newTestContext("f2"), map[string]any{"path": "docs"})
	assert.Error(t, err)

	_, err = read.Call(newTestContext("f3"), map[string]any{"path": "missing.md"})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeNotFound, toolErr.Code)
}

// -------------------- Factories --------------------

func TestStaticFactory_CloseIdempotent(t *testing.T) {
	closes := 0
	f := NewStaticFactory(NewReadFileTool(afero.NewMemMapFs())).OnClose(func() error {
		closes++
		return nil
	})

	tools, err := f.Tools(context.Background())
	require.NoError(t, err)
	assert.Len(t, tools, 1)

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
	assert.Equal(t, 1, closes)
	assert.True(t, f.Closed())

	_, err = f.Tools(context.Background())
	assert.Error(t, err)
}

func TestBuiltins(t *testing.T) {
	builtins := Builtins()

	empty := Scope{SessionID: "s1"}
	for name, ctor := range builtins {
		f, err := ctor(empty)
		require.NoError(t, err, name)
		tools, err := f.Tools(context.Background())
		require.NoError(t, err)
		assert.Empty(t, tools, "%s without dependencies", name)
	}

	full := Scope{
		SessionID: "s1",
		Project:   "demo",
		Enqueue:   func(string) {},
		Memory:    memory.NewInMemoryStore(),
		FS:        afero.NewMemMapFs(),
	}

	names := map[string][]string{}
	for name, ctor := range builtins {
		f, err := ctor(full)
		require.NoError(t, err)
		tools, _ := f.Tools(context.Background())
		for _, tl := range tools {
			names[name] = append(names[name], tl.Name())
		}
	}

	assert.Equal(t, []string{"remember", "recall"}, names[FactoryMemory])
	assert.Equal(t, []string{"redirect_to_agent"}, names[FactoryRedirect])
	assert.Equal(t, []string{"read_file"}, names[FactoryFiles])

	assert.Equal(t, "project:demo", MemoryScope(full))
	assert.Equal(t, "session:s1", MemoryScope(empty))
}

func TestToolErrorFormatting(t *testing.T) {
	err := NewToolError("demo", "something failed", "E123")
	assert.Contains(t, err.Error(), "E123")
	assert.Contains(t, err.Error(), "demo")
}
