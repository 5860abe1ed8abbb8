package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/tool"
)

// executeTools runs a batch of tool calls with bounded parallelism and
// returns exactly one response per call, in call order. Tool panics are
// recovered into error responses.
func (a *Agent) executeTools(ctx context.Context, agentName string, registry map[string]tool.Tool, calls []core.FunctionCall) []core.FunctionResponse {
	responses := make([]core.FunctionResponse, len(calls))

	var g errgroup.Group
	if a.opts.MaxParallelTools > 0 {
		g.SetLimit(a.opts.MaxParallelTools)
	}

	batchStart := time.Now()
	for i, fc := range calls {
		g.Go(func() error {
			responses[i] = a.executeTool(ctx, agentName, registry, fc)
			return nil
		})
	}
	_ = g.Wait()

	a.LogDebug(
		"agent.functions.batch.complete",
		"agent", agentName,
		"count", len(calls),
		"parallelism", a.opts.MaxParallelTools,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	return responses
}

func (a *Agent) executeTool(ctx context.Context, agentName string, registry map[string]tool.Tool, fc core.FunctionCall) core.FunctionResponse {
	toolCtx := tool.NewContext(ctx, fc.ID, agentName, a.Logger())

	start := time.Now()
	var (
		result any
		err    error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = &panicErr{val: r, stack: debug.Stack()}
				a.LogError("agent.function.panic", "agent", agentName, "function", fc.Name, "recover", r)
			}
		}()
		result, err = callTool(registry, toolCtx, fc.Name, fc.Arguments)
	}()
	dur := time.Since(start)

	a.LogInfo(
		"agent.tool.executed",
		"agent", agentName,
		"tool", fc.Name,
		"duration_ms", dur.Milliseconds(),
		"error", err != nil,
	)
	if a.opts.Observer != nil {
		a.opts.Observer.ObserveToolCall(agentName, fc.Name, dur, err)
	}

	resp := core.FunctionResponse{ID: fc.ID, Name: fc.Name, Response: result}
	if err != nil {
		resp.Error = err.Error()
	}

	return resp
}

type panicErr struct {
	val   any
	stack []byte
}

func (p *panicErr) Error() string { return fmt.Sprintf("panic recovered: %v", p.val) }

// callTool centralizes tool lookup, argument decoding and execution.
func callTool(registry map[string]tool.Tool, toolCtx *tool.Context, name, args string) (any, error) {
	impl, ok := registry[name]
	if !ok {
		return nil, tool.NewToolError(name, fmt.Sprintf("tool %s not found", name), tool.CodeNotFound)
	}

	argMap := map[string]any{}
	if args != "" {
		if err := json.Unmarshal([]byte(args), &argMap); err != nil {
			return nil, tool.NewToolError(name, fmt.Sprintf("failed to unmarshal args: %v", err), tool.CodeValidation)
		}
	}

	return impl.Call(toolCtx, argMap)
}
