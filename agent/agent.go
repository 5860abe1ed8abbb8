package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/model"
	"github.com/hupe1980/cmdmesh/thread"
	"github.com/hupe1980/cmdmesh/tool"
)

// Agent is a session-scoped instance of a registered Definition. Its tier is
// sticky: escalation prefixes change it for all following runs of this
// instance only.
type Agent struct {
	core.LoggerAdapter

	mu        sync.Mutex
	def       Definition
	backends  Backends
	factories []tool.Factory
	scope     tool.Scope
	opts      Options

	life   context.Context
	cancel context.CancelFunc
	runs   sync.WaitGroup
	closed bool
}

func newAgent(def Definition, backends Backends, factories []tool.Factory, scope tool.Scope, opts Options) *Agent {
	life, cancel := context.WithCancel(context.Background())
	if def.Tier == "" {
		def.Tier = TierSmall
	}
	return &Agent{
		LoggerAdapter: core.NewLoggerAdapter(opts.Logger),
		def:           def,
		backends:      backends,
		factories:     factories,
		scope:         scope,
		opts:          opts,
		life:          life,
		cancel:        cancel,
	}
}

// Name returns the agent name.
func (a *Agent) Name() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.def.Name
}

// Tier returns the current tier.
func (a *Agent) Tier() Tier {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.def.Tier
}

// Definition returns a copy of the agent's current definition.
func (a *Agent) Definition() Definition {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.def.Clone()
}

// Run processes command against th and returns the live output stream. The
// tier prefix is applied and the processed command is appended to th before
// Run returns; the model exchange continues asynchronously. Failures are
// reported on the stream, never returned.
func (a *Agent) Run(ctx context.Context, command string, th *thread.Thread) *core.Stream {
	stream := core.NewStream()

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		stream.Fail(core.Errorf(core.ErrCodeStreamAborted, "agent %s is closed", a.def.Name))
		return stream
	}

	tier, text := Escalate(a.def.Tier, command)
	if tier != a.def.Tier {
		a.LogInfo("agent.tier.changed", "agent", a.def.Name, "from", a.def.Tier, "to", tier)
		a.def.Tier = tier
	}
	def := a.def.Clone()
	a.runs.Add(1)
	a.mu.Unlock()

	if text == "" {
		defer a.runs.Done()
		_ = stream.Publish(core.NewText(def.Name, fmt.Sprintf("%s now runs on the %s tier", def.Name, def.Tier)))
		stream.Close()
		return stream
	}

	th.Append(thread.NewUserMessage(a.scope.Username, text))
	turnStart := th.Len() - 1

	runCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(a.life, cancel)

	go func() {
		defer a.runs.Done()
		defer cancel()
		defer stop()

		a.run(runCtx, def, th, turnStart, stream)
	}()

	return stream
}

func (a *Agent) run(ctx context.Context, def Definition, th *thread.Thread, turnStart int, stream *core.Stream) {
	start := time.Now()
	a.LogInfo("agent.run.start", "agent", def.Name, "tier", def.Tier, "session", a.scope.SessionID)

	err := a.loop(ctx, def, th, turnStart, stream)
	if err != nil {
		err = classify(ctx, err)
		a.LogError("agent.run.failed", "agent", def.Name, "error", err.Error(), "duration_ms", time.Since(start).Milliseconds())
		stream.Fail(err)
		return
	}

	a.LogInfo("agent.run.completed", "agent", def.Name, "duration_ms", time.Since(start).Milliseconds())
	stream.Close()
}

func (a *Agent) loop(ctx context.Context, def Definition, th *thread.Thread, turnStart int, stream *core.Stream) error {
	backend := a.backends.For(def.Tier)
	if backend == nil {
		return core.Errorf(core.ErrCodeBackendFailed, "no model backend configured for tier %s", def.Tier)
	}

	tools, err := a.tools(ctx)
	if err != nil {
		return err
	}

	instructions, err := Resolve(def.Instructions, InstructionVars{
		Project:  a.scope.Project,
		Username: a.scope.Username,
		Agent:    def.Name,
		Session:  a.scope.SessionID,
		Tier:     def.Tier,
	})
	if err != nil {
		return core.NewError(core.ErrCodeInvalidArguments, "render instructions", err)
	}

	toolDefs := make([]model.ToolDefinition, 0, len(tools))
	registry := make(map[string]tool.Tool, len(tools))
	for _, t := range tools {
		registry[t.Name()] = t
		toolDefs = append(toolDefs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}

	budget := newCallBudget(def.Name, def.Tier, a.opts.MaxModelCalls)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := budget.take(); err != nil {
			return err
		}

		req := model.Request{
			Instructions: instructions,
			Contents:     a.contents(th, turnStart),
			Tools:        toolDefs,
			Stream:       a.opts.Stream,
		}

		callStart := time.Now()
		final, err := a.generate(ctx, backend, req, def.Name, stream)
		if a.opts.Observer != nil {
			a.opts.Observer.ObserveModelCall(def.Name, def.Tier, time.Since(callStart), err)
		}
		if err != nil {
			return err
		}
		if u := final.Usage; u != nil {
			a.LogDebug("agent.model.usage", "agent", def.Name, "tier", def.Tier.String(), "prompt_tokens", u.PromptTokens, "completion_tokens", u.CompletionTokens)
			if a.opts.Observer != nil {
				a.opts.Observer.ObserveTokens(def.Tier, u.PromptTokens, u.CompletionTokens)
			}
		}

		calls := final.Content.FunctionCalls()
		text := final.Content.Text()

		if len(calls) == 0 {
			th.Append(thread.NewAssistantMessage(def.Name, text))
			_ = stream.Publish(core.NewText(def.Name, text))
			return nil
		}

		calls = ensureCallIDs(calls)
		th.Append(thread.NewToolCallMessage(def.Name, text, calls))
		for _, call := range calls {
			_ = stream.Publish(core.NewToolRequest(def.Name, call))
		}

		responses := a.executeTools(ctx, def.Name, registry, calls)
		for _, resp := range responses {
			th.Append(thread.NewToolResultMessage(def.Name, resp))
			_ = stream.Publish(core.NewToolResponse(def.Name, resp))
		}
	}
}

// contents returns the in-window history plus every message of the current
// turn, so the command and its tool exchange always reach the model.
func (a *Agent) contents(th *thread.Thread, turnStart int) []core.Content {
	msgs := th.Messages()
	w := thread.Partition(msgs, a.opts.WindowBudget)

	selected := w.InWindow
	if n := len(w.InWindow); n < len(msgs) {
		from := n
		if turnStart > from {
			from = turnStart
		}
		selected = append(selected, msgs[from:]...)
	}

	if len(w.Overflow) > 0 {
		a.LogDebug("agent.window", "in_window", len(w.InWindow), "overflow", len(w.Overflow), "sent", len(selected))
	}

	contents := make([]core.Content, 0, len(selected))
	for _, m := range selected {
		contents = append(contents, m.Content)
	}
	return contents
}

// generate drains one model turn. Partial text is forwarded as chunks; the
// final response is returned. A stream ending without a final response is
// an abort, not a completion.
func (a *Agent) generate(ctx context.Context, backend model.Model, req model.Request, speaker string, stream *core.Stream) (*model.Response, error) {
	respCh, errCh := backend.Generate(ctx, req)

	var final *model.Response
	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if resp.Partial {
				if chunk := resp.Content.Text(); chunk != "" {
					_ = stream.Publish(core.NewTextChunk(speaker, chunk))
				}
				continue
			}
			r := resp
			final = &r
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return nil, err
			}
		}
	}

	if final == nil {
		return nil, core.Errorf(core.ErrCodeStreamAborted, "model stream ended without a final response")
	}

	return final, nil
}

func (a *Agent) tools(ctx context.Context) ([]tool.Tool, error) {
	var out []tool.Tool
	for _, f := range a.factories {
		ts, err := f.Tools(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, ts...)
	}
	return out, nil
}

// Close cancels in-flight runs, waits for them and closes the tool
// factories. It is idempotent.
func (a *Agent) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	a.cancel()
	a.runs.Wait()

	var result *multierror.Error
	for _, f := range a.factories {
		if err := f.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	a.LogDebug("agent.closed", "agent", a.Name())

	return result.ErrorOrNil()
}

// classify maps run failures onto coded errors.
func classify(ctx context.Context, err error) error {
	if core.CodeOf(err) != "" {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return core.NewError(core.ErrCodeStreamAborted, "agent run aborted", err)
	}
	return core.NewError(core.ErrCodeBackendFailed, "model backend failed", err)
}

func ensureCallIDs(calls []core.FunctionCall) []core.FunctionCall {
	out := make([]core.FunctionCall, len(calls))
	for i, c := range calls {
		if c.ID == "" {
			c.ID = core.NewID()
		}
		out[i] = c
	}
	return out
}
