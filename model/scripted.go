package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/cmdmesh/core"
)

// Turn is one scripted model reply.
type Turn struct {
	// Chunks are streamed as partial responses when the request streams.
	Chunks []string
	// Text is the final text. Empty with Chunks set means the joined chunks.
	Text string
	// ToolCalls requested by the final response.
	ToolCalls []core.FunctionCall
	// Err fails the turn after the chunks were sent.
	Err error
	// Truncate ends the turn after the chunks without a final response.
	Truncate bool
	// Block waits for ctx cancellation before failing with ctx.Err().
	Block bool
	// Usage is reported on the final response.
	Usage *TokenUsage
}

// ScriptedModel replays scripted turns in order, one per Generate call. Once
// the script is exhausted it echoes the last user text.
type ScriptedModel struct {
	info Info

	mu       sync.Mutex
	turns    []Turn
	requests []Request
}

// NewScriptedModel creates a scripted model named name.
func NewScriptedModel(name string, turns ...Turn) *ScriptedModel {
	return &ScriptedModel{
		info:  Info{Name: name, Provider: "scripted", SupportsTools: true},
		turns: turns,
	}
}

// Then appends turns to the script.
func (m *ScriptedModel) Then(turns ...Turn) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, turns...)
	return m
}

// Requests returns every request received so far.
func (m *ScriptedModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Calls returns the number of Generate calls.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *ScriptedModel) next(req Request) Turn {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)

	if len(m.turns) == 0 {
		return Turn{Text: fmt.Sprintf("%s: %s", m.info.Name, lastUserText(req))}
	}

	t := m.turns[0]
	m.turns = m.turns[1:]

	return t
}

// Generate implements Model.
func (m *ScriptedModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	out := make(chan Response, 16)
	errCh := make(chan error, 1)

	turn := m.next(req)

	go func() {
		defer close(out)
		defer close(errCh)

		if req.Stream {
			for _, c := range turn.Chunks {
				if !Send(ctx, out, Response{Partial: true, Content: core.NewTextContent("assistant", c)}) {
					errCh <- ctx.Err()
					return
				}
			}
		}

		if turn.Block {
			<-ctx.Done()
			errCh <- ctx.Err()
			return
		}

		if turn.Err != nil {
			errCh <- turn.Err
			return
		}

		if turn.Truncate {
			return
		}

		text := turn.Text
		if text == "" {
			for _, c := range turn.Chunks {
				text += c
			}
		}

		final := Response{Content: core.Content{Role: "assistant"}, FinishReason: "stop", Usage: turn.Usage}
		if text != "" {
			final.Content.Parts = append(final.Content.Parts, core.TextPart{Text: text})
		}
		for _, call := range turn.ToolCalls {
			final.Content.Parts = append(final.Content.Parts, core.FunctionCallPart{FunctionCall: call})
		}
		if len(turn.ToolCalls) > 0 {
			final.FinishReason = "tool_calls"
		}

		if !Send(ctx, out, final) {
			errCh <- ctx.Err()
		}
	}()

	return out, errCh
}

// Info implements Model.
func (m *ScriptedModel) Info() Info { return m.info }

func lastUserText(req Request) string {
	for i := len(req.Contents) - 1; i >= 0; i-- {
		if req.Contents[i].Role == "user" {
			return req.Contents[i].Text()
		}
	}
	return ""
}

var _ Model = (*ScriptedModel)(nil)
