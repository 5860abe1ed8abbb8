package testutil

import (
	"strings"

	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/thread"
)

// ThreadBuilder helps construct pre-populated threads with fluent chaining.
// Example:
//
//	th := NewThreadBuilder("s1").User("ana", "hi").Assistant("helper", "hello").Build()
type ThreadBuilder struct {
	id   string
	msgs []thread.Message
}

// NewThreadBuilder creates a builder for a thread with the given id.
func NewThreadBuilder(id string) *ThreadBuilder {
	return &ThreadBuilder{id: id}
}

// User appends a user text message (chainable).
func (b *ThreadBuilder) User(speaker, text string) *ThreadBuilder {
	b.msgs = append(b.msgs, thread.NewUserMessage(speaker, text))
	return b
}

// Assistant appends an assistant text message (chainable).
func (b *ThreadBuilder) Assistant(speaker, text string) *ThreadBuilder {
	b.msgs = append(b.msgs, thread.NewAssistantMessage(speaker, text))
	return b
}

// ToolCall appends the assistant turn requesting calls (chainable).
func (b *ThreadBuilder) ToolCall(speaker string, calls ...core.FunctionCall) *ThreadBuilder {
	b.msgs = append(b.msgs, thread.NewToolCallMessage(speaker, "", calls))
	return b
}

// ToolResult appends the outcome of one tool call (chainable).
func (b *ThreadBuilder) ToolResult(speaker, id, name string, result any, err error) *ThreadBuilder {
	resp := core.FunctionResponse{ID: id, Name: name, Response: result}
	if err != nil {
		resp.Error = err.Error()
	}
	b.msgs = append(b.msgs, thread.NewToolResultMessage(speaker, resp))
	return b
}

// Sized appends one user message per length, each that many characters
// long (chainable).
func (b *ThreadBuilder) Sized(speaker string, lengths ...int) *ThreadBuilder {
	for _, n := range lengths {
		b.User(speaker, strings.Repeat("x", n))
	}
	return b
}

// Messages returns a copy of the messages appended so far.
func (b *ThreadBuilder) Messages() []thread.Message {
	return append([]thread.Message(nil), b.msgs...)
}

// Build returns a thread holding the messages in order.
func (b *ThreadBuilder) Build() *thread.Thread {
	th := thread.New(b.id)
	th.Append(b.msgs...)
	return th
}
