package testutil

import (
	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/model"
)

// TurnBuilder scripts the replies of a model.ScriptedModel. Each Next
// closes the current turn and starts a new one.
// Example:
//
//	turns := NewTurnBuilder().Call("c1", "recall", `{"query":"x"}`).Next().Text("done").Build()
type TurnBuilder struct {
	turns []model.Turn
	cur   model.Turn
	dirty bool
}

// NewTurnBuilder creates an empty builder.
func NewTurnBuilder() *TurnBuilder { return &TurnBuilder{} }

// Text sets the final text of the current turn (chainable).
func (b *TurnBuilder) Text(t string) *TurnBuilder {
	b.cur.Text = t
	b.dirty = true
	return b
}

// Chunks appends streamed chunks to the current turn (chainable).
func (b *TurnBuilder) Chunks(chunks ...string) *TurnBuilder {
	b.cur.Chunks = append(b.cur.Chunks, chunks...)
	b.dirty = true
	return b
}

// Call adds a tool call to the current turn (chainable).
func (b *TurnBuilder) Call(id, name, args string) *TurnBuilder {
	b.cur.ToolCalls = append(b.cur.ToolCalls, core.FunctionCall{ID: id, Name: name, Arguments: args})
	b.dirty = true
	return b
}

// Fail makes the current turn fail with err (chainable).
func (b *TurnBuilder) Fail(err error) *TurnBuilder {
	b.cur.Err = err
	b.dirty = true
	return b
}

// Block makes the current turn wait for cancellation (chainable).
func (b *TurnBuilder) Block() *TurnBuilder {
	b.cur.Block = true
	b.dirty = true
	return b
}

// Next closes the current turn (chainable).
func (b *TurnBuilder) Next() *TurnBuilder {
	b.turns = append(b.turns, b.cur)
	b.cur = model.Turn{}
	b.dirty = false
	return b
}

// Build returns the scripted turns, including the open one when it was
// modified.
func (b *TurnBuilder) Build() []model.Turn {
	out := append([]model.Turn(nil), b.turns...)
	if b.dirty {
		out = append(out, b.cur)
	}
	return out
}

// Model returns a scripted model named name replaying the built turns.
func (b *TurnBuilder) Model(name string) *model.ScriptedModel {
	return model.NewScriptedModel(name, b.Build()...)
}
