package core

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Kind discriminates Event variants.
type Kind string

const (
	KindInvite       Kind = "invite"
	KindChoice       Kind = "choice"
	KindAnswer       Kind = "answer"
	KindText         Kind = "text"
	KindWarn         Kind = "warn"
	KindError        Kind = "error"
	KindToolRequest  Kind = "tool_request"
	KindToolResponse Kind = "tool_response"
)

// Key identifies an event. Seq is unique and strictly increasing within a
// Sequencer; Time records the creation instant and is informational only.
// Answers reference their question through the question's Key.
type Key struct {
	Seq  uint64    `json:"seq"`
	Time time.Time `json:"time"`
}

// IsZero reports whether the key was never assigned.
func (k Key) IsZero() bool { return k.Seq == 0 }

// String renders the key for logs.
func (k Key) String() string { return fmt.Sprintf("#%d", k.Seq) }

// Sequencer hands out monotonically increasing keys.
type Sequencer struct {
	next atomic.Uint64
	now  func() time.Time
}

// NewSequencer returns a sequencer starting at 1.
func NewSequencer() *Sequencer {
	return &Sequencer{now: func() time.Time { return time.Now().UTC() }}
}

// Next returns a fresh key.
func (s *Sequencer) Next() Key {
	return Key{Seq: s.next.Add(1), Time: s.now()}
}

var defaultSequencer = NewSequencer()

// NewKey issues a key from the process-wide sequencer.
func NewKey() Key { return defaultSequencer.Next() }

// NewID generates a new unique identifier for sessions, prompts and schedulers.
func NewID() string { return uuid.NewString() }

// Event is the closed set of messages exchanged between the orchestration
// engine and its consumers. Events are immutable after construction.
type Event interface {
	Kind() Kind
	Key() Key
	isEvent()
}

// Question is an event that expects an Answer.
type Question interface {
	Event
	// BuildAnswer creates the Answer for this question. The answer's
	// ParentKey equals the question's Key.
	BuildAnswer(value string) Answer
}

// Invite asks for free-text input.
type Invite struct {
	EventKey Key    `json:"key"`
	Prompt   string `json:"prompt"`
	Default  string `json:"default,omitempty"`
}

// NewInvite constructs an Invite question.
func NewInvite(prompt, def string) Invite {
	return Invite{EventKey: NewKey(), Prompt: prompt, Default: def}
}

func (Invite) Kind() Kind { return KindInvite }
func (e Invite) Key() Key { return e.EventKey }
func (Invite) isEvent() {}
func (e Invite) BuildAnswer(value string) Answer {
	return Answer{EventKey: NewKey(), ParentKey: e.EventKey, Value: value}
}

// Choice asks the consumer to pick one of Options.
type Choice struct {
	EventKey Key      `json:"key"`
	Prompt   string   `json:"prompt"`
	Options  []string `json:"options"`
	Default  string   `json:"default,omitempty"`
}

// NewChoice constructs a Choice question. Options are copied.
func NewChoice(prompt string, options []string, def string) Choice {
	opts := make([]string, len(options))
	copy(opts, options)
	return Choice{EventKey: NewKey(), Prompt: prompt, Options: opts, Default: def}
}

func (Choice) Kind() Kind { return KindChoice }
func (e Choice) Key() Key { return e.EventKey }
func (Choice) isEvent() {}
func (e Choice) BuildAnswer(value string) Answer {
	return Answer{EventKey: NewKey(), ParentKey: e.EventKey, Value: value}
}

// Valid reports whether value is one of the offered options.
func (e Choice) Valid(value string) bool {
	for _, o := range e.Options {
		if o == value {
			return true
		}
	}
	return false
}

// Answer carries the reply to a Question.
type Answer struct {
	EventKey  Key    `json:"key"`
	ParentKey Key    `json:"parent_key"`
	Value     string `json:"value"`
}

func (Answer) Kind() Kind { return KindAnswer }
func (e Answer) Key() Key { return e.EventKey }
func (Answer) isEvent() {}

// Text is informational or assistant output. Partial marks a streaming chunk.
type Text struct {
	EventKey Key    `json:"key"`
	Speaker  string `json:"speaker,omitempty"`
	Text     string `json:"text"`
	Partial  bool   `json:"partial,omitempty"`
}

// NewText constructs a Text event attributed to speaker (may be empty).
func NewText(speaker, text string) Text {
	return Text{EventKey: NewKey(), Speaker: speaker, Text: text}
}

// NewTextChunk constructs a partial Text event.
func NewTextChunk(speaker, text string) Text {
	t := NewText(speaker, text)
	t.Partial = true
	return t
}

func (Text) Kind() Kind { return KindText }
func (e Text) Key() Key { return e.EventKey }
func (Text) isEvent() {}

// Warn is a non-fatal notice.
type Warn struct {
	EventKey Key    `json:"key"`
	Message  string `json:"message"`
}

// NewWarn constructs a Warn event.
func NewWarn(format string, args ...any) Warn {
	return Warn{EventKey: NewKey(), Message: fmt.Sprintf(format, args...)}
}

func (Warn) Kind() Kind { return KindWarn }
func (e Warn) Key() Key { return e.EventKey }
func (Warn) isEvent() {}

// ErrorEvent reports a failure to the consumer. Code is populated from a
// *core.Error when available.
type ErrorEvent struct {
	EventKey Key    `json:"key"`
	Code     string `json:"code,omitempty"`
	Message  string `json:"message"`
	Err      error  `json:"-"`
}

// NewErrorEvent wraps err into an ErrorEvent.
func NewErrorEvent(err error) ErrorEvent {
	return ErrorEvent{EventKey: NewKey(), Code: CodeOf(err), Message: err.Error(), Err: err}
}

func (ErrorEvent) Kind() Kind { return KindError }
func (e ErrorEvent) Key() Key { return e.EventKey }
func (ErrorEvent) isEvent() {}

// ToolRequest announces a tool invocation requested by a model.
type ToolRequest struct {
	EventKey  Key    `json:"key"`
	RequestID string `json:"request_id"`
	Speaker   string `json:"speaker,omitempty"`
	Tool      string `json:"tool"`
	Arguments string `json:"arguments,omitempty"`
}

// NewToolRequest constructs a ToolRequest.
func NewToolRequest(speaker string, call FunctionCall) ToolRequest {
	return ToolRequest{EventKey: NewKey(), RequestID: call.ID, Speaker: speaker, Tool: call.Name, Arguments: call.Arguments}
}

func (ToolRequest) Kind() Kind { return KindToolRequest }
func (e ToolRequest) Key() Key { return e.EventKey }
func (ToolRequest) isEvent() {}

// ToolResponse carries the outcome of a ToolRequest with the same RequestID.
type ToolResponse struct {
	EventKey  Key    `json:"key"`
	RequestID string `json:"request_id"`
	Speaker   string `json:"speaker,omitempty"`
	Tool      string `json:"tool"`
	Result    any    `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
}

// NewToolResponse constructs a ToolResponse from a function response.
func NewToolResponse(speaker string, resp FunctionResponse) ToolResponse {
	return ToolResponse{EventKey: NewKey(), RequestID: resp.ID, Speaker: speaker, Tool: resp.Name, Result: resp.Response, Error: resp.Error}
}

func (ToolResponse) Kind() Kind { return KindToolResponse }
func (e ToolResponse) Key() Key { return e.EventKey }
func (ToolResponse) isEvent() {}

var (
	_ Question = Invite{}
	_ Question = Choice{}
	_ Event    = Answer{}
	_ Event    = Text{}
	_ Event    = Warn{}
	_ Event    = ErrorEvent{}
	_ Event    = ToolRequest{}
	_ Event    = ToolResponse{}
)
