package thread

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/hupe1980/cmdmesh/core"
)

// Role identifies the author class of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"
)

// Message is an immutable thread entry. Length is the character count used
// for context-window budgeting and is fixed at construction.
type Message struct {
	ID        string       `json:"id"`
	Role      Role         `json:"role"`
	Speaker   string       `json:"speaker,omitempty"`
	Content   core.Content `json:"content"`
	Length    int          `json:"length"`
	CreatedAt time.Time    `json:"created_at"`
}

// NewMessage builds a message from arbitrary content.
func NewMessage(role Role, speaker string, content core.Content) Message {
	content.Role = string(role)
	return Message{
		ID:        core.NewID(),
		Role:      role,
		Speaker:   speaker,
		Content:   content,
		Length:    contentLength(content),
		CreatedAt: time.Now().UTC(),
	}
}

// NewUserMessage builds a user text message.
func NewUserMessage(speaker, text string) Message {
	return NewMessage(RoleUser, speaker, core.NewTextContent(string(RoleUser), text))
}

// NewAssistantMessage builds an assistant text message.
func NewAssistantMessage(speaker, text string) Message {
	return NewMessage(RoleAssistant, speaker, core.NewTextContent(string(RoleAssistant), text))
}

// NewToolCallMessage records the assistant turn that requested tool calls.
// Any text produced alongside the calls is kept first.
func NewToolCallMessage(speaker, text string, calls []core.FunctionCall) Message {
	parts := make([]core.Part, 0, len(calls)+1)
	if text != "" {
		parts = append(parts, core.TextPart{Text: text})
	}
	for _, c := range calls {
		parts = append(parts, core.FunctionCallPart{FunctionCall: c})
	}
	return NewMessage(RoleAssistant, speaker, core.Content{Parts: parts})
}

// NewToolResultMessage records the outcome of one tool call.
func NewToolResultMessage(speaker string, resp core.FunctionResponse) Message {
	return NewMessage(RoleTool, speaker, core.Content{Parts: []core.Part{core.FunctionResponsePart{FunctionResponse: resp}}})
}

// Text returns the concatenated text parts.
func (m Message) Text() string { return m.Content.Text() }

func contentLength(c core.Content) int {
	n := 0
	for _, p := range c.Parts {
		switch part := p.(type) {
		case core.TextPart:
			n += utf8.RuneCountInString(part.Text)
		case core.FunctionCallPart:
			n += utf8.RuneCountInString(part.FunctionCall.Name) + utf8.RuneCountInString(part.FunctionCall.Arguments)
		case core.FunctionResponsePart:
			n += utf8.RuneCountInString(part.FunctionResponse.Name) + utf8.RuneCountInString(part.FunctionResponse.Error)
			if part.FunctionResponse.Response != nil {
				n += utf8.RuneCountInString(fmt.Sprint(part.FunctionResponse.Response))
			}
		case core.DataPart:
			n += utf8.RuneCountInString(fmt.Sprint(part.Data))
		}
	}
	return n
}
