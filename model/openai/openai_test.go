package openai

import (
	"testing"

	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/model"
)

func toolCall(id string) core.Content {
	return core.Content{Role: "assistant", Parts: []core.Part{core.FunctionCallPart{FunctionCall: core.FunctionCall{
		ID: id, Name: "recall", Arguments: `{"query":"x"}`,
	}}}}
}

func toolResult(id string) core.Content {
	return core.Content{Role: "tool", Parts: []core.Part{core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{
		ID: id, Name: "recall", Response: map[string]any{"results": []any{}},
	}}}}
}

func TestToMessages_InstructionsAndToolResponses(t *testing.T) {
	msgs := toMessages(model.Request{
		Instructions: "be brief",
		Contents: []core.Content{
			core.NewTextContent("user", "hi"),
			toolCall("c1"),
			toolResult("c1"),
			core.NewTextContent("assistant", "nothing found"),
		},
	})

	require.Len(t, msgs, 5)
	assert.NotNil(t, msgs[0].OfSystem)
	assert.NotNil(t, msgs[1].OfUser)
	require.NotNil(t, msgs[2].OfAssistant)
	assert.Len(t, msgs[2].OfAssistant.ToolCalls, 1)
	require.NotNil(t, msgs[3].OfTool)
	assert.Equal(t, "c1", msgs[3].OfTool.ToolCallID)
	assert.NotNil(t, msgs[4].OfAssistant)
}

func TestToMessages_DropsUnmatchedToolTraffic(t *testing.T) {
	msgs := toMessages(model.Request{
		Contents: []core.Content{
			toolResult("gone"), // its call fell out of the window
			core.NewTextContent("user", "continue"),
			toolCall("pending"), // its result fell out of the window
		},
	})

	require.Len(t, msgs, 1)
	assert.NotNil(t, msgs[0].OfUser)
}

func TestBuildParams(t *testing.T) {
	m := NewModel(func(o *Options) { o.APIKey = "test"; o.Model = "gpt-test" })

	params := m.buildParams(model.Request{Stream: true, Tools: []model.ToolDefinition{{
		Type:     "function",
		Function: model.FunctionDefinition{Name: "read_file", Description: "Read", Parameters: map[string]any{"type": "object"}},
	}}}, nil)

	require.Len(t, params.Tools, 1)
	assert.Equal(t, "read_file", params.Tools[0].Function.Name)
	assert.True(t, params.StreamOptions.IncludeUsage.Value)
	assert.Equal(t, "gpt-test", m.Info().Name)
	assert.Equal(t, "openai", m.Info().Provider)
}

func TestFinalResponse(t *testing.T) {
	resp := finalResponse(openai.ChatCompletion{
		ID: "cmpl-1",
		Choices: []openai.ChatCompletionChoice{{
			FinishReason: "tool_calls",
			Message: openai.ChatCompletionMessage{
				Content: "checking",
				ToolCalls: []openai.ChatCompletionMessageToolCall{{
					ID:       "c1",
					Function: openai.ChatCompletionMessageToolCallFunction{Name: "recall", Arguments: `{}`},
				}},
			},
		}},
		Usage: openai.CompletionUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	})

	assert.False(t, resp.Partial)
	assert.Equal(t, "checking", resp.Content.Text())
	assert.Equal(t, []core.FunctionCall{{ID: "c1", Name: "recall", Arguments: `{}`}}, resp.Content.FunctionCalls())
	assert.Equal(t, &model.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}, resp.Usage)
}
