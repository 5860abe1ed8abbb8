package anthropic

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/model"
)

func readFileTraffic(id string) []core.Content {
	return []core.Content{
		{Role: "assistant", Parts: []core.Part{core.FunctionCallPart{FunctionCall: core.FunctionCall{
			ID: id, Name: "read_file", Arguments: `{"path":"notes.md"}`,
		}}}},
		{Role: "tool", Parts: []core.Part{core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{
			ID: id, Name: "read_file", Response: map[string]any{"content": "hi"},
		}}}},
	}
}

var readFileTool = model.ToolDefinition{Type: "function", Function: model.FunctionDefinition{
	Name:        "read_file",
	Description: "Read a file",
	Parameters:  map[string]any{"type": "object", "properties": map[string]any{}, "required": []any{"path"}},
}}

func TestBuildParams_InstructionsAndToolResults(t *testing.T) {
	m := NewModel(func(o *Options) { o.APIKey = "test" })

	contents := append([]core.Content{core.NewTextContent("user", "what is in notes?")}, readFileTraffic("call-1")...)
	params := m.buildParams(model.Request{
		Instructions: "be brief",
		Contents:     append(contents, core.NewTextContent("system", "answer in English")),
		Tools:        []model.ToolDefinition{readFileTool},
	})

	require.Len(t, params.System, 2)
	assert.Equal(t, "be brief", params.System[0].Text)
	assert.Equal(t, "answer in English", params.System[1].Text)

	require.Len(t, params.Messages, 3)
	assert.Equal(t, anthropic.MessageParamRoleUser, params.Messages[0].Role)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, params.Messages[1].Role)
	assert.Equal(t, anthropic.MessageParamRoleUser, params.Messages[2].Role)

	require.Len(t, params.Messages[2].Content, 1)
	result := params.Messages[2].Content[0].OfToolResult
	require.NotNil(t, result)
	assert.Equal(t, "call-1", result.ToolUseID)

	require.Len(t, params.Tools, 1)
	require.NotNil(t, params.Tools[0].OfTool)
	assert.Equal(t, "Read a file", params.Tools[0].OfTool.Description.Value)
	assert.Equal(t, []string{"path"}, params.Tools[0].OfTool.InputSchema.Required)
}

func TestToMessages_OmitsToolTrafficWithoutTools(t *testing.T) {
	contents := append([]core.Content{core.NewTextContent("user", "hi")}, readFileTraffic("call-1")...)
	contents = append(contents, core.NewTextContent("assistant", "done"))

	msgs := toMessages(contents, false)
	require.Len(t, msgs, 2)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[0].Role)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[1].Role)
}

func TestToMessages_DropsUnansweredCalls(t *testing.T) {
	msgs := toMessages(readFileTraffic("call-1")[:1], true)
	assert.Empty(t, msgs)
}

func TestDecodeArguments(t *testing.T) {
	assert.Equal(t, map[string]any{}, decodeArguments(""))
	assert.Equal(t, map[string]any{"a": 1.0}, decodeArguments(`{"a":1}`))
	assert.Equal(t, "not json", decodeArguments("not json"))
}

func TestInfo(t *testing.T) {
	m := NewModel(func(o *Options) { o.APIKey = "test"; o.Model = "claude-test" })
	assert.Equal(t, model.Info{Name: "claude-test", Provider: "anthropic", SupportsTools: true}, m.Info())
}
