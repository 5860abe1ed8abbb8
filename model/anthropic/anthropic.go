// Package anthropic implements model.Model on the Anthropic Messages API,
// streaming and non-streaming, with tool use.
package anthropic

import (
	"context"
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/model"
)

const provider = "anthropic"

// Options configure the adapter.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
	BaseURL     string
}

// Model is a model.Model backed by the Messages API.
type Model struct {
	client *anthropic.Client
	opts   Options
}

// NewModel creates a model with its own client. Without an APIKey the client
// falls back to ANTHROPIC_API_KEY.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates a model on an existing client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// Generate implements model.Model.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := m.buildParams(req)

		var err error
		if req.Stream {
			err = m.stream(ctx, params, out)
		} else {
			err = m.complete(ctx, params, out)
		}
		if err != nil {
			errCh <- err
		}
	}()

	return out, errCh
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{Name: string(m.opts.Model), Provider: provider, SupportsTools: true}
}

func (m *Model) buildParams(req model.Request) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:       m.opts.Model,
		Messages:    toMessages(req.Contents, len(req.Tools) > 0),
		MaxTokens:   m.opts.MaxTokens,
		Temperature: anthropic.Float(m.opts.Temperature),
	}

	if req.Instructions != "" {
		params.System = append(params.System, anthropic.TextBlockParam{Text: req.Instructions})
	}
	for _, c := range req.Contents {
		if text := c.Text(); c.Role == "system" && text != "" {
			params.System = append(params.System, anthropic.TextBlockParam{Text: text})
		}
	}

	for _, td := range req.Tools {
		params.Tools = append(params.Tools, toTool(td))
	}

	return params
}

// toMessages converts thread contents into Messages API turns. Tool results
// travel in a user turn after the assistant's tool_use blocks. Calls and
// results whose counterpart fell out of the context window are dropped
// since the API rejects unmatched tool_use ids. Requests without tools may
// not carry tool blocks at all, so another agent's tool traffic is omitted.
func toMessages(contents []core.Content, withTools bool) []anthropic.MessageParam {
	results := map[string]core.FunctionResponse{}
	if withTools {
		for _, c := range contents {
			for _, fr := range c.FunctionResponses() {
				results[fr.ID] = fr
			}
		}
	}

	var msgs []anthropic.MessageParam
	for _, c := range contents {
		switch c.Role {
		case "system", "tool":
			continue
		case "assistant":
			var blocks, answers []anthropic.ContentBlockParamUnion
			if text := c.Text(); text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(text))
			}
			for _, fc := range c.FunctionCalls() {
				fr, ok := results[fc.ID]
				if !ok {
					continue
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(fc.ID, decodeArguments(fc.Arguments), fc.Name))
				answers = append(answers, anthropic.NewToolResultBlock(fc.ID, model.ResponseText(fr), fr.Error != ""))
			}
			if len(blocks) > 0 {
				msgs = append(msgs, anthropic.NewAssistantMessage(blocks...))
			}
			if len(answers) > 0 {
				msgs = append(msgs, anthropic.NewUserMessage(answers...))
			}
		default:
			if text := c.Text(); text != "" {
				msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(text)))
			}
		}
	}

	return msgs
}

// decodeArguments returns the call's JSON arguments as a value; malformed
// JSON is passed on as the raw string.
func decodeArguments(args string) any {
	if args == "" {
		return map[string]any{}
	}
	var v any
	if err := json.Unmarshal([]byte(args), &v); err != nil {
		return args
	}
	return v
}

func toTool(td model.ToolDefinition) anthropic.ToolUnionParam {
	schema := anthropic.ToolInputSchemaParam{Type: constant.Object("object")}
	if props, ok := td.Function.Parameters["properties"]; ok {
		schema.Properties = props
	}
	schema.Required = stringList(td.Function.Parameters["required"])

	tool := anthropic.ToolUnionParamOfTool(schema, td.Function.Name)
	if td.Function.Description != "" && tool.OfTool != nil {
		tool.OfTool.Description = anthropic.String(td.Function.Description)
	}
	return tool
}

func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// stream forwards text deltas as partial responses and accumulates the
// message, including tool_use blocks, for the final response.
func (m *Model) stream(ctx context.Context, params anthropic.MessageNewParams, out chan<- model.Response) error {
	stream := m.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	message := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return core.NewError(core.ErrCodeStreamAborted, "anthropic stream accumulate", err)
		}

		ev, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
			if !model.Send(ctx, out, model.Response{ID: message.ID, Partial: true, Content: core.NewTextContent("assistant", delta.Text)}) {
				return ctx.Err()
			}
		}
	}
	if err := stream.Err(); err != nil {
		return model.BackendError(provider, err)
	}

	if !model.Send(ctx, out, finalResponse(&message)) {
		return ctx.Err()
	}
	return nil
}

func (m *Model) complete(ctx context.Context, params anthropic.MessageNewParams, out chan<- model.Response) error {
	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return model.BackendError(provider, err)
	}
	if !model.Send(ctx, out, finalResponse(resp)) {
		return ctx.Err()
	}
	return nil
}

func finalResponse(msg *anthropic.Message) model.Response {
	var parts []core.Part
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			if text := block.AsText().Text; text != "" {
				parts = append(parts, core.TextPart{Text: text})
			}
		case "tool_use":
			tu := block.AsToolUse()
			args := "{}"
			if tu.Input != nil {
				if b, err := json.Marshal(tu.Input); err == nil && string(b) != "null" {
					args = string(b)
				}
			}
			parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: tu.ID, Name: tu.Name, Arguments: args}})
		}
	}

	finish := "stop"
	if msg.StopReason != "" {
		finish = string(msg.StopReason)
	}

	return model.Response{
		ID:           msg.ID,
		Content:      core.Content{Role: "assistant", Parts: parts},
		FinishReason: finish,
		Usage: &model.TokenUsage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}
}

var _ model.Model = (*Model)(nil)
