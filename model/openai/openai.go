// Package openai implements model.Model on the OpenAI Chat Completions API,
// streaming and non-streaming, with tool calling.
package openai

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/model"
)

const provider = "openai"

// Options configure the adapter.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	APIKey              string
	BaseURL             string
}

// Model is a model.Model backed by the Chat Completions API.
type Model struct {
	client *openai.Client
	opts   Options
}

// NewModel creates a model with its own client. Without an APIKey the client
// falls back to OPENAI_API_KEY.
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

	client := openai.NewClient(clientOpts...)

	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates a model on an existing client.
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
}

// Generate implements model.Model.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := m.buildParams(req, toMessages(req))

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
	return model.Info{Name: m.opts.Model, Provider: provider, SupportsTools: true}
}

// toMessages converts thread contents into chat messages. Window
// partitioning can separate a tool call from its result; unmatched calls and
// results are dropped since the API rejects them.
func toMessages(req model.Request) []openai.ChatCompletionMessageParamUnion {
	answered := map[string]bool{}
	for _, c := range req.Contents {
		for _, fr := range c.FunctionResponses() {
			answered[fr.ID] = true
		}
	}

	var msgs []openai.ChatCompletionMessageParamUnion
	if req.Instructions != "" {
		msgs = append(msgs, openai.SystemMessage(req.Instructions))
	}

	called := map[string]bool{}
	for _, c := range req.Contents {
		text := c.Text()

		switch c.Role {
		case "tool":
			for _, fr := range c.FunctionResponses() {
				if called[fr.ID] {
					msgs = append(msgs, openai.ToolMessage(model.ResponseText(fr), fr.ID))
				}
			}
		case "assistant":
			var calls []openai.ChatCompletionMessageToolCallParam
			for _, fc := range c.FunctionCalls() {
				if !answered[fc.ID] {
					continue
				}
				called[fc.ID] = true
				calls = append(calls, openai.ChatCompletionMessageToolCallParam{
					ID:   fc.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      fc.Name,
						Arguments: fc.Arguments,
					},
				})
			}

			if len(calls) == 0 {
				if text != "" {
					msgs = append(msgs, openai.AssistantMessage(text))
				}
				continue
			}

			am := openai.ChatCompletionAssistantMessageParam{Role: "assistant", ToolCalls: calls}
			if text != "" {
				am.Content.OfString = openai.String(text)
			}
			msgs = append(msgs, openai.ChatCompletionMessageParamUnion{OfAssistant: &am})
		case "system":
			msgs = append(msgs, openai.SystemMessage(text))
		default:
			if text != "" {
				msgs = append(msgs, openai.UserMessage(text))
			}
		}
	}

	return msgs
}

func (m *Model) buildParams(req model.Request, msgs []openai.ChatCompletionMessageParamUnion) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages:            msgs,
		Model:               m.opts.Model,
		Temperature:         openai.Float(m.opts.Temperature),
		MaxCompletionTokens: openai.Int(m.opts.MaxCompletionTokens),
	}

	if req.Stream {
		params.StreamOptions = openai.ChatCompletionStreamOptionsParam{IncludeUsage: openai.Bool(true)}
	}

	for _, td := range req.Tools {
		params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        td.Function.Name,
				Description: openai.String(td.Function.Description),
				Parameters:  td.Function.Parameters,
			},
		})
	}

	return params
}

// stream forwards text deltas as partial responses and emits the
// accumulated completion, including usage, once the stream ends.
func (m *Model) stream(ctx context.Context, params openai.ChatCompletionNewParams, out chan<- model.Response) error {
	stream := m.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		for _, ch := range chunk.Choices {
			if ch.Delta.Content == "" {
				continue
			}
			if !model.Send(ctx, out, model.Response{ID: chunk.ID, Partial: true, Content: core.NewTextContent("assistant", ch.Delta.Content)}) {
				return ctx.Err()
			}
		}
	}
	if err := stream.Err(); err != nil {
		return model.BackendError(provider, err)
	}

	return m.emit(ctx, acc.ChatCompletion, out)
}

func (m *Model) complete(ctx context.Context, params openai.ChatCompletionNewParams, out chan<- model.Response) error {
	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return model.BackendError(provider, err)
	}
	return m.emit(ctx, *resp, out)
}

func (m *Model) emit(ctx context.Context, cc openai.ChatCompletion, out chan<- model.Response) error {
	if len(cc.Choices) == 0 {
		return model.BackendError(provider, errors.New("no choices returned"))
	}

	if !model.Send(ctx, out, finalResponse(cc)) {
		return ctx.Err()
	}
	return nil
}

func finalResponse(cc openai.ChatCompletion) model.Response {
	choice := cc.Choices[0]

	parts := make([]core.Part, 0, len(choice.Message.ToolCalls)+1)
	if choice.Message.Content != "" {
		parts = append(parts, core.TextPart{Text: choice.Message.Content})
	}
	for _, tc := range choice.Message.ToolCalls {
		parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		}})
	}

	resp := model.Response{
		ID:           cc.ID,
		Content:      core.Content{Role: "assistant", Parts: parts},
		FinishReason: choice.FinishReason,
	}
	if cc.Usage.TotalTokens > 0 {
		resp.Usage = &model.TokenUsage{
			PromptTokens:     int(cc.Usage.PromptTokens),
			CompletionTokens: int(cc.Usage.CompletionTokens),
			TotalTokens:      int(cc.Usage.TotalTokens),
		}
	}

	return resp
}

var _ model.Model = (*Model)(nil)
