package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mathagent/pkg/llms"
	"github.com/effective-security/mathagent/pkg/schema"
	"github.com/effective-security/xlog"
	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mathagent/pkg/llms", "openai")

var (
	ErrMissingToken           = errors.New("openai: missing API key")
	ErrUnsupportedMessageType = errors.New("openai: unsupported message type")
	ErrUnsupportedContentType = errors.New("openai: unsupported content type")
)

// LLM is a client for the OpenAI chat completions API,
// and for OpenAI compatible endpoints such as Typhoon.
type LLM struct {
	client  openai.Client
	options *options
}

var _ llms.Model = (*LLM)(nil)

// New returns a new OpenAI LLM.
//
// Example usage:
//
//	llm, err := openai.New(
//	    openai.WithProvider(llms.ProviderTyphoon),
//	    openai.WithModel("typhoon-v2.1-12b-instruct"),
//	    openai.WithTemperature(0),
//	)
func New(opts ...Option) (*LLM, error) {
	o := newOptions(opts...)
	if o.token == "" {
		return nil, errors.WithMessagef(ErrMissingToken, "provider %s", o.provider)
	}

	sdkOpts := []option.RequestOption{
		option.WithAPIKey(o.token),
		// the SDK resolves relative paths against the base URL
		option.WithBaseURL(strings.TrimSuffix(o.baseURL, "/") + "/"),
		option.WithMaxRetries(o.maxRetries),
		option.WithRequestTimeout(5 * time.Minute),
	}
	if o.organization != "" {
		sdkOpts = append(sdkOpts, option.WithOrganization(o.organization))
	}
	if o.httpClient != nil {
		sdkOpts = append(sdkOpts, option.WithHTTPClient(o.httpClient))
	}

	return &LLM{
		client:  openai.NewClient(sdkOpts...),
		options: o,
	}, nil
}

// GetName implements the Model interface.
func (o *LLM) GetName() string {
	return o.options.model
}

// GetProviderType implements the Model interface.
func (o *LLM) GetProviderType() llms.ProviderType {
	return o.options.provider
}

// GenerateContent implements the Model interface.
func (o *LLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{
		Model:          o.options.model,
		Temperature:    o.options.temperature,
		ResponseFormat: o.options.responseFormat,
	}
	for _, opt := range options {
		opt(&opts)
	}

	params, err := o.newParams(messages, &opts)
	if err != nil {
		return nil, err
	}

	result, err := o.client.Chat.Completions.New(ctx, *params)
	if err != nil {
		logger.ContextKV(ctx, xlog.DEBUG,
			"status", "failed_chat_completion",
			"provider", o.options.provider,
			"model", opts.Model,
			"err", err.Error(),
		)
		return nil, errors.Wrap(err, "openai: failed to create chat completion")
	}
	if len(result.Choices) == 0 {
		// the caller decides to retry
		logger.ContextKV(ctx, xlog.DEBUG,
			"status", "empty_chat_completion",
			"provider", o.options.provider,
			"model", opts.Model,
		)
		return &llms.ContentResponse{}, nil
	}

	choices := make([]*llms.ContentChoice, len(result.Choices))
	for i, c := range result.Choices {
		choice := &llms.ContentChoice{
			Content:    c.Message.Content,
			StopReason: c.FinishReason,
		}
		// usage is reported once per response
		if i == 0 {
			choice.GenerationInfo = map[string]any{
				"InputTokens":  result.Usage.PromptTokens,
				"OutputTokens": result.Usage.CompletionTokens,
				"TotalTokens":  result.Usage.TotalTokens,
				"ID":           result.ID,
			}
		}
		for _, tc := range c.Message.ToolCalls {
			choice.ToolCalls = append(choice.ToolCalls, llms.ToolCall{
				ID:   tc.ID,
				Type: "function",
				FunctionCall: &llms.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		choices[i] = choice
	}
	return &llms.ContentResponse{Choices: choices}, nil
}

func (o *LLM) newParams(messages []llms.Message, opts *llms.CallOptions) (*openai.ChatCompletionNewParams, error) {
	msgs, err := ProcessMessages(messages)
	if err != nil {
		return nil, err
	}

	params := &openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(opts.Model),
		Messages: msgs,
	}
	if opts.Temperature != nil {
		params.Temperature = openai.Float(*opts.Temperature)
	}
	if opts.MaxTokens > 0 {
		if o.options.provider == llms.ProviderOpenAI {
			params.MaxCompletionTokens = openai.Int(int64(opts.MaxTokens))
		} else {
			params.MaxTokens = openai.Int(int64(opts.MaxTokens))
		}
	}
	if opts.TopP > 0 {
		params.TopP = openai.Float(opts.TopP)
	}
	if opts.CandidateCount > 1 {
		params.N = openai.Int(int64(opts.CandidateCount))
	}
	if len(opts.Metadata) > 0 {
		md := shared.Metadata{}
		for k, v := range opts.Metadata {
			md[k] = fmt.Sprint(v)
		}
		params.Metadata = md
	}
	if opts.Seed != 0 {
		params.Seed = openai.Int(int64(opts.Seed))
	}
	if len(opts.StopWords) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: opts.StopWords}
	}

	if len(opts.Tools) > 0 {
		tools, err := ToTools(opts.Tools)
		if err != nil {
			return nil, err
		}
		params.Tools = tools
	}

	switch choice := opts.ToolChoice.(type) {
	case nil:
	case string:
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String(choice)}
	case llms.FunctionCallBehavior:
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String(string(choice))}
	default:
		return nil, errors.Errorf("openai: unsupported tool choice: %T", opts.ToolChoice)
	}

	if rf := opts.ResponseFormat; rf != nil {
		switch rf.Type {
		case schema.ResponseFormatTypeJSONSchema:
			if rf.JSONSchema == nil {
				return nil, errors.New("openai: json_schema response format without schema")
			}
			params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
				OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
					JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
						Name:   rf.JSONSchema.Name,
						Strict: openai.Bool(rf.JSONSchema.Strict),
						Schema: rf.JSONSchema.Schema,
					},
				},
			}
		case schema.ResponseFormatTypeJSONObject:
			params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
				OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
			}
		}
	}
	return params, nil
}

// ProcessMessages converts messages to the chat completions format.
// Each tool response becomes a separate tool message.
func ProcessMessages(messages []llms.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	res := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		if len(msg.Parts) == 0 {
			continue
		}
		switch msg.Role {
		case llms.RoleSystem:
			res = append(res, openai.SystemMessage(msg.GetText()))
		case llms.RoleHuman, llms.RoleGeneric:
			m, err := humanMessage(msg)
			if err != nil {
				return nil, err
			}
			res = append(res, m)
		case llms.RoleAI:
			res = append(res, assistantMessage(msg))
		case llms.RoleTool:
			for _, part := range msg.Parts {
				tr, ok := part.(llms.ToolCallResponse)
				if !ok {
					return nil, errors.WithMessagef(ErrUnsupportedContentType, "tool message part %T", part)
				}
				res = append(res, openai.ToolMessage(tr.Content, tr.ToolCallID))
			}
		default:
			return nil, errors.WithMessagef(ErrUnsupportedMessageType, "role %q", msg.Role)
		}
	}
	return res, nil
}

func humanMessage(msg llms.Message) (openai.ChatCompletionMessageParamUnion, error) {
	multi := false
	for _, part := range msg.Parts {
		if _, ok := part.(llms.TextContent); !ok {
			multi = true
			break
		}
	}
	if !multi {
		return openai.UserMessage(msg.GetText()), nil
	}

	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(msg.Parts))
	for _, part := range msg.Parts {
		switch p := part.(type) {
		case llms.TextContent:
			parts = append(parts, openai.TextContentPart(p.Text))
		case llms.ImageURLContent:
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: p.URL,
			}))
		case llms.BinaryContent:
			if !strings.HasPrefix(p.MIMEType, "image/") {
				return openai.ChatCompletionMessageParamUnion{}, errors.WithMessagef(ErrUnsupportedContentType, "binary %s", p.MIMEType)
			}
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: p.String(),
			}))
		default:
			return openai.ChatCompletionMessageParamUnion{}, errors.WithMessagef(ErrUnsupportedContentType, "human message part %T", part)
		}
	}
	return openai.UserMessage(parts), nil
}

func assistantMessage(msg llms.Message) openai.ChatCompletionMessageParamUnion {
	am := openai.ChatCompletionAssistantMessageParam{}
	if text := msg.GetText(); text != "" {
		am.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
			OfString: openai.String(text),
		}
	}
	for _, tc := range msg.ToolCalls() {
		if tc.FunctionCall == nil {
			continue
		}
		am.ToolCalls = append(am.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
			OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
				ID: tc.ID,
				Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
					Name:      tc.FunctionCall.Name,
					Arguments: tc.FunctionCall.Arguments,
				},
			},
		})
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &am}
}

// ToTools converts tool definitions to chat completion function tools.
func ToTools(tools []llms.Tool) ([]openai.ChatCompletionToolUnionParam, error) {
	res := make([]openai.ChatCompletionToolUnionParam, 0, len(tools))
	for _, t := range tools {
		if t.Type != "function" || t.Function == nil {
			return nil, errors.Errorf("openai: tool type %q not supported", t.Type)
		}
		params, err := toParameters(t.Function.Parameters)
		if err != nil {
			return nil, errors.WithMessagef(err, "openai: tool %q", t.Function.Name)
		}
		def := openai.FunctionDefinitionParam{
			Name:        t.Function.Name,
			Description: openai.String(t.Function.Description),
			Parameters:  params,
		}
		if t.Function.Strict {
			def.Strict = openai.Bool(true)
		}
		res = append(res, openai.ChatCompletionFunctionTool(def))
	}
	return res, nil
}

func toParameters(s *jsonschema.Schema) (openai.FunctionParameters, error) {
	if s == nil {
		return openai.FunctionParameters{"type": "object", "properties": map[string]any{}}, nil
	}
	js, err := json.Marshal(s)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var params openai.FunctionParameters
	if err = json.Unmarshal(js, &params); err != nil {
		return nil, errors.WithStack(err)
	}
	return params, nil
}
