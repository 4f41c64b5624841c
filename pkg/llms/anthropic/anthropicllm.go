// Package anthropic implements llms.Model on the Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/mathagent/pkg/llms"
	"github.com/effective-security/x/values"
)

var (
	ErrMissingToken           = errors.New("anthropic: missing API key, set it in the ANTHROPIC_API_KEY environment variable")
	ErrInvalidContentType     = errors.New("anthropic: invalid content type")
	ErrUnsupportedMessageType = errors.New("anthropic: unsupported message type")
	ErrUnsupportedContentType = errors.New("anthropic: unsupported content type")
)

const (
	// DefaultBaseURL is the endpoint of the Anthropic API.
	DefaultBaseURL = "https://api.anthropic.com"
	// DefaultMaxTokens is sent when the call has no max tokens, the API requires it.
	DefaultMaxTokens = 4096

	requestTimeout = 5 * time.Minute
)

// LLM is an Anthropic model.
type LLM struct {
	Client  *anthropic.Client
	Options *Options
}

var _ llms.Model = (*LLM)(nil)

// New returns the model, the token defaults to ANTHROPIC_API_KEY.
func New(opts ...Option) (*LLM, error) {
	options := &Options{
		Token:      os.Getenv(TokenEnvVarName),
		BaseURL:    DefaultBaseURL,
		HttpClient: http.DefaultClient,
		MaxRetries: 2,
	}
	for _, opt := range opts {
		opt(options)
	}

	if options.Token == "" {
		return nil, ErrMissingToken
	}
	if options.Model == "" {
		return nil, errors.New("anthropic: model is required")
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(options.Token),
		option.WithMaxRetries(options.MaxRetries),
		option.WithRequestTimeout(requestTimeout),
		option.WithBaseURL(values.StringsCoalesce(options.BaseURL, DefaultBaseURL)),
	}
	if options.HttpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(options.HttpClient))
	}
	if options.AnthropicBetaHeader != "" {
		reqOpts = append(reqOpts, option.WithHeader("anthropic-beta", options.AnthropicBetaHeader))
	}

	client := anthropic.NewClient(reqOpts...)
	return &LLM{
		Client:  &client,
		Options: options,
	}, nil
}

// GetName returns the model name.
func (o *LLM) GetName() string {
	return o.Options.Model
}

// GetProviderType returns ProviderAnthropic.
func (o *LLM) GetProviderType() llms.ProviderType {
	return llms.ProviderAnthropic
}

// GenerateContent sends the messages, the system messages become the system prompt.
func (o *LLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{
		Model:       o.Options.Model,
		Temperature: o.Options.Temperature,
	}
	for _, opt := range options {
		opt(&opts)
	}

	params, err := newMessageParams(messages, &opts)
	if err != nil {
		return nil, err
	}

	if opts.StreamingFunc != nil {
		return o.stream(ctx, params, opts.StreamingFunc)
	}

	msg, err := o.Client.Messages.New(ctx, params)
	if err != nil {
		return nil, errors.Wrap(err, "anthropic: failed to create message")
	}
	choice, err := toChoice(msg)
	if err != nil {
		return nil, err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{choice}}, nil
}

func newMessageParams(messages []llms.Message, opts *llms.CallOptions) (anthropic.MessageNewParams, error) {
	chat, system, err := ProcessMessages(messages)
	if err != nil {
		return anthropic.MessageNewParams{}, errors.WithMessage(err, "anthropic: failed to process messages")
	}

	params := anthropic.MessageNewParams{
		Model:         anthropic.Model(opts.Model),
		Messages:      chat,
		MaxTokens:     values.NumbersCoalesce(int64(opts.MaxTokens), DefaultMaxTokens),
		StopSequences: opts.StopWords,
		Tools:         ToTools(opts.Tools),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if opts.Temperature != nil {
		params.Temperature = anthropic.Float(*opts.Temperature)
	}
	if opts.TopP > 0 {
		params.TopP = anthropic.Float(opts.TopP)
	}
	return params, nil
}

func toChoice(msg *anthropic.Message) (*llms.ContentChoice, error) {
	choice := &llms.ContentChoice{
		StopReason:     string(msg.StopReason),
		GenerationInfo: usageInfo(msg.Usage.InputTokens, msg.Usage.OutputTokens),
	}
	choice.GenerationInfo["ID"] = msg.ID

	var texts []string
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			texts = append(texts, b.Text)
		case anthropic.ThinkingBlock:
			choice.ReasoningContent += b.Thinking
		case anthropic.ToolUseBlock:
			args, err := json.Marshal(b.Input)
			if err != nil {
				return nil, errors.Wrap(err, "anthropic: failed to marshal tool use arguments")
			}
			choice.ToolCalls = append(choice.ToolCalls, newToolCall(b.ID, b.Name, string(args)))
		default:
			return nil, errors.WithMessagef(ErrUnsupportedContentType, "%T", b)
		}
	}
	choice.Content = strings.Join(texts, "\n")
	return choice, nil
}

// stream calls fn with the text deltas and returns the assembled response.
func (o *LLM) stream(ctx context.Context, params anthropic.MessageNewParams, fn func(context.Context, []byte) error) (*llms.ContentResponse, error) {
	stream := o.Client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	var (
		text      strings.Builder
		calls     []llms.ToolCall
		pending   *llms.ToolCall
		stop      string
		in, out   int64
		streamErr error
	)

	for streamErr == nil && stream.Next() {
		switch evt := stream.Current().AsAny().(type) {
		case anthropic.MessageStartEvent:
			in = evt.Message.Usage.InputTokens
		case anthropic.ContentBlockStartEvent:
			if b, ok := evt.ContentBlock.AsAny().(anthropic.ToolUseBlock); ok {
				tc := newToolCall(b.ID, b.Name, "")
				pending = &tc
			}
		case anthropic.ContentBlockDeltaEvent:
			switch d := evt.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				text.WriteString(d.Text)
				if err := fn(ctx, []byte(d.Text)); err != nil {
					streamErr = errors.Wrap(err, "anthropic: streaming function error")
				}
			case anthropic.InputJSONDelta:
				if pending != nil {
					pending.FunctionCall.Arguments += d.PartialJSON
				}
			}
		case anthropic.ContentBlockStopEvent:
			if pending != nil {
				calls = append(calls, *pending)
				pending = nil
			}
		case anthropic.MessageDeltaEvent:
			stop = string(evt.Delta.StopReason)
			out = evt.Usage.OutputTokens
		}
	}
	if streamErr != nil {
		return nil, streamErr
	}
	if err := stream.Err(); err != nil {
		return nil, errors.Wrap(err, "anthropic: streaming error")
	}

	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{
			Content:        text.String(),
			ToolCalls:      calls,
			StopReason:     stop,
			GenerationInfo: usageInfo(in, out),
		}},
	}, nil
}

func newToolCall(id, name, args string) llms.ToolCall {
	return llms.ToolCall{
		ID:           id,
		Type:         "function",
		FunctionCall: &llms.FunctionCall{Name: name, Arguments: args},
	}
}

func usageInfo(in, out int64) map[string]any {
	return map[string]any{
		"InputTokens":  in,
		"OutputTokens": out,
		"TotalTokens":  in + out,
	}
}
