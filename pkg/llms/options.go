package llms

import (
	"context"

	"github.com/effective-security/mathagent/pkg/schema"
	"github.com/invopop/jsonschema"
)

// CallOption configures a GenerateContent call.
type CallOption func(*CallOptions)

// CallOptions are the options of a GenerateContent call,
// a provider ignores the options it has no equivalent for.
type CallOptions struct {
	Model          string
	CandidateCount int
	MaxTokens      int
	// Temperature is nil for the provider default.
	Temperature *float64
	StopWords   []string
	TopK        int
	TopP        float64
	Seed        int

	// StreamingFunc receives the chunks of the reply,
	// an error stops the stream.
	StreamingFunc func(ctx context.Context, chunk []byte) error

	Tools []Tool
	// ToolChoice is "none", "auto", "required" or a FunctionCallBehavior.
	ToolChoice any

	// Metadata is sent with the request where the provider supports it.
	Metadata map[string]any

	// ResponseFormat asks for JSON output, nil for text.
	ResponseFormat *schema.ResponseFormat
}

// Tool is a tool the model may call.
type Tool struct {
	Type     string              `json:"type"`
	Function *FunctionDefinition `json:"function,omitempty"`
}

// FunctionDefinition describes a function tool.
type FunctionDefinition struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
	// Strict enables OpenAI structured outputs for the arguments.
	Strict bool `json:"strict,omitempty"`
}

// FunctionCallBehavior is the tool choice of a call.
type FunctionCallBehavior string

const (
	FunctionCallBehaviorNone     FunctionCallBehavior = "none"
	FunctionCallBehaviorAuto     FunctionCallBehavior = "auto"
	FunctionCallBehaviorRequired FunctionCallBehavior = "required"
)

// NewCallOptions applies the options.
func NewCallOptions(options ...CallOption) *CallOptions {
	opts := &CallOptions{}
	for _, opt := range options {
		opt(opts)
	}
	return opts
}

func WithModel(model string) CallOption {
	return func(o *CallOptions) {
		o.Model = model
	}
}

func WithMaxTokens(maxTokens int) CallOption {
	return func(o *CallOptions) {
		o.MaxTokens = maxTokens
	}
}

// WithTemperature sets the temperature, 0 for deterministic output.
func WithTemperature(temperature float64) CallOption {
	return func(o *CallOptions) {
		o.Temperature = &temperature
	}
}

func WithStopWords(stopWords []string) CallOption {
	return func(o *CallOptions) {
		o.StopWords = stopWords
	}
}

func WithStreamingFunc(fn func(ctx context.Context, chunk []byte) error) CallOption {
	return func(o *CallOptions) {
		o.StreamingFunc = fn
	}
}

func WithTopK(topK int) CallOption {
	return func(o *CallOptions) {
		o.TopK = topK
	}
}

func WithTopP(topP float64) CallOption {
	return func(o *CallOptions) {
		o.TopP = topP
	}
}

func WithSeed(seed int) CallOption {
	return func(o *CallOptions) {
		o.Seed = seed
	}
}

func WithToolChoice(choice any) CallOption {
	return func(o *CallOptions) {
		o.ToolChoice = choice
	}
}

func WithTools(tools []Tool) CallOption {
	return func(o *CallOptions) {
		o.Tools = tools
	}
}

func WithMetadata(metadata map[string]any) CallOption {
	return func(o *CallOptions) {
		o.Metadata = metadata
	}
}

func WithResponseFormat(responseFormat *schema.ResponseFormat) CallOption {
	return func(o *CallOptions) {
		o.ResponseFormat = responseFormat
	}
}
