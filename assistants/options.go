package assistants

import (
	"context"
	"maps"

	"github.com/effective-security/mathagent/chatmodel"
	"github.com/effective-security/mathagent/encoding"
	"github.com/effective-security/mathagent/pkg/llms"
	"github.com/effective-security/mathagent/pkg/llmutils"
	"github.com/effective-security/mathagent/pkg/schema"
	"github.com/effective-security/mathagent/store"
)

// Option is a function that can be used to modify the behavior of the Assistant Config.
type Option func(*Config)

// Config of the Assistant,
// the LLM call parameters are sent only when they are set.
type Config struct {
	// Model is the model to use in an LLM call.
	Model string
	// MaxTokens is the maximum number of tokens to generate to use in an LLM call.
	MaxTokens int
	// Temperature is the temperature for sampling to use in an LLM call, between 0 and 1.
	Temperature *float64
	// StopWords is a list of words to stop on to use in an LLM call.
	StopWords []string
	// TopK is the number of tokens to consider for top-k sampling in an LLM call.
	TopK int
	// TopP is the cumulative probability for top-p sampling in an LLM call.
	TopP float64
	// Seed is a seed for deterministic sampling in an LLM call.
	Seed int
	// Tools is a list of extra tools definitions to send in an LLM call.
	Tools []llms.Tool
	// ToolChoice is the choice of tool to use: "none", "auto", "required" or a specific tool.
	ToolChoice any
	// ResponseFormat is the structured output format of the final answer.
	ResponseFormat *schema.ResponseFormat
	// StreamingFunc is a function to be called for each chunk of a streaming response.
	StreamingFunc func(ctx context.Context, chunk []byte) error

	// CallbackHandler receives the run events.
	CallbackHandler Callback

	// MaxMessages is the limit of messages sent in an LLM call.
	MaxMessages int
	// MaxLength is the limit in bytes of the content sent in an LLM call.
	MaxLength int
	// MaxToolCalls is the limit of tool calls in a run.
	MaxToolCalls int

	// Store keeps the chat history, nil disables the history.
	Store store.MessageStore
	// SkipMessageHistory does not add the run messages to the Store.
	SkipMessageHistory bool
	// SkipToolHistory does not add tool calls and responses to the Store.
	SkipToolHistory bool

	PromptInput map[string]any
	Examples    chatmodel.FewShotExamples
	Mode        encoding.Mode
}

// NewConfig returns the config with the options applied.
func NewConfig(opts ...Option) *Config {
	cfg := &Config{
		Mode: encoding.ModeDefault,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Apply returns a copy of the config with the options applied.
func (c *Config) Apply(opts ...Option) *Config {
	cp := *c
	cp.PromptInput = maps.Clone(c.PromptInput)
	cp.StopWords = append([]string(nil), c.StopWords...)
	cp.Tools = append([]llms.Tool(nil), c.Tools...)
	for _, opt := range opts {
		opt(&cp)
	}
	return &cp
}

// GetCallOptions returns the LLM call options.
func (c *Config) GetCallOptions(extra ...llms.CallOption) []llms.CallOption {
	var opts []llms.CallOption
	if c.Model != "" {
		opts = append(opts, llms.WithModel(c.Model))
	}
	if c.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(c.MaxTokens))
	}
	if c.Temperature != nil {
		opts = append(opts, llms.WithTemperature(*c.Temperature))
	}
	if len(c.StopWords) > 0 {
		opts = append(opts, llms.WithStopWords(c.StopWords))
	}
	if c.TopK > 0 {
		opts = append(opts, llms.WithTopK(c.TopK))
	}
	if c.TopP > 0 {
		opts = append(opts, llms.WithTopP(c.TopP))
	}
	if c.Seed != 0 {
		opts = append(opts, llms.WithSeed(c.Seed))
	}
	if len(c.Tools) > 0 {
		opts = append(opts, llms.WithTools(c.Tools))
	}
	if c.ToolChoice != nil {
		opts = append(opts, llms.WithToolChoice(c.ToolChoice))
	}
	if c.ResponseFormat != nil {
		opts = append(opts, llms.WithResponseFormat(c.ResponseFormat))
	}
	if c.StreamingFunc != nil {
		opts = append(opts, llms.WithStreamingFunc(c.StreamingFunc))
	}
	return append(opts, extra...)
}

// WithMode is an option that allows to specify the encoding mode of the output.
func WithMode(mode encoding.Mode) Option {
	return func(o *Config) {
		o.Mode = mode
	}
}

// WithExamples is an option that allows to specify the few-shot examples for the system prompt.
func WithExamples(examples chatmodel.FewShotExamples) Option {
	return func(o *Config) {
		o.Examples = examples
	}
}

// WithStore sets the message history store.
func WithStore(s store.MessageStore) Option {
	return func(o *Config) {
		o.Store = s
	}
}

// WithSkipMessageHistory is an option that allows to skip adding Assistant messages to History.
func WithSkipMessageHistory(skip bool) Option {
	return func(o *Config) {
		o.SkipMessageHistory = skip
	}
}

// WithSkipToolHistory is an option that allows to skip adding tool calls to History.
func WithSkipToolHistory(skip bool) Option {
	return func(o *Config) {
		o.SkipToolHistory = skip
	}
}

// WithPromptInput is an option that allows the user to specify the system prompt input.
// The values are merged into the input set by previous options.
func WithPromptInput(input map[string]any) Option {
	return func(o *Config) {
		o.PromptInput = llmutils.MergeInputs(o.PromptInput, input)
	}
}

// WithMaxMessages sets the limit of messages sent in an LLM call.
func WithMaxMessages(limit int) Option {
	return func(o *Config) {
		o.MaxMessages = limit
	}
}

// WithMaxLength sets the limit in bytes of the content sent in an LLM call.
func WithMaxLength(limit int) Option {
	return func(o *Config) {
		o.MaxLength = limit
	}
}

// WithMaxToolCalls sets the limit of tool calls in a run.
func WithMaxToolCalls(limit int) Option {
	return func(o *Config) {
		o.MaxToolCalls = limit
	}
}

// WithModel is an option for LLM.Call.
func WithModel(model string) Option {
	return func(o *Config) {
		o.Model = model
	}
}

// WithMaxTokens is an option for LLM.Call.
func WithMaxTokens(maxTokens int) Option {
	return func(o *Config) {
		o.MaxTokens = maxTokens
	}
}

// WithTemperature is an option for LLM.Call.
func WithTemperature(temperature float64) Option {
	return func(o *Config) {
		o.Temperature = &temperature
	}
}

// WithStreamingFunc is an option for LLM.Call that allows streaming responses.
func WithStreamingFunc(streamingFunc func(ctx context.Context, chunk []byte) error) Option {
	return func(o *Config) {
		o.StreamingFunc = streamingFunc
	}
}

// WithTopK will add an option to use top-k sampling for LLM.Call.
func WithTopK(topK int) Option {
	return func(o *Config) {
		o.TopK = topK
	}
}

// WithTopP will add an option to use top-p sampling for LLM.Call.
func WithTopP(topP float64) Option {
	return func(o *Config) {
		o.TopP = topP
	}
}

// WithSeed will add an option to use deterministic sampling for LLM.Call.
func WithSeed(seed int) Option {
	return func(o *Config) {
		o.Seed = seed
	}
}

// WithStopWords is an option for setting the stop words for LLM.Call.
func WithStopWords(stopWords []string) Option {
	return func(o *Config) {
		o.StopWords = stopWords
	}
}

// WithCallback allows setting a custom Callback Handler.
func WithCallback(callbackHandler Callback) Option {
	return func(o *Config) {
		o.CallbackHandler = callbackHandler
	}
}

// WithTool adds a tool definition for LLM.Call,
// the Assistant tools are sent without it.
func WithTool(tool llms.Tool) Option {
	return func(o *Config) {
		o.Tools = append(o.Tools, tool)
	}
}

// WithToolChoice is an option for LLM.Call.
func WithToolChoice(choice any) Option {
	return func(o *Config) {
		o.ToolChoice = choice
	}
}

// WithResponseFormat sets the structured output format.
func WithResponseFormat(rf *schema.ResponseFormat) Option {
	return func(o *Config) {
		o.ResponseFormat = rf
	}
}
