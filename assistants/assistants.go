package assistants

import (
	"context"
	"fmt"
	"strings"

	"github.com/effective-security/mathagent/chatmodel"
	"github.com/effective-security/mathagent/pkg/llms"
	"github.com/effective-security/mathagent/tools"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mathagent", "assistants")

const (
	// DefaultMaxMessages is the limit of messages sent to the LLM in one call.
	DefaultMaxMessages = 50
	// DefaultMaxContentSize is the limit in bytes of the content sent to the LLM in one call.
	DefaultMaxContentSize = 512 * 1024
	// DefaultMaxToolCalls is the limit of tool calls in one run.
	DefaultMaxToolCalls = 10
	// DefaultMaxRetries is the number of calls made when the LLM returns no choices.
	DefaultMaxRetries = 3

	maxConsecutiveNotFound = 3
)

// IAssistant is an assistant without a typed output.
type IAssistant interface {
	// Name returns the name of the Assistant.
	Name() string
	// Description returns the description of the Assistant, to be used in the prompt of other Assistants or LLMs.
	// Should not exceed LLM model limit.
	Description() string
	// FormatPrompt formats the system prompt with the values.
	FormatPrompt(values map[string]any) (llms.PromptValue, error)
	GetPromptInputVariables() []string

	Call(ctx context.Context, input *CallInput) (*llms.ContentResponse, error)
}

// TypeableAssistant is an assistant returning O.
type TypeableAssistant[O chatmodel.ContentProvider] interface {
	IAssistant
	// Run executes the assistant, the final answer is parsed into optionalOutputType when it is not nil.
	Run(ctx context.Context, input *CallInput, optionalOutputType *O) (*llms.ContentResponse, error)
}

// CallInput is the input of an Assistant run.
type CallInput struct {
	// Input is the user message.
	Input string
	// PromptInputs are the values of the system prompt variables.
	PromptInputs map[string]any
	// Messages are added after the user message.
	Messages []llms.Message
	// Options override the Assistant config for this run.
	Options []Option
}

// ProvidePromptInputsFunc returns extra system prompt values for the input.
type ProvidePromptInputsFunc func(ctx context.Context, input string) (map[string]any, error)

// Callback receives the events of Assistant runs.
type Callback interface {
	tools.Callback
	OnAssistantStart(ctx context.Context, agent IAssistant, input string)
	OnAssistantEnd(ctx context.Context, agent IAssistant, input string, resp *llms.ContentResponse, messages []llms.Message)
	OnAssistantError(ctx context.Context, agent IAssistant, input string, err error, messages []llms.Message)
	OnAssistantLLMCallStart(ctx context.Context, agent IAssistant, llm llms.Model, payload []llms.Message)
	OnAssistantLLMCallEnd(ctx context.Context, agent IAssistant, llm llms.Model, resp *llms.ContentResponse)
	OnAssistantLLMParseError(ctx context.Context, agent IAssistant, input string, response string, err error)
	OnToolNotFound(ctx context.Context, agent IAssistant, tool string)
}

// GetDescriptions returns a markdown list of the assistants names and descriptions.
func GetDescriptions(list ...IAssistant) string {
	var ts strings.Builder
	for _, item := range list {
		fmt.Fprintf(&ts, "- `%s`: %s\n", item.Name(), item.Description())
	}
	return ts.String()
}

// MapAssistants returns the assistants by name.
func MapAssistants(list ...IAssistant) map[string]IAssistant {
	if len(list) == 0 {
		return nil
	}
	m := make(map[string]IAssistant, len(list))
	for _, a := range list {
		m[a.Name()] = a
	}
	return m
}

// Run executes the assistant with the given input and prompt inputs.
func Run[O chatmodel.ContentProvider](
	ctx context.Context,
	assistant TypeableAssistant[O],
	input string,
	promptInputs map[string]any,
	optionalOutputType *O,
	options ...Option,
) (*llms.ContentResponse, error) {
	return assistant.Run(ctx, &CallInput{
		Input:        input,
		PromptInputs: promptInputs,
		Options:      options,
	}, optionalOutputType)
}

// Call executes an assistant without typed output.
func Call(
	ctx context.Context,
	assistant IAssistant,
	input string,
	promptInputs map[string]any,
	options ...Option,
) (*llms.ContentResponse, error) {
	return assistant.Call(ctx, &CallInput{
		Input:        input,
		PromptInputs: promptInputs,
		Options:      options,
	})
}
