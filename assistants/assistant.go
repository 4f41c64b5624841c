package assistants

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mathagent/chatmodel"
	"github.com/effective-security/mathagent/encoding"
	"github.com/effective-security/mathagent/pkg/llms"
	"github.com/effective-security/mathagent/pkg/llmutils"
	"github.com/effective-security/mathagent/pkg/metricskey"
	"github.com/effective-security/mathagent/pkg/prompts"
	"github.com/effective-security/mathagent/pkg/schema"
	"github.com/effective-security/mathagent/tools"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
)

// Assistant is a chat assistant: it sends the system prompt, the chat history and
// the user message to the LLM, runs the tools the LLM asks for,
// and parses the final answer into O.
type Assistant[O chatmodel.ContentProvider] struct {
	LLM          llms.Model
	OutputParser chatmodel.OutputParser[O]

	toolsByName map[string]tools.ITool
	toolsNames  []string
	tools       []tools.ITool
	llmToolDefs []llms.Tool

	cfg         *Config
	name        string
	description string
	sysprompt   prompts.FormatPrompter
	onPrompt    ProvidePromptInputsFunc
	inputParser func(string) (string, error)

	lock        sync.Mutex
	runMessages []llms.Message
}

var _ TypeableAssistant[chatmodel.OutputResult] = (*Assistant[chatmodel.OutputResult])(nil)

// NewAssistant returns an Assistant with the system prompt.
//
// When the provider supports JSON schema response formats and the mode is json_schema,
// the schema of O is sent as the response format, otherwise it is added to the system prompt.
func NewAssistant[O chatmodel.ContentProvider](
	llmModel llms.Model,
	sysprompt prompts.FormatPrompter,
	options ...Option) *Assistant[O] {
	ret := &Assistant[O]{
		cfg:         NewConfig(options...),
		LLM:         llmModel,
		sysprompt:   sysprompt,
		name:        "Generic Assistant",
		description: "An AI assistant that can perform various tasks.",
	}

	var output O
	parser, err := encoding.NewTypedOutputParser(output, ret.cfg.Mode)
	if err != nil {
		logger.KV(xlog.ERROR,
			"status", "failed_to_create_output_parser",
			"mode", ret.cfg.Mode,
			"err", err.Error(),
		)
	} else {
		ret.OutputParser = parser.WithValidation(true)
	}

	if ret.cfg.ResponseFormat == nil {
		prov := llmModel.GetProviderType()
		strict := ret.cfg.Mode == encoding.ModeJSONSchemaStrict && prov.Supports(llms.CapabilityJSONSchemaStrict)
		jsonSchema := (ret.cfg.Mode == encoding.ModeJSONSchema || ret.cfg.Mode == encoding.ModeJSONSchemaStrict) &&
			prov.Supports(llms.CapabilityJSONSchema)
		if jsonSchema {
			rf, err := schema.NewResponseFormat(reflect.TypeOf(output), strict)
			if err != nil {
				logger.KV(xlog.ERROR,
					"status", "failed_to_create_response_format",
					"err", err.Error(),
				)
			}
			ret.cfg.ResponseFormat = rf
		}
	}

	return ret
}

// WithOutputParser sets the output parser.
func (a *Assistant[O]) WithOutputParser(outputParser chatmodel.OutputParser[O]) *Assistant[O] {
	a.OutputParser = outputParser
	return a
}

// WithInputParser sets the parser of the user input.
func (a *Assistant[O]) WithInputParser(inputParser func(string) (string, error)) *Assistant[O] {
	a.inputParser = inputParser
	return a
}

// WithName sets the name of the Assistant, when used in a prompt of another Assistants or LLMs.
func (a *Assistant[O]) WithName(name string) *Assistant[O] {
	a.name = name
	return a
}

// WithDescription sets the description of the Assistant, to be used in the prompt of other Assistants or LLMs.
func (a *Assistant[O]) WithDescription(description string) *Assistant[O] {
	a.description = description
	return a
}

// WithPromptInputProvider sets the provider of extra system prompt values.
func (a *Assistant[O]) WithPromptInputProvider(cb ProvidePromptInputsFunc) *Assistant[O] {
	a.onPrompt = cb
	return a
}

// WithTools adds new tools to the Assistant,
// existing tools are not replaced.
func (a *Assistant[O]) WithTools(list ...tools.ITool) *Assistant[O] {
	if a.toolsByName == nil {
		a.toolsByName = make(map[string]tools.ITool)
	}
	for _, tool := range list {
		name := tool.Name()
		// use lowercase for the key
		key := strings.ToLower(name)
		if a.toolsByName[key] != nil {
			continue
		}
		a.toolsByName[key] = tool
		a.toolsNames = append(a.toolsNames, name)
		a.tools = append(a.tools, tool)
		a.llmToolDefs = append(a.llmToolDefs, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        name,
				Description: tool.Description(),
				Parameters:  tool.Parameters(),
			},
		})
	}
	return a
}

// Name returns the name of the Assistant.
func (a *Assistant[O]) Name() string {
	return a.name
}

// Description returns the description of the Assistant, to be used in the prompt of other Assistants or LLMs.
func (a *Assistant[O]) Description() string {
	return a.description
}

// GetTools returns the tools of the Assistant.
func (a *Assistant[O]) GetTools() []tools.ITool {
	return a.tools
}

// GetCallback returns the callback handler.
func (a *Assistant[O]) GetCallback() Callback {
	return a.cfg.CallbackHandler
}

// GetCallConfig returns the config for a call with the options.
func (a *Assistant[O]) GetCallConfig(opts ...Option) *Config {
	return a.cfg.Apply(opts...)
}

// LastRunMessages returns the messages of the last run to be added to the history.
func (a *Assistant[O]) LastRunMessages() []llms.Message {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.runMessages
}

// FormatPrompt formats the system prompt, the values override the configured prompt input.
func (a *Assistant[O]) FormatPrompt(promptInputs map[string]any) (llms.PromptValue, error) {
	return a.sysprompt.FormatPrompt(llmutils.MergeInputs(a.cfg.PromptInput, promptInputs))
}

// GetPromptInputVariables returns the variables of the system prompt.
func (a *Assistant[O]) GetPromptInputVariables() []string {
	return a.sysprompt.GetInputVariables()
}

// GetSystemPrompt generates the system prompt for the Assistant.
func (a *Assistant[O]) GetSystemPrompt(ctx context.Context, input string, promptInputs map[string]any) (string, error) {
	if a.onPrompt != nil {
		extra, err := a.onPrompt(ctx, input)
		if err != nil {
			return "", errors.WithMessage(err, "failed to get prompt inputs")
		}
		if len(extra) > 0 {
			promptInputs = llmutils.MergeInputs(promptInputs, extra)
		}
	}

	promptValue, err := a.FormatPrompt(promptInputs)
	if err != nil {
		return "", err
	}

	systemPrompt := strings.TrimRight(promptValue.String(), "\n")

	// without json_schema support the schema goes to the prompt
	if a.cfg.ResponseFormat == nil && a.OutputParser != nil {
		outputSchema := strings.TrimSpace(a.OutputParser.GetFormatInstructions())
		if outputSchema != "" {
			systemPrompt = fmt.Sprintf("%s\n\n# OUTPUT SCHEMA\n%s", systemPrompt, outputSchema)
		}
	}
	return systemPrompt, nil
}

// Call executes the Assistant and parses the final answer into O.
func (a *Assistant[O]) Call(ctx context.Context, input *CallInput) (*llms.ContentResponse, error) {
	var output O
	return a.Run(ctx, input, &output)
}

// Run executes the Assistant, the final answer is parsed into optionalOutputType when it is not nil.
// If ctx has no chatmodel.ChatContext, a new chat is started.
func (a *Assistant[O]) Run(ctx context.Context, input *CallInput, optionalOutputType *O) (*llms.ContentResponse, error) {
	started := time.Now()
	defer metricskey.PerfAssistantCall.MeasureSince(started, a.Name())

	if chatmodel.GetChatContext(ctx) == nil {
		ctx = chatmodel.WithChatContext(ctx, chatmodel.NewChatContext("", "", nil))
	}

	cfg := a.GetCallConfig(input.Options...)

	callback := cfg.CallbackHandler
	if callback != nil {
		callback.OnAssistantStart(ctx, a, input.Input)
	}

	resp, messages, runMessages, err := a.run(ctx, cfg, input, optionalOutputType)

	a.lock.Lock()
	a.runMessages = runMessages
	a.lock.Unlock()

	if err != nil {
		metricskey.StatsAssistantCallsFailed.IncrCounter(1, a.Name())
		if callback != nil {
			callback.OnAssistantError(ctx, a, input.Input, err, messages)
		}
		return nil, err
	}
	metricskey.StatsAssistantCallsSucceeded.IncrCounter(1, a.Name())
	if callback != nil {
		callback.OnAssistantEnd(ctx, a, input.Input, resp, messages)
	}
	return resp, nil
}

// run returns the response, the messages sent to the LLM and the messages of the run for the history.
func (a *Assistant[O]) run(ctx context.Context, cfg *Config, input *CallInput, optionalOutputType *O) (*llms.ContentResponse, []llms.Message, []llms.Message, error) {
	_, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil, nil, nil, errors.WithStack(chatmodel.ErrInvalidChatContext)
	}

	// per-run prompt input overrides the configured one, the call values override both
	promptInputs := llmutils.MergeInputs(cfg.PromptInput, input.PromptInputs)
	systemPrompt, err := a.GetSystemPrompt(ctx, input.Input, promptInputs)
	if err != nil {
		return nil, nil, nil, errors.WithMessage(err, "failed to format system prompt")
	}

	assistantName := a.Name()
	modelName := a.LLM.GetName()

	messageHistory := []llms.Message{
		llms.MessageFromTextParts(llms.RoleSystem, systemPrompt),
	}
	for _, example := range cfg.Examples {
		messageHistory = append(messageHistory,
			llms.MessageFromTextParts(llms.RoleHuman, example.Prompt),
			llms.MessageFromTextParts(llms.RoleAI, example.Completion),
		)
	}
	if cfg.Store != nil {
		prevMessages := cfg.Store.Messages(ctx)
		logger.ContextKV(ctx, xlog.DEBUG,
			"assistant", assistantName,
			"chat_id", chatID,
			"message_history", len(prevMessages))
		messageHistory = append(messageHistory, prevMessages...)
	}

	var runMessages []llms.Message

	parsedInput := input.Input
	if parsedInput != "" {
		if a.inputParser != nil {
			parsedInput, err = a.inputParser(parsedInput)
			if err != nil {
				return nil, messageHistory, nil, errors.WithMessage(err, "failed to parse input")
			}
		}
		userMessage := llms.MessageFromTextParts(llms.RoleHuman, parsedInput)
		runMessages = append(runMessages, userMessage)
		messageHistory = append(messageHistory, userMessage)
	}
	messageHistory = append(messageHistory, input.Messages...)

	var extraOptions []llms.CallOption
	if len(a.llmToolDefs) > 0 {
		prov := a.LLM.GetProviderType()
		if !prov.Supports(llms.CapabilityFunctionCalling) {
			return nil, messageHistory, nil, errors.Newf("assistant %s: the LLM does not support function calling", assistantName)
		}
		defs := append(append([]llms.Tool(nil), a.llmToolDefs...), cfg.Tools...)
		extraOptions = append(extraOptions, llms.WithTools(defs))
	}
	callOpts := cfg.GetCallOptions(extraOptions...)

	messagesLimit := values.NumbersCoalesce(cfg.MaxMessages, DefaultMaxMessages)
	bytesLimit := uint64(values.NumbersCoalesce(cfg.MaxLength, DefaultMaxContentSize))
	toolsLimit := values.NumbersCoalesce(cfg.MaxToolCalls, DefaultMaxToolCalls)

	var resp *llms.ContentResponse
	var totalToolExecuted int
	var retryCount int
	var consecutiveNotFound int
	for {
		if len(messageHistory) > messagesLimit {
			return nil, messageHistory, runMessages, errors.Newf("assistant %s: the messages count exceeded limit", assistantName)
		}
		bytesSent := llmutils.CountMessagesContentSize(messageHistory)
		if bytesSent > bytesLimit {
			return nil, messageHistory, runMessages, errors.Newf("assistant %s: the content size exceeded limit", assistantName)
		}

		if cfg.CallbackHandler != nil {
			cfg.CallbackHandler.OnAssistantLLMCallStart(ctx, a, a.LLM, messageHistory)
		}

		metricskey.StatsLLMMessagesSent.IncrCounter(float64(len(messageHistory)), assistantName, modelName)
		metricskey.StatsLLMBytesSent.IncrCounter(float64(bytesSent), assistantName, modelName)

		resp, err = a.LLM.GenerateContent(ctx, messageHistory, callOpts...)
		if err != nil {
			return nil, messageHistory, runMessages, errors.WithMessagef(err, "assistant %s: failed to generate content from LLM", assistantName)
		}

		if cfg.CallbackHandler != nil {
			cfg.CallbackHandler.OnAssistantLLMCallEnd(ctx, a, a.LLM, resp)
		}

		metricskey.StatsLLMBytesReceived.IncrCounter(float64(llmutils.CountResponseContentSize(resp)), assistantName, modelName)
		tokensIn, tokensOut, _ := llmutils.CountTokens(resp)
		metricskey.StatsLLMInputTokens.IncrCounter(float64(tokensIn), assistantName, modelName)
		metricskey.StatsLLMOutputTokens.IncrCounter(float64(tokensOut), assistantName, modelName)

		if len(resp.Choices) == 0 {
			retryCount++
			if retryCount >= DefaultMaxRetries {
				logger.ContextKV(ctx, xlog.ERROR,
					"assistant", assistantName,
					"status", "max_retries_exceeded",
					"input", slices.StringUpto(parsedInput, 64),
					"retry_count", retryCount,
				)
				return nil, messageHistory, runMessages, errors.Newf("assistant %s: LLM returned empty response after %d retries", assistantName, retryCount)
			}
			metricskey.StatsAssistantCallsRetried.IncrCounter(1, assistantName)
			logger.ContextKV(ctx, xlog.WARNING,
				"assistant", assistantName,
				"status", "retrying_empty_response",
				"retry_count", retryCount,
			)
			continue
		}

		toolCalls := collectToolCalls(resp)
		if len(toolCalls) == 0 {
			break
		}

		callMessage := llms.MessageFromToolCalls(llms.RoleAI, toolCalls...)
		messageHistory = append(messageHistory, callMessage)

		responses, notFound := a.executeToolCalls(ctx, cfg, toolCalls)
		messageHistory = append(messageHistory, responses...)
		if !cfg.SkipToolHistory {
			runMessages = append(runMessages, callMessage)
			runMessages = append(runMessages, responses...)
		}

		if notFound == len(toolCalls) {
			consecutiveNotFound += notFound
		} else {
			consecutiveNotFound = 0
		}
		if consecutiveNotFound > maxConsecutiveNotFound {
			return nil, messageHistory, runMessages, errors.Newf("assistant %s: the number of not found tools is exceeded", assistantName)
		}
		totalToolExecuted += len(toolCalls)
		if totalToolExecuted >= toolsLimit {
			return nil, messageHistory, runMessages, errors.Newf("assistant %s: the tool calls limit is exceeded", assistantName)
		}
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"assistant", assistantName,
		"status", "response_analysis",
		"choices_count", len(resp.Choices),
		"tool_calls", totalToolExecuted,
	)

	result := resp.Choices[0].Content
	if len(resp.Choices) > 1 {
		var combined strings.Builder
		for i, choice := range resp.Choices {
			if i > 0 {
				combined.WriteString("\n\n")
			}
			combined.WriteString(choice.Content)
		}
		result = combined.String()
	}

	if optionalOutputType != nil {
		if a.OutputParser == nil {
			return nil, messageHistory, runMessages, errors.Newf("assistant %s: output parser is not configured", assistantName)
		}
		finalOutput, err := a.OutputParser.Parse(result)
		if err != nil {
			metricskey.StatsAssistantLLMParseErrors.IncrCounter(1, assistantName)
			logger.ContextKV(ctx, xlog.DEBUG,
				"assistant", assistantName,
				"status", "failed_to_parse_llm_response",
				"output_parser", a.OutputParser.Type(),
				"result", slices.StringUpto(result, 256),
				"err", err.Error(),
			)
			if cfg.CallbackHandler != nil {
				cfg.CallbackHandler.OnAssistantLLMParseError(ctx, a, input.Input, result, err)
			}
			return nil, messageHistory, runMessages, errors.WithMessagef(err, "assistant %s: failed to parse the answer", assistantName)
		}
		*optionalOutputType = *finalOutput
	}

	aiMessage := llms.MessageFromTextParts(llms.RoleAI, result)
	messageHistory = append(messageHistory, aiMessage)
	runMessages = append(runMessages, aiMessage)

	if cfg.Store != nil && !cfg.SkipMessageHistory {
		if err := cfg.Store.Add(ctx, runMessages...); err != nil {
			logger.ContextKV(ctx, xlog.ERROR,
				"assistant", assistantName,
				"chat_id", chatID,
				"status", "failed_to_add_message_history",
				"err", err.Error(),
			)
		} else {
			logger.ContextKV(ctx, xlog.DEBUG,
				"assistant", assistantName,
				"chat_id", chatID,
				"status", "added_message_history",
				"message_history", len(runMessages),
				"human", slices.StringUpto(parsedInput, 64),
				"ai", slices.StringUpto(result, 64),
			)
		}
	}

	return resp, messageHistory, runMessages, nil
}

// collectToolCalls returns the tool calls of all choices, with IDs.
func collectToolCalls(resp *llms.ContentResponse) []llms.ToolCall {
	var toolCalls []llms.ToolCall
	for _, choice := range resp.Choices {
		for _, toolCall := range choice.ToolCalls {
			if toolCall.FunctionCall == nil {
				continue
			}
			if toolCall.ID == "" {
				toolCall.ID = fmt.Sprintf("%s_%d", toolCall.FunctionCall.Name, len(toolCalls))
			}
			toolCall.Type = values.StringsCoalesce(toolCall.Type, "function")
			toolCalls = append(toolCalls, toolCall)
		}
	}
	return toolCalls
}

// executeToolCalls runs the tool calls concurrently and returns the tool responses
// in the order of the calls, and the number of calls to unknown tools.
// Tool errors are returned to the LLM as the tool response.
func (a *Assistant[O]) executeToolCalls(ctx context.Context, cfg *Config, toolCalls []llms.ToolCall) ([]llms.Message, int) {
	type toolCallResult struct {
		response string
		notFound bool
	}

	results := make([]toolCallResult, len(toolCalls))

	var wg sync.WaitGroup
	for i, tc := range toolCalls {
		wg.Add(1)
		go func(index int, tc llms.ToolCall) {
			defer wg.Done()
			res, notFound := a.callTool(ctx, cfg, tc)
			results[index] = toolCallResult{response: res, notFound: notFound}
		}(i, tc)
	}
	wg.Wait()

	notFound := 0
	messages := make([]llms.Message, 0, len(toolCalls))
	for i, result := range results {
		tc := toolCalls[i]
		if result.notFound {
			notFound++
		}

		logger.ContextKV(ctx, xlog.DEBUG,
			"assistant", a.name,
			"status", "tool_call_response",
			"tool_call_id", tc.ID,
			"tool_name", tc.FunctionCall.Name,
			"content_length", len(result.response),
		)

		messages = append(messages, llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{
			ToolCallID: tc.ID,
			Name:       tc.FunctionCall.Name,
			Content:    result.response,
		}))
	}
	return messages, notFound
}

// callTool returns the tool response, or the failure text for the LLM.
func (a *Assistant[O]) callTool(ctx context.Context, cfg *Config, tc llms.ToolCall) (string, bool) {
	toolName := tc.FunctionCall.Name
	toolArgs := tc.FunctionCall.Arguments

	tool := a.toolsByName[strings.ToLower(toolName)]
	if tool == nil {
		metricskey.StatsToolCallsNotFound.IncrCounter(1, toolName)
		if cfg.CallbackHandler != nil {
			cfg.CallbackHandler.OnToolNotFound(ctx, a, toolName)
		}

		availableTools := strings.Join(a.toolsNames, ", ")
		logger.ContextKV(ctx, xlog.WARNING,
			"assistant", a.name,
			"status", "tool_not_found",
			"tool_name", toolName,
			"available_tools", availableTools,
		)
		return fmt.Sprintf("Tool `%s` not found. Please check the tool name and try again with exact match. Available tools: %s", toolName, availableTools), true
	}

	if cfg.CallbackHandler != nil {
		cfg.CallbackHandler.OnToolStart(ctx, tool, a.name, toolArgs)
	}

	started := time.Now()
	res, err := tool.Call(ctx, toolArgs)
	metricskey.PerfToolCall.MeasureSince(started, toolName)

	if err != nil {
		metricskey.StatsToolCallsFailed.IncrCounter(1, toolName)
		if cfg.CallbackHandler != nil {
			cfg.CallbackHandler.OnToolError(ctx, tool, a.name, toolArgs, err)
		}
		logger.ContextKV(ctx, xlog.WARNING,
			"assistant", a.name,
			"status", "tool_call_failed",
			"tool", toolName,
			"err", err.Error(),
		)

		if errors.Is(err, chatmodel.ErrFailedUnmarshalInput) {
			return fmt.Sprintf("Tool call failed: %s\nThe input must match the JSON schema:\n%s",
				err.Error(), llmutils.BackticksJSON(llmutils.ToJSONIndent(tool.Parameters()))), false
		}
		return fmt.Sprintf("Tool call failed: %s", err.Error()), false
	}

	metricskey.StatsToolCallsSucceeded.IncrCounter(1, toolName)
	if cfg.CallbackHandler != nil {
		cfg.CallbackHandler.OnToolEnd(ctx, tool, a.name, toolArgs, res)
	}
	return res, false
}
