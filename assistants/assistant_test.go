package assistants_test

import (
	"context"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mathagent/assistants"
	"github.com/effective-security/mathagent/callbacks"
	"github.com/effective-security/mathagent/chatmodel"
	"github.com/effective-security/mathagent/mocks/mockllms"
	"github.com/effective-security/mathagent/pkg/llms"
	"github.com/effective-security/mathagent/pkg/prompts"
	"github.com/effective-security/mathagent/pkg/schema"
	"github.com/effective-security/mathagent/store"
	"github.com/effective-security/mathagent/tools"
	"github.com/effective-security/mathagent/tools/calculator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type mathAnswer struct {
	Answer string `json:"answer" validate:"required" jsonschema:"title=Answer,description=The final answer."`
	Reason string `json:"reason" jsonschema:"title=Reason,description=The reasoning steps."`
}

func (a mathAnswer) GetContent() string {
	return a.Answer
}

const testPrompt = "You are a math assistant. Use the Calculator tool for arithmetic.\nID: {id}"

func newModel(ctrl *gomock.Controller, provider llms.ProviderType) *mockllms.MockModel {
	m := mockllms.NewMockModel(ctrl)
	m.EXPECT().GetName().Return("test-model").AnyTimes()
	m.EXPECT().GetProviderType().Return(provider).AnyTimes()
	return m
}

func newCalculator(t *testing.T) tools.ITool {
	c, err := calculator.New(nil)
	require.NoError(t, err)
	return c
}

func newTestAssistant(t *testing.T, model llms.Model, opts ...assistants.Option) *assistants.Assistant[mathAnswer] {
	tmpl := prompts.NewPromptTemplate(testPrompt, []string{"id"})
	return assistants.NewAssistant[mathAnswer](model, tmpl, opts...).
		WithName("math_assistant").
		WithDescription("Solves math problems").
		WithTools(newCalculator(t))
}

func newChatContext() context.Context {
	return chatmodel.WithChatContext(context.Background(), chatmodel.NewChatContext("tenant1", "chat1", nil))
}

func textReply(content string) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: content}},
	}
}

func toolCallReply(name, args string) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{
			{
				ToolCalls: []llms.ToolCall{
					{FunctionCall: &llms.FunctionCall{Name: name, Arguments: args}},
				},
			},
		},
	}
}

func Test_Assistant_BuilderMethods(t *testing.T) {
	ctrl := gomock.NewController(t)
	model := newModel(ctrl, llms.ProviderTyphoon)

	tmpl := prompts.NewPromptTemplate(testPrompt, []string{"id"})
	a := assistants.NewAssistant[mathAnswer](model, tmpl)
	assert.Equal(t, "Generic Assistant", a.Name())
	assert.NotEmpty(t, a.Description())
	assert.Nil(t, a.GetCallback())
	assert.Empty(t, a.GetTools())
	assert.Empty(t, a.LastRunMessages())
	require.NotNil(t, a.OutputParser)
	assert.Equal(t, []string{"id"}, a.GetPromptInputVariables())

	a = a.WithName("math_assistant").
		WithDescription("Solves math problems").
		WithTools(newCalculator(t), newCalculator(t))
	assert.Equal(t, "math_assistant", a.Name())
	assert.Equal(t, "Solves math problems", a.Description())
	require.Len(t, a.GetTools(), 1)
	assert.Equal(t, "Calculator", a.GetTools()[0].Name())

	pv, err := a.FormatPrompt(map[string]any{"id": "42"})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(pv.String(), "ID: 42"))

	cfg := a.GetCallConfig(assistants.WithMaxToolCalls(3))
	assert.Equal(t, 3, cfg.MaxToolCalls)
	assert.Equal(t, 0, a.GetCallConfig().MaxToolCalls)
}

func Test_Assistant_SystemPrompt(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := context.Background()

	// no json_schema support, the schema is in the prompt
	typhoon := newTestAssistant(t, newModel(ctrl, llms.ProviderTyphoon))
	sp, err := typhoon.GetSystemPrompt(ctx, "2+2", map[string]any{"id": "1"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sp, "You are a math assistant."))
	assert.Contains(t, sp, "ID: 1\n\n# OUTPUT SCHEMA\nRespond with JSON in the following JSON schema:")
	assert.Contains(t, sp, `"answer"`)
	assert.Nil(t, typhoon.GetCallConfig().ResponseFormat)

	// the schema is sent as the response format
	openai := newTestAssistant(t, newModel(ctrl, llms.ProviderOpenAI))
	sp, err = openai.GetSystemPrompt(ctx, "2+2", map[string]any{"id": "1"})
	require.NoError(t, err)
	assert.NotContains(t, sp, "# OUTPUT SCHEMA")
	rf := openai.GetCallConfig().ResponseFormat
	require.NotNil(t, rf)
	assert.Equal(t, schema.ResponseFormatTypeJSONSchema, rf.Type)

	// the provider inputs are merged
	typhoon.WithPromptInputProvider(func(_ context.Context, input string) (map[string]any, error) {
		return map[string]any{"id": "from-provider"}, nil
	})
	sp, err = typhoon.GetSystemPrompt(ctx, "2+2", nil)
	require.NoError(t, err)
	assert.Contains(t, sp, "ID: from-provider")

	typhoon.WithPromptInputProvider(func(_ context.Context, input string) (map[string]any, error) {
		return nil, errors.New("no id")
	})
	_, err = typhoon.GetSystemPrompt(ctx, "2+2", nil)
	assert.EqualError(t, err, "failed to get prompt inputs: no id")
}

func Test_Assistant_Answer(t *testing.T) {
	ctrl := gomock.NewController(t)
	model := newModel(ctrl, llms.ProviderTyphoon)
	st := store.NewMemoryStore()
	a := newTestAssistant(t, model, assistants.WithStore(st), assistants.WithTemperature(0))

	model.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msgs []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
			require.Len(t, msgs, 2)
			assert.Equal(t, llms.RoleSystem, msgs[0].Role)
			assert.Contains(t, msgs[0].GetText(), "ID: 7")
			assert.Equal(t, llms.RoleHuman, msgs[1].Role)
			assert.Equal(t, "What is 2+2?", msgs[1].GetText())

			opts := llms.NewCallOptions(options...)
			require.NotNil(t, opts.Temperature)
			assert.Equal(t, 0.0, *opts.Temperature)
			require.Len(t, opts.Tools, 1)
			assert.Equal(t, "Calculator", opts.Tools[0].Function.Name)
			assert.Nil(t, opts.ResponseFormat)

			return textReply("```json\n{\"answer\":\"4\",\"reason\":\"2 plus 2 is 4\"}\n```"), nil
		})

	ctx := newChatContext()
	var out mathAnswer
	resp, err := assistants.Run(ctx, a, "What is 2+2?", map[string]any{"id": "7"}, &out)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, "4", out.Answer)
	assert.Equal(t, "2 plus 2 is 4", out.Reason)

	run := a.LastRunMessages()
	require.Len(t, run, 2)
	assert.Equal(t, llms.RoleHuman, run[0].Role)
	assert.Equal(t, llms.RoleAI, run[1].Role)

	history := st.Messages(ctx)
	require.Len(t, history, 2)
	assert.Equal(t, "What is 2+2?", history[0].GetText())
}

func Test_Assistant_ToolCall(t *testing.T) {
	ctrl := gomock.NewController(t)
	model := newModel(ctrl, llms.ProviderTyphoon)
	st := store.NewMemoryStore()
	sp := callbacks.NewScratchpad(callbacks.ModeDefault)
	a := newTestAssistant(t, model, assistants.WithStore(st), assistants.WithCallback(sp))

	gomock.InOrder(
		model.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(toolCallReply("calculator", `{"question":"37593 * 67"}`), nil),
		model.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, msgs []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
				require.Len(t, msgs, 4)
				calls := msgs[2].ToolCalls()
				require.Len(t, calls, 1)
				assert.Equal(t, "calculator_0", calls[0].ID)
				assert.Equal(t, "function", calls[0].Type)

				assert.Equal(t, llms.RoleTool, msgs[3].Role)
				resp, ok := msgs[3].Parts[0].(llms.ToolCallResponse)
				require.True(t, ok)
				assert.Equal(t, "calculator_0", resp.ToolCallID)
				assert.Equal(t, "Answer: 2518731", resp.Content)

				return textReply(`{"answer":"2518731","reason":"37593 * 67 = 2518731"}`), nil
			}),
	)

	ctx := sp.StartRun(newChatContext())
	var out mathAnswer
	_, err := a.Run(ctx, &assistants.CallInput{
		Input:        "What is 37593 * 67?",
		PromptInputs: map[string]any{"id": "1"},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, "2518731", out.Answer)

	stats, trace := sp.EndRun(ctx)
	require.NotNil(t, stats)
	assert.Equal(t, uint32(1), stats.AssistantCallsSucceeded)
	assert.Equal(t, uint32(2), stats.AssistantLLMCalls)
	assert.Equal(t, uint32(1), stats.ToolsCallsSucceeded)
	assert.Contains(t, string(trace), "math_assistant Calculator *** Tool Start ***")

	history := st.Messages(ctx)
	require.Len(t, history, 4)
	assert.Equal(t, llms.RoleAI, history[1].Role)
	assert.Len(t, history[1].ToolCalls(), 1)
	assert.Equal(t, llms.RoleTool, history[2].Role)
	assert.Equal(t, `{"answer":"2518731","reason":"37593 * 67 = 2518731"}`, history[3].GetText())
}

func Test_Assistant_ToolErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	model := newModel(ctrl, llms.ProviderTyphoon)
	a := newTestAssistant(t, model, assistants.WithSkipToolHistory(true))

	reply := &llms.ContentResponse{
		Choices: []*llms.ContentChoice{
			{
				ToolCalls: []llms.ToolCall{
					{ID: "c1", FunctionCall: &llms.FunctionCall{Name: "Calculator", Arguments: `{"question":"1/0"}`}},
					{ID: "c2", FunctionCall: &llms.FunctionCall{Name: "Calculator", Arguments: `{"question":""}`}},
					{ID: "c3", FunctionCall: &llms.FunctionCall{Name: "Wolfram", Arguments: `{}`}},
				},
			},
		},
	}

	gomock.InOrder(
		model.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).Return(reply, nil),
		model.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, msgs []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
				require.Len(t, msgs, 6)
				var contents []string
				for i, m := range msgs[3:] {
					resp, ok := m.Parts[0].(llms.ToolCallResponse)
					require.True(t, ok)
					assert.Equal(t, reply.Choices[0].ToolCalls[i].ID, resp.ToolCallID)
					contents = append(contents, resp.Content)
				}
				assert.True(t, strings.HasPrefix(contents[0], "Tool call failed: "))
				assert.Contains(t, contents[0], "division by zero")
				assert.True(t, strings.HasPrefix(contents[1], "Tool call failed: "))
				assert.Contains(t, contents[1], "The input must match the JSON schema:\n```json\n")
				assert.Equal(t, "Tool `Wolfram` not found. Please check the tool name and try again with exact match. Available tools: Calculator", contents[2])

				return textReply(`{"answer":"undefined","reason":"division by zero"}`), nil
			}),
	)

	var out mathAnswer
	_, err := a.Run(newChatContext(), &assistants.CallInput{
		Input:        "What is 1/0?",
		PromptInputs: map[string]any{"id": "1"},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, "undefined", out.Answer)

	// the tool calls are not in the run messages
	run := a.LastRunMessages()
	require.Len(t, run, 2)
	assert.Equal(t, llms.RoleHuman, run[0].Role)
	assert.Equal(t, llms.RoleAI, run[1].Role)
}

func Test_Assistant_Errors(t *testing.T) {
	inputs := map[string]any{"id": "1"}

	t.Run("tool_not_found", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		model := newModel(ctrl, llms.ProviderTyphoon)
		a := newTestAssistant(t, model)
		model.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(toolCallReply("calc", `{"question":"2+2"}`), nil).Times(4)

		_, err := assistants.Call(newChatContext(), a, "What is 2+2?", inputs)
		assert.EqualError(t, err, "assistant math_assistant: the number of not found tools is exceeded")
		assert.Len(t, a.LastRunMessages(), 9)
	})

	t.Run("tool_calls_limit", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		model := newModel(ctrl, llms.ProviderTyphoon)
		a := newTestAssistant(t, model, assistants.WithMaxToolCalls(2))
		model.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(toolCallReply("Calculator", `{"question":"2+2"}`), nil).Times(2)

		_, err := assistants.Call(newChatContext(), a, "What is 2+2?", inputs)
		assert.EqualError(t, err, "assistant math_assistant: the tool calls limit is exceeded")
	})

	t.Run("parse_error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		model := newModel(ctrl, llms.ProviderTyphoon)
		cb := callbacks.NewScratchpad(callbacks.ModeVerbose)
		a := newTestAssistant(t, model, assistants.WithCallback(cb))
		model.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(textReply(`{"reason":"no answer"}`), nil)

		ctx := cb.StartRun(newChatContext())
		_, err := assistants.Call(ctx, a, "What is 2+2?", inputs)
		require.Error(t, err)
		assert.True(t, strings.HasPrefix(err.Error(), "assistant math_assistant: failed to parse the answer"))
		assert.True(t, errors.Is(err, chatmodel.ErrFailedUnmarshalInput))

		stats, trace := cb.EndRun(ctx)
		assert.Equal(t, uint32(1), stats.AssistantCallsFailed)
		assert.Contains(t, string(trace), "*** LLM Parse Error ***")
	})

	t.Run("empty_response", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		model := newModel(ctrl, llms.ProviderTyphoon)
		a := newTestAssistant(t, model)
		model.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&llms.ContentResponse{}, nil).Times(assistants.DefaultMaxRetries)

		_, err := assistants.Call(newChatContext(), a, "What is 2+2?", inputs)
		assert.EqualError(t, err, "assistant math_assistant: LLM returned empty response after 3 retries")
	})

	t.Run("retry_empty_response", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		model := newModel(ctrl, llms.ProviderTyphoon)
		a := newTestAssistant(t, model)
		gomock.InOrder(
			model.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
				Return(&llms.ContentResponse{}, nil),
			model.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
				Return(textReply(`{"answer":"4","reason":"2+2=4"}`), nil),
		)

		resp, err := assistants.Call(newChatContext(), a, "What is 2+2?", inputs)
		require.NoError(t, err)
		require.Len(t, resp.Choices, 1)
		assert.Equal(t, `{"answer":"4","reason":"2+2=4"}`, resp.Choices[0].Content)
	})

	t.Run("llm_error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		model := newModel(ctrl, llms.ProviderTyphoon)
		a := newTestAssistant(t, model)
		model.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, errors.New("connection refused"))

		_, err := assistants.Call(newChatContext(), a, "What is 2+2?", inputs)
		assert.EqualError(t, err, "assistant math_assistant: failed to generate content from LLM: connection refused")
	})

	t.Run("limits", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		model := newModel(ctrl, llms.ProviderTyphoon)

		a := newTestAssistant(t, model, assistants.WithMaxMessages(1))
		_, err := assistants.Call(newChatContext(), a, "What is 2+2?", inputs)
		assert.EqualError(t, err, "assistant math_assistant: the messages count exceeded limit")

		a = newTestAssistant(t, model, assistants.WithMaxLength(16))
		_, err = assistants.Call(newChatContext(), a, "What is 2+2?", inputs)
		assert.EqualError(t, err, "assistant math_assistant: the content size exceeded limit")
	})

	t.Run("missing_prompt_input", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		a := newTestAssistant(t, newModel(ctrl, llms.ProviderTyphoon))
		_, err := assistants.Call(newChatContext(), a, "What is 2+2?", nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, prompts.ErrMissingVariable))
	})

	t.Run("no_function_calling", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		a := newTestAssistant(t, newModel(ctrl, llms.ProviderType("LOCAL")))
		_, err := assistants.Call(newChatContext(), a, "What is 2+2?", inputs)
		assert.EqualError(t, err, "assistant math_assistant: the LLM does not support function calling")
	})

	t.Run("input_parser", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		a := newTestAssistant(t, newModel(ctrl, llms.ProviderTyphoon)).
			WithInputParser(func(string) (string, error) {
				return "", errors.New("empty question")
			})
		_, err := assistants.Call(newChatContext(), a, "What is 2+2?", inputs)
		assert.EqualError(t, err, "failed to parse input: empty question")
	})
}

func Test_Assistant_History(t *testing.T) {
	ctrl := gomock.NewController(t)
	model := newModel(ctrl, llms.ProviderTyphoon)
	st := store.NewMemoryStore()
	ctx := newChatContext()
	require.NoError(t, st.Add(ctx,
		llms.MessageFromTextParts(llms.RoleHuman, "What is 2+2?"),
		llms.MessageFromTextParts(llms.RoleAI, `{"answer":"4","reason":"2+2=4"}`),
	))

	a := newTestAssistant(t, model,
		assistants.WithStore(st),
		assistants.WithSkipMessageHistory(true),
		assistants.WithExamples(chatmodel.FewShotExamples{
			{Prompt: "What is 1+1?", Completion: `{"answer":"2","reason":"1+1=2"}`},
		}),
	).WithInputParser(func(input string) (string, error) {
		return "ID: 2\nQuery: " + input, nil
	})

	model.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msgs []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
			require.Len(t, msgs, 6)
			assert.Equal(t, "What is 1+1?", msgs[1].GetText())
			assert.Equal(t, llms.RoleAI, msgs[2].Role)
			assert.Equal(t, "What is 2+2?", msgs[3].GetText())
			assert.Equal(t, "ID: 2\nQuery: and times 3?", msgs[5].GetText())
			return textReply(`{"answer":"12","reason":"4*3=12"}`), nil
		})

	var out mathAnswer
	_, err := a.Run(ctx, &assistants.CallInput{
		Input:        "and times 3?",
		PromptInputs: map[string]any{"id": "2"},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, "12", out.Answer)

	// not added to the history
	assert.Len(t, st.Messages(ctx), 2)
}

func Test_Assistant_NewChat(t *testing.T) {
	ctrl := gomock.NewController(t)
	model := newModel(ctrl, llms.ProviderTyphoon)
	a := newTestAssistant(t, model)

	model.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
			_, chatID, err := chatmodel.GetTenantAndChatID(ctx)
			require.NoError(t, err)
			assert.NotEmpty(t, chatID)
			return &llms.ContentResponse{
				Choices: []*llms.ContentChoice{
					{Content: `{"answer":"4",`},
					{Content: `"reason":"2+2=4"}`},
				},
			}, nil
		})

	var out mathAnswer
	_, err := a.Run(context.Background(), &assistants.CallInput{
		Input:        "What is 2+2?",
		PromptInputs: map[string]any{"id": "3"},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, "4", out.Answer)
	assert.Equal(t, "2+2=4", out.Reason)
}

func Test_Assistant_RunPromptInput(t *testing.T) {
	ctrl := gomock.NewController(t)
	model := newModel(ctrl, llms.ProviderTyphoon)
	a := newTestAssistant(t, model, assistants.WithPromptInput(map[string]any{"id": "default"}))

	expectID := func(id string) {
		model.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, msgs []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
				assert.True(t, strings.HasSuffix(msgs[0].GetText(), "ID: "+id) || strings.Contains(msgs[0].GetText(), "ID: "+id+"\n"))
				return textReply(`{"answer":"4","reason":"2+2=4"}`), nil
			})
	}

	expectID("default")
	_, err := a.Call(newChatContext(), &assistants.CallInput{Input: "What is 2+2?"})
	require.NoError(t, err)

	expectID("run")
	_, err = a.Call(newChatContext(), &assistants.CallInput{
		Input:   "What is 2+2?",
		Options: []assistants.Option{assistants.WithPromptInput(map[string]any{"id": "run"})},
	})
	require.NoError(t, err)

	expectID("call")
	_, err = a.Call(newChatContext(), &assistants.CallInput{
		Input:        "What is 2+2?",
		PromptInputs: map[string]any{"id": "call"},
		Options:      []assistants.Option{assistants.WithPromptInput(map[string]any{"id": "run"})},
	})
	require.NoError(t, err)
}
