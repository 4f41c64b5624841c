package callbacks

import (
	"context"

	"github.com/effective-security/mathagent/assistants"
	"github.com/effective-security/mathagent/chatmodel"
	"github.com/effective-security/mathagent/pkg/llms"
	"github.com/invopop/jsonschema"
)

type fakeAssistant struct{ name string }

func (a *fakeAssistant) Name() string {
	return a.name
}
func (a *fakeAssistant) Description() string {
	return "solves math problems"
}
func (a *fakeAssistant) FormatPrompt(map[string]any) (llms.PromptValue, error) {
	return nil, nil
}
func (a *fakeAssistant) GetPromptInputVariables() []string {
	return nil
}
func (a *fakeAssistant) Call(context.Context, *assistants.CallInput) (*llms.ContentResponse, error) {
	return nil, nil
}

type fakeTool struct{ name string }

func (t *fakeTool) Name() string {
	return t.name
}
func (t *fakeTool) Description() string {
	return "evaluates math expressions"
}
func (t *fakeTool) Parameters() *jsonschema.Schema {
	return nil
}
func (t *fakeTool) Call(_ context.Context, _ string) (string, error) {
	return "Answer: 4", nil
}

type fakeModel struct{}

func (m fakeModel) GetName() string {
	return "typhoon-v2.1-12b-instruct"
}
func (m fakeModel) GetProviderType() llms.ProviderType {
	return llms.ProviderTyphoon
}
func (m fakeModel) GenerateContent(context.Context, []llms.Message, ...llms.CallOption) (*llms.ContentResponse, error) {
	return nil, nil
}

func newTestChatContext() (context.Context, chatmodel.ChatContext) {
	chatCtx := chatmodel.NewChatContext("tenant1", "chat1", nil)
	return chatmodel.WithChatContext(context.Background(), chatCtx), chatCtx
}

func testMessages() []llms.Message {
	return []llms.Message{
		llms.MessageFromTextParts(llms.RoleSystem, "You are a math assistant"),
		llms.MessageFromTextParts(llms.RoleHuman, "What is 2+2?"),
		llms.MessageFromToolCalls(llms.RoleAI, llms.ToolCall{
			ID:           "call_1",
			Type:         "function",
			FunctionCall: &llms.FunctionCall{Name: "Calculator", Arguments: `{"question":"2+2"}`},
		}),
		llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{
			ToolCallID: "call_1",
			Name:       "Calculator",
			Content:    "Answer: 4",
		}),
	}
}

func testResponse() *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{
			{
				Content: `{"answer":"4","reason":"2+2=4"}`,
				GenerationInfo: map[string]any{
					"InputTokens":  int64(100),
					"OutputTokens": int64(20),
					"TotalTokens":  int64(120),
				},
			},
		},
	}
}
