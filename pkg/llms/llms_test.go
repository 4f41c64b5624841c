package llms_test

import (
	"encoding/json"
	"testing"

	"github.com/effective-security/mathagent/pkg/llms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Message(t *testing.T) {
	m := llms.MessageFromTextParts(llms.RoleHuman, "ID: 1", "Query: what is 2+2?")
	assert.Equal(t, "ID: 1\nQuery: what is 2+2?", m.GetText())
	assert.Empty(t, m.ToolCalls())

	fc := &llms.FunctionCall{Name: "Calculator", Arguments: `{"question":"2+2"}`}
	ai := llms.MessageFromToolCalls(llms.RoleAI, llms.ToolCall{ID: "call_1", Type: "function", FunctionCall: fc})
	fc.Arguments = "{}"
	calls := ai.ToolCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, `{"question":"2+2"}`, calls[0].FunctionCall.Arguments)
	assert.Equal(t, `ToolCall: call_1 (Calculator), input: {"question":"2+2"}`, calls[0].String())
	assert.Empty(t, ai.GetText())

	resp := llms.ToolCallResponse{ToolCallID: "call_1", Name: "Calculator", Content: "Answer: 4"}
	assert.Equal(t, "ToolCallResponse: call_1 (Calculator), response size: 9", resp.String())
	assert.Equal(t, "data:image/png;base64,AQI=", llms.BinaryPart("image/png", []byte{1, 2}).String())
}

func Test_MessageJSON(t *testing.T) {
	msgs := []llms.Message{
		llms.MessageFromTextParts(llms.RoleSystem, "You are a math assistant"),
		llms.MessageFromParts(llms.RoleHuman,
			llms.TextPart("what is on the board?"),
			llms.ImageURLPart("https://example.com/board.png"),
			llms.BinaryPart("image/png", []byte("png")),
		),
		llms.MessageFromToolCalls(llms.RoleAI, llms.ToolCall{
			ID:           "call_1",
			Type:         "function",
			FunctionCall: &llms.FunctionCall{Name: "Calculator", Arguments: `{"question":"2+2"}`},
		}),
		llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{ToolCallID: "call_1", Name: "Calculator", Content: "Answer: 4"}),
	}

	js, err := json.Marshal(msgs[0])
	require.NoError(t, err)
	assert.Equal(t, `{"role":"system","text":"You are a math assistant"}`, string(js))

	js, err = json.Marshal(msgs)
	require.NoError(t, err)

	var decoded []llms.Message
	require.NoError(t, json.Unmarshal(js, &decoded))
	assert.Equal(t, msgs, decoded)

	var m llms.Message
	err = json.Unmarshal([]byte(`{"role":"human","parts":[{"type":"video"}]}`), &m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported type "video"`)

	err = json.Unmarshal([]byte(`{"role":"ai","parts":[{"type":"tool_call"}]}`), &m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing tool_call")
}

func Test_ProviderSupports(t *testing.T) {
	assert.True(t, llms.ProviderTyphoon.Supports(llms.CapabilityFunctionCalling))
	assert.False(t, llms.ProviderTyphoon.Supports(llms.CapabilityJSONSchema))
	assert.True(t, llms.ProviderOpenAI.Supports(llms.CapabilityJSONSchemaStrict))
	assert.False(t, llms.ProviderType("unknown").Supports(llms.CapabilityText))

	opts := llms.NewCallOptions(llms.WithTemperature(0), llms.WithSeed(7), llms.WithStopWords([]string{"```output"}))
	require.NotNil(t, opts.Temperature)
	assert.Equal(t, 0.0, *opts.Temperature)
	assert.Equal(t, 7, opts.Seed)
	assert.Equal(t, []string{"```output"}, opts.StopWords)
}
