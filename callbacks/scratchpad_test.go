package callbacks

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/effective-security/mathagent/chatmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScratchpad_StartRun_EndRun(t *testing.T) {
	sp := NewScratchpad(ModeDefault)
	ctx, cctx := newTestChatContext()
	assert.Equal(t, ctx, sp.StartRun(ctx))

	r := sp.getRun(ctx)
	require.NotNil(t, r)
	r.stats.AssistantCalls = 2
	r.stats.AssistantCallsFailed = 1
	r.stats.ToolsCalls = 3
	r.stats.ToolsCallsFailed = 2
	r.stats.ToolNotFound = 1

	stats, buf := sp.EndRun(ctx)
	require.NotNil(t, stats)
	assert.Equal(t, cctx.GetChatID(), stats.ChatID)
	assert.Equal(t, cctx.RunID(), stats.RunID)
	out := string(buf)
	assert.Contains(t, out, "*** Run Started ***")
	assert.Contains(t, out, "Assistant calls: 2, Failed: 1")
	assert.Contains(t, out, "Tool calls: 3, Failed: 2, Not Found: 1")
	assert.Contains(t, out, "*** Run Ended. Duration: ")
	assert.Nil(t, sp.getRun(ctx))

	stats, buf = sp.EndRun(ctx)
	assert.Nil(t, stats)
	assert.Nil(t, buf)
}

func TestScratchpad_StartRun_NoChatContext(t *testing.T) {
	sp := NewScratchpad(ModeDefault)
	assert.Nil(t, sp.getRun(context.Background()))

	ctx := sp.StartRun(context.Background())
	chatCtx := chatmodel.GetChatContext(ctx)
	require.NotNil(t, chatCtx)
	assert.NotEmpty(t, chatCtx.GetChatID())
	assert.NotNil(t, sp.getRun(ctx))

	other, _ := newTestChatContext()
	assert.Nil(t, sp.getRun(other))
}

func TestScratchpad_Callbacks(t *testing.T) {
	sp := NewScratchpad(ModeVerbose)
	ctx, _ := newTestChatContext()
	ast := &fakeAssistant{name: "math_assistant"}
	tool := &fakeTool{name: "Calculator"}

	// not started
	sp.OnAssistantStart(ctx, ast, "What is 2+2?")
	sp.OnToolStart(ctx, tool, ast.Name(), "2+2")

	sp.StartRun(ctx)
	sp.OnAssistantStart(ctx, ast, "What is 2+2?")
	sp.OnAssistantLLMCallStart(ctx, ast, fakeModel{}, testMessages())
	sp.OnAssistantLLMCallEnd(ctx, ast, fakeModel{}, testResponse())
	sp.OnToolStart(ctx, tool, ast.Name(), `{"question":"2+2"}`)
	sp.OnToolEnd(ctx, tool, ast.Name(), `{"question":"2+2"}`, "Answer: 4")
	sp.OnToolStart(ctx, tool, ast.Name(), `{"question":"2/0"}`)
	sp.OnToolError(ctx, tool, ast.Name(), `{"question":"2/0"}`, errors.New("division by zero"))
	sp.OnToolNotFound(ctx, ast, "calc")
	sp.OnAssistantLLMParseError(ctx, ast, "What is 2+2?", "four", errors.New("invalid JSON"))
	sp.OnAssistantEnd(ctx, ast, "What is 2+2?", testResponse(), testMessages())
	sp.OnAssistantStart(ctx, ast, "What is 1/0?")
	sp.OnAssistantError(ctx, ast, "What is 1/0?", errors.New("the tool calls limit is exceeded"), testMessages())

	stats, buf := sp.EndRun(ctx)
	require.NotNil(t, stats)
	assert.Equal(t, uint32(2), stats.AssistantCalls)
	assert.Equal(t, uint32(1), stats.AssistantCallsSucceeded)
	assert.Equal(t, uint32(1), stats.AssistantCallsFailed)
	assert.Equal(t, uint32(1), stats.AssistantLLMCalls)
	assert.Equal(t, uint32(4), stats.TotalMessages)
	assert.Equal(t, uint32(2), stats.ToolsCalls)
	assert.Equal(t, uint32(1), stats.ToolsCallsSucceeded)
	assert.Equal(t, uint32(1), stats.ToolsCallsFailed)
	assert.Equal(t, uint32(1), stats.ToolNotFound)
	assert.Equal(t, uint64(100), stats.LLMInputTokens)
	assert.Equal(t, uint64(20), stats.LLMOutputTokens)
	assert.Equal(t, uint64(120), stats.LLMTotalTokens)
	assert.NotZero(t, stats.LLMBytesOut)
	assert.NotZero(t, stats.LLMBytesIn)

	out := string(buf)
	assert.Contains(t, out, "math_assistant *** Assistant Start ***")
	assert.Contains(t, out, "math_assistant Input: What is 2+2?")
	assert.Contains(t, out, "math_assistant *** LLM Call *** typhoon-v2.1-12b-instruct model, 4 messages")
	assert.Contains(t, out, "SYSTEM: You are a math assistant")
	assert.Contains(t, out, "math_assistant *** LLM Call End *** typhoon-v2.1-12b-instruct model, 100 input tokens, 20 output tokens, 120 total tokens")
	assert.Contains(t, out, "math_assistant Calculator *** Tool Start ***")
	assert.Contains(t, out, "math_assistant Calculator Output: Answer: 4")
	assert.Contains(t, out, "math_assistant Calculator *** Tool Error *** division by zero")
	assert.Contains(t, out, "math_assistant *** Tool Not Found *** calc")
	assert.Contains(t, out, "math_assistant *** LLM Parse Error *** invalid JSON")
	assert.Contains(t, out, "[3] tool:")
	assert.Contains(t, out, "math_assistant *** Error *** the tool calls limit is exceeded")
	assert.Contains(t, out, "math_assistant *** Assistant End ***")
}

func Test_run_print(t *testing.T) {
	_, chatCtx := newTestChatContext()
	r := &run{chatCtx: chatCtx}

	old := TimeNowFn
	TimeNowFn = func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }
	defer func() { TimeNowFn = old }()

	r.print("hello", "again")
	lines := strings.Split(r.w.String(), "\n")
	assert.Equal(t, "2024-01-01 12:00:00 chat1."+chatCtx.RunID()+" hello again", lines[0])
}
