package callbacks

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/effective-security/mathagent/assistants"
	"github.com/effective-security/mathagent/chatmodel"
	"github.com/effective-security/mathagent/pkg/llms"
	"github.com/effective-security/mathagent/pkg/llmutils"
	"github.com/effective-security/mathagent/tools"
)

var _ assistants.Callback = (*Scratchpad)(nil)

// TimeNowFn returns the time of the scratchpad entries.
var TimeNowFn = time.Now

// RunStats is the summary of a run.
type RunStats struct {
	ChatID string `json:"chat_id"`
	RunID  string `json:"run_id"`

	Duration                time.Duration `json:"duration"`
	TotalMessages           uint32        `json:"total_messages"`
	LLMBytesOut             uint64        `json:"llm_bytes_out"`
	LLMBytesIn              uint64        `json:"llm_bytes_in"`
	LLMInputTokens          uint64        `json:"llm_input_tokens"`
	LLMOutputTokens         uint64        `json:"llm_output_tokens"`
	LLMTotalTokens          uint64        `json:"llm_total_tokens"`
	AssistantCalls          uint32        `json:"assistant_calls"`
	AssistantCallsSucceeded uint32        `json:"assistant_calls_succeeded"`
	AssistantCallsFailed    uint32        `json:"assistant_calls_failed"`
	AssistantLLMCalls       uint32        `json:"assistant_llm_calls"`
	ToolsCalls              uint32        `json:"tools_calls"`
	ToolsCallsSucceeded     uint32        `json:"tools_calls_succeeded"`
	ToolsCallsFailed        uint32        `json:"tools_calls_failed"`
	ToolNotFound            uint32        `json:"tool_not_found"`
}

// Scratchpad records the trace and stats of the runs, one run per chat.
type Scratchpad struct {
	runs map[string]*run
	mode Mode
	lock sync.Mutex
}

// NewScratchpad returns a new Scratchpad
func NewScratchpad(mode Mode) *Scratchpad {
	return &Scratchpad{
		runs: make(map[string]*run),
		mode: mode,
	}
}

// StartRun starts recording the run of the chat in the context.
// If the context has no chat, a new one is created and
// the returned context must be used for the run.
func (l *Scratchpad) StartRun(ctx context.Context) context.Context {
	chatCtx := chatmodel.GetChatContext(ctx)
	if chatCtx == nil {
		chatCtx = chatmodel.NewChatContext("", "", nil)
		ctx = chatmodel.WithChatContext(ctx, chatCtx)
	}

	r := &run{
		stats: RunStats{
			ChatID: chatCtx.GetChatID(),
			RunID:  chatCtx.RunID(),
		},
		chatCtx: chatCtx,
		started: TimeNowFn(),
	}

	l.lock.Lock()
	l.runs[chatCtx.GetChatID()] = r
	l.lock.Unlock()

	r.print("*** Run Started ***")
	return ctx
}

// EndRun stops recording the run, and returns its stats and trace.
func (l *Scratchpad) EndRun(ctx context.Context) (*RunStats, []byte) {
	r := l.getRun(ctx)
	if r == nil {
		return nil, nil
	}

	l.lock.Lock()
	delete(l.runs, r.chatCtx.GetChatID())
	l.lock.Unlock()

	stats := r.stats
	stats.Duration = TimeNowFn().Sub(r.started)

	r.print(fmt.Sprintf("Assistant calls: %d, Failed: %d",
		stats.AssistantCalls,
		stats.AssistantCallsFailed,
	))
	r.print(fmt.Sprintf("Tool calls: %d, Failed: %d, Not Found: %d",
		stats.ToolsCalls,
		stats.ToolsCallsFailed,
		stats.ToolNotFound,
	))
	r.print(fmt.Sprintf("LLM calls: %d, Messages: %d, Bytes Out: %d, Bytes In: %d, Input Tokens: %d, Output Tokens: %d, Total Tokens: %d",
		stats.AssistantLLMCalls,
		stats.TotalMessages,
		stats.LLMBytesOut,
		stats.LLMBytesIn,
		stats.LLMInputTokens,
		stats.LLMOutputTokens,
		stats.LLMTotalTokens,
	))
	r.print(fmt.Sprintf("*** Run Ended. Duration: %s ***", stats.Duration))

	r.lock.Lock()
	defer r.lock.Unlock()
	return &stats, bytes.Clone(r.w.Bytes())
}

func (l *Scratchpad) getRun(ctx context.Context) *run {
	chatCtx := chatmodel.GetChatContext(ctx)
	if chatCtx == nil {
		return nil
	}

	l.lock.Lock()
	defer l.lock.Unlock()
	return l.runs[chatCtx.GetChatID()]
}

func (l *Scratchpad) OnAssistantStart(ctx context.Context, assistant assistants.IAssistant, input string) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}
	atomic.AddUint32(&r.stats.AssistantCalls, 1)
	r.print(assistant.Name(), "*** Assistant Start ***")
	r.print(assistant.Name(), "Input:", input)
}

func (l *Scratchpad) OnAssistantEnd(ctx context.Context, assistant assistants.IAssistant, input string, resp *llms.ContentResponse, messages []llms.Message) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}
	atomic.AddUint32(&r.stats.AssistantCallsSucceeded, 1)
	atomic.AddUint64(&r.stats.LLMBytesIn, llmutils.CountResponseContentSize(resp))

	if l.mode == ModeVerbose {
		for _, choice := range resp.Choices {
			if choice.Content != "" {
				r.print(assistant.Name(), "Output:", choice.Content)
			}
		}
		r.print(assistant.Name(), printMessages(messages))
	}
	r.print(assistant.Name(), "*** Assistant End ***")
}

func (l *Scratchpad) OnAssistantError(ctx context.Context, assistant assistants.IAssistant, input string, err error, messages []llms.Message) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}
	atomic.AddUint32(&r.stats.AssistantCallsFailed, 1)
	r.print(assistant.Name(), "*** Error ***", err.Error())
	r.print(assistant.Name(), printMessages(messages))
}

func (l *Scratchpad) OnAssistantLLMCallStart(ctx context.Context, agent assistants.IAssistant, llm llms.Model, payload []llms.Message) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}

	count := uint32(len(payload))
	atomic.AddUint64(&r.stats.LLMBytesOut, llmutils.CountMessagesContentSize(payload))
	atomic.AddUint32(&r.stats.AssistantLLMCalls, 1)
	atomic.AddUint32(&r.stats.TotalMessages, count)

	r.print(agent.Name(), "*** LLM Call ***", fmt.Sprintf("%s model, %d messages", llm.GetName(), count))
	if l.mode == ModeVerbose {
		var buf strings.Builder
		llmutils.PrintMessages(&buf, payload)
		r.print(agent.Name(), "Payload:\n"+buf.String())
	}
}

func (l *Scratchpad) OnAssistantLLMCallEnd(ctx context.Context, agent assistants.IAssistant, llm llms.Model, resp *llms.ContentResponse) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}

	tokensIn, tokensOut, tokensTotal := llmutils.CountTokens(resp)
	atomic.AddUint64(&r.stats.LLMInputTokens, uint64(tokensIn))
	atomic.AddUint64(&r.stats.LLMOutputTokens, uint64(tokensOut))
	atomic.AddUint64(&r.stats.LLMTotalTokens, uint64(tokensTotal))

	r.print(agent.Name(), "*** LLM Call End ***",
		fmt.Sprintf("%s model, %d input tokens, %d output tokens, %d total tokens", llm.GetName(), tokensIn, tokensOut, tokensTotal))
}

func (l *Scratchpad) OnAssistantLLMParseError(ctx context.Context, assistant assistants.IAssistant, input string, response string, err error) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}
	r.print(assistant.Name(), "*** LLM Parse Error ***", err.Error())
	r.print(assistant.Name(), "Response:", response)
}

func (l *Scratchpad) OnToolStart(ctx context.Context, tool tools.ITool, assistantName, input string) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}
	atomic.AddUint32(&r.stats.ToolsCalls, 1)
	r.print(assistantName, tool.Name(), "*** Tool Start ***")
	r.print(assistantName, tool.Name(), "Input:", input)
}

func (l *Scratchpad) OnToolEnd(ctx context.Context, tool tools.ITool, assistantName, input string, output string) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}
	atomic.AddUint32(&r.stats.ToolsCallsSucceeded, 1)
	if l.mode == ModeVerbose {
		r.print(assistantName, tool.Name(), "Output:", output)
	}
	r.print(assistantName, tool.Name(), "*** Tool End ***")
}

func (l *Scratchpad) OnToolError(ctx context.Context, tool tools.ITool, assistantName, input string, err error) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}
	atomic.AddUint32(&r.stats.ToolsCallsFailed, 1)
	r.print(assistantName, tool.Name(), "*** Tool Error ***", err.Error())
}

func (l *Scratchpad) OnToolNotFound(ctx context.Context, agent assistants.IAssistant, tool string) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}
	atomic.AddUint32(&r.stats.ToolNotFound, 1)
	r.print(agent.Name(), "*** Tool Not Found ***", tool)
}

// printMessages returns a summary of the messages, with the tool calls and responses.
func printMessages(messages []llms.Message) string {
	var buf strings.Builder
	buf.WriteString("Messages:\n")
	for idx, msg := range messages {
		fmt.Fprintf(&buf, "[%d] %s:\n", idx, msg.Role)
		texts, calls, responses := 0, 0, 0
		for _, part := range msg.Parts {
			switch typ := part.(type) {
			case llms.TextContent:
				texts++
			case llms.ToolCall:
				calls++
				fmt.Fprintf(&buf, "  - %s\n", typ.String())
			case llms.ToolCallResponse:
				responses++
				fmt.Fprintf(&buf, "  - %s\n", typ.String())
			}
		}
		fmt.Fprintf(&buf, "  - %d texts, %d tool calls, %d tool responses\n", texts, calls, responses)
	}
	return buf.String()
}

type run struct {
	chatCtx chatmodel.ChatContext
	w       bytes.Buffer
	started time.Time
	lock    sync.Mutex
	stats   RunStats
}

// print writes the entries as a line:
// `<timestamp> <chatID>.<runID> entry entry`
func (r *run) print(entries ...string) {
	r.lock.Lock()
	defer r.lock.Unlock()

	fmt.Fprintf(&r.w, "%s %s.%s %s\n",
		TimeNowFn().Format(time.DateTime),
		r.chatCtx.GetChatID(),
		r.chatCtx.RunID(),
		strings.Join(entries, " "),
	)
}
