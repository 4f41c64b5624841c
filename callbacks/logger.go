package callbacks

import (
	"context"

	"github.com/effective-security/mathagent/assistants"
	"github.com/effective-security/mathagent/pkg/llms"
	"github.com/effective-security/mathagent/pkg/llmutils"
	"github.com/effective-security/mathagent/tools"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/xlog"
)

var _ assistants.Callback = (*PackageLogger)(nil)

// maxLogValue is the max length of the inputs and outputs in the logs.
const maxLogValue = 256

// PackageLogger logs the events to the package logger.
// Failures are logged at ERROR level, unknown tools at WARNING, the rest at DEBUG.
type PackageLogger struct {
	logger *xlog.PackageLogger
}

// NewPackageLogger returns a PackageLogger
func NewPackageLogger(logger *xlog.PackageLogger) *PackageLogger {
	return &PackageLogger{logger: logger}
}

func (l *PackageLogger) log(ctx context.Context, level xlog.LogLevel, status, assistant string, kv ...any) {
	args := append([]any{"status", status, "assistant", assistant}, kv...)
	l.logger.ContextKV(ctx, level, args...)
}

func (l *PackageLogger) OnAssistantStart(ctx context.Context, assistant assistants.IAssistant, input string) {
	l.log(ctx, xlog.DEBUG, "assistant_start", assistant.Name(),
		"input", slices.StringUpto(input, maxLogValue))
}

func (l *PackageLogger) OnAssistantEnd(ctx context.Context, assistant assistants.IAssistant, input string, resp *llms.ContentResponse, messages []llms.Message) {
	result := ""
	if len(resp.Choices) > 0 {
		result = resp.Choices[0].Content
	}
	l.log(ctx, xlog.DEBUG, "assistant_end", assistant.Name(),
		"messages", len(messages),
		"result", slices.StringUpto(result, maxLogValue))
}

func (l *PackageLogger) OnAssistantError(ctx context.Context, assistant assistants.IAssistant, input string, err error, messages []llms.Message) {
	l.log(ctx, xlog.ERROR, "assistant_error", assistant.Name(),
		"messages", len(messages),
		"err", err.Error())
}

func (l *PackageLogger) OnAssistantLLMParseError(ctx context.Context, assistant assistants.IAssistant, input string, response string, err error) {
	l.log(ctx, xlog.DEBUG, "llm_parse_error", assistant.Name(),
		"response", slices.StringUpto(response, maxLogValue),
		"err", err.Error())
}

func (l *PackageLogger) OnAssistantLLMCallStart(ctx context.Context, agent assistants.IAssistant, llm llms.Model, payload []llms.Message) {
	l.log(ctx, xlog.DEBUG, "llm_call_start", agent.Name(),
		"model", llm.GetName(),
		"messages", len(payload),
		"bytes", llmutils.CountMessagesContentSize(payload))
}

func (l *PackageLogger) OnAssistantLLMCallEnd(ctx context.Context, agent assistants.IAssistant, llm llms.Model, resp *llms.ContentResponse) {
	in, out, total := llmutils.CountTokens(resp)
	l.log(ctx, xlog.DEBUG, "llm_call_end", agent.Name(),
		"model", llm.GetName(),
		"choices", len(resp.Choices),
		"input_tokens", in,
		"output_tokens", out,
		"total_tokens", total)
}

func (l *PackageLogger) OnToolStart(ctx context.Context, tool tools.ITool, assistantName, input string) {
	l.log(ctx, xlog.DEBUG, "tool_start", assistantName,
		"tool", tool.Name(),
		"input", slices.StringUpto(input, maxLogValue))
}

func (l *PackageLogger) OnToolEnd(ctx context.Context, tool tools.ITool, assistantName, input string, output string) {
	l.log(ctx, xlog.DEBUG, "tool_end", assistantName,
		"tool", tool.Name(),
		"output", slices.StringUpto(output, maxLogValue))
}

func (l *PackageLogger) OnToolError(ctx context.Context, tool tools.ITool, assistantName, input string, err error) {
	l.log(ctx, xlog.ERROR, "tool_error", assistantName,
		"tool", tool.Name(),
		"input", slices.StringUpto(input, maxLogValue),
		"err", err.Error())
}

func (l *PackageLogger) OnToolNotFound(ctx context.Context, agent assistants.IAssistant, tool string) {
	l.log(ctx, xlog.WARNING, "tool_not_found", agent.Name(),
		"tool", tool)
}
