package callbacks

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/effective-security/mathagent/assistants"
	"github.com/effective-security/mathagent/pkg/llms"
	"github.com/effective-security/mathagent/pkg/llmutils"
	"github.com/effective-security/mathagent/tools"
)

var _ assistants.Callback = (*Printer)(nil)

// Printer prints the events to Out as `[assistant] event: details`.
// In ModeVerbose the payloads, results and tool outputs follow the event, indented.
type Printer struct {
	Out  io.Writer
	Mode Mode

	lock sync.Mutex
}

// NewPrinter returns a Printer
func NewPrinter(out io.Writer, mode Mode) *Printer {
	return &Printer{Out: out, Mode: mode}
}

// print writes the event line and the verbose details.
func (l *Printer) print(name, event string, verbose ...string) {
	l.lock.Lock()
	defer l.lock.Unlock()

	fmt.Fprintf(l.Out, "[%s] %s\n", name, event)
	if l.Mode != ModeVerbose {
		return
	}
	for _, v := range verbose {
		for _, line := range strings.Split(strings.TrimRight(v, "\n"), "\n") {
			fmt.Fprintf(l.Out, "  %s\n", line)
		}
	}
}

func (l *Printer) OnAssistantStart(ctx context.Context, assistant assistants.IAssistant, input string) {
	l.print(assistant.Name(), "start: "+input)
}

func (l *Printer) OnAssistantEnd(ctx context.Context, assistant assistants.IAssistant, input string, resp *llms.ContentResponse, messages []llms.Message) {
	var results []string
	for _, choice := range resp.Choices {
		if choice.Content != "" {
			results = append(results, choice.Content)
		}
	}
	l.print(assistant.Name(), "end", results...)
}

func (l *Printer) OnAssistantError(ctx context.Context, assistant assistants.IAssistant, input string, err error, messages []llms.Message) {
	var details []string
	if question := llmutils.FindLastUserQuestion(messages); question != "" {
		details = append(details, "question: "+question)
	}
	l.print(assistant.Name(), "error: "+err.Error(), details...)
}

func (l *Printer) OnAssistantLLMParseError(ctx context.Context, assistant assistants.IAssistant, input string, response string, err error) {
	l.print(assistant.Name(), "parse error: "+err.Error(), "response: "+response)
}

func (l *Printer) OnAssistantLLMCallStart(ctx context.Context, agent assistants.IAssistant, llm llms.Model, payload []llms.Message) {
	var buf strings.Builder
	if l.Mode == ModeVerbose {
		llmutils.PrintMessages(&buf, payload)
	}
	l.print(agent.Name(), fmt.Sprintf("llm call: %s model, %d messages", llm.GetName(), len(payload)), buf.String())
}

func (l *Printer) OnAssistantLLMCallEnd(ctx context.Context, agent assistants.IAssistant, llm llms.Model, resp *llms.ContentResponse) {
	in, out, _ := llmutils.CountTokens(resp)
	l.print(agent.Name(), fmt.Sprintf("llm end: %s model, %d choices, %d/%d tokens", llm.GetName(), len(resp.Choices), in, out))
}

func (l *Printer) OnToolStart(ctx context.Context, tool tools.ITool, assistantName, input string) {
	l.print(assistantName, fmt.Sprintf("tool %s: %s", tool.Name(), input))
}

func (l *Printer) OnToolEnd(ctx context.Context, tool tools.ITool, assistantName, input string, output string) {
	l.print(assistantName, fmt.Sprintf("tool %s done", tool.Name()), "output: "+output)
}

func (l *Printer) OnToolError(ctx context.Context, tool tools.ITool, assistantName, input string, err error) {
	l.print(assistantName, fmt.Sprintf("tool %s failed: %s", tool.Name(), err.Error()))
}

func (l *Printer) OnToolNotFound(ctx context.Context, agent assistants.IAssistant, tool string) {
	l.print(agent.Name(), "tool not found: "+tool)
}
