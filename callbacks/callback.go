// Package callbacks provides the assistants.Callback handlers:
// Printer, PackageLogger, Scratchpad and the Fanout to combine them.
package callbacks

import (
	"context"

	"github.com/effective-security/mathagent/assistants"
	"github.com/effective-security/mathagent/pkg/llms"
	"github.com/effective-security/mathagent/tools"
)

var (
	_ assistants.Callback = (*Fanout)(nil)
	_ tools.Callback      = (*Fanout)(nil)
)

// Mode is the detail level of the printed events.
type Mode int

const (
	// ModeDefault prints one line per event.
	ModeDefault Mode = iota
	// ModeVerbose adds the LLM payloads, results and tool outputs.
	ModeVerbose
)

// Fanout forwards the events to each of the callbacks, in order.
// An empty Fanout discards the events.
type Fanout struct {
	callbacks []assistants.Callback
}

// NewFanout returns a Fanout of the callbacks, nil callbacks are skipped.
func NewFanout(callbacks ...assistants.Callback) *Fanout {
	f := &Fanout{}
	for _, cb := range callbacks {
		f.Add(cb)
	}
	return f
}

// Add appends the callback.
func (l *Fanout) Add(callback assistants.Callback) {
	if callback != nil {
		l.callbacks = append(l.callbacks, callback)
	}
}

func (l *Fanout) each(fn func(assistants.Callback)) {
	for _, cb := range l.callbacks {
		fn(cb)
	}
}

func (l *Fanout) OnAssistantStart(ctx context.Context, assistant assistants.IAssistant, input string) {
	l.each(func(cb assistants.Callback) { cb.OnAssistantStart(ctx, assistant, input) })
}

func (l *Fanout) OnAssistantEnd(ctx context.Context, assistant assistants.IAssistant, input string, resp *llms.ContentResponse, messages []llms.Message) {
	l.each(func(cb assistants.Callback) { cb.OnAssistantEnd(ctx, assistant, input, resp, messages) })
}

func (l *Fanout) OnAssistantError(ctx context.Context, assistant assistants.IAssistant, input string, err error, messages []llms.Message) {
	l.each(func(cb assistants.Callback) { cb.OnAssistantError(ctx, assistant, input, err, messages) })
}

func (l *Fanout) OnAssistantLLMParseError(ctx context.Context, assistant assistants.IAssistant, input string, response string, err error) {
	l.each(func(cb assistants.Callback) { cb.OnAssistantLLMParseError(ctx, assistant, input, response, err) })
}

func (l *Fanout) OnAssistantLLMCallStart(ctx context.Context, agent assistants.IAssistant, llm llms.Model, payload []llms.Message) {
	l.each(func(cb assistants.Callback) { cb.OnAssistantLLMCallStart(ctx, agent, llm, payload) })
}

func (l *Fanout) OnAssistantLLMCallEnd(ctx context.Context, agent assistants.IAssistant, llm llms.Model, resp *llms.ContentResponse) {
	l.each(func(cb assistants.Callback) { cb.OnAssistantLLMCallEnd(ctx, agent, llm, resp) })
}

func (l *Fanout) OnToolStart(ctx context.Context, tool tools.ITool, assistantName, input string) {
	l.each(func(cb assistants.Callback) { cb.OnToolStart(ctx, tool, assistantName, input) })
}

func (l *Fanout) OnToolEnd(ctx context.Context, tool tools.ITool, assistantName, input string, output string) {
	l.each(func(cb assistants.Callback) { cb.OnToolEnd(ctx, tool, assistantName, input, output) })
}

func (l *Fanout) OnToolError(ctx context.Context, tool tools.ITool, assistantName, input string, err error) {
	l.each(func(cb assistants.Callback) { cb.OnToolError(ctx, tool, assistantName, input, err) })
}

func (l *Fanout) OnToolNotFound(ctx context.Context, agent assistants.IAssistant, tool string) {
	l.each(func(cb assistants.Callback) { cb.OnToolNotFound(ctx, agent, tool) })
}
