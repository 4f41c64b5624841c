package llmutils

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/effective-security/mathagent/pkg/llms"
	"github.com/effective-security/x/values"
)

// MergeInputs returns a copy of defaults overridden by inputs.
func MergeInputs(defaults map[string]any, inputs map[string]any) map[string]any {
	res := make(map[string]any, len(defaults)+len(inputs))
	maps.Copy(res, defaults)
	maps.Copy(res, inputs)
	return res
}

// PrintMessages writes a line per part, prefixed by the role of the message.
// With filter only the messages of these roles are printed.
func PrintMessages(w io.Writer, msgs []llms.Message, filter ...llms.Role) {
	for _, m := range msgs {
		if len(filter) > 0 && !slices.Contains(filter, m.Role) {
			continue
		}
		fmt.Fprintf(w, "%s: ", strings.ToUpper(string(m.Role)))
		for _, p := range m.Parts {
			switch v := p.(type) {
			case llms.TextContent:
				fmt.Fprintln(w, v.Text)
			case llms.ImageURLContent:
				fmt.Fprintln(w, v.URL)
			case llms.BinaryContent:
				fmt.Fprintf(w, "Binary MIME=%s, size=%d\n", v.MIMEType, len(v.Data))
			case llms.ToolCall:
				if v.FunctionCall != nil {
					fmt.Fprintf(w, "ToolCall ID=%s, Func=%s(%s)\n", v.ID, v.FunctionCall.Name, v.FunctionCall.Arguments)
				}
			case llms.ToolCallResponse:
				fmt.Fprintf(w, "ToolCallResponse ID=%s, Name=%s, Content=%s\n", v.ToolCallID, v.Name, v.Content)
			}
		}
	}
}

// CountMessagesContentSize returns the bytes of the roles and parts sent to the model.
func CountMessagesContentSize(msgs []llms.Message) uint64 {
	var size int
	for _, m := range msgs {
		size += len(m.Role)
		for _, p := range m.Parts {
			size += partSize(p)
		}
	}
	return uint64(size)
}

// CountResponseContentSize returns the bytes received from the model.
func CountResponseContentSize(resp *llms.ContentResponse) uint64 {
	var size int
	for _, c := range resp.Choices {
		size += len(c.Content) + len(c.ReasoningContent)
		for _, tc := range c.ToolCalls {
			size += partSize(tc)
		}
	}
	return uint64(size)
}

func partSize(p llms.ContentPart) int {
	switch v := p.(type) {
	case llms.TextContent:
		return len(v.Text)
	case llms.ImageURLContent:
		return len(v.URL) + len(v.Detail)
	case llms.BinaryContent:
		return len(v.MIMEType) + len(v.Data)
	case llms.ToolCall:
		n := len(v.ID) + len(v.Type)
		if v.FunctionCall != nil {
			n += len(v.FunctionCall.Name) + len(v.FunctionCall.Arguments)
		}
		return n
	case llms.ToolCallResponse:
		return len(v.ToolCallID) + len(v.Name) + len(v.Content)
	}
	return 0
}

// CountTokens returns the token usage the provider reported in GenerationInfo.
func CountTokens(resp *llms.ContentResponse) (in, out, total int64) {
	for _, c := range resp.Choices {
		info := values.MapAny(c.GenerationInfo)
		in += info.Int64("InputTokens")
		out += info.Int64("OutputTokens")
		total += info.Int64("TotalTokens")
	}
	return
}

// FindLastUserQuestion returns the first text of the last human message,
// or empty when that message has no text.
func FindLastUserQuestion(messages []llms.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != llms.RoleHuman {
			continue
		}
		for _, p := range messages[i].Parts {
			if text, ok := p.(llms.TextContent); ok {
				return text.Text
			}
		}
		return ""
	}
	return ""
}
