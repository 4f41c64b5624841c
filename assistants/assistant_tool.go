package assistants

import (
	"context"

	"github.com/effective-security/mathagent/chatmodel"
	"github.com/effective-security/mathagent/tools"
)

// NewAssistantTool returns a tool running the assistant,
// to be used by another assistant. The content of the tool input I
// is the user message, and the tool output is the content of O.
func NewAssistantTool[I chatmodel.ContentProvider, O chatmodel.ContentProvider](assistant TypeableAssistant[O], options ...Option) (*tools.FuncTool[I, O], error) {
	return tools.FromFunction(assistant.Name(), assistant.Description(), func(ctx context.Context, in *I) (*O, error) {
		var out O
		_, err := assistant.Run(ctx, &CallInput{
			Input:   (*in).GetContent(),
			Options: options,
		}, &out)
		if err != nil {
			return nil, err
		}
		return &out, nil
	})
}
