package anthropic

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/mathagent/pkg/llms"
	"github.com/effective-security/x/values"
)

// ProcessMessages returns the chat messages and the system prompt.
// System messages are joined into the system prompt,
// tool responses are sent as user messages with tool result blocks.
func ProcessMessages(messages []llms.Message) ([]anthropic.MessageParam, string, error) {
	var system []string
	chat := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		if len(msg.Parts) == 0 {
			continue
		}

		var (
			blocks []anthropic.ContentBlockParamUnion
			err    error
		)
		switch msg.Role {
		case llms.RoleSystem:
			text, ok := msg.Parts[0].(llms.TextContent)
			if !ok {
				return nil, "", errors.WithMessage(ErrInvalidContentType, "system message")
			}
			system = append(system, text.Text)
			continue
		case llms.RoleHuman, llms.RoleGeneric:
			blocks, err = userBlocks(msg.Parts)
		case llms.RoleAI:
			blocks, err = assistantBlocks(msg.Parts)
		case llms.RoleTool:
			blocks, err = toolResultBlocks(msg.Parts)
		default:
			return nil, "", errors.WithMessagef(ErrUnsupportedMessageType, "%v", msg.Role)
		}
		if err != nil {
			return nil, "", errors.WithMessagef(err, "%s message", msg.Role)
		}
		if len(blocks) == 0 {
			return nil, "", errors.Newf("anthropic: no content in %s message", msg.Role)
		}

		if msg.Role == llms.RoleAI {
			chat = append(chat, anthropic.NewAssistantMessage(blocks...))
		} else {
			chat = append(chat, anthropic.NewUserMessage(blocks...))
		}
	}
	return chat, strings.Join(system, "\n"), nil
}

func userBlocks(parts []llms.ContentPart) ([]anthropic.ContentBlockParamUnion, error) {
	var blocks []anthropic.ContentBlockParamUnion
	for _, part := range parts {
		switch p := part.(type) {
		case llms.TextContent:
			blocks = append(blocks, anthropic.NewTextBlock(p.Text))
		case llms.BinaryContent:
			if !strings.HasPrefix(p.MIMEType, "image/") {
				return nil, errors.Newf("anthropic: unsupported binary content type: %s", p.MIMEType)
			}
			blocks = append(blocks, anthropic.NewImageBlockBase64(p.MIMEType, base64.StdEncoding.EncodeToString(p.Data)))
		default:
			return nil, errors.WithMessagef(ErrUnsupportedContentType, "%T", part)
		}
	}
	return blocks, nil
}

func assistantBlocks(parts []llms.ContentPart) ([]anthropic.ContentBlockParamUnion, error) {
	var blocks []anthropic.ContentBlockParamUnion
	for _, part := range parts {
		switch p := part.(type) {
		case llms.TextContent:
			blocks = append(blocks, anthropic.NewTextBlock(p.Text))
		case llms.ToolCall:
			if p.FunctionCall == nil {
				continue
			}
			var input json.RawMessage
			args := values.StringsCoalesce(p.FunctionCall.Arguments, "{}")
			if err := json.Unmarshal([]byte(args), &input); err != nil {
				return nil, errors.Wrap(err, "anthropic: failed to unmarshal tool call arguments")
			}
			blocks = append(blocks, anthropic.NewToolUseBlock(p.ID, input, p.FunctionCall.Name))
		default:
			return nil, errors.WithMessagef(ErrUnsupportedContentType, "%T", part)
		}
	}
	return blocks, nil
}

func toolResultBlocks(parts []llms.ContentPart) ([]anthropic.ContentBlockParamUnion, error) {
	var blocks []anthropic.ContentBlockParamUnion
	for _, part := range parts {
		resp, ok := part.(llms.ToolCallResponse)
		if !ok {
			return nil, errors.WithMessagef(ErrInvalidContentType, "%T in tool message", part)
		}
		blocks = append(blocks, anthropic.NewToolResultBlock(resp.ToolCallID, resp.Content, false))
	}
	return blocks, nil
}

// ToTools returns the tool definitions of the functions, nil without tools.
func ToTools(tools []llms.Tool) []anthropic.ToolUnionParam {
	if len(tools) == 0 {
		return nil
	}

	list := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		fn := tool.Function
		if fn == nil {
			continue
		}

		schema := anthropic.ToolInputSchemaParam{Type: "object"}
		if fn.Parameters != nil && fn.Parameters.Properties != nil {
			props := map[string]any{}
			for pair := fn.Parameters.Properties.Oldest(); pair != nil; pair = pair.Next() {
				props[pair.Key] = pair.Value
			}
			schema.Properties = props
			if len(fn.Parameters.Required) > 0 {
				schema.Required = fn.Parameters.Required
			}
		}

		list = append(list, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        fn.Name,
				Description: anthropic.String(fn.Description),
				InputSchema: schema,
			},
		})
	}
	return list
}
