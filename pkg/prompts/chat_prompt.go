package prompts

import (
	"strings"

	"github.com/effective-security/mathagent/pkg/llms"
	"github.com/effective-security/mathagent/pkg/llmutils"
)

var (
	_ llms.PromptValue = ChatPromptValue{}
	_ llms.PromptValue = StringPromptValue("")
)

// ChatPromptValue is a prompt value that is a list of chat messages.
type ChatPromptValue []llms.Message

// String returns the chat message slice as a buffer string.
func (v ChatPromptValue) String() string {
	var buf strings.Builder
	llmutils.PrintMessages(&buf, v)
	return buf.String()
}

// Messages returns the ChatMessage slice.
func (v ChatPromptValue) Messages() []llms.Message {
	return v
}

// StringPromptValue is a prompt value that is a string.
type StringPromptValue string

func (v StringPromptValue) String() string {
	return string(v)
}

// Messages returns a single human message with the string.
func (v StringPromptValue) Messages() []llms.Message {
	return []llms.Message{
		llms.MessageFromTextParts(llms.RoleHuman, string(v)),
	}
}

// FormatPrompter is implemented by templates that format values into a prompt value.
type FormatPrompter interface {
	FormatPrompt(values map[string]any) (llms.PromptValue, error)
	GetInputVariables() []string
}

var (
	_ FormatPrompter = PromptTemplate{}
	_ FormatPrompter = ChatPromptTemplate{}
)

// MessageFormatter formats values into chat messages.
type MessageFormatter interface {
	FormatMessages(values map[string]any) ([]llms.Message, error)
	GetInputVariables() []string
}

// MessagePromptTemplate is a prompt template producing a message of the given role.
type MessagePromptTemplate struct {
	Role   llms.Role
	Prompt PromptTemplate
}

// NewSystemMessagePromptTemplate creates a system message template.
func NewSystemMessagePromptTemplate(template string, inputVariables []string, opts ...Option) MessagePromptTemplate {
	return MessagePromptTemplate{Role: llms.RoleSystem, Prompt: NewPromptTemplate(template, inputVariables, opts...)}
}

// NewHumanMessagePromptTemplate creates a human message template.
func NewHumanMessagePromptTemplate(template string, inputVariables []string, opts ...Option) MessagePromptTemplate {
	return MessagePromptTemplate{Role: llms.RoleHuman, Prompt: NewPromptTemplate(template, inputVariables, opts...)}
}

// NewAIMessagePromptTemplate creates an AI message template.
func NewAIMessagePromptTemplate(template string, inputVariables []string, opts ...Option) MessagePromptTemplate {
	return MessagePromptTemplate{Role: llms.RoleAI, Prompt: NewPromptTemplate(template, inputVariables, opts...)}
}

// FormatMessages formats the template into a single message.
func (p MessagePromptTemplate) FormatMessages(values map[string]any) ([]llms.Message, error) {
	text, err := p.Prompt.Format(values)
	if err != nil {
		return nil, err
	}
	return []llms.Message{llms.MessageFromTextParts(p.Role, text)}, nil
}

// GetInputVariables returns the input variables the prompt expects.
func (p MessagePromptTemplate) GetInputVariables() []string {
	return p.Prompt.GetInputVariables()
}

// ChatPromptTemplate is a prompt template for a sequence of chat messages.
type ChatPromptTemplate struct {
	Messages []MessageFormatter
}

// NewChatPromptTemplate creates a new chat prompt template from a list of message formatters.
func NewChatPromptTemplate(messages []MessageFormatter) ChatPromptTemplate {
	return ChatPromptTemplate{Messages: messages}
}

// FormatPrompt formats the messages into a chat prompt value.
func (p ChatPromptTemplate) FormatPrompt(values map[string]any) (llms.PromptValue, error) {
	var res ChatPromptValue
	for _, m := range p.Messages {
		msgs, err := m.FormatMessages(values)
		if err != nil {
			return nil, err
		}
		res = append(res, msgs...)
	}
	return res, nil
}

// GetInputVariables returns the union of the messages input variables.
func (p ChatPromptTemplate) GetInputVariables() []string {
	var vars []string
	seen := map[string]bool{}
	for _, m := range p.Messages {
		for _, v := range m.GetInputVariables() {
			if !seen[v] {
				seen[v] = true
				vars = append(vars, v)
			}
		}
	}
	return vars
}
