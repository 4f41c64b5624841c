// Package mathassistant provides the math assistant: a react agent
// answering math questions with the Calculator tool.
package mathassistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mathagent/assistants"
	"github.com/effective-security/mathagent/pkg/llmfactory"
	"github.com/effective-security/mathagent/pkg/llms"
	"github.com/effective-security/mathagent/pkg/llmutils"
	"github.com/effective-security/mathagent/tools"
	"github.com/effective-security/mathagent/tools/calculator"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mathagent", "mathassistant")

const (
	// AssistantName is the name of the math assistant.
	AssistantName = "math_assistant"
	// AssistantDescription is the description of the math assistant, when used as a tool.
	AssistantDescription = "Answers math questions with the accurate answer and a brief explanation."

	// MinReasonTokens and MaxReasonTokens are the expected length of Answer.Reason.
	MinReasonTokens = 32
	MaxReasonTokens = 256
)

// Question is the input of the math assistant.
type Question struct {
	Question string `json:"question" yaml:"question" toml:"question" validate:"required" jsonschema:"title=Question,description=The math question."`
}

// GetContent returns the question.
func (q Question) GetContent() string {
	return q.Question
}

// Answer is the output of the math assistant.
type Answer struct {
	Answer string `json:"answer" yaml:"answer" toml:"answer" validate:"required" jsonschema:"title=Answer,description=Accurate answer to the question"`
	Reason string `json:"reason" yaml:"reason" toml:"reason" validate:"required" jsonschema:"title=Reason,description=Brief explanation to the answer"`
}

// GetContent returns the answer.
func (a Answer) GetContent() string {
	return a.Answer
}

// Option configures the math assistant.
type Option func(*config)

type config struct {
	toolModel     llms.Model
	calcOptions   []calculator.Option
	agentOptions  []assistants.Option
	extraTools    []tools.ITool
	assistantName string
}

// WithToolModel sets the model of the Calculator tool,
// by default the model of the assistant.
func WithToolModel(model llms.Model) Option {
	return func(c *config) {
		c.toolModel = model
	}
}

// WithCalculatorOptions sets the options of the Calculator tool.
func WithCalculatorOptions(opts ...calculator.Option) Option {
	return func(c *config) {
		c.calcOptions = append(c.calcOptions, opts...)
	}
}

// WithAssistantOptions sets the options of the assistant runs.
func WithAssistantOptions(opts ...assistants.Option) Option {
	return func(c *config) {
		c.agentOptions = append(c.agentOptions, opts...)
	}
}

// WithTools adds tools to the assistant.
func WithTools(list ...tools.ITool) Option {
	return func(c *config) {
		c.extraTools = append(c.extraTools, list...)
	}
}

// WithName sets the name of the assistant.
func WithName(name string) Option {
	return func(c *config) {
		c.assistantName = name
	}
}

// MathAssistant answers math questions.
type MathAssistant struct {
	*assistants.Assistant[Answer]
	calc *calculator.Calculator
}

// New returns the math assistant on the model.
// The temperature of the assistant is 0 unless set by WithAssistantOptions.
func New(model llms.Model, opts ...Option) (*MathAssistant, error) {
	if model == nil {
		return nil, errors.New("model is required")
	}

	cfg := &config{
		toolModel:     model,
		assistantName: AssistantName,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	calc, err := calculator.New(cfg.toolModel, cfg.calcOptions...)
	if err != nil {
		return nil, err
	}

	// the defaults apply when the question is the user message only, see Tool
	defaults := []assistants.Option{
		assistants.WithTemperature(0),
		assistants.WithPromptInput(map[string]any{"id": "", "question": ""}),
	}
	agentOptions := append(defaults, cfg.agentOptions...)
	agent, err := assistants.NewReactAgent[Answer](model,
		append([]tools.ITool{calc}, cfg.extraTools...),
		Prompt,
		assistants.WithName(cfg.assistantName),
		assistants.WithDescription(AssistantDescription),
		assistants.WithOptions(agentOptions...),
	)
	if err != nil {
		return nil, err
	}

	return &MathAssistant{
		Assistant: agent,
		calc:      calc,
	}, nil
}

// NewFromFactory returns the math assistant with the models configured in the factory
// for the assistant and the Calculator tool.
func NewFromFactory(factory llmfactory.Factory, opts ...Option) (*MathAssistant, error) {
	model, err := factory.AssistantModel(AssistantName)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to create model for %s", AssistantName)
	}
	toolModel, err := factory.ToolModel(calculator.ToolName)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to create model for %s", calculator.ToolName)
	}
	return New(model, append([]Option{WithToolModel(toolModel)}, opts...)...)
}

// Calculator returns the Calculator tool of the assistant.
func (m *MathAssistant) Calculator() *calculator.Calculator {
	return m.calc
}

// Ask answers the question, the id identifies the request in the prompt.
func (m *MathAssistant) Ask(ctx context.Context, id, question string, opts ...assistants.Option) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errors.New("question is required")
	}

	var out Answer
	_, err := m.Run(ctx, &assistants.CallInput{
		Input: FormatQuery(id, question),
		PromptInputs: map[string]any{
			"id":       id,
			"question": question,
		},
		Options: opts,
	}, &out)
	if err != nil {
		return nil, err
	}

	tokens, err := llmutils.TextTokens(out.Reason)
	if err != nil {
		logger.ContextKV(ctx, xlog.DEBUG, "status", "failed_to_count_tokens", "err", err.Error())
	} else if tokens < MinReasonTokens || tokens > MaxReasonTokens {
		logger.ContextKV(ctx, xlog.WARNING,
			"status", "reason_length",
			"id", id,
			"tokens", tokens,
			"reason", slices.StringUpto(out.Reason, 64),
		)
	}
	return &out, nil
}

// Tool returns the assistant as a tool, for other assistants.
// The question of the tool input is the user message.
func (m *MathAssistant) Tool(opts ...assistants.Option) (tools.ITool, error) {
	return assistants.NewAssistantTool[Question, Answer](m.Assistant, opts...)
}

// FormatQuery returns the user message of the request.
func FormatQuery(id, question string) string {
	if id == "" {
		return fmt.Sprintf("Query: %s", question)
	}
	return fmt.Sprintf("ID: %s\nQuery: %s", id, question)
}
