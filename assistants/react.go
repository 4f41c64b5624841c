package assistants

import (
	"github.com/cockroachdb/errors"
	"github.com/effective-security/mathagent/chatmodel"
	"github.com/effective-security/mathagent/pkg/llms"
	"github.com/effective-security/mathagent/pkg/prompts"
	"github.com/effective-security/mathagent/tools"
	"github.com/effective-security/xlog"
)

// AgentOption configures the agent built by NewReactAgent.
type AgentOption func(*agentConfig)

type agentConfig struct {
	name        string
	description string
	format      prompts.TemplateFormat
	inputVars   []string
	options     []Option
}

// WithName sets the name of the agent.
func WithName(name string) AgentOption {
	return func(c *agentConfig) {
		c.name = name
	}
}

// WithDescription sets the description of the agent.
func WithDescription(description string) AgentOption {
	return func(c *agentConfig) {
		c.description = description
	}
}

// WithPromptFormat sets the template format of the prompt, f-string by default.
func WithPromptFormat(format prompts.TemplateFormat) AgentOption {
	return func(c *agentConfig) {
		c.format = format
	}
}

// WithPromptInputVariables sets the variables of a go-template or jinja2 prompt,
// the variables of an f-string prompt are found in the prompt.
func WithPromptInputVariables(vars ...string) AgentOption {
	return func(c *agentConfig) {
		c.inputVars = vars
	}
}

// WithOptions adds the Assistant options.
func WithOptions(opts ...Option) AgentOption {
	return func(c *agentConfig) {
		c.options = append(c.options, opts...)
	}
}

// NewReactAgent returns an Assistant that calls the tools until it can answer in the format of O.
// The prompt is the system prompt template, its {name} placeholders are the prompt inputs of the runs.
func NewReactAgent[O chatmodel.ContentProvider](model llms.Model, list []tools.ITool, prompt string, opts ...AgentOption) (*Assistant[O], error) {
	if model == nil {
		return nil, errors.New("model is required")
	}

	cfg := &agentConfig{
		name:        "react_agent",
		description: "An AI assistant that uses tools to answer questions.",
		format:      prompts.TemplateFormatFString,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	inputVars := cfg.inputVars
	if cfg.format == prompts.TemplateFormatFString {
		vars, err := prompts.FStringVariables(prompt)
		if err != nil {
			return nil, errors.WithMessagef(err, "agent %s: invalid prompt", cfg.name)
		}
		inputVars = vars
	}

	tmpl := prompts.NewPromptTemplate(prompt, inputVars, prompts.WithTemplateFormat(cfg.format))
	if err := tmpl.Validate(); err != nil {
		return nil, errors.WithMessagef(err, "agent %s: invalid prompt", cfg.name)
	}

	agent := NewAssistant[O](model, tmpl, cfg.options...).
		WithName(cfg.name).
		WithDescription(cfg.description).
		WithTools(list...)
	if agent.OutputParser == nil {
		return nil, errors.Newf("agent %s: unsupported output mode %q", cfg.name, agent.cfg.Mode)
	}

	logger.KV(xlog.DEBUG,
		"status", "created",
		"agent", cfg.name,
		"model", model.GetName(),
		"tools", len(list),
		"prompt_inputs", inputVars,
	)
	return agent, nil
}
