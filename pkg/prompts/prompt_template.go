package prompts

import (
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mathagent/pkg/llms"
)

// PromptTemplate contains common fields for all prompt templates.
type PromptTemplate struct {
	// Template is the prompt template.
	Template string

	// InputVariables is a list of variable names the prompt template expects.
	InputVariables []string

	// TemplateFormat is the format of the prompt template.
	TemplateFormat TemplateFormat

	// PartialVariables represents a map of variable names to values or functions
	// that return values. If the value is a function, it will be called when the
	// prompt template is rendered.
	PartialVariables map[string]any
}

// Option configures the PromptTemplate.
type Option func(*PromptTemplate)

// WithTemplateFormat sets the template format.
func WithTemplateFormat(format TemplateFormat) Option {
	return func(p *PromptTemplate) {
		p.TemplateFormat = format
	}
}

// WithPartialVariables sets values used for variables missing in Format.
func WithPartialVariables(vals map[string]any) Option {
	return func(p *PromptTemplate) {
		p.PartialVariables = vals
	}
}

// NewPromptTemplate returns a new prompt template.
// The default format is f-string, with {name} placeholders.
func NewPromptTemplate(template string, inputVars []string, opts ...Option) PromptTemplate {
	p := PromptTemplate{
		Template:       template,
		InputVariables: inputVars,
		TemplateFormat: TemplateFormatFString,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// Format formats the prompt template and returns a string value.
func (p PromptTemplate) Format(values map[string]any) (string, error) {
	resolved, err := p.resolveValues(values)
	if err != nil {
		return "", err
	}
	return RenderTemplate(p.Template, p.TemplateFormat, resolved)
}

// FormatPrompt formats the prompt template and returns a string prompt value.
func (p PromptTemplate) FormatPrompt(values map[string]any) (llms.PromptValue, error) {
	f, err := p.Format(values)
	if err != nil {
		return nil, err
	}
	return StringPromptValue(f), nil
}

// GetInputVariables returns the input variables the prompt expects.
func (p PromptTemplate) GetInputVariables() []string {
	return p.InputVariables
}

// Validate checks that the template renders with all input and partial variables set.
func (p PromptTemplate) Validate() error {
	vars := slices.Clone(p.InputVariables)
	for k := range p.PartialVariables {
		vars = append(vars, k)
	}
	return CheckValidTemplate(p.Template, p.TemplateFormat, vars)
}

func (p PromptTemplate) resolveValues(values map[string]any) (map[string]any, error) {
	resolved := make(map[string]any, len(values)+len(p.PartialVariables))
	for variable, value := range p.PartialVariables {
		switch value := value.(type) {
		case string:
			resolved[variable] = value
		case func() string:
			resolved[variable] = value()
		default:
			return nil, errors.Newf("invalid partial variable type %T for %q", value, variable)
		}
	}
	for variable, value := range values {
		resolved[variable] = value
	}
	for _, v := range p.InputVariables {
		if _, ok := resolved[v]; !ok {
			return nil, errors.Wrapf(ErrMissingVariable, "%q", v)
		}
	}
	return resolved, nil
}
