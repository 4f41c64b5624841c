package prompts

import (
	"strings"

	"github.com/cockroachdb/errors"
	lcprompts "github.com/tmc/langchaingo/prompts"
)

// ErrInvalidTemplateFormat is returned when the template format is not supported.
var ErrInvalidTemplateFormat = lcprompts.ErrInvalidTemplateFormat

// ErrMissingVariable is returned when a template refers to a variable that has no value.
var ErrMissingVariable = errors.New("missing template variable")

// TemplateFormat is the format of the template.
type TemplateFormat = lcprompts.TemplateFormat

const (
	// TemplateFormatFString is Python style {name} placeholders,
	// {{ and }} are literal braces.
	TemplateFormatFString = lcprompts.TemplateFormatFString
	// TemplateFormatGoTemplate is text/template with sprig functions.
	TemplateFormatGoTemplate = lcprompts.TemplateFormatGoTemplate
	// TemplateFormatJinja2 is jinja2 rendered by gonja, without file system access.
	TemplateFormatJinja2 = lcprompts.TemplateFormatJinja2
)

// messages of the renderers for a variable without value
var missingVariableMessages = []string{
	"args not defined: ",
	"map has no entry for key ",
}

// RenderTemplate renders the template with the given values,
// the default format is f-string.
func RenderTemplate(tmpl string, format TemplateFormat, values map[string]any) (string, error) {
	if format == "" {
		format = TemplateFormatFString
	}
	out, err := lcprompts.RenderTemplate(tmpl, format, values)
	if err != nil {
		return "", markMissingVariable(err)
	}
	return out, nil
}

// CheckValidTemplate renders the template with placeholder values
// for every input variable.
func CheckValidTemplate(tmpl string, format TemplateFormat, inputVariables []string) error {
	if format == "" {
		format = TemplateFormatFString
	}
	if err := lcprompts.CheckValidTemplate(tmpl, format, inputVariables); err != nil {
		return markMissingVariable(err)
	}
	return nil
}

// FStringVariables returns the names of the {name} placeholders in order
// of first appearance.
func FStringVariables(tmpl string) ([]string, error) {
	var names []string
	values := map[string]any{}
	for {
		_, err := lcprompts.RenderTemplate(tmpl, TemplateFormatFString, values)
		if err == nil {
			return names, nil
		}
		name, ok := strings.CutPrefix(err.Error(), missingVariableMessages[0])
		if _, seen := values[name]; !ok || seen {
			return nil, errors.Wrap(err, "invalid f-string template")
		}
		values[name] = ""
		names = append(names, name)
	}
}

func markMissingVariable(err error) error {
	msg := err.Error()
	for _, m := range missingVariableMessages {
		if strings.Contains(msg, m) {
			return errors.Mark(err, ErrMissingVariable)
		}
	}
	return err
}
