package encoding

import (
	"strings"

	"github.com/effective-security/mathagent/chatmodel"
)

// TextOutputParser returns the model reply as text without surrounding whitespace.
type TextOutputParser struct{}

// NewTextOutputParser returns a TextOutputParser.
func NewTextOutputParser() chatmodel.OutputParser[chatmodel.String] {
	return TextOutputParser{}
}

// Parse never fails.
func (TextOutputParser) Parse(text string) (*chatmodel.String, error) {
	return chatmodel.NewString(strings.TrimSpace(text)), nil
}

// GetFormatInstructions is empty, the prompt describes the format.
func (TextOutputParser) GetFormatInstructions() string {
	return ""
}

func (TextOutputParser) Type() string {
	return "text_parser"
}
