package chatmodel

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

var (
	// ErrFailedUnmarshalInput is returned by tools and parsers when the model
	// produced input that does not match the schema.
	ErrFailedUnmarshalInput = errors.New("failed to unmarshal input: check the schema and try again")
)

// ContentProvider is implemented by inputs and outputs that have
// a text form for the chat history.
type ContentProvider interface {
	GetContent() string
}

// InputParser is implemented by inputs that parse the raw tool arguments themselves.
type InputParser interface {
	ParseInput(raw string) error
}

// OutputParser is an interface for parsing the output of an LLM call.
type OutputParser[T any] interface {
	// Parse parses the output of an LLM call.
	// If the parser fails to parse the input, it should return ErrFailedUnmarshalInput error.
	Parse(text string) (*T, error)
	// GetFormatInstructions returns a string describing the format of the output.
	GetFormatInstructions() string
	// Type returns the string type key uniquely identifying this class of parser
	Type() string
}

// Stringer is implemented by values with a String method.
type Stringer interface {
	String() string
}

// Stringify returns the text form of s.
func Stringify(s any) string {
	if v, ok := s.(ContentProvider); ok {
		return v.GetContent()
	}
	if v, ok := s.(Stringer); ok {
		return v.String()
	}
	if v, ok := s.(string); ok {
		return v
	}
	bs, _ := json.Marshal(s)
	return string(bs)
}

// FewShotExample is a prompt and completion pair added to the history
// before the user message.
type FewShotExample struct {
	Prompt     string
	Completion string
}

// FewShotExamples is a list of examples.
type FewShotExamples []FewShotExample
