package encoding

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mathagent/chatmodel"
)

// TypedOutputParser parses output from an LLM into Go structs.
// The schema of T, reflected from its json and jsonschema tags,
// is given to the model as format instructions.
type TypedOutputParser[T any] struct {
	enc      SchemaEncoder
	name     string
	validate bool
}

var _ chatmodel.OutputParser[any] = (*TypedOutputParser[any])(nil)

// NewTypedOutputParser creates an output parser for T in the given mode.
func NewTypedOutputParser[T any](sourceType T, mode Mode) (*TypedOutputParser[T], error) {
	enc, err := PredefinedSchemaEncoder(mode, sourceType)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create encoder")
	}

	return &TypedOutputParser[T]{
		enc:  enc,
		name: fmt.Sprintf("%T parser", sourceType),
	}, nil
}

// WithValidation enables validation of the `validate` struct tags after decoding.
func (p *TypedOutputParser[T]) WithValidation(validate bool) *TypedOutputParser[T] {
	p.validate = validate
	return p
}

// Parse parses the output of an LLM call.
// Decoding and validation errors are marked with chatmodel.ErrFailedUnmarshalInput.
func (p *TypedOutputParser[T]) Parse(text string) (*T, error) {
	var target T
	if err := p.enc.Unmarshal([]byte(text), &target); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to decode"), chatmodel.ErrFailedUnmarshalInput)
	}
	if validator, ok := p.enc.(Validator); ok && p.validate {
		if err := validator.Validate(&target); err != nil {
			return nil, errors.Mark(errors.Wrap(err, "failed to validate"), chatmodel.ErrFailedUnmarshalInput)
		}
	}
	return &target, nil
}

// GetFormatInstructions returns a string describing the format of the output.
func (p *TypedOutputParser[T]) GetFormatInstructions() string {
	return p.enc.GetFormatInstructions()
}

// Type returns the string type key uniquely identifying this class of parser
func (p *TypedOutputParser[T]) Type() string {
	return p.name
}

// Encoder returns the underlying encoder.
func (p *TypedOutputParser[T]) Encoder() SchemaEncoder {
	return p.enc
}
