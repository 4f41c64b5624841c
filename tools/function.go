package tools

import (
	"context"
	"reflect"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mathagent/chatmodel"
	jsonenc "github.com/effective-security/mathagent/encoding/json"
	"github.com/invopop/jsonschema"
)

// Func is the function wrapped by a tool.
type Func[I any, O any] func(context.Context, *I) (*O, error)

// FuncTool is a Tool built from a function,
// its parameters schema is reflected from I.
type FuncTool[I any, O any] struct {
	name        string
	description string
	fn          Func[I, O]
	enc         *jsonenc.Encoder
	params      *jsonschema.Schema
	isStruct    bool
	// index of the only field of I when it is a string, or -1
	textField int
}

var _ Tool[chatmodel.InputRequest, chatmodel.OutputResult] = (*FuncTool[chatmodel.InputRequest, chatmodel.OutputResult])(nil)

// FromFunction returns a tool with the name and description, calling fn.
//
// The model sends the arguments as JSON of I. When I has exactly one field
// and it is a string, a bare text input is accepted as the value of that field.
func FromFunction[I any, O any](name, description string, fn Func[I, O]) (*FuncTool[I, O], error) {
	if name == "" {
		return nil, errors.New("tool name is required")
	}
	if fn == nil {
		return nil, errors.Newf("tool %s: function is required", name)
	}

	var in I
	enc, err := jsonenc.NewEncoder(in)
	if err != nil {
		return nil, errors.WithMessagef(err, "tool %s: failed to create schema", name)
	}

	typ := reflect.TypeOf(in)
	return &FuncTool[I, O]{
		name:        name,
		description: description,
		fn:          fn,
		enc:         enc,
		params:      enc.Schema().Parameters,
		isStruct:    typ != nil && typ.Kind() == reflect.Struct,
		textField:   singleStringField(typ),
	}, nil
}

// Name returns the name of the tool.
func (t *FuncTool[I, O]) Name() string {
	return t.name
}

// Description returns the description of the tool.
func (t *FuncTool[I, O]) Description() string {
	return t.description
}

// Parameters returns the schema of I.
func (t *FuncTool[I, O]) Parameters() *jsonschema.Schema {
	return t.params
}

// Run calls the function.
func (t *FuncTool[I, O]) Run(ctx context.Context, in *I) (*O, error) {
	return t.fn(ctx, in)
}

// Call parses the input, calls the function and returns the text form of the output.
func (t *FuncTool[I, O]) Call(ctx context.Context, input string) (string, error) {
	in, err := t.ParseInput(input)
	if err != nil {
		return "", err
	}
	out, err := t.fn(ctx, in)
	if err != nil {
		return "", err
	}
	if out == nil {
		return "", nil
	}
	return chatmodel.Stringify(out), nil
}

// ParseInput decodes the tool arguments sent by the model.
// Errors are marked with chatmodel.ErrFailedUnmarshalInput.
func (t *FuncTool[I, O]) ParseInput(input string) (*I, error) {
	in := new(I)
	if parser, ok := any(in).(chatmodel.InputParser); ok {
		if err := parser.ParseInput(input); err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "tool %s: invalid input", t.name), chatmodel.ErrFailedUnmarshalInput)
		}
		return in, nil
	}

	trimmed := strings.TrimSpace(input)
	if t.textField >= 0 && trimmed != "" && !strings.Contains(trimmed, "{") {
		if unquoted, err := strconv.Unquote(trimmed); err == nil {
			trimmed = unquoted
		}
		reflect.ValueOf(in).Elem().Field(t.textField).SetString(trimmed)
	} else if err := t.enc.Unmarshal([]byte(trimmed), in); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "tool %s: invalid input", t.name), chatmodel.ErrFailedUnmarshalInput)
	}

	if t.isStruct {
		if err := t.enc.Validate(in); err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "tool %s: invalid input", t.name), chatmodel.ErrFailedUnmarshalInput)
		}
	}
	return in, nil
}

func singleStringField(typ reflect.Type) int {
	if typ == nil || typ.Kind() != reflect.Struct {
		return -1
	}
	idx := -1
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		if !f.IsExported() {
			continue
		}
		if f.Type.Kind() != reflect.String || idx != -1 {
			return -1
		}
		idx = i
	}
	return idx
}
