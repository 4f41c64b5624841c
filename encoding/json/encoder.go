package json

import (
	"bytes"
	"encoding/json"
	"reflect"

	"github.com/bububa/ljson"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/mathagent/pkg/llmutils"
	"github.com/effective-security/mathagent/pkg/schema"
	"github.com/go-playground/validator/v10"
	"github.com/kaptinlin/jsonrepair"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Encoder decodes JSON produced by a model.
// It accepts prose around the JSON, code fences and broken JSON that can be repaired.
type Encoder struct {
	schema *schema.Schema
}

// NewEncoder returns an encoder for the type of req.
func NewEncoder(req any) (*Encoder, error) {
	s, err := schema.New(reflect.TypeOf(req))
	if err != nil {
		return nil, err
	}
	return &Encoder{
		schema: s,
	}, nil
}

func (e *Encoder) Marshal(req any) ([]byte, error) {
	return json.Marshal(req)
}

// Unmarshal decodes bs into ret,
// if lenient decoding fails the JSON is repaired and decoded again.
func (e *Encoder) Unmarshal(bs []byte, ret any) error {
	data := llmutils.CleanJSON(bs)
	err := ljson.Unmarshal(data, ret)
	if err == nil {
		return nil
	}

	repaired, rerr := jsonrepair.JSONRepair(string(data))
	if rerr != nil {
		return errors.WithStack(err)
	}
	if err2 := ljson.Unmarshal([]byte(repaired), ret); err2 != nil {
		return errors.WithStack(err2)
	}
	return nil
}

// Validate checks the `validate` struct tags.
func (e *Encoder) Validate(req any) error {
	return validate.Struct(req)
}

func (e *Encoder) GetFormatInstructions() string {
	var b bytes.Buffer
	b.WriteString("\nRespond with JSON in the following JSON schema:\n")
	b.WriteString("```json\n")
	b.WriteString(e.schema.String())
	b.WriteString("\n```")
	b.WriteString("\nMake sure to return an instance of the JSON, not the schema itself.\n")
	b.WriteString("Use the exact field names as they are defined in the schema.\n")
	return b.String()
}

// Schema returns the schema of the type.
func (e *Encoder) Schema() *schema.Schema {
	return e.schema
}
