package yaml

import (
	"bytes"
	"reflect"
	"strings"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/mathagent/pkg/llmutils"
	"github.com/effective-security/mathagent/pkg/schema"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Encoder decodes YAML produced by a model.
// Format instructions show a fake instance of the type,
// optionally with field descriptions as line comments.
type Encoder struct {
	reqType  reflect.Type
	comments bool
}

// NewEncoder returns an encoder for the type of req.
func NewEncoder(req any) *Encoder {
	return &Encoder{
		reqType: reflect.TypeOf(req),
	}
}

// WithComments adds the jsonschema descriptions as line comments to the example.
func (e *Encoder) WithComments() *Encoder {
	e.comments = true
	return e
}

func (e *Encoder) Marshal(v any) ([]byte, error) {
	if !e.comments {
		return yaml.Marshal(v)
	}
	var node yaml.Node
	if err := node.Encode(v); err != nil {
		return nil, errors.WithStack(err)
	}
	addComments(&node, reflect.TypeOf(v))
	return yaml.Marshal(&node)
}

func (e *Encoder) Unmarshal(bs []byte, ret any) error {
	data := llmutils.BytesTrimBackticks(bs)
	return yaml.Unmarshal(data, ret)
}

// Validate checks the `validate` struct tags.
func (e *Encoder) Validate(req any) error {
	return validate.Struct(req)
}

func (e *Encoder) GetFormatInstructions() string {
	tValue := reflect.New(e.reqType)
	instance := tValue.Interface()
	if f, ok := tValue.Elem().Interface().(schema.Faker); ok {
		instance = f.Fake()
	} else {
		_ = gofakeit.Struct(instance)
	}
	bs, err := e.Marshal(instance)
	if err != nil {
		return ""
	}
	var b bytes.Buffer
	b.WriteString("\nRespond with YAML in the following YAML schema without comments:\n")
	b.WriteString("```yaml\n")
	b.Write(bs)
	b.WriteString("```")
	b.WriteString("\nMake sure to return an instance of the YAML, not the schema itself.\n")
	return b.String()
}

// addComments walks the mapping nodes of a struct and sets the line comments
// from the `comment` tag, or the jsonschema description.
func addComments(node *yaml.Node, t reflect.Type) {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
		addComments(node.Content[0], t)
		return
	}
	if t == nil {
		return
	}

	switch node.Kind {
	case yaml.SequenceNode:
		if t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
			for _, item := range node.Content {
				addComments(item, t.Elem())
			}
		}
	case yaml.MappingNode:
		if t.Kind() != reflect.Struct {
			return
		}
		fields := map[string]reflect.StructField{}
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
			if name == "" {
				name = strings.ToLower(f.Name)
			}
			fields[name] = f
		}
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, value := node.Content[i], node.Content[i+1]
			f, ok := fields[key.Value]
			if !ok {
				continue
			}
			if comment := fieldComment(f); comment != "" {
				// comments on a key of a nested block are rendered after the key
				if value.Kind == yaml.ScalarNode {
					value.LineComment = comment
				} else {
					key.LineComment = comment
				}
			}
			addComments(value, f.Type)
		}
	}
}

func fieldComment(f reflect.StructField) string {
	if c := f.Tag.Get("comment"); c != "" {
		return c
	}
	return extractDescription(f.Tag.Get("jsonschema"))
}

func extractDescription(tag string) string {
	for _, part := range strings.Split(tag, ",") {
		if v, ok := strings.CutPrefix(part, "description="); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
