package genaiutils

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mathagent/pkg/llms"
	"github.com/effective-security/mathagent/pkg/schema"
	"github.com/invopop/jsonschema"
	"google.golang.org/genai"
)

// ConvertTools converts function tools to genai tools,
// one declaration per tool.
func ConvertTools(tools []llms.Tool) ([]*genai.Tool, error) {
	genaiTools := make([]*genai.Tool, 0, len(tools))
	for i, tool := range tools {
		if tool.Type != "function" || tool.Function == nil {
			return nil, errors.Errorf("tool [%d]: unsupported type %q, want 'function'", i, tool.Type)
		}

		decl := &genai.FunctionDeclaration{
			Name:        tool.Function.Name,
			Description: tool.Function.Description,
		}
		if tool.Function.Parameters != nil {
			params, err := ConvertJSONSchemaDefinition(tool.Function.Parameters)
			if err != nil {
				return nil, errors.Wrapf(err, "tool [%d]", i)
			}
			decl.Parameters = params
		}

		genaiTools = append(genaiTools, &genai.Tool{
			FunctionDeclarations: []*genai.FunctionDeclaration{decl},
		})
	}
	return genaiTools, nil
}

// ConvertResponseFormatJSONSchema converts a json_schema response format to a genai.Schema.
func ConvertResponseFormatJSONSchema(js *schema.ResponseFormatJSONSchema) *genai.Schema {
	if js == nil {
		return nil
	}
	return convertProperty(js.Schema)
}

func convertProperty(p *schema.ResponseFormatJSONSchemaProperty) *genai.Schema {
	if p == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        ConvertJSONSchemaType(p.Type),
		Title:       p.Title,
		Description: p.Description,
		Required:    p.Required,
		Enum:        enumStrings(p.Enum),
	}
	if len(p.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(p.Properties))
		for k, v := range p.Properties {
			out.Properties[k] = convertProperty(v)
		}
	}
	if p.Items != nil {
		out.Items = convertProperty(p.Items)
	}
	return out
}

// ConvertJSONSchemaDefinition converts a jsonschema.Schema to a genai.Schema.
func ConvertJSONSchemaDefinition(js *jsonschema.Schema) (*genai.Schema, error) {
	if js == nil {
		return nil, nil
	}
	if js.Ref != "" {
		return nil, errors.Errorf("unresolved reference %q", js.Ref)
	}

	out := &genai.Schema{
		Type:        ConvertJSONSchemaType(js.Type),
		Title:       js.Title,
		Description: js.Description,
		Required:    js.Required,
		Enum:        enumStrings(js.Enum),
	}

	if js.Properties != nil {
		out.Properties = make(map[string]*genai.Schema, js.Properties.Len())
		for pair := js.Properties.Oldest(); pair != nil; pair = pair.Next() {
			prop, err := ConvertJSONSchemaDefinition(pair.Value)
			if err != nil {
				return nil, errors.Wrapf(err, "property [%s]", pair.Key)
			}
			out.Properties[pair.Key] = prop
			out.PropertyOrdering = append(out.PropertyOrdering, pair.Key)
		}
	}

	if js.Items != nil {
		items, err := ConvertJSONSchemaDefinition(js.Items)
		if err != nil {
			return nil, errors.Wrap(err, "items")
		}
		out.Items = items
	}
	return out, nil
}

// ConvertJSONSchemaType converts a JSON schema type name to a genai.Type.
func ConvertJSONSchemaType(dt string) genai.Type {
	switch dt {
	case "object":
		return genai.TypeObject
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	default:
		return genai.TypeUnspecified
	}
}

func enumStrings(vals []any) []string {
	if len(vals) == 0 {
		return nil
	}
	res := make([]string, 0, len(vals))
	for _, v := range vals {
		res = append(res, fmt.Sprint(v))
	}
	return res
}

// Float32Ptr returns nil for zero, so the API default applies.
func Float32Ptr(f float32) *float32 {
	if f == 0 {
		return nil
	}
	return &f
}

// Int32Ptr returns nil for zero, so the API default applies.
func Int32Ptr(i int32) *int32 {
	if i == 0 {
		return nil
	}
	return &i
}
