package genaiutils

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/effective-security/mathagent/pkg/llms"
	"github.com/effective-security/mathagent/pkg/schema"
	"github.com/invopop/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

const calculatorParams = `{
	"description": "Calculator input",
	"properties": {
		"question": {
			"type": "string",
			"description": "Math question"
		},
		"precision": {
			"type": "string",
			"enum": ["exact", "approximate"]
		},
		"values": {
			"type": "array",
			"items": {"type": "number"}
		}
	},
	"type": "object",
	"required": ["question"]
}`

func TestConvertJSONSchemaDefinition(t *testing.T) {
	t.Parallel()

	var sc jsonschema.Schema
	require.NoError(t, json.Unmarshal([]byte(calculatorParams), &sc))

	res, err := ConvertJSONSchemaDefinition(&sc)
	require.NoError(t, err)
	assert.Equal(t, genai.TypeObject, res.Type)
	assert.Equal(t, "Calculator input", res.Description)
	assert.Equal(t, []string{"question"}, res.Required)
	assert.Equal(t, []string{"question", "precision", "values"}, res.PropertyOrdering)
	require.Len(t, res.Properties, 3)
	assert.Equal(t, genai.TypeString, res.Properties["question"].Type)
	assert.Equal(t, []string{"exact", "approximate"}, res.Properties["precision"].Enum)
	assert.Equal(t, genai.TypeArray, res.Properties["values"].Type)
	assert.Equal(t, genai.TypeNumber, res.Properties["values"].Items.Type)

	res, err = ConvertJSONSchemaDefinition(nil)
	require.NoError(t, err)
	assert.Nil(t, res)

	_, err = ConvertJSONSchemaDefinition(&jsonschema.Schema{Ref: "#/$defs/missing"})
	assert.EqualError(t, err, `unresolved reference "#/$defs/missing"`)
}

func TestConvertJSONSchemaType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected genai.Type
	}{
		{"object", genai.TypeObject},
		{"string", genai.TypeString},
		{"number", genai.TypeNumber},
		{"integer", genai.TypeInteger},
		{"boolean", genai.TypeBoolean},
		{"array", genai.TypeArray},
		{"null", genai.TypeUnspecified},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, ConvertJSONSchemaType(tt.input), tt.input)
	}
}

func TestConvertTools(t *testing.T) {
	t.Parallel()

	var sc jsonschema.Schema
	require.NoError(t, json.Unmarshal([]byte(calculatorParams), &sc))

	res, err := ConvertTools([]llms.Tool{
		{
			Type:     "function",
			Function: &llms.FunctionDefinition{Name: "Calculator", Description: "math", Parameters: &sc},
		},
		{
			Type:     "function",
			Function: &llms.FunctionDefinition{Name: "now", Description: "current time"},
		},
	})
	require.NoError(t, err)
	require.Len(t, res, 2)
	require.Len(t, res[0].FunctionDeclarations, 1)
	assert.Equal(t, "Calculator", res[0].FunctionDeclarations[0].Name)
	assert.Equal(t, "math", res[0].FunctionDeclarations[0].Description)
	assert.Equal(t, genai.TypeObject, res[0].FunctionDeclarations[0].Parameters.Type)
	assert.Nil(t, res[1].FunctionDeclarations[0].Parameters)

	_, err = ConvertTools([]llms.Tool{{Type: "web_search"}})
	assert.EqualError(t, err, `tool [0]: unsupported type "web_search", want 'function'`)
}

func TestConvertResponseFormatJSONSchema(t *testing.T) {
	t.Parallel()

	type answer struct {
		Answer string   `json:"answer" jsonschema:"description=Accurate answer to the question"`
		Steps  []string `json:"steps,omitempty"`
	}
	rf, err := schema.NewResponseFormat(reflect.TypeOf(answer{}), true)
	require.NoError(t, err)

	res := ConvertResponseFormatJSONSchema(rf.JSONSchema)
	require.NotNil(t, res)
	assert.Equal(t, genai.TypeObject, res.Type)
	assert.Equal(t, []string{"answer"}, res.Required)
	assert.Equal(t, "Accurate answer to the question", res.Properties["answer"].Description)
	assert.Equal(t, genai.TypeArray, res.Properties["steps"].Type)
	assert.Equal(t, genai.TypeString, res.Properties["steps"].Items.Type)

	assert.Nil(t, ConvertResponseFormatJSONSchema(nil))
}

func TestPtr(t *testing.T) {
	t.Parallel()
	assert.Nil(t, Float32Ptr(0))
	assert.Equal(t, float32(0.5), *Float32Ptr(0.5))
	assert.Nil(t, Int32Ptr(0))
	assert.Equal(t, int32(3), *Int32Ptr(3))
}
