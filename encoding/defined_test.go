package encoding

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mathagent/chatmodel"
	"github.com/effective-security/mathagent/encoding/dummy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testStruct struct {
	Field1 string `json:"field1"`
	Field2 int    `json:"field2"`
}

func (t *testStruct) Unmarshal(bs []byte) error {
	t.Field1 = string(bs)
	return nil
}

type requiredStruct struct {
	Answer string `json:"answer" validate:"required"`
	Reason string `json:"reason,omitempty"`
}

type brokenText struct{}

func (t *brokenText) Unmarshal([]byte) error {
	return errors.New("cannot decode")
}

func TestNewTypedOutputParser_OK(t *testing.T) {
	t.Parallel()
	parser, err := NewTypedOutputParser(testStruct{}, ModeJSON)
	require.NoError(t, err)
	require.NotNil(t, parser)
	assert.NotEmpty(t, parser.GetFormatInstructions())
	assert.Contains(t, parser.Type(), "testStruct")
	assert.NotNil(t, parser.Encoder())
}

func TestNewTypedOutputParser_UnsupportedMode(t *testing.T) {
	t.Parallel()
	_, err := NewTypedOutputParser(testStruct{}, "toml")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedMode))
}

func TestTypedOutputParser_Parse(t *testing.T) {
	t.Parallel()
	parser, err := NewTypedOutputParser(testStruct{}, ModeJSON)
	require.NoError(t, err)

	result, err := parser.Parse(`{"field1": "foo", "field2": 42}`)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "foo", result.Field1)
	assert.Equal(t, 42, result.Field2)

	result, err = parser.Parse("```json\n{\"field1\": \"bar\", \"field2\": 7}\n```")
	require.NoError(t, err)
	assert.Equal(t, "bar", result.Field1)
	assert.Equal(t, 7, result.Field2)
}

func TestTypedOutputParser_DecodeError(t *testing.T) {
	t.Parallel()
	parser, err := NewTypedOutputParser(brokenText{}, ModePlainText)
	require.NoError(t, err)

	_, err = parser.Parse("anything")
	require.Error(t, err)
	assert.True(t, errors.Is(err, chatmodel.ErrFailedUnmarshalInput))
	assert.Contains(t, err.Error(), "failed to decode")
}

func TestTypedOutputParser_WithValidation(t *testing.T) {
	t.Parallel()
	parser, err := NewTypedOutputParser(requiredStruct{}, ModeJSON)
	require.NoError(t, err)

	// without validation the empty answer is accepted
	val, err := parser.Parse(`{"reason": "no answer"}`)
	require.NoError(t, err)
	assert.Empty(t, val.Answer)

	parser.WithValidation(true)
	_, err = parser.Parse(`{"reason": "no answer"}`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, chatmodel.ErrFailedUnmarshalInput))
	assert.Contains(t, err.Error(), "failed to validate")

	val, err = parser.Parse(`{"answer": "4"}`)
	require.NoError(t, err)
	assert.Equal(t, "4", val.Answer)
}

func TestTypedOutputParser_PlainText(t *testing.T) {
	t.Parallel()
	parser, err := NewTypedOutputParser(testStruct{}, ModePlainText)
	require.NoError(t, err)
	parser.WithValidation(true)

	val, err := parser.Parse("foobar")
	require.NoError(t, err)
	require.NotNil(t, val)
	assert.Equal(t, "foobar", val.Field1)
	assert.Empty(t, parser.GetFormatInstructions())

	bad := &TypedOutputParser[testStruct]{
		enc:      &badValidator{},
		name:     "bad",
		validate: true,
	}
	_, err = bad.Parse("test input")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to validate")
}

type badValidator struct{ dummy.Encoder }

func (badValidator) Validate(any) error { return errors.New("fail validate") }
