package encoding

import (
	"github.com/cockroachdb/errors"
	dummyenc "github.com/effective-security/mathagent/encoding/dummy"
	jsonenc "github.com/effective-security/mathagent/encoding/json"
	tomlenc "github.com/effective-security/mathagent/encoding/toml"
	yamlenc "github.com/effective-security/mathagent/encoding/yaml"
)

// SchemaEncoder encodes and decodes values in the format the model is asked to answer in.
type SchemaEncoder interface {
	Marshal(req any) ([]byte, error)
	Unmarshal([]byte, any) error
	// GetFormatInstructions returns the wrapped message with message schema for the prompt
	GetFormatInstructions() string
}

// Validator is implemented by encoders that can validate decoded values.
type Validator interface {
	Validate(any) error
}

// Mode is the output format of the model.
type Mode = string

const (
	ModeJSON             Mode = "json"
	ModeJSONSchema       Mode = "json_schema"
	ModeJSONSchemaStrict Mode = "json_schema_strict" // Not all providers support this and all props must be required
	ModeYAML             Mode = "yaml"
	ModeTOML             Mode = "toml"
	ModePlainText        Mode = "plain_text"
)

// ModeDefault is the default mode for the encoder.
// Apps may override it.
var ModeDefault = ModeJSONSchema

// ErrUnsupportedMode is returned for a mode without a predefined encoder.
var ErrUnsupportedMode = errors.New("no predefined encoder")

// PredefinedSchemaEncoder returns the encoder for the mode.
func PredefinedSchemaEncoder(mode Mode, req any) (SchemaEncoder, error) {
	switch mode {
	case ModeJSON, ModeJSONSchema, ModeJSONSchemaStrict:
		return jsonenc.NewEncoder(req)
	case ModeYAML:
		return yamlenc.NewEncoder(req), nil
	case ModeTOML:
		return tomlenc.NewEncoder(req), nil
	case ModePlainText:
		return dummyenc.NewEncoder(), nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedMode, "mode %q", mode)
	}
}

var (
	_ SchemaEncoder = (*dummyenc.Encoder)(nil)
	_ SchemaEncoder = (*jsonenc.Encoder)(nil)
	_ SchemaEncoder = (*yamlenc.Encoder)(nil)
	_ SchemaEncoder = (*tomlenc.Encoder)(nil)
)
