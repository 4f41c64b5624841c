package chatmodel

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/invopop/jsonschema"
)

// InputRequest is a free text request to an assistant.
type InputRequest struct {
	Input string `json:"input" yaml:"input" jsonschema:"title=Input,description=The message sent by the user to the assistant."`
}

// NewInputRequest returns an InputRequest.
func NewInputRequest(input string) *InputRequest {
	return &InputRequest{Input: input}
}

// GetContent returns the input for the chat history.
func (r InputRequest) GetContent() string {
	return r.Input
}

// ParseInput parses the JSON form of the request.
func (r *InputRequest) ParseInput(raw string) error {
	if err := json.Unmarshal([]byte(raw), r); err != nil {
		return errors.Mark(errors.Wrap(err, "invalid input"), ErrFailedUnmarshalInput)
	}
	return nil
}

// JSONSchemaExtend sets the schema title.
func (InputRequest) JSONSchemaExtend(base *jsonschema.Schema) {
	base.Title = "Input Request"
}

// OutputResult is a free text result of an assistant or tool.
type OutputResult struct {
	Content string `json:"content" yaml:"content" jsonschema:"title=Response Content,description=The content returned by agent or tool."`
}

// NewOutputResult returns an OutputResult.
func NewOutputResult(content string) *OutputResult {
	return &OutputResult{Content: content}
}

// GetContent returns the content for the chat history.
func (r OutputResult) GetContent() string {
	return r.Content
}
