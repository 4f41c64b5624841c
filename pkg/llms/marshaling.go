package llms

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// partJSON is the wire shape of a ContentPart,
// the Type field selects which of the other fields is set.
type partJSON struct {
	Type         string            `json:"type"`
	Text         string            `json:"text,omitempty"`
	ImageURL     *ImageURLContent  `json:"image_url,omitempty"`
	Binary       *BinaryContent    `json:"binary,omitempty"`
	ToolCall     *ToolCall         `json:"tool_call,omitempty"`
	ToolResponse *ToolCallResponse `json:"tool_response,omitempty"`
}

type messageJSON struct {
	Role  Role       `json:"role"`
	Text  string     `json:"text,omitempty"`
	Parts []partJSON `json:"parts,omitempty"`
}

const (
	partTypeText         = "text"
	partTypeImageURL     = "image_url"
	partTypeBinary       = "binary"
	partTypeToolCall     = "tool_call"
	partTypeToolResponse = "tool_response"
)

// MarshalJSON implements json.Marshaler.
// A message with a single text part is encoded as {"role":..,"text":..}.
func (m Message) MarshalJSON() ([]byte, error) {
	if len(m.Parts) == 1 {
		if tp, ok := m.Parts[0].(TextContent); ok {
			return json.Marshal(messageJSON{Role: m.Role, Text: tp.Text})
		}
	}

	res := messageJSON{
		Role:  m.Role,
		Parts: make([]partJSON, 0, len(m.Parts)),
	}
	for _, p := range m.Parts {
		switch pp := p.(type) {
		case TextContent:
			res.Parts = append(res.Parts, partJSON{Type: partTypeText, Text: pp.Text})
		case ImageURLContent:
			res.Parts = append(res.Parts, partJSON{Type: partTypeImageURL, ImageURL: &pp})
		case BinaryContent:
			res.Parts = append(res.Parts, partJSON{Type: partTypeBinary, Binary: &pp})
		case ToolCall:
			res.Parts = append(res.Parts, partJSON{Type: partTypeToolCall, ToolCall: &pp})
		case ToolCallResponse:
			res.Parts = append(res.Parts, partJSON{Type: partTypeToolResponse, ToolResponse: &pp})
		default:
			return nil, errors.Errorf("unsupported part type: %T", p)
		}
	}
	return json.Marshal(res)
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Message) UnmarshalJSON(data []byte) error {
	var mj messageJSON
	if err := json.Unmarshal(data, &mj); err != nil {
		return errors.Wrap(err, "failed to unmarshal message")
	}

	m.Role = mj.Role
	m.Parts = nil
	if mj.Text != "" {
		m.Parts = append(m.Parts, TextPart(mj.Text))
	}

	for i, p := range mj.Parts {
		switch p.Type {
		case partTypeText:
			m.Parts = append(m.Parts, TextPart(p.Text))
		case partTypeImageURL:
			if p.ImageURL == nil {
				return errors.Errorf("part %d: missing image_url", i)
			}
			m.Parts = append(m.Parts, *p.ImageURL)
		case partTypeBinary:
			if p.Binary == nil {
				return errors.Errorf("part %d: missing binary", i)
			}
			m.Parts = append(m.Parts, *p.Binary)
		case partTypeToolCall:
			if p.ToolCall == nil {
				return errors.Errorf("part %d: missing tool_call", i)
			}
			m.Parts = append(m.Parts, *p.ToolCall)
		case partTypeToolResponse:
			if p.ToolResponse == nil {
				return errors.Errorf("part %d: missing tool_response", i)
			}
			m.Parts = append(m.Parts, *p.ToolResponse)
		default:
			return errors.Errorf("part %d: unsupported type %q", i, p.Type)
		}
	}
	return nil
}
