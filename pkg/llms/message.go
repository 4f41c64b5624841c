package llms

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Role is the author of a Message.
type Role string

const (
	RoleAI     Role = "ai"
	RoleHuman  Role = "human"
	RoleSystem Role = "system"
	// RoleGeneric is a user other than the human, e.g. another assistant.
	RoleGeneric Role = "generic"
	RoleTool    Role = "tool"
)

// Message is a chat message made of parts.
type Message struct {
	Role  Role          `json:"role"`
	Parts []ContentPart `json:"parts"`
}

// ContentPart is one of TextContent, ImageURLContent, BinaryContent,
// ToolCall or ToolCallResponse.
type ContentPart interface {
	isPart()
}

type TextContent struct {
	Text string `json:"text"`
}

type ImageURLContent struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type BinaryContent struct {
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

// FunctionCall has the arguments as JSON text.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall is a tool call requested by the model.
type ToolCall struct {
	ID           string        `json:"id"`
	Type         string        `json:"type"`
	FunctionCall *FunctionCall `json:"function,omitempty"`
}

// ToolCallResponse is the result of the tool call with ToolCallID.
type ToolCallResponse struct {
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name"`
	Content    string `json:"content"`
}

func (TextContent) isPart()      {}
func (ImageURLContent) isPart()  {}
func (BinaryContent) isPart()    {}
func (ToolCall) isPart()         {}
func (ToolCallResponse) isPart() {}

func (c TextContent) String() string {
	return c.Text
}

func (c ImageURLContent) String() string {
	return c.URL
}

// String returns the data URL of the content.
func (c BinaryContent) String() string {
	return "data:" + c.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(c.Data)
}

func (c ToolCall) String() string {
	if c.FunctionCall == nil {
		return "ToolCall: " + c.ID
	}
	return fmt.Sprintf("ToolCall: %s (%s), input: %s", c.ID, c.FunctionCall.Name, c.FunctionCall.Arguments)
}

func (c ToolCallResponse) String() string {
	return fmt.Sprintf("ToolCallResponse: %s (%s), response size: %d", c.ToolCallID, c.Name, len(c.Content))
}

func TextPart(s string) TextContent {
	return TextContent{Text: s}
}

func BinaryPart(mime string, data []byte) BinaryContent {
	return BinaryContent{MIMEType: mime, Data: data}
}

func ImageURLPart(url string) ImageURLContent {
	return ImageURLContent{URL: url}
}

func MessageFromParts(role Role, parts ...ContentPart) Message {
	return Message{Role: role, Parts: parts}
}

func MessageFromTextParts(role Role, texts ...string) Message {
	m := Message{Role: role, Parts: make([]ContentPart, len(texts))}
	for i, text := range texts {
		m.Parts[i] = TextPart(text)
	}
	return m
}

// MessageFromToolCalls copies the calls, the message does not share
// FunctionCall pointers with the model response.
func MessageFromToolCalls(role Role, calls ...ToolCall) Message {
	m := Message{Role: role, Parts: make([]ContentPart, len(calls))}
	for i, call := range calls {
		if call.FunctionCall != nil {
			fc := *call.FunctionCall
			call.FunctionCall = &fc
		}
		m.Parts[i] = call
	}
	return m
}

func MessageFromToolResponse(role Role, resp ToolCallResponse) Message {
	return MessageFromParts(role, resp)
}

// GetText returns the text parts joined by new lines.
func (m Message) GetText() string {
	var texts []string
	for _, p := range m.Parts {
		if tc, ok := p.(TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	return strings.Join(texts, "\n")
}

func (m Message) ToolCalls() []ToolCall {
	var calls []ToolCall
	for _, p := range m.Parts {
		if tc, ok := p.(ToolCall); ok {
			calls = append(calls, tc)
		}
	}
	return calls
}

// ContentResponse is the reply of GenerateContent.
type ContentResponse struct {
	Choices []*ContentChoice
}

// ContentChoice is a reply candidate.
type ContentChoice struct {
	Content    string `json:"content"`
	StopReason string `json:"stop_reason"`
	// GenerationInfo is provider specific, the token usage is
	// in InputTokens, OutputTokens and TotalTokens.
	GenerationInfo map[string]any `json:"generation_info"`
	ToolCalls      []ToolCall     `json:"tool_calls"`
	// ReasoningContent is set by reasoning models.
	ReasoningContent string `json:"reasoning_content"`
}
