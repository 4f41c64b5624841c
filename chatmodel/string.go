package chatmodel

import "strings"

// String is a plain text value that implements the ContentProvider interface,
// used as the output of assistants that answer in free text.
type String struct {
	value string
}

// NewString returns a String.
func NewString(str string) *String {
	return &String{
		value: str,
	}
}

// GetContent gets the content of the message for the chat history
func (s String) GetContent() string {
	return s.value
}

func (s String) String() string {
	return s.value
}

// Bytes returns the value as bytes.
func (s String) Bytes() []byte {
	return []byte(s.value)
}

// ParseInput sets the value from raw text.
func (s *String) ParseInput(raw string) error {
	s.value = raw
	return nil
}

// Unmarshal sets the value from bytes, surrounding quotes are removed.
func (s *String) Unmarshal(bs []byte) error {
	s.value = strings.Trim(string(bs), "\"")
	return nil
}
