package dummy

import (
	"encoding/json"
)

// Stringer is implemented by values with a String method.
type Stringer interface {
	String() string
}

// Unmarshaler is implemented by values that decode themselves from raw text.
type Unmarshaler interface {
	Unmarshal(bs []byte) error
}

// Encoder passes text through as is.
type Encoder struct{}

// NewEncoder returns an Encoder.
func NewEncoder() *Encoder {
	return new(Encoder)
}

func (e *Encoder) Marshal(v any) ([]byte, error) {
	switch s := v.(type) {
	case Stringer:
		return []byte(s.String()), nil
	case string:
		return []byte(s), nil
	case []byte:
		return s, nil
	case *string:
		return []byte(*s), nil
	case *[]byte:
		return *s, nil
	}
	return json.Marshal(v)
}

func (e *Encoder) Unmarshal(bs []byte, ret any) error {
	switch s := ret.(type) {
	case Unmarshaler:
		return s.Unmarshal(bs)
	case *string:
		*s = string(bs)
		return nil
	case *[]byte:
		*s = bs
		return nil
	}
	return json.Unmarshal(bs, ret)
}

func (e *Encoder) GetFormatInstructions() string {
	return ""
}
