package ipc

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Shape classifies the arguments carried by a call.
type Shape int

const (
	// ShapeNone invokes the callee without arguments.
	ShapeNone Shape = iota
	// ShapeValue passes a single value positionally.
	ShapeValue
	// ShapeMapping expands into named arguments.
	ShapeMapping
)

func (s Shape) String() string {
	switch s {
	case ShapeValue:
		return "value"
	case ShapeMapping:
		return "mapping"
	default:
		return "none"
	}
}

// Payload is the JSON form of a call's arguments. An empty payload and a
// JSON null both mean no arguments.
type Payload json.RawMessage

// NewPayload encodes data as a call payload. A nil data yields an empty
// payload.
func NewPayload(data any) (Payload, error) {
	switch v := data.(type) {
	case nil:
		return nil, nil
	case Payload:
		return v, nil
	case json.RawMessage:
		return Payload(v), nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return Payload(raw), nil
}

func (p Payload) Shape() Shape {
	trimmed := bytes.TrimSpace(p)
	switch {
	case len(trimmed) == 0, bytes.Equal(trimmed, []byte("null")):
		return ShapeNone
	case trimmed[0] == '{':
		return ShapeMapping
	default:
		return ShapeValue
	}
}

// Decode unmarshals the payload into v. A payload without arguments leaves v
// untouched.
func (p Payload) Decode(v any) error {
	if p.Shape() == ShapeNone {
		return nil
	}
	if err := json.Unmarshal(p, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

func (p Payload) MarshalJSON() ([]byte, error) {
	if p.Shape() == ShapeNone {
		return []byte("null"), nil
	}
	return p, nil
}
