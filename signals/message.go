package signals

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

type MessageType string

const (
	MessageTypeNotification MessageType = "notification"
	MessageTypeCall         MessageType = "call"
	MessageTypeReturn       MessageType = "return"
)

// Message is the unit carried by the bus. Data is the JSON text of the
// payload exactly as the sender encoded it, so numbers keep their precision
// and object keys their order. A nil Data means no value was sent.
type Message struct {
	ID        string
	Source    string
	Signal    string
	Type      MessageType
	Data      json.RawMessage
	Timestamp time.Time
}

func (msg *Message) IsCall() bool {
	return msg.Type == MessageTypeCall
}

func (msg *Message) IsReturn() bool {
	return msg.Type == MessageTypeReturn
}

// JSON returns the payload as JSON, or nil when no value was sent.
func (msg *Message) JSON() (json.RawMessage, error) {
	if msg.Data == nil {
		return nil, nil
	}
	return slices.Clone(msg.Data), nil
}

// Decode unmarshals the payload into v. A message without payload leaves v
// untouched.
func (msg *Message) Decode(v any) error {
	if msg.Data == nil {
		return nil
	}
	if err := json.Unmarshal(msg.Data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return nil
}

func (msg *Message) String() string {
	return fmt.Sprintf(
		"Message{ID: %s, Source: %s, Signal: %s, Type: %s}",
		msg.ID,
		msg.Source,
		msg.Signal,
		msg.Type,
	)
}

// Encode converts data to the JSON text carried by the bus. Only values a
// protobuf Struct field could hold are accepted; the text itself is kept as
// produced so receivers see the same bytes a loopback caller would.
func Encode(data any) (json.RawMessage, error) {
	var raw []byte
	switch v := data.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		raw = bytes.TrimSpace(v)
	default:
		encoded, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
		}
		raw = encoded
	}

	if err := protojson.Unmarshal(raw, &structpb.Value{}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return json.RawMessage(slices.Clone(raw)), nil
}

type MessageBuilder struct {
	message *Message
	data    any
}

func NewMessage(source, signal string, messageType MessageType, data any) *MessageBuilder {
	return &MessageBuilder{
		message: &Message{
			ID:        generateID(),
			Source:    source,
			Signal:    signal,
			Type:      messageType,
			Timestamp: time.Now(),
		},
		data: data,
	}
}

func NewNotification(source, signal string, data any) *MessageBuilder {
	return NewMessage(source, signal, MessageTypeNotification, data)
}

func NewCall(source, signal string, data any) *MessageBuilder {
	return NewMessage(source, signal, MessageTypeCall, data)
}

func NewReturn(source, signal string, data any) *MessageBuilder {
	return NewMessage(source, signal, MessageTypeReturn, data)
}

// Build encodes the payload and returns the message.
func (mb *MessageBuilder) Build() (*Message, error) {
	value, err := Encode(mb.data)
	if err != nil {
		return nil, err
	}
	mb.message.Data = value
	return mb.message, nil
}

func generateID() string {
	return uuid.Must(uuid.NewV7()).String()
}
