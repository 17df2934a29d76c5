package ipc

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/tailored-agentic-units/relay/apierr"
)

// Sentinel errors for the IPC layer.
var (
	ErrInvalidPayload = errors.New("invalid call payload")
	ErrNoTransport    = errors.New("no transport configured for mode")
	ErrEmptyName      = errors.New("call name is empty")
	ErrAlreadyExists  = errors.New("call target already registered")
	ErrNotFound       = errors.New("call target not found")
)

const (
	callTimeoutMessage = "Addon Signals call timeout"
	localhostHint      = "\r\nPossible cause is wrong localhost settings in your operative system."
)

// Envelope is the error form of a call result.
type Envelope struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NewEnvelope reduces err to its wire form.
func NewEnvelope(err error) Envelope {
	return Envelope{
		Error:   string(apierr.KindOf(err)),
		Message: apierr.MessageOf(err),
	}
}

// Err re-expands the envelope through the kind registry.
func (e Envelope) Err() error {
	return apierr.FromEnvelope(e.Error, e.Message)
}

// decodeEnvelope reports whether raw is a JSON object holding an error key.
func decodeEnvelope(raw json.RawMessage) (Envelope, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Envelope{}, false
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return Envelope{}, false
	}
	kind, ok := fields["error"]
	if !ok {
		return Envelope{}, false
	}

	var env Envelope
	if err := json.Unmarshal(kind, &env.Error); err != nil {
		env.Error = string(kind)
	}
	if message, ok := fields["message"]; ok {
		if err := json.Unmarshal(message, &env.Message); err != nil {
			env.Message = string(message)
		}
	}
	return env, true
}

// raiseForError converts an error-shaped result into the matching typed
// error. Every kind except CacheMiss is logged at error level first.
func raiseForError(logger *slog.Logger, callname string, raw json.RawMessage) error {
	env, ok := decodeEnvelope(raw)
	if !ok {
		return nil
	}

	if !apierr.IsExpected(apierr.Kind(env.Error)) {
		logger.Error(
			"IPC call returned an error",
			slog.String("callname", callname),
			slog.String("error", env.Error),
			slog.String("message", env.Message),
		)
	}
	return env.Err()
}
