package ipc

import (
	"context"
	"encoding/json"
	"fmt"
)

// Transport performs a blocking call of a named remote target. The result is
// the raw JSON produced by the callee; error envelopes are already converted
// into errors.
type Transport interface {
	Call(ctx context.Context, name string, data any) (json.RawMessage, error)
}

// Router is the single entry point used by callers. The transport is chosen
// once from the process mode and never overridden per call.
type Router struct {
	mode   Mode
	active Transport
}

// NewRouter selects the transport matching mode. The other one may be nil.
func NewRouter(mode Mode, http, signal Transport) *Router {
	r := &Router{mode: mode, active: signal}
	if mode == ModeHTTP {
		r.active = http
	}
	return r
}

func (r *Router) Mode() Mode {
	return r.mode
}

// Call delegates to the active transport. Errors are returned as raised by
// the transport.
func (r *Router) Call(ctx context.Context, name string, data any) (json.RawMessage, error) {
	if r.active == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoTransport, r.mode)
	}
	return r.active.Call(ctx, name, data)
}

// CallInto performs a call and decodes the result into T.
func CallInto[T any](ctx context.Context, t Transport, name string, data any) (T, error) {
	var result T

	raw, err := t.Call(ctx, name, data)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return result, fmt.Errorf("decode %s result: %w", name, err)
	}
	return result, nil
}
