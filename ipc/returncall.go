package ipc

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"runtime/debug"

	"github.com/tailored-agentic-units/relay/observability"
)

type invokeFunc func(ctx context.Context, payload Payload) (any, error)

// ReturnCall is a function made reachable through IPC under an explicit name.
// Construct one with Func, Func0, Method or Method0.
type ReturnCall struct {
	name   string
	invoke invokeFunc
}

func (rc *ReturnCall) Name() string {
	return rc.name
}

// Func wraps a free function. A mapping payload is decoded into the fields of
// A, a single value is decoded into A itself, and no payload leaves A at its
// zero value.
func Func[A, R any](name string, fn func(ctx context.Context, args A) (R, error)) *ReturnCall {
	return &ReturnCall{
		name: name,
		invoke: func(ctx context.Context, payload Payload) (any, error) {
			var args A
			if err := payload.Decode(&args); err != nil {
				return nil, err
			}
			return fn(ctx, args)
		},
	}
}

// Func0 wraps a free function that takes no arguments. A positional value is
// rejected; an empty or absent mapping is accepted.
func Func0[R any](name string, fn func(ctx context.Context) (R, error)) *ReturnCall {
	return &ReturnCall{
		name: name,
		invoke: func(ctx context.Context, payload Payload) (any, error) {
			if payload.Shape() == ShapeValue {
				return nil, fmt.Errorf("%w: %s takes no arguments", ErrInvalidPayload, name)
			}
			return fn(ctx)
		},
	}
}

// Method wraps a function whose first parameter is the receiving object.
// The receiver is bound here, once, and passed on every invocation.
func Method[T, A, R any](name string, recv T, fn func(recv T, ctx context.Context, args A) (R, error)) *ReturnCall {
	return &ReturnCall{
		name: name,
		invoke: func(ctx context.Context, payload Payload) (any, error) {
			var args A
			if err := payload.Decode(&args); err != nil {
				return nil, err
			}
			return fn(recv, ctx, args)
		},
	}
}

// Method0 is Method for functions without arguments.
func Method0[T, R any](name string, recv T, fn func(recv T, ctx context.Context) (R, error)) *ReturnCall {
	return &ReturnCall{
		name: name,
		invoke: func(ctx context.Context, payload Payload) (any, error) {
			if payload.Shape() == ShapeValue {
				return nil, fmt.Errorf("%w: %s takes no arguments", ErrInvalidPayload, name)
			}
			return fn(recv, ctx)
		},
	}
}

// Returner sends a return tagged with a call name back to the waiting caller.
type Returner interface {
	ReturnCall(ctx context.Context, name string, data any) error
}

// Adapter runs ReturnCalls and routes their results through the transport
// family active for the process.
type Adapter struct {
	mode     Mode
	returner Returner
	logger   *slog.Logger
}

// NewAdapter creates an adapter. returner may be nil in ModeHTTP.
func NewAdapter(mode Mode, returner Returner, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		mode:     mode,
		returner: returner,
		logger:   logger,
	}
}

func (a *Adapter) Mode() Mode {
	return a.mode
}

// Invoke calls rc with payload. The result is the callee's value, nil when it
// produced none, or an Envelope when it failed. Panics are recovered and
// reported as envelopes.
func (a *Adapter) Invoke(ctx context.Context, rc *ReturnCall, payload Payload) (result any) {
	defer func() {
		if r := recover(); r != nil {
			result = a.fail(ctx, rc.name, recoveredError(r))
		}
	}()

	value, err := rc.invoke(ctx, payload)
	if err != nil {
		return a.fail(ctx, rc.name, err)
	}
	if isNil(value) {
		return nil
	}
	return value
}

// Respond invokes rc and delivers the result. In ModeHTTP the result is
// returned for the HTTP layer to write. Otherwise a return call tagged with
// rc's name is issued, with an empty mapping in place of a missing value so
// the waiting caller never mistakes silence for a reply.
func (a *Adapter) Respond(ctx context.Context, rc *ReturnCall, payload Payload) (any, error) {
	result := a.Invoke(ctx, rc, payload)
	if a.mode == ModeHTTP {
		return result, nil
	}

	if result == nil {
		result = map[string]any{}
	}
	if a.returner == nil {
		return result, fmt.Errorf("%w: %s", ErrNoTransport, a.mode)
	}
	if err := a.returner.ReturnCall(ctx, rc.name, result); err != nil {
		a.logger.ErrorContext(
			ctx,
			"failed to send return call",
			slog.String("callname", rc.name),
			slog.String("error", err.Error()),
		)
		return result, err
	}
	return result, nil
}

func (a *Adapter) fail(ctx context.Context, name string, err error) Envelope {
	env := NewEnvelope(err)

	a.logger.Log(
		ctx,
		observability.LevelOf(err).SlogLevel(),
		"IPC callback raised an error",
		slog.String("callname", name),
		slog.String("error", env.Error),
		slog.String("message", env.Message),
		slog.String("stack", string(debug.Stack())),
	)
	return env
}

func recoveredError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", r)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
