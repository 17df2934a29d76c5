package ipc_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailored-agentic-units/relay/apierr"
	"github.com/tailored-agentic-units/relay/ipc"
)

type fakeReturner struct {
	mu      sync.Mutex
	names   []string
	results []any
}

func (f *fakeReturner) ReturnCall(ctx context.Context, name string, data any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names = append(f.names, name)
	f.results = append(f.results, data)
	return nil
}

type account struct {
	email string
}

func (a *account) greet(ctx context.Context, args struct{ Greeting string }) (string, error) {
	return args.Greeting + " " + a.email, nil
}

func (a *account) whoami(ctx context.Context) (string, error) {
	return a.email, nil
}

func mustPayload(t *testing.T, data any) ipc.Payload {
	t.Helper()
	p, err := ipc.NewPayload(data)
	require.NoError(t, err)
	return p
}

func TestPayload_Shape(t *testing.T) {
	tests := []struct {
		name string
		data any
		want ipc.Shape
	}{
		{name: "nil", data: nil, want: ipc.ShapeNone},
		{name: "string", data: "guid", want: ipc.ShapeValue},
		{name: "number", data: 42, want: ipc.ShapeValue},
		{name: "list", data: []string{"a"}, want: ipc.ShapeValue},
		{name: "map", data: map[string]any{"a": 1}, want: ipc.ShapeMapping},
		{name: "struct", data: profileArgs{GUID: "x"}, want: ipc.ShapeMapping},
		{name: "raw null", data: ipc.Payload(" null "), want: ipc.ShapeNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mustPayload(t, tt.data).Shape())
		})
	}
}

func TestPayload_NotEncodable(t *testing.T) {
	_, err := ipc.NewPayload(make(chan int))
	assert.ErrorIs(t, err, ipc.ErrInvalidPayload)
}

func TestAdapter_Invoke(t *testing.T) {
	adapter := ipc.NewAdapter(ipc.ModeHTTP, nil, nil)
	acct := &account{email: "user@example.com"}
	ctx := context.Background()

	t.Run("method with mapping", func(t *testing.T) {
		rc := ipc.Method("greet", acct, (*account).greet)
		got := adapter.Invoke(ctx, rc, mustPayload(t, map[string]any{"Greeting": "hello"}))
		assert.Equal(t, "hello user@example.com", got)
	})

	t.Run("method without arguments", func(t *testing.T) {
		rc := ipc.Method0("whoami", acct, (*account).whoami)
		assert.Equal(t, "user@example.com", adapter.Invoke(ctx, rc, nil))
	})

	t.Run("func0 rejects positional value", func(t *testing.T) {
		rc := ipc.Method0("whoami", acct, (*account).whoami)
		got := adapter.Invoke(ctx, rc, mustPayload(t, "unexpected"))

		env, ok := got.(ipc.Envelope)
		require.True(t, ok, "Invoke() = %T, want Envelope", got)
		assert.Equal(t, string(apierr.Generic), env.Error)
	})

	t.Run("func value decode failure", func(t *testing.T) {
		rc := ipc.Func("count", func(ctx context.Context, n int) (int, error) { return n + 1, nil })
		got := adapter.Invoke(ctx, rc, mustPayload(t, "not a number"))

		_, ok := got.(ipc.Envelope)
		assert.True(t, ok, "Invoke() = %T, want Envelope", got)
	})

	t.Run("typed error keeps kind", func(t *testing.T) {
		rc := ipc.Func0("guarded", func(ctx context.Context) (any, error) {
			return nil, apierr.New(apierr.NotConnected, "Internet connection not available")
		})
		got := adapter.Invoke(ctx, rc, nil)
		assert.Equal(t, ipc.Envelope{Error: "NotConnected", Message: "Internet connection not available"}, got)
	})

	t.Run("wrapped error keeps kind", func(t *testing.T) {
		rc := ipc.Func0("wrapped", func(ctx context.Context) (any, error) {
			return nil, errors.Join(errors.New("context"), apierr.ErrNotLoggedIn)
		})
		got := adapter.Invoke(ctx, rc, nil).(ipc.Envelope)
		assert.Equal(t, "NotLoggedInError", got.Error)
	})

	t.Run("nil pointer result is no value", func(t *testing.T) {
		rc := ipc.Func0("nothing", func(ctx context.Context) (*profileArgs, error) { return nil, nil })
		assert.Nil(t, adapter.Invoke(ctx, rc, nil))
	})
}

func TestAdapter_Respond(t *testing.T) {
	ctx := context.Background()
	nothing := ipc.Func0("logout", func(ctx context.Context) (any, error) { return nil, nil })

	t.Run("http mode returns without return call", func(t *testing.T) {
		returner := &fakeReturner{}
		adapter := ipc.NewAdapter(ipc.ModeHTTP, returner, nil)

		got, err := adapter.Respond(ctx, nothing, nil)
		require.NoError(t, err)
		assert.Nil(t, got)
		assert.Empty(t, returner.names)
	})

	t.Run("signal mode substitutes empty mapping", func(t *testing.T) {
		returner := &fakeReturner{}
		adapter := ipc.NewAdapter(ipc.ModeSignals, returner, nil)

		_, err := adapter.Respond(ctx, nothing, nil)
		require.NoError(t, err)
		require.Equal(t, []string{"logout"}, returner.names)
		assert.Equal(t, map[string]any{}, returner.results[0])
	})

	t.Run("signal mode sends envelope", func(t *testing.T) {
		returner := &fakeReturner{}
		adapter := ipc.NewAdapter(ipc.ModeSignals, returner, nil)
		rc := ipc.Func0("login", func(ctx context.Context) (bool, error) {
			return false, apierr.ErrMissingCredentials
		})

		adapter.Respond(ctx, rc, nil)
		require.Len(t, returner.results, 1)
		assert.Equal(t, ipc.Envelope{Error: "MissingCredentialsError"}, returner.results[0])
	})

	t.Run("signal mode without returner", func(t *testing.T) {
		adapter := ipc.NewAdapter(ipc.ModeSignals, nil, nil)
		_, err := adapter.Respond(ctx, nothing, nil)
		assert.ErrorIs(t, err, ipc.ErrNoTransport)
	})
}

func TestTargets(t *testing.T) {
	targets := ipc.NewTargets()
	login := ipc.Func0("login", func(context.Context) (bool, error) { return true, nil })

	require.NoError(t, targets.Register(login))
	assert.ErrorIs(t, targets.Register(login), ipc.ErrAlreadyExists)
	assert.ErrorIs(t, targets.Register(ipc.Func0("", func(context.Context) (bool, error) { return true, nil })), ipc.ErrEmptyName)
	assert.ErrorIs(t, targets.Replace(ipc.Func0("logout", func(context.Context) (bool, error) { return true, nil })), ipc.ErrNotFound)
	require.NoError(t, targets.Replace(login))

	require.NoError(t, targets.Register(ipc.Func0("get_safe", func(context.Context) (bool, error) { return true, nil })))
	assert.Equal(t, []string{"get_safe", "login"}, targets.Names())

	rc, ok := targets.Get("login")
	require.True(t, ok)
	assert.Equal(t, "login", rc.Name())

	targets.Unregister("login")
	_, ok = targets.Get("login")
	assert.False(t, ok)
}
