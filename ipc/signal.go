package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/tailored-agentic-units/relay/apierr"
	"github.com/tailored-agentic-units/relay/signals"
)

// SignalTransport calls and serves named slots over a signals.Bus. Every
// slot is registered under the transport's scope.
type SignalTransport struct {
	bus     signals.Bus
	emitter *signals.Emitter
	adapter *Adapter
	scope   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewSignalTransport creates a transport over bus. Emits are handed to
// emitter, which must publish under the same scope.
func NewSignalTransport(bus signals.Bus, emitter *signals.Emitter, cfg Config) *SignalTransport {
	t := &SignalTransport{
		bus:     bus,
		emitter: emitter,
		scope:   cfg.Scope,
		timeout: cfg.timeout(),
		logger:  cfg.logger(),
	}
	if t.scope == "" {
		t.scope = bus.Name()
	}
	t.adapter = NewAdapter(cfg.Mode(), t, t.logger)
	return t
}

func (t *SignalTransport) Scope() string {
	return t.scope
}

// Adapter returns the adapter used by registered slots.
func (t *SignalTransport) Adapter() *Adapter {
	return t.adapter
}

// Register exposes rc as a slot named after it. An existing registration of
// the same name is replaced.
func (t *SignalTransport) Register(rc *ReturnCall) {
	t.bus.RegisterSlot(t.scope, rc.name, func(ctx context.Context, msg *signals.Message) {
		if !msg.IsCall() {
			return
		}
		raw, err := msg.JSON()
		if err != nil {
			t.logger.ErrorContext(
				ctx,
				"undecodable call payload",
				slog.String("callname", rc.name),
				slog.String("error", err.Error()),
			)
			return
		}
		t.adapter.Respond(ctx, rc, Payload(raw))
	})
	t.logger.Debug(
		"registered slot",
		slog.String("scope", t.scope),
		slog.String("callname", rc.name),
	)
}

// Unregister removes the slot. Removing an absent slot is tolerated; the bus
// logs it.
func (t *SignalTransport) Unregister(name string) {
	t.bus.UnregisterSlot(t.scope, name)
	t.logger.Debug(
		"unregistered slot",
		slog.String("scope", t.scope),
		slog.String("callname", name),
	)
}

// Emit sends a one-way signal without waiting for delivery. Emits issued by
// one caller reach the bus in issue order.
func (t *SignalTransport) Emit(name string, data any) error {
	return t.emitter.Emit(name, data)
}

// ReturnCall answers a pending call of the same name.
func (t *SignalTransport) ReturnCall(ctx context.Context, name string, data any) error {
	return t.bus.ReturnCall(ctx, t.scope, name, data)
}

// Call blocks until the slot named name returns or the timeout elapses.
func (t *SignalTransport) Call(ctx context.Context, name string, data any) (json.RawMessage, error) {
	t.logger.Debug("handling signal IPC call", slog.String("callname", name))

	reply, err := t.bus.MakeCall(ctx, t.scope, name, data, t.timeout)
	if err != nil {
		switch {
		case errors.Is(err, signals.ErrUnreachable):
			t.logger.Error(err.Error(), slog.String("callname", name))
			return nil, apierr.New(apierr.BackendNotReady, err.Error())
		case errors.Is(err, signals.ErrCallTimeout):
			return nil, apierr.New(apierr.Generic, callTimeoutMessage)
		}
		return nil, err
	}

	raw, err := reply.JSON()
	if err != nil {
		return nil, err
	}
	if err := raiseForError(t.logger, name, raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, apierr.New(apierr.Generic, callTimeoutMessage)
	}
	return raw, nil
}
