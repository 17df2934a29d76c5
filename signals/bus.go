package signals

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Slot receives messages sent to the signal it is registered for.
type Slot func(ctx context.Context, msg *Message)

// Bus is a publish/subscribe channel with a blocking call/return extension.
// Slots are addressed by (scope, signal); a call and its return are paired
// by identical scope and signal name.
type Bus interface {
	RegisterSlot(scope, signal string, slot Slot)
	UnregisterSlot(scope, signal string)
	HasSlot(scope, signal string) bool

	SendSignal(ctx context.Context, source, signal string, data any) error
	MakeCall(ctx context.Context, source, signal string, data any, timeout time.Duration) (*Message, error)
	ReturnCall(ctx context.Context, source, signal string, data any) error

	Name() string
	Metrics() MetricsSnapshot
	Shutdown(timeout time.Duration) error
}

type slotKey struct {
	scope  string
	signal string
}

type bus struct {
	name string

	slots      map[slotKey]Slot
	slotsMutex sync.RWMutex

	waiters      map[slotKey][]chan *Message
	waitersMutex sync.Mutex

	inbox *MessageChannel[*Message]

	defaultTimeout time.Duration

	logger  *slog.Logger
	metrics *Metrics

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func New(ctx context.Context, cfg Config) Bus {
	busCtx, cancel := context.WithCancel(ctx)

	b := &bus{
		name:           cfg.Name,
		slots:          make(map[slotKey]Slot),
		waiters:        make(map[slotKey][]chan *Message),
		inbox:          NewMessageChannel[*Message](busCtx, cfg.ChannelBufferSize),
		defaultTimeout: cfg.DefaultTimeout,
		logger:         cfg.Logger,
		metrics:        NewMetrics(),
		ctx:            busCtx,
		cancel:         cancel,
		done:           make(chan struct{}),
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	if b.defaultTimeout <= 0 {
		b.defaultTimeout = DefaultTimeout
	}

	go b.messageLoop()

	return b
}

func (b *bus) Name() string {
	return b.name
}

// RegisterSlot associates signal within scope to slot, replacing any
// previous registration.
func (b *bus) RegisterSlot(scope, signal string, slot Slot) {
	key := slotKey{scope: scope, signal: signal}

	b.slotsMutex.Lock()
	_, replaced := b.slots[key]
	b.slots[key] = slot
	b.slotsMutex.Unlock()

	if !replaced {
		b.metrics.RecordSlot(1)
	}

	b.logger.DebugContext(
		b.ctx,
		"slot registered",
		slog.String("bus_name", b.name),
		slog.String("scope", scope),
		slog.String("signal", signal),
		slog.Bool("replaced", replaced),
	)
}

// UnregisterSlot removes the registration. Removing a slot that does not
// exist is tolerated.
func (b *bus) UnregisterSlot(scope, signal string) {
	key := slotKey{scope: scope, signal: signal}

	b.slotsMutex.Lock()
	_, exists := b.slots[key]
	delete(b.slots, key)
	b.slotsMutex.Unlock()

	if !exists {
		b.logger.WarnContext(
			b.ctx,
			"unregistering a slot that is not registered",
			slog.String("bus_name", b.name),
			slog.String("scope", scope),
			slog.String("signal", signal),
		)
		return
	}

	b.metrics.RecordSlot(-1)
	b.logger.DebugContext(
		b.ctx,
		"slot unregistered",
		slog.String("bus_name", b.name),
		slog.String("scope", scope),
		slog.String("signal", signal),
	)
}

func (b *bus) HasSlot(scope, signal string) bool {
	b.slotsMutex.RLock()
	defer b.slotsMutex.RUnlock()
	_, exists := b.slots[slotKey{scope: scope, signal: signal}]
	return exists
}

func (b *bus) SendSignal(ctx context.Context, source, signal string, data any) error {
	message, err := NewNotification(source, signal, data).Build()
	if err != nil {
		return err
	}
	return b.send(ctx, message)
}

func (b *bus) ReturnCall(ctx context.Context, source, signal string, data any) error {
	message, err := NewReturn(source, signal, data).Build()
	if err != nil {
		return err
	}
	return b.send(ctx, message)
}

// MakeCall sends a call and blocks until the matching return arrives, ctx
// ends, or timeout elapses. A timeout with no slot registered for the signal
// reports ErrUnreachable; otherwise ErrCallTimeout.
func (b *bus) MakeCall(ctx context.Context, source, signal string, data any, timeout time.Duration) (*Message, error) {
	if timeout <= 0 {
		timeout = b.defaultTimeout
	}

	message, err := NewCall(source, signal, data).Build()
	if err != nil {
		return nil, err
	}

	key := slotKey{scope: source, signal: signal}
	waiter := make(chan *Message, 1)
	b.addWaiter(key, waiter)
	defer b.removeWaiter(key, waiter)

	b.metrics.RecordCall()
	if err := b.send(ctx, message); err != nil {
		return nil, fmt.Errorf("failed to send call: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case response := <-waiter:
		return response, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("call cancelled: %w", ctx.Err())
	case <-b.ctx.Done():
		return nil, ErrBusClosed
	case <-timer.C:
		b.metrics.RecordTimeout()
		if !b.HasSlot(source, signal) {
			return nil, fmt.Errorf("%w: %s after %v", ErrUnreachable, signal, timeout)
		}
		return nil, fmt.Errorf("%w: %s after %v", ErrCallTimeout, signal, timeout)
	}
}

func (b *bus) Metrics() MetricsSnapshot {
	return b.metrics.Snapshot()
}

func (b *bus) Shutdown(timeout time.Duration) error {
	b.logger.DebugContext(
		b.ctx,
		"shutting down bus",
		slog.String("bus_name", b.name),
	)
	b.inbox.Close()
	b.cancel()

	select {
	case <-b.done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("bus shutdown timeout after %v", timeout)
	}
}

func (b *bus) send(ctx context.Context, message *Message) error {
	if err := b.inbox.Send(ctx, message); err != nil {
		return err
	}
	b.metrics.RecordMessageSent(1)
	return nil
}

// messageLoop hands messages off in arrival order. Slots run on their own
// goroutines, so arrival order does not constrain execution order.
func (b *bus) messageLoop() {
	defer close(b.done)

	for {
		select {
		case <-b.ctx.Done():
			return
		case message := <-b.inbox.Messages():
			b.dispatch(message)
		}
	}
}

func (b *bus) dispatch(message *Message) {
	b.metrics.RecordMessageRecv(1)

	if message.IsReturn() {
		b.deliverReturn(message)
		return
	}

	b.slotsMutex.RLock()
	slot, exists := b.slots[slotKey{scope: message.Source, signal: message.Signal}]
	b.slotsMutex.RUnlock()

	if !exists {
		b.logger.DebugContext(
			b.ctx,
			"no slot for signal",
			slog.String("bus_name", b.name),
			slog.String("scope", message.Source),
			slog.String("signal", message.Signal),
		)
		return
	}

	go b.runSlot(slot, message)
}

func (b *bus) runSlot(slot Slot, message *Message) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.ErrorContext(
				b.ctx,
				"slot panicked",
				slog.String("bus_name", b.name),
				slog.String("signal", message.Signal),
				slog.Any("panic", r),
			)
		}
	}()
	slot(b.ctx, message)
}

func (b *bus) deliverReturn(message *Message) {
	key := slotKey{scope: message.Source, signal: message.Signal}

	b.waitersMutex.Lock()
	pending := b.waiters[key]
	var waiter chan *Message
	if len(pending) > 0 {
		waiter = pending[0]
		b.waiters[key] = pending[1:]
	}
	b.waitersMutex.Unlock()

	if waiter == nil {
		b.logger.DebugContext(
			b.ctx,
			"return without pending call",
			slog.String("bus_name", b.name),
			slog.String("signal", message.Signal),
		)
		return
	}

	select {
	case waiter <- message:
	default:
	}
}

func (b *bus) addWaiter(key slotKey, waiter chan *Message) {
	b.waitersMutex.Lock()
	b.waiters[key] = append(b.waiters[key], waiter)
	b.waitersMutex.Unlock()
}

func (b *bus) removeWaiter(key slotKey, waiter chan *Message) {
	b.waitersMutex.Lock()
	defer b.waitersMutex.Unlock()

	pending := b.waiters[key]
	for i, w := range pending {
		if w == waiter {
			pending = append(pending[:i], pending[i+1:]...)
			break
		}
	}
	if len(pending) == 0 {
		delete(b.waiters, key)
		return
	}
	b.waiters[key] = pending
}
