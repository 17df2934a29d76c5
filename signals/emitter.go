package signals

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"code.hybscloud.com/iox"
)

type emission struct {
	signal string
	data   any
}

// Emitter releases the caller immediately on Emit and forwards signals to
// the bus from a single worker. The hand-off queue is FIFO, so consecutive
// emits reach the bus in the order they were issued even though delivery
// itself may block on the bus.
type Emitter struct {
	bus    Bus
	source string
	logger *slog.Logger

	// producers serialize on mu; the queue has exactly one consumer. closed
	// only flips under mu, so an accepted emit is always queued before Close
	// cancels the worker.
	mu     sync.Mutex
	queue  emitQueue
	closed atomic.Bool

	wake chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewEmitter starts an emitter publishing under source.
func NewEmitter(bus Bus, source string, queueSize int, logger *slog.Logger) *Emitter {
	if queueSize <= 0 {
		queueSize = DefaultConfig().EmitQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Emitter{
		bus:    bus,
		source: source,
		logger: logger,
		wake:   make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	e.queue.Init(queueSize)

	go e.run()

	return e
}

// Emit queues a one-way signal. It blocks only while the hand-off queue is
// full, never on delivery.
func (e *Emitter) Emit(signal string, data any) error {
	if e.closed.Load() {
		return ErrEmitterClosed
	}

	item := emission{signal: signal, data: data}

	e.mu.Lock()
	if e.closed.Load() {
		e.mu.Unlock()
		return ErrEmitterClosed
	}
	var bo iox.Backoff
	for {
		err := e.queue.Enqueue(&item)
		if err == nil {
			break
		}
		if !errors.Is(err, iox.ErrWouldBlock) {
			e.mu.Unlock()
			return err
		}
		bo.Wait()
	}
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
	return nil
}

// Close stops accepting emits and waits for queued ones to be delivered.
func (e *Emitter) Close(ctx context.Context) error {
	e.mu.Lock()
	swapped := e.closed.CompareAndSwap(false, true)
	e.mu.Unlock()
	if !swapped {
		return nil
	}
	e.cancel()

	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Emitter) run() {
	defer close(e.done)

	for {
		e.drain()
		select {
		case <-e.wake:
		case <-e.ctx.Done():
			e.drain()
			return
		}
	}
}

func (e *Emitter) drain() {
	for {
		item, err := e.queue.Dequeue()
		if err != nil {
			return
		}
		if err := e.bus.SendSignal(context.Background(), e.source, item.signal, item.data); err != nil {
			e.logger.Warn(
				"failed to emit signal",
				slog.String("source", e.source),
				slog.String("signal", item.signal),
				slog.String("error", err.Error()),
			)
		}
	}
}
