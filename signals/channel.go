package signals

import (
	"context"
	"sync/atomic"
)

// MessageChannel is a buffered channel bound to the lifetime of a context.
type MessageChannel[T any] struct {
	channel    chan T
	context    context.Context
	bufferSize int
	closed     atomic.Int32
}

func NewMessageChannel[T any](ctx context.Context, bufferSize int) *MessageChannel[T] {
	return &MessageChannel[T]{
		channel:    make(chan T, bufferSize),
		context:    ctx,
		bufferSize: bufferSize,
	}
}

func (mc *MessageChannel[T]) Send(ctx context.Context, message T) error {
	if mc.IsClosed() {
		return ErrBusClosed
	}
	select {
	case mc.channel <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-mc.context.Done():
		return ErrBusClosed
	}
}

// Messages exposes the receive side for a single consuming loop.
func (mc *MessageChannel[T]) Messages() <-chan T {
	return mc.channel
}

func (mc *MessageChannel[T]) IsClosed() bool {
	return mc.closed.Load() == 1
}

// Close marks the channel closed. The underlying channel is left open so
// that a racing Send cannot panic; the consumer exits on context cancel.
func (mc *MessageChannel[T]) Close() {
	mc.closed.CompareAndSwap(0, 1)
}

func (mc *MessageChannel[T]) QueueLength() int {
	return len(mc.channel)
}
