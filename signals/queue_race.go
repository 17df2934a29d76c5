//go:build race

package signals

import "code.hybscloud.com/iox"

// emitQueue replaces the lock-free queue under the race detector, which
// cannot see the ordering lfq establishes with atomics. It keeps the same
// non-blocking contract.
type emitQueue struct {
	ch chan emission
}

func (q *emitQueue) Init(capacity int) {
	q.ch = make(chan emission, capacity)
}

// Enqueue returns iox.ErrWouldBlock when the queue is full.
func (q *emitQueue) Enqueue(item *emission) error {
	select {
	case q.ch <- *item:
		return nil
	default:
		return iox.ErrWouldBlock
	}
}

// Dequeue returns iox.ErrWouldBlock when the queue is empty.
func (q *emitQueue) Dequeue() (emission, error) {
	select {
	case item := <-q.ch:
		return item, nil
	default:
		return emission{}, iox.ErrWouldBlock
	}
}
