//go:build !race

package signals

import "code.hybscloud.com/lfq"

// emitQueue is the emitter hand-off: lock-free, one producer at a time and
// one consumer.
type emitQueue = lfq.SPSC[emission]
