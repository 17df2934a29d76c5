package signals

import "errors"

// Sentinel errors for bus operations.
var (
	ErrEncoding      = errors.New("payload is not JSON-encodable")
	ErrUnreachable   = errors.New("no slot reachable for signal")
	ErrCallTimeout   = errors.New("call timed out waiting for return")
	ErrBusClosed     = errors.New("bus is shut down")
	ErrEmitterClosed = errors.New("emitter is closed")
)
