package tcp

import "errors"

// Error kinds surfaced to upper-layer callers, per spec section 7. The core
// keeps a flat set of sentinel errors rather than a wrapped error tree,
// mirroring the teacher's own types/error.go convention of package-level
// Err* values
var (
	// ErrConnReset is returned to waiters of a socket that received RST
	ErrConnReset = errors.New("tcpcore: connection reset by peer")

	// ErrConnTimedOut is returned when retransmissions are exhausted
	// (spec section 4.5/7, "peer-unreachable class")
	ErrConnTimedOut = errors.New("tcpcore: connection timed out, no ack received")

	// ErrConnAborted is returned for local resource allocation failures
	// that are fatal to the connection
	ErrConnAborted = errors.New("tcpcore: connection aborted")

	// ErrConnClosing is returned to callers racing a concurrent Close
	ErrConnClosing = errors.New("tcpcore: connection is closing")

	// ErrNotListening is returned by Accept on a non-listening socket
	ErrNotListening = errors.New("tcpcore: socket is not listening")

	// ErrInvalidState is returned when an operation is attempted in an
	// FSM state that does not support it (e.g. Send after a local Close)
	ErrInvalidState = errors.New("tcpcore: operation not valid in current state")
)
