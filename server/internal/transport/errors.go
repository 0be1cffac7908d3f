package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by Send once the connection has closed or failed.
	ErrClosed = errors.New("transport: connection closed")

	// ErrSlowConsumer is returned by Send when the outgoing buffer is full.
	// The connection is closed as a side effect.
	ErrSlowConsumer = errors.New("transport: send buffer full")

	// ErrDisconnected means the peer went away or the connection was closed
	// locally while a Receive was pending.
	ErrDisconnected = errors.New("transport: disconnected")

	// ErrUnsupportedFrame means a non-text data frame was received.
	ErrUnsupportedFrame = errors.New("transport: unsupported frame type")
)

// TransportError wraps an unrecoverable I/O failure.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsRecoverable reports whether a Receive error leaves the connection usable.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrUnsupportedFrame)
}
