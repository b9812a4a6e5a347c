package canbus

import (
	"context"
	"errors"
)

// Bus represents a CAN bus connection which can send and receive CAN frames.
// Implementations should be safe for concurrent use by multiple goroutines.
type Bus interface {
	// Send transmits a frame. It may block until the frame is queued or sent.
	// Context cancellation should abort the operation and return the context error.
	Send(ctx context.Context, frame Frame) error

	// Receive retrieves the next available frame. It should block until a frame
	// is available or the context is cancelled.
	Receive(ctx context.Context) (Frame, error)

	// Close releases resources. Further Send/Receive may return an error.
	Close() error
}

var (
	// ErrClosed indicates the bus or endpoint has been closed.
	ErrClosed = errors.New("canbus: closed")

	// ErrTransmitFailed is returned by drivers when the controller rejected
	// or failed to queue a frame.
	ErrTransmitFailed = errors.New("canbus: transmit failed")

	// ErrBusNotReady is returned by drivers when the interface is down, in
	// bus-off, or otherwise unable to accept frames right now.
	ErrBusNotReady = errors.New("canbus: bus not ready")
)
