// Package transport provides the datagram endpoint under the OSC receiver and transmitter.
// This allows swapping the raw UDP socket for a mock without changing polling logic.
package transport

import (
	"errors"
	"time"
)

var (
	// ErrWouldBlock means no datagram is currently available. It is the steady state of a
	// non-blocking poll loop, not a failure.
	ErrWouldBlock = errors.New("transport: would block")

	ErrInvalidSocket       = errors.New("transport: socket is not valid")
	ErrUnsupportedPlatform = errors.New("transport: raw UDP sockets are not supported on this platform")
	ErrDescriptorRange     = errors.New("transport: descriptor exceeds select limit")
)

// Transport is a connectionless IPv4 datagram endpoint.
type Transport interface {
	// Bind attaches the endpoint to a local address. A wildcard IP binds all interfaces.
	Bind(local Connection) error

	// Send is a best-effort fire-and-forget datagram to dst.
	Send(dst Connection, data []byte) error

	// CanReceive reports whether a datagram is ready within timeout.
	CanReceive(timeout time.Duration) bool

	// Receive reads one datagram into buf and returns the exact byte count and the sender.
	// It returns ErrWouldBlock when nothing is queued.
	Receive(buf []byte) (int, Connection, error)

	// LocalAddr returns the bound address, or the zero Connection when unbound.
	LocalAddr() Connection

	// IsValid reports whether the endpoint holds an open handle.
	IsValid() bool

	// Close releases this owner's reference to the handle.
	Close() error
}

// Factory creates a fresh unbound Transport.
type Factory func() (Transport, error)

// DefaultFactory creates raw non-blocking UDP sockets.
func DefaultFactory() (Transport, error) {
	s, err := CreateSocket()
	if err != nil {
		return nil, err
	}
	return s, nil
}
