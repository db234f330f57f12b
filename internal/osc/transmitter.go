package osc

import (
	"fmt"
	"sync"

	"github.com/LemmyAI/oscserver/internal/protocol"
	"github.com/LemmyAI/oscserver/internal/transport"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Transmitter encodes messages and sends them to an explicit destination per call.
// Send methods report failure as false; whether encoding or the socket failed is only logged.
// Transmitter is safe for concurrent use.
type Transmitter struct {
	id      uuid.UUID
	logger  zerolog.Logger
	factory transport.Factory
	metrics *transmitterMetrics

	mu   sync.Mutex
	sock transport.Transport
	buf  [protocol.MaxPacketSize]byte
}

// NewTransmitter creates an uninitialized transmitter.
func NewTransmitter(opts ...Option) *Transmitter {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	id := uuid.New()
	return &Transmitter{
		id:      id,
		factory: o.factory,
		logger: o.logger.With().
			Str("component", "osc.transmitter").
			Str("transmitter_id", id.String()).
			Logger(),
		metrics: newTransmitterMetrics(o.registerer, id.String()),
	}
}

// ID returns the identity assigned at construction.
func (t *Transmitter) ID() uuid.UUID {
	return t.id
}

// Initialize creates the send socket. The socket is not bound; the OS picks the source port
// on first send. Re-initializing replaces the socket.
func (t *Transmitter) Initialize() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closeLocked()
	sock, err := t.factory()
	if err != nil {
		t.logger.Error().Err(err).Msg("failed to create socket")
		return fmt.Errorf("osc: create transmitter socket: %w", err)
	}
	t.sock = sock
	t.logger.Info().Msg("transmitter ready")
	return nil
}

// Shutdown closes the socket. It is safe to call more than once.
func (t *Transmitter) Shutdown() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sock != nil {
		t.closeLocked()
		t.logger.Info().Msg("transmitter shut down")
	}
}

func (t *Transmitter) closeLocked() {
	if t.sock == nil {
		return
	}
	if err := t.sock.Close(); err != nil {
		t.logger.Warn().Err(err).Msg("error closing socket")
	}
	t.sock = nil
}

// IsValid reports whether the transmitter holds a socket.
func (t *Transmitter) IsValid() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sock != nil && t.sock.IsValid()
}

// SendFloat sends a single float32 argument to target.
func (t *Transmitter) SendFloat(address string, v float32, target transport.Connection) bool {
	return t.SendMessage(address, "f", target, protocol.Float(v))
}

// SendDouble sends a single float64 argument to target.
func (t *Transmitter) SendDouble(address string, v float64, target transport.Connection) bool {
	return t.SendMessage(address, "d", target, protocol.Double(v))
}

// SendInt32 sends a single int32 argument to target.
func (t *Transmitter) SendInt32(address string, v int32, target transport.Connection) bool {
	return t.SendMessage(address, "i", target, protocol.Int32(v))
}

// SendInt64 sends a single int64 argument to target.
func (t *Transmitter) SendInt64(address string, v int64, target transport.Connection) bool {
	return t.SendMessage(address, "h", target, protocol.Int64(v))
}

// SendString sends a single string argument to target.
func (t *Transmitter) SendString(address, v string, target transport.Connection) bool {
	return t.SendMessage(address, "s", target, protocol.String(v))
}

// SendMessage encodes one message and sends it to target. tags must be one of the supported
// combinations (f, d, i, h, s, ff, fff, fis); anything else fails before args are inspected.
func (t *Transmitter) SendMessage(address, tags string, target transport.Connection, args ...protocol.Arg) bool {
	if !protocol.Supported(tags) {
		t.metrics.encodeError()
		t.logger.Warn().Str("address", address).Str("tags", tags).Msg("unsupported type tags")
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sock == nil {
		t.logger.Warn().Str("address", address).Msg("send on uninitialized transmitter")
		return false
	}

	n, err := protocol.Encode(t.buf[:], address, tags, args...)
	if err != nil {
		t.metrics.encodeError()
		t.logger.Warn().Err(err).Str("address", address).Str("tags", tags).Msg("encode failed")
		return false
	}
	return t.sendLocked(target, n, address)
}

// SendBundle encodes packets into one bundle datagram. Every packet is checked against the
// same tag table as SendMessage.
func (t *Transmitter) SendBundle(target transport.Connection, tt protocol.TimeTag, packets ...protocol.Packet) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sock == nil {
		t.logger.Warn().Int("packets", len(packets)).Msg("send on uninitialized transmitter")
		return false
	}

	n, err := protocol.EncodeBundle(t.buf[:], tt, packets...)
	if err != nil {
		t.metrics.encodeError()
		t.logger.Warn().Err(err).Int("packets", len(packets)).Msg("bundle encode failed")
		return false
	}
	return t.sendLocked(target, n, "#bundle")
}

func (t *Transmitter) sendLocked(target transport.Connection, n int, what string) bool {
	if err := t.sock.Send(target, t.buf[:n]); err != nil {
		t.metrics.sendError()
		t.logger.Warn().Err(err).Stringer("target", target).Str("address", what).Msg("send failed")
		return false
	}
	t.metrics.success(n)
	t.logger.Trace().Stringer("target", target).Str("address", what).Int("bytes", n).Msg("sent")
	return true
}
