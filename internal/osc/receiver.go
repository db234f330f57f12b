package osc

import (
	"errors"
	"fmt"
	"time"

	"github.com/LemmyAI/oscserver/internal/protocol"
	"github.com/LemmyAI/oscserver/internal/transport"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultPort                 = 7000
	DefaultChannelPath          = "/ch/%d"
	DefaultMaxMessagesPerUpdate = 16
	DefaultPollTimeout          = time.Microsecond
)

// Handler receives a decoded message. It runs on the goroutine calling Update and should
// return quickly.
type Handler func(msg protocol.Message)

// ReceiverConfig holds receiver tuning.
type ReceiverConfig struct {
	// ChannelPath is a template with exactly one %d, expanded by ChannelPath(i).
	ChannelPath string
	// MaxMessagesPerUpdate caps the datagrams read by a single Update call.
	MaxMessagesPerUpdate int
	// PollTimeout is how long each readiness check may wait.
	PollTimeout time.Duration
}

// DefaultReceiverConfig returns sensible defaults.
func DefaultReceiverConfig() ReceiverConfig {
	return ReceiverConfig{
		ChannelPath:          DefaultChannelPath,
		MaxMessagesPerUpdate: DefaultMaxMessagesPerUpdate,
		PollTimeout:          DefaultPollTimeout,
	}
}

// Receiver polls a UDP socket and routes decoded messages to handlers or a pending queue.
// A new Receiver is invalid until Initialize succeeds.
type Receiver struct {
	id      uuid.UUID
	cfg     ReceiverConfig
	logger  zerolog.Logger
	factory transport.Factory
	metrics *receiverMetrics

	sock     transport.Transport
	buf      [protocol.MaxPacketSize]byte
	handlers map[string]Handler
	queue    messageQueue
}

// NewReceiver creates an uninitialized receiver. Invalid config values fall back to defaults.
func NewReceiver(cfg ReceiverConfig, opts ...Option) *Receiver {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	id := uuid.New()
	r := &Receiver{
		id:       id,
		cfg:      DefaultReceiverConfig(),
		factory:  o.factory,
		handlers: make(map[string]Handler),
		logger: o.logger.With().
			Str("component", "osc.receiver").
			Str("receiver_id", id.String()).
			Logger(),
		metrics: newReceiverMetrics(o.registerer, id.String()),
	}

	if err := r.SetChannelPath(cfg.ChannelPath); err != nil && cfg.ChannelPath != "" {
		r.logger.Warn().Err(err).Str("channel_path", cfg.ChannelPath).Msg("using default channel path")
	}
	r.SetMaxMessagesPerUpdate(cfg.MaxMessagesPerUpdate)
	r.SetPollTimeout(cfg.PollTimeout)
	return r
}

// ID returns the identity assigned at construction. It survives re-initialization.
func (r *Receiver) ID() uuid.UUID {
	return r.id
}

// Initialize creates a socket and binds it to ip:port. An all-zero ip binds every interface
// and port 0 picks an ephemeral port. Calling Initialize on a valid receiver replaces its
// socket and keeps its handlers and queue. On failure the receiver is left invalid.
func (r *Receiver) Initialize(port uint16, ip [4]byte) error {
	if r.sock != nil {
		r.closeSocket()
	}

	local := transport.Connection{IP: ip, Port: port}
	sock, err := r.factory()
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to create socket")
		return fmt.Errorf("osc: create receiver socket: %w", err)
	}
	if err := sock.Bind(local); err != nil {
		_ = sock.Close()
		r.logger.Error().Err(err).Stringer("addr", local).Msg("failed to bind socket")
		return fmt.Errorf("osc: bind receiver: %w", err)
	}

	r.sock = sock
	r.logger.Info().Stringer("addr", sock.LocalAddr()).Msg("receiver listening")
	return nil
}

// Shutdown closes the socket and drops all handlers and queued messages. It is safe to call
// on a receiver that was never initialized and safe to call twice.
func (r *Receiver) Shutdown() {
	if r.sock != nil {
		r.closeSocket()
		r.logger.Info().Msg("receiver shut down")
	}
	clear(r.handlers)
	r.queue.clear()
	r.metrics.depth(0)
}

func (r *Receiver) closeSocket() {
	if err := r.sock.Close(); err != nil {
		r.logger.Warn().Err(err).Msg("error closing socket")
	}
	r.sock = nil
}

// IsValid reports whether the receiver holds a bound socket.
func (r *Receiver) IsValid() bool {
	return r.sock != nil && r.sock.IsValid()
}

// LocalAddr returns the bound address, or the zero Connection when invalid.
func (r *Receiver) LocalAddr() transport.Connection {
	if !r.IsValid() {
		return transport.Connection{}
	}
	return r.sock.LocalAddr()
}

// Update reads at most MaxMessagesPerUpdate datagrams and routes every message they hold.
// It stops early as soon as the socket has nothing ready and returns the number of datagrams
// read. On an invalid receiver it does nothing.
func (r *Receiver) Update() int {
	if !r.IsValid() {
		return 0
	}

	processed := 0
	for processed < r.cfg.MaxMessagesPerUpdate {
		// A handler may have shut the receiver down.
		if r.sock == nil || !r.sock.CanReceive(r.cfg.PollTimeout) {
			break
		}
		n, from, err := r.sock.Receive(r.buf[:])
		if err != nil {
			if !errors.Is(err, transport.ErrWouldBlock) {
				r.metrics.socketError()
				r.logger.Warn().Err(err).Msg("receive failed")
			}
			break
		}
		processed++
		r.metrics.received(n)

		// Decode only what arrived; the rest of buf holds older datagrams.
		msgs, err := protocol.Decode(r.buf[:n])
		if err != nil {
			r.metrics.decodeError()
			r.logger.Warn().Err(err).Stringer("from", from).Int("bytes", n).Msg("dropping malformed packet")
			continue
		}
		for _, msg := range msgs {
			if r.sock == nil {
				break
			}
			r.route(msg)
		}
	}

	r.metrics.batch(processed)
	return processed
}

func (r *Receiver) route(msg protocol.Message) {
	if h, ok := r.handlers[msg.Address]; ok {
		r.metrics.dispatch()
		h(msg)
		return
	}
	depth := r.queue.push(msg)
	r.metrics.enqueue(depth)
	r.logger.Trace().Str("address", msg.Address).Int("depth", depth).Msg("queued message")
}

// SetCallback registers h for an exact address, replacing any previous handler.
// A nil handler removes the registration.
func (r *Receiver) SetCallback(address string, h Handler) {
	if h == nil {
		delete(r.handlers, address)
		return
	}
	r.handlers[address] = h
}

// RemoveCallback unregisters the handler for address.
func (r *Receiver) RemoveCallback(address string) {
	delete(r.handlers, address)
}

// ClearCallbacks unregisters every handler.
func (r *Receiver) ClearCallbacks() {
	clear(r.handlers)
}

// HasCallback reports whether a handler is registered for address.
func (r *Receiver) HasCallback(address string) bool {
	_, ok := r.handlers[address]
	return ok
}

// HasMessages reports whether the pending queue is non-empty.
func (r *Receiver) HasMessages() bool {
	return r.queue.len() > 0
}

// PopMessage removes and returns the oldest pending message. When the queue is empty it
// returns the zero Message; check Address or IsZero.
func (r *Receiver) PopMessage() protocol.Message {
	msg, depth := r.queue.pop()
	r.metrics.depth(depth)
	return msg
}

// MessageCount returns the number of pending messages.
func (r *Receiver) MessageCount() int {
	return r.queue.len()
}

// ClearMessages drops every pending message.
func (r *Receiver) ClearMessages() {
	r.queue.clear()
	r.metrics.depth(0)
}

// SetChannelPath replaces the channel path template. The template must contain exactly one
// %d verb; %% is allowed as a literal percent sign.
func (r *Receiver) SetChannelPath(template string) error {
	if err := ValidateChannelPath(template); err != nil {
		return err
	}
	r.cfg.ChannelPath = template
	return nil
}

// ChannelPath expands the template with a 1-based channel index.
func (r *Receiver) ChannelPath(index int) string {
	return fmt.Sprintf(r.cfg.ChannelPath, index)
}

// SetMaxMessagesPerUpdate sets the per-Update cap. Non-positive values restore the default.
func (r *Receiver) SetMaxMessagesPerUpdate(n int) {
	if n <= 0 {
		n = DefaultMaxMessagesPerUpdate
	}
	r.cfg.MaxMessagesPerUpdate = n
}

// MaxMessagesPerUpdate returns the per-Update cap.
func (r *Receiver) MaxMessagesPerUpdate() int {
	return r.cfg.MaxMessagesPerUpdate
}

// SetPollTimeout sets the readiness wait. Negative values are treated as zero.
func (r *Receiver) SetPollTimeout(d time.Duration) {
	r.cfg.PollTimeout = max(d, 0)
}

// ValidateChannelPath checks that template holds exactly one %d and no other verb.
func ValidateChannelPath(template string) error {
	verbs := 0
	for i := 0; i < len(template); i++ {
		if template[i] != '%' {
			continue
		}
		if i+1 >= len(template) {
			return fmt.Errorf("%w: %q", ErrInvalidChannelPath, template)
		}
		switch template[i+1] {
		case '%':
		case 'd':
			verbs++
		default:
			return fmt.Errorf("%w: %q", ErrInvalidChannelPath, template)
		}
		i++
	}
	if verbs != 1 {
		return fmt.Errorf("%w: %q", ErrInvalidChannelPath, template)
	}
	return nil
}
