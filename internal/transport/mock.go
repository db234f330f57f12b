package transport

import (
	"sync"
	"time"
)

// MockTransport is an in-memory Transport for testing.
type MockTransport struct {
	mu     sync.Mutex
	local  Connection
	bound  bool
	closed bool
	inbox  []MockMessage
	sent   []MockMessage

	// BindErr and SendErr, when set, are returned by Bind and Send.
	BindErr error
	SendErr error
}

// MockMessage records a datagram and its peer.
type MockMessage struct {
	Peer Connection
	Data []byte
}

var _ Transport = (*MockTransport)(nil)

// NewMockTransport creates a mock that reports 127.0.0.1:9000 until bound.
func NewMockTransport() *MockTransport {
	return &MockTransport{local: Loopback(9000)}
}

// Bind records the local address.
func (t *MockTransport) Bind(local Connection) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrInvalidSocket
	}
	if t.BindErr != nil {
		return t.BindErr
	}
	t.local = local
	t.bound = true
	return nil
}

// Send records the datagram as sent.
func (t *MockTransport) Send(dst Connection, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrInvalidSocket
	}
	if t.SendErr != nil {
		return t.SendErr
	}
	t.sent = append(t.sent, MockMessage{Peer: dst, Data: append([]byte(nil), data...)})
	return nil
}

// CanReceive reports whether an injected datagram is waiting. It never blocks.
func (t *MockTransport) CanReceive(time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed && len(t.inbox) > 0
}

// Receive pops the oldest injected datagram, truncating it to len(buf).
func (t *MockTransport) Receive(buf []byte) (int, Connection, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, Connection{}, ErrInvalidSocket
	}
	if len(t.inbox) == 0 {
		return 0, Connection{}, ErrWouldBlock
	}
	msg := t.inbox[0]
	t.inbox = t.inbox[1:]
	n := copy(buf, msg.Data)
	return n, msg.Peer, nil
}

// LocalAddr returns the bound address.
func (t *MockTransport) LocalAddr() Connection {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.local
}

// IsValid reports whether Close has not been called.
func (t *MockTransport) IsValid() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed
}

// Close invalidates the mock.
func (t *MockTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// Inject queues a datagram to be returned by Receive.
func (t *MockTransport) Inject(from Connection, data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inbox = append(t.inbox, MockMessage{Peer: from, Data: append([]byte(nil), data...)})
}

// Pending returns the number of injected datagrams not yet received.
func (t *MockTransport) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inbox)
}

// Sent returns a copy of all sent datagrams.
func (t *MockTransport) Sent() []MockMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	result := make([]MockMessage, len(t.sent))
	copy(result, t.sent)
	return result
}

// Bound reports whether Bind succeeded.
func (t *MockTransport) Bound() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bound
}

// ClearSent clears the sent message history.
func (t *MockTransport) ClearSent() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = t.sent[:0]
}
