package transport

import (
	"runtime"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// handle is the OS descriptor shared by every Socket cloned from the same CreateSocket call.
type handle struct {
	fd      int
	refs    atomic.Int32
	cleanup runtime.Cleanup
}

// Socket is a non-blocking UDP/IPv4 endpoint. Clone shares the OS handle rather than
// duplicating it; the handle is closed exactly once, when the last owner calls Close or
// becomes unreachable.
//
// A Socket value is owned by one goroutine. Clones may live on different goroutines.
type Socket struct {
	h *handle
}

var _ Transport = (*Socket)(nil)

func newSocket(fd int) *Socket {
	h := &handle{fd: fd}
	h.refs.Store(1)
	h.cleanup = runtime.AddCleanup(h, func(fd int) { _ = closeFD(fd) }, fd)
	return &Socket{h: h}
}

// Clone returns a new owner of the same handle.
func (s *Socket) Clone() *Socket {
	if !s.IsValid() {
		return &Socket{}
	}
	s.h.refs.Add(1)
	return &Socket{h: s.h}
}

// IsValid reports whether this owner still holds the handle.
func (s *Socket) IsValid() bool {
	return s != nil && s.h != nil
}

// Close drops this owner's reference. The descriptor is closed when no owners remain.
// Closing an invalid Socket is a no-op.
func (s *Socket) Close() error {
	if !s.IsValid() {
		return nil
	}
	h := s.h
	s.h = nil
	if h.refs.Add(-1) > 0 {
		return nil
	}
	h.cleanup.Stop()
	if err := closeFD(h.fd); err != nil {
		log.Warn().Str("component", "transport").Err(err).Int("fd", h.fd).Msg("error closing socket")
		return err
	}
	return nil
}

func (s *Socket) fd() (int, error) {
	if !s.IsValid() {
		return -1, ErrInvalidSocket
	}
	return s.h.fd, nil
}
