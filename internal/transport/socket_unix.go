//go:build unix

package transport

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

// selectFDLimit is FD_SETSIZE: an FdSet cannot describe descriptors at or above it.
const selectFDLimit = 1024

// CreateSocket allocates a UDP datagram socket and switches it to non-blocking mode.
// Failing to set non-blocking mode is logged and tolerated.
func CreateSocket() (*Socket, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, unix.IPPROTO_UDP)
	if err != nil {
		return nil, fmt.Errorf("transport: create socket: %w", err)
	}
	unix.CloseOnExec(fd)

	if err := unix.SetNonblock(fd, true); err != nil {
		log.Warn().
			Str("component", "transport").
			Err(err).
			Int("fd", fd).
			Msg("could not switch socket to non-blocking mode")
	}
	return newSocket(fd), nil
}

// Bind attaches the socket to local. The wildcard address binds all interfaces.
func (s *Socket) Bind(local Connection) error {
	fd, err := s.fd()
	if err != nil {
		return err
	}

	sa := &unix.SockaddrInet4{Port: int(local.Port)}
	if !local.IsWildcard() {
		sa.Addr = local.IP
	}
	if err := unix.Bind(fd, sa); err != nil {
		return fmt.Errorf("transport: bind %s: %w", local, err)
	}
	return nil
}

// Send writes one datagram to dst. There is no retry.
func (s *Socket) Send(dst Connection, data []byte) error {
	fd, err := s.fd()
	if err != nil {
		return err
	}

	sa := &unix.SockaddrInet4{Port: int(dst.Port), Addr: dst.IP}
	if err := unix.Sendto(fd, data, 0, sa); err != nil {
		return fmt.Errorf("transport: send to %s: %w", dst, err)
	}
	return nil
}

// CanReceive waits at most timeout for the socket to become readable.
func (s *Socket) CanReceive(timeout time.Duration) bool {
	fd, err := s.fd()
	if err != nil {
		return false
	}
	if fd >= selectFDLimit {
		log.Warn().Str("component", "transport").Err(ErrDescriptorRange).Int("fd", fd).Msg("readiness check skipped")
		return false
	}

	var readfds unix.FdSet
	readfds.Zero()
	readfds.Set(fd)
	tv := unix.NsecToTimeval(timeout.Nanoseconds())

	// nfd is the highest descriptor in any set plus one.
	n, err := unix.Select(fd+1, &readfds, nil, nil, &tv)
	if err != nil {
		if !errors.Is(err, unix.EINTR) {
			log.Warn().Str("component", "transport").Err(err).Int("fd", fd).Msg("readiness check failed")
		}
		return false
	}
	return n > 0 && readfds.IsSet(fd)
}

// Receive reads one datagram. ErrWouldBlock means the socket had nothing queued.
func (s *Socket) Receive(buf []byte) (int, Connection, error) {
	fd, err := s.fd()
	if err != nil {
		return 0, Connection{}, err
	}

	n, from, err := unix.Recvfrom(fd, buf, 0)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EINTR) {
			return 0, Connection{}, ErrWouldBlock
		}
		return 0, Connection{}, fmt.Errorf("transport: receive: %w", err)
	}
	return n, fromSockaddr(from), nil
}

// LocalAddr returns the address the socket is bound to.
func (s *Socket) LocalAddr() Connection {
	fd, err := s.fd()
	if err != nil {
		return Connection{}
	}
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return Connection{}
	}
	return fromSockaddr(sa)
}

// fromSockaddr converts a kernel address. x/sys has already swapped the port to host order.
func fromSockaddr(sa unix.Sockaddr) Connection {
	in4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return Connection{}
	}
	return Connection{IP: in4.Addr, Port: uint16(in4.Port)}
}

func closeFD(fd int) error {
	return unix.Close(fd)
}
