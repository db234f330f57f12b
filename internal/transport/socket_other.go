//go:build !unix

package transport

import "time"

// CreateSocket is unavailable without a POSIX socket API.
func CreateSocket() (*Socket, error) {
	return nil, ErrUnsupportedPlatform
}

func (s *Socket) Bind(Connection) error { return ErrUnsupportedPlatform }

func (s *Socket) Send(Connection, []byte) error { return ErrUnsupportedPlatform }

func (s *Socket) CanReceive(time.Duration) bool { return false }

func (s *Socket) Receive([]byte) (int, Connection, error) {
	return 0, Connection{}, ErrUnsupportedPlatform
}

func (s *Socket) LocalAddr() Connection { return Connection{} }

func closeFD(int) error { return nil }
