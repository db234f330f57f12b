package transport

import (
	"fmt"
	"net"
	"strconv"
)

// Connection is an IPv4 address and port. It names the sender of a received datagram and
// the destination of a sent one.
type Connection struct {
	IP   [4]byte
	Port uint16
}

// NewConnection builds a Connection from address octets and a port.
func NewConnection(ip0, ip1, ip2, ip3 byte, port uint16) Connection {
	return Connection{IP: [4]byte{ip0, ip1, ip2, ip3}, Port: port}
}

// Any returns the wildcard address 0.0.0.0 with the given port.
func Any(port uint16) Connection {
	return Connection{Port: port}
}

// Loopback returns 127.0.0.1 with the given port.
func Loopback(port uint16) Connection {
	return NewConnection(127, 0, 0, 1, port)
}

// IsWildcard reports whether all four octets are zero.
func (c Connection) IsWildcard() bool {
	return c.IP == [4]byte{}
}

// String formats the connection as ip:port.
func (c Connection) String() string {
	return fmt.Sprintf("%d.%d.%d.%d:%d", c.IP[0], c.IP[1], c.IP[2], c.IP[3], c.Port)
}

// ParseIPv4 parses a dotted-quad address. An empty string is the wildcard.
func ParseIPv4(s string) ([4]byte, error) {
	var out [4]byte
	if s == "" {
		return out, nil
	}
	ip := net.ParseIP(s).To4()
	if ip == nil {
		return out, fmt.Errorf("transport: invalid IPv4 address %q", s)
	}
	copy(out[:], ip)
	return out, nil
}

// ParseConnection parses "ip:port". A missing host means the wildcard address.
func ParseConnection(s string) (Connection, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return Connection{}, fmt.Errorf("transport: parse %q: %w", s, err)
	}
	if host == "localhost" {
		host = "127.0.0.1"
	}
	ip, err := ParseIPv4(host)
	if err != nil {
		return Connection{}, err
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return Connection{}, fmt.Errorf("transport: invalid port %q: %w", portStr, err)
	}
	return Connection{IP: ip, Port: uint16(port)}, nil
}
