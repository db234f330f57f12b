// Package protocol encodes and decodes OSC 1.0 packets.
//
// Decoding is strict: a datagram either decodes completely or yields an error and no messages.
// Encoding is limited to a closed table of type-tag strings (see Supported).
package protocol

import (
	"errors"
	"time"
)

// MaxPacketSize is the receive and send buffer size used by the receiver and transmitter.
const MaxPacketSize = 2048

var (
	ErrTruncated        = errors.New("protocol: packet truncated")
	ErrInvalidAddress   = errors.New("protocol: address must start with '/'")
	ErrInvalidTypeTags  = errors.New("protocol: type tag string must start with ','")
	ErrUnknownTypeTag   = errors.New("protocol: unknown type tag")
	ErrUnsupportedTags  = errors.New("protocol: unsupported type tag combination")
	ErrArgumentMismatch = errors.New("protocol: arguments do not match type tags")
	ErrBufferTooSmall   = errors.New("protocol: buffer too small")
	ErrInvalidBundle    = errors.New("protocol: invalid bundle")
	ErrNestedBundle     = errors.New("protocol: nested bundles are not supported")
)

const bundleMarker = "#bundle\x00"

// TimeTag is an OSC time tag: NTP seconds since 1900 in the upper 32 bits, fraction in the lower.
type TimeTag uint64

// Immediately is the reserved time tag meaning "process on receipt".
const Immediately TimeTag = 1

// ntpEpochOffset is the number of seconds between 1900-01-01 and 1970-01-01.
const ntpEpochOffset = 2208988800

// NewTimeTag converts t to a time tag.
func NewTimeTag(t time.Time) TimeTag {
	secs := uint64(t.Unix() + ntpEpochOffset)
	frac := (uint64(t.Nanosecond()) << 32) / uint64(time.Second)
	return TimeTag(secs<<32 | frac)
}

// Time converts the tag back to wall-clock time. Immediately has no meaningful time.
func (tt TimeTag) Time() time.Time {
	secs := int64(uint64(tt)>>32) - ntpEpochOffset
	nanos := (uint64(tt) & 0xffffffff) * uint64(time.Second) >> 32
	return time.Unix(secs, int64(nanos))
}

// IsBundle reports whether data starts with the bundle marker.
func IsBundle(data []byte) bool {
	return len(data) >= len(bundleMarker) && string(data[:len(bundleMarker)]) == bundleMarker
}

// pad4 rounds n up to a multiple of four.
func pad4(n int) int {
	return (n + 3) &^ 3
}

// paddedStringSize is the wire size of s including its terminator and padding.
func paddedStringSize(s string) int {
	return pad4(len(s) + 1)
}
