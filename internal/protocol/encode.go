package protocol

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// supportedTags is the closed set of type-tag strings Encode accepts.
var supportedTags = map[string]struct{}{
	"f":   {},
	"d":   {},
	"i":   {},
	"h":   {},
	"s":   {},
	"ff":  {},
	"fff": {},
	"fis": {},
}

// Supported reports whether tags (without the leading ',') can be encoded.
func Supported(tags string) bool {
	_, ok := supportedTags[tags]
	return ok
}

// Packet is one message to be written into a bundle.
type Packet struct {
	Address string
	Tags    string
	Args    []Arg
}

// Validate checks the address, the tag table and that args match tags, without encoding.
func Validate(address, tags string, args ...Arg) error {
	if len(address) == 0 || address[0] != '/' || strings.IndexByte(address, 0) >= 0 {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	if !Supported(tags) {
		return fmt.Errorf("%w: %q", ErrUnsupportedTags, tags)
	}
	if len(args) != len(tags) {
		return fmt.Errorf("%w: %d tags, %d arguments", ErrArgumentMismatch, len(tags), len(args))
	}
	for i, a := range args {
		if a == nil || a.Tag() != tags[i] {
			return fmt.Errorf("%w: argument %d is not %c", ErrArgumentMismatch, i, tags[i])
		}
		if s, ok := a.(String); ok && strings.IndexByte(string(s), 0) >= 0 {
			return fmt.Errorf("%w: argument %d contains NUL", ErrArgumentMismatch, i)
		}
	}
	return nil
}

// EncodedSize returns the wire size of a message. It assumes the arguments are valid.
func EncodedSize(address, tags string, args ...Arg) int {
	n := paddedStringSize(address) + pad4(len(tags)+2)
	for _, a := range args {
		n += a.size()
	}
	return n
}

// Encode writes one message into buf and returns the number of bytes written. It fails if
// the tag combination is unsupported, the arguments do not match it, or buf is too small.
func Encode(buf []byte, address, tags string, args ...Arg) (int, error) {
	if err := Validate(address, tags, args...); err != nil {
		return 0, err
	}
	size := EncodedSize(address, tags, args...)
	if size > len(buf) {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrBufferTooSmall, size, len(buf))
	}

	off := putString(buf, 0, address)
	off = putString(buf, off, ","+tags)
	for _, a := range args {
		off = a.put(buf, off)
	}
	return off, nil
}

// EncodeBundle writes a flat bundle of packets into buf.
func EncodeBundle(buf []byte, tt TimeTag, packets ...Packet) (int, error) {
	if len(buf) < len(bundleMarker)+8 {
		return 0, ErrBufferTooSmall
	}
	off := copy(buf, bundleMarker)
	binary.BigEndian.PutUint64(buf[off:], uint64(tt))
	off += 8

	for i, p := range packets {
		if len(buf)-off < 4 {
			return 0, ErrBufferTooSmall
		}
		n, err := Encode(buf[off+4:], p.Address, p.Tags, p.Args...)
		if err != nil {
			return 0, fmt.Errorf("bundle element %d: %w", i, err)
		}
		binary.BigEndian.PutUint32(buf[off:], uint32(n))
		off += 4 + n
	}
	return off, nil
}

// putString writes s, its terminator and zero padding.
func putString(buf []byte, off int, s string) int {
	n := copy(buf[off:], s)
	end := off + paddedStringSize(s)
	clear(buf[off+n : end])
	return end
}
