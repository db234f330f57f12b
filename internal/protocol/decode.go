package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Decode parses one datagram. A bundle yields one Message per element, in bundle order; a
// plain message yields exactly one. data must be sliced to the number of bytes actually
// received: trailing bytes are treated as part of the packet.
func Decode(data []byte) ([]Message, error) {
	if IsBundle(data) {
		_, msgs, err := DecodeBundle(data)
		return msgs, err
	}
	msg, err := DecodeMessage(data)
	if err != nil {
		return nil, err
	}
	return []Message{msg}, nil
}

// DecodeBundle parses a flat bundle and returns its time tag and messages. Any malformed
// element fails the whole bundle.
func DecodeBundle(data []byte) (TimeTag, []Message, error) {
	if !IsBundle(data) {
		return 0, nil, ErrInvalidBundle
	}
	r := reader{data: data, off: len(bundleMarker)}
	tt, err := r.uint64()
	if err != nil {
		return 0, nil, fmt.Errorf("bundle time tag: %w", err)
	}

	var msgs []Message
	for r.remaining() > 0 {
		size, err := r.int32()
		if err != nil {
			return 0, nil, fmt.Errorf("bundle element %d size: %w", len(msgs), err)
		}
		if size <= 0 || size%4 != 0 {
			return 0, nil, fmt.Errorf("%w: element %d has size %d", ErrInvalidBundle, len(msgs), size)
		}
		elem, err := r.bytes(int(size))
		if err != nil {
			return 0, nil, fmt.Errorf("bundle element %d: %w", len(msgs), err)
		}
		if IsBundle(elem) {
			return 0, nil, ErrNestedBundle
		}
		msg, err := DecodeMessage(elem)
		if err != nil {
			return 0, nil, fmt.Errorf("bundle element %d: %w", len(msgs), err)
		}
		msgs = append(msgs, msg)
	}
	return TimeTag(tt), msgs, nil
}

// DecodeMessage parses a single message. A message without a type-tag string decodes with
// no arguments.
func DecodeMessage(data []byte) (Message, error) {
	r := reader{data: data}
	address, err := r.string()
	if err != nil {
		return Message{}, fmt.Errorf("address: %w", err)
	}
	if len(address) == 0 || address[0] != '/' {
		return Message{}, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}

	msg := Message{Address: address}
	if r.remaining() == 0 {
		return msg, nil
	}
	if data[r.off] != ',' {
		return Message{}, ErrInvalidTypeTags
	}
	tags, err := r.string()
	if err != nil {
		return Message{}, fmt.Errorf("type tags: %w", err)
	}

	for i := 1; i < len(tags); i++ {
		if err := decodeArg(&r, tags[i], &msg); err != nil {
			return Message{}, fmt.Errorf("argument %d (%c): %w", i-1, tags[i], err)
		}
	}
	return msg, nil
}

func decodeArg(r *reader, tag byte, msg *Message) error {
	switch tag {
	case 'f':
		v, err := r.uint32()
		if err != nil {
			return err
		}
		msg.Floats = append(msg.Floats, math.Float32frombits(v))
	case 'd':
		v, err := r.uint64()
		if err != nil {
			return err
		}
		msg.Doubles = append(msg.Doubles, math.Float64frombits(v))
	case 'i':
		v, err := r.int32()
		if err != nil {
			return err
		}
		msg.Int32s = append(msg.Int32s, v)
	case 'h':
		v, err := r.uint64()
		if err != nil {
			return err
		}
		msg.Int64s = append(msg.Int64s, int64(v))
	case 's':
		v, err := r.string()
		if err != nil {
			return err
		}
		msg.Strings = append(msg.Strings, v)

	// Tags with a payload but no Message slot: consume the payload to keep alignment.
	case 'S':
		_, err := r.string()
		return err
	case 'b':
		n, err := r.int32()
		if err != nil {
			return err
		}
		if n < 0 {
			return ErrTruncated
		}
		_, err = r.bytes(pad4(int(n)))
		return err
	case 't':
		_, err := r.uint64()
		return err
	case 'c', 'r', 'm':
		_, err := r.uint32()
		return err

	case 'T', 'F', 'N', 'I', '[', ']':
	default:
		return ErrUnknownTypeTag
	}
	return nil
}

// reader walks a packet. Every read checks the remaining length first.
type reader struct {
	data []byte
	off  int
}

func (r *reader) remaining() int {
	return len(r.data) - r.off
}

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, ErrTruncated
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) uint32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *reader) int32() (int32, error) {
	v, err := r.uint32()
	return int32(v), err
}

func (r *reader) uint64() (uint64, error) {
	b, err := r.bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// string reads a NUL-terminated string and skips its padding.
func (r *reader) string() (string, error) {
	end := bytes.IndexByte(r.data[r.off:], 0)
	if end < 0 {
		return "", ErrTruncated
	}
	s := string(r.data[r.off : r.off+end])
	if _, err := r.bytes(pad4(end + 1)); err != nil {
		return "", err
	}
	return s, nil
}
