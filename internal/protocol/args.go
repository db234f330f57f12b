package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
)

// Arg is one encodable argument. The concrete types are Float, Double, Int32, Int64 and String.
type Arg interface {
	Tag() byte
	size() int
	put(buf []byte, off int) int
}

type (
	Float  float32
	Double float64
	Int32  int32
	Int64  int64
	String string
)

func (Float) Tag() byte  { return 'f' }
func (Double) Tag() byte { return 'd' }
func (Int32) Tag() byte  { return 'i' }
func (Int64) Tag() byte  { return 'h' }
func (String) Tag() byte { return 's' }

func (Float) size() int    { return 4 }
func (Double) size() int   { return 8 }
func (Int32) size() int    { return 4 }
func (Int64) size() int    { return 8 }
func (s String) size() int { return paddedStringSize(string(s)) }

func (v Float) put(buf []byte, off int) int {
	binary.BigEndian.PutUint32(buf[off:], math.Float32bits(float32(v)))
	return off + 4
}

func (v Double) put(buf []byte, off int) int {
	binary.BigEndian.PutUint64(buf[off:], math.Float64bits(float64(v)))
	return off + 8
}

func (v Int32) put(buf []byte, off int) int {
	binary.BigEndian.PutUint32(buf[off:], uint32(v))
	return off + 4
}

func (v Int64) put(buf []byte, off int) int {
	binary.BigEndian.PutUint64(buf[off:], uint64(v))
	return off + 8
}

func (v String) put(buf []byte, off int) int {
	return putString(buf, off, string(v))
}

// ParseArg converts text to an argument of the given tag.
func ParseArg(tag byte, text string) (Arg, error) {
	switch tag {
	case 'f':
		v, err := strconv.ParseFloat(text, 32)
		if err != nil {
			return nil, fmt.Errorf("parse float %q: %w", text, err)
		}
		return Float(v), nil
	case 'd':
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("parse double %q: %w", text, err)
		}
		return Double(v), nil
	case 'i':
		v, err := strconv.ParseInt(text, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("parse int32 %q: %w", text, err)
		}
		return Int32(v), nil
	case 'h':
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse int64 %q: %w", text, err)
		}
		return Int64(v), nil
	case 's':
		return String(text), nil
	default:
		return nil, fmt.Errorf("%w: %c", ErrUnknownTypeTag, tag)
	}
}

// ParseArgs converts one text value per tag.
func ParseArgs(tags string, texts []string) ([]Arg, error) {
	if len(tags) != len(texts) {
		return nil, fmt.Errorf("%w: %d tags, %d values", ErrArgumentMismatch, len(tags), len(texts))
	}
	args := make([]Arg, len(texts))
	for i := range texts {
		a, err := ParseArg(tags[i], texts[i])
		if err != nil {
			return nil, err
		}
		args[i] = a
	}
	return args, nil
}
