package protocol

// Message is one decoded OSC message. Arguments are grouped by type, each slice keeping the
// order the values had in the type-tag string. The position of a value among arguments of
// other types is not kept.
//
// Tags without a value slot (T, F, N, I, arrays, blobs, ...) are skipped on decode, so the
// total argument count may be smaller than the length of the type-tag string. A tag outside
// the OSC 1.0 standard and extended sets fails the whole packet with ErrUnknownTypeTag, since
// its payload size is unknown.
type Message struct {
	Address string
	Floats  []float32
	Doubles []float64
	Int32s  []int32
	Int64s  []int64
	Strings []string
}

// IsZero reports whether m is the empty message returned by an empty queue.
func (m Message) IsZero() bool {
	return m.Address == "" && m.ArgCount() == 0
}

// ArgCount returns the number of decoded arguments across all types.
func (m Message) ArgCount() int {
	return len(m.Floats) + len(m.Doubles) + len(m.Int32s) + len(m.Int64s) + len(m.Strings)
}

// Float returns the i-th float32 argument, or 0 if there is none.
func (m Message) Float(i int) float32 {
	if i < 0 || i >= len(m.Floats) {
		return 0
	}
	return m.Floats[i]
}

// Double returns the i-th float64 argument, or 0 if there is none.
func (m Message) Double(i int) float64 {
	if i < 0 || i >= len(m.Doubles) {
		return 0
	}
	return m.Doubles[i]
}

// Int32 returns the i-th int32 argument, or 0 if there is none.
func (m Message) Int32(i int) int32 {
	if i < 0 || i >= len(m.Int32s) {
		return 0
	}
	return m.Int32s[i]
}

// Int64 returns the i-th int64 argument, or 0 if there is none.
func (m Message) Int64(i int) int64 {
	if i < 0 || i >= len(m.Int64s) {
		return 0
	}
	return m.Int64s[i]
}

// String returns the i-th string argument, or "" if there is none.
func (m Message) String(i int) string {
	if i < 0 || i >= len(m.Strings) {
		return ""
	}
	return m.Strings[i]
}

// FloatCount returns the number of float32 arguments.
func (m Message) FloatCount() int { return len(m.Floats) }

// DoubleCount returns the number of float64 arguments.
func (m Message) DoubleCount() int { return len(m.Doubles) }

// Int32Count returns the number of int32 arguments.
func (m Message) Int32Count() int { return len(m.Int32s) }

// Int64Count returns the number of int64 arguments.
func (m Message) Int64Count() int { return len(m.Int64s) }

// StringCount returns the number of string arguments.
func (m Message) StringCount() int { return len(m.Strings) }
