package protocol

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		tags string
		args []Arg
		want Message
	}{
		{"float", "f", []Arg{Float(0.25)}, Message{Floats: []float32{0.25}}},
		{"negative float", "f", []Arg{Float(-3.5)}, Message{Floats: []float32{-3.5}}},
		{"double", "d", []Arg{Double(-1234.5678)}, Message{Doubles: []float64{-1234.5678}}},
		{"int32", "i", []Arg{Int32(-42)}, Message{Int32s: []int32{-42}}},
		{"int64", "h", []Arg{Int64(-1 << 40)}, Message{Int64s: []int64{-1 << 40}}},
		{"empty string", "s", []Arg{String("")}, Message{Strings: []string{""}}},
		{"padded string", "s", []Arg{String("hello")}, Message{Strings: []string{"hello"}}},
		{"aligned string", "s", []Arg{String("four")}, Message{Strings: []string{"four"}}},
		{"two floats", "ff", []Arg{Float(1), Float(0.5)}, Message{Floats: []float32{1, 0.5}}},
		{"three floats", "fff", []Arg{Float(1), Float(2), Float(-3)}, Message{Floats: []float32{1, 2, -3}}},
		{
			"float int string", "fis",
			[]Arg{Float(0.75), Int32(7), String("mixer")},
			Message{Floats: []float32{0.75}, Int32s: []int32{7}, Strings: []string{"mixer"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, MaxPacketSize)
			n, err := Encode(buf, "/ch/1", tt.tags, tt.args...)
			require.NoError(t, err)
			assert.Zero(t, n%4, "packet size must be 4-byte aligned")

			msgs, err := Decode(buf[:n])
			require.NoError(t, err)
			require.Len(t, msgs, 1)

			tt.want.Address = "/ch/1"
			assert.Equal(t, tt.want, msgs[0])
		})
	}
}

func TestEncode_WireFormat(t *testing.T) {
	buf := make([]byte, 64)
	n, err := Encode(buf, "/a", "i", Int32(1))
	require.NoError(t, err)

	want := []byte{
		'/', 'a', 0, 0,
		',', 'i', 0, 0,
		0, 0, 0, 1,
	}
	assert.Equal(t, want, buf[:n])
}

func TestEncode_Errors(t *testing.T) {
	buf := make([]byte, MaxPacketSize)

	_, err := Encode(buf, "ch/1", "f", Float(1))
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = Encode(buf, "/ch/1", "if", Int32(1), Float(1))
	assert.ErrorIs(t, err, ErrUnsupportedTags)

	_, err = Encode(buf, "/ch/1", "T")
	assert.ErrorIs(t, err, ErrUnsupportedTags)

	_, err = Encode(buf, "/ch/1", "ff", Float(1))
	assert.ErrorIs(t, err, ErrArgumentMismatch)

	_, err = Encode(buf, "/ch/1", "f", Int32(1))
	assert.ErrorIs(t, err, ErrArgumentMismatch)

	_, err = Encode(buf, "/ch/1", "s", String("a\x00b"))
	assert.ErrorIs(t, err, ErrArgumentMismatch)

	_, err = Encode(buf[:8], "/ch/1", "f", Float(1))
	assert.ErrorIs(t, err, ErrBufferTooSmall)
}

func TestEncode_CapacityLimit(t *testing.T) {
	buf := make([]byte, MaxPacketSize)
	long := make([]byte, MaxPacketSize)
	for i := range long {
		long[i] = 'x'
	}
	_, err := Encode(buf, "/big", "s", String(long))
	assert.ErrorIs(t, err, ErrBufferTooSmall)
}

func TestDecode_Bundle(t *testing.T) {
	for _, count := range []int{0, 1, 2, 5} {
		t.Run(fmt.Sprintf("%d elements", count), func(t *testing.T) {
			packets := make([]Packet, count)
			for i := range packets {
				packets[i] = Packet{
					Address: fmt.Sprintf("/ch/%d", i+1),
					Tags:    "fis",
					Args:    []Arg{Float(float32(i) / 10), Int32(int32(i)), String(fmt.Sprintf("n%d", i))},
				}
			}

			buf := make([]byte, MaxPacketSize)
			n, err := EncodeBundle(buf, Immediately, packets...)
			require.NoError(t, err)

			msgs, err := Decode(buf[:n])
			require.NoError(t, err)
			require.Len(t, msgs, count)
			for i, msg := range msgs {
				assert.Equal(t, fmt.Sprintf("/ch/%d", i+1), msg.Address)
				assert.Equal(t, int32(i), msg.Int32(0))
				assert.Equal(t, fmt.Sprintf("n%d", i), msg.String(0))
			}
		})
	}
}

func TestDecodeBundle_TimeTag(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 500_000_000, time.UTC)
	tt := NewTimeTag(now)

	buf := make([]byte, 64)
	n, err := EncodeBundle(buf, tt, Packet{Address: "/x", Tags: "i", Args: []Arg{Int32(3)}})
	require.NoError(t, err)

	got, msgs, err := DecodeBundle(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, tt, got)
	assert.WithinDuration(t, now, got.Time(), time.Microsecond)
	require.Len(t, msgs, 1)
}

func TestDecode_NestedBundle(t *testing.T) {
	inner := make([]byte, 64)
	innerLen, err := EncodeBundle(inner, Immediately)
	require.NoError(t, err)

	outer := append([]byte(bundleMarker), make([]byte, 8)...)
	outer = binary.BigEndian.AppendUint32(outer, uint32(innerLen))
	outer = append(outer, inner[:innerLen]...)

	_, err = Decode(outer)
	assert.ErrorIs(t, err, ErrNestedBundle)
}

func TestDecode_BundleErrors(t *testing.T) {
	header := append([]byte(bundleMarker), make([]byte, 8)...)

	_, err := Decode([]byte(bundleMarker))
	assert.ErrorIs(t, err, ErrTruncated)

	zero := binary.BigEndian.AppendUint32(append([]byte{}, header...), 0)
	_, err = Decode(zero)
	assert.ErrorIs(t, err, ErrInvalidBundle)

	oversized := binary.BigEndian.AppendUint32(append([]byte{}, header...), 64)
	oversized = append(oversized, '/', 'a', 0, 0)
	_, err = Decode(oversized)
	assert.ErrorIs(t, err, ErrTruncated)

	_, _, err = DecodeBundle([]byte("/not/a/bundle\x00\x00\x00"))
	assert.ErrorIs(t, err, ErrInvalidBundle)
}

func TestDecode_UsesReceivedLength(t *testing.T) {
	buf := make([]byte, MaxPacketSize)

	// A larger earlier datagram leaves stale bytes behind the next one.
	_, err := Encode(buf, "/previous/and/much/longer/address", "fis", Float(9), Int32(9), String("stale stale stale"))
	require.NoError(t, err)
	for i := 200; i < len(buf); i++ {
		buf[i] = 0xAB
	}

	clean := make([]byte, 64)
	n, err := Encode(clean, "/ch/2", "f", Float(0.5))
	require.NoError(t, err)
	copy(buf, clean[:n])

	fromBuffer, err := Decode(buf[:n])
	require.NoError(t, err)
	fromExact, err := Decode(clean[:n])
	require.NoError(t, err)
	assert.Equal(t, fromExact, fromBuffer)
	assert.Equal(t, []float32{0.5}, fromBuffer[0].Floats)
}

func TestDecode_Malformed(t *testing.T) {
	valid := make([]byte, 64)
	n, err := Encode(valid, "/ch/1", "fis", Float(1), Int32(2), String("abc"))
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrTruncated},
		{"unterminated address", []byte("/ch/1"), ErrTruncated},
		{"missing leading slash", []byte("ch\x00\x00,f\x00\x00\x00\x00\x00\x00"), ErrInvalidAddress},
		{"bad type tag prefix", []byte("/a\x00\x00xf\x00\x00\x00\x00\x00\x00"), ErrInvalidTypeTags},
		{"tags without payload", []byte("/a\x00\x00,f\x00\x00"), ErrTruncated},
		{"short int", []byte("/a\x00\x00,i\x00\x00\x00\x00"), ErrTruncated},
		{"unknown tag", []byte("/a\x00\x00,q\x00\x00"), ErrUnknownTypeTag},
		{"truncated tail", valid[:n-4], ErrTruncated},
		{"truncated mid float", valid[:14], ErrTruncated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs, err := Decode(tt.data)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, msgs)
		})
	}
}

func TestDecode_NoTypeTags(t *testing.T) {
	msgs, err := Decode([]byte("/ping\x00\x00\x00"))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "/ping", msgs[0].Address)
	assert.Zero(t, msgs[0].ArgCount())
}

func TestDecode_SkipsUnsupportedTags(t *testing.T) {
	var data []byte
	data = append(data, "/mix\x00\x00\x00\x00"...)
	data = append(data, ",TfbNsI\x00"...)
	data = binary.BigEndian.AppendUint32(data, 0x3f800000) // 1.0
	data = binary.BigEndian.AppendUint32(data, 5)          // blob length
	data = append(data, 1, 2, 3, 4, 5, 0, 0, 0)
	data = append(data, "tail\x00\x00\x00\x00"...)

	msgs, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	msg := msgs[0]
	assert.Equal(t, []float32{1}, msg.Floats)
	assert.Equal(t, []string{"tail"}, msg.Strings)
	assert.Equal(t, 2, msg.ArgCount())
}

func TestMessage_Accessors(t *testing.T) {
	msg := Message{
		Address: "/x",
		Floats:  []float32{1.5},
		Doubles: []float64{2.5},
		Int32s:  []int32{3},
		Int64s:  []int64{4},
		Strings: []string{"five"},
	}
	assert.Equal(t, float32(1.5), msg.Float(0))
	assert.Equal(t, 2.5, msg.Double(0))
	assert.Equal(t, int32(3), msg.Int32(0))
	assert.Equal(t, int64(4), msg.Int64(0))
	assert.Equal(t, "five", msg.String(0))

	assert.Zero(t, msg.Float(1))
	assert.Zero(t, msg.Double(-1))
	assert.Zero(t, msg.Int32(5))
	assert.Zero(t, msg.Int64(1))
	assert.Empty(t, msg.String(2))
	assert.Equal(t, 1, msg.StringCount())
	assert.False(t, msg.IsZero())
	assert.True(t, Message{}.IsZero())
}

func TestParseArgs(t *testing.T) {
	args, err := ParseArgs("fis", []string{"0.5", "-3", "hi"})
	require.NoError(t, err)
	assert.Equal(t, []Arg{Float(0.5), Int32(-3), String("hi")}, args)

	args, err = ParseArgs("h", []string{"9000000000"})
	require.NoError(t, err)
	assert.Equal(t, []Arg{Int64(9000000000)}, args)

	_, err = ParseArgs("i", []string{"9000000000"})
	assert.Error(t, err)

	_, err = ParseArgs("ff", []string{"1"})
	assert.ErrorIs(t, err, ErrArgumentMismatch)

	_, err = ParseArg('x', "1")
	assert.ErrorIs(t, err, ErrUnknownTypeTag)
}

func TestMessage_MarshalJSON(t *testing.T) {
	msg := Message{Address: "/ch/1", Floats: []float32{0.5}, Int32s: []int32{2}, Strings: []string{"a"}}
	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "/ch/1", decoded["address"])
	assert.Equal(t, []any{0.5}, decoded["floats"])
	assert.Equal(t, []any{2.0}, decoded["int32s"])
	assert.Equal(t, []any{"a"}, decoded["strings"])
	assert.NotContains(t, decoded, "doubles")
}

func TestMessage_MarshalJSONUnrepresentableValues(t *testing.T) {
	tests := []struct {
		name  string
		tags  string
		arg   Arg
		field string
		want  any
	}{
		{"nan float", "f", Float(float32(math.NaN())), "floats", "NaN"},
		{"positive infinity double", "d", Double(math.Inf(1)), "doubles", "Infinity"},
		{"negative infinity float", "f", Float(float32(math.Inf(-1))), "floats", "-Infinity"},
		{"invalid utf-8", "s", String("caf\xe9"), "strings", "caf\uFFFD"},
	}

	buf := make([]byte, MaxPacketSize)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := Encode(buf, "/wire", tt.tags, tt.arg)
			require.NoError(t, err)
			msgs, err := Decode(buf[:n])
			require.NoError(t, err)
			require.Len(t, msgs, 1)

			data, err := json.Marshal(msgs[0])
			require.NoError(t, err)

			var decoded map[string]any
			require.NoError(t, json.Unmarshal(data, &decoded))
			assert.Equal(t, "/wire", decoded["address"])
			assert.Equal(t, []any{tt.want}, decoded[tt.field])
		})
	}
}

func BenchmarkEncodeMessage(b *testing.B) {
	buf := make([]byte, MaxPacketSize)
	for i := 0; i < b.N; i++ {
		_, _ = Encode(buf, "/ch/1", "fis", Float(0.5), Int32(1), String("fader"))
	}
}

func BenchmarkDecodeMessage(b *testing.B) {
	buf := make([]byte, MaxPacketSize)
	n, _ := Encode(buf, "/ch/1", "fis", Float(0.5), Int32(1), String("fader"))
	data := buf[:n]

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Decode(data)
	}
}
