package protocol

import (
	"math"
	"strings"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ToStruct converts m to a protobuf Struct with one list per argument type. Empty lists are
// omitted. Struct cannot hold every wire value: non-finite floats become the strings "NaN",
// "Infinity" and "-Infinity", and invalid UTF-8 is replaced with U+FFFD.
func (m Message) ToStruct() (*structpb.Struct, error) {
	fields := map[string]any{"address": validUTF8(m.Address)}
	if len(m.Floats) > 0 {
		fields["floats"] = floatList(m.Floats)
	}
	if len(m.Doubles) > 0 {
		fields["doubles"] = floatList(m.Doubles)
	}
	if len(m.Int32s) > 0 {
		fields["int32s"] = toList(m.Int32s)
	}
	if len(m.Int64s) > 0 {
		fields["int64s"] = toList(m.Int64s)
	}
	if len(m.Strings) > 0 {
		out := make([]any, len(m.Strings))
		for i, s := range m.Strings {
			out[i] = validUTF8(s)
		}
		fields["strings"] = out
	}
	return structpb.NewStruct(fields)
}

// MarshalJSON renders the message through ToStruct.
func (m Message) MarshalJSON() ([]byte, error) {
	s, err := m.ToStruct()
	if err != nil {
		return nil, err
	}
	return protojson.Marshal(s)
}

func toList[T any](values []T) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func floatList[T float32 | float64](values []T) []any {
	out := make([]any, len(values))
	for i, v := range values {
		f := float64(v)
		switch {
		case math.IsNaN(f):
			out[i] = "NaN"
		case math.IsInf(f, 1):
			out[i] = "Infinity"
		case math.IsInf(f, -1):
			out[i] = "-Infinity"
		default:
			out[i] = f
		}
	}
	return out
}

func validUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}
