package main

import (
	"bytes"
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/LemmyAI/oscserver/internal/osc"
	"github.com/LemmyAI/oscserver/internal/protocol"
	"github.com/LemmyAI/oscserver/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferTags(t *testing.T) {
	tests := []struct {
		values []string
		want   string
	}{
		{nil, ""},
		{[]string{"0.5"}, "f"},
		{[]string{"3"}, "i"},
		{[]string{"main"}, "s"},
		{[]string{"0.5", "3", "main"}, "fis"},
		{[]string{"1e3"}, "f"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, inferTags(tt.values), "values %v", tt.values)
	}
}

func TestBuildPacket(t *testing.T) {
	p, err := buildPacket("/ch/1", "", []string{"0.75"})
	require.NoError(t, err)
	assert.Equal(t, protocol.Packet{Address: "/ch/1", Tags: "f", Args: []protocol.Arg{protocol.Float(0.75)}}, p)

	p, err = buildPacket("/x", "h", []string{"9000000000"})
	require.NoError(t, err)
	assert.Equal(t, []protocol.Arg{protocol.Int64(9000000000)}, p.Args)

	_, err = buildPacket("/x", "ii", []string{"1", "2"})
	assert.ErrorIs(t, err, protocol.ErrUnsupportedTags)

	_, err = buildPacket("/x", "ff", []string{"1"})
	assert.ErrorIs(t, err, protocol.ErrArgumentMismatch)

	_, err = buildPacket("/x", "i", []string{"abc"})
	assert.Error(t, err)
}

// fakeSource releases one batch of messages per Update.
type fakeSource struct {
	batches [][]protocol.Message
	pending []protocol.Message
}

func (f *fakeSource) Update() int {
	if len(f.batches) == 0 {
		return 0
	}
	f.pending = append(f.pending, f.batches[0]...)
	f.batches = f.batches[1:]
	return 1
}

func (f *fakeSource) HasMessages() bool { return len(f.pending) > 0 }

func (f *fakeSource) PopMessage() protocol.Message {
	m := f.pending[0]
	f.pending = f.pending[1:]
	return m
}

func TestDump_StopsAtLimit(t *testing.T) {
	src := &fakeSource{batches: [][]protocol.Message{
		{{Address: "/a", Floats: []float32{0.5}}},
		{{Address: "/b", Strings: []string{"x"}}, {Address: "/c"}},
	}}
	var out bytes.Buffer

	err := dump(context.Background(), src, &out, time.Millisecond, 2)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"address":"/a","floats":[0.5]}`, lines[0])
	assert.JSONEq(t, `{"address":"/b","strings":["x"]}`, lines[1])
}

func TestDump_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var out bytes.Buffer
	require.NoError(t, dump(ctx, &fakeSource{}, &out, time.Millisecond, 0))
	assert.Empty(t, out.String())
}

func TestDump_FromReceiver(t *testing.T) {
	mock := transport.NewMockTransport()
	rx := osc.NewReceiver(osc.DefaultReceiverConfig(),
		osc.WithTransportFactory(func() (transport.Transport, error) { return mock, nil }))
	require.NoError(t, rx.Initialize(7000, [4]byte{}))
	defer rx.Shutdown()

	buf := make([]byte, protocol.MaxPacketSize)
	n, err := protocol.Encode(buf, "/fader", "i", protocol.Int32(7))
	require.NoError(t, err)
	mock.Inject(transport.Loopback(5000), buf[:n])

	var out bytes.Buffer
	require.NoError(t, dump(context.Background(), rx, &out, time.Millisecond, 1))
	assert.JSONEq(t, `{"address":"/fader","int32s":[7]}`, strings.TrimSpace(out.String()))
}

func TestDump_UnrepresentableValues(t *testing.T) {
	src := &fakeSource{batches: [][]protocol.Message{{
		{Address: "/meter", Floats: []float32{float32(math.NaN())}},
		{Address: "/name", Strings: []string{"caf\xe9"}},
	}}}
	var out bytes.Buffer

	require.NoError(t, dump(context.Background(), src, &out, time.Millisecond, 2))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"address":"/meter","floats":["NaN"]}`, lines[0])
	assert.JSONEq(t, `{"address":"/name","strings":["caf\uFFFD"]}`, lines[1])
}
