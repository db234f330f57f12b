package osc

import (
	"errors"
	"testing"

	"github.com/LemmyAI/oscserver/internal/protocol"
	"github.com/LemmyAI/oscserver/internal/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var target = transport.Loopback(7000)

func newTestTransmitter(t *testing.T, opts ...Option) (*Transmitter, *mockFactory) {
	t.Helper()
	f := &mockFactory{}
	opts = append([]Option{WithLogger(zerolog.Nop()), WithTransportFactory(f.factory)}, opts...)
	tx := NewTransmitter(opts...)
	require.NoError(t, tx.Initialize())
	t.Cleanup(tx.Shutdown)
	return tx, f
}

func decodeSent(t *testing.T, sent transport.MockMessage) protocol.Message {
	t.Helper()
	msgs, err := protocol.Decode(sent.Data)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	return msgs[0]
}

func TestTransmitter_TypedSends(t *testing.T) {
	tx, f := newTestTransmitter(t)

	require.True(t, tx.SendFloat("/f", 1.5, target))
	require.True(t, tx.SendDouble("/d", -2.25, target))
	require.True(t, tx.SendInt32("/i", -7, target))
	require.True(t, tx.SendInt64("/h", 1<<40, target))
	require.True(t, tx.SendString("/s", "hello", target))

	sent := f.mock().Sent()
	require.Len(t, sent, 5)
	for _, s := range sent {
		assert.Equal(t, target, s.Peer)
	}
	assert.Equal(t, float32(1.5), decodeSent(t, sent[0]).Float(0))
	assert.Equal(t, -2.25, decodeSent(t, sent[1]).Double(0))
	assert.Equal(t, int32(-7), decodeSent(t, sent[2]).Int32(0))
	assert.Equal(t, int64(1<<40), decodeSent(t, sent[3]).Int64(0))
	assert.Equal(t, "hello", decodeSent(t, sent[4]).String(0))
}

func TestTransmitter_SendMessage(t *testing.T) {
	tx, f := newTestTransmitter(t)

	require.True(t, tx.SendMessage("/pos", "fff", target, protocol.Float(1), protocol.Float(2), protocol.Float(3)))
	require.True(t, tx.SendMessage("/mix", "fis", target, protocol.Float(0.5), protocol.Int32(4), protocol.String("gain")))

	sent := f.mock().Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, []float32{1, 2, 3}, decodeSent(t, sent[0]).Floats)
	mix := decodeSent(t, sent[1])
	assert.Equal(t, "/mix", mix.Address)
	assert.Equal(t, "gain", mix.String(0))
}

func TestTransmitter_UnsupportedTagsFailFast(t *testing.T) {
	reg := prometheus.NewRegistry()
	tx, f := newTestTransmitter(t, WithRegisterer(reg))

	// Arguments are never looked at: a nil arg would otherwise fail encoding differently.
	assert.False(t, tx.SendMessage("/x", "ii", target, nil, nil))
	assert.False(t, tx.SendMessage("/x", "b", target))
	assert.False(t, tx.SendMessage("/x", "", target))

	assert.False(t, tx.SendMessage("/x", "ff", target, protocol.Float(1)))
	assert.False(t, tx.SendMessage("no-slash", "f", target, protocol.Float(1)))

	assert.Empty(t, f.mock().Sent())
	assert.Equal(t, 5.0, testutil.ToFloat64(tx.metrics.encodeErrors))
}

func TestTransmitter_SendFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	tx, f := newTestTransmitter(t, WithRegisterer(reg))
	f.mock().SendErr = errors.New("network unreachable")

	assert.False(t, tx.SendFloat("/f", 1, target))
	assert.Equal(t, 1.0, testutil.ToFloat64(tx.metrics.sendErrors))
	assert.Equal(t, 0.0, testutil.ToFloat64(tx.metrics.sent))

	f.mock().SendErr = nil
	assert.True(t, tx.SendFloat("/f", 1, target))
	assert.Equal(t, 1.0, testutil.ToFloat64(tx.metrics.sent))
}

func TestTransmitter_Uninitialized(t *testing.T) {
	tx := NewTransmitter(WithLogger(zerolog.Nop()))
	assert.False(t, tx.IsValid())
	assert.False(t, tx.SendFloat("/f", 1, target))
	assert.False(t, tx.SendBundle(target, protocol.Immediately))

	tx.Shutdown()
	tx.Shutdown()
	assert.False(t, tx.IsValid())
}

func TestTransmitter_InitializeFailure(t *testing.T) {
	f := &mockFactory{err: errors.New("no sockets")}
	tx := NewTransmitter(WithLogger(zerolog.Nop()), WithTransportFactory(f.factory))
	assert.Error(t, tx.Initialize())
	assert.False(t, tx.IsValid())
}

func TestTransmitter_ShutdownAndReinitialize(t *testing.T) {
	tx, f := newTestTransmitter(t)
	first := f.mock()

	tx.Shutdown()
	assert.False(t, tx.IsValid())
	assert.False(t, first.IsValid())
	assert.False(t, tx.SendFloat("/f", 1, target))

	require.NoError(t, tx.Initialize())
	assert.True(t, tx.IsValid())
	assert.True(t, tx.SendFloat("/f", 1, target))
	assert.Len(t, f.mock().Sent(), 1)
}

func TestTransmitter_SendBundle(t *testing.T) {
	tx, f := newTestTransmitter(t)

	ok := tx.SendBundle(target, protocol.Immediately,
		protocol.Packet{Address: "/ch/1", Tags: "f", Args: []protocol.Arg{protocol.Float(0.1)}},
		protocol.Packet{Address: "/ch/2", Tags: "s", Args: []protocol.Arg{protocol.String("two")}},
	)
	require.True(t, ok)

	sent := f.mock().Sent()
	require.Len(t, sent, 1)
	msgs, err := protocol.Decode(sent[0].Data)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "/ch/1", msgs[0].Address)
	assert.Equal(t, "two", msgs[1].String(0))

	assert.False(t, tx.SendBundle(target, protocol.Immediately,
		protocol.Packet{Address: "/bad", Tags: "if", Args: []protocol.Arg{protocol.Int32(1), protocol.Float(1)}}))
	assert.Len(t, f.mock().Sent(), 1)
}
