package protocol_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-chat/api"
	"github.com/momentics/hioload-chat/protocol"
)

func collect(t *testing.T, f *protocol.Framer) [][]byte {
	t.Helper()
	var out [][]byte
	_, err := f.Drain(func(p []byte) error {
		out = append(out, append([]byte(nil), p...))
		return nil
	})
	require.NoError(t, err)
	return out
}

func samplePackets(t *testing.T) ([][]byte, []byte) {
	msgs := []protocol.Message{
		&protocol.NickNameReq{Name: "alice"},
		&protocol.NickNameAck{Successful: true},
		&protocol.MessageReq{Msg: "hi there", SenderName: "alice", ReceiverName: "none"},
		&protocol.MessageAck{Msg: "", SenderName: "bob", ReceiverName: "alice", MsgType: protocol.MsgTypeWhisper},
	}
	var packets [][]byte
	var stream []byte
	for _, m := range msgs {
		p, err := protocol.AppendMessage(nil, m)
		require.NoError(t, err)
		packets = append(packets, p)
		stream = append(stream, p...)
	}
	return packets, stream
}

func TestFramer_OneChunk(t *testing.T) {
	packets, stream := samplePackets(t)
	f := protocol.NewFramer(64, protocol.MaxPacketSize)
	_, _ = f.Write(stream)
	assert.Equal(t, packets, collect(t, f))
	assert.Zero(t, f.Buffered())
}

// Any split of the stream yields the same packets in the same order.
func TestFramer_ArbitrarySplits(t *testing.T) {
	packets, stream := samplePackets(t)
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 200; trial++ {
		f := protocol.NewFramer(8, protocol.MaxPacketSize)
		var got [][]byte
		rest := stream
		for len(rest) > 0 {
			n := 1 + rng.Intn(len(rest))
			_, _ = f.Write(rest[:n])
			rest = rest[n:]
			got = append(got, collect(t, f)...)
		}
		require.Equal(t, packets, got, "trial %d", trial)
		require.Zero(t, f.Buffered())
	}
}

func TestFramer_ByteAtATime(t *testing.T) {
	packets, stream := samplePackets(t)
	f := protocol.NewFramer(0, 0)
	var got [][]byte
	for i := range stream {
		_, _ = f.Write(stream[i : i+1])
		got = append(got, collect(t, f)...)
	}
	assert.Equal(t, packets, got)
}

// size=6, type=NickNameReq, body arrives in a second read.
func TestFramer_SplitHeaderAndBody(t *testing.T) {
	f := protocol.NewFramer(16, protocol.MaxPacketSize)
	_, _ = f.Write([]byte{0x06, 0x00, 0x01, 0x00})
	assert.Empty(t, collect(t, f))
	assert.Equal(t, 4, f.Buffered())

	_, _ = f.Write([]byte{0x01, 'x'})
	got := collect(t, f)
	require.Len(t, got, 1)
	assert.Equal(t, []byte{0x06, 0x00, 0x01, 0x00, 0x01, 'x'}, got[0])

	h, body, err := protocol.SplitPacket(got[0])
	require.NoError(t, err)
	assert.Equal(t, api.PacketNickNameReq, h.Type)
	var req protocol.NickNameReq
	require.NoError(t, protocol.Unmarshal(body, &req))
	assert.Equal(t, "x", req.Name)
}

func TestFramer_RejectsBadSizes(t *testing.T) {
	f := protocol.NewFramer(16, 32)
	_, _ = f.Write([]byte{0x03, 0x00, 0x01, 0x00})
	_, err := f.Drain(func([]byte) error { return nil })
	assert.ErrorIs(t, err, protocol.ErrPacketSize)

	f = protocol.NewFramer(16, 32)
	_, _ = f.Write([]byte{33, 0x00})
	_, err = f.Drain(func([]byte) error { return nil })
	assert.ErrorIs(t, err, protocol.ErrPacketSize)
}

func TestFramer_CallbackErrorStops(t *testing.T) {
	_, stream := samplePackets(t)
	f := protocol.NewFramer(64, 0)
	_, _ = f.Write(stream)
	n, err := f.Drain(func([]byte) error { return assert.AnError })
	assert.ErrorIs(t, err, assert.AnError)
	assert.Zero(t, n)
}

func TestHeader(t *testing.T) {
	p, err := protocol.AppendPacket(nil, api.PacketMessageAck, []byte{9, 9})
	require.NoError(t, err)
	assert.Equal(t, []byte{6, 0, 4, 0, 9, 9}, p)

	h, err := protocol.ParseHeader(p)
	require.NoError(t, err)
	assert.Equal(t, protocol.PacketHeader{Size: 6, Type: api.PacketMessageAck}, h)
	assert.Equal(t, 2, h.BodyLen())

	_, err = protocol.ParseHeader(p[:3])
	assert.ErrorIs(t, err, protocol.ErrShortBuffer)
	_, _, err = protocol.SplitPacket(p[:5])
	assert.ErrorIs(t, err, protocol.ErrShortBuffer)

	_, err = protocol.AppendPacket(nil, api.PacketMessageAck, make([]byte, protocol.MaxWireSize))
	assert.ErrorIs(t, err, protocol.ErrPacketTooLarge)
}

func TestAppendMessageKeepsPrefix(t *testing.T) {
	prefix := []byte{0xaa, 0xbb}
	out, err := protocol.AppendMessage(prefix, &protocol.NickNameAck{Successful: true})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xaa, 0xbb, 5, 0, 2, 0, 1}, out)
}
