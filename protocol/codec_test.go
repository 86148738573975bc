package protocol_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-chat/protocol"
)

func roundTrip[T any](t *testing.T, v T) {
	t.Helper()
	var enc any = v
	if s, ok := any(&v).(protocol.Serializable); ok {
		enc = s
	}
	w := protocol.NewWriter(nil)
	require.NoError(t, protocol.Encode(w, enc))
	r := protocol.NewReader(w.Bytes())
	got, err := protocol.Decode[T](r)
	require.NoError(t, err)
	assert.Equal(t, v, got)
	assert.Zero(t, r.Remaining(), "trailing bytes for %T", v)
}

func TestRoundTrip_Scalars(t *testing.T) {
	roundTrip(t, true)
	roundTrip(t, false)
	roundTrip(t, int16(math.MinInt16))
	roundTrip(t, uint16(math.MaxUint16))
	roundTrip(t, int32(-123456))
	roundTrip(t, uint32(math.MaxUint32))
	roundTrip(t, int64(math.MinInt64))
	roundTrip(t, uint64(math.MaxUint64))
	roundTrip(t, float32(3.25))
	roundTrip(t, "")
	roundTrip(t, "안녕하세요, world")
	roundTrip(t, string(make([]byte, 300))) // two-byte varint length
}

func TestRoundTrip_Arrays(t *testing.T) {
	roundTrip(t, []bool{true, false, true})
	roundTrip(t, []int16{-1, 2, 3})
	roundTrip(t, []uint16{'h', 'i'})
	roundTrip(t, []int32{1, -2, 1 << 30})
	roundTrip(t, []uint32{})
	roundTrip(t, []int64{math.MaxInt64})
	roundTrip(t, []uint64{0, 1})
	roundTrip(t, []float32{0.5, -1.5})
	roundTrip(t, []string{"a", "", "ccc"})
}

func TestRoundTrip_Messages(t *testing.T) {
	roundTrip(t, protocol.NickNameReq{Name: "alice"})
	roundTrip(t, protocol.NickNameAck{Successful: true})
	roundTrip(t, protocol.MessageReq{Msg: "hi", SenderName: "alice", ReceiverName: "bob", MsgType: protocol.MsgTypeWhisper})
	roundTrip(t, protocol.MessageAck{Msg: "hello all", SenderName: "alice", ReceiverName: "none", MsgType: protocol.MsgTypeMsg})
}

func TestRoundTrip_Enums(t *testing.T) {
	roundTrip(t, protocol.MsgTypeMsg)
	roundTrip(t, protocol.MsgTypeWhisper)

	w := protocol.NewWriter(nil)
	require.NoError(t, protocol.Encode(w, protocol.MsgTypeWhisper))
	assert.Equal(t, []byte{1, 0, 0, 0}, w.Bytes())
	got, err := protocol.Decode[protocol.MsgType](protocol.NewReader(w.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, protocol.MsgTypeWhisper, got)
}

func TestEncode_MessageByValue(t *testing.T) {
	byValue := protocol.NewWriter(nil)
	require.NoError(t, protocol.Encode(byValue, protocol.NickNameReq{Name: "alice"}))
	byPointer := protocol.NewWriter(nil)
	require.NoError(t, protocol.Encode(byPointer, &protocol.NickNameReq{Name: "alice"}))
	assert.Equal(t, byPointer.Bytes(), byValue.Bytes())

	req := protocol.MessageReq{Msg: "hi", SenderName: "a", ReceiverName: "b", MsgType: protocol.MsgTypeWhisper}
	w := protocol.NewWriter(nil)
	require.NoError(t, protocol.Encode(w, req))
	got, err := protocol.Decode[protocol.MessageReq](protocol.NewReader(w.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, req, got)
}

func TestLayout(t *testing.T) {
	w := protocol.NewWriter(nil)
	w.WriteBool(true)
	w.WriteUint16(0x0102)
	w.WriteInt32(-1)
	w.WriteChar('A')
	w.WriteString("hi")
	protocol.WriteEnum(w, protocol.MsgTypeWhisper)
	protocol.WriteArray(w, []int16{5})
	assert.Equal(t, []byte{
		0x01,
		0x02, 0x01,
		0xff, 0xff, 0xff, 0xff,
		0x41, 0x00,
		0x02, 'h', 'i',
		0x01, 0x00, 0x00, 0x00,
		0x01, 0x00, 0x00, 0x00, 0x05, 0x00,
	}, w.Bytes())
}

func TestMessageLayout(t *testing.T) {
	b := protocol.Marshal(&protocol.MessageReq{Msg: "hi", SenderName: "a", ReceiverName: "b", MsgType: protocol.MsgTypeMsg})
	assert.Equal(t, []byte{2, 'h', 'i', 1, 'a', 1, 'b', 0, 0, 0, 0}, b)
}

type point struct{ X, Y int32 }

func (p *point) MarshalWire(w *protocol.Writer) {
	w.WriteInt32(p.X)
	w.WriteInt32(p.Y)
}

func (p *point) UnmarshalWire(r *protocol.Reader) (err error) {
	if p.X, err = r.ReadInt32(); err != nil {
		return err
	}
	p.Y, err = r.ReadInt32()
	return err
}

type path struct {
	Name   string
	Points []point
	Groups [][]int32
}

func (p *path) MarshalWire(w *protocol.Writer) {
	w.WriteString(p.Name)
	protocol.WriteList(w, p.Points, func(w *protocol.Writer, v point) { v.MarshalWire(w) })
	protocol.WriteList(w, p.Groups, protocol.WriteArray[int32])
}

func (p *path) UnmarshalWire(r *protocol.Reader) (err error) {
	if p.Name, err = r.ReadString(); err != nil {
		return err
	}
	if p.Points, err = protocol.ReadList(r, protocol.Decode[point]); err != nil {
		return err
	}
	p.Groups, err = protocol.ReadList(r, protocol.ReadArray[int32])
	return err
}

func TestRoundTrip_NestedComposite(t *testing.T) {
	roundTrip(t, path{
		Name:   "route",
		Points: []point{{1, 2}, {-3, 4}},
		Groups: [][]int32{{1}, {}, {2, 3, 4}},
	})
}

func TestUnsupportedType(t *testing.T) {
	w := protocol.NewWriter(nil)
	assert.ErrorIs(t, protocol.Encode(w, map[string]int{}), protocol.ErrUnsupportedType)
	assert.ErrorIs(t, protocol.Encode(w, struct{ A int }{}), protocol.ErrUnsupportedType)
	_, err := protocol.Decode[complex64](protocol.NewReader([]byte{1, 2, 3, 4}))
	assert.ErrorIs(t, err, protocol.ErrUnsupportedType)
}

func TestDecodeUnderrun(t *testing.T) {
	full := protocol.Marshal(&protocol.MessageReq{Msg: "hello", SenderName: "alice", ReceiverName: "bob"})
	for cut := 0; cut < len(full); cut++ {
		var m protocol.MessageReq
		err := protocol.Unmarshal(full[:cut], &m)
		assert.ErrorIs(t, err, protocol.ErrShortBuffer, "cut at %d", cut)
	}
}

func TestHostileLengths(t *testing.T) {
	// string claims 1000 bytes, 2 present
	_, err := protocol.NewReader([]byte{0xe8, 0x07, 'a', 'b'}).ReadString()
	assert.ErrorIs(t, err, protocol.ErrShortBuffer)

	// varint longer than 64 bits
	_, err = protocol.NewReader([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01}).ReadString()
	assert.ErrorIs(t, err, protocol.ErrInvalidLength)

	// negative count
	_, err = protocol.ReadArray[int32](protocol.NewReader([]byte{0xff, 0xff, 0xff, 0xff}))
	assert.ErrorIs(t, err, protocol.ErrInvalidLength)

	// huge count, tiny buffer
	_, err = protocol.ReadArray[int64](protocol.NewReader([]byte{0xff, 0xff, 0xff, 0x7f, 1}))
	assert.ErrorIs(t, err, protocol.ErrShortBuffer)
	_, err = protocol.ReadList(protocol.NewReader([]byte{0xff, 0xff, 0xff, 0x7f}), (*protocol.Reader).ReadString)
	assert.ErrorIs(t, err, protocol.ErrShortBuffer)
}
