// File: protocol/messages.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Chat message schemas. Field order is part of the wire contract.

package protocol

import "github.com/momentics/hioload-chat/api"

// Message is a Serializable bound to its packet type.
type Message interface {
	Serializable
	PacketType() api.PacketType
}

// MsgType selects broadcast or whisper delivery.
type MsgType int32

const (
	MsgTypeMsg MsgType = iota
	MsgTypeWhisper
)

func (t MsgType) EnumValue() int32      { return int32(t) }
func (t *MsgType) SetEnumValue(v int32) { *t = MsgType(v) }

func (t MsgType) String() string {
	switch t {
	case MsgTypeMsg:
		return "Msg"
	case MsgTypeWhisper:
		return "Whisper"
	default:
		return "MsgType(?)"
	}
}

// NickNameReq claims a nickname for the sending connection.
type NickNameReq struct {
	Name string
}

func (NickNameReq) PacketType() api.PacketType { return api.PacketNickNameReq }

func (m NickNameReq) MarshalWire(w *Writer) {
	w.WriteString(m.Name)
}

func (m *NickNameReq) UnmarshalWire(r *Reader) (err error) {
	m.Name, err = r.ReadString()
	return err
}

// NickNameAck answers a NickNameReq.
type NickNameAck struct {
	Successful bool
}

func (NickNameAck) PacketType() api.PacketType { return api.PacketNickNameAck }

func (m NickNameAck) MarshalWire(w *Writer) {
	w.WriteBool(m.Successful)
}

func (m *NickNameAck) UnmarshalWire(r *Reader) (err error) {
	m.Successful, err = r.ReadBool()
	return err
}

// chatFields is the shared layout of MessageReq and MessageAck.
type chatFields struct {
	Msg          string
	SenderName   string
	ReceiverName string
	MsgType      MsgType
}

func (f chatFields) marshal(w *Writer) {
	w.WriteString(f.Msg)
	w.WriteString(f.SenderName)
	w.WriteString(f.ReceiverName)
	WriteEnum(w, f.MsgType)
}

func (f *chatFields) unmarshal(r *Reader) (err error) {
	if f.Msg, err = r.ReadString(); err != nil {
		return err
	}
	if f.SenderName, err = r.ReadString(); err != nil {
		return err
	}
	if f.ReceiverName, err = r.ReadString(); err != nil {
		return err
	}
	f.MsgType, err = ReadEnum[MsgType](r)
	return err
}

// MessageReq is a chat line sent by a client.
type MessageReq chatFields

func (MessageReq) PacketType() api.PacketType { return api.PacketMessageReq }
func (m MessageReq) MarshalWire(w *Writer)     { chatFields(m).marshal(w) }
func (m *MessageReq) UnmarshalWire(r *Reader) error {
	return (*chatFields)(m).unmarshal(r)
}

// Ack builds the delivery copy of m.
func (m *MessageReq) Ack() *MessageAck {
	ack := MessageAck(*m)
	return &ack
}

// MessageAck is a chat line delivered by the server.
type MessageAck chatFields

func (MessageAck) PacketType() api.PacketType { return api.PacketMessageAck }
func (m MessageAck) MarshalWire(w *Writer)     { chatFields(m).marshal(w) }
func (m *MessageAck) UnmarshalWire(r *Reader) error {
	return (*chatFields)(m).unmarshal(r)
}

var (
	_ Enum       = MsgTypeMsg
	_ enumTarget = (*MsgType)(nil)
	_ Marshaler  = NickNameReq{}
	_ Marshaler  = MessageAck{}

	_ Message = (*NickNameReq)(nil)
	_ Message = (*NickNameAck)(nil)
	_ Message = (*MessageReq)(nil)
	_ Message = (*MessageAck)(nil)
)
