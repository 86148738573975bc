// File: protocol/header.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/momentics/hioload-chat/api"
)

const (
	// HeaderSize is the fixed header length: size u16, type u16.
	HeaderSize = 4
	// sizeFieldSize is how much the framer needs to peek the packet size.
	sizeFieldSize = 2
	// MaxPacketSize is the default cap on accepted inbound packets.
	MaxPacketSize = 16 * 1024
	// MaxWireSize is the largest size the header can express.
	MaxWireSize = math.MaxUint16
)

var (
	// ErrPacketSize reports a header size outside [HeaderSize, limit].
	ErrPacketSize = errors.New("protocol: invalid packet size")
	// ErrPacketTooLarge reports an outbound packet larger than MaxWireSize.
	ErrPacketTooLarge = errors.New("protocol: packet too large")
)

// PacketHeader precedes every packet. Size counts the header itself.
type PacketHeader struct {
	Size uint16
	Type api.PacketType
}

// BodyLen returns Size minus the header.
func (h PacketHeader) BodyLen() int { return int(h.Size) - HeaderSize }

// AppendTo appends the 4 header bytes to dst.
func (h PacketHeader) AppendTo(dst []byte) []byte {
	dst = binary.LittleEndian.AppendUint16(dst, h.Size)
	return binary.LittleEndian.AppendUint16(dst, uint16(h.Type))
}

// ParseHeader decodes the header at the start of b.
func ParseHeader(b []byte) (PacketHeader, error) {
	if len(b) < HeaderSize {
		return PacketHeader{}, ErrShortBuffer
	}
	h := PacketHeader{
		Size: binary.LittleEndian.Uint16(b),
		Type: api.PacketType(binary.LittleEndian.Uint16(b[2:])),
	}
	if h.Size < HeaderSize {
		return h, fmt.Errorf("%w: %d", ErrPacketSize, h.Size)
	}
	return h, nil
}

// SplitPacket returns the header and body of one complete packet.
func SplitPacket(packet []byte) (PacketHeader, []byte, error) {
	h, err := ParseHeader(packet)
	if err != nil {
		return h, nil, err
	}
	if int(h.Size) > len(packet) {
		return h, nil, ErrShortBuffer
	}
	return h, packet[HeaderSize:h.Size], nil
}

// AppendPacket appends a header of type t followed by body.
func AppendPacket(dst []byte, t api.PacketType, body []byte) ([]byte, error) {
	size := HeaderSize + len(body)
	if size > MaxWireSize {
		return dst, fmt.Errorf("%w: %d bytes", ErrPacketTooLarge, size)
	}
	dst = PacketHeader{Size: uint16(size), Type: t}.AppendTo(dst)
	return append(dst, body...), nil
}

// AppendMessage appends m as a complete packet, encoding the body in place.
func AppendMessage(dst []byte, m Message) ([]byte, error) {
	start := len(dst)
	w := &Writer{buf: append(dst, 0, 0, 0, 0)}
	m.MarshalWire(w)
	out := w.Bytes()
	size := len(out) - start
	if size > MaxWireSize {
		return dst, fmt.Errorf("%w: %d bytes", ErrPacketTooLarge, size)
	}
	// patch the reserved header bytes in place
	PacketHeader{Size: uint16(size), Type: m.PacketType()}.AppendTo(out[start:start])
	return out, nil
}
