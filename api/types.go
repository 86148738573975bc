// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations and protocol constants.

package api

import "strconv"

// ConnectionID identifies one accepted socket for its whole lifetime.
// Ids are assigned monotonically starting at 1 and are never reused.
type ConnectionID int64

// NoConnection is the "no id" value, used as the broadcast exclusion default.
const NoConnection ConnectionID = -1

// PacketType is the protocol message discriminant carried in every header.
type PacketType uint16

// Values must match across client and server.
const (
	PacketNone PacketType = iota
	PacketNickNameReq
	PacketNickNameAck
	PacketMessageReq
	PacketMessageAck
	PacketMax
)

func (t PacketType) String() string {
	switch t {
	case PacketNone:
		return "None"
	case PacketNickNameReq:
		return "NickNameReq"
	case PacketNickNameAck:
		return "NickNameAck"
	case PacketMessageReq:
		return "MessageReq"
	case PacketMessageAck:
		return "MessageAck"
	case PacketMax:
		return "Max"
	default:
		return "PacketType(" + strconv.Itoa(int(t)) + ")"
	}
}

// Known reports whether t is a defined message type.
func (t PacketType) Known() bool {
	return t > PacketNone && t < PacketMax
}
