// File: api/transport.go
// Author: momentics <momentics@gmail.com>
//
// Connection handle abstraction shared by the registry, dispatcher and server.

package api

import "net"

// Conn is the transport handle stored in the connection registry.
// Implementations must be safe for concurrent SendPacket calls.
type Conn interface {
	// SendPacket frames body with a header of type t and writes it out.
	SendPacket(t PacketType, body []byte) error

	// Close shuts the connection down. It must be idempotent.
	Close() error

	// RemoteAddr reports the peer address, if known.
	RemoteAddr() net.Addr
}
