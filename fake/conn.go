// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake implementations for testing and development.
// Provides predictable, controllable behavior for api.Conn.

package fake

import (
	"net"
	"sync"

	"github.com/momentics/hioload-chat/api"
)

// Packet is one recorded SendPacket call.
type Packet struct {
	Type api.PacketType
	Body []byte
}

// Conn is a fake implementation of api.Conn that records every packet sent.
type Conn struct {
	mu        sync.Mutex
	sent      []Packet
	closed    bool
	closes    int
	sendError error
	addr      net.Addr
}

// NewConn creates a new fake connection.
func NewConn() *Conn {
	return &Conn{addr: &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0}}
}

// SendPacket implements api.Conn.
func (c *Conn) SendPacket(t api.PacketType, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return api.ErrConnClosed
	}
	if c.sendError != nil {
		return c.sendError
	}
	bodyCopy := make([]byte, len(body))
	copy(bodyCopy, body)
	c.sent = append(c.sent, Packet{Type: t, Body: bodyCopy})
	return nil
}

// Close implements api.Conn.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.closes++
	return nil
}

// RemoteAddr implements api.Conn.
func (c *Conn) RemoteAddr() net.Addr { return c.addr }

// SetSendError makes subsequent SendPacket calls fail with err.
func (c *Conn) SetSendError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendError = err
}

// Sent returns a copy of all recorded packets.
func (c *Conn) Sent() []Packet {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Packet, len(c.sent))
	copy(out, c.sent)
	return out
}

// Last returns the most recently sent packet.
func (c *Conn) Last() (Packet, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		return Packet{}, false
	}
	return c.sent[len(c.sent)-1], true
}

// Closed reports whether Close has been called.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// CloseCount returns how many times Close has been called.
func (c *Conn) CloseCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// Reset clears recorded packets and error injection.
func (c *Conn) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = nil
	c.sendError = nil
}
