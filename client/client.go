// File: client/client.go
// Package client provides a minimal chat protocol client.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The client frames outbound messages, reassembles inbound packets with the
// same Framer the server uses and hands them out one at a time.

package client

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-chat/api"
	"github.com/momentics/hioload-chat/protocol"
)

// Packet is one received packet.
type Packet struct {
	Type api.PacketType
	Body []byte
}

// Decode unmarshals the body into m.
func (p Packet) Decode(m protocol.Serializable) error {
	return protocol.Unmarshal(p.Body, m)
}

// Client is safe for one reader and many writers.
type Client struct {
	nc net.Conn

	WriteTimeout time.Duration

	wmu  sync.Mutex
	wbuf []byte

	rmu     sync.Mutex
	framer  *protocol.Framer
	rbuf    []byte
	pending *queue.Queue
}

// Dial connects to a chat server at addr.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return New(nc), nil
}

// New wraps an established connection.
func New(nc net.Conn) *Client {
	return &Client{
		nc:           nc,
		WriteTimeout: 5 * time.Second,
		framer:       protocol.NewFramer(4096, protocol.MaxWireSize),
		rbuf:         make([]byte, 4096),
		pending:      queue.New(),
	}
}

// Send frames m and writes it.
func (c *Client) Send(m protocol.Message) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	frame, err := protocol.AppendMessage(c.wbuf[:0], m)
	if err != nil {
		return err
	}
	c.wbuf = frame
	return c.write(frame)
}

// SendRaw writes b as is.
func (c *Client) SendRaw(b []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.write(b)
}

func (c *Client) write(b []byte) error {
	if c.WriteTimeout > 0 {
		_ = c.nc.SetWriteDeadline(time.Now().Add(c.WriteTimeout))
	}
	_, err := c.nc.Write(b)
	return err
}

// SendNickName requests name.
func (c *Client) SendNickName(name string) error {
	return c.Send(&protocol.NickNameReq{Name: name})
}

// SendMessage sends a chat line. receiver is only meaningful for whispers.
func (c *Client) SendMessage(msg, sender, receiver string, t protocol.MsgType) error {
	return c.Send(&protocol.MessageReq{
		Msg:          msg,
		SenderName:   sender,
		ReceiverName: receiver,
		MsgType:      t,
	})
}

// ReadPacket returns the next packet, waiting at most timeout. A zero
// timeout waits forever.
func (c *Client) ReadPacket(timeout time.Duration) (Packet, error) {
	c.rmu.Lock()
	defer c.rmu.Unlock()

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	_ = c.nc.SetReadDeadline(deadline)

	for c.pending.Length() == 0 {
		n, err := c.nc.Read(c.rbuf)
		if n > 0 {
			_, _ = c.framer.Write(c.rbuf[:n])
			if _, derr := c.framer.Drain(c.collect); derr != nil {
				return Packet{}, derr
			}
		}
		if err != nil && c.pending.Length() == 0 {
			return Packet{}, err
		}
	}
	return c.pending.Remove().(Packet), nil
}

func (c *Client) collect(packet []byte) error {
	h, body, err := protocol.SplitPacket(packet)
	if err != nil {
		return err
	}
	c.pending.Add(Packet{Type: h.Type, Body: append([]byte(nil), body...)})
	return nil
}

// Close closes the connection.
func (c *Client) Close() error { return c.nc.Close() }

// LocalAddr returns the local endpoint.
func (c *Client) LocalAddr() net.Addr { return c.nc.LocalAddr() }

// Expect reads the next packet and decodes it as T, failing if its type is
// not T's packet type.
func Expect[T any, PT interface {
	*T
	protocol.Message
}](c *Client, timeout time.Duration) (PT, error) {
	p, err := c.ReadPacket(timeout)
	if err != nil {
		return nil, err
	}
	msg := PT(new(T))
	if p.Type != msg.PacketType() {
		return nil, fmt.Errorf("client: got %s, want %s", p.Type, msg.PacketType())
	}
	if err := p.Decode(msg); err != nil {
		return nil, err
	}
	return msg, nil
}
