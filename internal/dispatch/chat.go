// File: internal/dispatch/chat.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Nickname and message handlers.

package dispatch

import (
	"errors"

	"github.com/momentics/hioload-chat/api"
	"github.com/momentics/hioload-chat/internal/logging"
	"github.com/momentics/hioload-chat/internal/registry"
	"github.com/momentics/hioload-chat/internal/session"
	"github.com/momentics/hioload-chat/internal/stats"
	"github.com/momentics/hioload-chat/pool"
	"github.com/momentics/hioload-chat/protocol"
)

// Chat holds the state shared by the chat handlers.
type Chat struct {
	registry *registry.Registry
	sessions *session.Directory
	pktLog   *logging.Logger
	castLog  *logging.Logger
	writers  *pool.SyncPool[*protocol.Writer]
}

// NewChat wires chat handlers to the registry and session directory.
func NewChat(reg *registry.Registry, sessions *session.Directory, log *logging.Logger) *Chat {
	return &Chat{
		registry: reg,
		sessions: sessions,
		pktLog:   logging.For(log, logging.Packet),
		castLog:  logging.For(log, logging.Broadcast),
		writers: pool.NewSyncPool(func() *protocol.Writer {
			return protocol.NewWriter(make([]byte, 0, 256))
		}),
	}
}

// Table returns the handler table for the chat protocol.
func (c *Chat) Table() map[api.PacketType]HandlerFunc {
	return map[api.PacketType]HandlerFunc{
		api.PacketNickNameReq: Decoded(c.HandleNickName),
		api.PacketMessageReq:  Decoded(c.HandleMessage),
	}
}

// Dispatcher builds a dispatcher over Table whose RemoveConnection releases
// the connection's nickname.
func (c *Chat) Dispatcher(st *stats.Collector, log *logging.Logger, mw ...Middleware) *Dispatcher {
	d := New(c.Table(), st, log, mw...)
	d.OnRemove(c.RemoveConnection)
	return d
}

// HandleNickName claims req.Name for clientID and acknowledges the requester.
func (c *Chat) HandleNickName(req *protocol.NickNameReq, conn api.Conn, clientID api.ConnectionID, seq int64) error {
	ok := c.sessions.TryAdd(clientID, req.Name)
	if ok {
		if _, alive := c.registry.GetSocket(clientID); !alive {
			// the connection went away while the claim was in flight and its
			// removal may already have run
			c.sessions.Remove(clientID)
			return nil
		}
	}
	c.pktLog.Debug().
		Int64("client_id", int64(clientID)).
		Int64("seq", seq).
		Str("nickname", req.Name).
		Bool("successful", ok).
		Log("nickname request")
	return c.send(conn, &protocol.NickNameAck{Successful: ok})
}

// HandleMessage broadcasts or whispers req. Messages addressed to their own
// sender are rejected without a reply. An unknown whisper target is dropped.
func (c *Chat) HandleMessage(req *protocol.MessageReq, conn api.Conn, clientID api.ConnectionID, seq int64) error {
	c.pktLog.Trace().
		Int64("client_id", int64(clientID)).
		Int64("seq", seq).
		Log("message request")

	if req.SenderName == req.ReceiverName {
		c.pktLog.Warning().
			Str("sender", req.SenderName).
			Int64("client_id", int64(clientID)).
			Log("invalid whisper target")
		return nil
	}

	ack := req.Ack()
	switch req.MsgType {
	case protocol.MsgTypeMsg:
		w := c.encode(ack)
		n := c.registry.BroadcastToAll(api.PacketMessageAck, w.Bytes(), api.NoConnection)
		c.writers.Put(w)
		c.castLog.Info().
			Str("sender", ack.SenderName).
			Str("msg", ack.Msg).
			Int("delivered", n).
			Log("broadcast")
		return nil

	case protocol.MsgTypeWhisper:
		targetID, ok := c.sessions.TryGetConnectionID(req.ReceiverName)
		if !ok {
			c.pktLog.Debug().
				Str("receiver", req.ReceiverName).
				Log("whisper target not found")
			return nil
		}
		target, ok := c.registry.GetSocket(targetID)
		if !ok {
			return nil
		}
		w := c.encode(ack)
		defer c.writers.Put(w)
		// both sides are attempted even when one write fails
		err := errors.Join(c.sendBody(conn, w.Bytes()), c.sendBody(target, w.Bytes()))
		if err != nil {
			return err
		}
		c.castLog.Info().
			Str("sender", ack.SenderName).
			Str("receiver", ack.ReceiverName).
			Str("msg", ack.Msg).
			Log("whisper")
		return nil

	default:
		c.pktLog.Warning().
			Stringer("msg_type", req.MsgType).
			Int64("client_id", int64(clientID)).
			Log("unknown message type")
		return nil
	}
}

// RemoveConnection releases the nickname held by id.
func (c *Chat) RemoveConnection(id api.ConnectionID) {
	if nick, ok := c.sessions.Remove(id); ok {
		c.pktLog.Debug().
			Int64("client_id", int64(id)).
			Str("nickname", nick).
			Log("nickname released")
	}
}

func (c *Chat) encode(m protocol.Message) *protocol.Writer {
	w := c.writers.Get()
	w.Reset()
	m.MarshalWire(w)
	return w
}

func (c *Chat) send(conn api.Conn, m protocol.Message) error {
	w := c.encode(m)
	defer c.writers.Put(w)
	return c.sendTyped(conn, m.PacketType(), w.Bytes())
}

func (c *Chat) sendBody(conn api.Conn, body []byte) error {
	return c.sendTyped(conn, api.PacketMessageAck, body)
}

// sendTyped closes conn when the write fails so its receive loop cleans up.
func (c *Chat) sendTyped(conn api.Conn, t api.PacketType, body []byte) error {
	if err := conn.SendPacket(t, body); err != nil {
		_ = conn.Close()
		return api.Wrap(api.ErrCodeInternal, "send "+t.String(), err)
	}
	return nil
}
