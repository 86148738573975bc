// File: server/conn.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-connection receive loop and the api.Conn handle stored in the registry.

package server

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-chat/api"
	"github.com/momentics/hioload-chat/protocol"
)

// clientConn frames outbound packets onto one TCP connection.
type clientConn struct {
	nc           net.Conn
	server       *Server
	id           api.ConnectionID
	writeTimeout time.Duration

	wmu  sync.Mutex
	wbuf []byte

	closed    atomic.Bool
	closeOnce sync.Once
}

var _ api.Conn = (*clientConn)(nil)

func newClientConn(nc net.Conn, s *Server) *clientConn {
	return &clientConn{
		nc:           nc,
		server:       s,
		id:           api.NoConnection,
		writeTimeout: s.cfg.WriteTimeout,
		wbuf:         make([]byte, 0, 512),
	}
}

// SendPacket implements api.Conn. Concurrent callers are serialized.
func (c *clientConn) SendPacket(t api.PacketType, body []byte) error {
	if c.closed.Load() {
		return api.ErrConnClosed
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()

	frame, err := protocol.AppendPacket(c.wbuf[:0], t, body)
	if err != nil {
		return err
	}
	c.wbuf = frame
	if c.writeTimeout > 0 {
		_ = c.nc.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if _, err := c.nc.Write(frame); err != nil {
		return fmt.Errorf("send %s to client %d: %w", t, c.id, err)
	}
	c.server.stats.AddSent(len(frame))
	return nil
}

// Close implements api.Conn.
func (c *clientConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		err = c.nc.Close()
	})
	return err
}

// RemoteAddr implements api.Conn.
func (c *clientConn) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }

// serveConn registers nc and runs its receive loop until the peer goes away.
func (s *Server) serveConn(nc net.Conn) {
	defer s.conns.Done()

	c := newClientConn(nc, s)
	c.id = s.registry.AddClient(c)
	log := s.netLog.Clone().Int64("client_id", int64(c.id)).Logger()
	log.Info().Stringer("remote", nc.RemoteAddr()).Log("client connected")

	select {
	case <-s.shutdown:
		s.cleanup(c)
		return
	default:
	}

	framer := protocol.NewFramer(s.cfg.ReceiveBufferSize, s.cfg.MaxPacketSize)
	buf := make([]byte, s.cfg.ReceiveBufferSize)
	enqueue := func(packet []byte) error { return s.enqueue(c, packet) }

	for {
		if s.cfg.ReadTimeout > 0 {
			_ = nc.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}
		n, err := nc.Read(buf)
		if n > 0 {
			_, _ = framer.Write(buf[:n])
			if _, derr := framer.Drain(enqueue); derr != nil {
				log.Warning().Err(derr).Log("dropping client")
				break
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !c.closed.Load() {
				log.Debug().Err(err).Log("receive failed")
			}
			break
		}
	}
	s.cleanup(c)
	log.Info().Log("client disconnected")
}

// enqueue copies one framed packet into a pooled buffer and posts it.
func (s *Server) enqueue(c *clientConn, packet []byte) error {
	s.stats.AddReceived(len(packet))
	if s.limiter != nil {
		if _, ok := s.limiter.Allow(c.id); !ok {
			if s.flooded.Add(1)%100 == 1 {
				s.netLog.Warning().
					Int64("client_id", int64(c.id)).
					Int64("dropped_total", s.flooded.Load()).
					Log("flood guard dropping packets")
			}
			return nil
		}
	}
	b := s.buffers.Get()
	_, _ = b.Write(packet)
	if _, err := s.loop.PostPacket(c.id, b); err != nil {
		s.buffers.Return(b)
		return err
	}
	return nil
}

// cleanup unregisters c, schedules session removal and closes the socket.
// It runs for every connection whatever ended it.
func (s *Server) cleanup(c *clientConn) {
	s.registry.RemoveClient(c.id)
	if err := s.loop.PostRemove(c.id); err != nil {
		s.dispatcher.RemoveConnection(c.id)
	}
	_ = c.Close()
}
