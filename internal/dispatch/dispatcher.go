// File: internal/dispatch/dispatcher.go
// Package dispatch
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Packet dispatch by header type with timing, middleware and the periodic tick.

package dispatch

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-chat/api"
	"github.com/momentics/hioload-chat/internal/logging"
	"github.com/momentics/hioload-chat/internal/stats"
	"github.com/momentics/hioload-chat/protocol"
)

// updateLogEvery controls how often HandleUpdate emits its debug line.
const updateLogEvery = 50

// HandlerFunc processes the body of one packet received on conn.
type HandlerFunc func(body []byte, conn api.Conn, clientID api.ConnectionID, seq int64) error

// Middleware wraps a HandlerFunc.
type Middleware func(HandlerFunc) HandlerFunc

// Dispatcher routes packets to a handler table fixed at construction.
type Dispatcher struct {
	handlers map[api.PacketType]HandlerFunc
	stats    *stats.Collector
	pktLog   *logging.Logger
	timerLog *logging.Logger
	ticks    atomic.Int64

	mu       sync.RWMutex
	onRemove []func(api.ConnectionID)
}

// New builds a dispatcher over table. Middleware is applied in order, so
// mw[0] is the outermost wrapper. A nil stats collector disables timing.
func New(table map[api.PacketType]HandlerFunc, st *stats.Collector, log *logging.Logger, mw ...Middleware) *Dispatcher {
	handlers := make(map[api.PacketType]HandlerFunc, len(table))
	for t, h := range table {
		for i := len(mw) - 1; i >= 0; i-- {
			h = mw[i](h)
		}
		handlers[t] = h
	}
	return &Dispatcher{
		handlers: handlers,
		stats:    st,
		pktLog:   logging.For(log, logging.Packet),
		timerLog: logging.For(log, logging.Timer),
	}
}

// OnRemove registers fn to run from RemoveConnection.
func (d *Dispatcher) OnRemove(fn func(api.ConnectionID)) {
	d.mu.Lock()
	d.onRemove = append(d.onRemove, fn)
	d.mu.Unlock()
}

// Handles reports whether t has a registered handler.
func (d *Dispatcher) Handles(t api.PacketType) bool {
	_, ok := d.handlers[t]
	return ok
}

// HandlePacket decodes the header of packet and invokes the matching handler.
// Unknown types are logged and dropped. Processing time is recorded for every
// packet whose header parses.
func (d *Dispatcher) HandlePacket(packet []byte, conn api.Conn, clientID api.ConnectionID, seq int64) error {
	h, body, err := protocol.SplitPacket(packet)
	if err != nil {
		return api.Wrap(api.ErrCodeProtocol, "malformed packet", err).
			WithContext("client_id", clientID)
	}
	start := time.Now()
	defer d.record(h.Type, start)

	fn, ok := d.handlers[h.Type]
	if !ok {
		d.pktLog.Warning().
			Stringer("packet_type", h.Type).
			Int64("client_id", int64(clientID)).
			Int64("seq", seq).
			Log("unknown packet type")
		return nil
	}
	return fn(body, conn, clientID, seq)
}

// HandleUpdate runs the periodic tick.
func (d *Dispatcher) HandleUpdate() {
	start := time.Now()
	n := d.ticks.Add(1)
	if n%updateLogEvery == 1 {
		d.timerLog.Debug().Int64("tick", n).Log("handling update")
	}
	d.record(api.PacketNone, start)
}

// Ticks returns how many updates have been handled.
func (d *Dispatcher) Ticks() int64 { return d.ticks.Load() }

// RemoveConnection releases per-connection state for id.
func (d *Dispatcher) RemoveConnection(id api.ConnectionID) {
	d.mu.RLock()
	hooks := d.onRemove
	d.mu.RUnlock()
	for _, fn := range hooks {
		fn(id)
	}
}

func (d *Dispatcher) record(t api.PacketType, start time.Time) {
	if d.stats != nil {
		d.stats.Record(t, time.Since(start))
	}
}

// Decoded adapts a typed handler. The body is decoded into a fresh T before fn
// runs. Decode failures are reported with code ErrCodeProtocol.
func Decoded[T any, PT interface {
	*T
	protocol.Serializable
}](fn func(msg PT, conn api.Conn, clientID api.ConnectionID, seq int64) error) HandlerFunc {
	return func(body []byte, conn api.Conn, clientID api.ConnectionID, seq int64) error {
		msg := PT(new(T))
		if err := protocol.Unmarshal(body, msg); err != nil {
			return api.Wrap(api.ErrCodeProtocol, fmt.Sprintf("decode %T", msg), err).
				WithContext("client_id", clientID)
		}
		return fn(msg, conn, clientID, seq)
	}
}

// Recovery converts a handler panic into an api.Error with ErrCodeInternal.
func Recovery(next HandlerFunc) HandlerFunc {
	return func(body []byte, conn api.Conn, clientID api.ConnectionID, seq int64) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = api.NewError(api.ErrCodeInternal, fmt.Sprintf("handler panic: %v", r)).
					WithContext("client_id", clientID).
					WithContext("seq", seq)
			}
		}()
		return next(body, conn, clientID, seq)
	}
}

// Logging records handler failures on l.
func Logging(l *logging.Logger) Middleware {
	l = logging.For(l, logging.Packet)
	return func(next HandlerFunc) HandlerFunc {
		return func(body []byte, conn api.Conn, clientID api.ConnectionID, seq int64) error {
			err := next(body, conn, clientID, seq)
			if err != nil {
				l.Err().
					Err(err).
					Int64("client_id", int64(clientID)).
					Int64("seq", seq).
					Log("handler failed")
			}
			return err
		}
	}
}
