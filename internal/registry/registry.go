// File: internal/registry/registry.go
// Package registry
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Connection registry: id assignment, lookup in both directions and fan-out.

package registry

import (
	"github.com/momentics/hioload-chat/api"
	"github.com/momentics/hioload-chat/internal/concurrency"
)

// Registry maps live connections to ids. Ids start at 1 and are never reused.
type Registry struct {
	lock  concurrency.SpinLock
	next  api.ConnectionID
	conns map[api.ConnectionID]api.Conn
	ids   map[api.Conn]api.ConnectionID
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		next:  1,
		conns: make(map[api.ConnectionID]api.Conn),
		ids:   make(map[api.Conn]api.ConnectionID),
	}
}

// AddClient registers conn and returns its new id. Adding the same handle
// twice returns the id it already has.
func (r *Registry) AddClient(conn api.Conn) api.ConnectionID {
	r.lock.Lock()
	defer r.lock.Unlock()
	if id, ok := r.ids[conn]; ok {
		return id
	}
	id := r.next
	r.next++
	r.conns[id] = conn
	r.ids[conn] = id
	return id
}

// RemoveClient drops id. It reports whether the id was present.
func (r *Registry) RemoveClient(id api.ConnectionID) bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.removeLocked(id)
}

func (r *Registry) removeLocked(id api.ConnectionID) bool {
	conn, ok := r.conns[id]
	if !ok {
		return false
	}
	delete(r.conns, id)
	delete(r.ids, conn)
	return true
}

// GetSocket returns the handle registered under id.
func (r *Registry) GetSocket(id api.ConnectionID) (api.Conn, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	conn, ok := r.conns[id]
	return conn, ok
}

// GetClientID returns the id of conn.
func (r *Registry) GetClientID(conn api.Conn) (api.ConnectionID, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	id, ok := r.ids[conn]
	return id, ok
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return len(r.conns)
}

type target struct {
	id   api.ConnectionID
	conn api.Conn
}

// BroadcastToAll sends body to every connection except exclude and returns
// the number of successful deliveries. Pass api.NoConnection to exclude
// nobody. Connections whose send fails are unregistered and closed.
func (r *Registry) BroadcastToAll(t api.PacketType, body []byte, exclude api.ConnectionID) int {
	r.lock.Lock()
	snapshot := make([]target, 0, len(r.conns))
	for id, conn := range r.conns {
		if id == exclude {
			continue
		}
		snapshot = append(snapshot, target{id: id, conn: conn})
	}
	r.lock.Unlock()

	var (
		delivered int
		failed    []target
	)
	for _, tg := range snapshot {
		if err := tg.conn.SendPacket(t, body); err != nil {
			failed = append(failed, tg)
			continue
		}
		delivered++
	}
	if len(failed) == 0 {
		return delivered
	}

	r.lock.Lock()
	for _, tg := range failed {
		r.removeLocked(tg.id)
	}
	r.lock.Unlock()
	for _, tg := range failed {
		_ = tg.conn.Close()
	}
	return delivered
}

// Snapshot returns the registered handles in no particular order.
func (r *Registry) Snapshot() []api.Conn {
	r.lock.Lock()
	defer r.lock.Unlock()
	out := make([]api.Conn, 0, len(r.conns))
	for _, conn := range r.conns {
		out = append(out, conn)
	}
	return out
}
