// File: internal/session/directory.go
// Package session
// Author: momentics <momentics@gmail.com>
//
// Bidirectional, spin-lock guarded map between connections and nicknames.

package session

import (
	"sort"

	"github.com/momentics/hioload-chat/api"
	"github.com/momentics/hioload-chat/internal/concurrency"
)

// Session associates a connection with its claimed nickname.
type Session struct {
	ConnID   api.ConnectionID
	Nickname string
}

// Directory keeps byID and byNick exact inverses of each other.
type Directory struct {
	lock   concurrency.SpinLock
	byID   map[api.ConnectionID]string
	byNick map[string]api.ConnectionID
}

// NewDirectory returns an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		byID:   make(map[api.ConnectionID]string),
		byNick: make(map[string]api.ConnectionID),
	}
}

// TryAdd binds nickname to id. It fails if id already has a nickname or the
// nickname is held by another connection.
func (d *Directory) TryAdd(id api.ConnectionID, nickname string) bool {
	d.lock.Lock()
	defer d.lock.Unlock()
	if _, ok := d.byID[id]; ok {
		return false
	}
	if _, ok := d.byNick[nickname]; ok {
		return false
	}
	d.byID[id] = nickname
	d.byNick[nickname] = id
	return true
}

// TryGetNickname looks up the nickname of id.
func (d *Directory) TryGetNickname(id api.ConnectionID) (string, bool) {
	d.lock.Lock()
	defer d.lock.Unlock()
	nick, ok := d.byID[id]
	return nick, ok
}

// TryGetConnectionID looks up the connection holding nickname.
func (d *Directory) TryGetConnectionID(nickname string) (api.ConnectionID, bool) {
	d.lock.Lock()
	defer d.lock.Unlock()
	id, ok := d.byNick[nickname]
	return id, ok
}

// Remove drops both directions for id and returns the released nickname.
func (d *Directory) Remove(id api.ConnectionID) (string, bool) {
	d.lock.Lock()
	defer d.lock.Unlock()
	nick, ok := d.byID[id]
	if !ok {
		return "", false
	}
	delete(d.byID, id)
	delete(d.byNick, nick)
	return nick, true
}

// Len returns the number of sessions.
func (d *Directory) Len() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return len(d.byID)
}

// Sessions returns all sessions ordered by connection id.
func (d *Directory) Sessions() []Session {
	d.lock.Lock()
	out := make([]Session, 0, len(d.byID))
	for id, nick := range d.byID {
		out = append(out, Session{ConnID: id, Nickname: nick})
	}
	d.lock.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ConnID < out[j].ConnID })
	return out
}
