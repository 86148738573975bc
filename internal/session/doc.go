// Package session
// Author: momentics <momentics@gmail.com>
//
// Nickname ownership for live connections. A connection holds at most one
// nickname and a nickname belongs to at most one connection.
package session
