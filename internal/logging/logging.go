// File: internal/logging/logging.go
// Package logging provides the structured log sink used by every server component.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Every record carries a category, a severity and a message. The frontend is
// logiface, the backend is zerolog (through izerolog) writing JSON lines.
// Critical and above map to zerolog's fatal and panic levels, so components
// log failures at Err or below.

package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/joeycumines/izerolog"
	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
)

// Event is the zerolog-backed logiface event.
type Event = izerolog.Event

// Logger is the concrete logger type passed between packages.
type Logger = logiface.Logger[*Event]

// Category groups log records by subsystem.
type Category string

const (
	System    Category = "system"
	Timer     Category = "timer"
	Net       Category = "net"
	Packet    Category = "packet"
	Broadcast Category = "broadcast"
)

// CategoryKey is the field name holding the category.
const CategoryKey = "category"

// New builds a logger writing JSON lines to w at the given level.
func New(w io.Writer, level logiface.Level) *Logger {
	return izerolog.L.New(
		izerolog.L.WithZerolog(zerolog.New(w).With().Timestamp().Logger()),
		izerolog.L.WithLevel(level),
	)
}

// Discard returns a logger that writes nothing.
func Discard() *Logger {
	return New(io.Discard, logiface.LevelDisabled)
}

// For returns a child of l tagging every record with category c.
// A nil l yields a nil logger, which is safe to use and logs nothing.
func For(l *Logger, c Category) *Logger {
	return l.Clone().Str(CategoryKey, string(c)).Logger()
}

// ParseLevel maps a textual level to a logiface level.
func ParseLevel(s string) (logiface.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info", "informational":
		return logiface.LevelInformational, nil
	case "trace":
		return logiface.LevelTrace, nil
	case "debug":
		return logiface.LevelDebug, nil
	case "notice":
		return logiface.LevelNotice, nil
	case "warn", "warning":
		return logiface.LevelWarning, nil
	case "error", "err":
		return logiface.LevelError, nil
	case "crit", "critical":
		return logiface.LevelCritical, nil
	case "off", "none", "disabled":
		return logiface.LevelDisabled, nil
	}
	return logiface.LevelDisabled, fmt.Errorf("logging: unknown level %q", s)
}
