// File: server/options.go
// Package server defines functional options for the chat Server.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"net"
	"time"

	"github.com/momentics/hioload-chat/internal/logging"
)

// ServerOption customizes server initialization.
type ServerOption func(*Server)

// WithLogger routes all server logging to l.
func WithLogger(l *logging.Logger) ServerOption {
	return func(s *Server) {
		s.log = l
	}
}

// WithWorkers sets the number of event loop workers.
func WithWorkers(n int) ServerOption {
	return func(s *Server) {
		s.cfg.Workers = n
	}
}

// WithHandoffFile enables the ServerIP/ServerPort hand-off file at path.
func WithHandoffFile(path string) ServerOption {
	return func(s *Server) {
		s.cfg.HandoffPath = path
	}
}

// WithMetricsAddr serves /metrics and /debug/probes on addr.
func WithMetricsAddr(addr string) ServerOption {
	return func(s *Server) {
		s.cfg.MetricsAddr = addr
	}
}

// WithFloodRates limits packets per connection, e.g. {time.Second: 200}.
func WithFloodRates(rates map[time.Duration]int) ServerOption {
	return func(s *Server) {
		s.cfg.FloodRates = rates
	}
}

// WithListener serves on an already bound listener instead of ListenAddr.
func WithListener(ln net.Listener) ServerOption {
	return func(s *Server) {
		s.listener = ln
	}
}
