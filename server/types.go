// File: server/types.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-catrate"

	"github.com/momentics/hioload-chat/api"
	"github.com/momentics/hioload-chat/control"
	"github.com/momentics/hioload-chat/internal/concurrency"
	"github.com/momentics/hioload-chat/internal/dispatch"
	"github.com/momentics/hioload-chat/internal/logging"
	"github.com/momentics/hioload-chat/internal/registry"
	"github.com/momentics/hioload-chat/internal/session"
	"github.com/momentics/hioload-chat/internal/stats"
	"github.com/momentics/hioload-chat/pool"
	"github.com/momentics/hioload-chat/protocol"
)

// DefaultPort is the chat port clients expect.
const DefaultPort = 11000

// PoolConfig sizes the packet buffer pool.
type PoolConfig struct {
	Initial int // buffers allocated up front
	Max     int // buffers kept at most
	Grow    int // buffers added when the pool runs dry
}

// Config holds all server-side configuration parameters.
type Config struct {
	ListenAddr        string        // TCP bind address, e.g. ":11000"
	Workers           int           // event loop consumers
	UpdateInterval    time.Duration // period of the update tick
	StatsInterval     time.Duration // period of the statistics report, 0 disables
	StatsWindow       time.Duration // sliding window for packets/sec
	MaxPacketSize     int           // largest accepted inbound packet, header included
	ReceiveBufferSize int           // per-connection read buffer
	Pool              PoolConfig
	ReadTimeout       time.Duration         // optional per-connection read deadline
	WriteTimeout      time.Duration         // optional per-connection write deadline
	ShutdownTimeout   time.Duration         // graceful shutdown timeout
	HandoffPath       string                // where to write ServerIP/ServerPort, empty disables
	AdvertiseIP       string                // IP written to the hand-off file, empty means auto
	MetricsAddr       string                // HTTP address for /metrics, empty disables
	FloodRates        map[time.Duration]int // per-connection packet limits, nil disables
	ReuseAddr         bool                  // set SO_REUSEADDR on the listener
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:        fmt.Sprintf(":%d", DefaultPort),
		Workers:           8,
		UpdateInterval:    100 * time.Millisecond,
		StatsInterval:     30 * time.Second,
		StatsWindow:       stats.DefaultWindow,
		MaxPacketSize:     protocol.MaxPacketSize,
		ReceiveBufferSize: 8 * 1024,
		Pool:              PoolConfig{Initial: 64, Max: 1024, Grow: 32},
		ReadTimeout:       0,
		WriteTimeout:      5 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		ReuseAddr:         true,
	}
}

// Validate checks every field, returning an api.Error with ErrCodeInvalidArgument
// that wraps api.ErrInvalidArgument.
func (c *Config) Validate() error {
	bad := func(field string, value any) error {
		return api.Wrap(api.ErrCodeInvalidArgument, "invalid server config", api.ErrInvalidArgument).
			WithContext("field", field).
			WithContext("value", value)
	}
	switch {
	case c.ListenAddr == "":
		return bad("ListenAddr", c.ListenAddr)
	case c.Workers <= 0:
		return bad("Workers", c.Workers)
	case c.UpdateInterval <= 0:
		return bad("UpdateInterval", c.UpdateInterval)
	case c.StatsInterval < 0:
		return bad("StatsInterval", c.StatsInterval)
	case c.StatsWindow <= 0:
		return bad("StatsWindow", c.StatsWindow)
	case c.MaxPacketSize < protocol.HeaderSize || c.MaxPacketSize > protocol.MaxWireSize:
		return bad("MaxPacketSize", c.MaxPacketSize)
	case c.ReceiveBufferSize <= 0:
		return bad("ReceiveBufferSize", c.ReceiveBufferSize)
	case c.Pool.Initial < 0 || c.Pool.Max <= 0 || c.Pool.Grow <= 0 || c.Pool.Initial > c.Pool.Max:
		return bad("Pool", c.Pool)
	case c.ReadTimeout < 0:
		return bad("ReadTimeout", c.ReadTimeout)
	case c.WriteTimeout < 0:
		return bad("WriteTimeout", c.WriteTimeout)
	case c.ShutdownTimeout <= 0:
		return bad("ShutdownTimeout", c.ShutdownTimeout)
	}
	if c.AdvertiseIP != "" && net.ParseIP(c.AdvertiseIP) == nil {
		return bad("AdvertiseIP", c.AdvertiseIP)
	}
	if c.FloodRates != nil {
		if _, err := newLimiter(c.FloodRates); err != nil {
			return api.Wrap(api.ErrCodeInvalidArgument, "invalid server config", err).
				WithContext("field", "FloodRates")
		}
	}
	return nil
}

// newLimiter converts the catrate panic on invalid rates into an error.
func newLimiter(rates map[time.Duration]int) (l *catrate.Limiter, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: flood rates: %v", api.ErrInvalidArgument, r)
		}
	}()
	return catrate.NewLimiter(rates), nil
}

// Server runs the chat protocol over TCP.
type Server struct {
	cfg *Config
	log *logging.Logger

	sysLog *logging.Logger
	netLog *logging.Logger

	registry   *registry.Registry
	sessions   *session.Directory
	stats      *stats.Collector
	dispatcher *dispatch.Dispatcher
	loop       *concurrency.EventLoop
	workers    *concurrency.WorkerPool
	bufLock    concurrency.SpinLock
	buffers    *pool.Guarded[*pool.PooledBuffer]
	limiter    *catrate.Limiter

	metrics  *control.MetricsRegistry
	probes   *control.DebugProbes
	exporter *control.Exporter

	listener net.Listener
	ready    chan struct{}
	running  atomic.Bool
	shutdown chan struct{}
	stopOnce sync.Once
	conns    sync.WaitGroup
	flooded  atomic.Int64
}
