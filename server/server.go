// File: server/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Server construction, run loop, timers and graceful teardown.

package server

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/momentics/hioload-chat/api"
	"github.com/momentics/hioload-chat/control"
	"github.com/momentics/hioload-chat/internal/concurrency"
	"github.com/momentics/hioload-chat/internal/dispatch"
	"github.com/momentics/hioload-chat/internal/logging"
	"github.com/momentics/hioload-chat/internal/registry"
	"github.com/momentics/hioload-chat/internal/session"
	"github.com/momentics/hioload-chat/internal/stats"
	"github.com/momentics/hioload-chat/pool"
)

// ErrAlreadyRunning is returned by a second Run call.
var ErrAlreadyRunning = errors.New("server already running")

// NewServer builds the server. A nil cfg means DefaultConfig. Options are
// applied before validation.
func NewServer(cfg *Config, opts ...ServerOption) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := *cfg
	s := &Server{
		cfg:      &c,
		ready:    make(chan struct{}),
		shutdown: make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}
	if s.log == nil {
		s.log = logging.Discard()
	}
	s.sysLog = logging.For(s.log, logging.System)
	s.netLog = logging.For(s.log, logging.Net)

	s.registry = registry.New()
	s.sessions = session.NewDirectory()
	s.stats = stats.New(stats.WithWindow(s.cfg.StatsWindow))
	s.dispatcher = dispatch.NewChat(s.registry, s.sessions, s.log).
		Dispatcher(s.stats, s.log, dispatch.Logging(s.log), dispatch.Recovery)

	// one lane per worker keeps each connection on a single worker
	s.loop = concurrency.NewPartitionedEventLoop(s.cfg.Workers)
	workers, err := concurrency.NewWorkerPool(s.loop, s.cfg.Workers, s)
	if err != nil {
		return nil, api.Wrap(api.ErrCodeInvalidArgument, "worker pool", err)
	}
	workers.OnPanic(func(ev concurrency.Event, err error) {
		s.sysLog.Err().Err(err).Stringer("event", ev.Kind).Log("worker recovered from panic")
	})
	s.workers = workers

	bufPool := pool.NewBufferPool(s.cfg.Pool.Initial, s.cfg.Pool.Max, s.cfg.Pool.Grow, s.cfg.ReceiveBufferSize)
	bufPool.OnGrow(func(grew, size int) {
		s.sysLog.Debug().Int("grew", grew).Int("size", size).Log("packet pool grew")
	})
	s.buffers = pool.NewGuarded(bufPool, &s.bufLock)

	if s.cfg.FloodRates != nil {
		s.limiter, _ = newLimiter(s.cfg.FloodRates)
	}

	s.metrics = control.NewMetricsRegistry(s.stats)
	s.probes = control.NewDebugProbes()
	s.registerTelemetry()
	return s, nil
}

func (s *Server) registerTelemetry() {
	s.metrics.RegisterGauge("connections", "Registered client connections.", func() float64 {
		return float64(s.registry.Len())
	})
	s.metrics.RegisterGauge("sessions", "Connections holding a nickname.", func() float64 {
		return float64(s.sessions.Len())
	})
	s.metrics.RegisterGauge("pending_events", "Events queued for the worker pool.", func() float64 {
		return float64(s.loop.Pending())
	})
	s.metrics.RegisterGauge("flood_dropped_packets", "Packets dropped by the flood guard.", func() float64 {
		return float64(s.flooded.Load())
	})
	s.probes.RegisterProbe("sessions", func() any { return s.sessions.Sessions() })
	s.probes.RegisterProbe("workers", func() any { return s.workers.Stats() })
	s.probes.RegisterProbe("packet_pool", func() any { return s.buffers.Len() })
	s.probes.RegisterProbe("last_seq", func() any { return s.loop.Seq() })
	s.probes.RegisterProbe("update_ticks", func() any { return s.dispatcher.Ticks() })
}

// Run serves until ctx is cancelled or Shutdown is called, then tears down.
func (s *Server) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	ln := s.listener
	if ln == nil {
		var err error
		if ln, err = listen(ctx, s.cfg); err != nil {
			return api.Wrap(api.ErrCodeInternal, "listen "+s.cfg.ListenAddr, err)
		}
		s.listener = ln
	}
	defer ln.Close()

	if s.cfg.HandoffPath != "" {
		ip, err := writeHandoff(s.cfg.HandoffPath, s.cfg.AdvertiseIP, ln.Addr())
		if err != nil {
			s.sysLog.Err().Err(err).Str("path", s.cfg.HandoffPath).Log("hand-off file not written")
		} else {
			s.sysLog.Info().Str("path", s.cfg.HandoffPath).Str("ip", ip).Log("hand-off file written")
		}
	}

	concurrency.SetContentionReporter(func(attempts int, site, holder string) {
		s.sysLog.Warning().
			Int("attempts", attempts).
			Str("site", site).
			Str("holder", holder).
			Log("spin lock contention")
	})
	defer concurrency.SetContentionReporter(nil)

	if err := s.workers.Start(); err != nil {
		return err
	}

	if s.cfg.MetricsAddr != "" {
		exp, err := control.NewExporter(s.cfg.MetricsAddr, s.metrics, s.probes)
		if err == nil {
			err = exp.Start()
		}
		if err != nil {
			s.sysLog.Err().Err(err).Str("addr", s.cfg.MetricsAddr).Log("metrics exporter disabled")
		} else {
			s.exporter = exp
			s.sysLog.Info().Stringer("addr", exp.Addr()).Log("metrics exporter listening")
		}
	}

	timersDone := make(chan struct{})
	timersCtx, stopTimers := context.WithCancel(context.Background())
	go func() {
		defer close(timersDone)
		s.runTimers(timersCtx)
	}()

	acceptDone := make(chan struct{})
	go func() {
		defer close(acceptDone)
		s.acceptLoop(ln)
	}()

	s.sysLog.Info().
		Stringer("addr", ln.Addr()).
		Int("workers", s.cfg.Workers).
		Log("chat server listening")
	close(s.ready)

	select {
	case <-ctx.Done():
	case <-s.shutdown:
	}
	s.sysLog.Info().Log("shutting down")
	s.stopOnce.Do(func() { close(s.shutdown) })

	_ = ln.Close()
	<-acceptDone
	s.closeAll()
	s.waitConns()

	stopTimers()
	<-timersDone

	for _, ev := range s.workers.Stop() {
		if ev.Packet != nil {
			s.buffers.Return(ev.Packet)
		}
	}

	if s.exporter != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		if err := s.exporter.Stop(stopCtx); err != nil {
			s.sysLog.Warning().Err(err).Log("metrics exporter stop")
		}
		cancel()
	}
	if s.cfg.StatsInterval > 0 {
		stats.Log(s.log, s.stats.ReportNow())
	}
	s.sysLog.Info().Log("chat server stopped")
	return nil
}

// runTimers posts update ticks and logs periodic statistics.
func (s *Server) runTimers(ctx context.Context) {
	update := time.NewTicker(s.cfg.UpdateInterval)
	defer update.Stop()

	var statsC <-chan time.Time
	if s.cfg.StatsInterval > 0 {
		t := time.NewTicker(s.cfg.StatsInterval)
		defer t.Stop()
		statsC = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-update.C:
			if err := s.loop.PostUpdate(); err != nil {
				return
			}
		case now := <-statsC:
			stats.Log(s.log, s.stats.Report(now))
		}
	}
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		nc, err := ln.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.netLog.Warning().Err(err).Log("accept failed")
			time.Sleep(10 * time.Millisecond)
			continue
		}
		s.conns.Add(1)
		go s.serveConn(nc)
	}
}

func (s *Server) closeAll() {
	for _, conn := range s.registry.Snapshot() {
		_ = conn.Close()
	}
}

func (s *Server) waitConns() {
	done := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.cfg.ShutdownTimeout):
		s.sysLog.Warning().Dur("timeout", s.cfg.ShutdownTimeout).Log("connections still open after shutdown timeout")
	}
}

// HandleEvent implements concurrency.EventHandler.
func (s *Server) HandleEvent(ev concurrency.Event) {
	switch ev.Kind {
	case concurrency.EventUpdate:
		s.dispatcher.HandleUpdate()
	case concurrency.EventProcessPacket:
		s.processPacket(ev)
	case concurrency.EventRemoveConnection:
		s.dispatcher.RemoveConnection(ev.ConnID)
		s.netLog.Debug().Int64("client_id", int64(ev.ConnID)).Log("connection removed")
	}
}

func (s *Server) processPacket(ev concurrency.Event) {
	defer s.buffers.Return(ev.Packet)
	conn, ok := s.registry.GetSocket(ev.ConnID)
	if !ok {
		return
	}
	err := s.dispatcher.HandlePacket(ev.Packet.Bytes(), conn, ev.ConnID, ev.Seq)
	if err != nil && api.CodeOf(err) == api.ErrCodeProtocol {
		// undecodable input: drop the client
		_ = conn.Close()
	}
}

// Ready is closed once Run is accepting connections.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr returns the listening address, or nil before Run binds.
func (s *Server) Addr() net.Addr {
	select {
	case <-s.ready:
		return s.listener.Addr()
	default:
		return nil
	}
}

// MetricsAddr returns the exporter address, or nil when disabled.
func (s *Server) MetricsAddr() net.Addr {
	select {
	case <-s.ready:
	default:
		return nil
	}
	if s.exporter == nil {
		return nil
	}
	return s.exporter.Addr()
}

// Stats exposes the statistics collector.
func (s *Server) Stats() *stats.Collector { return s.stats }

// Metrics exposes the Prometheus collector.
func (s *Server) Metrics() *control.MetricsRegistry { return s.metrics }

// Probes exposes the debug probe registry.
func (s *Server) Probes() *control.DebugProbes { return s.probes }

// Shutdown signals Run to stop. It is safe to call more than once.
func (s *Server) Shutdown() error {
	s.stopOnce.Do(func() { close(s.shutdown) })
	return nil
}
