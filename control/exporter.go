// control/exporter.go
// Author: momentics <momentics@gmail.com>
//
// HTTP endpoint serving /metrics and /debug/probes.

package control

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter exposes metrics and probes via HTTP.
type Exporter struct {
	addr     string
	registry *prometheus.Registry
	server   *http.Server
	ln       net.Listener
	done     chan error
}

// NewExporter builds an exporter for addr. Go runtime and process collectors
// are registered next to metrics.
func NewExporter(addr string, metrics *MetricsRegistry, probes *DebugProbes) (*Exporter, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(metrics); err != nil {
		return nil, err
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	if probes != nil {
		mux.Handle("/debug/probes", probes)
	}

	return &Exporter{
		addr:     addr,
		registry: reg,
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		done: make(chan error, 1),
	}, nil
}

// Start binds the listener and serves in the background.
func (e *Exporter) Start() error {
	ln, err := net.Listen("tcp", e.addr)
	if err != nil {
		return err
	}
	e.ln = ln
	go func() {
		err := e.server.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		e.done <- err
	}()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (e *Exporter) Addr() net.Addr {
	if e.ln == nil {
		return nil
	}
	return e.ln.Addr()
}

// Registry returns the Prometheus registry backing /metrics.
func (e *Exporter) Registry() *prometheus.Registry { return e.registry }

// Stop shuts the HTTP server down, waiting at most until ctx expires.
func (e *Exporter) Stop(ctx context.Context) error {
	if e.ln == nil {
		return nil
	}
	if err := e.server.Shutdown(ctx); err != nil {
		return err
	}
	return <-e.done
}
