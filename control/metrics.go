// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus view of the chat server's runtime statistics.
// Exposes per-packet-type counters, traffic totals and dynamically registered gauges.

package control

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/momentics/hioload-chat/internal/stats"
)

const namespace = "hioload_chat"

var (
	packetsProcessedDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "packets_processed_total"),
		"Packets processed by the dispatcher, by packet type.",
		[]string{"type"}, nil,
	)
	processingSecondsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "packet_processing_seconds_total"),
		"Cumulative handler time, by packet type.",
		[]string{"type"}, nil,
	)
	bytesSentDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "bytes_sent_total"),
		"Bytes written to clients.", nil, nil,
	)
	bytesReceivedDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "bytes_received_total"),
		"Bytes read from clients.", nil, nil,
	)
	packetsSentDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "packets_sent_total"),
		"Packets written to clients.", nil, nil,
	)
	packetsReceivedDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "packets_received_total"),
		"Packets read from clients.", nil, nil,
	)
)

type gauge struct {
	desc *prometheus.Desc
	fn   func() float64
}

// MetricsRegistry implements prometheus.Collector over a stats collector.
type MetricsRegistry struct {
	stats *stats.Collector

	mu      sync.RWMutex
	gauges  map[string]gauge
	updated time.Time
}

var _ prometheus.Collector = (*MetricsRegistry)(nil)

// NewMetricsRegistry creates a registry reading from st.
func NewMetricsRegistry(st *stats.Collector) *MetricsRegistry {
	return &MetricsRegistry{
		stats:  st,
		gauges: make(map[string]gauge),
	}
}

// RegisterGauge exposes fn as hioload_chat_<name>. Registering a name again
// replaces the previous function.
func (mr *MetricsRegistry) RegisterGauge(name, help string, fn func() float64) {
	mr.mu.Lock()
	mr.gauges[name] = gauge{
		desc: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, nil),
		fn:   fn,
	}
	mr.mu.Unlock()
}

// Describe implements prometheus.Collector.
func (mr *MetricsRegistry) Describe(ch chan<- *prometheus.Desc) {
	ch <- packetsProcessedDesc
	ch <- processingSecondsDesc
	ch <- bytesSentDesc
	ch <- bytesReceivedDesc
	ch <- packetsSentDesc
	ch <- packetsReceivedDesc
	mr.mu.RLock()
	for _, g := range mr.gauges {
		ch <- g.desc
	}
	mr.mu.RUnlock()
}

// Collect implements prometheus.Collector.
func (mr *MetricsRegistry) Collect(ch chan<- prometheus.Metric) {
	snap := mr.stats.Snapshot()
	for t, s := range snap.Packets {
		ch <- prometheus.MustNewConstMetric(packetsProcessedDesc, prometheus.CounterValue, float64(s.PacketCount), t.String())
		ch <- prometheus.MustNewConstMetric(processingSecondsDesc, prometheus.CounterValue, s.TotalProcessingTime.Seconds(), t.String())
	}
	ch <- prometheus.MustNewConstMetric(bytesSentDesc, prometheus.CounterValue, float64(snap.Traffic.BytesSent))
	ch <- prometheus.MustNewConstMetric(bytesReceivedDesc, prometheus.CounterValue, float64(snap.Traffic.BytesReceived))
	ch <- prometheus.MustNewConstMetric(packetsSentDesc, prometheus.CounterValue, float64(snap.Traffic.PacketsSent))
	ch <- prometheus.MustNewConstMetric(packetsReceivedDesc, prometheus.CounterValue, float64(snap.Traffic.PacketsReceived))

	mr.mu.Lock()
	mr.updated = time.Now()
	gauges := make([]gauge, 0, len(mr.gauges))
	for _, g := range mr.gauges {
		gauges = append(gauges, g)
	}
	mr.mu.Unlock()
	for _, g := range gauges {
		ch <- prometheus.MustNewConstMetric(g.desc, prometheus.GaugeValue, g.fn())
	}
}

// LastCollected returns when Collect last ran.
func (mr *MetricsRegistry) LastCollected() time.Time {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return mr.updated
}

// GetSnapshot returns the current gauge values keyed by name.
func (mr *MetricsRegistry) GetSnapshot() map[string]float64 {
	mr.mu.RLock()
	names := make([]string, 0, len(mr.gauges))
	for name := range mr.gauges {
		names = append(names, name)
	}
	sort.Strings(names)
	fns := make([]func() float64, len(names))
	for i, name := range names {
		fns[i] = mr.gauges[name].fn
	}
	mr.mu.RUnlock()

	out := make(map[string]float64, len(names))
	for i, name := range names {
		out[name] = fns[i]()
	}
	return out
}
