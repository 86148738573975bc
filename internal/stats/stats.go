// File: internal/stats/stats.go
// Package stats
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-packet-type processing statistics, traffic counters and the periodic report.

package stats

import (
	"sort"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"golang.org/x/sys/cpu"

	"github.com/momentics/hioload-chat/api"
	"github.com/momentics/hioload-chat/internal/concurrency"
	"github.com/momentics/hioload-chat/internal/logging"
)

// DefaultWindow is the span used for packets/sec rates.
const DefaultWindow = 5 * time.Minute

// PacketStats accumulates processing time for one packet type.
type PacketStats struct {
	TotalProcessingTime time.Duration
	PacketCount         int64
}

// Average returns the mean processing time, or zero with no packets.
func (s PacketStats) Average() time.Duration {
	if s.PacketCount == 0 {
		return 0
	}
	return s.TotalProcessingTime / time.Duration(s.PacketCount)
}

// Traffic holds cumulative wire counters.
type Traffic struct {
	BytesSent       int64
	BytesReceived   int64
	PacketsSent     int64
	PacketsReceived int64
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Packets map[api.PacketType]PacketStats
	Traffic Traffic
}

type sample struct {
	at    time.Time
	count int64
}

type counter struct {
	_ cpu.CacheLinePad
	n atomic.Int64
}

// Collector is safe for concurrent use.
type Collector struct {
	lock    concurrency.SpinLock
	packets map[api.PacketType]*PacketStats
	samples map[api.PacketType]*queue.Queue

	bytesSent, bytesRecv     counter
	packetsSent, packetsRecv counter

	window   time.Duration
	now      func() time.Time
	last     time.Time
	lastSent int64
	lastRecv int64
}

// Option configures a Collector.
type Option func(*Collector)

// WithWindow sets the sliding window for packets/sec rates.
func WithWindow(d time.Duration) Option {
	return func(c *Collector) {
		if d > 0 {
			c.window = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

// New creates a collector. The first report measures rates from this moment.
func New(opts ...Option) *Collector {
	c := &Collector{
		packets: make(map[api.PacketType]*PacketStats),
		samples: make(map[api.PacketType]*queue.Queue),
		window:  DefaultWindow,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.last = c.now()
	return c
}

// Record adds one processed packet of type t taking d.
func (c *Collector) Record(t api.PacketType, d time.Duration) {
	c.lock.Lock()
	s, ok := c.packets[t]
	if !ok {
		s = &PacketStats{}
		c.packets[t] = s
	}
	s.TotalProcessingTime += d
	s.PacketCount++
	c.lock.Unlock()
}

// AddSent counts one packet of n bytes written to the wire.
func (c *Collector) AddSent(n int) {
	c.bytesSent.n.Add(int64(n))
	c.packetsSent.n.Add(1)
}

// AddReceived counts one packet of n bytes read from the wire.
func (c *Collector) AddReceived(n int) {
	c.bytesRecv.n.Add(int64(n))
	c.packetsRecv.n.Add(1)
}

// Traffic returns the cumulative wire counters.
func (c *Collector) Traffic() Traffic {
	return Traffic{
		BytesSent:       c.bytesSent.n.Load(),
		BytesReceived:   c.bytesRecv.n.Load(),
		PacketsSent:     c.packetsSent.n.Load(),
		PacketsReceived: c.packetsRecv.n.Load(),
	}
}

// Snapshot copies the current counters.
func (c *Collector) Snapshot() Snapshot {
	c.lock.Lock()
	packets := make(map[api.PacketType]PacketStats, len(c.packets))
	for t, s := range c.packets {
		packets[t] = *s
	}
	c.lock.Unlock()
	return Snapshot{Packets: packets, Traffic: c.Traffic()}
}

// TypeReport is the per-type part of a Report.
type TypeReport struct {
	Type    api.PacketType
	Count   int64
	Average time.Duration
	// Rate is packets/sec over the window. HasRate is false until two
	// samples exist.
	Rate    float64
	HasRate bool
}

// Report is the periodic statistics summary.
type Report struct {
	At                     time.Time
	Traffic                Traffic
	BytesSentPerSecond     float64
	BytesReceivedPerSecond float64
	Types                  []TypeReport
}

// Report builds a summary at now and advances the rate baselines.
func (c *Collector) Report(now time.Time) Report {
	traffic := c.Traffic()
	r := Report{At: now, Traffic: traffic}

	c.lock.Lock()
	if elapsed := now.Sub(c.last).Seconds(); elapsed > 0 {
		r.BytesSentPerSecond = float64(traffic.BytesSent-c.lastSent) / elapsed
		r.BytesReceivedPerSecond = float64(traffic.BytesReceived-c.lastRecv) / elapsed
	}
	c.last, c.lastSent, c.lastRecv = now, traffic.BytesSent, traffic.BytesReceived

	for t, s := range c.packets {
		tr := TypeReport{Type: t, Count: s.PacketCount, Average: s.Average()}
		q, ok := c.samples[t]
		if !ok {
			q = queue.New()
			c.samples[t] = q
		}
		q.Add(sample{at: now, count: s.PacketCount})
		for q.Length() > 0 && now.Sub(q.Peek().(sample).at) > c.window {
			q.Remove()
		}
		if q.Length() > 1 {
			oldest := q.Peek().(sample)
			if secs := now.Sub(oldest.at).Seconds(); secs > 0 {
				tr.Rate = float64(s.PacketCount-oldest.count) / secs
				tr.HasRate = true
			}
		}
		r.Types = append(r.Types, tr)
	}
	c.lock.Unlock()

	sort.Slice(r.Types, func(i, j int) bool { return r.Types[i].Type < r.Types[j].Type })
	return r
}

// ReportNow is Report at the collector's clock.
func (c *Collector) ReportNow() Report { return c.Report(c.now()) }

// Log writes r to l under the timer category, one record for the totals and
// one per packet type.
func Log(l *logging.Logger, r Report) {
	l = logging.For(l, logging.Timer)
	l.Info().
		Int64("packets_sent", r.Traffic.PacketsSent).
		Int64("packets_received", r.Traffic.PacketsReceived).
		Int64("bytes_sent", r.Traffic.BytesSent).
		Int64("bytes_received", r.Traffic.BytesReceived).
		Float64("bytes_sent_per_sec", r.BytesSentPerSecond).
		Float64("bytes_received_per_sec", r.BytesReceivedPerSecond).
		Log("traffic statistics")
	for _, tr := range r.Types {
		b := l.Info().
			Stringer("packet_type", tr.Type).
			Int64("count", tr.Count).
			Dur("avg_processing", tr.Average)
		if tr.HasRate {
			b = b.Float64("packets_per_sec", tr.Rate)
		} else {
			b = b.Str("packets_per_sec", "not enough data")
		}
		b.Log("packet statistics")
	}
}
