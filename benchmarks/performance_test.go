// Package benchmarks
// Author: momentics <momentics@gmail.com>
//
// Performance benchmarks for hioload-chat components.

package benchmarks

import (
	"sync"
	"testing"

	"github.com/momentics/hioload-chat/api"
	"github.com/momentics/hioload-chat/fake"
	"github.com/momentics/hioload-chat/internal/concurrency"
	"github.com/momentics/hioload-chat/internal/registry"
	"github.com/momentics/hioload-chat/pool"
	"github.com/momentics/hioload-chat/protocol"
)

var sampleReq = &protocol.MessageReq{
	Msg:          "the quick brown fox jumps over the lazy dog",
	SenderName:   "alice",
	ReceiverName: "bob",
	MsgType:      protocol.MsgTypeWhisper,
}

// BenchmarkMessageEncode measures framing one MessageReq into a reused buffer.
func BenchmarkMessageEncode(b *testing.B) {
	buf := make([]byte, 0, 256)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		var err error
		if buf, err = protocol.AppendMessage(buf[:0], sampleReq); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkMessageDecode measures decoding one MessageReq body.
func BenchmarkMessageDecode(b *testing.B) {
	body := protocol.Marshal(sampleReq)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		var m protocol.MessageReq
		if err := protocol.Unmarshal(body, &m); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkFramerDrain feeds a stream of 64 packets in 1000-byte chunks.
func BenchmarkFramerDrain(b *testing.B) {
	var stream []byte
	for i := 0; i < 64; i++ {
		stream, _ = protocol.AppendMessage(stream, sampleReq)
	}
	f := protocol.NewFramer(8*1024, protocol.MaxPacketSize)
	count := func([]byte) error { return nil }
	b.SetBytes(int64(len(stream)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for off := 0; off < len(stream); off += 1000 {
			end := min(off+1000, len(stream))
			_, _ = f.Write(stream[off:end])
			if _, err := f.Drain(count); err != nil {
				b.Fatal(err)
			}
		}
	}
}

// BenchmarkSpinLockParallel measures an uncontended-to-contended critical section.
func BenchmarkSpinLockParallel(b *testing.B) {
	var (
		l concurrency.SpinLock
		n int
	)
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			l.Lock()
			n++
			l.Unlock()
		}
	})
	_ = n
}

// BenchmarkMutexParallel is the sync.Mutex baseline for BenchmarkSpinLockParallel.
func BenchmarkMutexParallel(b *testing.B) {
	var (
		l sync.Mutex
		n int
	)
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			l.Lock()
			n++
			l.Unlock()
		}
	})
	_ = n
}

// BenchmarkBufferPoolParallel tests guarded packet pool get/return.
func BenchmarkBufferPoolParallel(b *testing.B) {
	var l concurrency.SpinLock
	p := pool.NewGuarded(pool.NewBufferPool(64, 1024, 32, 512), &l)
	payload := make([]byte, 128)
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			buf := p.Get()
			_, _ = buf.Write(payload)
			p.Return(buf)
		}
	})
}

// BenchmarkBroadcast fans one packet out to 100 fake connections.
func BenchmarkBroadcast(b *testing.B) {
	r := registry.New()
	conns := make([]*fake.Conn, 100)
	for i := range conns {
		conns[i] = fake.NewConn()
		r.AddClient(conns[i])
	}
	body := protocol.Marshal(sampleReq.Ack())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if i%1000 == 0 {
			b.StopTimer()
			for _, c := range conns {
				c.Reset()
			}
			b.StartTimer()
		}
		r.BroadcastToAll(api.PacketMessageAck, body, api.NoConnection)
	}
}

// BenchmarkEventLoopThroughput posts packets through four lanes, one worker each.
func BenchmarkEventLoopThroughput(b *testing.B) {
	loop := concurrency.NewPartitionedEventLoop(4)
	var wg sync.WaitGroup
	wp, err := concurrency.NewWorkerPool(loop, 4, concurrency.EventHandlerFunc(func(concurrency.Event) { wg.Done() }))
	if err != nil {
		b.Fatal(err)
	}
	if err := wp.Start(); err != nil {
		b.Fatal(err)
	}
	defer wp.Stop()

	buf := pool.NewPooledBuffer(16)
	b.ResetTimer()
	wg.Add(b.N)
	for i := 0; i < b.N; i++ {
		if _, err := loop.PostPacket(api.ConnectionID(i%16+1), buf); err != nil {
			b.Fatal(err)
		}
	}
	wg.Wait()
}
