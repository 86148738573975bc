// File: internal/concurrency/eventloop.go
// Package concurrency implements the completion-queue style event loop.
//
// The loop is split into lanes, each an unbounded FIFO. Every event for a
// connection lands in the same lane, so a single consumer per lane sees that
// connection's packets and its removal in post order. Close hands back the
// events nobody consumed.

package concurrency

import (
	"sync"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-chat/api"
	"github.com/momentics/hioload-chat/pool"
)

// EventKind tags an Event.
type EventKind uint8

const (
	EventUpdate EventKind = iota + 1
	EventProcessPacket
	EventRemoveConnection
	eventStop
)

func (k EventKind) String() string {
	switch k {
	case EventUpdate:
		return "Update"
	case EventProcessPacket:
		return "ProcessPacket"
	case EventRemoveConnection:
		return "RemoveConnection"
	case eventStop:
		return "Stop"
	default:
		return "Unknown"
	}
}

// Event is one unit of work for the worker pool.
type Event struct {
	Kind   EventKind
	ConnID api.ConnectionID
	// Packet holds one complete packet, header included, for EventProcessPacket.
	Packet *pool.PooledBuffer
	// Seq is the global enqueue order of packets.
	Seq int64
}

type lane struct {
	cond  *sync.Cond
	queue *queue.Queue
}

// EventLoop is a set of unbounded FIFO lanes with blocking consumers.
type EventLoop struct {
	mu     sync.Mutex
	lanes  []lane
	closed bool
	seq    int64
	// next update lane, round robin
	tick int
}

// NewEventLoop creates an open loop with a single lane.
func NewEventLoop() *EventLoop {
	return NewPartitionedEventLoop(1)
}

// NewPartitionedEventLoop creates an open loop with n lanes. Values below one
// are treated as one.
func NewPartitionedEventLoop(n int) *EventLoop {
	if n < 1 {
		n = 1
	}
	el := &EventLoop{lanes: make([]lane, n)}
	for i := range el.lanes {
		el.lanes[i] = lane{cond: sync.NewCond(&el.mu), queue: queue.New()}
	}
	return el
}

// Lanes returns the number of lanes.
func (el *EventLoop) Lanes() int { return len(el.lanes) }

// LaneOf returns the lane that carries the events of id.
func (el *EventLoop) LaneOf(id api.ConnectionID) int {
	return int(uint64(id) % uint64(len(el.lanes)))
}

// Post enqueues ev. Connection events go to the lane of ev.ConnID, updates
// rotate over the lanes. It fails with ErrLoopClosed once Close was called.
func (el *EventLoop) Post(ev Event) error {
	el.mu.Lock()
	defer el.mu.Unlock()
	if el.closed {
		return ErrLoopClosed
	}
	idx := el.LaneOf(ev.ConnID)
	switch ev.Kind {
	case EventUpdate:
		idx = el.tick
		el.tick = (el.tick + 1) % len(el.lanes)
	case EventProcessPacket:
		el.seq++
		ev.Seq = el.seq
	}
	el.push(idx, ev)
	return nil
}

// PostUpdate enqueues a periodic tick.
func (el *EventLoop) PostUpdate() error {
	return el.Post(Event{Kind: EventUpdate})
}

// PostPacket enqueues a packet for connID and returns its sequence number.
// Sequence numbers follow post order.
func (el *EventLoop) PostPacket(connID api.ConnectionID, packet *pool.PooledBuffer) (int64, error) {
	el.mu.Lock()
	defer el.mu.Unlock()
	if el.closed {
		return 0, ErrLoopClosed
	}
	el.seq++
	el.push(el.LaneOf(connID), Event{Kind: EventProcessPacket, ConnID: connID, Packet: packet, Seq: el.seq})
	return el.seq, nil
}

// PostRemove enqueues the teardown of connID behind its pending packets.
func (el *EventLoop) PostRemove(connID api.ConnectionID) error {
	return el.Post(Event{Kind: EventRemoveConnection, ConnID: connID})
}

// push must be called with mu held.
func (el *EventLoop) push(idx int, ev Event) {
	l := &el.lanes[idx]
	l.queue.Add(ev)
	l.cond.Signal()
}

// Next blocks until an event is available on lane 0.
func (el *EventLoop) Next() (Event, bool) {
	return el.NextFrom(0)
}

// NextFrom blocks until an event is available on lane idx. It returns false
// once the loop is closed and the lane is empty.
func (el *EventLoop) NextFrom(idx int) (Event, bool) {
	el.mu.Lock()
	defer el.mu.Unlock()
	l := &el.lanes[idx]
	for l.queue.Length() == 0 {
		if el.closed {
			return Event{}, false
		}
		l.cond.Wait()
	}
	return l.queue.Remove().(Event), true
}

// Pending returns the number of queued events across all lanes.
func (el *EventLoop) Pending() int {
	el.mu.Lock()
	defer el.mu.Unlock()
	n := 0
	for i := range el.lanes {
		n += el.lanes[i].queue.Length()
	}
	return n
}

// Seq returns the last assigned packet sequence number.
func (el *EventLoop) Seq() int64 {
	el.mu.Lock()
	defer el.mu.Unlock()
	return el.seq
}

// Close stops accepting events, wakes all consumers and returns the events
// nobody consumed, lane by lane. Calling Close again returns nil.
func (el *EventLoop) Close() []Event {
	el.mu.Lock()
	defer el.mu.Unlock()
	if el.closed {
		return nil
	}
	el.closed = true
	var rest []Event
	for i := range el.lanes {
		l := &el.lanes[i]
		for l.queue.Length() > 0 {
			if ev := l.queue.Remove().(Event); ev.Kind != eventStop {
				rest = append(rest, ev)
			}
		}
		l.cond.Broadcast()
	}
	return rest
}

// postStop enqueues one stop sentinel per consumer; consumer i reads lane
// i % Lanes().
func (el *EventLoop) postStop(consumers int) {
	el.mu.Lock()
	defer el.mu.Unlock()
	if el.closed {
		return
	}
	for i := 0; i < consumers; i++ {
		l := &el.lanes[i%len(el.lanes)]
		l.queue.Add(Event{Kind: eventStop})
		l.cond.Broadcast()
	}
}
