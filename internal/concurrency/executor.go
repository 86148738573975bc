// File: internal/concurrency/executor.go
// Package concurrency implements the fixed worker pool draining the event loop.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Each worker blocks on one lane of the loop and handles one event at a time.
// With one worker per lane a connection's events are handled in post order.
// Workers sharing a single lane give no ordering between them.

package concurrency

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// EventHandler processes events popped from the loop.
type EventHandler interface {
	HandleEvent(ev Event)
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc func(ev Event)

func (f EventHandlerFunc) HandleEvent(ev Event) { f(ev) }

// PanicHandler is told about a recovered handler panic.
type PanicHandler func(ev Event, err error)

// WorkerPool manages a fixed set of worker goroutines.
type WorkerPool struct {
	loop       *EventLoop
	handler    EventHandler
	onPanic    PanicHandler
	numWorkers int
	running    atomic.Bool
	stopped    atomic.Bool
	wg         sync.WaitGroup

	// statistics
	processed atomic.Int64
	panics    atomic.Int64
}

// NewWorkerPool creates a pool of numWorkers consumers of loop. A partitioned
// loop needs exactly one worker per lane.
func NewWorkerPool(loop *EventLoop, numWorkers int, handler EventHandler) (*WorkerPool, error) {
	if numWorkers <= 0 {
		return nil, ErrInvalidWorkerCount
	}
	if lanes := loop.Lanes(); lanes > 1 && lanes != numWorkers {
		return nil, fmt.Errorf("%w: %d workers for %d lanes", ErrInvalidWorkerCount, numWorkers, lanes)
	}
	return &WorkerPool{loop: loop, handler: handler, numWorkers: numWorkers}, nil
}

// OnPanic registers fn for recovered panics. Call before Start.
func (p *WorkerPool) OnPanic(fn PanicHandler) {
	p.onPanic = fn
}

// Start launches the workers.
func (p *WorkerPool) Start() error {
	if p.stopped.Load() {
		return ErrPoolStopped
	}
	if !p.running.CompareAndSwap(false, true) {
		return ErrPoolRunning
	}
	p.wg.Add(p.numWorkers)
	for i := 0; i < p.numWorkers; i++ {
		go p.run(i % p.loop.Lanes())
	}
	return nil
}

// Stop clears the running flag, posts one stop sentinel per worker, joins the
// workers and closes the loop. Events still queued behind the sentinels are
// returned so the caller can release them.
func (p *WorkerPool) Stop() []Event {
	if !p.stopped.CompareAndSwap(false, true) {
		return nil
	}
	if p.running.Swap(false) {
		p.loop.postStop(p.numWorkers)
		p.wg.Wait()
	}
	return p.loop.Close()
}

// Running reports whether workers are active.
func (p *WorkerPool) Running() bool { return p.running.Load() }

// NumWorkers returns the configured number of workers.
func (p *WorkerPool) NumWorkers() int { return p.numWorkers }

// Stats returns basic pool metrics.
func (p *WorkerPool) Stats() map[string]int64 {
	return map[string]int64{
		"processed_events": p.processed.Load(),
		"recovered_panics": p.panics.Load(),
		"pending_events":   int64(p.loop.Pending()),
		"num_workers":      int64(p.numWorkers),
		"num_lanes":        int64(p.loop.Lanes()),
	}
}

func (p *WorkerPool) run(lane int) {
	defer p.wg.Done()
	for {
		ev, ok := p.loop.NextFrom(lane)
		if !ok || ev.Kind == eventStop {
			return
		}
		p.safeExecute(ev)
	}
}

// safeExecute runs the handler, recovering from panics to keep the worker alive.
func (p *WorkerPool) safeExecute(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			p.panics.Add(1)
			if p.onPanic != nil {
				p.onPanic(ev, fmt.Errorf("panic handling %s event: %v", ev.Kind, r))
			}
		}
		p.processed.Add(1)
	}()
	p.handler.HandleEvent(ev)
}
