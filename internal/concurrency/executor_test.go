package concurrency

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-chat/api"
)

func TestWorkerPool_ProcessesAllEvents(t *testing.T) {
	el := NewEventLoop()
	var (
		mu   sync.Mutex
		seen = map[api.ConnectionID]bool{}
	)
	wp, err := NewWorkerPool(el, 4, EventHandlerFunc(func(ev Event) {
		mu.Lock()
		seen[ev.ConnID] = true
		mu.Unlock()
	}))
	require.NoError(t, err)
	require.NoError(t, wp.Start())
	assert.ErrorIs(t, wp.Start(), ErrPoolRunning)

	for i := 1; i <= 100; i++ {
		require.NoError(t, el.PostRemove(api.ConnectionID(i)))
	}
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 100
	}, time.Second, time.Millisecond)

	assert.Empty(t, wp.Stop())
	assert.False(t, wp.Running())
	assert.EqualValues(t, 100, wp.Stats()["processed_events"])
	assert.ErrorIs(t, el.PostUpdate(), ErrLoopClosed)
	assert.ErrorIs(t, wp.Start(), ErrPoolStopped)
}

func TestWorkerPool_SurvivesPanic(t *testing.T) {
	el := NewEventLoop()
	var handled atomic.Int32
	var panics atomic.Int32
	wp, err := NewWorkerPool(el, 1, EventHandlerFunc(func(ev Event) {
		if ev.ConnID == 1 {
			panic("bad packet")
		}
		handled.Add(1)
	}))
	require.NoError(t, err)
	wp.OnPanic(func(ev Event, err error) {
		assert.Contains(t, err.Error(), "bad packet")
		panics.Add(1)
	})
	require.NoError(t, wp.Start())

	require.NoError(t, el.PostRemove(1))
	require.NoError(t, el.PostRemove(2))
	require.Eventually(t, func() bool { return handled.Load() == 1 }, time.Second, time.Millisecond)
	assert.EqualValues(t, 1, panics.Load())
	wp.Stop()
}

func TestWorkerPool_StopDrainsQueuedEventsInOrder(t *testing.T) {
	el := NewEventLoop()
	release := make(chan struct{})
	var handled atomic.Int32
	wp, err := NewWorkerPool(el, 2, EventHandlerFunc(func(ev Event) {
		<-release
		handled.Add(1)
	}))
	require.NoError(t, err)
	require.NoError(t, wp.Start())
	for i := 0; i < 10; i++ {
		require.NoError(t, el.PostUpdate())
	}
	close(release)
	rest := wp.Stop()
	assert.Empty(t, rest)
	assert.EqualValues(t, 10, handled.Load())
}

func TestWorkerPool_InvalidCount(t *testing.T) {
	_, err := NewWorkerPool(NewEventLoop(), 0, nil)
	assert.ErrorIs(t, err, ErrInvalidWorkerCount)
}

func TestWorkerPool_PartitionedKeepsPerConnectionOrder(t *testing.T) {
	const conns, perConn = 16, 300
	el := NewPartitionedEventLoop(4)
	var (
		mu      sync.Mutex
		got     = map[api.ConnectionID][]int64{}
		removed = map[api.ConnectionID]int{}
		done    sync.WaitGroup
	)
	done.Add(conns)
	wp, err := NewWorkerPool(el, 4, EventHandlerFunc(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		switch ev.Kind {
		case EventProcessPacket:
			got[ev.ConnID] = append(got[ev.ConnID], ev.Seq)
		case EventRemoveConnection:
			removed[ev.ConnID] = len(got[ev.ConnID])
			done.Done()
		}
	}))
	require.NoError(t, err)
	require.NoError(t, wp.Start())

	var producers sync.WaitGroup
	for c := 1; c <= conns; c++ {
		producers.Add(1)
		go func(id api.ConnectionID) {
			defer producers.Done()
			for i := 0; i < perConn; i++ {
				_, _ = el.PostPacket(id, nil)
			}
			_ = el.PostRemove(id)
		}(api.ConnectionID(c))
	}
	producers.Wait()
	done.Wait()
	wp.Stop()

	for id, seqs := range got {
		require.Len(t, seqs, perConn, "connection %d", id)
		for i := 1; i < len(seqs); i++ {
			assert.Less(t, seqs[i-1], seqs[i], "connection %d out of order", id)
		}
		assert.Equal(t, perConn, removed[id], "removal of %d ran before its packets", id)
	}
}

func TestWorkerPool_LaneCountMismatch(t *testing.T) {
	_, err := NewWorkerPool(NewPartitionedEventLoop(4), 2, nil)
	assert.ErrorIs(t, err, ErrInvalidWorkerCount)
}
