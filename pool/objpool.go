// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package pool

import "sync"

// Resetter is implemented by pooled items. Reset restores the default state.
type Resetter interface {
	Reset()
}

// ObjectPool is a bounded pool of reusable items.
//
// It is not safe for concurrent use; wrap it in Guarded or keep one per goroutine.
type ObjectPool[T Resetter] struct {
	items    []T
	newFn    func() T
	maxSize  int
	growSize int
	onGrow   func(grew, size int)
}

// NewObjectPool pre-fills a pool with initialSize items built by newFn.
// initialSize is clamped to maxSize, growSize to at least 1.
func NewObjectPool[T Resetter](initialSize, maxSize, growSize int, newFn func() T) *ObjectPool[T] {
	if maxSize < 0 {
		maxSize = 0
	}
	if initialSize > maxSize {
		initialSize = maxSize
	}
	if growSize < 1 {
		growSize = 1
	}
	p := &ObjectPool[T]{
		items:    make([]T, 0, maxSize),
		newFn:    newFn,
		maxSize:  maxSize,
		growSize: growSize,
	}
	for i := 0; i < initialSize; i++ {
		p.items = append(p.items, newFn())
	}
	return p
}

// OnGrow registers fn to be called after the pool grows.
func (p *ObjectPool[T]) OnGrow(fn func(grew, size int)) {
	p.onGrow = fn
}

// Get pops an item, growing the pool by min(growSize, maxSize-Len()) first if it is empty.
// When no growth is possible a fresh item is returned without being tracked.
func (p *ObjectPool[T]) Get() T {
	if len(p.items) == 0 {
		p.grow()
		if len(p.items) == 0 {
			return p.newFn()
		}
	}
	last := len(p.items) - 1
	item := p.items[last]
	var zero T
	p.items[last] = zero
	p.items = p.items[:last]
	return item
}

// Return resets item and keeps it unless the pool is already at maxSize.
func (p *ObjectPool[T]) Return(item T) {
	item.Reset()
	if len(p.items) < p.maxSize {
		p.items = append(p.items, item)
	}
}

// Len reports how many items the pool currently holds.
func (p *ObjectPool[T]) Len() int { return len(p.items) }

// Cap reports maxSize.
func (p *ObjectPool[T]) Cap() int { return p.maxSize }

func (p *ObjectPool[T]) grow() {
	n := min(p.growSize, p.maxSize-len(p.items))
	for i := 0; i < n; i++ {
		p.items = append(p.items, p.newFn())
	}
	if n > 0 && p.onGrow != nil {
		p.onGrow(n, len(p.items))
	}
}

// Guarded serializes access to an ObjectPool with a caller-supplied lock.
type Guarded[T Resetter] struct {
	mu   sync.Locker
	pool *ObjectPool[T]
}

// NewGuarded wraps p with mu.
func NewGuarded[T Resetter](p *ObjectPool[T], mu sync.Locker) *Guarded[T] {
	return &Guarded[T]{mu: mu, pool: p}
}

func (g *Guarded[T]) Get() T {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pool.Get()
}

func (g *Guarded[T]) Return(item T) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pool.Return(item)
}

func (g *Guarded[T]) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pool.Len()
}

// SyncPool wraps sync.Pool for generic usage.
type SyncPool[T any] struct {
	pool *sync.Pool
}

// NewSyncPool creates a new SyncPool with a creator function.
func NewSyncPool[T any](creator func() T) *SyncPool[T] {
	return &SyncPool[T]{
		pool: &sync.Pool{New: func() any { return creator() }},
	}
}

func (sp *SyncPool[T]) Get() T {
	return sp.pool.Get().(T)
}

func (sp *SyncPool[T]) Put(obj T) {
	sp.pool.Put(obj)
}
