// File: pool/buffer.go
// Author: momentics <momentics@gmail.com>

package pool

import "io"

// PooledBuffer holds one packet between the framer and the handler that consumes it.
// It is never shared by concurrent owners.
type PooledBuffer struct {
	data []byte
	pos  int
}

var (
	_ Resetter  = (*PooledBuffer)(nil)
	_ io.Writer = (*PooledBuffer)(nil)
	_ io.Reader = (*PooledBuffer)(nil)
)

// NewPooledBuffer allocates a buffer with the given starting capacity.
func NewPooledBuffer(capacity int) *PooledBuffer {
	return &PooledBuffer{data: make([]byte, 0, capacity)}
}

// Write appends p.
func (b *PooledBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

// Read consumes from the current position.
func (b *PooledBuffer) Read(p []byte) (int, error) {
	if b.pos >= len(b.data) {
		return 0, io.EOF
	}
	n := copy(p, b.data[b.pos:])
	b.pos += n
	return n, nil
}

// Bytes returns the full contents regardless of the read position.
func (b *PooledBuffer) Bytes() []byte { return b.data }

// Len is the number of bytes written.
func (b *PooledBuffer) Len() int { return len(b.data) }

// Position is the read offset.
func (b *PooledBuffer) Position() int { return b.pos }

// Reset sets length and position to zero, keeping capacity.
func (b *PooledBuffer) Reset() {
	b.data = b.data[:0]
	b.pos = 0
}

// NewBufferPool builds an ObjectPool of PooledBuffers with bufSize capacity each.
func NewBufferPool(initialSize, maxSize, growSize, bufSize int) *ObjectPool[*PooledBuffer] {
	return NewObjectPool(initialSize, maxSize, growSize, func() *PooledBuffer {
		return NewPooledBuffer(bufSize)
	})
}
