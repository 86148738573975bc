// File: protocol/framer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Reassembles packets from a TCP byte stream. Several packets in one read and
// one packet split over many reads are both handled; an incomplete tail is not
// an error, it simply waits for the next Write.

package protocol

import "fmt"

// Framer holds the ingest buffer of one connection. It is not safe for concurrent use.
type Framer struct {
	buf     []byte
	maxSize int
}

// NewFramer creates a framer with the given initial buffer capacity. Packets
// announcing more than maxPacketSize bytes are rejected; maxPacketSize <= 0
// or above MaxWireSize means MaxWireSize.
func NewFramer(capacity, maxPacketSize int) *Framer {
	if maxPacketSize <= 0 || maxPacketSize > MaxWireSize {
		maxPacketSize = MaxWireSize
	}
	return &Framer{buf: make([]byte, 0, capacity), maxSize: maxPacketSize}
}

// Write appends received bytes.
func (f *Framer) Write(p []byte) (int, error) {
	f.buf = append(f.buf, p...)
	return len(p), nil
}

// Buffered returns the number of bytes waiting for a complete packet.
func (f *Framer) Buffered() int { return len(f.buf) }

// Drain emits every complete packet in arrival order and returns how many it
// emitted. The slice passed to fn, header included, is only valid during the
// call. An error from fn stops draining and is returned. A size field outside
// [HeaderSize, maxPacketSize] returns ErrPacketSize; the stream cannot be resynchronized.
func (f *Framer) Drain(fn func(packet []byte) error) (int, error) {
	count := 0
	for len(f.buf) >= sizeFieldSize {
		size := int(f.buf[0]) | int(f.buf[1])<<8
		if size < HeaderSize || size > f.maxSize {
			return count, fmt.Errorf("%w: %d (limit %d)", ErrPacketSize, size, f.maxSize)
		}
		if len(f.buf) < size {
			break
		}
		if err := fn(f.buf[:size]); err != nil {
			return count, err
		}
		count++
		n := copy(f.buf, f.buf[size:])
		f.buf = f.buf[:n]
	}
	return count, nil
}

// Reset drops buffered bytes.
func (f *Framer) Reset() { f.buf = f.buf[:0] }
