// File: protocol/codec.go
// Package protocol implements the chat wire codec, packet header and stream framer.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Layout rules, all little-endian:
//   - bool: 1 byte
//   - int16/uint16/char: 2 bytes, int32/uint32/float32: 4 bytes, int64/uint64: 8 bytes
//   - string: 7-bit varint byte length, then UTF-8 bytes
//   - enum: int32
//   - array/list: int32 count, then elements

package protocol

import (
	"encoding/binary"
	"errors"
	"math"
)

var (
	// ErrShortBuffer is returned when a read runs past the end of the input.
	ErrShortBuffer = errors.New("protocol: short buffer")
	// ErrUnsupportedType is returned for shapes the codec cannot encode or decode.
	ErrUnsupportedType = errors.New("protocol: unsupported type")
	// ErrInvalidLength is returned for negative or overflowing length prefixes.
	ErrInvalidLength = errors.New("protocol: invalid length")
)

// Writer appends encoded values to a byte slice.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer appending to buf[:0].
func NewWriter(buf []byte) *Writer {
	return &Writer{buf: buf[:0]}
}

// Bytes returns the encoded output.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of encoded bytes.
func (w *Writer) Len() int { return len(w.buf) }

// Reset discards the output, keeping capacity.
func (w *Writer) Reset() { w.buf = w.buf[:0] }

func (w *Writer) WriteBool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

func (w *Writer) WriteInt16(v int16)   { w.buf = binary.LittleEndian.AppendUint16(w.buf, uint16(v)) }
func (w *Writer) WriteUint16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }
func (w *Writer) WriteInt32(v int32)   { w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(v)) }
func (w *Writer) WriteUint32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *Writer) WriteInt64(v int64)   { w.buf = binary.LittleEndian.AppendUint64(w.buf, uint64(v)) }
func (w *Writer) WriteUint64(v uint64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }

func (w *Writer) WriteFloat32(v float32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, math.Float32bits(v))
}

// WriteChar writes one UTF-16 code unit.
func (w *Writer) WriteChar(c uint16) { w.WriteUint16(c) }

// WriteString writes a varint byte length followed by the UTF-8 bytes of s.
func (w *Writer) WriteString(s string) {
	w.buf = binary.AppendUvarint(w.buf, uint64(len(s)))
	w.buf = append(w.buf, s...)
}

// WriteCount writes an array or list element count.
func (w *Writer) WriteCount(n int) { w.WriteInt32(int32(n)) }

// Reader consumes encoded values from a byte slice.
type Reader struct {
	buf []byte
	off int
}

// NewReader returns a Reader positioned at the start of buf.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

// Offset returns the read position.
func (r *Reader) Offset() int { return r.off }

func (r *Reader) next(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, ErrShortBuffer
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *Reader) ReadBool() (bool, error) {
	b, err := r.next(1)
	if err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.next(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *Reader) ReadInt16() (int16, error) {
	v, err := r.ReadUint16()
	return int16(v), err
}

func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.next(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.next(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *Reader) ReadInt64() (int64, error) {
	v, err := r.ReadUint64()
	return int64(v), err
}

func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	return math.Float32frombits(v), err
}

// ReadChar reads one UTF-16 code unit.
func (r *Reader) ReadChar() (uint16, error) { return r.ReadUint16() }

// ReadString reads a varint-prefixed UTF-8 string. Invalid UTF-8 is kept as is.
func (r *Reader) ReadString() (string, error) {
	n, used := binary.Uvarint(r.buf[r.off:])
	switch {
	case used == 0:
		return "", ErrShortBuffer
	case used < 0 || n > math.MaxInt32:
		return "", ErrInvalidLength
	}
	r.off += used
	b, err := r.next(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadCount reads an array or list element count.
func (r *Reader) ReadCount() (int, error) {
	n, err := r.ReadInt32()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, ErrInvalidLength
	}
	return int(n), nil
}
