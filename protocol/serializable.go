// File: protocol/serializable.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Composite values and containers. Message types declare their own field
// order through Serializable; there is no runtime type introspection.

package protocol

import "fmt"

// Marshaler writes a composite value.
type Marshaler interface {
	MarshalWire(w *Writer)
}

// Unmarshaler reads a composite value in place.
type Unmarshaler interface {
	UnmarshalWire(r *Reader) error
}

// Serializable is implemented by composite types. Fields are written and read
// in a fixed order that must not change between versions.
type Serializable interface {
	Marshaler
	Unmarshaler
}

// Enum is implemented by enumerations. They travel as their int32 value.
type Enum interface {
	EnumValue() int32
}

// enumTarget is implemented by pointers to enumerations.
type enumTarget interface {
	SetEnumValue(v int32)
}

// Scalar is the set of fixed-width types allowed in arrays.
type Scalar interface {
	bool | int16 | uint16 | int32 | uint32 | int64 | uint64 | float32
}

// Marshal encodes v into a new slice.
func Marshal(v Marshaler) []byte {
	w := NewWriter(nil)
	v.MarshalWire(w)
	return w.Bytes()
}

// Unmarshal decodes b into v. Trailing bytes are ignored.
func Unmarshal(b []byte, v Unmarshaler) error {
	return v.UnmarshalWire(NewReader(b))
}

// WriteEnum writes an enumeration as its int32 value.
func WriteEnum[E ~int32](w *Writer, e E) { w.WriteInt32(int32(e)) }

// ReadEnum reads an int32 enumeration value.
func ReadEnum[E ~int32](r *Reader) (E, error) {
	v, err := r.ReadInt32()
	return E(v), err
}

// WriteArray writes a count followed by each scalar.
func WriteArray[T Scalar](w *Writer, v []T) {
	w.WriteCount(len(v))
	for _, e := range v {
		writeScalar(w, e)
	}
}

// ReadArray reads a counted scalar array.
func ReadArray[T Scalar](r *Reader) ([]T, error) {
	n, err := r.ReadCount()
	if err != nil {
		return nil, err
	}
	var zero T
	if width := scalarWidth(zero); n*width > r.Remaining() {
		return nil, ErrShortBuffer
	}
	out := make([]T, n)
	for i := range out {
		if out[i], err = readScalar[T](r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// WriteList writes a count followed by each element encoded with enc.
// Nested lists are written by passing another WriteList as enc.
func WriteList[T any](w *Writer, items []T, enc func(*Writer, T)) {
	w.WriteCount(len(items))
	for _, it := range items {
		enc(w, it)
	}
}

// ReadList reads a counted sequence, decoding each element with dec.
func ReadList[T any](r *Reader, dec func(*Reader) (T, error)) ([]T, error) {
	n, err := r.ReadCount()
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, min(n, r.Remaining()))
	for i := 0; i < n; i++ {
		v, err := dec(r)
		if err != nil {
			return nil, fmt.Errorf("list element %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Encode writes any supported value: scalars, strings, enumerations, scalar
// arrays, string lists and composites. Composites are accepted by value when
// MarshalWire has a value receiver, as the chat messages do.
func Encode(w *Writer, v any) error {
	switch x := v.(type) {
	case Marshaler:
		x.MarshalWire(w)
	case Enum:
		w.WriteInt32(x.EnumValue())
	case bool:
		w.WriteBool(x)
	case int16:
		w.WriteInt16(x)
	case uint16:
		w.WriteUint16(x)
	case int32:
		w.WriteInt32(x)
	case uint32:
		w.WriteUint32(x)
	case int64:
		w.WriteInt64(x)
	case uint64:
		w.WriteUint64(x)
	case float32:
		w.WriteFloat32(x)
	case string:
		w.WriteString(x)
	case []bool:
		WriteArray(w, x)
	case []int16:
		WriteArray(w, x)
	case []uint16:
		WriteArray(w, x)
	case []int32:
		WriteArray(w, x)
	case []uint32:
		WriteArray(w, x)
	case []int64:
		WriteArray(w, x)
	case []uint64:
		WriteArray(w, x)
	case []float32:
		WriteArray(w, x)
	case []string:
		WriteList(w, x, (*Writer).WriteString)
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
	return nil
}

// Decode reads a value of type T. T may be any type Encode accepts whose
// pointer implements Unmarshaler or SetEnumValue, or a plain scalar type.
func Decode[T any](r *Reader) (T, error) {
	var v T
	var err error
	switch p := any(&v).(type) {
	case Unmarshaler:
		err = p.UnmarshalWire(r)
	case enumTarget:
		var n int32
		if n, err = r.ReadInt32(); err == nil {
			p.SetEnumValue(n)
		}
	case *bool:
		*p, err = r.ReadBool()
	case *int16:
		*p, err = r.ReadInt16()
	case *uint16:
		*p, err = r.ReadUint16()
	case *int32:
		*p, err = r.ReadInt32()
	case *uint32:
		*p, err = r.ReadUint32()
	case *int64:
		*p, err = r.ReadInt64()
	case *uint64:
		*p, err = r.ReadUint64()
	case *float32:
		*p, err = r.ReadFloat32()
	case *string:
		*p, err = r.ReadString()
	case *[]bool:
		*p, err = ReadArray[bool](r)
	case *[]int16:
		*p, err = ReadArray[int16](r)
	case *[]uint16:
		*p, err = ReadArray[uint16](r)
	case *[]int32:
		*p, err = ReadArray[int32](r)
	case *[]uint32:
		*p, err = ReadArray[uint32](r)
	case *[]int64:
		*p, err = ReadArray[int64](r)
	case *[]uint64:
		*p, err = ReadArray[uint64](r)
	case *[]float32:
		*p, err = ReadArray[float32](r)
	case *[]string:
		*p, err = ReadList(r, (*Reader).ReadString)
	default:
		err = fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
	return v, err
}

func writeScalar[T Scalar](w *Writer, v T) {
	switch x := any(v).(type) {
	case bool:
		w.WriteBool(x)
	case int16:
		w.WriteInt16(x)
	case uint16:
		w.WriteUint16(x)
	case int32:
		w.WriteInt32(x)
	case uint32:
		w.WriteUint32(x)
	case int64:
		w.WriteInt64(x)
	case uint64:
		w.WriteUint64(x)
	case float32:
		w.WriteFloat32(x)
	}
}

func readScalar[T Scalar](r *Reader) (T, error) {
	var v T
	var err error
	switch p := any(&v).(type) {
	case *bool:
		*p, err = r.ReadBool()
	case *int16:
		*p, err = r.ReadInt16()
	case *uint16:
		*p, err = r.ReadUint16()
	case *int32:
		*p, err = r.ReadInt32()
	case *uint32:
		*p, err = r.ReadUint32()
	case *int64:
		*p, err = r.ReadInt64()
	case *uint64:
		*p, err = r.ReadUint64()
	case *float32:
		*p, err = r.ReadFloat32()
	}
	return v, err
}

func scalarWidth(v any) int {
	switch v.(type) {
	case bool:
		return 1
	case int16, uint16:
		return 2
	case int32, uint32, float32:
		return 4
	default:
		return 8
	}
}
