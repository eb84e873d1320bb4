package tensor

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/flintml/flint/internal/alloc"
)

// Storage is a reference-counted typed buffer holding tensor elements.
// An owning tensor creates a Storage with one reference; every view
// retains it. The buffer is freed when the last reference is released,
// which replaces the caller-discipline ownership flag of a manual
// memory model with a checked one.
type Storage struct {
	data  []byte
	numel int
	dtype DataType
	refs  atomic.Int32
}

// newStorage allocates a zeroed Storage for numel elements of dtype
// with a reference count of 1.
func newStorage(numel int, dtype DataType) (*Storage, error) {
	data, err := alloc.Bytes(numel, dtype.Size())
	if err != nil {
		return nil, err
	}
	s := &Storage{
		data:  data,
		numel: numel,
		dtype: dtype,
	}
	s.refs.Store(1)
	return s, nil
}

// NumElements returns the number of elements the buffer holds.
func (s *Storage) NumElements() int {
	return s.numel
}

// DType returns the buffer's element type.
func (s *Storage) DType() DataType {
	return s.dtype
}

// Retain increments the reference count. Called when a view starts
// sharing the buffer.
func (s *Storage) Retain() {
	s.refs.Add(1)
}

// Release decrements the reference count and drops the buffer when it
// reaches zero.
func (s *Storage) Release() {
	if s.refs.Add(-1) == 0 {
		s.data = nil
	}
}

// Bytes returns the raw byte buffer.
func (s *Storage) Bytes() []byte {
	return s.data
}

// Zero clears every element in the buffer.
func (s *Storage) Zero() {
	clear(s.data)
}

// AsInt32 reinterprets the buffer as []int32.
// Panics if the storage dtype is not Int32.
func (s *Storage) AsInt32() []int32 {
	if s.dtype != Int32 {
		panic(fmt.Sprintf("storage dtype is %s, not int32", s.dtype))
	}
	return unsafe.Slice((*int32)(unsafe.Pointer(&s.data[0])), s.numel)
}

// AsFloat32 reinterprets the buffer as []float32.
// Panics if the storage dtype is not Float32.
func (s *Storage) AsFloat32() []float32 {
	if s.dtype != Float32 {
		panic(fmt.Sprintf("storage dtype is %s, not float32", s.dtype))
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&s.data[0])), s.numel)
}

// AsFloat64 reinterprets the buffer as []float64.
// Panics if the storage dtype is not Float64.
func (s *Storage) AsFloat64() []float64 {
	if s.dtype != Float64 {
		panic(fmt.Sprintf("storage dtype is %s, not float64", s.dtype))
	}
	return unsafe.Slice((*float64)(unsafe.Pointer(&s.data[0])), s.numel)
}
