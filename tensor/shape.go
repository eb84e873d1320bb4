package tensor

import (
	"fmt"
	"strings"
)

// Shape describes how a tensor's logical elements are laid out in its
// physical buffer: dimension sizes plus per-dimension strides, both in
// element units. Shapes are independent value objects; Clone and the
// view operations never share dim/stride slices with their source.
type Shape struct {
	dims   []int
	stride []int
}

// NewShape creates a Shape with canonical row-major strides.
// All dimensions must be positive; a zero-length dims list is a valid
// 0-dimensional scalar shape.
func NewShape(dims ...int) (Shape, error) {
	for i, d := range dims {
		if d <= 0 {
			return Shape{}, fmt.Errorf("%w: dimension %d is %d (must be > 0)", ErrIncompatibleShape, i, d)
		}
	}
	d := make([]int, len(dims))
	copy(d, dims)
	return Shape{dims: d, stride: computeStrides(d)}, nil
}

// MustShape is like NewShape but panics on invalid dimensions.
// Intended for literals in factories and tests.
func MustShape(dims ...int) Shape {
	s, err := NewShape(dims...)
	if err != nil {
		panic(err)
	}
	return s
}

// computeStrides calculates row-major strides:
// stride[last] = 1, stride[i] = stride[i+1] * dims[i+1].
func computeStrides(dims []int) []int {
	strides := make([]int, len(dims))
	if len(dims) == 0 {
		return strides
	}
	strides[len(dims)-1] = 1
	for i := len(dims) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * dims[i+1]
	}
	return strides
}

// Ndim returns the number of dimensions.
func (s Shape) Ndim() int {
	return len(s.dims)
}

// Dim returns the size of the given dimension.
// Panics if the axis is out of range.
func (s Shape) Dim(axis int) int {
	if axis < 0 || axis >= len(s.dims) {
		panic(fmt.Sprintf("shape: axis %d out of range for %d dimensions", axis, len(s.dims)))
	}
	return s.dims[axis]
}

// Dims returns a copy of the dimension sizes.
func (s Shape) Dims() []int {
	d := make([]int, len(s.dims))
	copy(d, s.dims)
	return d
}

// Strides returns a copy of the per-dimension strides, in element units.
func (s Shape) Strides() []int {
	st := make([]int, len(s.stride))
	copy(st, s.stride)
	return st
}

// NumElements returns the total number of logical elements.
// A 0-dimensional scalar has one element.
func (s Shape) NumElements() int {
	n := 1
	for _, d := range s.dims {
		n *= d
	}
	return n
}

// Equal reports whether two shapes have the same dimensions.
// Strides are layout detail and do not participate in equality.
func (s Shape) Equal(other Shape) bool {
	if len(s.dims) != len(other.dims) {
		return false
	}
	for i := range s.dims {
		if s.dims[i] != other.dims[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the shape, strides included.
func (s Shape) Clone() Shape {
	d := make([]int, len(s.dims))
	copy(d, s.dims)
	st := make([]int, len(s.stride))
	copy(st, s.stride)
	return Shape{dims: d, stride: st}
}

// IsContiguous reports whether the strides equal the canonical
// row-major strides implied by the dimensions. Dimensions of size 1 are
// exempt; their stride is unconstrained.
func (s Shape) IsContiguous() bool {
	expected := 1
	for i := len(s.dims) - 1; i >= 0; i-- {
		if s.dims[i] != 1 && s.stride[i] != expected {
			return false
		}
		expected *= s.dims[i]
	}
	return true
}

// Permute reorders both dims and strides by the given axes. axes must
// be a permutation of [0, ndim): every index in range, no duplicates.
// Strides are never recomputed, preserving view semantics.
func (s Shape) Permute(axes []int) (Shape, error) {
	ndim := len(s.dims)
	if len(axes) != ndim {
		return Shape{}, fmt.Errorf("%w: got %d axes for %d dimensions", ErrInvalidAxes, len(axes), ndim)
	}
	seen := make([]bool, ndim)
	for _, ax := range axes {
		if ax < 0 || ax >= ndim {
			return Shape{}, fmt.Errorf("%w: axis %d out of range for %d dimensions", ErrInvalidAxes, ax, ndim)
		}
		if seen[ax] {
			return Shape{}, fmt.Errorf("%w: duplicate axis %d", ErrInvalidAxes, ax)
		}
		seen[ax] = true
	}

	dims := make([]int, ndim)
	stride := make([]int, ndim)
	for i, ax := range axes {
		dims[i] = s.dims[ax]
		stride[i] = s.stride[ax]
	}
	return Shape{dims: dims, stride: stride}, nil
}

// Expand broadcasts the shape to target following the right-aligned
// NumPy rule: the source may not have more dimensions than the target,
// and each aligned source dimension must equal the target dimension or
// be 1. The result takes the target's dims; newly introduced and
// broadcast dimensions get stride 0, so a broadcast position reads the
// same element repeatedly without duplicating data.
func (s Shape) Expand(target Shape) (Shape, error) {
	srcNdim := len(s.dims)
	tgtNdim := len(target.dims)
	if srcNdim > tgtNdim {
		return Shape{}, fmt.Errorf("%w: cannot expand %v to %v with fewer dimensions", ErrIncompatibleShape, s, target)
	}

	for i := 1; i <= srcNdim; i++ {
		srcDim := s.dims[srcNdim-i]
		tgtDim := target.dims[tgtNdim-i]
		if srcDim != tgtDim && srcDim != 1 {
			return Shape{}, fmt.Errorf("%w: cannot expand dimension of size %d to %d", ErrIncompatibleShape, srcDim, tgtDim)
		}
	}

	dims := make([]int, tgtNdim)
	copy(dims, target.dims)

	stride := make([]int, tgtNdim)
	diff := tgtNdim - srcNdim
	for i := 0; i < tgtNdim; i++ {
		srcIdx := i - diff
		if srcIdx < 0 || (s.dims[srcIdx] == 1 && dims[i] != 1) {
			stride[i] = 0
		} else {
			stride[i] = s.stride[srcIdx]
		}
	}
	return Shape{dims: dims, stride: stride}, nil
}

// BroadcastShapes computes the common broadcast shape of a and b under
// the right-aligned size-or-1 rule. It returns the result shape with
// canonical strides and a flag indicating whether either input needs
// broadcasting to reach it.
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	maxLen := max(len(a.dims), len(b.dims))
	dims := make([]int, maxLen)
	needsBroadcast := len(a.dims) != len(b.dims)

	for i := 0; i < maxLen; i++ {
		aDim, bDim := 1, 1
		if idx := len(a.dims) - 1 - i; idx >= 0 {
			aDim = a.dims[idx]
		}
		if idx := len(b.dims) - 1 - i; idx >= 0 {
			bDim = b.dims[idx]
		}

		switch {
		case aDim == bDim:
			dims[maxLen-1-i] = aDim
		case aDim == 1:
			dims[maxLen-1-i] = bDim
			needsBroadcast = true
		case bDim == 1:
			dims[maxLen-1-i] = aDim
			needsBroadcast = true
		default:
			return Shape{}, false, fmt.Errorf("%w: shapes %v and %v are not broadcastable (dimension %d: %d vs %d)",
				ErrIncompatibleShape, a, b, maxLen-1-i, aDim, bDim)
		}
	}

	return Shape{dims: dims, stride: computeStrides(dims)}, needsBroadcast, nil
}

// offsetOf translates logical coordinates into a physical element
// offset via the strides. Coordinates must already be bounds-checked.
func (s Shape) offsetOf(coords []int) int {
	offset := 0
	for i, c := range coords {
		offset += c * s.stride[i]
	}
	return offset
}

// String returns a representation such as "Shape[2, 3]".
func (s Shape) String() string {
	var b strings.Builder
	b.WriteString("Shape[")
	for i, d := range s.dims {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%d", d)
	}
	b.WriteString("]")
	return b.String()
}
