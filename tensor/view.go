package tensor

import (
	"fmt"

	"github.com/flintml/flint/internal/parallel"
)

// Reshape returns a view of the tensor under new dimensions. The
// element count must match and the tensor must be contiguous; a
// permuted or expanded tensor needs Contiguous first.
func (t *Tensor) Reshape(dims ...int) (*Tensor, error) {
	shape, err := NewShape(dims...)
	if err != nil {
		return nil, err
	}
	if shape.NumElements() != t.NumElements() {
		return nil, fmt.Errorf("%w: cannot reshape %v to %v (%d vs %d elements)",
			ErrShapeMismatch, t.shape, shape, t.NumElements(), shape.NumElements())
	}
	if !t.IsContiguous() {
		return nil, fmt.Errorf("%w: reshape requires a contiguous tensor", ErrNotContiguous)
	}
	return newView(t, shape), nil
}

// Permute returns a view with dimensions reordered by axes, a
// generalized transpose. No data moves; only strides are reordered.
func (t *Tensor) Permute(axes ...int) (*Tensor, error) {
	shape, err := t.shape.Permute(axes)
	if err != nil {
		return nil, err
	}
	return newView(t, shape), nil
}

// Transpose returns a view with the last two dimensions swapped.
// The tensor must have at least two dimensions.
func (t *Tensor) Transpose() (*Tensor, error) {
	ndim := t.Ndim()
	if ndim < 2 {
		return nil, fmt.Errorf("%w: transpose requires at least 2 dimensions, got %d", ErrInvalidAxes, ndim)
	}
	axes := make([]int, ndim)
	for i := range axes {
		axes[i] = i
	}
	axes[ndim-2], axes[ndim-1] = axes[ndim-1], axes[ndim-2]
	return t.Permute(axes...)
}

// Expand returns a broadcast view of the tensor with the given target
// dimensions. Broadcast positions read the same element repeatedly;
// the view must not be written through.
func (t *Tensor) Expand(dims ...int) (*Tensor, error) {
	target, err := NewShape(dims...)
	if err != nil {
		return nil, err
	}
	shape, err := t.shape.Expand(target)
	if err != nil {
		return nil, err
	}
	return newView(t, shape), nil
}

// Contiguous returns a tensor with canonical row-major layout and its
// own storage. An already contiguous tensor is deep-copied; a permuted
// or expanded tensor is materialized in logical order. The result
// never aliases t.
func (t *Tensor) Contiguous() (*Tensor, error) {
	if t.IsContiguous() {
		out, err := t.Clone()
		if err != nil {
			return nil, err
		}
		out.requiresGrad = t.requiresGrad
		out.isLeaf = t.isLeaf
		return out, nil
	}

	dims := t.shape.Dims()
	out, err := New(MustShape(dims...), t.dtype)
	if err != nil {
		return nil, err
	}
	out.requiresGrad = t.requiresGrad
	out.isLeaf = t.isLeaf

	switch t.dtype {
	case Int32:
		gather(t.storage.AsInt32(), out.storage.AsInt32(), t.shape)
	case Float32:
		gather(t.storage.AsFloat32(), out.storage.AsFloat32(), t.shape)
	case Float64:
		gather(t.storage.AsFloat64(), out.storage.AsFloat64(), t.shape)
	}
	return out, nil
}

// gather walks src's logical elements in row-major order and writes
// them densely into dst. Every position writes its own slot, so the
// walk parallelizes per element.
func gather[T DType](src, dst []T, shape Shape) {
	dims := shape.dims
	counts := computeStrides(dims)
	parallel.For(shape.NumElements(), func(i int) {
		rem := i
		off := 0
		for d := 0; d < len(dims); d++ {
			c := rem / counts[d]
			rem -= c * counts[d]
			off += c * shape.stride[d]
		}
		dst[i] = src[off]
	}, computeConfig)
}
