package tensor

import (
	"fmt"
)

// Add returns the elementwise sum of a and b with broadcasting.
func Add(a, b *Tensor) (*Tensor, error) {
	return elementwiseOp(a, b, OpAdd)
}

// Sub returns the elementwise difference of a and b with broadcasting.
func Sub(a, b *Tensor) (*Tensor, error) {
	return elementwiseOp(a, b, OpSub)
}

// Mul returns the elementwise (Hadamard) product of a and b with
// broadcasting.
func Mul(a, b *Tensor) (*Tensor, error) {
	return elementwiseOp(a, b, OpMul)
}

// Div returns the elementwise quotient of a and b with broadcasting.
// Fails with ErrDivisionByZero if any divisor element is zero.
func Div(a, b *Tensor) (*Tensor, error) {
	if divisorHasZero(b, b.shape) {
		return nil, fmt.Errorf("div: %w", ErrDivisionByZero)
	}
	return elementwiseOp(a, b, OpDiv)
}

// elementwiseOp allocates the broadcast result tensor and dispatches
// the dtype-specialized kernel.
func elementwiseOp(a, b *Tensor, op Op) (*Tensor, error) {
	if a.dtype != b.dtype {
		return nil, fmt.Errorf("%s: %w: %s vs %s", op, ErrDTypeMismatch, a.dtype, b.dtype)
	}

	result, _, err := BroadcastShapes(a.shape, b.shape)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	aSh, err := a.shape.Expand(result)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	bSh, err := b.shape.Expand(result)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out, err := New(result, a.dtype)
	if err != nil {
		return nil, err
	}
	dispatchBinary(a, b, out, aSh, bSh, out.shape, op)
	return out, nil
}

// dispatchBinary selects the typed kernel for the operand dtype.
func dispatchBinary(a, b, dst *Tensor, aSh, bSh, dstSh Shape, op Op) {
	switch a.dtype {
	case Int32:
		ewKernel(a.AsInt32(), b.AsInt32(), dst.AsInt32(), aSh, bSh, dstSh, opFunc[int32](op))
	case Float32:
		ewKernel(a.AsFloat32(), b.AsFloat32(), dst.AsFloat32(), aSh, bSh, dstSh, opFunc[float32](op))
	case Float64:
		ewKernel(a.AsFloat64(), b.AsFloat64(), dst.AsFloat64(), aSh, bSh, dstSh, opFunc[float64](op))
	}
}

// divisorHasZero scans the logical elements of b under the given view
// shape.
func divisorHasZero(b *Tensor, sh Shape) bool {
	switch b.dtype {
	case Int32:
		return hasZero(b.AsInt32(), sh)
	case Float32:
		return hasZero(b.AsFloat32(), sh)
	case Float64:
		return hasZero(b.AsFloat64(), sh)
	default:
		return false
	}
}

// applyInPlace folds other into t elementwise. other must broadcast to
// t's dimensions; the result lands in t's storage.
func (t *Tensor) applyInPlace(other *Tensor, op Op) error {
	if t.dtype != other.dtype {
		return fmt.Errorf("%s: %w: %s vs %s", op, ErrDTypeMismatch, t.dtype, other.dtype)
	}
	oSh, err := other.shape.Expand(t.shape)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if op == OpDiv && divisorHasZero(other, other.shape) {
		return fmt.Errorf("%s: %w", op, ErrDivisionByZero)
	}
	dispatchBinary(t, other, t, t.shape, oSh, t.shape, op)
	return nil
}

// AddInPlace adds other into t.
func (t *Tensor) AddInPlace(other *Tensor) error {
	return t.applyInPlace(other, OpAdd)
}

// SubInPlace subtracts other from t.
func (t *Tensor) SubInPlace(other *Tensor) error {
	return t.applyInPlace(other, OpSub)
}

// MulInPlace multiplies t by other elementwise.
func (t *Tensor) MulInPlace(other *Tensor) error {
	return t.applyInPlace(other, OpMul)
}

// DivInPlace divides t by other elementwise.
func (t *Tensor) DivInPlace(other *Tensor) error {
	return t.applyInPlace(other, OpDiv)
}

// AddScalar returns t with v added to every element.
func (t *Tensor) AddScalar(v float64) (*Tensor, error) {
	return t.applyScalar(v, OpAdd)
}

// MulScalar returns t scaled elementwise by v.
func (t *Tensor) MulScalar(v float64) (*Tensor, error) {
	return t.applyScalar(v, OpMul)
}

func (t *Tensor) applyScalar(v float64, op Op) (*Tensor, error) {
	out, err := New(MustShape(t.shape.Dims()...), t.dtype)
	if err != nil {
		return nil, err
	}
	switch t.dtype {
	case Int32:
		f := opFunc[int32](op)
		s := int32(v)
		unaryKernel(t.AsInt32(), out.AsInt32(), t.shape, out.shape, func(x int32) int32 { return f(x, s) })
	case Float32:
		f := opFunc[float32](op)
		s := float32(v)
		unaryKernel(t.AsFloat32(), out.AsFloat32(), t.shape, out.shape, func(x float32) float32 { return f(x, s) })
	case Float64:
		f := opFunc[float64](op)
		unaryKernel(t.AsFloat64(), out.AsFloat64(), t.shape, out.shape, func(x float64) float64 { return f(x, v) })
	}
	return out, nil
}

// ScaleInPlace multiplies every element of t by v.
func (t *Tensor) ScaleInPlace(v float64) {
	switch t.dtype {
	case Int32:
		s := int32(v)
		unaryKernel(t.AsInt32(), t.AsInt32(), t.shape, t.shape, func(x int32) int32 { return x * s })
	case Float32:
		s := float32(v)
		unaryKernel(t.AsFloat32(), t.AsFloat32(), t.shape, t.shape, func(x float32) float32 { return x * s })
	case Float64:
		unaryKernel(t.AsFloat64(), t.AsFloat64(), t.shape, t.shape, func(x float64) float64 { return x * v })
	}
}

// Apply returns a new tensor with f applied to every element. Values
// pass through float64 and convert back to the tensor's dtype.
func (t *Tensor) Apply(f func(float64) float64) (*Tensor, error) {
	out, err := New(MustShape(t.shape.Dims()...), t.dtype)
	if err != nil {
		return nil, err
	}
	switch t.dtype {
	case Int32:
		unaryKernel(t.AsInt32(), out.AsInt32(), t.shape, out.shape, func(x int32) int32 { return int32(f(float64(x))) })
	case Float32:
		unaryKernel(t.AsFloat32(), out.AsFloat32(), t.shape, out.shape, func(x float32) float32 { return float32(f(float64(x))) })
	case Float64:
		unaryKernel(t.AsFloat64(), out.AsFloat64(), t.shape, out.shape, f)
	}
	return out, nil
}

// ApplyInPlace applies f to every element of t.
func (t *Tensor) ApplyInPlace(f func(float64) float64) {
	switch t.dtype {
	case Int32:
		unaryKernel(t.AsInt32(), t.AsInt32(), t.shape, t.shape, func(x int32) int32 { return int32(f(float64(x))) })
	case Float32:
		unaryKernel(t.AsFloat32(), t.AsFloat32(), t.shape, t.shape, func(x float32) float32 { return float32(f(float64(x))) })
	case Float64:
		unaryKernel(t.AsFloat64(), t.AsFloat64(), t.shape, t.shape, f)
	}
}

// MatMul returns the matrix product of two 2-dimensional tensors with
// shapes [m, k] and [k, n]. Non-contiguous operands are materialized
// first.
func MatMul(a, b *Tensor) (*Tensor, error) {
	if a.dtype != b.dtype {
		return nil, fmt.Errorf("matmul: %w: %s vs %s", ErrDTypeMismatch, a.dtype, b.dtype)
	}
	if a.Ndim() != 2 || b.Ndim() != 2 {
		return nil, fmt.Errorf("matmul: %w: requires 2-dimensional operands, got %v and %v",
			ErrShapeMismatch, a.shape, b.shape)
	}
	m, k := a.Dim(0), a.Dim(1)
	if b.Dim(0) != k {
		return nil, fmt.Errorf("matmul: %w: inner dimensions disagree (%v x %v)",
			ErrShapeMismatch, a.shape, b.shape)
	}
	n := b.Dim(1)

	ac, acOwned, err := denseOperand(a)
	if err != nil {
		return nil, err
	}
	if acOwned {
		defer ac.Release()
	}
	bc, bcOwned, err := denseOperand(b)
	if err != nil {
		return nil, err
	}
	if bcOwned {
		defer bc.Release()
	}

	out, err := New(MustShape(m, n), a.dtype)
	if err != nil {
		return nil, err
	}
	switch a.dtype {
	case Int32:
		matmulKernel(ac.AsInt32(), bc.AsInt32(), out.AsInt32(), m, k, n)
	case Float32:
		matmulKernel(ac.AsFloat32(), bc.AsFloat32(), out.AsFloat32(), m, k, n)
	case Float64:
		matmulKernel(ac.AsFloat64(), bc.AsFloat64(), out.AsFloat64(), m, k, n)
	}
	return out, nil
}

// denseOperand returns t itself when its layout is already row-major,
// or a materialized copy the caller must release.
func denseOperand(t *Tensor) (*Tensor, bool, error) {
	if t.IsContiguous() {
		return t, false, nil
	}
	c, err := t.Contiguous()
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

// Sum returns the sum of all logical elements as a float64.
func (t *Tensor) Sum() float64 {
	n := t.NumElements()
	coords := make([]int, t.Ndim())
	total := 0.0
	for i := 0; i < n; i++ {
		offset := t.shape.offsetOf(coords)
		switch t.dtype {
		case Int32:
			total += float64(t.storage.AsInt32()[offset])
		case Float32:
			total += float64(t.storage.AsFloat32()[offset])
		case Float64:
			total += t.storage.AsFloat64()[offset]
		}
		advance(coords, t.shape.dims)
	}
	return total
}

// Mean returns the arithmetic mean of all logical elements.
func (t *Tensor) Mean() float64 {
	return t.Sum() / float64(t.NumElements())
}
