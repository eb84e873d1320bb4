package tensor

import "errors"

// Sentinel errors returned by shape and tensor operations. Callers can
// match them with errors.Is; operation errors wrap these with context.
var (
	// ErrShapeMismatch indicates incompatible operand shapes for an
	// elementwise or matrix operation.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrInvalidAxes indicates a permutation whose axes are out of
	// range or duplicated.
	ErrInvalidAxes = errors.New("invalid axes")

	// ErrIncompatibleShape indicates a broadcast-expand rule violation.
	ErrIncompatibleShape = errors.New("incompatible shape")

	// ErrNotContiguous indicates a reshape requested on a
	// non-contiguous tensor.
	ErrNotContiguous = errors.New("tensor not contiguous")

	// ErrDivisionByZero indicates an elementwise division whose divisor
	// contains a zero element.
	ErrDivisionByZero = errors.New("division by zero")

	// ErrGradShapeMismatch indicates a gradient whose element count
	// does not match the tensor it is accumulated into.
	ErrGradShapeMismatch = errors.New("gradient shape mismatch")

	// ErrDTypeMismatch indicates operands with different data types.
	ErrDTypeMismatch = errors.New("dtype mismatch")
)
