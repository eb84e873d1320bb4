package autograd

import (
	"github.com/flintml/flint/tensor"
)

// Add computes a + b with broadcasting, recording the operation when
// the context allows and either operand requires gradients.
func Add(ctx *Context, a, b *tensor.Tensor) (*tensor.Tensor, error) {
	out, err := tensor.Add(a, b)
	if err != nil {
		return nil, err
	}
	record(ctx, out, tensor.OpAdd, a, b)
	return out, nil
}

// Sub computes a - b with broadcasting.
func Sub(ctx *Context, a, b *tensor.Tensor) (*tensor.Tensor, error) {
	out, err := tensor.Sub(a, b)
	if err != nil {
		return nil, err
	}
	record(ctx, out, tensor.OpSub, a, b)
	return out, nil
}

// Mul computes the elementwise product of a and b with broadcasting.
func Mul(ctx *Context, a, b *tensor.Tensor) (*tensor.Tensor, error) {
	out, err := tensor.Mul(a, b)
	if err != nil {
		return nil, err
	}
	record(ctx, out, tensor.OpMul, a, b)
	return out, nil
}

// Div computes the elementwise quotient of a and b with broadcasting.
func Div(ctx *Context, a, b *tensor.Tensor) (*tensor.Tensor, error) {
	out, err := tensor.Div(a, b)
	if err != nil {
		return nil, err
	}
	record(ctx, out, tensor.OpDiv, a, b)
	return out, nil
}

// MatMul computes the matrix product of two 2-dimensional tensors.
func MatMul(ctx *Context, a, b *tensor.Tensor) (*tensor.Tensor, error) {
	out, err := tensor.MatMul(a, b)
	if err != nil {
		return nil, err
	}
	record(ctx, out, tensor.OpMatMul, a, b)
	return out, nil
}

// record stamps out as op's result if recording is enabled and at
// least one parent participates in gradient computation.
func record(ctx *Context, out *tensor.Tensor, op tensor.Op, parents ...*tensor.Tensor) {
	if !ctx.GradEnabled() {
		return
	}
	for _, p := range parents {
		if p.RequiresGrad() {
			out.RecordOp(op, parents...)
			return
		}
	}
}
