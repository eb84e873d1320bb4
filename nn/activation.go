package nn

import (
	"fmt"
	"math"

	"github.com/flintml/flint/tensor"
)

// ReLU is the rectified linear activation, max(0, x).
type ReLU struct {
	input *tensor.Tensor
}

// NewReLU creates a ReLU activation.
func NewReLU() *ReLU { return &ReLU{} }

// Forward clamps negative elements to zero.
func (r *ReLU) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	out, err := x.Apply(func(v float64) float64 {
		if v > 0 {
			return v
		}
		return 0
	})
	if err != nil {
		return nil, err
	}
	r.input = x
	return out, nil
}

// Backward passes gradients through where the input was positive.
func (r *ReLU) Backward(grad *tensor.Tensor) (*tensor.Tensor, error) {
	if r.input == nil {
		return nil, fmt.Errorf("relu: backward before forward")
	}
	mask, err := r.input.Apply(func(v float64) float64 {
		if v > 0 {
			return 1
		}
		return 0
	})
	if err != nil {
		return nil, err
	}
	defer mask.Release()
	return tensor.Mul(grad, mask)
}

// Parameters returns nil; the activation is stateless.
func (r *ReLU) Parameters() []*tensor.Tensor { return nil }

// ZeroGrad is a no-op.
func (r *ReLU) ZeroGrad() error { return nil }

// Sigmoid is the logistic activation, 1 / (1 + e^-x).
type Sigmoid struct {
	output *tensor.Tensor
}

// NewSigmoid creates a Sigmoid activation.
func NewSigmoid() *Sigmoid { return &Sigmoid{} }

// Forward applies the logistic function and caches the output, which
// the derivative is expressed in terms of.
func (s *Sigmoid) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	out, err := x.Apply(func(v float64) float64 {
		return 1 / (1 + math.Exp(-v))
	})
	if err != nil {
		return nil, err
	}
	s.output = out
	return out, nil
}

// Backward computes g * y * (1 - y) from the cached output.
func (s *Sigmoid) Backward(grad *tensor.Tensor) (*tensor.Tensor, error) {
	if s.output == nil {
		return nil, fmt.Errorf("sigmoid: backward before forward")
	}
	deriv, err := s.output.Apply(func(y float64) float64 {
		return y * (1 - y)
	})
	if err != nil {
		return nil, err
	}
	defer deriv.Release()
	return tensor.Mul(grad, deriv)
}

// Parameters returns nil; the activation is stateless.
func (s *Sigmoid) Parameters() []*tensor.Tensor { return nil }

// ZeroGrad is a no-op.
func (s *Sigmoid) ZeroGrad() error { return nil }

// Tanh is the hyperbolic tangent activation.
type Tanh struct {
	output *tensor.Tensor
}

// NewTanh creates a Tanh activation.
func NewTanh() *Tanh { return &Tanh{} }

// Forward applies tanh and caches the output.
func (t *Tanh) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	out, err := x.Apply(math.Tanh)
	if err != nil {
		return nil, err
	}
	t.output = out
	return out, nil
}

// Backward computes g * (1 - y^2) from the cached output.
func (t *Tanh) Backward(grad *tensor.Tensor) (*tensor.Tensor, error) {
	if t.output == nil {
		return nil, fmt.Errorf("tanh: backward before forward")
	}
	deriv, err := t.output.Apply(func(y float64) float64 {
		return 1 - y*y
	})
	if err != nil {
		return nil, err
	}
	defer deriv.Release()
	return tensor.Mul(grad, deriv)
}

// Parameters returns nil; the activation is stateless.
func (t *Tanh) Parameters() []*tensor.Tensor { return nil }

// ZeroGrad is a no-op.
func (t *Tanh) ZeroGrad() error { return nil }
