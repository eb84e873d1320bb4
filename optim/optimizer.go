// Package optim implements gradient descent optimizers operating on
// parameter tensors with accumulated gradients.
package optim

import (
	"github.com/flintml/flint/tensor"
)

// Optimizer updates parameters from their accumulated gradients.
// Step consumes the gradients of the current iteration; implementations
// zero each parameter's gradient after applying it.
type Optimizer interface {
	Step() error
	ZeroGrad() error
	LR() float64
}

// zeroAll clears the gradients of every parameter.
func zeroAll(params []*tensor.Tensor) error {
	for _, p := range params {
		if err := p.ZeroGrad(); err != nil {
			return err
		}
	}
	return nil
}
