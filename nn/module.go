// Package nn provides neural network building blocks on top of the
// tensor package. Layers implement their own backward rules directly
// instead of recording a graph, caching whatever forward state the
// gradient computation needs.
package nn

import (
	"github.com/flintml/flint/tensor"
)

// Module is a network component with explicit forward and backward
// passes.
//
// Backward takes the gradient of the loss with respect to the module's
// output and returns the gradient with respect to its input, while
// accumulating parameter gradients internally. A module's Forward must
// have run before its Backward; layers cache forward state and the
// caller keeps input tensors alive until the backward pass completes.
type Module interface {
	Forward(x *tensor.Tensor) (*tensor.Tensor, error)
	Backward(grad *tensor.Tensor) (*tensor.Tensor, error)
	Parameters() []*tensor.Tensor
	ZeroGrad() error
}
