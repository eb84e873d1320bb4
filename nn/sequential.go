package nn

import (
	"fmt"

	"github.com/flintml/flint/tensor"
)

// Sequential chains modules, feeding each one's output into the next.
type Sequential struct {
	modules []Module
}

// NewSequential creates a container over the given modules.
func NewSequential(modules ...Module) *Sequential {
	return &Sequential{modules: modules}
}

// Add appends a module to the chain.
func (s *Sequential) Add(m Module) {
	s.modules = append(s.modules, m)
}

// Modules returns the chain in forward order.
func (s *Sequential) Modules() []Module {
	return s.modules
}

// Forward runs the chain front to back. Intermediate activations stay
// alive; modules cache them for the backward pass.
func (s *Sequential) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	cur := x
	for i, m := range s.modules {
		next, err := m.Forward(cur)
		if err != nil {
			return nil, fmt.Errorf("sequential: module %d: %w", i, err)
		}
		cur = next
	}
	return cur, nil
}

// Backward runs the chain back to front, threading each module's input
// gradient into its predecessor.
func (s *Sequential) Backward(grad *tensor.Tensor) (*tensor.Tensor, error) {
	cur := grad
	for i := len(s.modules) - 1; i >= 0; i-- {
		next, err := s.modules[i].Backward(cur)
		if err != nil {
			if cur != grad {
				cur.Release()
			}
			return nil, fmt.Errorf("sequential: module %d: %w", i, err)
		}
		if cur != grad {
			cur.Release()
		}
		cur = next
	}
	return cur, nil
}

// Parameters returns the parameters of every module in forward order.
func (s *Sequential) Parameters() []*tensor.Tensor {
	var params []*tensor.Tensor
	for _, m := range s.modules {
		params = append(params, m.Parameters()...)
	}
	return params
}

// ZeroGrad clears every module's parameter gradients.
func (s *Sequential) ZeroGrad() error {
	for _, m := range s.modules {
		if err := m.ZeroGrad(); err != nil {
			return err
		}
	}
	return nil
}
