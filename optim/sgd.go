package optim

import (
	"github.com/flintml/flint/tensor"
)

// SGDConfig holds the hyperparameters for stochastic gradient descent.
type SGDConfig struct {
	LR          float64 // Learning rate.
	Momentum    float64 // Velocity decay factor; zero disables momentum.
	WeightDecay float64 // L2 penalty added to gradients before the update.
}

// SGD is stochastic gradient descent with optional momentum and weight
// decay.
type SGD struct {
	params   []*tensor.Tensor
	cfg      SGDConfig
	velocity map[*tensor.Tensor]*tensor.Tensor
}

// NewSGD creates an optimizer over the given parameters. Momentum
// buffers are allocated lazily on first use.
func NewSGD(params []*tensor.Tensor, cfg SGDConfig) *SGD {
	return &SGD{
		params:   params,
		cfg:      cfg,
		velocity: make(map[*tensor.Tensor]*tensor.Tensor),
	}
}

// Step applies one update to every parameter carrying a gradient and
// zeroes the gradient afterwards.
func (s *SGD) Step() error {
	for _, p := range s.params {
		g := p.Grad()
		if g == nil {
			continue
		}
		if err := s.update(p, g); err != nil {
			return err
		}
		if err := p.ZeroGrad(); err != nil {
			return err
		}
	}
	return nil
}

func (s *SGD) update(p, g *tensor.Tensor) error {
	if s.cfg.WeightDecay != 0 {
		decay, err := p.MulScalar(s.cfg.WeightDecay)
		if err != nil {
			return err
		}
		if err := g.AddInPlace(decay); err != nil {
			decay.Release()
			return err
		}
		decay.Release()
	}

	step, err := g.MulScalar(s.cfg.LR)
	if err != nil {
		return err
	}
	defer step.Release()

	if s.cfg.Momentum == 0 {
		return p.SubInPlace(step)
	}

	v, ok := s.velocity[p]
	if !ok {
		v, err = tensor.New(p.Shape(), p.DType())
		if err != nil {
			return err
		}
		s.velocity[p] = v
	}
	v.ScaleInPlace(s.cfg.Momentum)
	if err := v.SubInPlace(step); err != nil {
		return err
	}
	return p.AddInPlace(v)
}

// ZeroGrad clears every parameter's gradient.
func (s *SGD) ZeroGrad() error {
	return zeroAll(s.params)
}

// LR returns the configured learning rate.
func (s *SGD) LR() float64 {
	return s.cfg.LR
}
