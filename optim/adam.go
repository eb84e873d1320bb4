package optim

import (
	"math"

	"github.com/flintml/flint/tensor"
)

// AdamConfig holds the hyperparameters for the Adam optimizer.
// Zero-valued Beta1, Beta2, and Eps fall back to the usual defaults
// (0.9, 0.999, 1e-8).
type AdamConfig struct {
	LR    float64
	Beta1 float64
	Beta2 float64
	Eps   float64
}

func (c AdamConfig) withDefaults() AdamConfig {
	if c.Beta1 == 0 {
		c.Beta1 = 0.9
	}
	if c.Beta2 == 0 {
		c.Beta2 = 0.999
	}
	if c.Eps == 0 {
		c.Eps = 1e-8
	}
	return c
}

// adamState holds the per-parameter moment estimates.
type adamState struct {
	m *tensor.Tensor // first moment
	v *tensor.Tensor // second moment
}

// Adam implements the Adam optimizer with bias-corrected moment
// estimates. The correction is applied both through the step-size
// schedule and directly to the moments.
type Adam struct {
	params []*tensor.Tensor
	cfg    AdamConfig
	state  map[*tensor.Tensor]*adamState
	step   int
}

// NewAdam creates an optimizer over the given parameters. Moment
// buffers are allocated lazily on first use.
func NewAdam(params []*tensor.Tensor, cfg AdamConfig) *Adam {
	return &Adam{
		params: params,
		cfg:    cfg.withDefaults(),
		state:  make(map[*tensor.Tensor]*adamState),
	}
}

// Step applies one Adam update to every parameter carrying a gradient
// and zeroes the gradient afterwards.
func (a *Adam) Step() error {
	a.step++
	for _, p := range a.params {
		g := p.Grad()
		if g == nil {
			continue
		}
		if err := a.update(p, g); err != nil {
			return err
		}
		if err := p.ZeroGrad(); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adam) update(p, g *tensor.Tensor) error {
	st, ok := a.state[p]
	if !ok {
		m, err := tensor.New(p.Shape(), p.DType())
		if err != nil {
			return err
		}
		v, err := tensor.New(p.Shape(), p.DType())
		if err != nil {
			m.Release()
			return err
		}
		st = &adamState{m: m, v: v}
		a.state[p] = st
	}

	cfg := a.cfg

	// m = b1*m + (1-b1)*g
	st.m.ScaleInPlace(cfg.Beta1)
	gScaled, err := g.MulScalar(1 - cfg.Beta1)
	if err != nil {
		return err
	}
	if err := st.m.AddInPlace(gScaled); err != nil {
		gScaled.Release()
		return err
	}
	gScaled.Release()

	// v = b2*v + (1-b2)*g^2
	st.v.ScaleInPlace(cfg.Beta2)
	gsq, err := tensor.Mul(g, g)
	if err != nil {
		return err
	}
	gsq.ScaleInPlace(1 - cfg.Beta2)
	if err := st.v.AddInPlace(gsq); err != nil {
		gsq.Release()
		return err
	}
	gsq.Release()

	bc1 := 1 - math.Pow(cfg.Beta1, float64(a.step))
	bc2 := 1 - math.Pow(cfg.Beta2, float64(a.step))
	lrt := cfg.LR * math.Sqrt(bc2) / bc1

	mHat, err := st.m.MulScalar(1 / bc1)
	if err != nil {
		return err
	}
	defer mHat.Release()

	denom, err := st.v.MulScalar(1 / bc2)
	if err != nil {
		return err
	}
	defer denom.Release()
	denom.ApplyInPlace(func(x float64) float64 { return math.Sqrt(x) + cfg.Eps })

	update, err := tensor.Div(mHat, denom)
	if err != nil {
		return err
	}
	defer update.Release()
	update.ScaleInPlace(lrt)

	return p.SubInPlace(update)
}

// ZeroGrad clears every parameter's gradient.
func (a *Adam) ZeroGrad() error {
	return zeroAll(a.params)
}

// LR returns the configured base learning rate, before bias
// correction.
func (a *Adam) LR() float64 {
	return a.cfg.LR
}
