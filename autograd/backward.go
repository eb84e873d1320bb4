package autograd

import (
	"errors"
	"fmt"

	"github.com/flintml/flint/tensor"
)

var (
	// ErrNotDifferentiable indicates a backward pass requested on a
	// tensor that does not participate in gradient computation.
	ErrNotDifferentiable = errors.New("tensor does not require gradients")

	// ErrSeedRequired indicates a backward pass on a multi-element
	// tensor without an explicit gradient seed.
	ErrSeedRequired = errors.New("gradient seed required for multi-element output")
)

// Options tunes the backward pass.
type Options struct {
	// RetainGraph keeps intermediate gradients alive after they have
	// been propagated, allowing the graph to be walked again. By
	// default non-leaf gradients are released as soon as their parents
	// have consumed them.
	RetainGraph bool
}

// Backward runs reverse-mode differentiation from t, accumulating
// gradients into every ancestor that requires them.
//
// seed is dL/dt, the gradient flowing into t; its dimensions must
// match t's. A nil seed is accepted only for one-element tensors,
// where it defaults to one.
func Backward(ctx *Context, t, seed *tensor.Tensor) error {
	return BackwardWithOptions(ctx, t, seed, Options{})
}

// BackwardWithOptions is Backward with explicit Options.
func BackwardWithOptions(ctx *Context, t, seed *tensor.Tensor, opts Options) error {
	if !t.RequiresGrad() {
		return ErrNotDifferentiable
	}
	if !t.DType().IsFloat() {
		return fmt.Errorf("%w: dtype %s", ErrNotDifferentiable, t.DType())
	}

	ownedSeed := false
	if seed == nil {
		if t.NumElements() != 1 {
			return fmt.Errorf("%w: output has shape %v", ErrSeedRequired, t.Shape())
		}
		s, err := tensor.New(t.Shape(), t.DType())
		if err != nil {
			return err
		}
		s.Fill(1)
		seed = s
		ownedSeed = true
	} else {
		if !seed.Shape().Equal(t.Shape()) {
			return fmt.Errorf("%w: seed %v for output %v", tensor.ErrGradShapeMismatch, seed.Shape(), t.Shape())
		}
		if seed.DType() != t.DType() {
			return fmt.Errorf("%w: seed dtype %s for output dtype %s", tensor.ErrDTypeMismatch, seed.DType(), t.DType())
		}
	}
	if ownedSeed {
		defer seed.Release()
	}

	order := topoSort(t)

	// Stale non-leaf gradients from an earlier retained pass would be
	// propagated again; every pass starts from a clean interior.
	for _, node := range order {
		if !node.IsLeaf() {
			node.ClearGrad()
		}
	}

	if err := accumulate(t, seed); err != nil {
		return err
	}
	for i := len(order) - 1; i >= 0; i-- {
		node := order[i]
		if node.Op() == tensor.OpNone || node.Grad() == nil {
			continue
		}
		if err := propagate(node); err != nil {
			return err
		}
		if !opts.RetainGraph && !node.IsLeaf() {
			node.ClearGrad()
		}
	}
	return nil
}

// topoSort returns the ancestors of t in topological order, t last.
// Depth-first post-order over parent links; identity-keyed visitation
// handles diamonds so shared subexpressions appear once.
func topoSort(t *tensor.Tensor) []*tensor.Tensor {
	var order []*tensor.Tensor
	visited := make(map[*tensor.Tensor]bool)

	var visit func(n *tensor.Tensor)
	visit = func(n *tensor.Tensor) {
		if visited[n] {
			return
		}
		visited[n] = true
		for _, p := range n.Parents() {
			visit(p)
		}
		order = append(order, n)
	}
	visit(t)
	return order
}

// propagate computes the adjoints of node's parents from node's
// gradient and accumulates them.
func propagate(node *tensor.Tensor) error {
	g := node.Grad()
	parents := node.Parents()
	a, b := parents[0], parents[1]

	switch node.Op() {
	case tensor.OpAdd:
		if err := accumulateReduced(a, g); err != nil {
			return err
		}
		return accumulateReduced(b, g)

	case tensor.OpSub:
		if err := accumulateReduced(a, g); err != nil {
			return err
		}
		if !b.RequiresGrad() {
			return nil
		}
		neg, err := g.MulScalar(-1)
		if err != nil {
			return err
		}
		defer neg.Release()
		return accumulateReduced(b, neg)

	case tensor.OpMul:
		if a.RequiresGrad() {
			da, err := tensor.Mul(g, b)
			if err != nil {
				return err
			}
			if err := accumulateReduced(a, da); err != nil {
				da.Release()
				return err
			}
			da.Release()
		}
		if b.RequiresGrad() {
			db, err := tensor.Mul(g, a)
			if err != nil {
				return err
			}
			defer db.Release()
			return accumulateReduced(b, db)
		}
		return nil

	case tensor.OpDiv:
		if a.RequiresGrad() {
			da, err := tensor.Div(g, b)
			if err != nil {
				return err
			}
			if err := accumulateReduced(a, da); err != nil {
				da.Release()
				return err
			}
			da.Release()
		}
		if b.RequiresGrad() {
			num, err := tensor.Mul(g, a)
			if err != nil {
				return err
			}
			defer num.Release()
			bsq, err := tensor.Mul(b, b)
			if err != nil {
				return err
			}
			defer bsq.Release()
			db, err := tensor.Div(num, bsq)
			if err != nil {
				return err
			}
			defer db.Release()
			db.ScaleInPlace(-1)
			return accumulateReduced(b, db)
		}
		return nil

	case tensor.OpMatMul:
		if a.RequiresGrad() {
			bT, err := b.Transpose()
			if err != nil {
				return err
			}
			da, err := tensor.MatMul(g, bT)
			bT.Release()
			if err != nil {
				return err
			}
			if err := accumulate(a, da); err != nil {
				da.Release()
				return err
			}
			da.Release()
		}
		if b.RequiresGrad() {
			aT, err := a.Transpose()
			if err != nil {
				return err
			}
			db, err := tensor.MatMul(aT, g)
			aT.Release()
			if err != nil {
				return err
			}
			defer db.Release()
			return accumulate(b, db)
		}
		return nil

	default:
		return fmt.Errorf("no backward rule for operation %s", node.Op())
	}
}

// accumulateReduced folds a gradient contribution into p, first
// summing over any dimensions that were broadcast in the forward pass.
func accumulateReduced(p, contrib *tensor.Tensor) error {
	if !p.RequiresGrad() {
		return nil
	}
	if contrib.Shape().Equal(p.Shape()) {
		return accumulate(p, contrib)
	}
	reduced, err := reduceTo(contrib, p.Shape())
	if err != nil {
		return err
	}
	defer reduced.Release()
	return accumulate(p, reduced)
}

// accumulate adds contrib elementwise into p's gradient, allocating it
// on first use.
func accumulate(p, contrib *tensor.Tensor) error {
	if !p.RequiresGrad() {
		return nil
	}
	if p.Grad() == nil {
		if err := p.ZeroGrad(); err != nil {
			return err
		}
	}
	if contrib.NumElements() != p.NumElements() {
		return fmt.Errorf("%w: %v into %v", tensor.ErrGradShapeMismatch, contrib.Shape(), p.Shape())
	}
	return p.Grad().AddInPlace(contrib)
}

// reduceTo sums g over the dimensions broadcast relative to target,
// right-aligned. The result has target's dimensions.
func reduceTo(g *tensor.Tensor, target tensor.Shape) (*tensor.Tensor, error) {
	out, err := tensor.New(tensor.MustShape(target.Dims()...), g.DType())
	if err != nil {
		return nil, err
	}

	gDims := g.Shape().Dims()
	tDims := target.Dims()
	diff := len(gDims) - len(tDims)

	coords := make([]int, len(gDims))
	tCoords := make([]int, len(tDims))
	n := g.NumElements()
	for i := 0; i < n; i++ {
		for d := range tDims {
			if tDims[d] == 1 {
				tCoords[d] = 0
			} else {
				tCoords[d] = coords[d+diff]
			}
		}
		out.Set(out.At(tCoords...)+g.At(coords...), tCoords...)

		for d := len(gDims) - 1; d >= 0; d-- {
			coords[d]++
			if coords[d] < gDims[d] {
				break
			}
			coords[d] = 0
		}
	}
	return out, nil
}
