package nn

import (
	"fmt"

	"github.com/flintml/flint/tensor"
)

// Linear is a fully connected layer computing y = x W^T + b for input
// batches of shape [batch, in]. The weight is stored [out, in] and the
// bias [out].
type Linear struct {
	weight *tensor.Tensor
	bias   *tensor.Tensor

	input *tensor.Tensor // cached forward input
}

// NewLinear creates a layer with Xavier-initialized weights and zero
// bias.
func NewLinear(inFeatures, outFeatures int, dtype tensor.DataType) (*Linear, error) {
	return NewLinearWithInit(inFeatures, outFeatures, dtype, XavierUniform)
}

// NewLinearWithInit creates a layer using the given weight
// initialization scheme. HeNormal suits layers feeding rectifier
// activations.
func NewLinearWithInit(inFeatures, outFeatures int, dtype tensor.DataType, scheme Init) (*Linear, error) {
	if !dtype.IsFloat() {
		return nil, fmt.Errorf("linear: parameters need a floating-point dtype, got %s", dtype)
	}
	w, err := tensor.New(tensor.MustShape(outFeatures, inFeatures), dtype)
	if err != nil {
		return nil, err
	}
	initialize(w, scheme, inFeatures, outFeatures)
	w.RequireGrad()

	b, err := tensor.New(tensor.MustShape(outFeatures), dtype)
	if err != nil {
		w.Release()
		return nil, err
	}
	b.RequireGrad()

	return &Linear{weight: w, bias: b}, nil
}

// Weight returns the [out, in] weight parameter.
func (l *Linear) Weight() *tensor.Tensor { return l.weight }

// Bias returns the [out] bias parameter.
func (l *Linear) Bias() *tensor.Tensor { return l.bias }

// InFeatures returns the layer's input width.
func (l *Linear) InFeatures() int { return l.weight.Dim(1) }

// OutFeatures returns the layer's output width.
func (l *Linear) OutFeatures() int { return l.weight.Dim(0) }

// Forward computes x W^T + b and caches x for the backward pass.
func (l *Linear) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	wT, err := l.weight.Transpose()
	if err != nil {
		return nil, err
	}
	defer wT.Release()

	y, err := tensor.MatMul(x, wT)
	if err != nil {
		return nil, err
	}
	if err := y.AddInPlace(l.bias); err != nil {
		y.Release()
		return nil, err
	}

	l.input = x
	return y, nil
}

// Backward accumulates dW = g^T x and db (column sums of g) into the
// parameter gradients and returns dx = g W.
func (l *Linear) Backward(grad *tensor.Tensor) (*tensor.Tensor, error) {
	if l.input == nil {
		return nil, fmt.Errorf("linear: backward before forward")
	}

	gT, err := grad.Transpose()
	if err != nil {
		return nil, err
	}
	wGrad, err := tensor.MatMul(gT, l.input)
	gT.Release()
	if err != nil {
		return nil, err
	}
	if err := accumulateParamGrad(l.weight, wGrad); err != nil {
		wGrad.Release()
		return nil, err
	}
	wGrad.Release()

	bGrad, err := columnSums(grad)
	if err != nil {
		return nil, err
	}
	if err := accumulateParamGrad(l.bias, bGrad); err != nil {
		bGrad.Release()
		return nil, err
	}
	bGrad.Release()

	return tensor.MatMul(grad, l.weight)
}

// Parameters returns the weight and bias.
func (l *Linear) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{l.weight, l.bias}
}

// ZeroGrad clears the parameter gradients.
func (l *Linear) ZeroGrad() error {
	if err := l.weight.ZeroGrad(); err != nil {
		return err
	}
	return l.bias.ZeroGrad()
}

// accumulateParamGrad adds contrib into p's gradient buffer.
func accumulateParamGrad(p, contrib *tensor.Tensor) error {
	if p.Grad() == nil {
		if err := p.ZeroGrad(); err != nil {
			return err
		}
	}
	return p.Grad().AddInPlace(contrib)
}

// columnSums reduces a [batch, out] gradient over the batch dimension
// by multiplying with a row of ones.
func columnSums(g *tensor.Tensor) (*tensor.Tensor, error) {
	batch := g.Dim(0)
	ones, err := tensor.New(tensor.MustShape(1, batch), g.DType())
	if err != nil {
		return nil, err
	}
	defer ones.Release()
	ones.Fill(1)

	summed, err := tensor.MatMul(ones, g)
	if err != nil {
		return nil, err
	}
	defer summed.Release()
	return summed.Reshape(g.Dim(1))
}
