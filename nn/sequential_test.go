package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flintml/flint/tensor"
)

func TestSequentialForwardChains(t *testing.T) {
	l := newTestLinear(t, []float64{1, -1}, []float64{0}, 1, 2)
	model := NewSequential(l, NewReLU())

	x, err := tensor.FromSlice([]float64{3, 1, 1, 3}, tensor.MustShape(2, 2))
	require.NoError(t, err)
	defer x.Release()

	y, err := model.Forward(x)
	require.NoError(t, err)
	defer y.Release()

	// Row outputs 2 and -2; ReLU clamps the second.
	assert.Equal(t, []float64{2, 0}, y.AsFloat64())
}

func TestSequentialParameters(t *testing.T) {
	l1, err := NewLinear(2, 4, tensor.Float64)
	require.NoError(t, err)
	l2, err := NewLinear(4, 1, tensor.Float64)
	require.NoError(t, err)

	model := NewSequential(l1, NewTanh())
	model.Add(l2)

	params := model.Parameters()
	require.Len(t, params, 4)
	assert.Same(t, l1.Weight(), params[0])
	assert.Same(t, l2.Bias(), params[3])
	assert.Len(t, model.Modules(), 3)
}

func TestSequentialBackwardThreadsGradients(t *testing.T) {
	l := newTestLinear(t, []float64{2}, []float64{0}, 1, 1)
	model := NewSequential(l, NewReLU())

	x, err := tensor.FromSlice([]float64{3}, tensor.MustShape(1, 1))
	require.NoError(t, err)
	defer x.Release()

	y, err := model.Forward(x)
	require.NoError(t, err)
	defer y.Release()
	require.Equal(t, []float64{6}, y.AsFloat64())

	g, err := tensor.FromSlice([]float64{1}, tensor.MustShape(1, 1))
	require.NoError(t, err)
	defer g.Release()

	dx, err := model.Backward(g)
	require.NoError(t, err)
	defer dx.Release()

	// ReLU passes the gradient, then dx = g W and dW = g x.
	assert.Equal(t, []float64{2}, dx.AsFloat64())
	assert.Equal(t, []float64{3}, l.Weight().Grad().AsFloat64())
}

func TestSequentialTrainsLinearRegression(t *testing.T) {
	Seed(11)
	l, err := NewLinear(1, 1, tensor.Float64)
	require.NoError(t, err)
	model := NewSequential(l)

	// y = 2x + 1 over a handful of points.
	xs := []float64{-2, -1, 0, 1, 2}
	ys := []float64{-3, -1, 1, 3, 5}
	x, err := tensor.FromSlice(xs, tensor.MustShape(5, 1))
	require.NoError(t, err)
	defer x.Release()
	target, err := tensor.FromSlice(ys, tensor.MustShape(5, 1))
	require.NoError(t, err)
	defer target.Release()

	const lr = 0.1
	var loss float64
	for epoch := 0; epoch < 200; epoch++ {
		require.NoError(t, model.ZeroGrad())

		pred, err := model.Forward(x)
		require.NoError(t, err)

		var grad *tensor.Tensor
		loss, grad, err = MSE(pred, target)
		require.NoError(t, err)

		dx, err := model.Backward(grad)
		require.NoError(t, err)
		dx.Release()
		grad.Release()
		pred.Release()

		for _, p := range model.Parameters() {
			step, err := p.Grad().MulScalar(-lr)
			require.NoError(t, err)
			require.NoError(t, p.AddInPlace(step))
			step.Release()
		}
	}

	assert.Less(t, loss, 1e-6)
	assert.InDelta(t, 2.0, l.Weight().At(0, 0), 1e-3)
	assert.InDelta(t, 1.0, l.Bias().At(0), 1e-3)
}
