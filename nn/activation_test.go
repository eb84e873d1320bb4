package nn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flintml/flint/tensor"
)

func input(t *testing.T, data []float64) *tensor.Tensor {
	t.Helper()
	x, err := tensor.FromSlice(data, tensor.MustShape(len(data)))
	require.NoError(t, err)
	t.Cleanup(x.Release)
	return x
}

func ones(t *testing.T, n int) *tensor.Tensor {
	t.Helper()
	g, err := tensor.Full[float64](tensor.MustShape(n), 1)
	require.NoError(t, err)
	t.Cleanup(g.Release)
	return g
}

func TestReLU(t *testing.T) {
	r := NewReLU()
	x := input(t, []float64{-2, -0.5, 0, 1, 3})

	y, err := r.Forward(x)
	require.NoError(t, err)
	defer y.Release()
	assert.Equal(t, []float64{0, 0, 0, 1, 3}, y.AsFloat64())

	dx, err := r.Backward(ones(t, 5))
	require.NoError(t, err)
	defer dx.Release()
	assert.Equal(t, []float64{0, 0, 0, 1, 1}, dx.AsFloat64())
}

func TestSigmoid(t *testing.T) {
	s := NewSigmoid()
	x := input(t, []float64{0, 2, -2})

	y, err := s.Forward(x)
	require.NoError(t, err)
	defer y.Release()

	assert.InDelta(t, 0.5, y.At(0), 1e-12)
	assert.InDelta(t, 1/(1+math.Exp(-2)), y.At(1), 1e-12)
	assert.InDelta(t, 1/(1+math.Exp(2)), y.At(2), 1e-12)

	dx, err := s.Backward(ones(t, 3))
	require.NoError(t, err)
	defer dx.Release()

	// Derivative at zero is 0.25, the logistic maximum.
	assert.InDelta(t, 0.25, dx.At(0), 1e-12)
	for i := 1; i < 3; i++ {
		yv := y.At(i)
		assert.InDelta(t, yv*(1-yv), dx.At(i), 1e-12)
	}
}

func TestTanh(t *testing.T) {
	th := NewTanh()
	x := input(t, []float64{0, 1, -1})

	y, err := th.Forward(x)
	require.NoError(t, err)
	defer y.Release()

	assert.InDelta(t, 0.0, y.At(0), 1e-12)
	assert.InDelta(t, math.Tanh(1), y.At(1), 1e-12)

	dx, err := th.Backward(ones(t, 3))
	require.NoError(t, err)
	defer dx.Release()

	assert.InDelta(t, 1.0, dx.At(0), 1e-12)
	assert.InDelta(t, 1-math.Tanh(1)*math.Tanh(1), dx.At(1), 1e-12)
}

func TestActivationBackwardBeforeForward(t *testing.T) {
	g := ones(t, 2)

	_, err := NewReLU().Backward(g)
	assert.Error(t, err)
	_, err = NewSigmoid().Backward(g)
	assert.Error(t, err)
	_, err = NewTanh().Backward(g)
	assert.Error(t, err)
}

func TestActivationsAreStateless(t *testing.T) {
	assert.Nil(t, NewReLU().Parameters())
	assert.Nil(t, NewSigmoid().Parameters())
	assert.Nil(t, NewTanh().Parameters())
	assert.NoError(t, NewReLU().ZeroGrad())
}
