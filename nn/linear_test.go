package nn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flintml/flint/tensor"
)

func newTestLinear(t *testing.T, weight, bias []float64, out, in int) *Linear {
	t.Helper()
	l, err := NewLinear(in, out, tensor.Float64)
	require.NoError(t, err)
	copy(l.Weight().AsFloat64(), weight)
	copy(l.Bias().AsFloat64(), bias)
	return l
}

func TestLinearForward(t *testing.T) {
	// W = [[1, 2], [3, 4], [5, 6]], b = [0.5, -0.5, 1].
	l := newTestLinear(t, []float64{1, 2, 3, 4, 5, 6}, []float64{0.5, -0.5, 1}, 3, 2)

	x, err := tensor.FromSlice([]float64{1, 1, 2, -1}, tensor.MustShape(2, 2))
	require.NoError(t, err)
	defer x.Release()

	y, err := l.Forward(x)
	require.NoError(t, err)
	defer y.Release()

	assert.Equal(t, []int{2, 3}, y.Shape().Dims())
	assert.Equal(t, []float64{3.5, 6.5, 12, 1.5, 1.5, 5}, y.AsFloat64())
}

func TestLinearBackward(t *testing.T) {
	l := newTestLinear(t, []float64{1, 2, 3, 4}, []float64{0, 0}, 2, 2)

	x, err := tensor.FromSlice([]float64{1, 2, 3, 4}, tensor.MustShape(2, 2))
	require.NoError(t, err)
	defer x.Release()

	y, err := l.Forward(x)
	require.NoError(t, err)
	defer y.Release()

	g, err := tensor.FromSlice([]float64{1, 0, 0, 1}, tensor.MustShape(2, 2))
	require.NoError(t, err)
	defer g.Release()

	dx, err := l.Backward(g)
	require.NoError(t, err)
	defer dx.Release()

	// dW = g^T x, db = column sums of g, dx = g W.
	assert.Equal(t, []float64{1, 2, 3, 4}, l.Weight().Grad().AsFloat64())
	assert.Equal(t, []float64{1, 1}, l.Bias().Grad().AsFloat64())
	assert.Equal(t, []float64{1, 2, 3, 4}, dx.AsFloat64())
}

func TestLinearBackwardAccumulates(t *testing.T) {
	l := newTestLinear(t, []float64{1, 1}, []float64{0}, 1, 2)

	x, err := tensor.FromSlice([]float64{1, 2}, tensor.MustShape(1, 2))
	require.NoError(t, err)
	defer x.Release()

	for i := 0; i < 2; i++ {
		y, err := l.Forward(x)
		require.NoError(t, err)

		g, err := tensor.FromSlice([]float64{1}, tensor.MustShape(1, 1))
		require.NoError(t, err)

		dx, err := l.Backward(g)
		require.NoError(t, err)
		dx.Release()
		g.Release()
		y.Release()
	}

	// Two identical passes double the gradient.
	assert.Equal(t, []float64{2, 4}, l.Weight().Grad().AsFloat64())
	assert.Equal(t, []float64{2}, l.Bias().Grad().AsFloat64())

	require.NoError(t, l.ZeroGrad())
	assert.Equal(t, []float64{0, 0}, l.Weight().Grad().AsFloat64())
}

func TestLinearBackwardBeforeForward(t *testing.T) {
	l, err := NewLinear(2, 2, tensor.Float64)
	require.NoError(t, err)

	g, err := tensor.FromSlice([]float64{1, 1, 1, 1}, tensor.MustShape(2, 2))
	require.NoError(t, err)
	defer g.Release()

	_, err = l.Backward(g)
	assert.Error(t, err)
}

func TestNewLinearRejectsIntDType(t *testing.T) {
	_, err := NewLinear(2, 2, tensor.Int32)
	assert.Error(t, err)
}

func TestNewLinearInitialization(t *testing.T) {
	Seed(3)
	l, err := NewLinear(64, 32, tensor.Float32)
	require.NoError(t, err)

	// Xavier bounds for fanIn=64, fanOut=32: sqrt(6/96) ~ 0.25.
	limit := 0.25
	nonzero := 0
	for _, v := range l.Weight().AsFloat32() {
		assert.LessOrEqual(t, float64(v), limit)
		assert.GreaterOrEqual(t, float64(v), -limit)
		if v != 0 {
			nonzero++
		}
	}
	assert.Greater(t, nonzero, 0)

	for _, v := range l.Bias().AsFloat32() {
		assert.Zero(t, v)
	}
	assert.True(t, l.Weight().RequiresGrad())
	assert.True(t, l.Bias().RequiresGrad())
}

func TestNewLinearHeNormalInit(t *testing.T) {
	Seed(7)
	l, err := NewLinearWithInit(256, 64, tensor.Float64, HeNormal)
	require.NoError(t, err)

	w := l.Weight().AsFloat64()
	var sum, sumSq float64
	for _, v := range w {
		sum += v
		sumSq += v * v
	}
	n := float64(len(w))
	mean := sum / n
	std := math.Sqrt(sumSq/n - mean*mean)

	// 16384 draws from N(0, sqrt(2/256)).
	assert.InDelta(t, 0, mean, 0.01)
	assert.InDelta(t, math.Sqrt(2.0/256.0), std, 0.01)
}

func TestMSE(t *testing.T) {
	pred, err := tensor.FromSlice([]float64{1, 2, 3, 4}, tensor.MustShape(4))
	require.NoError(t, err)
	defer pred.Release()
	target, err := tensor.FromSlice([]float64{1, 1, 1, 1}, tensor.MustShape(4))
	require.NoError(t, err)
	defer target.Release()

	loss, grad, err := MSE(pred, target)
	require.NoError(t, err)
	defer grad.Release()

	// Squared errors: 0, 1, 4, 9 -> mean 3.5.
	assert.InDelta(t, 3.5, loss, 1e-12)
	assert.Equal(t, []float64{0, 0.5, 1, 1.5}, grad.AsFloat64())
}
