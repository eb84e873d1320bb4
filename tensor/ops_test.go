package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTensor[T DType](t *testing.T, data []T, dims ...int) *Tensor {
	t.Helper()
	tr, err := FromSlice(data, MustShape(dims...))
	require.NoError(t, err)
	t.Cleanup(tr.Release)
	return tr
}

func TestAdd(t *testing.T) {
	a := mustTensor(t, []float32{1, 2, 3, 4}, 2, 2)
	b := mustTensor(t, []float32{10, 20, 30, 40}, 2, 2)

	out, err := Add(a, b)
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, []float32{11, 22, 33, 44}, out.AsFloat32())
}

func TestSub(t *testing.T) {
	a := mustTensor(t, []float64{5, 7}, 2)
	b := mustTensor(t, []float64{2, 3}, 2)

	out, err := Sub(a, b)
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, []float64{3, 4}, out.AsFloat64())
}

func TestMulInt(t *testing.T) {
	a := mustTensor(t, []int32{2, 3, 4}, 3)
	b := mustTensor(t, []int32{5, 6, 7}, 3)

	out, err := Mul(a, b)
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, []int32{10, 18, 28}, out.AsInt32())
}

func TestDiv(t *testing.T) {
	a := mustTensor(t, []float64{10, 9}, 2)
	b := mustTensor(t, []float64{2, 3}, 2)

	out, err := Div(a, b)
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, []float64{5, 3}, out.AsFloat64())
}

func TestDivByZero(t *testing.T) {
	a := mustTensor(t, []float64{1, 2}, 2)
	b := mustTensor(t, []float64{1, 0}, 2)

	_, err := Div(a, b)
	assert.ErrorIs(t, err, ErrDivisionByZero)
}

func TestAddBroadcastRow(t *testing.T) {
	m := mustTensor(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	row := mustTensor(t, []float32{10, 20, 30}, 3)

	out, err := Add(m, row)
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, []int{2, 3}, out.Shape().Dims())
	assert.Equal(t, []float32{11, 22, 33, 14, 25, 36}, out.AsFloat32())
}

func TestMulBroadcastColumnByRow(t *testing.T) {
	col := mustTensor(t, []float64{1, 2, 3}, 3, 1)
	row := mustTensor(t, []float64{10, 100}, 1, 2)

	out, err := Mul(col, row)
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, []int{3, 2}, out.Shape().Dims())
	assert.Equal(t, []float64{10, 100, 20, 200, 30, 300}, out.AsFloat64())
}

func TestAddIncompatibleShapes(t *testing.T) {
	a := mustTensor(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	b := mustTensor(t, []float32{1, 2, 3, 4}, 2, 2)

	_, err := Add(a, b)
	assert.ErrorIs(t, err, ErrIncompatibleShape)
}

func TestAddDTypeMismatch(t *testing.T) {
	a := mustTensor(t, []float32{1}, 1)
	b := mustTensor(t, []float64{1}, 1)

	_, err := Add(a, b)
	assert.ErrorIs(t, err, ErrDTypeMismatch)
}

func TestAddPermutedView(t *testing.T) {
	a := mustTensor(t, []float64{1, 2, 3, 4, 5, 6}, 2, 3)
	at, err := a.Permute(1, 0)
	require.NoError(t, err)
	defer at.Release()

	b := mustTensor(t, []float64{10, 20, 30, 40, 50, 60}, 3, 2)
	out, err := Add(at, b)
	require.NoError(t, err)
	defer out.Release()

	// at reads [[1,4],[2,5],[3,6]].
	assert.Equal(t, []float64{11, 24, 32, 45, 53, 66}, out.AsFloat64())
}

func TestInPlaceOps(t *testing.T) {
	a := mustTensor(t, []float64{2, 4, 6, 8}, 2, 2)
	b := mustTensor(t, []float64{1, 2, 3, 4}, 2, 2)

	require.NoError(t, a.AddInPlace(b))
	assert.Equal(t, []float64{3, 6, 9, 12}, a.AsFloat64())

	require.NoError(t, a.SubInPlace(b))
	assert.Equal(t, []float64{2, 4, 6, 8}, a.AsFloat64())

	require.NoError(t, a.MulInPlace(b))
	assert.Equal(t, []float64{2, 8, 18, 32}, a.AsFloat64())

	require.NoError(t, a.DivInPlace(b))
	assert.Equal(t, []float64{2, 4, 6, 8}, a.AsFloat64())
}

func TestAddInPlaceBroadcast(t *testing.T) {
	m := mustTensor(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	row := mustTensor(t, []float32{10, 20, 30}, 3)

	require.NoError(t, m.AddInPlace(row))
	assert.Equal(t, []float32{11, 22, 33, 14, 25, 36}, m.AsFloat32())
}

func TestDivInPlaceByZero(t *testing.T) {
	a := mustTensor(t, []float64{1, 2}, 2)
	b := mustTensor(t, []float64{0, 1}, 2)

	err := a.DivInPlace(b)
	assert.ErrorIs(t, err, ErrDivisionByZero)
	// Operand is untouched on failure.
	assert.Equal(t, []float64{1, 2}, a.AsFloat64())
}

func TestScalarOps(t *testing.T) {
	a := mustTensor(t, []float64{1, 2, 3}, 3)

	sum, err := a.AddScalar(10)
	require.NoError(t, err)
	defer sum.Release()
	assert.Equal(t, []float64{11, 12, 13}, sum.AsFloat64())

	scaled, err := a.MulScalar(2)
	require.NoError(t, err)
	defer scaled.Release()
	assert.Equal(t, []float64{2, 4, 6}, scaled.AsFloat64())

	a.ScaleInPlace(3)
	assert.Equal(t, []float64{3, 6, 9}, a.AsFloat64())
}

func TestMatMul(t *testing.T) {
	a := mustTensor(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	b := mustTensor(t, []float32{7, 8, 9, 10, 11, 12}, 3, 2)

	out, err := MatMul(a, b)
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, []int{2, 2}, out.Shape().Dims())
	assert.Equal(t, []float32{58, 64, 139, 154}, out.AsFloat32())
}

func TestMatMulTransposedOperand(t *testing.T) {
	a := mustTensor(t, []float64{1, 2, 3, 4, 5, 6}, 2, 3)
	bSrc := mustTensor(t, []float64{7, 9, 11, 8, 10, 12}, 2, 3)

	b, err := bSrc.Transpose()
	require.NoError(t, err)
	defer b.Release()

	out, err := MatMul(a, b)
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, []float64{58, 64, 139, 154}, out.AsFloat64())
}

func TestMatMulShapeErrors(t *testing.T) {
	a := mustTensor(t, []float32{1, 2, 3}, 3)
	m := mustTensor(t, []float32{1, 2, 3, 4}, 2, 2)

	_, err := MatMul(a, m)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	bad := mustTensor(t, []float32{1, 2, 3, 4, 5, 6}, 3, 2)
	_, err = MatMul(m, bad)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestAddAndMatMulSmallMatrices(t *testing.T) {
	a := mustTensor(t, []float64{1, 2, 3, 4}, 2, 2)
	b := mustTensor(t, []float64{5, 6, 7, 8}, 2, 2)

	sum, err := Add(a, b)
	require.NoError(t, err)
	defer sum.Release()
	assert.Equal(t, []float64{6, 8, 10, 12}, sum.AsFloat64())

	prod, err := MatMul(a, b)
	require.NoError(t, err)
	defer prod.Release()
	assert.Equal(t, []float64{19, 22, 43, 50}, prod.AsFloat64())
}

func TestMatMulIdentity(t *testing.T) {
	a := mustTensor(t, []float64{1, 2, 3, 4}, 2, 2)
	eye, err := Eye[float64](2)
	require.NoError(t, err)
	defer eye.Release()

	out, err := MatMul(a, eye)
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, a.AsFloat64(), out.AsFloat64())
}

func TestSumAndMean(t *testing.T) {
	a := mustTensor(t, []float64{1, 2, 3, 4}, 2, 2)
	assert.Equal(t, 10.0, a.Sum())
	assert.Equal(t, 2.5, a.Mean())

	// Strided views sum their logical elements.
	p, err := a.Permute(1, 0)
	require.NoError(t, err)
	defer p.Release()
	assert.Equal(t, 10.0, p.Sum())
}
