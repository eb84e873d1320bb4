package serialization

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flintml/flint/tensor"
)

func sample(t *testing.T) []*tensor.Tensor {
	t.Helper()
	w, err := tensor.FromSlice([]float32{1.5, -2, 3, 4.25}, tensor.MustShape(2, 2))
	require.NoError(t, err)
	t.Cleanup(w.Release)

	b, err := tensor.FromSlice([]float64{0.5, -0.5}, tensor.MustShape(2))
	require.NoError(t, err)
	t.Cleanup(b.Release)

	ids, err := tensor.FromSlice([]int32{7, 8, 9}, tensor.MustShape(3))
	require.NoError(t, err)
	t.Cleanup(ids.Release)

	return []*tensor.Tensor{w, b, ids}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	src := sample(t)

	var buf bytes.Buffer
	require.NoError(t, Save(&buf, "mlp", src))

	modelType, loaded, err := Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, "mlp", modelType)
	require.Len(t, loaded, 3)
	defer func() {
		for _, tr := range loaded {
			tr.Release()
		}
	}()

	assert.Equal(t, src[0].AsFloat32(), loaded[0].AsFloat32())
	assert.Equal(t, []int{2, 2}, loaded[0].Shape().Dims())
	assert.Equal(t, src[1].AsFloat64(), loaded[1].AsFloat64())
	assert.Equal(t, src[2].AsInt32(), loaded[2].AsInt32())
}

func TestSaveWritesLogicalOrder(t *testing.T) {
	src, err := tensor.FromSlice([]float64{1, 2, 3, 4}, tensor.MustShape(2, 2))
	require.NoError(t, err)
	defer src.Release()

	view, err := src.Permute(1, 0)
	require.NoError(t, err)
	defer view.Release()

	var buf bytes.Buffer
	require.NoError(t, Save(&buf, "m", []*tensor.Tensor{view}))

	_, loaded, err := Load(&buf)
	require.NoError(t, err)
	defer loaded[0].Release()

	assert.Equal(t, []float64{1, 3, 2, 4}, loaded[0].AsFloat64())
}

func TestLoadInto(t *testing.T) {
	src := sample(t)
	var buf bytes.Buffer
	require.NoError(t, Save(&buf, "mlp", src))

	dst := []*tensor.Tensor{}
	for _, s := range src {
		d, err := tensor.New(s.Shape(), s.DType())
		require.NoError(t, err)
		t.Cleanup(d.Release)
		dst = append(dst, d)
	}

	require.NoError(t, LoadInto(&buf, "mlp", dst))
	assert.Equal(t, src[0].AsFloat32(), dst[0].AsFloat32())
	assert.Equal(t, src[2].AsInt32(), dst[2].AsInt32())
}

func TestLoadIntoRejectsMismatches(t *testing.T) {
	src := sample(t)

	save := func() *bytes.Buffer {
		var buf bytes.Buffer
		require.NoError(t, Save(&buf, "mlp", src))
		return &buf
	}

	dst := make([]*tensor.Tensor, len(src))
	for i, s := range src {
		d, err := tensor.New(s.Shape(), s.DType())
		require.NoError(t, err)
		t.Cleanup(d.Release)
		dst[i] = d
	}

	assert.ErrorIs(t, LoadInto(save(), "cnn", dst), ErrModelMismatch)
	assert.ErrorIs(t, LoadInto(save(), "mlp", dst[:2]), ErrModelMismatch)

	wrongShape, err := tensor.New(tensor.MustShape(3, 3), tensor.Float32)
	require.NoError(t, err)
	defer wrongShape.Release()
	assert.ErrorIs(t, LoadInto(save(), "mlp", []*tensor.Tensor{wrongShape, dst[1], dst[2]}), ErrModelMismatch)

	wrongType, err := tensor.New(tensor.MustShape(2, 2), tensor.Float64)
	require.NoError(t, err)
	defer wrongType.Release()
	assert.ErrorIs(t, LoadInto(save(), "mlp", []*tensor.Tensor{wrongType, dst[1], dst[2]}), ErrModelMismatch)
}

func TestLoadRejectsBadMagic(t *testing.T) {
	buf := bytes.NewBufferString("NOPE....garbage")
	_, _, err := Load(buf)
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestLoadRejectsFutureVersion(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Save(&buf, "m", nil))

	data := buf.Bytes()
	data[4] = 99 // bump the version field
	_, _, err := Load(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestSaveLoadFile(t *testing.T) {
	src := sample(t)
	path := filepath.Join(t.TempDir(), "model.flint")

	require.NoError(t, SaveFile(path, "mlp", src))

	modelType, loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "mlp", modelType)
	for _, tr := range loaded {
		tr.Release()
	}

	dst := []*tensor.Tensor{}
	for _, s := range src {
		d, err := tensor.New(s.Shape(), s.DType())
		require.NoError(t, err)
		t.Cleanup(d.Release)
		dst = append(dst, d)
	}
	require.NoError(t, LoadFileInto(path, "mlp", dst))
	assert.Equal(t, src[1].AsFloat64(), dst[1].AsFloat64())
}
