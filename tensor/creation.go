package tensor

import (
	"sync"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	rngMu  sync.Mutex
	rngSrc = rand.NewSource(rand.Uint64())
)

// Seed reseeds the package random source used by Rand and Randn.
// Deterministic runs seed once before creating tensors.
func Seed(seed uint64) {
	rngMu.Lock()
	defer rngMu.Unlock()
	rngSrc = rand.NewSource(seed)
}

// Zeros creates a zero-filled tensor of the given shape.
func Zeros[T DType](shape Shape) (*Tensor, error) {
	var dummy T
	return New(shape, inferDataType(dummy))
}

// Ones creates a tensor of the given shape filled with ones.
func Ones[T DType](shape Shape) (*Tensor, error) {
	return Full[T](shape, 1)
}

// Full creates a tensor of the given shape with every element set to
// value.
func Full[T DType](shape Shape, value T) (*Tensor, error) {
	var dummy T
	t, err := New(shape, inferDataType(dummy))
	if err != nil {
		return nil, err
	}
	data := typedData[T](t)
	for i := range data {
		data[i] = value
	}
	return t, nil
}

// Rand creates a tensor with elements drawn uniformly from [0, 1).
func Rand[T Float](shape Shape) (*Tensor, error) {
	var dummy T
	t, err := New(shape, inferDataType(dummy))
	if err != nil {
		return nil, err
	}

	rngMu.Lock()
	defer rngMu.Unlock()
	rng := rand.New(rngSrc)
	data := typedData[T](t)
	for i := range data {
		data[i] = T(rng.Float64())
	}
	return t, nil
}

// Randn creates a tensor with elements drawn from the standard normal
// distribution.
func Randn[T Float](shape Shape) (*Tensor, error) {
	var dummy T
	t, err := New(shape, inferDataType(dummy))
	if err != nil {
		return nil, err
	}

	rngMu.Lock()
	defer rngMu.Unlock()
	dist := distuv.Normal{Mu: 0, Sigma: 1, Src: rngSrc}
	data := typedData[T](t)
	for i := range data {
		data[i] = T(dist.Rand())
	}
	return t, nil
}

// Eye creates an n by n identity matrix.
func Eye[T DType](n int) (*Tensor, error) {
	t, err := Zeros[T](MustShape(n, n))
	if err != nil {
		return nil, err
	}
	data := typedData[T](t)
	for i := 0; i < n; i++ {
		data[i*n+i] = 1
	}
	return t, nil
}

// Arange creates a 1-dimensional tensor holding 0, 1, ..., n-1.
func Arange[T DType](n int) (*Tensor, error) {
	t, err := Zeros[T](MustShape(n))
	if err != nil {
		return nil, err
	}
	data := typedData[T](t)
	for i := range data {
		data[i] = T(i)
	}
	return t, nil
}
