package nn

import (
	"math"
	"sync"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/flintml/flint/tensor"
)

var (
	initMu  sync.Mutex
	initSrc = rand.NewSource(rand.Uint64())
)

// Init selects a weight initialization scheme.
type Init int

const (
	// XavierUniform draws from U(-l, l) with l = sqrt(6/(fanIn+fanOut)).
	XavierUniform Init = iota
	// HeNormal draws from N(0, sqrt(2/fanIn)).
	HeNormal
)

// initialize fills w according to the chosen scheme.
func initialize(w *tensor.Tensor, scheme Init, fanIn, fanOut int) {
	switch scheme {
	case HeNormal:
		heNormal(w, fanIn)
	default:
		xavierUniform(w, fanIn, fanOut)
	}
}

// Seed reseeds the source used for parameter initialization.
func Seed(seed uint64) {
	initMu.Lock()
	defer initMu.Unlock()
	initSrc = rand.NewSource(seed)
}

// fillFrom populates a parameter tensor by drawing from next. The
// tensor must have a floating-point dtype.
func fillFrom(w *tensor.Tensor, next func() float64) {
	switch w.DType() {
	case tensor.Float32:
		data := w.AsFloat32()
		for i := range data {
			data[i] = float32(next())
		}
	case tensor.Float64:
		data := w.AsFloat64()
		for i := range data {
			data[i] = next()
		}
	}
}

// xavierUniform fills w from U(-limit, limit) with
// limit = sqrt(6 / (fanIn + fanOut)), keeping activation variance
// stable across layers.
func xavierUniform(w *tensor.Tensor, fanIn, fanOut int) {
	limit := math.Sqrt(6.0 / float64(fanIn+fanOut))

	initMu.Lock()
	defer initMu.Unlock()
	dist := distuv.Uniform{Min: -limit, Max: limit, Src: initSrc}
	fillFrom(w, dist.Rand)
}

// heNormal fills w from N(0, sqrt(2 / fanIn)), the preferred scaling
// in front of rectifier activations.
func heNormal(w *tensor.Tensor, fanIn int) {
	initMu.Lock()
	defer initMu.Unlock()
	dist := distuv.Normal{Mu: 0, Sigma: math.Sqrt(2.0 / float64(fanIn)), Src: initSrc}
	fillFrom(w, dist.Rand)
}
