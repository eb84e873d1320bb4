package tensor

import (
	"github.com/flintml/flint/internal/parallel"
)

var computeConfig = parallel.DefaultConfig()

// SetParallelism overrides the worker configuration used by the
// compute kernels. Mostly useful for benchmarks and deterministic
// profiling.
func SetParallelism(cfg parallel.Config) {
	computeConfig = cfg
}

// opFunc returns the scalar kernel for an elementwise operation.
func opFunc[T DType](op Op) func(T, T) T {
	switch op {
	case OpAdd:
		return func(x, y T) T { return x + y }
	case OpSub:
		return func(x, y T) T { return x - y }
	case OpMul:
		return func(x, y T) T { return x * y }
	case OpDiv:
		return func(x, y T) T { return x / y }
	default:
		panic("no elementwise kernel for " + op.String())
	}
}

// ewKernel applies f over the logical elements described by aSh and
// bSh, writing through dstSh. All three shapes share dst's dimensions;
// a and b arrive pre-expanded so broadcast positions carry stride 0.
// When every shape is contiguous the offsets collapse to the flat
// index and the kernel runs a tight vectorizable loop.
func ewKernel[T DType](aData, bData, dstData []T, aSh, bSh, dstSh Shape, f func(T, T) T) {
	n := dstSh.NumElements()

	if aSh.IsContiguous() && bSh.IsContiguous() && dstSh.IsContiguous() {
		parallel.ForRange(n, func(start, end int) {
			for i := start; i < end; i++ {
				dstData[i] = f(aData[i], bData[i])
			}
		}, computeConfig)
		return
	}

	dims := dstSh.dims
	counts := computeStrides(dims)
	parallel.ForRange(n, func(start, end int) {
		for i := start; i < end; i++ {
			rem := i
			ao, bo, do := 0, 0, 0
			for d := 0; d < len(dims); d++ {
				c := rem / counts[d]
				rem -= c * counts[d]
				ao += c * aSh.stride[d]
				bo += c * bSh.stride[d]
				do += c * dstSh.stride[d]
			}
			dstData[do] = f(aData[ao], bData[bo])
		}
	}, computeConfig)
}

// unaryKernel applies f elementwise from src to dst over shared
// dimensions.
func unaryKernel[T DType](srcData, dstData []T, srcSh, dstSh Shape, f func(T) T) {
	n := dstSh.NumElements()

	if srcSh.IsContiguous() && dstSh.IsContiguous() {
		parallel.ForRange(n, func(start, end int) {
			for i := start; i < end; i++ {
				dstData[i] = f(srcData[i])
			}
		}, computeConfig)
		return
	}

	dims := dstSh.dims
	counts := computeStrides(dims)
	parallel.ForRange(n, func(start, end int) {
		for i := start; i < end; i++ {
			rem := i
			so, do := 0, 0
			for d := 0; d < len(dims); d++ {
				c := rem / counts[d]
				rem -= c * counts[d]
				so += c * srcSh.stride[d]
				do += c * dstSh.stride[d]
			}
			dstData[do] = f(srcData[so])
		}
	}, computeConfig)
}

// hasZero reports whether any logical element of the shape-described
// view is zero. Used to reject elementwise division up front instead
// of producing Inf or a runtime fault partway through.
func hasZero[T DType](data []T, sh Shape) bool {
	n := sh.NumElements()
	coords := make([]int, sh.Ndim())
	for i := 0; i < n; i++ {
		if data[sh.offsetOf(coords)] == 0 {
			return true
		}
		advance(coords, sh.dims)
	}
	return false
}

// matmulKernel computes dst = a @ b for dense row-major operands with
// a of [m, k], b of [k, n]. The i-p-j loop order keeps the inner loop
// streaming over b's rows; rows of the output are parallelized.
func matmulKernel[T DType](a, b, dst []T, m, k, n int) {
	parallel.ForRange(m, func(rowStart, rowEnd int) {
		for i := rowStart; i < rowEnd; i++ {
			aRow := a[i*k : (i+1)*k]
			dRow := dst[i*n : (i+1)*n]
			for p := 0; p < k; p++ {
				av := aRow[p]
				bRow := b[p*n : (p+1)*n]
				for j := range dRow {
					dRow[j] += av * bRow[j]
				}
			}
		}
	}, matmulConfig())
}

// matmulConfig scales the chunk threshold down to row granularity.
func matmulConfig() parallel.Config {
	cfg := computeConfig
	cfg.MinChunkSize = 8
	return cfg
}
