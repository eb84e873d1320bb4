package tensor

import (
	"fmt"
	"math"
	"strings"
)

// numberFormat classifies how a tensor's values are rendered.
type numberFormat int

const (
	formatInt numberFormat = iota
	formatFixed
	formatScientific
)

// chooseFormat inspects all logical values and picks a single format
// for the whole tensor. Integer rendering applies when every finite
// value is integral and small enough to print in full; scientific
// notation kicks in when magnitudes span more than four decades or
// exceed ten digits.
func chooseFormat(values []float64, isFloat bool) numberFormat {
	allIntegral := true
	minExp, maxExp := math.MaxInt32, math.MinInt32

	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if v != math.Trunc(v) {
			allIntegral = false
		}
		if v != 0 {
			e := int(math.Floor(math.Log10(math.Abs(v))))
			minExp = min(minExp, e)
			maxExp = max(maxExp, e)
		}
	}

	if maxExp == math.MinInt32 {
		// All zero, NaN, or Inf.
		if allIntegral && !isFloat {
			return formatInt
		}
		return formatFixed
	}

	if maxExp-minExp > 4 || maxExp > 9 {
		return formatScientific
	}
	if allIntegral && !isFloat {
		return formatInt
	}
	return formatFixed
}

// formatValue renders one element in the chosen format.
func formatValue(v float64, f numberFormat) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	switch f {
	case formatInt:
		return fmt.Sprintf("%d", int64(v))
	case formatScientific:
		return fmt.Sprintf("%.4e", v)
	default:
		return fmt.Sprintf("%.4f", v)
	}
}

// String renders the tensor with nested brackets, one row per line for
// matrices and higher ranks, followed by shape and dtype metadata.
func (t *Tensor) String() string {
	n := t.NumElements()
	values := make([]float64, n)
	coords := make([]int, t.Ndim())
	for i := 0; i < n; i++ {
		values[i] = t.At(coords...)
		advance(coords, t.shape.dims)
	}

	format := chooseFormat(values, t.dtype.IsFloat())
	width := 0
	rendered := make([]string, n)
	for i, v := range values {
		rendered[i] = formatValue(v, format)
		width = max(width, len(rendered[i]))
	}
	for i := range rendered {
		rendered[i] = strings.Repeat(" ", width-len(rendered[i])) + rendered[i]
	}

	var b strings.Builder
	b.WriteString("Tensor(")
	next := 0
	writeBracketed(&b, rendered, t.shape.dims, 0, len("Tensor("), &next)
	fmt.Fprintf(&b, ", shape=%s, dtype=%s)", t.shape, t.dtype)
	return b.String()
}

// writeBracketed recursively prints one dimension level. Elements of
// the innermost dimension are comma-separated on one line; outer levels
// break lines and indent to align under the opening bracket.
func writeBracketed(b *strings.Builder, rendered []string, dims []int, depth, indent int, next *int) {
	if depth == len(dims) {
		b.WriteString(rendered[*next])
		*next++
		return
	}

	b.WriteString("[")
	last := depth == len(dims)-1
	for i := 0; i < dims[depth]; i++ {
		if i > 0 {
			if last {
				b.WriteString(", ")
			} else {
				b.WriteString(",\n")
				b.WriteString(strings.Repeat(" ", indent+depth+1))
			}
		}
		writeBracketed(b, rendered, dims, depth+1, indent, next)
	}
	b.WriteString("]")
}
