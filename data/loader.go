// Package data provides minibatch iteration over in-memory datasets.
package data

import (
	"errors"
	"fmt"
	"io"

	"golang.org/x/exp/rand"

	"github.com/flintml/flint/tensor"
)

// ErrEmptyDataset indicates a loader over zero samples.
var ErrEmptyDataset = errors.New("empty dataset")

// Batch is one minibatch of aligned inputs and targets. The tensors
// are fresh copies; the caller releases them.
type Batch struct {
	Inputs  *tensor.Tensor
	Targets *tensor.Tensor
}

// Release frees both batch tensors.
func (b *Batch) Release() {
	b.Inputs.Release()
	b.Targets.Release()
}

// Loader slices a dataset into fixed-size minibatches along the first
// dimension. The final batch is short when the sample count is not a
// multiple of the batch size.
type Loader struct {
	inputs    *tensor.Tensor
	targets   *tensor.Tensor
	batchSize int
	order     []int
	cursor    int
}

// NewLoader creates a loader over inputs and targets, whose first
// dimensions must agree. Both tensors must be contiguous and stay
// alive for the loader's lifetime.
func NewLoader(inputs, targets *tensor.Tensor, batchSize int) (*Loader, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	if inputs.Ndim() == 0 || targets.Ndim() == 0 {
		return nil, fmt.Errorf("%w: loader requires batched tensors", ErrEmptyDataset)
	}
	if inputs.Dim(0) != targets.Dim(0) {
		return nil, fmt.Errorf("inputs hold %d samples, targets %d", inputs.Dim(0), targets.Dim(0))
	}
	if !inputs.IsContiguous() || !targets.IsContiguous() {
		return nil, fmt.Errorf("loader requires contiguous tensors")
	}

	n := inputs.Dim(0)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return &Loader{
		inputs:    inputs,
		targets:   targets,
		batchSize: batchSize,
		order:     order,
	}, nil
}

// NumSamples returns the dataset size.
func (l *Loader) NumSamples() int {
	return len(l.order)
}

// NumBatches returns how many batches one epoch yields.
func (l *Loader) NumBatches() int {
	return (len(l.order) + l.batchSize - 1) / l.batchSize
}

// Shuffle permutes the sample order. Call once per epoch for
// stochastic training.
func (l *Loader) Shuffle(seed uint64) {
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(l.order), func(i, j int) {
		l.order[i], l.order[j] = l.order[j], l.order[i]
	})
}

// Batch materializes the i-th batch of the current order.
func (l *Loader) Batch(i int) (*Batch, error) {
	if i < 0 || i >= l.NumBatches() {
		return nil, fmt.Errorf("batch %d out of range (%d batches)", i, l.NumBatches())
	}
	start := i * l.batchSize
	end := min(start+l.batchSize, len(l.order))
	rows := l.order[start:end]

	inputs, err := gatherRows(l.inputs, rows)
	if err != nil {
		return nil, err
	}
	targets, err := gatherRows(l.targets, rows)
	if err != nil {
		inputs.Release()
		return nil, err
	}
	return &Batch{Inputs: inputs, Targets: targets}, nil
}

// Next yields the following batch in the epoch, or io.EOF when the
// epoch is exhausted.
func (l *Loader) Next() (*Batch, error) {
	if l.cursor >= l.NumBatches() {
		return nil, io.EOF
	}
	b, err := l.Batch(l.cursor)
	if err != nil {
		return nil, err
	}
	l.cursor++
	return b, nil
}

// Reset rewinds the epoch cursor.
func (l *Loader) Reset() {
	l.cursor = 0
}

// gatherRows copies the selected first-dimension slices of src into a
// fresh tensor.
func gatherRows(src *tensor.Tensor, rows []int) (*tensor.Tensor, error) {
	dims := src.Shape().Dims()
	dims[0] = len(rows)
	out, err := tensor.New(tensor.MustShape(dims...), src.DType())
	if err != nil {
		return nil, err
	}

	rowBytes := src.NumElements() / src.Dim(0) * src.DType().Size()
	srcBytes := src.Storage().Bytes()
	dstBytes := out.Storage().Bytes()
	for i, r := range rows {
		copy(dstBytes[i*rowBytes:(i+1)*rowBytes], srcBytes[r*rowBytes:(r+1)*rowBytes])
	}
	return out, nil
}
