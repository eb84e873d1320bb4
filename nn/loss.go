package nn

import (
	"github.com/flintml/flint/tensor"
)

// MSE computes the mean squared error between pred and target and the
// gradient of the loss with respect to pred, 2(pred - target) / n.
// The caller releases the returned gradient.
func MSE(pred, target *tensor.Tensor) (float64, *tensor.Tensor, error) {
	diff, err := tensor.Sub(pred, target)
	if err != nil {
		return 0, nil, err
	}
	defer diff.Release()

	sq, err := tensor.Mul(diff, diff)
	if err != nil {
		return 0, nil, err
	}
	loss := sq.Mean()
	sq.Release()

	grad, err := diff.MulScalar(2.0 / float64(diff.NumElements()))
	if err != nil {
		return 0, nil, err
	}
	return loss, grad, nil
}
