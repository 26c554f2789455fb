package train

import (
	"errors"
	"fmt"

	"scalar-autograd/autograd"
)

// ErrLengthMismatch is returned when predictions and targets differ in
// length.
var ErrLengthMismatch = errors.New("length mismatch")

// SquaredError returns sum((y - t) * (y - t)) over all predictions.
func SquaredError(preds []*autograd.Value, targets []float64) (*autograd.Value, error) {
	if len(preds) != len(targets) {
		return nil, fmt.Errorf("%w: %d predictions, %d targets", ErrLengthMismatch, len(preds), len(targets))
	}
	if len(preds) == 0 {
		return autograd.New(0), nil
	}
	loss := autograd.New(0)
	for i, y := range preds {
		diff := y.Sub(autograd.Scalar(targets[i]))
		loss = loss.Add(diff.Mul(diff))
	}
	return loss, nil
}
