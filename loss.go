package dendrite

import (
	"fmt"
	"math"
)

// mse returns the mean squared error of two equal-length vectors.
func mse(predicted, actual []float64) float64 {
	sum := 0.0
	for i := range actual {
		sum += math.Pow(actual[i]-predicted[i], 2)
	}
	return sum / float64(len(actual))
}

// mseD1 is the derivative of one squared-error term with respect to
// the prediction.
func mseD1(predicted, actual float64) float64 {
	return 2 * (predicted - actual)
}

// mae returns the mean absolute error of two equal-length vectors.
func mae(predicted, actual []float64) float64 {
	sum := 0.0
	for i := range actual {
		sum += math.Abs(actual[i] - predicted[i])
	}
	return sum / float64(len(actual))
}

// maeD1 is the derivative of one absolute-error term with respect to
// the prediction.
func maeD1(predicted, actual float64) float64 {
	switch {
	case predicted > actual:
		return 1
	case predicted < actual:
		return -1
	}
	return 0
}

// LossKind tags the variant held by a Loss.
type LossKind int

const (
	LossNone LossKind = iota
	LossMSE
	LossMAE
	LossCustom
)

// Loss is a loss function paired with its per-element derivative.
// The scalar form is used to report a sample's loss; the per-element
// derivative drives backpropagation, one output at a time.
type Loss struct {
	kind LossKind
	name string
	f    func(predicted, actual []float64) float64
	df   func(predicted, actual float64) float64
}

// The loss catalog.
var (
	MSE = Loss{LossMSE, "mse", mse, mseD1}
	MAE = Loss{LossMAE, "mae", mae, maeD1}
)

// LossByName returns the catalog loss with the given name, either
// "mse" or "mae".
func LossByName(name string) (l Loss, err error) {
	switch name {
	case MSE.name:
		return MSE, nil
	case MAE.name:
		return MAE, nil
	}
	return Loss{}, fmt.Errorf("%w: unknown loss %q", ErrUnsupportedFunction, name)
}

// CustomLoss pairs a caller-supplied scalar loss with its per-element
// derivative.  Both must be non-nil.
func CustomLoss(name string, f func(predicted, actual []float64) float64, df func(predicted, actual float64) float64) (l Loss, err error) {
	if f == nil || df == nil {
		return Loss{}, fmt.Errorf("%w: loss %q needs both a function and a derivative", ErrUnsupportedFunction, name)
	}
	return Loss{LossCustom, name, f, df}, nil
}

// Kind returns the variant tag.
func (l Loss) Kind() LossKind {
	return l.kind
}

// Name returns the loss function's name.
func (l Loss) Name() string {
	return l.name
}

// Valid reports whether both the function and its derivative are
// bound.
func (l Loss) Valid() bool {
	return l.kind != LossNone && l.f != nil && l.df != nil
}

// Compute returns the scalar loss of predicted against actual.
func (l Loss) Compute(predicted, actual []float64) (loss float64, err error) {
	if len(predicted) != len(actual) || len(actual) == 0 {
		return 0, fmt.Errorf("%w: %d predicted values, %d actual", ErrDimensionMismatch, len(predicted), len(actual))
	}
	return l.f(predicted, actual), nil
}

// D1 returns the derivative of the loss with respect to a single
// predicted value.
func (l Loss) D1(predicted, actual float64) float64 {
	return l.df(predicted, actual)
}

func (l Loss) String() string {
	if l.name == "" {
		return "none"
	}
	return l.name
}
