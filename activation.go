package dendrite

import (
	"fmt"
	"math"
)

// sigmoid activation function
func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// sigmoid derivative, evaluated at the weighted sum rather than at the
// output
func sigmoidD1(x float64) float64 {
	s := sigmoid(x)
	return s * (1 - s)
}

// tanh activation function
func tanh(x float64) float64 {
	return math.Tanh(x)
}

// tanh derivative
func tanhD1(x float64) float64 {
	return 1 - math.Pow(math.Tanh(x), 2)
}

// relu activation function
func relu(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

// relu derivative
func reluD1(x float64) float64 {
	if x > 0 {
		return 1
	}
	return 0
}

const leakySlope = 0.1

func leakyRelu(x float64) float64 {
	if x > 0 {
		return x
	}
	return leakySlope * x
}

func leakyReluD1(x float64) float64 {
	if x > 0 {
		return 1
	}
	return leakySlope
}

// elu with alpha = 1
func elu(x float64) float64 {
	if x > 0 {
		return x
	}
	return math.Exp(x) - 1
}

func eluD1(x float64) float64 {
	if x > 0 {
		return 1
	}
	return math.Exp(x)
}

// binary step function
func binary(x float64) float64 {
	if x < 0 {
		return 0
	}
	return 1
}

// binary derivative is zero everywhere it is defined
func binaryD1(x float64) float64 {
	return 0
}

// linear activation function
func linear(x float64) float64 {
	return x
}

// linear derivative
func linearD1(x float64) float64 {
	return 1
}

// ActivationKind tags the variant held by an Activation.
type ActivationKind int

const (
	KindNone ActivationKind = iota
	KindBinary
	KindLinear
	KindSigmoid
	KindTanh
	KindReLU
	KindLeakyReLU
	KindELU
	KindCustom
)

// Activation is an activation function paired with its derivative.
// The two are never bound separately, so a neuron can't end up with
// a function whose derivative is unknown.  The zero value is not a
// usable activation.
type Activation struct {
	kind ActivationKind
	name string
	f    func(float64) float64
	df   func(float64) float64
}

// The activation catalog.
var (
	Binary    = Activation{KindBinary, "binary", binary, binaryD1}
	Linear    = Activation{KindLinear, "linear", linear, linearD1}
	Sigmoid   = Activation{KindSigmoid, "sigmoid", sigmoid, sigmoidD1}
	Tanh      = Activation{KindTanh, "tanh", tanh, tanhD1}
	ReLU      = Activation{KindReLU, "relu", relu, reluD1}
	LeakyReLU = Activation{KindLeakyReLU, "lrelu", leakyRelu, leakyReluD1}
	ELU       = Activation{KindELU, "elu", elu, eluD1}
)

var activations = map[string]Activation{
	Binary.name:    Binary,
	Linear.name:    Linear,
	Sigmoid.name:   Sigmoid,
	Tanh.name:      Tanh,
	ReLU.name:      ReLU,
	LeakyReLU.name: LeakyReLU,
	ELU.name:       ELU,
}

// ActivationByName returns the catalog activation with the given
// name.  The names are "binary", "linear", "sigmoid", "tanh", "relu",
// "lrelu", and "elu".
func ActivationByName(name string) (a Activation, err error) {
	a, ok := activations[name]
	if !ok {
		return Activation{}, fmt.Errorf("%w: unknown activation %q", ErrUnsupportedFunction, name)
	}
	return a, nil
}

// CustomActivation pairs a caller-supplied function with its
// derivative.  Both must be non-nil.
func CustomActivation(name string, f, df func(float64) float64) (a Activation, err error) {
	if f == nil || df == nil {
		return Activation{}, fmt.Errorf("%w: activation %q needs both a function and a derivative", ErrUnsupportedFunction, name)
	}
	return Activation{KindCustom, name, f, df}, nil
}

// Kind returns the variant tag.
func (a Activation) Kind() ActivationKind {
	return a.kind
}

// Name returns the activation's name.
func (a Activation) Name() string {
	return a.name
}

// Valid reports whether both the function and its derivative are
// bound.
func (a Activation) Valid() bool {
	return a.kind != KindNone && a.f != nil && a.df != nil
}

// F applies the activation function.
func (a Activation) F(x float64) float64 {
	return a.f(x)
}

// D1 applies the derivative of the activation function.
func (a Activation) D1(x float64) float64 {
	return a.df(x)
}

func (a Activation) String() string {
	if a.name == "" {
		return "none"
	}
	return a.name
}
