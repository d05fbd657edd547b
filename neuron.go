package dendrite

import "fmt"

// Neuron is a single unit of a feed-forward network.  The zero value
// is a valid Neuron that has not been initialized yet; it becomes
// usable once its weights, bias, and activation have all been set.
type Neuron struct {
	weights    []float64
	bias       float64
	biasSet    bool
	activation Activation
	// lastOutput is only meaningful right after Forward
	lastOutput  float64
	initialized bool
}

// NewNeuron returns an initialized neuron.  The weights slice is
// copied, and must not be empty.
func NewNeuron(weights []float64, bias float64, activation Activation) (n *Neuron, err error) {
	if len(weights) == 0 {
		return nil, fmt.Errorf("%w: neuron needs at least one weight", ErrDimensionMismatch)
	}
	n = &Neuron{}
	err = n.SetActivation(activation)
	if err != nil {
		return nil, err
	}
	n.SetWeights(weights)
	n.SetBias(bias)
	return
}

// Forward returns the activation of the weighted sum of inputs plus
// bias, and remembers it as the neuron's output.
func (n *Neuron) Forward(inputs []float64) (output float64, err error) {
	z, err := n.weightedSum(inputs)
	if err != nil {
		return
	}
	n.lastOutput = n.activation.F(z)
	return n.lastOutput, nil
}

// Backward returns the derivative of the activation function at the
// weighted sum of inputs plus bias.  This is the neuron's local
// sensitivity; callers apply the chain rule.
func (n *Neuron) Backward(inputs []float64) (d float64, err error) {
	z, err := n.weightedSum(inputs)
	if err != nil {
		return
	}
	return n.activation.D1(z), nil
}

func (n *Neuron) weightedSum(inputs []float64) (z float64, err error) {
	if !n.initialized {
		return 0, ErrNotInitialized
	}
	if len(inputs) != len(n.weights) {
		return 0, fmt.Errorf("%w: neuron has %d weights, got %d inputs", ErrDimensionMismatch, len(n.weights), len(inputs))
	}
	for i, input := range inputs {
		z += input * n.weights[i]
	}
	z += n.bias
	return
}

// UpdateWeight subtracts delta from the weight at index.
func (n *Neuron) UpdateWeight(delta float64, index int) error {
	if index < 0 || index >= len(n.weights) {
		return fmt.Errorf("%w: weight %d of %d", ErrInvalidIndex, index, len(n.weights))
	}
	n.weights[index] -= delta
	return nil
}

// UpdateBias subtracts delta from the bias.
func (n *Neuron) UpdateBias(delta float64) {
	n.bias -= delta
}

// SetWeights replaces the weights with a copy of the given slice.
func (n *Neuron) SetWeights(weights []float64) {
	n.weights = append([]float64{}, weights...)
	n.checkInitialized()
}

// SetBias sets the bias.
func (n *Neuron) SetBias(bias float64) {
	n.bias = bias
	n.biasSet = true
	n.checkInitialized()
}

// SetActivation binds an activation function together with its
// derivative.  An activation without a derivative is rejected and
// leaves the neuron unchanged.
func (n *Neuron) SetActivation(a Activation) error {
	if !a.Valid() {
		return fmt.Errorf("%w: activation %v has no derivative", ErrUnsupportedFunction, a)
	}
	n.activation = a
	n.checkInitialized()
	return nil
}

// Weights returns a copy of the neuron's weights.
func (n *Neuron) Weights() []float64 {
	return append([]float64{}, n.weights...)
}

// NumWeights returns the number of weights, which is also the number
// of inputs the neuron accepts.
func (n *Neuron) NumWeights() int {
	return len(n.weights)
}

// Bias returns the neuron's bias.
func (n *Neuron) Bias() float64 {
	return n.bias
}

// Activation returns the neuron's activation.
func (n *Neuron) Activation() Activation {
	return n.activation
}

// Output returns the value computed by the most recent Forward call.
func (n *Neuron) Output() float64 {
	return n.lastOutput
}

// IsInitialized reports whether weights, bias, and activation are
// all set.
func (n *Neuron) IsInitialized() bool {
	return n.initialized
}

func (n *Neuron) checkInitialized() {
	n.initialized = len(n.weights) > 0 && n.biasSet && n.activation.Valid()
}
