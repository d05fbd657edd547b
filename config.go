package dendrite

import (
	"fmt"
	"math"
)

// Defaults applied by NewNetwork to zero-valued Config fields.
const (
	DefaultEpochs       = 1000
	DefaultLearningRate = 0.01
	DefaultInitBound    = 1.0
)

// Config holds the topology and hyperparameters of a Network.
type Config struct {
	// HiddenLayers lists the neuron count of each hidden layer, in
	// order.  It may be empty.
	HiddenLayers []int
	// Activation is used by every hidden and output neuron unless
	// overridden with SetLayerActivation.
	Activation Activation
	// Loss scores predictions and drives backpropagation.
	Loss Loss
	// Epochs is the maximum number of passes over the dataset.
	Epochs int
	// LearningRate scales every weight and bias update.
	LearningRate float64
	// Cutoff stops training early once an epoch's mean loss is at or
	// below it.  Zero disables early stopping.
	Cutoff float64
	// InitBound bounds the uniform distribution that weights and
	// biases are drawn from: U(-InitBound, InitBound).
	InitBound float64
	// Seed seeds the network's random number generator.
	Seed int64
	// Shuffle visits the samples in a new random order every epoch
	// instead of dataset order.
	Shuffle bool
	// Verbose logs each epoch's mean loss.
	Verbose bool
	// Reporter, if set, is called after each epoch with the 1-based
	// epoch index and the epoch's mean loss.  It must not call back
	// into the network.
	Reporter func(epoch int, loss float64)
}

// withDefaults validates the config and fills in zero values.
func (c Config) withDefaults() (out Config, err error) {
	out = c
	out.HiddenLayers = append([]int{}, c.HiddenLayers...)
	for i, size := range out.HiddenLayers {
		if size <= 0 {
			return Config{}, fmt.Errorf("%w: hidden layer %d has %d neurons", ErrInvalidConfig, i+1, size)
		}
	}
	if !c.Activation.Valid() {
		return Config{}, fmt.Errorf("%w: no activation configured", ErrUnsupportedFunction)
	}
	if !c.Loss.Valid() {
		return Config{}, fmt.Errorf("%w: no loss configured", ErrUnsupportedFunction)
	}
	switch {
	case c.Epochs < 0:
		return Config{}, fmt.Errorf("%w: epochs %d", ErrInvalidConfig, c.Epochs)
	case c.Epochs == 0:
		out.Epochs = DefaultEpochs
	}
	switch {
	case c.LearningRate < 0 || math.IsNaN(c.LearningRate) || math.IsInf(c.LearningRate, 0):
		return Config{}, fmt.Errorf("%w: learning rate %v", ErrInvalidConfig, c.LearningRate)
	case c.LearningRate == 0:
		out.LearningRate = DefaultLearningRate
	}
	if c.Cutoff < 0 || math.IsNaN(c.Cutoff) {
		return Config{}, fmt.Errorf("%w: cutoff %v", ErrInvalidConfig, c.Cutoff)
	}
	switch {
	case c.InitBound < 0 || math.IsNaN(c.InitBound) || math.IsInf(c.InitBound, 0):
		return Config{}, fmt.Errorf("%w: init bound %v", ErrInvalidConfig, c.InitBound)
	case c.InitBound == 0:
		out.InitBound = DefaultInitBound
	}
	return
}
