package dendrite

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	. "github.com/stevegt/goadapt"
)

// State is the lifecycle state of a Network.
type State int

const (
	// Uninitialized networks have a topology but no neurons yet.
	Uninitialized State = iota
	// Ready networks are bound to a dataset and can be trained.
	Ready
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	}
	return Spf("State(%d)", int(s))
}

// Network is a fully connected feed-forward neural network trained
// by per-sample stochastic gradient descent.  Layer 0 is a
// pass-through input layer, followed by the hidden layers and then
// the output layer.  Input and output widths are taken from the
// dataset given to Initialize.
type Network struct {
	cfg Config
	// activations holds one activation per layer; the input layer's
	// is always Linear
	activations []Activation
	rng         *rand.Rand
	layers      [][]*Neuron
	xData       [][]float64
	yData       [][]float64
	state       State
	lock        sync.Mutex
}

// NewNetwork creates an uninitialized network from the given config.
// Zero-valued Epochs, LearningRate, and InitBound take their
// defaults.
func NewNetwork(cfg Config) (net *Network, err error) {
	cfg, err = cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	net = &Network{
		cfg:         cfg,
		activations: make([]Activation, len(cfg.HiddenLayers)+2),
		rng:         rand.New(rand.NewSource(cfg.Seed)),
	}
	net.activations[0] = Linear
	for i := 1; i < len(net.activations); i++ {
		net.activations[i] = cfg.Activation
	}
	return
}

// Config returns a copy of the network's config, with defaults
// applied.
func (n *Network) Config() Config {
	n.lock.Lock()
	defer n.lock.Unlock()
	cfg := n.cfg
	cfg.HiddenLayers = append([]int{}, n.cfg.HiddenLayers...)
	return cfg
}

// State returns the network's lifecycle state.
func (n *Network) State() State {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.state
}

// LayerSizes returns the neuron count of every layer, input layer
// first.  The input and output widths are zero until the network is
// initialized.
func (n *Network) LayerSizes() (sizes []int) {
	n.lock.Lock()
	defer n.lock.Unlock()
	if n.state == Ready {
		for _, layer := range n.layers {
			sizes = append(sizes, len(layer))
		}
		return
	}
	return n.layerSizes(0, 0)
}

func (n *Network) layerSizes(inputCount, outputCount int) (sizes []int) {
	sizes = append(sizes, inputCount)
	sizes = append(sizes, n.cfg.HiddenLayers...)
	sizes = append(sizes, outputCount)
	return
}

// Initialize binds the network to a dataset, sizes the input and
// output layers to match it, and draws fresh random weights and
// biases for every neuron past the input layer.  Calling it again
// rebinds the data and re-randomizes the parameters.  On error the
// network is left as it was.
func (n *Network) Initialize(xData, yData [][]float64) (err error) {
	n.lock.Lock()
	defer n.lock.Unlock()

	err = checkDataset(xData, yData)
	if err != nil {
		return
	}
	sizes := n.layerSizes(len(xData[0]), len(yData[0]))
	layers := make([][]*Neuron, len(sizes))

	// the input layer passes each feature through unchanged
	layers[0] = make([]*Neuron, sizes[0])
	for i := range layers[0] {
		layers[0][i], err = NewNeuron([]float64{1}, 0, Linear)
		Assert(err == nil, err)
	}

	for l := 1; l < len(sizes); l++ {
		layers[l] = make([]*Neuron, sizes[l])
		for j := range layers[l] {
			weights := make([]float64, sizes[l-1])
			for k := range weights {
				weights[k] = n.uniform()
			}
			layers[l][j], err = NewNeuron(weights, n.uniform(), n.activations[l])
			Assert(err == nil, err)
		}
	}

	n.layers = layers
	n.xData = copyRows(xData)
	n.yData = copyRows(yData)
	n.state = Ready
	Debug("initialized network: layer sizes %v, %d samples\n", sizes, len(xData))
	return nil
}

// checkDataset verifies that xData and yData are non-empty, have the
// same number of rows, and that each has rows of a single non-zero
// width.
func checkDataset(xData, yData [][]float64) error {
	if len(xData) == 0 || len(yData) == 0 {
		return fmt.Errorf("%w: %d input rows, %d target rows", ErrEmptyDataset, len(xData), len(yData))
	}
	if len(xData) != len(yData) {
		return fmt.Errorf("%w: %d input rows, %d target rows", ErrDimensionMismatch, len(xData), len(yData))
	}
	sets := []struct {
		name string
		rows [][]float64
	}{{"input", xData}, {"target", yData}}
	for _, set := range sets {
		name, rows := set.name, set.rows
		width := len(rows[0])
		if width == 0 {
			return fmt.Errorf("%w: %s row 0 is empty", ErrDimensionMismatch, name)
		}
		for i, row := range rows {
			if len(row) != width {
				return fmt.Errorf("%w: %s row %d has width %d, want %d", ErrDimensionMismatch, name, i, len(row), width)
			}
		}
	}
	return nil
}

func copyRows(rows [][]float64) (out [][]float64) {
	out = make([][]float64, len(rows))
	for i, row := range rows {
		out[i] = append([]float64{}, row...)
	}
	return
}

// uniform returns a random value in [-InitBound, InitBound).
func (n *Network) uniform() float64 {
	return (n.rng.Float64()*2 - 1) * n.cfg.InitBound
}

// SetLayerActivation sets the activation of every neuron in the given
// layer.  Layer 0 is the input layer and can't be changed; the output
// layer is len(LayerSizes())-1.  It may be called before or after
// Initialize, and survives re-initialization.
func (n *Network) SetLayerActivation(layer int, a Activation) error {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.setLayerActivation(layer, a)
}

// SetOutputActivation sets the activation of the output layer.
func (n *Network) SetOutputActivation(a Activation) error {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.setLayerActivation(len(n.activations)-1, a)
}

func (n *Network) setLayerActivation(layer int, a Activation) (err error) {
	if layer < 1 || layer >= len(n.activations) {
		return fmt.Errorf("%w: layer %d, want 1 through %d", ErrInvalidIndex, layer, len(n.activations)-1)
	}
	if !a.Valid() {
		return fmt.Errorf("%w: activation %v has no derivative", ErrUnsupportedFunction, a)
	}
	n.activations[layer] = a
	if n.state == Ready {
		for _, neuron := range n.layers[layer] {
			err = neuron.SetActivation(a)
			Assert(err == nil, err)
		}
	}
	return nil
}

// LayerActivation returns the activation used by the given layer.
func (n *Network) LayerActivation(layer int) (a Activation, err error) {
	n.lock.Lock()
	defer n.lock.Unlock()
	if layer < 0 || layer >= len(n.activations) {
		return Activation{}, fmt.Errorf("%w: layer %d of %d", ErrInvalidIndex, layer, len(n.activations))
	}
	return n.activations[layer], nil
}

// neuron returns the neuron at the given position.
func (n *Network) neuron(layer, index int) (neuron *Neuron, err error) {
	if n.state != Ready {
		return nil, ErrNotInitialized
	}
	if layer < 0 || layer >= len(n.layers) {
		return nil, fmt.Errorf("%w: layer %d of %d", ErrInvalidIndex, layer, len(n.layers))
	}
	if index < 0 || index >= len(n.layers[layer]) {
		return nil, fmt.Errorf("%w: neuron %d of %d in layer %d", ErrInvalidIndex, index, len(n.layers[layer]), layer)
	}
	return n.layers[layer][index], nil
}

// Params returns a copy of the weights and the bias of one neuron.
func (n *Network) Params(layer, index int) (weights []float64, bias float64, err error) {
	n.lock.Lock()
	defer n.lock.Unlock()
	neuron, err := n.neuron(layer, index)
	if err != nil {
		return
	}
	return neuron.Weights(), neuron.Bias(), nil
}

// SetParams replaces the weights and bias of one neuron past the
// input layer.  The number of weights can't change.
func (n *Network) SetParams(layer, index int, weights []float64, bias float64) (err error) {
	n.lock.Lock()
	defer n.lock.Unlock()
	neuron, err := n.neuron(layer, index)
	if err != nil {
		return
	}
	if layer == 0 {
		return fmt.Errorf("%w: input layer has no parameters", ErrInvalidIndex)
	}
	if len(weights) != neuron.NumWeights() {
		return fmt.Errorf("%w: neuron has %d weights, got %d", ErrDimensionMismatch, neuron.NumWeights(), len(weights))
	}
	neuron.SetWeights(weights)
	neuron.SetBias(bias)
	return nil
}

// Forward runs one input vector through the network and returns the
// output layer's values, in neuron order.
func (n *Network) Forward(input []float64) (prediction []float64, err error) {
	n.lock.Lock()
	defer n.lock.Unlock()
	outputs, err := n.forward(input)
	if err != nil {
		return
	}
	return outputs[len(outputs)-1], nil
}

// forward returns the outputs of every layer, input layer first.
// Each layer reads only the outputs the previous layer produced
// during this same call.
func (n *Network) forward(input []float64) (outputs [][]float64, err error) {
	if n.state != Ready {
		return nil, ErrNotInitialized
	}
	if len(input) != len(n.layers[0]) {
		return nil, fmt.Errorf("%w: network has %d inputs, got %d", ErrDimensionMismatch, len(n.layers[0]), len(input))
	}
	outputs = make([][]float64, len(n.layers))
	outputs[0] = make([]float64, len(input))
	for i, neuron := range n.layers[0] {
		outputs[0][i], err = neuron.Forward(input[i : i+1])
		if err != nil {
			return nil, err
		}
	}
	for l := 1; l < len(n.layers); l++ {
		outputs[l] = make([]float64, len(n.layers[l]))
		for j, neuron := range n.layers[l] {
			outputs[l][j], err = neuron.Forward(outputs[l-1])
			if err != nil {
				return nil, err
			}
		}
	}
	return
}

// Gradient holds the partial derivatives of one sample's loss with
// respect to every weight and bias.  It is indexed like the network's
// layers; the input layer has no parameters, so index 0 is empty.
type Gradient struct {
	// Weights[l][j][k] is the derivative for the weight connecting
	// neuron k of layer l-1 to neuron j of layer l.
	Weights [][][]float64
	// Biases[l][j] is the derivative for the bias of neuron j of
	// layer l, which is also that neuron's node gradient.
	Biases [][]float64
}

// Gradient runs a forward pass for one sample and returns the loss
// gradient without changing any parameters.
func (n *Network) Gradient(input, target []float64) (g *Gradient, err error) {
	n.lock.Lock()
	defer n.lock.Unlock()
	err = n.checkTarget(target)
	if err != nil {
		return
	}
	outputs, err := n.forward(input)
	if err != nil {
		return
	}
	return n.gradient(outputs, target)
}

func (n *Network) checkTarget(target []float64) error {
	if n.state != Ready {
		return ErrNotInitialized
	}
	outputCount := len(n.layers[len(n.layers)-1])
	if len(target) != outputCount {
		return fmt.Errorf("%w: network has %d outputs, got %d targets", ErrDimensionMismatch, outputCount, len(target))
	}
	return nil
}

// gradient backpropagates the loss of one sample, given the layer
// outputs from that sample's forward pass.  All node gradients are
// computed from the current weights before any of them change.
func (n *Network) gradient(outputs [][]float64, target []float64) (g *Gradient, err error) {
	Assert(len(outputs) == len(n.layers), "%d layer outputs for %d layers", len(outputs), len(n.layers))
	last := len(n.layers) - 1
	Assert(len(outputs[last]) == len(target), "%d outputs for %d targets", len(outputs[last]), len(target))
	g = &Gradient{
		Weights: make([][][]float64, len(n.layers)),
		Biases:  make([][]float64, len(n.layers)),
	}

	// sensitivity[j] is dLoss/dOutput for neuron j of the layer being
	// processed.  For the output layer it comes from the loss.
	sensitivity := make([]float64, len(target))
	for j, prediction := range outputs[last] {
		sensitivity[j] = n.cfg.Loss.D1(prediction, target[j])
	}

	for l := last; l > 0; l-- {
		inputs := outputs[l-1]
		layer := n.layers[l]
		Assert(len(sensitivity) == len(layer), "layer %d: %d sensitivities for %d neurons", l, len(sensitivity), len(layer))
		g.Weights[l] = make([][]float64, len(layer))
		g.Biases[l] = make([]float64, len(layer))
		upstream := make([]float64, len(inputs))
		for j, neuron := range layer {
			d, err := neuron.Backward(inputs)
			if err != nil {
				return nil, err
			}
			node := sensitivity[j] * d
			g.Biases[l][j] = node
			g.Weights[l][j] = make([]float64, len(inputs))
			for k, input := range inputs {
				g.Weights[l][j][k] = node * input
				// sum over every neuron of this layer
				upstream[k] += node * neuron.weights[k]
			}
		}
		sensitivity = upstream
	}
	return
}

// apply takes one gradient descent step.
func (n *Network) apply(g *Gradient) {
	Assert(len(g.Weights) == len(n.layers) && len(g.Biases) == len(n.layers), "gradient shape doesn't match network")
	rate := n.cfg.LearningRate
	for l := 1; l < len(n.layers); l++ {
		Assert(len(g.Biases[l]) == len(n.layers[l]), "layer %d: %d bias gradients for %d neurons", l, len(g.Biases[l]), len(n.layers[l]))
		for j, neuron := range n.layers[l] {
			neuron.UpdateBias(rate * g.Biases[l][j])
			for k, dw := range g.Weights[l][j] {
				err := neuron.UpdateWeight(rate*dw, k)
				Assert(err == nil, err)
			}
		}
	}
}

// Learn runs one backpropagation iteration: a forward pass for the
// given sample, then a weight and bias update.  It returns the
// sample's loss as computed before the update.
func (n *Network) Learn(input, target []float64) (loss float64, err error) {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.learn(input, target)
}

func (n *Network) learn(input, target []float64) (loss float64, err error) {
	err = n.checkTarget(target)
	if err != nil {
		return
	}
	outputs, err := n.forward(input)
	if err != nil {
		return
	}
	loss, err = n.cfg.Loss.Compute(outputs[len(outputs)-1], target)
	if err != nil {
		return
	}
	g, err := n.gradient(outputs, target)
	if err != nil {
		return
	}
	n.apply(g)
	return
}

// Evaluate returns the mean loss of the network over the given
// samples without training.
func (n *Network) Evaluate(xData, yData [][]float64) (loss float64, err error) {
	n.lock.Lock()
	defer n.lock.Unlock()
	if n.state != Ready {
		return 0, ErrNotInitialized
	}
	err = checkDataset(xData, yData)
	if err != nil {
		return
	}
	for i := range xData {
		err = n.checkTarget(yData[i])
		if err != nil {
			return 0, err
		}
		outputs, err := n.forward(xData[i])
		if err != nil {
			return 0, err
		}
		sampleLoss, err := n.cfg.Loss.Compute(outputs[len(outputs)-1], yData[i])
		if err != nil {
			return 0, err
		}
		loss += sampleLoss
	}
	return loss / float64(len(xData)), nil
}

// Train trains the network on the bound dataset.  See TrainContext.
func (n *Network) Train() (losses []float64, err error) {
	return n.TrainContext(context.Background())
}

// TrainContext trains the network on the bound dataset for up to
// Epochs epochs, stopping early once an epoch's mean loss is at or
// below a non-zero Cutoff.  Each sample gets its own forward pass
// and update.  It returns the mean loss of every completed epoch.  If
// ctx is done before an epoch starts, training stops and ctx.Err()
// is returned along with the losses so far.
func (n *Network) TrainContext(ctx context.Context) (losses []float64, err error) {
	n.lock.Lock()
	defer n.lock.Unlock()
	if n.state != Ready {
		return nil, ErrNotInitialized
	}

	order := make([]int, len(n.xData))
	for i := range order {
		order[i] = i
	}

	for epoch := 1; epoch <= n.cfg.Epochs; epoch++ {
		err = ctx.Err()
		if err != nil {
			return
		}
		if n.cfg.Shuffle {
			n.rng.Shuffle(len(order), func(i, j int) {
				order[i], order[j] = order[j], order[i]
			})
		}
		total := 0.0
		for _, i := range order {
			loss, err := n.learn(n.xData[i], n.yData[i])
			if err != nil {
				return losses, err
			}
			total += loss
		}
		mean := total / float64(len(order))
		losses = append(losses, mean)
		n.report(epoch, mean)
		if n.cfg.Cutoff > 0 && mean <= n.cfg.Cutoff {
			break
		}
	}
	return losses, nil
}

func (n *Network) report(epoch int, loss float64) {
	if n.cfg.Verbose {
		Pf("epoch %d loss %f\n", epoch, loss)
	}
	if n.cfg.Reporter != nil {
		n.cfg.Reporter(epoch, loss)
	}
}
