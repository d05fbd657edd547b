package dendrite

import (
	"context"
	"errors"
	"strings"
	"testing"

	. "github.com/stevegt/goadapt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
)

var (
	truthX   = [][]float64{{0, 0}, {0, 1}, {1, 0}, {1, 1}}
	truthAnd = [][]float64{{0}, {0}, {0}, {1}}
)

func newNet(t *testing.T, cfg Config) *Network {
	net, err := NewNetwork(cfg)
	require.NoError(t, err)
	return net
}

func TestInputLayerPassesThrough(t *testing.T) {
	net := newNet(t, Config{Activation: Linear, Loss: MSE})
	require.NoError(t, net.Initialize([][]float64{{1, 2}}, [][]float64{{3}}))
	assert.Equal(t, []int{2, 1}, net.LayerSizes())

	w, b, err := net.Params(0, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, w)
	assert.Equal(t, 0.0, b)

	require.NoError(t, net.SetParams(1, 0, []float64{1, 1}, 0))
	y, err := net.Forward([]float64{2, 3})
	require.NoError(t, err)
	assert.Equal(t, []float64{5}, y)
}

func TestInitialize(t *testing.T) {
	net := newNet(t, Config{HiddenLayers: []int{3, 2}, Activation: Tanh, Loss: MSE, Seed: 7})
	require.NoError(t, net.Initialize(truthX, truthAnd))
	assert.Equal(t, Ready, net.State())
	assert.Equal(t, []int{2, 3, 2, 1}, net.LayerSizes())

	for l, size := range net.LayerSizes()[1:] {
		for j := 0; j < size; j++ {
			w, b, err := net.Params(l+1, j)
			require.NoError(t, err)
			for _, v := range append(w, b) {
				Tassert(t, v >= -1 && v < 1, "layer %d neuron %d: %v", l+1, j, v)
			}
		}
	}

	// same seed, same parameters
	net2 := newNet(t, Config{HiddenLayers: []int{3, 2}, Activation: Tanh, Loss: MSE, Seed: 7})
	require.NoError(t, net2.Initialize(truthX, truthAnd))
	w1, b1, err := net.Params(2, 1)
	require.NoError(t, err)
	w2, b2, err := net2.Params(2, 1)
	require.NoError(t, err)
	assert.Equal(t, w1, w2)
	assert.Equal(t, b1, b2)
}

func TestInitializeErrors(t *testing.T) {
	net := newNet(t, Config{Activation: Sigmoid, Loss: MSE})
	err := net.Initialize(nil, nil)
	Tassert(t, errors.Is(err, ErrEmptyDataset), err)
	Tassert(t, net.State() == Uninitialized, net.State())

	cases := []struct {
		x, y [][]float64
	}{
		{[][]float64{{1}, {2}}, [][]float64{{1}}},
		{[][]float64{{}}, [][]float64{{1}}},
		{[][]float64{{1}}, [][]float64{{}}},
		{[][]float64{{1, 2}, {3}}, [][]float64{{1}, {2}}},
		{[][]float64{{1}, {2}}, [][]float64{{1}, {2, 3}}},
	}
	for i, c := range cases {
		err = net.Initialize(c.x, c.y)
		Tassert(t, errors.Is(err, ErrDimensionMismatch), "case %d: %v", i, err)
	}
	Tassert(t, net.State() == Uninitialized, net.State())

	// a failed re-initialization keeps the old binding
	require.NoError(t, net.Initialize(truthX, truthAnd))
	err = net.Initialize([][]float64{{1}}, nil)
	Tassert(t, errors.Is(err, ErrEmptyDataset), err)
	assert.Equal(t, Ready, net.State())
	assert.Equal(t, []int{2, 1}, net.LayerSizes())
}

func TestReinitialize(t *testing.T) {
	net := newNet(t, Config{HiddenLayers: []int{2}, Activation: Sigmoid, Loss: MSE, Seed: 3})
	require.NoError(t, net.Initialize(truthX, truthAnd))
	w1, _, err := net.Params(1, 0)
	require.NoError(t, err)

	require.NoError(t, net.Initialize([][]float64{{1, 2, 3}}, [][]float64{{1, 0}}))
	assert.Equal(t, []int{3, 2, 2}, net.LayerSizes())
	w2, _, err := net.Params(1, 0)
	require.NoError(t, err)
	assert.NotEqual(t, len(w1), len(w2))

	_, err = net.Forward([]float64{1, 2})
	Tassert(t, errors.Is(err, ErrDimensionMismatch), err)
}

func TestNotInitialized(t *testing.T) {
	net := newNet(t, Config{Activation: Sigmoid, Loss: MSE})
	_, err := net.Forward([]float64{1})
	Tassert(t, errors.Is(err, ErrNotInitialized), err)
	_, err = net.Learn([]float64{1}, []float64{1})
	Tassert(t, errors.Is(err, ErrNotInitialized), err)
	_, err = net.Gradient([]float64{1}, []float64{1})
	Tassert(t, errors.Is(err, ErrNotInitialized), err)
	_, err = net.Train()
	Tassert(t, errors.Is(err, ErrNotInitialized), err)
	_, err = net.Evaluate(truthX, truthAnd)
	Tassert(t, errors.Is(err, ErrNotInitialized), err)
	_, _, err = net.Params(1, 0)
	Tassert(t, errors.Is(err, ErrNotInitialized), err)
	_, err = net.Dot()
	Tassert(t, errors.Is(err, ErrNotInitialized), err)
}

func TestParamsErrors(t *testing.T) {
	net := newNet(t, Config{HiddenLayers: []int{2}, Activation: Sigmoid, Loss: MSE})
	require.NoError(t, net.Initialize(truthX, truthAnd))
	for _, pos := range [][2]int{{-1, 0}, {3, 0}, {1, 2}, {2, -1}} {
		_, _, err := net.Params(pos[0], pos[1])
		Tassert(t, errors.Is(err, ErrInvalidIndex), "%v: %v", pos, err)
	}
	err := net.SetParams(0, 0, []float64{2}, 1)
	Tassert(t, errors.Is(err, ErrInvalidIndex), err)
	err = net.SetParams(1, 0, []float64{1, 2, 3}, 1)
	Tassert(t, errors.Is(err, ErrDimensionMismatch), err)
}

func TestLearnTargetMismatch(t *testing.T) {
	net := newNet(t, Config{HiddenLayers: []int{2}, Activation: Sigmoid, Loss: MSE})
	require.NoError(t, net.Initialize(truthX, truthAnd))
	before, _, err := net.Params(2, 0)
	require.NoError(t, err)
	_, err = net.Learn([]float64{0, 1}, []float64{0, 1})
	Tassert(t, errors.Is(err, ErrDimensionMismatch), err)
	_, err = net.Learn([]float64{0, 1, 1}, []float64{1})
	Tassert(t, errors.Is(err, ErrDimensionMismatch), err)
	after, _, err := net.Params(2, 0)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

// mazurNet returns the 2-2-2 sigmoid network from Matt Mazur's
// worked backpropagation example, bound to its single sample.
func mazurNet(t *testing.T, loss Loss, rate float64) *Network {
	net := newNet(t, Config{
		HiddenLayers: []int{2},
		Activation:   Sigmoid,
		Loss:         loss,
		LearningRate: rate,
		Epochs:       1,
	})
	require.NoError(t, net.Initialize([][]float64{{0.05, 0.1}}, [][]float64{{0.01, 0.99}}))
	require.NoError(t, net.SetParams(1, 0, []float64{0.15, 0.2}, 0.35))
	require.NoError(t, net.SetParams(1, 1, []float64{0.25, 0.3}, 0.35))
	require.NoError(t, net.SetParams(2, 0, []float64{0.4, 0.45}, 0.6))
	require.NoError(t, net.SetParams(2, 1, []float64{0.5, 0.55}, 0.6))
	return net
}

func checkMazur(t *testing.T, net *Network, loss float64) {
	assert.InDelta(t, 0.2983711087600027, loss, 1e-12)
	want := []struct {
		layer, index int
		weights      []float64
		bias         float64
	}{
		{1, 0, []float64{0.1497807161327628, 0.19956143226552567}, 0.3456143226552565},
		{1, 1, []float64{0.24975114363236958, 0.29950228726473915}, 0.3450228726473914},
		{2, 0, []float64{0.35891647971788465, 0.4086661860762334}, 0.5307507191857215},
		{2, 1, []float64{0.5113012702387375, 0.5613701211079891}, 0.6190491182582781},
	}
	for _, w := range want {
		weights, bias, err := net.Params(w.layer, w.index)
		require.NoError(t, err)
		assert.InDeltaSlice(t, w.weights, weights, 1e-9, "layer %d neuron %d", w.layer, w.index)
		assert.InDelta(t, w.bias, bias, 1e-9, "layer %d neuron %d", w.layer, w.index)
	}
}

// Every update in a step is computed from the weights as they were
// before the step.
func TestLearnMazur(t *testing.T) {
	halfSquared, err := CustomLoss("half-squared",
		func(p, a []float64) float64 { return sse(p, a) / 2 },
		func(p, a float64) float64 { return p - a })
	require.NoError(t, err)

	net := mazurNet(t, halfSquared, 0.5)
	y, err := net.Forward([]float64{0.05, 0.1})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.7513650695523157, 0.7729284653214625}, y, 1e-12)

	loss, err := net.Learn([]float64{0.05, 0.1}, []float64{0.01, 0.99})
	require.NoError(t, err)
	checkMazur(t, net, loss)
}

// The built-in MSE derivative is twice the half-squared one, so half
// the learning rate takes the same step.
func TestTrainMazurMSE(t *testing.T) {
	net := mazurNet(t, MSE, 0.25)
	losses, err := net.Train()
	require.NoError(t, err)
	require.Len(t, losses, 1)
	checkMazur(t, net, losses[0])
}

// flatParams returns every weight and bias past the input layer.
func flatParams(t *testing.T, net *Network) (params []float64) {
	sizes := net.LayerSizes()
	for l := 1; l < len(sizes); l++ {
		for j := 0; j < sizes[l]; j++ {
			w, b, err := net.Params(l, j)
			require.NoError(t, err)
			params = append(params, w...)
			params = append(params, b)
		}
	}
	return
}

func setFlatParams(t *testing.T, net *Network, params []float64) {
	sizes := net.LayerSizes()
	i := 0
	for l := 1; l < len(sizes); l++ {
		for j := 0; j < sizes[l]; j++ {
			w := append([]float64{}, params[i:i+sizes[l-1]]...)
			i += sizes[l-1]
			require.NoError(t, net.SetParams(l, j, w, params[i]))
			i++
		}
	}
}

func flatGradient(g *Gradient) (out []float64) {
	for l := 1; l < len(g.Weights); l++ {
		for j := range g.Weights[l] {
			out = append(out, g.Weights[l][j]...)
			out = append(out, g.Biases[l][j])
		}
	}
	return
}

// Backpropagated gradients must match numerical gradients of the
// loss.  Two outputs fed by shared hidden neurons exercise the sum
// over downstream neurons.
func TestGradientNumerical(t *testing.T) {
	sumSquared, err := CustomLoss("sse", sse, mseD1)
	require.NoError(t, err)
	cases := []struct {
		hidden []int
		y      []float64
	}{
		{[]int{1}, []float64{0.75}},
		{[]int{1}, []float64{0.25, -0.5}},
		{[]int{3}, []float64{0.25, -0.5}},
		{[]int{3, 2}, []float64{0.25, -0.5, 0.1}},
	}
	for _, c := range cases {
		hidden, y := c.hidden, c.y
		net := newNet(t, Config{HiddenLayers: hidden, Activation: Tanh, Loss: sumSquared, Seed: 5})
		x := []float64{0.3, -0.6}
		require.NoError(t, net.Initialize([][]float64{x}, [][]float64{y}))
		require.NoError(t, net.SetOutputActivation(Sigmoid))

		params := flatParams(t, net)
		g, err := net.Gradient(x, y)
		require.NoError(t, err)
		got := flatGradient(g)

		f := func(p []float64) float64 {
			setFlatParams(t, net, p)
			loss, err := net.Evaluate([][]float64{x}, [][]float64{y})
			require.NoError(t, err)
			return loss
		}
		want := fd.Gradient(nil, f, params, &fd.Settings{Formula: fd.Central})
		setFlatParams(t, net, params)

		require.Equal(t, len(want), len(got))
		assert.InDeltaSlice(t, want, got, 1e-6, "hidden %v", hidden)

		// Gradient doesn't move anything
		assert.Equal(t, params, flatParams(t, net))
	}
}

func TestTrainAndDefaults(t *testing.T) {
	net := newNet(t, Config{HiddenLayers: []int{2}, Activation: Sigmoid, Loss: MSE, Seed: 1})
	require.NoError(t, net.Initialize(truthX, truthAnd))
	losses, err := net.Train()
	require.NoError(t, err)
	require.Len(t, losses, DefaultEpochs)
	Tassert(t, losses[len(losses)-1] < losses[0], "loss went from %v to %v", losses[0], losses[len(losses)-1])
}

func TestTrainAnd(t *testing.T) {
	net := newNet(t, Config{
		HiddenLayers: []int{2},
		Activation:   Sigmoid,
		Loss:         MSE,
		LearningRate: 0.5,
		Epochs:       2000,
		Seed:         1,
	})
	require.NoError(t, net.Initialize(truthX, truthAnd))
	losses, err := net.Train()
	require.NoError(t, err)
	require.Len(t, losses, 2000)
	first, last := losses[0], losses[len(losses)-1]
	Tassert(t, last < first, "loss went from %v to %v", first, last)
	Tassert(t, last < 0.1, "final loss %v", last)

	loss, err := net.Evaluate(truthX, truthAnd)
	require.NoError(t, err)
	Tassert(t, loss < first, "evaluated loss %v", loss)
}

func TestTrainCutoff(t *testing.T) {
	net := newNet(t, Config{
		Activation:   Linear,
		Loss:         MSE,
		LearningRate: 0.1,
		Cutoff:       0.01,
		Seed:         1,
	})
	require.NoError(t, net.Initialize([][]float64{{0}, {1}}, [][]float64{{0}, {1}}))
	losses, err := net.Train()
	require.NoError(t, err)
	require.NotEmpty(t, losses)
	Tassert(t, len(losses) < DefaultEpochs, "ran all %d epochs", len(losses))
	Tassert(t, losses[len(losses)-1] <= 0.01, losses[len(losses)-1])
	for i, loss := range losses[:len(losses)-1] {
		Tassert(t, loss > 0.01, "epoch %d loss %v", i+1, loss)
	}
}

func TestTrainContextCanceled(t *testing.T) {
	net := newNet(t, Config{HiddenLayers: []int{2}, Activation: Sigmoid, Loss: MSE})
	require.NoError(t, net.Initialize(truthX, truthAnd))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	losses, err := net.TrainContext(ctx)
	Tassert(t, errors.Is(err, context.Canceled), err)
	Tassert(t, len(losses) == 0, losses)
}

func TestTrainReporter(t *testing.T) {
	var epochs []int
	var reported []float64
	net := newNet(t, Config{
		HiddenLayers: []int{2},
		Activation:   Sigmoid,
		Loss:         MAE,
		Epochs:       5,
		Reporter: func(epoch int, loss float64) {
			epochs = append(epochs, epoch)
			reported = append(reported, loss)
		},
	})
	require.NoError(t, net.Initialize(truthX, truthAnd))
	losses, err := net.Train()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, epochs)
	assert.Equal(t, losses, reported)
}

func TestTrainShuffleDeterministic(t *testing.T) {
	run := func() []float64 {
		net := newNet(t, Config{
			HiddenLayers: []int{3},
			Activation:   Tanh,
			Loss:         MSE,
			Epochs:       20,
			Shuffle:      true,
			Seed:         42,
		})
		require.NoError(t, net.Initialize(truthX, truthAnd))
		losses, err := net.Train()
		require.NoError(t, err)
		return losses
	}
	assert.Equal(t, run(), run())
}

func TestSetLayerActivation(t *testing.T) {
	net := newNet(t, Config{HiddenLayers: []int{1}, Activation: Sigmoid, Loss: MSE})
	for _, layer := range []int{0, 3, -1} {
		err := net.SetLayerActivation(layer, Tanh)
		Tassert(t, errors.Is(err, ErrInvalidIndex), "layer %d: %v", layer, err)
	}
	err := net.SetLayerActivation(1, Activation{})
	Tassert(t, errors.Is(err, ErrUnsupportedFunction), err)

	// set before Initialize, kept by the new neurons
	require.NoError(t, net.SetLayerActivation(1, Linear))
	require.NoError(t, net.Initialize([][]float64{{1}}, [][]float64{{1}}))
	require.NoError(t, net.SetParams(1, 0, []float64{2}, 1))
	require.NoError(t, net.SetParams(2, 0, []float64{3}, -1))
	y, err := net.Forward([]float64{2})
	require.NoError(t, err)
	assert.InDelta(t, sigmoid(3*5-1), y[0], 1e-12)

	// set after Initialize, applied in place
	require.NoError(t, net.SetOutputActivation(ReLU))
	y, err = net.Forward([]float64{2})
	require.NoError(t, err)
	assert.Equal(t, []float64{14}, y)

	a, err := net.LayerActivation(2)
	require.NoError(t, err)
	assert.Equal(t, KindReLU, a.Kind())
	a, err = net.LayerActivation(0)
	require.NoError(t, err)
	assert.Equal(t, KindLinear, a.Kind())
}

func TestDot(t *testing.T) {
	net := newNet(t, Config{HiddenLayers: []int{2}, Activation: Sigmoid, Loss: MSE})
	require.NoError(t, net.Initialize(truthX, truthAnd))
	out, err := net.Dot()
	require.NoError(t, err)
	for _, want := range []string{"digraph", "rankdir", "l1n0", "l2n0", "sigmoid"} {
		Tassert(t, strings.Contains(out, want), "missing %q in\n%s", want, out)
	}
}
