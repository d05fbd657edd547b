package dendrite

import (
	"github.com/emicklei/dot"
	. "github.com/stevegt/goadapt"
)

// Dot returns a graphviz rendering of the network.  Each neuron is a
// node labeled with its activation and bias, and each weight is an
// edge labeled with its value.
func (n *Network) Dot() (out string, err error) {
	n.lock.Lock()
	defer n.lock.Unlock()
	if n.state != Ready {
		return "", ErrNotInitialized
	}

	g := dot.NewGraph(dot.Directed)
	g.Attr("rankdir", "LR")
	nodes := make([][]dot.Node, len(n.layers))
	for l, layer := range n.layers {
		for j, neuron := range layer {
			id := nodeID(l, j)
			label := Spf("x%d", j)
			if l > 0 {
				label = Spf("%s %s b=%.3f", id, neuron.activation, neuron.bias)
			}
			nodes[l] = append(nodes[l], g.Node(id).Label(label))
		}
	}
	for l := 1; l < len(n.layers); l++ {
		for j, neuron := range n.layers[l] {
			for k, weight := range neuron.weights {
				g.Edge(nodes[l-1][k], nodes[l][j], Spf("%.3f", weight))
			}
		}
	}
	return g.String(), nil
}

// nodeID names the graphviz node for neuron j of layer l.
func nodeID(l, j int) string {
	return Spf("l%dn%d", l, j)
}
