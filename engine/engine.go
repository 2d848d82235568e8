// Package engine computes the forward pass and the one-layer-at-a-time backward
// pass of a network where every layer carries a single scalar.
package engine

import (
	"github.com/gorgonia/nnviz/network"
	"gorgonia.org/vecf32"
)

// nodes returns the node count of layer i. The output layer (i == len(layers)) has a single node.
func nodes(layers []network.Layer, i int) int {
	if i < len(layers) {
		return layers[i].Nodes
	}
	return 1
}

// fanOut is what layer i hands to layer i+1.
func fanOut(layers []network.Layer, i int, a float32, policy FanOut) float32 {
	if policy == Collapse {
		return a
	}
	return a * float32(nodes(layers, i))
}

// Forward runs the forward pass. It does not mutate anything. Calling it twice with the same
// arguments yields identical traces.
//
// Layer 0 sees the sum of the raw inputs. Every following layer sees the previous
// activation, fanned out according to conf.FanOut. Loss is 0.5*(predicted-target)^2.
func Forward(layers []network.Layer, p network.ParameterSet, conf Config) network.Trace {
	n := len(layers) + 1
	tr := network.Trace{
		Sums:           make([]float32, n),
		PreActivations: make([]float32, n),
		Activations:    make([]float32, n),
	}

	sum := vecf32.Sum(p.Inputs)
	for l := 0; l < n; l++ {
		z := p.Weights[l]*sum + p.Biases[l]
		a := Sigmoid.Func(z)
		tr.Sums[l] = sum
		tr.PreActivations[l] = z
		tr.Activations[l] = a
		sum = fanOut(layers, l, a, conf.FanOut)
	}

	tr.Predicted = tr.Activations[n-1]
	diff := tr.Predicted - conf.TargetY
	tr.Loss = 0.5 * diff * diff
	return tr
}

// BackpropLayer computes the error term of layer idx and applies one gradient descent
// step to that layer's weight and bias, in place. It returns the delta so that the caller
// can feed it to layer idx-1. Layers must be processed from the output layer downwards.
//
// For the output layer delta = (predicted-target)*σ'(z). Otherwise
// delta = w[idx+1]*nextDelta*σ'(z), using whatever value w[idx+1] holds now.
// The weight gradient is delta times the layer's summed input. The bias gradient is
// delta times the layer's node count.
func BackpropLayer(idx int, layers []network.Layer, p *network.ParameterSet, tr network.Trace, conf Config, nextDelta float32) float32 {
	z := tr.PreActivations[idx]
	var delta float32
	if idx == len(layers) {
		delta = (tr.Predicted - conf.TargetY) * Sigmoid.Derivative(z)
	} else {
		delta = p.Weights[idx+1] * nextDelta * Sigmoid.Derivative(z)
	}

	gradW := delta * tr.Sums[idx]
	gradB := delta * float32(nodes(layers, idx))

	p.Weights[idx] -= conf.LearningRate * gradW
	p.Biases[idx] -= conf.LearningRate * gradB
	return delta
}
