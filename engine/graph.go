package engine

import (
	"fmt"

	"github.com/gorgonia/nnviz/network"
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

var Float = G.Float32

// GraphTrace is the forward pass and the true gradients of the loss, as computed by
// an expression graph with automatic differentiation.
type GraphTrace struct {
	Activations []float32
	Predicted   float32
	Loss        float32

	WeightGrads []float32 // dLoss/dw for every layer
	BiasGrads   []float32 // dLoss/db for every layer
}

type maebe struct {
	err error
}

func (m *maebe) do(f func() (*G.Node, error)) (retVal *G.Node) {
	if m.err != nil {
		return nil
	}
	if retVal, m.err = f(); m.err != nil {
		m.err = errors.WithStack(m.err)
	}
	return
}

func (m *maebe) fanOut(a *G.Node, n int, policy FanOut) *G.Node {
	if policy == Collapse {
		return a
	}
	return m.do(func() (*G.Node, error) { return G.Mul(a, G.NewConstant(float32(n))) })
}

// GraphForward builds the network as a gorgonia expression graph and runs it. The
// activations match Forward. The gradients are the exact autodiff gradients, which match
// BackpropLayer on the output layer. Interior layers deliberately differ because
// BackpropLayer chains delta through the scalar weight only.
func GraphForward(layers []network.Layer, p network.ParameterSet, conf Config) (retVal GraphTrace, err error) {
	g := G.NewGraph()
	n := len(layers) + 1
	ws := make(G.Nodes, n)
	bs := make(G.Nodes, n)
	as := make(G.Nodes, n)

	var m maebe
	var sum *G.Node
	switch len(p.Inputs) {
	case 1:
		// a vector of shape (1) is scalar-equivalent and does not reduce cleanly
		sum = G.NewScalar(g, Float, G.WithName("Inputs"), G.WithValue(p.Inputs[0]))
	default:
		inputs := make([]float32, len(p.Inputs))
		copy(inputs, p.Inputs)
		x := G.NewVector(g, Float, G.WithShape(len(inputs)), G.WithName("Inputs"),
			G.WithValue(tensor.New(tensor.WithShape(len(inputs)), tensor.WithBacking(inputs))))
		sum = m.do(func() (*G.Node, error) { return G.Sum(x) })
	}
	for l := 0; l < n; l++ {
		ws[l] = G.NewScalar(g, Float, G.WithName(fmt.Sprintf("w%d", l)), G.WithValue(p.Weights[l]))
		bs[l] = G.NewScalar(g, Float, G.WithName(fmt.Sprintf("b%d", l)), G.WithValue(p.Biases[l]))
		w, b, in := ws[l], bs[l], sum
		wx := m.do(func() (*G.Node, error) { return G.Mul(w, in) })
		z := m.do(func() (*G.Node, error) { return G.Add(wx, b) })
		as[l] = m.do(func() (*G.Node, error) { return G.Sigmoid(z) })
		sum = m.fanOut(as[l], nodes(layers, l), conf.FanOut)
	}
	predicted := as[n-1]
	diff := m.do(func() (*G.Node, error) { return G.Sub(predicted, G.NewConstant(conf.TargetY)) })
	sq := m.do(func() (*G.Node, error) { return G.Square(diff) })
	cost := m.do(func() (*G.Node, error) { return G.Mul(sq, G.NewConstant(float32(0.5))) })
	if m.err != nil {
		return retVal, errors.WithMessage(m.err, "Unable to build graph")
	}

	model := append(append(G.Nodes{}, ws...), bs...)
	if _, err = G.Grad(cost, model...); err != nil {
		return retVal, errors.Wrapf(err, "Unable to differentiate graph")
	}

	vm := G.NewTapeMachine(g, G.BindDualValues(model...))
	defer vm.Close()
	if err = vm.RunAll(); err != nil {
		return retVal, errors.Wrapf(err, "Unable to run graph")
	}

	retVal = GraphTrace{
		Activations: make([]float32, n),
		WeightGrads: make([]float32, n),
		BiasGrads:   make([]float32, n),
	}
	for l := 0; l < n; l++ {
		if retVal.Activations[l], err = scalar(as[l].Value()); err != nil {
			return retVal, err
		}
		if retVal.WeightGrads[l], err = grad(ws[l]); err != nil {
			return retVal, err
		}
		if retVal.BiasGrads[l], err = grad(bs[l]); err != nil {
			return retVal, err
		}
	}
	retVal.Predicted = retVal.Activations[n-1]
	if retVal.Loss, err = scalar(cost.Value()); err != nil {
		return retVal, err
	}
	return retVal, nil
}

func grad(n *G.Node) (float32, error) {
	v, err := n.Grad()
	if err != nil {
		return 0, errors.Wrapf(err, "No gradient for %v", n.Name())
	}
	return scalar(v)
}

func scalar(v G.Value) (float32, error) {
	if v == nil {
		return 0, errors.New("nil value")
	}
	switch d := v.Data().(type) {
	case float32:
		return d, nil
	case []float32:
		if len(d) == 1 {
			return d[0], nil
		}
	}
	return 0, errors.Errorf("Expected a float32 scalar. Got %T", v.Data())
}
