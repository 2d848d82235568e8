package network

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	MaxInputs = 3
	MaxLayers = 3
	MaxNodes  = 3

	// fill values used when the parameter arrays grow
	WeightFill float32 = 1
	BiasFill   float32 = 0
	InputFill  float32 = 0
)

// Guard reports whether the store is locked. While it is, every mutator is a no-op.
type Guard interface {
	Locked() bool
}

// Store is the topology and parameter store. It exclusively owns the layer sequence and the ParameterSet.
type Store struct {
	inputCount int
	layers     []Layer
	params     ParameterSet

	guard Guard
}

// NewStore creates a store holding the default topology.
func NewStore(guard Guard) *Store {
	s := &Store{guard: guard}
	s.reset()
	return s
}

func (s *Store) locked() bool { return s.guard != nil && s.guard.Locked() }

// SetGuard replaces the lock guard.
func (s *Store) SetGuard(g Guard) { s.guard = g }

// InputCount returns the number of input nodes.
func (s *Store) InputCount() int { return s.inputCount }

// Layers returns a copy of the hidden layers in depth order.
func (s *Store) Layers() []Layer {
	retVal := make([]Layer, len(s.layers))
	copy(retVal, s.layers)
	return retVal
}

// LastLayer is the index of the output layer, which is also the number of hidden layers.
func (s *Store) LastLayer() int { return len(s.layers) }

// Nodes returns the node count of the layer at index i. The output layer has a single node.
func (s *Store) Nodes(i int) int {
	if i >= 0 && i < len(s.layers) {
		return s.layers[i].Nodes
	}
	return 1
}

// Params returns a deep copy of the parameters.
func (s *Store) Params() ParameterSet { return s.params.Clone() }

// ParamSet returns the live parameters. Only the training engine should write through it.
func (s *Store) ParamSet() *ParameterSet { return &s.params }

// SetInputCount sets the number of inputs, clamped to [1, MaxInputs].
func (s *Store) SetInputCount(n int) bool {
	if s.locked() {
		return false
	}
	s.inputCount = clampInt(n, 1, MaxInputs)
	s.Resize()
	return true
}

// AddLayer appends a layer with MaxNodes nodes.
func (s *Store) AddLayer() bool {
	if s.locked() || len(s.layers) >= MaxLayers {
		return false
	}
	next := 1
	for _, l := range s.layers {
		if n := layerNumber(l.ID); n >= next {
			next = n + 1
		}
	}
	s.layers = append(s.layers, Layer{ID: "L" + strconv.Itoa(next), Nodes: MaxNodes})
	s.Resize()
	return true
}

// RemoveLayer deletes the layer with the given id and renumbers the remaining layers L1..Lk.
// Ids are positional: a caller holding an id across a removal must resolve it again.
func (s *Store) RemoveLayer(id string) bool {
	if s.locked() {
		return false
	}
	idx := s.find(id)
	if idx < 0 {
		return false
	}
	s.layers = append(s.layers[:idx], s.layers[idx+1:]...)
	for i := range s.layers {
		s.layers[i].ID = "L" + strconv.Itoa(i+1)
	}
	s.Resize()
	return true
}

// SetLayerNodes sets the node count of a layer, clamped to [1, MaxNodes].
func (s *Store) SetLayerNodes(id string, n int) bool {
	if s.locked() {
		return false
	}
	idx := s.find(id)
	if idx < 0 {
		return false
	}
	s.layers[idx].Nodes = clampInt(n, 1, MaxNodes)
	return true
}

func (s *Store) SetWeight(i int, v float32) bool { return s.set(s.params.Weights, i, v) }

func (s *Store) SetBias(i int, v float32) bool { return s.set(s.params.Biases, i, v) }

func (s *Store) SetInputValue(i int, v float32) bool { return s.set(s.params.Inputs, i, v) }

func (s *Store) set(a []float32, i int, v float32) bool {
	if s.locked() || i < 0 || i >= len(a) {
		return false
	}
	a[i] = v
	return true
}

// Reset restores the default topology and parameters.
func (s *Store) Reset() bool {
	if s.locked() {
		return false
	}
	s.reset()
	return true
}

func (s *Store) reset() {
	s.inputCount = 2
	s.layers = []Layer{{ID: "L1", Nodes: 3}, {ID: "L2", Nodes: 3}}
	s.params = ParameterSet{
		Inputs:  []float32{1, 1},
		Weights: []float32{1, 1, 1},
		Biases:  []float32{0, 0, 0},
	}
}

// Resize truncates or pads the parameter arrays so that they match the topology.
// It is called after every change of the input count or the layer count.
func (s *Store) Resize() {
	l := len(s.layers) + 1
	s.params.Inputs = resize(s.params.Inputs, s.inputCount, InputFill)
	s.params.Weights = resize(s.params.Weights, l, WeightFill)
	s.params.Biases = resize(s.params.Biases, l, BiasFill)
}

func (s *Store) find(id string) int {
	for i, l := range s.layers {
		if l.ID == id {
			return i
		}
	}
	return -1
}

// Format prints the topology, one column per line.
func (s *Store) Format(f fmt.State, c rune) {
	fmt.Fprintf(f, "in  x%d %v\n", s.inputCount, s.params.Inputs)
	for i, l := range s.layers {
		fmt.Fprintf(f, "%-3s x%d w=%v b=%v\n", l.ID, l.Nodes, s.params.Weights[i], s.params.Biases[i])
	}
	o := len(s.layers)
	fmt.Fprintf(f, "out x1 w=%v b=%v", s.params.Weights[o], s.params.Biases[o])
}

func resize(a []float32, n int, fill float32) []float32 {
	if n <= len(a) {
		return a[:n:n]
	}
	retVal := make([]float32, n)
	copy(retVal, a)
	for i := len(a); i < n; i++ {
		retVal[i] = fill
	}
	return retVal
}

func layerNumber(id string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(id, "L"))
	if err != nil {
		return 0
	}
	return n
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
