package network

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

type lock bool

func (l *lock) Locked() bool { return bool(*l) }

func checkSizes(t *testing.T, s *Store) {
	t.Helper()
	p := s.Params()
	l := len(s.Layers()) + 1
	if len(p.Weights) != l || len(p.Biases) != l {
		t.Errorf("expected %d weights and biases. Got %d and %d", l, len(p.Weights), len(p.Biases))
	}
	if len(p.Inputs) != s.InputCount() {
		t.Errorf("expected %d inputs. Got %d", s.InputCount(), len(p.Inputs))
	}
}

func TestStore_Defaults(t *testing.T) {
	s := NewStore(nil)
	want := ParameterSet{
		Inputs:  []float32{1, 1},
		Weights: []float32{1, 1, 1},
		Biases:  []float32{0, 0, 0},
	}
	if diff := cmp.Diff(want, s.Params()); diff != "" {
		t.Errorf("default params mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]Layer{{"L1", 3}, {"L2", 3}}, s.Layers()); diff != "" {
		t.Errorf("default layers mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2, s.LastLayer())
}

func TestStore_SizingInvariant(t *testing.T) {
	for layers := 0; layers <= MaxLayers; layers++ {
		for nodes := 1; nodes <= MaxNodes; nodes++ {
			t.Run(fmt.Sprintf("L%d_N%d", layers, nodes), func(t *testing.T) {
				s := NewStore(nil)
				for len(s.Layers()) > 0 {
					s.RemoveLayer(s.Layers()[0].ID)
					checkSizes(t, s)
				}
				for i := 0; i < layers; i++ {
					s.AddLayer()
					checkSizes(t, s)
					s.SetLayerNodes(s.Layers()[i].ID, nodes)
					checkSizes(t, s)
				}
				for n := 1; n <= MaxInputs; n++ {
					s.SetInputCount(n)
					checkSizes(t, s)
				}
				assert.Len(t, s.Layers(), layers)
				assert.Len(t, s.Params().Weights, layers+1)
			})
		}
	}
}

func TestStore_Resize(t *testing.T) {
	assert := assert.New(t)
	s := NewStore(nil)
	s.SetWeight(2, 7)
	s.SetBias(2, 3)

	s.AddLayer() // 3 layers
	p := s.Params()
	assert.Equal([]float32{1, 1, 7, WeightFill}, p.Weights, "weights should be padded with the weight fill")
	assert.Equal([]float32{0, 0, 3, BiasFill}, p.Biases, "biases should be padded with the bias fill")

	s.SetInputCount(3)
	assert.Equal([]float32{1, 1, InputFill}, s.Params().Inputs)
	s.SetInputCount(1)
	assert.Equal([]float32{1}, s.Params().Inputs)

	s.SetInputCount(0)
	assert.Equal(1, s.InputCount(), "input count should clamp to 1")
	s.SetInputCount(9)
	assert.Equal(MaxInputs, s.InputCount(), "input count should clamp to MaxInputs")
}

func TestStore_RemoveRenumbers(t *testing.T) {
	assert := assert.New(t)
	s := NewStore(nil)
	s.SetWeight(0, 0.5)
	s.SetWeight(1, 0.25)
	s.SetWeight(2, 0.125)

	assert.True(s.RemoveLayer("L1"))
	assert.Equal([]Layer{{"L1", 3}}, s.Layers(), "L2 should have been renamed to L1")
	assert.Equal([]float32{0.5, 0.25}, s.Params().Weights, "trailing slot should be dropped")
	assert.Len(s.Params().Biases, 2)

	assert.False(s.RemoveLayer("L2"), "L2 no longer exists")
}

func TestStore_RemoveSecondOfTwo(t *testing.T) {
	s := NewStore(nil)
	assert.Len(t, s.Params().Weights, 3)
	s.RemoveLayer("L2")
	assert.Equal(t, []Layer{{"L1", 3}}, s.Layers())
	assert.Len(t, s.Params().Weights, 2)
	assert.Len(t, s.Params().Biases, 2)
}

func TestStore_AddLayer(t *testing.T) {
	assert := assert.New(t)
	s := NewStore(nil)
	assert.True(s.AddLayer())
	assert.Equal(Layer{"L3", MaxNodes}, s.Layers()[2])
	assert.False(s.AddLayer(), "at most MaxLayers layers")
	assert.Len(s.Layers(), MaxLayers)

	s.RemoveLayer("L2")
	assert.True(s.AddLayer())
	assert.Equal([]string{"L1", "L2", "L3"}, ids(s.Layers()))
}

func TestStore_SetLayerNodes(t *testing.T) {
	s := NewStore(nil)
	s.SetLayerNodes("L1", 0)
	s.SetLayerNodes("L2", 42)
	assert.Equal(t, []Layer{{"L1", 1}, {"L2", MaxNodes}}, s.Layers())
	assert.False(t, s.SetLayerNodes("L9", 2))
}

func TestStore_Locked(t *testing.T) {
	assert := assert.New(t)
	l := lock(true)
	s := NewStore(&l)
	before := s.Params()
	layers := s.Layers()

	assert.False(s.SetInputCount(3))
	assert.False(s.AddLayer())
	assert.False(s.RemoveLayer("L1"))
	assert.False(s.SetLayerNodes("L1", 1))
	assert.False(s.SetWeight(0, 5))
	assert.False(s.SetBias(0, 5))
	assert.False(s.SetInputValue(0, 5))
	assert.False(s.Reset())

	assert.Equal(before, s.Params(), "edits during a run must be rejected")
	assert.Equal(layers, s.Layers())

	l = false
	assert.True(s.SetWeight(0, 5))
	assert.Equal(float32(5), s.Params().Weights[0])
}

func TestStore_SetterBounds(t *testing.T) {
	s := NewStore(nil)
	assert.False(t, s.SetWeight(-1, 2))
	assert.False(t, s.SetBias(3, 2))
	assert.False(t, s.SetInputValue(2, 2))
	assert.True(t, s.SetInputValue(1, -4))
	assert.Equal(t, []float32{1, -4}, s.Params().Inputs)
}

func TestStore_ParamsIsCopy(t *testing.T) {
	s := NewStore(nil)
	p := s.Params()
	p.Weights[0] = 100
	assert.Equal(t, float32(1), s.Params().Weights[0])

	s.ParamSet().Weights[0] = 100
	assert.Equal(t, float32(100), s.Params().Weights[0])
}

func TestStore_Reset(t *testing.T) {
	s := NewStore(nil)
	s.AddLayer()
	s.SetInputCount(1)
	s.SetBias(0, 9)
	s.Reset()
	if diff := cmp.Diff(NewStore(nil).Params(), s.Params()); diff != "" {
		t.Errorf("reset mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2, s.InputCount())
}

func TestStore_Format(t *testing.T) {
	s := NewStore(nil)
	out := fmt.Sprintf("%v", s)
	lines := strings.Split(out, "\n")
	assert.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[1], "L1"))
	assert.True(t, strings.HasPrefix(lines[3], "out"))
}

func TestPhase_Text(t *testing.T) {
	b, err := json.Marshal(RunState{Phase: Backward})
	if err != nil {
		t.Fatal(err)
	}
	assert.Contains(t, string(b), `"phase":"backward"`)

	var rs RunState
	if err := json.Unmarshal(b, &rs); err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, Backward, rs.Phase)
	assert.Error(t, new(Phase).UnmarshalText([]byte("sideways")))
	assert.Equal(t, "forward", fmt.Sprintf("%v", Forward))
}

func ids(ls []Layer) []string {
	retVal := make([]string, len(ls))
	for i, l := range ls {
		retVal[i] = l.ID
	}
	return retVal
}
