package gif

import (
	"bytes"
	"image/gif"
	"testing"
	"time"

	"github.com/gorgonia/nnviz/network"
	"github.com/stretchr/testify/assert"
)

type state struct {
	phase network.Phase
	layer int
}

func (s state) Name() string                   { return "gif" }
func (s state) Epoch() int                     { return 0 }
func (s state) Phase() network.Phase           { return s.phase }
func (s state) CurrentLayer() int              { return s.layer }
func (s state) Transition() network.Transition { return 0 }
func (s state) TickDelay() time.Duration       { return 400 * time.Millisecond }
func (s state) InputCount() int                { return 1 }
func (s state) Layers() []network.Layer        { return []network.Layer{{ID: "L1", Nodes: 2}} }
func (s state) Params() network.ParameterSet {
	return network.ParameterSet{Inputs: []float32{1}, Weights: []float32{1, 1}, Biases: []float32{0, 0}}
}
func (s state) Trace() network.Trace           { return network.Trace{} }
func (s state) Records() []network.EpochRecord { return nil }

func TestEncoder(t *testing.T) {
	assert := assert.New(t)
	var buf bytes.Buffer
	enc := NewGifEncoder(&buf)

	assert.Error(enc.Flush(), "nothing to write yet")

	steps := []state{
		{network.Idle, -1}, // configuration edits before a run are skipped
		{network.Forward, 0},
		{network.Forward, 1},
		{network.Backward, 1},
		{network.Backward, 0},
		{network.Idle, -1},
		{network.Idle, -1},
	}
	for _, s := range steps {
		assert.NoError(enc.Encode(s))
	}
	assert.Equal(5, enc.Frames())
	if !assert.NoError(enc.Flush()) {
		return
	}

	g, err := gif.DecodeAll(&buf)
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(g.Image, 5)
	assert.Equal([]int{40, 40, 40, 40, holdDelay}, g.Delay)
}
