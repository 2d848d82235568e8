package nnviz

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chewxy/math32"
	"github.com/google/go-cmp/cmp"
	"github.com/gorgonia/nnviz/engine"
	"github.com/gorgonia/nnviz/network"
	"github.com/stretchr/testify/assert"
)

type recorder struct {
	phases   []network.Phase
	layers   []int
	flushErr error
}

func (r *recorder) Encode(ms network.MetaState) error {
	r.phases = append(r.phases, ms.Phase())
	r.layers = append(r.layers, ms.CurrentLayer())
	return nil
}

func (r *recorder) Flush() error { return r.flushErr }

type brokenEncoder struct{}

func (brokenEncoder) Encode(network.MetaState) error { return errors.New("broken") }
func (brokenEncoder) Flush() error                   { return errors.New("still broken") }

// scenarioDriver is 2 inputs of 1, one hidden layer of 3 nodes, weights 1, biases 0, lr 0.1, target 1, 1 epoch.
func scenarioDriver(fo engine.FanOut) *Driver {
	d := New(Options{Name: "scenario"})
	d.RemoveLayer("L2")
	d.SetMaxEpochs(1)
	d.SetFanOut(fo)
	return d
}

func advance(d *Driver) bool { return d.NotifyLayerTransitionComplete(d.Transition()) }

func TestNew(t *testing.T) {
	assert := assert.New(t)
	d := New(Options{})
	assert.Equal("UNNAMED NETWORK", d.Name())
	assert.Equal(engine.DefaultConf(), d.Config())
	assert.Equal(DefaultTickDelay, d.TickDelay())
	assert.Equal(network.Idle, d.Phase())
	assert.Equal(-1, d.CurrentLayer())
	assert.True(d.Trace().Empty())
	assert.Empty(d.Records())

	d = New(Options{Train: engine.Config{LearningRate: 5, MaxEpochs: 1000}, TickDelay: time.Hour})
	assert.Equal(engine.MaxLearningRate, d.Config().LearningRate)
	assert.Equal(engine.MaxEpochs, d.Config().MaxEpochs)
	assert.Equal(MaxTickDelay, d.TickDelay())
}

func TestDriver_Scenario(t *testing.T) {
	d := scenarioDriver(engine.Collapse)
	assert.True(t, d.Start())

	recs := d.Records()
	if len(recs) != 1 {
		t.Fatalf("Expected exactly one record after start. Got %v", recs)
	}
	assert.Equal(t, 0, recs[0].Epoch)
	assert.InDelta(t, 0.707, recs[0].Predicted, 1e-3)
	assert.InDelta(t, 0.0428, recs[0].Loss, 5e-4)
	assert.Equal(t, network.Forward, d.Phase())
	assert.Equal(t, 0, d.CurrentLayer())
	assert.NotEmpty(t, d.RunState().ID)
}

func TestDriver_Scenario_Replicate(t *testing.T) {
	d := scenarioDriver(engine.Replicate)
	d.Start()
	rec, ok := d.Latest()
	assert.True(t, ok)
	assert.InDelta(t, 0.933540, rec.Predicted, 1e-4)
	assert.InDelta(t, 0.0022084, rec.Loss, 1e-6)
}

func TestDriver_StateMachine(t *testing.T) {
	assert := assert.New(t)
	d := scenarioDriver(engine.Collapse)
	d.Start()

	type step struct {
		phase   network.Phase
		layer   int
		pending bool
	}
	// one hidden layer: forward 0, 1, then backward 1, 0, then the epoch ends
	steps := []step{
		{network.Forward, 1, false},
		{network.Backward, 1, false},
		{network.Backward, 0, true},
		{network.Idle, -1, false},
	}
	for i, s := range steps {
		assert.True(advance(d), "step %d", i)
		rs := d.RunState()
		assert.Equal(s.phase, rs.Phase, "step %d", i)
		assert.Equal(s.layer, rs.CurrentLayer, "step %d", i)
		assert.Equal(s.pending, rs.HasPendingDelta, "step %d", i)
	}

	// backprop has been applied to both layers
	p := d.Params()
	assert.InDelta(1.0053464, p.Weights[1], 1e-6)
	assert.InDelta(0.0060699, p.Biases[1], 1e-6)
	assert.InDelta(1.0012814, p.Weights[0], 1e-6)
	assert.InDelta(0.0019221, p.Biases[0], 1e-6)

	recs := d.Records()
	assert.Len(recs, 2)
	assert.Equal(1, recs[1].Epoch)
	assert.Equal(1, d.Epoch())
	assert.True(recs[1].Loss < recs[0].Loss, "loss should decrease. %v", recs)
	assert.Equal(recs[1].Predicted, d.Trace().Predicted)
}

func TestDriver_DuplicateNotify(t *testing.T) {
	d := scenarioDriver(engine.Replicate)
	d.Start()

	tr := d.Transition()
	assert.True(t, d.NotifyLayerTransitionComplete(tr))
	assert.Equal(t, 1, d.CurrentLayer())
	for i := 0; i < 3; i++ {
		assert.False(t, d.NotifyLayerTransitionComplete(tr))
	}
	assert.Equal(t, 1, d.CurrentLayer())
	assert.Equal(t, network.Forward, d.Phase())

	// a token from the future is ignored as well
	assert.False(t, d.NotifyLayerTransitionComplete(d.Transition()+1))
	assert.Equal(t, 1, d.CurrentLayer())
}

func TestDriver_IdleNotifyIsNoop(t *testing.T) {
	d := New(Options{})
	before := d.Snapshot()
	assert.False(t, d.NotifyLayerTransitionComplete(d.Transition()))
	assert.False(t, d.NotifyLayerTransitionComplete(0))
	if diff := cmp.Diff(before, d.Snapshot()); diff != "" {
		t.Errorf("idle notification changed the state (-before +after):\n%s", diff)
	}

	// the last token of a finished run is stale too
	d = scenarioDriver(engine.Collapse)
	d.Start()
	for d.Locked() {
		advance(d)
	}
	epoch := d.Epoch()
	assert.False(t, advance(d))
	assert.Equal(t, epoch, d.Epoch())
	assert.Len(t, d.Records(), 2)
}

func TestDriver_FullRun(t *testing.T) {
	assert := assert.New(t)
	d := New(Options{})
	assert.True(d.Start())

	// default topology: two hidden layers, so 3 forward and 3 backward transitions per epoch
	var n int
	for d.Locked() {
		if !advance(d) {
			t.Fatalf("advance failed at %v layer %d", d.Phase(), d.CurrentLayer())
		}
		n++
	}
	conf := d.Config()
	assert.Equal(6*conf.MaxEpochs, n)
	assert.Equal(conf.MaxEpochs, d.Epoch())

	recs := d.Records()
	assert.Len(recs, conf.MaxEpochs+1)
	for i, r := range recs {
		assert.Equal(i, r.Epoch)
	}
	assert.True(recs[len(recs)-1].Loss < recs[0].Loss)
}

func TestDriver_End(t *testing.T) {
	d := New(Options{})
	d.Start()
	for i := 0; i < 8; i++ {
		advance(d)
	}
	params := d.Params()
	recs := d.Records()
	d.End()

	assert.Equal(t, network.Idle, d.Phase())
	assert.Equal(t, -1, d.CurrentLayer())
	assert.False(t, d.RunState().HasPendingDelta)
	assert.Equal(t, recs, d.Records(), "End must keep the log")
	assert.Equal(t, params, d.Params(), "End does not roll back")

	// End from idle is harmless
	d.End()
	assert.Equal(t, recs, d.Records())

	// a new run starts afresh
	assert.True(t, d.Start())
	assert.Len(t, d.Records(), 1)
	assert.Equal(t, 0, d.Epoch())
}

func TestDriver_Reset(t *testing.T) {
	assert := assert.New(t)
	d := New(Options{Name: "reset", TickDelay: 800 * time.Millisecond})
	d.SetLearningRate(0.5)
	d.SetInputCount(1)
	d.Slower()
	d.Start()
	advance(d)

	assert.False(d.Reset(), "Reset is only valid from idle")
	assert.Equal(network.Forward, d.Phase())

	d.End()
	assert.True(d.Reset())
	assert.Equal(engine.DefaultConf(), d.Config())
	assert.Equal(800*time.Millisecond, d.TickDelay())
	assert.Equal(2, d.InputCount())
	assert.Equal([]network.Layer{{ID: "L1", Nodes: 3}, {ID: "L2", Nodes: 3}}, d.Layers())
	assert.Empty(d.Records())
	assert.True(d.Trace().Empty())
	assert.Equal(0, d.Epoch())
	assert.Equal(-1, d.CurrentLayer())
	assert.Empty(d.RunState().ID)
}

func TestDriver_LockedSetters(t *testing.T) {
	d := New(Options{})
	d.Start()
	before := d.Snapshot()

	setters := []struct {
		name string
		f    func() bool
	}{
		{"SetInputCount", func() bool { return d.SetInputCount(1) }},
		{"AddLayer", d.AddLayer},
		{"RemoveLayer", func() bool { return d.RemoveLayer("L1") }},
		{"SetLayerNodes", func() bool { return d.SetLayerNodes("L1", 1) }},
		{"SetWeight", func() bool { return d.SetWeight(0, 5) }},
		{"SetBias", func() bool { return d.SetBias(0, 5) }},
		{"SetInputValue", func() bool { return d.SetInputValue(0, 5) }},
		{"SetLearningRate", func() bool { return d.SetLearningRate(0.5) }},
		{"SetTargetY", func() bool { return d.SetTargetY(0) }},
		{"SetMaxEpochs", func() bool { return d.SetMaxEpochs(3) }},
		{"SetFanOut", func() bool { return d.SetFanOut(engine.Collapse) }},
		{"Start", d.Start},
	}
	for _, s := range setters {
		assert.False(t, s.f(), "%v should be rejected while running", s.name)
	}
	if diff := cmp.Diff(before, d.Snapshot()); diff != "" {
		t.Errorf("a rejected edit changed the state (-before +after):\n%s", diff)
	}

	d.End()
	for _, s := range setters {
		assert.True(t, s.f(), "%v should be accepted when idle", s.name)
	}
}

func TestDriver_Setters(t *testing.T) {
	assert := assert.New(t)
	d := New(Options{})

	d.SetLearningRate(-1)
	assert.Equal(engine.MinLearningRate, d.Config().LearningRate)
	d.SetLearningRate(3)
	assert.Equal(engine.MaxLearningRate, d.Config().LearningRate)
	d.SetMaxEpochs(0)
	assert.Equal(engine.MinEpochs, d.Config().MaxEpochs)
	d.SetMaxEpochs(101)
	assert.Equal(engine.MaxEpochs, d.Config().MaxEpochs)
	d.SetTargetY(-0.25)
	assert.Equal(float32(-0.25), d.Config().TargetY)
	assert.True(d.SetTargetY(math32.NaN()), "a NaN target is coerced, not rejected")
	assert.Equal(float32(0), d.Config().TargetY)
	assert.False(d.SetFanOut(engine.MAXFANOUT))

	// a topology change drops the stale trace
	d.Start()
	d.End()
	assert.False(d.Trace().Empty())
	d.SetWeight(0, 2)
	assert.False(d.Trace().Empty())
	d.AddLayer()
	assert.True(d.Trace().Empty())
	assert.Equal(4, len(d.Params().Weights))
}

func TestDriver_TickDelay(t *testing.T) {
	d := New(Options{})
	for _, want := range []time.Duration{800, 1600, 2000, 2000} {
		d.Slower()
		assert.Equal(t, want*time.Millisecond, d.TickDelay())
	}
	for _, want := range []time.Duration{1000, 500, 250, 125, 100, 100} {
		d.Faster()
		assert.Equal(t, want*time.Millisecond, d.TickDelay())
	}

	// pacing may change mid run
	d.Start()
	d.SetTickDelay(time.Millisecond)
	assert.Equal(t, MinTickDelay, d.TickDelay())
	assert.Equal(t, network.Forward, d.Phase())
}

func TestDriver_Encoders(t *testing.T) {
	rec := new(recorder)
	d := scenarioDriver(engine.Collapse)
	d.AddEncoder(rec)
	d.AddEncoder(brokenEncoder{})
	d.Start()
	for d.Locked() {
		advance(d)
	}

	wantPhases := []network.Phase{network.Forward, network.Forward, network.Backward, network.Backward, network.Idle}
	wantLayers := []int{0, 1, 1, 0, -1}
	assert.Equal(t, wantPhases, rec.phases)
	assert.Equal(t, wantLayers, rec.layers)

	var buf bytes.Buffer
	d.Journal(&buf)
	assert.Contains(t, buf.String(), "broken")
	assert.Contains(t, buf.String(), "complete after 1 epochs")

	rec.flushErr = errors.New("flush")
	err := d.Flush()
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "flush")
		assert.Contains(t, err.Error(), "still broken")
	}
}

func TestDriver_CrossCheck(t *testing.T) {
	for _, fo := range []engine.FanOut{engine.Replicate, engine.Collapse} {
		d := New(Options{CrossCheck: true})
		d.SetFanOut(fo)
		d.SetMaxEpochs(2)
		d.Start()
		for d.Locked() {
			advance(d)
		}
		var buf bytes.Buffer
		d.Journal(&buf)
		assert.NotContains(t, buf.String(), "Cross check", "%v", fo)

		gt, err := d.Verify()
		if err != nil {
			t.Fatalf("%+v", err)
		}
		assert.InDelta(t, d.Trace().Predicted, gt.Predicted, 1e-4)
		assert.InDelta(t, d.Trace().Loss, gt.Loss, 1e-4)
	}
}

func TestDriver_Snapshot(t *testing.T) {
	d := New(Options{Name: "snap"})
	d.Start()
	bs, err := json.Marshal(d.Snapshot())
	if err != nil {
		t.Fatal(err)
	}
	s := string(bs)
	for _, want := range []string{`"phase":"forward"`, `"fanOut":"replicate"`, `"tickDelayMs":400`, `"name":"snap"`} {
		assert.True(t, strings.Contains(s, want), "expected %v in %v", want, s)
	}
}

func TestStatistics_Dump(t *testing.T) {
	d := scenarioDriver(engine.Collapse)
	d.Start()
	for d.Locked() {
		advance(d)
	}

	dir, err := ioutil.TempDir("", "nnviz")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	filename := filepath.Join(dir, "log.csv")
	if err := d.Dump(filename); err != nil {
		t.Fatalf("%+v", err)
	}
	bs, err := ioutil.ReadFile(filename)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(bs)), "\n")
	assert.Len(t, lines, 3)
	assert.Equal(t, "epoch,predicted,loss", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "0,0.70"), lines[1])
}
