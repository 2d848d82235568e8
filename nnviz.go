// Package nnviz drives the animated training of a small single-scalar-per-layer network.
//
// The Driver owns the run state machine (idle, forward, backward). It does no work on its
// own: every advance is triggered by a command, and the pacing of the visual transitions
// is left to whoever renders them.
package nnviz

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/gorgonia/nnviz/engine"
	"github.com/gorgonia/nnviz/network"
)

var _ network.MetaState = &Driver{}

// Driver is the top level structure and the entry point of the API.
// It owns the parameter store, the training configuration and the run state.
type Driver struct {
	// state
	Statistics
	store *network.Store
	run   network.RunState
	trace network.Trace

	// config
	name       string
	conf       engine.Config
	tickDelay  time.Duration
	crossCheck bool
	initial    Options

	// io
	encoders []OutputEncoder
	buf      bytes.Buffer
	logger   *log.Logger
	steps    stepLog
}

// New creates a Driver. Out of range options are clamped.
func New(opts Options) *Driver {
	if opts.Name == "" {
		opts.Name = "UNNAMED NETWORK"
	}
	if opts.Train == (engine.Config{}) {
		opts.Train = engine.DefaultConf()
	}
	opts.Train = opts.Train.Clamp()
	if opts.TickDelay == 0 {
		opts.TickDelay = DefaultTickDelay
	}
	opts.TickDelay = clampDelay(opts.TickDelay)

	d := &Driver{
		Statistics: makeStatistics(),
		run:        network.RunState{CurrentLayer: -1},
		name:       opts.Name,
		conf:       opts.Train,
		tickDelay:  opts.TickDelay,
		crossCheck: opts.CrossCheck,
		initial:    opts,
		encoders:   opts.Encoders,
		steps:      makeStepLog(),
	}
	d.store = network.NewStore(&d.run)
	d.logger = log.New(&d.buf, "", log.Ltime)
	return d
}

// AddEncoder registers an output encoder. It receives every subsequent state change.
func (d *Driver) AddEncoder(enc OutputEncoder) { d.encoders = append(d.encoders, enc) }

// Flush flushes every output encoder.
func (d *Driver) Flush() error {
	var allErrs manyErr
	for _, enc := range d.encoders {
		if err := enc.Flush(); err != nil {
			allErrs = append(allErrs, err)
		}
	}
	if len(allErrs) > 0 {
		return allErrs
	}
	return nil
}

func (d *Driver) emit() {
	for _, enc := range d.encoders {
		if err := enc.Encode(d); err != nil {
			d.logger.Printf("Encoder %T failed: %v", enc, err)
		}
	}
}

/* MetaState */

func (d *Driver) Name() string                       { return d.name }
func (d *Driver) Epoch() int                         { return d.run.Epoch }
func (d *Driver) Phase() network.Phase               { return d.run.Phase }
func (d *Driver) CurrentLayer() int                  { return d.run.CurrentLayer }
func (d *Driver) Transition() network.Transition     { return d.run.Transition }
func (d *Driver) TickDelay() time.Duration           { return d.tickDelay }
func (d *Driver) InputCount() int                    { return d.store.InputCount() }
func (d *Driver) Layers() []network.Layer            { return d.store.Layers() }
func (d *Driver) Params() network.ParameterSet       { return d.store.Params() }
func (d *Driver) Trace() network.Trace               { return d.trace.Clone() }
func (d *Driver) RunState() network.RunState         { return d.run }
func (d *Driver) Config() engine.Config              { return d.conf }
func (d *Driver) Locked() bool                       { return d.run.Locked() }
func (d *Driver) Dot() (string, error)               { return d.store.ToDot("G") }
func (d *Driver) Verify() (engine.GraphTrace, error) { return d.verify() }

// Snapshot returns a copy of everything the driver publishes.
func (d *Driver) Snapshot() Snapshot {
	return Snapshot{
		Name:        d.name,
		Run:         d.run,
		InputCount:  d.store.InputCount(),
		Layers:      d.store.Layers(),
		Params:      d.store.Params(),
		Trace:       d.trace.Clone(),
		Records:     d.Records(),
		Config:      d.conf,
		TickDelayMS: d.tickDelay.Milliseconds(),
	}
}

// Format prints the run state followed by the topology.
func (d *Driver) Format(s fmt.State, c rune) {
	fmt.Fprintf(s, "%s: epoch %d/%d %v", d.name, d.run.Epoch, d.conf.MaxEpochs, d.run.Phase)
	if d.run.Locked() {
		fmt.Fprintf(s, " layer %d", d.run.CurrentLayer)
	}
	fmt.Fprintf(s, "\nlr %v target %v fan out %v delay %v\n%v", d.conf.LearningRate, d.conf.TargetY, d.conf.FanOut, d.tickDelay, d.store)
	if !d.trace.Empty() {
		fmt.Fprintf(s, "\npredicted %.6f loss %.6f", d.trace.Predicted, d.trace.Loss)
	}
}

// Steps returns every transition consumed since the last reset. It is empty unless built with the debug tag.
func (d *Driver) Steps() string { return d.steps.Log() }

// Journal writes the driver's log.
func (d *Driver) Journal(w io.Writer) {
	fmt.Fprint(w, d.buf.String())
}

/* Configuration. Every setter is ignored while a run is active. */

func (d *Driver) SetInputCount(n int) bool { return d.topology(d.store.SetInputCount(n)) }
func (d *Driver) AddLayer() bool           { return d.topology(d.store.AddLayer()) }
func (d *Driver) RemoveLayer(id string) bool {
	return d.topology(d.store.RemoveLayer(id))
}
func (d *Driver) SetLayerNodes(id string, n int) bool {
	return d.topology(d.store.SetLayerNodes(id, n))
}
func (d *Driver) SetWeight(i int, v float32) bool     { return d.changed(d.store.SetWeight(i, v)) }
func (d *Driver) SetBias(i int, v float32) bool       { return d.changed(d.store.SetBias(i, v)) }
func (d *Driver) SetInputValue(i int, v float32) bool { return d.changed(d.store.SetInputValue(i, v)) }

func (d *Driver) SetLearningRate(lr float32) bool {
	if d.run.Locked() {
		return false
	}
	d.conf.LearningRate = engine.ClampLearningRate(lr)
	return d.changed(true)
}

func (d *Driver) SetTargetY(y float32) bool {
	if d.run.Locked() {
		return false
	}
	d.conf.TargetY = engine.ClampTarget(y)
	return d.changed(true)
}

func (d *Driver) SetMaxEpochs(n int) bool {
	if d.run.Locked() {
		return false
	}
	d.conf.MaxEpochs = engine.ClampEpochs(n)
	return d.changed(true)
}

func (d *Driver) SetFanOut(f engine.FanOut) bool {
	if d.run.Locked() || f < engine.Replicate || f >= engine.MAXFANOUT {
		return false
	}
	d.conf.FanOut = f
	return d.changed(true)
}

// SetTickDelay sets the pacing hint, clamped to [MinTickDelay, MaxTickDelay]. It may change mid run.
func (d *Driver) SetTickDelay(delay time.Duration) {
	d.tickDelay = clampDelay(delay)
	d.emit()
}

// Slower doubles the pacing hint.
func (d *Driver) Slower() { d.SetTickDelay(d.tickDelay * 2) }

// Faster halves the pacing hint.
func (d *Driver) Faster() {
	d.SetTickDelay((d.tickDelay / 2).Truncate(time.Millisecond))
}

// topology handles a successful change of the layer structure. The old trace no longer fits and is dropped.
func (d *Driver) topology(ok bool) bool {
	if ok {
		d.trace = network.Trace{}
	}
	return d.changed(ok)
}

func (d *Driver) changed(ok bool) bool {
	if ok {
		d.emit()
	}
	return ok
}

func clampDelay(delay time.Duration) time.Duration {
	if delay < MinTickDelay {
		return MinTickDelay
	}
	if delay > MaxTickDelay {
		return MaxTickDelay
	}
	return delay
}
