package nnviz

import (
	"github.com/chewxy/math32"
	"github.com/google/uuid"
	"github.com/gorgonia/nnviz/engine"
	"github.com/gorgonia/nnviz/network"
)

// crossCheckTol is how far the graph and the engine may disagree before it is logged.
const crossCheckTol = 1e-4

// Start begins a run. It is only meaningful from idle.
func (d *Driver) Start() bool {
	if d.run.Locked() {
		return false
	}
	d.Statistics.reset()
	d.run = network.RunState{
		ID:           uuid.New().String(),
		Epoch:        0,
		Phase:        network.Forward,
		CurrentLayer: 0,
		Transition:   d.run.Transition,
	}
	d.forward()
	d.update()
	d.next()
	d.logger.Printf("Run %v started. Epochs %d, lr %v, target %v, fan out %v", d.run.ID, d.conf.MaxEpochs, d.conf.LearningRate, d.conf.TargetY, d.conf.FanOut)
	d.emit()
	return true
}

// NotifyLayerTransitionComplete tells the driver that the visual transition t has finished.
// Only the in-flight transition is consumed, and only once. Anything else, including any
// notification while idle, is ignored and returns false.
func (d *Driver) NotifyLayerTransitionComplete(t network.Transition) bool {
	if !d.run.Locked() || t != d.run.Transition {
		return false
	}

	d.steps.log("%d: %v layer %d epoch %d", t, d.run.Phase, d.run.CurrentLayer, d.run.Epoch)
	last := d.store.LastLayer()
	switch d.run.Phase {
	case network.Forward:
		if d.run.CurrentLayer < last {
			d.run.CurrentLayer++
			break
		}
		d.run.PendingDelta, d.run.HasPendingDelta = 0, false
		d.run.CurrentLayer = last
		d.run.Phase = network.Backward
	case network.Backward:
		d.backward()
		if d.run.CurrentLayer > 0 {
			d.run.CurrentLayer--
			break
		}
		if d.endEpoch() {
			d.emit()
			return true
		}
	}
	d.next()
	d.emit()
	return true
}

// End stops the run immediately from any state. The log is kept and no parameter update is rolled back.
func (d *Driver) End() {
	if d.run.Locked() {
		d.logger.Printf("Run %v ended at epoch %d (%v, layer %d)", d.run.ID, d.run.Epoch, d.run.Phase, d.run.CurrentLayer)
	}
	d.idle()
	d.emit()
}

// Reset restores the topology, parameters, training configuration and pacing hint to the
// values the driver was created with, and clears the log and the trace. It is only valid from idle.
func (d *Driver) Reset() bool {
	if d.run.Locked() {
		return false
	}
	d.store.Reset()
	d.conf = d.initial.Train
	d.tickDelay = d.initial.TickDelay
	d.trace = network.Trace{}
	d.Statistics.reset()
	d.run = network.RunState{CurrentLayer: -1, Transition: d.run.Transition}
	d.buf.Reset()
	d.steps.Reset()
	d.emit()
	return true
}

// backward runs one layer of backpropagation and carries the delta to the next (shallower) layer.
func (d *Driver) backward() {
	var next float32
	if d.run.HasPendingDelta {
		next = d.run.PendingDelta
	}
	d.run.PendingDelta = engine.BackpropLayer(d.run.CurrentLayer, d.store.Layers(), d.store.ParamSet(), d.trace, d.conf, next)
	d.run.HasPendingDelta = true
}

// endEpoch closes an epoch. It returns true when the run is complete.
func (d *Driver) endEpoch() bool {
	d.forward()
	d.run.Epoch++
	d.update()
	rec, _ := d.Latest()
	d.logger.Printf("Epoch %d: predicted %.4f loss %.6f", rec.Epoch, rec.Predicted, rec.Loss)
	if d.run.Epoch >= d.conf.MaxEpochs {
		d.logger.Printf("Run %v complete after %d epochs", d.run.ID, d.run.Epoch)
		d.idle()
		return true
	}
	d.run.PendingDelta, d.run.HasPendingDelta = 0, false
	d.run.CurrentLayer = 0
	d.run.Phase = network.Forward
	return false
}

func (d *Driver) forward() {
	layers := d.store.Layers()
	params := d.store.Params()
	d.trace = engine.Forward(layers, params, d.conf)
	if d.crossCheck {
		d.check(layers, params)
	}
}

func (d *Driver) update() { d.Statistics.update(d.run.Epoch, d.trace) }

// next issues a new transition. Any notification for an older one is stale from now on.
func (d *Driver) next() { d.run.Transition++ }

func (d *Driver) idle() {
	d.run.Phase = network.Idle
	d.run.CurrentLayer = -1
	d.run.PendingDelta, d.run.HasPendingDelta = 0, false
}

func (d *Driver) verify() (engine.GraphTrace, error) {
	return engine.GraphForward(d.store.Layers(), d.store.Params(), d.conf)
}

func (d *Driver) check(layers []network.Layer, params network.ParameterSet) {
	gt, err := engine.GraphForward(layers, params, d.conf)
	if err != nil {
		d.logger.Printf("Cross check failed: %v", err)
		return
	}
	for l, a := range d.trace.Activations {
		if math32.Abs(a-gt.Activations[l]) > crossCheckTol {
			d.logger.Printf("Cross check: layer %d activation %v, graph %v", l, a, gt.Activations[l])
		}
	}
	if math32.Abs(d.trace.Loss-gt.Loss) > crossCheckTol {
		d.logger.Printf("Cross check: loss %v, graph %v", d.trace.Loss, gt.Loss)
	}
}
