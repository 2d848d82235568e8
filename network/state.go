package network

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// Phase is the sub-state of a training epoch.
type Phase int32

const (
	Idle Phase = iota
	Forward
	Backward
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	}
	return fmt.Sprintf("Phase(%d)", int32(p))
}

func (p Phase) Format(s fmt.State, c rune) {
	switch c {
	case 's', 'v':
		fmt.Fprint(s, p.String())
	case 'd':
		fmt.Fprintf(s, "%d", int32(p))
	}
}

// MarshalText implements encoding.TextMarshaler so that snapshots carry the phase name.
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Phase) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*p = Idle
	case "forward":
		*p = Forward
	case "backward":
		*p = Backward
	default:
		return errors.Errorf("unknown phase %q", text)
	}
	return nil
}

// Transition identifies one animated layer transition. A transition is consumed at most once.
type Transition uint64

// Layer is one hidden layer. Every node in the layer carries the same scalar.
type Layer struct {
	ID    string `json:"id"`
	Nodes int    `json:"nodes"`
}

// ParameterSet holds the per-layer scalars. Weights and Biases have one entry per
// hidden layer plus one for the output layer.
type ParameterSet struct {
	Inputs  []float32 `json:"inputs"`
	Weights []float32 `json:"weights"`
	Biases  []float32 `json:"biases"`
}

// Clone returns a deep copy.
func (p ParameterSet) Clone() ParameterSet {
	return ParameterSet{
		Inputs:  cloneFloats(p.Inputs),
		Weights: cloneFloats(p.Weights),
		Biases:  cloneFloats(p.Biases),
	}
}

// Trace is the result of one forward pass. Index l covers hidden layer l, and the last index is the output layer.
type Trace struct {
	Sums           []float32 `json:"sums"` // summed input seen by each layer
	PreActivations []float32 `json:"preActivations"`
	Activations    []float32 `json:"activations"`
	Predicted      float32   `json:"predicted"`
	Loss           float32   `json:"loss"`
}

// Empty returns true if no forward pass has produced this trace.
func (t Trace) Empty() bool { return len(t.Activations) == 0 }

// Clone returns a deep copy.
func (t Trace) Clone() Trace {
	return Trace{
		Sums:           cloneFloats(t.Sums),
		PreActivations: cloneFloats(t.PreActivations),
		Activations:    cloneFloats(t.Activations),
		Predicted:      t.Predicted,
		Loss:           t.Loss,
	}
}

// EpochRecord is one row of the training log.
type EpochRecord struct {
	Epoch     int     `json:"epoch"`
	Predicted float32 `json:"predicted"`
	Loss      float32 `json:"loss"`
}

// RunState is where the state machine currently is.
type RunState struct {
	ID              string     `json:"id"`
	Epoch           int        `json:"epoch"`
	Phase           Phase      `json:"phase"`
	CurrentLayer    int        `json:"currentLayer"`
	PendingDelta    float32    `json:"pendingDelta"`
	HasPendingDelta bool       `json:"hasPendingDelta"`
	Transition      Transition `json:"transition"`
}

// Locked returns true while a run is active. It implements Guard.
func (r *RunState) Locked() bool { return r.Phase != Idle }

// MetaState is the read-only projection consumed by rendering and logging collaborators.
type MetaState interface {
	Name() string
	Epoch() int
	Phase() Phase
	CurrentLayer() int
	Transition() Transition
	TickDelay() time.Duration

	InputCount() int
	Layers() []Layer
	Params() ParameterSet
	Trace() Trace
	Records() []EpochRecord
}

func cloneFloats(a []float32) []float32 {
	if a == nil {
		return nil
	}
	retVal := make([]float32, len(a))
	copy(retVal, a)
	return retVal
}
