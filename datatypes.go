package nnviz

import (
	"time"

	"github.com/gorgonia/nnviz/engine"
	"github.com/gorgonia/nnviz/network"
)

const (
	DefaultTickDelay = 400 * time.Millisecond
	MinTickDelay     = 100 * time.Millisecond
	MaxTickDelay     = 2000 * time.Millisecond
)

// Options configures a Driver.
type Options struct {
	Name      string
	Train     engine.Config
	TickDelay time.Duration

	// CrossCheck runs every forward pass through the gorgonia graph as well, and logs divergence.
	CrossCheck bool

	// extensions
	Encoders []OutputEncoder
}

// OutputEncoder encodes the published state of the driver as whatever.
//
// Examples are the gif and mjpeg encoders. Another example would be a websocket pushing
// state to a browser that animates the transition and reports back when it is done.
type OutputEncoder interface {
	Encode(ms network.MetaState) error
	Flush() error
}

// Snapshot is a copy of everything the driver publishes.
type Snapshot struct {
	Name        string                `json:"name"`
	Run         network.RunState      `json:"run"`
	InputCount  int                   `json:"inputCount"`
	Layers      []network.Layer       `json:"layers"`
	Params      network.ParameterSet  `json:"params"`
	Trace       network.Trace         `json:"trace"`
	Records     []network.EpochRecord `json:"records"`
	Config      engine.Config         `json:"config"`
	TickDelayMS int64                 `json:"tickDelayMs"`
}
