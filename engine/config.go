package engine

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
)

// FanOut decides what the next layer sees when a layer of n nodes all carry the same activation a.
type FanOut int

const (
	// Replicate feeds n*a forward: every node's copy of a is summed.
	Replicate FanOut = iota
	// Collapse feeds a single a forward regardless of the node count.
	Collapse
	MAXFANOUT
)

func (f FanOut) String() string {
	switch f {
	case Replicate:
		return "replicate"
	case Collapse:
		return "collapse"
	}
	return fmt.Sprintf("FanOut(%d)", int(f))
}

func (f FanOut) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

func (f *FanOut) UnmarshalText(text []byte) error {
	var ok bool
	if *f, ok = ParseFanOut(string(text)); !ok {
		return errors.Errorf("unknown fan out %q", text)
	}
	return nil
}

// ParseFanOut parses "replicate" or "collapse".
func ParseFanOut(s string) (FanOut, bool) {
	switch s {
	case "replicate":
		return Replicate, true
	case "collapse":
		return Collapse, true
	}
	return Replicate, false
}

const (
	MinLearningRate float32 = 0.001
	MaxLearningRate float32 = 1
	MinEpochs               = 1
	MaxEpochs               = 100
)

// Config is the training configuration.
type Config struct {
	LearningRate float32 `json:"learningRate"`
	TargetY      float32 `json:"targetY"`
	MaxEpochs    int     `json:"maxEpochs"`
	FanOut       FanOut  `json:"fanOut"`
}

// DefaultConf returns the configuration a fresh session starts with.
func DefaultConf() Config {
	return Config{
		LearningRate: 0.1,
		TargetY:      1,
		MaxEpochs:    10,
		FanOut:       Replicate,
	}
}

func (conf Config) IsValid() bool {
	return conf.LearningRate > 0 &&
		conf.LearningRate <= MaxLearningRate &&
		conf.MaxEpochs >= MinEpochs &&
		conf.MaxEpochs <= MaxEpochs &&
		!math32.IsNaN(conf.TargetY) &&
		conf.FanOut >= Replicate && conf.FanOut < MAXFANOUT
}

// Clamp coerces every field into range. Out of range values are never an error.
func (conf Config) Clamp() Config {
	conf.LearningRate = ClampLearningRate(conf.LearningRate)
	conf.MaxEpochs = ClampEpochs(conf.MaxEpochs)
	conf.TargetY = ClampTarget(conf.TargetY)
	if conf.FanOut < Replicate || conf.FanOut >= MAXFANOUT {
		conf.FanOut = Replicate
	}
	return conf
}

// ClampLearningRate coerces lr into (0, 1]. Non-positive and NaN rates become MinLearningRate.
func ClampLearningRate(lr float32) float32 {
	switch {
	case math32.IsNaN(lr) || lr <= 0:
		return MinLearningRate
	case lr > MaxLearningRate:
		return MaxLearningRate
	}
	return lr
}

// ClampTarget coerces a NaN target to 0. Any other target is kept.
func ClampTarget(y float32) float32 {
	if math32.IsNaN(y) {
		return 0
	}
	return y
}

// ClampEpochs coerces n into [MinEpochs, MaxEpochs].
func ClampEpochs(n int) int {
	if n < MinEpochs {
		return MinEpochs
	}
	if n > MaxEpochs {
		return MaxEpochs
	}
	return n
}
