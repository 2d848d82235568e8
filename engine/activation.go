package engine

import "github.com/chewxy/math32"

// ActivationFunc turns a pre-activation into an activation. Derivative is taken
// with respect to the pre-activation.
type ActivationFunc struct {
	Func       func(x float32) float32
	Derivative func(x float32) float32
}

// Sigmoid is the logistic function 1 / (1 + e^-x). It is the only activation the network uses.
var Sigmoid = ActivationFunc{
	Func:       sigmoid,
	Derivative: sigmoidPrime,
}

func sigmoid(x float32) float32 { return 1 / (1 + math32.Exp(-x)) }

func sigmoidPrime(x float32) float32 {
	s := sigmoid(x)
	return s * (1 - s)
}
