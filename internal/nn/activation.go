package nn

import (
	"github.com/born-ml/dualad/internal/ad"
)

// stateless is embedded by modules without parameters.
type stateless struct{}

func (stateless) Parameters() []ad.DTensor { return nil }

// ReLU applies max(0, x) elementwise.
type ReLU struct{ stateless }

// NewReLU creates a ReLU activation.
func NewReLU() *ReLU { return &ReLU{} }

// Forward implements Module.
func (r *ReLU) Forward(input ad.DTensor) ad.DTensor { return ad.Relu(input) }

// WithParameters implements Module.
func (r *ReLU) WithParameters(params []ad.DTensor) Module {
	checkParams("ReLU", params, 0)
	return r
}

// Sigmoid applies 1 / (1 + exp(-x)) elementwise.
type Sigmoid struct{ stateless }

// NewSigmoid creates a Sigmoid activation.
func NewSigmoid() *Sigmoid { return &Sigmoid{} }

// Forward implements Module.
func (s *Sigmoid) Forward(input ad.DTensor) ad.DTensor { return ad.Sigmoid(input) }

// WithParameters implements Module.
func (s *Sigmoid) WithParameters(params []ad.DTensor) Module {
	checkParams("Sigmoid", params, 0)
	return s
}

// Tanh applies the hyperbolic tangent elementwise.
type Tanh struct{ stateless }

// NewTanh creates a Tanh activation.
func NewTanh() *Tanh { return &Tanh{} }

// Forward implements Module.
func (t *Tanh) Forward(input ad.DTensor) ad.DTensor { return ad.Tanh(input) }

// WithParameters implements Module.
func (t *Tanh) WithParameters(params []ad.DTensor) Module {
	checkParams("Tanh", params, 0)
	return t
}
