// Package nn implements small neural network modules on top of the
// differentiation engine.
//
// This package provides:
//   - Module interface: Base interface for all NN components
//   - Linear: Fully connected layer
//   - Conv2D: 2D convolution layer
//   - Activations: ReLU, Sigmoid, Tanh
//   - Pooling and Flatten
//   - Sequential: Container for stacking layers
//   - MSELoss
//
// Modules are immutable values. A Sequential is a Differentiable aggregate,
// so reverse drivers return its gradient as a Sequential of the same layout
// and optimizers step over its tensors.
//
//	model := nn.NewSequential(
//	    nn.NewLinear(backend, rng, 4, 8),
//	    nn.NewTanh(),
//	    nn.NewLinear(backend, rng, 8, 1),
//	)
//	grads, err := diff.ReverseDerivativeOf(engine, func(m *nn.Sequential) ad.DTensor {
//	    return nn.MSELoss(m.Forward(inputs), targets)
//	}, model)
package nn

import (
	"github.com/born-ml/dualad/internal/ad"
)

// Module is the base interface for all neural network components.
type Module interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input ad.DTensor) ad.DTensor

	// Parameters returns the trainable tensors of this module in a fixed
	// order. Modules without parameters return nil.
	Parameters() []ad.DTensor

	// WithParameters returns a copy of the module holding params, in the
	// order Parameters lists them.
	WithParameters(params []ad.DTensor) Module
}

func checkParams(op string, params []ad.DTensor, want int) {
	if len(params) != want {
		ad.ShapeMismatchf(op, nil, "want %d parameters, got %d", want, len(params))
	}
}
