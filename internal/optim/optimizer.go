// Package optim implements gradient-based parameter updates.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation
//
// Parameters and gradients are ad.TensorList values in matching order, as
// produced by diff.ReverseDerivativeOf for a scalar loss. Tensors are
// immutable, so Step returns the updated parameters instead of writing
// through them.
//
// Example usage:
//
//	optimizer := optim.NewAdam(optim.AdamConfig{LR: 0.01})
//	for step := range steps {
//	    grads, err := diff.ReverseDerivativeOf(engine, loss, params)
//	    if err != nil {
//	        return err
//	    }
//	    params = optimizer.Step(params, grads)
//	}
package optim

import (
	"github.com/born-ml/dualad/internal/ad"
	"github.com/born-ml/dualad/internal/tensor"
)

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Step applies one update and returns the new parameters.
	// A nil gradient leaves its parameter unchanged.
	Step(params, grads ad.TensorList) ad.TensorList

	// Reset drops the accumulated state (velocities, moments, timestep).
	Reset()

	// GetLR returns the current learning rate.
	GetLR() float64
}

// Config is the base configuration for all optimizers.
type Config struct {
	LR float64 // Learning rate
}

// checkStep validates that grads line up with params.
func checkStep(op string, params, grads ad.TensorList) {
	if len(params) != len(grads) {
		ad.ShapeMismatchf(op, nil, "%d parameters, %d gradients", len(params), len(grads))
	}
	for i, p := range params {
		g := grads[i]
		if g != nil && !g.Shape().Equal(p.Shape()) {
			ad.ShapeMismatchf(op, []tensor.Shape{p.Shape(), g.Shape()}, "gradient %d must match its parameter (scalar loss)", i)
		}
	}
}

// state returns slot i of buf, growing it and filling new slots with zeros
// shaped like params.
func state(buf ad.TensorList, params ad.TensorList, i int) (ad.TensorList, ad.DTensor) {
	for len(buf) < len(params) {
		buf = append(buf, nil)
	}
	if buf[i] == nil {
		p := params[i]
		buf[i] = ad.ZerosLike(p, p.Shape())
	}
	return buf, buf[i]
}
