package optim

import (
	"github.com/born-ml/dualad/internal/ad"
)

// SGD implements Stochastic Gradient Descent optimizer with optional momentum.
//
// Update rule without momentum:
//
//	param = param - lr * gradient
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
//
// Example:
//
//	optimizer := optim.NewSGD(optim.SGDConfig{
//	    LR:       0.01,
//	    Momentum: 0.9,
//	})
type SGD struct {
	lr         float64
	momentum   float64
	velocities ad.TensorList
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR       float64 // Learning rate (default: 0.01)
	Momentum float64 // Momentum factor (default: 0.0, range: [0, 1))
}

// NewSGD creates a new SGD optimizer.
func NewSGD(config SGDConfig) *SGD {
	if config.LR == 0 {
		config.LR = 0.01
	}
	return &SGD{
		lr:       config.LR,
		momentum: config.Momentum,
	}
}

// Step performs a single optimization step.
func (s *SGD) Step(params, grads ad.TensorList) ad.TensorList {
	checkStep("SGD", params, grads)
	out := make(ad.TensorList, len(params))
	for i, param := range params {
		grad := grads[i]
		if grad == nil {
			out[i] = param
			continue
		}
		if s.momentum != 0 {
			var velocity ad.DTensor
			s.velocities, velocity = state(s.velocities, params, i)
			grad = ad.Plus(ad.TimesScalar(velocity, s.momentum), grad)
			s.velocities[i] = grad
		}
		out[i] = ad.Minus(param, ad.TimesScalar(grad, s.lr))
	}
	return out
}

// Reset clears the velocities.
func (s *SGD) Reset() {
	s.velocities = nil
}

// GetLR returns the current learning rate.
func (s *SGD) GetLR() float64 {
	return s.lr
}

// SetLR updates the learning rate.
func (s *SGD) SetLR(lr float64) {
	s.lr = lr
}
