// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides gradient-based parameter updates.
//
// # Overview
//
// This package contains:
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation with bias correction
//   - Optimizer interface for custom optimizers
//
// Parameters and gradients are autodiff.TensorList values in matching order.
// Tensors are immutable, so Step returns the new parameters.
//
// # Training Loop Pattern
//
//	optimizer := optim.NewAdam(optim.AdamConfig{LR: 0.01})
//	for range steps {
//	    grads, err := autodiff.ReverseDerivativeOf(engine, loss, params)
//	    if err != nil {
//	        return err
//	    }
//	    params = optimizer.Step(params, grads)
//	}
package optim

import (
	"github.com/born-ml/dualad/internal/optim"
)

// Optimizer interface defines the common interface for all optimizers.
type Optimizer = optim.Optimizer

// Config represents the base configuration for optimizers.
type Config = optim.Config

// SGD represents the SGD optimizer with optional momentum.
type SGD = optim.SGD

// SGDConfig contains configuration for SGD optimizer.
type SGDConfig = optim.SGDConfig

// NewSGD creates a new SGD optimizer. A zero LR defaults to 0.01.
func NewSGD(config SGDConfig) *SGD {
	return optim.NewSGD(config)
}

// Adam represents the Adam optimizer.
type Adam = optim.Adam

// AdamConfig contains configuration for Adam optimizer.
type AdamConfig = optim.AdamConfig

// NewAdam creates a new Adam optimizer. Zero fields take the usual defaults
// (LR 0.001, betas 0.9/0.999, eps 1e-8).
func NewAdam(config AdamConfig) *Adam {
	return optim.NewAdam(config)
}
