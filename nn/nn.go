// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides small neural network modules for the differentiation
// engine.
//
// Modules are immutable. A Sequential is a Differentiable aggregate, so the
// structural drivers differentiate a loss with respect to every parameter at
// once and return the gradient as a Sequential of the same layout.
//
//	rng := rand.New(rand.NewSource(1))
//	model := nn.NewSequential(
//	    nn.NewLinear(backend, rng, 1, 16),
//	    nn.NewTanh(),
//	    nn.NewLinear(backend, rng, 16, 1),
//	)
//	loss := func(m *nn.Sequential) autodiff.DTensor {
//	    return nn.MSELoss(m.Forward(x), y)
//	}
//	grads, err := autodiff.ReverseDerivativeOf(engine, loss, model)
//	model = model.Rebuild(optimizer.Step(model.Tensors(), grads.Tensors()))
package nn

import (
	"math/rand"

	"github.com/born-ml/dualad/backend/cpu"
	"github.com/born-ml/dualad/internal/nn"
	"github.com/born-ml/dualad/tensor"
)

// Module is the base interface for all neural network components.
type Module = nn.Module

// Layer types.
type (
	Linear     = nn.Linear
	Conv2D     = nn.Conv2D
	ReLU       = nn.ReLU
	Sigmoid    = nn.Sigmoid
	Tanh       = nn.Tanh
	MaxPool2D  = nn.MaxPool2D
	AvgPool2D  = nn.AvgPool2D
	Flatten    = nn.Flatten
	Sequential = nn.Sequential
)

// NewLinear creates a fully connected layer y = x @ W.T + b.
func NewLinear(backend *cpu.Backend, rng *rand.Rand, inFeatures, outFeatures int) *Linear {
	return nn.NewLinear(backend, rng, inFeatures, outFeatures)
}

// NewConv2D creates a 2D convolution layer.
func NewConv2D(backend *cpu.Backend, rng *rand.Rand, inChannels, outChannels, kernelH, kernelW, stride, padding int) *Conv2D {
	return nn.NewConv2D(backend, rng, inChannels, outChannels, kernelH, kernelW, stride, padding)
}

// NewReLU creates a ReLU activation.
func NewReLU() *ReLU { return nn.NewReLU() }

// NewSigmoid creates a Sigmoid activation.
func NewSigmoid() *Sigmoid { return nn.NewSigmoid() }

// NewTanh creates a Tanh activation.
func NewTanh() *Tanh { return nn.NewTanh() }

// NewMaxPool2D creates a max pooling layer.
func NewMaxPool2D(kernelSize, stride int) *MaxPool2D { return nn.NewMaxPool2D(kernelSize, stride) }

// NewAvgPool2D creates an average pooling layer.
func NewAvgPool2D(kernelSize int) *AvgPool2D { return nn.NewAvgPool2D(kernelSize) }

// NewFlatten creates a Flatten layer.
func NewFlatten() *Flatten { return nn.NewFlatten() }

// NewSequential chains modules.
func NewSequential(modules ...Module) *Sequential { return nn.NewSequential(modules...) }

// MSELoss computes mean((predictions - targets)²).
var MSELoss = nn.MSELoss

// Xavier draws a Glorot-uniform weight tensor.
func Xavier(backend *cpu.Backend, rng *rand.Rand, fanIn, fanOut int, shape tensor.Shape) *cpu.Tensor {
	return nn.Xavier(backend, rng, fanIn, fanOut, shape)
}
