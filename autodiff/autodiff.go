// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides forward and reverse automatic differentiation.
//
// Ordinary numeric code written against DTensor runs unchanged on plain
// values, forward duals and reverse tape nodes. An Engine differentiates it
// in either mode, and drivers nest to any depth for higher-order and
// mixed-mode derivatives.
//
// Example:
//
//	import (
//	    "github.com/born-ml/dualad/autodiff"
//	    "github.com/born-ml/dualad/backend/cpu"
//	)
//
//	func main() {
//	    backend := cpu.New()
//	    engine := autodiff.New()
//
//	    cube := func(x autodiff.DTensor) autodiff.DTensor {
//	        return autodiff.Times(autodiff.Times(x, x), x)
//	    }
//	    second := func(x autodiff.DTensor) autodiff.DTensor {
//	        return autodiff.Must(engine.ReverseDerivative(cube, x))
//	    }
//
//	    // d²/dx² x³ at 2, forward over reverse.
//	    d, err := engine.ForwardDerivative(second, backend.Scalar(2))
//	}
package autodiff

import (
	"log/slog"

	"github.com/born-ml/dualad/internal/ad"
	"github.com/born-ml/dualad/internal/diff"
)

// DTensor is a value that may carry derivatives.
type DTensor = ad.DTensor

// Operations is the primitive set a representation implements.
type Operations = ad.Operations

// BaseOperations is implemented by representations of plain values.
type BaseOperations = ad.BaseOperations

// NativeKernels exposes gradient entry points of fused kernels.
type NativeKernels = ad.NativeKernels

// Unimplemented is a base for new representations: embed it and override
// the primitives the representation supports.
type Unimplemented = ad.Unimplemented

// Sequencer mints ordered derivative identities.
type Sequencer = ad.Sequencer

// DerivativeID identifies one differentiation pass.
type DerivativeID = ad.DerivativeID

// Mode tells which engine owns a derivative identity.
type Mode = ad.Mode

// Identity modes.
const (
	ModeNone    Mode = ad.ModeNone
	ModeForward Mode = ad.ModeForward
	ModeReverse Mode = ad.ModeReverse
)

// NoDerivativeID is the identity of plain values.
var NoDerivativeID = ad.NoDerivativeID

// NewSequencer creates a sequencer. Engines that share values must share it.
func NewSequencer() *Sequencer {
	return ad.NewSequencer()
}

// Error types. Drivers return UnsupportedError, ShapeError and LifetimeError;
// InvariantError is always re-panicked.
type (
	InvariantError   = ad.InvariantError
	UnsupportedError = ad.UnsupportedError
	ShapeError       = ad.ShapeError
	LifetimeError    = ad.LifetimeError
)

// Error predicates.
var (
	IsInvariant   = ad.IsInvariant
	IsUnsupported = ad.IsUnsupported
	IsShape       = ad.IsShape
	IsLifetime    = ad.IsLifetime
)

// Engine runs differentiation passes.
type Engine = diff.Engine

// Option configures an Engine.
type Option = diff.Option

// Func is a differentiable function of one tensor.
type Func = diff.Func

// New creates an Engine.
//
// Example:
//
//	engine := autodiff.New(autodiff.WithLogger(slog.Default()))
func New(opts ...Option) *Engine {
	return diff.New(opts...)
}

// WithLogger sets the logger used for pass tracing.
func WithLogger(logger *slog.Logger) Option {
	return diff.WithLogger(logger)
}

// WithSequencer shares a sequencer between engines.
func WithSequencer(seq *Sequencer) Option {
	return diff.WithSequencer(seq)
}

// Must returns v or panics with err, for nested driver calls.
func Must[T any](v T, err error) T {
	return diff.Must(v, err)
}

// Differentiable is a user aggregate of tensors.
type Differentiable[T any] = ad.Differentiable[T]

// Stock aggregates.
type (
	Pair       = ad.Pair
	TensorList = ad.TensorList
)

// ReverseDerivativeOf differentiates f with respect to every tensor of x.
func ReverseDerivativeOf[T Differentiable[T]](e *Engine, f func(T) DTensor, x T) (T, error) {
	return diff.ReverseDerivativeOf(e, f, x)
}

// ValueAndReverseDerivativeOf is ReverseDerivativeOf that also returns f(x).
func ValueAndReverseDerivativeOf[T Differentiable[T]](e *Engine, f func(T) DTensor, x T) (DTensor, T, error) {
	return diff.ValueAndReverseDerivativeOf(e, f, x)
}

// ForwardDerivativeOf returns the derivative of f at x along direction.
func ForwardDerivativeOf[T Differentiable[T]](e *Engine, f func(T) DTensor, x, direction T) (DTensor, error) {
	return diff.ForwardDerivativeOf(e, f, x, direction)
}

// ValueAndForwardDerivativeOf is ForwardDerivativeOf that also returns f(x).
func ValueAndForwardDerivativeOf[T Differentiable[T]](e *Engine, f func(T) DTensor, x, direction T) (DTensor, DTensor, error) {
	return diff.ValueAndForwardDerivativeOf(e, f, x, direction)
}

// BatchNormStats are per-channel batch statistics.
type BatchNormStats = ad.BatchNormStats

// RunningStats are running averages kept by a training loop.
type RunningStats = ad.RunningStats

// UpdateRunningStats folds batch statistics into running averages.
func UpdateRunningStats(running RunningStats, batch BatchNormStats, momentum float64) RunningStats {
	return ad.UpdateRunningStats(running, batch, momentum)
}
