// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	"github.com/born-ml/dualad/autodiff"
	internalcpu "github.com/born-ml/dualad/internal/backend/cpu"
	"github.com/born-ml/dualad/internal/parallel"
)

// Backend represents the CPU backend implementation.
//
// CPU backend provides pure Go float64 implementations of all primitives,
// with gonum BLAS for matrix products and im2col convolutions.
type Backend = internalcpu.CPUBackend

// Tensor is a dense CPU value. It carries no derivative.
type Tensor = internalcpu.Tensor

// Config controls the CPU backend.
type Config = internalcpu.Config

// ParallelConfig controls how kernels split work across goroutines.
type ParallelConfig = parallel.Config

// Features lists the CPU instruction set extensions detected at startup.
type Features = internalcpu.Features

// Compile-time checks that the backend serves every primitive.
var (
	_ autodiff.Operations     = (*Backend)(nil)
	_ autodiff.BaseOperations = (*Backend)(nil)
	_ autodiff.DTensor        = (*Tensor)(nil)
)

// New creates a new CPU backend.
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
//	    x := backend.Vector(1, 2, 3)
//	    y := autodiff.Sin(x)
//	}
func New() *Backend {
	return internalcpu.New()
}

// NewWithConfig creates a CPU backend with explicit configuration.
func NewWithConfig(cfg Config) *Backend {
	return internalcpu.NewWithConfig(cfg)
}

// DefaultConfig returns defaults tuned to the detected CPU.
func DefaultConfig() Config {
	return internalcpu.DefaultConfig()
}

// Sequential returns a parallel configuration that runs every kernel on the
// calling goroutine.
func Sequential() ParallelConfig {
	return parallel.Sequential()
}

// AsDense returns the dense value under any derivative wrappers of x.
func AsDense(x autodiff.DTensor) (*Tensor, bool) {
	return internalcpu.AsDense(x)
}

// DetectFeatures queries the running CPU.
func DetectFeatures() Features {
	return internalcpu.DetectFeatures()
}
