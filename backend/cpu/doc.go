// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides a pure Go CPU backend for the differentiation engine.
//
// # Overview
//
// This package implements the dense representation with:
//   - Pure Go implementation (no CGO)
//   - float64 storage
//   - gonum BLAS for matrix multiplication
//   - Im2col algorithm for convolutions
//   - NumPy-compatible broadcasting
//
// # Basic Usage
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
//	    square := func(x autodiff.DTensor) autodiff.DTensor { return autodiff.Times(x, x) }
//	    grad, err := engine.ReverseDerivative(square, backend.Scalar(3))
//	}
//
// # Native Kernels
//
// Conv2D, MaxPool2D, AvgPool2D and BatchNorm run as single kernels with
// dedicated gradient entry points. They differentiate once in reverse mode
// (scalar loss), and Conv2D and AvgPool2D also propagate forward tangents.
//
// # Thread Safety
//
// The CPU backend is safe for concurrent use. Tensors are immutable and
// kernels never write to their inputs.
package cpu
