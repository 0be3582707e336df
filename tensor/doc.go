// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the value model shared by every representation.
//
// # Overview
//
// This package provides:
//   - Shape with NumPy-style broadcasting rules
//   - RawTensor, immutable row-major float64 storage
//   - Creation helpers (Zeros, Full, FromSlice, Identity)
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/dualad/backend/cpu"
//	    "github.com/born-ml/dualad/tensor"
//	)
//
//	func main() {
//	    raw, err := tensor.FromSlice([]float64{1, 2, 3, 4}, tensor.Shape{2, 2})
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    x := cpu.New().Wrap(raw)
//	}
//
// # Derivative Shapes
//
// Derivatives concatenate shapes: a reverse derivative of f: X -> Y has shape
// X.shape + Y.shape, a forward derivative has shape Y.shape + X.shape, and
// Identity(s) has shape s + s with ones on the diagonal.
//
// # Thread Safety
//
// RawTensor values are never mutated after creation and may be shared
// between goroutines.
package tensor
