// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/dualad/internal/tensor"
)

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} represents a 3D tensor with dimensions 2×3×4.
// The empty Shape is a scalar.
type Shape = tensor.Shape

// RawTensor is immutable row-major float64 storage.
type RawTensor = tensor.RawTensor

// Device represents the device where tensor data resides.
type Device = tensor.Device

// Device constants.
const (
	CPU    Device = tensor.CPU
	CUDA   Device = tensor.CUDA
	WebGPU Device = tensor.WebGPU
)

// Zeros creates a CPU tensor filled with zeros.
func Zeros(shape Shape) *RawTensor {
	return tensor.Zeros(shape, tensor.CPU)
}

// Full creates a CPU tensor filled with value.
func Full(shape Shape, value float64) *RawTensor {
	return tensor.Full(shape, value, tensor.CPU)
}

// FromSlice copies data into a CPU tensor of the given shape.
//
// Example:
//
//	raw, err := tensor.FromSlice([]float64{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
func FromSlice(data []float64, shape Shape) (*RawTensor, error) {
	return tensor.FromSlice(data, shape, tensor.CPU)
}

// Identity creates the tensor of shape shape+shape with ones where the two
// halves of the index agree. It seeds full-Jacobian derivative passes.
func Identity(shape Shape) *RawTensor {
	return tensor.Identity(shape, tensor.CPU)
}

// BroadcastShapes returns the broadcast result shape of a and b.
// The boolean reports whether either operand needs broadcasting.
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	return tensor.BroadcastShapes(a, b)
}
