// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package autodiff

import (
	"github.com/born-ml/dualad/internal/ad"
)

// Elementwise functions.
var (
	Neg     = ad.Neg
	Sin     = ad.Sin
	Cos     = ad.Cos
	Tan     = ad.Tan
	Exp     = ad.Exp
	Log     = ad.Log
	Sqrt    = ad.Sqrt
	Tanh    = ad.Tanh
	Sigmoid = ad.Sigmoid
	Relu    = ad.Relu
	Abs     = ad.Abs
	Atan    = ad.Atan
	Square  = ad.Square
)

// Arithmetic with NumPy-style broadcasting.
var (
	Plus        = ad.Plus
	Minus       = ad.Minus
	Times       = ad.Times
	Div         = ad.Div
	PlusScalar  = ad.PlusScalar
	MinusScalar = ad.MinusScalar
	TimesScalar = ad.TimesScalar
	DivScalar   = ad.DivScalar
	ScalarMinus = ad.ScalarMinus
	PowScalar   = ad.PowScalar
)

// Linear algebra and reductions.
var (
	MatMul = ad.MatMul
	Outer  = ad.Outer
	Sum    = ad.Sum
	SumAll = ad.SumAll
	Mean   = ad.Mean
)

// Shape manipulation and indexing.
var (
	Reshape    = ad.Reshape
	Flatten    = ad.Flatten
	Transpose  = ad.Transpose
	Expand     = ad.Expand
	Slice      = ad.Slice
	Pad        = ad.Pad
	Concat     = ad.Concat
	Gather     = ad.Gather
	ScatterAdd = ad.ScatterAdd
)

// Comparisons produce plain 0/1 masks for IfThenElse.
var (
	Less       = ad.Less
	Greater    = ad.Greater
	Equal      = ad.Equal
	IfThenElse = ad.IfThenElse
)

// Native kernels.
var (
	Conv2D    = ad.Conv2D
	MaxPool2D = ad.MaxPool2D
	AvgPool2D = ad.AvgPool2D
	BatchNorm = ad.BatchNorm
)

// Constants in the representation of an existing value.
var (
	Scalar    = ad.Scalar
	ZerosLike = ad.ZerosLike
)

// Base returns the plain value under every derivative layer of x.
func Base(x DTensor) DTensor {
	return ad.Base(x)
}
