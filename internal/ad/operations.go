// Package ad is the core of the differentiation engine.
//
// Every value taking part in a computation is a DTensor. A DTensor belongs to
// one derivative identity: plain values belong to NoDerivativeID, forward
// duals and reverse tape nodes belong to the identity of the pass that
// created them and wrap a primal from a strictly lower identity.
//
// Arithmetic is written once, as the package functions in this package
// (Plus, Sin, MatMul, ...). Each call picks the operand with the highest
// identity and forwards to that operand's Operations, so the same code runs
// over dense values, forward duals, reverse nodes, or any other
// representation that implements Operations.
//
// Engine failures are raised as panics carrying *InvariantError,
// *UnsupportedError, *ShapeError or *LifetimeError; drivers turn all but
// invariant violations into returned errors with Catch.
package ad

import "github.com/born-ml/dualad/internal/tensor"

// DTensor is a differentiable tensor of some representation kind.
type DTensor interface {
	// Shape returns the primal shape.
	Shape() tensor.Shape

	// DerivativeID returns the identity this value belongs to.
	DerivativeID() *DerivativeID

	// Primal returns the value one level down. Plain values return themselves.
	Primal() DTensor

	// Operations returns the primitive implementation of this representation.
	Operations() Operations
}

// Operations is the capability table of one representation kind.
//
// A method is only called with operands whose identities are at or below
// the receiver's kind; operands at a lower identity are constants of the
// level being built.
type Operations interface {
	// Name identifies the representation kind in error messages.
	Name() string

	Neg(x DTensor) DTensor
	Sin(x DTensor) DTensor
	Cos(x DTensor) DTensor
	Tan(x DTensor) DTensor
	Exp(x DTensor) DTensor
	Log(x DTensor) DTensor
	Sqrt(x DTensor) DTensor
	Tanh(x DTensor) DTensor
	Sigmoid(x DTensor) DTensor
	Relu(x DTensor) DTensor
	Abs(x DTensor) DTensor
	Atan(x DTensor) DTensor

	// Binary arithmetic with NumPy broadcasting.
	Plus(a, b DTensor) DTensor
	Minus(a, b DTensor) DTensor
	Times(a, b DTensor) DTensor
	Div(a, b DTensor) DTensor

	PlusScalar(x DTensor, s float64) DTensor
	TimesScalar(x DTensor, s float64) DTensor
	PowScalar(x DTensor, p float64) DTensor

	// MatMul multiplies the last two axes; leading batch axes broadcast.
	MatMul(a, b DTensor) DTensor
	// Outer returns a tensor of shape a.shape + b.shape.
	Outer(a, b DTensor) DTensor

	// Sum reduces over axes (all axes when empty).
	Sum(x DTensor, axes []int, keepDims bool) DTensor

	Reshape(x DTensor, shape tensor.Shape) DTensor
	Transpose(x DTensor, perm []int) DTensor
	// Expand broadcasts x to shape.
	Expand(x DTensor, shape tensor.Shape) DTensor
	Slice(x DTensor, axis, start, end int) DTensor
	Pad(x DTensor, axis, before, after int) DTensor
	Concat(xs []DTensor, axis int) DTensor
	Gather(x DTensor, axis int, indices []int) DTensor
	// ScatterAdd is the adjoint of Gather: a zero tensor with size entries
	// along axis receives slice i of x at indices[i], summing duplicates.
	ScatterAdd(x DTensor, axis int, indices []int, size int) DTensor

	// IfThenElse selects a where mask is non-zero and b elsewhere.
	IfThenElse(mask, a, b DTensor) DTensor

	Conv2D(x, kernel DTensor, stride, padding int) DTensor
	MaxPool2D(x DTensor, size, stride int) DTensor
	AvgPool2D(x DTensor, size int) DTensor
	BatchNorm(x, scale, bias DTensor, eps float64) (DTensor, BatchNormStats)
}

// BaseOperations is implemented by representations of plain values: they
// create constants and evaluate comparisons, which carry no derivative.
type BaseOperations interface {
	Operations

	Zeros(shape tensor.Shape) DTensor
	Full(shape tensor.Shape, value float64) DTensor
	Identity(shape tensor.Shape) DTensor

	// Comparisons return 1 where the relation holds and 0 elsewhere.
	Less(a, b DTensor) DTensor
	Greater(a, b DTensor) DTensor
	Equal(a, b DTensor) DTensor
}

// NativeKernels exposes the gradient entry points of optimized kernels.
// Reverse rules for Conv2D, pooling and BatchNorm call them on plain values.
type NativeKernels interface {
	Conv2DInputBackward(x, kernel, grad DTensor, stride, padding int) DTensor
	Conv2DKernelBackward(x, kernel, grad DTensor, stride, padding int) DTensor
	MaxPool2DBackward(x, grad DTensor, size, stride int) DTensor
	AvgPool2DBackward(x, grad DTensor, size int) DTensor
	BatchNormBackward(x, scale, grad DTensor, stats BatchNormStats, eps float64) (dx, dscale, dbias DTensor)
}

// BatchNormStats are the per-channel batch statistics computed by BatchNorm.
// They are plain values and never carry a derivative.
type BatchNormStats struct {
	Mean     DTensor
	Variance DTensor
}

// RunningStats are the running averages a training loop keeps for
// inference-time normalization.
type RunningStats struct {
	Mean     DTensor
	Variance DTensor
}

// UpdateRunningStats folds one batch's statistics into running averages:
// running = (1 - momentum) * running + momentum * batch.
// The result is a new value; nothing is mutated.
func UpdateRunningStats(running RunningStats, batch BatchNormStats, momentum float64) RunningStats {
	blend := func(old, cur DTensor) DTensor {
		if old == nil {
			return cur
		}
		return Plus(TimesScalar(old, 1-momentum), TimesScalar(cur, momentum))
	}
	return RunningStats{
		Mean:     blend(running.Mean, batch.Mean),
		Variance: blend(running.Variance, batch.Variance),
	}
}
