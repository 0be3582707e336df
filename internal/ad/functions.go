package ad

import "github.com/born-ml/dualad/internal/tensor"

// Neg returns -x.
func Neg(x DTensor) DTensor { ops, x := dispatch1(x); return ops.Neg(x) }

// Sin returns sin(x) elementwise.
func Sin(x DTensor) DTensor { ops, x := dispatch1(x); return ops.Sin(x) }

// Cos returns cos(x) elementwise.
func Cos(x DTensor) DTensor { ops, x := dispatch1(x); return ops.Cos(x) }

// Tan returns tan(x) elementwise.
func Tan(x DTensor) DTensor { ops, x := dispatch1(x); return ops.Tan(x) }

// Exp returns e^x elementwise.
func Exp(x DTensor) DTensor { ops, x := dispatch1(x); return ops.Exp(x) }

// Log returns the natural logarithm elementwise.
func Log(x DTensor) DTensor { ops, x := dispatch1(x); return ops.Log(x) }

// Sqrt returns the square root elementwise.
func Sqrt(x DTensor) DTensor { ops, x := dispatch1(x); return ops.Sqrt(x) }

// Tanh returns tanh(x) elementwise.
func Tanh(x DTensor) DTensor { ops, x := dispatch1(x); return ops.Tanh(x) }

// Sigmoid returns 1 / (1 + e^-x) elementwise.
func Sigmoid(x DTensor) DTensor { ops, x := dispatch1(x); return ops.Sigmoid(x) }

// Relu returns max(x, 0) elementwise.
func Relu(x DTensor) DTensor { ops, x := dispatch1(x); return ops.Relu(x) }

// Abs returns |x| elementwise.
func Abs(x DTensor) DTensor { ops, x := dispatch1(x); return ops.Abs(x) }

// Atan returns atan(x) elementwise.
func Atan(x DTensor) DTensor { ops, x := dispatch1(x); return ops.Atan(x) }

// Plus returns a + b with broadcasting.
func Plus(a, b DTensor) DTensor { ops, a, b := dispatch2(a, b); return ops.Plus(a, b) }

// Minus returns a - b with broadcasting.
func Minus(a, b DTensor) DTensor { ops, a, b := dispatch2(a, b); return ops.Minus(a, b) }

// Times returns a * b elementwise with broadcasting.
func Times(a, b DTensor) DTensor { ops, a, b := dispatch2(a, b); return ops.Times(a, b) }

// Div returns a / b elementwise with broadcasting.
func Div(a, b DTensor) DTensor { ops, a, b := dispatch2(a, b); return ops.Div(a, b) }

// PlusScalar returns x + s.
func PlusScalar(x DTensor, s float64) DTensor { ops, x := dispatch1(x); return ops.PlusScalar(x, s) }

// MinusScalar returns x - s.
func MinusScalar(x DTensor, s float64) DTensor { return PlusScalar(x, -s) }

// TimesScalar returns x * s.
func TimesScalar(x DTensor, s float64) DTensor { ops, x := dispatch1(x); return ops.TimesScalar(x, s) }

// DivScalar returns x / s.
func DivScalar(x DTensor, s float64) DTensor { return TimesScalar(x, 1/s) }

// ScalarMinus returns s - x.
func ScalarMinus(s float64, x DTensor) DTensor { return PlusScalar(Neg(x), s) }

// PowScalar returns x^p elementwise.
func PowScalar(x DTensor, p float64) DTensor { ops, x := dispatch1(x); return ops.PowScalar(x, p) }

// Square returns x * x.
func Square(x DTensor) DTensor { return Times(x, x) }

// MatMul multiplies matrices over the last two axes.
func MatMul(a, b DTensor) DTensor { ops, a, b := dispatch2(a, b); return ops.MatMul(a, b) }

// Outer returns the outer product, of shape a.shape + b.shape.
func Outer(a, b DTensor) DTensor { ops, a, b := dispatch2(a, b); return ops.Outer(a, b) }

// Sum reduces x over axes; no axes means all axes.
func Sum(x DTensor, axes []int, keepDims bool) DTensor {
	ops, x := dispatch1(x)
	return ops.Sum(x, axes, keepDims)
}

// SumAll reduces x to a scalar.
func SumAll(x DTensor) DTensor { return Sum(x, nil, false) }

// Mean averages x over all elements.
func Mean(x DTensor) DTensor {
	n := x.Shape().NumElements()
	return DivScalar(SumAll(x), float64(n))
}

// Reshape changes the shape, keeping the element order.
func Reshape(x DTensor, shape tensor.Shape) DTensor {
	if x.Shape().Equal(shape) {
		return x
	}
	ops, x := dispatch1(x)
	return ops.Reshape(x, shape)
}

// Flatten reshapes x to rank 1.
func Flatten(x DTensor) DTensor {
	return Reshape(x, tensor.Shape{x.Shape().NumElements()})
}

// Transpose permutes the axes: result axis i is x axis perm[i].
// With no perm the axes are reversed.
func Transpose(x DTensor, perm ...int) DTensor {
	rank := x.Shape().Rank()
	if len(perm) == 0 {
		perm = make([]int, rank)
		for i := range perm {
			perm[i] = rank - 1 - i
		}
	}
	if err := tensor.ValidatePermutation(perm, rank); err != nil {
		ShapeMismatchf("Transpose", []tensor.Shape{x.Shape()}, "%v", err)
	}
	if isIdentityPerm(perm) {
		return x
	}
	ops, x := dispatch1(x)
	return ops.Transpose(x, perm)
}

// Expand broadcasts x to shape.
func Expand(x DTensor, shape tensor.Shape) DTensor {
	if x.Shape().Equal(shape) {
		return x
	}
	ops, x := dispatch1(x)
	return ops.Expand(x, shape)
}

// Slice keeps entries [start, end) along axis.
func Slice(x DTensor, axis, start, end int) DTensor {
	ops, x := dispatch1(x)
	return ops.Slice(x, axis, start, end)
}

// Pad surrounds x with zeros along axis.
func Pad(x DTensor, axis, before, after int) DTensor {
	if before == 0 && after == 0 {
		return x
	}
	ops, x := dispatch1(x)
	return ops.Pad(x, axis, before, after)
}

// Concat joins xs along axis.
func Concat(xs []DTensor, axis int) DTensor {
	if len(xs) == 1 {
		return xs[0]
	}
	ops, xs := dispatchN(xs)
	return ops.Concat(xs, axis)
}

// Gather selects entries indices along axis.
func Gather(x DTensor, axis int, indices []int) DTensor {
	ops, x := dispatch1(x)
	return ops.Gather(x, axis, indices)
}

// ScatterAdd is the adjoint of Gather.
func ScatterAdd(x DTensor, axis int, indices []int, size int) DTensor {
	ops, x := dispatch1(x)
	return ops.ScatterAdd(x, axis, indices, size)
}

// IfThenElse selects a where mask is non-zero and b elsewhere.
// The mask carries no derivative; only its plain value is used.
func IfThenElse(mask, a, b DTensor) DTensor {
	ops, xs := dispatchN([]DTensor{a, b})
	return ops.IfThenElse(Base(mask), xs[0], xs[1])
}

// Less returns the mask a < b, computed on plain values.
func Less(a, b DTensor) DTensor {
	return BaseOps(a).Less(Base(a), Base(b))
}

// Greater returns the mask a > b, computed on plain values.
func Greater(a, b DTensor) DTensor {
	return BaseOps(a).Greater(Base(a), Base(b))
}

// Equal returns the mask a == b, computed on plain values.
func Equal(a, b DTensor) DTensor {
	return BaseOps(a).Equal(Base(a), Base(b))
}

// Conv2D convolves x [N, C, H, W] with kernel [O, C, KH, KW].
func Conv2D(x, kernel DTensor, stride, padding int) DTensor {
	ops, x, kernel := dispatch2(x, kernel)
	return ops.Conv2D(x, kernel, stride, padding)
}

// MaxPool2D takes window maxima over the last two axes of x [N, C, H, W].
func MaxPool2D(x DTensor, size, stride int) DTensor {
	ops, x := dispatch1(x)
	return ops.MaxPool2D(x, size, stride)
}

// AvgPool2D averages non-overlapping size x size windows of x [N, C, H, W].
func AvgPool2D(x DTensor, size int) DTensor {
	ops, x := dispatch1(x)
	return ops.AvgPool2D(x, size)
}

// BatchNorm normalizes x [N, C, ...] per channel and applies scale and bias
// of shape [C]. The batch statistics are returned for the caller to thread
// into UpdateRunningStats.
func BatchNorm(x, scale, bias DTensor, eps float64) (DTensor, BatchNormStats) {
	ops, xs := dispatchN([]DTensor{x, scale, bias})
	return ops.BatchNorm(xs[0], xs[1], xs[2], eps)
}

// Scalar creates a plain scalar using the representation of like.
func Scalar(like DTensor, value float64) DTensor {
	return BaseOps(like).Full(tensor.Shape{}, value)
}

// ZerosLike creates plain zeros of shape using the representation of like.
func ZerosLike(like DTensor, shape tensor.Shape) DTensor {
	return BaseOps(like).Zeros(shape)
}

func isIdentityPerm(perm []int) bool {
	for i, p := range perm {
		if i != p {
			return false
		}
	}
	return true
}
