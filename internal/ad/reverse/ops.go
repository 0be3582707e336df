package reverse

import (
	"github.com/born-ml/dualad/internal/ad"
	"github.com/born-ml/dualad/internal/tensor"
)

// Ops implements ad.Operations for the nodes of one tape.
//
// Each primitive evaluates on the primals of its operands and records a
// node whose rule remembers the operands. Operands at lower identities are
// constants of this tape.
type Ops struct {
	tape *Tape
}

// Name implements ad.Operations.
func (o *Ops) Name() string { return "reverse" }

func (o *Ops) primal(x ad.DTensor) ad.DTensor {
	return ad.PrimalAt(x, o.tape.id)
}

func (o *Ops) unary(name string, x ad.DTensor, f func(ad.DTensor) ad.DTensor, slope slopeFunc) ad.DTensor {
	px := o.primal(x)
	py := f(px)
	return o.tape.record(py, &unaryRule{name: name, x: x, px: px, py: py, slope: slope})
}

// Neg implements ad.Operations.
func (o *Ops) Neg(x ad.DTensor) ad.DTensor {
	return o.tape.record(ad.Neg(o.primal(x)), &negRule{x: x})
}

// Sin implements ad.Operations.
func (o *Ops) Sin(x ad.DTensor) ad.DTensor {
	return o.unary("Sin", x, ad.Sin, func(px, _ ad.DTensor) ad.DTensor { return ad.Cos(px) })
}

// Cos implements ad.Operations.
func (o *Ops) Cos(x ad.DTensor) ad.DTensor {
	return o.unary("Cos", x, ad.Cos, func(px, _ ad.DTensor) ad.DTensor { return ad.Neg(ad.Sin(px)) })
}

// Tan implements ad.Operations.
func (o *Ops) Tan(x ad.DTensor) ad.DTensor {
	return o.unary("Tan", x, ad.Tan, func(_, py ad.DTensor) ad.DTensor { return ad.PlusScalar(ad.Square(py), 1) })
}

// Exp implements ad.Operations.
func (o *Ops) Exp(x ad.DTensor) ad.DTensor {
	return o.unary("Exp", x, ad.Exp, func(_, py ad.DTensor) ad.DTensor { return py })
}

// Log implements ad.Operations.
func (o *Ops) Log(x ad.DTensor) ad.DTensor {
	return o.unary("Log", x, ad.Log, func(px, _ ad.DTensor) ad.DTensor { return ad.PowScalar(px, -1) })
}

// Sqrt implements ad.Operations.
func (o *Ops) Sqrt(x ad.DTensor) ad.DTensor {
	return o.unary("Sqrt", x, ad.Sqrt, func(_, py ad.DTensor) ad.DTensor { return ad.TimesScalar(ad.PowScalar(py, -1), 0.5) })
}

// Tanh implements ad.Operations.
func (o *Ops) Tanh(x ad.DTensor) ad.DTensor {
	return o.unary("Tanh", x, ad.Tanh, func(_, py ad.DTensor) ad.DTensor { return ad.ScalarMinus(1, ad.Square(py)) })
}

// Sigmoid implements ad.Operations.
func (o *Ops) Sigmoid(x ad.DTensor) ad.DTensor {
	return o.unary("Sigmoid", x, ad.Sigmoid, func(_, py ad.DTensor) ad.DTensor { return ad.Times(py, ad.ScalarMinus(1, py)) })
}

// Relu implements ad.Operations.
func (o *Ops) Relu(x ad.DTensor) ad.DTensor {
	return o.unary("Relu", x, ad.Relu, func(px, _ ad.DTensor) ad.DTensor {
		return ad.Greater(px, ad.Scalar(px, 0))
	})
}

// Abs implements ad.Operations.
func (o *Ops) Abs(x ad.DTensor) ad.DTensor {
	return o.unary("Abs", x, ad.Abs, func(px, _ ad.DTensor) ad.DTensor {
		zero := ad.Scalar(px, 0)
		return ad.Minus(ad.Greater(px, zero), ad.Less(px, zero))
	})
}

// Atan implements ad.Operations.
func (o *Ops) Atan(x ad.DTensor) ad.DTensor {
	return o.unary("Atan", x, ad.Atan, func(px, _ ad.DTensor) ad.DTensor {
		return ad.PowScalar(ad.PlusScalar(ad.Square(px), 1), -1)
	})
}

// Plus implements ad.Operations.
func (o *Ops) Plus(a, b ad.DTensor) ad.DTensor {
	pa, pb := o.primal(a), o.primal(b)
	return o.tape.record(ad.Plus(pa, pb), &addRule{a: a, b: b, aShape: pa.Shape(), bShape: pb.Shape()})
}

// Minus implements ad.Operations.
func (o *Ops) Minus(a, b ad.DTensor) ad.DTensor {
	pa, pb := o.primal(a), o.primal(b)
	return o.tape.record(ad.Minus(pa, pb), &addRule{a: a, b: b, aShape: pa.Shape(), bShape: pb.Shape(), subtract: true})
}

// Times implements ad.Operations.
func (o *Ops) Times(a, b ad.DTensor) ad.DTensor {
	pa, pb := o.primal(a), o.primal(b)
	return o.tape.record(ad.Times(pa, pb), &mulRule{a: a, b: b, pa: pa, pb: pb})
}

// Div implements ad.Operations.
func (o *Ops) Div(a, b ad.DTensor) ad.DTensor {
	pa, pb := o.primal(a), o.primal(b)
	return o.tape.record(ad.Div(pa, pb), &divRule{a: a, b: b, pa: pa, pb: pb})
}

// PlusScalar implements ad.Operations.
func (o *Ops) PlusScalar(x ad.DTensor, s float64) ad.DTensor {
	return o.tape.record(ad.PlusScalar(o.primal(x), s), &scaleRule{name: "PlusScalar", x: x, factor: 1})
}

// TimesScalar implements ad.Operations.
func (o *Ops) TimesScalar(x ad.DTensor, s float64) ad.DTensor {
	return o.tape.record(ad.TimesScalar(o.primal(x), s), &scaleRule{name: "TimesScalar", x: x, factor: s})
}

// PowScalar implements ad.Operations.
func (o *Ops) PowScalar(x ad.DTensor, p float64) ad.DTensor {
	if p == 0 {
		return o.tape.record(ad.PowScalar(o.primal(x), 0), &scaleRule{name: "PowScalar", x: x, factor: 0})
	}
	return o.unary("PowScalar", x, func(px ad.DTensor) ad.DTensor { return ad.PowScalar(px, p) },
		func(px, _ ad.DTensor) ad.DTensor { return ad.TimesScalar(ad.PowScalar(px, p-1), p) })
}

// MatMul implements ad.Operations.
func (o *Ops) MatMul(a, b ad.DTensor) ad.DTensor {
	pa, pb := o.primal(a), o.primal(b)
	return o.tape.record(ad.MatMul(pa, pb), &matMulRule{a: a, b: b, pa: pa, pb: pb})
}

// Outer implements ad.Operations.
func (o *Ops) Outer(a, b ad.DTensor) ad.DTensor {
	pa, pb := o.primal(a), o.primal(b)
	return o.tape.record(ad.Outer(pa, pb), &outerRule{a: a, b: b, pa: pa, pb: pb})
}

// Sum implements ad.Operations.
func (o *Ops) Sum(x ad.DTensor, axes []int, keepDims bool) ad.DTensor {
	px := o.primal(x)
	y := ad.Sum(px, axes, keepDims)
	return o.tape.record(y, &sumRule{x: x, xShape: px.Shape(), kept: keptShape(px.Shape(), axes)})
}

// Reshape implements ad.Operations.
func (o *Ops) Reshape(x ad.DTensor, shape tensor.Shape) ad.DTensor {
	px := o.primal(x)
	return o.tape.record(ad.Reshape(px, shape), &reshapeRule{x: x, xShape: px.Shape()})
}

// Transpose implements ad.Operations.
func (o *Ops) Transpose(x ad.DTensor, perm []int) ad.DTensor {
	px := o.primal(x)
	return o.tape.record(ad.Transpose(px, perm...), &transposeRule{x: x, inverse: tensor.InversePermutation(perm)})
}

// Expand implements ad.Operations.
func (o *Ops) Expand(x ad.DTensor, shape tensor.Shape) ad.DTensor {
	px := o.primal(x)
	return o.tape.record(ad.Expand(px, shape), &expandRule{x: x, xShape: px.Shape()})
}

// Slice implements ad.Operations.
func (o *Ops) Slice(x ad.DTensor, axis, start, end int) ad.DTensor {
	px := o.primal(x)
	axis = normalizeAxis("Slice", px.Shape(), axis)
	y := ad.Slice(px, axis, start, end)
	return o.tape.record(y, &sliceRule{x: x, axis: axis, before: start, after: px.Shape()[axis] - end})
}

// Pad implements ad.Operations.
func (o *Ops) Pad(x ad.DTensor, axis, before, after int) ad.DTensor {
	px := o.primal(x)
	axis = normalizeAxis("Pad", px.Shape(), axis)
	y := ad.Pad(px, axis, before, after)
	return o.tape.record(y, &padRule{x: x, axis: axis, start: before, end: before + px.Shape()[axis]})
}

// Concat implements ad.Operations.
func (o *Ops) Concat(xs []ad.DTensor, axis int) ad.DTensor {
	ps := make([]ad.DTensor, len(xs))
	sizes := make([]int, len(xs))
	for i, x := range xs {
		ps[i] = o.primal(x)
	}
	axis = normalizeAxis("Concat", ps[0].Shape(), axis)
	for i, p := range ps {
		sizes[i] = p.Shape()[axis]
	}
	return o.tape.record(ad.Concat(ps, axis), &concatRule{xs: xs, axis: axis, sizes: sizes})
}

// Gather implements ad.Operations.
func (o *Ops) Gather(x ad.DTensor, axis int, indices []int) ad.DTensor {
	px := o.primal(x)
	axis = normalizeAxis("Gather", px.Shape(), axis)
	y := ad.Gather(px, axis, indices)
	return o.tape.record(y, &gatherRule{x: x, axis: axis, indices: indices, size: px.Shape()[axis]})
}

// ScatterAdd implements ad.Operations.
func (o *Ops) ScatterAdd(x ad.DTensor, axis int, indices []int, size int) ad.DTensor {
	px := o.primal(x)
	axis = normalizeAxis("ScatterAdd", px.Shape(), axis)
	y := ad.ScatterAdd(px, axis, indices, size)
	return o.tape.record(y, &scatterRule{x: x, axis: axis, indices: indices})
}

// IfThenElse implements ad.Operations.
func (o *Ops) IfThenElse(mask, a, b ad.DTensor) ad.DTensor {
	pa, pb := o.primal(a), o.primal(b)
	y := ad.IfThenElse(mask, pa, pb)
	return o.tape.record(y, &selectRule{mask: mask, a: a, b: b, aShape: pa.Shape(), bShape: pb.Shape()})
}

// requireBase rejects operands whose primal still carries a derivative:
// native kernels only differentiate plain values once.
func (o *Ops) requireBase(op string, primals ...ad.DTensor) ad.NativeKernels {
	for _, p := range primals {
		if p.DerivativeID() != ad.NoDerivativeID {
			ad.Unsupportedf(op, o.Name(), "native kernel needs plain operands, got one at %v", p.DerivativeID())
		}
	}
	kernels, ok := primals[0].Operations().(ad.NativeKernels)
	if !ok {
		ad.Unsupportedf(op, primals[0].Operations().Name(), "representation has no native gradient kernels")
	}
	return kernels
}

// Conv2D implements ad.Operations.
func (o *Ops) Conv2D(x, kernel ad.DTensor, stride, padding int) ad.DTensor {
	px, pk := o.primal(x), o.primal(kernel)
	native := o.requireBase("Conv2D", px, pk)
	y := ad.Conv2D(px, pk, stride, padding)
	return o.tape.record(y, &conv2DRule{native: native, x: x, kernel: kernel, px: px, pk: pk, stride: stride, padding: padding})
}

// MaxPool2D implements ad.Operations.
func (o *Ops) MaxPool2D(x ad.DTensor, size, stride int) ad.DTensor {
	px := o.primal(x)
	native := o.requireBase("MaxPool2D", px)
	y := ad.MaxPool2D(px, size, stride)
	return o.tape.record(y, &maxPoolRule{native: native, x: x, px: px, size: size, stride: stride})
}

// AvgPool2D implements ad.Operations.
func (o *Ops) AvgPool2D(x ad.DTensor, size int) ad.DTensor {
	px := o.primal(x)
	native := o.requireBase("AvgPool2D", px)
	y := ad.AvgPool2D(px, size)
	return o.tape.record(y, &avgPoolRule{native: native, x: x, px: px, size: size})
}

// BatchNorm implements ad.Operations.
func (o *Ops) BatchNorm(x, scale, bias ad.DTensor, eps float64) (ad.DTensor, ad.BatchNormStats) {
	px, ps, pb := o.primal(x), o.primal(scale), o.primal(bias)
	native := o.requireBase("BatchNorm", px, ps, pb)
	y, stats := ad.BatchNorm(px, ps, pb, eps)
	rule := &batchNormRule{native: native, x: x, scale: scale, bias: bias, px: px, ps: ps, stats: stats, eps: eps}
	return o.tape.record(y, rule), stats
}

func normalizeAxis(op string, shape tensor.Shape, axis int) int {
	a, err := tensor.NormalizeAxis(axis, shape.Rank())
	if err != nil {
		ad.ShapeMismatchf(op, []tensor.Shape{shape}, "%v", err)
	}
	return a
}

// keptShape is shape with the reduced axes set to 1 (all axes when empty).
func keptShape(shape tensor.Shape, axes []int) tensor.Shape {
	kept := shape.Clone()
	if len(axes) == 0 {
		for i := range kept {
			kept[i] = 1
		}
		return kept
	}
	for _, axis := range axes {
		kept[normalizeAxis("Sum", shape, axis)] = 1
	}
	return kept
}

var _ ad.Operations = (*Ops)(nil)
