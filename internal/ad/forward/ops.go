package forward

import (
	"github.com/born-ml/dualad/internal/ad"
	"github.com/born-ml/dualad/internal/tensor"
)

// Ops implements ad.Operations for the duals of one forward identity.
type Ops struct {
	id *ad.DerivativeID
}

// Name implements ad.Operations.
func (o Ops) Name() string { return "forward" }

// split returns the primal and tangent of x at this identity. Values from
// lower identities are constants: their tangent is nil.
func (o Ops) split(x ad.DTensor) (ad.DTensor, ad.DTensor) {
	if d, ok := x.(*Tensor); ok && d.id == o.id {
		return d.primal, d.tangent
	}
	return x, nil
}

func (o Ops) dual(primal, tangent ad.DTensor) ad.DTensor {
	return &Tensor{primal: primal, tangent: tangent, id: o.id}
}

func (o Ops) k() int { return o.id.TrailingRank() }

// scale multiplies a tangent by a primal-shaped factor.
func (o Ops) scale(t, factor ad.DTensor) ad.DTensor {
	if t == nil {
		return nil
	}
	return ad.Times(t, ad.ExpandTrailing(factor, o.k()))
}

// add sums tangents, treating nil as zero.
func add(a, b ad.DTensor) ad.DTensor {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	default:
		return ad.Plus(a, b)
	}
}

// apply maps a non-nil tangent.
func apply(t ad.DTensor, f func(ad.DTensor) ad.DTensor) ad.DTensor {
	if t == nil {
		return nil
	}
	return f(t)
}

func (o Ops) unary(x ad.DTensor, f func(ad.DTensor) ad.DTensor, slope func(px, py ad.DTensor) ad.DTensor) ad.DTensor {
	px, tx := o.split(x)
	py := f(px)
	if tx == nil {
		return o.dual(py, nil)
	}
	return o.dual(py, o.scale(tx, slope(px, py)))
}

// Neg implements ad.Operations.
func (o Ops) Neg(x ad.DTensor) ad.DTensor {
	px, tx := o.split(x)
	return o.dual(ad.Neg(px), apply(tx, ad.Neg))
}

// Sin implements ad.Operations.
func (o Ops) Sin(x ad.DTensor) ad.DTensor {
	return o.unary(x, ad.Sin, func(px, _ ad.DTensor) ad.DTensor { return ad.Cos(px) })
}

// Cos implements ad.Operations.
func (o Ops) Cos(x ad.DTensor) ad.DTensor {
	return o.unary(x, ad.Cos, func(px, _ ad.DTensor) ad.DTensor { return ad.Neg(ad.Sin(px)) })
}

// Tan implements ad.Operations.
func (o Ops) Tan(x ad.DTensor) ad.DTensor {
	return o.unary(x, ad.Tan, func(_, py ad.DTensor) ad.DTensor { return ad.PlusScalar(ad.Square(py), 1) })
}

// Exp implements ad.Operations.
func (o Ops) Exp(x ad.DTensor) ad.DTensor {
	return o.unary(x, ad.Exp, func(_, py ad.DTensor) ad.DTensor { return py })
}

// Log implements ad.Operations.
func (o Ops) Log(x ad.DTensor) ad.DTensor {
	return o.unary(x, ad.Log, func(px, _ ad.DTensor) ad.DTensor { return ad.PowScalar(px, -1) })
}

// Sqrt implements ad.Operations.
func (o Ops) Sqrt(x ad.DTensor) ad.DTensor {
	return o.unary(x, ad.Sqrt, func(_, py ad.DTensor) ad.DTensor { return ad.TimesScalar(ad.PowScalar(py, -1), 0.5) })
}

// Tanh implements ad.Operations.
func (o Ops) Tanh(x ad.DTensor) ad.DTensor {
	return o.unary(x, ad.Tanh, func(_, py ad.DTensor) ad.DTensor { return ad.ScalarMinus(1, ad.Square(py)) })
}

// Sigmoid implements ad.Operations.
func (o Ops) Sigmoid(x ad.DTensor) ad.DTensor {
	return o.unary(x, ad.Sigmoid, func(_, py ad.DTensor) ad.DTensor { return ad.Times(py, ad.ScalarMinus(1, py)) })
}

// Relu implements ad.Operations.
func (o Ops) Relu(x ad.DTensor) ad.DTensor {
	return o.unary(x, ad.Relu, func(px, _ ad.DTensor) ad.DTensor { return ad.Greater(px, ad.Scalar(px, 0)) })
}

// Abs implements ad.Operations.
func (o Ops) Abs(x ad.DTensor) ad.DTensor {
	return o.unary(x, ad.Abs, func(px, _ ad.DTensor) ad.DTensor {
		zero := ad.Scalar(px, 0)
		return ad.Minus(ad.Greater(px, zero), ad.Less(px, zero))
	})
}

// Atan implements ad.Operations.
func (o Ops) Atan(x ad.DTensor) ad.DTensor {
	return o.unary(x, ad.Atan, func(px, _ ad.DTensor) ad.DTensor {
		return ad.PowScalar(ad.PlusScalar(ad.Square(px), 1), -1)
	})
}

// broadcastTangent expands a tangent of a broadcast operand to out + T.
func (o Ops) broadcastTangent(t ad.DTensor, out tensor.Shape) ad.DTensor {
	if t == nil {
		return nil
	}
	return ad.BroadcastTrailing(t, out, o.k())
}

// Plus implements ad.Operations.
func (o Ops) Plus(a, b ad.DTensor) ad.DTensor {
	pa, ta := o.split(a)
	pb, tb := o.split(b)
	y := ad.Plus(pa, pb)
	return o.dual(y, add(o.broadcastTangent(ta, y.Shape()), o.broadcastTangent(tb, y.Shape())))
}

// Minus implements ad.Operations.
func (o Ops) Minus(a, b ad.DTensor) ad.DTensor {
	pa, ta := o.split(a)
	pb, tb := o.split(b)
	y := ad.Minus(pa, pb)
	return o.dual(y, add(o.broadcastTangent(ta, y.Shape()), apply(o.broadcastTangent(tb, y.Shape()), ad.Neg)))
}

// Times implements ad.Operations.
func (o Ops) Times(a, b ad.DTensor) ad.DTensor {
	pa, ta := o.split(a)
	pb, tb := o.split(b)
	y := ad.Times(pa, pb)
	t := add(o.scale(ta, pb), o.scale(tb, pa))
	return o.dual(y, o.broadcastTangent(t, y.Shape()))
}

// Div implements ad.Operations.
func (o Ops) Div(a, b ad.DTensor) ad.DTensor {
	pa, ta := o.split(a)
	pb, tb := o.split(b)
	y := ad.Div(pa, pb)
	var t ad.DTensor
	if ta != nil {
		t = ad.Div(ta, ad.ExpandTrailing(pb, o.k()))
	}
	t = add(t, o.scale(tb, ad.Neg(ad.Div(pa, ad.Square(pb)))))
	return o.dual(y, o.broadcastTangent(t, y.Shape()))
}

// PlusScalar implements ad.Operations.
func (o Ops) PlusScalar(x ad.DTensor, s float64) ad.DTensor {
	px, tx := o.split(x)
	return o.dual(ad.PlusScalar(px, s), tx)
}

// TimesScalar implements ad.Operations.
func (o Ops) TimesScalar(x ad.DTensor, s float64) ad.DTensor {
	px, tx := o.split(x)
	return o.dual(ad.TimesScalar(px, s), apply(tx, func(t ad.DTensor) ad.DTensor { return ad.TimesScalar(t, s) }))
}

// PowScalar implements ad.Operations.
func (o Ops) PowScalar(x ad.DTensor, p float64) ad.DTensor {
	if p == 0 {
		px, _ := o.split(x)
		return o.dual(ad.PowScalar(px, 0), nil)
	}
	return o.unary(x, func(px ad.DTensor) ad.DTensor { return ad.PowScalar(px, p) },
		func(px, _ ad.DTensor) ad.DTensor { return ad.TimesScalar(ad.PowScalar(px, p-1), p) })
}

// padBatch prepends unit axes to a matrix tangent so its batch axes match
// a result of rank outRank.
func padBatch(t ad.DTensor, primalRank, outRank int) ad.DTensor {
	lead := outRank - primalRank
	if t == nil || lead <= 0 {
		return t
	}
	ones := make(tensor.Shape, lead)
	for i := range ones {
		ones[i] = 1
	}
	return ad.Reshape(t, ones.Concat(t.Shape()))
}

// MatMul implements ad.Operations: t = ta @ b + a @ tb.
func (o Ops) MatMul(a, b ad.DTensor) ad.DTensor {
	pa, ta := o.split(a)
	pb, tb := o.split(b)
	y := ad.MatMul(pa, pb)
	r := y.Shape().Rank()
	var t ad.DTensor
	if ta != nil {
		t = ad.MatMulTrailingLeft(padBatch(ta, pa.Shape().Rank(), r), pb, o.k())
	}
	if tb != nil {
		t = add(t, ad.MatMulTrailingRight(pa, padBatch(tb, pb.Shape().Rank(), r), o.k()))
	}
	return o.dual(y, o.broadcastTangent(t, y.Shape()))
}

// Outer implements ad.Operations.
func (o Ops) Outer(a, b ad.DTensor) ad.DTensor {
	pa, ta := o.split(a)
	pb, tb := o.split(b)
	y := ad.Outer(pa, pb)
	k := o.k()
	ra, rb := pa.Shape().Rank(), pb.Shape().Rank()
	var t ad.DTensor
	if ta != nil {
		// [A, T] -> [A, 1..., T] against [B, 1...].
		ts := ta.Shape()
		spread := ts.Take(ra).WithTrailingOnes(rb).Concat(ts.Drop(ra))
		t = ad.Times(ad.Reshape(ta, spread), ad.ExpandTrailing(pb, k))
	}
	if tb != nil {
		t = add(t, ad.Times(ad.ExpandTrailing(pa, rb+k), tb))
	}
	return o.dual(y, o.broadcastTangent(t, y.Shape()))
}

// Sum implements ad.Operations.
func (o Ops) Sum(x ad.DTensor, axes []int, keepDims bool) ad.DTensor {
	px, tx := o.split(x)
	y := ad.Sum(px, axes, keepDims)
	if tx == nil {
		return o.dual(y, nil)
	}
	// The tangent has extra trailing axes: spell out the primal axes.
	rank := px.Shape().Rank()
	var tAxes []int
	if len(axes) == 0 {
		tAxes = make([]int, rank)
		for i := range tAxes {
			tAxes[i] = i
		}
	} else {
		tAxes = make([]int, len(axes))
		for i, axis := range axes {
			tAxes[i] = normalizeAxis("Sum", px.Shape(), axis)
		}
	}
	if len(tAxes) == 0 {
		return o.dual(y, tx)
	}
	return o.dual(y, ad.Sum(tx, tAxes, keepDims))
}

// Reshape implements ad.Operations.
func (o Ops) Reshape(x ad.DTensor, shape tensor.Shape) ad.DTensor {
	px, tx := o.split(x)
	return o.dual(ad.Reshape(px, shape), apply(tx, func(t ad.DTensor) ad.DTensor {
		return ad.Reshape(t, shape.Concat(o.id.TangentShape()))
	}))
}

// Transpose implements ad.Operations.
func (o Ops) Transpose(x ad.DTensor, perm []int) ad.DTensor {
	px, tx := o.split(x)
	return o.dual(ad.Transpose(px, perm...), apply(tx, func(t ad.DTensor) ad.DTensor {
		return ad.Transpose(t, ad.ExtendPermutation(perm, o.k())...)
	}))
}

// Expand implements ad.Operations.
func (o Ops) Expand(x ad.DTensor, shape tensor.Shape) ad.DTensor {
	px, tx := o.split(x)
	return o.dual(ad.Expand(px, shape), o.broadcastTangent(tx, shape))
}

// Slice implements ad.Operations.
func (o Ops) Slice(x ad.DTensor, axis, start, end int) ad.DTensor {
	px, tx := o.split(x)
	axis = normalizeAxis("Slice", px.Shape(), axis)
	return o.dual(ad.Slice(px, axis, start, end), apply(tx, func(t ad.DTensor) ad.DTensor {
		return ad.Slice(t, axis, start, end)
	}))
}

// Pad implements ad.Operations.
func (o Ops) Pad(x ad.DTensor, axis, before, after int) ad.DTensor {
	px, tx := o.split(x)
	axis = normalizeAxis("Pad", px.Shape(), axis)
	return o.dual(ad.Pad(px, axis, before, after), apply(tx, func(t ad.DTensor) ad.DTensor {
		return ad.Pad(t, axis, before, after)
	}))
}

// Concat implements ad.Operations.
func (o Ops) Concat(xs []ad.DTensor, axis int) ad.DTensor {
	ps := make([]ad.DTensor, len(xs))
	ts := make([]ad.DTensor, len(xs))
	hasTangent := false
	for i, x := range xs {
		ps[i], ts[i] = o.split(x)
		hasTangent = hasTangent || ts[i] != nil
	}
	axis = normalizeAxis("Concat", ps[0].Shape(), axis)
	y := ad.Concat(ps, axis)
	if !hasTangent {
		return o.dual(y, nil)
	}
	for i, t := range ts {
		if t == nil {
			ts[i] = ad.ZerosLike(ps[i], ps[i].Shape().Concat(o.id.TangentShape()))
		}
	}
	return o.dual(y, ad.Concat(ts, axis))
}

// Gather implements ad.Operations.
func (o Ops) Gather(x ad.DTensor, axis int, indices []int) ad.DTensor {
	px, tx := o.split(x)
	axis = normalizeAxis("Gather", px.Shape(), axis)
	return o.dual(ad.Gather(px, axis, indices), apply(tx, func(t ad.DTensor) ad.DTensor {
		return ad.Gather(t, axis, indices)
	}))
}

// ScatterAdd implements ad.Operations.
func (o Ops) ScatterAdd(x ad.DTensor, axis int, indices []int, size int) ad.DTensor {
	px, tx := o.split(x)
	axis = normalizeAxis("ScatterAdd", px.Shape(), axis)
	return o.dual(ad.ScatterAdd(px, axis, indices, size), apply(tx, func(t ad.DTensor) ad.DTensor {
		return ad.ScatterAdd(t, axis, indices, size)
	}))
}

// IfThenElse implements ad.Operations.
func (o Ops) IfThenElse(mask, a, b ad.DTensor) ad.DTensor {
	pa, ta := o.split(a)
	pb, tb := o.split(b)
	y := ad.IfThenElse(mask, pa, pb)
	if ta == nil && tb == nil {
		return o.dual(y, nil)
	}
	zero := ad.Scalar(pa, 0)
	if ta == nil {
		ta = zero
	}
	if tb == nil {
		tb = zero
	}
	t := ad.IfThenElse(ad.ExpandTrailing(ad.Base(mask), o.k()), ta, tb)
	return o.dual(y, o.broadcastTangent(t, y.Shape()))
}

// requirePlain rejects operands the native kernels cannot take.
func (o Ops) requirePlain(op string, xs ...ad.DTensor) {
	for _, x := range xs {
		if x != nil && x.DerivativeID() != ad.NoDerivativeID {
			ad.Unsupportedf(op, o.Name(), "native kernel needs plain primals and tangents, got one at %v", x.DerivativeID())
		}
	}
}

// foldTangent turns a tangent [S..., T...] into a batch [prod(T), S...].
func (o Ops) foldTangent(t ad.DTensor, primal tensor.Shape) (ad.DTensor, int) {
	n := o.id.TangentShape().NumElements()
	flat := ad.Reshape(t, primal.Concat(tensor.Shape{n}))
	return ad.MoveTrailingToFront(flat, 1), n
}

// unfoldTangent is the inverse of foldTangent for a result of shape out.
func (o Ops) unfoldTangent(t ad.DTensor, out tensor.Shape) ad.DTensor {
	back := ad.MoveFrontToTrailing(t, 1)
	return ad.Reshape(back, out.Concat(o.id.TangentShape()))
}

// Conv2D implements ad.Operations. Convolution is bilinear, so the tangent
// is conv(tx, k) + conv(x, tk); tangent axes are folded into the batch or
// output-channel axis of the native kernel.
func (o Ops) Conv2D(x, kernel ad.DTensor, stride, padding int) ad.DTensor {
	px, tx := o.split(x)
	pk, tk := o.split(kernel)
	o.requirePlain("Conv2D", px, pk, tx, tk)
	y := ad.Conv2D(px, pk, stride, padding)
	ys := y.Shape()

	var t ad.DTensor
	if tx != nil {
		folded, n := o.foldTangent(tx, px.Shape())
		xs := px.Shape()
		batch := ad.Reshape(folded, tensor.Shape{n * xs[0], xs[1], xs[2], xs[3]})
		conv := ad.Conv2D(batch, pk, stride, padding)
		t = o.unfoldTangent(ad.Reshape(conv, tensor.Shape{n}.Concat(ys)), ys)
	}
	if tk != nil {
		folded, n := o.foldTangent(tk, pk.Shape())
		ks := pk.Shape()
		kernels := ad.Reshape(folded, tensor.Shape{n * ks[0], ks[1], ks[2], ks[3]})
		conv := ad.Conv2D(px, kernels, stride, padding)
		// [N, n*O, Ho, Wo] -> [N, n, O, Ho, Wo] -> [N, O, Ho, Wo, n]
		split := ad.Reshape(conv, tensor.Shape{ys[0], n, ys[1], ys[2], ys[3]})
		moved := ad.Transpose(split, 0, 2, 3, 4, 1)
		t = add(t, ad.Reshape(moved, ys.Concat(o.id.TangentShape())))
	}
	return o.dual(y, t)
}

// MaxPool2D implements ad.Operations.
func (o Ops) MaxPool2D(ad.DTensor, int, int) ad.DTensor {
	ad.Unsupportedf("MaxPool2D", o.Name(), "no forward rule for max pooling")
	return nil
}

// AvgPool2D implements ad.Operations. Average pooling is linear.
func (o Ops) AvgPool2D(x ad.DTensor, size int) ad.DTensor {
	px, tx := o.split(x)
	o.requirePlain("AvgPool2D", px, tx)
	y := ad.AvgPool2D(px, size)
	if tx == nil {
		return o.dual(y, nil)
	}
	xs := px.Shape()
	folded, n := o.foldTangent(tx, xs)
	batch := ad.Reshape(folded, tensor.Shape{n * xs[0], xs[1], xs[2], xs[3]})
	pooled := ad.AvgPool2D(batch, size)
	return o.dual(y, o.unfoldTangent(ad.Reshape(pooled, tensor.Shape{n}.Concat(y.Shape())), y.Shape()))
}

// BatchNorm implements ad.Operations.
func (o Ops) BatchNorm(_, _, _ ad.DTensor, _ float64) (ad.DTensor, ad.BatchNormStats) {
	ad.Unsupportedf("BatchNorm", o.Name(), "no forward rule for batch normalization")
	return nil, ad.BatchNormStats{}
}

func normalizeAxis(op string, shape tensor.Shape, axis int) int {
	a, err := tensor.NormalizeAxis(axis, shape.Rank())
	if err != nil {
		ad.ShapeMismatchf(op, []tensor.Shape{shape}, "%v", err)
	}
	return a
}

var _ ad.Operations = Ops{}
