package reverse

import (
	"github.com/born-ml/dualad/internal/ad"
	"github.com/born-ml/dualad/internal/tensor"
)

// Backward rules receive g with shape output.shape + U, where U is the
// upstream shape of the tape, and push operand.shape + U contributions.
// Primal-shaped factors are lined up with g by ad.ExpandTrailing.

// slopeFunc returns the elementwise derivative given the operand and result primals.
type slopeFunc func(px, py ad.DTensor) ad.DTensor

// unaryRule covers elementwise primitives: dx = g * f'(x).
type unaryRule struct {
	name   string
	x      ad.DTensor
	px, py ad.DTensor
	slope  slopeFunc
}

func (r *unaryRule) Name() string { return r.name }

func (r *unaryRule) Backward(t *Tape, g ad.DTensor) {
	t.push(r.x, func() ad.DTensor {
		return ad.Times(g, ad.ExpandTrailing(r.slope(r.px, r.py), t.trailing()))
	})
}

type negRule struct {
	x ad.DTensor
}

func (r *negRule) Name() string { return "Neg" }

func (r *negRule) Backward(t *Tape, g ad.DTensor) {
	t.push(r.x, func() ad.DTensor { return ad.Neg(g) })
}

// scaleRule covers x + s, x * s and x^0: dx = factor * g.
type scaleRule struct {
	name   string
	x      ad.DTensor
	factor float64
}

func (r *scaleRule) Name() string { return r.name }

func (r *scaleRule) Backward(t *Tape, g ad.DTensor) {
	t.push(r.x, func() ad.DTensor {
		if r.factor == 1 {
			return g
		}
		return ad.TimesScalar(g, r.factor)
	})
}

// addRule covers a + b and a - b. Broadcast operands receive summed blocks.
type addRule struct {
	a, b           ad.DTensor
	aShape, bShape tensor.Shape
	subtract       bool
}

func (r *addRule) Name() string {
	if r.subtract {
		return "Minus"
	}
	return "Plus"
}

func (r *addRule) Backward(t *Tape, g ad.DTensor) {
	k := t.trailing()
	t.push(r.a, func() ad.DTensor { return ad.Unbroadcast(g, r.aShape, k) })
	t.push(r.b, func() ad.DTensor {
		gb := ad.Unbroadcast(g, r.bShape, k)
		if r.subtract {
			return ad.Neg(gb)
		}
		return gb
	})
}

// mulRule: da = g * b, db = g * a.
type mulRule struct {
	a, b   ad.DTensor
	pa, pb ad.DTensor
}

func (r *mulRule) Name() string { return "Times" }

func (r *mulRule) Backward(t *Tape, g ad.DTensor) {
	k := t.trailing()
	t.push(r.a, func() ad.DTensor {
		return ad.Unbroadcast(ad.Times(g, ad.ExpandTrailing(r.pb, k)), r.pa.Shape(), k)
	})
	t.push(r.b, func() ad.DTensor {
		return ad.Unbroadcast(ad.Times(g, ad.ExpandTrailing(r.pa, k)), r.pb.Shape(), k)
	})
}

// divRule: da = g / b, db = -g * a / b^2.
type divRule struct {
	a, b   ad.DTensor
	pa, pb ad.DTensor
}

func (r *divRule) Name() string { return "Div" }

func (r *divRule) Backward(t *Tape, g ad.DTensor) {
	k := t.trailing()
	t.push(r.a, func() ad.DTensor {
		return ad.Unbroadcast(ad.Div(g, ad.ExpandTrailing(r.pb, k)), r.pa.Shape(), k)
	})
	t.push(r.b, func() ad.DTensor {
		slope := ad.Neg(ad.Div(r.pa, ad.Square(r.pb)))
		return ad.Unbroadcast(ad.Times(g, ad.ExpandTrailing(slope, k)), r.pb.Shape(), k)
	})
}

// matMulRule: da = g @ b^T, db = a^T @ g, with U carried along.
type matMulRule struct {
	a, b   ad.DTensor
	pa, pb ad.DTensor
}

func (r *matMulRule) Name() string { return "MatMul" }

func (r *matMulRule) Backward(t *Tape, g ad.DTensor) {
	k := t.trailing()
	t.push(r.a, func() ad.DTensor {
		return ad.Unbroadcast(ad.MatMulTrailingLeft(g, ad.SwapLastTwo(r.pb), k), r.pa.Shape(), k)
	})
	t.push(r.b, func() ad.DTensor {
		return ad.Unbroadcast(ad.MatMulTrailingRight(ad.SwapLastTwo(r.pa), g, k), r.pb.Shape(), k)
	})
}

// outerRule: g has shape a.shape + b.shape + U; each side contracts the other.
type outerRule struct {
	a, b   ad.DTensor
	pa, pb ad.DTensor
}

func (r *outerRule) Name() string { return "Outer" }

func (r *outerRule) Backward(t *Tape, g ad.DTensor) {
	k := t.trailing()
	ra, rb := r.pa.Shape().Rank(), r.pb.Shape().Rank()
	t.push(r.a, func() ad.DTensor {
		prod := ad.Times(g, ad.ExpandTrailing(r.pb, k))
		return sumAxes(prod, ra, ra+rb)
	})
	t.push(r.b, func() ad.DTensor {
		prod := ad.Times(g, ad.ExpandTrailing(r.pa, rb+k))
		return sumAxes(prod, 0, ra)
	})
}

// sumAxes sums x over axes [from, to); an empty range is a no-op.
func sumAxes(x ad.DTensor, from, to int) ad.DTensor {
	if from == to {
		return x
	}
	axes := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		axes = append(axes, i)
	}
	return ad.Sum(x, axes, false)
}

// sumRule broadcasts g back over the reduced axes.
type sumRule struct {
	x      ad.DTensor
	xShape tensor.Shape
	kept   tensor.Shape // xShape with reduced axes set to 1
}

func (r *sumRule) Name() string { return "Sum" }

func (r *sumRule) Backward(t *Tape, g ad.DTensor) {
	k := t.trailing()
	t.push(r.x, func() ad.DTensor {
		kept := ad.Reshape(g, r.kept.Concat(t.id.UpstreamShape()))
		return ad.BroadcastTrailing(kept, r.xShape, k)
	})
}

type reshapeRule struct {
	x      ad.DTensor
	xShape tensor.Shape
}

func (r *reshapeRule) Name() string { return "Reshape" }

func (r *reshapeRule) Backward(t *Tape, g ad.DTensor) {
	t.push(r.x, func() ad.DTensor {
		return ad.Reshape(g, r.xShape.Concat(t.id.UpstreamShape()))
	})
}

type transposeRule struct {
	x       ad.DTensor
	inverse []int
}

func (r *transposeRule) Name() string { return "Transpose" }

func (r *transposeRule) Backward(t *Tape, g ad.DTensor) {
	t.push(r.x, func() ad.DTensor {
		return ad.Transpose(g, ad.ExtendPermutation(r.inverse, t.trailing())...)
	})
}

type expandRule struct {
	x      ad.DTensor
	xShape tensor.Shape
}

func (r *expandRule) Name() string { return "Expand" }

func (r *expandRule) Backward(t *Tape, g ad.DTensor) {
	t.push(r.x, func() ad.DTensor { return ad.Unbroadcast(g, r.xShape, t.trailing()) })
}

// sliceRule pads g back to the operand's extent.
type sliceRule struct {
	x             ad.DTensor
	axis          int
	before, after int
}

func (r *sliceRule) Name() string { return "Slice" }

func (r *sliceRule) Backward(t *Tape, g ad.DTensor) {
	t.push(r.x, func() ad.DTensor { return ad.Pad(g, r.axis, r.before, r.after) })
}

// padRule slices the operand's block out of g.
type padRule struct {
	x          ad.DTensor
	axis       int
	start, end int
}

func (r *padRule) Name() string { return "Pad" }

func (r *padRule) Backward(t *Tape, g ad.DTensor) {
	t.push(r.x, func() ad.DTensor { return ad.Slice(g, r.axis, r.start, r.end) })
}

type concatRule struct {
	xs    []ad.DTensor
	axis  int
	sizes []int
}

func (r *concatRule) Name() string { return "Concat" }

func (r *concatRule) Backward(t *Tape, g ad.DTensor) {
	off := 0
	for i, x := range r.xs {
		start, end := off, off+r.sizes[i]
		t.push(x, func() ad.DTensor { return ad.Slice(g, r.axis, start, end) })
		off = end
	}
}

type gatherRule struct {
	x       ad.DTensor
	axis    int
	indices []int
	size    int
}

func (r *gatherRule) Name() string { return "Gather" }

func (r *gatherRule) Backward(t *Tape, g ad.DTensor) {
	t.push(r.x, func() ad.DTensor { return ad.ScatterAdd(g, r.axis, r.indices, r.size) })
}

type scatterRule struct {
	x       ad.DTensor
	axis    int
	indices []int
}

func (r *scatterRule) Name() string { return "ScatterAdd" }

func (r *scatterRule) Backward(t *Tape, g ad.DTensor) {
	t.push(r.x, func() ad.DTensor { return ad.Gather(g, r.axis, r.indices) })
}

// selectRule routes g to the branch the mask picked.
type selectRule struct {
	mask           ad.DTensor
	a, b           ad.DTensor
	aShape, bShape tensor.Shape
}

func (r *selectRule) Name() string { return "IfThenElse" }

func (r *selectRule) Backward(t *Tape, g ad.DTensor) {
	k := t.trailing()
	mask := ad.ExpandTrailing(ad.Base(r.mask), k)
	zero := ad.Scalar(g, 0)
	t.push(r.a, func() ad.DTensor {
		return ad.Unbroadcast(ad.IfThenElse(mask, g, zero), r.aShape, k)
	})
	t.push(r.b, func() ad.DTensor {
		return ad.Unbroadcast(ad.IfThenElse(mask, zero, g), r.bShape, k)
	})
}

// requirePlainUpstream rejects upstreams the native kernels cannot take:
// a non-scalar upstream shape, or an upstream that itself carries a derivative.
func requirePlainUpstream(op string, t *Tape, g ad.DTensor) {
	if t.trailing() != 0 || g.DerivativeID() != ad.NoDerivativeID {
		ad.Unsupportedf(op, "reverse", "higher-order derivative not supported (upstream %v at %v)",
			t.id.UpstreamShape(), g.DerivativeID())
	}
}

type conv2DRule struct {
	native          ad.NativeKernels
	x, kernel       ad.DTensor
	px, pk          ad.DTensor
	stride, padding int
}

func (r *conv2DRule) Name() string { return "Conv2D" }

func (r *conv2DRule) Backward(t *Tape, g ad.DTensor) {
	requirePlainUpstream("Conv2D", t, g)
	t.push(r.x, func() ad.DTensor { return r.native.Conv2DInputBackward(r.px, r.pk, g, r.stride, r.padding) })
	t.push(r.kernel, func() ad.DTensor { return r.native.Conv2DKernelBackward(r.px, r.pk, g, r.stride, r.padding) })
}

type maxPoolRule struct {
	native       ad.NativeKernels
	x, px        ad.DTensor
	size, stride int
}

func (r *maxPoolRule) Name() string { return "MaxPool2D" }

func (r *maxPoolRule) Backward(t *Tape, g ad.DTensor) {
	requirePlainUpstream("MaxPool2D", t, g)
	t.push(r.x, func() ad.DTensor { return r.native.MaxPool2DBackward(r.px, g, r.size, r.stride) })
}

type avgPoolRule struct {
	native ad.NativeKernels
	x, px  ad.DTensor
	size   int
}

func (r *avgPoolRule) Name() string { return "AvgPool2D" }

func (r *avgPoolRule) Backward(t *Tape, g ad.DTensor) {
	requirePlainUpstream("AvgPool2D", t, g)
	t.push(r.x, func() ad.DTensor { return r.native.AvgPool2DBackward(r.px, g, r.size) })
}

type batchNormRule struct {
	native         ad.NativeKernels
	x, scale, bias ad.DTensor
	px, ps         ad.DTensor
	stats          ad.BatchNormStats
	eps            float64
}

func (r *batchNormRule) Name() string { return "BatchNorm" }

func (r *batchNormRule) Backward(t *Tape, g ad.DTensor) {
	requirePlainUpstream("BatchNorm", t, g)
	dx, dscale, dbias := r.native.BatchNormBackward(r.px, r.ps, g, r.stats, r.eps)
	t.push(r.x, func() ad.DTensor { return dx })
	t.push(r.scale, func() ad.DTensor { return dscale })
	t.push(r.bias, func() ad.DTensor { return dbias })
}
