package diff

import (
	"github.com/born-ml/dualad/internal/ad"
	"github.com/born-ml/dualad/internal/ad/forward"
	"github.com/born-ml/dualad/internal/tensor"
)

// ValueAndReverseDerivativeOf differentiates f with respect to every tensor
// of the aggregate x in one reverse sweep. The derivative comes back in the
// shape of x: the field holding a tensor of shape S holds the derivative of
// shape S + f(x).shape.
func ValueAndReverseDerivativeOf[T ad.Differentiable[T]](e *Engine, f func(T) ad.DTensor, x T) (value ad.DTensor, derivative T, err error) {
	err = ad.Catch(func() {
		flat, layout := ad.MeldStructure(x)
		v, d := e.reverse(func(in ad.DTensor) ad.DTensor {
			return f(ad.SplitStructure(x, in, layout))
		}, flat)
		value = v
		derivative = x.Rebuild(ad.SplitTrailing(d, layout, v.Shape()))
	})
	return value, derivative, err
}

// ReverseDerivativeOf is ValueAndReverseDerivativeOf without the value.
func ReverseDerivativeOf[T ad.Differentiable[T]](e *Engine, f func(T) ad.DTensor, x T) (T, error) {
	_, d, err := ValueAndReverseDerivativeOf(e, f, x)
	return d, err
}

// ValueAndForwardDerivativeOf computes f(x) and the directional derivative
// of f at x along direction, which must match x field by field. The result
// has the shape of f(x).
func ValueAndForwardDerivativeOf[T ad.Differentiable[T]](e *Engine, f func(T) ad.DTensor, x, direction T) (value, derivative ad.DTensor, err error) {
	err = ad.Catch(func() {
		flat, layout := ad.MeldStructure(x)
		dir, dirLayout := ad.MeldStructure(direction)
		if len(dirLayout.Shapes) != len(layout.Shapes) {
			ad.ShapeMismatchf("ForwardDerivativeOf", nil, "direction has %d tensors, x has %d", len(dirLayout.Shapes), len(layout.Shapes))
		}
		for i, s := range layout.Shapes {
			if !s.Equal(dirLayout.Shapes[i]) {
				ad.ShapeMismatchf("ForwardDerivativeOf", []tensor.Shape{s, dirLayout.Shapes[i]}, "direction field %d does not match x", i)
			}
		}
		value, derivative = e.jvp(func(in ad.DTensor) ad.DTensor {
			return f(ad.SplitStructure(x, in, layout))
		}, flat, dir)
	})
	return value, derivative, err
}

// ForwardDerivativeOf is ValueAndForwardDerivativeOf without the value.
func ForwardDerivativeOf[T ad.Differentiable[T]](e *Engine, f func(T) ad.DTensor, x, direction T) (ad.DTensor, error) {
	_, d, err := ValueAndForwardDerivativeOf(e, f, x, direction)
	return d, err
}

// ValueAndDirectionalDerivative computes f(x) and the derivative of f at x
// along direction (same shape as x) in one forward pass.
func (e *Engine) ValueAndDirectionalDerivative(f Func, x, direction ad.DTensor) (value, derivative ad.DTensor, err error) {
	err = ad.Catch(func() {
		if !x.Shape().Equal(direction.Shape()) {
			ad.ShapeMismatchf("DirectionalDerivative", []tensor.Shape{x.Shape(), direction.Shape()}, "direction must match x")
		}
		value, derivative = e.jvp(f, x, direction)
	})
	return value, derivative, err
}

// jvp runs one forward pass with a scalar tangent shape.
func (e *Engine) jvp(f Func, x, direction ad.DTensor) (value, derivative ad.DTensor) {
	id := e.seq.NewForwardID(tensor.Shape{})
	defer id.Finish()
	e.logger.Debug("pass begin", "mode", id.Mode(), "seq", id.Sequence(), "input", x.Shape(), "directional", true)

	out := ad.Live(f(forward.New(x, direction, id)))
	return ad.PrimalAt(out, id), forward.TangentAt(out, id)
}
