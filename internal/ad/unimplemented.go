package ad

import "github.com/born-ml/dualad/internal/tensor"

// Unimplemented answers every primitive with an UnsupportedError.
//
// A new representation embeds it and overrides what it can express; the
// remaining primitives fail at the call site instead of producing wrong
// derivatives.
type Unimplemented struct {
	Kind string
}

func (u Unimplemented) fail(op string) {
	Unsupportedf(op, u.Kind, "not implemented by this representation")
}

// Name implements Operations.
func (u Unimplemented) Name() string { return u.Kind }

// Elementwise primitives fail with UnsupportedError.
func (u Unimplemented) Neg(DTensor) DTensor     { u.fail("Neg"); return nil }
func (u Unimplemented) Sin(DTensor) DTensor     { u.fail("Sin"); return nil }
func (u Unimplemented) Cos(DTensor) DTensor     { u.fail("Cos"); return nil }
func (u Unimplemented) Tan(DTensor) DTensor     { u.fail("Tan"); return nil }
func (u Unimplemented) Exp(DTensor) DTensor     { u.fail("Exp"); return nil }
func (u Unimplemented) Log(DTensor) DTensor     { u.fail("Log"); return nil }
func (u Unimplemented) Sqrt(DTensor) DTensor    { u.fail("Sqrt"); return nil }
func (u Unimplemented) Tanh(DTensor) DTensor    { u.fail("Tanh"); return nil }
func (u Unimplemented) Sigmoid(DTensor) DTensor { u.fail("Sigmoid"); return nil }
func (u Unimplemented) Relu(DTensor) DTensor    { u.fail("Relu"); return nil }
func (u Unimplemented) Abs(DTensor) DTensor     { u.fail("Abs"); return nil }
func (u Unimplemented) Atan(DTensor) DTensor    { u.fail("Atan"); return nil }

// Arithmetic primitives fail with UnsupportedError.
func (u Unimplemented) Plus(_, _ DTensor) DTensor  { u.fail("Plus"); return nil }
func (u Unimplemented) Minus(_, _ DTensor) DTensor { u.fail("Minus"); return nil }
func (u Unimplemented) Times(_, _ DTensor) DTensor { u.fail("Times"); return nil }
func (u Unimplemented) Div(_, _ DTensor) DTensor   { u.fail("Div"); return nil }

// Scalar primitives fail with UnsupportedError.
func (u Unimplemented) PlusScalar(DTensor, float64) DTensor  { u.fail("PlusScalar"); return nil }
func (u Unimplemented) TimesScalar(DTensor, float64) DTensor { u.fail("TimesScalar"); return nil }
func (u Unimplemented) PowScalar(DTensor, float64) DTensor   { u.fail("PowScalar"); return nil }

// Products fail with UnsupportedError.
func (u Unimplemented) MatMul(_, _ DTensor) DTensor { u.fail("MatMul"); return nil }
func (u Unimplemented) Outer(_, _ DTensor) DTensor  { u.fail("Outer"); return nil }

// Sum fails with UnsupportedError.
func (u Unimplemented) Sum(DTensor, []int, bool) DTensor { u.fail("Sum"); return nil }

// Shape and indexing primitives fail with UnsupportedError.
func (u Unimplemented) Reshape(DTensor, tensor.Shape) DTensor { u.fail("Reshape"); return nil }
func (u Unimplemented) Transpose(DTensor, []int) DTensor      { u.fail("Transpose"); return nil }
func (u Unimplemented) Expand(DTensor, tensor.Shape) DTensor  { u.fail("Expand"); return nil }
func (u Unimplemented) Slice(DTensor, int, int, int) DTensor  { u.fail("Slice"); return nil }
func (u Unimplemented) Pad(DTensor, int, int, int) DTensor    { u.fail("Pad"); return nil }
func (u Unimplemented) Concat([]DTensor, int) DTensor         { u.fail("Concat"); return nil }
func (u Unimplemented) Gather(DTensor, int, []int) DTensor    { u.fail("Gather"); return nil }

// ScatterAdd fails with UnsupportedError.
func (u Unimplemented) ScatterAdd(DTensor, int, []int, int) DTensor {
	u.fail("ScatterAdd")
	return nil
}

// IfThenElse fails with UnsupportedError.
func (u Unimplemented) IfThenElse(_, _, _ DTensor) DTensor { u.fail("IfThenElse"); return nil }

// Native kernels fail with UnsupportedError.
func (u Unimplemented) Conv2D(_, _ DTensor, _, _ int) DTensor { u.fail("Conv2D"); return nil }
func (u Unimplemented) MaxPool2D(DTensor, int, int) DTensor   { u.fail("MaxPool2D"); return nil }
func (u Unimplemented) AvgPool2D(DTensor, int) DTensor        { u.fail("AvgPool2D"); return nil }

// BatchNorm fails with UnsupportedError.
func (u Unimplemented) BatchNorm(_, _, _ DTensor, _ float64) (DTensor, BatchNormStats) {
	u.fail("BatchNorm")
	return nil, BatchNormStats{}
}

var _ Operations = Unimplemented{}
