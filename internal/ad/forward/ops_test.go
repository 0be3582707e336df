package forward_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/dualad/internal/ad"
	"github.com/born-ml/dualad/internal/ad/forward"
	"github.com/born-ml/dualad/internal/backend/cpu"
	"github.com/born-ml/dualad/internal/tensor"
)

func values(t *testing.T, x ad.DTensor) []float64 {
	t.Helper()
	d, ok := x.(*cpu.Tensor)
	require.True(t, ok, "expected a dense value, got %T", x)
	return d.Data()
}

func smooth(backend *cpu.CPUBackend, shape tensor.Shape, offset, phase float64) *cpu.Tensor {
	v := make([]float64, shape.NumElements())
	for i := range v {
		v[i] = offset + 0.5*math.Sin(1.3*float64(i)+phase)
	}
	return backend.MustFromSlice(v, shape)
}

// jvp pushes the direction dir through f at x.
func jvp(x, dir ad.DTensor, f func(ad.DTensor) ad.DTensor) (ad.DTensor, ad.DTensor) {
	id := ad.NewSequencer().NewForwardID(tensor.Shape{})
	out := f(forward.New(x, dir, id))
	return ad.PrimalAt(out, id), forward.TangentAt(out, id)
}

// directional differentiates f along dir by central differences.
func directional(backend *cpu.CPUBackend, x, dir *cpu.Tensor, f func(ad.DTensor) ad.DTensor) []float64 {
	const h = 1e-6
	at := func(s float64) []float64 {
		v := append([]float64(nil), x.Data()...)
		for i, d := range dir.Data() {
			v[i] += s * d
		}
		out, _ := cpu.AsDense(f(backend.MustFromSlice(v, x.Shape())))
		return out.Data()
	}
	plus, minus := at(h), at(-h)
	grad := make([]float64, len(plus))
	for i := range grad {
		grad[i] = (plus[i] - minus[i]) / (2 * h)
	}
	return grad
}

func TestNew_Checks(t *testing.T) {
	backend := cpu.New()
	seq := ad.NewSequencer()
	fwd := seq.NewForwardID(tensor.Shape{2})

	err := ad.Catch(func() { forward.New(backend.Vector(1, 2), backend.Vector(1, 2), fwd) })
	assert.True(t, ad.IsShape(err), "got %v", err)

	rev := seq.NewReverseID()
	assert.Panics(t, func() { forward.New(backend.Scalar(1), nil, rev) })

	// The primal must come from a lower identity.
	later := seq.NewForwardID(tensor.Shape{})
	inner := forward.New(backend.Scalar(1), nil, later)
	assert.Panics(t, func() { forward.New(inner, nil, fwd) })

	d := forward.New(backend.Vector(1, 2), nil, fwd)
	assert.False(t, d.HasTangent())
	assert.Equal(t, tensor.Shape{2, 2}, d.Tangent().Shape())
	assert.Equal(t, []float64{0, 0, 0, 0}, values(t, d.Tangent()))
	assert.Same(t, fwd, d.DerivativeID())
	assert.Equal(t, tensor.Shape{2}, d.Shape())
}

func TestTangentAt_OtherIdentity(t *testing.T) {
	backend := cpu.New()
	id := ad.NewSequencer().NewForwardID(tensor.Shape{3})
	tan := forward.TangentAt(backend.Vector(1, 2), id)
	assert.Equal(t, tensor.Shape{2, 3}, tan.Shape())
	assert.Equal(t, make([]float64, 6), values(t, tan))
}

func TestOps_FiniteDifferences(t *testing.T) {
	backend := cpu.New()
	w := smooth(backend, tensor.Shape{2, 3}, 0.2, 0.1)
	mat := smooth(backend, tensor.Shape{3, 2}, 0.3, 0.7)
	col := smooth(backend, tensor.Shape{2, 1}, 1.5, 0.2)

	tests := []struct {
		name  string
		shape tensor.Shape
		off   float64
		f     func(x ad.DTensor) ad.DTensor
	}{
		{"Neg", tensor.Shape{3}, 0, ad.Neg},
		{"Sin", tensor.Shape{3}, 0, ad.Sin},
		{"Cos", tensor.Shape{3}, 0, ad.Cos},
		{"Tan", tensor.Shape{3}, 0, ad.Tan},
		{"Exp", tensor.Shape{3}, 0, ad.Exp},
		{"Log", tensor.Shape{3}, 2, ad.Log},
		{"Sqrt", tensor.Shape{3}, 2, ad.Sqrt},
		{"Tanh", tensor.Shape{3}, 0, ad.Tanh},
		{"Sigmoid", tensor.Shape{3}, 0, ad.Sigmoid},
		{"Relu", tensor.Shape{6}, 0, ad.Relu},
		{"Abs", tensor.Shape{6}, 0, ad.Abs},
		{"Atan", tensor.Shape{3}, 0, ad.Atan},
		{"PowScalar", tensor.Shape{3}, 1.5, func(x ad.DTensor) ad.DTensor { return ad.PowScalar(x, -1.5) }},
		{"PowScalar zero", tensor.Shape{3}, 1, func(x ad.DTensor) ad.DTensor { return ad.PowScalar(x, 0) }},
		{"Scalar ops", tensor.Shape{3}, 0, func(x ad.DTensor) ad.DTensor { return ad.TimesScalar(ad.PlusScalar(x, 2), -3) }},
		{"Plus broadcast", tensor.Shape{3}, 0, func(x ad.DTensor) ad.DTensor { return ad.Plus(w, x) }},
		{"Minus broadcast", tensor.Shape{2, 1}, 0, func(x ad.DTensor) ad.DTensor { return ad.Minus(w, x) }},
		{"Times", tensor.Shape{2, 3}, 0, func(x ad.DTensor) ad.DTensor { return ad.Times(x, x) }},
		{"Times broadcast", tensor.Shape{3}, 0, func(x ad.DTensor) ad.DTensor { return ad.Times(w, x) }},
		{"Div numerator", tensor.Shape{3}, 0, func(x ad.DTensor) ad.DTensor { return ad.Div(x, col) }},
		{"Div denominator", tensor.Shape{2, 1}, 2, func(x ad.DTensor) ad.DTensor { return ad.Div(w, x) }},
		{"Div both", tensor.Shape{3}, 2, func(x ad.DTensor) ad.DTensor { return ad.Div(ad.Sin(x), x) }},
		{"MatMul left", tensor.Shape{2, 3}, 0, func(x ad.DTensor) ad.DTensor { return ad.MatMul(x, mat) }},
		{"MatMul right", tensor.Shape{3, 2}, 0, func(x ad.DTensor) ad.DTensor { return ad.MatMul(w, x) }},
		{"MatMul both", tensor.Shape{3, 3}, 0, func(x ad.DTensor) ad.DTensor { return ad.MatMul(x, x) }},
		{"MatMul batched", tensor.Shape{2, 2, 3}, 0, func(x ad.DTensor) ad.DTensor { return ad.MatMul(x, mat) }},
		{"MatMul broadcast batch", tensor.Shape{3, 2}, 0, func(x ad.DTensor) ad.DTensor {
			return ad.MatMul(smooth(backend, tensor.Shape{2, 2, 3}, 0, 0.3), x)
		}},
		{"Outer", tensor.Shape{2}, 0, func(x ad.DTensor) ad.DTensor { return ad.Outer(x, w) }},
		{"Outer right", tensor.Shape{2}, 0, func(x ad.DTensor) ad.DTensor { return ad.Outer(col, x) }},
		{"Outer both", tensor.Shape{2}, 0, func(x ad.DTensor) ad.DTensor { return ad.Outer(x, x) }},
		{"Sum all", tensor.Shape{2, 3}, 0, ad.SumAll},
		{"Sum axes", tensor.Shape{2, 3}, 0, func(x ad.DTensor) ad.DTensor { return ad.Sum(x, []int{-1}, false) }},
		{"Sum keepDims", tensor.Shape{2, 3}, 0, func(x ad.DTensor) ad.DTensor { return ad.Sum(x, []int{0}, true) }},
		{"Reshape", tensor.Shape{2, 3}, 0, func(x ad.DTensor) ad.DTensor { return ad.Reshape(x, tensor.Shape{3, 2}) }},
		{"Transpose", tensor.Shape{2, 3}, 0, func(x ad.DTensor) ad.DTensor { return ad.Transpose(x) }},
		{"Expand", tensor.Shape{2, 1}, 0, func(x ad.DTensor) ad.DTensor { return ad.Expand(x, tensor.Shape{2, 3}) }},
		{"Slice", tensor.Shape{2, 3}, 0, func(x ad.DTensor) ad.DTensor { return ad.Slice(x, -1, 1, 3) }},
		{"Pad", tensor.Shape{2, 3}, 0, func(x ad.DTensor) ad.DTensor { return ad.Pad(x, 1, 2, 1) }},
		{"Concat", tensor.Shape{2, 1}, 0, func(x ad.DTensor) ad.DTensor { return ad.Concat([]ad.DTensor{x, w, x}, 1) }},
		{"Gather", tensor.Shape{4}, 0, func(x ad.DTensor) ad.DTensor { return ad.Gather(x, 0, []int{3, 0, 3}) }},
		{"ScatterAdd", tensor.Shape{3}, 0, func(x ad.DTensor) ad.DTensor { return ad.ScatterAdd(x, 0, []int{1, 1, 4}, 5) }},
		{"IfThenElse", tensor.Shape{6}, 0, func(x ad.DTensor) ad.DTensor {
			return ad.IfThenElse(ad.Greater(x, ad.Scalar(x, 0)), ad.Square(x), ad.TimesScalar(x, 3))
		}},
		{"IfThenElse constant branch", tensor.Shape{6}, 0, func(x ad.DTensor) ad.DTensor {
			return ad.IfThenElse(ad.Greater(x, ad.Scalar(x, 0)), x, ad.Scalar(x, 7))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := smooth(backend, tt.shape, tt.off, 0.4)
			dir := smooth(backend, tt.shape, 0.1, 2.1)
			primal, tangent := jvp(x, dir, tt.f)

			want, _ := cpu.AsDense(tt.f(x))
			assert.InDeltaSlice(t, want.Data(), values(t, primal), 1e-12)
			assert.Equal(t, want.Shape(), tangent.Shape())
			assert.InDeltaSlice(t, directional(backend, x, dir, tt.f), values(t, tangent), 1e-6)
		})
	}
}

func TestOps_JacobianTangent(t *testing.T) {
	backend := cpu.New()
	x := backend.Vector(1, 2, 3)
	id := ad.NewSequencer().NewForwardID(x.Shape())
	// Seeding with the identity carries the whole Jacobian.
	d := forward.New(x, ad.BaseOps(x).Identity(x.Shape()), id)

	y := ad.Times(d, d)
	tan := forward.TangentAt(y, id)
	assert.Equal(t, tensor.Shape{3, 3}, tan.Shape())
	assert.Equal(t, []float64{2, 0, 0, 0, 4, 0, 0, 0, 6}, values(t, tan))

	m := ad.MatMul(ad.Reshape(d, tensor.Shape{1, 3}), backend.MustFromSlice([]float64{1, 2, 3, 4, 5, 6}, tensor.Shape{3, 2}))
	tan = forward.TangentAt(m, id)
	assert.Equal(t, tensor.Shape{1, 2, 3}, tan.Shape())
	assert.Equal(t, []float64{1, 3, 5, 2, 4, 6}, values(t, tan))
}

func TestOps_ConstantsStayTangentFree(t *testing.T) {
	backend := cpu.New()
	id := ad.NewSequencer().NewForwardID(tensor.Shape{})
	d := forward.New(backend.Vector(1, 2), nil, id)

	y := ad.Sin(ad.Plus(d, backend.Scalar(1)))
	dual, ok := y.(*forward.Tensor)
	require.True(t, ok)
	assert.False(t, dual.HasTangent())
	assert.Equal(t, []float64{0, 0}, values(t, dual.Tangent()))
}

func TestOps_NativeKernels(t *testing.T) {
	backend := cpu.New()
	image := smooth(backend, tensor.Shape{2, 2, 4, 4}, 0, 0.4)
	kernel := smooth(backend, tensor.Shape{3, 2, 2, 2}, 0, 1.1)

	tests := []struct {
		name string
		x    *cpu.Tensor
		f    func(x ad.DTensor) ad.DTensor
	}{
		{"Conv2D input", image, func(x ad.DTensor) ad.DTensor { return ad.Conv2D(x, kernel, 2, 1) }},
		{"Conv2D kernel", kernel, func(k ad.DTensor) ad.DTensor { return ad.Conv2D(image, k, 1, 0) }},
		{"AvgPool2D", image, func(x ad.DTensor) ad.DTensor { return ad.AvgPool2D(x, 2) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := smooth(backend, tt.x.Shape(), 0.1, 2.1)
			_, tangent := jvp(tt.x, dir, tt.f)
			assert.InDeltaSlice(t, directional(backend, tt.x, dir, tt.f), values(t, tangent), 1e-6)
		})
	}
}

func TestOps_ConvJacobianTangent(t *testing.T) {
	backend := cpu.New()
	image := smooth(backend, tensor.Shape{1, 1, 3, 3}, 0, 0.4)
	kernel := smooth(backend, tensor.Shape{1, 1, 2, 2}, 0, 1.1)
	id := ad.NewSequencer().NewForwardID(kernel.Shape())
	k := forward.New(kernel, ad.BaseOps(kernel).Identity(kernel.Shape()), id)

	tan := forward.TangentAt(ad.Conv2D(image, k, 1, 0), id)
	assert.Equal(t, tensor.Shape{1, 1, 2, 2, 1, 1, 2, 2}, tan.Shape())
	// d out[0,0] / d k[i,j] is the image patch at the origin.
	patch := image.Data()
	assert.InDeltaSlice(t, []float64{patch[0], patch[1], patch[3], patch[4]}, values(t, tan)[:4], 1e-12)
}

func TestOps_Unsupported(t *testing.T) {
	backend := cpu.New()
	image := smooth(backend, tensor.Shape{1, 1, 4, 4}, 0, 0.4)
	id := ad.NewSequencer().NewForwardID(tensor.Shape{})
	d := forward.New(image, image, id)

	err := ad.Catch(func() { ad.MaxPool2D(d, 2, 2) })
	assert.True(t, ad.IsUnsupported(err), "got %v", err)

	err = ad.Catch(func() { ad.BatchNorm(d, backend.Vector(1), backend.Vector(0), 1e-5) })
	assert.True(t, ad.IsUnsupported(err), "got %v", err)

	// Nested duals cannot reach the native kernels.
	outer := ad.NewSequencer()
	lo := outer.NewForwardID(tensor.Shape{})
	hi := outer.NewForwardID(tensor.Shape{})
	nested := forward.New(forward.New(image, image, lo), nil, hi)
	err = ad.Catch(func() { ad.AvgPool2D(nested, 2) })
	assert.True(t, ad.IsUnsupported(err), "got %v", err)
}
