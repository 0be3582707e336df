package cpu

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/born-ml/dualad/internal/ad"
	"github.com/born-ml/dualad/internal/tensor"
)

func TestUnaryOps(t *testing.T) {
	backend := New()
	x := backend.Vector(-1, 0, 0.5, 2)

	tests := []struct {
		name string
		op   func(ad.DTensor) ad.DTensor
		f    func(float64) float64
	}{
		{"Neg", backend.Neg, func(v float64) float64 { return -v }},
		{"Sin", backend.Sin, math.Sin},
		{"Cos", backend.Cos, math.Cos},
		{"Tan", backend.Tan, math.Tan},
		{"Exp", backend.Exp, math.Exp},
		{"Tanh", backend.Tanh, math.Tanh},
		{"Sigmoid", backend.Sigmoid, func(v float64) float64 { return 1 / (1 + math.Exp(-v)) }},
		{"Relu", backend.Relu, func(v float64) float64 { return math.Max(v, 0) }},
		{"Abs", backend.Abs, math.Abs},
		{"Atan", backend.Atan, math.Atan},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := data(t, tt.op(x))
			for i, v := range x.Data() {
				assert.InDelta(t, tt.f(v), got[i], 1e-12, "element %d", i)
			}
		})
	}
}

func TestLogSqrt(t *testing.T) {
	backend := New()
	x := backend.Vector(1, 4, math.E)
	assert.InDeltaSlice(t, []float64{0, math.Log(4), 1}, data(t, backend.Log(x)), 1e-12)
	assert.InDeltaSlice(t, []float64{1, 2, math.Sqrt(math.E)}, data(t, backend.Sqrt(x)), 1e-12)
}

func TestSigmoid_Stable(t *testing.T) {
	backend := New()
	got := data(t, backend.Sigmoid(backend.Vector(-800, 800)))
	assert.Equal(t, 0.0, got[0])
	assert.Equal(t, 1.0, got[1])
	assert.False(t, math.IsNaN(got[0]) || math.IsNaN(got[1]))
}

func TestUnary_DoesNotMutateInput(t *testing.T) {
	backend := New()
	x := backend.Vector(1, 2, 3)
	_ = backend.Neg(x)
	assert.Equal(t, []float64{1, 2, 3}, x.Data())
}

func TestBinaryOps_SameShape(t *testing.T) {
	backend := New()
	a := backend.Vector(6, 8, 10)
	b := backend.Vector(3, 2, 5)

	assert.Equal(t, []float64{9, 10, 15}, data(t, backend.Plus(a, b)))
	assert.Equal(t, []float64{3, 6, 5}, data(t, backend.Minus(a, b)))
	assert.Equal(t, []float64{18, 16, 50}, data(t, backend.Times(a, b)))
	assert.Equal(t, []float64{2, 4, 2}, data(t, backend.Div(a, b)))
}

func TestBinaryOps_Broadcast(t *testing.T) {
	backend := New()
	// [2, 3] + [3] -> [2, 3]
	a := backend.MustFromSlice([]float64{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	row := backend.Vector(10, 20, 30)
	sum := backend.Plus(a, row)
	assert.Equal(t, tensor.Shape{2, 3}, sum.Shape())
	assert.Equal(t, []float64{11, 22, 33, 14, 25, 36}, data(t, sum))

	// [2, 1] * [1, 3] -> [2, 3]
	col := backend.MustFromSlice([]float64{1, 2}, tensor.Shape{2, 1})
	r := backend.MustFromSlice([]float64{1, 2, 3}, tensor.Shape{1, 3})
	prod := backend.Times(col, r)
	assert.Equal(t, tensor.Shape{2, 3}, prod.Shape())
	assert.Equal(t, []float64{1, 2, 3, 2, 4, 6}, data(t, prod))

	// scalar broadcasts against anything
	s := backend.Scalar(2)
	assert.Equal(t, []float64{2, 4, 6, 8, 10, 12}, data(t, backend.Times(s, a)))
}

func TestBinaryOps_Incompatible(t *testing.T) {
	backend := New()
	err := raised(t, func() { backend.Plus(backend.Vector(1, 2), backend.Vector(1, 2, 3)) })
	assert.True(t, ad.IsShape(err), "got %v", err)
}

func TestScalarOps(t *testing.T) {
	backend := New()
	x := backend.Vector(1, 2, 3)

	assert.Equal(t, []float64{3, 4, 5}, data(t, backend.PlusScalar(x, 2)))
	assert.Equal(t, []float64{-2, -4, -6}, data(t, backend.TimesScalar(x, -2)))
	assert.Equal(t, []float64{1, 1, 1}, data(t, backend.PowScalar(x, 0)))
	assert.Equal(t, []float64{1, 2, 3}, data(t, backend.PowScalar(x, 1)))
	assert.Equal(t, []float64{1, 4, 9}, data(t, backend.PowScalar(x, 2)))
	assert.InDeltaSlice(t, []float64{1, 8, 27}, data(t, backend.PowScalar(x, 3)), 1e-12)
	assert.InDeltaSlice(t, []float64{1, 0.5, 1.0 / 3}, data(t, backend.PowScalar(x, -1)), 1e-12)
}

func TestComparisons(t *testing.T) {
	backend := New()
	a := backend.Vector(1, 2, 3)
	b := backend.Scalar(2)

	assert.Equal(t, []float64{1, 0, 0}, data(t, backend.Less(a, b)))
	assert.Equal(t, []float64{0, 0, 1}, data(t, backend.Greater(a, b)))
	assert.Equal(t, []float64{0, 1, 0}, data(t, backend.Equal(a, b)))
}
