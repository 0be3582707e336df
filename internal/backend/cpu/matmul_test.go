package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/born-ml/dualad/internal/ad"
	"github.com/born-ml/dualad/internal/tensor"
)

func TestMatMul_2D(t *testing.T) {
	backend := New()
	// [2, 3] @ [3, 2]
	a := backend.MustFromSlice([]float64{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	b := backend.MustFromSlice([]float64{7, 8, 9, 10, 11, 12}, tensor.Shape{3, 2})

	c := backend.MatMul(a, b)
	assert.Equal(t, tensor.Shape{2, 2}, c.Shape())
	assert.InDeltaSlice(t, []float64{58, 64, 139, 154}, data(t, c), 1e-12)
}

func TestMatMul_Batched(t *testing.T) {
	backend := New()
	// [2, 2, 2] @ [2, 2, 1]
	a := backend.MustFromSlice([]float64{
		1, 0, 0, 1,
		2, 0, 0, 2,
	}, tensor.Shape{2, 2, 2})
	b := backend.MustFromSlice([]float64{
		1, 2,
		3, 4,
	}, tensor.Shape{2, 2, 1})

	c := backend.MatMul(a, b)
	assert.Equal(t, tensor.Shape{2, 2, 1}, c.Shape())
	assert.InDeltaSlice(t, []float64{1, 2, 6, 8}, data(t, c), 1e-12)
}

func TestMatMul_BroadcastBatch(t *testing.T) {
	backend := New()
	// [2, 1, 2] @ [2, 2] broadcasts the matrix over the batch
	a := backend.MustFromSlice([]float64{1, 2, 3, 4}, tensor.Shape{2, 1, 2})
	b := backend.MustFromSlice([]float64{1, 0, 0, 10}, tensor.Shape{2, 2})

	c := backend.MatMul(a, b)
	assert.Equal(t, tensor.Shape{2, 1, 2}, c.Shape())
	assert.InDeltaSlice(t, []float64{1, 20, 3, 40}, data(t, c), 1e-12)
}

func TestMatMul_EmptyInner(t *testing.T) {
	backend := New()
	a := backend.Zeros(tensor.Shape{2, 0})
	b := backend.Zeros(tensor.Shape{0, 3})
	c := backend.MatMul(a, b)
	assert.Equal(t, tensor.Shape{2, 3}, c.Shape())
	assert.Equal(t, make([]float64, 6), data(t, c))
}

func TestMatMul_Errors(t *testing.T) {
	backend := New()

	err := raised(t, func() { backend.MatMul(backend.Vector(1, 2), backend.Vector(1, 2)) })
	assert.True(t, ad.IsUnsupported(err), "rank 1: %v", err)

	err = raised(t, func() {
		backend.MatMul(backend.Zeros(tensor.Shape{2, 3}), backend.Zeros(tensor.Shape{2, 3}))
	})
	assert.True(t, ad.IsShape(err), "inner mismatch: %v", err)
}

func TestOuter(t *testing.T) {
	backend := New()
	a := backend.Vector(1, 2)
	b := backend.MustFromSlice([]float64{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	o := backend.Outer(a, b)
	assert.Equal(t, tensor.Shape{2, 2, 3}, o.Shape())
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, 2, 4, 6, 8, 10, 12}, data(t, o))

	s := backend.Outer(backend.Scalar(3), backend.Scalar(4))
	assert.True(t, s.Shape().IsScalar())
	assert.Equal(t, []float64{12}, data(t, s))
}
