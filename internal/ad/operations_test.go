package ad_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/dualad/internal/ad"
	"github.com/born-ml/dualad/internal/backend/cpu"
	"github.com/born-ml/dualad/internal/tensor"
)

// values returns the dense values of x.
func values(t *testing.T, x ad.DTensor) []float64 {
	t.Helper()
	d, ok := cpu.AsDense(x)
	require.True(t, ok, "expected a dense value, got %T", x)
	return d.Data()
}

func TestDerivedFunctions(t *testing.T) {
	backend := cpu.New()
	x := backend.Vector(1, 2, 3, 4)

	assert.Equal(t, []float64{2.5}, values(t, ad.Mean(x)))
	assert.Equal(t, []float64{10}, values(t, ad.SumAll(x)))
	assert.Equal(t, []float64{0, 1, 2, 3}, values(t, ad.MinusScalar(x, 1)))
	assert.Equal(t, []float64{0.5, 1, 1.5, 2}, values(t, ad.DivScalar(x, 2)))
	assert.Equal(t, []float64{9, 8, 7, 6}, values(t, ad.ScalarMinus(10, x)))
	assert.Equal(t, []float64{1, 4, 9, 16}, values(t, ad.Square(x)))
	assert.Equal(t, tensor.Shape{4}, ad.Flatten(ad.Reshape(x, tensor.Shape{2, 2})).Shape())
}

func TestStructuralShortcuts(t *testing.T) {
	backend := cpu.New()
	x := backend.MustFromSlice([]float64{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	assert.Same(t, x, ad.Reshape(x, tensor.Shape{2, 3}))
	assert.Same(t, x, ad.Expand(x, tensor.Shape{2, 3}))
	assert.Same(t, x, ad.Pad(x, 0, 0, 0))
	assert.Same(t, x, ad.Transpose(x, 0, 1))
	assert.Same(t, x, ad.Concat([]ad.DTensor{x}, 0))
}

func TestTranspose_DefaultReverses(t *testing.T) {
	backend := cpu.New()
	x := backend.MustFromSlice([]float64{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	tr := ad.Transpose(x)
	assert.Equal(t, tensor.Shape{3, 2}, tr.Shape())
	assert.Equal(t, []float64{1, 4, 2, 5, 3, 6}, values(t, tr))
}

func TestTranspose_RejectsBadPermutation(t *testing.T) {
	backend := cpu.New()
	x := backend.MustFromSlice([]float64{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	for name, perm := range map[string][]int{
		"short":     {0},
		"long":      {0, 1, 2},
		"duplicate": {1, 1},
		"range":     {0, 2},
	} {
		err := ad.Catch(func() { ad.Transpose(x, perm...) })
		assert.True(t, ad.IsShape(err), "%s: got %v", name, err)
	}
}

func TestComparisonsAndSelect(t *testing.T) {
	backend := cpu.New()
	x := backend.Vector(-1, 0, 2)
	zero := ad.Scalar(x, 0)

	assert.Equal(t, []float64{1, 0, 0}, values(t, ad.Less(x, zero)))
	assert.Equal(t, []float64{0, 0, 1}, values(t, ad.Greater(x, zero)))
	assert.Equal(t, []float64{0, 1, 0}, values(t, ad.Equal(x, zero)))

	abs := ad.IfThenElse(ad.Less(x, zero), ad.Neg(x), x)
	assert.Equal(t, []float64{1, 0, 2}, values(t, abs))
}

func TestZerosLikeAndScalar(t *testing.T) {
	backend := cpu.New()
	x := backend.Vector(1)

	z := ad.ZerosLike(x, tensor.Shape{2, 2})
	assert.Equal(t, []float64{0, 0, 0, 0}, values(t, z))
	assert.Equal(t, []float64{3}, values(t, ad.Scalar(x, 3)))
}

func TestUpdateRunningStats(t *testing.T) {
	backend := cpu.New()
	batch := ad.BatchNormStats{Mean: backend.Vector(2, 4), Variance: backend.Vector(1, 3)}

	first := ad.UpdateRunningStats(ad.RunningStats{}, batch, 0.1)
	assert.Same(t, batch.Mean, first.Mean)
	assert.Same(t, batch.Variance, first.Variance)

	running := ad.RunningStats{Mean: backend.Vector(0, 0), Variance: backend.Vector(1, 1)}
	next := ad.UpdateRunningStats(running, batch, 0.1)
	assert.InDeltaSlice(t, []float64{0.2, 0.4}, values(t, next.Mean), 1e-12)
	assert.InDeltaSlice(t, []float64{1, 1.2}, values(t, next.Variance), 1e-12)

	// Inputs are untouched.
	assert.Equal(t, []float64{0, 0}, values(t, running.Mean))
}

func TestBatchNorm_ReturnsStats(t *testing.T) {
	backend := cpu.New()
	x := backend.MustFromSlice([]float64{1, 2, 3, 4}, tensor.Shape{2, 2})

	y, stats := ad.BatchNorm(x, backend.Vector(1, 1), backend.Vector(0, 0), 0)
	assert.InDeltaSlice(t, []float64{-1, -1, 1, 1}, values(t, y), 1e-12)
	assert.InDeltaSlice(t, []float64{2, 3}, values(t, stats.Mean), 1e-12)
}
