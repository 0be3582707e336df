package ad_test

import (
	"errors"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/dualad/internal/ad"
	"github.com/born-ml/dualad/internal/tensor"
)

func TestCatch_ReturnsEngineErrors(t *testing.T) {
	tests := []struct {
		name  string
		raise func()
		is    func(error) bool
		msg   string
	}{
		{
			name:  "unsupported",
			raise: func() { ad.Unsupportedf("Conv2D", "CPU", "rank %d", 0) },
			is:    ad.IsUnsupported,
			msg:   "unsupported operation Conv2D on CPU: rank 0",
		},
		{
			name:  "shape",
			raise: func() { ad.ShapeMismatchf("Plus", []tensor.Shape{{2}, {3}}, "cannot broadcast") },
			is:    ad.IsShape,
			msg:   "shape mismatch in Plus [[2] [3]]: cannot broadcast",
		},
		{
			name:  "lifetime",
			raise: func() { ad.Lifetimef("node %d released", 4) },
			is:    ad.IsLifetime,
			msg:   "tape lifetime misuse: node 4 released",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ad.Catch(tt.raise)
			require.Error(t, err)
			assert.True(t, tt.is(err))
			assert.Equal(t, tt.msg, err.Error())
		})
	}
}

func TestCatch_NoPanic(t *testing.T) {
	assert.NoError(t, ad.Catch(func() {}))
}

func TestCatch_RepanicsInvariant(t *testing.T) {
	inv := invariant(t, func() {
		_ = ad.Catch(func() { ad.Invariantf("Pushback", "contribution at %d", 3) })
	})
	assert.Equal(t, "Pushback", inv.Op)
	assert.Equal(t, "invariant violation in Pushback: contribution at 3", inv.Error())
}

func TestCatch_RepanicsForeign(t *testing.T) {
	assert.PanicsWithValue(t, "boom", func() {
		_ = ad.Catch(func() { panic("boom") })
	})

	plain := errors.New("plain")
	assert.PanicsWithError(t, "plain", func() {
		_ = ad.Catch(func() { panic(plain) })
	})
}

func TestErrorPredicates_SeeThroughWrapping(t *testing.T) {
	err := pkgerrors.Wrap(&ad.ShapeError{Op: "MatMul"}, "layer 3")
	assert.True(t, ad.IsShape(err))
	assert.False(t, ad.IsUnsupported(err))
	assert.False(t, ad.IsInvariant(err))
	assert.False(t, ad.IsLifetime(err))

	var shapeErr *ad.ShapeError
	require.ErrorAs(t, err, &shapeErr)
	assert.Equal(t, "MatMul", shapeErr.Op)
}

func TestUnsupportedError_NoReason(t *testing.T) {
	err := &ad.UnsupportedError{Op: "MaxPool2D", Kind: "forward"}
	assert.Equal(t, "unsupported operation MaxPool2D on forward", err.Error())
}
