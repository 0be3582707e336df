package ad_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/dualad/internal/ad"
	"github.com/born-ml/dualad/internal/tensor"
)

// invariant runs fn and returns the InvariantError it must panic with.
func invariant(t *testing.T, fn func()) *ad.InvariantError {
	t.Helper()
	var got any
	func() {
		defer func() { got = recover() }()
		fn()
	}()
	require.NotNil(t, got, "expected an invariant violation")
	err, ok := got.(error)
	require.True(t, ok, "panic value %v is not an error", got)
	var inv *ad.InvariantError
	require.ErrorAs(t, err, &inv)
	return inv
}

func TestSequencer_Monotonic(t *testing.T) {
	seq := ad.NewSequencer()
	assert.Equal(t, int64(0), seq.Last())

	a := seq.NewForwardID(tensor.Shape{2})
	b := seq.NewReverseID()
	assert.Equal(t, int64(1), a.Sequence())
	assert.Equal(t, int64(2), b.Sequence())
	assert.Equal(t, int64(2), seq.Last())

	assert.Equal(t, ad.ModeForward, a.Mode())
	assert.Equal(t, ad.ModeReverse, b.Mode())
	assert.Equal(t, tensor.Shape{2}, a.TangentShape())
}

func TestSequencer_Concurrent(t *testing.T) {
	seq := ad.NewSequencer()
	const workers, each = 8, 100

	var mu sync.Mutex
	seen := make(map[int64]bool)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				id := seq.NewReverseID()
				mu.Lock()
				seen[id.Sequence()] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, workers*each)
	assert.Equal(t, int64(workers*each), seq.Last())
}

func TestCompare(t *testing.T) {
	seq := ad.NewSequencer()
	a := seq.NewReverseID()
	b := seq.NewForwardID(tensor.Shape{})

	assert.Equal(t, 0, ad.Compare(a, a))
	assert.Equal(t, -1, ad.Compare(a, b))
	assert.Equal(t, 1, ad.Compare(b, a))
	assert.Equal(t, -1, ad.Compare(ad.NoDerivativeID, a))
	assert.True(t, ad.Below(ad.NoDerivativeID, a))
	assert.True(t, ad.Below(a, b))
	assert.False(t, ad.Below(a, a))
	assert.False(t, ad.Below(b, a))
}

func TestCompare_DifferentSequencers(t *testing.T) {
	a := ad.NewSequencer().NewReverseID()
	b := ad.NewSequencer().NewReverseID()
	inv := invariant(t, func() { ad.Compare(a, b) })
	assert.Equal(t, "Compare", inv.Op)

	// Plain values are below everything regardless of sequencer.
	assert.True(t, ad.Below(ad.NoDerivativeID, b))
}

func TestRequireBelow(t *testing.T) {
	seq := ad.NewSequencer()
	a := seq.NewReverseID()
	b := seq.NewReverseID()

	assert.NotPanics(t, func() { ad.RequireBelow("op", a, b) })
	inv := invariant(t, func() { ad.RequireBelow("op", b, a) })
	assert.Equal(t, "op", inv.Op)
	invariant(t, func() { ad.RequireBelow("op", a, a) })
}

func TestUpstreamShape(t *testing.T) {
	seq := ad.NewSequencer()
	id := seq.NewReverseID()

	assert.False(t, id.HasUpstreamShape())
	invariant(t, func() { id.UpstreamShape() })

	id.SetUpstreamShape(tensor.Shape{3})
	assert.True(t, id.HasUpstreamShape())
	assert.Equal(t, tensor.Shape{3}, id.UpstreamShape())
	assert.Equal(t, tensor.Shape{3}, id.TrailingShape())
	assert.Equal(t, 1, id.TrailingRank())

	invariant(t, func() { id.SetUpstreamShape(tensor.Shape{3}) })
}

func TestModeChecks(t *testing.T) {
	seq := ad.NewSequencer()
	fwd := seq.NewForwardID(tensor.Shape{2, 2})
	rev := seq.NewReverseID()

	invariant(t, func() { rev.TangentShape() })
	invariant(t, func() { fwd.UpstreamShape() })
	invariant(t, func() { fwd.SetUpstreamShape(tensor.Shape{}) })
	assert.Equal(t, 2, fwd.TrailingRank())
	assert.Equal(t, tensor.Shape{2, 2}, fwd.TrailingShape())
}

func TestFinish(t *testing.T) {
	id := ad.NewSequencer().NewForwardID(tensor.Shape{})
	assert.False(t, id.Finished())
	id.Finish()
	assert.True(t, id.Finished())

	ad.NoDerivativeID.Finish()
	assert.False(t, ad.NoDerivativeID.Finished())
}

func TestDerivativeID_String(t *testing.T) {
	seq := ad.NewSequencer()
	assert.Equal(t, "DerivativeID(forward #1)", seq.NewForwardID(tensor.Shape{}).String())
	assert.Equal(t, "DerivativeID(reverse #2)", seq.NewReverseID().String())
	assert.Equal(t, "DerivativeID(none)", ad.NoDerivativeID.String())
	assert.Equal(t, "reverse", ad.ModeReverse.String())
}
