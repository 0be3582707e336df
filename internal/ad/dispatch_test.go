package ad_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/dualad/internal/ad"
	"github.com/born-ml/dualad/internal/backend/cpu"
	"github.com/born-ml/dualad/internal/tensor"
)

// recorder is a representation that only logs which primitives reached it.
type recorder struct {
	ad.Unimplemented
	calls    []string
	operands [][]ad.DTensor
}

func newRecorder(kind string) *recorder {
	return &recorder{Unimplemented: ad.Unimplemented{Kind: kind}}
}

func (r *recorder) log(op string, xs ...ad.DTensor) ad.DTensor {
	r.calls = append(r.calls, op)
	r.operands = append(r.operands, xs)
	return xs[0]
}

func (r *recorder) Neg(x ad.DTensor) ad.DTensor     { return r.log("Neg", x) }
func (r *recorder) Plus(a, b ad.DTensor) ad.DTensor { return r.log("Plus", a, b) }

func (r *recorder) Concat(xs []ad.DTensor, _ int) ad.DTensor { return r.log("Concat", xs...) }

func (r *recorder) IfThenElse(mask, a, b ad.DTensor) ad.DTensor {
	return r.log("IfThenElse", mask, a, b)
}

// layer wraps a primal at an identity, dispatching to a recorder.
type layer struct {
	primal ad.DTensor
	id     *ad.DerivativeID
	ops    *recorder
}

func (l *layer) Shape() tensor.Shape            { return l.primal.Shape() }
func (l *layer) DerivativeID() *ad.DerivativeID { return l.id }
func (l *layer) Primal() ad.DTensor             { return l.primal }
func (l *layer) Operations() ad.Operations      { return l.ops }

func TestDispatch_PicksHighestIdentity(t *testing.T) {
	backend := cpu.New()
	seq := ad.NewSequencer()
	lowOps, highOps := newRecorder("low"), newRecorder("high")
	low := &layer{primal: backend.Scalar(1), id: seq.NewReverseID(), ops: lowOps}
	high := &layer{primal: backend.Scalar(2), id: seq.NewReverseID(), ops: highOps}

	ad.Plus(low, high)
	ad.Plus(high, backend.Scalar(3))

	assert.Empty(t, lowOps.calls)
	require.Equal(t, []string{"Plus", "Plus"}, highOps.calls)
	// Operand order is preserved.
	assert.Same(t, low, highOps.operands[0][0])
	assert.Same(t, high, highOps.operands[0][1])

	ad.Concat([]ad.DTensor{backend.Scalar(0), low, backend.Scalar(0)}, 0)
	assert.Equal(t, []string{"Concat"}, lowOps.calls)
}

func TestDispatch_ForeignSequencer(t *testing.T) {
	backend := cpu.New()
	a := &layer{primal: backend.Scalar(1), id: ad.NewSequencer().NewReverseID(), ops: newRecorder("a")}
	b := &layer{primal: backend.Scalar(1), id: ad.NewSequencer().NewReverseID(), ops: newRecorder("b")}
	invariant(t, func() { ad.Plus(a, b) })
}

func TestLive_PeelsFinishedLayers(t *testing.T) {
	backend := cpu.New()
	seq := ad.NewSequencer()
	x := backend.Scalar(4)
	inner := &layer{primal: x, id: seq.NewReverseID(), ops: newRecorder("inner")}
	outer := &layer{primal: inner, id: seq.NewForwardID(tensor.Shape{}), ops: newRecorder("outer")}

	assert.Same(t, outer, ad.Live(outer))
	outer.id.Finish()
	assert.Same(t, inner, ad.Live(outer))
	inner.id.Finish()
	assert.Same(t, x, ad.Live(outer))

	// A value captured from finished passes computes as a constant.
	y := ad.Neg(outer)
	d, ok := cpu.AsDense(y)
	require.True(t, ok)
	assert.Equal(t, -4.0, d.Item())
	assert.Empty(t, inner.ops.calls)
	assert.Empty(t, outer.ops.calls)
}

func TestHighestBasePrimalAt(t *testing.T) {
	backend := cpu.New()
	seq := ad.NewSequencer()
	x := backend.Vector(1, 2)
	a := &layer{primal: x, id: seq.NewReverseID(), ops: newRecorder("a")}
	b := &layer{primal: a, id: seq.NewReverseID(), ops: newRecorder("b")}

	assert.Same(t, b.id, ad.Highest(x, b, a, nil))
	assert.Same(t, ad.NoDerivativeID, ad.Highest(x))
	assert.Same(t, x, ad.Base(b))

	assert.Same(t, a, ad.PrimalAt(b, b.id))
	assert.Same(t, a, ad.PrimalAt(a, b.id))
	assert.Same(t, x, ad.PrimalAt(x, b.id))

	assert.Equal(t, backend, ad.BaseOps(b))
}

func TestBaseOps_RequiresConstantMaker(t *testing.T) {
	plain := &layer{primal: nil, id: ad.NoDerivativeID, ops: newRecorder("plain")}
	err := ad.Catch(func() { ad.BaseOps(plain) })
	assert.True(t, ad.IsUnsupported(err), "got %v", err)
}

func TestIfThenElse_MaskIsPlain(t *testing.T) {
	backend := cpu.New()
	seq := ad.NewSequencer()
	ops := newRecorder("r")
	mask := &layer{primal: backend.Vector(1, 0), id: seq.NewReverseID(), ops: newRecorder("mask")}
	a := &layer{primal: backend.Vector(1, 2), id: seq.NewReverseID(), ops: ops}

	ad.IfThenElse(mask, a, backend.Vector(3, 4))
	require.Equal(t, []string{"IfThenElse"}, ops.calls)
	assert.Same(t, mask.primal, ops.operands[0][0])
	assert.Empty(t, mask.ops.calls)
}
