// Package forward implements forward-mode differentiation with dual tensors.
//
// A *Tensor pairs a primal with a tangent of shape primal.shape + the
// tangent shape of its identity. Every primitive returns (f(p), f'(p)·t),
// computed with the ad package functions, so primals and tangents may
// themselves be duals or tape nodes of lower identities; that is how
// higher-order and mixed-mode derivatives compose.
package forward

import (
	"github.com/born-ml/dualad/internal/ad"
	"github.com/born-ml/dualad/internal/tensor"
)

// Tensor is a dual value at a forward identity.
type Tensor struct {
	primal  ad.DTensor
	tangent ad.DTensor // nil means zero
	id      *ad.DerivativeID
}

// New pairs primal with tangent at id. The tangent may be nil (zero).
// Both must come from identities strictly below id, and the tangent must
// have shape primal.shape + id.TangentShape().
func New(primal, tangent ad.DTensor, id *ad.DerivativeID) *Tensor {
	if id.Mode() != ad.ModeForward {
		ad.Invariantf("forward.New", "%v is not a forward identity", id)
	}
	ad.RequireBelow("forward.New", primal.DerivativeID(), id)
	if tangent != nil {
		ad.RequireBelow("forward.New", tangent.DerivativeID(), id)
		want := primal.Shape().Concat(id.TangentShape())
		if got := tangent.Shape(); !got.Equal(want) {
			ad.ShapeMismatchf("forward.New", []tensor.Shape{got, want}, "tangent must have shape primal+tangentShape")
		}
	}
	return &Tensor{primal: primal, tangent: tangent, id: id}
}

// Shape implements ad.DTensor.
func (t *Tensor) Shape() tensor.Shape { return t.primal.Shape() }

// DerivativeID implements ad.DTensor.
func (t *Tensor) DerivativeID() *ad.DerivativeID { return t.id }

// Primal implements ad.DTensor.
func (t *Tensor) Primal() ad.DTensor { return t.primal }

// Operations implements ad.DTensor.
func (t *Tensor) Operations() ad.Operations { return Ops{id: t.id} }

// Tangent returns the tangent, materializing zeros when none was recorded.
func (t *Tensor) Tangent() ad.DTensor {
	if t.tangent == nil {
		return ad.ZerosLike(t.primal, t.Shape().Concat(t.id.TangentShape()))
	}
	return t.tangent
}

// HasTangent reports whether a non-zero tangent was recorded.
func (t *Tensor) HasTangent() bool { return t.tangent != nil }

// TangentAt returns the tangent of x at id: the recorded tangent when x
// belongs to id, zeros of shape x.shape + tangentShape otherwise.
func TangentAt(x ad.DTensor, id *ad.DerivativeID) ad.DTensor {
	if d, ok := x.(*Tensor); ok && d.id == id {
		return d.Tangent()
	}
	return ad.ZerosLike(x, x.Shape().Concat(id.TangentShape()))
}
