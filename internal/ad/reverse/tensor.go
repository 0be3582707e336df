package reverse

import (
	"github.com/born-ml/dualad/internal/ad"
	"github.com/born-ml/dualad/internal/tensor"
)

// Rule is the backward step of one recorded primitive.
type Rule interface {
	// Name returns the primitive name.
	Name() string
	// Backward receives the node's accumulated upstream derivative g, of
	// shape output.shape + upstreamShape, and pushes contributions to the
	// operands recorded on tape.
	Backward(tape *Tape, g ad.DTensor)
}

// Tensor is a node on a reverse tape.
type Tensor struct {
	primal ad.DTensor
	tape   *Tape
	index  int
	rule   Rule // nil for leaves created by Tape.Variable

	upstream ad.DTensor
	released bool
}

// Shape implements ad.DTensor.
func (n *Tensor) Shape() tensor.Shape { return n.primal.Shape() }

// DerivativeID implements ad.DTensor.
func (n *Tensor) DerivativeID() *ad.DerivativeID { return n.tape.id }

// Primal implements ad.DTensor.
func (n *Tensor) Primal() ad.DTensor { return n.primal }

// Operations implements ad.DTensor.
func (n *Tensor) Operations() ad.Operations { return n.tape.ops }

// IsLeaf reports whether the node was created by Tape.Variable.
func (n *Tensor) IsLeaf() bool { return n.rule == nil }

// Pushback adds contribution to the node's accumulation.
//
// The contribution must come from an identity strictly below the tape's and
// have shape primal.shape + upstreamShape. The first contribution is stored
// as is; later ones are summed with ad.Plus.
func (n *Tensor) Pushback(contribution ad.DTensor) {
	t := n.tape
	ad.RequireBelow("Pushback", contribution.DerivativeID(), t.id)

	want := n.Shape().Concat(t.id.UpstreamShape())
	if got := contribution.Shape(); !got.Equal(want) {
		ad.ShapeMismatchf("Pushback", []tensor.Shape{got, want}, "contribution to node %d does not match primal+upstream shape", n.index)
	}

	t.mu.Lock()
	state := t.state
	t.mu.Unlock()
	switch {
	case state == Drained || state == Discarded:
		ad.Lifetimef("pushback into node %d of a %s tape (%v)", n.index, state, t.id)
	case n.released:
		ad.Lifetimef("pushback into node %d after its accumulation was released (%v)", n.index, t.id)
	}

	if n.upstream == nil {
		n.upstream = contribution
		return
	}
	n.upstream = ad.Plus(n.upstream, contribution)
}

// Gradient returns the accumulated derivative of a leaf once the tape is
// drained, with shape primal.shape + upstreamShape. A leaf that received
// nothing has a zero gradient.
func (n *Tensor) Gradient() ad.DTensor {
	t := n.tape
	switch state := t.State(); state {
	case Drained:
	case Building, Backpropagating:
		ad.Lifetimef("gradient of node %d read while the tape is %s (%v)", n.index, state, t.id)
	default:
		ad.Lifetimef("gradient of node %d read after the tape was discarded (%v)", n.index, t.id)
	}
	if n.released {
		ad.Lifetimef("node %d is not a leaf; its accumulation was released (%v)", n.index, t.id)
	}
	if n.upstream == nil {
		return ad.ZerosLike(n.primal, n.Shape().Concat(t.id.UpstreamShape()))
	}
	return n.upstream
}
