// Package reverse implements reverse-mode differentiation.
//
// A Tape records the primitives applied to values of one reverse identity.
// Every recorded value is a *Tensor node holding its primal and the rule
// that pushes its accumulated upstream derivative back to its operands.
// Backpropagate walks the nodes in reverse construction order.
//
// Accumulations have shape primal.shape + upstreamShape, where the upstream
// shape is the shape of the differentiated output. Seeding the output with
// an identity tensor therefore yields the full Jacobian in one sweep.
package reverse

import (
	"sync"

	"github.com/born-ml/dualad/internal/ad"
)

// State is the lifecycle stage of a tape.
type State int

// Tape states.
const (
	Building State = iota
	Backpropagating
	Drained
	Discarded
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Building:
		return "building"
	case Backpropagating:
		return "backpropagating"
	case Drained:
		return "drained"
	case Discarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// Tape records nodes of one reverse identity.
//
// Usage:
//
//	id := seq.NewReverseID()
//	tape := reverse.NewTape(id)
//	x := tape.Variable(input)
//	y := f(x)
//	id.SetUpstreamShape(y.Shape())
//	tape.Seed(y, ad.BaseOps(y).Identity(y.Shape()))
//	tape.Backpropagate()
//	grad := x.Gradient()
type Tape struct {
	id  *ad.DerivativeID
	ops *Ops

	mu    sync.Mutex
	nodes []*Tensor
	state State
}

// NewTape creates an empty tape for a reverse identity.
func NewTape(id *ad.DerivativeID) *Tape {
	if id.Mode() != ad.ModeReverse {
		ad.Invariantf("NewTape", "%v is not a reverse identity", id)
	}
	t := &Tape{
		id:    id,
		nodes: make([]*Tensor, 0, 64),
	}
	t.ops = &Ops{tape: t}
	return t
}

// ID returns the identity the tape records for.
func (t *Tape) ID() *ad.DerivativeID {
	return t.id
}

// Ops returns the operations of the tape's nodes.
func (t *Tape) Ops() *Ops {
	return t.ops
}

// State returns the lifecycle stage.
func (t *Tape) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Len returns the number of recorded nodes.
func (t *Tape) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.nodes)
}

// Variable registers x as an input whose derivative is wanted. The returned
// leaf keeps its accumulation after backpropagation.
func (t *Tape) Variable(x ad.DTensor) *Tensor {
	ad.RequireBelow("Variable", x.DerivativeID(), t.id)
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Building {
		ad.Invariantf("Variable", "tape of %v is %s", t.id, t.state)
	}
	n := &Tensor{primal: x, tape: t, index: len(t.nodes)}
	t.nodes = append(t.nodes, n)
	return n
}

// record appends a node computed by rule. On a drained or discarded tape
// nothing is recorded and the primal comes back as a constant.
func (t *Tape) record(primal ad.DTensor, rule Rule) ad.DTensor {
	ad.RequireBelow(rule.Name(), primal.DerivativeID(), t.id)
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.state {
	case Building:
	case Backpropagating:
		ad.Invariantf(rule.Name(), "recording on the tape of %v while it backpropagates", t.id)
	default:
		return primal
	}
	n := &Tensor{primal: primal, tape: t, index: len(t.nodes), rule: rule}
	t.nodes = append(t.nodes, n)
	return n
}

// Seed pushes the initial upstream derivative into out. A value that is not
// a node of this tape does not depend on any variable and is ignored.
func (t *Tape) Seed(out ad.DTensor, seed ad.DTensor) {
	if n, ok := t.node(out); ok {
		n.Pushback(seed)
	}
}

// Backpropagate drains the tape: nodes are visited last to first, each
// handing its accumulation to its rule. Accumulations of interior nodes are
// released once used; leaves keep theirs for Gradient.
func (t *Tape) Backpropagate() {
	t.mu.Lock()
	if t.state != Building {
		state := t.state
		t.mu.Unlock()
		ad.Invariantf("Backpropagate", "tape of %v is %s", t.id, state)
	}
	t.state = Backpropagating
	nodes := t.nodes
	t.mu.Unlock()

	for i := len(nodes) - 1; i >= 0; i-- {
		n := nodes[i]
		if n.rule == nil {
			continue
		}
		if g := n.upstream; g != nil {
			n.rule.Backward(t, g)
		}
		n.upstream = nil
		n.released = true
	}

	t.mu.Lock()
	t.state = Drained
	t.mu.Unlock()
}

// Discard drops every node. Leaves can no longer be read.
func (t *Tape) Discard() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, n := range t.nodes {
		n.upstream = nil
		n.released = true
	}
	t.nodes = nil
	t.state = Discarded
}

// node returns x as a node of this tape, if it is one.
func (t *Tape) node(x ad.DTensor) (*Tensor, bool) {
	n, ok := x.(*Tensor)
	if !ok || n.tape != t {
		return nil, false
	}
	return n, true
}

// push hands a contribution to x if x is a node of this tape. Operands from
// lower identities are constants here and take nothing.
func (t *Tape) push(x ad.DTensor, contribution func() ad.DTensor) {
	if n, ok := t.node(x); ok {
		n.Pushback(contribution())
	}
}

// trailing is the number of upstream axes carried by accumulations.
func (t *Tape) trailing() int {
	return t.id.TrailingRank()
}
