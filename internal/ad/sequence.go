package ad

import (
	"fmt"
	"sync/atomic"

	"github.com/born-ml/dualad/internal/tensor"
)

// Mode tells which engine owns a derivative identity.
type Mode int

// Identity modes.
const (
	ModeNone Mode = iota
	ModeForward
	ModeReverse
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeForward:
		return "forward"
	case ModeReverse:
		return "reverse"
	default:
		return "unknown"
	}
}

// Sequencer mints derivative identities with strictly increasing sequence
// numbers. One Sequencer is created per process (or per engine) and handed
// to whoever starts differentiation passes; it is safe for concurrent use.
type Sequencer struct {
	last atomic.Int64
}

// NewSequencer creates a sequencer whose first identity has sequence 1.
// Sequence 0 belongs to NoDerivativeID.
func NewSequencer() *Sequencer {
	return &Sequencer{}
}

// Next returns a fresh sequence number.
func (s *Sequencer) Next() int64 {
	return s.last.Add(1)
}

// Last returns the most recently issued sequence number.
func (s *Sequencer) Last() int64 {
	return s.last.Load()
}

// NewForwardID creates a forward identity whose tangents carry tangentShape
// as trailing axes.
func (s *Sequencer) NewForwardID(tangentShape tensor.Shape) *DerivativeID {
	return &DerivativeID{
		seq:      s.Next(),
		owner:    s,
		mode:     ModeForward,
		extra:    tangentShape.Clone(),
		extraSet: true,
	}
}

// NewReverseID creates a reverse identity. Its upstream shape is assigned
// once the differentiated output is known.
func (s *Sequencer) NewReverseID() *DerivativeID {
	return &DerivativeID{
		seq:   s.Next(),
		owner: s,
		mode:  ModeReverse,
	}
}

// DerivativeID marks one differentiation level.
//
// Identities are ordered by sequence number. For a forward identity the
// extra shape is the tangent shape; for a reverse identity it is the upstream
// shape, written exactly once.
type DerivativeID struct {
	seq      int64
	owner    *Sequencer
	mode     Mode
	extra    tensor.Shape
	extraSet bool
	finished atomic.Bool
}

// NoDerivativeID is the identity of plain values. It compares below every
// other identity.
var NoDerivativeID = &DerivativeID{mode: ModeNone, extraSet: true}

// Sequence returns the sequence number.
func (d *DerivativeID) Sequence() int64 {
	return d.seq
}

// Mode returns the engine owning this identity.
func (d *DerivativeID) Mode() Mode {
	return d.mode
}

// TangentShape returns the trailing tangent shape of a forward identity.
func (d *DerivativeID) TangentShape() tensor.Shape {
	if d.mode != ModeForward {
		Invariantf("TangentShape", "%v is not a forward identity", d)
	}
	return d.extra
}

// UpstreamShape returns the output shape being differentiated by a reverse
// identity.
func (d *DerivativeID) UpstreamShape() tensor.Shape {
	if d.mode != ModeReverse {
		Invariantf("UpstreamShape", "%v is not a reverse identity", d)
	}
	if !d.extraSet {
		Invariantf("UpstreamShape", "upstream shape of %v read before it was set", d)
	}
	return d.extra
}

// HasUpstreamShape reports whether the upstream shape was assigned.
func (d *DerivativeID) HasUpstreamShape() bool {
	return d.mode == ModeReverse && d.extraSet
}

// SetUpstreamShape assigns the upstream shape. A second assignment is an
// invariant violation.
func (d *DerivativeID) SetUpstreamShape(shape tensor.Shape) {
	if d.mode != ModeReverse {
		Invariantf("SetUpstreamShape", "%v is not a reverse identity", d)
	}
	if d.extraSet {
		Invariantf("SetUpstreamShape", "upstream shape of %v already set to %v", d, d.extra)
	}
	d.extra = shape.Clone()
	d.extraSet = true
}

// TrailingRank is the number of derivative axes this identity appends to
// tangents (forward) or accumulations (reverse).
func (d *DerivativeID) TrailingRank() int {
	return len(d.extra)
}

// TrailingShape is the derivative shape appended by this identity.
func (d *DerivativeID) TrailingShape() tensor.Shape {
	if d.mode == ModeReverse {
		return d.UpstreamShape()
	}
	return d.extra
}

// Finish marks the identity as done. Tensors still carrying it behave as
// their primal from then on.
func (d *DerivativeID) Finish() {
	if d == NoDerivativeID {
		return
	}
	d.finished.Store(true)
}

// Finished reports whether Finish was called.
func (d *DerivativeID) Finished() bool {
	return d.finished.Load()
}

func (d *DerivativeID) String() string {
	if d == NoDerivativeID {
		return "DerivativeID(none)"
	}
	return fmt.Sprintf("DerivativeID(%s #%d)", d.mode, d.seq)
}

// Compare orders two identities by sequence: -1, 0 or +1.
// Equal sequence numbers on distinct identities, or identities minted by
// different sequencers, are invariant violations.
func Compare(a, b *DerivativeID) int {
	if a == b {
		return 0
	}
	if a != NoDerivativeID && b != NoDerivativeID && a.owner != b.owner {
		Invariantf("Compare", "%v and %v come from different sequencers", a, b)
	}
	switch {
	case a.seq < b.seq:
		return -1
	case a.seq > b.seq:
		return 1
	default:
		Invariantf("Compare", "distinct identities %v and %v share a sequence number", a, b)
		return 0
	}
}

// Below reports whether a is strictly below b.
func Below(a, b *DerivativeID) bool {
	return a != b && Compare(a, b) < 0
}

// RequireBelow panics with an InvariantError unless inner is strictly below outer.
func RequireBelow(op string, inner, outer *DerivativeID) {
	if !Below(inner, outer) {
		Invariantf(op, "%v is not strictly below %v", inner, outer)
	}
}
