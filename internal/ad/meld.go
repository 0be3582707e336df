package ad

import "github.com/born-ml/dualad/internal/tensor"

// MeldLayout records what Meld flattened, so Split can restore it.
type MeldLayout struct {
	Shapes []tensor.Shape
	IDs    []*DerivativeID
}

// Size is the length of the melded tensor.
func (l MeldLayout) Size() int {
	n := 0
	for _, s := range l.Shapes {
		n += s.NumElements()
	}
	return n
}

// Offsets returns the start of every piece in the melded tensor.
func (l MeldLayout) Offsets() []int {
	offs := make([]int, len(l.Shapes))
	n := 0
	for i, s := range l.Shapes {
		offs[i] = n
		n += s.NumElements()
	}
	return offs
}

func (l MeldLayout) top() *DerivativeID {
	id := NoDerivativeID
	for _, d := range l.IDs {
		if Compare(d, id) > 0 {
			id = d
		}
	}
	return id
}

// Meld flattens values of any shapes and identities into one rank-1 tensor
// at the highest participating identity.
//
// Because the result is built from Reshape and Concat, backpropagation routes
// each block of the upstream to the value it came from, and drops blocks of
// values that are constants at the melded identity.
func Meld(values []DTensor) (DTensor, MeldLayout) {
	if len(values) == 0 {
		Unsupportedf("Meld", "none", "no values to meld")
	}
	layout := MeldLayout{
		Shapes: make([]tensor.Shape, len(values)),
		IDs:    make([]*DerivativeID, len(values)),
	}
	flat := make([]DTensor, len(values))
	for i, v := range values {
		layout.Shapes[i] = v.Shape().Clone()
		layout.IDs[i] = v.DerivativeID()
		flat[i] = Flatten(v)
	}
	return Concat(flat, 0), layout
}

// Split is the left inverse of Meld: it cuts flat into pieces with the
// recorded shapes. A piece whose original value had a lower identity than
// flat is unwrapped back down to that identity.
func Split(flat DTensor, layout MeldLayout) []DTensor {
	return splitPieces(flat, layout, nil, true)
}

// SplitTrailing cuts a derivative of a melded value: flat has shape
// [layout.Size()] + trailing and piece i gets shape Shapes[i] + trailing.
func SplitTrailing(flat DTensor, layout MeldLayout, trailing tensor.Shape) []DTensor {
	return splitPieces(flat, layout, trailing, false)
}

// SplitLeading cuts a forward derivative of a melded value: flat has shape
// leading + [layout.Size()] and piece i gets shape leading + Shapes[i].
func SplitLeading(flat DTensor, layout MeldLayout, leading tensor.Shape) []DTensor {
	fs := flat.Shape()
	want := leading.Concat(tensor.Shape{layout.Size()})
	if !fs.Equal(want) {
		ShapeMismatchf("SplitLeading", []tensor.Shape{fs, want}, "flat tensor does not match layout")
	}
	axis := leading.Rank()
	pieces := make([]DTensor, len(layout.Shapes))
	offs := layout.Offsets()
	for i, s := range layout.Shapes {
		piece := Slice(flat, axis, offs[i], offs[i]+s.NumElements())
		pieces[i] = Reshape(piece, leading.Concat(s))
	}
	return pieces
}

func splitPieces(flat DTensor, layout MeldLayout, trailing tensor.Shape, restoreIDs bool) []DTensor {
	fs := flat.Shape()
	want := tensor.Shape{layout.Size()}.Concat(trailing)
	if !fs.Equal(want) {
		ShapeMismatchf("Split", []tensor.Shape{fs, want}, "flat tensor does not match layout")
	}
	// Identities are only restored when flat sits at the level Meld produced.
	// A flat value re-wrapped by a newer pass keeps every piece at that pass.
	if restoreIDs && flat.DerivativeID() != layout.top() {
		restoreIDs = false
	}
	pieces := make([]DTensor, len(layout.Shapes))
	offs := layout.Offsets()
	for i, s := range layout.Shapes {
		var piece DTensor
		if len(layout.Shapes) == 1 {
			piece = flat
		} else {
			piece = Slice(flat, 0, offs[i], offs[i]+s.NumElements())
		}
		piece = Reshape(piece, s.Concat(trailing))
		if restoreIDs && i < len(layout.IDs) {
			for Compare(piece.DerivativeID(), layout.IDs[i]) > 0 {
				piece = piece.Primal()
			}
		}
		pieces[i] = piece
	}
	return pieces
}
