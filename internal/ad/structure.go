package ad

// Differentiable is a user aggregate of tensors (a record, a list, a pair)
// that derivative drivers can flatten with Meld and rebuild after Split.
type Differentiable[T any] interface {
	// Tensors lists the differentiable fields in a fixed order.
	Tensors() []DTensor
	// Rebuild returns a copy of the aggregate with the fields replaced,
	// in the order Tensors returned them. Non-tensor fields are carried over.
	Rebuild(tensors []DTensor) T
}

// TensorList is a Differentiable list of tensors.
type TensorList []DTensor

// Tensors implements Differentiable.
func (l TensorList) Tensors() []DTensor { return l }

// Rebuild implements Differentiable.
func (l TensorList) Rebuild(tensors []DTensor) TensorList {
	out := make(TensorList, len(tensors))
	copy(out, tensors)
	return out
}

// Pair is a Differentiable pair of tensors.
type Pair struct {
	First  DTensor
	Second DTensor
}

// Tensors implements Differentiable.
func (p Pair) Tensors() []DTensor { return []DTensor{p.First, p.Second} }

// Rebuild implements Differentiable.
func (p Pair) Rebuild(tensors []DTensor) Pair {
	return Pair{First: tensors[0], Second: tensors[1]}
}

// MeldStructure flattens an aggregate.
func MeldStructure[T Differentiable[T]](v T) (DTensor, MeldLayout) {
	return Meld(v.Tensors())
}

// SplitStructure rebuilds an aggregate shaped like proto from a melded tensor.
func SplitStructure[T Differentiable[T]](proto T, flat DTensor, layout MeldLayout) T {
	return proto.Rebuild(Split(flat, layout))
}
