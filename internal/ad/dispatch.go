package ad

// Live peels layers whose identity is finished. A value captured from a
// completed pass is a constant for every later computation.
func Live(x DTensor) DTensor {
	for x.DerivativeID().Finished() {
		x = x.Primal()
	}
	return x
}

// dispatch1 picks the operations for a unary primitive.
func dispatch1(x DTensor) (Operations, DTensor) {
	x = Live(x)
	return x.Operations(), x
}

// dispatch2 picks the operations of whichever operand has the higher
// identity. Equal sequences require the same identity.
func dispatch2(a, b DTensor) (Operations, DTensor, DTensor) {
	a, b = Live(a), Live(b)
	if Compare(a.DerivativeID(), b.DerivativeID()) >= 0 {
		return a.Operations(), a, b
	}
	return b.Operations(), a, b
}

// dispatchN is dispatch2 over any number of operands.
func dispatchN(xs []DTensor) (Operations, []DTensor) {
	if len(xs) == 0 {
		Unsupportedf("dispatch", "none", "no operands")
	}
	out := make([]DTensor, len(xs))
	best := 0
	for i, x := range xs {
		out[i] = Live(x)
		if Compare(out[i].DerivativeID(), out[best].DerivativeID()) > 0 {
			best = i
		}
	}
	return out[best].Operations(), out
}

// Highest returns the highest identity among xs.
func Highest(xs ...DTensor) *DerivativeID {
	id := NoDerivativeID
	for _, x := range xs {
		if x == nil {
			continue
		}
		if Compare(x.DerivativeID(), id) > 0 {
			id = x.DerivativeID()
		}
	}
	return id
}

// Base returns the plain value at the bottom of x's primal chain.
func Base(x DTensor) DTensor {
	for x.DerivativeID() != NoDerivativeID {
		x = x.Primal()
	}
	return x
}

// BaseOps returns the constant-making operations of x's plain value.
func BaseOps(x DTensor) BaseOperations {
	b := Base(x)
	ops, ok := b.Operations().(BaseOperations)
	if !ok {
		Unsupportedf("BaseOps", b.Operations().Name(), "representation cannot create constants")
	}
	return ops
}

// PrimalAt unwraps x one level if it belongs to id. Values from lower
// identities are constants at id and are returned unchanged.
func PrimalAt(x DTensor, id *DerivativeID) DTensor {
	if x.DerivativeID() == id {
		return x.Primal()
	}
	return x
}
