package ad

import "github.com/born-ml/dualad/internal/tensor"

// Tangents and accumulations carry the derivative axes of their identity
// after the primal axes: shape = primal.shape + trailing. The helpers below
// let derivative rules line primal-shaped factors up with such values.

// ExpandTrailing appends n unit axes to x so that it broadcasts against a
// value with n trailing derivative axes.
func ExpandTrailing(x DTensor, n int) DTensor {
	if n == 0 {
		return x
	}
	return Reshape(x, x.Shape().WithTrailingOnes(n))
}

// Unbroadcast sums g, of shape out + trailing, down to target + trailing,
// where target broadcasts to out. It is the adjoint of broadcasting.
func Unbroadcast(g DTensor, target tensor.Shape, trailing int) DTensor {
	gs := g.Shape()
	outRank := gs.Rank() - trailing
	lead := outRank - target.Rank()
	if lead < 0 {
		ShapeMismatchf("Unbroadcast", []tensor.Shape{gs, target}, "target has more axes than the broadcast result")
	}
	var axes []int
	for i := 0; i < lead; i++ {
		axes = append(axes, i)
	}
	for i, d := range target {
		switch {
		case d == gs[lead+i]:
		case d == 1:
			axes = append(axes, lead+i)
		default:
			ShapeMismatchf("Unbroadcast", []tensor.Shape{gs, target}, "dimension %d: %d does not broadcast to %d", i, d, gs[lead+i])
		}
	}
	want := target.Concat(gs.Drop(outRank))
	if len(axes) == 0 {
		return Reshape(g, want)
	}
	return Reshape(Sum(g, axes, true), want)
}

// BroadcastTrailing expands t, of shape in + trailing, to out + trailing.
func BroadcastTrailing(t DTensor, out tensor.Shape, trailing int) DTensor {
	ts := t.Shape()
	want := out.Concat(ts.Drop(ts.Rank() - trailing))
	if ts.Equal(want) {
		return t
	}
	if trailing == 0 {
		return Expand(t, want)
	}
	// Insert unit axes between the primal and trailing axes so that plain
	// right-aligned broadcasting lines the primal axes up with out.
	in := ts.Take(ts.Rank() - trailing)
	lead := out.Rank() - in.Rank()
	if lead > 0 {
		ones := make(tensor.Shape, lead)
		for i := range ones {
			ones[i] = 1
		}
		t = Reshape(t, ones.Concat(ts))
	}
	return Expand(t, want)
}

// MoveTrailingToFront moves the last n axes of x to the front.
func MoveTrailingToFront(x DTensor, n int) DTensor {
	r := x.Shape().Rank()
	if n == 0 || n == r {
		return x
	}
	perm := make([]int, 0, r)
	for i := r - n; i < r; i++ {
		perm = append(perm, i)
	}
	for i := 0; i < r-n; i++ {
		perm = append(perm, i)
	}
	return Transpose(x, perm...)
}

// MoveFrontToTrailing moves the first n axes of x to the back.
func MoveFrontToTrailing(x DTensor, n int) DTensor {
	r := x.Shape().Rank()
	if n == 0 || n == r {
		return x
	}
	perm := make([]int, 0, r)
	for i := n; i < r; i++ {
		perm = append(perm, i)
	}
	for i := 0; i < n; i++ {
		perm = append(perm, i)
	}
	return Transpose(x, perm...)
}

// ExtendPermutation extends perm with the identity on n trailing axes.
func ExtendPermutation(perm []int, n int) []int {
	out := make([]int, len(perm), len(perm)+n)
	copy(out, perm)
	for i := 0; i < n; i++ {
		out = append(out, len(perm)+i)
	}
	return out
}

// SwapLastTwo transposes the last two axes of x.
func SwapLastTwo(x DTensor) DTensor {
	r := x.Shape().Rank()
	perm := make([]int, r)
	for i := range perm {
		perm[i] = i
	}
	perm[r-2], perm[r-1] = perm[r-1], perm[r-2]
	return Transpose(x, perm...)
}

// MatMulTrailingLeft computes t @ b where t is a matrix-shaped value with n
// trailing derivative axes: t [..., m, k, T...] gives [..., m, p, T...].
func MatMulTrailingLeft(t, b DTensor, n int) DTensor {
	if n == 0 {
		return MatMul(t, b)
	}
	ts := t.Shape()
	trailing := ts.Drop(ts.Rank() - n)
	flat := Reshape(t, ts.Take(ts.Rank()-n).Concat(tensor.Shape{trailing.NumElements()}))
	front := MoveTrailingToFront(flat, 1)
	prod := MatMul(front, b)
	back := MoveFrontToTrailing(prod, 1)
	bs := back.Shape()
	return Reshape(back, bs.Take(bs.Rank()-1).Concat(trailing))
}

// MatMulTrailingRight computes a @ t where t is a matrix-shaped value with n
// trailing derivative axes: t [..., k, p, T...] gives [..., m, p, T...].
func MatMulTrailingRight(a, t DTensor, n int) DTensor {
	if n == 0 {
		return MatMul(a, t)
	}
	ts := t.Shape()
	trailing := ts.Drop(ts.Rank() - n)
	flat := Reshape(t, ts.Take(ts.Rank()-n).Concat(tensor.Shape{trailing.NumElements()}))
	front := MoveTrailingToFront(flat, 1)
	prod := MatMul(a, front)
	back := MoveFrontToTrailing(prod, 1)
	bs := back.Shape()
	return Reshape(back, bs.Take(bs.Rank()-1).Concat(trailing))
}
