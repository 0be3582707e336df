package cpu

import (
	"github.com/born-ml/dualad/internal/ad"
	"github.com/born-ml/dualad/internal/tensor"
)

// splitAxis views shape as [outer, shape[axis], inner].
func splitAxis(shape tensor.Shape, axis int) (outer, inner int) {
	outer, inner = 1, 1
	for _, d := range shape[:axis] {
		outer *= d
	}
	for _, d := range shape[axis+1:] {
		inner *= d
	}
	return outer, inner
}

func normalizeAxis(op string, shape tensor.Shape, axis int) int {
	a, err := tensor.NormalizeAxis(axis, shape.Rank())
	if err != nil {
		ad.ShapeMismatchf(op, []tensor.Shape{shape}, "%v", err)
	}
	return a
}

// Reshape implements ad.Operations. The result shares storage with x.
func (cpu *CPUBackend) Reshape(x ad.DTensor, shape tensor.Shape) ad.DTensor {
	r := cpu.raw("Reshape", x)
	if err := shape.Validate(); err != nil {
		ad.ShapeMismatchf("Reshape", []tensor.Shape{r.Shape(), shape}, "%v", err)
	}
	out, err := r.WithShape(shape)
	if err != nil {
		ad.ShapeMismatchf("Reshape", []tensor.Shape{r.Shape(), shape}, "%v", err)
	}
	return cpu.Wrap(out)
}

// Transpose implements ad.Operations: result axis i is input axis perm[i].
func (cpu *CPUBackend) Transpose(x ad.DTensor, perm []int) ad.DTensor {
	r := cpu.raw("Transpose", x)
	return cpu.Wrap(cpu.transposeRaw(r, perm))
}

func (cpu *CPUBackend) transposeRaw(r *tensor.RawTensor, perm []int) *tensor.RawTensor {
	shape := r.Shape()
	if err := tensor.ValidatePermutation(perm, shape.Rank()); err != nil {
		ad.ShapeMismatchf("Transpose", []tensor.Shape{shape}, "%v", err)
	}
	outShape := shape.Permute(perm)
	result := tensor.Zeros(outShape, cpu.device)
	src, dst := r.Data(), result.Mutable()

	inStrides := shape.ComputeStrides()
	permStrides := make([]int, len(perm))
	for i, p := range perm {
		permStrides[i] = inStrides[p]
	}
	outStrides := outShape.ComputeStrides()
	cpu.forRange(len(dst), func(start, end int) {
		for i := start; i < end; i++ {
			dst[i] = src[computeFlatIndex(i, outStrides, permStrides)]
		}
	})
	return result
}

// Expand implements ad.Operations.
func (cpu *CPUBackend) Expand(x ad.DTensor, shape tensor.Shape) ad.DTensor {
	return cpu.Wrap(cpu.expandRaw(cpu.raw("Expand", x), shape))
}

// Slice implements ad.Operations.
func (cpu *CPUBackend) Slice(x ad.DTensor, axis, start, end int) ad.DTensor {
	r := cpu.raw("Slice", x)
	shape := r.Shape()
	axis = normalizeAxis("Slice", shape, axis)
	if start < 0 || end < start || end > shape[axis] {
		ad.ShapeMismatchf("Slice", []tensor.Shape{shape}, "range [%d, %d) out of bounds for axis %d", start, end, axis)
	}

	outShape := shape.Clone()
	outShape[axis] = end - start
	result := tensor.Zeros(outShape, cpu.device)
	outer, inner := splitAxis(shape, axis)
	src, dst := r.Data(), result.Mutable()
	width := (end - start) * inner
	for o := 0; o < outer; o++ {
		from := (o*shape[axis] + start) * inner
		copy(dst[o*width:(o+1)*width], src[from:from+width])
	}
	return cpu.Wrap(result)
}

// Pad implements ad.Operations.
func (cpu *CPUBackend) Pad(x ad.DTensor, axis, before, after int) ad.DTensor {
	r := cpu.raw("Pad", x)
	shape := r.Shape()
	axis = normalizeAxis("Pad", shape, axis)
	if before < 0 || after < 0 {
		ad.ShapeMismatchf("Pad", []tensor.Shape{shape}, "negative padding %d, %d", before, after)
	}

	outShape := shape.Clone()
	outShape[axis] += before + after
	result := tensor.Zeros(outShape, cpu.device)
	outer, inner := splitAxis(shape, axis)
	src, dst := r.Data(), result.Mutable()
	width := shape[axis] * inner
	outWidth := outShape[axis] * inner
	for o := 0; o < outer; o++ {
		to := o*outWidth + before*inner
		copy(dst[to:to+width], src[o*width:(o+1)*width])
	}
	return cpu.Wrap(result)
}

// Concat implements ad.Operations.
func (cpu *CPUBackend) Concat(xs []ad.DTensor, axis int) ad.DTensor {
	if len(xs) == 0 {
		ad.ShapeMismatchf("Concat", nil, "at least one tensor required")
	}
	raws := make([]*tensor.RawTensor, len(xs))
	shapes := make([]tensor.Shape, len(xs))
	for i, x := range xs {
		raws[i] = cpu.raw("Concat", x)
		shapes[i] = raws[i].Shape()
	}

	first := shapes[0]
	axis = normalizeAxis("Concat", first, axis)
	total := 0
	for i, s := range shapes {
		if s.Rank() != first.Rank() {
			ad.ShapeMismatchf("Concat", shapes, "tensor %d has rank %d, expected %d", i, s.Rank(), first.Rank())
		}
		for d := range s {
			if d != axis && s[d] != first[d] {
				ad.ShapeMismatchf("Concat", shapes, "tensor %d dimension %d is %d, expected %d", i, d, s[d], first[d])
			}
		}
		total += s[axis]
	}

	outShape := first.Clone()
	outShape[axis] = total
	result := tensor.Zeros(outShape, cpu.device)
	dst := result.Mutable()
	outer, inner := splitAxis(first, axis)
	outWidth := total * inner
	offset := 0
	for _, r := range raws {
		width := r.Shape()[axis] * inner
		src := r.Data()
		for o := 0; o < outer; o++ {
			copy(dst[o*outWidth+offset:o*outWidth+offset+width], src[o*width:(o+1)*width])
		}
		offset += width
	}
	return cpu.Wrap(result)
}
