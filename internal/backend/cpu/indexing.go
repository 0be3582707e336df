package cpu

import (
	"github.com/born-ml/dualad/internal/ad"
	"github.com/born-ml/dualad/internal/tensor"
)

// Gather implements ad.Operations: the result has len(indices) entries
// along axis, entry i being x's entry indices[i].
func (cpu *CPUBackend) Gather(x ad.DTensor, axis int, indices []int) ad.DTensor {
	r := cpu.raw("Gather", x)
	shape := r.Shape()
	axis = normalizeAxis("Gather", shape, axis)
	for _, idx := range indices {
		if idx < 0 || idx >= shape[axis] {
			ad.ShapeMismatchf("Gather", []tensor.Shape{shape}, "index %d out of range for axis %d", idx, axis)
		}
	}

	outShape := shape.Clone()
	outShape[axis] = len(indices)
	result := tensor.Zeros(outShape, cpu.device)
	outer, inner := splitAxis(shape, axis)
	src, dst := r.Data(), result.Mutable()
	for o := 0; o < outer; o++ {
		for i, idx := range indices {
			from := (o*shape[axis] + idx) * inner
			to := (o*len(indices) + i) * inner
			copy(dst[to:to+inner], src[from:from+inner])
		}
	}
	return cpu.Wrap(result)
}

// ScatterAdd implements ad.Operations.
func (cpu *CPUBackend) ScatterAdd(x ad.DTensor, axis int, indices []int, size int) ad.DTensor {
	r := cpu.raw("ScatterAdd", x)
	shape := r.Shape()
	axis = normalizeAxis("ScatterAdd", shape, axis)
	if shape[axis] != len(indices) {
		ad.ShapeMismatchf("ScatterAdd", []tensor.Shape{shape}, "axis %d has %d entries for %d indices", axis, shape[axis], len(indices))
	}
	for _, idx := range indices {
		if idx < 0 || idx >= size {
			ad.ShapeMismatchf("ScatterAdd", []tensor.Shape{shape}, "index %d out of range for size %d", idx, size)
		}
	}

	outShape := shape.Clone()
	outShape[axis] = size
	result := tensor.Zeros(outShape, cpu.device)
	outer, inner := splitAxis(shape, axis)
	src, dst := r.Data(), result.Mutable()
	for o := 0; o < outer; o++ {
		for i, idx := range indices {
			from := (o*len(indices) + i) * inner
			to := (o*size + idx) * inner
			for j := 0; j < inner; j++ {
				dst[to+j] += src[from+j]
			}
		}
	}
	return cpu.Wrap(result)
}

// IfThenElse implements ad.Operations. All three operands broadcast.
func (cpu *CPUBackend) IfThenElse(mask, a, b ad.DTensor) ad.DTensor {
	m := cpu.raw("IfThenElse", mask)
	ar, br := cpu.raw("IfThenElse", a), cpu.raw("IfThenElse", b)
	outShape := broadcastShape("IfThenElse", broadcastShape("IfThenElse", m.Shape(), ar.Shape()), br.Shape())
	mr, ar, br := cpu.expandRaw(m, outShape), cpu.expandRaw(ar, outShape), cpu.expandRaw(br, outShape)

	result := tensor.Zeros(outShape, cpu.device)
	ms, as, bs, dst := mr.Data(), ar.Data(), br.Data(), result.Mutable()
	cpu.forRange(len(dst), func(start, end int) {
		for i := start; i < end; i++ {
			if ms[i] != 0 {
				dst[i] = as[i]
			} else {
				dst[i] = bs[i]
			}
		}
	})
	return cpu.Wrap(result)
}
