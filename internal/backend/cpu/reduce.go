package cpu

import (
	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/dualad/internal/ad"
	"github.com/born-ml/dualad/internal/tensor"
)

// Sum implements ad.Operations.
//
// Axes may be negative. No axes reduces everything. With keepDims the
// reduced axes stay with size 1.
func (cpu *CPUBackend) Sum(x ad.DTensor, axes []int, keepDims bool) ad.DTensor {
	return cpu.Wrap(cpu.sumRaw(cpu.raw("Sum", x), axes, keepDims))
}

func (cpu *CPUBackend) sumRaw(x *tensor.RawTensor, axes []int, keepDims bool) *tensor.RawTensor {
	shape := x.Shape()
	reduced := normalizeAxes("Sum", shape, axes)

	outShape := make(tensor.Shape, 0, shape.Rank())
	keptShape := make(tensor.Shape, shape.Rank())
	for i, d := range shape {
		if reduced[i] {
			keptShape[i] = 1
			if keepDims {
				outShape = append(outShape, 1)
			}
			continue
		}
		keptShape[i] = d
		outShape = append(outShape, d)
	}

	result := tensor.Zeros(outShape, cpu.device)
	src, dst := x.Data(), result.Mutable()
	if len(dst) == 1 {
		dst[0] = floats.Sum(src)
		return result
	}

	// Each source element lands in the kept-shape cell found by zeroing
	// the reduced coordinates.
	inStrides := shape.ComputeStrides()
	keptStrides := computeBroadcastStridesForShape(keptShape, shape)
	for i, v := range src {
		dst[computeFlatIndex(i, inStrides, keptStrides)] += v
	}
	return result
}

// normalizeAxes returns a mask of the axes to reduce.
func normalizeAxes(op string, shape tensor.Shape, axes []int) []bool {
	mask := make([]bool, shape.Rank())
	if len(axes) == 0 {
		for i := range mask {
			mask[i] = true
		}
		return mask
	}
	for _, axis := range axes {
		a, err := tensor.NormalizeAxis(axis, shape.Rank())
		if err != nil {
			ad.ShapeMismatchf(op, []tensor.Shape{shape}, "%v", err)
		}
		mask[a] = true
	}
	return mask
}
