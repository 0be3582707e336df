package cpu

import (
	"github.com/born-ml/dualad/internal/ad"
	"github.com/born-ml/dualad/internal/tensor"
)

// computeBroadcastStridesForShape computes strides for broadcasting a shape to outShape.
// Returns strides where dimensions of size 1 have stride 0 (for broadcasting).
func computeBroadcastStridesForShape(inShape, outShape tensor.Shape) []int {
	outDim := len(outShape)
	strides := make([]int, outDim)

	inDim := len(inShape)
	offset := outDim - inDim
	origStrides := inShape.ComputeStrides()

	for i := 0; i < outDim; i++ {
		inIdx := i - offset
		switch {
		case inIdx < 0 || inIdx >= inDim:
			strides[i] = 0
		case inShape[inIdx] == 1:
			strides[i] = 0
		default:
			strides[i] = origStrides[inIdx]
		}
	}

	return strides
}

// computeFlatIndex computes the flat index in the source array for a given output index.
// outStrides: strides of the output shape.
// inStrides: broadcast-adjusted strides of the input shape.
func computeFlatIndex(outIdx int, outStrides, inStrides []int) int {
	flatIdx := 0
	for i := range outStrides {
		coord := outIdx / outStrides[i]
		outIdx %= outStrides[i]
		flatIdx += coord * inStrides[i]
	}
	return flatIdx
}

// broadcastShape returns the broadcast result of a and b or panics with a
// shape error naming op.
func broadcastShape(op string, a, b tensor.Shape) tensor.Shape {
	out, _, err := tensor.BroadcastShapes(a, b)
	if err != nil {
		ad.ShapeMismatchf(op, []tensor.Shape{a, b}, "%v", err)
	}
	return out
}

// binaryBroadcast evaluates f over the broadcast of a and b.
func (cpu *CPUBackend) binaryBroadcast(op string, a, b *tensor.RawTensor, f func(x, y float64) float64) *tensor.RawTensor {
	outShape := broadcastShape(op, a.Shape(), b.Shape())
	result := tensor.Zeros(outShape, cpu.device)
	dst := result.Mutable()
	as, bs := a.Data(), b.Data()

	// Same shape: straight loop.
	if a.Shape().Equal(b.Shape()) {
		cpu.forRange(len(dst), func(start, end int) {
			for i := start; i < end; i++ {
				dst[i] = f(as[i], bs[i])
			}
		})
		return result
	}

	outStrides := outShape.ComputeStrides()
	aStrides := computeBroadcastStridesForShape(a.Shape(), outShape)
	bStrides := computeBroadcastStridesForShape(b.Shape(), outShape)
	cpu.forRange(len(dst), func(start, end int) {
		for i := start; i < end; i++ {
			dst[i] = f(as[computeFlatIndex(i, outStrides, aStrides)], bs[computeFlatIndex(i, outStrides, bStrides)])
		}
	})
	return result
}

// expandRaw broadcasts x to shape.
func (cpu *CPUBackend) expandRaw(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	if !x.Shape().CanBroadcastTo(shape) {
		ad.ShapeMismatchf("Expand", []tensor.Shape{x.Shape(), shape}, "cannot broadcast")
	}
	if x.Shape().Equal(shape) {
		return x
	}
	result := tensor.Zeros(shape, cpu.device)
	dst := result.Mutable()
	src := x.Data()
	outStrides := shape.ComputeStrides()
	inStrides := computeBroadcastStridesForShape(x.Shape(), shape)
	cpu.forRange(len(dst), func(start, end int) {
		for i := start; i < end; i++ {
			dst[i] = src[computeFlatIndex(i, outStrides, inStrides)]
		}
	})
	return result
}
