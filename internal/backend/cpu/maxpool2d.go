package cpu

import (
	"math"

	"github.com/born-ml/dualad/internal/ad"
	"github.com/born-ml/dualad/internal/tensor"
)

// poolGeometry holds the dimensions of one pooling call.
type poolGeometry struct {
	N, C, H, W   int
	HOut, WOut   int
	size, stride int
}

func (cpu *CPUBackend) poolGeometry(op string, xs tensor.Shape, size, stride int) poolGeometry {
	if xs.Rank() != 4 {
		ad.Unsupportedf(op, cpu.Name(), "expected 4D input [N,C,H,W], got %v", xs)
	}
	g := poolGeometry{N: xs[0], C: xs[1], H: xs[2], W: xs[3], size: size, stride: stride}
	if size <= 0 || stride <= 0 {
		ad.ShapeMismatchf(op, []tensor.Shape{xs}, "invalid window size %d or stride %d", size, stride)
	}
	if size > g.H || size > g.W {
		ad.ShapeMismatchf(op, []tensor.Shape{xs}, "window size %d too large for input %dx%d", size, g.H, g.W)
	}
	g.HOut = (g.H-size)/stride + 1
	g.WOut = (g.W-size)/stride + 1
	return g
}

func (g poolGeometry) outShape() tensor.Shape {
	return tensor.Shape{g.N, g.C, g.HOut, g.WOut}
}

// MaxPool2D implements ad.Operations.
//
// Input [N, C, H, W], output [N, C, out_h, out_w] with
// out = (in - size)/stride + 1.
//
// Example (2x2 pool, stride=2):
//
//	Input: [[1,2,3,4],    Output: [[6,8],
//	        [5,6,7,8],             [14,16]]
//	        [9,10,11,12],
//	        [13,14,15,16]]
func (cpu *CPUBackend) MaxPool2D(x ad.DTensor, size, stride int) ad.DTensor {
	xr := cpu.raw("MaxPool2D", x)
	g := cpu.poolGeometry("MaxPool2D", xr.Shape(), size, stride)

	output := tensor.Zeros(g.outShape(), cpu.device)
	in, out := xr.Data(), output.Mutable()
	cpu.forBatch(g.N*g.C, func(plane int) {
		indices := maxIndices(in, plane, g)
		base := plane * g.HOut * g.WOut
		for i, idx := range indices {
			out[base+i] = in[idx]
		}
	})
	return cpu.Wrap(output)
}

// maxIndices returns, for every window of one [H, W] plane, the flat input
// index of its maximum. Ties go to the first position in row-major order.
func maxIndices(in []float64, plane int, g poolGeometry) []int {
	indices := make([]int, g.HOut*g.WOut)
	planeOff := plane * g.H * g.W
	i := 0
	for outH := 0; outH < g.HOut; outH++ {
		for outW := 0; outW < g.WOut; outW++ {
			best := math.Inf(-1)
			bestIdx := -1
			for kh := 0; kh < g.size; kh++ {
				for kw := 0; kw < g.size; kw++ {
					idx := planeOff + (outH*g.stride+kh)*g.W + outW*g.stride + kw
					if v := in[idx]; v > best || bestIdx < 0 {
						best, bestIdx = v, idx
					}
				}
			}
			indices[i] = bestIdx
			i++
		}
	}
	return indices
}
