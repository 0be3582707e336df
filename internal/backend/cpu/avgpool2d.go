package cpu

import (
	"github.com/born-ml/dualad/internal/ad"
	"github.com/born-ml/dualad/internal/tensor"
)

// AvgPool2D implements ad.Operations: the mean over non-overlapping
// size x size windows (stride equals size).
func (cpu *CPUBackend) AvgPool2D(x ad.DTensor, size int) ad.DTensor {
	xr := cpu.raw("AvgPool2D", x)
	g := cpu.poolGeometry("AvgPool2D", xr.Shape(), size, size)

	output := tensor.Zeros(g.outShape(), cpu.device)
	in, out := xr.Data(), output.Mutable()
	scale := 1 / float64(size*size)
	cpu.forBatch(g.N*g.C, func(plane int) {
		inOff, outOff := plane*g.H*g.W, plane*g.HOut*g.WOut
		for outH := 0; outH < g.HOut; outH++ {
			for outW := 0; outW < g.WOut; outW++ {
				sum := 0.0
				for kh := 0; kh < size; kh++ {
					for kw := 0; kw < size; kw++ {
						sum += in[inOff+(outH*size+kh)*g.W+outW*size+kw]
					}
				}
				out[outOff+outH*g.WOut+outW] = sum * scale
			}
		}
	})
	return cpu.Wrap(output)
}

// AvgPool2DBackward implements ad.NativeKernels: each output gradient is
// spread evenly over its window.
func (cpu *CPUBackend) AvgPool2DBackward(x, grad ad.DTensor, size int) ad.DTensor {
	xr, gr := cpu.raw("AvgPool2DBackward", x), cpu.raw("AvgPool2DBackward", grad)
	g := cpu.poolGeometry("AvgPool2DBackward", xr.Shape(), size, size)
	cpu.checkGrad("AvgPool2DBackward", gr, g.outShape())

	inputGrad := tensor.Zeros(xr.Shape(), cpu.device)
	dy, dx := gr.Data(), inputGrad.Mutable()
	scale := 1 / float64(size*size)
	cpu.forBatch(g.N*g.C, func(plane int) {
		inOff, outOff := plane*g.H*g.W, plane*g.HOut*g.WOut
		for outH := 0; outH < g.HOut; outH++ {
			for outW := 0; outW < g.WOut; outW++ {
				v := dy[outOff+outH*g.WOut+outW] * scale
				for kh := 0; kh < size; kh++ {
					for kw := 0; kw < size; kw++ {
						dx[inOff+(outH*size+kh)*g.W+outW*size+kw] += v
					}
				}
			}
		}
	})
	return cpu.Wrap(inputGrad)
}
