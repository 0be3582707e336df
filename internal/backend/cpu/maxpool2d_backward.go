package cpu

import (
	"github.com/born-ml/dualad/internal/ad"
	"github.com/born-ml/dualad/internal/tensor"
)

// MaxPool2DBackward implements ad.NativeKernels: every output gradient is
// routed to the input position that won its window. The winners are
// recomputed from x, so no state is kept between forward and backward.
func (cpu *CPUBackend) MaxPool2DBackward(x, grad ad.DTensor, size, stride int) ad.DTensor {
	xr, gr := cpu.raw("MaxPool2DBackward", x), cpu.raw("MaxPool2DBackward", grad)
	g := cpu.poolGeometry("MaxPool2DBackward", xr.Shape(), size, stride)
	cpu.checkGrad("MaxPool2DBackward", gr, g.outShape())

	inputGrad := tensor.Zeros(xr.Shape(), cpu.device)
	in, dy, dx := xr.Data(), gr.Data(), inputGrad.Mutable()
	// Planes own disjoint slices of dx.
	cpu.forBatch(g.N*g.C, func(plane int) {
		base := plane * g.HOut * g.WOut
		for i, idx := range maxIndices(in, plane, g) {
			dx[idx] += dy[base+i]
		}
	})
	return cpu.Wrap(inputGrad)
}
