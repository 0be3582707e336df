package cpu

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"

	"github.com/born-ml/dualad/internal/ad"
	"github.com/born-ml/dualad/internal/tensor"
)

func (cpu *CPUBackend) checkGrad(op string, grad *tensor.RawTensor, want tensor.Shape) {
	if !grad.Shape().Equal(want) {
		ad.ShapeMismatchf(op, []tensor.Shape{grad.Shape(), want}, "gradient shape differs from the forward output")
	}
}

// Conv2DInputBackward implements ad.NativeKernels: the gradient of Conv2D
// with respect to its input, for an output gradient grad [N, C_out, H_out, W_out].
//
// Per image, grad^T @ kernel gives the gradient of the im2col matrix, which
// col2im folds back onto the input (a transposed convolution).
func (cpu *CPUBackend) Conv2DInputBackward(x, kernel, grad ad.DTensor, stride, padding int) ad.DTensor {
	xr, kr, gr := cpu.raw("Conv2DInputBackward", x), cpu.raw("Conv2DInputBackward", kernel), cpu.raw("Conv2DInputBackward", grad)
	g := cpu.convGeometry("Conv2DInputBackward", xr.Shape(), kr.Shape(), stride, padding)
	cpu.checkGrad("Conv2DInputBackward", gr, g.outShape())

	inputGrad := tensor.Zeros(xr.Shape(), cpu.device)
	if g.empty() || g.colLen == 0 {
		return cpu.Wrap(inputGrad)
	}
	dx, k, dy := inputGrad.Mutable(), kr.Data(), gr.Data()
	kMat := blas64.General{Rows: g.COut, Cols: g.colWidth, Stride: g.colWidth, Data: k}
	imageSize := g.CIn * g.H * g.W

	cpu.forBatch(g.N, func(n int) {
		col := make([]float64, g.colLen*g.colWidth)
		blas64.Gemm(blas.Trans, blas.NoTrans, 1,
			blas64.General{Rows: g.COut, Cols: g.colLen, Stride: g.colLen, Data: dy[n*g.COut*g.colLen : (n+1)*g.COut*g.colLen]},
			kMat,
			0,
			blas64.General{Rows: g.colLen, Cols: g.colWidth, Stride: g.colWidth, Data: col})
		col2im(dx[n*imageSize:(n+1)*imageSize], col, g)
	})
	return cpu.Wrap(inputGrad)
}

// Conv2DKernelBackward implements ad.NativeKernels: the gradient of Conv2D
// with respect to its kernel, sum over images of grad_n @ im2col(x_n).
func (cpu *CPUBackend) Conv2DKernelBackward(x, kernel, grad ad.DTensor, stride, padding int) ad.DTensor {
	xr, kr, gr := cpu.raw("Conv2DKernelBackward", x), cpu.raw("Conv2DKernelBackward", kernel), cpu.raw("Conv2DKernelBackward", grad)
	g := cpu.convGeometry("Conv2DKernelBackward", xr.Shape(), kr.Shape(), stride, padding)
	cpu.checkGrad("Conv2DKernelBackward", gr, g.outShape())

	kernelGrad := tensor.Zeros(kr.Shape(), cpu.device)
	if g.empty() || g.colLen == 0 {
		return cpu.Wrap(kernelGrad)
	}
	in, dy := xr.Data(), gr.Data()
	dk := blas64.General{Rows: g.COut, Cols: g.colWidth, Stride: g.colWidth, Data: kernelGrad.Mutable()}
	imageSize := g.CIn * g.H * g.W
	col := make([]float64, g.colLen*g.colWidth)

	// Images accumulate into the same kernel gradient, so this loop stays sequential.
	for n := 0; n < g.N; n++ {
		im2col(col, in[n*imageSize:(n+1)*imageSize], g)
		blas64.Gemm(blas.NoTrans, blas.NoTrans, 1,
			blas64.General{Rows: g.COut, Cols: g.colLen, Stride: g.colLen, Data: dy[n*g.COut*g.colLen : (n+1)*g.COut*g.colLen]},
			blas64.General{Rows: g.colLen, Cols: g.colWidth, Stride: g.colWidth, Data: col},
			1,
			dk)
	}
	return cpu.Wrap(kernelGrad)
}
