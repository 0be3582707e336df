package cpu

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"

	"github.com/born-ml/dualad/internal/ad"
	"github.com/born-ml/dualad/internal/parallel"
	"github.com/born-ml/dualad/internal/tensor"
)

// convGeometry holds the dimensions of one Conv2D call.
type convGeometry struct {
	N, CIn, H, W     int
	COut, KH, KW     int
	HOut, WOut       int
	stride, padding  int
	colWidth, colLen int // im2col row width (CIn*KH*KW) and rows per image (HOut*WOut)
}

func (cpu *CPUBackend) convGeometry(op string, xs, ks tensor.Shape, stride, padding int) convGeometry {
	if xs.Rank() != 4 || ks.Rank() != 4 {
		ad.Unsupportedf(op, cpu.Name(), "input %v and kernel %v must both be 4D ([N,C,H,W] and [O,C,KH,KW])", xs, ks)
	}
	if stride < 1 || padding < 0 {
		ad.ShapeMismatchf(op, []tensor.Shape{xs, ks}, "invalid stride %d or padding %d", stride, padding)
	}
	g := convGeometry{
		N: xs[0], CIn: xs[1], H: xs[2], W: xs[3],
		COut: ks[0], KH: ks[2], KW: ks[3],
		stride: stride, padding: padding,
	}
	if ks[1] != g.CIn {
		ad.ShapeMismatchf(op, []tensor.Shape{xs, ks}, "input channels %d != kernel channels %d", g.CIn, ks[1])
	}
	g.HOut = (g.H+2*padding-g.KH)/stride + 1
	g.WOut = (g.W+2*padding-g.KW)/stride + 1
	if g.HOut <= 0 || g.WOut <= 0 {
		ad.ShapeMismatchf(op, []tensor.Shape{xs, ks}, "invalid output dimensions %dx%d (check stride/padding)", g.HOut, g.WOut)
	}
	g.colWidth = g.CIn * g.KH * g.KW
	g.colLen = g.HOut * g.WOut
	return g
}

// empty reports a call with no work, which BLAS rejects.
func (g convGeometry) empty() bool {
	return g.N == 0 || g.COut == 0 || g.colWidth == 0
}

func (g convGeometry) outShape() tensor.Shape {
	return tensor.Shape{g.N, g.COut, g.HOut, g.WOut}
}

// Conv2D implements ad.Operations using im2col.
//
// Input [N, C_in, H, W], kernel [C_out, C_in, K_h, K_w], output
// [N, C_out, H_out, W_out] with out = (in + 2*padding - k)/stride + 1.
//
// Per image the patches are unrolled into a [H_out*W_out, C_in*K_h*K_w]
// matrix, and kernel @ patches^T lands directly in the NCHW output plane.
func (cpu *CPUBackend) Conv2D(x, kernel ad.DTensor, stride, padding int) ad.DTensor {
	xr, kr := cpu.raw("Conv2D", x), cpu.raw("Conv2D", kernel)
	g := cpu.convGeometry("Conv2D", xr.Shape(), kr.Shape(), stride, padding)

	output := tensor.Zeros(g.outShape(), cpu.device)
	if g.empty() {
		return cpu.Wrap(output)
	}
	in, k, out := xr.Data(), kr.Data(), output.Mutable()
	kMat := blas64.General{Rows: g.COut, Cols: g.colWidth, Stride: g.colWidth, Data: k}

	cpu.forBatch(g.N, func(n int) {
		col := make([]float64, g.colLen*g.colWidth)
		im2col(col, in[n*g.CIn*g.H*g.W:(n+1)*g.CIn*g.H*g.W], g)
		plane := out[n*g.COut*g.colLen : (n+1)*g.COut*g.colLen]
		blas64.Gemm(blas.NoTrans, blas.Trans, 1,
			kMat,
			blas64.General{Rows: g.colLen, Cols: g.colWidth, Stride: g.colWidth, Data: col},
			0,
			blas64.General{Rows: g.COut, Cols: g.colLen, Stride: g.colLen, Data: plane})
	})
	return cpu.Wrap(output)
}

// im2col unrolls one image [C, H, W] into rows of patches.
func im2col(colBuf, image []float64, g convGeometry) {
	bufIdx := 0
	for outH := 0; outH < g.HOut; outH++ {
		for outW := 0; outW < g.WOut; outW++ {
			hStart := outH*g.stride - g.padding
			wStart := outW*g.stride - g.padding
			for c := 0; c < g.CIn; c++ {
				for kh := 0; kh < g.KH; kh++ {
					for kw := 0; kw < g.KW; kw++ {
						h, w := hStart+kh, wStart+kw
						if h >= 0 && h < g.H && w >= 0 && w < g.W {
							colBuf[bufIdx] = image[c*g.H*g.W+h*g.W+w]
						} else {
							colBuf[bufIdx] = 0
						}
						bufIdx++
					}
				}
			}
		}
	}
}

// col2im is the adjoint of im2col: patch rows are scattered back and
// overlapping positions accumulate.
func col2im(image, colBuf []float64, g convGeometry) {
	bufIdx := 0
	for outH := 0; outH < g.HOut; outH++ {
		for outW := 0; outW < g.WOut; outW++ {
			hStart := outH*g.stride - g.padding
			wStart := outW*g.stride - g.padding
			for c := 0; c < g.CIn; c++ {
				for kh := 0; kh < g.KH; kh++ {
					for kw := 0; kw < g.KW; kw++ {
						h, w := hStart+kh, wStart+kw
						if h >= 0 && h < g.H && w >= 0 && w < g.W {
							image[c*g.H*g.W+h*g.W+w] += colBuf[bufIdx]
						}
						bufIdx++
					}
				}
			}
		}
	}
}

// forBatch runs f for every image; images are independent.
func (cpu *CPUBackend) forBatch(n int, f func(i int)) {
	cfg := cpu.cfg.Parallel
	cfg.MinChunkSize = 1
	parallel.For(n, f, cfg)
}
