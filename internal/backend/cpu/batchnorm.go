package cpu

import (
	"math"

	"github.com/born-ml/dualad/internal/ad"
	"github.com/born-ml/dualad/internal/tensor"
)

// bnGeometry views x [N, C, ...] as N blocks of C channels of `spatial` values.
type bnGeometry struct {
	N, C, spatial int
}

func (g bnGeometry) count() int { return g.N * g.spatial }

func (cpu *CPUBackend) bnGeometry(op string, xs, scale, bias tensor.Shape) bnGeometry {
	if xs.Rank() < 2 {
		ad.Unsupportedf(op, cpu.Name(), "expected input [N, C, ...], got %v", xs)
	}
	g := bnGeometry{N: xs[0], C: xs[1], spatial: xs.Drop(2).NumElements()}
	want := tensor.Shape{g.C}
	if !scale.Equal(want) || (bias != nil && !bias.Equal(want)) {
		ad.ShapeMismatchf(op, []tensor.Shape{xs, scale, bias}, "scale and bias must have shape %v", want)
	}
	if g.count() == 0 {
		ad.ShapeMismatchf(op, []tensor.Shape{xs}, "batch statistics of an empty batch")
	}
	return g
}

// each visits every element of channel c.
func (g bnGeometry) each(c int, f func(i int)) {
	for n := 0; n < g.N; n++ {
		base := (n*g.C + c) * g.spatial
		for s := 0; s < g.spatial; s++ {
			f(base + s)
		}
	}
}

// BatchNorm implements ad.Operations: per channel of x [N, C, ...]
//
//	y = scale * (x - mean) / sqrt(var + eps) + bias
//
// with the biased batch variance. The batch mean and variance are returned
// as plain [C] tensors.
func (cpu *CPUBackend) BatchNorm(x, scale, bias ad.DTensor, eps float64) (ad.DTensor, ad.BatchNormStats) {
	xr := cpu.raw("BatchNorm", x)
	sr, br := cpu.raw("BatchNorm", scale), cpu.raw("BatchNorm", bias)
	g := cpu.bnGeometry("BatchNorm", xr.Shape(), sr.Shape(), br.Shape())

	mean, variance := cpu.batchStats(xr, g)
	output := tensor.Zeros(xr.Shape(), cpu.device)
	in, out := xr.Data(), output.Mutable()
	ms, vs, gamma, beta := mean.Data(), variance.Data(), sr.Data(), br.Data()
	cpu.forBatch(g.C, func(c int) {
		invStd := 1 / math.Sqrt(vs[c]+eps)
		g.each(c, func(i int) {
			out[i] = gamma[c]*(in[i]-ms[c])*invStd + beta[c]
		})
	})
	return cpu.Wrap(output), ad.BatchNormStats{Mean: cpu.Wrap(mean), Variance: cpu.Wrap(variance)}
}

func (cpu *CPUBackend) batchStats(xr *tensor.RawTensor, g bnGeometry) (mean, variance *tensor.RawTensor) {
	mean = tensor.Zeros(tensor.Shape{g.C}, cpu.device)
	variance = tensor.Zeros(tensor.Shape{g.C}, cpu.device)
	in, ms, vs := xr.Data(), mean.Mutable(), variance.Mutable()
	m := float64(g.count())
	cpu.forBatch(g.C, func(c int) {
		sum := 0.0
		g.each(c, func(i int) { sum += in[i] })
		mu := sum / m
		sq := 0.0
		g.each(c, func(i int) {
			d := in[i] - mu
			sq += d * d
		})
		ms[c], vs[c] = mu, sq/m
	})
	return mean, variance
}

// BatchNormBackward implements ad.NativeKernels using the closed form
//
//	dx = scale * invStd / M * (M*dy - sum(dy) - xhat*sum(dy*xhat))
//
// where M is the number of values per channel.
func (cpu *CPUBackend) BatchNormBackward(x, scale, grad ad.DTensor, stats ad.BatchNormStats, eps float64) (dx, dscale, dbias ad.DTensor) {
	xr, sr, gr := cpu.raw("BatchNormBackward", x), cpu.raw("BatchNormBackward", scale), cpu.raw("BatchNormBackward", grad)
	mr, vr := cpu.raw("BatchNormBackward", stats.Mean), cpu.raw("BatchNormBackward", stats.Variance)
	g := cpu.bnGeometry("BatchNormBackward", xr.Shape(), sr.Shape(), nil)
	cpu.checkGrad("BatchNormBackward", gr, xr.Shape())

	inputGrad := tensor.Zeros(xr.Shape(), cpu.device)
	scaleGrad := tensor.Zeros(tensor.Shape{g.C}, cpu.device)
	biasGrad := tensor.Zeros(tensor.Shape{g.C}, cpu.device)
	in, dy, gamma := xr.Data(), gr.Data(), sr.Data()
	ms, vs := mr.Data(), vr.Data()
	dxs, dgs, dbs := inputGrad.Mutable(), scaleGrad.Mutable(), biasGrad.Mutable()
	m := float64(g.count())

	cpu.forBatch(g.C, func(c int) {
		invStd := 1 / math.Sqrt(vs[c]+eps)
		sumDy, sumDyXhat := 0.0, 0.0
		g.each(c, func(i int) {
			xhat := (in[i] - ms[c]) * invStd
			sumDy += dy[i]
			sumDyXhat += dy[i] * xhat
		})
		dbs[c], dgs[c] = sumDy, sumDyXhat
		k := gamma[c] * invStd / m
		g.each(c, func(i int) {
			xhat := (in[i] - ms[c]) * invStd
			dxs[i] = k * (m*dy[i] - sumDy - xhat*sumDyXhat)
		})
	})
	return cpu.Wrap(inputGrad), cpu.Wrap(scaleGrad), cpu.Wrap(biasGrad)
}
