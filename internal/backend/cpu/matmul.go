package cpu

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"

	"github.com/born-ml/dualad/internal/ad"
	"github.com/born-ml/dualad/internal/tensor"
)

// MatMul implements ad.Operations.
//
// Both operands need rank >= 2. Leading batch axes broadcast, so a
// [B, m, k] tensor multiplies a shared [k, p] matrix.
func (cpu *CPUBackend) MatMul(a, b ad.DTensor) ad.DTensor {
	return cpu.Wrap(cpu.matmulRaw(cpu.raw("MatMul", a), cpu.raw("MatMul", b)))
}

func (cpu *CPUBackend) matmulRaw(a, b *tensor.RawTensor) *tensor.RawTensor {
	as, bs := a.Shape(), b.Shape()
	if as.Rank() < 2 || bs.Rank() < 2 {
		ad.Unsupportedf("MatMul", cpu.Name(), "operands of rank %d and %d, need rank >= 2", as.Rank(), bs.Rank())
	}
	m, k := as[as.Rank()-2], as[as.Rank()-1]
	k2, p := bs[bs.Rank()-2], bs[bs.Rank()-1]
	if k != k2 {
		ad.ShapeMismatchf("MatMul", []tensor.Shape{as, bs}, "inner dimensions %d and %d differ", k, k2)
	}

	aBatch, bBatch := as.Take(as.Rank()-2), bs.Take(bs.Rank()-2)
	batch := broadcastShape("MatMul", aBatch, bBatch)
	outShape := batch.Concat(tensor.Shape{m, p})
	result := tensor.Zeros(outShape, cpu.device)
	if m == 0 || p == 0 || k == 0 {
		return result
	}

	nBatch := batch.NumElements()
	batchStrides := batch.ComputeStrides()
	aStrides := computeBroadcastStridesForShape(aBatch, batch)
	bStrides := computeBroadcastStridesForShape(bBatch, batch)
	aData, bData, cData := a.Data(), b.Data(), result.Mutable()

	cpu.forRange(nBatch, func(start, end int) {
		for i := start; i < end; i++ {
			aOff := computeFlatIndex(i, batchStrides, aStrides) * m * k
			bOff := computeFlatIndex(i, batchStrides, bStrides) * k * p
			cOff := i * m * p
			blas64.Gemm(blas.NoTrans, blas.NoTrans, 1,
				blas64.General{Rows: m, Cols: k, Stride: k, Data: aData[aOff : aOff+m*k]},
				blas64.General{Rows: k, Cols: p, Stride: p, Data: bData[bOff : bOff+k*p]},
				0,
				blas64.General{Rows: m, Cols: p, Stride: p, Data: cData[cOff : cOff+m*p]})
		}
	})
	return result
}

// Outer implements ad.Operations.
func (cpu *CPUBackend) Outer(a, b ad.DTensor) ad.DTensor {
	ar, br := cpu.raw("Outer", a), cpu.raw("Outer", b)
	result := tensor.Zeros(ar.Shape().Concat(br.Shape()), cpu.device)
	as, bs, dst := ar.Data(), br.Data(), result.Mutable()
	n := len(bs)
	cpu.forRange(len(as), func(start, end int) {
		for i := start; i < end; i++ {
			row := dst[i*n : (i+1)*n]
			for j, v := range bs {
				row[j] = as[i] * v
			}
		}
	})
	return cpu.Wrap(result)
}
