package cpu

import (
	"math"

	"github.com/born-ml/dualad/internal/parallel"
	"github.com/born-ml/dualad/internal/tensor"
)

func (cpu *CPUBackend) forRange(n int, f func(start, end int)) {
	parallel.ForRange(n, f, cpu.cfg.Parallel)
}

// mapRaw applies f elementwise into a new tensor.
func (cpu *CPUBackend) mapRaw(x *tensor.RawTensor, f func(float64) float64) *tensor.RawTensor {
	result := tensor.Zeros(x.Shape(), cpu.device)
	src, dst := x.Data(), result.Mutable()
	cpu.forRange(len(dst), func(start, end int) {
		for i := start; i < end; i++ {
			dst[i] = f(src[i])
		}
	})
	return result
}

func sigmoid(v float64) float64 {
	// Split on sign so exp never overflows.
	if v >= 0 {
		return 1 / (1 + math.Exp(-v))
	}
	e := math.Exp(v)
	return e / (1 + e)
}

func relu(v float64) float64 {
	if v > 0 {
		return v
	}
	return 0
}

func add(a, b float64) float64 { return a + b }
func sub(a, b float64) float64 { return a - b }
func mul(a, b float64) float64 { return a * b }
func div(a, b float64) float64 { return a / b }

func neg(v float64) float64 { return -v }

func boolToFloat(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}
