package nn

import (
	"math"
	"math/rand"

	"github.com/born-ml/dualad/internal/backend/cpu"
	"github.com/born-ml/dualad/internal/tensor"
)

// Xavier (Glorot) initialization for weights.
//
// Values are drawn from U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out))).
// The caller owns rng, so a fixed seed gives reproducible models.
func Xavier(backend *cpu.CPUBackend, rng *rand.Rand, fanIn, fanOut int, shape tensor.Shape) *cpu.Tensor {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))

	data := make([]float64, shape.NumElements())
	for i := range data {
		data[i] = (rng.Float64()*2.0 - 1.0) * bound
	}
	return backend.MustFromSlice(data, shape)
}

// Zeros creates a tensor filled with zeros, for bias initialization.
func Zeros(backend *cpu.CPUBackend, shape tensor.Shape) *cpu.Tensor {
	return backend.MustFromSlice(make([]float64, shape.NumElements()), shape)
}
