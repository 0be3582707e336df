package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/dualad/internal/ad"
	"github.com/born-ml/dualad/internal/backend/cpu"
	"github.com/born-ml/dualad/internal/tensor"
)

// Linear implements a fully connected (dense) layer.
//
// Performs the transformation: y = x @ W.T + b
// where:
//   - x is the input tensor with shape [batch_size, in_features]
//   - W is the weight matrix with shape [out_features, in_features]
//   - b is the bias vector with shape [out_features]
//   - y is the output tensor with shape [batch_size, out_features]
type Linear struct {
	inFeatures  int
	outFeatures int
	weight      ad.DTensor
	bias        ad.DTensor
}

// NewLinear creates a Linear layer with Xavier weights and zero biases.
func NewLinear(backend *cpu.CPUBackend, rng *rand.Rand, inFeatures, outFeatures int) *Linear {
	return &Linear{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      Xavier(backend, rng, inFeatures, outFeatures, tensor.Shape{outFeatures, inFeatures}),
		bias:        Zeros(backend, tensor.Shape{outFeatures}),
	}
}

// Forward computes y = x @ W.T + b.
func (l *Linear) Forward(input ad.DTensor) ad.DTensor {
	shape := input.Shape()
	if shape.Rank() != 2 || shape[1] != l.inFeatures {
		ad.ShapeMismatchf("Linear", []tensor.Shape{shape}, "expected [batch, %d]", l.inFeatures)
	}
	return ad.Plus(ad.MatMul(input, ad.Transpose(l.weight)), l.bias)
}

// Parameters returns [weight, bias].
func (l *Linear) Parameters() []ad.DTensor {
	return []ad.DTensor{l.weight, l.bias}
}

// WithParameters implements Module.
func (l *Linear) WithParameters(params []ad.DTensor) Module {
	checkParams("Linear", params, 2)
	out := *l
	out.weight, out.bias = params[0], params[1]
	return &out
}

// Weight returns the weight tensor [out_features, in_features].
func (l *Linear) Weight() ad.DTensor { return l.weight }

// Bias returns the bias tensor [out_features].
func (l *Linear) Bias() ad.DTensor { return l.bias }

// String returns a human-readable representation.
func (l *Linear) String() string {
	return fmt.Sprintf("Linear(in_features=%d, out_features=%d)", l.inFeatures, l.outFeatures)
}
