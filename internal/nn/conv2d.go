package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/dualad/internal/ad"
	"github.com/born-ml/dualad/internal/backend/cpu"
	"github.com/born-ml/dualad/internal/tensor"
)

// Conv2D is a 2D convolutional layer.
//
// Performs convolution: output = Conv2D(input, weight) + bias
//
// Input shape:  [batch, in_channels, height, width]
// Weight shape: [out_channels, in_channels, kernel_h, kernel_w]
// Bias shape:   [out_channels]
// Output shape: [batch, out_channels, out_h, out_w]
//
// Where:
//
//	out_h = (height + 2*padding - kernel_h) / stride + 1
//	out_w = (width + 2*padding - kernel_w) / stride + 1
type Conv2D struct {
	inChannels  int
	outChannels int
	kernelSize  [2]int
	stride      int
	padding     int

	weight ad.DTensor
	bias   ad.DTensor
}

// NewConv2D creates a 2D convolutional layer with Xavier weights and zero biases.
func NewConv2D(backend *cpu.CPUBackend, rng *rand.Rand, inChannels, outChannels, kernelH, kernelW, stride, padding int) *Conv2D {
	fanIn := inChannels * kernelH * kernelW
	fanOut := outChannels * kernelH * kernelW
	return &Conv2D{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  [2]int{kernelH, kernelW},
		stride:      stride,
		padding:     padding,
		weight:      Xavier(backend, rng, fanIn, fanOut, tensor.Shape{outChannels, inChannels, kernelH, kernelW}),
		bias:        Zeros(backend, tensor.Shape{outChannels}),
	}
}

// Forward convolves input [N, C_in, H, W] and adds the per-channel bias.
func (c *Conv2D) Forward(input ad.DTensor) ad.DTensor {
	shape := input.Shape()
	if shape.Rank() != 4 || shape[1] != c.inChannels {
		ad.ShapeMismatchf("Conv2D", []tensor.Shape{shape}, "expected [batch, %d, height, width]", c.inChannels)
	}
	out := ad.Conv2D(input, c.weight, c.stride, c.padding)
	return ad.Plus(out, ad.Reshape(c.bias, tensor.Shape{1, c.outChannels, 1, 1}))
}

// Parameters returns [weight, bias].
func (c *Conv2D) Parameters() []ad.DTensor {
	return []ad.DTensor{c.weight, c.bias}
}

// WithParameters implements Module.
func (c *Conv2D) WithParameters(params []ad.DTensor) Module {
	checkParams("Conv2D", params, 2)
	out := *c
	out.weight, out.bias = params[0], params[1]
	return &out
}

// String returns a string representation of the layer.
func (c *Conv2D) String() string {
	return fmt.Sprintf("Conv2D(in_channels=%d, out_channels=%d, kernel_size=(%d, %d), stride=%d, padding=%d)",
		c.inChannels, c.outChannels,
		c.kernelSize[0], c.kernelSize[1],
		c.stride, c.padding)
}

// ComputeOutputSize computes output spatial dimensions for given input size.
//
// Returns: [out_height, out_width].
func (c *Conv2D) ComputeOutputSize(inputH, inputW int) [2]int {
	outH := (inputH+2*c.padding-c.kernelSize[0])/c.stride + 1
	outW := (inputW+2*c.padding-c.kernelSize[1])/c.stride + 1
	return [2]int{outH, outW}
}
