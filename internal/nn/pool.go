package nn

import (
	"fmt"

	"github.com/born-ml/dualad/internal/ad"
	"github.com/born-ml/dualad/internal/tensor"
)

// MaxPool2D takes window maxima over [batch, channels, height, width].
//
// Output spatial size is (size_in - kernelSize) / stride + 1.
type MaxPool2D struct {
	stateless
	kernelSize int
	stride     int
}

// NewMaxPool2D creates a max pooling layer.
func NewMaxPool2D(kernelSize, stride int) *MaxPool2D {
	return &MaxPool2D{kernelSize: kernelSize, stride: stride}
}

// Forward implements Module.
func (m *MaxPool2D) Forward(input ad.DTensor) ad.DTensor {
	return ad.MaxPool2D(input, m.kernelSize, m.stride)
}

// WithParameters implements Module.
func (m *MaxPool2D) WithParameters(params []ad.DTensor) Module {
	checkParams("MaxPool2D", params, 0)
	return m
}

// String returns a string representation of the layer.
func (m *MaxPool2D) String() string {
	return fmt.Sprintf("MaxPool2D(kernel_size=%d, stride=%d)", m.kernelSize, m.stride)
}

// AvgPool2D averages non-overlapping windows.
type AvgPool2D struct {
	stateless
	kernelSize int
}

// NewAvgPool2D creates an average pooling layer.
func NewAvgPool2D(kernelSize int) *AvgPool2D {
	return &AvgPool2D{kernelSize: kernelSize}
}

// Forward implements Module.
func (a *AvgPool2D) Forward(input ad.DTensor) ad.DTensor {
	return ad.AvgPool2D(input, a.kernelSize)
}

// WithParameters implements Module.
func (a *AvgPool2D) WithParameters(params []ad.DTensor) Module {
	checkParams("AvgPool2D", params, 0)
	return a
}

// Flatten collapses every axis after the first: [N, ...] -> [N, rest].
type Flatten struct{ stateless }

// NewFlatten creates a Flatten layer.
func NewFlatten() *Flatten { return &Flatten{} }

// Forward implements Module.
func (f *Flatten) Forward(input ad.DTensor) ad.DTensor {
	shape := input.Shape()
	if shape.Rank() == 0 {
		ad.ShapeMismatchf("Flatten", []tensor.Shape{shape}, "need a batch axis")
	}
	return ad.Reshape(input, tensor.Shape{shape[0], shape.Drop(1).NumElements()})
}

// WithParameters implements Module.
func (f *Flatten) WithParameters(params []ad.DTensor) Module {
	checkParams("Flatten", params, 0)
	return f
}
