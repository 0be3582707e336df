package tensor

import (
	"fmt"
)

// Device represents the compute device for tensor operations.
type Device int

// Supported compute devices.
const (
	CPU Device = iota
	CUDA
	WebGPU
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	case CUDA:
		return "CUDA"
	case WebGPU:
		return "WebGPU"
	default:
		return "Unknown"
	}
}

// RawTensor is the low-level dense storage: float64 values in row-major order.
//
// A RawTensor is immutable once handed out. Kernels allocate a fresh result
// with NewRaw, fill it through Mutable, and never write to their inputs, so
// values may be shared freely between goroutines and between
// differentiation passes.
type RawTensor struct {
	data   []float64
	shape  Shape
	stride []int
	device Device
}

// NewRaw creates a new zero-filled RawTensor with the given shape.
func NewRaw(shape Shape, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}

	return &RawTensor{
		data:   make([]float64, shape.NumElements()),
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		device: device,
	}, nil
}

// Wrap adopts data as the storage of a new RawTensor without copying.
// The caller must not modify data afterwards.
func Wrap(data []float64, shape Shape, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}
	return &RawTensor{
		data:   data,
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		device: device,
	}, nil
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// Strides returns the tensor's memory strides.
func (r *RawTensor) Strides() []int {
	return r.stride
}

// Device returns the tensor's compute device.
func (r *RawTensor) Device() Device {
	return r.device
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return len(r.data)
}

// Data returns the values for reading. Callers must not modify the slice.
func (r *RawTensor) Data() []float64 {
	return r.data
}

// Mutable returns the values for writing.
// Only the kernel that allocated the tensor may call it, before returning it.
func (r *RawTensor) Mutable() []float64 {
	return r.data
}

// At returns the element at the given coordinates.
func (r *RawTensor) At(coords ...int) float64 {
	if len(coords) != len(r.shape) {
		panic(fmt.Sprintf("At: got %d coordinates for rank %d", len(coords), len(r.shape)))
	}
	idx := 0
	for i, c := range coords {
		if c < 0 || c >= r.shape[i] {
			panic(fmt.Sprintf("At: coordinate %d out of range for dimension %d of shape %v", c, i, r.shape))
		}
		idx += c * r.stride[i]
	}
	return r.data[idx]
}

// Item returns the single value of a one-element tensor.
func (r *RawTensor) Item() float64 {
	if len(r.data) != 1 {
		panic(fmt.Sprintf("Item: tensor of shape %v has %d elements", r.shape, len(r.data)))
	}
	return r.data[0]
}

// WithShape returns a tensor sharing the same storage under a new shape.
// Sharing is safe because storage is never written after construction.
func (r *RawTensor) WithShape(shape Shape) (*RawTensor, error) {
	if shape.NumElements() != len(r.data) {
		return nil, fmt.Errorf("incompatible shapes: %v -> %v (different number of elements)", r.shape, shape)
	}
	return &RawTensor{
		data:   r.data,
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		device: r.device,
	}, nil
}

// String formats small tensors with their values.
func (r *RawTensor) String() string {
	if len(r.data) <= 16 {
		return fmt.Sprintf("RawTensor%v%v", r.shape, r.data)
	}
	return fmt.Sprintf("RawTensor%v(%d elements)", r.shape, len(r.data))
}
