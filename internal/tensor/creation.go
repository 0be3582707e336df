package tensor

import "fmt"

// Zeros creates a zero-filled tensor.
func Zeros(shape Shape, device Device) *RawTensor {
	raw, err := NewRaw(shape, device)
	if err != nil {
		panic(err) // callers validate shapes first
	}
	return raw
}

// Full creates a tensor filled with a specific value.
//
// Example:
//
//	t := tensor.Full(Shape{3, 3}, 3.14, tensor.CPU)
func Full(shape Shape, value float64, device Device) *RawTensor {
	raw := Zeros(shape, device)
	data := raw.Mutable()
	for i := range data {
		data[i] = value
	}
	return raw
}

// Scalar creates a rank-0 tensor.
func Scalar(value float64, device Device) *RawTensor {
	return Full(Shape{}, value, device)
}

// FromSlice creates a tensor from a Go slice.
// The slice is copied into the tensor's memory.
func FromSlice(data []float64, shape Shape, device Device) (*RawTensor, error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}
	raw, err := NewRaw(shape, device)
	if err != nil {
		return nil, err
	}
	copy(raw.Mutable(), data)
	return raw, nil
}

// Identity creates the tensor of shape shape+shape that is 1 where the
// first half of the coordinates equals the second half and 0 elsewhere.
// For a scalar shape it is the scalar 1.
//
// Seeding a derivative with Identity yields the full Jacobian.
func Identity(shape Shape, device Device) *RawTensor {
	n := shape.NumElements()
	raw := Zeros(shape.Concat(shape), device)
	data := raw.Mutable()
	for i := 0; i < n; i++ {
		data[i*n+i] = 1
	}
	return raw
}

// Arange creates a rank-1 tensor [start, start+1, ..., start+n-1].
func Arange(start float64, n int, device Device) *RawTensor {
	raw := Zeros(Shape{n}, device)
	data := raw.Mutable()
	for i := range data {
		data[i] = start + float64(i)
	}
	return raw
}
