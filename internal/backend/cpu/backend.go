// Package cpu implements the dense CPU representation of the engine.
//
// *Tensor is a plain value (it belongs to ad.NoDerivativeID) and
// *CPUBackend is its ad.Operations implementation. The backend also hosts
// the native convolution, pooling and batch-norm kernels with the gradient
// entry points reverse rules call.
package cpu

import (
	"fmt"

	"github.com/born-ml/dualad/internal/ad"
	"github.com/born-ml/dualad/internal/parallel"
	"github.com/born-ml/dualad/internal/tensor"
)

// Config controls the CPU backend.
type Config struct {
	Parallel parallel.Config
}

// DefaultConfig returns defaults tuned to the detected CPU.
func DefaultConfig() Config {
	cfg := parallel.DefaultConfig()
	// Wide vector units finish small loops before a goroutine is scheduled.
	if DetectFeatures().AVX512 {
		cfg.MinChunkSize *= 2
	}
	return Config{Parallel: cfg}
}

// CPUBackend implements ad.BaseOperations and ad.NativeKernels on CPU.
type CPUBackend struct {
	device tensor.Device
	cfg    Config
}

// New creates a new CPU backend.
func New() *CPUBackend {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a CPU backend with explicit configuration.
func NewWithConfig(cfg Config) *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
		cfg:    cfg,
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Config returns the backend configuration.
func (cpu *CPUBackend) Config() Config {
	return cpu.cfg
}

// Wrap adopts a raw tensor as a plain DTensor.
func (cpu *CPUBackend) Wrap(raw *tensor.RawTensor) *Tensor {
	return &Tensor{raw: raw, backend: cpu}
}

// FromSlice creates a plain tensor from a Go slice (copied).
func (cpu *CPUBackend) FromSlice(data []float64, shape tensor.Shape) (*Tensor, error) {
	raw, err := tensor.FromSlice(data, shape, cpu.device)
	if err != nil {
		return nil, fmt.Errorf("from slice: %w", err)
	}
	return cpu.Wrap(raw), nil
}

// MustFromSlice is FromSlice that panics on a length mismatch.
func (cpu *CPUBackend) MustFromSlice(data []float64, shape tensor.Shape) *Tensor {
	t, err := cpu.FromSlice(data, shape)
	if err != nil {
		panic(err)
	}
	return t
}

// Scalar creates a plain rank-0 tensor.
func (cpu *CPUBackend) Scalar(value float64) *Tensor {
	return cpu.Wrap(tensor.Scalar(value, cpu.device))
}

// Vector creates a plain rank-1 tensor.
func (cpu *CPUBackend) Vector(values ...float64) *Tensor {
	return cpu.MustFromSlice(values, tensor.Shape{len(values)})
}

// Zeros implements ad.BaseOperations.
func (cpu *CPUBackend) Zeros(shape tensor.Shape) ad.DTensor {
	cpu.checkShape("Zeros", shape)
	return cpu.Wrap(tensor.Zeros(shape, cpu.device))
}

// Full implements ad.BaseOperations.
func (cpu *CPUBackend) Full(shape tensor.Shape, value float64) ad.DTensor {
	cpu.checkShape("Full", shape)
	return cpu.Wrap(tensor.Full(shape, value, cpu.device))
}

// Identity implements ad.BaseOperations.
func (cpu *CPUBackend) Identity(shape tensor.Shape) ad.DTensor {
	cpu.checkShape("Identity", shape)
	return cpu.Wrap(tensor.Identity(shape, cpu.device))
}

func (cpu *CPUBackend) checkShape(op string, shape tensor.Shape) {
	if err := shape.Validate(); err != nil {
		ad.ShapeMismatchf(op, []tensor.Shape{shape}, "%v", err)
	}
}

// raw extracts the storage of a plain operand. Operands at any other
// identity never reach this backend through dispatch.
func (cpu *CPUBackend) raw(op string, x ad.DTensor) *tensor.RawTensor {
	t, ok := x.(*Tensor)
	if !ok {
		ad.Unsupportedf(op, cpu.Name(), "operand of kind %s (%v) is not a dense CPU tensor",
			x.Operations().Name(), x.DerivativeID())
	}
	return t.raw
}

var (
	_ ad.BaseOperations = (*CPUBackend)(nil)
	_ ad.NativeKernels  = (*CPUBackend)(nil)
)
