package cpu

import (
	"github.com/born-ml/dualad/internal/ad"
	"github.com/born-ml/dualad/internal/tensor"
)

// Tensor is an immutable dense value on the CPU. It carries no derivative.
type Tensor struct {
	raw     *tensor.RawTensor
	backend *CPUBackend
}

// Shape implements ad.DTensor.
func (t *Tensor) Shape() tensor.Shape { return t.raw.Shape() }

// DerivativeID implements ad.DTensor.
func (t *Tensor) DerivativeID() *ad.DerivativeID { return ad.NoDerivativeID }

// Primal implements ad.DTensor. A plain value is its own primal.
func (t *Tensor) Primal() ad.DTensor { return t }

// Operations implements ad.DTensor.
func (t *Tensor) Operations() ad.Operations { return t.backend }

// Raw returns the underlying storage.
func (t *Tensor) Raw() *tensor.RawTensor { return t.raw }

// Data returns the values in row-major order. Callers must not modify them.
func (t *Tensor) Data() []float64 { return t.raw.Data() }

// Item returns the value of a one-element tensor.
func (t *Tensor) Item() float64 { return t.raw.Item() }

// At returns the element at coords.
func (t *Tensor) At(coords ...int) float64 { return t.raw.At(coords...) }

func (t *Tensor) String() string { return t.raw.String() }

// AsDense returns the plain value of x as a dense CPU tensor, unwrapping
// any derivative layers. It reports false for other representations.
func AsDense(x ad.DTensor) (*Tensor, bool) {
	t, ok := ad.Base(x).(*Tensor)
	return t, ok
}
