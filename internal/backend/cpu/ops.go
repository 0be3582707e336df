package cpu

import (
	"math"

	"github.com/born-ml/dualad/internal/ad"
)

func (cpu *CPUBackend) unary(op string, x ad.DTensor, f func(float64) float64) ad.DTensor {
	return cpu.Wrap(cpu.mapRaw(cpu.raw(op, x), f))
}

func (cpu *CPUBackend) binary(op string, a, b ad.DTensor, f func(x, y float64) float64) ad.DTensor {
	return cpu.Wrap(cpu.binaryBroadcast(op, cpu.raw(op, a), cpu.raw(op, b), f))
}

// Neg implements ad.Operations.
func (cpu *CPUBackend) Neg(x ad.DTensor) ad.DTensor { return cpu.unary("Neg", x, neg) }

// Sin implements ad.Operations.
func (cpu *CPUBackend) Sin(x ad.DTensor) ad.DTensor { return cpu.unary("Sin", x, math.Sin) }

// Cos implements ad.Operations.
func (cpu *CPUBackend) Cos(x ad.DTensor) ad.DTensor { return cpu.unary("Cos", x, math.Cos) }

// Tan implements ad.Operations.
func (cpu *CPUBackend) Tan(x ad.DTensor) ad.DTensor { return cpu.unary("Tan", x, math.Tan) }

// Exp implements ad.Operations.
func (cpu *CPUBackend) Exp(x ad.DTensor) ad.DTensor { return cpu.unary("Exp", x, math.Exp) }

// Log implements ad.Operations. Non-positive inputs give NaN or -Inf.
func (cpu *CPUBackend) Log(x ad.DTensor) ad.DTensor { return cpu.unary("Log", x, math.Log) }

// Sqrt implements ad.Operations.
func (cpu *CPUBackend) Sqrt(x ad.DTensor) ad.DTensor { return cpu.unary("Sqrt", x, math.Sqrt) }

// Tanh implements ad.Operations.
func (cpu *CPUBackend) Tanh(x ad.DTensor) ad.DTensor { return cpu.unary("Tanh", x, math.Tanh) }

// Sigmoid implements ad.Operations.
func (cpu *CPUBackend) Sigmoid(x ad.DTensor) ad.DTensor { return cpu.unary("Sigmoid", x, sigmoid) }

// Relu implements ad.Operations.
func (cpu *CPUBackend) Relu(x ad.DTensor) ad.DTensor { return cpu.unary("Relu", x, relu) }

// Abs implements ad.Operations.
func (cpu *CPUBackend) Abs(x ad.DTensor) ad.DTensor { return cpu.unary("Abs", x, math.Abs) }

// Atan implements ad.Operations.
func (cpu *CPUBackend) Atan(x ad.DTensor) ad.DTensor { return cpu.unary("Atan", x, math.Atan) }

// Plus implements ad.Operations.
func (cpu *CPUBackend) Plus(a, b ad.DTensor) ad.DTensor { return cpu.binary("Plus", a, b, add) }

// Minus implements ad.Operations.
func (cpu *CPUBackend) Minus(a, b ad.DTensor) ad.DTensor { return cpu.binary("Minus", a, b, sub) }

// Times implements ad.Operations.
func (cpu *CPUBackend) Times(a, b ad.DTensor) ad.DTensor { return cpu.binary("Times", a, b, mul) }

// Div implements ad.Operations.
func (cpu *CPUBackend) Div(a, b ad.DTensor) ad.DTensor { return cpu.binary("Div", a, b, div) }

// PlusScalar implements ad.Operations.
func (cpu *CPUBackend) PlusScalar(x ad.DTensor, s float64) ad.DTensor {
	return cpu.unary("PlusScalar", x, func(v float64) float64 { return v + s })
}

// TimesScalar implements ad.Operations.
func (cpu *CPUBackend) TimesScalar(x ad.DTensor, s float64) ad.DTensor {
	return cpu.unary("TimesScalar", x, func(v float64) float64 { return v * s })
}

// PowScalar implements ad.Operations.
func (cpu *CPUBackend) PowScalar(x ad.DTensor, p float64) ad.DTensor {
	switch p {
	case 0:
		return cpu.unary("PowScalar", x, func(float64) float64 { return 1 })
	case 1:
		return cpu.unary("PowScalar", x, func(v float64) float64 { return v })
	case 2:
		return cpu.unary("PowScalar", x, func(v float64) float64 { return v * v })
	}
	return cpu.unary("PowScalar", x, func(v float64) float64 { return math.Pow(v, p) })
}

// Less implements ad.BaseOperations.
func (cpu *CPUBackend) Less(a, b ad.DTensor) ad.DTensor {
	return cpu.binary("Less", a, b, func(x, y float64) float64 { return boolToFloat(x < y) })
}

// Greater implements ad.BaseOperations.
func (cpu *CPUBackend) Greater(a, b ad.DTensor) ad.DTensor {
	return cpu.binary("Greater", a, b, func(x, y float64) float64 { return boolToFloat(x > y) })
}

// Equal implements ad.BaseOperations.
func (cpu *CPUBackend) Equal(a, b ad.DTensor) ad.DTensor {
	return cpu.binary("Equal", a, b, func(x, y float64) float64 { return boolToFloat(x == y) })
}
