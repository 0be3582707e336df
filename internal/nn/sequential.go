package nn

import (
	"fmt"
	"strings"

	"github.com/born-ml/dualad/internal/ad"
)

// Sequential is a container module that chains multiple modules together.
//
// Each module's output becomes the next module's input. Sequential is an
// ad.Differentiable aggregate over the parameters of its modules, in module
// order.
type Sequential struct {
	modules []Module
}

var (
	_ Module                         = (*Sequential)(nil)
	_ ad.Differentiable[*Sequential] = (*Sequential)(nil)
)

// NewSequential creates a new Sequential container.
func NewSequential(modules ...Module) *Sequential {
	return &Sequential{modules: modules}
}

// Forward applies all modules in sequence.
func (s *Sequential) Forward(input ad.DTensor) ad.DTensor {
	output := input
	for _, module := range s.modules {
		output = module.Forward(output)
	}
	return output
}

// Parameters returns the parameters of every module, in order.
func (s *Sequential) Parameters() []ad.DTensor {
	var params []ad.DTensor
	for _, module := range s.modules {
		params = append(params, module.Parameters()...)
	}
	return params
}

// WithParameters implements Module.
func (s *Sequential) WithParameters(params []ad.DTensor) Module {
	return s.Rebuild(params)
}

// Tensors implements ad.Differentiable.
func (s *Sequential) Tensors() []ad.DTensor {
	return s.Parameters()
}

// Rebuild implements ad.Differentiable.
func (s *Sequential) Rebuild(tensors []ad.DTensor) *Sequential {
	modules := make([]Module, len(s.modules))
	offset := 0
	for i, module := range s.modules {
		n := len(module.Parameters())
		if offset+n > len(tensors) {
			ad.ShapeMismatchf("Sequential", nil, "want %d parameters, got %d", len(s.Parameters()), len(tensors))
		}
		modules[i] = module.WithParameters(tensors[offset : offset+n])
		offset += n
	}
	checkParams("Sequential", tensors, offset)
	return &Sequential{modules: modules}
}

// Modules returns the contained modules.
func (s *Sequential) Modules() []Module {
	return s.modules
}

// Len returns the number of modules.
func (s *Sequential) Len() int {
	return len(s.modules)
}

// String returns a string representation of the container.
func (s *Sequential) String() string {
	var b strings.Builder
	b.WriteString("Sequential(\n")
	for i, module := range s.modules {
		fmt.Fprintf(&b, "  (%d): %v\n", i, describe(module))
	}
	b.WriteString(")")
	return b.String()
}

func describe(m Module) string {
	if s, ok := m.(fmt.Stringer); ok {
		return s.String()
	}
	return strings.TrimPrefix(fmt.Sprintf("%T", m), "*nn.")
}
