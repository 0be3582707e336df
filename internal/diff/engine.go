// Package diff provides the derivative drivers.
//
// An Engine owns the Sequencer that orders derivative identities. Each
// driver call mints a fresh identity, runs the user function on a wrapped
// input, extracts value and derivative, and finishes the identity so that
// values captured from the pass become constants afterwards.
//
// Drivers nest freely: a function passed to one driver may itself call any
// driver of the same Engine, which yields higher-order and mixed-mode
// derivatives.
package diff

import (
	"log/slog"

	"github.com/born-ml/dualad/internal/ad"
	"github.com/born-ml/dualad/internal/ad/forward"
	"github.com/born-ml/dualad/internal/ad/reverse"
)

// Func is a differentiable function of one tensor.
type Func func(x ad.DTensor) ad.DTensor

// Engine runs differentiation passes. It is safe for concurrent use.
type Engine struct {
	seq    *ad.Sequencer
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for pass tracing (Debug level).
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithSequencer shares a sequencer between engines. Values from engines
// with different sequencers must never meet in one computation.
func WithSequencer(seq *ad.Sequencer) Option {
	return func(e *Engine) {
		if seq != nil {
			e.seq = seq
		}
	}
}

// New creates an Engine with its own sequencer and a silent logger.
func New(opts ...Option) *Engine {
	e := &Engine{
		seq:    ad.NewSequencer(),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Sequencer returns the sequencer minting this engine's identities.
func (e *Engine) Sequencer() *ad.Sequencer {
	return e.seq
}

// ValueAndReverseDerivative evaluates f at x and its derivative by one
// reverse sweep. The derivative has shape x.shape + f(x).shape.
func (e *Engine) ValueAndReverseDerivative(f Func, x ad.DTensor) (value, derivative ad.DTensor, err error) {
	err = ad.Catch(func() {
		value, derivative = e.reverse(f, x)
	})
	return value, derivative, err
}

// ReverseDerivative is ValueAndReverseDerivative without the value.
func (e *Engine) ReverseDerivative(f Func, x ad.DTensor) (ad.DTensor, error) {
	_, d, err := e.ValueAndReverseDerivative(f, x)
	return d, err
}

// ValueAndForwardDerivative evaluates f at x and its derivative by one
// forward pass seeded with the identity. The derivative has shape
// f(x).shape + x.shape.
func (e *Engine) ValueAndForwardDerivative(f Func, x ad.DTensor) (value, derivative ad.DTensor, err error) {
	err = ad.Catch(func() {
		value, derivative = e.forward(f, x)
	})
	return value, derivative, err
}

// ForwardDerivative is ValueAndForwardDerivative without the value.
func (e *Engine) ForwardDerivative(f Func, x ad.DTensor) (ad.DTensor, error) {
	_, d, err := e.ValueAndForwardDerivative(f, x)
	return d, err
}

// Must returns v or panics with err. It suits nested derivative calls
// inside differentiated functions, where the outer driver reports the error.
func Must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func (e *Engine) reverse(f Func, x ad.DTensor) (value, derivative ad.DTensor) {
	id := e.seq.NewReverseID()
	tape := reverse.NewTape(id)
	defer func() {
		id.Finish()
		tape.Discard()
	}()
	e.logger.Debug("pass begin", "mode", id.Mode(), "seq", id.Sequence(), "input", x.Shape())

	input := tape.Variable(x)
	out := ad.Live(f(input))
	id.SetUpstreamShape(out.Shape())
	if out.DerivativeID() == id {
		tape.Seed(out, ad.BaseOps(out).Identity(out.Shape()))
	}
	tape.Backpropagate()
	e.logger.Debug("pass drained", "mode", id.Mode(), "seq", id.Sequence(), "nodes", tape.Len(), "output", out.Shape())

	return ad.PrimalAt(out, id), input.Gradient()
}

func (e *Engine) forward(f Func, x ad.DTensor) (value, derivative ad.DTensor) {
	id := e.seq.NewForwardID(x.Shape())
	defer id.Finish()
	e.logger.Debug("pass begin", "mode", id.Mode(), "seq", id.Sequence(), "input", x.Shape())

	input := forward.New(x, ad.BaseOps(x).Identity(x.Shape()), id)
	out := ad.Live(f(input))
	e.logger.Debug("pass done", "mode", id.Mode(), "seq", id.Sequence(), "output", out.Shape())

	return ad.PrimalAt(out, id), forward.TangentAt(out, id)
}
