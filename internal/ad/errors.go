package ad

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/born-ml/dualad/internal/tensor"
)

// InvariantError reports a broken sequencing discipline: an operand or a
// pushback contribution at an identity that is not strictly below the
// identity being built, or an upstream shape assigned twice.
//
// It is never converted into a returned error; drivers re-panic it.
type InvariantError struct {
	Op  string
	Msg string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violation in %s: %s", e.Op, e.Msg)
}

// UnsupportedError reports a primitive that a representation, rank or
// derivative order cannot express.
type UnsupportedError struct {
	Op     string
	Kind   string
	Reason string
}

func (e *UnsupportedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("unsupported operation %s on %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("unsupported operation %s on %s: %s", e.Op, e.Kind, e.Reason)
}

// ShapeError reports operands whose shapes cannot be combined, or a
// derivative contribution whose shape differs from the accumulated one.
type ShapeError struct {
	Op     string
	Shapes []tensor.Shape
	Msg    string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("shape mismatch in %s %v: %s", e.Op, e.Shapes, e.Msg)
}

// LifetimeError reports access to a tape node's accumulation outside the
// window in which it is valid.
type LifetimeError struct {
	Msg string
}

func (e *LifetimeError) Error() string {
	return "tape lifetime misuse: " + e.Msg
}

// Invariantf panics with an InvariantError.
func Invariantf(op, format string, args ...any) {
	panic(errors.WithStack(&InvariantError{Op: op, Msg: fmt.Sprintf(format, args...)}))
}

// Unsupportedf panics with an UnsupportedError.
func Unsupportedf(op, kind, format string, args ...any) {
	panic(errors.WithStack(&UnsupportedError{Op: op, Kind: kind, Reason: fmt.Sprintf(format, args...)}))
}

// ShapeMismatchf panics with a ShapeError.
func ShapeMismatchf(op string, shapes []tensor.Shape, format string, args ...any) {
	panic(errors.WithStack(&ShapeError{Op: op, Shapes: shapes, Msg: fmt.Sprintf(format, args...)}))
}

// Lifetimef panics with a LifetimeError.
func Lifetimef(format string, args ...any) {
	panic(errors.WithStack(&LifetimeError{Msg: fmt.Sprintf(format, args...)}))
}

// IsInvariant reports whether err is or wraps an InvariantError.
func IsInvariant(err error) bool {
	var target *InvariantError
	return errors.As(err, &target)
}

// IsUnsupported reports whether err is or wraps an UnsupportedError.
func IsUnsupported(err error) bool {
	var target *UnsupportedError
	return errors.As(err, &target)
}

// IsShape reports whether err is or wraps a ShapeError.
func IsShape(err error) bool {
	var target *ShapeError
	return errors.As(err, &target)
}

// IsLifetime reports whether err is or wraps a LifetimeError.
func IsLifetime(err error) bool {
	var target *LifetimeError
	return errors.As(err, &target)
}

// Catch runs fn and converts engine panics into a returned error.
//
// Unsupported, shape and lifetime failures are returned. Invariant
// violations and foreign panics propagate unchanged.
func Catch(fn func()) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		e, ok := r.(error)
		if !ok || IsInvariant(e) {
			panic(r)
		}
		if IsUnsupported(e) || IsShape(e) || IsLifetime(e) {
			err = e
			return
		}
		panic(r)
	}()
	fn()
	return nil
}
