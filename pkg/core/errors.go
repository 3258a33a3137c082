package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidGeometry is returned when a primitive is built from degenerate parameters
	ErrInvalidGeometry = errors.New("invalid geometry")
	// ErrDegenerateVector signals normalization of a zero-length or non-finite vector
	ErrDegenerateVector = errors.New("degenerate vector")
	// ErrDegenerateRay signals a ray whose direction has zero length
	ErrDegenerateRay = errors.New("degenerate ray")
	// ErrSamplingExhausted signals a rejection sampler that never accepted a candidate
	ErrSamplingExhausted = errors.New("sampling exhausted")
	ErrInvalidCamera     = errors.New("invalid camera configuration")
	ErrInvalidMaterial   = errors.New("invalid material")
	ErrInvalidConfig     = errors.New("invalid configuration")
)

// InvariantError carries a precondition violation raised from the render hot path.
// It is thrown with panic and turned back into an error by RecoverInvariant.
type InvariantError struct {
	Err error
}

// NewInvariantError wraps err for use with panic
func NewInvariantError(err error) *InvariantError {
	return &InvariantError{Err: err}
}

func (e *InvariantError) Error() string {
	return "invariant violated: " + e.Err.Error()
}

func (e *InvariantError) Unwrap() error {
	return e.Err
}

// RecoverInvariant must be deferred. It converts a panicking *InvariantError into *errp
// and re-panics with anything else.
func RecoverInvariant(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	if inv, ok := r.(*InvariantError); ok {
		*errp = inv
		return
	}
	panic(r)
}

// Invariantf panics with an InvariantError wrapping sentinel
func Invariantf(sentinel error, format string, args ...interface{}) {
	panic(NewInvariantError(fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), sentinel)))
}
