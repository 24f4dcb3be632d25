package flowz

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Stream failure sentinels.
var (
	// ErrCanceled is the cause carried by failures produced when a stream or
	// task is canceled before completing.
	ErrCanceled = errors.New("canceled")

	// ErrNoElement is the cause carried by a reduction stream that finished
	// without its result ever arriving. Exposed for errors.Is checks.
	ErrNoElement = errors.New("no element")
)

// Causes for failures produced by the flat-map operators themselves.
var (
	errNilSubSource = errors.New("flat-map function returned nil source")
	errNilTask      = errors.New("flat-map function returned nil task")
)

// Graph validation errors. These indicate a structurally unusable graph and
// are combined with multierr when more than one problem is present.
var (
	ErrEmptyGraph     = errors.New("graph has no stages")
	ErrMissingSource  = errors.New("graph has no source stage")
	ErrMissingSink    = errors.New("graph has no terminal stage")
	ErrMisplacedStage = errors.New("source or terminal stage in intermediate position")
)

// Error provides context about a stream failure: which stage failed, the
// element being processed when it happened, and when. It wraps the underlying
// cause, so errors.Is and errors.As see through it.
//
// Stream failures travel downstream as failure signals and surface at the
// terminal: a Task fails with the *Error, a Subscriber receives it via
// OnError. Usage errors (protocol violations) never produce an *Error; they
// panic at the offending call instead.
type Error struct {
	Element   any
	Timestamp time.Time
	Err       error
	Stage     Name
}

// Error implements the error interface, providing a detailed error message.
func (e *Error) Error() string {
	if e.Element != nil {
		return fmt.Sprintf("stage %q failed on element %v: %v", e.Stage, e.Element, e.Err)
	}
	return fmt.Sprintf("stage %q failed: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying cause, supporting error wrapping patterns.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsCanceled reports whether the failure was caused by cancellation, either
// of the stream itself or of a context it was running under.
func (e *Error) IsCanceled() bool {
	return errors.Is(e.Err, ErrCanceled) || errors.Is(e.Err, context.Canceled)
}

// newStreamError wraps err with stage context unless it already is a stream
// error, so the original failing stage is preserved across boundaries.
func newStreamError(stage Name, element any, err error, now time.Time) *Error {
	var streamErr *Error
	if errors.As(err, &streamErr) {
		return streamErr
	}
	return &Error{
		Stage:     stage,
		Element:   element,
		Err:       err,
		Timestamp: now,
	}
}

// recoverToError converts a panic from a user-supplied function into an
// ordinary error so it can travel as a stream failure.
func recoverToError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", r)
}
