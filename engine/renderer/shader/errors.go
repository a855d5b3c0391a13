package shader

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-live/engine/live"
)

var (
	// ErrMissingDeclaration is returned when a class or forwarded field names a type with
	// no registered declaration.
	ErrMissingDeclaration = errors.New("missing declaration")

	// ErrForwardingCycle is returned when forwarding fields lead back to a type that is
	// already being expanded.
	ErrForwardingCycle = errors.New("forwarding cycle")

	// ErrUnresolvedLiveRef is returned when a //@oxy:live path does not name a document value.
	ErrUnresolvedLiveRef = errors.New("unresolved live reference")

	// ErrMalformedDeclaration is returned for //@oxy: annotations that fail to parse.
	ErrMalformedDeclaration = errors.New("malformed declaration")

	// ErrNotAClass is returned when the analysed node is not a class node.
	ErrNotAClass = errors.New("node is not a class")
)

// CompileError is a recoverable failure to analyse one draw shader, anchored at the
// source location that caused it.
type CompileError struct {
	Span live.Span
	Err  error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Span, e.Err)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

func compileErr(span live.Span, err error) *CompileError {
	return &CompileError{Span: span, Err: err}
}
