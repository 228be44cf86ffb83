package actx

import (
	"fmt"
	"strings"
)

// UnsupportedLeafTypeError reports that a container leaf was of a type
// outside the recognized set. It is always recoverable by the caller and is
// reported immediately, never retried.
type UnsupportedLeafTypeError struct {
	// Op is the operation that rejected the leaf, e.g. "freeze".
	Op string
	// Got names the offending type.
	Got string
	// Accepted names the types the operation accepts.
	Accepted []string
}

// Error implements error.
func (e *UnsupportedLeafTypeError) Error() string {
	return fmt.Sprintf("actx: %s invoked with an unsupported array type: got %q, expected one of [%s]",
		e.Op, e.Got, strings.Join(e.Accepted, ", "))
}

// InternalConsistencyError reports a violated internal invariant: a cached
// program with pre-bound arguments, or colliding keys while merging results.
// It indicates a bug in canonicalization or caching. The operation aborts;
// callers must not proceed with partial state.
type InternalConsistencyError struct {
	Reason string
}

// Error implements error.
func (e *InternalConsistencyError) Error() string {
	return "actx: internal consistency fault: " + e.Reason
}
