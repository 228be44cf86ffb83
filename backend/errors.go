package backend

import "fmt"

// CompileError reports a failure while generating code for an expression set.
// It is surfaced verbatim to the caller and never retried.
type CompileError struct {
	EntryPoint string
	Err        error
}

// Error implements error.
func (e *CompileError) Error() string {
	return fmt.Sprintf("backend: compiling %q: %v", e.EntryPoint, e.Err)
}

// Unwrap returns the underlying cause.
func (e *CompileError) Unwrap() error { return e.Err }

// ExecError reports a failure while executing a compiled program.
// It is surfaced verbatim to the caller and never retried.
type ExecError struct {
	EntryPoint string
	Err        error
}

// Error implements error.
func (e *ExecError) Error() string {
	return fmt.Sprintf("backend: executing %q: %v", e.EntryPoint, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ExecError) Unwrap() error { return e.Err }
