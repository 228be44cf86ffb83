// Package backend defines the contracts between the execution context and
// its code-generation collaborators: a Compiler turns a named expression set
// into a Program, and a Program executes on a device queue with bound
// arguments, blocking until the backend signals completion.
package backend

import (
	"context"

	"github.com/alexfikl/arraycontext/buffer"
	"github.com/alexfikl/arraycontext/device"
	"github.com/alexfikl/arraycontext/expr"
)

// Program is a compiled, executable artifact.
type Program interface {
	// EntryPoint returns the generated entry-point name the program was
	// compiled under.
	EntryPoint() string

	// BoundArguments returns the names of arguments pre-bound into the
	// program itself. A program produced for the freeze path must report
	// none: it has to be a pure function of the arguments supplied at call
	// time.
	BoundArguments() []string

	// Execute runs the program with the given arguments and returns its
	// named outputs. The call blocks until the backend has completed.
	Execute(ctx context.Context, q *device.Queue, args map[string]*buffer.Buffer) (map[string]*buffer.Buffer, error)
}

// Compiler generates an executable Program from a named expression set.
type Compiler interface {
	Compile(ctx context.Context, set *expr.NamedSet, entryPoint string) (Program, error)
}
