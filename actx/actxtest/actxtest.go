// Package actxtest provides canned execution contexts and counting
// collaborators for tests: a compiler and a graph transform that tally their
// invocations, and a deprecation sink that records every signal.
package actxtest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/alexfikl/arraycontext/actx"
	"github.com/alexfikl/arraycontext/backend"
	"github.com/alexfikl/arraycontext/backend/hostvm"
	"github.com/alexfikl/arraycontext/device"
	"github.com/alexfikl/arraycontext/expr"
)

// CountingCompiler wraps a backend.Compiler and counts Compile invocations.
type CountingCompiler struct {
	Inner backend.Compiler
	calls atomic.Int64
}

// Compile implements backend.Compiler.
func (c *CountingCompiler) Compile(ctx context.Context, set *expr.NamedSet, entryPoint string) (backend.Program, error) {
	c.calls.Add(1)
	return c.Inner.Compile(ctx, set, entryPoint)
}

// Calls returns the number of Compile invocations so far.
func (c *CountingCompiler) Calls() int { return int(c.calls.Load()) }

// DeprecationRecorder collects deprecation signals.
type DeprecationRecorder struct {
	mu      sync.Mutex
	signals []DeprecationSignal
}

// DeprecationSignal is one recorded deprecation event.
type DeprecationSignal struct {
	LeafKey string
	Message string
}

// Record is the sink function; pass it as Options.OnDeprecation.
func (r *DeprecationRecorder) Record(leafKey, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, DeprecationSignal{LeafKey: leafKey, Message: message})
}

// Signals returns a copy of the recorded signals.
func (r *DeprecationRecorder) Signals() []DeprecationSignal {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]DeprecationSignal, len(r.signals))
	copy(out, r.signals)
	return out
}

// Harness bundles a ready-to-use host context with its counting
// collaborators.
type Harness struct {
	Context        *actx.Context
	Queue          *device.Queue
	Compiler       *CountingCompiler
	Deprecations   *DeprecationRecorder
	transformCalls atomic.Int64
}

// TransformCalls returns the number of graph-transform invocations so far.
func (h *Harness) TransformCalls() int { return int(h.transformCalls.Load()) }

// NewHarness builds a host-backed context whose transform and compile steps
// are instrumented. The transform is the identity rewrite.
func NewHarness() (*Harness, error) {
	h := &Harness{
		Queue:        device.NewQueue(nil),
		Compiler:     &CountingCompiler{Inner: hostvm.New()},
		Deprecations: &DeprecationRecorder{},
	}

	c, err := actx.New(actx.Options{
		Queue:    h.Queue,
		Compiler: h.Compiler,
		TransformGraph: func(_ context.Context, set *expr.NamedSet) (*expr.NamedSet, error) {
			h.transformCalls.Add(1)
			return set, nil
		},
		OnDeprecation: h.Deprecations.Record,
	})
	if err != nil {
		return nil, err
	}
	h.Context = c
	return h, nil
}
