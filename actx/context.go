// Package actx implements the lazy-evaluation execution context: user code
// builds symbolic array expressions inside cty containers, and Freeze
// materializes them by compiling and running an optimized kernel, caching
// the compiled artifact under a content-addressed key so structurally
// identical expressions never compile twice. Thaw is the inverse: it
// re-admits frozen data into new symbolic expressions.
package actx

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/alexfikl/arraycontext/backend"
	"github.com/alexfikl/arraycontext/device"
	"github.com/alexfikl/arraycontext/expr"
	"github.com/alexfikl/arraycontext/internal/ctxlog"
)

// TransformFunc is the pluggable graph rewrite applied to a canonical
// expression set before compilation. Its output must be semantically
// equivalent to its input. It is invoked at most once per distinct canonical
// expression.
type TransformFunc func(ctx context.Context, set *expr.NamedSet) (*expr.NamedSet, error)

// ProgramHookFunc is the backend-specific post-compile hook applied to a
// freshly compiled program before it is cached.
type ProgramHookFunc func(ctx context.Context, p backend.Program) (backend.Program, error)

// DeprecationFunc receives one signal per leaf that used the legacy concrete
// representation. It is invoked synchronously.
type DeprecationFunc func(leafKey, message string)

// TraceFunc observes compilation stages. what identifies the expression
// being compiled (its entry-point name), stage the pass.
type TraceFunc func(what, stage string)

// Options configures a Context. Queue and Compiler are required.
type Options struct {
	Queue    *device.Queue
	Compiler backend.Compiler

	// TransformGraph rewrites the canonical expression before compilation.
	// Nil means identity.
	TransformGraph TransformFunc

	// TransformProgram post-processes freshly compiled programs. Nil means
	// identity.
	TransformProgram ProgramHookFunc

	// OnDeprecation receives legacy-representation signals. Nil logs a
	// warning through the context logger.
	OnDeprecation DeprecationFunc

	// CompileTrace, when set, observes transform and compile stages.
	CompileTrace TraceFunc

	// CacheBound, when positive, bounds both caches with an LRU of that
	// size. Zero keeps the default policy: entries are never evicted and
	// growth is bounded only by the number of distinct structural
	// expressions seen.
	CacheBound int

	// Logger is attached to every operation's context. Nil uses the
	// logger already carried by the call's context.
	Logger *slog.Logger
}

// transformEntry is one transform-cache slot: the rewritten expression set
// and the entry-point name derived for it.
type transformEntry struct {
	set        *expr.NamedSet
	entryPoint string
}

// CacheStats is a snapshot of cache effectiveness counters.
type CacheStats struct {
	TransformHits   int
	TransformMisses int
	ProgramHits     int
	ProgramMisses   int
}

// Context owns the freeze/thaw state machine and its two chained caches.
// A Context is safe for concurrent use: the check-else-populate section runs
// under an internal lock, so a canonical expression is transformed and
// compiled at most once even under concurrent Freeze calls. Program
// execution happens outside the lock.
type Context struct {
	id   string
	opts Options

	mu             sync.Mutex
	transformCache cacheMap[transformEntry]
	programCache   cacheMap[backend.Program]
	stats          CacheStats
}

// New creates an execution context.
func New(opts Options) (*Context, error) {
	if opts.Queue == nil {
		return nil, fmt.Errorf("actx: Options.Queue is required")
	}
	if opts.Compiler == nil {
		return nil, fmt.Errorf("actx: Options.Compiler is required")
	}

	c := &Context{id: uuid.NewString(), opts: opts}
	var err error
	if c.transformCache, err = newCacheMap[transformEntry](opts.CacheBound); err != nil {
		return nil, err
	}
	if c.programCache, err = newCacheMap[backend.Program](opts.CacheBound); err != nil {
		return nil, err
	}
	return c, nil
}

// Clone returns a fresh context sharing the queue, compiler and hooks but
// with empty caches.
func (c *Context) Clone() (*Context, error) {
	return New(c.opts)
}

// Queue returns the device queue this context executes on.
func (c *Context) Queue() *device.Queue { return c.opts.Queue }

// Stats returns a snapshot of the cache counters.
func (c *Context) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// logger resolves the logger for an operation: the configured one, falling
// back to whatever the call's context carries.
func (c *Context) logger(ctx context.Context) *slog.Logger {
	if c.opts.Logger != nil {
		return c.opts.Logger.With("contextID", c.id)
	}
	return ctxlog.FromContext(ctx).With("contextID", c.id)
}

// deprecate routes one legacy-leaf signal to the configured sink.
func (c *Context) deprecate(ctx context.Context, leafKey, message string) {
	if c.opts.OnDeprecation != nil {
		c.opts.OnDeprecation(leafKey, message)
		return
	}
	c.logger(ctx).Warn("Deprecated array representation.", "leafKey", leafKey, "message", message)
}

// trace reports a compilation stage to the configured trace callback.
func (c *Context) trace(what, stage string) {
	if c.opts.CompileTrace != nil {
		c.opts.CompileTrace(what, stage)
	}
}
