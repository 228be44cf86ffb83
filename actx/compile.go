package actx

import (
	"context"

	"github.com/zclconf/go-cty/cty"
)

// CompiledFunction is a whole user function prepared for repeated calls.
// A caching implementation would trace the function once per distinct
// argument structure and reuse the compiled trace; that wrapper is a
// separate subsystem. The implementation returned by Context.Compile calls
// the function directly and freezes its result.
type CompiledFunction interface {
	Call(ctx context.Context, args ...cty.Value) (cty.Value, error)
}

// Compile wraps f for repeated invocation.
func (c *Context) Compile(f func(args ...cty.Value) (cty.Value, error)) CompiledFunction {
	return &passthroughFunction{actx: c, f: f}
}

type passthroughFunction struct {
	actx *Context
	f    func(args ...cty.Value) (cty.Value, error)
}

// Call implements CompiledFunction.
func (p *passthroughFunction) Call(ctx context.Context, args ...cty.Value) (cty.Value, error) {
	out, err := p.f(args...)
	if err != nil {
		return cty.NilVal, err
	}
	return p.actx.Freeze(ctx, out)
}
