package actx

import (
	"context"

	"github.com/zclconf/go-cty/cty"

	"github.com/alexfikl/arraycontext/container"
	"github.com/alexfikl/arraycontext/expr"
)

// Thaw re-admits frozen data into the symbolic world: every concrete leaf is
// attached to the context's queue and wrapped in a literal-data expression
// node carrying the buffer's tag and axis metadata, so later
// canonicalization and output naming observe consistent metadata across
// freeze/thaw round trips. Legacy leaves are coerced first, with a
// deprecation signal. Symbolic leaves are rejected: a thawed value cannot be
// thawed again.
func (c *Context) Thaw(ctx context.Context, v cty.Value) (cty.Value, error) {
	return c.recMapContainer(ctx, "thaw", v, func(leaf cty.Value) (cty.Value, error) {
		b, _ := container.AsConcrete(leaf)
		return container.Symbolic(expr.Wrap(b.WithQueue(c.opts.Queue))), nil
	}, mapOptions{allowed: []leafKind{kindConcrete}})
}
