package actx

import (
	"context"

	"github.com/zclconf/go-cty/cty"

	"github.com/alexfikl/arraycontext/buffer"
	"github.com/alexfikl/arraycontext/container"
	"github.com/alexfikl/arraycontext/expr"
)

// classified is the result of partitioning a container's leaves: leaves that
// already hold a value, keyed by path string, and leaves that still need to
// be computed. The two key sets are disjoint by construction. Plain scalars
// belong to neither; they stay in the container untouched.
type classified struct {
	concrete map[string]*buffer.Buffer
	symbolic map[string]expr.Node
}

// classify partitions the leaves of v for freezing. Concrete buffers are
// detached from their queue; legacy arrays are coerced with one deprecation
// signal each; trivially wrapped literal data is unwrapped directly, keeping
// the wrapper's tag and axis metadata; computed symbolic leaves are
// collected for compilation. Computed leaves are never short-circuited here,
// even when they look cheap: skipping compilation would suppress the
// metadata propagation performed by the transform step.
func (c *Context) classify(ctx context.Context, v cty.Value) (*classified, error) {
	out := &classified{
		concrete: make(map[string]*buffer.Buffer),
		symbolic: make(map[string]expr.Node),
	}

	_, err := container.KeyedMap(v, func(p cty.Path, leaf cty.Value) (cty.Value, error) {
		key := container.KeyString(p)

		switch classifyLeaf(leaf) {
		case kindConcrete:
			b, _ := container.AsConcrete(leaf)
			out.concrete[key] = b.Detach()

		case kindLegacy:
			raw, _ := container.AsLegacy(leaf)
			c.deprecate(ctx, key,
				"invoking freeze with *buffer.Raw is deprecated; convert with buffer.FromRaw")
			out.concrete[key] = buffer.FromRaw(raw).Detach()

		case kindSymbolic:
			node, _ := container.AsSymbolic(leaf)
			if w, ok := node.(*expr.DataWrapper); ok {
				b := w.Data().WithTags(w.Tags())
				b, err := b.WithAxes(w.Axes())
				if err != nil {
					return cty.NilVal, err
				}
				out.concrete[key] = b.Detach()
			} else {
				out.symbolic[key] = node
			}

		case kindScalar:
			// Scalars are not cached or compiled.

		default:
			return cty.NilVal, &UnsupportedLeafTypeError{
				Op:       "freeze",
				Got:      leafTypeName(leaf),
				Accepted: []string{kindName(kindSymbolic), kindName(kindConcrete), kindName(kindScalar)},
			}
		}
		return leaf, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
