package actx

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/alexfikl/arraycontext/buffer"
	"github.com/alexfikl/arraycontext/container"
	"github.com/alexfikl/arraycontext/expr"
	"github.com/alexfikl/arraycontext/tag"
)

// Tag attaches tags to every array leaf of v, symbolic or concrete. NameHint
// tags are converted to PrefixNamed before attachment; a clash with an
// existing PrefixNamed logs a warning and lets the hint win.
func (c *Context) Tag(ctx context.Context, tags tag.Set, v cty.Value) (cty.Value, error) {
	processed, warning := tag.Preprocess(tags)
	if warning != "" {
		c.logger(ctx).Warn("Tag preprocessing clash.", "warning", warning)
	}

	return c.recMapContainer(ctx, "tag", v, func(leaf cty.Value) (cty.Value, error) {
		if node, ok := container.AsSymbolic(leaf); ok {
			return container.Symbolic(node.Tagged(processed)), nil
		}
		b, _ := container.AsConcrete(leaf)
		return container.Concrete(b.Tagged(processed)), nil
	}, mapOptions{allowed: []leafKind{kindSymbolic, kindConcrete}})
}

// TagAxis attaches tags to one axis of every array leaf of v.
func (c *Context) TagAxis(ctx context.Context, axis int, tags tag.Set, v cty.Value) (cty.Value, error) {
	return c.recMapContainer(ctx, "tag_axis", v, func(leaf cty.Value) (cty.Value, error) {
		if node, ok := container.AsSymbolic(leaf); ok {
			out, err := node.TaggedAxis(axis, tags)
			if err != nil {
				return cty.NilVal, err
			}
			return container.Symbolic(out), nil
		}
		b, _ := container.AsConcrete(leaf)
		out, err := b.WithTaggedAxis(axis, tags)
		if err != nil {
			return cty.NilVal, err
		}
		return container.Concrete(out), nil
	}, mapOptions{allowed: []leafKind{kindSymbolic, kindConcrete}})
}

// Zeros returns a symbolic zero-filled array leaf.
func (c *Context) Zeros(shape []int, dtype buffer.DType) cty.Value {
	return container.Symbolic(expr.Zeros(shape, dtype))
}

// ZerosLike replaces every array leaf with a symbolic zero-filled expression
// of the same shape and dtype, and every plain scalar with zero.
func (c *Context) ZerosLike(ctx context.Context, v cty.Value) (cty.Value, error) {
	zero := 0.0
	return c.recMapContainer(ctx, "zeros_like", v, func(leaf cty.Value) (cty.Value, error) {
		if node, ok := container.AsSymbolic(leaf); ok {
			return container.Symbolic(expr.Zeros(node.Shape(), node.DType())), nil
		}
		b, _ := container.AsConcrete(leaf)
		return container.Symbolic(expr.Zeros(b.Shape(), b.DType())), nil
	}, mapOptions{allowed: []leafKind{kindSymbolic, kindConcrete}, defaultScalar: &zero})
}

// FromHost lifts host data onto the context's queue as a symbolic
// literal-data leaf, ready for use in expressions.
func (c *Context) FromHost(data []float64, shape ...int) (cty.Value, error) {
	b, err := buffer.FromHost(c.opts.Queue, data, shape...)
	if err != nil {
		return cty.NilVal, err
	}
	return container.Symbolic(expr.Wrap(b)), nil
}

// ToHost freezes v and returns the contents of every array leaf as host
// slices, keyed by the leaf's path string. Plain scalars are skipped.
func (c *Context) ToHost(ctx context.Context, v cty.Value) (map[string][]float64, error) {
	frozen, err := c.Freeze(ctx, v)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]float64)
	_, err = container.KeyedMap(frozen, func(p cty.Path, leaf cty.Value) (cty.Value, error) {
		if b, ok := container.AsConcrete(leaf); ok {
			out[container.KeyString(p)] = b.Host()
		}
		return leaf, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Apply builds a symbolic operation over array leaves the way a user-facing
// numpy-flavored API would: each argument is brought into symbolic form
// (concrete buffers are thawed, legacy ones coerced first with a deprecation
// signal), optional argument names become NameHint tags, and the finished
// node is tagged with the given set. Placeholders are never renamed: they
// already have names, and tagging them would create a distinct node of the
// same name.
func (c *Context) Apply(ctx context.Context, op func(args ...expr.Node) (expr.Node, error),
	argNames []string, tagged tag.Set, args ...cty.Value) (cty.Value, error) {

	if argNames != nil && len(argNames) != len(args) {
		return cty.NilVal, fmt.Errorf("actx: Apply got %d argument names for %d arguments",
			len(argNames), len(args))
	}

	nodes := make([]expr.Node, len(args))
	for i, arg := range args {
		var node expr.Node
		switch classifyLeaf(arg) {
		case kindSymbolic:
			node, _ = container.AsSymbolic(arg)
		case kindConcrete:
			b, _ := container.AsConcrete(arg)
			node = expr.Wrap(b.WithQueue(c.opts.Queue))
		case kindLegacy:
			raw, _ := container.AsLegacy(arg)
			c.deprecate(ctx, fmt.Sprintf("arg[%d]", i),
				"invoking apply with *buffer.Raw is deprecated; convert with buffer.FromRaw")
			node = expr.Wrap(buffer.FromRaw(raw).WithQueue(c.opts.Queue))
		default:
			return cty.NilVal, &UnsupportedLeafTypeError{
				Op:       "apply",
				Got:      leafTypeName(arg),
				Accepted: []string{kindName(kindSymbolic), kindName(kindConcrete)},
			}
		}

		if argNames != nil && argNames[i] != "" {
			if _, isPlaceholder := node.(*expr.Placeholder); !isPlaceholder &&
				len(node.Tags().NameHints()) == 0 {
				node = node.Tagged(tag.NewSet(tag.NameHint{Name: argNames[i]}))
			}
		}
		nodes[i] = node
	}

	result, err := op(nodes...)
	if err != nil {
		return cty.NilVal, err
	}

	processed, warning := tag.Preprocess(tagged)
	if warning != "" {
		c.logger(ctx).Warn("Tag preprocessing clash.", "warning", warning)
	}
	if processed.Len() > 0 {
		result = result.Tagged(processed)
	}
	return container.Symbolic(result), nil
}
