package actx

import (
	"context"

	"github.com/zclconf/go-cty/cty"

	"github.com/alexfikl/arraycontext/buffer"
	"github.com/alexfikl/arraycontext/container"
)

// leafKind is the closed classification of container leaves, decided once
// per leaf; every operation pattern-matches the kind instead of re-probing
// runtime types.
type leafKind int

const (
	kindSymbolic leafKind = iota
	kindConcrete
	kindLegacy
	kindScalar
	kindInvalid
)

// kindName returns the user-facing type name for a leaf kind, used in
// UnsupportedLeafTypeError messages.
func kindName(k leafKind) string {
	switch k {
	case kindSymbolic:
		return "expr.Node"
	case kindConcrete:
		return "*buffer.Buffer"
	case kindLegacy:
		return "*buffer.Raw"
	case kindScalar:
		return "scalar"
	default:
		return "invalid"
	}
}

// classifyLeaf decides the kind of a single leaf value.
func classifyLeaf(v cty.Value) leafKind {
	switch {
	case v.Type() == container.SymbolicType:
		return kindSymbolic
	case v.Type() == container.ConcreteType:
		return kindConcrete
	case v.Type() == container.LegacyType:
		return kindLegacy
	case v.Type() == cty.Number:
		return kindScalar
	default:
		return kindInvalid
	}
}

// leafTypeName names the concrete cty type of a rejected leaf.
func leafTypeName(v cty.Value) string {
	return v.Type().FriendlyName()
}

// mapOptions tunes the shared container dispatch.
type mapOptions struct {
	// allowed lists the leaf kinds handed to the visitor. Legacy leaves are
	// coerced onto the concrete path when kindConcrete is allowed, unless
	// strict is set.
	allowed []leafKind
	// defaultScalar, when non-nil, substitutes plain scalars instead of
	// passing them through unchanged.
	defaultScalar *float64
	// strict rejects legacy leaves instead of coercing them.
	strict bool
}

func (o mapOptions) allows(k leafKind) bool {
	for _, a := range o.allowed {
		if a == k {
			return true
		}
	}
	return false
}

func (o mapOptions) acceptedNames() []string {
	out := make([]string, 0, len(o.allowed)+1)
	for _, k := range o.allowed {
		out = append(out, kindName(k))
	}
	out = append(out, kindName(kindScalar))
	return out
}

// recMapContainer applies fn to every leaf of v, routing each leaf by kind:
// accepted kinds go to fn as-is, legacy leaves are coerced to the canonical
// concrete representation (with one deprecation signal per leaf), plain
// scalars pass through or pick up the default, and anything else fails with
// an UnsupportedLeafTypeError naming the type and the accepted set.
func (c *Context) recMapContainer(ctx context.Context, op string, v cty.Value,
	fn container.LeafFunc, o mapOptions) (cty.Value, error) {

	return container.KeyedMap(v, func(p cty.Path, leaf cty.Value) (cty.Value, error) {
		kind := classifyLeaf(leaf)

		if o.allows(kind) {
			return fn(leaf)
		}

		switch kind {
		case kindLegacy:
			if !o.strict && o.allows(kindConcrete) {
				raw, _ := container.AsLegacy(leaf)
				c.deprecate(ctx, container.KeyString(p),
					"invoking "+op+" with *buffer.Raw is deprecated; convert with buffer.FromRaw")
				return fn(container.Concrete(buffer.FromRaw(raw)))
			}
		case kindScalar:
			if o.defaultScalar == nil {
				return leaf, nil
			}
			return container.Scalar(*o.defaultScalar), nil
		}

		return cty.NilVal, &UnsupportedLeafTypeError{
			Op:       op,
			Got:      leafTypeName(leaf),
			Accepted: o.acceptedNames(),
		}
	})
}
