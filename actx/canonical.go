package actx

import (
	"fmt"

	"github.com/alexfikl/arraycontext/buffer"
	"github.com/alexfikl/arraycontext/expr"
	"github.com/alexfikl/arraycontext/tag"
)

// canonicalExpr is the structural cache key for an expression set: the set
// with every embedded literal replaced by a fresh placeholder, plus the
// content digest of that normalized set. Two sets that are structurally
// identical up to which literal values are embedded at the same positions
// canonicalize to the same key.
type canonicalExpr struct {
	set *expr.NamedSet
	key string
}

// boundArgument names follow the deterministic traversal order of the
// canonicalizer, so identical structure yields identical names.
func boundName(i int) string {
	return fmt.Sprintf("_actx_in_%d", i)
}

// canonicalize normalizes a named expression set. Every DataWrapper is
// replaced by a placeholder carrying the wrapper's metadata, and the wrapped
// buffer is recorded under the placeholder's name in the returned bound
// arguments. The walk is a pure function of structure: placeholder names are
// assigned in traversal order over sorted output names, never from object
// identity or insertion order.
func canonicalize(set *expr.NamedSet) (*canonicalExpr, map[string]*buffer.Buffer, error) {
	cz := &canonicalizer{
		memo:  make(map[expr.Node]expr.Node),
		bound: make(map[string]*buffer.Buffer),
	}

	normalized := make(map[string]expr.Node, set.Len())
	for _, name := range set.Names() {
		node, err := set.Get(name)
		if err != nil {
			return nil, nil, err
		}
		cn, err := cz.rewrite(node)
		if err != nil {
			return nil, nil, err
		}
		normalized[name] = cn
	}

	canonical := expr.NewNamedSet(normalized)
	key, err := expr.Digest(canonical)
	if err != nil {
		return nil, nil, err
	}
	return &canonicalExpr{set: canonical, key: key}, cz.bound, nil
}

type canonicalizer struct {
	memo  map[expr.Node]expr.Node
	bound map[string]*buffer.Buffer
	next  int
}

func (cz *canonicalizer) rewrite(n expr.Node) (expr.Node, error) {
	if out, ok := cz.memo[n]; ok {
		return out, nil
	}

	var out expr.Node
	switch node := n.(type) {
	case *expr.DataWrapper:
		name := boundName(cz.next)
		cz.next++
		cz.bound[name] = node.Data()
		p, err := withMeta(
			expr.NewPlaceholder(name, node.Shape(), node.DType()),
			node.Tags(), node.Axes())
		if err != nil {
			return nil, err
		}
		out = p

	case *expr.Placeholder, *expr.Fill:
		out = node

	case *expr.Unary:
		arg, err := cz.rewrite(node.Arg())
		if err != nil {
			return nil, err
		}
		u, err := withMeta(expr.NewUnary(node.Op(), arg), node.Tags(), node.Axes())
		if err != nil {
			return nil, err
		}
		out = u

	case *expr.Binary:
		left, err := cz.rewrite(node.Left())
		if err != nil {
			return nil, err
		}
		right, err := cz.rewrite(node.Right())
		if err != nil {
			return nil, err
		}
		rebuilt, err := expr.NewBinary(node.Op(), left, right)
		if err != nil {
			return nil, err
		}
		b, err := withMeta(rebuilt, node.Tags(), node.Axes())
		if err != nil {
			return nil, err
		}
		out = b

	default:
		return nil, fmt.Errorf("actx: cannot canonicalize node of type %T", n)
	}

	cz.memo[n] = out
	return out, nil
}

// withMeta transplants tag and axis metadata onto a freshly built node.
func withMeta(n expr.Node, tags tag.Set, axes []tag.Set) (expr.Node, error) {
	if tags.Len() > 0 {
		n = n.Tagged(tags)
	}
	for i, a := range axes {
		if a.Len() == 0 {
			continue
		}
		var err error
		n, err = n.TaggedAxis(i, a)
		if err != nil {
			return nil, err
		}
	}
	return n, nil
}
