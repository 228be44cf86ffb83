// Package container encodes possibly-nested, possibly-heterogeneous
// aggregates of array values as cty values. Objects, maps, tuples and lists
// form the container structure; leaves are capsule values holding symbolic
// expression nodes, concrete buffers or legacy raw arrays, plus plain
// numeric scalars encoded as cty numbers.
//
// cty iterates object attributes in sorted order and collections
// positionally, so traversal order and leaf paths are deterministic across
// repeated traversals of structurally identical containers. Leaf paths
// double as cache-key components; see KeyString.
package container

import (
	"reflect"

	"github.com/zclconf/go-cty/cty"

	"github.com/alexfikl/arraycontext/buffer"
	"github.com/alexfikl/arraycontext/expr"
)

type symbolicLeaf struct {
	node expr.Node
}

type concreteLeaf struct {
	buf *buffer.Buffer
}

type legacyLeaf struct {
	raw *buffer.Raw
}

// SymbolicType is the capsule type holding symbolic expression nodes.
var SymbolicType = cty.Capsule("symbolic_array", reflect.TypeOf(symbolicLeaf{}))

// ConcreteType is the capsule type holding concrete tagged buffers.
var ConcreteType = cty.Capsule("concrete_array", reflect.TypeOf(concreteLeaf{}))

// LegacyType is the capsule type holding the soft-deprecated raw arrays.
var LegacyType = cty.Capsule("legacy_array", reflect.TypeOf(legacyLeaf{}))

// Symbolic wraps a symbolic expression node as a container leaf.
func Symbolic(n expr.Node) cty.Value {
	return cty.CapsuleVal(SymbolicType, &symbolicLeaf{node: n})
}

// Concrete wraps a concrete buffer as a container leaf.
func Concrete(b *buffer.Buffer) cty.Value {
	return cty.CapsuleVal(ConcreteType, &concreteLeaf{buf: b})
}

// Legacy wraps a legacy raw array as a container leaf.
func Legacy(r *buffer.Raw) cty.Value {
	return cty.CapsuleVal(LegacyType, &legacyLeaf{raw: r})
}

// Scalar wraps a plain numeric scalar as a container leaf.
func Scalar(f float64) cty.Value {
	return cty.NumberFloatVal(f)
}

// AsSymbolic unwraps a symbolic leaf.
func AsSymbolic(v cty.Value) (expr.Node, bool) {
	if v.Type() != SymbolicType {
		return nil, false
	}
	return v.EncapsulatedValue().(*symbolicLeaf).node, true
}

// AsConcrete unwraps a concrete leaf.
func AsConcrete(v cty.Value) (*buffer.Buffer, bool) {
	if v.Type() != ConcreteType {
		return nil, false
	}
	return v.EncapsulatedValue().(*concreteLeaf).buf, true
}

// AsLegacy unwraps a legacy leaf.
func AsLegacy(v cty.Value) (*buffer.Raw, bool) {
	if v.Type() != LegacyType {
		return nil, false
	}
	return v.EncapsulatedValue().(*legacyLeaf).raw, true
}

// AsScalar unwraps a plain numeric scalar leaf.
func AsScalar(v cty.Value) (float64, bool) {
	if v.Type() != cty.Number {
		return 0, false
	}
	f, _ := v.AsBigFloat().Float64()
	return f, true
}

// IsLeaf reports whether v is a leaf position rather than container
// structure. Note that unrecognized primitive values (strings, bools) are
// leaves too; classifying them is the dispatcher's job, and it rejects them.
func IsLeaf(v cty.Value) bool {
	t := v.Type()
	return !(t.IsObjectType() || t.IsMapType() || t.IsListType() ||
		t.IsTupleType() || t.IsSetType())
}
