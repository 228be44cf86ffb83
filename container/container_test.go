package container

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/alexfikl/arraycontext/buffer"
	"github.com/alexfikl/arraycontext/expr"
)

func mustBuffer(t *testing.T, data []float64, shape ...int) *buffer.Buffer {
	t.Helper()
	b, err := buffer.FromHost(nil, data, shape...)
	require.NoError(t, err)
	return b
}

func TestLeafRoundTrips(t *testing.T) {
	t.Run("symbolic", func(t *testing.T) {
		node := expr.NewPlaceholder("x", []int{2}, buffer.Float64)
		v := Symbolic(node)

		got, ok := AsSymbolic(v)
		require.True(t, ok)
		assert.Same(t, expr.Node(node), got)

		_, ok = AsConcrete(v)
		assert.False(t, ok)
	})

	t.Run("concrete", func(t *testing.T) {
		b := mustBuffer(t, []float64{1, 2}, 2)
		got, ok := AsConcrete(Concrete(b))
		require.True(t, ok)
		assert.Same(t, b, got)
	})

	t.Run("legacy", func(t *testing.T) {
		r, err := buffer.NewRaw([]float64{1}, 1)
		require.NoError(t, err)
		got, ok := AsLegacy(Legacy(r))
		require.True(t, ok)
		assert.Same(t, r, got)
	})

	t.Run("scalar", func(t *testing.T) {
		f, ok := AsScalar(Scalar(2.5))
		require.True(t, ok)
		assert.Equal(t, 2.5, f)

		_, ok = AsScalar(cty.StringVal("nope"))
		assert.False(t, ok)
	})
}

func TestIsLeaf(t *testing.T) {
	b := mustBuffer(t, []float64{1}, 1)

	assert.True(t, IsLeaf(Concrete(b)))
	assert.True(t, IsLeaf(Scalar(1)))
	assert.True(t, IsLeaf(cty.StringVal("s")), "unrecognized primitives are leaves for the dispatcher to reject")
	assert.False(t, IsLeaf(cty.ObjectVal(map[string]cty.Value{"a": Scalar(1)})))
	assert.False(t, IsLeaf(cty.TupleVal([]cty.Value{Scalar(1)})))
}

func TestKeyedMapPaths(t *testing.T) {
	b := mustBuffer(t, []float64{1}, 1)
	v := cty.ObjectVal(map[string]cty.Value{
		"outer": cty.TupleVal([]cty.Value{Concrete(b), Scalar(7)}),
		"plain": Concrete(b),
	})

	var keys []string
	out, err := KeyedMap(v, func(p cty.Path, leaf cty.Value) (cty.Value, error) {
		keys = append(keys, KeyString(p))
		return leaf, nil
	})
	require.NoError(t, err)
	assert.True(t, out.RawEquals(v), "identity map preserves the container")
	assert.ElementsMatch(t, []string{"_ary_outer_0", "_ary_outer_1", "_ary_plain"}, keys)

	// Traversal over a structurally identical container yields the same keys.
	var again []string
	_, err = KeyedMap(v, func(p cty.Path, leaf cty.Value) (cty.Value, error) {
		again = append(again, KeyString(p))
		return leaf, nil
	})
	require.NoError(t, err)
	assert.Equal(t, keys, again)
}

func TestMapRewritesLeaves(t *testing.T) {
	v := cty.TupleVal([]cty.Value{Scalar(1), Scalar(2)})
	out, err := Map(v, func(leaf cty.Value) (cty.Value, error) {
		f, _ := AsScalar(leaf)
		return Scalar(f * 10), nil
	})
	require.NoError(t, err)

	f0, _ := AsScalar(out.Index(cty.NumberIntVal(0)))
	f1, _ := AsScalar(out.Index(cty.NumberIntVal(1)))
	assert.Equal(t, 10.0, f0)
	assert.Equal(t, 20.0, f1)
}

func TestKeyStringEscaping(t *testing.T) {
	pathA := cty.Path{cty.GetAttrStep{Name: "a_b"}}
	pathB := cty.Path{cty.GetAttrStep{Name: "a"}, cty.GetAttrStep{Name: "b"}}
	assert.NotEqual(t, KeyString(pathA), KeyString(pathB),
		"underscore escaping keeps distinct paths distinct")

	assert.Equal(t, "_ary", KeyString(nil))
	assert.Equal(t, "_ary_a__b", KeyString(pathA))
}
