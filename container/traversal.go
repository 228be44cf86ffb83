package container

import (
	"math/big"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// LeafFunc transforms a single leaf value.
type LeafFunc func(v cty.Value) (cty.Value, error)

// KeyedLeafFunc transforms a single leaf value, given its path from the
// container root.
type KeyedLeafFunc func(p cty.Path, v cty.Value) (cty.Value, error)

// Map rebuilds a container with fn applied to every leaf, preserving the
// container's shape.
func Map(v cty.Value, fn LeafFunc) (cty.Value, error) {
	return KeyedMap(v, func(_ cty.Path, leaf cty.Value) (cty.Value, error) {
		return fn(leaf)
	})
}

// KeyedMap is the keyed variant of Map: fn additionally receives each leaf's
// path. Container structure is visited but passed through untouched.
func KeyedMap(v cty.Value, fn KeyedLeafFunc) (cty.Value, error) {
	return cty.TransformWithTransformer(v, keyedTransformer{fn: fn})
}

type keyedTransformer struct {
	fn KeyedLeafFunc
}

func (t keyedTransformer) Enter(p cty.Path, v cty.Value) (cty.Value, error) {
	return v, nil
}

func (t keyedTransformer) Exit(p cty.Path, v cty.Value) (cty.Value, error) {
	if !IsLeaf(v) {
		return v, nil
	}
	return t.fn(p, v)
}

// KeyString converts a leaf path into the deterministic string key used for
// cache-key derivation and result merging. Underscores inside attribute and
// string-index names are doubled, so distinct paths can never collide.
func KeyString(p cty.Path) string {
	var sb strings.Builder
	sb.WriteString("_ary")
	for _, step := range p {
		sb.WriteByte('_')
		switch s := step.(type) {
		case cty.GetAttrStep:
			sb.WriteString(escapeKeyPart(s.Name))
		case cty.IndexStep:
			switch s.Key.Type() {
			case cty.Number:
				i, _ := s.Key.AsBigFloat().Int(nil)
				sb.WriteString(i.Text(10))
			case cty.String:
				sb.WriteString(escapeKeyPart(s.Key.AsString()))
			default:
				sb.WriteString("x")
			}
		}
	}
	return sb.String()
}

func escapeKeyPart(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r == '_':
			sb.WriteString("__")
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		default:
			sb.WriteString("0x")
			sb.WriteString(big.NewInt(int64(r)).Text(16))
		}
	}
	return sb.String()
}
