package expr

import (
	"fmt"
	"sort"
)

// NamedSet maps output names to expression roots with deterministic, sorted
// iteration order. It is the unit that gets canonicalized, transformed and
// compiled. A NamedSet is immutable once built.
type NamedSet struct {
	names []string
	nodes map[string]Node
}

// NewNamedSet builds a set from the given mapping. The map is copied.
func NewNamedSet(nodes map[string]Node) *NamedSet {
	names := make([]string, 0, len(nodes))
	m := make(map[string]Node, len(nodes))
	for name, n := range nodes {
		names = append(names, name)
		m[name] = n
	}
	sort.Strings(names)
	return &NamedSet{names: names, nodes: m}
}

// Len returns the number of named outputs.
func (s *NamedSet) Len() int { return len(s.names) }

// Names returns the output names in sorted order.
func (s *NamedSet) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Get returns the node bound to name.
func (s *NamedSet) Get(name string) (Node, error) {
	n, ok := s.nodes[name]
	if !ok {
		return nil, fmt.Errorf("expr: named set has no output %q", name)
	}
	return n, nil
}
