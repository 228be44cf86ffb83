// Package tag implements the metadata annotation system shared by symbolic
// expression nodes and concrete buffers. Tags survive freeze/thaw round trips
// and feed the entry-point naming heuristic during compilation.
package tag

import (
	"fmt"
	"sort"
	"strings"
)

// Tag is a single annotation. Implementations must be comparable values whose
// Key is stable: two tags are the same tag iff their keys are equal.
type Tag interface {
	Key() string
}

// NameHint suggests a human-readable name for an array. It is converted to a
// PrefixNamed tag before reaching the expression graph; see Preprocess.
type NameHint struct {
	Name string
}

// Key implements Tag.
func (t NameHint) Key() string { return "name_hint:" + t.Name }

// PrefixNamed asks code generation to derive names starting with Prefix.
type PrefixNamed struct {
	Prefix string
}

// Key implements Tag.
func (t PrefixNamed) Key() string { return "prefix_named:" + t.Prefix }

// Axis labels a single array axis, e.g. "x" or "element".
type Axis struct {
	Label string
}

// Key implements Tag.
func (t Axis) Key() string { return "axis:" + t.Label }

// User is an opaque user-defined annotation.
type User struct {
	Name  string
	Value string
}

// Key implements Tag.
func (t User) Key() string { return "user:" + t.Name + "=" + t.Value }

// Set is an immutable collection of tags with deterministic ordering.
// The zero value is the empty set.
type Set struct {
	tags []Tag
}

// NewSet builds a set from the given tags, deduplicating by key.
func NewSet(tags ...Tag) Set {
	if len(tags) == 0 {
		return Set{}
	}
	seen := make(map[string]Tag, len(tags))
	for _, t := range tags {
		seen[t.Key()] = t
	}
	out := make([]Tag, 0, len(seen))
	for _, t := range seen {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return Set{tags: out}
}

// Len returns the number of tags in the set.
func (s Set) Len() int { return len(s.tags) }

// All returns the tags in deterministic (key-sorted) order.
func (s Set) All() []Tag {
	out := make([]Tag, len(s.tags))
	copy(out, s.tags)
	return out
}

// Has reports whether the set contains a tag with the same key as t.
func (s Set) Has(t Tag) bool {
	for _, have := range s.tags {
		if have.Key() == t.Key() {
			return true
		}
	}
	return false
}

// With returns a new set with the given tags added.
func (s Set) With(tags ...Tag) Set {
	if len(tags) == 0 {
		return s
	}
	return NewSet(append(s.All(), tags...)...)
}

// Without returns a new set with the given tag removed, if present.
func (s Set) Without(t Tag) Set {
	out := make([]Tag, 0, len(s.tags))
	for _, have := range s.tags {
		if have.Key() != t.Key() {
			out = append(out, have)
		}
	}
	return Set{tags: out}
}

// Union merges two sets.
func (s Set) Union(other Set) Set {
	return NewSet(append(s.All(), other.tags...)...)
}

// NameHints returns all NameHint tags in the set.
func (s Set) NameHints() []NameHint {
	var out []NameHint
	for _, t := range s.tags {
		if h, ok := t.(NameHint); ok {
			out = append(out, h)
		}
	}
	return out
}

// Prefixes returns all PrefixNamed tags in the set.
func (s Set) Prefixes() []PrefixNamed {
	var out []PrefixNamed
	for _, t := range s.tags {
		if p, ok := t.(PrefixNamed); ok {
			out = append(out, p)
		}
	}
	return out
}

// Canonical returns a deterministic textual form of the set, suitable for
// inclusion in structural digests.
func (s Set) Canonical() string {
	if len(s.tags) == 0 {
		return ""
	}
	keys := make([]string, len(s.tags))
	for i, t := range s.tags {
		keys[i] = t.Key()
	}
	return strings.Join(keys, ";")
}

// Preprocess converts any NameHint in the set to a PrefixNamed tag. When a
// PrefixNamed is already present the hint still wins, and a non-empty warning
// describing the clash is returned for the caller's warning channel.
func Preprocess(s Set) (Set, string) {
	hints := s.NameHints()
	if len(hints) == 0 {
		return s, ""
	}
	hint := hints[0]

	warning := ""
	if existing := s.Prefixes(); len(existing) > 0 {
		warning = fmt.Sprintf(
			"converting NameHint(%q) to PrefixNamed: PrefixNamed(%q) was already present",
			hint.Name, existing[0].Prefix)
	}

	return s.Without(hint).With(PrefixNamed{Prefix: hint.Name}), warning
}
