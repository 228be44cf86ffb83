// Package expr implements the symbolic expression graph that represents
// deferred ("thawed") array computations. Nodes form an immutable DAG; the
// closed kind set is Placeholder, DataWrapper, Fill, Unary and Binary.
//
// The package also provides the structural digest used as the content-
// addressed cache key by the execution context: see Digest.
package expr

import (
	"fmt"
	"sync/atomic"

	"github.com/alexfikl/arraycontext/buffer"
	"github.com/alexfikl/arraycontext/tag"
)

// Node is a single vertex in a symbolic expression graph. Nodes are
// immutable; Tagged and TaggedAxis return modified copies.
type Node interface {
	Shape() []int
	DType() buffer.DType
	Tags() tag.Set
	Axes() []tag.Set
	Tagged(tags tag.Set) Node
	TaggedAxis(axis int, tags tag.Set) (Node, error)

	children() []Node
	isNode()
}

// common carries the fields shared by every node kind.
type common struct {
	shape []int
	dtype buffer.DType
	tags  tag.Set
	axes  []tag.Set
}

func (c common) Shape() []int {
	out := make([]int, len(c.shape))
	copy(out, c.shape)
	return out
}

func (c common) DType() buffer.DType { return c.dtype }

func (c common) Tags() tag.Set { return c.tags }

func (c common) Axes() []tag.Set {
	out := make([]tag.Set, len(c.axes))
	copy(out, c.axes)
	return out
}

func (c common) tagged(tags tag.Set) common {
	c.tags = c.tags.Union(tags)
	return c
}

func (c common) taggedAxis(axis int, tags tag.Set) (common, error) {
	if axis < 0 || axis >= len(c.shape) {
		return c, fmt.Errorf("expr: axis %d out of range for shape %v", axis, c.shape)
	}
	axes := make([]tag.Set, len(c.axes))
	copy(axes, c.axes)
	axes[axis] = axes[axis].Union(tags)
	c.axes = axes
	return c, nil
}

func newCommon(shape []int, dtype buffer.DType) common {
	s := make([]int, len(shape))
	copy(s, shape)
	return common{shape: s, dtype: dtype, axes: make([]tag.Set, len(s))}
}

// Placeholder is a named symbolic input. Its value is supplied at execution
// time under its name.
type Placeholder struct {
	common
	name string
}

// NewPlaceholder creates a named input of the given shape and dtype.
func NewPlaceholder(name string, shape []int, dtype buffer.DType) *Placeholder {
	return &Placeholder{common: newCommon(shape, dtype), name: name}
}

// Name returns the placeholder's binding name.
func (p *Placeholder) Name() string { return p.name }

// Tagged implements Node.
func (p *Placeholder) Tagged(tags tag.Set) Node {
	out := *p
	out.common = p.common.tagged(tags)
	return &out
}

// TaggedAxis implements Node.
func (p *Placeholder) TaggedAxis(axis int, tags tag.Set) (Node, error) {
	c, err := p.common.taggedAxis(axis, tags)
	if err != nil {
		return nil, err
	}
	out := *p
	out.common = c
	return &out, nil
}

func (p *Placeholder) children() []Node { return nil }
func (p *Placeholder) isNode()          {}

// wrapperSerial distinguishes distinct DataWrapper instances in structural
// digests, mirroring identity semantics for embedded literal data. Wrappers
// are replaced by placeholders during canonicalization, so the serial never
// reaches a cache key.
var wrapperSerial atomic.Uint64

// DataWrapper embeds a concrete buffer into a symbolic graph: the trivial
// thawed form of already-computed data.
type DataWrapper struct {
	common
	data   *buffer.Buffer
	serial uint64
}

// Wrap lifts a concrete buffer into the expression graph. Tag and axis
// metadata is inherited from the buffer.
func Wrap(b *buffer.Buffer) *DataWrapper {
	c := newCommon(b.Shape(), b.DType())
	c.tags = b.Tags()
	c.axes = b.Axes()
	return &DataWrapper{common: c, data: b, serial: wrapperSerial.Add(1)}
}

// Data returns the wrapped buffer.
func (w *DataWrapper) Data() *buffer.Buffer { return w.data }

// Serial returns the wrapper's creation serial.
func (w *DataWrapper) Serial() uint64 { return w.serial }

// Tagged implements Node.
func (w *DataWrapper) Tagged(tags tag.Set) Node {
	out := *w
	out.common = w.common.tagged(tags)
	return &out
}

// TaggedAxis implements Node.
func (w *DataWrapper) TaggedAxis(axis int, tags tag.Set) (Node, error) {
	c, err := w.common.taggedAxis(axis, tags)
	if err != nil {
		return nil, err
	}
	out := *w
	out.common = c
	return &out, nil
}

func (w *DataWrapper) children() []Node { return nil }
func (w *DataWrapper) isNode()          {}

// Fill is a computed leaf producing an array filled with a constant. Unlike
// DataWrapper the constant is part of the structure, so Fill nodes are
// compiled, not extracted as bound arguments.
type Fill struct {
	common
	value float64
}

// NewFill creates a constant-filled array expression.
func NewFill(value float64, shape []int, dtype buffer.DType) *Fill {
	return &Fill{common: newCommon(shape, dtype), value: value}
}

// Zeros creates a zero-filled array expression.
func Zeros(shape []int, dtype buffer.DType) *Fill {
	return NewFill(0, shape, dtype)
}

// Value returns the fill constant.
func (f *Fill) Value() float64 { return f.value }

// Tagged implements Node.
func (f *Fill) Tagged(tags tag.Set) Node {
	out := *f
	out.common = f.common.tagged(tags)
	return &out
}

// TaggedAxis implements Node.
func (f *Fill) TaggedAxis(axis int, tags tag.Set) (Node, error) {
	c, err := f.common.taggedAxis(axis, tags)
	if err != nil {
		return nil, err
	}
	out := *f
	out.common = c
	return &out, nil
}

func (f *Fill) children() []Node { return nil }
func (f *Fill) isNode()          {}
