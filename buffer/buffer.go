// Package buffer holds the concrete ("frozen") array representation: a
// realized block of data with a known shape and dtype, optionally attached to
// a device queue, carrying metadata tags on the array and on each axis.
package buffer

import (
	"fmt"

	"github.com/alexfikl/arraycontext/device"
	"github.com/alexfikl/arraycontext/tag"
)

// DType enumerates the element types a buffer can hold. The reference
// backend computes in float64 regardless of the declared dtype.
type DType int

const (
	Float64 DType = iota
	Int64
)

// String returns the dtype name.
func (d DType) String() string {
	switch d {
	case Float64:
		return "float64"
	case Int64:
		return "int64"
	default:
		return fmt.Sprintf("dtype(%d)", int(d))
	}
}

// Buffer is the canonical concrete array type. It is immutable: all With*
// methods return a shallow copy sharing the underlying data.
type Buffer struct {
	shape []int
	dtype DType
	data  []float64
	tags  tag.Set
	axes  []tag.Set
	queue *device.Queue
}

// Size returns the element count implied by a shape.
func Size(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// FromHost builds a buffer from host data, attached to the given queue.
// The data slice is copied. A scalar buffer has an empty shape.
func FromHost(q *device.Queue, data []float64, shape ...int) (*Buffer, error) {
	if want := Size(shape); len(data) != want {
		return nil, fmt.Errorf("buffer: data length %d does not match shape %v (want %d)",
			len(data), shape, want)
	}
	d := make([]float64, len(data))
	copy(d, data)
	s := make([]int, len(shape))
	copy(s, shape)
	return &Buffer{
		shape: s,
		dtype: Float64,
		data:  d,
		axes:  make([]tag.Set, len(s)),
		queue: q,
	}, nil
}

// Shape returns a copy of the buffer's shape.
func (b *Buffer) Shape() []int {
	out := make([]int, len(b.shape))
	copy(out, b.shape)
	return out
}

// DType returns the buffer's element type.
func (b *Buffer) DType() DType { return b.dtype }

// Len returns the number of elements.
func (b *Buffer) Len() int { return len(b.data) }

// Host returns a copy of the buffer's contents as a host slice.
func (b *Buffer) Host() []float64 {
	out := make([]float64, len(b.data))
	copy(out, b.data)
	return out
}

// At returns the element at the given flat index. It exists for the reference
// backend; real device buffers would not expose element access.
func (b *Buffer) At(i int) float64 { return b.data[i] }

// Tags returns the buffer's tag set.
func (b *Buffer) Tags() tag.Set { return b.tags }

// Axes returns the per-axis tag sets, one per dimension.
func (b *Buffer) Axes() []tag.Set {
	out := make([]tag.Set, len(b.axes))
	copy(out, b.axes)
	return out
}

// Queue returns the queue the buffer is attached to, or nil if detached.
func (b *Buffer) Queue() *device.Queue { return b.queue }

// Tagged returns a copy with the given tags added.
func (b *Buffer) Tagged(tags tag.Set) *Buffer {
	out := *b
	out.tags = b.tags.Union(tags)
	return &out
}

// WithTags returns a copy whose tag set is replaced wholesale.
func (b *Buffer) WithTags(tags tag.Set) *Buffer {
	out := *b
	out.tags = tags
	return &out
}

// WithTaggedAxis returns a copy with tags added to axis i.
func (b *Buffer) WithTaggedAxis(i int, tags tag.Set) (*Buffer, error) {
	if i < 0 || i >= len(b.shape) {
		return nil, fmt.Errorf("buffer: axis %d out of range for shape %v", i, b.shape)
	}
	out := *b
	out.axes = b.Axes()
	out.axes[i] = out.axes[i].Union(tags)
	return &out, nil
}

// WithAxes returns a copy whose per-axis tag sets are replaced wholesale.
// The number of axis sets must match the buffer's rank.
func (b *Buffer) WithAxes(axes []tag.Set) (*Buffer, error) {
	if len(axes) != len(b.shape) {
		return nil, fmt.Errorf("buffer: got %d axis tag sets for rank-%d buffer",
			len(axes), len(b.shape))
	}
	out := *b
	out.axes = make([]tag.Set, len(axes))
	copy(out.axes, axes)
	return &out, nil
}

// WithQueue returns a copy attached to the given queue.
func (b *Buffer) WithQueue(q *device.Queue) *Buffer {
	out := *b
	out.queue = q
	return &out
}

// Detach returns a copy with no queue attachment. Frozen results are always
// handed back detached.
func (b *Buffer) Detach() *Buffer {
	if b.queue == nil {
		return b
	}
	return b.WithQueue(nil)
}
