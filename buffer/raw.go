package buffer

import (
	"fmt"

	"github.com/alexfikl/arraycontext/device"
	"github.com/alexfikl/arraycontext/tag"
)

// Raw is the legacy concrete array representation: data and shape only, with
// no tag metadata. It is soft-deprecated: operations accept it, emit a
// deprecation signal, and coerce it to Buffer via FromRaw before proceeding.
type Raw struct {
	Shape []int
	Data  []float64
	Queue *device.Queue
}

// NewRaw builds a legacy array. The data slice is copied.
func NewRaw(data []float64, shape ...int) (*Raw, error) {
	if want := Size(shape); len(data) != want {
		return nil, fmt.Errorf("buffer: data length %d does not match shape %v (want %d)",
			len(data), shape, want)
	}
	d := make([]float64, len(data))
	copy(d, data)
	s := make([]int, len(shape))
	copy(s, shape)
	return &Raw{Shape: s, Data: d}, nil
}

// FromRaw coerces a legacy array into the canonical tagged representation.
// The result carries empty tag and axis metadata.
func FromRaw(r *Raw) *Buffer {
	d := make([]float64, len(r.Data))
	copy(d, r.Data)
	s := make([]int, len(r.Shape))
	copy(s, r.Shape)
	return &Buffer{
		shape: s,
		dtype: Float64,
		data:  d,
		axes:  make([]tag.Set, len(s)),
		queue: r.Queue,
	}
}
