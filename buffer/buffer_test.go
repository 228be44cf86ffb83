package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexfikl/arraycontext/device"
	"github.com/alexfikl/arraycontext/tag"
)

func TestFromHost(t *testing.T) {
	q := device.NewQueue(nil)

	t.Run("success", func(t *testing.T) {
		b, err := FromHost(q, []float64{1, 2, 3, 4, 5, 6}, 2, 3)
		require.NoError(t, err)
		assert.Equal(t, []int{2, 3}, b.Shape())
		assert.Equal(t, 6, b.Len())
		assert.Equal(t, q, b.Queue())
	})

	t.Run("scalar shape", func(t *testing.T) {
		b, err := FromHost(q, []float64{42})
		require.NoError(t, err)
		assert.Empty(t, b.Shape())
		assert.Equal(t, 1, b.Len())
	})

	t.Run("shape mismatch", func(t *testing.T) {
		_, err := FromHost(q, []float64{1, 2, 3}, 2, 2)
		assert.ErrorContains(t, err, "does not match shape")
	})

	t.Run("data is copied", func(t *testing.T) {
		data := []float64{1, 2}
		b, err := FromHost(q, data, 2)
		require.NoError(t, err)
		data[0] = 99
		assert.Equal(t, []float64{1, 2}, b.Host())
	})
}

func TestBufferDetach(t *testing.T) {
	q := device.NewQueue(nil)
	b, err := FromHost(q, []float64{1}, 1)
	require.NoError(t, err)

	d := b.Detach()
	assert.Nil(t, d.Queue())
	assert.Equal(t, q, b.Queue(), "original is untouched")
	assert.Same(t, d, d.Detach(), "detaching a detached buffer is a no-op")
}

func TestBufferTagging(t *testing.T) {
	b, err := FromHost(nil, []float64{1, 2}, 2)
	require.NoError(t, err)

	tagged := b.Tagged(tag.NewSet(tag.NameHint{Name: "vel"}))
	assert.Equal(t, 0, b.Tags().Len(), "original is untouched")
	assert.Equal(t, 1, tagged.Tags().Len())

	axis, err := tagged.WithTaggedAxis(0, tag.NewSet(tag.Axis{Label: "x"}))
	require.NoError(t, err)
	assert.Equal(t, 1, axis.Axes()[0].Len())

	_, err = tagged.WithTaggedAxis(5, tag.NewSet(tag.Axis{Label: "x"}))
	assert.ErrorContains(t, err, "out of range")
}

func TestFromRaw(t *testing.T) {
	r, err := NewRaw([]float64{3, 4}, 2)
	require.NoError(t, err)

	b := FromRaw(r)
	assert.Equal(t, []int{2}, b.Shape())
	assert.Equal(t, []float64{3, 4}, b.Host())
	assert.Equal(t, 0, b.Tags().Len())
	assert.Len(t, b.Axes(), 1)

	_, err = NewRaw([]float64{1}, 3)
	assert.ErrorContains(t, err, "does not match shape")
}
