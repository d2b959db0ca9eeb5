package pqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinHeap_PopsAscending(t *testing.T) {
	q := NewMin(4)
	for _, d := range []float32{5, 1, 3, 2, 4} {
		q.Push(Item{Node: uint32(d), Distance: d})
	}
	require.Equal(t, 5, q.Len())

	var got []float32
	for q.Len() > 0 {
		it, ok := q.Pop()
		require.True(t, ok)
		got = append(got, it.Distance)
	}
	assert.Equal(t, []float32{1, 2, 3, 4, 5}, got)
}

func TestMaxHeap_PopsDescending(t *testing.T) {
	q := NewMax(4)
	for _, d := range []float32{5, 1, 3, 2, 4} {
		q.Push(Item{Node: uint32(d), Distance: d})
	}

	var got []float32
	for q.Len() > 0 {
		it, ok := q.Pop()
		require.True(t, ok)
		got = append(got, it.Distance)
	}
	assert.Equal(t, []float32{5, 4, 3, 2, 1}, got)
}

func TestQueue_Top_DoesNotRemove(t *testing.T) {
	q := NewMin(2)
	q.Push(Item{Node: 1, Distance: 2})
	top, ok := q.Top()
	require.True(t, ok)
	assert.Equal(t, float32(2), top.Distance)
	assert.Equal(t, 1, q.Len())
}

func TestQueue_PopEmpty(t *testing.T) {
	q := NewMin(0)
	_, ok := q.Pop()
	assert.False(t, ok)
	_, ok = q.Top()
	assert.False(t, ok)
	_, ok = q.Min()
	assert.False(t, ok)
}

func TestQueue_Reset(t *testing.T) {
	q := NewMin(2)
	q.Push(Item{Node: 1, Distance: 1})
	q.Push(Item{Node: 2, Distance: 2})
	q.Reset()
	assert.Equal(t, 0, q.Len())
	q.Push(Item{Node: 3, Distance: 3})
	top, ok := q.Top()
	require.True(t, ok)
	assert.Equal(t, uint32(3), top.Node)
}

func TestMaxHeap_Min_LinearScan(t *testing.T) {
	q := NewMax(4)
	q.Push(Item{Node: 1, Distance: 5})
	q.Push(Item{Node: 2, Distance: 1})
	q.Push(Item{Node: 3, Distance: 3})

	min, ok := q.Min()
	require.True(t, ok)
	assert.Equal(t, uint32(2), min.Node)
}

func TestQueue_Items_ReflectsContents(t *testing.T) {
	q := NewMin(2)
	q.Push(Item{Node: 1, Distance: 1})
	q.Push(Item{Node: 2, Distance: 2})
	assert.Len(t, q.Items(), 2)
}
