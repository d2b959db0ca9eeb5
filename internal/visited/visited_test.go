package visited

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVisit_FirstTimeTrueThenFalse(t *testing.T) {
	s := New(8)
	assert.True(t, s.Visit(3))
	assert.False(t, s.Visit(3))
	assert.True(t, s.IsVisited(3))
	assert.False(t, s.IsVisited(4))
}

func TestVisit_GrowsBeyondInitialCapacity(t *testing.T) {
	s := New(2)
	assert.True(t, s.Visit(10))
	assert.True(t, s.IsVisited(10))
}

func TestReset_ClearsVisitedWithoutRealloc(t *testing.T) {
	s := New(4)
	s.Visit(0)
	s.Visit(1)
	assert.Equal(t, 2, s.Len())

	s.Reset()
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.IsVisited(0))
	assert.False(t, s.IsVisited(1))

	assert.True(t, s.Visit(0))
}

func TestVisited_ReturnsDirtyNodes(t *testing.T) {
	s := New(4)
	s.Visit(2)
	s.Visit(1)
	assert.Equal(t, []uint32{2, 1}, s.Visited())
}

func TestGrow_PreservesExistingState(t *testing.T) {
	s := New(2)
	s.Visit(1)
	s.Grow(16)
	assert.True(t, s.IsVisited(1))
	assert.False(t, s.IsVisited(15))
}
