package passage

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func truncateFile(t *testing.T, path string, size int64) {
	t.Helper()
	require.NoError(t, os.Truncate(path, size))
}

func TestCreateAppendFinalizeOpenRead(t *testing.T) {
	dir := t.TempDir()

	s, err := Create(dir, "idx")
	require.NoError(t, err)

	n0, err := s.Append("a", "the cat sits on the mat", Metadata{"tag": "pinned"})
	require.NoError(t, err)
	assert.Equal(t, uint32(0), n0)

	n1, err := s.Append("b", "dogs bark at night", nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), n1)

	require.NoError(t, s.Finalize())
	require.NoError(t, s.Close())

	r, err := OpenRead(dir, "idx")
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, 2, r.Len())

	p, err := r.GetByNode(0)
	require.NoError(t, err)
	assert.Equal(t, "a", p.ID)
	assert.Equal(t, "the cat sits on the mat", p.Text)
	assert.Equal(t, "pinned", p.Metadata["tag"])

	byID, err := r.GetByID("b")
	require.NoError(t, err)
	assert.Equal(t, uint32(1), n1)
	assert.Equal(t, "dogs bark at night", byID.Text)

	assert.True(t, r.HasID("a"))
	assert.False(t, r.HasID("z"))
}

func TestAppend_DuplicateIDRejected(t *testing.T) {
	dir := t.TempDir()
	s, err := Create(dir, "idx")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Append("a", "text one", nil)
	require.NoError(t, err)

	_, err = s.Append("a", "text two", nil)
	require.Error(t, err)
}

func TestGetByNode_OutOfRange(t *testing.T) {
	dir := t.TempDir()
	s, err := Create(dir, "idx")
	require.NoError(t, err)
	_, err = s.Append("a", "text", nil)
	require.NoError(t, err)
	require.NoError(t, s.Finalize())
	defer s.Close()

	_, err = s.GetByNode(5)
	assert.Error(t, err)
}

func TestIter_VisitsInNodeOrder(t *testing.T) {
	dir := t.TempDir()
	s, err := Create(dir, "idx")
	require.NoError(t, err)
	for _, id := range []string{"a", "b", "c"} {
		_, err := s.Append(id, "text-"+id, nil)
		require.NoError(t, err)
	}
	require.NoError(t, s.Finalize())
	defer s.Close()

	var order []string
	require.NoError(t, s.Iter(func(node uint32, p Passage) error {
		assert.Equal(t, int(node), len(order))
		order = append(order, p.ID)
		return nil
	}))
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestOpenRead_CorruptIndexLength(t *testing.T) {
	dir := t.TempDir()
	s, err := Create(dir, "idx")
	require.NoError(t, err)
	_, err = s.Append("a", "text", nil)
	require.NoError(t, err)
	require.NoError(t, s.Finalize())
	require.NoError(t, s.Close())

	_, idxPath := Paths(dir, "idx")
	// Truncate the index file so its length no longer matches N.
	truncateFile(t, idxPath, 10)

	_, err = OpenRead(dir, "idx")
	assert.Error(t, err)
}
