package vamana

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ngmks/LEANN/backend"
	"github.com/ngmks/LEANN/internal/distfn"
)

type sliceSource struct {
	vecs [][]float32
	pos  int
}

func (s *sliceSource) Next() (backend.Vector, bool, error) {
	if s.pos >= len(s.vecs) {
		return nil, false, nil
	}
	v := s.vecs[s.pos]
	s.pos++
	return backend.Vector(v), true, nil
}

func (s *sliceSource) Len() int { return len(s.vecs) }

func expanderFor(vecs [][]float32) backend.CandidateExpander {
	return func(ctx context.Context, nodes []uint32) (map[uint32]backend.Vector, error) {
		out := make(map[uint32]backend.Vector, len(nodes))
		for _, n := range nodes {
			if int(n) < len(vecs) {
				out[n] = backend.Vector(vecs[n])
			}
		}
		return out, nil
	}
}

func fixtureVectors() [][]float32 {
	return [][]float32{
		{1, 0, 0, 0},
		{0.9, 0.1, 0, 0},
		{0, 1, 0, 0},
		{0, 0.9, 0.1, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
}

func buildAndOpen(t *testing.T, vecs [][]float32) *Vamana {
	dir := t.TempDir()
	path := filepath.Join(dir, "idx.vamana")

	v := New(WithR(4), WithLBuild(16), WithAlpha(1.2))
	require.NoError(t, v.Build(context.Background(), path, &sliceSource{vecs: vecs}, backend.BuildParams{
		Dimension:  len(vecs[0]),
		Distance:   func(a, b backend.Vector) float32 { return distfn.CosineDistance(a, b) },
		RandomSeed: 1,
	}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	opened, err := v.Open(path)
	require.NoError(t, err)
	vv := opened.(*Vamana)
	vv.WithDistance(func(a, b backend.Vector) float32 { return distfn.CosineDistance(a, b) })
	return vv
}

func TestBuildOpenSearch_ExactMatchReturnsClosest(t *testing.T) {
	vecs := fixtureVectors()
	vv := buildAndOpen(t, vecs)
	defer vv.Close()

	results, partial, err := vv.Search(context.Background(), backend.Vector{1, 0, 0, 0}, backend.SearchParams{K: 2}, expanderFor(vecs))
	require.NoError(t, err)
	assert.False(t, partial)
	require.Len(t, results, 2)
	assert.Equal(t, uint32(0), results[0].Node)
}

func TestSearch_RespectsAllowFilter(t *testing.T) {
	vecs := fixtureVectors()
	vv := buildAndOpen(t, vecs)
	defer vv.Close()

	allow := func(n uint32) bool { return n != 0 }
	results, _, err := vv.Search(context.Background(), backend.Vector{1, 0, 0, 0}, backend.SearchParams{K: 3, Allow: allow}, expanderFor(vecs))
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, uint32(0), r.Node)
	}
}

func TestSearch_TiesBreakByAscendingNodeIndex(t *testing.T) {
	vecs := [][]float32{{1, 0}, {1, 0}, {1, 0}}
	vv := buildAndOpen(t, vecs)
	defer vv.Close()

	results, _, err := vv.Search(context.Background(), backend.Vector{1, 0}, backend.SearchParams{K: 3}, expanderFor(vecs))
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []uint32{0, 1, 2}, []uint32{results[0].Node, results[1].Node, results[2].Node})
}

func TestSearch_BeforeOpenForSearchErrors(t *testing.T) {
	v := New()
	_, _, err := v.Search(context.Background(), backend.Vector{1, 0}, backend.SearchParams{K: 1}, expanderFor(nil))
	assert.Error(t, err)
}

func TestEntryPoint_ZeroBeforeOpen(t *testing.T) {
	v := New()
	assert.Equal(t, uint32(0), v.EntryPoint())
}
