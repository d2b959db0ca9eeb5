package bm25

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"simple", "the cat sits on the mat", []string{"the", "cat", "sits", "on", "the", "mat"}},
		{"punctuation", "cat, mat!", []string{"cat", "mat"}},
		{"mixed case", "The CAT", []string{"the", "cat"}},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.in))
		})
	}
}

func TestIndex_AddAndScore(t *testing.T) {
	idx := New()
	idx.Add(0, "the quick brown fox")
	idx.Add(1, "jumped over the lazy dog")
	idx.Add(2, "quick brown dogs")
	idx.Add(3, "fox and dog")

	scores := idx.Score("fox", []uint32{0, 1, 2, 3})
	assert.Greater(t, scores[0], 0.0)
	assert.Greater(t, scores[3], 0.0)
	assert.Equal(t, 0.0, scores[1])
	assert.Equal(t, 0.0, scores[2])
}

func TestIndex_ScoreRestrictedToCandidates(t *testing.T) {
	idx := New()
	idx.Add(0, "fox fox fox")
	idx.Add(1, "fox")

	scores := idx.Score("fox", []uint32{1})
	_, hasZero := scores[0]
	assert.False(t, hasZero, "node 0 was never a candidate, must not appear in scores")
	assert.Greater(t, scores[1], 0.0)
}

func TestIndex_ReAddReplaces(t *testing.T) {
	idx := New()
	idx.Add(0, "fox fox fox")
	require.Equal(t, 1, idx.DocCount())
	idx.Add(0, "dog")
	assert.Equal(t, 1, idx.DocCount())

	scores := idx.Score("fox", []uint32{0})
	assert.Equal(t, 0.0, scores[0])
}

func TestNormalizeMinMax(t *testing.T) {
	scores := map[uint32]float64{1: 0, 2: 5, 3: 10}
	out := NormalizeMinMax(scores, []uint32{1, 2, 3})
	assert.Equal(t, 0.0, out[1])
	assert.Equal(t, 1.0, out[3])
	assert.Equal(t, 0.5, out[2])
}

func TestNormalizeMinMax_ConstantScoresAreZero(t *testing.T) {
	scores := map[uint32]float64{1: 3, 2: 3}
	out := NormalizeMinMax(scores, []uint32{1, 2})
	assert.Equal(t, 0.0, out[1])
	assert.Equal(t, 0.0, out[2])
}

func TestNormalizeMinMax_MissingCandidateScoresZero(t *testing.T) {
	out := NormalizeMinMax(map[uint32]float64{}, []uint32{7})
	assert.Equal(t, 0.0, out[7])
}
