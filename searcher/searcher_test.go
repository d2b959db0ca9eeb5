package searcher

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ngmks/LEANN"
	"github.com/ngmks/LEANN/builder"
	"github.com/ngmks/LEANN/filter"
	"github.com/ngmks/LEANN/manifest"
	"github.com/ngmks/LEANN/testutil"
)

type fixture struct {
	id   string
	text string
	tag  string
	ts   string
}

func fixtures() []fixture {
	return []fixture{
		{"a", "the cat sits on the mat", "animal", "2026-01-01T00:00:00Z"},
		{"b", "dogs bark loudly at night", "animal", "2026-02-01T00:00:00Z"},
		{"c", "stock markets rallied sharply today", "finance", "2026-03-01T00:00:00Z"},
		{"d", "bond yields fell this afternoon", "finance", "2026-04-01T00:00:00Z"},
	}
}

func seededProvider() *testutil.MockProvider {
	p := testutil.NewMockProvider("mock-v1", 4, true)
	for i, f := range fixtures() {
		p.SetOneHot(0, f.text, i)
	}
	return p
}

func buildIndex(t *testing.T, recompute bool) (string, *testutil.MockProvider) {
	t.Helper()
	dir := t.TempDir()
	p := seededProvider()

	docs := make([]builder.Document, len(fixtures()))
	for i, f := range fixtures() {
		docs[i] = builder.Document{ID: f.id, Text: f.text, Metadata: map[string]any{"tag": f.tag, "timestamp": f.ts}}
	}

	b := builder.New(dir, "idx", p, builder.Params{
		Backend: manifest.BackendHNSW, Dimension: 4, Metric: manifest.MetricCosine,
		RandomSeed: 1, Recompute: recompute,
	})
	_, err := b.Build(context.Background(), builder.NewSliceSource(docs))
	require.NoError(t, err)
	return dir, p
}

func TestSearch_ExactMatchRetrieval(t *testing.T) {
	dir, p := buildIndex(t, false)
	s, err := Open(dir, "idx", p)
	require.NoError(t, err)
	defer s.Close()

	resp, err := s.Search(context.Background(), "the cat sits on the mat", 1, SearchOptions{})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "a", resp.Results[0].Passage.ID)
}

func TestSearch_RecomputeModeMatchesBlobMode(t *testing.T) {
	dirBlob, pBlob := buildIndex(t, false)
	sBlob, err := Open(dirBlob, "idx", pBlob)
	require.NoError(t, err)
	defer sBlob.Close()

	dirRecompute, pRecompute := buildIndex(t, true)
	sRecompute, err := Open(dirRecompute, "idx", pRecompute)
	require.NoError(t, err)
	defer sRecompute.Close()

	respBlob, err := sBlob.Search(context.Background(), "dogs bark loudly at night", 2, SearchOptions{})
	require.NoError(t, err)
	respRecompute, err := sRecompute.Search(context.Background(), "dogs bark loudly at night", 2, SearchOptions{})
	require.NoError(t, err)

	require.Len(t, respBlob.Results, len(respRecompute.Results))
	for i := range respBlob.Results {
		assert.Equal(t, respBlob.Results[i].Passage.ID, respRecompute.Results[i].Passage.ID)
	}
}

func TestSearch_MetadataFilterRestrictsResults(t *testing.T) {
	dir, p := buildIndex(t, false)
	s, err := Open(dir, "idx", p)
	require.NoError(t, err)
	defer s.Close()

	resp, err := s.Search(context.Background(), "stock markets rallied sharply today", 4, SearchOptions{
		Filters: filter.FilterSet{Filters: []filter.Filter{{Key: "tag", Op: filter.OpEqual, Value: "finance"}}},
	})
	require.NoError(t, err)
	for _, r := range resp.Results {
		assert.Equal(t, "finance", r.Metadata["tag"])
	}
}

func TestSearch_SparseFilterFallsBackToBruteForce(t *testing.T) {
	dir := t.TempDir()
	p := testutil.NewMockProvider("mock-v1", 4, true)

	docs := make([]builder.Document, 0, 200)
	for i := 0; i < 200; i++ {
		text := fmt.Sprintf("filler passage number %d", i)
		tag := "common"
		if i == 150 {
			tag = "rare"
		}
		p.SetOneHot(0, text, i%4)
		docs = append(docs, builder.Document{ID: fmt.Sprintf("doc%d", i), Text: text, Metadata: map[string]any{"tag": tag}})
	}

	b := builder.New(dir, "idx", p, builder.Params{Backend: manifest.BackendHNSW, Dimension: 4, Metric: manifest.MetricCosine, RandomSeed: 1})
	_, err := b.Build(context.Background(), builder.NewSliceSource(docs))
	require.NoError(t, err)

	s, err := Open(dir, "idx", p)
	require.NoError(t, err)
	defer s.Close()

	resp, err := s.Search(context.Background(), docs[150].Text, 5, SearchOptions{
		Filters: filter.FilterSet{Filters: []filter.Filter{{Key: "tag", Op: filter.OpEqual, Value: "rare"}}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "rare", resp.Results[0].Metadata["tag"])
	assert.Equal(t, "brute_force", resp.Reason)
}

func TestSearch_ProviderTransientExhaustedReturnsError(t *testing.T) {
	dir, p := buildIndex(t, false)
	p.FailTransientEvery(1, 0)

	s, err := Open(dir, "idx", p, WithRetryMax(1))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Search(context.Background(), "the cat sits on the mat", 1, SearchOptions{})
	assert.Error(t, err)
}

func TestSearch_RecomputeBatchFailurePartial(t *testing.T) {
	ctx := context.Background()
	query := "the cat sits on the mat"

	// Build two independent indices from identical inputs (same fixed
	// RandomSeed, same documents, same provider vectors): both the HNSW
	// build and the search that follows are fully deterministic, so the
	// two providers see an identical Encode call sequence. The first
	// index calibrates how many calls an uninjected search takes; the
	// second then fails exactly the last call of that sequence. A graph
	// search's final Encode call is always part of the layer-0
	// candidate-expansion loop (entry-point resolution and any upper-
	// layer descent happen earlier), which treats a failed batch as a
	// dropped frontier segment rather than a hard error - so failing it
	// alone should yield a non-empty, partial result rather than an
	// outright failure.
	dirA, pA := buildIndex(t, true)
	sA, err := Open(dirA, "idx", pA, WithRetryMax(0))
	require.NoError(t, err)
	before := pA.CallCount()
	calibration, err := sA.Search(ctx, query, 4, SearchOptions{})
	require.NoError(t, err)
	require.False(t, calibration.Partial)
	totalCalls := pA.CallCount() - before
	require.GreaterOrEqual(t, totalCalls, 2)
	sA.Close()

	dirB, pB := buildIndex(t, true)
	buildCalls := pB.CallCount()
	pB.FailTransientEvery(buildCalls+totalCalls, 0)

	sB, err := Open(dirB, "idx", pB, WithRetryMax(0))
	require.NoError(t, err)
	defer sB.Close()

	resp, err := sB.Search(ctx, query, 4, SearchOptions{})
	require.NoError(t, err)
	assert.True(t, resp.Partial)
	assert.Equal(t, "provider_transient_exhausted", resp.Reason)
	assert.NotEmpty(t, resp.Results)
}

func TestSearch_HybridRescoreAlphaBlendsWithinBounds(t *testing.T) {
	dir, p := buildIndex(t, false)
	s, err := Open(dir, "idx", p)
	require.NoError(t, err)
	defer s.Close()

	resp, err := s.Search(context.Background(), "stock markets rallied sharply today", 4, SearchOptions{Alpha: 0.5})
	require.NoError(t, err)
	for _, r := range resp.Results {
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
	}
}

func TestSearch_DateRangeFilter(t *testing.T) {
	dir, p := buildIndex(t, false)
	s, err := Open(dir, "idx", p)
	require.NoError(t, err)
	defer s.Close()

	p.SetOneHot(0, "today", 2)
	from := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)
	resp, err := s.Search(context.Background(), "today", 4, SearchOptions{DateFrom: from})
	require.NoError(t, err)
	for _, r := range resp.Results {
		ts, ok := filter.Timestamp(r.Metadata)
		require.True(t, ok)
		assert.True(t, !ts.Before(from))
	}
}

func TestSearch_SortByDateDesc(t *testing.T) {
	dir, p := buildIndex(t, false)
	s, err := Open(dir, "idx", p)
	require.NoError(t, err)
	defer s.Close()

	p.SetOneHot(0, "today", 2)
	resp, err := s.Search(context.Background(), "today", 4, SearchOptions{SortBy: SortByDateDesc})
	require.NoError(t, err)
	for i := 1; i < len(resp.Results); i++ {
		prev, _ := filter.Timestamp(resp.Results[i-1].Metadata)
		curr, _ := filter.Timestamp(resp.Results[i].Metadata)
		assert.True(t, !prev.Before(curr))
	}
}

func TestOpen_ModelMismatchRejected(t *testing.T) {
	dir, _ := buildIndex(t, false)
	wrong := testutil.NewMockProvider("different-model", 4, true)
	_, err := Open(dir, "idx", wrong)
	assert.Error(t, err)
}

func TestSearch_ZeroKReturnsEmptyWithoutProviderCall(t *testing.T) {
	dir, p := buildIndex(t, false)
	s, err := Open(dir, "idx", p)
	require.NoError(t, err)
	defer s.Close()

	before := p.CallCount()
	resp, err := s.Search(context.Background(), "the cat sits on the mat", 0, SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Equal(t, before, p.CallCount())
}

func TestSearch_NegativeKRejected(t *testing.T) {
	dir, p := buildIndex(t, false)
	s, err := Open(dir, "idx", p)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Search(context.Background(), "the cat sits on the mat", -1, SearchOptions{})
	assert.Error(t, err)
	assert.Equal(t, leann.KindInvalidInput, leann.KindOf(err))
}

func TestSearch_EmptyQueryTextRejectedUnlessPureLexical(t *testing.T) {
	dir, p := buildIndex(t, false)
	s, err := Open(dir, "idx", p)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Search(context.Background(), "", 4, SearchOptions{})
	assert.Error(t, err)
	assert.Equal(t, leann.KindInvalidInput, leann.KindOf(err))

	resp, err := s.Search(context.Background(), "", 4, SearchOptions{Alpha: 1})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestHealth_ReportsOKOnFreshIndex(t *testing.T) {
	dir, p := buildIndex(t, false)
	s, err := Open(dir, "idx", p)
	require.NoError(t, err)
	defer s.Close()
	assert.NoError(t, s.Health())
}

func TestWarmup_BuildsBM25Sidecar(t *testing.T) {
	dir, p := buildIndex(t, false)
	s, err := Open(dir, "idx", p)
	require.NoError(t, err)
	defer s.Close()
	assert.NoError(t, s.Warmup(context.Background()))
}
