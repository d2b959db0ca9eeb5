// Package searcher implements the query pipeline: embed the query once,
// compute a pre-filter predicate, run beam search against the configured
// backend through a candidate expander, optionally hybrid-rescore with
// BM25, post-sort, and assemble passages for the response.
package searcher

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/ngmks/LEANN"
	"github.com/ngmks/LEANN/backend"
	"github.com/ngmks/LEANN/backend/hnsw"
	"github.com/ngmks/LEANN/backend/vamana"
	"github.com/ngmks/LEANN/embedding"
	"github.com/ngmks/LEANN/filter"
	"github.com/ngmks/LEANN/internal/distfn"
	"github.com/ngmks/LEANN/internal/mmapfile"
	"github.com/ngmks/LEANN/lexical/bm25"
	"github.com/ngmks/LEANN/manifest"
	"github.com/ngmks/LEANN/passage"
)

// Result is a single ranked hit.
type Result struct {
	Passage  passage.Passage
	Distance float32
	Score    float64
	Metadata map[string]any
}

// Response is the outcome of a Search call. Reason records why the
// ordinary graph-search path wasn't taken: "provider_transient_exhausted"
// when Partial is true after retries were exhausted mid-search, or
// "brute_force" when the pre-filter's selectivity was low enough to scan
// the allowed set directly instead of the graph.
type Response struct {
	Results []Result
	Partial bool
	Reason  string
}

// Searcher answers queries against a finalized index directory. It owns
// read-only file handles for the lifetime of the process; Close releases
// them.
type Searcher struct {
	dir, name string
	opts      Options
	meta      *manifest.Meta
	provider  embedding.Provider
	logger    *leann.Logger
	metrics   leann.MetricsCollector

	passages  *passage.Store
	backendH  backend.Backend
	embBlob   *mmapfile.File
	filterIdx *filter.Index
	bm25Idx   *bm25.Index
	bm25Ready bool

	dimension int
	recompute bool
	dist      backend.DistanceFunc

	cache *vectorLRU
}

// Open opens a finalized index directory for searching. provider must
// match the manifest's recorded model_id exactly; a mismatch returns
// leann.ErrModelMismatch.
func Open(dir, name string, provider embedding.Provider, opts ...Option) (*Searcher, error) {
	o := resolve(opts...)

	meta, err := manifest.Load(dir, name)
	if err != nil {
		return nil, err
	}
	if err := meta.CheckModelID(provider.ModelID()); err != nil {
		return nil, err
	}

	passages, err := passage.OpenRead(dir, name)
	if err != nil {
		return nil, fmt.Errorf("searcher: open passages: %w", err)
	}

	distFn, ok := distfn.Func(distfn.Metric(meta.Metric))
	if !ok {
		passages.Close()
		return nil, leann.NewError(leann.KindCorrupt, fmt.Sprintf("unrecognized metric %q", meta.Metric), nil)
	}
	wrapped := func(a, b backend.Vector) float32 { return distFn(a, b) }

	graphPath := dir + "/" + meta.Files.Graph
	var backendH backend.Backend
	switch meta.Backend {
	case manifest.BackendHNSW:
		opened, err := hnsw.New().Open(graphPath)
		if err != nil {
			passages.Close()
			return nil, fmt.Errorf("searcher: open graph: %w", err)
		}
		backendH = opened.(*hnsw.HNSW).WithDistance(wrapped)
	case manifest.BackendVamana:
		opened, err := vamana.New().Open(graphPath)
		if err != nil {
			passages.Close()
			return nil, fmt.Errorf("searcher: open graph: %w", err)
		}
		backendH = opened.(*vamana.Vamana).WithDistance(wrapped)
	default:
		passages.Close()
		return nil, leann.NewError(leann.KindCorrupt, fmt.Sprintf("unrecognized backend %q", meta.Backend), nil)
	}

	s := &Searcher{
		dir: dir, name: name, opts: o,
		meta: meta, provider: provider,
		logger: leann.NoopLogger(), metrics: leann.NoopMetricsCollector{},
		passages: passages, backendH: backendH,
		dimension: meta.Dimension, recompute: meta.Recompute,
		dist:  wrapped,
		cache: newVectorLRU(o.CacheCapacity),
	}

	if !meta.Recompute {
		embPath := dir + "/" + meta.Files.Embeddings
		mapped, err := mmapfile.Open(embPath)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("searcher: open embeddings: %w", err)
		}
		s.embBlob = mapped
	}

	filterIdx := filter.NewIndex(passages.Len())
	_ = passages.Iter(func(node uint32, p passage.Passage) error {
		if p.Metadata != nil {
			filterIdx.Add(node, p.Metadata)
		}
		return nil
	})
	s.filterIdx = filterIdx

	return s, nil
}

// WithLogger attaches a structured logger.
func (s *Searcher) WithLogger(l *leann.Logger) *Searcher { s.logger = l; return s }

// WithMetrics attaches a metrics collector.
func (s *Searcher) WithMetrics(m leann.MetricsCollector) *Searcher { s.metrics = m; return s }

// Close releases the searcher's open file handles.
func (s *Searcher) Close() error {
	var err error
	if s.passages != nil {
		err = s.passages.Close()
	}
	if s.backendH != nil {
		if cerr := s.backendH.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if s.embBlob != nil {
		if cerr := s.embBlob.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Warmup ensures the lexical sidecar is loaded (building it if absent),
// so the first hybrid query doesn't pay that cost inline.
func (s *Searcher) Warmup(ctx context.Context) error {
	return s.ensureBM25()
}

// Health reports a cheap liveness signal: it returns a Corrupt error when
// the passage store's count differs from the manifest's num_passages. It
// does not inspect the graph file.
func (s *Searcher) Health() error {
	if s.passages.Len() != s.meta.NumPassages {
		return leann.NewError(leann.KindCorrupt, "passage count drifted from manifest", nil)
	}
	return nil
}

func (s *Searcher) ensureBM25() error {
	if s.bm25Ready {
		return nil
	}
	idx, ok, err := bm25.Load(s.dir, s.name)
	if err != nil {
		return err
	}
	if ok && bm25.Consistent(idx, s.passages.Len()) {
		s.bm25Idx = idx
		s.bm25Ready = true
		return nil
	}

	idx = bm25.New()
	if err := s.passages.Iter(func(node uint32, p passage.Passage) error {
		idx.Add(node, p.Text)
		return nil
	}); err != nil {
		return err
	}
	if err := bm25.Save(idx, s.dir, s.name); err != nil {
		return err
	}
	s.bm25Idx = idx
	s.bm25Ready = true
	return nil
}

// Search runs the full pipeline described in spec 4.4.
func (s *Searcher) Search(ctx context.Context, queryText string, k int, opts SearchOptions) (Response, error) {
	start := timeNow()
	if k < 0 {
		return Response{}, leann.ErrInvalidInput
	}
	if k == 0 {
		return Response{}, nil
	}
	if queryText == "" {
		// Pure-lexical mode never needs a query embedding; an empty query
		// simply tokenizes to no terms, so it degrades to empty results
		// rather than InvalidInput.
		if opts.Alpha != 1 {
			return Response{}, leann.ErrInvalidInput
		}
		return Response{}, nil
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	// 1. Query embedding.
	vecs, err := embedding.EncodeWithRetry(ctx, s.provider, []string{s.prependQueryTemplate(queryText)}, embedding.KindQuery, s.opts.RetryMax, leann.DefaultBackoff)
	if err != nil {
		s.metrics.RecordSearch(k, 0, timeSince(start), false, err)
		return Response{}, err
	}
	queryVec := backend.Vector(vecs[0])

	// 2. Pre-filter set computation.
	var candidates *roaring.Bitmap
	var residual filter.FilterSet
	if len(opts.Filters.Filters) > 0 {
		candidates, residual, _ = s.filterIdx.Resolve(opts.Filters)
	}
	timeRange := filter.TimeRange{From: opts.DateFrom, To: opts.DateTo}
	lookup := func(n uint32) (map[string]any, bool) {
		p, err := s.passages.GetByNode(n)
		if err != nil {
			return nil, false
		}
		return p.Metadata, true
	}
	allow := filter.Predicate(candidates, residual, timeRange, lookup)

	topKRescore := opts.TopKRescore
	if topKRescore <= 0 {
		topKRescore = k
	}

	var (
		graphResults []backend.Result
		partial      bool
		reason       string
	)

	if candidates != nil && s.filterIdx.ShouldBruteForce(candidates) {
		graphResults, err = s.bruteForce(ctx, queryVec, topKRescore, candidates, residual, timeRange, lookup)
		if err != nil {
			s.metrics.RecordSearch(k, 0, timeSince(start), false, err)
			return Response{}, err
		}
		reason = "brute_force"
	} else {
		// 3. Graph search.
		expand := s.blobExpander
		if s.recompute {
			expand = s.recomputeExpander
		}
		batch := opts.BatchSize
		if batch <= 0 {
			batch = s.opts.BatchSize
		}
		params := backend.SearchParams{K: topKRescore, EFSearch: opts.EFSearch, Allow: allow, BatchSize: batch}
		graphResults, partial, err = s.backendH.Search(ctx, queryVec, params, expand)
		if err != nil {
			s.metrics.RecordSearch(k, 0, timeSince(start), partial, err)
			return Response{}, err
		}
		if partial {
			reason = "provider_transient_exhausted"
		}
	}

	// 4. Hybrid rescoring.
	scored := make([]Result, 0, len(graphResults))
	candidateNodes := make([]uint32, len(graphResults))
	for i, r := range graphResults {
		candidateNodes[i] = r.Node
	}

	var bm25Norm map[uint32]float64
	if opts.Alpha > 0 {
		if s.meta.Tokenizer != bm25.TokenizerID {
			return Response{}, leann.NewError(leann.KindCorrupt,
				fmt.Sprintf("index tokenizer %q differs from %q", s.meta.Tokenizer, bm25.TokenizerID), nil)
		}
		if err := s.ensureBM25(); err != nil {
			return Response{}, err
		}
		raw := s.bm25Idx.Score(queryText, candidateNodes)
		bm25Norm = bm25.NormalizeMinMax(raw, candidateNodes)
	}

	maxDist, minDist := float32(0), float32(0)
	if len(graphResults) > 0 {
		minDist, maxDist = graphResults[0].Distance, graphResults[0].Distance
		for _, r := range graphResults {
			if r.Distance < minDist {
				minDist = r.Distance
			}
			if r.Distance > maxDist {
				maxDist = r.Distance
			}
		}
	}

	for _, r := range graphResults {
		similarity := float64(1 - normalize(r.Distance, minDist, maxDist))
		score := similarity
		if opts.Alpha > 0 {
			score = (1-opts.Alpha)*similarity + opts.Alpha*bm25Norm[r.Node]
		}
		p, err := s.passages.GetByNode(r.Node)
		if err != nil {
			continue
		}
		scored = append(scored, Result{Passage: p, Distance: r.Distance, Score: score, Metadata: p.Metadata})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if scored[i].Distance != scored[j].Distance {
			return scored[i].Distance < scored[j].Distance
		}
		return false
	})

	// 5. Post-sort.
	switch opts.SortBy {
	case SortByDateDesc, SortByDateAsc:
		sort.SliceStable(scored, func(i, j int) bool {
			ti, oki := filter.Timestamp(scored[i].Metadata)
			tj, okj := filter.Timestamp(scored[j].Metadata)
			if !oki || !okj {
				return false
			}
			if opts.SortBy == SortByDateDesc {
				return ti.After(tj)
			}
			return ti.Before(tj)
		})
	}

	if len(scored) > k {
		scored = scored[:k]
	}

	s.metrics.RecordSearch(k, len(scored), timeSince(start), partial, nil)
	s.logger.LogSearch(ctx, k, len(scored), partial, reason, nil)
	return Response{Results: scored, Partial: partial, Reason: reason}, nil
}

// prependQueryTemplate applies the manifest's query_prompt_template ahead
// of the query embedding call, per spec 6's "prepend to query text before
// embedding".
func (s *Searcher) prependQueryTemplate(text string) string {
	if s.meta.QueryPromptTemplate == "" {
		return text
	}
	return s.meta.QueryPromptTemplate + text
}

// prependDocumentTemplate mirrors builder.prependDocumentTemplate so that
// recompute-mode re-embeddings of passage text match what was embedded into
// the blob at build time for the same text.
func (s *Searcher) prependDocumentTemplate(text string) string {
	if s.meta.DocumentPromptTemplate == "" {
		return text
	}
	return s.meta.DocumentPromptTemplate + text
}

func normalize(v, min, max float32) float32 {
	if max <= min {
		return 0
	}
	return (v - min) / (max - min)
}

var timeNow = time.Now

func timeSince(t time.Time) time.Duration { return time.Since(t) }
