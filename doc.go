// Package leann implements the LEANN retrieval engine: a graph-based ANN
// index that stores only graph topology on disk and reconstructs vector
// embeddings on demand from the source text corpus via a caller-supplied
// embedding provider.
//
// # Components
//
//   - passage: O(1) text+metadata retrieval by id or dense node index.
//   - manifest: the index's on-disk descriptor (backend kind, dimension,
//     metric, build parameters, file names, build fingerprint).
//   - backend / backend/hnsw / backend/vamana: pluggable ANN graph engines.
//   - embedding: the Provider interface the engine calls to turn text into
//     vectors; callers supply the implementation.
//   - filter: metadata and timestamp predicates with selectivity-aware
//     brute-force fallback.
//   - lexical/bm25: the hybrid lexical reranker sidecar.
//   - searcher: the query pipeline (embed, filter, beam search, hybrid
//     rescore, post-sort, assemble).
//   - builder: the ingest/embed/graph-build/finalize orchestration.
//
// # Quick start
//
//	b := builder.New("./out", "myindex", provider, builder.Params{
//	    Backend:   manifest.BackendHNSW,
//	    Dimension: 384,
//	    Metric:    manifest.MetricCosine,
//	})
//	meta, err := b.Build(ctx, builder.NewSliceSource(documents))
//
//	s, err := searcher.Open("./out", "myindex", provider)
//	resp, err := s.Search(ctx, "query text", 10, searcher.SearchOptions{})
//
// See SPEC_FULL.md and DESIGN.md at the repository root for the full
// specification this module implements and the rationale behind each
// design decision.
package leann
