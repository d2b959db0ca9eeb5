// Package backend defines the pluggable ANN graph engine interface that
// backend/hnsw and backend/vamana implement. The searcher and builder only
// ever talk to a Backend value, never to a concrete graph type, so new
// graph algorithms can be added without touching the query pipeline.
package backend

import "context"

// Vector is a dense embedding.
type Vector []float32

// VectorSource yields embeddings in node-index order during a build. It is
// the backend's only way to see vector data; backends never read the
// passage store or call the embedding provider directly.
type VectorSource interface {
	// Next returns the next vector, or ok=false once exhausted.
	Next() (v Vector, ok bool, err error)
	// Len returns the total number of vectors the source will yield.
	Len() int
}

// CandidateExpander resolves a batch of node indices to their embeddings
// during search. The searcher supplies the concrete implementation: a
// direct mmap read in non-recompute mode, or an LRU-cached provider call in
// recompute mode. Entries the expander could not resolve (for example a
// node whose passage or blob record cannot be read) are omitted from the
// result; a failed provider call returns an error for the batch. The
// expander does not apply the pre-filter: backends apply SearchParams.Allow
// when admitting nodes to their results.
type CandidateExpander func(ctx context.Context, nodes []uint32) (map[uint32]Vector, error)

// AllowFunc reports whether node n passes the searcher's pre-filter
// predicate. A nil AllowFunc allows everything.
type AllowFunc func(n uint32) bool

// DistanceFunc computes the configured distance metric between two
// vectors; smaller is closer.
type DistanceFunc func(a, b Vector) float32

// BuildParams carries the construction parameters common to every backend.
// Backend-specific fields live in each backend's own Options type, passed
// separately to its constructor.
type BuildParams struct {
	Dimension int
	Distance  DistanceFunc
	// RandomSeed makes layer/out-degree draws reproducible, required for
	// the idempotent-rebuild property.
	RandomSeed int64
}

// SearchParams carries the parameters common to a single search call.
type SearchParams struct {
	K         int
	EFSearch  int // beam width (HNSW ef, Vamana candidate list size); <= 0 uses the backend default
	Alpha     float64
	Allow     AllowFunc
	BatchSize int // candidate_expander batch size, 64-256 per spec
}

// Result is one ranked hit from a backend search.
type Result struct {
	Node     uint32
	Distance float32
}

// Backend is the interface both graph engines implement.
type Backend interface {
	// Build constructs a graph from vectors and writes it to path.
	Build(ctx context.Context, path string, vectors VectorSource, params BuildParams) error

	// Open loads a previously built graph file for searching. The
	// returned Backend's Search method becomes usable; Build is not
	// expected to be called again on it.
	Open(path string) (Backend, error)

	// Search runs a single query against an opened graph.
	Search(ctx context.Context, query Vector, params SearchParams, expand CandidateExpander) ([]Result, bool, error)

	// Close releases any open file handles (e.g. an mmap).
	Close() error
}
