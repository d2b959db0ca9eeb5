package builder

import "github.com/ngmks/LEANN/manifest"

// DuplicatePolicy controls how Build reacts to an id collision during
// ingest, per the DuplicateId error-kind table: skip (idempotent rebuild)
// or abort (strict).
type DuplicatePolicy int

const (
	DuplicateSkip DuplicatePolicy = iota
	DuplicateAbort
)

// Params configures a single Build call. Dimension and Metric must agree
// with the provider passed to New; the model id is taken from the provider.
type Params struct {
	Backend   manifest.Backend
	Metric    manifest.Metric
	Dimension int

	Recompute bool
	Compact   bool
	Prune     bool

	BatchSize int
	Workers   int
	RetryMax  int

	RandomSeed int64

	DuplicatePolicy DuplicatePolicy

	HNSW   HNSWParams
	Vamana VamanaParams

	QueryPromptTemplate    string
	DocumentPromptTemplate string
}

// HNSWParams mirrors backend/hnsw's construction options so the builder
// doesn't force callers to import the backend package directly.
type HNSWParams struct {
	M               int
	EFConstruction  int
	EFSearchDefault int
	Heuristic       bool
}

// VamanaParams mirrors backend/vamana's construction options.
type VamanaParams struct {
	R      int
	LBuild int
	Alpha  float64
}

// DefaultParams mirrors the backends' own defaults, with HNSW selected
// since it is spec's mandatory backend.
var DefaultParams = Params{
	Backend:   manifest.BackendHNSW,
	Metric:    manifest.MetricCosine,
	BatchSize: 128,
	Workers:   4,
	RetryMax:  3,
	HNSW:      HNSWParams{M: 16, EFConstruction: 200, EFSearchDefault: 64, Heuristic: true},
	Vamana:    VamanaParams{R: 32, LBuild: 64, Alpha: 1.2},
}

func resolveParams(p Params) Params {
	d := DefaultParams
	if p.Backend != "" {
		d.Backend = p.Backend
	}
	if p.Metric != "" {
		d.Metric = p.Metric
	}
	d.Dimension = p.Dimension
	d.Recompute = p.Recompute
	d.Compact = p.Compact
	d.Prune = p.Prune
	if p.BatchSize > 0 {
		d.BatchSize = p.BatchSize
	}
	if p.Workers > 0 {
		d.Workers = p.Workers
	}
	if p.RetryMax > 0 {
		d.RetryMax = p.RetryMax
	}
	d.RandomSeed = p.RandomSeed
	d.DuplicatePolicy = p.DuplicatePolicy
	if p.HNSW.M > 0 {
		d.HNSW = p.HNSW
	}
	if p.Vamana.R > 0 {
		d.Vamana = p.Vamana
	}
	d.QueryPromptTemplate = p.QueryPromptTemplate
	d.DocumentPromptTemplate = p.DocumentPromptTemplate
	return d
}
