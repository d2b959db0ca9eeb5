package searcher

import (
	"time"

	"github.com/ngmks/LEANN/filter"
)

// SortBy selects the searcher's post-sort behavior (spec 4.4 step 5). The
// date orders re-sort only the top_k_rescore candidates the beam returned;
// passages outside the beam are never considered, so this is not a
// temporally-aware search.
type SortBy int

const (
	SortByRelevance SortBy = iota
	SortByDateDesc
	SortByDateAsc
)

// SearchOptions overrides the searcher's per-query behavior. The zero
// value means "use the searcher's defaults". RetryMax is not read by
// Search: the retry budget for the query embedding and recompute batches
// is always the Options.RetryMax given at Open.
type SearchOptions struct {
	EFSearch      int
	Alpha         float64
	SortBy        SortBy
	Filters       filter.FilterSet
	DateFrom      time.Time
	DateTo        time.Time
	TopKRescore   int
	Timeout       time.Duration
	RetryMax      int
	BatchSize     int
}

// Options configures a Searcher at Open time.
type Options struct {
	CacheCapacity int // recompute-mode LRU cache size, in vectors
	BatchSize     int // candidate_expander batch size, 64-256 per spec
	RetryMax      int
}

// DefaultOptions mirrors the batch sizing spec 4.4 names explicitly.
var DefaultOptions = Options{
	CacheCapacity: 4096,
	BatchSize:     128,
	RetryMax:      3,
}

// Option mutates Options.
type Option func(*Options)

func WithCacheCapacity(n int) Option { return func(o *Options) { o.CacheCapacity = n } }
func WithBatchSize(n int) Option     { return func(o *Options) { o.BatchSize = n } }
func WithRetryMax(n int) Option      { return func(o *Options) { o.RetryMax = n } }

func resolve(opts ...Option) Options {
	o := DefaultOptions
	for _, fn := range opts {
		fn(&o)
	}
	return o
}
