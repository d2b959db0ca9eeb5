package hnsw

const (
	minimumM  = 2
	mmax0Mult = 2
)

// Options configures an HNSW build. Dimension and Distance come from
// backend.BuildParams; everything else is construction/search tuning.
type Options struct {
	M               int
	EFConstruction  int
	EFSearchDefault int
	Heuristic       bool
}

// DefaultOptions mirrors the values the corpus converges on for small to
// medium corpora.
var DefaultOptions = Options{
	M:               16,
	EFConstruction:  200,
	EFSearchDefault: 64,
	Heuristic:       true,
}

// Option mutates an Options value; New applies them over DefaultOptions.
type Option func(*Options)

// WithM sets the bidirectional link count per layer (2M at layer 0).
func WithM(m int) Option {
	return func(o *Options) { o.M = m }
}

// WithEFConstruction sets the beam width used during insertion.
func WithEFConstruction(ef int) Option {
	return func(o *Options) { o.EFConstruction = ef }
}

// WithEFSearchDefault sets the beam width Search uses when the caller
// doesn't override it per query.
func WithEFSearchDefault(ef int) Option {
	return func(o *Options) { o.EFSearchDefault = ef }
}

// WithHeuristic toggles heuristic (RNG-property) neighbor selection versus
// simple top-M selection.
func WithHeuristic(on bool) Option {
	return func(o *Options) { o.Heuristic = on }
}

func resolve(opts ...Option) Options {
	o := DefaultOptions
	for _, fn := range opts {
		fn(&o)
	}
	if o.M < minimumM {
		o.M = minimumM
	}
	return o
}
