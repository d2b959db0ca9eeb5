package vamana

// Options configures a Vamana build.
type Options struct {
	R      int     // fixed out-degree
	LBuild int     // candidate list size during greedySearch at build time
	Alpha  float64 // diversity parameter, >= 1
}

// DefaultOptions mirrors the teacher's diskann builder defaults, scaled
// down slightly since this backend's graph-only persistence targets
// smaller corpora than a disk-resident ANN index.
var DefaultOptions = Options{
	R:      32,
	LBuild: 64,
	Alpha:  1.2,
}

// Option mutates an Options value.
type Option func(*Options)

// WithR sets the fixed out-degree bound.
func WithR(r int) Option { return func(o *Options) { o.R = r } }

// WithLBuild sets the build-time candidate list size.
func WithLBuild(l int) Option { return func(o *Options) { o.LBuild = l } }

// WithAlpha sets the robust-pruning diversity parameter.
func WithAlpha(alpha float64) Option { return func(o *Options) { o.Alpha = alpha } }

func resolve(opts ...Option) Options {
	o := DefaultOptions
	for _, fn := range opts {
		fn(&o)
	}
	if o.R < 2 {
		o.R = 2
	}
	if o.Alpha < 1 {
		o.Alpha = 1
	}
	return o
}
