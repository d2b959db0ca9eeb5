// Package distfn implements the vector distance functions the backends and
// searcher use to rank candidates. Dot products and norms are computed with
// gonum's BLAS Level-1 routines rather than hand-rolled loops.
package distfn

import (
	"gonum.org/v1/gonum/blas/blas32"
)

func vec(v []float32) blas32.Vector {
	return blas32.Vector{N: len(v), Inc: 1, Data: v}
}

// Dot returns the dot product of a and b. Panics if len(a) != len(b), same
// as the underlying BLAS call.
func Dot(a, b []float32) float32 {
	return blas32.Dot(vec(a), vec(b))
}

// Norm returns the Euclidean (L2) norm of v.
func Norm(v []float32) float32 {
	return blas32.Nrm2(vec(v))
}

// SquaredL2 returns the squared Euclidean distance between a and b. Used in
// preference to Euclidean distance wherever only relative ordering matters,
// since it avoids a sqrt per comparison.
func SquaredL2(a, b []float32) float32 {
	diff := make([]float32, len(a))
	copy(diff, a)
	dst := vec(diff)
	// diff = -1*b + diff  (diff started as a copy of a)
	blas32.Axpy(-1, vec(b), dst)
	return blas32.Dot(dst, dst)
}

// CosineDistance returns 1 - cosine_similarity(a, b), so that smaller values
// mean more similar, matching the convention of the other distance
// functions. Vectors with zero norm are treated as maximally distant from
// everything, including each other.
func CosineDistance(a, b []float32) float32 {
	na, nb := Norm(a), Norm(b)
	if na == 0 || nb == 0 {
		return 2
	}
	return 1 - Dot(a, b)/(na*nb)
}

// DotDistance returns the negative dot product, used when vectors are known
// to already be unit-normalized (so dot product alone ranks identically to
// cosine similarity) and the normalization divide can be skipped.
func DotDistance(a, b []float32) float32 {
	return -Dot(a, b)
}

// Metric identifies a distance function by name. The searcher resolves the
// manifest's recorded metric through Func; it does not check the
// provider's vectors against the metric.
type Metric string

const (
	MetricCosine Metric = "cosine"
	MetricL2     Metric = "l2"
	MetricDot    Metric = "dot"
)

// Func returns the distance function for a named metric, and whether the
// name was recognized.
func Func(m Metric) (func(a, b []float32) float32, bool) {
	switch m {
	case MetricCosine:
		return CosineDistance, true
	case MetricL2:
		return SquaredL2, true
	case MetricDot:
		return DotDistance, true
	default:
		return nil, false
	}
}
