package distfn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDot(t *testing.T) {
	assert.Equal(t, float32(11), Dot([]float32{1, 2}, []float32{3, 4}))
}

func TestNorm(t *testing.T) {
	assert.InDelta(t, 5.0, Norm([]float32{3, 4}), 1e-6)
}

func TestSquaredL2(t *testing.T) {
	assert.InDelta(t, 8.0, SquaredL2([]float32{0, 0}, []float32{2, 2}), 1e-6)
}

func TestCosineDistance_IdenticalVectorsAreZero(t *testing.T) {
	v := []float32{1, 2, 3}
	assert.InDelta(t, 0.0, CosineDistance(v, v), 1e-5)
}

func TestCosineDistance_OrthogonalIsOne(t *testing.T) {
	assert.InDelta(t, 1.0, CosineDistance([]float32{1, 0}, []float32{0, 1}), 1e-6)
}

func TestCosineDistance_ZeroNormIsMaximallyDistant(t *testing.T) {
	assert.Equal(t, float32(2), CosineDistance([]float32{0, 0}, []float32{1, 1}))
	assert.Equal(t, float32(2), CosineDistance([]float32{0, 0}, []float32{0, 0}))
}

func TestDotDistance_NegatesDotProduct(t *testing.T) {
	assert.Equal(t, float32(-11), DotDistance([]float32{1, 2}, []float32{3, 4}))
}

func TestFunc_KnownMetrics(t *testing.T) {
	for _, m := range []Metric{MetricCosine, MetricL2, MetricDot} {
		fn, ok := Func(m)
		assert.True(t, ok, "metric %q should resolve", m)
		assert.NotNil(t, fn)
	}
}

func TestFunc_UnknownMetric(t *testing.T) {
	fn, ok := Func(Metric("bogus"))
	assert.False(t, ok)
	assert.Nil(t, fn)
}

func TestSquaredL2_MatchesSquaredEuclidean(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{4, 6, 3}
	want := float32(math.Pow(float64(4-1), 2) + math.Pow(float64(6-2), 2) + math.Pow(float64(3-3), 2))
	assert.InDelta(t, want, SquaredL2(a, b), 1e-5)
}
