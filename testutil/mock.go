// Package testutil provides a deterministic embedding.Provider for tests:
// vectors are registered explicitly per input text rather than computed,
// and failures are injected on a fixed call-count schedule rather than at
// random, so test runs reproduce exactly. It is never imported by builder
// or searcher; only by their _test.go files and other packages' tests.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/ngmks/LEANN"
	"github.com/ngmks/LEANN/embedding"
)

// MockProvider is a deterministic embedding.Provider.
type MockProvider struct {
	modelID    string
	dimension  int
	normalized bool

	mu      sync.Mutex
	vectors map[embedding.Kind]map[string][]float32
	calls   int

	failEveryNCalls     int
	failPermanentAfter  int
	consecutiveFailures int
}

// NewMockProvider creates a provider that reports modelID/dimension/
// normalized but has no vectors registered yet; register them with
// SetVector or SetOneHot before use.
func NewMockProvider(modelID string, dimension int, normalized bool) *MockProvider {
	return &MockProvider{
		modelID: modelID, dimension: dimension, normalized: normalized,
		vectors: map[embedding.Kind]map[string][]float32{
			embedding.KindDocument: make(map[string][]float32),
			embedding.KindQuery:    make(map[string][]float32),
		},
	}
}

func (m *MockProvider) ModelID() string  { return m.modelID }
func (m *MockProvider) Dimension() int   { return m.dimension }
func (m *MockProvider) Normalized() bool { return m.normalized }

// SetVector registers the vector Encode returns for text under kind.
func (m *MockProvider) SetVector(kind embedding.Kind, text string, vec []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors[kind][text] = vec
}

// SetOneHot registers a unit vector at index for text under kind, the
// fixture shape the exact-match-retrieval scenario uses.
func (m *MockProvider) SetOneHot(kind embedding.Kind, text string, index int) {
	vec := make([]float32, m.dimension)
	vec[index] = 1
	m.SetVector(kind, text, vec)
}

// FailTransientEvery makes every nth Encode call (1-indexed, across both
// kinds) return a Transient error. After permanentAfter consecutive
// injected failures it switches to Permanent, simulating an outage that
// outlasts the caller's retry budget. n<=0 disables injection.
func (m *MockProvider) FailTransientEvery(n, permanentAfter int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failEveryNCalls = n
	m.failPermanentAfter = permanentAfter
}

// CallCount reports how many Encode calls have been made, for assertions
// about batching and retry behavior.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockProvider) Encode(ctx context.Context, texts []string, kind embedding.Kind) ([][]float32, error) {
	m.mu.Lock()
	m.calls++
	inject := m.failEveryNCalls > 0 && m.calls%m.failEveryNCalls == 0
	if inject {
		m.consecutiveFailures++
	} else {
		m.consecutiveFailures = 0
	}
	permanent := inject && m.failPermanentAfter > 0 && m.consecutiveFailures > m.failPermanentAfter
	m.mu.Unlock()

	if inject {
		if permanent {
			return nil, leann.ErrProviderPermanent
		}
		return nil, leann.ErrProviderTransient
	}

	out := make([][]float32, len(texts))
	byKind := m.vectors[kind]
	fallback := m.vectors[embedding.KindDocument]
	for i, t := range texts {
		vec, ok := byKind[t]
		if !ok {
			vec, ok = fallback[t]
		}
		if !ok {
			return nil, leann.NewError(leann.KindProviderPermanent, fmt.Sprintf("mock provider: no vector registered for %q", t), nil)
		}
		out[i] = vec
	}
	return out, nil
}

var _ embedding.Provider = (*MockProvider)(nil)
