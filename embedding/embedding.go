// Package embedding defines the contract the engine calls to turn text
// into vectors. Callers supply the implementation; the engine never embeds
// text itself.
package embedding

import (
	"context"
	"fmt"

	"github.com/ngmks/LEANN"
)

// Kind distinguishes a document embedding from a query embedding, so an
// instruction-aware model can prepend a different prompt template per the
// manifest's query_prompt_template / document_prompt_template fields.
type Kind int

const (
	KindDocument Kind = iota
	KindQuery
)

func (k Kind) String() string {
	if k == KindQuery {
		return "query"
	}
	return "document"
}

// Provider is the embedding model contract. Implementations must be safe
// for concurrent use; Encode is called from worker-pool goroutines during
// build and from the searcher's recompute path.
type Provider interface {
	// ModelID identifies the embedding model. The engine persists this in
	// the manifest and rejects opening an index with a different provider.
	ModelID() string

	// Dimension reports the embedding width this provider produces.
	Dimension() int

	// Normalized reports whether Encode returns unit-norm vectors, which
	// lets the engine compute cosine distance as 1 - dot rather than
	// dividing by norms.
	Normalized() bool

	// Encode embeds a batch of texts. It must be idempotent and
	// deterministic up to floating-point rounding for the same inputs.
	Encode(ctx context.Context, texts []string, kind Kind) ([][]float32, error)
}

// EncodeWithRetry wraps a single Encode call with exponential backoff on
// Transient failures, matching the retry policy spec.md assigns to the
// searcher's candidate expander and the builder's embed phase.
func EncodeWithRetry(ctx context.Context, p Provider, texts []string, kind Kind, retryMax int, backoff func(attempt int) error) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= retryMax; attempt++ {
		vecs, err := p.Encode(ctx, texts, kind)
		if err == nil {
			return vecs, nil
		}
		lastErr = err
		if leann.KindOf(err) != leann.KindProviderTransient {
			return nil, err
		}
		if attempt == retryMax {
			break
		}
		if backoff != nil {
			if werr := backoff(attempt); werr != nil {
				return nil, werr
			}
		}
	}
	return nil, fmt.Errorf("embedding: exhausted %d retries: %w", retryMax, lastErr)
}
