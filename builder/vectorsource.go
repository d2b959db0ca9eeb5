package builder

import "github.com/ngmks/LEANN/backend"

// memVectorSource adapts an in-memory, node-index-ordered vector slice to
// backend.VectorSource. Both backends buffer the full source during build
// anyway (see backend/hnsw and backend/vamana's Build), so the builder
// holds embeddings resident in memory for the duration of the graph-build
// phase regardless of recompute mode; the difference is only whether they
// are also persisted to the embeddings blob afterward.
type memVectorSource struct {
	vectors [][]float32
	pos     int
}

func newMemVectorSource(vectors [][]float32) *memVectorSource {
	return &memVectorSource{vectors: vectors}
}

func (m *memVectorSource) Next() (backend.Vector, bool, error) {
	if m.pos >= len(m.vectors) {
		return nil, false, nil
	}
	v := m.vectors[m.pos]
	m.pos++
	return backend.Vector(v), true, nil
}

func (m *memVectorSource) Len() int { return len(m.vectors) }

var _ backend.VectorSource = (*memVectorSource)(nil)
