package searcher

import (
	"context"
	"encoding/binary"
	"math"

	"github.com/ngmks/LEANN"
	"github.com/ngmks/LEANN/backend"
	"github.com/ngmks/LEANN/embedding"
)

// blobExpander resolves node vectors by seeking directly into the mmapped
// embedding blob: N headerless contiguous D-float32 records.
func (s *Searcher) blobExpander(ctx context.Context, nodes []uint32) (map[uint32]backend.Vector, error) {
	out := make(map[uint32]backend.Vector, len(nodes))
	recordBytes := s.dimension * 4
	for _, n := range nodes {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		start := int(n) * recordBytes
		raw, err := s.embBlob.At(start, recordBytes)
		if err != nil {
			continue // out-of-range node, e.g. a stale filter result; skip
		}
		out[n] = decodeFloats(raw)
	}
	return out, nil
}

func decodeFloats(raw []byte) []float32 {
	out := make([]float32, len(raw)/4)
	for i := range out {
		bits := binary.LittleEndian.Uint32(raw[4*i : 4*i+4])
		out[i] = math.Float32frombits(bits)
	}
	return out
}

// recomputeExpander resolves node vectors by looking up passage text and
// calling the embedding provider, de-duplicating against the searcher's
// bounded LRU cache first, per spec 4.4 step 3.
func (s *Searcher) recomputeExpander(ctx context.Context, nodes []uint32) (map[uint32]backend.Vector, error) {
	out := make(map[uint32]backend.Vector, len(nodes))
	var missNodes []uint32
	var missTexts []string

	for _, n := range nodes {
		if v, ok := s.cache.Get(n); ok {
			out[n] = v
			continue
		}
		p, err := s.passages.GetByNode(n)
		if err != nil {
			continue
		}
		missNodes = append(missNodes, n)
		missTexts = append(missTexts, s.prependDocumentTemplate(p.Text))
	}
	if len(missNodes) == 0 {
		return out, nil
	}

	vecs, err := embedding.EncodeWithRetry(ctx, s.provider, missTexts, embedding.KindDocument, s.opts.RetryMax, leann.DefaultBackoff)
	s.metrics.RecordEmbedBatch(len(missTexts), 0, err)
	if err != nil {
		// The whole batch is dropped; the caller treats this as a
		// partial-result condition rather than aborting the search.
		return out, err
	}
	for i, n := range missNodes {
		out[n] = vecs[i]
		s.cache.Put(n, vecs[i])
	}
	return out, nil
}

