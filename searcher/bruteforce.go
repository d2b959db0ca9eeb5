package searcher

import (
	"context"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/ngmks/LEANN/backend"
	"github.com/ngmks/LEANN/filter"
)

// bruteForce scores query directly against every node in candidates rather
// than walking the graph, used when the pre-filter set is sparse enough
// (below filter.SelectivityThreshold) that a linear scan is cheaper than a
// beam search that would spend most of its budget rejecting disallowed
// nodes, per spec 4.4 step 2.
func (s *Searcher) bruteForce(
	ctx context.Context,
	query backend.Vector,
	k int,
	candidates *roaring.Bitmap,
	residual filter.FilterSet,
	timeRange filter.TimeRange,
	lookup filter.MetadataLookup,
) ([]backend.Result, error) {
	nodes := filter.MaterializeNodes(candidates)
	allow := filter.Predicate(candidates, residual, timeRange, lookup)

	expand := s.blobExpander
	if s.recompute {
		expand = s.recomputeExpander
	}

	var allowed []uint32
	for _, n := range nodes {
		if allow(n) {
			allowed = append(allowed, n)
		}
	}
	if len(allowed) == 0 {
		return nil, nil
	}

	vectors, err := expand(ctx, allowed)
	if err != nil && len(vectors) == 0 {
		return nil, err
	}

	results := make([]backend.Result, 0, len(vectors))
	for n, v := range vectors {
		results = append(results, backend.Result{Node: n, Distance: s.dist(query, v)})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].Node < results[j].Node
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}
