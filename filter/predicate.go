package filter

import "github.com/RoaringBitmap/roaring/v2"

// MetadataLookup resolves a node index to its metadata, used by Predicate
// to evaluate residual (non-equality) filters and time ranges during
// graph search. The searcher backs this with the passage store.
type MetadataLookup func(node uint32) (map[string]any, bool)

// Predicate builds the final per-node allow check the backend's Search
// uses, combining an optional equality-index candidate bitmap with any
// residual filters and an optional time range.
func Predicate(candidates *roaring.Bitmap, residual FilterSet, timeRange TimeRange, lookup MetadataLookup) func(node uint32) bool {
	needsMetadata := len(residual.Filters) > 0 || !(timeRange.From.IsZero() && timeRange.To.IsZero())
	return func(node uint32) bool {
		if candidates != nil && !candidates.Contains(node) {
			return false
		}
		if !needsMetadata {
			return true
		}
		metadata, ok := lookup(node)
		if !ok {
			return false
		}
		if !residual.Matches(metadata) {
			return false
		}
		return timeRange.Matches(metadata)
	}
}

// MaterializeNodes returns the sorted node ids in candidates, used when the
// searcher decides to brute-force over a sparse allowed set instead of
// running graph search at all.
func MaterializeNodes(candidates *roaring.Bitmap) []uint32 {
	if candidates == nil {
		return nil
	}
	out := make([]uint32, 0, candidates.GetCardinality())
	it := candidates.Iterator()
	for it.HasNext() {
		out = append(out, it.Next())
	}
	return out
}
