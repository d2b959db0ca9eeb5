package filter

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

// Index is an inverted index over equality terms (key=value pairs) in
// passage metadata, backed by a roaring bitmap per term. It lets the
// searcher resolve sparse equality filters without a full metadata scan.
type Index struct {
	postings map[string]*roaring.Bitmap // "key\x00value" -> node ids
	n        int
}

// NewIndex creates an empty Index sized for n passages.
func NewIndex(n int) *Index {
	return &Index{postings: make(map[string]*roaring.Bitmap), n: n}
}

// Add indexes node's metadata. The searcher calls this once per passage
// on open to build the index in memory; the index itself isn't persisted
// separately from the passage store.
func (idx *Index) Add(node uint32, metadata map[string]any) {
	for key, value := range metadata {
		term, ok := termKey(key, value)
		if !ok {
			continue
		}
		bm, ok := idx.postings[term]
		if !ok {
			bm = roaring.New()
			idx.postings[term] = bm
		}
		bm.Add(node)
	}
}

func termKey(key string, value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return fmt.Sprintf("%s\x00s:%s", key, v), true
	case bool:
		return fmt.Sprintf("%s\x00b:%t", key, v), true
	case float64:
		return fmt.Sprintf("%s\x00f:%v", key, v), true
	default:
		return "", false
	}
}

// SelectivityThreshold is the fraction of N below which the searcher
// prefers brute-force distance over the allowed set instead of graph
// search, per spec 4.4 step 2.
const SelectivityThreshold = 0.01

// Resolve computes the allowed-node set for fs. It returns:
//   - a roaring bitmap of candidate nodes satisfying every equality term
//     in fs (or nil if fs has no equality terms, meaning "everyone"),
//   - a residual FilterSet of the non-equality filters that must still be
//     checked per-candidate against the full metadata (range/contains/ne),
//   - whether the equality terms alone already fully resolved fs.
func (idx *Index) Resolve(fs FilterSet) (candidates *roaring.Bitmap, residual FilterSet, exact bool) {
	var eq []Filter
	var rest []Filter
	for _, f := range fs.Filters {
		if f.isEquality() {
			eq = append(eq, f)
		} else {
			rest = append(rest, f)
		}
	}

	if len(eq) == 0 {
		return nil, FilterSet{Filters: rest}, len(rest) == 0
	}

	var result *roaring.Bitmap
	for _, f := range eq {
		term, ok := termKey(f.Key, f.Value)
		if !ok {
			// A value type the index never terms (e.g. a slice) can't be
			// resolved via postings; fall back to a full residual check.
			return nil, fs, false
		}
		bm, ok := idx.postings[term]
		if !ok {
			bm = roaring.New() // term never seen: empty result
		}
		if result == nil {
			result = bm.Clone()
		} else {
			result.And(bm)
		}
	}
	return result, FilterSet{Filters: rest}, len(rest) == 0
}

// Selectivity returns the fraction of the corpus candidates represents.
func (idx *Index) Selectivity(candidates *roaring.Bitmap) float64 {
	if idx.n == 0 {
		return 1
	}
	if candidates == nil {
		return 1
	}
	return float64(candidates.GetCardinality()) / float64(idx.n)
}

// ShouldBruteForce reports whether the allowed set is sparse enough that a
// direct distance scan over it beats graph search.
func (idx *Index) ShouldBruteForce(candidates *roaring.Bitmap) bool {
	if candidates == nil {
		return false
	}
	return idx.Selectivity(candidates) < SelectivityThreshold
}
