// Package bm25 implements Okapi BM25 lexical scoring used by the searcher's
// hybrid rescoring step, plus the on-disk sidecar that persists it between
// queries.
package bm25

import (
	"math"
	"strings"
	"sync"
	"unicode"
)

// TokenizerID is recorded in the manifest so a rebuilt sidecar always uses
// the same rule a prior build used, per the searcher's tokenizer-identity
// invariant.
const TokenizerID = "leann-v1"

const (
	DefaultK1 = 1.2
	DefaultB  = 0.75
)

type posting struct {
	node  uint32
	count int
}

// Index is an in-memory BM25 index over passage text, keyed by node index
// rather than passage id since that's what the searcher's candidate set is
// expressed in.
type Index struct {
	mu sync.RWMutex

	k1, b float64

	inverted    map[string][]posting
	docLengths  map[uint32]int
	totalLength int64
	docCount    int
}

// New creates an empty Index with the standard Okapi parameters.
func New() *Index {
	return NewWithParams(DefaultK1, DefaultB)
}

// NewWithParams creates an empty Index with overridden k1/b.
func NewWithParams(k1, b float64) *Index {
	return &Index{
		k1:         k1,
		b:          b,
		inverted:   make(map[string][]posting),
		docLengths: make(map[uint32]int),
	}
}

// Tokenize splits text the way every build and query must, so sidecar
// scores stay consistent across rebuilds: Unicode-aware lowercasing,
// splitting on whitespace and punctuation.
func Tokenize(text string) []string {
	var tokens []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		default:
			flush()
		}
	}
	flush()
	return tokens
}

// Add indexes node's text. Re-adding the same node replaces its prior
// entry.
func (idx *Index) Add(node uint32, text string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, ok := idx.docLengths[node]; ok {
		idx.removeLocked(node)
	}

	tokens := Tokenize(text)
	idx.docLengths[node] = len(tokens)
	idx.totalLength += int64(len(tokens))
	idx.docCount++

	tf := make(map[string]int, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}
	for t, count := range tf {
		idx.inverted[t] = append(idx.inverted[t], posting{node: node, count: count})
	}
}

func (idx *Index) removeLocked(node uint32) {
	length, ok := idx.docLengths[node]
	if !ok {
		return
	}
	for t, postings := range idx.inverted {
		for i, p := range postings {
			if p.node == node {
				idx.inverted[t] = append(postings[:i], postings[i+1:]...)
				break
			}
		}
	}
	delete(idx.docLengths, node)
	idx.totalLength -= int64(length)
	idx.docCount--
}

// DocCount returns the number of documents indexed, checked against the
// passage store's N on open per the sidecar's count invariant.
func (idx *Index) DocCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.docCount
}

// Score computes BM25 scores over query against the given candidate set
// only, as spec 4.4 step 4 requires (rescoring is restricted to the
// top-K graph-search candidates, not the whole corpus).
func (idx *Index) Score(query string, candidates []uint32) map[uint32]float64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	scores := make(map[uint32]float64, len(candidates))
	if idx.docCount == 0 {
		return scores
	}
	allowed := make(map[uint32]bool, len(candidates))
	for _, n := range candidates {
		allowed[n] = true
	}

	avgDL := float64(idx.totalLength) / float64(idx.docCount)
	for _, term := range Tokenize(query) {
		postings, ok := idx.inverted[term]
		if !ok {
			continue
		}
		idf := idx.idf(len(postings))
		for _, p := range postings {
			if !allowed[p.node] {
				continue
			}
			tf := float64(p.count)
			docLen := float64(idx.docLengths[p.node])
			num := tf * (idx.k1 + 1)
			denom := tf + idx.k1*(1-idx.b+idx.b*(docLen/avgDL))
			scores[p.node] += idf * (num / denom)
		}
	}
	return scores
}

func (idx *Index) idf(df int) float64 {
	n := float64(idx.docCount)
	d := float64(df)
	return math.Log(1 + (n-d+0.5)/(d+0.5))
}

// NormalizeMinMax rescales scores to [0, 1] over the candidate set, per
// spec 4.4 step 4's "normalization = min-max over the candidate set".
// Candidates with no lexical hits score 0. An empty or constant score
// set returns all zeros.
func NormalizeMinMax(scores map[uint32]float64, candidates []uint32) map[uint32]float64 {
	out := make(map[uint32]float64, len(candidates))
	if len(candidates) == 0 {
		return out
	}
	min, max := math.Inf(1), math.Inf(-1)
	for _, n := range candidates {
		s := scores[n]
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	spread := max - min
	for _, n := range candidates {
		if spread <= 0 {
			out[n] = 0
			continue
		}
		out[n] = (scores[n] - min) / spread
	}
	return out
}
