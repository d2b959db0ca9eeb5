package bm25

import (
	"fmt"
	"os"
	"path/filepath"

	gojson "github.com/goccy/go-json"

	"github.com/ngmks/LEANN/internal/atomicfile"
)

// sidecarFile is the on-disk JSON shape for <name>.bm25: term postings,
// doc lengths, and the parameters needed to reproduce idf/score exactly.
type sidecarFile struct {
	K1          float64            `json:"k1"`
	B           float64            `json:"b"`
	Tokenizer   string             `json:"tokenizer"`
	DocCount    int                `json:"doc_count"`
	TotalLength int64              `json:"total_length"`
	DocLengths  map[uint32]int     `json:"doc_lengths"`
	Postings    map[string][]entry `json:"postings"`
}

type entry struct {
	Node  uint32 `json:"n"`
	Count int    `json:"c"`
}

func sidecarPath(dir, name string) string { return filepath.Join(dir, name+".bm25") }

// Save atomically persists idx to dir/<name>.bm25.
func Save(idx *Index, dir, name string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	sf := sidecarFile{
		K1:          idx.k1,
		B:           idx.b,
		Tokenizer:   TokenizerID,
		DocCount:    idx.docCount,
		TotalLength: idx.totalLength,
		DocLengths:  idx.docLengths,
		Postings:    make(map[string][]entry, len(idx.inverted)),
	}
	for term, postings := range idx.inverted {
		entries := make([]entry, len(postings))
		for i, p := range postings {
			entries[i] = entry{Node: p.node, Count: p.count}
		}
		sf.Postings[term] = entries
	}

	data, err := gojson.Marshal(sf)
	if err != nil {
		return fmt.Errorf("bm25: marshal sidecar: %w", err)
	}
	path := sidecarPath(dir, name)
	if err := atomicfile.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("bm25: write %s: %w", path, err)
	}
	return nil
}

// Load reads dir/<name>.bm25. It returns (nil, false, nil) if the sidecar
// doesn't exist yet (the searcher builds it lazily on first hybrid query).
// It also reports a tokenizer mismatch so the caller can rebuild rather
// than serve stale scores.
func Load(dir, name string) (*Index, bool, error) {
	path := sidecarPath(dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("bm25: read %s: %w", path, err)
	}

	var sf sidecarFile
	if err := gojson.Unmarshal(data, &sf); err != nil {
		return nil, false, fmt.Errorf("bm25: parse %s: %w", path, err)
	}
	if sf.Tokenizer != TokenizerID {
		return nil, false, nil // stale tokenizer: caller rebuilds
	}

	idx := NewWithParams(sf.K1, sf.B)
	idx.docCount = sf.DocCount
	idx.totalLength = sf.TotalLength
	idx.docLengths = sf.DocLengths
	for term, entries := range sf.Postings {
		postings := make([]posting, len(entries))
		for i, e := range entries {
			postings[i] = posting{node: e.Node, count: e.Count}
		}
		idx.inverted[term] = postings
	}
	return idx, true, nil
}

// Consistent reports whether idx's document count matches n, the
// invariant spec 4.5 requires between the sidecar and the passage store.
func Consistent(idx *Index, n int) bool {
	return idx.DocCount() == n
}
