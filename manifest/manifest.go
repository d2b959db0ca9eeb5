// Package manifest reads and writes an index directory's descriptor file:
// backend kind, dimensionality, distance metric, build parameters, and the
// names of the other on-disk artifacts. It preserves unrecognized keys
// across rewrites so forward-compatible fields survive a round trip.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	gojson "github.com/goccy/go-json"

	"github.com/ngmks/LEANN/internal/atomicfile"
	"github.com/ngmks/LEANN"
)

// Backend identifies the ANN graph engine an index was built with.
type Backend string

const (
	BackendHNSW   Backend = "hnsw"
	BackendVamana Backend = "vamana"
)

// Metric identifies the distance function the index's vectors were built
// under.
type Metric string

const (
	MetricCosine Metric = "cosine"
	MetricL2     Metric = "l2"
)

// CurrentVersion is the manifest schema version this package writes.
const CurrentVersion = 1

// HNSWParams mirrors the "hnsw" manifest object.
type HNSWParams struct {
	M               int `json:"M"`
	EFConstruction  int `json:"ef_construction"`
	EFSearchDefault int `json:"ef_search_default"`
	EntryPoint      uint32 `json:"entry_point"`
	NumLayers       int `json:"num_layers"`
}

// VamanaParams mirrors the "vamana" manifest object.
type VamanaParams struct {
	R          int     `json:"R"`
	LBuild     int     `json:"L_build"`
	Alpha      float64 `json:"alpha"`
	EntryPoint uint32  `json:"entry_point"`
}

// Files records the on-disk artifact names this manifest's index owns.
type Files struct {
	Passages  string `json:"passages"`
	Offsets   string `json:"offsets"`
	Graph     string `json:"graph"`
	Embeddings string `json:"embeddings,omitempty"`
	BM25      string `json:"bm25,omitempty"`
}

// Meta is the index manifest: everything needed to open and validate an
// index directory without reading any of its other files.
type Meta struct {
	Version     int          `json:"version"`
	Backend     Backend      `json:"backend"`
	NumPassages int          `json:"num_passages"`
	Dimension   int          `json:"dimension"`
	Metric      Metric       `json:"metric"`
	ModelID     string       `json:"model_id"`
	Normalized  bool         `json:"normalized"`
	Recompute   bool         `json:"recompute"`
	Compact     bool         `json:"compact"`
	HNSW        *HNSWParams  `json:"hnsw,omitempty"`
	Vamana      *VamanaParams `json:"vamana,omitempty"`
	Files       Files        `json:"files"`
	Tokenizer   string       `json:"tokenizer,omitempty"`
	BuildFingerprint string  `json:"build_fingerprint"`
	QueryPromptTemplate    string `json:"query_prompt_template,omitempty"`
	DocumentPromptTemplate string `json:"document_prompt_template,omitempty"`

	// unknown carries any manifest key this version of the package does
	// not recognize, so it survives a load-then-save round trip.
	unknown map[string]any
}

func fileName(dir, name string) string { return filepath.Join(dir, name+".meta.json") }

// Load reads and validates the manifest for the index named name in dir.
func Load(dir, name string) (*Meta, error) {
	path := fileName(dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: read %s: %w", path, err)
	}

	var raw map[string]any
	if err := gojson.Unmarshal(data, &raw); err != nil {
		return nil, leann.NewError(leann.KindCorrupt, fmt.Sprintf("manifest %s does not parse", path), err)
	}
	var m Meta
	if err := gojson.Unmarshal(data, &m); err != nil {
		return nil, leann.NewError(leann.KindCorrupt, fmt.Sprintf("manifest %s does not parse", path), err)
	}

	m.unknown = make(map[string]any)
	for k, v := range raw {
		if !knownKey(k) {
			m.unknown[k] = v
		}
	}

	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

var knownKeys = map[string]bool{
	"version": true, "backend": true, "num_passages": true, "dimension": true,
	"metric": true, "model_id": true, "normalized": true, "recompute": true,
	"compact": true, "hnsw": true, "vamana": true, "files": true,
	"tokenizer": true, "build_fingerprint": true,
	"query_prompt_template": true, "document_prompt_template": true,
}

func knownKey(k string) bool { return knownKeys[k] }

func (m *Meta) validate() error {
	if m.Backend != BackendHNSW && m.Backend != BackendVamana {
		return leann.NewError(leann.KindCorrupt, fmt.Sprintf("manifest: unrecognized backend %q", m.Backend), nil)
	}
	if m.Metric != MetricCosine && m.Metric != MetricL2 {
		return leann.NewError(leann.KindCorrupt, fmt.Sprintf("manifest: unrecognized metric %q", m.Metric), nil)
	}
	if m.Dimension <= 0 {
		return leann.NewError(leann.KindCorrupt, "manifest: dimension must be positive", nil)
	}
	if !m.Recompute && m.Files.Embeddings == "" {
		return leann.NewError(leann.KindCorrupt, "manifest: recompute=false but no embeddings file recorded", nil)
	}
	if m.Backend == BackendHNSW && m.HNSW == nil {
		return leann.NewError(leann.KindCorrupt, "manifest: backend=hnsw but no hnsw params", nil)
	}
	if m.Backend == BackendVamana && m.Vamana == nil {
		return leann.NewError(leann.KindCorrupt, "manifest: backend=vamana but no vamana params", nil)
	}
	return nil
}

// Save atomically writes m to dir/<name>.meta.json, merging back in any
// unknown keys it was loaded with.
func (m *Meta) Save(dir, name string) error {
	out := make(map[string]any, len(m.unknown)+16)
	for k, v := range m.unknown {
		out[k] = v
	}

	data, err := gojson.Marshal(m)
	if err != nil {
		return fmt.Errorf("manifest: marshal: %w", err)
	}
	var known map[string]any
	if err := gojson.Unmarshal(data, &known); err != nil {
		return fmt.Errorf("manifest: remarshal: %w", err)
	}
	for k, v := range known {
		out[k] = v
	}

	final, err := gojson.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("manifest: marshal final: %w", err)
	}
	final = append(final, '\n')

	path := fileName(dir, name)
	if err := atomicfile.WriteFile(path, final, 0o644); err != nil {
		return fmt.Errorf("manifest: write %s: %w", path, err)
	}
	return nil
}

// CheckModelID verifies that activeModelID matches the manifest's recorded
// model_id, returning a ModelMismatch error if not. The searcher calls
// this on open, per spec invariant 6.
func (m *Meta) CheckModelID(activeModelID string) error {
	if m.ModelID != activeModelID {
		return leann.NewError(leann.KindModelMismatch,
			fmt.Sprintf("index was built with model %q, active provider is %q", m.ModelID, activeModelID), nil)
	}
	return nil
}
