// Package hnsw implements the Hierarchical Navigable Small World graph
// backend: multi-layer proximity graph build with heuristic neighbor
// selection, and ef_search-bounded beam search over a backend.CandidateExpander.
package hnsw

import (
	"context"
	"fmt"
	"os"

	"github.com/ngmks/LEANN/backend"
	"github.com/ngmks/LEANN/internal/atomicfile"
	"github.com/ngmks/LEANN/internal/distfn"
	"github.com/ngmks/LEANN/internal/mmapfile"
)

// HNSW is a backend.Backend. The zero value is not usable; build with New.
type HNSW struct {
	opts Options

	mapped *mmapfile.File
	view   *readerView
	dist   backend.DistanceFunc
}

// New creates an HNSW backend with the given construction options.
func New(opts ...Option) *HNSW {
	return &HNSW{opts: resolve(opts...)}
}

// NumLayers reports the number of layers a just-built or opened graph has.
func (h *HNSW) NumLayers() int {
	if h.view == nil {
		return 0
	}
	return h.view.numLayers
}

// EntryPoint reports the opened graph's entry point node.
func (h *HNSW) EntryPoint() uint32 {
	if h.view == nil {
		return 0
	}
	return h.view.entryPoint
}

func (h *HNSW) Build(ctx context.Context, path string, vectors backend.VectorSource, params backend.BuildParams) error {
	g := newGraph(vectors.Len(), params, h.opts)
	if err := g.Build(ctx, vectors); err != nil {
		return fmt.Errorf("hnsw: build: %w", err)
	}
	data := g.encode()
	if err := atomicfile.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("hnsw: write graph file: %w", err)
	}
	return nil
}

func (h *HNSW) Open(path string) (backend.Backend, error) {
	mapped, err := mmapfile.Open(path)
	if err != nil {
		return nil, fmt.Errorf("hnsw: open %s: %w", path, err)
	}
	view, err := decodeHeader(mapped.Bytes())
	if err != nil {
		mapped.Close()
		return nil, fmt.Errorf("hnsw: decode %s: %w", path, err)
	}
	opened := &HNSW{opts: h.opts, mapped: mapped, view: view}
	return opened, nil
}

func (h *HNSW) Search(ctx context.Context, query backend.Vector, params backend.SearchParams, expand backend.CandidateExpander) ([]backend.Result, bool, error) {
	if h.view == nil {
		return nil, false, fmt.Errorf("hnsw: backend not opened for search")
	}
	dist := h.dist
	if dist == nil {
		dist = func(a, b backend.Vector) float32 { return distfn.CosineDistance(a, b) }
	}
	return search(ctx, h.view, query, params, dist, expand)
}

// WithDistance overrides the distance function an opened backend uses;
// Open itself doesn't know the manifest's configured metric, so the
// searcher sets this right after Open.
func (h *HNSW) WithDistance(d backend.DistanceFunc) *HNSW {
	h.dist = d
	return h
}

func (h *HNSW) Close() error {
	if h.mapped == nil {
		return nil
	}
	return h.mapped.Close()
}

var _ backend.Backend = (*HNSW)(nil)

// statFile is a small helper used by tests to assert a graph file was
// written with a sane nonzero size.
func statFile(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
