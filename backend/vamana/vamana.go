// Package vamana implements the DiskANN-style Vamana graph backend: a
// single-layer fixed-out-degree graph built with greedySearch and
// alpha-diversity robust pruning, searched with the same beam shape as
// backend/hnsw but without layered descent.
package vamana

import (
	"context"
	"fmt"

	"github.com/ngmks/LEANN/backend"
	"github.com/ngmks/LEANN/internal/atomicfile"
	"github.com/ngmks/LEANN/internal/distfn"
	"github.com/ngmks/LEANN/internal/mmapfile"
)

// Vamana is a backend.Backend. The zero value is not usable; build with New.
type Vamana struct {
	opts Options

	mapped *mmapfile.File
	view   *readerView
	dist   backend.DistanceFunc
}

// New creates a Vamana backend with the given construction options.
func New(opts ...Option) *Vamana {
	return &Vamana{opts: resolve(opts...)}
}

// EntryPoint reports the opened graph's entry point node.
func (v *Vamana) EntryPoint() uint32 {
	if v.view == nil {
		return 0
	}
	return v.view.entryPoint
}

func (v *Vamana) Build(ctx context.Context, path string, vectors backend.VectorSource, params backend.BuildParams) error {
	g := newGraph(params, v.opts)
	if err := g.Build(ctx, vectors); err != nil {
		return fmt.Errorf("vamana: build: %w", err)
	}
	data := g.encode()
	if err := atomicfile.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("vamana: write graph file: %w", err)
	}
	return nil
}

func (v *Vamana) Open(path string) (backend.Backend, error) {
	mapped, err := mmapfile.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vamana: open %s: %w", path, err)
	}
	view, err := decodeHeader(mapped.Bytes())
	if err != nil {
		mapped.Close()
		return nil, fmt.Errorf("vamana: decode %s: %w", path, err)
	}
	opened := &Vamana{opts: v.opts, mapped: mapped, view: view}
	return opened, nil
}

func (v *Vamana) Search(ctx context.Context, query backend.Vector, params backend.SearchParams, expand backend.CandidateExpander) ([]backend.Result, bool, error) {
	if v.view == nil {
		return nil, false, fmt.Errorf("vamana: backend not opened for search")
	}
	dist := v.dist
	if dist == nil {
		dist = func(a, b backend.Vector) float32 { return distfn.CosineDistance(a, b) }
	}
	return search(ctx, v.view, query, params, dist, expand)
}

// WithDistance overrides the distance function an opened backend uses.
func (v *Vamana) WithDistance(d backend.DistanceFunc) *Vamana {
	v.dist = d
	return v
}

func (v *Vamana) Close() error {
	if v.mapped == nil {
		return nil
	}
	return v.mapped.Close()
}

var _ backend.Backend = (*Vamana)(nil)
