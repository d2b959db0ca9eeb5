package hnsw

import (
	"context"
	"fmt"
	"sort"

	"github.com/ngmks/LEANN/backend"
	"github.com/ngmks/LEANN/internal/pqueue"
	"github.com/ngmks/LEANN/internal/visited"
)

// search runs the beam-search described in spec 4.2.2 against an opened
// graph file, resolving vectors for unvisited candidates through expand
// rather than a resident vector array.
func search(ctx context.Context, view *readerView, query backend.Vector, params backend.SearchParams, dist backend.DistanceFunc, expand backend.CandidateExpander) ([]backend.Result, bool, error) {
	if view.n == 0 {
		return nil, false, nil
	}
	ef := params.EFSearch
	if ef <= 0 {
		ef = DefaultOptions.EFSearchDefault
	}
	if ef < params.K {
		ef = params.K
	}

	ep := view.entryPoint
	epVec, err := resolveOne(ctx, expand, ep)
	if err != nil {
		return nil, false, err
	}
	epDist := dist(query, epVec)

	// Greedy 1-best descent through the upper layers.
	for layer := view.numLayers - 1; layer > 0; layer-- {
		improved := true
		for improved {
			improved = false
			neighbors := view.neighbors(layer, ep)
			if len(neighbors) == 0 {
				continue
			}
			vecs, err := expand(ctx, neighbors)
			if err != nil {
				return nil, false, fmt.Errorf("hnsw: search: %w", err)
			}
			for _, nb := range neighbors {
				v, ok := vecs[nb]
				if !ok {
					continue
				}
				d := dist(query, v)
				if d < epDist {
					ep, epDist = nb, d
					improved = true
				}
			}
		}
	}

	partial := false
	seen := visited.New(view.n)
	seen.Visit(ep)
	candidates := pqueue.NewMin(ef * 2)
	candidates.Push(pqueue.Item{Node: ep, Distance: epDist})

	results := pqueue.NewMax(ef + 1)
	if params.Allow == nil || params.Allow(ep) {
		results.Push(pqueue.Item{Node: ep, Distance: epDist})
	}

	batch := params.BatchSize
	if batch <= 0 {
		batch = 128
	}

	for candidates.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, true, err
		}
		curr, _ := candidates.Pop()
		if results.Len() >= ef {
			worst, _ := results.Top()
			if curr.Distance > worst.Distance {
				break
			}
		}

		neighbors := view.neighbors(0, curr.Node)
		unvisited := make([]uint32, 0, len(neighbors))
		for _, nb := range neighbors {
			if seen.Visit(nb) {
				unvisited = append(unvisited, nb)
			}
		}
		for start := 0; start < len(unvisited); start += batch {
			end := start + batch
			if end > len(unvisited) {
				end = len(unvisited)
			}
			chunk := unvisited[start:end]
			vecs, err := expand(ctx, chunk)
			if err != nil {
				// A batch that fails entirely is dropped; the search
				// continues over whatever the frontier already has.
				partial = true
				continue
			}
			for _, nb := range chunk {
				v, ok := vecs[nb]
				if !ok {
					continue
				}
				d := dist(query, v)
				candidates.Push(pqueue.Item{Node: nb, Distance: d})
				if params.Allow == nil || params.Allow(nb) {
					results.Push(pqueue.Item{Node: nb, Distance: d})
					if results.Len() > ef {
						results.Pop()
					}
				}
			}
		}
	}

	out := make([]backend.Result, 0, results.Len())
	for results.Len() > 0 {
		it, _ := results.Pop()
		out = append(out, backend.Result{Node: it.Node, Distance: it.Distance})
	}
	// Ties on distance break by ascending node index.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].Node < out[j].Node
	})
	if len(out) > params.K {
		out = out[:params.K]
	}
	return out, partial, nil
}

func resolveOne(ctx context.Context, expand backend.CandidateExpander, node uint32) (backend.Vector, error) {
	vecs, err := expand(ctx, []uint32{node})
	if err != nil {
		return nil, fmt.Errorf("hnsw: resolve entry point: %w", err)
	}
	v, ok := vecs[node]
	if !ok {
		return nil, fmt.Errorf("hnsw: entry point %d could not be resolved", node)
	}
	return v, nil
}
