package vamana

import (
	"context"
	"fmt"
	"sort"

	"github.com/ngmks/LEANN/backend"
	"github.com/ngmks/LEANN/internal/pqueue"
	"github.com/ngmks/LEANN/internal/visited"
)

// search runs a single-layer greedySearch against an opened graph,
// resolving candidate vectors through expand in batches of
// params.BatchSize, mirroring hnsw's search shape but without the
// layered descent.
func search(ctx context.Context, view *readerView, query backend.Vector, params backend.SearchParams, dist backend.DistanceFunc, expand backend.CandidateExpander) ([]backend.Result, bool, error) {
	if view.n == 0 {
		return nil, false, nil
	}
	l := params.EFSearch
	if l <= 0 {
		l = DefaultOptions.LBuild
	}
	if l < params.K {
		l = params.K
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = 128
	}

	ep := view.entryPoint
	epVec, err := resolveOne(ctx, expand, ep)
	if err != nil {
		return nil, false, err
	}
	epDist := dist(query, epVec)

	partial := false
	seen := visited.New(view.n)
	seen.Visit(ep)
	candidates := pqueue.NewMin(l * 2)
	candidates.Push(pqueue.Item{Node: ep, Distance: epDist})

	results := pqueue.NewMax(l + 1)
	if params.Allow == nil || params.Allow(ep) {
		results.Push(pqueue.Item{Node: ep, Distance: epDist})
	}

	for candidates.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, true, err
		}
		curr, _ := candidates.Pop()
		if results.Len() >= l {
			worst, _ := results.Top()
			if curr.Distance > worst.Distance {
				break
			}
		}

		neighbors := view.neighbors(curr.Node)
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
					if results.Len() > l {
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
		return nil, fmt.Errorf("vamana: resolve entry point: %w", err)
	}
	v, ok := vecs[node]
	if !ok {
		return nil, fmt.Errorf("vamana: entry point %d could not be resolved", node)
	}
	return v, nil
}
