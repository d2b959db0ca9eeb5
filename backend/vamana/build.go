package vamana

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/ngmks/LEANN/backend"
	"github.com/ngmks/LEANN/internal/visited"
)

// graph is the in-memory single-layer adjacency list built by Build. Like
// hnsw's build-time graph, it keeps vectors resident only for the
// duration of the build.
type graph struct {
	dim      int
	distance backend.DistanceFunc
	opts     Options
	rng      *rand.Rand

	vectors    [][]float32
	adjacency  [][]uint32
	entryPoint uint32
}

func newGraph(params backend.BuildParams, opts Options) *graph {
	return &graph{
		dim:      params.Dimension,
		distance: params.Distance,
		opts:     opts,
		rng:      rand.New(rand.NewSource(params.RandomSeed)),
	}
}

// Build loads all vectors, seeds a random R/2-regular graph, selects a
// centroid entry point, then runs greedySearch + robustPrune per node with
// reverse-edge insertion, following spec 4.2's Vamana construction.
func (g *graph) Build(ctx context.Context, vectors backend.VectorSource) error {
	g.vectors = make([][]float32, 0, vectors.Len())
	for {
		v, ok, err := vectors.Next()
		if err != nil {
			return fmt.Errorf("vamana: build: %w", err)
		}
		if !ok {
			break
		}
		g.vectors = append(g.vectors, v)
	}
	n := len(g.vectors)
	if n == 0 {
		return nil
	}
	R := g.opts.R
	g.adjacency = make([][]uint32, n)

	for i := 0; i < n; i++ {
		edges := make(map[uint32]struct{})
		half := R / 2
		for len(edges) < half && len(edges) < n-1 {
			j := uint32(g.rng.Intn(n))
			if int(j) != i {
				edges[j] = struct{}{}
			}
		}
		list := make([]uint32, 0, len(edges))
		for j := range edges {
			list = append(list, j)
		}
		g.adjacency[i] = list
	}

	g.entryPoint = g.selectEntryPoint()

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		candidates := g.greedySearch(uint32(i), g.opts.LBuild)
		pruned := g.robustPrune(uint32(i), candidates, R)
		g.adjacency[i] = pruned
		for _, nb := range pruned {
			g.addEdge(nb, uint32(i), R)
		}
	}
	return nil
}

func (g *graph) selectEntryPoint() uint32 {
	n := len(g.vectors)
	centroid := make([]float32, g.dim)
	for _, v := range g.vectors {
		for j, x := range v {
			centroid[j] += x
		}
	}
	for j := range centroid {
		centroid[j] /= float32(n)
	}

	best := float32(math.MaxFloat32)
	entry := uint32(0)
	for i, v := range g.vectors {
		d := g.distance(centroid, v)
		if d < best {
			best = d
			entry = uint32(i)
		}
	}
	return entry
}

type distNode struct {
	id   uint32
	dist float32
}

// greedySearch returns up to l candidate neighbors for target, starting
// from the graph's entry point.
func (g *graph) greedySearch(target uint32, l int) []uint32 {
	targetVec := g.vectors[target]
	seen := visited.New(len(g.vectors))
	seen.Visit(g.entryPoint)

	entryDist := g.distance(targetVec, g.vectors[g.entryPoint])
	frontier := []distNode{{id: g.entryPoint, dist: entryDist}}
	result := []distNode{{id: g.entryPoint, dist: entryDist}}

	for len(frontier) > 0 {
		sort.Slice(frontier, func(i, j int) bool { return frontier[i].dist < frontier[j].dist })
		curr := frontier[0]
		frontier = frontier[1:]

		if len(result) >= l {
			sort.Slice(result, func(i, j int) bool { return result[i].dist < result[j].dist })
			if curr.dist > result[l-1].dist {
				break
			}
		}

		for _, nb := range g.adjacency[curr.id] {
			if !seen.Visit(nb) {
				continue
			}
			d := g.distance(g.vectors[nb], targetVec)
			frontier = append(frontier, distNode{id: nb, dist: d})
			result = append(result, distNode{id: nb, dist: d})
		}
		if len(result) > l*2 {
			sort.Slice(result, func(i, j int) bool { return result[i].dist < result[j].dist })
			result = result[:l]
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].dist < result[j].dist })
	if len(result) > l {
		result = result[:l]
	}
	ids := make([]uint32, len(result))
	for i, r := range result {
		ids[i] = r.id
	}
	return ids
}

// robustPrune implements Vamana's alpha-diversity pruning: a candidate is
// kept only if no already-selected neighbor is within alpha times closer
// to it than it is to node, which bounds the graph's diameter while
// keeping directionally diverse edges.
func (g *graph) robustPrune(node uint32, candidates []uint32, R int) []uint32 {
	nodeVec := g.vectors[node]
	alpha := float32(g.opts.Alpha)

	type cand struct {
		id   uint32
		dist float32
	}
	cands := make([]cand, 0, len(candidates))
	for _, c := range candidates {
		if c == node {
			continue
		}
		cands = append(cands, cand{id: c, dist: g.distance(g.vectors[c], nodeVec)})
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })

	selected := make([]uint32, 0, R)
	for _, c := range cands {
		if len(selected) >= R {
			break
		}
		diverse := true
		for _, s := range selected {
			distCS := g.distance(g.vectors[c.id], g.vectors[s])
			if alpha*distCS < c.dist {
				diverse = false
				break
			}
		}
		if diverse {
			selected = append(selected, c.id)
		}
	}
	return selected
}

func (g *graph) addEdge(src, dst uint32, R int) {
	for _, nb := range g.adjacency[src] {
		if nb == dst {
			return
		}
	}
	g.adjacency[src] = append(g.adjacency[src], dst)
	if len(g.adjacency[src]) > R {
		candidates := make([]uint32, len(g.adjacency[src]))
		copy(candidates, g.adjacency[src])
		g.adjacency[src] = g.robustPrune(src, candidates, R)
	}
}
