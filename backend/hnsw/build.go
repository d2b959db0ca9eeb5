package hnsw

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/ngmks/LEANN/backend"
	"github.com/ngmks/LEANN/internal/pqueue"
	"github.com/ngmks/LEANN/internal/visited"
)

// graph is the in-memory representation used while building. Unlike the
// teacher's HNSW, it never stores vectors itself: the caller-supplied
// vectors slice (held only for the duration of Build) is the sole source
// of truth, matching the decoupled graph/vector persistence this backend
// implements.
type graph struct {
	dimension int
	distance  backend.DistanceFunc
	opts      Options
	rng       *rand.Rand

	vectors    [][]float32 // node index -> vector, resident only during build
	nodeLayer  []uint8     // node index -> highest layer it participates in
	layers     [][][]uint32 // layers[l][node] = adjacency list at layer l (node present iff nodeLayer[node] >= l)
	entryPoint uint32
	maxLayer   int

	layerMultiplier float64
}

func newGraph(n int, params backend.BuildParams, opts Options) *graph {
	return &graph{
		dimension:       params.Dimension,
		distance:        params.Distance,
		opts:            opts,
		rng:             rand.New(rand.NewSource(params.RandomSeed)),
		vectors:         make([][]float32, 0, n),
		nodeLayer:       make([]uint8, 0, n),
		layers:          make([][][]uint32, 1), // layer 0 always exists
		layerMultiplier: 1.0 / math.Log(float64(opts.M)),
	}
}

// Build consumes vectors in node-index order and constructs the graph. It
// returns once every vector has been inserted; the caller is responsible
// for then serializing it with encode and writing the bytes to disk.
func (g *graph) Build(ctx context.Context, vectors backend.VectorSource) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		v, ok, err := vectors.Next()
		if err != nil {
			return fmt.Errorf("hnsw: build: %w", err)
		}
		if !ok {
			return nil
		}
		g.insert(v)
	}
}

func (g *graph) drawLayer() int {
	// Geometric distribution with parameter 1/ln(M), per spec 4.2.1(a).
	r := g.rng.Float64()
	if r == 0 {
		r = 1e-12
	}
	return int(-math.Log(r) * g.layerMultiplier)
}

func (g *graph) insert(v []float32) {
	node := uint32(len(g.vectors))
	g.vectors = append(g.vectors, v)

	layer := g.drawLayer()
	g.nodeLayer = append(g.nodeLayer, uint8(min(layer, math.MaxUint8)))
	for len(g.layers) <= layer {
		g.layers = append(g.layers, make([][]uint32, 0))
	}
	for l := 0; l <= layer; l++ {
		g.ensureNodeSlot(l, node)
	}

	if node == 0 {
		g.entryPoint = node
		g.maxLayer = layer
		return
	}

	ep := g.entryPoint
	epDist := g.distance(v, g.vectors[ep])

	// (b) greedy 1-best descent from the top layer down to layer+1.
	for l := g.maxLayer; l > layer; l-- {
		ep, epDist = g.greedyDescend(v, ep, epDist, l)
	}

	// (c) search_layer + heuristic selection from layer down to 0.
	for l := min(layer, g.maxLayer); l >= 0; l-- {
		candidates := g.searchLayerBuild(v, ep, epDist, l, g.opts.EFConstruction, nil)
		m := g.opts.M
		if l == 0 {
			m *= mmax0Mult
		}
		neighbors := g.selectNeighbors(candidates, m)
		g.setConnections(l, node, neighbors)
		for _, nb := range neighbors {
			g.addConnection(l, nb, node)
		}
		if len(neighbors) > 0 {
			ep = neighbors[0]
			epDist = g.distance(v, g.vectors[ep])
		}
	}

	if layer > g.maxLayer {
		g.entryPoint = node
		g.maxLayer = layer
	}
}

func (g *graph) ensureNodeSlot(layer int, node uint32) {
	for uint32(len(g.layers[layer])) <= node {
		g.layers[layer] = append(g.layers[layer], nil)
	}
}

func (g *graph) greedyDescend(q []float32, ep uint32, epDist float32, layer int) (uint32, float32) {
	improved := true
	for improved {
		improved = false
		for _, nb := range g.connections(layer, ep) {
			d := g.distance(q, g.vectors[nb])
			if d < epDist {
				ep, epDist = nb, d
				improved = true
			}
		}
	}
	return ep, epDist
}

func (g *graph) connections(layer int, node uint32) []uint32 {
	if layer >= len(g.layers) || int(node) >= len(g.layers[layer]) {
		return nil
	}
	return g.layers[layer][node]
}

func (g *graph) setConnections(layer int, node uint32, conns []uint32) {
	g.ensureNodeSlot(layer, node)
	g.layers[layer][node] = conns
}

// addConnection adds the directed edge node -> target at layer (the reverse
// edge is a separate call), pruning node's adjacency back down to the
// degree bound via selectNeighbors if it overflows, per spec 4.2.1(d).
func (g *graph) addConnection(layer int, node, target uint32) {
	g.ensureNodeSlot(layer, node)
	conns := g.layers[layer][node]
	for _, c := range conns {
		if c == target {
			return
		}
	}
	if target == node {
		return
	}
	conns = append(conns, target)

	maxDeg := g.opts.M
	if layer == 0 {
		maxDeg *= mmax0Mult
	}
	if len(conns) > maxDeg {
		pq := pqueue.NewMax(len(conns))
		for _, c := range conns {
			pq.Push(pqueue.Item{Node: c, Distance: g.distance(g.vectors[node], g.vectors[c])})
		}
		conns = g.selectNeighbors(pq, maxDeg)
	}
	g.layers[layer][node] = conns
}

// selectNeighbors dispatches to heuristic or simple top-M selection.
func (g *graph) selectNeighbors(candidates *pqueue.Queue, m int) []uint32 {
	if g.opts.Heuristic {
		return g.selectNeighborsHeuristic(candidates, m)
	}
	return g.selectNeighborsSimple(candidates, m)
}

// selectNeighborsSimple keeps the m closest candidates, nearest first.
// candidates must be a max-heap.
func (g *graph) selectNeighborsSimple(candidates *pqueue.Queue, m int) []uint32 {
	for candidates.Len() > m {
		candidates.Pop()
	}
	res := make([]uint32, 0, candidates.Len())
	for candidates.Len() > 0 {
		it, _ := candidates.Pop()
		res = append(res, it.Node)
	}
	for i, j := 0, len(res)-1; i < j; i, j = i+1, j-1 {
		res[i], res[j] = res[j], res[i]
	}
	return res
}

// selectNeighborsHeuristic implements the relative-neighborhood-graph
// preference rule from spec 4.2.1(c): a candidate is kept only if it is
// closer to the query than to every neighbor already selected. If fewer
// than m candidates pass, the rejected ones are appended nearest first
// until m are selected.
func (g *graph) selectNeighborsHeuristic(candidates *pqueue.Queue, m int) []uint32 {
	if candidates.Len() <= m {
		return g.selectNeighborsSimple(candidates, m)
	}

	temp := make([]pqueue.Item, candidates.Len())
	for i := len(temp) - 1; i >= 0; i-- {
		temp[i], _ = candidates.Pop()
	}

	result := make([]uint32, 0, m)
	for _, cand := range temp {
		if len(result) >= m {
			break
		}
		good := true
		for _, r := range result {
			if g.distance(g.vectors[cand.Node], g.vectors[r]) < cand.Distance {
				good = false
				break
			}
		}
		if good {
			result = append(result, cand.Node)
		}
	}
	if len(result) < m {
		seen := make(map[uint32]bool, len(result))
		for _, r := range result {
			seen[r] = true
		}
		for _, cand := range temp {
			if len(result) >= m {
				break
			}
			if !seen[cand.Node] {
				result = append(result, cand.Node)
				seen[cand.Node] = true
			}
		}
	}
	return result
}

// searchLayerBuild runs the construction-time beam search at layer,
// operating over the fully resident build-time vector slice.
func (g *graph) searchLayerBuild(q []float32, ep uint32, epDist float32, layer, ef int, allow backend.AllowFunc) *pqueue.Queue {
	seen := visited.New(len(g.vectors))
	seen.Visit(ep)

	candidates := pqueue.NewMin(ef * 2)
	candidates.Push(pqueue.Item{Node: ep, Distance: epDist})

	results := pqueue.NewMax(ef + 1)
	if allow == nil || allow(ep) {
		results.Push(pqueue.Item{Node: ep, Distance: epDist})
	}

	for candidates.Len() > 0 {
		curr, _ := candidates.Pop()
		if results.Len() >= ef {
			worst, _ := results.Top()
			if curr.Distance > worst.Distance {
				break
			}
		}
		for _, next := range g.connections(layer, curr.Node) {
			if !seen.Visit(next) {
				continue
			}
			d := g.distance(q, g.vectors[next])
			candidates.Push(pqueue.Item{Node: next, Distance: d})
			if allow == nil || allow(next) {
				results.Push(pqueue.Item{Node: next, Distance: d})
				if results.Len() > ef {
					results.Pop()
				}
			}
		}
	}
	return results
}
