package hnsw

import (
	"encoding/binary"
	"fmt"
)

const (
	magic   = "LHN1"
	version = uint32(1)
)

// encode serializes g in the LHN1 layout:
//
//	magic(4) | version(u32) | N(u64) | M(u32) | num_layers(u32) | entry_point(u32)
//	layer_of_node[N](u8)
//	layer_section_offset[num_layers+1](u64)   -- absolute byte offsets, sentinel = file length
//	for each layer l: offsets[count_l+1](u64) | adjacency_lists
//
// Each layer's node set is implicit: node n participates in layer l iff
// nodeLayer[n] >= l, taken in ascending node-index order. Each adjacency
// list is degree(u32) followed by neighbors(u32)[degree], little-endian.
func (g *graph) encode() []byte {
	n := len(g.vectors)
	numLayers := len(g.layers)

	header := make([]byte, 4+4+8+4+4+4)
	copy(header[0:4], magic)
	binary.LittleEndian.PutUint32(header[4:8], version)
	binary.LittleEndian.PutUint64(header[8:16], uint64(n))
	binary.LittleEndian.PutUint32(header[16:20], uint32(g.opts.M))
	binary.LittleEndian.PutUint32(header[20:24], uint32(numLayers))
	binary.LittleEndian.PutUint32(header[24:28], g.entryPoint)

	layerOfNode := make([]byte, n)
	for i, l := range g.nodeLayer {
		layerOfNode[i] = l
	}

	layerSections := make([][]byte, numLayers)
	for l := 0; l < numLayers; l++ {
		layerSections[l] = encodeLayer(g.layers[l], g.nodeLayer, l, n)
	}

	sectionOffsetsSize := 8 * (numLayers + 1)
	base := int64(len(header)) + int64(len(layerOfNode)) + int64(sectionOffsetsSize)

	sectionOffsets := make([]byte, sectionOffsetsSize)
	off := base
	for l := 0; l < numLayers; l++ {
		binary.LittleEndian.PutUint64(sectionOffsets[8*l:8*l+8], uint64(off))
		off += int64(len(layerSections[l]))
	}
	binary.LittleEndian.PutUint64(sectionOffsets[8*numLayers:8*numLayers+8], uint64(off))

	out := make([]byte, 0, off)
	out = append(out, header...)
	out = append(out, layerOfNode...)
	out = append(out, sectionOffsets...)
	for _, s := range layerSections {
		out = append(out, s...)
	}
	return out
}

// encodeLayer serializes one layer's offset table and adjacency lists for
// every node present at that layer, in ascending node-index order.
func encodeLayer(adjacency [][]uint32, nodeLayer []uint8, layer, n int) []byte {
	present := make([]uint32, 0, n)
	for node := 0; node < n; node++ {
		if int(nodeLayer[node]) >= layer {
			present = append(present, uint32(node))
		}
	}

	lists := make([][]byte, len(present))
	for i, node := range present {
		conns := adjacency[node]
		buf := make([]byte, 4+4*len(conns))
		binary.LittleEndian.PutUint32(buf[0:4], uint32(len(conns)))
		for j, c := range conns {
			binary.LittleEndian.PutUint32(buf[4+4*j:4+4*j+4], c)
		}
		lists[i] = buf
	}

	offsets := make([]byte, 8*(len(present)+1))
	relOff := uint64(len(offsets))
	for i, list := range lists {
		binary.LittleEndian.PutUint64(offsets[8*i:8*i+8], relOff)
		relOff += uint64(len(list))
	}
	binary.LittleEndian.PutUint64(offsets[8*len(present):8*len(present)+8], relOff)

	out := make([]byte, 0, relOff)
	out = append(out, offsets...)
	for _, list := range lists {
		out = append(out, list...)
	}
	return out
}

// readerView exposes the decoded header fields plus the raw bytes needed
// to resolve adjacency lists lazily during search, without materializing
// every layer's graph into Go slices up front.
type readerView struct {
	data       []byte
	n          int
	m          int
	numLayers  int
	entryPoint uint32

	layerOfNodeOffset int
	sectionOffsets    []uint64 // len numLayers+1, absolute
}

func decodeHeader(data []byte) (*readerView, error) {
	if len(data) < 28 {
		return nil, fmt.Errorf("hnsw: graph file too short")
	}
	if string(data[0:4]) != magic {
		return nil, fmt.Errorf("hnsw: bad magic %q", data[0:4])
	}
	n := int(binary.LittleEndian.Uint64(data[8:16]))
	m := int(binary.LittleEndian.Uint32(data[16:20]))
	numLayers := int(binary.LittleEndian.Uint32(data[20:24]))
	entryPoint := binary.LittleEndian.Uint32(data[24:28])

	layerOfNodeOffset := 28
	sectionOffsetsStart := layerOfNodeOffset + n
	sectionOffsetsEnd := sectionOffsetsStart + 8*(numLayers+1)
	if sectionOffsetsEnd > len(data) {
		return nil, fmt.Errorf("hnsw: graph file truncated")
	}
	sectionOffsets := make([]uint64, numLayers+1)
	for i := range sectionOffsets {
		base := sectionOffsetsStart + 8*i
		sectionOffsets[i] = binary.LittleEndian.Uint64(data[base : base+8])
	}

	return &readerView{
		data:              data,
		n:                 n,
		m:                 m,
		numLayers:         numLayers,
		entryPoint:        entryPoint,
		layerOfNodeOffset: layerOfNodeOffset,
		sectionOffsets:    sectionOffsets,
	}, nil
}

func (r *readerView) nodeLayer(node uint32) int {
	return int(r.data[r.layerOfNodeOffset+int(node)])
}

// neighbors returns node's adjacency list at layer, resolved lazily from
// node's rank in the layer's implicit present-node ordering (see
// rankAtLayer, a linear count of lower-numbered present nodes).
func (r *readerView) neighbors(layer int, node uint32) []uint32 {
	if layer >= r.numLayers || r.nodeLayer(node) < layer {
		return nil
	}
	sectionStart := r.sectionOffsets[layer]
	sectionEnd := r.sectionOffsets[layer+1]
	section := r.data[sectionStart:sectionEnd]

	rank := r.rankAtLayer(layer, node)
	base := 8 * rank
	start := binary.LittleEndian.Uint64(section[base : base+8])
	end := binary.LittleEndian.Uint64(section[base+8 : base+16])

	buf := section[start:end]
	degree := binary.LittleEndian.Uint32(buf[0:4])
	out := make([]uint32, degree)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(buf[4+4*i : 8+4*i])
	}
	return out
}

// rankAtLayer returns node's position (0-based) among the nodes present at
// layer, in ascending node-index order.
func (r *readerView) rankAtLayer(layer int, node uint32) int {
	rank := 0
	for n := uint32(0); n < node; n++ {
		if r.nodeLayer(n) >= layer {
			rank++
		}
	}
	return rank
}
