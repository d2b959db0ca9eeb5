package vamana

import (
	"encoding/binary"
	"fmt"
)

const (
	magic   = "LVM1"
	version = uint32(1)
)

// encode serializes g per the LVM1 layout:
//
//	magic(4) | version(u32) | N(u64) | R(u32) | entry_point(u32)
//	adjacency_offsets[N+1](u64)
//	adjacency_lists
//
// Each adjacency list is degree(u32) | neighbors(u32)[degree]. Unlike
// HNSW's LHN1, there is a single layer, so no layer_of_node table.
func (g *graph) encode() []byte {
	n := len(g.adjacency)
	header := make([]byte, 4+4+8+4+4)
	copy(header[0:4], magic)
	binary.LittleEndian.PutUint32(header[4:8], version)
	binary.LittleEndian.PutUint64(header[8:16], uint64(n))
	binary.LittleEndian.PutUint32(header[16:20], uint32(g.opts.R))
	binary.LittleEndian.PutUint32(header[20:24], g.entryPoint)

	lists := make([][]byte, n)
	for i, conns := range g.adjacency {
		buf := make([]byte, 4+4*len(conns))
		binary.LittleEndian.PutUint32(buf[0:4], uint32(len(conns)))
		for j, c := range conns {
			binary.LittleEndian.PutUint32(buf[4+4*j:8+4*j], c)
		}
		lists[i] = buf
	}

	offsets := make([]byte, 8*(n+1))
	relOff := uint64(len(header) + len(offsets))
	for i, list := range lists {
		binary.LittleEndian.PutUint64(offsets[8*i:8*i+8], relOff)
		relOff += uint64(len(list))
	}
	binary.LittleEndian.PutUint64(offsets[8*n:8*n+8], relOff)

	out := make([]byte, 0, relOff)
	out = append(out, header...)
	out = append(out, offsets...)
	for _, list := range lists {
		out = append(out, list...)
	}
	return out
}

// readerView exposes the decoded LVM1 header plus raw bytes for lazy
// adjacency resolution during search.
type readerView struct {
	data       []byte
	n          int
	r          int
	entryPoint uint32
	offsets    []uint64 // len n+1, absolute byte offsets
}

func decodeHeader(data []byte) (*readerView, error) {
	if len(data) < 24 {
		return nil, fmt.Errorf("vamana: graph file too short")
	}
	if string(data[0:4]) != magic {
		return nil, fmt.Errorf("vamana: bad magic %q", data[0:4])
	}
	n := int(binary.LittleEndian.Uint64(data[8:16]))
	r := int(binary.LittleEndian.Uint32(data[16:20]))
	entryPoint := binary.LittleEndian.Uint32(data[20:24])

	offsetsStart := 24
	offsetsEnd := offsetsStart + 8*(n+1)
	if offsetsEnd > len(data) {
		return nil, fmt.Errorf("vamana: graph file truncated")
	}
	offsets := make([]uint64, n+1)
	for i := range offsets {
		base := offsetsStart + 8*i
		offsets[i] = binary.LittleEndian.Uint64(data[base : base+8])
	}
	return &readerView{data: data, n: n, r: r, entryPoint: entryPoint, offsets: offsets}, nil
}

func (r *readerView) neighbors(node uint32) []uint32 {
	if int(node) >= r.n {
		return nil
	}
	start, end := r.offsets[node], r.offsets[node+1]
	buf := r.data[start:end]
	degree := binary.LittleEndian.Uint32(buf[0:4])
	out := make([]uint32, degree)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(buf[4+4*i : 8+4*i])
	}
	return out
}
