// Package passage persists passage text and metadata and serves O(1)
// lookups by node index or stable id. It is the only component that ever
// holds the corpus text; everything else addresses content by node index.
package passage

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	gojson "github.com/goccy/go-json"

	"github.com/ngmks/LEANN/internal/atomicfile"
)

const (
	idxMagic   = "LPX1"
	idxVersion = uint32(1)
	idxHeaderSize = 4 + 4 + 8 // magic + version + N
)

// Metadata is a free-form key/value bag attached to a passage. Values are
// restricted by convention to string, float64, bool, or nil (JSON's native
// scalar types); an optional "timestamp" key holds an ISO-8601 string
// consulted by the filter package's time predicates.
type Metadata map[string]any

// Passage is the atom of retrieval: stable id, raw text, and metadata.
type Passage struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata,omitempty"`
}

// Store is an append-only passage store backed by a JSONL file and a
// fixed-width binary offset index. A Store opened for writing (via Create)
// must not be read concurrently by another process; readers
// should use OpenRead against a finalized directory.
type Store struct {
	jsonlPath string
	idxPath   string

	mu      sync.RWMutex
	offsets []uint64 // len N+1, offsets[N] == jsonl file size
	ids     map[string]uint32
	jsonl   *os.File   // open for append when writing
	writer  *bufio.Writer
	readers *os.File // open for random-access reads
}

// Paths returns the two on-disk file paths a Store with the given base name
// (e.g. "myindex") uses within dir.
func Paths(dir, name string) (jsonl, idx string) {
	return filepath.Join(dir, name+".passages.jsonl"), filepath.Join(dir, name+".passages.idx")
}

// Create makes a new, empty Store ready to accept Append calls. It fails if
// either target file already exists, to avoid silently merging into a
// stale index directory.
func Create(dir, name string) (*Store, error) {
	jsonlPath, idxPath := Paths(dir, name)
	if _, err := os.Stat(jsonlPath); err == nil {
		return nil, fmt.Errorf("passage: %s already exists", jsonlPath)
	}
	f, err := os.OpenFile(jsonlPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("passage: create %s: %w", jsonlPath, err)
	}
	s := &Store{
		jsonlPath: jsonlPath,
		idxPath:   idxPath,
		offsets:   []uint64{0},
		ids:       make(map[string]uint32),
		jsonl:     f,
		writer:    bufio.NewWriter(f),
	}
	return s, nil
}

// Append writes a new passage and returns its node index. Duplicate ids are
// rejected.
func (s *Store) Append(id, text string, metadata Metadata) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer == nil {
		return 0, fmt.Errorf("passage: store not open for writing")
	}
	if _, exists := s.ids[id]; exists {
		return 0, ErrDuplicateID(id)
	}

	line, err := gojson.Marshal(Passage{ID: id, Text: text, Metadata: metadata})
	if err != nil {
		return 0, fmt.Errorf("passage: marshal %s: %w", id, err)
	}
	line = append(line, '\n')
	if _, err := s.writer.Write(line); err != nil {
		return 0, fmt.Errorf("passage: write %s: %w", id, err)
	}

	node := uint32(len(s.offsets) - 1)
	newOffset := s.offsets[len(s.offsets)-1] + uint64(len(line))
	s.offsets = append(s.offsets, newOffset)
	s.ids[id] = node
	return node, nil
}

// Finalize flushes the jsonl file and atomically writes the offset index.
// After Finalize, the Store may still serve reads via GetByNode/GetByID but
// Append will fail; call Close when done.
func (s *Store) Finalize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer != nil {
		if err := s.writer.Flush(); err != nil {
			return fmt.Errorf("passage: flush jsonl: %w", err)
		}
		if err := s.jsonl.Sync(); err != nil {
			return fmt.Errorf("passage: sync jsonl: %w", err)
		}
	}

	n := len(s.offsets) - 1
	buf := make([]byte, idxHeaderSize+8*len(s.offsets))
	copy(buf[0:4], idxMagic)
	binary.LittleEndian.PutUint32(buf[4:8], idxVersion)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(n))
	for i, off := range s.offsets {
		binary.LittleEndian.PutUint64(buf[idxHeaderSize+8*i:idxHeaderSize+8*i+8], off)
	}
	if err := atomicfile.WriteFile(s.idxPath, buf, 0o644); err != nil {
		return fmt.Errorf("passage: write index: %w", err)
	}

	s.writer = nil
	return nil
}

// OpenRead opens a finalized Store for read-only access: get_by_node,
// get_by_id, and Iter. It validates the offset table against the jsonl
// file size and refuses to serve a mismatched pair.
func OpenRead(dir, name string) (*Store, error) {
	jsonlPath, idxPath := Paths(dir, name)

	idxData, err := os.ReadFile(idxPath)
	if err != nil {
		return nil, fmt.Errorf("passage: read index %s: %w", idxPath, err)
	}
	if len(idxData) < idxHeaderSize {
		return nil, ErrCorrupt(idxPath, "index file too short")
	}
	if string(idxData[0:4]) != idxMagic {
		return nil, ErrCorrupt(idxPath, "bad magic")
	}
	n := binary.LittleEndian.Uint64(idxData[8:16])
	wantLen := idxHeaderSize + 8*(int(n)+1)
	if len(idxData) != wantLen {
		return nil, ErrCorrupt(idxPath, "index length does not match N")
	}

	offsets := make([]uint64, n+1)
	for i := range offsets {
		base := idxHeaderSize + 8*i
		offsets[i] = binary.LittleEndian.Uint64(idxData[base : base+8])
	}

	jf, err := os.Open(jsonlPath)
	if err != nil {
		return nil, fmt.Errorf("passage: open %s: %w", jsonlPath, err)
	}
	info, err := jf.Stat()
	if err != nil {
		jf.Close()
		return nil, fmt.Errorf("passage: stat %s: %w", jsonlPath, err)
	}
	if uint64(info.Size()) != offsets[len(offsets)-1] {
		jf.Close()
		return nil, ErrCorrupt(jsonlPath, "sentinel offset disagrees with file size")
	}

	s := &Store{
		jsonlPath: jsonlPath,
		idxPath:   idxPath,
		offsets:   offsets,
		ids:       make(map[string]uint32, n),
		readers:   jf,
	}
	if err := s.loadIDIndex(); err != nil {
		jf.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) loadIDIndex() error {
	for node := uint32(0); node < uint32(s.Len()); node++ {
		p, err := s.getByNodeLocked(node)
		if err != nil {
			return err
		}
		s.ids[p.ID] = node
	}
	return nil
}

// Len returns the number of passages currently in the store.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.offsets) - 1
}

// GetByNode returns the passage at node index n.
func (s *Store) GetByNode(n uint32) (Passage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getByNodeLocked(n)
}

func (s *Store) getByNodeLocked(n uint32) (Passage, error) {
	nn := len(s.offsets) - 1
	if int(n) >= nn {
		return Passage{}, ErrOutOfRange(n, nn)
	}
	start, end := s.offsets[n], s.offsets[n+1]
	buf := make([]byte, end-start)

	f := s.readers
	if f == nil {
		f = s.jsonl
	}
	if _, err := f.ReadAt(buf, int64(start)); err != nil {
		return Passage{}, fmt.Errorf("passage: read node %d: %w", n, err)
	}
	var p Passage
	// Trim the trailing newline before unmarshaling.
	payload := buf
	if len(payload) > 0 && payload[len(payload)-1] == '\n' {
		payload = payload[:len(payload)-1]
	}
	if err := gojson.Unmarshal(payload, &p); err != nil {
		return Passage{}, ErrCorrupt(s.jsonlPath, fmt.Sprintf("node %d does not parse: %v", n, err))
	}
	return p, nil
}

// GetByID returns the passage with the given stable id.
func (s *Store) GetByID(id string) (Passage, error) {
	s.mu.RLock()
	node, ok := s.ids[id]
	s.mu.RUnlock()
	if !ok {
		return Passage{}, ErrNotFound(id)
	}
	return s.GetByNode(node)
}

// HasID reports whether id already exists in the store, used by the
// builder's idempotent-rebuild ingest check.
func (s *Store) HasID(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

// Iter calls fn for every passage in node order, stopping early if fn
// returns an error.
func (s *Store) Iter(fn func(node uint32, p Passage) error) error {
	n := s.Len()
	for node := uint32(0); node < uint32(n); node++ {
		p, err := s.GetByNode(node)
		if err != nil {
			return err
		}
		if err := fn(node, p); err != nil {
			return err
		}
	}
	return nil
}

// Stats reports store size for builder progress output and health checks.
type Stats struct {
	NumPassages int
	JSONLBytes  int64
}

// Stat returns the current store size.
func (s *Store) Stat() (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		NumPassages: len(s.offsets) - 1,
		JSONLBytes:  int64(s.offsets[len(s.offsets)-1]),
	}, nil
}

// Close releases the store's open file handles.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if s.jsonl != nil {
		if cerr := s.jsonl.Close(); cerr != nil {
			err = cerr
		}
		s.jsonl = nil
	}
	if s.readers != nil {
		if cerr := s.readers.Close(); cerr != nil && err == nil {
			err = cerr
		}
		s.readers = nil
	}
	return err
}
