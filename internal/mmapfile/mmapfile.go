// Package mmapfile memory-maps files read-only so the HNSW and Vamana
// backends can page large graph files in on demand instead of reading them
// fully into the heap.
package mmapfile

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// File is a read-only memory-mapped file. The zero value is not usable;
// construct with Open.
type File struct {
	f    *os.File
	data []byte
}

// Open maps path into memory for reading. The file is kept open for the
// lifetime of the mapping; Close releases both.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mmapfile: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmapfile: stat %s: %w", path, err)
	}
	size := info.Size()
	if size == 0 {
		f.Close()
		return nil, fmt.Errorf("mmapfile: %s is empty", path)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmapfile: mmap %s: %w", path, err)
	}
	return &File{f: f, data: data}, nil
}

// Bytes returns the full mapped region. The returned slice is valid until
// Close; callers must not retain it past that point.
func (m *File) Bytes() []byte { return m.data }

// Len returns the size of the mapping in bytes.
func (m *File) Len() int { return len(m.data) }

// At returns a sub-slice [offset:offset+length) of the mapping, bounds
// checked against the mapping length.
func (m *File) At(offset, length int) ([]byte, error) {
	if offset < 0 || length < 0 || offset+length > len(m.data) {
		return nil, fmt.Errorf("mmapfile: range [%d:%d) out of bounds (len %d)", offset, offset+length, len(m.data))
	}
	return m.data[offset : offset+length], nil
}

// Advise hints the kernel about the expected access pattern. Typical values
// are unix.MADV_RANDOM for graph adjacency files accessed by beam search and
// unix.MADV_SEQUENTIAL for files read start to end, such as during compaction.
func (m *File) Advise(advice int) error {
	if len(m.data) == 0 {
		return nil
	}
	return unix.Madvise(m.data, advice)
}

// Close unmaps the file and closes the underlying file descriptor.
func (m *File) Close() error {
	var err error
	if m.data != nil {
		err = unix.Munmap(m.data)
		m.data = nil
	}
	if cerr := m.f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
