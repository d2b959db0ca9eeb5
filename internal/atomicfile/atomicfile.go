// Package atomicfile provides crash-safe file writes: write to a temp file
// in the same directory, fsync, then rename over the destination. A reader
// never observes a partially written file.
package atomicfile

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// WriteFile atomically writes data to path: it writes to a sibling temp
// file, syncs it, then renames it into place. perm is applied to the temp
// file before rename.
func WriteFile(path string, data []byte, perm fs.FileMode) error {
	return Write(path, perm, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// Write atomically writes to path using writeFn to produce the contents.
// writeFn may be called with a buffered writer over the temp file; the temp
// file is synced and renamed into place only if writeFn returns nil.
func Write(path string, perm fs.FileMode, writeFn func(io.Writer) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("atomicfile: create temp in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	renamed := false
	defer func() {
		tmp.Close()
		if !renamed {
			os.Remove(tmpPath)
		}
	}()

	if err := writeFn(tmp); err != nil {
		return fmt.Errorf("atomicfile: write %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("atomicfile: sync %s: %w", tmpPath, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		return fmt.Errorf("atomicfile: chmod %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("atomicfile: close %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("atomicfile: rename %s -> %s: %w", tmpPath, path, err)
	}
	renamed = true
	return nil
}

// SyncDir fsyncs the directory entry itself, which on POSIX filesystems is
// required in addition to fsyncing the file to make a rename durable across
// a crash. Best-effort: some platforms and filesystems don't support
// directory fsync, so errors here are not fatal to callers that have
// already renamed successfully.
func SyncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
