// Package histmmap memory-maps a file read-only and exposes its bytes as a
// plain slice, with best-effort access-pattern hints. Platforms without a
// POSIX mmap (handled in histmmap_unix.go) fall back to a whole-file read in
// histmmap_other.go.
package histmmap

import "os"

// Region is a read-only view of an entire file's bytes, either mmap'd or
// (on unsupported platforms) read wholesale into memory.
type Region struct {
	data    []byte
	release func() error
}

// Bytes returns the mapped file content. The slice is valid until Close.
func (r *Region) Bytes() []byte { return r.data }

// Len returns the mapped length.
func (r *Region) Len() int { return len(r.data) }

// Close unmaps (or releases) the region.
func (r *Region) Close() error {
	if r.release == nil {
		return nil
	}
	return r.release()
}

func openFile(path string) (*os.File, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}
