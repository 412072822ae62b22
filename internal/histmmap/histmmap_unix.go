//go:build unix

package histmmap

import (
	"golang.org/x/sys/unix"
)

// Open memory-maps path read-only for its entire length.
func Open(path string) (*Region, error) {
	f, size, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if size == 0 {
		// mmap of a zero-length file is undefined on most platforms; an
		// empty region needs no mapping at all.
		return &Region{}, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	return &Region{
		data: data,
		release: func() error {
			return unix.Munmap(data)
		},
	}, nil
}

// AdviseRandom hints that the region will be accessed via bisection rather
// than sequentially. Best-effort: errors are returned for the caller to log,
// never fatal.
func (r *Region) AdviseRandom() error {
	if len(r.data) == 0 {
		return nil
	}
	return unix.Madvise(r.data, unix.MADV_RANDOM)
}

// AdviseSequential hints that a forward scan (e.g. an ancestors traversal or
// a repack read) is about to happen over the region.
func (r *Region) AdviseSequential() error {
	if len(r.data) == 0 {
		return nil
	}
	return unix.Madvise(r.data, unix.MADV_SEQUENTIAL)
}
