package histpack

import (
	"errors"
	"fmt"
)

// Error kinds, tested with errors.Is. See spec §7.
var (
	// ErrNotFound: the queried (name, node) pair is absent from this pack
	// (PackReader) or every pack in this store (Store, only once all packs
	// have missed).
	ErrNotFound = errors.New("histpack: not found")

	// ErrDecode: an index or pack byte sequence does not match the declared
	// layout — a truncated file, an unsupported version byte, or a
	// name-length that overruns its section.
	ErrDecode = errors.New("histpack: decode error")

	// ErrCollision: a name digest matched in the index but the inline file
	// name stored in the pack did not. This surfaces either a SHA-1
	// collision or on-disk corruption; it is never recovered locally.
	ErrCollision = errors.New("histpack: name collision")

	// ErrClientProtocol: a Writer was called with interleaved file sections,
	// or Add was called after Close, or Add was called on a read-only Store.
	ErrClientProtocol = errors.New("histpack: client protocol violation")

	// ErrIO wraps an underlying filesystem or mapping failure.
	ErrIO = errors.New("histpack: i/o error")
)

// PackError wraps one of the sentinel errors above with the pack path that
// produced it, so callers can both match on kind (errors.Is) and log
// something actionable.
type PackError struct {
	Path string
	Kind error
	Err  error // underlying cause, may be nil
}

func (e *PackError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v: %v", e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Kind)
}

func (e *PackError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func newPackError(path string, kind error, cause error) *PackError {
	return &PackError{Path: path, Kind: kind, Err: cause}
}
