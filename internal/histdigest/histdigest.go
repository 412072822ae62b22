// Package histdigest computes the 20-byte cryptographic digests that the
// history-pack format uses both to hash file names for index lookup and to
// name a published pack by the content of its own byte stream.
//
// crypto/sha1 is used deliberately rather than a faster non-cryptographic
// hash: the pack's on-disk basename is this digest, so collision resistance
// is a correctness property here, not just a performance knob (see
// DESIGN.md).
package histdigest

import (
	"crypto/sha1"
	"hash"
)

// Size is the digest width in bytes.
const Size = sha1.Size

// Name returns the digest of a file name, used as its identity in the index.
func Name(name []byte) [Size]byte {
	return sha1.Sum(name)
}

// Stream accumulates a digest over bytes written to it incrementally, used
// by the writer to name a pack by the content written to it.
type Stream struct {
	h hash.Hash
}

// NewStream returns a fresh streaming digest.
func NewStream() *Stream {
	return &Stream{h: sha1.New()}
}

// Write feeds bytes into the digest. It never returns an error.
func (s *Stream) Write(p []byte) (int, error) {
	return s.h.Write(p)
}

// Sum20 finalizes the digest and returns it as a fixed-size array.
func (s *Stream) Sum20() [Size]byte {
	var out [Size]byte
	copy(out[:], s.h.Sum(nil))
	return out
}
