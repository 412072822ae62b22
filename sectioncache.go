package histpack

import (
	"github.com/cespare/xxhash/v2"
	"github.com/dgryski/go-tinylfu"
)

// sectionLocation is the resolved (offset, length) of a file's record
// region within a pack, the recoverable half of what the section-lookup
// algorithm (spec §4.3) produces.
type sectionLocation struct {
	name   []byte
	offset int64
	length int64
}

// sectionCache speeds up repeated lookups of the same file within one
// PackReader's lifetime. It never changes the answer a cold bisection would
// give: a miss always falls through to the full lookup in reader.go.
type sectionCache struct {
	t *tinylfu.T[NodeID, sectionLocation]
}

func newSectionCache(capacity int) *sectionCache {
	if capacity <= 0 {
		return nil
	}
	return &sectionCache{
		t: tinylfu.New[NodeID, sectionLocation](capacity, capacity*10, hashNodeID),
	}
}

func hashNodeID(k NodeID) uint64 {
	return xxhash.Sum64(k[:])
}

func (c *sectionCache) get(digest NodeID) (sectionLocation, bool) {
	if c == nil {
		return sectionLocation{}, false
	}
	return c.t.Get(digest)
}

func (c *sectionCache) add(digest NodeID, loc sectionLocation) {
	if c == nil {
		return
	}
	c.t.Add(digest, loc)
}
