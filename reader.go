package histpack

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/vcsforge/histpack/internal/histcodec"
	"github.com/vcsforge/histpack/internal/histdigest"
	"github.com/vcsforge/histpack/internal/histmmap"
)

// PackReader serves lookups against one published (index, pack) file pair.
// It memory-maps both files; the mapping outlives individual queries and is
// released by Close.
type PackReader struct {
	base string // path with no suffix, e.g. ".../<hex-digest>"

	index *histmmap.Region
	pack  *histmmap.Region

	fanout [histcodec.FanoutEntries]uint32

	cache *sectionCache
	log   *slog.Logger
}

// ReaderOption configures a PackReader at construction time.
type ReaderOption func(*readerConfig)

type readerConfig struct {
	cacheSize int
	logger    *slog.Logger
}

// WithSectionCacheSize bounds the number of resolved sections cached in
// memory. A size of 0 disables the cache, forcing every lookup through a
// fresh bisection (useful for tests that want to exercise that path).
func WithSectionCacheSize(n int) ReaderOption {
	return func(c *readerConfig) { c.cacheSize = n }
}

// WithLogger overrides the default slog.Logger used for best-effort,
// non-fatal diagnostics (madvise failures and the like).
func WithLogger(l *slog.Logger) ReaderOption {
	return func(c *readerConfig) { c.logger = l }
}

// OpenPack opens the pack pair at base+".histpack"/base+".histidx". It fails
// if either file is missing, if the index is shorter than the fanout table,
// or if the pack's version byte is unsupported.
func OpenPack(base string, opts ...ReaderOption) (*PackReader, error) {
	cfg := readerConfig{cacheSize: 4096, logger: slog.Default()}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	packPath := base + PackSuffix
	indexPath := base + IndexSuffix

	packRegion, err := histmmap.Open(packPath)
	if err != nil {
		return nil, newPackError(base, ErrIO, err)
	}
	indexRegion, err := histmmap.Open(indexPath)
	if err != nil {
		packRegion.Close()
		return nil, newPackError(base, ErrIO, err)
	}

	if indexRegion.Len() < histcodec.FanoutSize {
		indexRegion.Close()
		packRegion.Close()
		return nil, newPackError(base, ErrDecode, fmt.Errorf("index is %d bytes, shorter than fanout table (%d)", indexRegion.Len(), histcodec.FanoutSize))
	}
	if packRegion.Len() < 1 {
		indexRegion.Close()
		packRegion.Close()
		return nil, newPackError(base, ErrDecode, fmt.Errorf("pack is empty, missing version byte"))
	}
	if v := packRegion.Bytes()[0]; v != histcodec.Version {
		indexRegion.Close()
		packRegion.Close()
		return nil, newPackError(base, ErrDecode, fmt.Errorf("unsupported pack version %d", v))
	}

	r := &PackReader{
		base:  base,
		index: indexRegion,
		pack:  packRegion,
		cache: newSectionCache(cfg.cacheSize),
		log:   cfg.logger,
	}

	rawFanout := indexRegion.Bytes()[:histcodec.FanoutSize]
	for i := range r.fanout {
		v, err := histcodec.DecodeFanoutEntry(rawFanout[i*histcodec.FanoutEntrySize:])
		if err != nil {
			indexRegion.Close()
			packRegion.Close()
			return nil, newPackError(base, ErrDecode, err)
		}
		r.fanout[i] = v
	}

	if err := indexRegion.AdviseRandom(); err != nil {
		r.log.Debug("histpack: madvise(random) failed", "path", indexPath, "err", err)
	}

	return r, nil
}

// Close unmaps both files.
func (r *PackReader) Close() error {
	var firstErr error
	if err := r.index.Close(); err != nil {
		firstErr = err
	}
	if err := r.pack.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Path returns the base path (without suffix) this reader was opened from.
func (r *PackReader) Path() string { return r.base }

// Missing returns the subset of keys not present in this pack.
func (r *PackReader) Missing(keys []Key) []Key {
	var missing []Key
	for _, k := range keys {
		if _, err := r.findNode(k.Name, k.Node); err != nil {
			missing = append(missing, k)
		}
	}
	return missing
}

// Parents returns the two possible parents of (name, node).
func (r *PackReader) Parents(name []byte, node NodeID) (p1, p2 NodeID, err error) {
	rec, err := r.findNode(name, node)
	if err != nil {
		return NodeID{}, NodeID{}, err
	}
	return rec.P1, rec.P2, nil
}

// Linknode returns the commit that introduced (name, node).
func (r *PackReader) Linknode(name []byte, node NodeID) (NodeID, error) {
	rec, err := r.findNode(name, node)
	if err != nil {
		return NodeID{}, err
	}
	return rec.Linknode, nil
}

// Ancestors returns every ancestor of (name, node) that this pack's section
// for name contains, each mapped to its originally-supplied (p1, p2,
// linknode). It scans the section once, front-to-back, accumulating a
// frontier: because records are stored children-before-parents, a single
// forward pass suffices.
func (r *PackReader) Ancestors(name []byte, node NodeID) (map[NodeID]Record, error) {
	loc, err := r.findSection(name)
	if err != nil {
		return nil, err
	}

	if err := r.pack.AdviseSequential(); err != nil {
		r.log.Debug("histpack: madvise(sequential) failed", "path", r.base+PackSuffix, "err", err)
	}

	data := r.pack.Bytes()
	frontier := map[NodeID]struct{}{node: {}}
	results := make(map[NodeID]Record)

	end := loc.offset + loc.length
	for o := loc.offset; o+histcodec.RecordSize <= end; o += histcodec.RecordSize {
		rec, err := histcodec.DecodeRecord(data[o : o+histcodec.RecordSize])
		if err != nil {
			return nil, newPackError(r.base, ErrDecode, err)
		}
		recNode := NodeID(rec.Node)
		if _, want := frontier[recNode]; !want {
			continue
		}
		p1, p2, link := NodeID(rec.P1), NodeID(rec.P2), NodeID(rec.Linknode)
		results[recNode] = Record{Node: recNode, P1: p1, P2: p2, Linknode: link}
		frontier[p1] = struct{}{}
		frontier[p2] = struct{}{}
	}

	if len(results) == 0 {
		return nil, newPackError(r.base, ErrNotFound, fmt.Errorf("%s:%s", name, node))
	}
	return results, nil
}

// findNode linearly scans name's section for node, returning its full
// record. It advances by a fixed 80-byte stride from the section's start
// offset (the corrected design: spec §9 flags the original's re-decode-from-
// offset loop as a bug).
func (r *PackReader) findNode(name []byte, node NodeID) (Record, error) {
	loc, err := r.findSection(name)
	if err != nil {
		return Record{}, err
	}

	data := r.pack.Bytes()
	end := loc.offset + loc.length
	for o := loc.offset; o+histcodec.RecordSize <= end; o += histcodec.RecordSize {
		rec, err := histcodec.DecodeRecord(data[o : o+histcodec.RecordSize])
		if err != nil {
			return Record{}, newPackError(r.base, ErrDecode, err)
		}
		if NodeID(rec.Node) == node {
			return Record{Node: NodeID(rec.Node), P1: NodeID(rec.P1), P2: NodeID(rec.P2), Linknode: NodeID(rec.Linknode)}, nil
		}
	}
	return Record{}, newPackError(r.base, ErrNotFound, fmt.Errorf("%s:%s", name, node))
}

// findSection implements the fanout + bisection lookup of spec §4.3. A
// cache hit whose cached name equals name is returned as-is, without
// bisecting or re-reading the section header from the pack; a hit under a
// different name falls through to the full lookup.
func (r *PackReader) findSection(name []byte) (sectionLocation, error) {
	digest := NodeID(histdigest.Name(name))

	if loc, ok := r.cache.get(digest); ok {
		if bytes.Equal(loc.name, name) {
			return loc, nil
		}
	}

	loc, err := r.bisectSection(digest, name)
	if err != nil {
		return sectionLocation{}, err
	}
	r.cache.add(digest, loc)
	return loc, nil
}

func (r *PackReader) bisectSection(digest NodeID, name []byte) (sectionLocation, error) {
	fanoutKey, err := histcodec.FanoutKey(digest[:])
	if err != nil {
		return sectionLocation{}, newPackError(r.base, ErrDecode, err)
	}

	start := int64(r.fanout[fanoutKey]) + histcodec.FanoutSize
	// Empty fanout slots repeat the previous slot's offset, so the range
	// ends at the first later slot holding a different offset, or at the
	// end of the index if there is none.
	end := int64(r.index.Len())
	for k := int(fanoutKey) + 1; k < histcodec.FanoutEntries; k++ {
		if v := int64(r.fanout[k]) + histcodec.FanoutSize; v != start {
			end = v
			break
		}
	}

	idx := r.index.Bytes()

	for start < end {
		mid := start + (end-start)/2
		mid -= (mid - histcodec.FanoutSize) % histcodec.IndexEntrySize

		entryBuf := idx[mid : mid+histcodec.IndexEntrySize]
		entry, err := histcodec.DecodeIndexEntry(entryBuf)
		if err != nil {
			return sectionLocation{}, newPackError(r.base, ErrDecode, err)
		}

		cmp := bytes.Compare(digest[:], entry.NameDigest[:])
		switch {
		case cmp == 0:
			return r.resolveSection(name, entry)
		case cmp < 0:
			end = mid
		default: // cmp > 0
			start = mid + histcodec.IndexEntrySize
		}
	}

	return sectionLocation{}, newPackError(r.base, ErrNotFound, fmt.Errorf("%s", name))
}

// resolveSection reads the section header at entry's offset and validates
// that the inline name matches what was requested (spec §4.3 step 5). A nil
// name skips that check, returning whatever name is actually stored there
// (used by Sections, which doesn't know the name in advance).
func (r *PackReader) resolveSection(name []byte, entry histcodec.IndexEntry) (sectionLocation, error) {
	data := r.pack.Bytes()
	off := int64(entry.SectionOffset)
	length := int64(entry.SectionLength)

	if off < 0 || length < 0 || off+length > int64(len(data)) {
		return sectionLocation{}, newPackError(r.base, ErrDecode, fmt.Errorf("section [%d,%d) out of range", off, off+length))
	}

	actualName, consumed, err := histcodec.DecodeSectionHeader(data[off : off+length])
	if err != nil {
		return sectionLocation{}, newPackError(r.base, ErrDecode, err)
	}
	if name != nil && !bytes.Equal(actualName, name) {
		return sectionLocation{}, newPackError(r.base, ErrCollision, fmt.Errorf("found name %q when looking for %q", actualName, name))
	}

	return sectionLocation{
		name:   append([]byte(nil), actualName...),
		offset: off + int64(consumed),
		length: length - int64(consumed),
	}, nil
}

// FileNodes returns, for every section in this pack, the file's name and
// every revision node recorded in it. It is the seed set a repack needs:
// because a section can hold more than one disconnected line of history
// for the same file, every stored node (not just apparent heads) must be
// offered as a starting point for the ancestor walk.
func (r *PackReader) FileNodes() ([]FileNodes, error) {
	count := r.SectionCount()
	idx := r.index.Bytes()
	data := r.pack.Bytes()

	out := make([]FileNodes, 0, count)
	for i := 0; i < count; i++ {
		off := histcodec.FanoutSize + i*histcodec.IndexEntrySize
		entry, err := histcodec.DecodeIndexEntry(idx[off : off+histcodec.IndexEntrySize])
		if err != nil {
			return nil, newPackError(r.base, ErrDecode, err)
		}
		loc, err := r.resolveSection(nil, entry)
		if err != nil {
			return nil, err
		}

		end := loc.offset + loc.length
		var nodes []NodeID
		for o := loc.offset; o+histcodec.RecordSize <= end; o += histcodec.RecordSize {
			rec, err := histcodec.DecodeRecord(data[o : o+histcodec.RecordSize])
			if err != nil {
				return nil, newPackError(r.base, ErrDecode, err)
			}
			nodes = append(nodes, NodeID(rec.Node))
		}
		out = append(out, FileNodes{Name: loc.name, Nodes: nodes})
	}
	return out, nil
}

// SectionCount reports how many file sections this pack's index describes,
// without touching the pack's content bytes.
func (r *PackReader) SectionCount() int {
	return (r.index.Len() - histcodec.FanoutSize) / histcodec.IndexEntrySize
}

// Sections returns the name of every file section in index order (sorted by
// name digest, not by name). Intended for diagnostics; an ordinary caller
// should use Parents/Ancestors/Linknode against a known name instead.
func (r *PackReader) Sections() ([][]byte, error) {
	count := r.SectionCount()
	idx := r.index.Bytes()
	names := make([][]byte, 0, count)
	for i := 0; i < count; i++ {
		off := histcodec.FanoutSize + i*histcodec.IndexEntrySize
		entry, err := histcodec.DecodeIndexEntry(idx[off : off+histcodec.IndexEntrySize])
		if err != nil {
			return nil, newPackError(r.base, ErrDecode, err)
		}
		loc, err := r.resolveSection(nil, entry)
		if err != nil {
			return nil, err
		}
		names = append(names, loc.name)
	}
	return names, nil
}

// File suffixes, per spec §6.
const (
	PackSuffix  = ".histpack"
	IndexSuffix = ".histidx"
)
