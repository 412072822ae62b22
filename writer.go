package histpack

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/vcsforge/histpack/internal/histcodec"
	"github.com/vcsforge/histpack/internal/histdigest"
)

// Writer accumulates history records grouped by file and, on Close,
// publishes a new immutable, content-addressed pack pair into dir.
//
// Callers must add all records for one file before moving to another file;
// interleaving sections, or adding to a file whose section has already been
// closed, is a client-protocol error. Within a section, callers are expected
// to emit records children-before-parents; the writer does not verify this
// (Repack enforces it).
type Writer struct {
	dir string

	packFile *os.File
	packTmp  string
	idxTmp   string

	digest  *histdigest.Stream
	packOff int64

	closedSections map[string]sectionSpan
	closedOrder    []string // preserves first-seen order, not used for sorting
	currentName    string
	currentStart   int64
	haveCurrent    bool
	seenInSection  map[NodeID]struct{} // debug-build order assertion only

	closed bool
}

type sectionSpan struct {
	offset int64
	length int64
}

// NewWriter opens fresh temp files under dir and writes the pack's version
// header.
func NewWriter(dir string) (*Writer, error) {
	packTmp, err := os.CreateTemp(dir, "*"+PackSuffix+"-tmp")
	if err != nil {
		return nil, newPackError(dir, ErrIO, err)
	}
	idxTmp, err := os.CreateTemp(dir, "*"+IndexSuffix+"-tmp")
	if err != nil {
		packTmp.Close()
		os.Remove(packTmp.Name())
		return nil, newPackError(dir, ErrIO, err)
	}
	idxTmp.Close() // reopened by name at Close time; keeps the fd count down meanwhile

	w := &Writer{
		dir:            dir,
		packFile:       packTmp,
		packTmp:        packTmp.Name(),
		idxTmp:         idxTmp.Name(),
		digest:         histdigest.NewStream(),
		closedSections: make(map[string]sectionSpan),
	}

	if err := w.writeRaw([]byte{histcodec.Version}); err != nil {
		w.Abort()
		return nil, err
	}
	return w, nil
}

func (w *Writer) writeRaw(p []byte) error {
	if _, err := w.packFile.Write(p); err != nil {
		return newPackError(w.dir, ErrIO, err)
	}
	w.digest.Write(p)
	w.packOff += int64(len(p))
	return nil
}

// Add appends one revision record to name's section, opening the section if
// name differs from the one currently open.
func (w *Writer) Add(name []byte, node, p1, p2, linknode NodeID) error {
	if w.closed {
		return newPackError(w.dir, ErrClientProtocol, fmt.Errorf("Add called after Close"))
	}

	sname := string(name)
	if !w.haveCurrent || sname != w.currentName {
		if _, already := w.closedSections[sname]; already {
			return newPackError(w.dir, ErrClientProtocol, fmt.Errorf("file %q added after its section was already closed", name))
		}
		if w.haveCurrent {
			w.closeCurrentSection()
		}
		w.currentName = sname
		w.currentStart = w.packOff
		w.haveCurrent = true
		w.seenInSection = nil

		header, err := histcodec.EncodeSectionHeader(nil, name)
		if err != nil {
			return newPackError(w.dir, ErrClientProtocol, err)
		}
		if err := w.writeRaw(header); err != nil {
			return err
		}
	}

	assertChildBeforeParents(w, name, node, p1, p2)

	rec := histcodec.Record{Node: node, P1: p1, P2: p2, Linknode: linknode}
	buf := histcodec.EncodeRecord(nil, rec)
	return w.writeRaw(buf)
}

func (w *Writer) closeCurrentSection() {
	w.closedSections[w.currentName] = sectionSpan{
		offset: w.currentStart,
		length: w.packOff - w.currentStart,
	}
	w.closedOrder = append(w.closedOrder, w.currentName)
	w.haveCurrent = false
}

// Close finalizes the pack: it closes the last open section, computes the
// pack's content digest, builds and writes the index, and atomically
// publishes both files under their content-addressed basename. The pack is
// renamed into place before the index, so a reader only ever sees a pack
// pair once both files exist with matching basenames.
func (w *Writer) Close() error {
	if w.closed {
		return newPackError(w.dir, ErrClientProtocol, fmt.Errorf("Close called twice"))
	}
	w.closed = true

	if w.haveCurrent {
		w.closeCurrentSection()
	}

	if err := w.packFile.Close(); err != nil {
		return newPackError(w.dir, ErrIO, err)
	}

	sum := w.digest.Sum20()
	base := NodeID(sum).String()

	indexBytes, err := w.buildIndex()
	if err != nil {
		return err
	}
	if err := os.WriteFile(w.idxTmp, indexBytes, 0o644); err != nil {
		return newPackError(w.dir, ErrIO, err)
	}

	packDst := filepath.Join(w.dir, base+PackSuffix)
	idxDst := filepath.Join(w.dir, base+IndexSuffix)

	if err := os.Rename(w.packTmp, packDst); err != nil {
		return newPackError(w.dir, ErrIO, err)
	}
	if err := os.Rename(w.idxTmp, idxDst); err != nil {
		return newPackError(w.dir, ErrIO, err)
	}
	return nil
}

// Abort discards the writer's temp files without publishing. Safe to call
// after a failed Add; a no-op concern left to the caller once Close has
// already run (successfully or not).
func (w *Writer) Abort() error {
	w.packFile.Close()
	err1 := os.Remove(w.packTmp)
	err2 := os.Remove(w.idxTmp)
	w.closed = true
	if err1 != nil && !os.IsNotExist(err1) {
		return newPackError(w.dir, ErrIO, err1)
	}
	if err2 != nil && !os.IsNotExist(err2) {
		return newPackError(w.dir, ErrIO, err2)
	}
	return nil
}

// buildIndex sorts the closed sections by name digest and emits the fanout
// table followed by the sorted index entries (spec §4.4 "Index
// construction").
func (w *Writer) buildIndex() ([]byte, error) {
	type keyed struct {
		digest [histcodec.NodeSize]byte
		span   sectionSpan
	}
	entries := make([]keyed, 0, len(w.closedOrder))
	for _, name := range w.closedOrder {
		entries = append(entries, keyed{
			digest: histdigest.Name([]byte(name)),
			span:   w.closedSections[name],
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].digest[:], entries[j].digest[:]) < 0
	})

	fanout := make([]int64, histcodec.FanoutEntries)
	for i := range fanout {
		fanout[i] = -1
	}
	for i, e := range entries {
		key, err := histcodec.FanoutKey(e.digest[:])
		if err != nil {
			return nil, newPackError(w.dir, ErrDecode, err)
		}
		if fanout[key] == -1 {
			fanout[key] = int64(i) * histcodec.IndexEntrySize
		}
	}

	out := make([]byte, 0, histcodec.FanoutSize+len(entries)*histcodec.IndexEntrySize)
	var last uint32
	for _, off := range fanout {
		v := last
		if off != -1 {
			v = uint32(off)
		}
		last = v
		out = histcodec.EncodeFanoutEntry(out, v)
	}
	for _, e := range entries {
		out = histcodec.EncodeIndexEntry(out, histcodec.IndexEntry{
			NameDigest:    e.digest,
			SectionOffset: uint64(e.span.offset),
			SectionLength: uint64(e.span.length),
		})
	}
	return out, nil
}
