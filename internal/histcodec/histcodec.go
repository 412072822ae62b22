// Package histcodec implements the fixed binary layouts used by the
// history-pack format: index entries, pack records, fanout entries, and
// file-section headers. Every function here is total over a fixed-width
// slice; a short slice is a decode error, never a panic.
package histcodec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrShort is wrapped into every decode error caused by an undersized buffer.
var ErrShort = errors.New("histcodec: buffer too short")

const (
	NodeSize = 20

	// IndexEntrySize is the on-disk size of one index entry:
	// <name-digest:20><section offset:u64 BE><section length:u64 BE>.
	IndexEntrySize = NodeSize + 8 + 8

	// RecordSize is the on-disk size of one pack record:
	// <node:20><p1:20><p2:20><linknode:20>.
	RecordSize = NodeSize * 4

	// FanoutEntrySize is the width of one fanout table slot.
	FanoutEntrySize = 4

	// FanoutPrefixBytes is the number of leading name-digest bytes addressed
	// by the fanout table.
	FanoutPrefixBytes = 2

	// FanoutEntries is 2^(FanoutPrefixBytes*8).
	FanoutEntries = 1 << (FanoutPrefixBytes * 8)

	// FanoutSize is the total byte width of the fanout table region.
	FanoutSize = FanoutEntries * FanoutEntrySize

	// Version is the only pack version this codec understands.
	Version = 0

	// SectionHeaderPrefixSize is the width of the name-length prefix alone.
	SectionHeaderPrefixSize = 2

	// MaxNameLength is the largest file name this format can address.
	MaxNameLength = 0xFFFF
)

// IndexEntry is the decoded form of one 36-byte index record.
type IndexEntry struct {
	NameDigest    [NodeSize]byte
	SectionOffset uint64
	SectionLength uint64
}

// DecodeIndexEntry reads one IndexEntry from the first IndexEntrySize bytes
// of buf.
func DecodeIndexEntry(buf []byte) (IndexEntry, error) {
	if len(buf) < IndexEntrySize {
		return IndexEntry{}, fmt.Errorf("index entry: %w", ErrShort)
	}
	var e IndexEntry
	copy(e.NameDigest[:], buf[:NodeSize])
	e.SectionOffset = binary.BigEndian.Uint64(buf[NodeSize : NodeSize+8])
	e.SectionLength = binary.BigEndian.Uint64(buf[NodeSize+8 : NodeSize+16])
	return e, nil
}

// EncodeIndexEntry appends the 36-byte encoding of e to dst and returns the
// extended slice.
func EncodeIndexEntry(dst []byte, e IndexEntry) []byte {
	var buf [IndexEntrySize]byte
	copy(buf[:NodeSize], e.NameDigest[:])
	binary.BigEndian.PutUint64(buf[NodeSize:NodeSize+8], e.SectionOffset)
	binary.BigEndian.PutUint64(buf[NodeSize+8:NodeSize+16], e.SectionLength)
	return append(dst, buf[:]...)
}

// Record is the decoded form of one 80-byte pack record.
type Record struct {
	Node, P1, P2, Linknode [NodeSize]byte
}

// DecodeRecord reads one Record from the first RecordSize bytes of buf.
func DecodeRecord(buf []byte) (Record, error) {
	if len(buf) < RecordSize {
		return Record{}, fmt.Errorf("pack record: %w", ErrShort)
	}
	var r Record
	copy(r.Node[:], buf[0*NodeSize:1*NodeSize])
	copy(r.P1[:], buf[1*NodeSize:2*NodeSize])
	copy(r.P2[:], buf[2*NodeSize:3*NodeSize])
	copy(r.Linknode[:], buf[3*NodeSize:4*NodeSize])
	return r, nil
}

// EncodeRecord appends the 80-byte encoding of r to dst and returns the
// extended slice.
func EncodeRecord(dst []byte, r Record) []byte {
	var buf [RecordSize]byte
	copy(buf[0*NodeSize:1*NodeSize], r.Node[:])
	copy(buf[1*NodeSize:2*NodeSize], r.P1[:])
	copy(buf[2*NodeSize:3*NodeSize], r.P2[:])
	copy(buf[3*NodeSize:4*NodeSize], r.Linknode[:])
	return append(dst, buf[:]...)
}

// DecodeFanoutEntry reads one 4-byte big-endian fanout offset from buf.
func DecodeFanoutEntry(buf []byte) (uint32, error) {
	if len(buf) < FanoutEntrySize {
		return 0, fmt.Errorf("fanout entry: %w", ErrShort)
	}
	return binary.BigEndian.Uint32(buf[:FanoutEntrySize]), nil
}

// EncodeFanoutEntry appends the 4-byte big-endian encoding of v to dst.
func EncodeFanoutEntry(dst []byte, v uint32) []byte {
	var buf [FanoutEntrySize]byte
	binary.BigEndian.PutUint32(buf[:], v)
	return append(dst, buf[:]...)
}

// FanoutKey extracts the fanout table index from the leading
// FanoutPrefixBytes of a name digest.
func FanoutKey(digest []byte) (uint16, error) {
	if len(digest) < FanoutPrefixBytes {
		return 0, fmt.Errorf("fanout key: %w", ErrShort)
	}
	return binary.BigEndian.Uint16(digest[:FanoutPrefixBytes]), nil
}

// DecodeSectionHeader reads the <name-length:u16 BE><name bytes> prefix of a
// file section starting at buf[0]. It returns the name (a view into buf, not
// a copy) and the number of bytes the header occupies.
func DecodeSectionHeader(buf []byte) (name []byte, consumed int, err error) {
	if len(buf) < SectionHeaderPrefixSize {
		return nil, 0, fmt.Errorf("section header: %w", ErrShort)
	}
	nameLen := int(binary.BigEndian.Uint16(buf[:SectionHeaderPrefixSize]))
	end := SectionHeaderPrefixSize + nameLen
	if end > len(buf) {
		return nil, 0, fmt.Errorf("section header: name length %d overruns %d available bytes: %w", nameLen, len(buf)-SectionHeaderPrefixSize, ErrShort)
	}
	return buf[SectionHeaderPrefixSize:end], end, nil
}

// EncodeSectionHeader appends <name-length:u16 BE><name> to dst.
func EncodeSectionHeader(dst []byte, name []byte) ([]byte, error) {
	if len(name) > MaxNameLength {
		return nil, fmt.Errorf("histcodec: name of %d bytes exceeds max %d", len(name), MaxNameLength)
	}
	var lenbuf [SectionHeaderPrefixSize]byte
	binary.BigEndian.PutUint16(lenbuf[:], uint16(len(name)))
	dst = append(dst, lenbuf[:]...)
	dst = append(dst, name...)
	return dst, nil
}

// RecordCount recovers the number of 80-byte records held by a section of
// the given total byte length and name length. It is never stored on disk
// (spec: the count is derived, not persisted).
func RecordCount(sectionLength, nameLength int) int {
	body := sectionLength - SectionHeaderPrefixSize - nameLength
	if body <= 0 {
		return 0
	}
	return body / RecordSize
}
