package histpack

import (
	"os"
	"path/filepath"
	"testing"
)

func node(b byte) NodeID {
	var n NodeID
	n[0] = b
	return n
}

func TestWriterReaderRoundTrip(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWriter(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Add([]byte("a.txt"), node(1), node(2), NullID, node(9)); err != nil {
		t.Fatal(err)
	}
	if err := w.Add([]byte("a.txt"), node(2), NullID, NullID, node(9)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	base := onlyPackBase(t, dir)
	r, err := OpenPack(base)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	p1, p2, err := r.Parents([]byte("a.txt"), node(1))
	if err != nil {
		t.Fatal(err)
	}
	if p1 != node(2) || p2 != NullID {
		t.Fatalf("got p1=%s p2=%s", p1, p2)
	}

	link, err := r.Linknode([]byte("a.txt"), node(2))
	if err != nil {
		t.Fatal(err)
	}
	if link != node(9) {
		t.Fatalf("got linknode=%s", link)
	}

	anc, err := r.Ancestors([]byte("a.txt"), node(1))
	if err != nil {
		t.Fatal(err)
	}
	if len(anc) != 2 {
		t.Fatalf("got %d ancestors, want 2", len(anc))
	}
	if _, ok := anc[node(1)]; !ok {
		t.Error("ancestors missing node(1) itself")
	}
	if _, ok := anc[node(2)]; !ok {
		t.Error("ancestors missing node(2)")
	}
}

func TestWriterAddAfterCloseIsClientError(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Add([]byte("a.txt"), node(1), NullID, NullID, node(9)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	err = w.Add([]byte("a.txt"), node(2), NullID, NullID, node(9))
	if err == nil {
		t.Fatal("expected an error adding after Close")
	}
}

func TestWriterInterleavedSectionsIsClientError(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Abort()

	if err := w.Add([]byte("a.txt"), node(1), NullID, NullID, node(9)); err != nil {
		t.Fatal(err)
	}
	if err := w.Add([]byte("b.txt"), node(1), NullID, NullID, node(9)); err != nil {
		t.Fatal(err)
	}
	err = w.Add([]byte("a.txt"), node(2), NullID, NullID, node(9))
	if err == nil {
		t.Fatal("expected an error re-opening a.txt's section after b.txt started")
	}
}

func TestWriterAbortLeavesNoFiles(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Add([]byte("a.txt"), node(1), NullID, NullID, node(9)); err != nil {
		t.Fatal(err)
	}
	if err := w.Abort(); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected an empty dir after Abort, found %v", entries)
	}
}

func TestWriterMultipleFilesSortedByDigest(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	if err != nil {
		t.Fatal(err)
	}
	names := [][]byte{[]byte("aaa"), []byte("bbb"), []byte("ccc"), []byte("ddd")}
	for i, n := range names {
		if err := w.Add(n, node(byte(i+1)), NullID, NullID, node(9)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	base := onlyPackBase(t, dir)
	r, err := OpenPack(base, WithSectionCacheSize(0))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if r.SectionCount() != len(names) {
		t.Fatalf("got %d sections, want %d", r.SectionCount(), len(names))
	}
	for i, n := range names {
		p1, _, err := r.Parents(n, node(byte(i+1)))
		if err != nil {
			t.Fatalf("file %q: %v", n, err)
		}
		if p1 != NullID {
			t.Fatalf("file %q: got p1=%s, want null", n, p1)
		}
	}
}

// onlyPackBase finds the single *.histpack file under dir and returns its
// base path (without suffix).
func onlyPackBase(t *testing.T, dir string) string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if name := e.Name(); len(name) > len(PackSuffix) && name[len(name)-len(PackSuffix):] == PackSuffix {
			return filepath.Join(dir, name[:len(name)-len(PackSuffix)])
		}
	}
	t.Fatalf("no %s file found in %s", PackSuffix, dir)
	return ""
}
