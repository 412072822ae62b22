package histpack

import (
	"errors"
	"os"
	"testing"
)

func TestReaderRejectsShortIndex(t *testing.T) {
	dir := t.TempDir()
	writePack(t, dir, func(w *Writer) error {
		return w.Add([]byte("a.txt"), node(1), NullID, NullID, node(100))
	})

	base := onlyPackBase(t, dir)
	if err := os.Truncate(base+IndexSuffix, 10); err != nil {
		t.Fatal(err)
	}

	_, err := OpenPack(base)
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("got %v, want ErrDecode", err)
	}
}

func TestReaderRejectsBadVersionByte(t *testing.T) {
	dir := t.TempDir()
	writePack(t, dir, func(w *Writer) error {
		return w.Add([]byte("a.txt"), node(1), NullID, NullID, node(100))
	})

	base := onlyPackBase(t, dir)
	f, err := os.OpenFile(base+PackSuffix, os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteAt([]byte{0xFF}, 0); err != nil {
		t.Fatal(err)
	}
	f.Close()

	_, err = OpenPack(base)
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("got %v, want ErrDecode", err)
	}
}

func TestReaderMissingQueryReturnsNotFound(t *testing.T) {
	dir := t.TempDir()
	writePack(t, dir, func(w *Writer) error {
		return w.Add([]byte("a.txt"), node(1), NullID, NullID, node(100))
	})

	base := onlyPackBase(t, dir)
	r, err := OpenPack(base)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	_, _, err = r.Parents([]byte("nope.txt"), node(1))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestReaderManySectionsSurviveFanoutBisection(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	if err != nil {
		t.Fatal(err)
	}
	const n = 500
	names := make([][]byte, n)
	for i := 0; i < n; i++ {
		name := []byte{byte(i), byte(i >> 8), 'f', 'i', 'l', 'e'}
		names[i] = name
		if err := w.Add(name, node(1), NullID, NullID, node(100)); err != nil {
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

	if r.SectionCount() != n {
		t.Fatalf("got %d sections, want %d", r.SectionCount(), n)
	}
	for _, name := range names {
		if _, _, err := r.Parents(name, node(1)); err != nil {
			t.Fatalf("file %q: %v", name, err)
		}
	}
}

func TestReaderSectionCacheDoesNotChangeAnswer(t *testing.T) {
	dir := t.TempDir()
	writePack(t, dir, func(w *Writer) error {
		if err := w.Add([]byte("a.txt"), node(1), node(2), NullID, node(100)); err != nil {
			return err
		}
		return w.Add([]byte("b.txt"), node(3), NullID, NullID, node(100))
	})

	base := onlyPackBase(t, dir)
	r, err := OpenPack(base, WithSectionCacheSize(128))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	for i := 0; i < 3; i++ {
		p1, _, err := r.Parents([]byte("a.txt"), node(1))
		if err != nil {
			t.Fatal(err)
		}
		if p1 != node(2) {
			t.Fatalf("iteration %d: got p1=%s", i, p1)
		}
	}
}
