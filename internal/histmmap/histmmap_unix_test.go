//go:build unix

package histmmap

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenMapsFileContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "region")
	want := []byte("some pack bytes, arbitrary length")
	if err := os.WriteFile(path, want, 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if !bytes.Equal(r.Bytes(), want) {
		t.Fatalf("got %q, want %q", r.Bytes(), want)
	}
	if r.Len() != len(want) {
		t.Fatalf("got Len()=%d, want %d", r.Len(), len(want))
	}
}

func TestOpenEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if r.Len() != 0 {
		t.Fatalf("got Len()=%d, want 0", r.Len())
	}
}

func TestAdviseCallsDoNotError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "region")
	if err := os.WriteFile(path, []byte("0123456789"), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if err := r.AdviseRandom(); err != nil {
		t.Fatal(err)
	}
	if err := r.AdviseSequential(); err != nil {
		t.Fatal(err)
	}
}
