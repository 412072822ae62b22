package histdigest

import (
	"bytes"
	"testing"
)

func TestNameIsDeterministic(t *testing.T) {
	a := Name([]byte("path/to/file.txt"))
	b := Name([]byte("path/to/file.txt"))
	if a != b {
		t.Fatal("Name is not deterministic for the same input")
	}
}

func TestNameDiffersByInput(t *testing.T) {
	a := Name([]byte("a"))
	b := Name([]byte("b"))
	if a == b {
		t.Fatal("different inputs produced the same digest")
	}
}

func TestStreamMatchesOneShotSHA1OfConcatenatedWrites(t *testing.T) {
	s := NewStream()
	s.Write([]byte("hello, "))
	s.Write([]byte("world"))
	got := s.Sum20()

	want := Name([]byte("hello, world"))
	if !bytes.Equal(got[:], want[:]) {
		t.Fatalf("got %x, want %x", got, want)
	}
}
