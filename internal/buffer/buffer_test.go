package buffer

import (
	"testing"

	"github.com/infinoted/libinfinity/internal/chunk"
)

func TestInsertAndSlice(t *testing.T) {
	b := New()
	b.InsertChunk(0, chunk.New(1, "hello"), 1)
	b.InsertChunk(5, chunk.New(1, " world"), 1)

	if b.Length() != 11 {
		t.Fatalf("expected length 11, got %d", b.Length())
	}
	if got := b.Slice(0, b.Length()).String(); got != "hello world" {
		t.Fatalf("unexpected content %q", got)
	}
}

func TestEraseSignals(t *testing.T) {
	b := New()
	b.InsertChunk(0, chunk.New(1, "abcdef"), 1)

	var gotPos int
	var gotText string
	b.OnErased(func(pos int, c chunk.Chunk, user uint64) {
		gotPos = pos
		gotText = c.String()
	})

	erased := b.Erase(1, 3, 1)
	if erased.String() != "bcd" {
		t.Fatalf("unexpected erased %q", erased.String())
	}
	if gotPos != 1 || gotText != "bcd" {
		t.Fatalf("signal mismatch pos=%d text=%q", gotPos, gotText)
	}
	if got := b.Slice(0, b.Length()).String(); got != "aef" {
		t.Fatalf("unexpected remaining content %q", got)
	}
}

func TestModifiedFlag(t *testing.T) {
	b := New()
	if b.Modified() {
		t.Fatal("fresh buffer should not be modified")
	}
	b.InsertChunk(0, chunk.New(1, "x"), 1)
	if !b.Modified() {
		t.Fatal("buffer should be modified after insert")
	}
	b.SetModified(false)
	if b.Modified() {
		t.Fatal("SetModified(false) should clear the flag")
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	calls := 0
	unsub := b.OnInserted(func(pos int, c chunk.Chunk, user uint64) { calls++ })
	b.InsertChunk(0, chunk.New(1, "a"), 1)
	unsub()
	b.InsertChunk(1, chunk.New(1, "b"), 1)
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}
