// Package buffer defines the Buffer interface text operations apply to, and
// the minimum in-memory implementation the spec requires: a run-length
// segmented store (spec §3, §4.I). The buffer is authoritative for
// document text; sessions hold no parallel copy.
package buffer

import "github.com/infinoted/libinfinity/internal/chunk"

// InsertedHandler is invoked synchronously, on the same stack as the
// triggering InsertChunk call, once the mutation has been applied. Signal
// emission in this library is always synchronous (see DESIGN.md); a
// handler that wants to defer work must explicitly hand it to the I/O loop.
type InsertedHandler func(pos int, c chunk.Chunk, user uint64)

// ErasedHandler mirrors InsertedHandler for deletions.
type ErasedHandler func(pos int, c chunk.Chunk, user uint64)

// Buffer is the character-indexed text store every session operates on.
// Its encoding is fixed at construction (UTF-8 is the only encoding this
// module implements; the interface leaves room for others).
type Buffer interface {
	// Length returns the buffer's length in characters.
	Length() int
	// Slice returns the chunk spanning [pos, pos+length) characters.
	Slice(pos, length int) chunk.Chunk
	// InsertChunk splices c into the buffer at character position pos,
	// attributing it to user, and fires text-inserted.
	InsertChunk(pos int, c chunk.Chunk, user uint64)
	// Erase removes length characters starting at pos, attributing the
	// removal to user, and fires text-erased. It returns the erased chunk
	// so callers building a reversible operation don't need a second read.
	Erase(pos, length int, user uint64) chunk.Chunk
	// Modified reports whether the buffer has changed since it was marked
	// clean (construction, or an explicit SetModified(false) by whoever
	// owns persistence).
	Modified() bool
	SetModified(bool)
	// OnInserted/OnErased register synchronous observers. They return an
	// unsubscribe function.
	OnInserted(InsertedHandler) (unsubscribe func())
	OnErased(ErasedHandler) (unsubscribe func())
}

// TextBuffer is the reference run-length segmented buffer: an ordered list
// of (author, bytes) runs with no empty runs and no adjacent same-author
// runs, exactly the text-default-buffer described in §4.I.
type TextBuffer struct {
	content   chunk.Chunk
	modified  bool
	inserted  []InsertedHandler
	erased    []ErasedHandler
}

// New returns an empty TextBuffer.
func New() *TextBuffer {
	return &TextBuffer{}
}

// FromChunk seeds a buffer with existing content, e.g. when restoring from
// the persisted XML format (§6).
func FromChunk(c chunk.Chunk) *TextBuffer {
	return &TextBuffer{content: c}
}

func (b *TextBuffer) Length() int { return b.content.LenChars() }

func (b *TextBuffer) Slice(pos, length int) chunk.Chunk {
	return b.content.Substring(pos, length)
}

func (b *TextBuffer) InsertChunk(pos int, c chunk.Chunk, user uint64) {
	if c.Empty() {
		return
	}
	b.content = b.content.InsertChunk(pos, c)
	b.modified = true
	for _, h := range b.inserted {
		if h != nil {
			h(pos, c, user)
		}
	}
}

func (b *TextBuffer) Erase(pos, length int, user uint64) chunk.Chunk {
	if length == 0 {
		return chunk.Chunk{}
	}
	remaining, erased := b.content.Erase(pos, length)
	b.content = remaining
	b.modified = true
	for _, h := range b.erased {
		if h != nil {
			h(pos, erased, user)
		}
	}
	return erased
}

func (b *TextBuffer) Modified() bool     { return b.modified }
func (b *TextBuffer) SetModified(m bool) { b.modified = m }

func (b *TextBuffer) OnInserted(h InsertedHandler) func() {
	b.inserted = append(b.inserted, h)
	idx := len(b.inserted) - 1
	return func() { b.inserted[idx] = nil }
}

func (b *TextBuffer) OnErased(h ErasedHandler) func() {
	b.erased = append(b.erased, h)
	idx := len(b.erased) - 1
	return func() { b.erased[idx] = nil }
}

// Content returns the buffer's full chunk, e.g. for synchronization or
// persistence (§4.F sync-segment stanzas, §6 persisted format).
func (b *TextBuffer) Content() chunk.Chunk {
	return b.content
}

var _ Buffer = (*TextBuffer)(nil)
