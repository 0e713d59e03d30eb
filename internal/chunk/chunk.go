// Package chunk implements the Chunk data type: an author-annotated,
// run-length sequence of UTF-8 text (spec §3). A chunk is the unit the text
// buffer slices out of and splices back into the document, and the payload
// carried by insert/delete operations on the wire.
package chunk

import (
	"strings"
	"unicode/utf8"
)

// Run is one maximal span of text contributed by a single author. Bytes
// holds a valid UTF-8 byte range; Chunk's invariants guarantee runs are
// never empty and never abut a same-author neighbor.
type Run struct {
	Author uint64
	Bytes  []byte
}

// Chunk is an ordered sequence of runs. The zero Chunk is an empty, valid
// chunk.
type Chunk struct {
	runs []Run
}

// New builds a chunk from a single author/text pair. An empty string yields
// an empty chunk (no runs), preserving the "every run is non-empty"
// invariant.
func New(author uint64, text string) Chunk {
	if text == "" {
		return Chunk{}
	}
	return Chunk{runs: []Run{{Author: author, Bytes: []byte(text)}}}
}

// Empty reports whether the chunk has zero length.
func (c Chunk) Empty() bool { return len(c.runs) == 0 }

// Runs returns the chunk's runs. Callers must not mutate the returned
// slice's backing arrays.
func (c Chunk) Runs() []Run { return c.runs }

// LenBytes returns the chunk's length in UTF-8 bytes.
func (c Chunk) LenBytes() int {
	n := 0
	for _, r := range c.runs {
		n += len(r.Bytes)
	}
	return n
}

// LenChars returns the chunk's length in Unicode code points.
func (c Chunk) LenChars() int {
	n := 0
	for _, r := range c.runs {
		n += utf8.RuneCount(r.Bytes)
	}
	return n
}

// String concatenates every run's text. Mostly useful for tests and
// debugging; buffers normally work with chunks, not flattened strings.
func (c Chunk) String() string {
	var b strings.Builder
	for _, r := range c.runs {
		b.Write(r.Bytes)
	}
	return b.String()
}

// fromRuns constructs a chunk from already-split runs, coalescing adjacent
// same-author runs and dropping empties so the invariants in §3 hold no
// matter how the caller assembled the slice.
func fromRuns(runs []Run) Chunk {
	out := make([]Run, 0, len(runs))
	for _, r := range runs {
		if len(r.Bytes) == 0 {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Author == r.Author {
			merged := make([]byte, 0, len(out[n-1].Bytes)+len(r.Bytes))
			merged = append(merged, out[n-1].Bytes...)
			merged = append(merged, r.Bytes...)
			out[n-1].Bytes = merged
			continue
		}
		cp := make([]byte, len(r.Bytes))
		copy(cp, r.Bytes)
		out = append(out, Run{Author: r.Author, Bytes: cp})
	}
	if len(out) == 0 {
		return Chunk{}
	}
	return Chunk{runs: out}
}

// charOffsets returns, for every rune boundary in the chunk, the byte
// offset within the whole chunk where that rune starts, plus one trailing
// entry for the end of the chunk. Used to translate character positions
// (what the operation algebra speaks in) into byte positions (what the
// run storage speaks in).
func (c Chunk) charOffsets() []int {
	offsets := make([]int, 0, c.LenChars()+1)
	byteOff := 0
	for _, r := range c.runs {
		for i := range string(r.Bytes) {
			offsets = append(offsets, byteOff+i)
		}
		byteOff += len(r.Bytes)
	}
	offsets = append(offsets, byteOff)
	return offsets
}

// Substring returns the sub-chunk spanning [pos, pos+length) characters.
func (c Chunk) Substring(pos, length int) Chunk {
	if length == 0 {
		return Chunk{}
	}
	offsets := c.charOffsets()
	start := offsets[pos]
	end := offsets[pos+length]
	return c.byteSlice(start, end)
}

func (c Chunk) byteSlice(start, end int) Chunk {
	var out []Run
	off := 0
	for _, r := range c.runs {
		runStart, runEnd := off, off+len(r.Bytes)
		off = runEnd
		lo, hi := max(start, runStart), min(end, runEnd)
		if lo >= hi {
			continue
		}
		out = append(out, Run{Author: r.Author, Bytes: r.Bytes[lo-runStart : hi-runStart]})
	}
	return fromRuns(out)
}

// Concatenate returns a new chunk equal to c followed by other, coalescing
// a shared-author boundary if one exists.
func Concatenate(c, other Chunk) Chunk {
	return fromRuns(append(append([]Run{}, c.runs...), other.runs...))
}

// InsertChunk splices other into c at character position pos.
func (c Chunk) InsertChunk(pos int, other Chunk) Chunk {
	before := c.Substring(0, pos)
	after := c.Substring(pos, c.LenChars()-pos)
	return Concatenate(Concatenate(before, other), after)
}

// Erase removes length characters starting at pos and returns the
// resulting chunk together with the erased content.
func (c Chunk) Erase(pos, length int) (remaining, erased Chunk) {
	before := c.Substring(0, pos)
	after := c.Substring(pos+length, c.LenChars()-pos-length)
	erased = c.Substring(pos, length)
	remaining = Concatenate(before, after)
	return remaining, erased
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
