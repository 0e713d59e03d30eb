package operation

import (
	"github.com/infinoted/libinfinity/internal/buffer"
	"github.com/infinoted/libinfinity/internal/chunk"
	"github.com/infinoted/libinfinity/internal/xerr"
)

// Delete is text-delete(position, chunk) from the spec's concrete
// operation set (§3). Content is nil when the delete was transmitted only
// as (pos, len) — a peer doesn't always know, or want to send, what it's
// about to remove. In that state the operation is not reversible until the
// reversibility-completion path (ApplyTransformed) reads the region from
// the buffer before erasing it.
type Delete struct {
	Pos     int
	Len     int
	Content *chunk.Chunk
}

func (d *Delete) Flags() Flags {
	return Flags{AffectsBuffer: true, Reversible: d.Content != nil}
}

// NeedsConcurrencyID is always false for delete: overlapping deletes
// collapse deterministically, no tiebreak required (spec §4.H).
func (d *Delete) NeedsConcurrencyID(Operation) bool { return false }

func (d *Delete) Copy() Operation {
	out := &Delete{Pos: d.Pos, Len: d.Len}
	if d.Content != nil {
		c := *d.Content
		out.Content = &c
	}
	return out
}

func (d *Delete) Apply(buf buffer.Buffer, user uint64) error {
	if d.Pos < 0 || d.Len < 0 || d.Pos+d.Len > buf.Length() {
		return xerr.New(xerr.DomainText, xerr.CodeInvalidDelete, "delete beyond end of buffer")
	}
	buf.Erase(d.Pos, d.Len, user)
	return nil
}

// ApplyTransformed erases the region and remembers exactly what it
// removed, so the resulting operation is reversible and can enter the
// request log (spec §4.H).
func (d *Delete) ApplyTransformed(_ Operation, user uint64, buf buffer.Buffer) (Operation, error) {
	if d.Pos < 0 || d.Len < 0 || d.Pos+d.Len > buf.Length() {
		return nil, xerr.New(xerr.DomainText, xerr.CodeInvalidDelete, "delete beyond end of buffer")
	}
	erased := buf.Erase(d.Pos, d.Len, user)
	return &Delete{Pos: d.Pos, Len: d.Len, Content: &erased}, nil
}

func (d *Delete) Revert() (Operation, error) {
	if d.Content == nil {
		return nil, xerr.New(xerr.DomainRequest, xerr.CodeInvalidAttribute, "delete is not reversible: content unknown")
	}
	return &Insert{Pos: d.Pos, Content: *d.Content}, nil
}
