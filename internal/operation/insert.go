package operation

import (
	"github.com/infinoted/libinfinity/internal/buffer"
	"github.com/infinoted/libinfinity/internal/chunk"
	"github.com/infinoted/libinfinity/internal/xerr"
)

// Insert is text-insert(position, chunk) from the spec's concrete
// operation set (§3). It is always reversible: the inserted content is
// carried on the operation itself, so its inverse is simply the delete of
// that same content at the same position.
type Insert struct {
	Pos     int
	Content chunk.Chunk
}

func (i *Insert) Flags() Flags { return Flags{AffectsBuffer: true, Reversible: true} }

// NeedsConcurrencyID is true only against another insert at the exact same
// position (spec §4.H).
func (i *Insert) NeedsConcurrencyID(other Operation) bool {
	o, ok := other.(*Insert)
	return ok && o.Pos == i.Pos
}

func (i *Insert) Copy() Operation {
	return &Insert{Pos: i.Pos, Content: i.Content}
}

func (i *Insert) Apply(buf buffer.Buffer, user uint64) error {
	if i.Pos < 0 || i.Pos > buf.Length() {
		return xerr.New(xerr.DomainText, xerr.CodeInvalidAttribute, "insert position out of range")
	}
	buf.InsertChunk(i.Pos, i.Content, user)
	return nil
}

// ApplyTransformed is never reached on the completion path (Insert is
// always reversible) but is provided so *Insert satisfies Operation; it
// simply applies itself.
func (i *Insert) ApplyTransformed(_ Operation, user uint64, buf buffer.Buffer) (Operation, error) {
	if err := i.Apply(buf, user); err != nil {
		return nil, err
	}
	return i, nil
}

func (i *Insert) Revert() (Operation, error) {
	content := i.Content
	return &Delete{Pos: i.Pos, Len: content.LenChars(), Content: &content}, nil
}
