package operation

import (
	"github.com/infinoted/libinfinity/internal/buffer"
	"github.com/infinoted/libinfinity/internal/xerr"
)

// Move is text-move(position, length) from the spec's concrete operation
// set (§3): it repositions a user's caret and selection without touching
// buffer content. Caret is the active edge (where typing would resume);
// SelectionLen is signed — positive extends the selection to the right of
// Caret, negative to the left, zero means no selection.
//
// It never affects the buffer, so Apply is a no-op here; the session layer
// applies a Move's effect directly to the issuing user's record in the
// user table instead of routing it through the buffer (spec §3, User:
// "caret position, selection length").
type Move struct {
	Caret        int
	SelectionLen int
}

func (m *Move) Flags() Flags { return Flags{AffectsBuffer: false, Reversible: false} }

func (m *Move) NeedsConcurrencyID(Operation) bool { return false }

func (m *Move) Copy() Operation {
	return &Move{Caret: m.Caret, SelectionLen: m.SelectionLen}
}

func (m *Move) Apply(buffer.Buffer, uint64) error { return nil }

func (m *Move) ApplyTransformed(_ Operation, _ uint64, _ buffer.Buffer) (Operation, error) {
	return m, nil
}

func (m *Move) Revert() (Operation, error) {
	return nil, xerr.New(xerr.DomainRequest, xerr.CodeInvalidAttribute, "move is not reversible")
}

// anchor returns the selection's non-caret edge.
func (m *Move) anchor() int { return m.Caret + m.SelectionLen }

func withEdges(caret, anchor int) *Move {
	return &Move{Caret: caret, SelectionLen: anchor - caret}
}

// transformMove resolves a Move against a concurrent operation. Only
// insert and delete shift endpoints; anything else (including another
// Move, which never affects the buffer) leaves it unchanged.
func transformMove(m *Move, other Operation, cid ConcurrencyID) (Operation, error) {
	switch o := other.(type) {
	case *Insert:
		return transformMoveInsert(m, o), nil
	case *Delete:
		return transformMoveDelete(m, o), nil
	default:
		return m.Copy(), nil
	}
}

// transformMoveInsert shifts both selection edges past a concurrent
// insertion. The caret carries left-gravity: an insertion landing exactly
// on the caret is treated as having happened after it, so the caret itself
// does not get pushed forward, while the non-caret anchor edge is pushed
// forward by an insertion at or before it. This is the asymmetry flagged
// as an Open Question in the spec (§9); it is the resolution that keeps a
// user's typing position from jumping out from under them when someone
// else's text arrives at the exact same offset, while still keeping a
// pure selection anchor glued to content inserted right at its edge.
// The TP1/TP2 cases in transform_test.go cover inserts and deletes only;
// none of them involves a Move.
func transformMoveInsert(m *Move, ins *Insert) *Move {
	n := ins.Content.LenChars()
	caret := shiftLeftGravity(m.Caret, ins.Pos, n)
	anchor := shiftRightGravity(m.anchor(), ins.Pos, n)
	return withEdges(caret, anchor)
}

func transformMoveDelete(m *Move, del *Delete) *Move {
	caret := shiftForDelete(m.Caret, del.Pos, del.Len)
	anchor := shiftForDelete(m.anchor(), del.Pos, del.Len)
	return withEdges(caret, anchor)
}

func shiftLeftGravity(pos, insPos, insLen int) int {
	if insPos < pos {
		return pos + insLen
	}
	return pos
}

func shiftRightGravity(pos, insPos, insLen int) int {
	if insPos <= pos {
		return pos + insLen
	}
	return pos
}

func shiftForDelete(pos, delPos, delLen int) int {
	switch {
	case pos <= delPos:
		return pos
	case pos >= delPos+delLen:
		return pos - delLen
	default:
		return delPos
	}
}
