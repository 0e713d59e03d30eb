// Package operation implements the adOPTed operation algebra (spec §3,
// §4.H): the Operation interface, the transform rules that make concurrent
// edits commute, and the concrete text operations (no-op, split, insert,
// delete, move) that are the minimum set the spec requires.
//
// Every Operation is immutable from the caller's point of view: Transform,
// Copy, and Revert all return new values rather than mutating the
// receiver, which is what lets the request log hold onto both a request's
// original and transformed forms (spec §3, Request log).
package operation

import (
	"github.com/infinoted/libinfinity/internal/buffer"
	"github.com/infinoted/libinfinity/internal/xerr"
)

// ConcurrencyID is the tiebreak fed into Transform when the algebra alone
// cannot decide the relative order of two concurrent operations (spec
// §4.H). self means "I win", other means "the other operation wins", none
// means no tiebreak is needed.
type ConcurrencyID int

const (
	CIDNone ConcurrencyID = iota
	CIDSelf
	CIDOther
)

// Negate swaps self/other, used when transforming B relative to A after
// having computed A relative to B with a given cid.
func (c ConcurrencyID) Negate() ConcurrencyID {
	switch c {
	case CIDSelf:
		return CIDOther
	case CIDOther:
		return CIDSelf
	default:
		return CIDNone
	}
}

// Flags describes the two independent capability bits every operation
// reports (spec §3, Operation capability (i)): whether applying it can
// change the buffer's content, and whether it carries enough information
// to be inverted without further help.
type Flags struct {
	AffectsBuffer bool
	Reversible    bool
}

// Operation is the capability set every concrete operation variant
// implements (spec §3).
type Operation interface {
	// Flags reports the affects-buffer/reversible bits.
	Flags() Flags
	// NeedsConcurrencyID reports whether transforming this operation
	// against other requires a concurrency id to resolve an ambiguity the
	// algebra alone cannot (spec §4.H: true only for same-position
	// inserts, and splits that contain one; never for a Move).
	NeedsConcurrencyID(other Operation) bool
	// Copy returns an independent deep copy.
	Copy() Operation
	// Apply mutates buf to reflect this operation, attributing the change
	// to user. Only called when the operation is already reversible (or
	// does not affect the buffer); see ApplyTransformed for the
	// completion path.
	Apply(buf buffer.Buffer, user uint64) error
	// ApplyTransformed is Apply's counterpart for an operation that
	// affects the buffer but arrived non-reversible (e.g. a delete
	// transmitted only as (pos, len)): it may read the soon-to-be-modified
	// region from buf to construct a reversible twin, which becomes what
	// actually enters the request log (spec §4.H, Reversibility
	// completion).
	ApplyTransformed(original Operation, user uint64, buf buffer.Buffer) (Operation, error)
	// Revert produces an inverse. Only valid when Flags().Reversible.
	Revert() (Operation, error)
}

// Transform produces a's effect in a frame in which b has already been
// applied (spec §4.H). aLCS and bLCS are a and b's earlier forms at their
// least common state, used only when NeedsConcurrencyID(a, b) is true and
// cid alone does not resolve the ambiguity (the text algebra here never
// needs them beyond the cid, but splits recurse through this signature so
// it is threaded everywhere).
func Transform(a, b, aLCS, bLCS Operation, cid ConcurrencyID) (Operation, error) {
	if _, ok := a.(*NoOp); ok {
		return &NoOp{}, nil
	}
	if _, ok := b.(*NoOp); ok {
		return a.Copy(), nil
	}
	if as, ok := a.(*Split); ok {
		return transformSplit(as, b, bLCS, cid)
	}
	if bs, ok := b.(*Split); ok {
		return transformAgainstSplit(a, bs, aLCS, cid)
	}
	if !b.Flags().AffectsBuffer {
		// A concurrent operation that never touches the buffer (e.g. a
		// move) cannot shift anything a buffer-affecting operation cares
		// about.
		if _, isMove := b.(*Move); !isMove {
			return a.Copy(), nil
		}
	}
	switch av := a.(type) {
	case *Move:
		return transformMove(av, b, cid)
	case *Insert:
		switch bv := b.(type) {
		case *Insert:
			return transformInsertInsert(av, bv, cid), nil
		case *Delete:
			return transformInsertDelete(av, bv), nil
		}
	case *Delete:
		switch bv := b.(type) {
		case *Insert:
			return transformDeleteInsert(av, bv), nil
		case *Delete:
			return transformDeleteDelete(av, bv), nil
		}
	}
	return nil, xerr.New(xerr.DomainRequest, xerr.CodeInvalidAttribute, "no transform rule for operand pair")
}

// NeedsConcurrencyID double-dispatches to the pair-specific rule. Per spec
// §4.H it is true only for same-position inserts and the split cases that
// contain one.
func NeedsConcurrencyID(a, b Operation) bool {
	return a.NeedsConcurrencyID(b)
}
