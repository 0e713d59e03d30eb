package operation

import (
	"github.com/infinoted/libinfinity/internal/buffer"
	"github.com/infinoted/libinfinity/internal/xerr"
)

// Split is the algebra's "A then B" composite (spec §4.H): it arises when
// transforming a delete against a concurrent insert that lands strictly
// inside the deleted range, which cuts the delete into two non-adjacent
// pieces. Split nodes are never un-split automatically during further
// transformation; a caller that needs a flat operation list calls Unsplit.
type Split struct {
	A Operation
	B Operation
}

// Unsplit flattens a Split into an ordered list of non-Split operations. A
// non-Split operation flattens to a single-element list.
func Unsplit(op Operation) []Operation {
	s, ok := op.(*Split)
	if !ok {
		return []Operation{op}
	}
	return append(Unsplit(s.A), Unsplit(s.B)...)
}

func (s *Split) Flags() Flags {
	af := s.A.Flags()
	bf := s.B.Flags()
	return Flags{
		AffectsBuffer: af.AffectsBuffer || bf.AffectsBuffer,
		Reversible:    af.Reversible && bf.Reversible,
	}
}

func (s *Split) NeedsConcurrencyID(other Operation) bool {
	return s.A.NeedsConcurrencyID(other) || s.B.NeedsConcurrencyID(other)
}

func (s *Split) Copy() Operation {
	return &Split{A: s.A.Copy(), B: s.B.Copy()}
}

// Apply applies A then B, in that order: B's positions are already
// expressed in the frame that results after A has run (spec §4.H, split
// behaves as "A then B").
func (s *Split) Apply(buf buffer.Buffer, user uint64) error {
	if err := s.A.Apply(buf, user); err != nil {
		return err
	}
	return s.B.Apply(buf, user)
}

func (s *Split) ApplyTransformed(original Operation, user uint64, buf buffer.Buffer) (Operation, error) {
	origSplit, ok := original.(*Split)
	if !ok {
		return nil, xerr.New(xerr.DomainRequest, xerr.CodeInvalidAttribute, "split completion requires a split original")
	}
	a, err := s.A.ApplyTransformed(origSplit.A, user, buf)
	if err != nil {
		return nil, err
	}
	b, err := s.B.ApplyTransformed(origSplit.B, user, buf)
	if err != nil {
		return nil, err
	}
	return &Split{A: a, B: b}, nil
}

// Revert reverts B then A, the opposite order and direction of Apply (spec
// §4.H: "the reverse is split(revert(B), revert(A))").
func (s *Split) Revert() (Operation, error) {
	ra, err := s.A.Revert()
	if err != nil {
		return nil, err
	}
	rb, err := s.B.Revert()
	if err != nil {
		return nil, err
	}
	return &Split{A: rb, B: ra}, nil
}

// transformSplit transforms a split a = split(A, B) against b, per spec
// §4.H: "transformation against X is split(transform(A, X),
// transform(B, transform(X, A)))" — B must be transformed against X as seen
// after A has already happened, since B's own coordinates already assume A
// ran first.
func transformSplit(a *Split, b, bLCS Operation, cid ConcurrencyID) (Operation, error) {
	newA, err := Transform(a.A, b, nil, bLCS, cid)
	if err != nil {
		return nil, err
	}
	shiftedB, err := Transform(b, a.A, bLCS, nil, cid.Negate())
	if err != nil {
		return nil, err
	}
	newB, err := Transform(a.B, shiftedB, nil, nil, cid)
	if err != nil {
		return nil, err
	}
	return &Split{A: newA, B: newB}, nil
}

// transformAgainstSplit transforms a against b = split(A, B): a must pass
// through both halves in order, since both may shift it.
func transformAgainstSplit(a Operation, b *Split, aLCS Operation, cid ConcurrencyID) (Operation, error) {
	afterA, err := Transform(a, b.A, aLCS, nil, cid)
	if err != nil {
		return nil, err
	}
	return Transform(afterA, b.B, nil, nil, cid)
}
