package operation

import "github.com/infinoted/libinfinity/internal/buffer"

// NoOp is the algebra's identity element: it affects nothing, transforms
// to itself against anything, and anything transforms to itself against it
// (spec §4.H, "No-op is the identity element").
type NoOp struct{}

func (NoOp) Flags() Flags { return Flags{AffectsBuffer: false, Reversible: true} }

func (NoOp) NeedsConcurrencyID(Operation) bool { return false }

func (NoOp) Copy() Operation { return &NoOp{} }

func (NoOp) Apply(buffer.Buffer, uint64) error { return nil }

func (n *NoOp) ApplyTransformed(Operation, uint64, buffer.Buffer) (Operation, error) {
	return n, nil
}

func (NoOp) Revert() (Operation, error) { return &NoOp{}, nil }
