package operation

import (
	"testing"

	"github.com/infinoted/libinfinity/internal/buffer"
	"github.com/infinoted/libinfinity/internal/chunk"
)

func mustTransform(t *testing.T, a, b Operation, cid ConcurrencyID) Operation {
	t.Helper()
	out, err := Transform(a, b, nil, nil, cid)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	return out
}

func apply(t *testing.T, buf buffer.Buffer, op Operation, user uint64) {
	t.Helper()
	if err := op.Apply(buf, user); err != nil {
		t.Fatalf("apply: %v", err)
	}
}

// TestConvergenceTP1 checks the first transformation property: starting
// from the same document, applying a then transform(b,a), and applying b
// then transform(a,b), must converge on the same text (spec §4.H / §8).
func TestConvergenceTP1(t *testing.T) {
	cases := []struct {
		name string
		a, b Operation
	}{
		{"concurrent inserts same pos", &Insert{Pos: 4, Content: chunk.New(1, "XY")}, &Insert{Pos: 4, Content: chunk.New(2, "Z")}},
		{"concurrent inserts different pos", &Insert{Pos: 2, Content: chunk.New(1, "AA")}, &Insert{Pos: 7, Content: chunk.New(2, "BB")}},
		{"insert vs delete disjoint", &Insert{Pos: 1, Content: chunk.New(1, "Q")}, &Delete{Pos: 8, Len: 2}},
		{"insert vs delete overlapping", &Insert{Pos: 5, Content: chunk.New(1, "Q")}, &Delete{Pos: 3, Len: 4}},
		{"delete vs delete overlapping", &Delete{Pos: 2, Len: 5}, &Delete{Pos: 4, Len: 5}},
		{"delete vs delete nested", &Delete{Pos: 1, Len: 8}, &Delete{Pos: 3, Len: 2}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			base := buffer.FromChunk(chunk.New(0, "abcdefghijklmnopqrstuvwxyz"))
			left := buffer.FromChunk(chunk.New(0, "abcdefghijklmnopqrstuvwxyz"))

			aPrime := mustTransform(t, tc.a, tc.b, CIDSelf)
			bPrime := mustTransform(t, tc.b, tc.a, CIDOther)

			apply(t, base, tc.a, 1)
			apply(t, base, bPrime, 2)

			apply(t, left, tc.b, 2)
			apply(t, left, aPrime, 1)

			if base.Content().String() != left.Content().String() {
				t.Fatalf("TP1 violated: %q != %q", base.Content().String(), left.Content().String())
			}
		})
	}
}

// TestConvergenceTP2 checks the second transformation property: composing
// a transform through two concurrent operations one at a time must equal
// transforming it directly against their combined effect (spec §4.H).
func TestConvergenceTP2(t *testing.T) {
	a := &Insert{Pos: 10, Content: chunk.New(1, "Q")}
	b := &Insert{Pos: 3, Content: chunk.New(2, "RS")}
	c := &Delete{Pos: 5, Len: 2}

	// Path 1: transform a against b, then against c-shifted-past-b.
	aAfterB := mustTransform(t, a, b, CIDOther)
	cAfterB := mustTransform(t, c, b, CIDNone)
	path1 := mustTransform(t, aAfterB, cAfterB, CIDOther)

	// Path 2: transform a against c, then against b-shifted-past-c.
	aAfterC := mustTransform(t, a, c, CIDOther)
	bAfterC := mustTransform(t, b, c, CIDNone)
	path2 := mustTransform(t, aAfterC, bAfterC, CIDOther)

	p1 := path1.(*Insert)
	p2 := path2.(*Insert)
	if p1.Pos != p2.Pos {
		t.Fatalf("TP2 violated: pos %d != %d", p1.Pos, p2.Pos)
	}
}

// TestScenarioConcurrentInsertsSamePosition is the spec's worked example
// (a): two users insert at the same offset in "abcdefghijklmnopqrstuvwxyz"
// and must converge on "abcdXYZefghijklmnopqrstuvwxyz" (or the symmetric
// ordering), never on divergent or interleaved text.
func TestScenarioConcurrentInsertsSamePosition(t *testing.T) {
	base := "abcdefghijklmnopqrstuvwxyz"
	a := &Insert{Pos: 4, Content: chunk.New(1, "XY")}
	b := &Insert{Pos: 4, Content: chunk.New(2, "Z")}

	docA := buffer.FromChunk(chunk.New(0, base))
	docB := buffer.FromChunk(chunk.New(0, base))

	// a is authored by user 1, b by user 2: the lower author id (1) wins
	// the left position at both sites, so a's transform against b uses
	// CIDOther (stays left) and b's transform against a uses CIDSelf
	// (shifts right) — opposite signs, per TP1.
	bPrime := mustTransform(t, b, a, CIDSelf)
	apply(t, docA, a, 1)
	apply(t, docA, bPrime, 2)

	aPrime := mustTransform(t, a, b, CIDOther)
	apply(t, docB, b, 2)
	apply(t, docB, aPrime, 1)

	if docA.Content().String() != docB.Content().String() {
		t.Fatalf("diverged: %q != %q", docA.Content().String(), docB.Content().String())
	}
	want := "abcdXYZefghijklmnopqrstuvwxyz"
	if docA.Content().String() != want {
		t.Fatalf("got %q, want %q", docA.Content().String(), want)
	}
}

// TestScenarioDeleteAcrossConcurrentInsert is the spec's worked example (b):
// one user deletes a range while another inserts inside it; the delete
// must still remove exactly what it originally saw, and the inserted text
// must survive.
func TestScenarioDeleteAcrossConcurrentInsert(t *testing.T) {
	base := "abcdefghij"
	del := &Delete{Pos: 2, Len: 4} // removes "cdef"
	ins := &Insert{Pos: 4, Content: chunk.New(2, "XY")}

	doc := buffer.FromChunk(chunk.New(0, base))
	delPrime := mustTransform(t, del, ins, CIDNone)
	apply(t, doc, ins, 2)
	split := Unsplit(delPrime)
	for _, op := range split {
		apply(t, doc, op, 1)
	}

	want := "abXYghij" // c,d,e,f removed; X,Y survive
	if doc.Content().String() != want {
		t.Fatalf("got %q, want %q", doc.Content().String(), want)
	}
}

// TestScenarioRevertOverlappedDelete is the spec's worked example (c): a
// delete that overlapped with other edits still reverts to restore exactly
// what it removed, given its reversibility-completion form. The restored
// text and the concurrent insert land on the same offset; without CIDSelf
// the revert stays left of the insert, the side user 1 (the lower id)
// keeps under the adopted layer's tiebreak.
func TestScenarioRevertOverlappedDelete(t *testing.T) {
	doc := buffer.FromChunk(chunk.New(0, "Hello, cruel world!"))
	del := &Delete{Pos: 7, Len: 6} // removes "cruel "
	completed, err := del.ApplyTransformed(del, 1, doc)
	if err != nil {
		t.Fatalf("apply transformed: %v", err)
	}
	if doc.Content().String() != "Hello, world!" {
		t.Fatalf("unexpected delete result: %q", doc.Content().String())
	}

	ins := &Insert{Pos: 7, Content: chunk.New(2, "brave ")}
	apply(t, doc, ins, 2)
	if doc.Content().String() != "Hello, brave world!" {
		t.Fatalf("unexpected insert result: %q", doc.Content().String())
	}

	reverted, err := completed.Revert()
	if err != nil {
		t.Fatalf("revert: %v", err)
	}
	revertPrime := mustTransform(t, reverted, ins, CIDNone)
	apply(t, doc, revertPrime, 1)
	if doc.Content().String() != "Hello, cruel brave world!" {
		t.Fatalf("got %q", doc.Content().String())
	}
}

func TestDeleteDeleteOverlapCases(t *testing.T) {
	cases := []struct {
		name           string
		a, b           Delete
		wantOp         bool
		wantPos, wantL int
	}{
		{"a before b", Delete{Pos: 0, Len: 2}, Delete{Pos: 5, Len: 2}, true, 0, 2},
		{"b before a", Delete{Pos: 5, Len: 2}, Delete{Pos: 0, Len: 2}, true, 3, 2},
		{"b inside a", Delete{Pos: 0, Len: 10}, Delete{Pos: 3, Len: 2}, true, 0, 8},
		{"a inside b", Delete{Pos: 3, Len: 2}, Delete{Pos: 0, Len: 10}, false, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := transformDeleteDelete(&tc.a, &tc.b)
			if tc.wantOp {
				d, ok := out.(*Delete)
				if !ok {
					t.Fatalf("expected *Delete, got %T", out)
				}
				if d.Pos != tc.wantPos || d.Len != tc.wantL {
					t.Fatalf("got (%d,%d), want (%d,%d)", d.Pos, d.Len, tc.wantPos, tc.wantL)
				}
			} else {
				if _, ok := out.(*NoOp); !ok {
					t.Fatalf("expected NoOp, got %T", out)
				}
			}
		})
	}
}

func TestDeleteInsertSplitsWhenInsertLandsInside(t *testing.T) {
	del := &Delete{Pos: 2, Len: 6}
	ins := &Insert{Pos: 5, Content: chunk.New(1, "Q")}
	out := transformDeleteInsert(del, ins)
	split, ok := out.(*Split)
	if !ok {
		t.Fatalf("expected *Split, got %T", out)
	}
	left := split.A.(*Delete)
	right := split.B.(*Delete)
	if left.Pos != 2 || left.Len != 3 {
		t.Fatalf("left = %+v", left)
	}
	if right.Pos != 3 || right.Len != 3 {
		t.Fatalf("right = %+v", right)
	}
}
