package adopted

import (
	"sync"

	"github.com/infinoted/libinfinity/internal/buffer"
	"github.com/infinoted/libinfinity/internal/operation"
	"github.com/infinoted/libinfinity/internal/user"
	"github.com/infinoted/libinfinity/internal/vector"
	"github.com/infinoted/libinfinity/internal/xerr"
)

// Algorithm is the adOPTed state machine from spec §4.G, sitting on top of
// a buffer.Buffer and a request Log: Execute handles a request issued by
// the local user, Receive handles one arriving from a peer, and Undo
// replays a past entry's inverse against everything that has happened
// since. It mirrors the lock-guarded state/transform loop the teacher's
// Kolabpad.ApplyEdit uses, generalized from OperationSeq's retain-based
// transform to the operation package's adOPTed transform.
type Algorithm struct {
	mu     sync.Mutex
	buf    buffer.Buffer
	users  *user.Table
	log    *Log
	vector *vector.Vector
}

func New(buf buffer.Buffer, users *user.Table) *Algorithm {
	return &Algorithm{
		buf:    buf,
		users:  users,
		log:    NewLog(),
		vector: vector.New(),
	}
}

// Vector returns a snapshot of the current local state vector.
func (a *Algorithm) Vector() *vector.Vector {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.vector.Clone()
}

// Log returns the request log backing this algorithm, e.g. for a session
// building a joiner's sync message (spec §4.F step 4).
func (a *Algorithm) Log() *Log {
	return a.log
}

// Execute runs the local user's request R at the current local vector
// (spec §4.G, Execution). It returns R's executed form (what actually
// entered the log, after reversibility completion) and the pre-execution
// vector to tag outbound replication with.
func (a *Algorithm) Execute(userID uint64, req operation.Operation) (operation.Operation, *vector.Vector, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	seq := a.vector.Get(userID)
	sent := a.vector.Clone()

	executed, err := a.translateAndApply(userID, a.vector, req)
	if err != nil {
		return nil, nil, err
	}
	a.record(userID, seq, req, executed, nil)
	return executed, sent, nil
}

// Receive handles a request R arriving from user u at vector vR (spec
// §4.G, Reception).
func (a *Algorithm) Receive(userID uint64, vR *vector.Vector, req operation.Operation) (operation.Operation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	seq := vR.Get(userID)
	if seq != a.log.Count(userID) {
		return nil, xerr.New(xerr.DomainSync, xerr.CodeOutOfSequence, "request arrived out of sequence")
	}

	executed, err := a.translateAndApply(userID, vR, req)
	if err != nil {
		return nil, err
	}
	a.record(userID, seq, req, executed, nil)
	return executed, nil
}

// Undo replays the inverse of a past request by log coordinates (spec
// §4.G, Undo semantics): the actual delta applied is the target's
// executed form reverted, then transformed forward through everything
// that happened since that entry, so concurrent edits need no
// coordination with the undo.
func (a *Algorithm) Undo(userID uint64, targetUser uint64, targetSeq uint32) (operation.Operation, *vector.Vector, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	target, ok := a.log.At(targetUser, targetSeq)
	if !ok {
		return nil, nil, xerr.New(xerr.DomainRequest, xerr.CodeInvalidAttribute, "undo target not in log")
	}
	reverted, err := target.Executed.Revert()
	if err != nil {
		return nil, nil, xerr.Wrap(xerr.DomainRequest, xerr.CodeInvalidAttribute, err)
	}

	seq := a.vector.Get(userID)
	sent := a.vector.Clone()

	executed, err := a.translateAndApply(userID, target.Vector, reverted)
	if err != nil {
		return nil, nil, err
	}
	undone := targetSeq
	a.record(userID, seq, reverted, executed, &undone)
	return executed, sent, nil
}

// translateAndApply brings req (authored by userID at vector from) into
// the current buffer frame by transforming it through every log entry
// recorded since from that isn't userID's own, then applies it — via the
// reversibility-completion path when it arrives non-reversible but
// buffer-affecting (spec §4.G step 2-3, §4.H Reversibility completion).
//
// Ties between same-position concurrent inserts are broken per log entry
// by comparing author ids (spec §4.H, §8 scenario (a)): the lower id wins
// the left position. The comparison is antisymmetric in the two authors,
// not in which site is replaying, so the two sites involved in a
// concurrent same-position insert always transform with opposite signs
// (TP1) and converge on the same text.
func (a *Algorithm) translateAndApply(userID uint64, from *vector.Vector, req operation.Operation) (operation.Operation, error) {
	transformed := req
	for _, e := range a.log.Since(from) {
		if e.User == userID {
			continue
		}
		cid := concurrencyIDFor(userID, e.User)
		next, err := operation.Transform(transformed, e.Executed, nil, nil, cid)
		if err != nil {
			return nil, xerr.Wrap(xerr.DomainRequest, xerr.CodeInvalidAttribute, err)
		}
		transformed = next
	}

	flags := transformed.Flags()
	var executed operation.Operation
	var err error
	if flags.AffectsBuffer && !flags.Reversible {
		executed, err = transformed.ApplyTransformed(transformed, userID, a.buf)
	} else {
		err = transformed.Apply(a.buf, userID)
		executed = transformed
	}
	if err != nil {
		return nil, err
	}

	if mv, ok := executed.(*operation.Move); ok && a.users != nil {
		a.users.SetMove(userID, mv.Caret, mv.SelectionLen)
	}
	return executed, nil
}

// concurrencyIDFor derives the concurrency id for transforming a request
// authored by reqAuthor against a log entry authored by entryAuthor. The
// lower author id wins the left position (spec §8 scenario (a)): self
// means reqAuthor ends up to the right of entryAuthor's content, other
// means it stays to the left. Equal authors never reach this comparison
// in practice (translateAndApply skips a requester's own entries).
func concurrencyIDFor(reqAuthor, entryAuthor uint64) operation.ConcurrencyID {
	switch {
	case reqAuthor > entryAuthor:
		return operation.CIDSelf
	case reqAuthor < entryAuthor:
		return operation.CIDOther
	default:
		return operation.CIDNone
	}
}

// record appends an entry and advances the local vector along userID's
// axis, but only when the executed form actually touches the buffer (spec
// §4.G step 4: "V is incremented along the local user's axis iff R affects
// the buffer").
func (a *Algorithm) record(userID uint64, seq uint32, original, executed operation.Operation, undoesSeq *uint32) {
	if executed.Flags().AffectsBuffer {
		a.vector.Bump(userID)
	}
	a.log.Append(Entry{
		User:      userID,
		Seq:       seq,
		Original:  original,
		Executed:  executed,
		UndoesSeq: undoesSeq,
		Vector:    a.vector.Clone(),
	})
}
