// Package adopted implements the adOPTed algorithm itself (spec §4.G): the
// request log and the execution/reception state machine that sits on top
// of internal/operation's transform rules and a internal/buffer.Buffer.
package adopted

import (
	"github.com/infinoted/libinfinity/internal/operation"
	"github.com/infinoted/libinfinity/internal/vector"
)

// Entry is one request log record (spec §3, Request log): the original
// request as the issuing user sent it, the form it was actually executed
// as (after transform, and after reversibility completion), and — for
// undo entries — the log coordinates of the request it undoes.
type Entry struct {
	User      uint64
	Seq       uint32
	Original  operation.Operation
	Executed  operation.Operation
	UndoesSeq *uint32       // nil unless this entry is an undo of an earlier entry by the same user
	Vector    *vector.Vector // local vector immediately after this entry was applied
}

// Log is the ordered-by-arrival sequence of log entries, indexed by
// (user, seq) for the causal replay that Reception (spec §4.G) performs.
// Entries are appended, never reordered, and pruned only from the front
// per user once no live peer still needs them (spec §4.G, Log pruning).
type Log struct {
	// byUser[u] holds user u's entries ordered by seq, with entries below
	// the pruned floor removed. floor[u] is the seq of byUser[u][0].
	byUser map[uint64][]Entry
	floor  map[uint64]uint32
	// order is the global arrival order, used to replay entries causally
	// between two vectors during Reception.
	order []Entry
}

func NewLog() *Log {
	return &Log{
		byUser: make(map[uint64][]Entry),
		floor:  make(map[uint64]uint32),
		order:  nil,
	}
}

// Append records a new entry at the end of the log.
func (l *Log) Append(e Entry) {
	l.byUser[e.User] = append(l.byUser[e.User], e)
	l.order = append(l.order, e)
}

// Count returns how many entries user u has ever contributed, i.e. the
// log-count(u) the spec's Reception step 1 checks V_R(u) against.
func (l *Log) Count(u uint64) uint32 {
	return l.floor[u] + uint32(len(l.byUser[u]))
}

// At returns user u's entry at sequence number seq, if it is still
// present (not yet pruned).
func (l *Log) At(u uint64, seq uint32) (Entry, bool) {
	entries := l.byUser[u]
	floor := l.floor[u]
	if seq < floor || int(seq-floor) >= len(entries) {
		return Entry{}, false
	}
	return entries[seq-floor], true
}

// All returns every entry still present in the log, in arrival order. Used
// to build the request-log suffix a joiner's sync message carries (spec
// §4.F step 4).
func (l *Log) All() []Entry {
	return l.order
}

// Since returns every entry recorded after the local vector v, in arrival
// order — the translations Execution (spec §4.G step 1) and Reception
// (step 2) replay a request through.
func (l *Log) Since(v *vector.Vector) []Entry {
	var out []Entry
	for _, e := range l.order {
		if e.Seq >= v.Get(e.User) {
			out = append(out, e)
		}
	}
	return out
}

// Prune drops entries below floor(u) for every user, unless they are still
// referenced as an undo target by a later, unpruned entry (spec §4.G, Log
// pruning: "entries serving as undo targets are kept until their latest
// undoer is released too").
func (l *Log) Prune(floors map[uint64]uint32) {
	needed := make(map[[2]uint64]bool)
	for _, e := range l.order {
		if e.UndoesSeq != nil {
			needed[[2]uint64{e.User, uint64(*e.UndoesSeq)}] = true
		}
	}
	for u, newFloor := range floors {
		entries := l.byUser[u]
		curFloor := l.floor[u]
		drop := 0
		for i := range entries {
			seq := curFloor + uint32(i)
			if seq >= newFloor {
				break
			}
			if needed[[2]uint64{u, uint64(seq)}] {
				break
			}
			drop++
		}
		if drop > 0 {
			l.byUser[u] = entries[drop:]
			l.floor[u] = curFloor + uint32(drop)
		}
	}
	var kept []Entry
	for _, e := range l.order {
		if e.Seq >= l.floor[e.User] {
			kept = append(kept, e)
		}
	}
	l.order = kept
}
