// Package session implements the session base and synchronization protocol
// from spec §4.F: lifecycle, user table wiring, request routing into the
// adOPTed algorithm, and the join/sync handshake a session's target runs
// for every connection the communication group hands it.
package session

import (
	"sync"

	"github.com/infinoted/libinfinity/internal/adopted"
	"github.com/infinoted/libinfinity/internal/comm"
	"github.com/infinoted/libinfinity/internal/operation"
	"github.com/infinoted/libinfinity/internal/user"
	"github.com/infinoted/libinfinity/internal/vector"
	"github.com/infinoted/libinfinity/internal/xerr"
)

// Status is a session's lifecycle state (spec §3, Session).
type Status int

const (
	StatusPresync Status = iota
	StatusSynchronizing
	StatusRunning
	StatusClosed
)

// RequestKind distinguishes the three request flavors the wire protocol
// carries (spec §3, Request: "tagged union over {do, undo, redo}").
type RequestKind int

const (
	KindDo RequestKind = iota
	KindUndo
	KindRedo
)

// RequestStanza is the decoded form of a `<request>` stanza (spec §4.F: the
// session target "routes inbound stanzas by tag: <request> into the
// algorithm"). Op is nil for undo/redo, which reference their target by
// log coordinates instead of carrying a payload (spec §4.G, Undo
// semantics).
type RequestStanza struct {
	User       uint64
	Vector     *vector.Vector
	Kind       RequestKind
	Op         operation.Operation
	TargetUser uint64
	TargetSeq  uint32
}

// UserStanza is the decoded form of a `<user>` stanza: a join or a leave
// notification (spec §4.F: "<user> into the user table (joins/leaves)").
type UserStanza struct {
	ID   uint64
	Name string
	Join bool
}

// pendingJoin tracks one connection mid-synchronization: everything the
// group would have sent it had it already been a member is queued here and
// flushed in order once the joiner acks (spec §4.F, Synchronizing a
// joiner).
type pendingJoin struct {
	held []comm.Stanza
}

// Session is the base every specialized session (only text, in this
// module) embeds. It owns the pieces spec §3's Session entry lists: a user
// table, a request log (inside Algo), the algorithm façade, a subscription
// group, and a status.
type Session struct {
	Registry *comm.Registry
	Group    *comm.Group
	Users    *user.Table
	Algo     *adopted.Algorithm

	mu      sync.Mutex
	status  Status
	pending map[comm.ConnID]*pendingJoin
}

func newSession(registry *comm.Registry, group *comm.Group, users *user.Table, algo *adopted.Algorithm) *Session {
	return &Session{
		Registry: registry,
		Group:    group,
		Users:    users,
		Algo:     algo,
		status:   StatusPresync,
		pending:  make(map[comm.ConnID]*pendingJoin),
	}
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) setStatus(st Status) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

// ExecuteLocal runs a request issued by the local user (one directly
// connected to this process, not replicated from a peer) and broadcasts
// its effect to the rest of the group (spec §4.G, Execution).
func (s *Session) ExecuteLocal(userID uint64, op operation.Operation) (operation.Operation, error) {
	executed, sent, err := s.Algo.Execute(userID, op)
	if err != nil {
		return nil, err
	}
	s.broadcastRequest("", &RequestStanza{User: userID, Vector: sent, Kind: KindDo, Op: executed})
	return executed, nil
}

// ReceiveRemote handles a `<request>` arriving on conn from a peer, feeds it
// through the algorithm, and relays the result onward (spec §4.G,
// Reception; spec §4.E, central method re-broadcasting through the
// publisher).
func (s *Session) ReceiveRemote(conn comm.ConnID, req *RequestStanza) error {
	switch req.Kind {
	case KindDo:
		executed, err := s.Algo.Receive(req.User, req.Vector, req.Op)
		if err != nil {
			return err
		}
		s.broadcastRequest(conn, &RequestStanza{User: req.User, Vector: req.Vector, Kind: KindDo, Op: executed})
		return nil
	case KindUndo, KindRedo:
		executed, sent, err := s.Algo.Undo(req.User, req.TargetUser, req.TargetSeq)
		if err != nil {
			return err
		}
		s.broadcastRequest(conn, &RequestStanza{User: req.User, Vector: sent, Kind: KindDo, Op: executed})
		return nil
	default:
		return xerr.New(xerr.DomainRequest, xerr.CodeInvalidAttribute, "unknown request kind")
	}
}

// broadcastRequest multicasts stanza to every running member except except,
// and mirrors it into every connection's held queue while that connection
// is still mid-sync, so nothing that happened during the sync window is
// lost once it acks (spec §4.F: "holds main-group traffic for that
// connection in a queue and flushes it afterward in order").
func (s *Session) broadcastRequest(except comm.ConnID, stanza comm.Stanza) {
	s.mu.Lock()
	for conn, pj := range s.pending {
		if conn == except {
			continue
		}
		pj.held = append(pj.held, stanza)
	}
	s.mu.Unlock()
	if s.Group != nil {
		s.Group.SendAll(s.Registry, except, stanza)
	}
}

// HandleStanza implements comm.Target: it is what the group's registry
// entry dispatches inbound stanzas to (spec §4.F, Running state).
func (s *Session) HandleStanza(conn comm.ConnID, stanza comm.Stanza) {
	switch v := stanza.(type) {
	case *RequestStanza:
		_ = s.ReceiveRemote(conn, v)
	case *UserStanza:
		if v.Join {
			s.Users.Join(v.ID, v.Name)
		} else {
			s.Users.Leave(v.ID)
		}
	}
}

// HandleConnClosed drops a connection from the session, whether it was
// still mid-sync (treated as an implicit cancel, spec §4.F: "If the
// transport closes mid-sync on either side, the sync fails... no partial
// state is retained") or already a running member (marked unavailable and
// removed from the group, spec §3, User lifetime).
func (s *Session) HandleConnClosed(conn comm.ConnID, userID uint64) {
	s.mu.Lock()
	_, wasSyncing := s.pending[conn]
	delete(s.pending, conn)
	s.mu.Unlock()
	if wasSyncing {
		return
	}
	if s.Group != nil {
		s.Group.RemoveMember(conn)
	}
	s.Users.Leave(userID)
	s.broadcastRequest(conn, &UserStanza{ID: userID, Join: false})
}
