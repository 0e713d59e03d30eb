package session

import (
	"github.com/infinoted/libinfinity/internal/comm"
	"github.com/infinoted/libinfinity/internal/user"
	"github.com/infinoted/libinfinity/internal/vector"
	"github.com/infinoted/libinfinity/internal/xerr"
)

// SyncUserMsg is one `<sync-user>` stanza: a snapshot of a user the session
// has ever seen, sent so the joiner's user table starts complete (spec
// §4.F step 2).
type SyncUserMsg struct {
	ID     uint64
	Name   string
	Status user.Status
}

// SyncLogEntryMsg is one entry of the request-log suffix a sync message
// carries, enough for the joiner to replay future transforms against (spec
// §4.F step 4, §4.G).
type SyncLogEntryMsg struct {
	User     uint64
	Seq      uint32
	Executed comm.Stanza // an encoded operation.Operation
	Vector   *vector.Vector
}

// SyncMessage is the full body the publisher sends a joiner (spec §4.F,
// Synchronizing a joiner, steps 1-4). Body is session-type-specific (for
// text sessions, a sequence of sync-segment stanzas); the base session
// only assembles the parts common to every session type.
type SyncMessage struct {
	NumMessages int
	Users       []SyncUserMsg
	Body        []comm.Stanza
	Log         []SyncLogEntryMsg
}

// StartSync begins synchronizing conn: it snapshots the user table and the
// request log, registers conn's hold queue so concurrent activity isn't
// lost before it acks, and returns the message for the transport layer to
// serialize and send directly to conn (conn is not yet a group member, so
// it cannot be reached through the group).
func (s *Session) StartSync(conn comm.ConnID, body []comm.Stanza) *SyncMessage {
	s.mu.Lock()
	s.pending[conn] = &pendingJoin{}
	s.status = StatusSynchronizing
	s.mu.Unlock()

	msg := &SyncMessage{Body: body}
	for _, u := range s.Users.All() {
		msg.Users = append(msg.Users, SyncUserMsg{ID: u.ID, Name: u.Name, Status: u.Status})
	}
	for _, e := range s.Algo.Log().All() {
		msg.Log = append(msg.Log, SyncLogEntryMsg{User: e.User, Seq: e.Seq, Executed: EncodeOperation(e.Executed), Vector: e.Vector})
	}
	msg.NumMessages = len(msg.Users) + len(msg.Body) + len(msg.Log)
	return msg
}

// FinishSync completes the handshake once conn has acked (spec §4.F:
// "Only then does the publisher transition the joiner to the main
// subscription group"): it joins userID into the user table, adds conn as a
// real group member, and flushes everything held for it in order.
func (s *Session) FinishSync(conn comm.ConnID, userID uint64, name string) error {
	s.mu.Lock()
	pj, ok := s.pending[conn]
	if !ok {
		s.mu.Unlock()
		return xerr.New(xerr.DomainSync, xerr.CodeUnexpectedNode, "sync-ack with no sync in progress")
	}
	delete(s.pending, conn)
	held := pj.held
	s.status = StatusRunning
	s.mu.Unlock()

	s.Users.Join(userID, name)
	if s.Group != nil {
		s.Group.AddMember(conn)
		for _, stanza := range held {
			s.Group.SendSingle(s.Registry, conn, stanza)
		}
	}
	return nil
}

// CancelSync handles `<sync-cancel/>`: the held queue is dropped and conn is
// treated as never having joined (spec §4.F: "the publisher drops the
// queued traffic and treats the connection as having left the session").
func (s *Session) CancelSync(conn comm.ConnID) {
	s.mu.Lock()
	delete(s.pending, conn)
	if len(s.pending) == 0 {
		s.status = StatusRunning
	}
	s.mu.Unlock()
}
