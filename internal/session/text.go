package session

import (
	"github.com/infinoted/libinfinity/internal/adopted"
	"github.com/infinoted/libinfinity/internal/buffer"
	"github.com/infinoted/libinfinity/internal/chunk"
	"github.com/infinoted/libinfinity/internal/comm"
	"github.com/infinoted/libinfinity/internal/operation"
	"github.com/infinoted/libinfinity/internal/user"
	"github.com/infinoted/libinfinity/internal/xmlframe"
)

// SyncSegmentMsg is one `<sync-segment author="u">text</sync-segment>`
// stanza: the text session's present-state body during sync (spec §4.F
// step 3).
type SyncSegmentMsg struct {
	Author uint64
	Text   string
}

// TextSession specializes Session with a TextBuffer and the text-specific
// helpers spec §4.I names: join-user, set-selection, and XML encoding of
// text operations via codec.go.
type TextSession struct {
	*Session
	Buf *buffer.TextBuffer
}

// NewTextSession constructs a fresh text session: an empty buffer, a new
// user table, and the adOPTed algorithm wired to both (spec §3, Session).
func NewTextSession(registry *comm.Registry, group *comm.Group) *TextSession {
	buf := buffer.New()
	users := user.NewTable()
	algo := adopted.New(buf, users)
	return &TextSession{Session: newSession(registry, group, users, algo), Buf: buf}
}

// JoinUser assigns userID its session identity and enters it in the user
// table, broadcasting a `<user>` join stanza to the rest of the group
// (spec §4.I, "helpers join-user, set-selection").
func (s *TextSession) JoinUser(userID uint64, name string) {
	s.Users.Join(userID, name)
	s.broadcastRequest("", &UserStanza{ID: userID, Name: name, Join: true})
}

// SetSelection applies a local caret/selection change for userID: a Move
// operation never affects the buffer, so it is routed straight through
// ExecuteLocal like any other request (spec §4.I).
func (s *TextSession) SetSelection(userID uint64, caret, selectionLen int) error {
	_, err := s.ExecuteLocal(userID, &operation.Move{Caret: caret, SelectionLen: selectionLen})
	return err
}

// BuildSyncBody renders the buffer's present content as the text session's
// sync-segment sequence (spec §4.F step 3).
func (s *TextSession) BuildSyncBody() []comm.Stanza {
	content := s.Buf.Content()
	body := make([]comm.Stanza, 0, len(content.Runs()))
	for _, r := range content.Runs() {
		body = append(body, &SyncSegmentMsg{Author: r.Author, Text: string(r.Bytes)})
	}
	return body
}

// NewJoinedTextSession constructs a text session for the joiner side of a
// sync: unlike NewTextSession, the buffer starts seeded with the content a
// sync message's body carried (spec §4.F step 3), so the algorithm is built
// against the already-populated buffer rather than an empty one patched up
// afterward — swapping TextSession.Buf out from under an already-wired
// Algorithm would leave the two pointing at different buffer instances.
func NewJoinedTextSession(registry *comm.Registry, group *comm.Group, body []comm.Stanza) *TextSession {
	var c chunk.Chunk
	for _, stanza := range body {
		seg, ok := stanza.(*SyncSegmentMsg)
		if !ok {
			continue
		}
		c = chunk.Concatenate(c, chunk.New(seg.Author, seg.Text))
	}
	buf := buffer.FromChunk(c)
	users := user.NewTable()
	algo := adopted.New(buf, users)
	return &TextSession{Session: newSession(registry, group, users, algo), Buf: buf}
}

// EncodeRequestOperation and DecodeRequestOperation turn a RequestStanza's
// Op field into wire XML and back; they are thin aliases of EncodeOperation
// and DecodeOperation.
func EncodeRequestOperation(op operation.Operation) *xmlframe.Node { return EncodeOperation(op) }
func DecodeRequestOperation(node *xmlframe.Node) (operation.Operation, error) {
	return DecodeOperation(node)
}
