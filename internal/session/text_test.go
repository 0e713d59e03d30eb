package session

import (
	"testing"

	"github.com/infinoted/libinfinity/internal/chunk"
	"github.com/infinoted/libinfinity/internal/comm"
	"github.com/infinoted/libinfinity/internal/operation"
)

func TestBuildAndJoinSyncBodyRoundTrip(t *testing.T) {
	registry := comm.NewRegistry(&recordingSink{})
	pub := NewTextSession(registry, nil)
	pub.Group = comm.NewGroup("doc", "server", true, pub)
	pub.JoinUser(1, "alice")
	if _, err := pub.ExecuteLocal(1, &operation.Insert{Pos: 0, Content: chunk.New(1, "hello world")}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	body := pub.BuildSyncBody()
	joiner := NewJoinedTextSession(registry, nil, body)

	if joiner.Buf.Content().String() != pub.Buf.Content().String() {
		t.Fatalf("joiner content %q != publisher content %q",
			joiner.Buf.Content().String(), pub.Buf.Content().String())
	}
}

func TestJoinUserBroadcastsUserStanza(t *testing.T) {
	sink := &recordingSink{}
	registry := comm.NewRegistry(sink)
	ts := NewTextSession(registry, nil)
	group := comm.NewGroup("doc", "server", true, ts)
	ts.Group = group
	group.AddMember("conn-a")
	registry.Join("conn-a", group)

	ts.JoinUser(5, "carol")
	u, ok := ts.Users.Get(5)
	if !ok || u.Name != "carol" {
		t.Fatalf("expected user 5 to be carol, got %+v ok=%v", u, ok)
	}
	if len(sink.writes) != 1 {
		t.Fatalf("expected join stanza broadcast, got %d writes", len(sink.writes))
	}
}

func TestSetSelectionDoesNotTouchBuffer(t *testing.T) {
	registry := comm.NewRegistry(&recordingSink{})
	ts := NewTextSession(registry, nil)
	ts.Group = comm.NewGroup("doc", "server", true, ts)
	ts.JoinUser(1, "alice")
	if _, err := ts.ExecuteLocal(1, &operation.Insert{Pos: 0, Content: chunk.New(1, "abcdef")}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	before := ts.Buf.Content().String()
	if err := ts.SetSelection(1, 3, -2); err != nil {
		t.Fatalf("set selection: %v", err)
	}
	if ts.Buf.Content().String() != before {
		t.Fatalf("selection change must not mutate buffer content")
	}
	u, _ := ts.Users.Get(1)
	if u.Caret != 3 || u.SelectionLen != -2 {
		t.Fatalf("expected caret/selection to update, got %+v", u)
	}
}
