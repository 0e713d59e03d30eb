package directory

import (
	"encoding/xml"
	"testing"

	"github.com/infinoted/libinfinity/internal/acl"
	"github.com/infinoted/libinfinity/internal/comm"
	"github.com/infinoted/libinfinity/internal/xmlframe"
)

type recordingSink struct {
	writes []*xmlframe.Node
}

func (s *recordingSink) Write(conn comm.ConnID, group string, stanza comm.Stanza) error {
	s.writes = append(s.writes, stanza.(*xmlframe.Node))
	return nil
}

func newTestHandler(t *testing.T, acct acl.Account) (*Handler, *recordingSink) {
	t.Helper()
	storage := newMemStorage()
	tree, err := NewTree(storage)
	if err != nil {
		t.Fatalf("NewTree: %v", err)
	}
	sink := &recordingSink{}
	registry := comm.NewRegistry(sink)
	group := comm.NewGroup("InfDirectory", "server", true, nil)
	registry.Join("conn-a", group)

	h := &Handler{
		Tree:       tree,
		Registry:   registry,
		Group:      group,
		AccountFor: func(comm.ConnID) acl.Account { return acct },
	}
	return h, sink
}

func rootNames(nodes []*xmlframe.Node) []string {
	var out []string
	for _, n := range nodes {
		out = append(out, n.Root.Name.Local)
	}
	return out
}

func TestHandlerExploreDeniedWithoutACL(t *testing.T) {
	h, sink := newTestHandler(t, "alice")
	h.HandleStanza("conn-a", EncodeExploreNode(Root))

	if len(sink.writes) != 1 || sink.writes[0].Root.Name.Local != "request-failed" {
		t.Fatalf("expected a single request-failed reply, got %v", rootNames(sink.writes))
	}
}

func TestHandlerExploreGrantedByRootAccount(t *testing.T) {
	h, sink := newTestHandler(t, acl.Root)
	if _, err := h.Tree.AddSubdirectory(Root, "docs"); err != nil {
		t.Fatalf("seed subdirectory: %v", err)
	}

	h.HandleStanza("conn-a", EncodeExploreNode(Root))

	if len(sink.writes) != 2 {
		t.Fatalf("expected explore-begin + one node entry, got %v", rootNames(sink.writes))
	}
	if sink.writes[0].Root.Name.Local != "explore-begin" {
		t.Fatalf("expected explore-begin first, got %s", sink.writes[0].Root.Name.Local)
	}
	if sink.writes[1].Root.Name.Local != "node" {
		t.Fatalf("expected a node entry, got %s", sink.writes[1].Root.Name.Local)
	}
}

func TestHandlerAddNodeRequiresPermission(t *testing.T) {
	h, sink := newTestHandler(t, "alice")
	h.HandleStanza("conn-a", EncodeAddNode(AddNodeRequest{Parent: Root, Name: "doc", Type: TypeLeaf, SessionType: "InfText"}))

	if len(sink.writes) != 1 || sink.writes[0].Root.Name.Local != "request-failed" {
		t.Fatalf("expected denial, got %v", rootNames(sink.writes))
	}
}

func TestHandlerAddNodeSucceedsForRoot(t *testing.T) {
	h, sink := newTestHandler(t, acl.Root)
	h.HandleStanza("conn-a", EncodeAddNode(AddNodeRequest{Parent: Root, Name: "doc", Type: TypeLeaf, SessionType: "InfText"}))

	if len(sink.writes) != 1 || sink.writes[0].Root.Name.Local != "add-node" {
		t.Fatalf("expected add-node response, got %v", rootNames(sink.writes))
	}
	if _, ok := h.Tree.GetChild(Root, "doc"); !ok {
		t.Fatalf("expected doc to be created in the tree")
	}
}

func TestHandlerSubscribeWithoutHookFails(t *testing.T) {
	h, sink := newTestHandler(t, acl.Root)
	leaf, err := h.Tree.AddNote(Root, "doc", "InfText")
	if err != nil {
		t.Fatalf("AddNote: %v", err)
	}

	h.HandleStanza("conn-a", EncodeSubscribeSession(leaf.ID))

	if len(sink.writes) != 1 || sink.writes[0].Root.Name.Local != "request-failed" {
		t.Fatalf("expected failure without a Subscribe hook, got %v", rootNames(sink.writes))
	}
}

func TestHandlerSubscribeCallsHook(t *testing.T) {
	h, sink := newTestHandler(t, acl.Root)
	leaf, err := h.Tree.AddNote(Root, "doc", "InfText")
	if err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	h.Subscribe = func(n Node, conn comm.ConnID) (string, string, error) {
		return "session-" + n.Name, "central", nil
	}

	h.HandleStanza("conn-a", EncodeSubscribeSession(leaf.ID))

	if len(sink.writes) != 1 || sink.writes[0].Root.Name.Local != "subscribe-session" {
		t.Fatalf("expected subscribe-session response, got %v", rootNames(sink.writes))
	}
	group, _ := findAttr(sink.writes[0].Root, "group")
	if group != "session-doc" {
		t.Fatalf("expected group session-doc, got %q", group)
	}
}

func TestHandlerSetACLThenQueryACLRoundTrips(t *testing.T) {
	h, sink := newTestHandler(t, acl.Root)
	setReq := &xmlframe.Node{Root: elem("set-acl", idAttr("id", Root))}
	setReq.Body = wrapNodeTokens(EncodeACLSheet("alice", SheetRow{Mask: uint64(acl.CanExploreNode), Perms: uint64(acl.CanExploreNode)}))

	h.HandleStanza("conn-a", setReq)
	if len(sink.writes) != 0 {
		t.Fatalf("set-acl should not reply on success, got %v", rootNames(sink.writes))
	}

	h.HandleStanza("conn-a", EncodeQueryACL(Root))
	if len(sink.writes) != 1 || sink.writes[0].Root.Name.Local != "sheet" {
		t.Fatalf("expected one sheet entry back, got %v", rootNames(sink.writes))
	}
	account, _ := findAttr(sink.writes[0].Root, "account")
	if account != "alice" {
		t.Fatalf("expected alice's sheet, got %q", account)
	}
}

// wrapNodeTokens flattens a single node back into a token slice with its
// own start/end tags, mirroring internal/session/codec.go's wrapNode for
// nesting one encoded element inside another (set-acl's <sheet> child).
func wrapNodeTokens(n *xmlframe.Node) []xmlframe.Token {
	out := []xmlframe.Token{{Start: &n.Root}}
	out = append(out, n.Body...)
	end := xml.EndElement{Name: n.Root.Name}
	out = append(out, xmlframe.Token{End: &end})
	return out
}
