package directory

import "testing"

// memStorage is a minimal in-memory Storage fake used to test Tree
// without a real database, mirroring the teacher's preference for
// httptest-level fakes over mocking frameworks.
type memStorage struct {
	nextID   NodeID
	children map[NodeID][]StoredNode
	sheets   map[NodeID]map[string]SheetRow
}

func newMemStorage() *memStorage {
	return &memStorage{
		nextID:   1,
		children: make(map[NodeID][]StoredNode),
		sheets:   make(map[NodeID]map[string]SheetRow),
	}
}

func (m *memStorage) Children(parent NodeID) ([]StoredNode, error) {
	return append([]StoredNode(nil), m.children[parent]...), nil
}

func (m *memStorage) CreateNode(parent NodeID, name string, typ NodeType, sessionType string) (NodeID, error) {
	id := m.nextID
	m.nextID++
	m.children[parent] = append(m.children[parent], StoredNode{ID: id, Name: name, Type: typ, SessionType: sessionType})
	return id, nil
}

func (m *memStorage) DeleteNode(id NodeID) error {
	for parent, kids := range m.children {
		for i, k := range kids {
			if k.ID == id {
				m.children[parent] = append(kids[:i], kids[i+1:]...)
			}
		}
	}
	delete(m.children, id)
	delete(m.sheets, id)
	return nil
}

func (m *memStorage) RenameNode(id NodeID, name string) error {
	for parent, kids := range m.children {
		for i, k := range kids {
			if k.ID == id {
				kids[i].Name = name
				m.children[parent] = kids
			}
		}
	}
	return nil
}

func (m *memStorage) SetSheet(node NodeID, account string, row SheetRow) error {
	if m.sheets[node] == nil {
		m.sheets[node] = make(map[string]SheetRow)
	}
	m.sheets[node][account] = row
	return nil
}

func (m *memStorage) Sheets(node NodeID) (map[string]SheetRow, error) {
	return m.sheets[node], nil
}

func TestAddExploreAndNavigate(t *testing.T) {
	storage := newMemStorage()
	tree, err := NewTree(storage)
	if err != nil {
		t.Fatalf("new tree: %v", err)
	}

	if _, err := tree.AddSubdirectory(Root, "docs"); err != nil {
		t.Fatalf("add subdir: %v", err)
	}
	if _, err := tree.AddNote(Root, "readme", "text"); err != nil {
		t.Fatalf("add note: %v", err)
	}

	children, err := tree.Explore(Root)
	if err != nil {
		t.Fatalf("explore: %v", err)
	}
	if got := sortedNames(children); len(got) != 2 || got[0] != "docs" || got[1] != "readme" {
		t.Fatalf("unexpected children: %v", got)
	}

	docs, ok := tree.GetChild(Root, "docs")
	if !ok {
		t.Fatalf("expected to find docs")
	}
	readme, ok := tree.GetChild(Root, "readme")
	if !ok {
		t.Fatalf("expected to find readme")
	}
	if next, ok := tree.GetNext(docs.ID); !ok || next.ID != readme.ID {
		t.Fatalf("expected readme to follow docs")
	}
	if parent, ok := tree.GetParent(readme.ID); !ok || parent.ID != Root {
		t.Fatalf("expected readme's parent to be root")
	}
}

func TestAddChildRejectsDuplicateName(t *testing.T) {
	tree, _ := NewTree(newMemStorage())
	if _, err := tree.AddNote(Root, "x", "text"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := tree.AddNote(Root, "x", "text"); err == nil {
		t.Fatalf("expected duplicate name to fail")
	}
}

func TestRemoveNodeIsRecursive(t *testing.T) {
	tree, _ := NewTree(newMemStorage())
	dir, _ := tree.AddSubdirectory(Root, "dir")
	tree.AddNote(dir.ID, "leaf", "text")

	var removedIDs []NodeID
	tree.OnNodeRemoved(func(id NodeID) { removedIDs = append(removedIDs, id) })

	if err := tree.RemoveNode(dir.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(removedIDs) != 2 {
		t.Fatalf("expected 2 removals (leaf then dir), got %d", len(removedIDs))
	}
	if _, ok := tree.GetChild(Root, "dir"); ok {
		t.Fatalf("dir should no longer be a child of root")
	}
}

func TestCheckThroughTree(t *testing.T) {
	tree, _ := NewTree(newMemStorage())
	dir, _ := tree.AddSubdirectory(Root, "dir")

	if err := tree.SetACL(dir.ID, "alice", SheetRow{Mask: 0b1, Perms: 0b1}); err != nil {
		t.Fatalf("set acl: %v", err)
	}
	got := tree.Check(dir.ID, "alice", 0b1)
	if got != 0b1 {
		t.Fatalf("expected alice granted bit0, got %#b", got)
	}
	got = tree.Check(dir.ID, "bob", 0b1)
	if got != 0 {
		t.Fatalf("expected bob denied, got %#b", got)
	}
}
