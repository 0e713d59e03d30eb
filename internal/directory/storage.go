package directory

// StoredNode is the storage-layer view of a child entry, as returned by
// Storage.Children.
type StoredNode struct {
	ID          NodeID
	Name        string
	Type        NodeType
	SessionType string
}

// SheetRow is one account's stored sheet at a node.
type SheetRow struct {
	Mask  uint64
	Perms uint64
}

// Storage is the durable backing for the tree (spec §4.J: "mutate tree
// and storage"). The two storage interfaces the original spec distilled
// separately (node metadata and ACL sheets) are collapsed into one here,
// per the Open Questions resolution recorded in DESIGN.md.
type Storage interface {
	Children(parent NodeID) ([]StoredNode, error)
	CreateNode(parent NodeID, name string, typ NodeType, sessionType string) (NodeID, error)
	DeleteNode(id NodeID) error
	RenameNode(id NodeID, name string) error

	// Sheet persistence backs internal/acl.Check via SheetLookup/Chain
	// adapters built on top of these two methods.
	SetSheet(node NodeID, account string, row SheetRow) error
	Sheets(node NodeID) (map[string]SheetRow, error)
}
