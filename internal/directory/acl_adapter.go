package directory

import "github.com/infinoted/libinfinity/internal/acl"

// Chain implements acl.Chain against the live tree: node itself followed
// by every ancestor up to and including the root.
func (t *Tree) Chain(id NodeID) []NodeID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []NodeID
	for {
		out = append(out, id)
		n, ok := t.nodes[id]
		if !ok || n.ID == Root {
			return out
		}
		id = n.Parent
	}
}

// SheetLookup implements acl.SheetLookup against storage, since sheets
// are not cached on Node (they change far less often than they're read,
// but a node can accumulate many accounts and the tree keeps the common
// path — children/names — hot instead).
func (t *Tree) SheetLookup(node NodeID, account acl.Account) (acl.Sheet, bool) {
	sheets, err := t.storage.Sheets(node)
	if err != nil {
		return acl.Sheet{}, false
	}
	row, ok := sheets[string(account)]
	if !ok {
		return acl.Sheet{}, false
	}
	return acl.Sheet{Mask: acl.Mask(row.Mask), Perms: acl.Mask(row.Perms)}, true
}

// Check runs the permission-check algorithm for account at node (spec
// §4.K, wired through the live tree's chain and storage).
func (t *Tree) Check(node NodeID, account acl.Account, mask acl.Mask) acl.Mask {
	return acl.Check(t.Chain, t.SheetLookup, node, account, mask)
}

// SetACL persists account's sheet at node (spec §4.J, set-acl).
func (t *Tree) SetACL(node NodeID, account acl.Account, row SheetRow) error {
	return t.storage.SetSheet(node, string(account), row)
}

// QueryACL returns every account with an explicit sheet at node (spec
// §4.J, query-acl-account-list).
func (t *Tree) QueryACL(node NodeID) (map[string]SheetRow, error) {
	return t.storage.Sheets(node)
}
