package directory

import (
	"github.com/infinoted/libinfinity/internal/acl"
	"github.com/infinoted/libinfinity/internal/comm"
	"github.com/infinoted/libinfinity/internal/xerr"
	"github.com/infinoted/libinfinity/internal/xmlframe"
)

// SubscribeHook lets the caller wire subscribe-session into whatever
// multiplexes sessions onto communication groups (internal/session, in
// the full daemon) without internal/directory importing internal/session
// back — Handler only needs to know which (group, method) pair to report.
type SubscribeHook func(leaf Node, conn comm.ConnID) (group, method string, err error)

// Handler implements comm.Target for the "InfDirectory" group (spec §4.J,
// §6): it decodes explore-node/add-node/subscribe-session/query-acl/
// set-acl stanzas, runs the caller's account against the node's ACL
// sheets using the permission bits spec §3 names, and replies on the
// group the request arrived on. Grounded on the teacher's handler-per-
// message-type dispatch shape in pkg/server/connection.go, generalized
// from one fixed JSON message set to directory's closed XML stanza set.
type Handler struct {
	Tree     *Tree
	Registry *comm.Registry
	Group    *comm.Group

	// AccountFor resolves the account identity of the connection a
	// request arrived on (spec §4.K identity, established during SASL/
	// certificate auth upstream of this handler). Defaults to "default"
	// when nil, which is only appropriate for tests.
	AccountFor func(conn comm.ConnID) acl.Account

	// Subscribe answers subscribe-session requests; nil means
	// subscription is not wired up yet and every request fails.
	Subscribe SubscribeHook
}

var _ comm.Target = (*Handler)(nil)

func (h *Handler) account(conn comm.ConnID) acl.Account {
	if h.AccountFor != nil {
		return h.AccountFor(conn)
	}
	return acl.Default
}

func (h *Handler) reply(conn comm.ConnID, n *xmlframe.Node) {
	if h.Group == nil || h.Registry == nil {
		return
	}
	h.Group.SendSingle(h.Registry, conn, n)
}

func (h *Handler) fail(conn comm.ConnID, err *xerr.Error) {
	h.reply(conn, EncodeRequestFailed(err))
}

func asXErr(err error) *xerr.Error {
	if xe, ok := err.(*xerr.Error); ok {
		return xe
	}
	return xerr.Wrap(xerr.DomainRequest, xerr.CodeInvalidAttribute, err)
}

func granted(got, want acl.Mask) bool { return got&want == want }

// HandleStanza implements comm.Target. Stanzas this handler doesn't
// recognize are silently ignored, mirroring §4.D's "if none, the stanza
// is dropped" drop-not-crash posture at the message-type level too.
func (h *Handler) HandleStanza(conn comm.ConnID, stanza comm.Stanza) {
	node, ok := stanza.(*xmlframe.Node)
	if !ok {
		return
	}
	acct := h.account(conn)

	switch node.Root.Name.Local {
	case "explore-node":
		h.handleExplore(conn, acct, node)
	case "add-node":
		h.handleAddNode(conn, acct, node)
	case "subscribe-session":
		h.handleSubscribe(conn, acct, node)
	case "query-acl":
		h.handleQueryACL(conn, acct, node)
	case "set-acl":
		h.handleSetACL(conn, acct, node)
	}
}

func (h *Handler) handleExplore(conn comm.ConnID, acct acl.Account, node *xmlframe.Node) {
	id, err := DecodeExploreNode(node)
	if err != nil {
		h.fail(conn, asXErr(err))
		return
	}
	if !granted(h.Tree.Check(id, acct, acl.CanExploreNode), acl.CanExploreNode) {
		h.fail(conn, permissionDenied("explore-node"))
		return
	}
	children, err := h.Tree.Explore(id)
	if err != nil {
		h.fail(conn, asXErr(err))
		return
	}
	h.reply(conn, EncodeExploreBegin(len(children)))
	for _, c := range children {
		h.reply(conn, EncodeNodeEntry(c))
	}
}

func (h *Handler) handleAddNode(conn comm.ConnID, acct acl.Account, node *xmlframe.Node) {
	req, err := DecodeAddNode(node)
	if err != nil {
		h.fail(conn, asXErr(err))
		return
	}
	bit := acl.CanAddDocument
	if req.Type == TypeSubdirectory {
		bit = acl.CanAddSubdirectory
	}
	if !granted(h.Tree.Check(req.Parent, acct, bit), bit) {
		h.fail(conn, permissionDenied("add-node"))
		return
	}

	var n Node
	if req.Type == TypeSubdirectory {
		n, err = h.Tree.AddSubdirectory(req.Parent, req.Name)
	} else {
		n, err = h.Tree.AddNote(req.Parent, req.Name, req.SessionType)
	}
	if err != nil {
		h.fail(conn, xerr.Wrap(xerr.DomainRequest, xerr.CodeNameCollision, err))
		return
	}
	h.reply(conn, EncodeAddNodeResponse(n))
}

func (h *Handler) handleSubscribe(conn comm.ConnID, acct acl.Account, node *xmlframe.Node) {
	id, err := DecodeSubscribeSession(node)
	if err != nil {
		h.fail(conn, asXErr(err))
		return
	}
	if !granted(h.Tree.Check(id, acct, acl.CanSubscribeSession), acl.CanSubscribeSession) {
		h.fail(conn, permissionDenied("subscribe-session"))
		return
	}
	leaf, ok := h.Tree.Get(id)
	if !ok || leaf.Type != TypeLeaf {
		h.fail(conn, xerr.New(xerr.DomainRequest, xerr.CodeUnexpectedNode, "not a document node"))
		return
	}
	if h.Subscribe == nil {
		h.fail(conn, xerr.New(xerr.DomainSync, xerr.CodeUnexpectedNode, "subscription is not available"))
		return
	}
	group, method, err := h.Subscribe(leaf, conn)
	if err != nil {
		h.fail(conn, asXErr(err))
		return
	}
	h.reply(conn, EncodeSubscribeSessionResponse(group, method))
}

func (h *Handler) handleQueryACL(conn comm.ConnID, acct acl.Account, node *xmlframe.Node) {
	id, err := DecodeQueryACL(node)
	if err != nil {
		h.fail(conn, asXErr(err))
		return
	}
	if !granted(h.Tree.Check(id, acct, acl.CanQueryACL), acl.CanQueryACL) {
		h.fail(conn, permissionDenied("query-acl"))
		return
	}
	sheets, err := h.Tree.QueryACL(id)
	if err != nil {
		h.fail(conn, xerr.Wrap(xerr.DomainStorage, xerr.CodeIO, err))
		return
	}
	for acctName, row := range sheets {
		h.reply(conn, EncodeACLSheet(acctName, row))
	}
}

func (h *Handler) handleSetACL(conn comm.ConnID, acct acl.Account, node *xmlframe.Node) {
	id, err := requireNodeIDAttr(node.Root, "id")
	if err != nil {
		h.fail(conn, asXErr(err))
		return
	}
	if !granted(h.Tree.Check(id, acct, acl.CanSetACL), acl.CanSetACL) {
		h.fail(conn, permissionDenied("set-acl"))
		return
	}
	for _, child := range splitChildNodes(node.Body) {
		if child.Root.Name.Local != "sheet" {
			continue
		}
		account, row, err := DecodeACLSheet(child)
		if err != nil {
			h.fail(conn, asXErr(err))
			return
		}
		if err := h.Tree.SetACL(id, acl.Account(account), row); err != nil {
			h.fail(conn, xerr.Wrap(xerr.DomainStorage, xerr.CodeIO, err))
			return
		}
	}
}
