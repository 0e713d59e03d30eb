package directory

import (
	"encoding/xml"
	"strconv"

	"github.com/infinoted/libinfinity/internal/xerr"
	"github.com/infinoted/libinfinity/internal/xmlframe"
)

// Encode/Decode pairs for the "InfDirectory" group stanzas named in spec
// §6: explore-node, add-node, subscribe-session, the ACL messages, and
// request-failed. They mirror internal/session/codec.go's shape (plain
// xmlframe.Node construction, no intermediate struct layer) since both
// are rendering the same kind of thing: a small, closed set of wire
// messages over one opaque Stanza carrier.

func elem(name string, attrs ...xml.Attr) xml.StartElement {
	return xml.StartElement{Name: xml.Name{Local: name}, Attr: attrs}
}

func strAttr(name, val string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: val}
}

func idAttr(name string, id NodeID) xml.Attr {
	return strAttr(name, strconv.FormatUint(uint64(id), 10))
}

func intAttr(name string, n int) xml.Attr {
	return strAttr(name, strconv.Itoa(n))
}

func findAttr(start xml.StartElement, name string) (string, bool) {
	for _, a := range start.Attr {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func requireAttr(start xml.StartElement, name string) (string, error) {
	v, ok := findAttr(start, name)
	if !ok {
		return "", xerr.New(xerr.DomainRequest, xerr.CodeMissingField, "missing attribute "+name)
	}
	return v, nil
}

func requireNodeIDAttr(start xml.StartElement, name string) (NodeID, error) {
	v, err := requireAttr(start, name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, xerr.Wrap(xerr.DomainRequest, xerr.CodeInvalidAttribute, err)
	}
	return NodeID(n), nil
}

func nodeTypeName(t NodeType) string {
	if t == TypeSubdirectory {
		return "subdirectory"
	}
	return "leaf"
}

func parseNodeType(s string) NodeType {
	if s == "subdirectory" {
		return TypeSubdirectory
	}
	return TypeLeaf
}

// EncodeExploreNode renders the explore-node(iter) request (spec §6).
func EncodeExploreNode(id NodeID) *xmlframe.Node {
	return &xmlframe.Node{Root: elem("explore-node", idAttr("id", id))}
}

// DecodeExploreNode parses an explore-node request back to a NodeID.
func DecodeExploreNode(n *xmlframe.Node) (NodeID, error) {
	return requireNodeIDAttr(n.Root, "id")
}

// EncodeExploreBegin renders the explore-begin response header, whose
// total announces how many node children immediately follow (mirroring
// sync-begin's num-messages announcement in spec §4.F).
func EncodeExploreBegin(total int) *xmlframe.Node {
	return &xmlframe.Node{Root: elem("explore-begin", intAttr("total", total))}
}

// EncodeNodeEntry renders one child entry following explore-begin.
func EncodeNodeEntry(n Node) *xmlframe.Node {
	return &xmlframe.Node{Root: elem("node",
		idAttr("id", n.ID),
		strAttr("name", n.Name),
		strAttr("type", nodeTypeName(n.Type)),
		strAttr("session-type", n.SessionType),
	)}
}

// AddNodeRequest is the decoded form of an add-node stanza (spec §6:
// "<add-node parent="…" type="…" name="…"/>").
type AddNodeRequest struct {
	Parent      NodeID
	Name        string
	Type        NodeType
	SessionType string
}

// EncodeAddNode renders an add-node request.
func EncodeAddNode(req AddNodeRequest) *xmlframe.Node {
	attrs := []xml.Attr{
		idAttr("parent", req.Parent),
		strAttr("name", req.Name),
		strAttr("type", nodeTypeName(req.Type)),
	}
	if req.Type == TypeLeaf {
		attrs = append(attrs, strAttr("session-type", req.SessionType))
	}
	return &xmlframe.Node{Root: elem("add-node", attrs...)}
}

// DecodeAddNode parses an add-node request.
func DecodeAddNode(n *xmlframe.Node) (AddNodeRequest, error) {
	parent, err := requireNodeIDAttr(n.Root, "parent")
	if err != nil {
		return AddNodeRequest{}, err
	}
	name, err := requireAttr(n.Root, "name")
	if err != nil {
		return AddNodeRequest{}, err
	}
	typeStr, err := requireAttr(n.Root, "type")
	if err != nil {
		return AddNodeRequest{}, err
	}
	sessionType, _ := findAttr(n.Root, "session-type")
	return AddNodeRequest{Parent: parent, Name: name, Type: parseNodeType(typeStr), SessionType: sessionType}, nil
}

// EncodeAddNodeResponse renders the add-node response, identifying the
// node that was actually created (spec §6: responses "add-node").
func EncodeAddNodeResponse(n Node) *xmlframe.Node {
	return &xmlframe.Node{Root: elem("add-node",
		idAttr("id", n.ID),
		strAttr("name", n.Name),
		strAttr("type", nodeTypeName(n.Type)),
	)}
}

// EncodeSubscribeSession renders the subscribe-session(iter) request.
func EncodeSubscribeSession(id NodeID) *xmlframe.Node {
	return &xmlframe.Node{Root: elem("subscribe-session", idAttr("id", id))}
}

// DecodeSubscribeSession parses a subscribe-session request.
func DecodeSubscribeSession(n *xmlframe.Node) (NodeID, error) {
	return requireNodeIDAttr(n.Root, "id")
}

// EncodeSubscribeSessionResponse renders the response identifying which
// communication group and method the caller should now join to reach the
// session (spec §6: "subscribe-session group="…" method="…"").
func EncodeSubscribeSessionResponse(group, method string) *xmlframe.Node {
	return &xmlframe.Node{Root: elem("subscribe-session", strAttr("group", group), strAttr("method", method))}
}

// EncodeQueryACL renders a query-acl(iter) request.
func EncodeQueryACL(id NodeID) *xmlframe.Node {
	return &xmlframe.Node{Root: elem("query-acl", idAttr("id", id))}
}

// DecodeQueryACL parses a query-acl request.
func DecodeQueryACL(n *xmlframe.Node) (NodeID, error) {
	return requireNodeIDAttr(n.Root, "id")
}

// EncodeACLSheet renders one account's sheet row in a query-acl/set-acl
// body (spec §3 Sheet: "a 64-bit mask ... and a 64-bit perms").
func EncodeACLSheet(account string, row SheetRow) *xmlframe.Node {
	return &xmlframe.Node{Root: elem("sheet",
		strAttr("account", account),
		strAttr("mask", strconv.FormatUint(row.Mask, 10)),
		strAttr("perms", strconv.FormatUint(row.Perms, 10)),
	)}
}

// DecodeACLSheet parses one sheet row out of a set-acl request body.
func DecodeACLSheet(n *xmlframe.Node) (account string, row SheetRow, err error) {
	account, err = requireAttr(n.Root, "account")
	if err != nil {
		return "", SheetRow{}, err
	}
	maskStr, err := requireAttr(n.Root, "mask")
	if err != nil {
		return "", SheetRow{}, err
	}
	permsStr, err := requireAttr(n.Root, "perms")
	if err != nil {
		return "", SheetRow{}, err
	}
	mask, perr := strconv.ParseUint(maskStr, 10, 64)
	if perr != nil {
		return "", SheetRow{}, xerr.Wrap(xerr.DomainRequest, xerr.CodeInvalidAttribute, perr)
	}
	perms, perr := strconv.ParseUint(permsStr, 10, 64)
	if perr != nil {
		return "", SheetRow{}, xerr.Wrap(xerr.DomainRequest, xerr.CodeInvalidAttribute, perr)
	}
	return account, SheetRow{Mask: mask, Perms: perms}, nil
}

// EncodeRequestFailed renders the generic failure stanza used for any
// directory request an ACL sheet denies or that fails validation (spec
// §6: "<request-failed domain="…" code="…"><text>…</text></request-failed>").
func EncodeRequestFailed(err *xerr.Error) *xmlframe.Node {
	node := &xmlframe.Node{Root: elem("request-failed", strAttr("domain", string(err.Domain)), strAttr("code", err.Code))}
	if err.Message != "" {
		start := elem("text")
		end := xml.EndElement{Name: start.Name}
		node.Body = []xmlframe.Token{
			{Start: &start},
			{Chars: []byte(err.Message)},
			{End: &end},
		}
	}
	return node
}

// splitChildNodes regroups a flattened token list back into top-level
// child nodes, used by set-acl to pull the <sheet> children out of its
// body. Mirrors internal/session/codec.go's helper of the same name and
// shape; both packages need it over their own opaque Stanza bodies and
// neither imports the other.
func splitChildNodes(toks []xmlframe.Token) []*xmlframe.Node {
	var out []*xmlframe.Node
	var cur *xmlframe.Node
	depth := 0
	for _, t := range toks {
		switch {
		case t.Start != nil:
			if depth == 0 {
				start := *t.Start
				cur = &xmlframe.Node{Root: start}
			} else {
				cur.Body = append(cur.Body, t)
			}
			depth++
		case t.End != nil:
			depth--
			if depth == 0 {
				out = append(out, cur)
				cur = nil
			} else {
				cur.Body = append(cur.Body, t)
			}
		default:
			if cur != nil {
				cur.Body = append(cur.Body, t)
			}
		}
	}
	return out
}

// permissionDenied builds the xerr the spec names for an ACL rejection
// (DomainRequest/CodeUnauthorized, §4.K/§7), independent of which bit the
// caller was missing.
func permissionDenied(action string) *xerr.Error {
	return xerr.New(xerr.DomainRequest, xerr.CodeUnauthorized, "not permitted: "+action)
}
