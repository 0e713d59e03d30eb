package session

import (
	"encoding/xml"
	"strconv"

	"github.com/infinoted/libinfinity/internal/chunk"
	"github.com/infinoted/libinfinity/internal/operation"
	"github.com/infinoted/libinfinity/internal/xerr"
	"github.com/infinoted/libinfinity/internal/xmlframe"
)

// EncodeOperation renders op as the xmlframe.Node the wire carries it as
// (spec §4.I: "<insert pos="…"><segment author="…">…</segment></insert>",
// "<delete pos="…" len="…"/>", "<no-op/>", "<split>…</split>").
func EncodeOperation(op operation.Operation) *xmlframe.Node {
	switch v := op.(type) {
	case *operation.Insert:
		node := &xmlframe.Node{Root: elem("insert", attr("pos", v.Pos))}
		node.Body = encodeChunk(v.Content)
		return node
	case *operation.Delete:
		root := elem("delete", attr("pos", v.Pos), attr("len", v.Len))
		node := &xmlframe.Node{Root: root}
		if v.Content != nil {
			node.Body = encodeChunk(*v.Content)
		}
		return node
	case *operation.Move:
		root := elem("move", attr("caret", v.Caret), attr("selection-len", v.SelectionLen))
		return &xmlframe.Node{Root: root}
	case *operation.Split:
		node := &xmlframe.Node{Root: xml.StartElement{Name: xml.Name{Local: "split"}}}
		node.Body = append(node.Body, wrapNode(EncodeOperation(v.A))...)
		node.Body = append(node.Body, wrapNode(EncodeOperation(v.B))...)
		return node
	default:
		return &xmlframe.Node{Root: xml.StartElement{Name: xml.Name{Local: "no-op"}}}
	}
}

// DecodeOperation parses a node produced by EncodeOperation back into an
// operation.Operation.
func DecodeOperation(node *xmlframe.Node) (operation.Operation, error) {
	switch node.Root.Name.Local {
	case "no-op":
		return &operation.NoOp{}, nil
	case "insert":
		pos, err := intAttr(node.Root, "pos")
		if err != nil {
			return nil, err
		}
		return &operation.Insert{Pos: pos, Content: decodeChunk(node.Body)}, nil
	case "delete":
		pos, err := intAttr(node.Root, "pos")
		if err != nil {
			return nil, err
		}
		length, err := intAttr(node.Root, "len")
		if err != nil {
			return nil, err
		}
		d := &operation.Delete{Pos: pos, Len: length}
		if len(node.Body) > 0 {
			c := decodeChunk(node.Body)
			d.Content = &c
		}
		return d, nil
	case "move":
		caret, err := intAttr(node.Root, "caret")
		if err != nil {
			return nil, err
		}
		sel, err := intAttr(node.Root, "selection-len")
		if err != nil {
			return nil, err
		}
		return &operation.Move{Caret: caret, SelectionLen: sel}, nil
	case "split":
		children := splitChildNodes(node.Body)
		if len(children) != 2 {
			return nil, xerr.New(xerr.DomainRequest, xerr.CodeInvalidAttribute, "split requires exactly two children")
		}
		a, err := DecodeOperation(children[0])
		if err != nil {
			return nil, err
		}
		b, err := DecodeOperation(children[1])
		if err != nil {
			return nil, err
		}
		return &operation.Split{A: a, B: b}, nil
	default:
		return nil, xerr.New(xerr.DomainRequest, xerr.CodeInvalidAttribute, "unknown operation element "+node.Root.Name.Local)
	}
}

func elem(name string, attrs ...xml.Attr) xml.StartElement {
	return xml.StartElement{Name: xml.Name{Local: name}, Attr: attrs}
}

func attr(name string, n int) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: strconv.Itoa(n)}
}

func intAttr(start xml.StartElement, name string) (int, error) {
	for _, a := range start.Attr {
		if a.Name.Local == name {
			n, err := strconv.Atoi(a.Value)
			if err != nil {
				return 0, xerr.Wrap(xerr.DomainRequest, xerr.CodeInvalidAttribute, err)
			}
			return n, nil
		}
	}
	return 0, xerr.New(xerr.DomainRequest, xerr.CodeMissingField, "missing attribute "+name)
}

// encodeChunk renders a chunk as a sequence of <segment author="…"> tokens,
// one per run (spec §4.I).
func encodeChunk(c chunk.Chunk) []xmlframe.Token {
	var toks []xmlframe.Token
	for _, r := range c.Runs() {
		start := elem("segment", xml.Attr{Name: xml.Name{Local: "author"}, Value: strconv.FormatUint(r.Author, 10)})
		end := xml.EndElement{Name: start.Name}
		toks = append(toks, xmlframe.Token{Start: &start})
		toks = append(toks, xmlframe.Token{Chars: append([]byte(nil), r.Bytes...)})
		toks = append(toks, xmlframe.Token{End: &end})
	}
	return toks
}

// decodeChunk is encodeChunk's inverse: it walks a flattened token list
// looking for <segment author="…">text</segment> children and concatenates
// them into a chunk, relying on Chunk's own run-coalescing.
func decodeChunk(toks []xmlframe.Token) chunk.Chunk {
	out := chunk.Chunk{}
	var curAuthor uint64
	inSegment := false
	for _, t := range toks {
		switch {
		case t.Start != nil && t.Start.Name.Local == "segment":
			inSegment = true
			curAuthor = 0
			for _, a := range t.Start.Attr {
				if a.Name.Local == "author" {
					curAuthor, _ = strconv.ParseUint(a.Value, 10, 64)
				}
			}
		case t.End != nil && t.End.Name.Local == "segment":
			inSegment = false
		case t.Chars != nil && inSegment:
			out = chunk.Concatenate(out, chunk.New(curAuthor, string(t.Chars)))
		}
	}
	return out
}

// wrapNode flattens a node back into a token slice with its own start/end
// tags included, used to nest one EncodeOperation result inside another
// (split's two children).
func wrapNode(n *xmlframe.Node) []xmlframe.Token {
	out := []xmlframe.Token{{Start: &n.Root}}
	out = append(out, n.Body...)
	end := xml.EndElement{Name: n.Root.Name}
	out = append(out, xmlframe.Token{End: &end})
	return out
}

// splitChildNodes regroups a flattened token list back into top-level
// child nodes, mirroring what xmlframe.Framer does for the outer stream
// but operating on an already-buffered token slice instead of incoming
// bytes.
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
