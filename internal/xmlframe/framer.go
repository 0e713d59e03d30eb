// Package xmlframe implements the incremental stanza framing contract
// from spec §4.C: feeding bytes yields zero or more fully parsed
// root-child nodes, with the last stanza possibly left incomplete across
// calls, and malformed input raising a typed fatal stream error.
package xmlframe

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"

	"mellium.im/xmlstream"

	"github.com/infinoted/libinfinity/internal/xerr"
)

// Node is one fully parsed root-child element (spec §4.C: "fully parsed
// root-child nodes"), as its opening tag plus the flattened token stream
// of everything up to its matching close.
type Node struct {
	Root xml.StartElement
	Body []Token
}

// Token is a simplified view of an xml.Token that is safe to hold onto
// after the underlying decoder has moved on (xml.Decoder reuses backing
// arrays across Token calls for some token kinds).
type Token struct {
	Start *xml.StartElement
	End   *xml.EndElement
	Chars []byte
}

// Framer incrementally parses a byte stream into Nodes, tracking the
// conceptual stream root (the opening <stream:stream> tag) separately
// from its children, per spec §4.C.
type Framer struct {
	buf     bytes.Buffer
	dec     xmlstream.TokenReader // satisfied by *xml.Decoder's Token method
	rawDec  *xml.Decoder
	depth   int
	cur     *Node
	curToks []Token
}

func NewFramer() *Framer {
	f := &Framer{}
	f.resetDecoder()
	return f
}

func (f *Framer) resetDecoder() {
	f.rawDec = xml.NewDecoder(&f.buf)
	f.dec = f.rawDec
}

// Feed appends newly-received bytes to the framer's internal buffer.
func (f *Framer) Feed(b []byte) {
	f.buf.Write(b)
}

// Next returns the next fully parsed root-child node. It returns
// (nil, nil) when the buffer is exhausted without completing another
// node (spec §4.C: "the last stanza may be left incomplete across
// calls"). A malformed document yields a fatal xerr with
// xerr.CodeNotWellFormed.
func (f *Framer) Next() (*Node, error) {
	for {
		tok, err := f.dec.Token()
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		if err != nil {
			return nil, xerr.Wrap(xerr.DomainTransport, xerr.CodeNotWellFormed, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			f.depth++
			if f.depth == 1 {
				// This is the stream root itself; it is not a node, just
				// the conceptual root every subsequent child nests under.
				continue
			}
			if f.depth == 2 {
				start := t.Copy()
				f.cur = &Node{Root: start}
				f.curToks = nil
				f.curToks = append(f.curToks, Token{Start: &start})
				continue
			}
			start := t.Copy()
			f.curToks = append(f.curToks, Token{Start: &start})
		case xml.EndElement:
			if f.depth == 1 {
				return nil, xerr.New(xerr.DomainTransport, xerr.CodeNotWellFormed, "unexpected stream close")
			}
			f.depth--
			if f.depth == 1 {
				node := f.cur
				node.Body = f.curToks
				f.cur = nil
				f.curToks = nil
				return node, nil
			}
			end := t.Copy()
			f.curToks = append(f.curToks, Token{End: &end})
		case xml.CharData:
			if f.cur != nil {
				f.curToks = append(f.curToks, Token{Chars: append([]byte(nil), t...)})
			}
		}
	}
}

// Reset discards any partially parsed node and unread buffered bytes,
// used when a stream is reopened (TLS/SASL renegotiation restarts framing
// over the same TCP connection, spec §4.B).
func (f *Framer) Reset() {
	f.buf.Reset()
	f.resetDecoder()
	f.depth = 0
	f.cur = nil
	f.curToks = nil
}
