package xmlframe

import (
	"encoding/xml"
	"io"

	"mellium.im/xmlstream"
)

// WrapGroup wraps inner in the <group name="…" publisher="…"> element
// every inbound/outbound stanza carries its routing group in (spec §4.D).
func WrapGroup(name, publisher string, inner xml.TokenReader) xml.TokenReader {
	start := xml.StartElement{
		Name: xml.Name{Local: "group"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "name"}, Value: name},
			{Name: xml.Name{Local: "publisher"}, Value: publisher},
		},
	}
	return xmlstream.Wrap(inner, start)
}

// Serialize drains r and writes it to w as XML. Outbound serialization
// wraps each outgoing element as a child of a per-connection conceptual
// root and releases the element tree once written (spec §4.C); here that
// release is implicit since r is drained to EOF and discarded.
func Serialize(w io.Writer, r xml.TokenReader) error {
	enc := xml.NewEncoder(w)
	for {
		tok, err := r.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if err := enc.EncodeToken(tok); err != nil {
			return err
		}
	}
	return enc.Flush()
}
