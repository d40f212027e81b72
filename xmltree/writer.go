package xmltree

import (
	"bufio"
	"encoding/xml"
	"io"
)

const (
	// Header is the XML declaration written before a document.
	Header = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"
	// PlistDoctype is the DOCTYPE of Apple XML property lists.
	PlistDoctype = `<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">` + "\n"
)

// Writer serializes element trees.
type Writer struct {
	*bufio.Writer

	indent  string
	doctype string
	depth   int
}

// NewWriter returns a Writer indenting with a tab and writing the plist
// DOCTYPE.
func NewWriter(w io.Writer) *Writer {
	return &Writer{Writer: bufio.NewWriter(w), indent: "\t", doctype: PlistDoctype}
}

// Indent sets the per-level indentation string.
func (p *Writer) Indent(i string) {
	p.indent = i
}

// Doctype sets the DOCTYPE line written by WriteDocument. An empty string
// omits it.
func (p *Writer) Doctype(d string) {
	p.doctype = d
}

// WriteDocument writes the XML declaration, the DOCTYPE and root, then
// flushes.
func (p *Writer) WriteDocument(root *Element) error {
	p.WriteString(Header)
	p.WriteString(p.doctype)
	p.writeElement(root)
	return p.Flush()
}

// WriteElement writes e and its descendants, then flushes.
func (p *Writer) WriteElement(e *Element) error {
	p.writeElement(e)
	return p.Flush()
}

func (p *Writer) writeIndent() {
	for i := 0; i < p.depth; i++ {
		p.WriteString(p.indent)
	}
}

func (p *Writer) escape(s string) {
	// Writes to a bufio.Writer only fail through its sticky error, which
	// Flush reports.
	_ = xml.EscapeText(p.Writer, []byte(s))
}

func (p *Writer) startTag(e *Element) {
	p.WriteByte('<')
	p.WriteString(e.Name)
	for _, a := range e.Attrs {
		p.WriteByte(' ')
		p.WriteString(a.Name)
		p.WriteString(`="`)
		p.escape(a.Value)
		p.WriteByte('"')
	}
}

func (p *Writer) writeElement(e *Element) {
	p.writeIndent()
	p.startTag(e)
	switch {
	case len(e.Children) == 0 && len(e.Content) == 0:
		p.WriteString("/>\n")
	case len(e.Children) == 0:
		p.WriteByte('>')
		p.escape(e.Content)
		p.WriteString("</" + e.Name + ">\n")
	default:
		p.WriteString(">\n")
		p.depth++
		if len(e.Content) > 0 {
			p.writeIndent()
			p.escape(e.Content)
			p.WriteByte('\n')
		}
		for _, c := range e.Children {
			p.writeElement(c)
		}
		p.depth--
		p.writeIndent()
		p.WriteString("</" + e.Name + ">\n")
	}
}
