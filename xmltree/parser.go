package xmltree

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
)

type parseError struct {
	err error
}

func (e parseError) Error() string { return "xmltree: " + e.err.Error() }

func (e parseError) Unwrap() error { return e.err }

type parser struct {
	xmlDecoder *xml.Decoder
}

// Parse reads the first element of an XML document and everything below
// it. Whitespace-only character data next to child elements is dropped.
func Parse(r io.Reader) (*Element, error) {
	p := &parser{xmlDecoder: xml.NewDecoder(r)}
	return p.parseDocument()
}

func (p *parser) parseDocument() (root *Element, parseErr error) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(runtime.Error); ok {
				panic(r)
			}
			parseErr = parseError{r.(error)}
		}
	}()
	for {
		token, err := p.xmlDecoder.Token()
		if err == io.EOF {
			panic(errors.New("no elements encountered"))
		}
		if err != nil {
			panic(err)
		}
		if element, ok := token.(xml.StartElement); ok {
			return p.parseElement(element), nil
		}
	}
}

func (p *parser) parseElement(start xml.StartElement) *Element {
	e := NewElement()
	e.SetName(start.Name.Local)
	for _, a := range start.Attr {
		e.SetAttribute(a.Name.Local, a.Value)
	}
	var content strings.Builder
	for {
		token, err := p.xmlDecoder.Token()
		if err == io.EOF {
			panic(fmt.Errorf("unterminated element %s", start.Name.Local))
		}
		if err != nil {
			panic(err)
		}
		switch t := token.(type) {
		case xml.StartElement:
			e.AddChild(p.parseElement(t))
		case xml.CharData:
			content.Write(t)
		case xml.EndElement:
			text := content.String()
			if len(e.Children) > 0 {
				text = strings.TrimSpace(text)
			}
			e.SetContent(text)
			return e
		}
	}
}
