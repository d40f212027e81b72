package bplist

import (
	"encoding/base64"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/zdypro888/go-bplist/xmltree"
)

const (
	xmlArrayTag   = "array"
	xmlDataTag    = "data"
	xmlDateTag    = "date"
	xmlDictTag    = "dict"
	xmlFalseTag   = "false"
	xmlIntegerTag = "integer"
	xmlKeyTag     = "key"
	xmlNullTag    = "null"
	xmlPlistTag   = "plist"
	xmlRealTag    = "real"
	xmlStringTag  = "string"
	xmlTrueTag    = "true"

	// CycleTag names the element substituted for a container that is
	// already being expanded further up the tree. Its "ref" attribute
	// holds the container's table index.
	CycleTag = "cycle"

	uidKey = "CF$UID"
)

// TreeElement is the construction contract of an external element tree.
type TreeElement[E any] interface {
	SetName(name string)
	SetAttribute(name, value string)
	SetContent(content string)
	AddChild(child E)
}

// Materialize expands the object at index into a tree built from elements
// returned by newElement. Containers are expanded on demand; a container
// reached again while it is still being expanded becomes a CycleTag
// element.
func Materialize[E TreeElement[E]](t *Table, index int, newElement func() E) (E, error) {
	m := &materializer[E]{table: t, newElement: newElement, visiting: make(map[int]bool)}
	return m.element(index)
}

type materializer[E TreeElement[E]] struct {
	table      *Table
	newElement func() E
	visiting   map[int]bool
}

func (m *materializer[E]) leaf(name, content string) E {
	e := m.newElement()
	e.SetName(name)
	if content != "" {
		e.SetContent(content)
	}
	return e
}

func (m *materializer[E]) element(index int) (E, error) {
	var zero E
	o, err := m.table.Resolve(index)
	if err != nil {
		return zero, err
	}
	switch o := o.(type) {
	case Null:
		return m.leaf(xmlNullTag, ""), nil
	case Boolean:
		if o {
			return m.leaf(xmlTrueTag, ""), nil
		}
		return m.leaf(xmlFalseTag, ""), nil
	case Integer:
		return m.leaf(xmlIntegerTag, strconv.FormatInt(int64(o), 10)), nil
	case Real:
		return m.leaf(xmlRealTag, formatXMLFloat(o)), nil
	case Date:
		return m.leaf(xmlDateTag, o.Time().Format(time.RFC3339)), nil
	case Data:
		return m.leaf(xmlDataTag, base64.StdEncoding.EncodeToString(o)), nil
	case String:
		return m.leaf(xmlStringTag, string(o)), nil
	case UID:
		dict := m.leaf(xmlDictTag, "")
		dict.AddChild(m.leaf(xmlKeyTag, uidKey))
		dict.AddChild(m.leaf(xmlIntegerTag, strconv.FormatUint(uint64(o), 10)))
		return dict, nil
	case *Array:
		if m.visiting[index] {
			return m.cycle(index), nil
		}
		m.visiting[index] = true
		defer delete(m.visiting, index)

		arr := m.leaf(xmlArrayTag, "")
		for i := 0; i < o.Len(); i++ {
			child, err := m.element(o.Ref(i))
			if err != nil {
				return zero, err
			}
			arr.AddChild(child)
		}
		return arr, nil
	case *Dict:
		if m.visiting[index] {
			return m.cycle(index), nil
		}
		m.visiting[index] = true
		defer delete(m.visiting, index)

		dict := m.leaf(xmlDictTag, "")
		for i := 0; i < o.Len(); i++ {
			key, err := o.Key(i)
			if err != nil {
				return zero, err
			}
			value, err := m.element(o.ObjRef(i))
			if err != nil {
				return zero, err
			}
			k := m.newElement()
			k.SetName(xmlKeyTag)
			k.SetContent(key)
			dict.AddChild(k)
			dict.AddChild(value)
		}
		return dict, nil
	}
	return zero, formatErrorf(m.table.Offset(index), 0, "cannot materialize %s", o.Kind())
}

func (m *materializer[E]) cycle(index int) E {
	log.Debugf("reference cycle through object %d", index)
	e := m.leaf(CycleTag, "")
	e.SetAttribute("ref", strconv.Itoa(index))
	return e
}

func formatXMLFloat(r Real) string {
	f := r.Float
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	if r.Single {
		return strconv.FormatFloat(f, 'g', -1, 32)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// ToXML projects the table's top level object into a <plist version="1.0">
// element tree.
func ToXML(t *Table) (*xmltree.Element, error) {
	top, err := Materialize(t, t.TopIndex(), xmltree.NewElement)
	if err != nil {
		return nil, err
	}
	root := xmltree.NewElement()
	root.SetName(xmlPlistTag)
	root.SetAttribute("version", "1.0")
	root.AddChild(top)
	return root, nil
}

// WriteXML writes the table as an XML property list document.
func WriteXML(w io.Writer, t *Table) error {
	root, err := ToXML(t)
	if err != nil {
		return err
	}
	return xmltree.NewWriter(w).WriteDocument(root)
}
