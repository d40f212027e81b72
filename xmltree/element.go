// Package xmltree is a small mutable XML element tree with a writer and a
// parser, used to project property lists into their XML form.
package xmltree

// Attr is a single attribute of an Element.
type Attr struct {
	Name  string
	Value string
}

// Element is an XML element. Content is character data; an element may
// carry both content and children, in which case the content is written
// first.
type Element struct {
	Name     string
	Attrs    []Attr
	Content  string
	Children []*Element
}

// NewElement returns an empty, unnamed element.
func NewElement() *Element {
	return &Element{}
}

func (e *Element) SetName(name string) {
	e.Name = name
}

// SetAttribute sets or replaces the attribute called name. Attributes keep
// the order in which they were first set.
func (e *Element) SetAttribute(name, value string) {
	for i := range e.Attrs {
		if e.Attrs[i].Name == name {
			e.Attrs[i].Value = value
			return
		}
	}
	e.Attrs = append(e.Attrs, Attr{Name: name, Value: value})
}

// Attribute returns the value of the attribute called name.
func (e *Element) Attribute(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

func (e *Element) SetContent(content string) {
	e.Content = content
}

func (e *Element) AddChild(child *Element) {
	e.Children = append(e.Children, child)
}
