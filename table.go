package bplist

import (
	"fmt"
	"strconv"
)

// Table is the flat object table produced by one decode. It is never
// modified after Decode returns, so it may be read from several goroutines.
type Table struct {
	objects []Object
	offsets []int64
	trailer Trailer
}

// Len returns the number of objects in the table.
func (t *Table) Len() int { return len(t.objects) }

// Trailer returns the trailer the table was decoded with.
func (t *Table) Trailer() Trailer { return t.trailer }

// TopIndex returns the index of the top level object as declared by the
// trailer.
func (t *Table) TopIndex() int {
	if t.trailer.TopObject > uint64(maxInt) {
		return -1
	}
	return int(t.trailer.TopObject)
}

// Resolve returns the object at index.
func (t *Table) Resolve(index int) (Object, error) {
	if index < 0 || index >= len(t.objects) {
		return nil, &IndexError{Index: index, Len: len(t.objects)}
	}
	return t.objects[index], nil
}

// Top returns the top level object.
func (t *Table) Top() (Object, error) {
	return t.Resolve(t.TopIndex())
}

// Offset returns the byte offset at which the object at index starts, or
// -1 if index is out of range.
func (t *Table) Offset(index int) int64 {
	if index < 0 || index >= len(t.offsets) {
		return -1
	}
	return t.offsets[index]
}

// Objects returns a copy of the table contents in index order.
func (t *Table) Objects() []Object {
	return append([]Object(nil), t.objects...)
}

// checkRefs verifies that every container reference addresses an object.
func (t *Table) checkRefs() error {
	check := func(refs []int) error {
		for _, ref := range refs {
			if ref < 0 || ref >= len(t.objects) {
				return &IndexError{Index: ref, Len: len(t.objects)}
			}
		}
		return nil
	}
	for _, o := range t.objects {
		switch o := o.(type) {
		case *Array:
			if err := check(o.refs); err != nil {
				return err
			}
		case *Dict:
			if err := check(o.keyRefs); err != nil {
				return err
			}
			if err := check(o.objRefs); err != nil {
				return err
			}
		}
	}
	return nil
}

// describeRef renders a reference held by container for debug output,
// without descending into other containers.
func (t *Table) describeRef(container Object, ref int) string {
	if ref < 0 || ref >= len(t.objects) {
		return "#" + strconv.Itoa(ref)
	}
	o := t.objects[ref]
	if o == container {
		return "*" + strconv.Itoa(ref)
	}
	switch o := o.(type) {
	case *Array, *Dict:
		return "@" + strconv.Itoa(ref)
	case String:
		return strconv.Quote(string(o))
	case Null:
		return "null"
	default:
		return fmt.Sprint(o.Value())
	}
}

const maxInt = int(^uint(0) >> 1)
