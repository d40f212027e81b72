package bplist

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Kind identifies the variant of an Object.
type Kind uint8

const (
	KindNull Kind = iota
	KindBoolean
	KindInteger
	KindReal
	KindDate
	KindData
	KindString
	KindUID
	KindArray
	KindDict
)

var kindNames = [...]string{
	KindNull:    "null",
	KindBoolean: "boolean",
	KindInteger: "integer",
	KindReal:    "real",
	KindDate:    "date",
	KindData:    "data",
	KindString:  "string",
	KindUID:     "uid",
	KindArray:   "array",
	KindDict:    "dict",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Object is one record of the object table. The set of implementations is
// closed: Null, Boolean, Integer, Real, Date, Data, String, UID, *Array and
// *Dict.
type Object interface {
	Kind() Kind
	// Value returns the semantic value of the record. Containers return
	// their reference lists; resolving them is up to the Table.
	Value() interface{}

	object()
}

// Null is the 0x00 record.
type Null struct{}

// Boolean is the 0x08/0x09 record.
type Boolean bool

// Integer holds 1, 2, 4 and 8 byte integers. Only the 8 byte form is signed
// on the wire.
type Integer int64

// Real is a single or double precision float; Single records which one the
// file used.
type Real struct {
	Float  float64
	Single bool
}

// Date is an interval in seconds since 2001-01-01T00:00:00Z.
type Date float64

// Data is an opaque byte blob.
type Data []byte

// String is an ASCII or UTF-16 string record, already decoded.
type String string

// UID is a keyed archiver object reference.
type UID uint32

func (Null) Kind() Kind    { return KindNull }
func (Boolean) Kind() Kind { return KindBoolean }
func (Integer) Kind() Kind { return KindInteger }
func (Real) Kind() Kind    { return KindReal }
func (Date) Kind() Kind    { return KindDate }
func (Data) Kind() Kind    { return KindData }
func (String) Kind() Kind  { return KindString }
func (UID) Kind() Kind     { return KindUID }
func (*Array) Kind() Kind  { return KindArray }
func (*Dict) Kind() Kind   { return KindDict }

func (Null) Value() interface{}      { return nil }
func (b Boolean) Value() interface{} { return bool(b) }
func (i Integer) Value() interface{} { return int64(i) }
func (d Date) Value() interface{}    { return d.Time() }
func (d Data) Value() interface{}    { return []byte(d) }
func (s String) Value() interface{}  { return string(s) }
func (u UID) Value() interface{}     { return u }

func (r Real) Value() interface{} {
	if r.Single {
		return float32(r.Float)
	}
	return r.Float
}

func (Null) object()    {}
func (Boolean) object() {}
func (Integer) object() {}
func (Real) object()    {}
func (Date) object()    {}
func (Data) object()    {}
func (String) object()  {}
func (UID) object()     {}
func (*Array) object()  {}
func (*Dict) object()   {}

// epoch is 2001-01-01T00:00:00Z, the zero point of Date intervals.
var epoch = time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)

// maxDateInterval bounds the magnitude of a valid Date so that the epoch
// seconds of its absolute time fit in an int64.
const maxDateInterval = 1 << 62

// Valid reports whether d is a finite interval within maxDateInterval
// seconds of the epoch. Decode rejects dates that are not.
func (d Date) Valid() bool {
	f := float64(d)
	return f > -maxDateInterval && f < maxDateInterval
}

// Time returns the absolute time of d. Fractional seconds are truncated.
// Intervals beyond maxDateInterval are clamped to it and NaN maps to the
// epoch.
func (d Date) Time() time.Time {
	f := float64(d)
	switch {
	case math.IsNaN(f):
		f = 0
	case f >= maxDateInterval:
		f = maxDateInterval
	case f <= -maxDateInterval:
		f = -maxDateInterval
	}
	return time.Unix(epoch.Unix()+int64(f), 0).UTC()
}

// Array is an ordered list of references into its table.
type Array struct {
	table *Table
	refs  []int
}

// Len returns the number of elements.
func (a *Array) Len() int { return len(a.refs) }

// Ref returns the table index of element i.
func (a *Array) Ref(i int) int { return a.refs[i] }

// Refs returns a copy of the reference list.
func (a *Array) Refs() []int { return append([]int(nil), a.refs...) }

func (a *Array) Value() interface{} { return a.Refs() }

// Get resolves element i against the table.
func (a *Array) Get(i int) (Object, error) {
	return a.table.Resolve(a.refs[i])
}

func (a *Array) String() string {
	var b strings.Builder
	b.WriteString("Array{")
	for i, ref := range a.refs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(a.table.describeRef(a, ref))
	}
	b.WriteByte('}')
	return b.String()
}

// Dict is an ordered list of key/value reference pairs into its table.
type Dict struct {
	table   *Table
	keyRefs []int
	objRefs []int
}

// DictRefs is the semantic value of a Dict.
type DictRefs struct {
	Keys    []int
	Objects []int
}

// Len returns the number of entries.
func (d *Dict) Len() int { return len(d.keyRefs) }

// KeyRef returns the table index of the key of entry i.
func (d *Dict) KeyRef(i int) int { return d.keyRefs[i] }

// ObjRef returns the table index of the value of entry i.
func (d *Dict) ObjRef(i int) int { return d.objRefs[i] }

func (d *Dict) Value() interface{} {
	return DictRefs{
		Keys:    append([]int(nil), d.keyRefs...),
		Objects: append([]int(nil), d.objRefs...),
	}
}

// Key resolves the key of entry i. Keys must be strings.
func (d *Dict) Key(i int) (string, error) {
	o, err := d.table.Resolve(d.keyRefs[i])
	if err != nil {
		return "", err
	}
	s, ok := o.(String)
	if !ok {
		return "", formatErrorf(d.table.Offset(d.keyRefs[i]), 0, "dictionary key is %s, not string", o.Kind())
	}
	return string(s), nil
}

// Get resolves the value of entry i.
func (d *Dict) Get(i int) (Object, error) {
	return d.table.Resolve(d.objRefs[i])
}

// Find returns the position of the first entry whose key is key, or -1.
func (d *Dict) Find(key string) (int, error) {
	for i := range d.keyRefs {
		k, err := d.Key(i)
		if err != nil {
			return -1, err
		}
		if k == key {
			return i, nil
		}
	}
	return -1, nil
}

// Lookup returns the value stored under key. The first matching entry wins.
func (d *Dict) Lookup(key string) (Object, bool, error) {
	i, err := d.Find(key)
	if err != nil || i < 0 {
		return nil, false, err
	}
	o, err := d.Get(i)
	if err != nil {
		return nil, false, err
	}
	return o, true, nil
}

func (d *Dict) String() string {
	var b strings.Builder
	b.WriteString("Dict{")
	for i := range d.keyRefs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(d.table.describeRef(d, d.keyRefs[i]))
		b.WriteByte(':')
		b.WriteString(d.table.describeRef(d, d.objRefs[i]))
	}
	b.WriteByte('}')
	return b.String()
}
