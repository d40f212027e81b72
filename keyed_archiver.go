package bplist

import (
	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"
)

const (
	archiverName       = "NSKeyedArchiver"
	archiverNullObject = "$null"
)

// ArchivedObject is an archived instance of a class Unarchive has no
// mapping for. Fields holds its keys other than "$class".
type ArchivedObject struct {
	Class   string
	Classes []string
	Fields  Dictionary
}

// Unarchive rebuilds the object graph of an NSKeyedArchiver property list,
// starting at $top.root. Foundation collections, NSData, NSDate, NSUUID and
// NSString become native values; other classes become *ArchivedObject. A
// container reached again through its own members becomes a Cycle.
func Unarchive(t *Table) (interface{}, error) {
	a, err := newArchive(t)
	if err != nil {
		return nil, err
	}
	root, err := a.member(a.top, "root")
	if err != nil {
		return nil, errors.Wrap(err, "bplist: keyed archive $top")
	}
	return root, nil
}

type archive struct {
	table    *Table
	top      *Dict
	objects  *Array
	visiting map[int]bool
}

func newArchive(t *Table) (*archive, error) {
	top, err := t.Top()
	if err != nil {
		return nil, err
	}
	dict, ok := top.(*Dict)
	if !ok {
		return nil, errors.Errorf("bplist: keyed archive top level is %s, not dict", top.Kind())
	}
	name, _, err := dict.Lookup("$archiver")
	if err != nil {
		return nil, err
	}
	if name != String(archiverName) {
		return nil, errors.Errorf("bplist: $archiver is %v, not %s", name, archiverName)
	}
	a := &archive{table: t, visiting: make(map[int]bool)}
	o, err := a.required(dict, "$top")
	if err != nil {
		return nil, err
	}
	if a.top, ok = o.(*Dict); !ok {
		return nil, errors.Errorf("bplist: $top is %s, not dict", o.Kind())
	}
	if o, err = a.required(dict, "$objects"); err != nil {
		return nil, err
	}
	if a.objects, ok = o.(*Array); !ok {
		return nil, errors.Errorf("bplist: $objects is %s, not array", o.Kind())
	}
	return a, nil
}

func (a *archive) required(d *Dict, key string) (Object, error) {
	o, ok, err := d.Lookup(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Errorf("bplist: keyed archive has no %s", key)
	}
	return o, nil
}

// objectRef maps a UID to the table index of the $objects member it names.
func (a *archive) objectRef(uid UID) (int, error) {
	if int(uid) >= a.objects.Len() {
		return 0, &IndexError{Index: int(uid), Len: a.objects.Len()}
	}
	return a.objects.Ref(int(uid)), nil
}

// value converts the object at table index, following UIDs into $objects.
func (a *archive) value(index int) (interface{}, error) {
	o, err := a.table.Resolve(index)
	if err != nil {
		return nil, err
	}
	switch o := o.(type) {
	case UID:
		if a.visiting[index] {
			return Cycle{Index: index}, nil
		}
		ref, err := a.objectRef(o)
		if err != nil {
			return nil, err
		}
		a.visiting[index] = true
		defer delete(a.visiting, index)
		return a.value(ref)
	case String:
		if o == archiverNullObject {
			return nil, nil
		}
		return string(o), nil
	case *Array:
		if a.visiting[index] {
			return Cycle{Index: index}, nil
		}
		a.visiting[index] = true
		defer delete(a.visiting, index)

		values := make([]interface{}, o.Len())
		for i := range values {
			if values[i], err = a.value(o.Ref(i)); err != nil {
				return nil, err
			}
		}
		return values, nil
	case *Dict:
		if a.visiting[index] {
			return Cycle{Index: index}, nil
		}
		a.visiting[index] = true
		defer delete(a.visiting, index)
		return a.instance(o)
	}
	return o.Value(), nil
}

// instance converts a dictionary, honouring its $class when it has one.
func (a *archive) instance(d *Dict) (interface{}, error) {
	i, err := d.Find("$class")
	if err != nil {
		return nil, err
	}
	if i < 0 {
		return a.plainDict(d)
	}
	classRef, err := d.Get(i)
	if err != nil {
		return nil, err
	}
	uid, ok := classRef.(UID)
	if !ok {
		return nil, errors.Errorf("bplist: $class is %s, not uid", classRef.Kind())
	}
	class, err := a.class(uid)
	if err != nil {
		return nil, err
	}

	switch {
	case class.isDictionary():
		return a.nsDictionary(d)
	case class.isArray(), class.isSet():
		return a.member(d, "NS.objects")
	case class.isData():
		return a.member(d, "NS.data")
	case class.isString():
		return a.member(d, "NS.string")
	case class.isDate():
		secs, err := a.member(d, "NS.time")
		if err != nil {
			return nil, err
		}
		var date Date
		switch secs := secs.(type) {
		case float64:
			date = Date(secs)
		case float32:
			date = Date(secs)
		case int64:
			date = Date(secs)
		default:
			return nil, errors.Errorf("bplist: NSDate NS.time is %T", secs)
		}
		if !date.Valid() {
			return nil, errors.Errorf("bplist: NSDate NS.time %v out of range", float64(date))
		}
		return date.Time(), nil
	case class.isUUID():
		raw, err := a.member(d, "NS.uuidbytes")
		if err != nil {
			return nil, err
		}
		b, ok := raw.([]byte)
		if !ok {
			return nil, errors.Errorf("bplist: NSUUID NS.uuidbytes is %T", raw)
		}
		return uuid.FromBytes(b)
	}

	fields, err := a.plainDict(d)
	if err != nil {
		return nil, err
	}
	obj := &ArchivedObject{Class: class.ClassName, Classes: class.Classes}
	for _, kv := range fields {
		if kv.Key != "$class" {
			obj.Fields = append(obj.Fields, kv)
		}
	}
	return obj, nil
}

func (a *archive) member(d *Dict, key string) (interface{}, error) {
	i, err := d.Find(key)
	if err != nil {
		return nil, err
	}
	if i < 0 {
		return nil, errors.Errorf("bplist: archived object has no %s", key)
	}
	return a.value(d.ObjRef(i))
}

func (a *archive) plainDict(d *Dict) (Dictionary, error) {
	dict := make(Dictionary, d.Len())
	for i := range dict {
		key, err := d.Key(i)
		if err != nil {
			return nil, err
		}
		dict[i].Key = key
		if dict[i].Value, err = a.value(d.ObjRef(i)); err != nil {
			return nil, err
		}
	}
	return dict, nil
}

func (a *archive) nsDictionary(d *Dict) (Dictionary, error) {
	keys, err := a.member(d, "NS.keys")
	if err != nil {
		return nil, err
	}
	values, err := a.member(d, "NS.objects")
	if err != nil {
		return nil, err
	}
	k, kok := keys.([]interface{})
	v, vok := values.([]interface{})
	if !kok || !vok || len(k) != len(v) {
		return nil, errors.New("bplist: NSDictionary keys and objects do not pair up")
	}
	dict := make(Dictionary, len(k))
	for i := range dict {
		key, ok := k[i].(string)
		if !ok {
			return nil, errors.Errorf("bplist: NSDictionary key %d is %T, not string", i, k[i])
		}
		dict[i] = KeyValue{Key: key, Value: v[i]}
	}
	return dict, nil
}

type archiverClass struct {
	ClassName string   `plist:"$classname"`
	Classes   []string `plist:"$classes"`
}

func (a *archive) class(uid UID) (*archiverClass, error) {
	ref, err := a.objectRef(uid)
	if err != nil {
		return nil, err
	}
	class := &archiverClass{}
	if err := a.table.UnmarshalObject(ref, class); err != nil {
		return nil, err
	}
	return class, nil
}

func (c *archiverClass) isDictionary() bool {
	return c.ClassName == "NSMutableDictionary" || c.ClassName == "NSDictionary"
}
func (c *archiverClass) isArray() bool {
	return c.ClassName == "NSMutableArray" || c.ClassName == "NSArray"
}
func (c *archiverClass) isSet() bool {
	return c.ClassName == "NSMutableSet" || c.ClassName == "NSSet"
}
func (c *archiverClass) isData() bool {
	return c.ClassName == "NSMutableData" || c.ClassName == "NSData"
}
func (c *archiverClass) isString() bool {
	return c.ClassName == "NSMutableString" || c.ClassName == "NSString"
}
func (c *archiverClass) isUUID() bool {
	return c.ClassName == "NSUUID"
}
func (c *archiverClass) isDate() bool {
	return c.ClassName == "NSDate"
}
