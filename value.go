package bplist

import (
	"bytes"
	"encoding/json"

	yaml "gopkg.in/yaml.v2"
)

// Cycle stands in for a container that is already being expanded further up
// the value tree. Index is the container's position in the object table.
type Cycle struct {
	Index int
}

func (c Cycle) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]int{"$cycle": c.Index})
}

func (c Cycle) MarshalYAML() (interface{}, error) {
	return yaml.MapSlice{{Key: "$cycle", Value: c.Index}}, nil
}

func (u UID) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]uint32{uidKey: uint32(u)})
}

func (u UID) MarshalYAML() (interface{}, error) {
	return yaml.MapSlice{{Key: uidKey, Value: uint32(u)}}, nil
}

// KeyValue is one dictionary entry.
type KeyValue struct {
	Key   string
	Value interface{}
}

// Dictionary is a property list dictionary with its entries in file order.
type Dictionary []KeyValue

// Get returns the value of the first entry called key.
func (d Dictionary) Get(key string) (interface{}, bool) {
	for _, kv := range d {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return nil, false
}

// Map returns the entries as a map. Later duplicate keys win.
func (d Dictionary) Map() map[string]interface{} {
	m := make(map[string]interface{}, len(d))
	for _, kv := range d {
		m[kv.Key] = kv.Value
	}
	return m
}

// MarshalJSON writes the entries as a JSON object, keeping their order.
func (d Dictionary) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, kv := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(kv.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(kv.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML returns the entries as an ordered YAML mapping.
func (d Dictionary) MarshalYAML() (interface{}, error) {
	ms := make(yaml.MapSlice, len(d))
	for i, kv := range d {
		ms[i] = yaml.MapItem{Key: kv.Key, Value: kv.Value}
	}
	return ms, nil
}

// Interface expands the object at index into plain Go values: nil, bool,
// int64, float32, float64, time.Time, []byte, string, UID, []interface{}
// and Dictionary. Containers met again during their own expansion become
// Cycle values.
func (t *Table) Interface(index int) (interface{}, error) {
	return t.expand(index, make(map[int]bool))
}

func (t *Table) expand(index int, visiting map[int]bool) (interface{}, error) {
	o, err := t.Resolve(index)
	if err != nil {
		return nil, err
	}
	switch o := o.(type) {
	case *Array:
		if visiting[index] {
			return Cycle{Index: index}, nil
		}
		visiting[index] = true
		defer delete(visiting, index)

		values := make([]interface{}, o.Len())
		for i := range values {
			if values[i], err = t.expand(o.Ref(i), visiting); err != nil {
				return nil, err
			}
		}
		return values, nil
	case *Dict:
		if visiting[index] {
			return Cycle{Index: index}, nil
		}
		visiting[index] = true
		defer delete(visiting, index)

		dict := make(Dictionary, o.Len())
		for i := range dict {
			if dict[i].Key, err = o.Key(i); err != nil {
				return nil, err
			}
			if dict[i].Value, err = t.expand(o.ObjRef(i), visiting); err != nil {
				return nil, err
			}
		}
		return dict, nil
	}
	return o.Value(), nil
}
