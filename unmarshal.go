package bplist

import (
	"fmt"
	"reflect"
	"time"
)

var (
	timeType      = reflect.TypeOf(time.Time{})
	uidType       = reflect.TypeOf(UID(0))
	interfaceType = reflect.TypeOf((*interface{})(nil)).Elem()
)

// UnmarshalTypeError describes an object that cannot be stored in a Go value
// of the given type.
type UnmarshalTypeError struct {
	Kind  Kind
	Type  reflect.Type
	Index int
}

func (e *UnmarshalTypeError) Error() string {
	return fmt.Sprintf("bplist: cannot unmarshal %s (object %d) into Go value of type %v", e.Kind, e.Index, e.Type)
}

// Unmarshal decodes data and stores its top level object in the value
// pointed to by v. Dictionaries fill structs by field name or by the name in
// a `plist:"name"` tag.
func Unmarshal(data []byte, v interface{}, opts ...DecoderOption) error {
	t, err := Decode(data, opts...)
	if err != nil {
		return err
	}
	return t.UnmarshalObject(t.TopIndex(), v)
}

// UnmarshalObject stores the object at index in the value pointed to by v.
// A container that contains itself yields ErrCycle, except below an
// interface{} target, which receives a Cycle value.
func (t *Table) UnmarshalObject(index int, v interface{}) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("bplist: UnmarshalObject needs a non-nil pointer, got %T", v)
	}
	u := &unmarshaler{table: t, visiting: make(map[int]bool)}
	return u.unmarshal(index, rv.Elem())
}

type unmarshaler struct {
	table    *Table
	visiting map[int]bool
}

func (u *unmarshaler) unmarshal(index int, val reflect.Value) error {
	o, err := u.table.Resolve(index)
	if err != nil {
		return err
	}
	if val.Kind() == reflect.Ptr {
		if _, null := o.(Null); null {
			val.Set(reflect.Zero(val.Type()))
			return nil
		}
		if val.IsNil() {
			val.Set(reflect.New(val.Type().Elem()))
		}
		return u.unmarshal(index, val.Elem())
	}
	if val.Type() == interfaceType {
		pval, err := u.table.expand(index, u.visiting)
		if err != nil {
			return err
		}
		if pval != nil {
			val.Set(reflect.ValueOf(pval))
		}
		return nil
	}

	typeError := &UnmarshalTypeError{Kind: o.Kind(), Type: val.Type(), Index: index}
	switch pval := o.(type) {
	case Null:
		val.Set(reflect.Zero(val.Type()))
	case Boolean:
		if val.Kind() != reflect.Bool {
			return typeError
		}
		val.SetBool(bool(pval))
	case Integer:
		return setInt(val, int64(pval), typeError)
	case UID:
		if val.Type() == uidType {
			val.Set(reflect.ValueOf(pval))
			return nil
		}
		return setInt(val, int64(pval), typeError)
	case Real:
		switch val.Kind() {
		case reflect.Float32, reflect.Float64:
			val.SetFloat(pval.Float)
		default:
			return typeError
		}
	case Date:
		switch {
		case val.Type() == timeType:
			val.Set(reflect.ValueOf(pval.Time()))
		case val.Kind() == reflect.Float32 || val.Kind() == reflect.Float64:
			val.SetFloat(float64(pval))
		default:
			return typeError
		}
	case Data:
		if val.Kind() != reflect.Slice || val.Type().Elem().Kind() != reflect.Uint8 {
			return typeError
		}
		val.SetBytes(append([]byte(nil), pval...))
	case String:
		if val.Kind() != reflect.String {
			return typeError
		}
		val.SetString(string(pval))
	case *Array:
		if u.visiting[index] {
			return ErrCycle
		}
		u.visiting[index] = true
		defer delete(u.visiting, index)
		return u.unmarshalArray(pval, val, typeError)
	case *Dict:
		if u.visiting[index] {
			return ErrCycle
		}
		u.visiting[index] = true
		defer delete(u.visiting, index)
		switch val.Kind() {
		case reflect.Map:
			return u.unmarshalMap(pval, val, typeError)
		case reflect.Struct:
			return u.unmarshalStruct(pval, val)
		}
		return typeError
	}
	return nil
}

func setInt(val reflect.Value, n int64, typeError error) error {
	switch val.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if val.OverflowInt(n) {
			return typeError
		}
		val.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if n < 0 || val.OverflowUint(uint64(n)) {
			return typeError
		}
		val.SetUint(uint64(n))
	case reflect.Float32, reflect.Float64:
		val.SetFloat(float64(n))
	default:
		return typeError
	}
	return nil
}

func (u *unmarshaler) unmarshalArray(arr *Array, val reflect.Value, typeError error) error {
	switch val.Kind() {
	case reflect.Slice:
		val.Set(reflect.MakeSlice(val.Type(), arr.Len(), arr.Len()))
	case reflect.Array:
		if val.Len() < arr.Len() {
			return typeError
		}
	default:
		return typeError
	}
	for i := 0; i < arr.Len(); i++ {
		if err := u.unmarshal(arr.Ref(i), val.Index(i)); err != nil {
			return err
		}
	}
	if val.Kind() == reflect.Array {
		zero := reflect.Zero(val.Type().Elem())
		for i := arr.Len(); i < val.Len(); i++ {
			val.Index(i).Set(zero)
		}
	}
	return nil
}

func (u *unmarshaler) unmarshalMap(dict *Dict, val reflect.Value, typeError error) error {
	typ := val.Type()
	if typ.Key().Kind() != reflect.String {
		return typeError
	}
	if val.IsNil() {
		val.Set(reflect.MakeMapWithSize(typ, dict.Len()))
	}
	for i := 0; i < dict.Len(); i++ {
		key, err := dict.Key(i)
		if err != nil {
			return err
		}
		elem := reflect.New(typ.Elem()).Elem()
		if err := u.unmarshal(dict.ObjRef(i), elem); err != nil {
			return err
		}
		val.SetMapIndex(reflect.ValueOf(key).Convert(typ.Key()), elem)
	}
	return nil
}

func (u *unmarshaler) unmarshalStruct(dict *Dict, val reflect.Value) error {
	tinfo := getTypeInfo(val.Type())
	for i := 0; i < dict.Len(); i++ {
		key, err := dict.Key(i)
		if err != nil {
			return err
		}
		finfo, ok := tinfo.field(key)
		if !ok {
			continue
		}
		if err := u.unmarshal(dict.ObjRef(i), finfo.value(val)); err != nil {
			return err
		}
	}
	return nil
}
