package bplist

import (
	"reflect"
	"strings"
	"sync"
)

// typeInfo holds the plist field layout of a struct type.
type typeInfo struct {
	fields []fieldInfo
}

// fieldInfo describes one struct field reachable from a dictionary key.
type fieldInfo struct {
	idx  []int
	name string
}

var tinfoMap sync.Map // map[reflect.Type]*typeInfo

// getTypeInfo returns the field layout of typ, caching it per type.
func getTypeInfo(typ reflect.Type) *typeInfo {
	if ti, ok := tinfoMap.Load(typ); ok {
		return ti.(*typeInfo)
	}
	tinfo := &typeInfo{}
	if typ.Kind() == reflect.Struct {
		for i := 0; i < typ.NumField(); i++ {
			f := typ.Field(i)
			if f.Tag.Get("plist") == "-" || (!f.Anonymous && f.PkgPath != "") {
				continue
			}
			if f.Anonymous {
				t := f.Type
				if t.Kind() == reflect.Ptr {
					t = t.Elem()
				}
				if t.Kind() == reflect.Struct && f.Tag.Get("plist") == "" {
					for _, inner := range getTypeInfo(t).fields {
						inner.idx = append([]int{i}, inner.idx...)
						tinfo.add(inner)
					}
					continue
				}
				if f.PkgPath != "" {
					continue
				}
			}
			tinfo.add(structFieldInfo(&f))
		}
	}
	ti, _ := tinfoMap.LoadOrStore(typ, tinfo)
	return ti.(*typeInfo)
}

func structFieldInfo(f *reflect.StructField) fieldInfo {
	finfo := fieldInfo{idx: f.Index, name: f.Name}
	// Options after the name only matter when encoding.
	if name, _, _ := strings.Cut(f.Tag.Get("plist"), ","); name != "" {
		finfo.name = name
	}
	return finfo
}

// add appends newf unless a shallower field of the same name exists. A
// shallower newf replaces deeper fields of the same name, which matches Go's
// field resolution for embedded structs.
func (tinfo *typeInfo) add(newf fieldInfo) {
	var conflicts []int
	for i := range tinfo.fields {
		if tinfo.fields[i].name == newf.name {
			conflicts = append(conflicts, i)
		}
	}
	for _, i := range conflicts {
		if len(tinfo.fields[i].idx) <= len(newf.idx) {
			return
		}
	}
	for c := len(conflicts) - 1; c >= 0; c-- {
		i := conflicts[c]
		tinfo.fields = append(tinfo.fields[:i], tinfo.fields[i+1:]...)
	}
	tinfo.fields = append(tinfo.fields, newf)
}

func (tinfo *typeInfo) field(name string) (*fieldInfo, bool) {
	for i := range tinfo.fields {
		if tinfo.fields[i].name == name {
			return &tinfo.fields[i], true
		}
	}
	return nil, false
}

// value returns v's field for finfo, allocating nil embedded struct
// pointers on the way.
func (finfo *fieldInfo) value(v reflect.Value) reflect.Value {
	for i, x := range finfo.idx {
		if i > 0 {
			t := v.Type()
			if t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Struct {
				if v.IsNil() {
					v.Set(reflect.New(t.Elem()))
				}
				v = v.Elem()
			}
		}
		v = v.Field(x)
	}
	return v
}
