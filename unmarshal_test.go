package bplist

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type Base struct {
	Name string
}

type widgetInner struct {
	Flag bool
}

type widget struct {
	Base
	Count int `plist:"count"`
	Tags  []string
	Inner *widgetInner
	When  time.Time
	Extra string `plist:"-"`
}

func widgetFixture() []byte {
	f := newFixture(1)
	f.dict([]int{1, 3, 5, 7, 9, 15}, []int{2, 4, 6, 8, 10, 16})
	f.ascii("Name")
	f.ascii("widget")
	f.ascii("count")
	f.integer(5)
	f.ascii("Tags")
	f.array(11, 12)
	f.ascii("Inner")
	f.dict([]int{13}, []int{14})
	f.ascii("When")
	f.add(0x33, 0, 0, 0, 0, 0, 0, 0, 0)
	f.ascii("a")
	f.ascii("b")
	f.ascii("Flag")
	f.add(0x09)
	f.ascii("Extra")
	f.ascii("ignored")
	return f.counts(17, 17, 17, 0)
}

func TestUnmarshalStruct(t *testing.T) {
	var got widget
	require.NoError(t, Unmarshal(widgetFixture(), &got))
	want := widget{
		Base:  Base{Name: "widget"},
		Count: 5,
		Tags:  []string{"a", "b"},
		Inner: &widgetInner{Flag: true},
		When:  time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("struct mismatch (-want +got):\n%s", diff)
	}
}

func TestUnmarshalMap(t *testing.T) {
	var got map[string]interface{}
	require.NoError(t, Unmarshal(widgetFixture(), &got))
	require.Len(t, got, 6)
	require.Equal(t, int64(5), got["count"])
	require.Equal(t, []interface{}{"a", "b"}, got["Tags"])
	require.Equal(t, Dictionary{{Key: "Flag", Value: true}}, got["Inner"])

	var names map[string]string
	err := Unmarshal(widgetFixture(), &names)
	var te *UnmarshalTypeError
	require.ErrorAs(t, err, &te)
	require.Equal(t, KindInteger, te.Kind)
	require.Equal(t, reflect.TypeOf(""), te.Type)
	require.Equal(t, 4, te.Index)
}

func TestUnmarshalScalars(t *testing.T) {
	for _, tc := range []struct {
		name   string
		record []byte
		target interface{}
		want   interface{}
	}{
		{"Int8", []byte{0x10, 0x7f}, new(int8), int8(127)},
		{"Uint16", []byte{0x11, 0x01, 0x2c}, new(uint16), uint16(300)},
		{"IntToFloat", []byte{0x10, 0x02}, new(float64), float64(2)},
		{"Real", []byte{0x22, 0x40, 0x20, 0x00, 0x00}, new(float32), float32(2.5)},
		{"DateSeconds", []byte{0x33, 0x3f, 0xf8, 0, 0, 0, 0, 0, 0}, new(float64), 1.5},
		{"Bytes", []byte{0x42, 0x01, 0x02}, new([]byte), []byte{1, 2}},
		{"UID", []byte{0x80, 0x09}, new(UID), UID(9)},
		{"UIDAsInt", []byte{0x80, 0x09}, new(int), 9},
		{"Bool", []byte{0x09}, new(bool), true},
		{"NullPointer", []byte{0x00}, func() interface{} { s := "x"; p := &s; return &p }(), (*string)(nil)},
		{"Interface", []byte{0x51, 'z'}, new(interface{}), interface{}("z")},
	} {
		t.Run(tc.name, func(t *testing.T) {
			require.NoError(t, Unmarshal(single(tc.record...), tc.target))
			require.Equal(t, tc.want, reflect.ValueOf(tc.target).Elem().Interface())
		})
	}
}

func TestUnmarshalTypeErrors(t *testing.T) {
	for _, tc := range []struct {
		name   string
		record []byte
		target interface{}
	}{
		{"Overflow", []byte{0x11, 0x01, 0x2c}, new(uint8)},
		{"Negative", []byte{0x13, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, new(uint)},
		{"StringToInt", []byte{0x51, 'z'}, new(int)},
		{"DataToString", []byte{0x41, 0x00}, new(string)},
		{"BoolToString", []byte{0x08}, new(string)},
		{"ArrayTooLong", []byte{0xa1, 0x00}, new([0]int)},
		{"DateToString", []byte{0x33, 0, 0, 0, 0, 0, 0, 0, 0}, new(string)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := Unmarshal(single(tc.record...), tc.target)
			var te *UnmarshalTypeError
			require.ErrorAs(t, err, &te)
		})
	}

	require.Error(t, Unmarshal(single(0x08), nil))
	var notPtr bool
	require.Error(t, Unmarshal(single(0x08), notPtr))
}

func TestUnmarshalCycle(t *testing.T) {
	type tree struct {
		Children []tree `plist:"c"`
	}

	// 0: {"c": [0]}
	f := newFixture(1)
	f.dict([]int{1}, []int{2})
	f.ascii("c")
	f.array(0)
	data := f.counts(3, 3, 3, 0)

	var typed tree
	require.ErrorIs(t, Unmarshal(data, &typed), ErrCycle)

	var loose map[string]interface{}
	require.NoError(t, Unmarshal(data, &loose))
	require.Equal(t, map[string]interface{}{"c": []interface{}{Cycle{Index: 0}}}, loose)
}

func TestUnmarshalFixedArray(t *testing.T) {
	f := newFixture(1)
	f.array(1, 2)
	f.integer(4)
	f.integer(8)
	got := [4]int64{1, 1, 1, 1}
	require.NoError(t, Unmarshal(f.counts(3, 3, 3, 0), &got))
	require.Equal(t, [4]int64{4, 8, 0, 0}, got)
}
