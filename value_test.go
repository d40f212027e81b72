package bplist

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	yaml "gopkg.in/yaml.v2"
)

func TestInterface(t *testing.T) {
	// 0: {"n": 1, "list": [2.5f, date, data, null, "ü"], "id": UID 3}
	f := newFixture(1)
	f.dict([]int{1, 3, 5}, []int{2, 4, 6})
	f.ascii("n")
	f.integer(1)
	f.ascii("list")
	f.array(7, 8, 9, 10, 11)
	f.ascii("id")
	f.uid(3)
	f.add(0x22, 0x40, 0x20, 0x00, 0x00)
	f.add(0x33, 0x41, 0xcd, 0xcd, 0x65, 0x00, 0x00, 0x00, 0x00)
	f.add(0x42, 0xde, 0xad)
	f.add(0x00)
	f.add(0x61, 0x00, 0xfc)
	table, err := Decode(f.counts(12, 12, 12, 0))
	require.NoError(t, err)

	got, err := table.Interface(table.TopIndex())
	require.NoError(t, err)
	want := Dictionary{
		{Key: "n", Value: int64(1)},
		{Key: "list", Value: []interface{}{
			float32(2.5),
			time.Date(2032, time.September, 9, 1, 46, 40, 0, time.UTC),
			[]byte{0xde, 0xad},
			nil,
			"ü",
		}},
		{Key: "id", Value: UID(3)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("value mismatch (-want +got):\n%s", diff)
	}
}

func TestDictionaryOrder(t *testing.T) {
	d := Dictionary{
		{Key: "zeta", Value: int64(1)},
		{Key: "alpha", Value: []interface{}{Cycle{Index: 0}, UID(7)}},
		{Key: "zeta", Value: "again"},
	}

	b, err := json.Marshal(d)
	require.NoError(t, err)
	require.Equal(t, `{"zeta":1,"alpha":[{"$cycle":0},{"CF$UID":7}],"zeta":"again"}`, string(b))

	y, err := yaml.Marshal(Dictionary{d[0], d[1]})
	require.NoError(t, err)
	require.Equal(t, "zeta: 1\nalpha:\n- $cycle: 0\n- CF$UID: 7\n", string(y))

	v, ok := d.Get("zeta")
	require.True(t, ok)
	require.Equal(t, int64(1), v)
	_, ok = d.Get("missing")
	require.False(t, ok)

	require.Equal(t, map[string]interface{}{
		"zeta":  "again",
		"alpha": []interface{}{Cycle{Index: 0}, UID(7)},
	}, d.Map())
}

func TestInterfaceNestedCycle(t *testing.T) {
	// 0: ["x", {"up": 0}]
	f := newFixture(1)
	f.array(1, 2)
	f.ascii("x")
	f.dict([]int{3}, []int{0})
	f.ascii("up")
	table, err := Decode(f.counts(4, 4, 4, 0))
	require.NoError(t, err)

	got, err := table.Interface(0)
	require.NoError(t, err)
	require.Equal(t, []interface{}{"x", Dictionary{{Key: "up", Value: Cycle{Index: 0}}}}, got)

	b, err := json.Marshal(got)
	require.NoError(t, err)
	require.Equal(t, `["x",{"up":{"$cycle":0}}]`, string(b))
}

func TestObjectValues(t *testing.T) {
	f := newFixture(1)
	f.array(1, 2)
	f.ascii("k")
	f.dict([]int{1}, []int{0})
	table, err := Decode(f.counts(3, 3, 3, 0))
	require.NoError(t, err)

	arr, err := table.Resolve(0)
	require.NoError(t, err)
	require.Equal(t, KindArray, arr.Kind())
	require.Equal(t, []int{1, 2}, arr.Value())
	require.Equal(t, `Array{"k",@2}`, arr.(*Array).String())

	dict, err := table.Resolve(2)
	require.NoError(t, err)
	require.Equal(t, DictRefs{Keys: []int{1}, Objects: []int{0}}, dict.Value())
	require.Equal(t, `Dict{"k":@0}`, dict.(*Dict).String())

	o, ok, err := dict.(*Dict).Lookup("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, arr, o)
	_, ok, err = dict.(*Dict).Lookup("nope")
	require.NoError(t, err)
	require.False(t, ok)

	// Mutating the returned reference list leaves the table alone.
	arr.Value().([]int)[0] = 9
	require.Equal(t, 1, arr.(*Array).Ref(0))
	require.Equal(t, "dict", KindDict.String())
	require.Equal(t, "Kind(42)", Kind(42).String())
}
