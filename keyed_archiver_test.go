package bplist

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	uuid "github.com/satori/go.uuid"
	"github.com/stretchr/testify/require"
)

var archivedUUID = []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}

// archiveFixture is an NSKeyedArchiver plist whose root is an
// NSMutableDictionary holding an NSUUID, an NSDate, an instance of an
// unknown class and an NSArray that contains the root again.
func archiveFixture() []byte {
	f := newFixture(1)
	class := func(name, names int) int { return f.dict([]int{32, 33}, []int{name, names}) }

	// 0-10: archive envelope.
	f.dict([]int{1, 3, 5, 7}, []int{2, 4, 6, 8})
	f.ascii("$archiver")
	f.ascii("NSKeyedArchiver")
	f.ascii("$version")
	f.integer(100)
	f.ascii("$top")
	f.dict([]int{9}, []int{10})
	f.ascii("$objects")
	f.array(11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23, 24, 25, 26)
	f.ascii("root")
	f.uid(1)

	// 11-26: $objects.
	f.ascii("$null")
	f.dict([]int{27, 28, 29}, []int{46, 47, 45})
	f.ascii("uuid")
	f.ascii("when")
	f.ascii("widget")
	f.dict([]int{30, 29}, []int{48, 49})
	f.dict([]int{31, 29}, []int{50, 51})
	class(55, 56)
	f.dict([]int{35, 36, 29}, []int{52, 53, 54})
	class(57, 58)
	class(59, 60)
	f.ascii("self")
	f.dict([]int{28, 29}, []int{65, 67})
	f.ascii("thing")
	class(61, 62)
	class(63, 64)

	// 27-67: keys, references and class names.
	f.ascii("NS.keys")
	f.ascii("NS.objects")
	f.ascii("$class")
	f.ascii("NS.uuidbytes")
	f.ascii("NS.time")
	f.ascii("$classname")
	f.ascii("$classes")
	f.ascii("NSObject")
	f.ascii("name")
	f.ascii("missing")
	f.uid(2)
	f.uid(3)
	f.uid(4)
	f.uid(11)
	f.uid(5)
	f.uid(6)
	f.uid(8)
	f.uid(12)
	f.uid(10)
	f.array(37, 38, 39, 40)
	f.array(41, 42, 43, 44)
	f.add(append([]byte{0x4f, 0x10, 0x10}, archivedUUID...)...)
	f.uid(7)
	f.add(0x23, 0x41, 0xcd, 0xcd, 0x65, 0x00, 0x00, 0x00, 0x00)
	f.uid(9)
	f.uid(13)
	f.uid(0)
	f.uid(14)
	f.ascii("NSUUID")
	f.array(55, 34)
	f.ascii("NSDate")
	f.array(57, 34)
	f.ascii("NSMutableDictionary")
	f.array(59, 34)
	f.ascii("Widget")
	f.array(61, 34)
	f.ascii("NSArray")
	f.array(63, 34)
	f.array(66)
	f.uid(1)
	f.uid(15)
	return f.counts(68, 68, 68, 0)
}

func TestUnarchive(t *testing.T) {
	table, err := Decode(archiveFixture())
	require.NoError(t, err)
	require.Equal(t, 68, table.Len())

	got, err := Unarchive(table)
	require.NoError(t, err)

	id, err := uuid.FromBytes(archivedUUID)
	require.NoError(t, err)
	want := Dictionary{
		{Key: "uuid", Value: id},
		{Key: "when", Value: time.Date(2032, time.September, 9, 1, 46, 40, 0, time.UTC)},
		{Key: "widget", Value: &ArchivedObject{
			Class:   "Widget",
			Classes: []string{"Widget", "NSObject"},
			Fields: Dictionary{
				{Key: "name", Value: "thing"},
				{Key: "missing", Value: nil},
			},
		}},
		{Key: "self", Value: []interface{}{Cycle{Index: 12}}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unarchived value mismatch (-want +got):\n%s", diff)
	}
}

func TestUnarchiveNotAnArchive(t *testing.T) {
	for _, tc := range []struct {
		name string
		data []byte
	}{
		{"TopIsArray", referenceFixture(1, 4)},
		{"NoArchiver", widgetFixture()},
		{"TopIsString", single(0x51, 'x')},
	} {
		t.Run(tc.name, func(t *testing.T) {
			table, err := Decode(tc.data)
			require.NoError(t, err)
			_, err = Unarchive(table)
			require.Error(t, err)
		})
	}
}

func TestUnarchiveBadUID(t *testing.T) {
	// $top.root names $objects[5] but $objects has one member.
	f := newFixture(1)
	f.dict([]int{1, 3, 5}, []int{2, 4, 6})
	f.ascii("$archiver")
	f.ascii("NSKeyedArchiver")
	f.ascii("$top")
	f.dict([]int{7}, []int{8})
	f.ascii("$objects")
	f.array(9)
	f.ascii("root")
	f.uid(5)
	f.ascii("$null")
	table, err := Decode(f.counts(10, 10, 10, 0))
	require.NoError(t, err)

	_, err = Unarchive(table)
	var ie *IndexError
	require.ErrorAs(t, err, &ie)
	require.Equal(t, IndexError{Index: 5, Len: 1}, *ie)
}
