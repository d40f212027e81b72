package bplist

import (
	"bytes"
	"encoding/binary"
)

// fixture assembles binary plists for tests, one record at a time.
type fixture struct {
	records bytes.Buffer
	offsets []int
	refSize int
}

func newFixture(refSize int) *fixture {
	return &fixture{refSize: refSize}
}

// add appends a raw record and returns its table index.
func (f *fixture) add(record ...byte) int {
	f.offsets = append(f.offsets, bpHeaderSize+f.records.Len())
	f.records.Write(record)
	return len(f.offsets) - 1
}

func (f *fixture) ascii(s string) int {
	return f.add(append(countHeader(bpTagASCIIString, len(s)), s...)...)
}

func (f *fixture) integer(v uint8) int {
	return f.add(bpTagInteger, v)
}

func (f *fixture) array(refs ...int) int {
	return f.add(append(countHeader(bpTagArray, len(refs)), f.refs(refs)...)...)
}

func (f *fixture) dict(keys, values []int) int {
	record := countHeader(bpTagDictionary, len(keys))
	record = append(record, f.refs(keys)...)
	record = append(record, f.refs(values)...)
	return f.add(record...)
}

func (f *fixture) uid(v uint8) int {
	return f.add(bpTagUID, v)
}

func (f *fixture) refs(refs []int) []byte {
	var b []byte
	for _, ref := range refs {
		for i := f.refSize - 1; i >= 0; i-- {
			b = append(b, byte(ref>>(8*i)))
		}
	}
	return b
}

// counts returns the file with a four-count trailer.
func (f *fixture) counts(offsetCount, refCount, objectCount, top uint64) []byte {
	var b bytes.Buffer
	b.WriteString(bpMagic)
	b.Write(f.records.Bytes())
	for _, v := range []uint64{offsetCount, refCount, objectCount, top} {
		binary.Write(&b, binary.BigEndian, v)
	}
	return b.Bytes()
}

// coreFoundation returns the file with a one-byte offset table and a
// CFBinaryPList trailer.
func (f *fixture) coreFoundation(top uint64) []byte {
	var b bytes.Buffer
	b.WriteString(bpMagic)
	b.Write(f.records.Bytes())
	tableOffset := uint64(b.Len())
	for _, off := range f.offsets {
		b.WriteByte(byte(off))
	}
	b.Write(make([]byte, 6))
	b.WriteByte(1)
	b.WriteByte(byte(f.refSize))
	for _, v := range []uint64{uint64(len(f.offsets)), top, tableOffset} {
		binary.Write(&b, binary.BigEndian, v)
	}
	return b.Bytes()
}

func countHeader(tag uint8, n int) []byte {
	if n < 15 {
		return []byte{tag | uint8(n)}
	}
	if n < 256 {
		return []byte{tag | bpNibbleExtended, bpTagInteger, uint8(n)}
	}
	return []byte{tag | bpNibbleExtended, bpTagInteger | 1, uint8(n >> 8), uint8(n)}
}

// single wraps one record in a file whose trailer declares one object.
func single(record ...byte) []byte {
	f := newFixture(1)
	f.add(record...)
	return f.counts(1, 1, 1, 0)
}
