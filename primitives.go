package bplist

import (
	"encoding/binary"
	"math"
	"unicode/utf16"
)

// cursor walks the record region. base is the absolute file offset of
// buf[0] so errors can point into the original input.
type cursor struct {
	buf  []byte
	pos  int
	base int64
}

func (c *cursor) offset() int64 { return c.base + int64(c.pos) }

func (c *cursor) remaining() int { return len(c.buf) - c.pos }

func (c *cursor) done() bool { return c.pos >= len(c.buf) }

func (c *cursor) readByte(tag uint8) (uint8, error) {
	if c.done() {
		return 0, formatErrorf(c.offset(), tag, "unexpected end of input")
	}
	b := c.buf[c.pos]
	c.pos++
	return b, nil
}

// next returns the following n bytes without copying them.
func (c *cursor) next(n int, tag uint8) ([]byte, error) {
	if n < 0 || n > c.remaining() {
		return nil, formatErrorf(c.offset(), tag, "truncated record: need %d bytes, have %d", n, c.remaining())
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// readInt reads an integer payload of width bytes. Widths below eight are
// unsigned; eight bytes are two's complement.
func (c *cursor) readInt(width int, tag uint8) (int64, error) {
	switch width {
	case 1, 2, 4, 8:
	default:
		return 0, formatErrorf(c.offset(), tag, "unsupported integer width %d", width)
	}
	b, err := c.next(width, tag)
	if err != nil {
		return 0, err
	}
	return int64(beUint(b)), nil
}

func (c *cursor) readReal(width int, tag uint8) (Real, error) {
	switch width {
	case 4:
		b, err := c.next(4, tag)
		if err != nil {
			return Real{}, err
		}
		return Real{Float: float64(math.Float32frombits(binary.BigEndian.Uint32(b))), Single: true}, nil
	case 8:
		b, err := c.next(8, tag)
		if err != nil {
			return Real{}, err
		}
		return Real{Float: math.Float64frombits(binary.BigEndian.Uint64(b))}, nil
	}
	return Real{}, formatErrorf(c.offset(), tag, "unsupported real width %d", width)
}

func (c *cursor) readDate(tag uint8) (Date, error) {
	at := c.offset()
	b, err := c.next(8, tag)
	if err != nil {
		return 0, err
	}
	d := Date(math.Float64frombits(binary.BigEndian.Uint64(b)))
	if !d.Valid() {
		return 0, formatErrorf(at, tag, "date interval %v out of range", float64(d))
	}
	return d, nil
}

func (c *cursor) readData(n int, tag uint8) (Data, error) {
	b, err := c.next(n, tag)
	if err != nil {
		return nil, err
	}
	d := make(Data, n)
	copy(d, b)
	return d, nil
}

func (c *cursor) readASCII(n int, tag uint8) (String, error) {
	start := c.offset()
	b, err := c.next(n, tag)
	if err != nil {
		return "", err
	}
	s := make([]byte, n)
	for i, ch := range b {
		if ch > 0x7f {
			log.Debugf("non-ASCII byte 0x%02x in ASCII string at offset %d", ch, start+int64(i))
			ch = '?'
		}
		s[i] = ch
	}
	return String(s), nil
}

// readUTF16 reads n big-endian UTF-16 code units.
func (c *cursor) readUTF16(n int, tag uint8) (String, error) {
	if n > c.remaining()/2 {
		return "", formatErrorf(c.offset(), tag, "truncated record: need %d UTF-16 code units", n)
	}
	b, err := c.next(2*n, tag)
	if err != nil {
		return "", err
	}
	units := make([]uint16, n)
	for i := range units {
		units[i] = binary.BigEndian.Uint16(b[2*i:])
	}
	return String(utf16.Decode(units)), nil
}

func (c *cursor) readUID(width int, tag uint8) (UID, error) {
	if width > 4 {
		return 0, formatErrorf(c.offset(), tag, "unsupported UID width %d", width)
	}
	b, err := c.next(width, tag)
	if err != nil {
		return 0, err
	}
	return UID(beUint(b)), nil
}

// readCount returns the element or byte count of a variable length record.
// A nibble of 0xF means the count follows as an integer record.
func (c *cursor) readCount(tag uint8) (int, error) {
	nibble := tag & 0x0f
	if nibble != bpNibbleExtended {
		return int(nibble), nil
	}
	at := c.offset()
	marker, err := c.readByte(tag)
	if err != nil {
		return 0, err
	}
	if marker&0xf0 != bpTagInteger {
		return 0, formatErrorf(at, marker, "count record is not an integer")
	}
	v, err := c.readInt(1<<(marker&0x0f), marker)
	if err != nil {
		return 0, err
	}
	if v < 0 || v > int64(c.remaining()) {
		return 0, formatErrorf(at, marker, "count %d exceeds remaining input", v)
	}
	return int(v), nil
}

// readRefs reads n references of size bytes each.
func (c *cursor) readRefs(n, size int, tag uint8) ([]int, error) {
	if n > c.remaining()/size {
		return nil, formatErrorf(c.offset(), tag, "truncated record: need %d references", n)
	}
	b, err := c.next(n*size, tag)
	if err != nil {
		return nil, err
	}
	refs := make([]int, n)
	for i := range refs {
		v := beUint(b[i*size : (i+1)*size])
		if v > uint64(maxInt) {
			return nil, formatErrorf(c.offset(), tag, "reference %d does not fit in an int", v)
		}
		refs[i] = int(v)
	}
	return refs, nil
}

func beUint(b []byte) uint64 {
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v
}
