package bplist

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
)

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithTrailerLayout forces the trailer interpretation. The default is
// TrailerLayoutAuto.
func WithTrailerLayout(layout TrailerLayout) DecoderOption {
	return func(d *Decoder) { d.layout = layout }
}

// WithStrictObjectCount makes Decode fail when the number of decoded
// records differs from the trailer's object count. By default the mismatch
// is only logged.
func WithStrictObjectCount(strict bool) DecoderOption {
	return func(d *Decoder) { d.strictCount = strict }
}

// A Decoder reads a binary property list from a seekable input.
type Decoder struct {
	reader      io.ReadSeeker
	layout      TrailerLayout
	strictCount bool
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.ReadSeeker, opts ...DecoderOption) *Decoder {
	d := &Decoder{reader: r}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode parses bplist bytes held in memory.
func Decode(data []byte, opts ...DecoderOption) (*Table, error) {
	return NewDecoder(bytes.NewReader(data), opts...).Decode()
}

// Decode reads the whole input and builds its object table.
func (d *Decoder) Decode() (*Table, error) {
	size, err := d.reader.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, errors.Wrap(err, "bplist: determine input size")
	}
	if size < bpHeaderSize+bpTrailerSize {
		return nil, formatErrorf(0, 0, "input is %d bytes, shorter than header and trailer", size)
	}

	var header [bpHeaderSize]byte
	if err := d.readAt(header[:], 0); err != nil {
		return nil, err
	}
	if string(header[:]) != bpMagic {
		return nil, formatErrorf(0, 0, "missing %q magic", bpMagic)
	}

	var raw [bpTrailerSize]byte
	if err := d.readAt(raw[:], size-bpTrailerSize); err != nil {
		return nil, err
	}
	trailer, err := parseTrailer(raw[:], size, d.layout)
	if err != nil {
		return nil, err
	}

	var offsets []uint64
	if trailer.Layout == TrailerLayoutCoreFoundation {
		if offsets, err = d.readOffsetTable(trailer); err != nil {
			return nil, err
		}
		if d.layout == TrailerLayoutAuto && !offsetsFitRecords(offsets, trailer.OffsetTableOffset) {
			log.Debugf("offset table does not describe the records, reading the trailer as counts")
			trailer = parseCountsTrailer(raw[:])
			offsets = nil
		}
	}

	end := size - bpTrailerSize
	if trailer.Layout == TrailerLayoutCoreFoundation {
		end = int64(trailer.OffsetTableOffset)
	}
	region := make([]byte, end-bpHeaderSize)
	if err := d.readAt(region, bpHeaderSize); err != nil {
		return nil, err
	}

	t, err := decodeObjects(&cursor{buf: region, base: bpHeaderSize}, trailer)
	if err != nil {
		return nil, err
	}
	if trailer.Layout == TrailerLayoutCoreFoundation {
		if err := verifyOffsets(t, offsets); err != nil {
			return nil, err
		}
	}
	if uint64(t.Len()) != trailer.ObjectCount {
		if d.strictCount {
			return nil, formatErrorf(size-bpTrailerSize, 0, "decoded %d objects, trailer declares %d", t.Len(), trailer.ObjectCount)
		}
		log.Warningf("decoded %d objects, trailer declares %d", t.Len(), trailer.ObjectCount)
	}
	if err := t.checkRefs(); err != nil {
		return nil, err
	}
	if _, err := t.Top(); err != nil {
		return nil, err
	}
	return t, nil
}

func (d *Decoder) readAt(b []byte, offset int64) error {
	if _, err := d.reader.Seek(offset, io.SeekStart); err != nil {
		return errors.Wrapf(err, "bplist: seek to %d", offset)
	}
	if _, err := io.ReadFull(d.reader, b); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return formatErrorf(offset, 0, "unexpected end of input")
		}
		return errors.Wrapf(err, "bplist: read %d bytes at %d", len(b), offset)
	}
	return nil
}

func (d *Decoder) readOffsetTable(tr Trailer) ([]uint64, error) {
	raw := make([]byte, tr.OffsetCount*uint64(tr.OffsetIntSize))
	if err := d.readAt(raw, int64(tr.OffsetTableOffset)); err != nil {
		return nil, err
	}
	offsets := make([]uint64, tr.OffsetCount)
	for i := range offsets {
		offsets[i] = beUint(raw[i*tr.OffsetIntSize : (i+1)*tr.OffsetIntSize])
	}
	return offsets, nil
}

// offsetsFitRecords reports whether offsets can be the start offsets of
// records laid out in index order between the header and the offset table.
// A four-count trailer can pass the CoreFoundation size checks by accident,
// but its bytes rarely form such a table.
func offsetsFitRecords(offsets []uint64, tableOffset uint64) bool {
	if len(offsets) == 0 || offsets[0] != bpHeaderSize {
		return false
	}
	for i := 1; i < len(offsets); i++ {
		if offsets[i] <= offsets[i-1] {
			return false
		}
	}
	return offsets[len(offsets)-1] < tableOffset
}

// verifyOffsets checks that the records were found where the offset table
// says they are. Sequential decoding only assigns the right indices if the
// writer laid the records out in index order.
func verifyOffsets(t *Table, offsets []uint64) error {
	n := len(offsets)
	if t.Len() < n {
		n = t.Len()
	}
	for i := 0; i < n; i++ {
		if got := t.offsets[i]; uint64(got) != offsets[i] {
			return formatErrorf(got, 0, "object %d found at offset %d, offset table says %d", i, got, offsets[i])
		}
	}
	return nil
}

// decodeObjects performs the single sequential pass over the record region.
func decodeObjects(c *cursor, trailer Trailer) (*Table, error) {
	t := &Table{trailer: trailer}
	add := func(offset int64, o Object) {
		t.objects = append(t.objects, o)
		t.offsets = append(t.offsets, offset)
	}
	for !c.done() {
		at := c.offset()
		tag := c.buf[c.pos]
		c.pos++
		nibble := tag & 0x0f
		switch tag & 0xf0 {
		case 0x00:
			switch tag {
			case bpTagNull:
				add(at, Null{})
			case bpTagBoolFalse:
				add(at, Boolean(false))
			case bpTagBoolTrue:
				add(at, Boolean(true))
			case bpTagFill:
				log.Debugf("fill byte at offset %d", at)
			default:
				return nil, formatErrorf(at, tag, "illegal marker")
			}
		case bpTagInteger:
			v, err := c.readInt(1<<nibble, tag)
			if err != nil {
				return nil, err
			}
			add(at, Integer(v))
		case bpTagReal:
			r, err := c.readReal(1<<nibble, tag)
			if err != nil {
				return nil, err
			}
			add(at, r)
		case bpTagDate & 0xf0:
			if tag != bpTagDate {
				return nil, formatErrorf(at, tag, "illegal marker")
			}
			v, err := c.readDate(tag)
			if err != nil {
				return nil, err
			}
			add(at, v)
		case bpTagData:
			n, err := c.readCount(tag)
			if err != nil {
				return nil, err
			}
			v, err := c.readData(n, tag)
			if err != nil {
				return nil, err
			}
			add(at, v)
		case bpTagASCIIString:
			n, err := c.readCount(tag)
			if err != nil {
				return nil, err
			}
			v, err := c.readASCII(n, tag)
			if err != nil {
				return nil, err
			}
			add(at, v)
		case bpTagUTF16String:
			n, err := c.readCount(tag)
			if err != nil {
				return nil, err
			}
			v, err := c.readUTF16(n, tag)
			if err != nil {
				return nil, err
			}
			add(at, v)
		case bpTagEnd:
			log.Debugf("end marker 0x%02x at offset %d after %d objects", tag, at, len(t.objects))
			return t, nil
		case bpTagUID:
			v, err := c.readUID(int(nibble)+1, tag)
			if err != nil {
				return nil, err
			}
			add(at, v)
		case bpTagArray:
			n, err := c.readCount(tag)
			if err != nil {
				return nil, err
			}
			refs, err := c.readRefs(n, trailer.RefSize, tag)
			if err != nil {
				return nil, err
			}
			add(at, &Array{table: t, refs: refs})
		case bpTagDictionary:
			n, err := c.readCount(tag)
			if err != nil {
				return nil, err
			}
			keys, err := c.readRefs(n, trailer.RefSize, tag)
			if err != nil {
				return nil, err
			}
			values, err := c.readRefs(n, trailer.RefSize, tag)
			if err != nil {
				return nil, err
			}
			add(at, &Dict{table: t, keyRefs: keys, objRefs: values})
		default:
			return nil, formatErrorf(at, tag, "illegal marker")
		}
	}
	return t, nil
}
