// Package bplist decodes Apple binary property lists ("bplist00") into a
// flat object table. Arrays and dictionaries refer to their members by index
// into that table; nothing is nested until a caller materializes it.
package bplist

import (
	"encoding/binary"

	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("bplist")

const (
	bpMagic       = "bplist00"
	bpHeaderSize  = 8
	bpTrailerSize = 32
)

const (
	bpTagNull        uint8 = 0x00
	bpTagBoolFalse   uint8 = 0x08
	bpTagBoolTrue    uint8 = 0x09
	bpTagFill        uint8 = 0x0F
	bpTagInteger     uint8 = 0x10
	bpTagReal        uint8 = 0x20
	bpTagDate        uint8 = 0x33
	bpTagData        uint8 = 0x40
	bpTagASCIIString uint8 = 0x50
	bpTagUTF16String uint8 = 0x60
	bpTagEnd         uint8 = 0x70
	bpTagUID         uint8 = 0x80
	bpTagArray       uint8 = 0xA0
	bpTagDictionary  uint8 = 0xD0

	bpNibbleExtended uint8 = 0x0F
)

// TrailerLayout selects how the 32 trailing bytes are interpreted.
type TrailerLayout int

const (
	// TrailerLayoutAuto recognises the CoreFoundation layout and falls
	// back to TrailerLayoutCounts.
	TrailerLayoutAuto TrailerLayout = iota
	// TrailerLayoutCounts reads four big-endian uint64 values: offset
	// count, reference count, object count and top object index.
	TrailerLayoutCounts
	// TrailerLayoutCoreFoundation reads the layout written by
	// CFBinaryPList, with an offset table before the trailer.
	TrailerLayoutCoreFoundation
)

func (l TrailerLayout) String() string {
	switch l {
	case TrailerLayoutAuto:
		return "auto"
	case TrailerLayoutCounts:
		return "counts"
	case TrailerLayoutCoreFoundation:
		return "corefoundation"
	}
	return "unknown"
}

// cfTrailer is the trailer as CFBinaryPList writes it.
type cfTrailer struct {
	Unused            [5]uint8
	SortVersion       uint8
	OffsetIntSize     uint8
	ObjectRefSize     uint8
	NumObjects        uint64
	TopObject         uint64
	OffsetTableOffset uint64
}

// Trailer is the table sizing metadata found at the end of the file.
type Trailer struct {
	Layout      TrailerLayout
	OffsetCount uint64
	RefCount    uint64
	ObjectCount uint64
	TopObject   uint64

	// RefSize is the width in bytes of every array and dictionary
	// reference in the table.
	RefSize int

	// Set only for TrailerLayoutCoreFoundation.
	OffsetIntSize     int
	OffsetTableOffset uint64
}

func refSizeForCount(refCount uint64) int {
	if refCount > 255 {
		return 2
	}
	return 1
}

func parseCountsTrailer(b []byte) Trailer {
	t := Trailer{
		Layout:      TrailerLayoutCounts,
		OffsetCount: binary.BigEndian.Uint64(b[0:8]),
		RefCount:    binary.BigEndian.Uint64(b[8:16]),
		ObjectCount: binary.BigEndian.Uint64(b[16:24]),
		TopObject:   binary.BigEndian.Uint64(b[24:32]),
	}
	t.RefSize = refSizeForCount(t.RefCount)
	return t
}

func readCFTrailer(b []byte) cfTrailer {
	var cf cfTrailer
	copy(cf.Unused[:], b[0:5])
	cf.SortVersion = b[5]
	cf.OffsetIntSize = b[6]
	cf.ObjectRefSize = b[7]
	cf.NumObjects = binary.BigEndian.Uint64(b[8:16])
	cf.TopObject = binary.BigEndian.Uint64(b[16:24])
	cf.OffsetTableOffset = binary.BigEndian.Uint64(b[24:32])
	return cf
}

// looksLikeCF reports whether the trailer is self-consistent as a
// CoreFoundation trailer for a file of the given size.
func (cf *cfTrailer) looksLikeCF(size int64) bool {
	for _, u := range cf.Unused {
		if u != 0 {
			return false
		}
	}
	if cf.SortVersion != 0 {
		return false
	}
	if cf.OffsetIntSize < 1 || cf.OffsetIntSize > 8 || cf.ObjectRefSize < 1 || cf.ObjectRefSize > 8 {
		return false
	}
	end := uint64(size - bpTrailerSize)
	if cf.OffsetTableOffset < bpHeaderSize || cf.OffsetTableOffset > end {
		return false
	}
	if cf.NumObjects > end {
		return false
	}
	return cf.NumObjects*uint64(cf.OffsetIntSize) == end-cf.OffsetTableOffset
}

func (cf *cfTrailer) toTrailer() Trailer {
	return Trailer{
		Layout:            TrailerLayoutCoreFoundation,
		OffsetCount:       cf.NumObjects,
		RefCount:          cf.NumObjects,
		ObjectCount:       cf.NumObjects,
		TopObject:         cf.TopObject,
		RefSize:           int(cf.ObjectRefSize),
		OffsetIntSize:     int(cf.OffsetIntSize),
		OffsetTableOffset: cf.OffsetTableOffset,
	}
}

// parseTrailer interprets the last 32 bytes of a file of the given size.
func parseTrailer(b []byte, size int64, layout TrailerLayout) (Trailer, error) {
	switch layout {
	case TrailerLayoutCounts:
		return parseCountsTrailer(b), nil
	case TrailerLayoutCoreFoundation:
		cf := readCFTrailer(b)
		if !cf.looksLikeCF(size) {
			return Trailer{}, formatErrorf(size-bpTrailerSize, 0, "inconsistent CoreFoundation trailer")
		}
		return cf.toTrailer(), nil
	case TrailerLayoutAuto:
		cf := readCFTrailer(b)
		if cf.looksLikeCF(size) {
			return cf.toTrailer(), nil
		}
		return parseCountsTrailer(b), nil
	}
	return Trailer{}, formatErrorf(size-bpTrailerSize, 0, "unknown trailer layout %d", int(layout))
}
