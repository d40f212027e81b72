package bplist

import (
	"errors"
	"fmt"
)

// ErrCycle is returned by consumers that cannot substitute a sentinel for a
// container that (indirectly) contains itself.
var ErrCycle = errors.New("bplist: reference cycle")

// FormatError reports malformed binary plist input. Offset is the absolute
// byte offset of the offending record or field.
type FormatError struct {
	Offset int64
	Tag    uint8
	Msg    string
}

func (e *FormatError) Error() string {
	if e.Tag != 0 {
		return fmt.Sprintf("bplist: %s (tag 0x%02x at offset %d)", e.Msg, e.Tag, e.Offset)
	}
	return fmt.Sprintf("bplist: %s (at offset %d)", e.Msg, e.Offset)
}

func formatErrorf(offset int64, tag uint8, format string, args ...interface{}) *FormatError {
	return &FormatError{Offset: offset, Tag: tag, Msg: fmt.Sprintf(format, args...)}
}

// IndexError reports a reference that does not address an object in the
// table.
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("bplist: object reference %d out of range [0, %d)", e.Index, e.Len)
}
