package ustar

import (
	"errors"
	"fmt"
)

var (
	// ErrStaleEntry indicates that the content of an entry was requested after the Reader had
	// already moved past it.
	ErrStaleEntry = errors.New("ustar: entry is no longer current")

	// ErrWriterClosed indicates a write to, or a second Close of, a closed Writer.
	ErrWriterClosed = errors.New("ustar: writer is closed")

	// ErrNotSeekable indicates an operation that needs random access on a forward-only stream.
	ErrNotSeekable = errors.New("ustar: stream is not seekable")
)

// ErrChecksum indicates a header record whose stored checksum does not match its contents.
type ErrChecksum struct {
	Offset   int64
	Stored   int64
	Computed int64
}

func (e *ErrChecksum) Error() string {
	return fmt.Sprintf("ustar: header at offset %d: checksum %d != %d", e.Offset, e.Computed, e.Stored)
}

// ErrNameTooLong indicates a file name that does not fit the 100-byte name field.
type ErrNameTooLong struct {
	Name string
}

func (e *ErrNameTooLong) Error() string {
	return fmt.Sprintf("ustar: file name too long (%d bytes): %s", len(e.Name), e.Name)
}

// ErrFieldOverflow indicates a header value too large for its field.
type ErrFieldOverflow struct {
	Field string
	Value any
}

func (e *ErrFieldOverflow) Error() string {
	return fmt.Sprintf("ustar: %s %v does not fit the header field", e.Field, e.Value)
}

// ErrBackwardSeek indicates a seek behind the current position of a forward-only stream.
type ErrBackwardSeek struct {
	From int64
	To   int64
}

func (e *ErrBackwardSeek) Error() string {
	return fmt.Sprintf("ustar: cannot seek backward from %d to %d", e.From, e.To)
}

func (e *ErrBackwardSeek) Unwrap() error {
	return ErrNotSeekable
}

// ErrUnsupportedMode indicates an unknown Writer open mode.
type ErrUnsupportedMode struct {
	Mode string
}

func (e *ErrUnsupportedMode) Error() string {
	return fmt.Sprintf("ustar: unsupported mode '%s'", e.Mode)
}
