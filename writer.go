/*
Copyright (c) 2017 Jerry Jacobs <jerry.jacobs@xor-gate.org>
Copyright (c) 2013 Blake Smith <blakesmith0@gmail.com>

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package ustar

import (
	"io"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Mode selects how OpenWriter treats an existing archive file.
type Mode int

const (
	// ModeCreate creates the file, truncating it if it exists ("w").
	ModeCreate Mode = iota

	// ModeTruncate truncates an existing file; the file must exist ("t").
	ModeTruncate

	// ModeAppend opens the file for appending after its last valid entry, creating it if
	// missing ("a").
	ModeAppend

	// ModeExclusive creates the file and fails if it already exists ("x").
	ModeExclusive
)

// ParseMode converts a mode string ("w", "t", "a" or "x") to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "w":
		return ModeCreate, nil
	case "t":
		return ModeTruncate, nil
	case "a":
		return ModeAppend, nil
	case "x":
		return ModeExclusive, nil
	}
	return 0, &ErrUnsupportedMode{Mode: s}
}

func (m Mode) flags() int {
	switch m {
	case ModeTruncate:
		return os.O_WRONLY | os.O_TRUNC
	case ModeAppend:
		return os.O_RDWR | os.O_CREATE
	case ModeExclusive:
		return os.O_WRONLY | os.O_CREATE | os.O_EXCL | os.O_TRUNC
	default:
		return os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
}

// Writer provides sequential writing of a tar archive.
// Records are collected into blocks of RecordSize bytes before they reach the underlying
// stream. Close must be called to terminate the archive.
//
// Example:
// archive, err := ustar.OpenWriter("out.tar", ustar.ModeCreate)
// if err != nil {
// 	return err
// }
// defer archive.Close()
// if _, err := archive.Add("hello.txt", []byte("Hello world!\n"), time.Now()); err != nil {
// 	return err
// }
type Writer struct {
	// w is the underlying io.Writer to which the archive is written.
	w io.Writer

	log logrus.FieldLogger

	// closed is true if Close has been called on this Writer, or false if it has not.
	closed bool

	// pool holds records that have not been written to w yet.
	pool []byte

	// flushed is the logical offset of the first byte in pool.
	flushed int64
}

// NewWriter creates a new Writer that writes a tar archive to w, starting at its current
// position. If w is an io.Closer it is closed by Close.
func NewWriter(w io.Writer, opts ...Option) *Writer {
	aw := &Writer{
		w:    w,
		log:  newOptions(opts).log,
		pool: make([]byte, 0, RecordSize),
	}
	if s, ok := w.(io.Seeker); ok {
		if pos, err := s.Seek(0, io.SeekCurrent); err == nil {
			aw.flushed = pos
		}
	}
	return aw
}

// NewAppendWriter creates a Writer that adds entries to the existing archive in rws. New
// entries start right after the last valid entry; an empty stream is treated as an empty
// archive.
func NewAppendWriter(rws io.ReadWriteSeeker, opts ...Option) (*Writer, error) {
	aw := NewWriter(rws, opts...)
	pos, err := findLastValidRecord(rws, aw.log)
	if err != nil {
		return nil, err
	}
	aw.flushed = pos
	return aw, nil
}

// OpenWriter opens the archive file at path for writing.
func OpenWriter(path string, mode Mode, opts ...Option) (*Writer, error) {
	if mode < ModeCreate || mode > ModeExclusive {
		return nil, &ErrUnsupportedMode{Mode: strconv.Itoa(int(mode))}
	}
	f, err := os.OpenFile(path, mode.flags(), 0644)
	if err != nil {
		return nil, errors.Wrap(err, "ustar")
	}
	if mode != ModeAppend {
		return NewWriter(f, opts...), nil
	}
	aw, err := NewAppendWriter(f, opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	return aw, nil
}

// Position returns the logical offset at which the next record will be written.
func (aw *Writer) Position() int64 {
	return aw.flushed + int64(len(aw.pool))
}

// Add adds a regular file with the default identity to the archive. It returns the byte offset
// of the entry's header. Names of NameSize bytes or more are rejected before anything is
// written.
func (aw *Writer) Add(name string, content []byte, mtime time.Time) (int64, error) {
	return aw.AddEntry(NewHeader(name, int64(len(content)), mtime), content)
}

// AddEntry adds an entry described by hdr. hdr.Size is set to the length of content.
// It returns the byte offset of the entry's header.
func (aw *Writer) AddEntry(hdr *Header, content []byte) (int64, error) {
	if aw.closed {
		return 0, ErrWriterClosed
	}
	hdr.Size = int64(len(content))
	record, err := EncodeHeader(hdr)
	if err != nil {
		return 0, err
	}
	recpos := aw.Position()
	if err := aw.blockWrite(record); err != nil {
		return recpos, err
	}
	if len(content) > DirectWriteSize {
		return recpos, aw.directWrite(hdr.Name, content)
	}
	for len(content) > 0 {
		n := len(content)
		if n > BlockSize {
			n = BlockSize
		}
		if err := aw.blockWrite(content[:n]); err != nil {
			return recpos, err
		}
		content = content[n:]
	}
	return recpos, nil
}

// directWrite writes large content past the pool, which is flushed first.
func (aw *Writer) directWrite(name string, content []byte) error {
	aw.log.WithFields(logrus.Fields{"name": name, "size": len(content)}).Debug("writing content directly")
	if err := aw.poolFlush(); err != nil {
		return err
	}
	n, err := aw.w.Write(content)
	aw.flushed += int64(n)
	if err != nil {
		return errors.Wrap(err, "ustar: write content")
	}
	n, err = aw.w.Write(zeroBlock[:blockPadding(int64(len(content)))])
	aw.flushed += int64(n)
	return errors.Wrap(err, "ustar: write padding")
}

// blockWrite adds b, at most one record long, to the pool, padded with NULs to a whole record.
// A nil b adds an empty record.
func (aw *Writer) blockWrite(b []byte) error {
	aw.pool = append(aw.pool, b...)
	aw.pool = append(aw.pool, zeroBlock[:BlockSize-len(b)]...)
	if len(aw.pool) >= RecordSize {
		return aw.poolFlush()
	}
	return nil
}

func (aw *Writer) poolFlush() error {
	if len(aw.pool) == 0 {
		return nil
	}
	n, err := aw.w.Write(aw.pool)
	aw.flushed += int64(n)
	aw.pool = aw.pool[:copy(aw.pool, aw.pool[n:])]
	return errors.Wrap(err, "ustar: write records")
}

// Flush writes any pending records to the underlying writer.
func (aw *Writer) Flush() error {
	if aw.closed {
		return ErrWriterClosed
	}
	return aw.poolFlush()
}

// Close terminates the archive with two empty records, pads it with empty records to a whole
// block, flushes it, and closes the underlying writer if it is an io.Closer.
func (aw *Writer) Close() error {
	if aw.closed {
		return ErrWriterClosed
	}
	aw.closed = true
	var result error
	err := aw.blockWrite(nil)
	if err == nil {
		err = aw.blockWrite(nil)
	}
	for err == nil && aw.Position()%RecordSize != 0 {
		err = aw.blockWrite(nil)
	}
	if err == nil {
		err = aw.poolFlush()
	}
	if err != nil {
		result = multierror.Append(result, err)
	}
	if c, ok := aw.w.(io.Closer); ok {
		if err := c.Close(); err != nil {
			result = multierror.Append(result, errors.Wrap(err, "ustar: close"))
		}
	}
	return result
}
