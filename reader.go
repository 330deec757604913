/*
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
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/ulikunitz/xz"
)

// Reader provides sequential read access to a tar archive.
// Call Next to move to the next entry; unread content is skipped.
//
// Example:
//
//     reader := NewReader(f)
//     for {
//         entry, err := reader.Next()
//         if err == io.EOF {
//             break
//         }
//         if err != nil {
//             return err
//         }
//         content, err := reader.Content(entry)
//     }
type Reader struct {
	// t tracks the position in the underlying stream.
	t *Tracker

	// c is closed by Close, if the stream can be closed.
	c io.Closer

	log logrus.FieldLogger

	// cur is the entry returned by the most recent call to Next, or nil.
	cur *Entry

	// gen counts the entries returned so far; entries from earlier steps are stale.
	gen int

	// err is sticky: once the end of the archive or a corrupt header is seen, it is returned
	// from every later call to Next.
	err error

	block [BlockSize]byte
}

// NewReader creates a new Reader reading from r. Nothing is read until Next is called.
// If r is an io.Closer, the Reader takes ownership of it and closes it in Close.
func NewReader(r io.Reader, opts ...Option) *Reader {
	return newReader(NewTracker(r), r, opts)
}

// NewForwardReader is like NewReader but never seeks r backward, reading and discarding
// instead of seeking forward.
func NewForwardReader(r io.Reader, opts ...Option) *Reader {
	return newReader(NewForwardTracker(r), r, opts)
}

func newReader(t *Tracker, r io.Reader, opts []Option) *Reader {
	rd := &Reader{
		t:   t,
		log: newOptions(opts).log,
	}
	if c, ok := r.(io.Closer); ok {
		rd.c = c
	}
	return rd
}

// OpenReader opens the archive file at path. Files named *.xz are decompressed on the fly and read
// forward-only.
func OpenReader(path string, opts ...Option) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "ustar")
	}
	if !strings.HasSuffix(path, ".xz") {
		return NewReader(f, opts...), nil
	}
	xr, err := xz.NewReader(f)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "ustar: %s", path)
	}
	rd := NewReader(xr, opts...)
	rd.c = f
	return rd, nil
}

// Position returns the current byte offset in the archive.
func (rd *Reader) Position() int64 {
	return rd.t.Position()
}

// readBlock reads one record into rd.block. It returns false if the stream ends first.
func (rd *Reader) readBlock() (bool, error) {
	_, err := io.ReadFull(rd.t, rd.block[:])
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return false, nil
	} else if err != nil {
		return false, errors.Wrap(err, "ustar: read header")
	}
	return true, nil
}

func (rd *Reader) end(reason string) (*Entry, error) {
	rd.log.WithField("offset", rd.t.Position()).Debugf("end of archive: %s", reason)
	rd.cur = nil
	rd.err = io.EOF
	return nil, io.EOF
}

func (rd *Reader) fail(err error) (*Entry, error) {
	rd.cur = nil
	rd.err = err
	return nil, err
}

// Next skips to the next entry in the archive and returns it. io.EOF is returned at the end of
// the archive. *ErrChecksum is returned for a corrupt header; the Reader cannot continue past it.
//
// The end of the archive is normally marked by two empty records, but a stream that simply
// stops, or stops after a single empty record, also ends the archive. A single empty record
// followed by a header is skipped.
func (rd *Reader) Next() (*Entry, error) {
	if rd.err != nil {
		return nil, rd.err
	}
	if err := rd.Skip(); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return rd.end("content truncated")
		}
		return rd.fail(err)
	}

	offset := rd.t.Position()
	if ok, err := rd.readBlock(); err != nil {
		return rd.fail(err)
	} else if !ok {
		return rd.end("stream exhausted")
	}
	if IsTerminator(rd.block[:]) {
		if ok, err := rd.readBlock(); err != nil {
			return rd.fail(err)
		} else if !ok {
			return rd.end("stream exhausted after empty record")
		}
		if IsTerminator(rd.block[:]) {
			return rd.end("two empty records")
		}
		rd.log.WithField("offset", offset).Debug("skipping stray empty record")
		offset += BlockSize
	}

	hdr, err := DecodeHeader(rd.block[:])
	if err != nil {
		var cerr *ErrChecksum
		if errors.As(err, &cerr) {
			cerr.Offset = offset
		}
		return rd.fail(err)
	}
	rd.gen++
	rd.cur = &Entry{Header: *hdr, Offset: offset, gen: rd.gen}
	return rd.cur, nil
}

// Skip moves past the unread content of the current entry, including its padding.
func (rd *Reader) Skip() error {
	if rd.cur == nil {
		return nil
	}
	return rd.t.Seek(rd.cur.End())
}

// Read reads content from the current entry in the archive.
func (rd *Reader) Read(b []byte) (n int, err error) {
	if rd.cur == nil {
		return 0, io.EOF
	}
	remaining := rd.cur.DataOffset() + rd.cur.Size - rd.t.Position()
	if remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(b)) > remaining {
		b = b[0:remaining]
	}
	n, err = rd.t.Read(b)
	if err == io.EOF {
		if n < len(b) {
			err = io.ErrUnexpectedEOF
		} else {
			err = nil
		}
	}
	return
}

// Content reads the whole content of e, which must be the entry most recently returned by
// Next, and leaves the Reader at the end of the entry. On a forward-only stream this fails with
// *ErrBackwardSeek if some of the content was already consumed with Read.
func (rd *Reader) Content(e *Entry) ([]byte, error) {
	if rd.cur == nil || e.gen != rd.gen {
		return nil, ErrStaleEntry
	}
	if err := rd.t.Seek(e.DataOffset()); err != nil {
		return nil, err
	}
	buf := make([]byte, e.Size)
	if _, err := io.ReadFull(rd.t, buf); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, errors.Wrapf(err, "ustar: read content of %s", e.Name)
	}
	if err := rd.t.Seek(e.End()); err != nil {
		if !errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, err
		}
		// Missing padding ends the archive on the next call to Next.
		rd.log.WithField("name", e.Name).Debug("content padding truncated")
	}
	return buf, nil
}

// SeekHeader moves the Reader to the header record at offset, so that the next call to Next
// returns the entry there. The record must carry a valid checksum; if it does not, the Reader
// stays where it was and *ErrChecksum is returned. The stream must be seekable.
func (rd *Reader) SeekHeader(offset int64) error {
	if !rd.t.Seekable() {
		return ErrNotSeekable
	}
	orig := rd.t.Position()
	if err := rd.t.Seek(offset); err != nil {
		return err
	}
	ok, err := rd.readBlock()
	if err == nil && !ok {
		err = io.ErrUnexpectedEOF
	}
	if err == nil {
		_, err = DecodeHeader(rd.block[:])
	}
	if err != nil {
		var cerr *ErrChecksum
		if errors.As(err, &cerr) {
			cerr.Offset = offset
		}
		rd.log.WithField("offset", offset).WithError(err).Debug("no header here, rewinding")
		if serr := rd.t.Seek(orig); serr != nil {
			return serr
		}
		return err
	}
	rd.cur = nil
	rd.err = nil
	return rd.t.Seek(offset)
}

// Walk calls fn for every remaining entry in the archive, in order. Content that fn does not
// read is skipped. It returns nil at the end of the archive, or the first error from fn or
// from reading.
func (rd *Reader) Walk(fn func(*Entry) error) error {
	for {
		e, err := rd.Next()
		if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
}

// Close closes the underlying stream if it can be closed.
func (rd *Reader) Close() error {
	rd.cur = nil
	if rd.err == nil {
		rd.err = os.ErrClosed
	}
	if rd.c == nil {
		return nil
	}
	c := rd.c
	rd.c = nil
	return c.Close()
}
