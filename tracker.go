package ustar

import (
	"io"

	"github.com/pkg/errors"
)

// Tracker keeps the logical byte offset of a stream. It supports seeking on streams that can
// seek, and emulates forward seeks on streams that cannot (pipes, decompressors) by reading
// and discarding.
type Tracker struct {
	r io.Reader

	// s is nil for forward-only streams.
	s io.Seeker

	pos int64

	discard []byte
}

// NewTracker returns a Tracker over r. r is used in seekable mode if it is an io.Seeker that
// can report its current offset, and in forward-only mode otherwise.
func NewTracker(r io.Reader) *Tracker {
	t := &Tracker{r: r}
	if s, ok := r.(io.Seeker); ok {
		if pos, err := s.Seek(0, io.SeekCurrent); err == nil {
			t.s, t.pos = s, pos
		}
	}
	return t
}

// NewForwardTracker returns a Tracker that never seeks r, even if it could.
func NewForwardTracker(r io.Reader) *Tracker {
	return &Tracker{r: r}
}

// Seekable reports whether the Tracker can move backward.
func (t *Tracker) Seekable() bool {
	return t.s != nil
}

// Position returns the offset of the next byte to be read.
func (t *Tracker) Position() int64 {
	return t.pos
}

func (t *Tracker) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	t.pos += int64(n)
	return n, err
}

// Seek moves to the absolute offset to. In forward-only mode seeking backward fails with
// *ErrBackwardSeek and consumes nothing; seeking forward discards the bytes in between.
func (t *Tracker) Seek(to int64) error {
	if t.s != nil {
		pos, err := t.s.Seek(to, io.SeekStart)
		if err != nil {
			return errors.Wrapf(err, "ustar: seek to %d", to)
		}
		t.pos = pos
		return nil
	}
	if to < t.pos {
		return &ErrBackwardSeek{From: t.pos, To: to}
	}
	if t.discard == nil && to > t.pos {
		t.discard = make([]byte, RecordSize)
	}
	for t.pos < to {
		chunk := t.discard
		if rem := to - t.pos; rem < int64(len(chunk)) {
			chunk = chunk[:rem]
		}
		n, err := io.ReadFull(t.r, chunk)
		t.pos += int64(n)
		if err == io.EOF {
			return io.ErrUnexpectedEOF
		}
		if err != nil {
			return err
		}
	}
	return nil
}
