package ustar

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

// Field offsets within a header record.
const (
	checksumOffset = 148
	checksumSize   = 8
	magicOffset    = 257
)

var blankChecksum = []byte("        ")

// Checksum returns the unsigned byte sum of a header record, with its checksum field counted as
// eight spaces.
func Checksum(b []byte) int64 {
	var sum int64
	for i, c := range b {
		if i >= checksumOffset && i < checksumOffset+checksumSize {
			c = ' '
		}
		sum += int64(c)
	}
	return sum
}

// IsTerminator reports whether b is an empty record, i.e. one that holds nothing but NUL bytes
// and blanks.
func IsTerminator(b []byte) bool {
	for _, c := range b {
		if c != 0 && c != ' ' {
			return false
		}
	}
	return true
}

// EncodeHeader encodes hdr into a 512-byte header record with a valid checksum.
func EncodeHeader(hdr *Header) ([]byte, error) {
	if len(hdr.Name) >= NameSize {
		return nil, &ErrNameTooLong{Name: hdr.Name}
	}
	var e encoder
	record := make([]byte, BlockSize)
	s := slicer(record)
	e.string(s.next(100), "name", hdr.Name)
	e.octal(s.next(8), "mode", hdr.Mode)
	e.octal(s.next(8), "uid", int64(hdr.Uid))
	e.octal(s.next(8), "gid", int64(hdr.Gid))
	e.octal(s.next(12), "size", hdr.Size)
	var mtime int64
	if !hdr.ModTime.IsZero() {
		mtime = hdr.ModTime.Unix()
	}
	e.octal(s.next(12), "mtime", mtime)
	chksum := s.next(checksumSize)
	copy(chksum, blankChecksum)
	typeflag := hdr.Typeflag
	if typeflag == 0 {
		typeflag = TypeReg
	}
	s.next(1)[0] = typeflag
	e.string(s.next(100), "linkname", hdr.Linkname)
	magic, version := hdr.Magic, hdr.Version
	if magic == "" {
		magic = MAGIC
	}
	if version == "" {
		version = VERSION
	}
	e.string(s.next(6), "magic", magic)
	e.string(s.next(2), "version", version)
	e.string(s.next(32), "uname", hdr.Uname)
	e.string(s.next(32), "gname", hdr.Gname)
	e.octal(s.next(8), "devmajor", hdr.Devmajor)
	e.octal(s.next(8), "devminor", hdr.Devminor)
	if e.err != nil {
		return nil, e.err
	}
	// The prefix field stays empty: long names are never split.

	copy(chksum, fmt.Sprintf("%06o\x00 ", Checksum(record)))
	return record, nil
}

type encoder struct {
	err error
}

func (e *encoder) string(b []byte, field, str string) {
	if len(str) > len(b) {
		e.fail(field, str)
		return
	}
	copy(b, str)
}

// octal writes x as zero-padded octal digits followed by a NUL.
func (e *encoder) octal(b []byte, field string, x int64) {
	digits := len(b) - 1
	if x < 0 || x >= int64(1)<<(3*digits) {
		e.fail(field, x)
		return
	}
	copy(b, fmt.Sprintf("%0*o", digits, x))
	b[digits] = 0
}

func (e *encoder) fail(field string, value any) {
	if e.err == nil {
		e.err = &ErrFieldOverflow{Field: field, Value: value}
	}
}

// DecodeHeader decodes a 512-byte header record. It returns *ErrChecksum if the stored checksum
// does not match the record.
func DecodeHeader(b []byte) (*Header, error) {
	if len(b) != BlockSize {
		return nil, fmt.Errorf("ustar: header record is %d bytes, want %d", len(b), BlockSize)
	}
	stored := parseOctal(b[checksumOffset : checksumOffset+checksumSize])
	if computed := Checksum(b); computed != stored {
		return nil, &ErrChecksum{Stored: stored, Computed: computed}
	}

	s := slicer(b)
	hdr := &Header{}
	hdr.Name = parseString(s.next(100))
	hdr.Mode = parseOctal(s.next(8))
	hdr.Uid = int(parseOctal(s.next(8)))
	hdr.Gid = int(parseOctal(s.next(8)))
	hdr.Size = parseOctal(s.next(12))
	hdr.ModTime = time.Unix(parseOctal(s.next(12)), 0)
	s.next(checksumSize)
	hdr.Typeflag = s.next(1)[0]
	hdr.Linkname = parseString(s.next(100))
	hdr.Magic = parseString(s.next(6))
	version := s.next(2)
	if !hdr.IsUSTAR() {
		// Legacy headers have no owner names, device numbers or prefix.
		hdr.Uname = strconv.Itoa(hdr.Uid)
		hdr.Gname = strconv.Itoa(hdr.Gid)
		return hdr, nil
	}
	hdr.Version = parseString(version)
	hdr.Uname = parseString(s.next(32))
	hdr.Gname = parseString(s.next(32))
	hdr.Devmajor = parseOctal(s.next(8))
	hdr.Devminor = parseOctal(s.next(8))
	hdr.Prefix = parseString(s.next(155))
	return hdr, nil
}

// parseString returns the text of a NUL-padded field.
func parseString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(bytes.TrimRight(b, " "))
}

// parseOctal reads the leading octal digits of a numeric field, skipping leading blanks.
// A field without digits reads as zero.
func parseOctal(b []byte) int64 {
	b = bytes.TrimLeft(b, " ")
	i := 0
	for i < len(b) && b[i] >= '0' && b[i] <= '7' {
		i++
	}
	if i == 0 {
		return 0
	}
	n, _ := strconv.ParseInt(string(b[:i]), 8, 64)
	return n
}
