package ustar

// Entry is a header found by a Reader, along with its location in the archive. It does not hold
// the content; ask the Reader for it with Content while the entry is current.
type Entry struct {
	Header

	// Offset is the byte offset of the header record.
	Offset int64

	// gen identifies the Reader step that produced the entry.
	gen int
}

// DataOffset returns the byte offset of the first content byte.
func (e *Entry) DataOffset() int64 {
	return e.Offset + BlockSize
}

// BlockSize returns the size of the content rounded up to whole records.
func (e *Entry) BlockSize() int64 {
	return paddedSize(e.Size)
}

// End returns the offset just past the entry's padded content, where the next header starts.
func (e *Entry) End() int64 {
	return e.DataOffset() + e.BlockSize()
}

// ModeString formats the type and permission bits the way ls -l does, e.g. "-rw-rw-r--".
func (e *Entry) ModeString() string {
	b := make([]byte, 10)
	switch e.Typeflag {
	case TypeReg, TypeLink, 0:
		b[0] = '-'
	case TypeSymlink:
		b[0] = 'l'
	case TypeDir:
		b[0] = 'd'
	default:
		b[0] = e.Typeflag
	}
	const rwx = "rwxrwxrwx"
	for i := 0; i < 9; i++ {
		if e.Mode&(1<<uint(8-i)) != 0 {
			b[i+1] = rwx[i]
		} else {
			b[i+1] = '-'
		}
	}
	return string(b)
}
