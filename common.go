package ustar

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// BlockSize is the size of a single tar record: a header or a chunk of content.
	BlockSize = 512

	// BlockingFactor is the number of records written to the underlying stream at once.
	BlockingFactor = 20

	// RecordSize is the size of one physical write, BlockingFactor records.
	RecordSize = BlockSize * BlockingFactor

	// NameSize is the width of the name field. Names must be strictly shorter.
	NameSize = 100

	// DirectWriteSize is the content length above which Add writes content straight to the
	// underlying stream instead of copying it through the record pool.
	DirectWriteSize = 0x380000

	MAGIC   = "ustar"
	VERSION = "00"
)

// Type flags for Header.Typeflag.
const (
	TypeReg     = '0'
	TypeLink    = '1'
	TypeSymlink = '2'
	TypeChar    = '3'
	TypeBlock   = '4'
	TypeDir     = '5'
	TypeFifo    = '6'
	TypeCont    = '7'
)

// Identity used for entries written by Add.
const (
	DefaultMode  = 0664
	DefaultID    = 99
	DefaultOwner = "nobody"
)

// Header holds the fields of a single USTAR header record.
type Header struct {
	Name     string
	Mode     int64
	Uid      int
	Gid      int
	Size     int64
	ModTime  time.Time
	Typeflag byte
	Linkname string
	Magic    string
	Version  string
	Uname    string
	Gname    string
	Devmajor int64
	Devminor int64
	Prefix   string
}

// NewHeader returns a header for a regular file owned by the synthetic default identity.
func NewHeader(name string, size int64, mtime time.Time) *Header {
	return &Header{
		Name:     name,
		Mode:     DefaultMode,
		Uid:      DefaultID,
		Gid:      DefaultID,
		Size:     size,
		ModTime:  mtime,
		Typeflag: TypeReg,
		Magic:    MAGIC,
		Version:  VERSION,
		Uname:    DefaultOwner,
		Gname:    DefaultOwner,
	}
}

// IsUSTAR reports whether the header carries the extended USTAR fields.
func (h *Header) IsUSTAR() bool {
	return len(h.Magic) >= len(MAGIC) && h.Magic[:len(MAGIC)] == MAGIC
}

// blockPadding returns the number of bytes needed to pad n up to a multiple of BlockSize.
func blockPadding(n int64) int64 {
	return -n & (BlockSize - 1)
}

// paddedSize rounds n up to a multiple of BlockSize.
func paddedSize(n int64) int64 {
	return n + blockPadding(n)
}

var zeroBlock [BlockSize]byte

type slicer []byte

func (sp *slicer) next(n int) (b []byte) {
	s := *sp
	b, *sp = s[0:n], s[n:]
	return
}

// Option configures a Reader or Writer.
type Option func(*options)

type options struct {
	log logrus.FieldLogger
}

// WithLogger sets the logger that receives diagnostic messages. By default they are discarded.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) {
		o.log = l
	}
}

func newOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		o.log = l
	}
	return o
}
