package ustar

import (
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// findLastValidRecord positions rs just past the content of the last valid entry and returns
// that offset. Windows of RecordSize bytes are scanned backward from the end of the stream, and
// the record slots within each window from last to first; the first record that has the USTAR
// magic and a valid checksum wins. Anything after its content is garbage or terminator records
// to be overwritten. If no such record exists the archive is treated as empty.
//
// The stream is not truncated, so bytes beyond the last entry written later remain in place.
func findLastValidRecord(rs io.ReadSeeker, log logrus.FieldLogger) (int64, error) {
	end, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, errors.Wrap(err, "ustar: find end of archive")
	}
	window := make([]byte, RecordSize)
	// A partial window past the last block boundary is scanned before the whole ones.
	for lo, hi := end-end%RecordSize, end; hi > 0; lo, hi = lo-RecordSize, lo {
		if lo == hi {
			continue
		}
		log.Debugf("read %d+%d", lo, hi-lo)
		if _, err := rs.Seek(lo, io.SeekStart); err != nil {
			return 0, errors.Wrap(err, "ustar: find end of archive")
		}
		buf := window[:hi-lo]
		if _, err := io.ReadFull(rs, buf); err != nil {
			return 0, errors.Wrap(err, "ustar: find end of archive")
		}
		for i := len(buf)/BlockSize - 1; i >= 0; i-- {
			record := buf[i*BlockSize : (i+1)*BlockSize]
			if string(record[magicOffset:magicOffset+len(MAGIC)]) != MAGIC {
				continue
			}
			recpos := lo + int64(i*BlockSize)
			hdr, err := DecodeHeader(record)
			if err != nil {
				log.WithError(err).Debugf("ustar magic at %d without valid checksum", recpos)
				continue
			}
			pos := recpos + BlockSize + paddedSize(hdr.Size)
			log.WithFields(logrus.Fields{"header": recpos, "name": hdr.Name}).Debugf("last entry ends at %d", pos)
			if _, err := rs.Seek(pos, io.SeekStart); err != nil {
				return 0, errors.Wrap(err, "ustar: find end of archive")
			}
			return pos, nil
		}
	}
	log.Debug("no valid entry found, archive is empty")
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return 0, errors.Wrap(err, "ustar: find end of archive")
	}
	return 0, nil
}
