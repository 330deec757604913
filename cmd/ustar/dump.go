package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/please-build/ustar"
)

func blocks(size int64) int64 {
	return (size + ustar.BlockSize - 1) / ustar.BlockSize
}

// dumpRecords prints what each header record of an archive looks like, without trusting the
// end-of-archive markers.
func dumpRecords(path string, out io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	t := ustar.NewTracker(f)
	record := make([]byte, ustar.BlockSize)
	for {
		pos := t.Position()
		bpos := pos / ustar.BlockSize
		if _, err := io.ReadFull(t, record); err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil
		} else if err != nil {
			return err
		}
		if ustar.IsTerminator(record) {
			fmt.Fprintf(out, "%d: empty\n", bpos)
			continue
		}
		fmt.Fprintf(out, "%d: magic=%q\n", bpos, record[257:263])
		hdr, err := ustar.DecodeHeader(record)
		var cerr *ustar.ErrChecksum
		if errors.As(err, &cerr) {
			fmt.Fprintf(out, "%d: checksum %d != %d\n", bpos, cerr.Stored, cerr.Computed)
			continue
		} else if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d: name=%s bytesize=%d size=%d\n", bpos, hdr.Name, hdr.Size, blocks(hdr.Size))
		if err := t.Seek(pos + ustar.BlockSize*(1+blocks(hdr.Size))); err != nil {
			return err
		}
	}
}

// fixArchive copies the entries of one archive to another, dropping empty records found between
// entries. The dropped records are appended at the end so the output keeps the input's length.
func fixArchive(in, out string, log logrus.FieldLogger) (err error) {
	ifp, err := os.Open(in)
	if err != nil {
		return err
	}
	defer ifp.Close()
	ofp, err := os.Create(out)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := ofp.Close(); err == nil {
			err = cerr
		}
	}()

	t := ustar.NewForwardTracker(ifp)
	record := make([]byte, ustar.BlockSize)
	var nreset, nskip int64
	for {
		bpos := t.Position() / ustar.BlockSize
		if _, err := io.ReadFull(t, record); err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		} else if err != nil {
			return err
		}
		if ustar.IsTerminator(record) {
			nskip++
			continue
		}
		if nskip > 0 {
			log.Infof("%d: reset nskip %d", bpos, nskip)
			nreset += nskip
			nskip = 0
		}
		hdr, err := ustar.DecodeHeader(record)
		if err != nil {
			return fmt.Errorf("record %d: %w", bpos, err)
		}
		if _, err := ofp.Write(record); err != nil {
			return err
		}
		if _, err := io.CopyN(ofp, t, blocks(hdr.Size)*ustar.BlockSize); err != nil && err != io.EOF {
			return err
		}
	}
	log.Infof("nreset %d nskip %d", nreset, nskip)
	zero := make([]byte, ustar.BlockSize)
	for i := int64(0); i < nreset+nskip; i++ {
		if _, err := ofp.Write(zero); err != nil {
			return err
		}
	}
	return nil
}
