package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/please-build/ustar"
)

var errLimit = errors.New("limit reached")

func list(path string, log logrus.FieldLogger, showPos bool, offset int64, limit int) error {
	tar, err := ustar.OpenReader(path, ustar.WithLogger(log))
	if err != nil {
		return err
	}
	defer tar.Close()
	if offset >= 0 {
		if err := tar.SeekHeader(offset); err != nil {
			return err
		}
	}
	err = tar.Walk(func(e *ustar.Entry) error {
		if showPos {
			fmt.Println(e.Offset)
		}
		fmt.Printf("%s %s/%s %5d %16s %s\n", e.ModeString(), e.Uname, e.Gname, e.Size,
			e.ModTime.Format("2006-01-02 15:04"), e.Name)
		if limit--; limit == 0 {
			return errLimit
		}
		return nil
	})
	if err == errLimit {
		return nil
	}
	return err
}

func create(path string, mode ustar.Mode, files []string, log logrus.FieldLogger) (err error) {
	tar, err := ustar.OpenWriter(path, mode, ustar.WithLogger(log))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := tar.Close(); err == nil {
			err = cerr
		}
	}()
	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		fi, err := os.Stat(file)
		if err != nil {
			return err
		}
		pos, err := tar.Add(filepath.Base(file), content, fi.ModTime())
		if err != nil {
			return err
		}
		log.WithField("offset", pos).Debugf("added %s", file)
	}
	return nil
}
