package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/please-build/ustar"
)

func main() {
	var err error

	t := flag.Bool("t", false, "list")
	c := flag.Bool("c", false, "create, truncating an existing archive")
	r := flag.Bool("r", false, "append")
	x := flag.Bool("x", false, "create, failing if the archive exists")
	dump := flag.Bool("dump", false, "print record-level diagnostics")
	fix := flag.Bool("fix", false, "copy the valid entries of one archive to another")
	file := flag.String("f", "", "file")
	pos := flag.Bool("pos", false, "print header offsets when listing")
	offset := flag.Int64("offset", -1, "start listing at the header at this byte offset")
	limit := flag.Int("limit", 0, "stop listing after this many entries")
	verbose := flag.Bool("v", false, "verbose")
	flag.Parse()

	log := logrus.New()
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	switch {
	case *t:
		paths := flag.Args()
		if *file != "" {
			paths = append([]string{*file}, paths...)
		}
		for _, path := range paths {
			if err = list(path, log, *pos, *offset, *limit); err != nil {
				break
			}
		}
	case *c || *r || *x:
		if *file == "" {
			fmt.Fprintf(flag.CommandLine.Output(), "Option -f must be specified\n")
			os.Exit(1)
		}
		mode := ustar.ModeCreate
		if *r {
			mode = ustar.ModeAppend
		} else if *x {
			mode = ustar.ModeExclusive
		}
		err = create(*file, mode, flag.Args(), log)
	case *dump:
		for _, path := range flag.Args() {
			if err = dumpRecords(path, os.Stdout); err != nil {
				break
			}
		}
	case *fix:
		if flag.NArg() != 2 {
			fmt.Fprintf(flag.CommandLine.Output(), "Usage: ustar -fix IN OUT\n")
			os.Exit(1)
		}
		err = fixArchive(flag.Arg(0), flag.Arg(1), log)
	default:
		fmt.Fprintf(flag.CommandLine.Output(), "One of -t, -c, -r, -x, -dump or -fix must be specified\n")
		os.Exit(1)
	}

	if err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
