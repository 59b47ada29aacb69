// Copyright 2023 The go-canfd Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// fdr-dump decodes and displays flight-recorder session dump files.
//
// Usage: fdr-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]
//
// Example:
//
//	$> fdr-dump ./fdr_042.000.raw
//	=== session run=42 ===
//	version:    1
//	capacity:  64
//	capture:   0x1fffff
//	trigger:   0xffff
//	records:   63
//	  [ 0] kind=sof        num=0x00 add=0x0 aux=0x0 time=1846
//	  [ 1] kind=error      num=0x04 add=0x0 aux=0x0 time=1851
//	[...]
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/go-canfd/fdr/evlog"
)

func main() {
	log.SetPrefix("fdr-dump: ")
	log.SetFlags(0)

	flag.Usage = func() {
		fmt.Printf(`fdr-dump decodes and displays flight-recorder session dump files.

Usage: fdr-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]

Example:

 $> fdr-dump ./fdr_042.000.raw
 === session run=42 ===
 version:    1
 capacity:  64
 capture:   0x1fffff
 trigger:   0xffff
 records:   63
   [ 0] kind=sof        num=0x00 add=0x0 aux=0x0 time=1846
   [ 1] kind=error      num=0x04 add=0x0 aux=0x0 time=1851
 [...]

`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		log.Fatalf("missing path to input FDR file")
	}

	for _, fname := range flag.Args() {
		err := process(os.Stdout, fname)
		if err != nil {
			log.Fatalf("could not dump file %q: %+v", fname, err)
		}
	}
}

func process(w io.Writer, fname string) error {
	wbuf := bufio.NewWriter(w)
	defer wbuf.Flush()

	f, err := os.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open %q: %w", fname, err)
	}
	defer f.Close()

	dec := evlog.NewDecoder(f)
loop:
	for {
		var ses evlog.Session
		err := dec.Decode(&ses)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break loop
			}
			return fmt.Errorf("could not decode session: %w", err)
		}
		fmt.Fprintf(wbuf, "=== session run=%d ===\n", ses.Run)
		fmt.Fprintf(wbuf, "version:  %3d\n", ses.Version)
		fmt.Fprintf(wbuf, "capacity: %3d\n", ses.Capacity)
		fmt.Fprintf(wbuf, "capture:  0x%06x\n", uint32(ses.Capture))
		fmt.Fprintf(wbuf, "trigger:  0x%04x\n", uint16(ses.Trigger))
		fmt.Fprintf(wbuf, "records:  %3d\n", len(ses.Records))

		for i, rec := range ses.Records {
			fmt.Fprintf(wbuf, "  [%2d] kind=%-10s num=0x%02x add=0x%x aux=0x%x time=%d\n",
				i, rec.Kind, rec.Num, rec.Add, rec.Aux, rec.Time,
			)
		}
	}

	return nil
}
