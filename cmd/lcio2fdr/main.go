// Copyright 2023 The go-canfd Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command lcio2fdr converts a LCIO file into a flight-recorder session
// dump file.
package main // import "github.com/go-canfd/fdr/cmd/lcio2fdr"

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/go-canfd/fdr/internal/xcnv"
	"go-hep.org/x/hep/lcio"
)

var (
	msg = log.New(os.Stdout, "lcio2fdr: ", 0)
)

func main() {
	var (
		oname = flag.String("o", "out.raw", "path to output FDR raw file")
	)

	flag.Usage = func() {
		fmt.Printf(`Usage: lcio2fdr [OPTIONS] file.lcio

ex:
 $> lcio2fdr -o out.raw ./input.lcio

options:
`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		msg.Fatalf("missing input LCIO file")
	}

	if *oname == "" {
		flag.Usage()
		msg.Fatalf("invalid output FDR file name")
	}

	n, err := numEvents(flag.Arg(0))
	if err != nil {
		msg.Fatalf("could not assess number of sessions: %+v", err)
	}
	msg.Printf("input:    %s", flag.Arg(0))
	msg.Printf("sessions: %d", n)

	freq := int(n / 10)
	if freq == 0 {
		freq = 1
	}

	err = process(*oname, flag.Arg(0), freq)
	if err != nil {
		msg.Fatalf("could not convert LCIO file: %+v", err)
	}
}

func numEvents(fname string) (int64, error) {
	r, err := lcio.Open(fname)
	if err != nil {
		return 0, fmt.Errorf("could not open %q: %w", fname, err)
	}
	defer r.Close()

	var n int64
	for r.Next() {
		n++
	}

	err = r.Err()
	if err != nil && err != io.EOF {
		return 0, fmt.Errorf("could not assess number of sessions in %q: %w", fname, err)
	}

	return n, nil
}

func process(oname, fname string, freq int) error {
	r, err := lcio.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open LCIO file: %w", err)
	}
	defer r.Close()

	f, err := os.Create(oname)
	if err != nil {
		return fmt.Errorf("could not create output FDR file: %w", err)
	}
	defer f.Close()

	err = xcnv.LCIO2FDR(f, r, freq, msg)
	if err != nil {
		return fmt.Errorf("could not convert LCIO to FDR: %w", err)
	}

	err = f.Close()
	if err != nil {
		return fmt.Errorf("could not close output FDR file: %w", err)
	}
	return nil
}
