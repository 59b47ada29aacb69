// Copyright 2023 The go-canfd Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command fdr2lcio converts a flight-recorder session dump file to an
// LCIO one.
package main // import "github.com/go-canfd/fdr/cmd/fdr2lcio"

import (
	"compress/flate"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/go-canfd/fdr/evlog"
	"github.com/go-canfd/fdr/internal/xcnv"
	"go-hep.org/x/hep/lcio"
)

var (
	msg = log.New(os.Stdout, "fdr2lcio: ", 0)
)

func main() {
	var (
		oname = flag.String("o", "out.lcio", "path to output LCIO file")
		compr = flag.Int("lvl", flate.DefaultCompression, "compression level for output LCIO file")
	)

	flag.Usage = func() {
		fmt.Printf(`Usage: fdr2lcio [OPTIONS] file.raw

ex:
 $> fdr2lcio -o out.lcio -lvl=9 ./fdr_042.000.raw

options:
`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		msg.Fatalf("missing input FDR raw file")
	}

	if *oname == "" {
		flag.Usage()
		msg.Fatalf("invalid output LCIO file name")
	}

	err := process(*oname, *compr, flag.Arg(0))
	if err != nil {
		msg.Fatalf("could not convert FDR file: %+v", err)
	}
}

func process(oname string, lvl int, fname string) error {
	f, err := os.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open FDR file: %w", err)
	}
	defer f.Close()

	w, err := lcio.Create(oname)
	if err != nil {
		return fmt.Errorf("could not create output LCIO file: %w", err)
	}
	defer w.Close()

	w.SetCompressionLevel(lvl)

	err = xcnv.FDR2LCIO(w, evlog.NewDecoder(f), msg)
	if err != nil {
		return fmt.Errorf("could not convert FDR to LCIO: %w", err)
	}

	err = w.Close()
	if err != nil {
		return fmt.Errorf("could not close output LCIO file: %w", err)
	}

	return nil
}
