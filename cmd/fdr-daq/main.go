// Copyright 2023 The go-canfd Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command fdr-daq drives a flight-recorder acquisition in stand-alone
// mode: a simulated CAN-FD bus feeds the recorder until its log fills,
// and the session is dumped to disk.
package main // import "github.com/go-canfd/fdr/cmd/fdr-daq"

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/go-canfd/fdr/conddb"
	"github.com/go-canfd/fdr/evlog"
	"github.com/go-canfd/fdr/internal/busim"
)

func main() {
	var (
		runnbr   = flag.Int("run", -1, "run number")
		seed     = flag.Int64("seed", 1234, "bus simulation seed")
		capacity = flag.Int("capacity", 256, "log capacity (power of two)")
		capture  = flag.Uint64("capture", uint64(evlog.CaptureAll), "capture mask")
		trigger  = flag.Uint64("trigger", uint64(evlog.TriggerAny), "trigger mask")
		preset   = flag.String("preset", "", "conddb preset name (overrides capacity/capture/trigger)")
		dbname   = flag.String("db", "fdrsrv", "conddb database name")
		ctlAddr  = flag.String("ctl", "", "serve the control protocol on [address]:port instead of free-running")
		nticks   = flag.Int("nticks", 10000000, "tick budget for the acquisition")
		odir     = flag.String("o", ".", "output dir")
	)

	log.SetPrefix("fdr-daq: ")
	log.SetFlags(0)

	flag.Parse()

	if *ctlAddr != "" {
		log.Printf("serving recorder control on %q...", *ctlAddr)
		err := evlog.Serve(*ctlAddr, busim.New(*seed))
		if err != nil {
			log.Fatalf("could not serve recorder control: %+v", err)
		}
		return
	}

	log.Printf("run=%d seed=%d capacity=%d capture=0x%06x trigger=0x%04x",
		*runnbr, *seed, *capacity, *capture, *trigger,
	)

	if *runnbr < 0 {
		log.Fatalf("invalid run number value")
	}

	err := run(
		uint32(*runnbr), *seed, *capacity,
		evlog.CaptureMask(*capture), evlog.TriggerMask(*trigger),
		*preset, *dbname, *nticks, *odir,
	)
	if err != nil {
		log.Fatalf("could not run fdr-daq: %+v", err)
	}
}

var errTickBudget = errors.New("tick budget exhausted before the log filled")

func run(runnbr uint32, seed int64, capacity int, capture evlog.CaptureMask, trigger evlog.TriggerMask, preset, dbname string, nticks int, odir string) error {
	eng, err := engine(capacity, capture, trigger, preset, dbname)
	if err != nil {
		return fmt.Errorf("could not configure recorder: %w", err)
	}

	sim := busim.New(seed)
	out := eng.Tick(evlog.Input{Status: sim.Next(), Cmd: evlog.CmdStart})
	if out.State != evlog.Ready {
		return fmt.Errorf("recorder did not arm (state=%v)", out.State)
	}
	log.Printf("recorder armed")

	done := false
loop:
	for i := 0; i < nticks; i++ {
		out = eng.Tick(evlog.Input{Status: sim.Next()})
		if out.Finished {
			done = true
			break loop
		}
	}
	if !done {
		return errTickBudget
	}
	log.Printf("log filled: %d records", len(eng.Records()))

	fname := filepath.Join(odir, fmt.Sprintf("fdr_%03d.000.raw", runnbr))
	f, err := os.Create(fname)
	if err != nil {
		return fmt.Errorf("could not create session file %q: %w", fname, err)
	}
	defer f.Close()

	ses := evlog.SessionFrom(eng, runnbr)
	err = evlog.NewEncoder(f).Encode(&ses)
	if err != nil {
		return fmt.Errorf("could not encode session to %q: %w", fname, err)
	}

	err = f.Close()
	if err != nil {
		return fmt.Errorf("could not close session file %q: %w", fname, err)
	}

	log.Printf("wrote %q", fname)
	return nil
}

func engine(capacity int, capture evlog.CaptureMask, trigger evlog.TriggerMask, preset, dbname string) (*evlog.Engine, error) {
	if preset == "" {
		return evlog.New(capacity,
			evlog.WithCaptureMask(capture),
			evlog.WithTriggerMask(trigger),
		)
	}

	db, err := conddb.Open(dbname)
	if err != nil {
		return nil, fmt.Errorf("could not open conddb: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg, err := db.PresetConfig(ctx, preset)
	if err != nil {
		return nil, fmt.Errorf("could not get preset %q: %w", preset, err)
	}
	log.Printf("using %v", cfg)

	return cfg.Engine()
}
