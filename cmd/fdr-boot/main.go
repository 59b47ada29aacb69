// Copyright 2023 The go-canfd Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command fdr-boot (re)starts the flight-recorder daemons and keeps
// them alive: a daemon that exits on its own is restarted a bounded
// number of times before the boot gives up.
package main // import "github.com/go-canfd/fdr/cmd/fdr-boot"

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/sbinet/pmon"
	"golang.org/x/sync/errgroup"
)

// proc describes one daemon to boot. The command is rebuilt from the
// description on every (re)start attempt.
type proc struct {
	name string
	args []string
}

var (
	procs = []proc{
		{name: "fdr-srv"},
		{name: "fdr-ctl"},
	}
	dir = os.Getenv("FDRLOGDIR")

	doMon   = flag.Bool("pmon", false, "enable pmon monitoring")
	doFreq  = flag.Duration("freq", 1*time.Second, "pmon frequency")
	doRetry = flag.Int("retry", 2, "restart attempts for a failing daemon")

	stop = make(chan os.Signal, 1)
)

func main() {
	flag.Parse()

	log.SetPrefix("fdr-boot: ")
	log.SetFlags(0)

	err := run(*doMon, *doFreq, *doRetry, procs, dir, stop)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(doMon bool, freq time.Duration, retries int, procs []proc, dir string, stop chan os.Signal) error {
	signal.Notify(stop, os.Interrupt)
	defer signal.Stop(stop)

	for _, p := range procs {
		name := filepath.Base(p.name)
		kill := exec.Command("killall", name)
		kill.Stderr = os.Stderr
		kill.Stdout = os.Stdout
		err := kill.Run()
		if err != nil {
			log.Printf("could not kill %q: %+v", name, err)
		}
	}

	if dir == "" {
		dir = "/var/log/fdr"
	}

	var (
		grp  errgroup.Group
		kill = make(chan int)
	)
	for i := range procs {
		p := procs[i]
		grp.Go(func() error {
			return start(p, dir, kill, doMon, freq, retries)
		})
	}

	go func() {
		<-stop
		close(kill)
	}()

	err := grp.Wait()
	if err != nil {
		return fmt.Errorf("could not boot flight-recorder daemons: %w", err)
	}
	return nil
}

// start runs daemon p, restarting it after a failed exit until the
// retry allowance runs out. A kill request or a clean exit ends the
// supervision.
func start(p proc, dir string, kill chan int, doMon bool, freq time.Duration, retries int) error {
	var err error
	for i := 0; i <= retries; i++ {
		if i > 0 {
			log.Printf("restarting %q (attempt %d/%d)...", p.name, i, retries)
		}
		var killed bool
		killed, err = startOnce(p, dir, kill, doMon, freq)
		if killed {
			return err
		}
		if err == nil {
			return nil
		}
		log.Printf("daemon %q exited: %+v", p.name, err)
	}
	return fmt.Errorf("could not keep %q alive: %w", p.name, err)
}

func startOnce(p proc, dir string, kill chan int, doMon bool, freq time.Duration) (killed bool, err error) {
	name := filepath.Base(p.name)
	out, err := os.OpenFile(
		filepath.Join(dir, name+".log"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644,
	)
	if err != nil {
		return false, fmt.Errorf("could not create output log file for %q: %w", name, err)
	}
	defer out.Close()

	cmd := exec.Command(p.name, p.args...)
	cmd.Stdout = out
	cmd.Stderr = out

	log.Printf("starting %q...", name)
	err = cmd.Start()
	if err != nil {
		return false, fmt.Errorf("could not start %q: %w", name, err)
	}

	if doMon {
		p, err := pmon.Monitor(cmd.Process.Pid)
		if err != nil {
			return false, fmt.Errorf("could not start monitoring %q (pid=%d): %w", name, cmd.Process.Pid, err)
		}
		f, err := os.Create(filepath.Join(dir, name+"-pmon.log"))
		if err != nil {
			return false, fmt.Errorf("could not create pmon log file for command %q: %w", name, err)
		}
		defer f.Close()
		p.W = f
		p.Freq = freq

		go func() {
			log.Printf("run pmon %q...", name)
			err := p.Run()
			if err != nil {
				log.Printf("could not start monitoring %q: %+v", name, err)
			}
		}()

		defer func() {
			err := p.Kill()
			if err != nil {
				log.Printf("could not stop monitoring %q: %+v", name, err)
			}
		}()
	}

	errch := make(chan error)
	go func() {
		errch <- cmd.Wait()
	}()

	select {
	case <-kill:
		err = cmd.Process.Kill()
		if err != nil {
			return true, fmt.Errorf("could not kill %q: %+v", name, err)
		}
		return true, nil
	case err = <-errch:
		if err != nil {
			return false, fmt.Errorf("could not run %q: %w", name, err)
		}
	}

	return false, nil
}
