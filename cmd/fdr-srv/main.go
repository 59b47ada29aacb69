// Copyright 2023 The go-canfd Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command fdr-srv exposes a flight recorder as a TDAQ server: the
// recorder is armed and drained through tdaq commands, and finished
// sessions are published on the /records output stream.
package main // import "github.com/go-canfd/fdr/cmd/fdr-srv"

import (
	"bytes"
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/go-canfd/fdr/evlog"
	"github.com/go-canfd/fdr/internal/busim"
	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"
)

func main() {
	cmd := flags.New()

	dev := recorder{
		seed:     1234,
		capacity: 256,
		capture:  evlog.CaptureAll,
		trigger:  evlog.TriggerAny,
	}

	srv := tdaq.New(cmd, os.Stdout)
	srv.CmdHandle("/config", dev.OnConfig)
	srv.CmdHandle("/init", dev.OnInit)
	srv.CmdHandle("/reset", dev.OnReset)
	srv.CmdHandle("/start", dev.OnStart)
	srv.CmdHandle("/stop", dev.OnStop)
	srv.CmdHandle("/quit", dev.OnQuit)

	srv.OutputHandle("/records", dev.records)

	srv.RunHandle(dev.run)

	err := srv.Run(context.Background())
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}

type recorder struct {
	seed     int64
	capacity int
	capture  evlog.CaptureMask
	trigger  evlog.TriggerMask

	mu     sync.Mutex
	eng    *evlog.Engine
	sim    *busim.Sim
	runnbr uint32
	armed  bool

	data chan []byte
}

func (dev *recorder) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")
	return nil
}

func (dev *recorder) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")
	return dev.reset(ctx)
}

func (dev *recorder) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	return dev.reset(ctx)
}

func (dev *recorder) reset(ctx tdaq.Context) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	eng, err := evlog.New(dev.capacity,
		evlog.WithCaptureMask(dev.capture),
		evlog.WithTriggerMask(dev.trigger),
	)
	if err != nil {
		ctx.Msg.Errorf("could not create recorder engine: %+v", err)
		return err
	}

	dev.eng = eng
	dev.sim = busim.New(dev.seed)
	dev.data = make(chan []byte, 8)
	dev.armed = false
	return nil
}

func (dev *recorder) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")

	dev.mu.Lock()
	defer dev.mu.Unlock()

	dev.runnbr++
	out := dev.eng.Tick(evlog.Input{Status: dev.sim.Next(), Cmd: evlog.CmdStart})
	ctx.Msg.Infof("run %d armed (state=%v)", dev.runnbr, out.State)
	dev.armed = true
	return nil
}

func (dev *recorder) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /stop command...")

	dev.mu.Lock()
	defer dev.mu.Unlock()

	if !dev.armed {
		return nil
	}
	out := dev.eng.Tick(evlog.Input{Status: dev.sim.Next(), Cmd: evlog.CmdAbort})
	dev.armed = false
	ctx.Msg.Infof("run %d stopped (state=%v, records=%d)",
		dev.runnbr, out.State, len(dev.eng.Records()),
	)
	dev.publish()
	return nil
}

func (dev *recorder) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")
	return nil
}

func (dev *recorder) records(ctx tdaq.Context, dst *tdaq.Frame) error {
	select {
	case <-ctx.Ctx.Done():
		dst.Body = nil
		return nil
	case data := <-dev.data:
		dst.Body = data
	}
	return nil
}

// publish encodes the current session and queues it on the /records
// stream. Callers hold dev.mu.
func (dev *recorder) publish() {
	buf := new(bytes.Buffer)
	ses := evlog.SessionFrom(dev.eng, dev.runnbr)
	err := evlog.NewEncoder(buf).Encode(&ses)
	if err != nil {
		log.Printf("could not encode session for run %d: %+v", dev.runnbr, err)
		return
	}
	select {
	case dev.data <- buf.Bytes():
	default:
	}
}

func (dev *recorder) run(ctx tdaq.Context) error {
	for {
		select {
		case <-ctx.Ctx.Done():
			return nil
		default:
			dev.tick()
		}
	}
}

// tick advances the recorder by a batch of bus ticks.
func (dev *recorder) tick() {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if !dev.armed {
		time.Sleep(10 * time.Millisecond)
		return
	}

	for i := 0; i < 10000; i++ {
		out := dev.eng.Tick(evlog.Input{Status: dev.sim.Next()})
		if out.Finished {
			dev.armed = false
			dev.publish()
			return
		}
	}
}
