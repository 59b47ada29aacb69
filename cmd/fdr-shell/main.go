// Copyright 2023 The go-canfd Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command fdr-shell is an interactive shell speaking the JSON control
// protocol of a flight-recorder service.
//
// Example:
//
//	$> fdr-shell -addr :8876
//	fdr> configure 64 0x1fffff 0xffff
//	fdr> start
//	fdr> step 5000
//	fdr> dump run1.raw 1
//	fdr> quit
package main // import "github.com/go-canfd/fdr/cmd/fdr-shell"

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/peterh/liner"
)

func main() {
	addr := flag.String("addr", ":8876", "[address]:port of the fdr control service")

	log.SetPrefix("fdr-shell: ")
	log.SetFlags(0)

	flag.Parse()

	err := run(*addr, os.Stdout)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(addr string, w io.Writer) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("could not dial fdr service %q: %w", addr, err)
	}
	defer conn.Close()

	sh := &shell{
		conn: conn,
		enc:  json.NewEncoder(conn),
		dec:  json.NewDecoder(conn),
		w:    w,
	}

	term := liner.NewLiner()
	defer term.Close()
	term.SetCtrlCAborts(true)

loop:
	for {
		line, err := term.Prompt("fdr> ")
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				fmt.Fprintf(w, "\n")
				break loop
			}
			return fmt.Errorf("could not read line: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		term.AppendHistory(line)

		quit, err := sh.exec(line)
		if err != nil {
			fmt.Fprintf(w, "error: %+v\n", err)
			continue
		}
		if quit {
			break loop
		}
	}

	return nil
}

type shell struct {
	conn net.Conn
	enc  *json.Encoder
	dec  *json.Decoder
	w    io.Writer
}

func (sh *shell) exec(line string) (bool, error) {
	toks := strings.Fields(line)
	args := toks[1:]

	switch toks[0] {
	case "help":
		fmt.Fprintf(sh.w, `commands:
  configure CAPACITY [CAPTURE [TRIGGER]]
  start
  abort
  step [N]
  read [down]
  status
  dump FILE [RUN]
  stop
  quit
`)
		return false, nil

	case "configure":
		if len(args) < 1 || len(args) > 3 {
			return false, fmt.Errorf("usage: configure CAPACITY [CAPTURE [TRIGGER]]")
		}
		var (
			capacity uint64
			capture  uint64 = 1<<21 - 1
			trigger  uint64 = 1<<16 - 1
			err      error
		)
		capacity, err = strconv.ParseUint(args[0], 0, 16)
		if err != nil {
			return false, fmt.Errorf("invalid capacity %q: %w", args[0], err)
		}
		if len(args) > 1 {
			capture, err = strconv.ParseUint(args[1], 0, 32)
			if err != nil {
				return false, fmt.Errorf("invalid capture mask %q: %w", args[1], err)
			}
		}
		if len(args) > 2 {
			trigger, err = strconv.ParseUint(args[2], 0, 16)
			if err != nil {
				return false, fmt.Errorf("invalid trigger mask %q: %w", args[2], err)
			}
		}
		return false, sh.send("configure", map[string]interface{}{
			"capacity": capacity,
			"capture":  capture,
			"trigger":  trigger,
		})

	case "start", "abort", "status":
		return false, sh.send(toks[0], nil)

	case "step":
		n := 1
		if len(args) > 0 {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return false, fmt.Errorf("invalid tick count %q: %w", args[0], err)
			}
			n = v
		}
		return false, sh.send("step", map[string]interface{}{"n": n})

	case "read":
		down := len(args) > 0 && args[0] == "down"
		return false, sh.send("read", map[string]interface{}{"down": down})

	case "dump":
		if len(args) < 1 || len(args) > 2 {
			return false, fmt.Errorf("usage: dump FILE [RUN]")
		}
		run := uint64(0)
		if len(args) > 1 {
			v, err := strconv.ParseUint(args[1], 0, 32)
			if err != nil {
				return false, fmt.Errorf("invalid run number %q: %w", args[1], err)
			}
			run = v
		}
		return false, sh.send("dump", map[string]interface{}{
			"file": args[0],
			"run":  run,
		})

	case "stop":
		return true, sh.send("stop", nil)

	case "quit", "exit":
		return true, nil

	default:
		return false, fmt.Errorf("unknown command %q (try \"help\")", toks[0])
	}
}

func (sh *shell) send(name string, args interface{}) error {
	req := struct {
		Name string      `json:"name"`
		Args interface{} `json:"args,omitempty"`
	}{Name: name, Args: args}

	err := sh.enc.Encode(req)
	if err != nil {
		return fmt.Errorf("could not send %q request: %w", name, err)
	}

	var rep struct {
		Msg  string          `json:"msg"`
		Data json.RawMessage `json:"data"`
	}
	err = sh.dec.Decode(&rep)
	if err != nil {
		return fmt.Errorf("could not receive %q reply: %w", name, err)
	}

	if rep.Msg != "ok" {
		return fmt.Errorf("%s", rep.Msg)
	}

	fmt.Fprintf(sh.w, "ok\n")
	if len(rep.Data) > 0 {
		fmt.Fprintf(sh.w, "%s\n", rep.Data)
	}
	return nil
}
