// Copyright 2023 The go-canfd Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command fdr-ctl supervises a flight-recorder acquisition process and
// watches its session files for stalls: a file that stops growing is
// reported by mail, and an acquisition whose files stay stalled is
// killed so the DAQ can restart it.
package main // import "github.com/go-canfd/fdr/cmd/fdr-ctl"

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	mail "gopkg.in/gomail.v2"
)

func main() {
	var (
		name = flag.String("cmd", "fdr-daq", "command to run")
		addr = flag.String("addr", ":8866", "[ip]:port to listen on")
		dir  = flag.String("dir", "", "directory to monitor")
		freq = flag.Duration("freq", 30*time.Second, "probing interval")
	)

	flag.Parse()

	log.SetPrefix("fdr-ctl: ")
	log.SetFlags(0)

	run(*name, *addr, *dir, *freq)
}

func run(name, addr, dir string, freq time.Duration) {
	srv, err := newServer(addr, dir, freq)
	if err != nil {
		log.Fatalf("could not create server: %+v", err)
	}
	log.Printf("running fdr-ctl server on %q...", addr)
	srv.run(name)
}

type server struct {
	conn net.Listener
	cmd  *exec.Cmd
	buf  *bytes.Buffer

	watch *watcher
}

func newServer(addr, dir string, freq time.Duration) (*server, error) {
	srv, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("could not listen on %q: %w", addr, err)
	}
	return &server{
		conn:  srv,
		buf:   new(bytes.Buffer),
		watch: &watcher{dir: dir, freq: freq},
	}, nil
}

func (srv *server) run(name string) {
	defer srv.conn.Close()

	for {
		conn, err := srv.conn.Accept()
		if err != nil {
			log.Printf("could not accept connection: %+v", err)
		}
		go srv.handle(conn, name)
	}
}

func (srv *server) handle(conn net.Conn, name string) {
	defer conn.Close()
	done := make(chan int)
	defer close(done)

	for {
		var (
			req Request
			err = json.NewDecoder(conn).Decode(&req)
		)
		if err != nil {
			log.Printf("could not decode command: %+v", err)
			return
		}
		switch req.Name {
		case "start":
			log.Printf("starting command... %s %v", name, req.Args)
			srv.buf.Reset()
			srv.cmd = exec.Command(name, req.Args...)
			srv.cmd.Stdout = os.Stdout
			srv.cmd.Stderr = io.MultiWriter(os.Stderr, srv.buf)
			err = srv.cmd.Start()
			if err != nil {
				log.Printf("could not start %s %s: %+v",
					srv.cmd.Path,
					strings.Join(srv.cmd.Args, " "),
					err,
				)
				_ = json.NewEncoder(conn).Encode(Reply{Err: err.Error()})
				return
			}
			err = srv.checkCmdStatus()
			if err != nil {
				_ = srv.cmd.Process.Kill()
				log.Printf("command not in proper state: %+v", err)
				_ = json.NewEncoder(conn).Encode(Reply{Err: err.Error()})
				return
			}
			_ = json.NewEncoder(conn).Encode(Reply{Msg: "ok"})
			log.Printf("starting command... [done]")

			go srv.monitor(runFrom(req.Args), done)

		case "stop":
			log.Printf("stopping command...")
			// make sure the process is eventually reaped by PID-1
			go func() { _ = srv.cmd.Wait() }()
			err = srv.cmd.Process.Signal(os.Interrupt)
			if err != nil {
				log.Printf("could not stop %s %s: %+v",
					srv.cmd.Path,
					strings.Join(srv.cmd.Args, " "),
					err,
				)
				_ = json.NewEncoder(conn).Encode(Reply{Err: err.Error()})
				return
			}
			_ = json.NewEncoder(conn).Encode(Reply{Msg: "ok"})
			log.Printf("stopping command... [done]")
			return

		default:
			log.Printf("unknown command %q", req.Name)
			_ = json.NewEncoder(conn).Encode(Reply{Err: "unknown command"})
		}
	}
}

type Request struct {
	Name string   `json:"cmd"`
	Args []string `json:"args"`
}

type Reply struct {
	Msg string `json:"msg"`
	Err string `json:"err,omitempty"`
}

// runFrom extracts the run number from the acquisition command line.
func runFrom(args []string) string {
	for i, arg := range args {
		if arg == "-run" && i+1 < len(args) {
			return args[i+1]
		}
		if strings.HasPrefix(arg, "-run=") {
			return strings.TrimPrefix(arg, "-run=")
		}
	}
	return ""
}

func (srv *server) checkCmdStatus() error {
	var (
		timeout = 10 * time.Second
		timer   = time.NewTimer(timeout)
	)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			return fmt.Errorf(
				"could not assess command status before timeout (%v)",
				timeout,
			)
		default:
			buf := srv.buf.Bytes()
			buf = bytes.TrimSpace(buf)
			buf = bytes.TrimRight(buf, "\r\n")
			if bytes.HasSuffix(buf, []byte("recorder armed")) {
				return nil
			}
			time.Sleep(1 * time.Second)
		}
	}
}

// maxStalls is the number of consecutive stalled probes after which
// the acquisition is considered wedged and killed.
const maxStalls = 5

func (srv *server) monitor(run string, quit chan int) {
	srv.watch.reset(run)

	tick := time.NewTicker(srv.watch.freq)
	defer tick.Stop()

	for {
		select {
		case <-quit:
			return
		case <-tick.C:
			stalled, err := srv.watch.scan()
			if err != nil {
				log.Printf("could not probe session files: %+v", err)
				continue
			}
			for fname, n := range stalled {
				srv.alert(fname, n)
				if n == maxStalls {
					log.Printf("killing wedged acquisition (file %q stalled %d times)...",
						fname, n,
					)
					_ = srv.cmd.Process.Kill()
				}
			}
		}
	}
}

func (srv *server) alert(fname string, stalls int) {
	size := srv.watch.files[fname].size
	log.Printf("file %q didn't grow in the last %v (size=%d bytes, stalls=%d)",
		fname, srv.watch.freq, size, stalls,
	)
	srv.alertMail(fname, size)
}

// watcher follows the sizes of one run's session files across probes,
// counting how many consecutive probes each file went without growing.
type watcher struct {
	dir  string
	freq time.Duration

	run   string
	files map[string]*fileState
}

type fileState struct {
	size   int64
	stalls int
}

func (w *watcher) reset(run string) {
	w.run = run
	w.files = make(map[string]*fileState)
}

// scan stats the run's session files and returns the stalled ones with
// their consecutive-stall count. A file that grows again drops out of
// the stalled set and its count restarts from zero.
func (w *watcher) scan() (map[string]int, error) {
	glob := filepath.Join(w.dir, "fdr_*"+w.run+"*raw")
	files, err := filepath.Glob(glob)
	if err != nil {
		return nil, fmt.Errorf("could not glob %q: %w", glob, err)
	}

	stalled := make(map[string]int)
	for _, fname := range files {
		fi, err := os.Stat(fname)
		if err != nil {
			return nil, fmt.Errorf("could not stat %q: %w", fname, err)
		}
		st, ok := w.files[fname]
		if !ok {
			// file just appeared.
			// nothing to compare against.
			w.files[fname] = &fileState{size: fi.Size()}
			continue
		}
		switch size := fi.Size(); {
		case size > st.size:
			st.size = size
			st.stalls = 0
		default:
			st.stalls++
			stalled[fname] = st.stalls
		}
	}
	return stalled, nil
}

var (
	alertMailUsr  = os.Getenv("MAIL_USERNAME")
	alertMailPwd  = os.Getenv("MAIL_PASSWORD")
	alertMailSrv  = os.Getenv("MAIL_SERVER")
	alertMailPort = atoi(os.Getenv("MAIL_PORT"))
	alertMailTgts = strings.Split(os.Getenv("MAIL_TGTS"), ",")
)

func (srv *server) alertMail(fname string, size int64) {
	if alertMailUsr == "" || alertMailPwd == "" ||
		alertMailSrv == "" || alertMailPort == 0 ||
		len(alertMailTgts) == 0 {
		log.Printf("could not send mail alert: missing credentials")
		return
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", alertMailUsr)
	msg.SetHeader("Bcc", alertMailTgts...)
	msg.SetHeader("Subject", fmt.Sprintf("[fdr-ctl] file alert: %q", fname))
	msg.SetBody("text/plain", fmt.Sprintf("file: %q\nsize: %d bytes\nfreq: %v",
		fname, size, srv.watch.freq,
	))

	dial := mail.NewDialer(alertMailSrv, alertMailPort, alertMailUsr, alertMailPwd)
	dial.TLSConfig = &tls.Config{
		InsecureSkipVerify: true,
	}
	err := dial.DialAndSend(msg)
	if err != nil {
		log.Printf("could not send mail alert: %+v", err)
	}
}

func atoi(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}
