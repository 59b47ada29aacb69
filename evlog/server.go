// Copyright 2023 The go-canfd Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"
)

// server drives an event-logger engine on behalf of a remote host: it
// owns the engine and its status source and exposes the command pulses
// and the read path over a line of JSON requests.
type server struct {
	ctl net.Listener

	msg *log.Logger
	src StatusSource

	opts []Option
	eng  *Engine
}

// Serve accepts logger control sessions on addr, feeding the engine
// from src.
func Serve(addr string, src StatusSource, opts ...Option) error {
	srv, err := newServer(addr, src, opts...)
	if err != nil {
		return fmt.Errorf("could not create fdr server: %w", err)
	}
	return srv.serve()
}

func newServer(addr string, src StatusSource, opts ...Option) (*server, error) {
	ctl, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("could not create fdr-ctl server on %q: %w", addr, err)
	}

	srv := &server{
		ctl:  ctl,
		msg:  log.New(os.Stdout, "fdr-svc: ", 0),
		src:  src,
		opts: opts,
	}
	return srv, nil
}

func (srv *server) serve() error {
	defer srv.close()

	for {
		conn, err := srv.ctl.Accept()
		if err != nil {
			return fmt.Errorf("could not accept connection: %w", err)
		}

		err = srv.handle(conn)
		if err != nil {
			srv.msg.Printf("could not run logger session: %+v", err)
			continue
		}
	}
}

// tick advances the engine by one step, pairing the command pulses with
// the status snapshot of that tick.
func (srv *server) tick(cmd Command) Output {
	return srv.eng.Tick(Input{Status: srv.src.Next(), Cmd: cmd})
}

// step advances the engine by n command-free ticks and reports whether
// the log filled along the way.
func (srv *server) step(n int) (Output, bool) {
	var (
		out  Output
		done bool
	)
	for i := 0; i < n; i++ {
		out = srv.tick(0)
		if out.Finished {
			done = true
		}
	}
	return out, done
}

func (srv *server) handle(conn net.Conn) error {
	defer conn.Close()
	srv.msg.Printf("serving %v...", conn.RemoteAddr())
	defer srv.msg.Printf("serving %v... [done]", conn.RemoteAddr())

	srv.eng = nil

loop:
	for {
		var req struct {
			Name string           `json:"name"`
			Args *json.RawMessage `json:"args"`
		}

		err := json.NewDecoder(conn).Decode(&req)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break loop
			}
			// the stream decoder cannot resync after a syntax error.
			srv.reply(conn, err, nil)
			return fmt.Errorf("could not decode command request: %w", err)
		}
		srv.msg.Printf("received request: name=%q", req.Name)

		name := strings.ToLower(req.Name)
		if srv.eng == nil && name != "configure" {
			srv.reply(conn, fmt.Errorf("logger not configured"), nil)
			continue
		}

		switch name {
		case "configure":
			if req.Args == nil {
				srv.reply(conn, fmt.Errorf("missing %q arguments", name), nil)
				continue
			}
			var args struct {
				Capacity int    `json:"capacity"`
				Capture  uint32 `json:"capture"`
				Trigger  uint16 `json:"trigger"`
			}
			err = json.Unmarshal(*req.Args, &args)
			if err != nil {
				srv.msg.Printf("could not decode %q payload: %+v", req.Name, err)
				srv.reply(conn, err, nil)
				continue
			}

			opts := []Option{
				WithCaptureMask(CaptureMask(args.Capture)),
				WithTriggerMask(TriggerMask(args.Trigger)),
			}
			opts = append(opts, srv.opts...)

			eng, err := New(args.Capacity, opts...)
			if err != nil {
				srv.msg.Printf("could not configure logger: %+v", err)
				srv.reply(conn, err, nil)
				continue
			}
			srv.eng = eng
			srv.reply(conn, nil, nil)

		case "start":
			out := srv.tick(CmdStart)
			srv.reply(conn, nil, statusOf(out))

		case "abort":
			out := srv.tick(CmdAbort)
			srv.reply(conn, nil, statusOf(out))

		case "step":
			var args struct {
				N int `json:"n"`
			}
			if req.Args != nil {
				err = json.Unmarshal(*req.Args, &args)
				if err != nil {
					srv.msg.Printf("could not decode %q payload: %+v", req.Name, err)
					srv.reply(conn, err, nil)
					continue
				}
			}
			if args.N <= 0 {
				args.N = 1
			}
			out, done := srv.step(args.N)
			st := statusOf(out)
			st.Finished = done
			srv.reply(conn, nil, st)

		case "read":
			// expose both pointer commands, quirk included.
			var args struct {
				Down bool `json:"down"`
			}
			if req.Args != nil {
				err = json.Unmarshal(*req.Args, &args)
				if err != nil {
					srv.msg.Printf("could not decode %q payload: %+v", req.Name, err)
					srv.reply(conn, err, nil)
					continue
				}
			}
			cmd := CmdReadUp
			if args.Down {
				cmd = CmdReadDown
			}
			out := srv.tick(cmd)
			st := statusOf(out)
			st.Record = &recordStatus{
				Kind: uint8(out.Record.Kind),
				Name: out.Record.Kind.String(),
				Num:  out.Record.Num,
				Add:  out.Record.Add,
				Aux:  out.Record.Aux,
				Time: out.Record.Time,
			}
			srv.reply(conn, nil, st)

		case "status":
			out := srv.tick(0)
			srv.reply(conn, nil, statusOf(out))

		case "dump":
			if req.Args == nil {
				srv.reply(conn, fmt.Errorf("missing %q arguments", name), nil)
				continue
			}
			var args struct {
				File string `json:"file"`
				Run  uint32 `json:"run"`
			}
			err = json.Unmarshal(*req.Args, &args)
			if err != nil {
				srv.msg.Printf("could not decode %q payload: %+v", req.Name, err)
				srv.reply(conn, err, nil)
				continue
			}

			err = srv.dump(args.File, args.Run)
			if err != nil {
				srv.msg.Printf("could not dump session: %+v", err)
			}
			srv.reply(conn, err, nil)

		case "stop":
			srv.reply(conn, nil, nil)
			break loop

		default:
			srv.msg.Printf("unknown command name=%q", req.Name)
			err = fmt.Errorf("unknown command %q", req.Name)
			srv.reply(conn, err, nil)
			continue
		}
	}

	return nil
}

func (srv *server) dump(fname string, run uint32) error {
	if srv.eng.State() != Config {
		return fmt.Errorf("logger not in config state (state=%v)", srv.eng.State())
	}

	f, err := os.Create(fname)
	if err != nil {
		return fmt.Errorf("could not create session file %q: %w", fname, err)
	}
	defer f.Close()

	ses := SessionFrom(srv.eng, run)
	err = NewEncoder(f).Encode(&ses)
	if err != nil {
		return fmt.Errorf("could not encode session to %q: %w", fname, err)
	}

	err = f.Close()
	if err != nil {
		return fmt.Errorf("could not close session file %q: %w", fname, err)
	}
	return nil
}

type recordStatus struct {
	Kind uint8  `json:"kind"`
	Name string `json:"name"`
	Num  uint8  `json:"num"`
	Add  uint8  `json:"add"`
	Aux  uint8  `json:"aux"`
	Time uint64 `json:"time"`
}

type engineStatus struct {
	State    string        `json:"state"`
	Finished bool          `json:"finished"`
	WritePtr uint32        `json:"wr"`
	ReadPtr  uint32        `json:"rd"`
	Capacity uint32        `json:"capacity"`
	Record   *recordStatus `json:"record,omitempty"`
}

func statusOf(out Output) *engineStatus {
	return &engineStatus{
		State:    out.State.String(),
		Finished: out.Finished,
		WritePtr: out.WritePtr,
		ReadPtr:  out.ReadPtr,
		Capacity: out.Capacity,
	}
}

func (srv *server) reply(conn net.Conn, err error, data interface{}) {
	rep := struct {
		Msg  string      `json:"msg"`
		Data interface{} `json:"data,omitempty"`
	}{Msg: "ok", Data: data}
	if err != nil {
		rep.Msg = fmt.Sprintf("%+v", err)
	}

	_ = json.NewEncoder(conn).Encode(rep)
}

func (srv *server) close() {
	_ = srv.ctl.Close()
}
