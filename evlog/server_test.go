// Copyright 2023 The go-canfd Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evlog

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
)

type scriptSource struct {
	i   int
	seq []Status
}

func (src *scriptSource) Next() Status {
	if src.i >= len(src.seq) {
		return Status{}
	}
	st := src.seq[src.i]
	src.i++
	return st
}

func TestServer(t *testing.T) {
	tmp, err := os.MkdirTemp("", "fdr-svc-")
	if err != nil {
		t.Fatalf("could not create tmp dir: %+v", err)
	}
	defer os.RemoveAll(tmp)

	src := &scriptSource{seq: []Status{
		{},
		{SOF: true, Time: 1},
		{Error: true, ErrKind: ErrCRC, SyncEdge: true, Segment: SegTSeg1, Time: 2},
	}}

	srv, err := newServer("127.0.0.1:0", src)
	if err != nil {
		t.Fatalf("could not create server: %+v", err)
	}
	go srv.serve()
	defer srv.close()

	conn, err := net.Dial("tcp", srv.ctl.Addr().String())
	if err != nil {
		t.Fatalf("could not dial server: %+v", err)
	}
	defer conn.Close()

	var (
		enc = json.NewEncoder(conn)
		dec = json.NewDecoder(conn)
	)

	send := func(name, args string) (string, json.RawMessage) {
		t.Helper()
		req := fmt.Sprintf(`{"name": %q, "args": %s}`, name, args)
		if args == "" {
			req = fmt.Sprintf(`{"name": %q}`, name)
		}
		err := enc.Encode(json.RawMessage(req))
		if err != nil {
			t.Fatalf("could not send %q: %+v", name, err)
		}
		var rep struct {
			Msg  string          `json:"msg"`
			Data json.RawMessage `json:"data"`
		}
		err = dec.Decode(&rep)
		if err != nil {
			t.Fatalf("could not receive %q reply: %+v", name, err)
		}
		return rep.Msg, rep.Data
	}

	status := func(raw json.RawMessage) engineStatus {
		t.Helper()
		var st engineStatus
		err := json.Unmarshal(raw, &st)
		if err != nil {
			t.Fatalf("could not decode status payload: %+v", err)
		}
		return st
	}

	// commands before configure are rejected.
	if msg, _ := send("start", ""); msg == "ok" {
		t.Fatalf("start before configure: got=%q, want an error", msg)
	}

	msg, _ := send("configure", fmt.Sprintf(
		`{"capacity": 8, "capture": %d, "trigger": %d}`,
		CaptureAll, TriggerAny,
	))
	if msg != "ok" {
		t.Fatalf("configure: got=%q, want=%q", msg, "ok")
	}

	msg, data := send("start", "")
	if msg != "ok" {
		t.Fatalf("start: got=%q, want=%q", msg, "ok")
	}
	if got, want := status(data).State, "ready"; got != want {
		t.Fatalf("state after start: got=%q, want=%q", got, want)
	}

	// tick through the trigger, the double edge and both harvests.
	msg, data = send("step", `{"n": 4}`)
	if msg != "ok" {
		t.Fatalf("step: got=%q, want=%q", msg, "ok")
	}
	st := status(data)
	if got, want := st.State, "running"; got != want {
		t.Fatalf("state after step: got=%q, want=%q", got, want)
	}
	if got, want := st.WritePtr, uint32(2); got != want {
		t.Fatalf("write pointer after step: got=%d, want=%d", got, want)
	}

	msg, data = send("abort", "")
	if msg != "ok" {
		t.Fatalf("abort: got=%q, want=%q", msg, "ok")
	}
	if got, want := status(data).State, "config"; got != want {
		t.Fatalf("state after abort: got=%q, want=%q", got, want)
	}

	msg, data = send("read", "")
	if msg != "ok" {
		t.Fatalf("read: got=%q, want=%q", msg, "ok")
	}
	st = status(data)
	if got, want := st.ReadPtr, uint32(1); got != want {
		t.Fatalf("read pointer: got=%d, want=%d", got, want)
	}
	if st.Record == nil {
		t.Fatalf("read reply carries no record")
	}
	if got, want := st.Record.Name, "sync-edge"; got != want {
		t.Fatalf("record name: got=%q, want=%q", got, want)
	}
	if got, want := st.Record.Time, uint64(2); got != want {
		t.Fatalf("record time: got=%d, want=%d", got, want)
	}

	fname := filepath.Join(tmp, "run7.fdr")
	msg, _ = send("dump", fmt.Sprintf(`{"file": %q, "run": 7}`, fname))
	if msg != "ok" {
		t.Fatalf("dump: got=%q, want=%q", msg, "ok")
	}

	if msg, _ := send("stop", ""); msg != "ok" {
		t.Fatalf("stop: got=%q, want=%q", msg, "ok")
	}

	f, err := os.Open(fname)
	if err != nil {
		t.Fatalf("could not open dump file: %+v", err)
	}
	defer f.Close()

	var ses Session
	err = NewDecoder(f).Decode(&ses)
	if err != nil {
		t.Fatalf("could not decode dump file: %+v", err)
	}
	if got, want := ses.Run, uint32(7); got != want {
		t.Fatalf("run number: got=%d, want=%d", got, want)
	}
	if got, want := len(ses.Records), 2; got != want {
		t.Fatalf("records: got=%d, want=%d", got, want)
	}
	if got, want := ses.Records[0].Kind, KindError; got != want {
		t.Fatalf("record 0 kind: got=%v, want=%v", got, want)
	}
	if got, want := ses.Records[1].Kind, KindSyncEdge; got != want {
		t.Fatalf("record 1 kind: got=%v, want=%v", got, want)
	}
}

func TestServerPartialRequests(t *testing.T) {
	srv, err := newServer("127.0.0.1:0", &scriptSource{})
	if err != nil {
		t.Fatalf("could not create server: %+v", err)
	}
	go srv.serve()
	defer srv.close()

	conn, err := net.Dial("tcp", srv.ctl.Addr().String())
	if err != nil {
		t.Fatalf("could not dial server: %+v", err)
	}
	defer conn.Close()

	var (
		enc = json.NewEncoder(conn)
		dec = json.NewDecoder(conn)
	)

	send := func(req string) string {
		t.Helper()
		err := enc.Encode(json.RawMessage(req))
		if err != nil {
			t.Fatalf("could not send request %s: %+v", req, err)
		}
		var rep struct {
			Msg string `json:"msg"`
		}
		err = dec.Decode(&rep)
		if err != nil {
			t.Fatalf("could not receive reply for %s: %+v", req, err)
		}
		return rep.Msg
	}

	// a request with the arguments omitted is an error, not a crash.
	if msg, want := send(`{"name": "configure"}`), `missing "configure" arguments`; msg != want {
		t.Fatalf("args-less configure: got=%q, want=%q", msg, want)
	}

	// command names are case-insensitive, including for the
	// not-yet-configured guard.
	if msg := send(`{"name": "Configure", "args": {"capacity": 4}}`); msg != "ok" {
		t.Fatalf("mixed-case configure: got=%q, want=%q", msg, "ok")
	}

	if msg, want := send(`{"name": "dump"}`), `missing "dump" arguments`; msg != want {
		t.Fatalf("args-less dump: got=%q, want=%q", msg, want)
	}

	// step without arguments advances by a single tick.
	if msg := send(`{"name": "step"}`); msg != "ok" {
		t.Fatalf("args-less step: got=%q, want=%q", msg, "ok")
	}

	if msg := send(`{"name": "stop"}`); msg != "ok" {
		t.Fatalf("stop: got=%q, want=%q", msg, "ok")
	}
}
