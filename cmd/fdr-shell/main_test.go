// Copyright 2023 The go-canfd Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"net"
	"strings"
	"testing"
)

func TestExecParse(t *testing.T) {
	sh := &shell{w: new(strings.Builder)}

	for _, tc := range []struct {
		line string
		err  string
	}{
		{line: "help"},
		{line: "quit"},
		{line: "exit"},
		{line: "frobnicate", err: `unknown command "frobnicate" (try "help")`},
		{line: "configure", err: "usage: configure CAPACITY [CAPTURE [TRIGGER]]"},
		{line: "configure 1 2 3 4", err: "usage: configure CAPACITY [CAPTURE [TRIGGER]]"},
		{line: "dump", err: "usage: dump FILE [RUN]"},
	} {
		t.Run(tc.line, func(t *testing.T) {
			_, err := sh.exec(tc.line)
			switch {
			case tc.err != "":
				if err == nil {
					t.Fatalf("expected an error")
				}
				if got, want := err.Error(), tc.err; got != want {
					t.Fatalf("invalid error:\ngot= %s\nwant=%s", got, want)
				}
			case err != nil:
				t.Fatalf("unexpected error: %+v", err)
			}
		})
	}
}

func TestExecSend(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("could not create fake fdr service: %+v", err)
	}
	defer lis.Close()

	go func() {
		conn, err := lis.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		dec := json.NewDecoder(conn)
		enc := json.NewEncoder(conn)
		for {
			var req struct {
				Name string          `json:"name"`
				Args json.RawMessage `json:"args"`
			}
			if dec.Decode(&req) != nil {
				return
			}
			rep := map[string]interface{}{"msg": "ok"}
			switch req.Name {
			case "status":
				rep["data"] = map[string]interface{}{"state": "config"}
			case "configure":
				var args struct {
					Capacity int `json:"capacity"`
				}
				_ = json.Unmarshal(req.Args, &args)
				if args.Capacity != 64 {
					rep["msg"] = "unexpected capacity"
				}
			}
			if enc.Encode(rep) != nil {
				return
			}
		}
	}()

	conn, err := net.Dial("tcp", lis.Addr().String())
	if err != nil {
		t.Fatalf("could not dial fake fdr service: %+v", err)
	}
	defer conn.Close()

	out := new(strings.Builder)
	sh := &shell{
		conn: conn,
		enc:  json.NewEncoder(conn),
		dec:  json.NewDecoder(conn),
		w:    out,
	}

	for _, line := range []string{
		"configure 64 0x1fffff 0xffff",
		"start",
		"step 100",
		"read",
		"read down",
		"status",
	} {
		if _, err := sh.exec(line); err != nil {
			t.Fatalf("could not exec %q: %+v", line, err)
		}
	}

	if got := out.String(); !strings.Contains(got, `"state":"config"`) {
		t.Fatalf("status payload not echoed:\n%s", got)
	}
}
