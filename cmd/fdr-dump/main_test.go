// Copyright 2023 The go-canfd Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-canfd/fdr/evlog"
)

func TestProcess(t *testing.T) {
	tmp, err := os.MkdirTemp("", "fdr-dump-")
	if err != nil {
		t.Fatalf("could not create tmp dir: %+v", err)
	}
	defer os.RemoveAll(tmp)

	for _, tc := range []struct {
		name string
		data evlog.Session
		want string
		err  error
	}{
		{
			name: "simple-session",
			data: evlog.Session{
				Version:  evlog.Version,
				Run:      42,
				Capacity: 8,
				Capture:  evlog.CaptureAll,
				Trigger:  evlog.TriggerAny,
				Records: []evlog.Record{
					{Kind: evlog.KindSOF, Time: 1846},
					{Kind: evlog.KindError, Num: evlog.ErrCRC, Time: 1851},
					{Kind: evlog.KindSyncEdge, Add: evlog.SegTSeg2, Time: 1870},
					{Kind: evlog.KindStuffed, Aux: 5, Time: 1881},
				},
			},
			want: `=== session run=42 ===
version:    1
capacity:   8
capture:  0x1fffff
trigger:  0xffff
records:    4
  [ 0] kind=sof        num=0x00 add=0x0 aux=0x0 time=1846
  [ 1] kind=error      num=0x04 add=0x0 aux=0x0 time=1851
  [ 2] kind=sync-edge  num=0x00 add=0x2 aux=0x0 time=1870
  [ 3] kind=stuffed    num=0x00 add=0x0 aux=0x5 time=1881
`,
		},
		{
			name: "empty-session",
			data: evlog.Session{
				Version:  evlog.Version,
				Run:      1,
				Capacity: 4,
				Capture:  evlog.CaptureOf(evlog.KindError),
				Trigger:  evlog.TrigError,
			},
			want: `=== session run=1 ===
version:    1
capacity:   4
capture:  0x000020
trigger:  0x0020
records:    0
`,
		},
		{
			name: "invalid-session",
			data: evlog.Session{},
			want: string([]byte{0x42, 0x42}),
			err: fmt.Errorf(
				"could not decode session: evlog: could not read session header marker (got=0x42)",
			),
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fname := filepath.Join(tmp, tc.name+".raw")
			f, err := os.Create(fname)
			if err != nil {
				t.Fatalf("could not create raw session file: %+v", err)
			}
			defer f.Close()

			switch {
			case tc.err == nil:
				err = evlog.NewEncoder(f).Encode(&tc.data)
				if err != nil {
					t.Fatalf("could not encode session: %+v", err)
				}
			default:
				_, err = f.Write([]byte(tc.want))
				if err != nil {
					t.Fatalf("could not write session file: %+v", err)
				}
			}

			err = f.Close()
			if err != nil {
				t.Fatalf("could not close raw session file: %+v", err)
			}

			out := new(strings.Builder)
			err = process(out, fname)
			switch {
			case err != nil && tc.err != nil:
				if got, want := err.Error(), tc.err.Error(); got != want {
					t.Fatalf("invalid error:\ngot= %v\nwant=%v\n", got, want)
				}
			case err != nil && tc.err == nil:
				t.Fatalf("could not fdr-dump: %+v", err)
			case err == nil && tc.err == nil:
				if got, want := out.String(), tc.want; got != want {
					t.Fatalf("invalid fdr-dump output:\ngot:\n%s\nwant:\n%s\n", got, want)
				}
			case err == nil && tc.err != nil:
				t.Fatalf("invalid error:\ngot= %v\nwant=%v\n", err, tc.err)
			}
		})
	}

	err = process(io.Discard, filepath.Join(tmp, "does-not-exist.raw"))
	if err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}
