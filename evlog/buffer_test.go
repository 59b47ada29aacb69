// Copyright 2023 The go-canfd Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evlog

import (
	"testing"
)

func TestBuffer(t *testing.T) {
	buf, err := newBuffer(4)
	if err != nil {
		t.Fatalf("could not create buffer: %+v", err)
	}

	if got, want := buf.capacity(), uint32(4); got != want {
		t.Fatalf("capacity: got=%d, want=%d", got, want)
	}
	if buf.full() {
		t.Fatalf("empty buffer reported full")
	}
	if got, want := buf.record(0), (Record{}); got != want {
		t.Fatalf("unwritten slot: got=%#v, want=%#v", got, want)
	}

	// three writes fill a 4-slot store: the last slot stays unwritten.
	for i := 0; i < 3; i++ {
		if buf.full() {
			t.Fatalf("write %d: buffer full too early", i)
		}
		buf.write(Record{Kind: KindSOF, Time: uint64(i)})
	}
	if !buf.full() {
		t.Fatalf("buffer not full after %d writes", 3)
	}
	if got, want := buf.record(2), (Record{Kind: KindSOF, Time: 2}); got != want {
		t.Fatalf("slot 2: got=%#v, want=%#v", got, want)
	}
	if got, want := buf.record(3), (Record{}); got != want {
		t.Fatalf("slot 3: got=%#v, want=%#v", got, want)
	}

	// the read pointer wraps over the whole store.
	for i := 1; i <= 5; i++ {
		buf.stepRead()
		if got, want := buf.rd, uint32(i)&buf.mask; got != want {
			t.Fatalf("step %d: read pointer: got=%d, want=%d", i, got, want)
		}
	}

	buf.reset()
	if buf.full() {
		t.Fatalf("reset buffer reported full")
	}
	if got, want := buf.wr, uint32(0); got != want {
		t.Fatalf("write pointer after reset: got=%d, want=%d", got, want)
	}
	if got, want := buf.rd, uint32(0); got != want {
		t.Fatalf("read pointer after reset: got=%d, want=%d", got, want)
	}
	if got, want := buf.record(1), (Record{}); got != want {
		t.Fatalf("slot 1 after reset: got=%#v, want=%#v", got, want)
	}
}
