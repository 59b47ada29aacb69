// Copyright 2023 The go-canfd Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evlog

import (
	"fmt"
	"math/bits"
)

// buffer is the circular log store: a power-of-two number of record
// slots with per-slot validity bits, a producer-owned write pointer and
// a consumer-owned read pointer.
type buffer struct {
	slots []Record
	valid []bool
	mask  uint32 // capacity - 1, for pointer arithmetic
	wr    uint32
	rd    uint32
}

func newBuffer(capacity int) (*buffer, error) {
	if capacity < 2 || bits.OnesCount(uint(capacity)) != 1 {
		return nil, fmt.Errorf("evlog: invalid log capacity %d (want a power of two >= 2)", capacity)
	}
	return &buffer{
		slots: make([]Record, capacity),
		valid: make([]bool, capacity),
		mask:  uint32(capacity) - 1,
	}, nil
}

func (buf *buffer) capacity() uint32 { return uint32(len(buf.slots)) }

// reset invalidates every slot and rewinds both pointers.
// Called on the config->ready transition only.
func (buf *buffer) reset() {
	for i := range buf.slots {
		buf.slots[i] = Record{}
		buf.valid[i] = false
	}
	buf.wr = 0
	buf.rd = 0
}

// full reports whether the write pointer sits on the last writable
// slot. Recording stops one slot before wraparound: slot capacity-1 is
// never written.
func (buf *buffer) full() bool { return buf.wr == buf.mask }

// write stores rec at the write pointer, marks the slot valid and
// advances the pointer. The caller checks full() first.
func (buf *buffer) write(rec Record) {
	buf.slots[buf.wr] = rec
	buf.valid[buf.wr] = true
	buf.wr = (buf.wr + 1) & buf.mask
}

// record returns the record stored at slot i, or the zero Record if the
// slot has never been written since the last reset.
func (buf *buffer) record(i uint32) Record {
	i &= buf.mask
	if !buf.valid[i] {
		return Record{}
	}
	return buf.slots[i]
}

// stepRead advances the read pointer by one slot.
func (buf *buffer) stepRead() { buf.rd = (buf.rd + 1) & buf.mask }
