// Copyright 2023 The go-canfd Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evlog

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/go-canfd/fdr/internal/crc16"
)

// Encoder writes session dumps to an output stream.
// Encoder computes the CRC-16 checksum on the fly and appends it
// at the end of the stream.
type Encoder struct {
	w   io.Writer
	buf []byte
	err error
	crc crc16.Hash16
}

// NewEncoder returns a new Encoder that writes to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{
		w:   w,
		buf: make([]byte, 8),
		crc: crc16.New(nil),
	}
}

func (enc *Encoder) reset() {
	enc.crc.Reset()
}

// Encode writes the session to the stream, computes the corresponding
// CRC-16 checksum on the fly and appends it to the stream.
func (enc *Encoder) Encode(ses *Session) error {
	if ses == nil {
		return nil
	}

	enc.reset()

	enc.writeU8(sesHeader)
	if enc.err != nil {
		return fmt.Errorf("evlog: could not write session header marker: %w", enc.err)
	}

	enc.writeU8(ses.Version)
	enc.writeU16(ses.Capacity)
	enc.writeU32(ses.Run)
	enc.writeU32(uint32(ses.Capture))
	enc.writeU16(uint16(ses.Trigger))

	for _, rec := range ses.Records {
		enc.writeU8(recHeader)
		enc.writeU8(uint8(rec.Kind))
		enc.writeU8(rec.Num)
		enc.writeU8(rec.Add)
		enc.writeU8(rec.Aux)
		enc.writeU48(rec.Time)
	}
	enc.writeU8(sesTrailer)

	crc := enc.crc.Sum16()
	enc.writeU16(crc)

	if enc.err != nil {
		return fmt.Errorf("evlog: could not encode session: %w", enc.err)
	}
	return nil
}

func (enc *Encoder) write(p []byte) {
	if enc.err != nil {
		return
	}
	_, enc.err = enc.w.Write(p)
	_, _ = enc.crc.Write(p) // can not fail.
}

func (enc *Encoder) writeU8(v uint8) {
	const n = 1
	enc.buf[0] = v
	enc.write(enc.buf[:n])
}

func (enc *Encoder) writeU16(v uint16) {
	const n = 2
	binary.BigEndian.PutUint16(enc.buf[:n], v)
	enc.write(enc.buf[:n])
}

func (enc *Encoder) writeU32(v uint32) {
	const n = 4
	binary.BigEndian.PutUint32(enc.buf[:n], v)
	enc.write(enc.buf[:n])
}

func (enc *Encoder) writeU48(v uint64) {
	const n = 6
	enc.buf[0] = byte(v >> 40)
	enc.buf[1] = byte(v >> 32)
	enc.buf[2] = byte(v >> 24)
	enc.buf[3] = byte(v >> 16)
	enc.buf[4] = byte(v >> 8)
	enc.buf[5] = byte(v >> 0)
	enc.write(enc.buf[:n])
}
