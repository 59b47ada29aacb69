// Copyright 2023 The go-canfd Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evlog

import (
	"encoding/binary"
	"io"

	"github.com/go-canfd/fdr/internal/crc16"
	"golang.org/x/xerrors"
)

// Decoder reads (and validates) session dumps from an underlying data
// source. Decoder computes CRC-16 checksums on the fly, while records
// are acquired.
type Decoder struct {
	r io.Reader

	buf []byte
	err error
	crc crc16.Hash16
}

// NewDecoder creates a decoder that reads and validates data from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		r:   r,
		buf: make([]byte, 8),
		crc: crc16.New(nil),
	}
}

func (dec *Decoder) crcw(p []byte) {
	_, _ = dec.crc.Write(p) // can not fail.
}

func (dec *Decoder) reset() {
	dec.crc.Reset()
}

// Decode reads one session from the stream into ses.
func (dec *Decoder) Decode(ses *Session) error {
	dec.reset()

	v := dec.readU8()
	if dec.err != nil {
		return xerrors.Errorf("evlog: could not read session header marker: %w", dec.err)
	}
	if v != sesHeader {
		return xerrors.Errorf("evlog: could not read session header marker (got=0x%x)", v)
	}
	dec.crcU8(v)

	hdr := make([]byte, 13)
	dec.read(hdr)
	if dec.err != nil {
		return xerrors.Errorf("evlog: could not read session header: %w", dec.err)
	}
	dec.crcw(hdr)

	ses.Version = hdr[0]
	ses.Capacity = binary.BigEndian.Uint16(hdr[1:3])
	ses.Run = binary.BigEndian.Uint32(hdr[3:7])
	ses.Capture = CaptureMask(binary.BigEndian.Uint32(hdr[7:11]))
	ses.Trigger = TriggerMask(binary.BigEndian.Uint16(hdr[11:13]))
	ses.Records = ses.Records[:0]

	if ses.Version != Version {
		return xerrors.Errorf("evlog: invalid session version (got=%d, want=%d)",
			ses.Version, Version,
		)
	}

	raw := make([]byte, 10) // kind+num+add+aux + 48-bit timestamp

loop:
	for {
		v := dec.readU8()
		if dec.err != nil {
			if xerrors.Is(dec.err, io.EOF) {
				dec.err = io.ErrUnexpectedEOF
			}
			return xerrors.Errorf("evlog: could not read record/trailer marker: %w", dec.err)
		}

		switch v {
		default:
			return xerrors.Errorf("evlog: invalid record/trailer marker (got=0x%x)", v)

		case recHeader:
			dec.crcU8(v)
			dec.read(raw)
			if dec.err != nil {
				return xerrors.Errorf("evlog: could not read record: %w", dec.err)
			}
			dec.crcw(raw)

			ses.Records = append(ses.Records, Record{
				Kind: Kind(raw[0]),
				Num:  raw[1],
				Add:  raw[2],
				Aux:  raw[3],
				Time: u48(raw[4:10]),
			})

		case sesTrailer:
			dec.crcU8(v)
			var (
				compCRC = dec.crc.Sum16()
				recvCRC = dec.readU16()
			)
			if dec.err != nil {
				return xerrors.Errorf("evlog: could not receive CRC-16: %w", dec.err)
			}

			if compCRC != recvCRC {
				return xerrors.Errorf("evlog: inconsistent CRC: recv=0x%04x comp=0x%04x",
					recvCRC, compCRC,
				)
			}
			break loop
		}
	}

	return dec.err
}

func u48(p []byte) uint64 {
	_ = p[5]
	return uint64(p[0])<<40 | uint64(p[1])<<32 | uint64(p[2])<<24 |
		uint64(p[3])<<16 | uint64(p[4])<<8 | uint64(p[5])
}

func (dec *Decoder) read(p []byte) {
	if dec.err != nil {
		return
	}
	_, dec.err = io.ReadFull(dec.r, p)
}

func (dec *Decoder) readU8() uint8 {
	dec.load(1)
	return dec.buf[0]
}

func (dec *Decoder) readU16() uint16 {
	const n = 2
	dec.load(n)
	return binary.BigEndian.Uint16(dec.buf[:n])
}

func (dec *Decoder) load(n int) {
	if dec.err != nil {
		return
	}
	dec.buf = dec.buf[:n]
	_, dec.err = io.ReadFull(dec.r, dec.buf[:n])
}

func (dec *Decoder) crcU8(v uint8) {
	dec.buf[0] = v
	dec.crcw(dec.buf[:1])
}
