// Copyright 2023 The go-canfd Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package crc16 implements the 16-bit cyclic redundancy check used by
// the session dump stream (CRC-16/CCITT-FALSE: polynomial 0x1021,
// initial value 0xffff, no reflection).
package crc16 // import "github.com/go-canfd/fdr/internal/crc16"

import "hash"

// Size of a CRC-16 checksum in bytes.
const Size = 2

// CCITT is the default generator polynomial, x^16 + x^12 + x^5 + 1.
const CCITT = 0x1021

func (tab *Table) init(poly uint16) {
	for i := range tab {
		crc := uint16(i) << 8
		for j := 0; j < 8; j++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ poly
			} else {
				crc <<= 1
			}
		}
		tab[i] = crc
	}
}

// Table is a 256-entry table representing the polynomial for efficient
// processing.
type Table [256]uint16

// MakeTable returns a Table constructed from the specified polynomial.
func MakeTable(poly uint16) *Table {
	tab := new(Table)
	tab.init(poly)
	return tab
}

var ccittTable = MakeTable(CCITT)

// Hash16 is the common interface implemented by all 16-bit hash
// functions.
type Hash16 interface {
	hash.Hash
	Sum16() uint16
}

// New creates a new Hash16 computing the CRC-16 checksum using the
// polynomial represented by tab. A nil tab selects the CCITT
// polynomial.
func New(tab *Table) Hash16 {
	if tab == nil {
		tab = ccittTable
	}
	h := &digest{tab: tab}
	h.Reset()
	return h
}

type digest struct {
	crc uint16
	tab *Table
}

func (h *digest) Size() int      { return Size }
func (h *digest) BlockSize() int { return 1 }
func (h *digest) Reset()         { h.crc = 0xffff }

func (h *digest) Write(p []byte) (int, error) {
	crc := h.crc
	for _, v := range p {
		crc = crc<<8 ^ h.tab[byte(crc>>8)^v]
	}
	h.crc = crc
	return len(p), nil
}

func (h *digest) Sum16() uint16 { return h.crc }

func (h *digest) Sum(in []byte) []byte {
	s := h.Sum16()
	return append(in, byte(s>>8), byte(s))
}

// Checksum returns the CRC-16 checksum of data using the polynomial
// represented by tab.
func Checksum(data []byte, tab *Table) uint16 {
	h := New(tab)
	_, _ = h.Write(data)
	return h.Sum16()
}
