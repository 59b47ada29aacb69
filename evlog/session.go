// Copyright 2023 The go-canfd Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evlog

const (
	sesHeader  = 0xd0 // session header marker
	sesTrailer = 0xa5 // session trailer marker

	recHeader = 0xd4 // record marker
)

// Version is the session dump stream format version.
const Version = 1

// Session is one recording session as exported to a dump stream: the
// configuration it ran with and the records harvested before the log
// filled or the recording was aborted.
type Session struct {
	Version  uint8
	Run      uint32 // host-assigned run number
	Capacity uint16
	Capture  CaptureMask
	Trigger  TriggerMask
	Records  []Record
}

// SessionFrom snapshots the engine's valid records and configuration
// into a Session for export.
func SessionFrom(eng *Engine, run uint32) Session {
	return Session{
		Version:  Version,
		Run:      run,
		Capacity: uint16(eng.Capacity()),
		Capture:  eng.CaptureMask(),
		Trigger:  eng.TriggerMask(),
		Records:  eng.Records(),
	}
}
