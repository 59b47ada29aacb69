// Copyright 2023 The go-canfd Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xcnv

import (
	"fmt"
	"io"
	"log"

	"github.com/go-canfd/fdr/evlog"
	"go-hep.org/x/hep/lcio"
)

// LCIO2FDR converts LCIO events back into a recorder session dump
// stream.
func LCIO2FDR(w io.Writer, r *lcio.Reader, freq int, msg *log.Logger) error {
	var (
		enc = evlog.NewEncoder(w)
		i   = 0
	)

	for r.Next() {
		if i%freq == 0 {
			msg.Printf("processing session %d...", i)
		}
		evt := r.Event()
		raw, ok := evt.Get("FDR_LOG").(*lcio.GenericObject)
		if !ok {
			return fmt.Errorf("event %d carries no FDR_LOG collection", i)
		}

		ses, err := sessionFrom(evt.RunNumber, raw.Data)
		if err != nil {
			return fmt.Errorf("could not rebuild session %d: %w", i, err)
		}
		err = enc.Encode(&ses)
		if err != nil {
			return fmt.Errorf("could not re-encode session %d: %w", i, err)
		}
		i++
	}

	return nil
}

func sessionFrom(run int32, rows []lcio.GenericObjectData) (evlog.Session, error) {
	var ses evlog.Session
	if len(rows) == 0 || len(rows[0].I32s) != 4 {
		return ses, fmt.Errorf("malformed session header row")
	}

	hdr := rows[0].I32s
	ses = evlog.Session{
		Version:  uint8(hdr[0]),
		Run:      uint32(run),
		Capacity: uint16(hdr[1]),
		Capture:  evlog.CaptureMask(hdr[2]),
		Trigger:  evlog.TriggerMask(hdr[3]),
	}

	for i, row := range rows[1:] {
		if len(row.I32s) != 3 {
			return ses, fmt.Errorf("malformed record row %d", i)
		}
		p := uint32(row.I32s[0])
		ses.Records = append(ses.Records, evlog.Record{
			Kind: evlog.Kind(p >> 24),
			Num:  uint8(p >> 16),
			Add:  uint8(p >> 8),
			Aux:  uint8(p),
			Time: uint64(uint16(row.I32s[1]))<<32 | uint64(uint32(row.I32s[2])),
		})
	}
	return ses, nil
}
