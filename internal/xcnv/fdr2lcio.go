// Copyright 2023 The go-canfd Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xcnv

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/go-canfd/fdr/evlog"
	"go-hep.org/x/hep/lcio"
)

// FDR2LCIO converts the recorder sessions of a dump stream into LCIO
// events, one event per session.
func FDR2LCIO(w *lcio.Writer, dec *evlog.Decoder, msg *log.Logger) error {
	raw := &lcio.GenericObject{}

loop:
	for i := 0; ; i++ {
		var ses evlog.Session
		err := dec.Decode(&ses)
		if err != nil {
			if errors.Is(err, io.EOF) {
				if i == 0 {
					return fmt.Errorf("could not decode FDR: empty dump stream")
				}
				break loop
			}
			return fmt.Errorf("could not decode FDR: %w", err)
		}
		msg.Printf("processing session %d (run=%d, records=%d)...",
			i, ses.Run, len(ses.Records),
		)

		if i == 0 {
			err = w.WriteRunHeader(&lcio.RunHeader{
				RunNumber: int32(ses.Run),
				Detector:  "CANFD-FDR",
				Descr:     "CAN-FD flight-recorder session dump",
				Params: lcio.Params{
					Ints: map[string][]int32{
						"Clock":    {80},
						"Capacity": {int32(ses.Capacity)},
					},
				},
			})
			if err != nil {
				return fmt.Errorf("could not write run header: %w", err)
			}
		}

		evt := lcio.Event{
			RunNumber:   int32(ses.Run),
			EventNumber: int32(i),
			TimeStamp:   timeStamp(&ses),
			Detector:    "CANFD-FDR",
		}
		raw.Data = i32sFrom(&ses)
		evt.Add("FDR_LOG", raw)

		err = w.WriteEvent(&evt)
		if err != nil {
			return fmt.Errorf("could not write FDR session: %w", err)
		}
	}

	return nil
}

func timeStamp(ses *evlog.Session) int64 {
	if len(ses.Records) == 0 {
		return 0
	}
	return int64(ses.Records[0].Time)
}

// i32sFrom lays a session out as generic-object rows: one header row
// with the recording configuration, then one row per log record.
func i32sFrom(ses *evlog.Session) []lcio.GenericObjectData {
	rows := make([]lcio.GenericObjectData, 0, 1+len(ses.Records))
	rows = append(rows, lcio.GenericObjectData{I32s: []int32{
		int32(ses.Version),
		int32(ses.Capacity),
		int32(ses.Capture),
		int32(ses.Trigger),
	}})
	for _, rec := range ses.Records {
		rows = append(rows, lcio.GenericObjectData{I32s: []int32{
			int32(uint32(rec.Kind)<<24 |
				uint32(rec.Num)<<16 |
				uint32(rec.Add)<<8 |
				uint32(rec.Aux)),
			int32(rec.Time >> 32),
			int32(uint32(rec.Time)),
		}})
	}
	return rows
}
