// Copyright 2023 The go-canfd Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package busim

import (
	"testing"

	"github.com/go-canfd/fdr/evlog"
)

func TestDeterminism(t *testing.T) {
	const n = 10000
	var (
		s1 = New(1234)
		s2 = New(1234)
		s3 = New(4321)
	)
	diff := 0
	for i := 0; i < n; i++ {
		st1 := s1.Next()
		st2 := s2.Next()
		if st1 != st2 {
			t.Fatalf("tick %d: same seed diverged:\ngot= %#v\nwant=%#v", i, st1, st2)
		}
		if got, want := st1.Time, uint64(i); got != want {
			t.Fatalf("tick %d: time: got=%d, want=%d", i, got, want)
		}
		if st1 != s3.Next() {
			diff++
		}
	}
	if diff == 0 {
		t.Fatalf("different seeds replayed the same bus history")
	}
}

func TestBusActivity(t *testing.T) {
	var (
		sim = New(42)
		n   = make(map[evlog.Phase]int)

		sof, txv, rxv, ack bool
	)
	for i := 0; i < 50000; i++ {
		st := sim.Next()
		n[st.Phase]++
		sof = sof || st.SOF
		txv = txv || st.TxValid
		rxv = rxv || st.RxValid
		ack = ack || st.AckOK
	}
	for _, phase := range []evlog.Phase{
		evlog.PhaseIdle,
		evlog.PhaseArbitration,
		evlog.PhaseControl,
		evlog.PhaseData,
		evlog.PhaseCRC,
		evlog.PhaseACK,
		evlog.PhaseEOF,
		evlog.PhaseIntermission,
	} {
		if n[phase] == 0 {
			t.Errorf("phase %v never reached", phase)
		}
	}
	for name, seen := range map[string]bool{
		"sof": sof, "tx-valid": txv, "rx-valid": rxv, "ack": ack,
	} {
		if !seen {
			t.Errorf("event %q never fired", name)
		}
	}
}

func TestFeedsRecorder(t *testing.T) {
	eng, err := evlog.New(64)
	if err != nil {
		t.Fatalf("could not create engine: %+v", err)
	}

	sim := New(7)
	out := eng.Tick(evlog.Input{Status: sim.Next(), Cmd: evlog.CmdStart})
	if got, want := out.State, evlog.Ready; got != want {
		t.Fatalf("state: got=%v, want=%v", got, want)
	}

	for i := 0; i < 100000; i++ {
		out = eng.Tick(evlog.Input{Status: sim.Next()})
		if out.Finished {
			break
		}
	}
	if !out.Finished {
		t.Fatalf("recorder never filled its log")
	}

	recs := eng.Records()
	if got, want := len(recs), eng.Capacity()-1; got != want {
		t.Fatalf("records: got=%d, want=%d", got, want)
	}
	for i, rec := range recs {
		if rec.Kind == evlog.KindNone {
			t.Fatalf("record %d: empty slot in a full log", i)
		}
	}
}
