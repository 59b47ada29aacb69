// Copyright 2023 The go-canfd Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package busim simulates the per-tick status of a CAN-FD protocol
// engine watching a moderately busy bus. The simulation is a plain
// frame-lifecycle state machine driven by a seeded PRNG, so a given
// seed always replays the same bus history.
package busim // import "github.com/go-canfd/fdr/internal/busim"

import (
	"math/rand"

	"github.com/go-canfd/fdr/evlog"
)

// Sim generates protocol-engine status snapshots, one per Next call.
// It implements evlog.StatusSource.
type Sim struct {
	rng  *rand.Rand
	time uint64

	phase evlog.Phase
	left  int  // ticks left in the current phase
	fresh bool // first tick of the current phase

	tx   bool // unit transmits the current frame
	fd   bool // current frame is CAN-FD
	brs  bool // current frame shifts bit rate in the data phase
	ack  bool // frame will be acknowledged
	fail bool // frame will be cut short by an error

	errcnt int // crude error counter driving warn/passive
}

// New returns a simulator replaying the bus history of the given seed.
func New(seed int64) *Sim {
	sim := &Sim{
		rng:   rand.New(rand.NewSource(seed)),
		phase: evlog.PhaseIdle,
	}
	sim.enter(evlog.PhaseIdle, 2+sim.rng.Intn(6))
	return sim
}

func (sim *Sim) enter(phase evlog.Phase, n int) {
	sim.phase = phase
	sim.left = n
	sim.fresh = true
}

// Next returns the status snapshot of the next tick.
func (sim *Sim) Next() evlog.Status {
	if sim.left == 0 {
		sim.advance()
	}
	sim.left--

	st := evlog.Status{
		Phase: sim.phase,
		Time:  sim.time & evlog.TimeMask,
	}
	sim.time++

	inFrame := sim.phase >= evlog.PhaseArbitration && sim.phase <= evlog.PhaseEOF
	if inFrame {
		st.TxOngoing = sim.tx
		st.RxOngoing = !sim.tx
	}

	switch sim.phase {
	case evlog.PhaseArbitration:
		if sim.fresh {
			st.SOF = true
		}
		// a competing node may win arbitration mid-field.
		if sim.tx && !sim.fresh && sim.rng.Intn(20) == 0 {
			st.ArbLost = true
			sim.tx = false
		}

	case evlog.PhaseData:
		if sim.fresh && sim.brs {
			st.RateShift = true
		}
		sim.noise(&st)

	case evlog.PhaseControl, evlog.PhaseCRC:
		sim.noise(&st)

	case evlog.PhaseACK:
		if sim.fresh {
			switch {
			case sim.ack:
				st.AckOK = true
			default:
				st.AckMissing = true
				st.Error = true
				st.ErrKind = evlog.ErrAck
				sim.bumpErr(&st)
			}
		}

	case evlog.PhaseEOF:
		if sim.left == 0 {
			switch {
			case sim.tx:
				st.TxValid = true
			default:
				st.RxValid = true
				if sim.rng.Intn(30) == 0 {
					st.Overrun = true
				}
			}
		}

	case evlog.PhaseErrorFrame:
		if sim.fresh {
			st.Error = true
			st.ErrKind = sim.errKind()
			sim.bumpErr(&st)
		}

	case evlog.PhaseOverloadFrame:
		if sim.fresh {
			st.Overload = true
		}
	}

	sim.fresh = false
	return st
}

// noise sprinkles stuffing and synchronization activity over the
// in-frame phases.
func (sim *Sim) noise(st *evlog.Status) {
	switch sim.rng.Intn(8) {
	case 0:
		st.Stuffed = true
		st.StuffCnt = uint8(1 + sim.rng.Intn(7))
	case 1:
		st.Destuffed = true
		st.DestuffCnt = uint8(1 + sim.rng.Intn(7))
	case 2:
		st.SyncEdge = true
		st.Segment = evlog.SegTSeg1
		if sim.rng.Intn(2) == 0 {
			st.Segment = evlog.SegTSeg2
		}
	}
}

func (sim *Sim) errKind() uint8 {
	kinds := [...]uint8{
		evlog.ErrForm, evlog.ErrCRC, evlog.ErrStuff, evlog.ErrBit,
	}
	return kinds[sim.rng.Intn(len(kinds))]
}

// bumpErr tracks fault confinement: enough errors raise the warning
// flag, then flip the passive one.
func (sim *Sim) bumpErr(st *evlog.Status) {
	sim.errcnt++
	switch sim.errcnt {
	case 3:
		st.ErrWarn = true
	case 6:
		st.ErrPassive = true
	}
}

// advance moves the lifecycle to its next phase and rolls the dice for
// the frame ahead.
func (sim *Sim) advance() {
	switch sim.phase {
	case evlog.PhaseIdle, evlog.PhaseIntermission:
		sim.tx = sim.rng.Intn(2) == 0
		sim.fd = sim.rng.Intn(3) != 0
		sim.brs = sim.fd && sim.rng.Intn(2) == 0
		sim.ack = sim.rng.Intn(10) != 0
		sim.fail = sim.rng.Intn(12) == 0
		sim.enter(evlog.PhaseArbitration, 12+sim.rng.Intn(18))

	case evlog.PhaseArbitration:
		sim.enter(evlog.PhaseControl, 6+sim.rng.Intn(4))

	case evlog.PhaseControl:
		n := 8 * (1 + sim.rng.Intn(8))
		if sim.fd {
			n = 8 * (1 + sim.rng.Intn(64))
		}
		sim.enter(evlog.PhaseData, n)

	case evlog.PhaseData:
		switch {
		case sim.fail:
			sim.enter(evlog.PhaseErrorFrame, 6+sim.rng.Intn(6))
		default:
			n := 15
			if sim.fd {
				n = 21
			}
			sim.enter(evlog.PhaseCRC, n)
		}

	case evlog.PhaseCRC:
		sim.enter(evlog.PhaseACK, 2)

	case evlog.PhaseACK:
		switch {
		case sim.ack:
			sim.enter(evlog.PhaseEOF, 7)
		default:
			sim.enter(evlog.PhaseErrorFrame, 6+sim.rng.Intn(6))
		}

	case evlog.PhaseEOF:
		switch {
		case sim.rng.Intn(25) == 0:
			sim.enter(evlog.PhaseOverloadFrame, 6)
		default:
			sim.enter(evlog.PhaseIntermission, 3+sim.rng.Intn(8))
		}

	case evlog.PhaseErrorFrame, evlog.PhaseOverloadFrame:
		sim.enter(evlog.PhaseIntermission, 3+sim.rng.Intn(8))
	}
}

var _ evlog.StatusSource = (*Sim)(nil)
