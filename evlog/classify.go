// Copyright 2023 The go-canfd Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evlog

import (
	"math/bits"
	"strings"
)

// CaptureMask selects which event kinds may be captured at all.
// Bit i enables Kind(i+1).
type CaptureMask uint32

// CaptureAll enables every event kind.
const CaptureAll CaptureMask = 1<<NumKinds - 1

// CaptureOf builds a mask enabling the given kinds.
func CaptureOf(kinds ...Kind) CaptureMask {
	var m CaptureMask
	for _, k := range kinds {
		if k == KindNone || int(k) > NumKinds {
			continue
		}
		m |= 1 << (k - 1)
	}
	return m
}

// Enabled reports whether kind k is selected by the mask.
func (m CaptureMask) Enabled(k Kind) bool {
	if k == KindNone || int(k) > NumKinds {
		return false
	}
	return m&(1<<(k-1)) != 0
}

func (m CaptureMask) String() string {
	o := new(strings.Builder)
	for k := KindSOF; int(k) <= NumKinds; k++ {
		if !m.Enabled(k) {
			continue
		}
		if o.Len() > 0 {
			o.WriteString("|")
		}
		o.WriteString(k.String())
	}
	if o.Len() == 0 {
		return "none"
	}
	return o.String()
}

// evtSet is a bitmap over event kinds: bit i stands for Kind(i+1).
type evtSet uint32

func (s evtSet) has(k Kind) bool     { return s&(1<<(k-1)) != 0 }
func (s evtSet) with(k Kind) evtSet  { return s | 1<<(k-1) }
func (s evtSet) clear(k Kind) evtSet { return s &^ (1 << (k - 1)) }

// lowest returns the lowest-priority-index kind in the set.
func (s evtSet) lowest() (Kind, bool) {
	if s == 0 {
		return KindNone, false
	}
	return Kind(bits.TrailingZeros32(uint32(s)) + 1), true
}

// classify maps the status snapshot of one tick onto the set of event
// kinds whose defining condition holds at that tick. It is purely
// combinational: no state, no edge detection.
//
// Most kinds are the AND of their capture-enable bit with one status
// flag. The four phase-entry kinds test the protocol phase itself, as
// the related flags stay high for the whole phase.
func classify(mask CaptureMask, st Status) evtSet {
	var (
		s    evtSet
		cond = [NumKinds + 1]bool{
			KindSOF:        st.SOF,
			KindArbLost:    st.ArbLost,
			KindRxValid:    st.RxValid,
			KindTxValid:    st.TxValid,
			KindOverload:   st.Overload,
			KindError:      st.Error,
			KindRateShift:  st.RateShift,
			KindArbStart:   st.Phase == PhaseArbitration,
			KindCtrlStart:  st.Phase == PhaseControl,
			KindDataStart:  st.Phase == PhaseData,
			KindCRCStart:   st.Phase == PhaseCRC,
			KindAckOK:      st.AckOK,
			KindAckMissing: st.AckMissing,
			KindErrWarn:    st.ErrWarn,
			KindErrPassive: st.ErrPassive,
			KindTxStart:    st.TxOngoing,
			KindRxStart:    st.RxOngoing,
			KindSyncEdge:   st.SyncEdge,
			KindStuffed:    st.Stuffed,
			KindDestuffed:  st.Destuffed,
			KindOverrun:    st.Overrun,
		}
	)
	for k := KindSOF; int(k) <= NumKinds; k++ {
		if mask.Enabled(k) && cond[k] {
			s = s.with(k)
		}
	}
	return s
}

// TriggerMask selects which conditions, observed while the recorder is
// ready, promote it to the running state.
type TriggerMask uint16

const (
	TrigSOF TriggerMask = 1 << iota
	TrigArbLost
	TrigRxValid
	TrigTxValid
	TrigOverload
	TrigError
	TrigRateShift
	TrigArbPhase
	TrigCtrlPhase
	TrigDataPhase
	TrigCRCPhase
	TrigAckOK
	TrigAckMissing
	TrigErrWarn
	TrigErrPassive
	TrigOverrun
)

// TriggerAny fires on any of the trigger conditions.
const TriggerAny TriggerMask = 1<<16 - 1

// triggered reports whether any enabled trigger condition holds for the
// status snapshot of this tick.
func triggered(mask TriggerMask, st Status) bool {
	var (
		conds = [...]bool{
			st.SOF,
			st.ArbLost,
			st.RxValid,
			st.TxValid,
			st.Overload,
			st.Error,
			st.RateShift,
			st.Phase == PhaseArbitration,
			st.Phase == PhaseControl,
			st.Phase == PhaseData,
			st.Phase == PhaseCRC,
			st.AckOK,
			st.AckMissing,
			st.ErrWarn,
			st.ErrPassive,
			st.Overrun,
		}
	)
	for i, cond := range conds {
		if cond && mask&(1<<i) != 0 {
			return true
		}
	}
	return false
}
