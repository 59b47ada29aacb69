// Copyright 2023 The go-canfd Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package evlog implements the event logger of a CAN-FD protocol
// controller: a flight recorder that watches the per-tick status of the
// protocol engine, captures configured events on their rising edge and
// drains them, one per tick, into a fixed-size circular log.
package evlog // import "github.com/go-canfd/fdr/evlog"

// Kind identifies a loggable protocol event.
//
// The declaration order is significant: when several events await
// harvesting, the kind with the lowest value drains first.
// The zero value is reserved to mark empty log slots.
type Kind uint8

const (
	KindNone Kind = iota

	KindSOF        // start of frame observed
	KindArbLost    // arbitration lost
	KindRxValid    // frame successfully received
	KindTxValid    // frame successfully transmitted
	KindOverload   // overload frame
	KindError      // error frame detected
	KindRateShift  // bit-rate shifted (FD data phase)
	KindArbStart   // arbitration phase entered
	KindCtrlStart  // control phase entered
	KindDataStart  // data phase entered
	KindCRCStart   // CRC phase entered
	KindAckOK      // dominant ACK sampled
	KindAckMissing // recessive ACK slot
	KindErrWarn    // error-warning limit reached
	KindErrPassive // error-passive state changed
	KindTxStart    // transmission started
	KindRxStart    // reception started
	KindSyncEdge   // synchronization edge observed
	KindStuffed    // stuff bit inserted
	KindDestuffed  // stuff bit removed
	KindOverrun    // receive data overrun
)

// NumKinds is the number of distinct event kinds.
const NumKinds = int(KindOverrun)

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "evlog.Kind(unknown)"
}

var kindNames = [...]string{
	KindNone:       "none",
	KindSOF:        "sof",
	KindArbLost:    "arb-lost",
	KindRxValid:    "rx-valid",
	KindTxValid:    "tx-valid",
	KindOverload:   "overload",
	KindError:      "error",
	KindRateShift:  "rate-shift",
	KindArbStart:   "arb-start",
	KindCtrlStart:  "ctrl-start",
	KindDataStart:  "data-start",
	KindCRCStart:   "crc-start",
	KindAckOK:      "ack",
	KindAckMissing: "no-ack",
	KindErrWarn:    "err-warn",
	KindErrPassive: "err-passive",
	KindTxStart:    "tx-start",
	KindRxStart:    "rx-start",
	KindSyncEdge:   "sync-edge",
	KindStuffed:    "stuffed",
	KindDestuffed:  "destuffed",
	KindOverrun:    "overrun",
}

// Phase is the protocol phase code reported by the protocol engine.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseArbitration
	PhaseControl
	PhaseData
	PhaseCRC
	PhaseACK
	PhaseEOF
	PhaseIntermission
	PhaseErrorFrame
	PhaseOverloadFrame
)

func (p Phase) String() string {
	names := [...]string{
		"idle", "arbitration", "control", "data", "crc",
		"ack", "eof", "intermission", "error-frame", "overload-frame",
	}
	if int(p) < len(names) {
		return names[p]
	}
	return "evlog.Phase(unknown)"
}

// Error-type classification bits, lowest-to-highest priority.
const (
	ErrForm  uint8 = 1 << iota // form error
	ErrAck                     // acknowledgement error
	ErrCRC                     // CRC mismatch
	ErrStuff                   // stuff-rule violation
	ErrBit                     // bit error
)

// Bit-timing segment codes reported with a synchronization edge.
const (
	SegNone  uint8 = 0x0
	SegTSeg1 uint8 = 0x1 // edge within TSEG1
	SegTSeg2 uint8 = 0x2 // edge within TSEG2
)

// TimeMask truncates timestamps to the 48 bits carried by log records.
const TimeMask = 1<<48 - 1

// Status is the per-tick snapshot of the protocol engine outputs.
// It is read-only input to the logger; a fresh value is expected at
// every tick.
type Status struct {
	Phase Phase  // current protocol phase
	Time  uint64 // monotonic timestamp counter (48 bits used)

	SOF        bool // start-of-frame bit on the bus
	ArbLost    bool // arbitration lost this frame
	RxValid    bool // frame reception just completed
	TxValid    bool // frame transmission just completed
	Overload   bool // overload frame in progress
	Error      bool // error condition detected
	RateShift  bool // data bit-rate active
	AckOK      bool // dominant bit sampled in ACK slot
	AckMissing bool // recessive bit sampled in ACK slot
	ErrWarn    bool // error-warning limit reached
	ErrPassive bool // fault-confinement state changed
	TxOngoing  bool // unit is transmitter
	RxOngoing  bool // unit is receiver
	SyncEdge   bool // synchronization edge observed
	Stuffed    bool // stuff bit inserted
	Destuffed  bool // stuff bit removed
	Overrun    bool // receive buffer overrun

	ErrKind    uint8 // 5-bit error classification (ErrForm..ErrBit)
	Segment    uint8 // 4-bit bit-segment code (SegNone, SegTSeg1, SegTSeg2)
	StuffCnt   uint8 // 3-bit stuffed-run length
	DestuffCnt uint8 // 3-bit destuffed-run length
}

// Record is one entry of the event log.
// A record is immutable once written; the zero Record marks an empty slot.
type Record struct {
	Kind Kind   // event kind, KindNone for an empty slot
	Num  uint8  // numeric detail (error classification)
	Add  uint8  // additional detail (bit-segment code)
	Aux  uint8  // auxiliary detail (stuff/destuff run length)
	Time uint64 // capture timestamp, 48 bits
}

// StatusSource yields the per-tick status snapshots of a protocol engine.
type StatusSource interface {
	Next() Status
}
