// Copyright 2023 The go-canfd Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evlog

// State is the recorder state.
type State uint8

const (
	Config  State = iota // idle, log frozen for host reads
	Ready                // log cleared, watching trigger conditions
	Running              // actively harvesting captured events
)

func (st State) String() string {
	switch st {
	case Config:
		return "config"
	case Ready:
		return "ready"
	case Running:
		return "running"
	}
	return "evlog.State(unknown)"
}

// Command is a set of one-tick command pulses from the host interface.
type Command uint8

const (
	CmdStart    Command = 1 << iota // config -> ready
	CmdAbort                        // ready/running -> config
	CmdReadUp                       // step the read pointer up
	CmdReadDown                     // step the read pointer down
)

// Input bundles everything the engine observes during one tick.
type Input struct {
	Status Status
	Cmd    Command
}

// Output is the engine's status surface after one tick.
type Output struct {
	State    State
	Finished bool   // one-tick pulse: log just filled
	Record   Record // record under the read pointer, zero if invalid
	WritePtr uint32
	ReadPtr  uint32
	Capacity uint32
}

// detail holds the auxiliary payload and timestamp latched for one
// event kind at edge-detection time. The source fields are transient,
// so they are snapshot when the edge fires, not when the event drains.
type detail struct {
	num  uint8
	add  uint8
	aux  uint8
	time uint64
}

type config struct {
	capture CaptureMask
	trigger TriggerMask
}

// Option configures an Engine.
type Option func(*config)

// WithCaptureMask selects the event kinds eligible for capture.
func WithCaptureMask(m CaptureMask) Option {
	return func(cfg *config) {
		cfg.capture = m
	}
}

// WithTriggerMask selects the conditions that start a recording.
func WithTriggerMask(m TriggerMask) Option {
	return func(cfg *config) {
		cfg.trigger = m
	}
}

// Engine is the event-capture-and-harvest engine.
//
// It is a synchronous machine: Tick advances it by exactly one step,
// and every registered state update observes only values from the start
// of that tick. Engine is not safe for concurrent use; the external
// clock driver owns it.
type Engine struct {
	cfg   config
	buf   *buffer
	state State

	prev    evtSet // classifier output registered from the previous tick
	pending evtSet // captured events awaiting harvest
	det     [NumKinds]detail
}

// New creates an engine with the given log capacity.
// The capacity must be a power of two; anything else is a
// configuration error, never rounded.
func New(capacity int, opts ...Option) (*Engine, error) {
	buf, err := newBuffer(capacity)
	if err != nil {
		return nil, err
	}

	eng := &Engine{
		cfg: config{
			capture: CaptureAll,
			trigger: TriggerAny,
		},
		buf: buf,
	}
	for _, opt := range opts {
		opt(&eng.cfg)
	}
	return eng, nil
}

// State returns the current recorder state.
func (eng *Engine) State() State { return eng.state }

// Capacity returns the configured log capacity.
func (eng *Engine) Capacity() int { return int(eng.buf.capacity()) }

// SetCaptureMask updates the host-owned capture configuration.
func (eng *Engine) SetCaptureMask(m CaptureMask) { eng.cfg.capture = m }

// SetTriggerMask updates the host-owned trigger configuration.
func (eng *Engine) SetTriggerMask(m TriggerMask) { eng.cfg.trigger = m }

// CaptureMask returns the host-owned capture configuration.
func (eng *Engine) CaptureMask() CaptureMask { return eng.cfg.capture }

// TriggerMask returns the host-owned trigger configuration.
func (eng *Engine) TriggerMask() TriggerMask { return eng.cfg.trigger }

// Tick advances the engine by one synchronous step.
//
// Within the tick, classification and priority decoding are
// combinational over the current inputs, while the captured set, the
// log store and the recorder state observe only start-of-tick values.
func (eng *Engine) Tick(in Input) Output {
	var (
		st0 = eng.state
		out Output
	)

	// combinational: classify this tick, detect rising edges against
	// the registered previous-tick vector.
	cur := classify(eng.cfg.capture, in.Status)
	edges := cur &^ eng.prev

	if st0 == Running {
		// harvest: drain the lowest-index captured event, at most one
		// per tick. The start-of-tick pending set is used, so an event
		// captured this tick drains next tick at the earliest.
		if k, ok := eng.pending.lowest(); ok {
			eng.pending = eng.pending.clear(k)
			if !eng.buf.full() {
				d := &eng.det[k-1]
				eng.buf.write(Record{
					Kind: k,
					Num:  d.num,
					Add:  d.add,
					Aux:  d.aux,
					Time: d.time,
				})
				if eng.buf.full() {
					// last writable slot reached: stop recording.
					out.Finished = true
				}
			}
		}

		// capture: latch details at edge time and mark the event
		// pending. A kind already pending is coalesced, not queued.
		for k := KindSOF; int(k) <= NumKinds; k++ {
			if !edges.has(k) || eng.pending.has(k) {
				continue
			}
			eng.det[k-1] = latch(k, in.Status)
			eng.pending = eng.pending.with(k)
		}
	}

	// recorder state machine.
	switch st0 {
	case Config:
		if in.Cmd&CmdStart != 0 {
			eng.state = Ready
			eng.buf.reset()
			eng.pending = 0
		}
	case Ready:
		switch {
		case in.Cmd&CmdAbort != 0:
			eng.state = Config
		case triggered(eng.cfg.trigger, in.Status):
			eng.state = Running
		}
	case Running:
		switch {
		case in.Cmd&CmdAbort != 0, out.Finished:
			eng.state = Config
			// captured-but-undrained events are dropped.
			eng.pending = 0
		}
	default:
		// unknown state: no-op.
	}

	// host read-pointer control. Both commands currently step the
	// pointer forward by one slot.
	if in.Cmd&(CmdReadUp|CmdReadDown) != 0 {
		eng.buf.stepRead()
	}

	eng.prev = cur

	out.State = eng.state
	out.Record = eng.buf.record(eng.buf.rd)
	out.WritePtr = eng.buf.wr
	out.ReadPtr = eng.buf.rd
	out.Capacity = eng.buf.capacity()
	return out
}

// latch snapshots the auxiliary payload for kind k from the status of
// the tick its edge was detected on.
func latch(k Kind, st Status) detail {
	d := detail{time: st.Time & TimeMask}
	switch k {
	case KindError:
		d.num = st.ErrKind & 0x1f
	case KindSyncEdge:
		d.add = st.Segment & 0x0f
	case KindStuffed:
		d.aux = st.StuffCnt & 0x07
	case KindDestuffed:
		d.aux = st.DestuffCnt & 0x07
	}
	return d
}

// Records returns the valid log records in write order.
// It is meant for host-side export once recording has stopped.
func (eng *Engine) Records() []Record {
	var recs []Record
	for i := uint32(0); i < eng.buf.capacity(); i++ {
		if !eng.buf.valid[i] {
			continue
		}
		recs = append(recs, eng.buf.slots[i])
	}
	return recs
}
