// Package buttonfsm turns raw button press/release edges into the dS
// click-type vocabulary (tips, clicks, holds, local-dim) via a single
// deterministic state machine: identical (edge, timestamp) sequences MUST
// produce identical emissions on every run, so the machine never reads
// the wall clock itself — every entry point takes `now` from the caller.
package buttonfsm

import "time"

// State names keep the click engine's historical numbering; S2, S5, S6, S7,
// S8, S9, S12, S13, S14 are declared for completeness (a caller inspecting
// State() sees familiar names) but the click-vs-tip discriminator that
// would route through them is not modeled — see the note on FSM below
// on the click simplification.
type State int

const (
	S0_idle State = iota
	S1_initialPress
	S2_holdOrTip
	S3_hold
	S4_nextTipWait
	S5_nextPauseWait
	S6_2clickWait
	S7_progModeWait
	S8_awaitRelease
	S9_2pauseWait
	S11_localDim
	S12_3clickWait
	S13_3pauseWait
	S14_awaitRelease
)

// ClickType is the emitted user-gesture vocabulary.
type ClickType int

const (
	Tip1x ClickType = iota
	Tip2x
	Tip3x
	Tip4x
	Click1x
	Click2x
	Click3x
	HoldStart
	HoldRepeat
	HoldEnd
	ShortLong
	ShortShortLong
	LocalOn
	LocalOff
	LocalStop
)

var clickTypeNames = [...]string{
	"tip_1x", "tip_2x", "tip_3x", "tip_4x",
	"click_1x", "click_2x", "click_3x",
	"hold_start", "hold_repeat", "hold_end",
	"short_long", "short_short_long",
	"local_on", "local_off", "local_stop",
}

func (c ClickType) String() string {
	if c < 0 || int(c) >= len(clickTypeNames) {
		return "unknown"
	}
	return clickTypeNames[c]
}

// Fixed gesture timers.
const (
	TClickLength       = 140 * time.Millisecond
	TClickPause        = 140 * time.Millisecond
	TTipTimeout        = 800 * time.Millisecond
	TLongFunctionDelay = 500 * time.Millisecond
	TDimRepeatTime     = 1000 * time.Millisecond
	TLocalDimTimeout   = 160 * time.Millisecond
	MaxHoldRepeats     = 30
)

var tipForCount = [...]ClickType{0, Tip1x, Tip2x, Tip3x, Tip4x}

// FSM is one button's state. Zero value is ready to use (idle).
//
// Click simplification: a "click" (press >= TClickLength followed by
// another press within TClickPause) is not discriminated from plain
// consecutive tips; the discriminator needs rocker-pairing context this
// package doesn't see, so every qualifying short press is counted as a
// tip. Click1x..Click3x stay in the emission vocabulary for protocol
// completeness but nothing here emits them yet. TODO: wire click
// recognition once two-rocker subdevice pairing is modeled in the
// EnOcean RPS decoder.
type FSM struct {
	state       State
	pressedAt   time.Time
	tipsBefore  int // tip count accumulated before a press escalated to hold
	tipCount    int
	holdRepeats int
	dimDir      int

	LocalEnabled bool
	OutputOn     func() bool
	LocalDim     func(direction int)
	Emit         func(ClickType)
}

func New(emit func(ClickType)) *FSM {
	return &FSM{Emit: emit, dimDir: 1}
}

func (f *FSM) State() State { return f.state }

func (f *FSM) emit(c ClickType) {
	if f.Emit != nil {
		f.Emit(c)
	}
}

func (f *FSM) localDim(dir int) {
	if f.LocalDim != nil {
		f.LocalDim(dir)
	}
}

func (f *FSM) outputOn() bool {
	return f.OutputOn != nil && f.OutputOn()
}

func (f *FSM) reset() {
	f.state = S0_idle
	f.tipCount = 0
	f.tipsBefore = 0
	f.holdRepeats = 0
}

// Press handles a button-down edge. It returns the deadline the caller
// must schedule a Tick for, and whether one is needed.
func (f *FSM) Press(now time.Time) (time.Time, bool) {
	switch f.state {
	case S0_idle, S4_nextTipWait:
		if f.state == S4_nextTipWait {
			f.tipsBefore = f.tipCount
		} else {
			f.tipsBefore = 0
		}
		f.pressedAt = now
		f.state = S1_initialPress
		return now.Add(TLongFunctionDelay), true
	default:
		// Opposite-side press (or a spurious press while already down)
		// aborts whatever was in flight and restarts clean.
		f.reset()
		f.pressedAt = now
		f.state = S1_initialPress
		return now.Add(TLongFunctionDelay), true
	}
}

// Release handles a button-up edge.
func (f *FSM) Release(now time.Time) (time.Time, bool) {
	switch f.state {
	case S1_initialPress:
		dur := now.Sub(f.pressedAt)
		if dur < TClickLength {
			// Bounce: too short to count as an actuation.
			f.reset()
			return time.Time{}, false
		}
		f.tipCount = f.tipsBefore + 1
		if f.tipCount > 4 {
			f.tipCount = 2
		}
		f.state = S4_nextTipWait
		return now.Add(TTipTimeout), true

	case S3_hold:
		f.emit(HoldEnd)
		f.reset()
		return time.Time{}, false

	case S11_localDim:
		f.emit(LocalStop)
		f.reset()
		return time.Time{}, false

	default:
		f.reset()
		return time.Time{}, false
	}
}

// Tick is called when a previously returned deadline elapses with no
// intervening edge.
func (f *FSM) Tick(now time.Time) (time.Time, bool) {
	switch f.state {
	case S1_initialPress:
		// Still down past the long-function delay: this press has
		// become a hold (or, with history, a short_long/short_short_long).
		switch f.tipsBefore {
		case 0:
			f.enterHold(now)
		case 1:
			f.emit(ShortLong)
			f.enterHold(now)
		default:
			f.emit(ShortShortLong)
			f.enterHold(now)
		}
		return now.Add(TDimRepeatTime), true

	case S3_hold:
		if f.holdRepeats >= MaxHoldRepeats {
			f.emit(HoldEnd)
			f.reset()
			return time.Time{}, false
		}
		f.holdRepeats++
		f.emit(HoldRepeat)
		return now.Add(TDimRepeatTime), true

	case S11_localDim:
		f.localDim(f.dimDir)
		return now.Add(TDimRepeatTime), true

	case S4_nextTipWait:
		f.emit(tipForCount[f.tipCount])
		f.reset()
		return time.Time{}, false
	}
	return time.Time{}, false
}

func (f *FSM) enterHold(now time.Time) {
	if f.LocalEnabled && f.outputOn() {
		f.state = S11_localDim
		if f.dimDir == 0 {
			f.dimDir = 1
		}
		f.dimDir = -f.dimDir
		f.localDim(f.dimDir)
		return
	}
	f.state = S3_hold
	f.holdRepeats = 0
	f.emit(HoldStart)
}
