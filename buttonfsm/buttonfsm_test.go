package buttonfsm

import (
	"testing"
	"time"
)

func ms(n int) time.Time {
	return time.Unix(0, 0).Add(time.Duration(n) * time.Millisecond)
}

// runTimeline drives press/release edges and any Tick deadlines that
// elapse before the next edge, recording every emission in order.
func runTimeline(t *testing.T, edges []struct {
	press bool
	at    int
}) []ClickType {
	t.Helper()
	var got []ClickType
	f := New(func(c ClickType) { got = append(got, c) })

	var deadline time.Time
	var active bool

	fire := func(upTo time.Time) {
		for active && !deadline.After(upTo) {
			deadline, active = f.Tick(deadline)
		}
	}

	for _, e := range edges {
		at := ms(e.at)
		fire(at)
		if e.press {
			deadline, active = f.Press(at)
		} else {
			deadline, active = f.Release(at)
		}
	}
	// Drain any remaining deadline far in the future to flush pending
	// tip emissions (the test scenario arranges for the final emission to
	// surface via a Tick, not an edge).
	if active {
		fire(deadline)
	}
	return got
}

func TestTripleClickEmitsTip3xOnce(t *testing.T) {
	edges := []struct {
		press bool
		at    int
	}{
		{true, 0}, {false, 150},
		{true, 250}, {false, 400},
		{true, 500}, {false, 650},
	}
	got := runTimeline(t, edges)
	if len(got) != 1 || got[0] != Tip3x {
		t.Fatalf("emissions = %v, want [Tip3x]", got)
	}
}

func TestHoldStartRepeatEnd(t *testing.T) {
	f := New(nil)
	var got []ClickType
	f.Emit = func(c ClickType) { got = append(got, c) }

	d, active := f.Press(ms(0))
	for active {
		d, active = f.Tick(d)
		if len(got) >= 2 {
			break
		}
	}
	if len(got) < 1 || got[0] != HoldStart {
		t.Fatalf("expected HoldStart first, got %v", got)
	}
	// Release while holding emits HoldEnd.
	got = got[:0]
	f.Release(ms(3000))
	if len(got) != 1 || got[0] != HoldEnd {
		t.Fatalf("expected [HoldEnd] on release during hold, got %v", got)
	}
}

func TestHoldReleasedBeforeFirstRepeatEmitsStartThenEnd(t *testing.T) {
	f := New(nil)
	var got []ClickType
	f.Emit = func(c ClickType) { got = append(got, c) }

	d, active := f.Press(ms(0))
	// Advance exactly to the long-function-delay deadline, entering hold.
	d, active = f.Tick(d)
	if len(got) != 1 || got[0] != HoldStart {
		t.Fatalf("expected HoldStart, got %v", got)
	}
	_ = active
	f.Release(ms(int(TLongFunctionDelay/time.Millisecond) + 10))
	if len(got) != 2 || got[1] != HoldEnd {
		t.Fatalf("expected HoldStart,HoldEnd; got %v", got)
	}
}

func TestShortLongSequence(t *testing.T) {
	var got []ClickType
	f := New(func(c ClickType) { got = append(got, c) })

	d, active := f.Press(ms(0))
	d, active = f.Release(ms(150)) // one tip-eligible press/release
	_ = active

	d, active = f.Press(ms(300)) // re-press before tip timeout
	for active && got == nil {
		d, active = f.Tick(d)
	}
	if len(got) == 0 || got[0] != ShortLong {
		t.Fatalf("expected ShortLong, got %v", got)
	}
}

func TestBounceBelowClickLengthIgnored(t *testing.T) {
	var got []ClickType
	f := New(func(c ClickType) { got = append(got, c) })
	f.Press(ms(0))
	f.Release(ms(50)) // shorter than TClickLength
	if len(got) != 0 {
		t.Fatalf("expected no emission for sub-threshold press, got %v", got)
	}
	if f.State() != S0_idle {
		t.Fatalf("expected idle after bounce, got %v", f.State())
	}
}

func TestLocalDimEntersInsteadOfHold(t *testing.T) {
	var dimCalls []int
	f := New(nil)
	f.LocalEnabled = true
	f.OutputOn = func() bool { return true }
	f.LocalDim = func(dir int) { dimCalls = append(dimCalls, dir) }

	d, active := f.Press(ms(0))
	d, active = f.Tick(d) // crosses long-function-delay -> local dim entry
	_ = active
	if f.State() != S11_localDim {
		t.Fatalf("expected S11_localDim, got %v", f.State())
	}
	if len(dimCalls) != 1 {
		t.Fatalf("expected one local dim call on entry, got %v", dimCalls)
	}
	var stop []ClickType
	f.Emit = func(c ClickType) { stop = append(stop, c) }
	f.Release(ms(1000))
	if len(stop) != 1 || stop[0] != LocalStop {
		t.Fatalf("expected LocalStop on release, got %v", stop)
	}
	_ = d
}
