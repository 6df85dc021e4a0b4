package behaviour

import (
	"time"

	"vdchost/proptree"
	"vdchost/x/mathx"
)

// Channel is one numeric output slot (brightness, hue, DMX level, …) of an
// OutputBehaviour. It tracks the value currently being transitioned to, the
// value the transition started from, and transition progress in [0,1].
type Channel struct {
	Min         float64
	Max         float64
	Resolution  float64
	WrapsAround bool

	cached        float64
	previous      float64
	progress      float64
	updatePending bool
	lastSync      time.Time
	inTransition  bool
}

func NewChannel(min, max, resolution float64, wraps bool) *Channel {
	return &Channel{Min: min, Max: max, Resolution: resolution, WrapsAround: wraps, progress: 1}
}

func (c *Channel) clip(v float64) float64 {
	return mathx.Clamp(v, c.Min, c.Max)
}

// GetChannelValue returns the (clipped) current setpoint, ignoring
// in-flight transition progress.
func (c *Channel) GetChannelValue() float64 { return c.cached }

// GetTransitionalValue returns the value interpolated by transition
// progress: previous + progress*(cached-previous).
func (c *Channel) GetTransitionalValue() float64 {
	return c.previous + c.progress*(c.cached-c.previous)
}

// NeedsApplying reports whether the latest setpoint hasn't yet been
// confirmed applied to hardware.
func (c *Channel) NeedsApplying() bool { return c.updatePending }

// SetChannelValue clips v to [Min,Max] and, if the change exceeds
// Resolution, alwaysApply is set, or a transition is already underway,
// records the current transitional value as the new previous, sets cached
// to the clipped value, marks updatePending, and clears lastSync.
func (c *Channel) SetChannelValue(v float64, transitionTime time.Duration, alwaysApply bool) {
	v = c.clip(v)
	changed := mathx.Abs(v-c.cached) > c.Resolution
	if changed || alwaysApply || c.inTransition {
		c.previous = c.GetTransitionalValue()
		c.cached = v
		c.updatePending = true
		c.lastSync = time.Time{}
		if transitionTime > 0 {
			c.progress = 0
			c.inTransition = true
		} else {
			c.progress = 1
			c.inTransition = false
		}
	}
}

// DimChannelValue applies a relative step, honoring WrapsAround on
// overflow/underflow past Min/Max instead of the default clamp.
func (c *Channel) DimChannelValue(step float64, transitionTime time.Duration) {
	v := c.cached + step
	span := c.Max - c.Min
	if c.WrapsAround && span > 0 {
		for v > c.Max {
			v -= span
		}
		for v < c.Min {
			v += span
		}
	}
	c.SetChannelValue(v, transitionTime, false)
}

// SyncChannelValue updates cached from a hardware read-back, but only if
// no application is pending (or alwaysSync overrides that), and clears
// transition state.
func (c *Channel) SyncChannelValue(actual float64, alwaysSync bool) {
	if c.updatePending && !alwaysSync {
		return
	}
	c.cached = c.clip(actual)
	c.previous = c.cached
	c.progress = 1
	c.inTransition = false
	c.lastSync = time.Now()
}

// TransitionStep advances transition progress by stepSize (clamped to
// [0,1]); on reaching 1 the transition is complete and previous collapses
// onto cached.
func (c *Channel) TransitionStep(stepSize float64) {
	c.SetTransitionProgress(c.progress + stepSize)
}

// SetTransitionProgress sets progress directly, clamped to [0,1].
func (c *Channel) SetTransitionProgress(p float64) {
	c.progress = mathx.Clamp(p, 0, 1)
	p = c.progress
	if p >= 1 {
		c.previous = c.cached
		c.inTransition = false
	}
}

// ChannelValueApplied marks the current setpoint as having reached
// hardware. After this call, previous == cached iff the channel is not
// mid-transition.
func (c *Channel) ChannelValueApplied(force bool) {
	if !c.updatePending && !force {
		return
	}
	c.updatePending = false
	c.lastSync = time.Now()
	if !c.inTransition {
		c.previous = c.cached
	}
}

// Channel implements proptree.Container directly so it can sit behind an
// OutputBehaviour's "channels" array property as an object-typed element.
func (c *Channel) Descriptors() []proptree.Descriptor {
	return []proptree.Descriptor{
		{Name: "value", Type: proptree.TFloat64, AccessKey: proptree.StateBase + 1},
		{Name: "min", Type: proptree.TFloat64, AccessKey: proptree.SettingsBase + 1},
		{Name: "max", Type: proptree.TFloat64, AccessKey: proptree.SettingsBase + 2},
		{Name: "resolution", Type: proptree.TFloat64, AccessKey: proptree.SettingsBase + 3},
	}
}

func (c *Channel) ArrayLength(proptree.Descriptor) int { return 0 }

func (c *Channel) AccessField(write bool, value any, d proptree.Descriptor, idx int) (any, error) {
	switch d.Name {
	case "value":
		if write {
			f, ok := value.(float64)
			if !ok {
				return nil, proptree.TypeMismatch("value")
			}
			c.SetChannelValue(f, 0, false)
			return nil, nil
		}
		return c.GetChannelValue(), nil
	case "min":
		return c.Min, proptree.CheckReadOnly(write, "min")
	case "max":
		return c.Max, proptree.CheckReadOnly(write, "max")
	case "resolution":
		return c.Resolution, proptree.CheckReadOnly(write, "resolution")
	}
	return nil, proptree.TypeMismatch(d.Name)
}

func (c *Channel) GetContainer(d proptree.Descriptor, idx int) (proptree.Container, error) {
	return nil, proptree.TypeMismatch(d.Name)
}

func (c *Channel) WrittenProperty(proptree.Descriptor, int, proptree.Container) {}
