package behaviour

import (
	"time"

	"vdchost/proptree"
)

// Effect selects the visual transition a scene apply uses.
type Effect string

const (
	EffectSmooth  Effect = "smooth"
	EffectInstant Effect = "instant"
	EffectSlow    Effect = "slow"
	EffectCustom  Effect = "custom"
)

// OutputBehaviour is the behaviour kind owning one or more Channels and
// participating in the device scene-call pipeline: it captures its state
// into undo/save scenes and applies scene values back to its channels.
type OutputBehaviour struct {
	Base
	Channels []*Channel

	// IdentifyFlash, if set, is invoked by Device.Identify to visually
	// single out this output (e.g. a brief full-brightness flash).
	IdentifyFlash func()
}

func NewOutputBehaviour(index int, channels ...*Channel) *OutputBehaviour {
	return &OutputBehaviour{Base: NewBase(Output, index), Channels: channels}
}

// CaptureScene reads the output's current state into the given scene
// target, invoking done once the (possibly asynchronous) capture
// completes. The device pipeline does not proceed to apply a scene's
// target values until every output's capture callback has fired.
func (o *OutputBehaviour) CaptureScene(done func(values []float64, err error)) {
	vals := make([]float64, len(o.Channels))
	for i, c := range o.Channels {
		vals[i] = c.GetChannelValue()
	}
	done(vals, nil)
}

// ApplyScene pushes values (one per channel, by index) into the channels
// with the given transition time.
func (o *OutputBehaviour) ApplyScene(values []float64, transitionTime time.Duration) {
	for i, c := range o.Channels {
		if i >= len(values) {
			break
		}
		c.SetChannelValue(values[i], transitionTime, false)
	}
}

// PerformSceneActions runs behaviour-specific effects beyond plain value
// application (flashing, blinking). The base implementation is a no-op;
// device-technology behaviours (e.g. a DALI dimmer with a "blink" effect)
// override by embedding and shadowing this method.
func (o *OutputBehaviour) PerformSceneActions(effect Effect) {}

// OnAtMinBrightness switches the output on at its minimum level if
// currently off; used by Device.CallSceneMin.
func (o *OutputBehaviour) OnAtMinBrightness() {
	for _, c := range o.Channels {
		if c.GetChannelValue() <= c.Min {
			c.SetChannelValue(c.Min, 0, true)
		}
	}
}

func (o *OutputBehaviour) Descriptors() []proptree.Descriptor {
	ds := o.baseDescriptors()
	ds = append(ds, proptree.Descriptor{Name: "channels", Type: proptree.TObject, IsArray: true, AccessKey: proptree.StateBase + 10})
	return ds
}

func (o *OutputBehaviour) ArrayLength(d proptree.Descriptor) int {
	if d.Name == "channels" {
		return len(o.Channels)
	}
	return 0
}

func (o *OutputBehaviour) AccessField(write bool, value any, d proptree.Descriptor, idx int) (any, error) {
	if v, handled, err := o.baseAccessField(write, value, d, idx); handled {
		return v, err
	}
	return nil, proptree.TypeMismatch(d.Name)
}

func (o *OutputBehaviour) GetContainer(d proptree.Descriptor, idx int) (proptree.Container, error) {
	if d.Name == "channels" {
		if err := proptree.OutOfRangeFor("channels", idx, len(o.Channels)); err != nil {
			return nil, err
		}
		return o.Channels[idx], nil
	}
	return nil, proptree.TypeMismatch(d.Name)
}
