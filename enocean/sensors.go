package enocean

// DefaultSensorTable is the descriptor rows this build knows how to
// decode out of the box. Additional EEPs are added here as they're
// brought up, not hand-wired into the dispatch logic.
var DefaultSensorTable = []SensorDescriptor{
	{
		// A5-02-01: temperature sensor, -40..0C, DB1 inverted.
		Func: 0x02, Type: 0x01,
		SubdeviceIdx: 0, PrimaryGroup: 3, BehaviourKind: "sensor", KindParam: 0,
		Min: -40, Max: 0, MsBit: 15, LsBit: 8,
		UpdateIntervalSec: 0, Handler: HandlerInv,
	},
}

// LookupSensor finds the descriptor matching a decoded EEP, if any.
func LookupSensor(table []SensorDescriptor, eep EEP) (SensorDescriptor, bool) {
	for _, d := range table {
		if d.Func == eep.Func && d.Type == eep.Type {
			return d, true
		}
	}
	return SensorDescriptor{}, false
}

// SensorTarget receives a decoded sensor value or binary input level.
type SensorTarget interface {
	UpdateSensorValue(v float64)
}

// ChannelHandler dispatches one radio telegram to the behaviour it
// targets, living one-per-behaviour on a device; the packet router
// delivers every non-teach-in packet to every handler of every device
// whose address matches the sender.
type ChannelHandler struct {
	Descriptor SensorDescriptor
	Target     SensorTarget
}

// HandleRadio decodes userData against this handler's descriptor and
// forwards the result to the target behaviour. It does not check for
// teach-in telegrams; the caller routes those to the teach-in path before
// calling it.
func (h ChannelHandler) HandleRadio(userData [4]byte) {
	h.Target.UpdateSensorValue(h.Descriptor.Decode(userData))
}
