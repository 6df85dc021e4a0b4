package behaviour

import "vdchost/proptree"

// SensorBehaviour models an engineering-unit analog sensor (temperature,
// illumination, …), with the min/max/resolution/updateInterval metadata
// the EnOcean 4BS descriptor table (package enocean) supplies per row.
type SensorBehaviour struct {
	Base
	Min, Max, Resolution float64
	UpdateIntervalSec    int
	Value                float64
	hasValue             bool
}

func NewSensorBehaviour(index int, min, max, resolution float64, updateIntervalSec int) *SensorBehaviour {
	return &SensorBehaviour{
		Base: NewBase(Sensor, index), Min: min, Max: max, Resolution: resolution,
		UpdateIntervalSec: updateIntervalSec,
	}
}

// SetValue is called by the owning Vdc's router when a new engineering
// value has been decoded for this sensor.
func (s *SensorBehaviour) SetValue(v float64) {
	s.Value = v
	s.hasValue = true
	s.MarkDirty()
}

// UpdateSensorValue implements enocean.SensorTarget so a ChannelHandler
// can deliver decoded 4BS sensor values straight to this behaviour.
func (s *SensorBehaviour) UpdateSensorValue(v float64) { s.SetValue(v) }

func (s *SensorBehaviour) Descriptors() []proptree.Descriptor {
	ds := s.baseDescriptors()
	ds = append(ds,
		proptree.Descriptor{Name: "min", Type: proptree.TFloat64, AccessKey: proptree.SettingsBase + 1},
		proptree.Descriptor{Name: "max", Type: proptree.TFloat64, AccessKey: proptree.SettingsBase + 2},
		proptree.Descriptor{Name: "resolution", Type: proptree.TFloat64, AccessKey: proptree.SettingsBase + 3},
		proptree.Descriptor{Name: "value", Type: proptree.TFloat64, AccessKey: proptree.StateBase + 1},
	)
	return ds
}

func (s *SensorBehaviour) ArrayLength(proptree.Descriptor) int { return 0 }

func (s *SensorBehaviour) AccessField(write bool, value any, d proptree.Descriptor, idx int) (any, error) {
	if v, handled, err := s.baseAccessField(write, value, d, idx); handled {
		return v, err
	}
	switch d.Name {
	case "min":
		return s.Min, proptree.CheckReadOnly(write, "min")
	case "max":
		return s.Max, proptree.CheckReadOnly(write, "max")
	case "resolution":
		return s.Resolution, proptree.CheckReadOnly(write, "resolution")
	case "value":
		return s.Value, proptree.CheckReadOnly(write, "value")
	}
	return nil, proptree.TypeMismatch(d.Name)
}

func (s *SensorBehaviour) GetContainer(d proptree.Descriptor, idx int) (proptree.Container, error) {
	return nil, proptree.TypeMismatch(d.Name)
}
