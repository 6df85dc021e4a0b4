package behaviour

import "vdchost/proptree"

// BinaryInputBehaviour models a two-state sensor input (contact, motion,
// occupancy, …). Level is the last reported state.
type BinaryInputBehaviour struct {
	Base
	InputType string
	Level     bool
}

func NewBinaryInputBehaviour(index int, inputType string) *BinaryInputBehaviour {
	return &BinaryInputBehaviour{Base: NewBase(BinaryInput, index), InputType: inputType}
}

// SetLevel is called by the owning Vdc's packet/event router when a new
// reading arrives.
func (b *BinaryInputBehaviour) SetLevel(v bool) {
	if b.Level != v {
		b.Level = v
		b.MarkDirty()
	}
}

// UpdateSensorValue implements enocean.SensorTarget: HandlerStdInput
// decodes a raw bit to 0/1, delivered here as a level.
func (b *BinaryInputBehaviour) UpdateSensorValue(v float64) { b.SetLevel(v != 0) }

func (b *BinaryInputBehaviour) Descriptors() []proptree.Descriptor {
	ds := b.baseDescriptors()
	ds = append(ds,
		proptree.Descriptor{Name: "inputType", Type: proptree.TString, AccessKey: proptree.DescriptionBase + 3},
		proptree.Descriptor{Name: "level", Type: proptree.TBool, AccessKey: proptree.StateBase + 1},
	)
	return ds
}

func (b *BinaryInputBehaviour) ArrayLength(proptree.Descriptor) int { return 0 }

func (b *BinaryInputBehaviour) AccessField(write bool, value any, d proptree.Descriptor, idx int) (any, error) {
	if v, handled, err := b.baseAccessField(write, value, d, idx); handled {
		return v, err
	}
	switch d.Name {
	case "inputType":
		return b.InputType, proptree.CheckReadOnly(write, "inputType")
	case "level":
		return b.Level, proptree.CheckReadOnly(write, "level")
	}
	return nil, proptree.TypeMismatch(d.Name)
}

func (b *BinaryInputBehaviour) GetContainer(d proptree.Descriptor, idx int) (proptree.Container, error) {
	return nil, proptree.TypeMismatch(d.Name)
}
