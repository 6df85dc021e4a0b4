// Package behaviour implements the button/binaryInput/sensor/output
// behaviour kinds every device owns, each exposing a description/
// settings/state property group through proptree.Container, and the
// output kind's Channel value-transition state machine.
package behaviour

import (
	"vdchost/paramset"
	"vdchost/proptree"
)

// Kind identifies a behaviour's category. The string MUST match the
// prefix used by the owning device's behaviour-array property names.
type Kind string

const (
	Button      Kind = "button"
	BinaryInput Kind = "binaryInput"
	Sensor      Kind = "sensor"
	Output      Kind = "output"
)

// Base is embedded by every behaviour kind. It supplies the two
// description-group fields common to all behaviours (name, type) and the
// persistence/dirty bookkeeping from paramset.Base.
type Base struct {
	paramset.Base
	Name  string
	Index int
	kind  Kind
}

// tableFor names the settings table each behaviour kind persists under;
// one table per kind keeps the column sets from colliding.
func tableFor(kind Kind) string {
	switch kind {
	case Button:
		return "buttonSettings"
	case BinaryInput:
		return "binaryInputSettings"
	case Sensor:
		return "sensorSettings"
	case Output:
		return "outputSettings"
	}
	return "behaviourSettings"
}

func NewBase(kind Kind, index int) Base {
	b := Base{kind: kind, Index: index}
	b.Table = tableFor(kind)
	return b
}

func (b *Base) Kind() Kind { return b.kind }

// baseDescriptors returns the two description-group fields every
// behaviour carries, biased into the description access-key band.
func (b *Base) baseDescriptors() []proptree.Descriptor {
	return []proptree.Descriptor{
		{Name: "name", Type: proptree.TString, AccessKey: proptree.DescriptionBase + 1},
		{Name: "type", Type: proptree.TString, AccessKey: proptree.DescriptionBase + 2},
	}
}

// baseAccessField handles the two base fields; embedding types call this
// first and fall through to their own fields when it reports the field
// as not handled.
func (b *Base) baseAccessField(write bool, value any, d proptree.Descriptor, idx int) (any, bool, error) {
	switch d.Name {
	case "name":
		if write {
			s, ok := value.(string)
			if !ok {
				return nil, true, proptree.TypeMismatch("name")
			}
			b.Name = s
			b.MarkDirty()
			return nil, true, nil
		}
		return b.Name, true, nil
	case "type":
		if write {
			return nil, true, proptree.CheckReadOnly(write, "type")
		}
		return string(b.kind), true, nil
	}
	return nil, false, nil
}
