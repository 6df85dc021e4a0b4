package behaviour

import "vdchost/proptree"

// ButtonBehaviour models one physical button input. The FSM that turns
// raw press/release edges into ClickType emissions lives in package
// buttonfsm; this type holds the button's static configuration and
// exposes it through the property tree.
type ButtonBehaviour struct {
	Base
	LocalEnabled bool // local-dim/local-on-off hook is active for this button
	GroupMembership uint64
}

func NewButtonBehaviour(index int) *ButtonBehaviour {
	return &ButtonBehaviour{Base: NewBase(Button, index)}
}

func (b *ButtonBehaviour) Descriptors() []proptree.Descriptor {
	ds := b.baseDescriptors()
	ds = append(ds,
		proptree.Descriptor{Name: "localEnabled", Type: proptree.TBool, AccessKey: proptree.SettingsBase + 1},
	)
	return ds
}

func (b *ButtonBehaviour) ArrayLength(proptree.Descriptor) int { return 0 }

func (b *ButtonBehaviour) AccessField(write bool, value any, d proptree.Descriptor, idx int) (any, error) {
	if v, handled, err := b.baseAccessField(write, value, d, idx); handled {
		return v, err
	}
	switch d.Name {
	case "localEnabled":
		if write {
			bv, ok := value.(bool)
			if !ok {
				return nil, proptree.TypeMismatch("localEnabled")
			}
			b.LocalEnabled = bv
			b.MarkDirty()
			return nil, nil
		}
		return b.LocalEnabled, nil
	}
	return nil, proptree.TypeMismatch(d.Name)
}

func (b *ButtonBehaviour) GetContainer(d proptree.Descriptor, idx int) (proptree.Container, error) {
	return nil, proptree.TypeMismatch(d.Name)
}
