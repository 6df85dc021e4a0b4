package device

import "vdchost/proptree"

// Descriptors implements proptree.Container: the device's own description
// fields plus one array-typed field per behaviour kind.
func (d *Device) Descriptors() []proptree.Descriptor {
	return []proptree.Descriptor{
		{Name: "name", Type: proptree.TString, AccessKey: proptree.DescriptionBase + 1},
		{Name: "zoneID", Type: proptree.TInt32, AccessKey: proptree.SettingsBase + 1},
		{Name: "buttons", Type: proptree.TObject, IsArray: true, AccessKey: proptree.StateBase + 1},
		{Name: "binaryInputs", Type: proptree.TObject, IsArray: true, AccessKey: proptree.StateBase + 2},
		{Name: "sensors", Type: proptree.TObject, IsArray: true, AccessKey: proptree.StateBase + 3},
		{Name: "outputs", Type: proptree.TObject, IsArray: true, AccessKey: proptree.StateBase + 4},
	}
}

func (d *Device) ArrayLength(desc proptree.Descriptor) int {
	switch desc.Name {
	case "buttons":
		return len(d.Buttons)
	case "binaryInputs":
		return len(d.BinaryInputs)
	case "sensors":
		return len(d.Sensors)
	case "outputs":
		return len(d.Outputs)
	}
	return 0
}

func (d *Device) AccessField(write bool, value any, desc proptree.Descriptor, idx int) (any, error) {
	switch desc.Name {
	case "name":
		if write {
			s, ok := value.(string)
			if !ok {
				return nil, proptree.TypeMismatch("name")
			}
			d.Name = s
			d.MarkDirty()
			return nil, nil
		}
		return d.Name, nil
	case "zoneID":
		if write {
			n, ok := value.(int)
			if !ok {
				return nil, proptree.TypeMismatch("zoneID")
			}
			d.ZoneID = n
			d.MarkDirty()
			return nil, nil
		}
		return d.ZoneID, nil
	}
	return nil, proptree.TypeMismatch(desc.Name)
}

func (d *Device) GetContainer(desc proptree.Descriptor, idx int) (proptree.Container, error) {
	switch desc.Name {
	case "buttons":
		if err := proptree.OutOfRangeFor("buttons", idx, len(d.Buttons)); err != nil {
			return nil, err
		}
		return d.Buttons[idx], nil
	case "binaryInputs":
		if err := proptree.OutOfRangeFor("binaryInputs", idx, len(d.BinaryInputs)); err != nil {
			return nil, err
		}
		return d.BinaryInputs[idx], nil
	case "sensors":
		if err := proptree.OutOfRangeFor("sensors", idx, len(d.Sensors)); err != nil {
			return nil, err
		}
		return d.Sensors[idx], nil
	case "outputs":
		if err := proptree.OutOfRangeFor("outputs", idx, len(d.Outputs)); err != nil {
			return nil, err
		}
		return d.Outputs[idx], nil
	}
	return nil, proptree.TypeMismatch(desc.Name)
}
