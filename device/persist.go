package device

import (
	"vdchost/paramset"
	"vdchost/proptree"
	"vdchost/pstore"
)

// dirtySaver is what Persist needs from a device's own row and from each
// child ParamSet (behaviour, scene): the Container so a row of column
// values can be built, plus the dirty-tracking paramset.Base promotes.
type dirtySaver interface {
	proptree.Container
	IsDirty() bool
	SaveIfDirty(store *pstore.Store, parentID int64, values pstore.Row) error
}

func persistOne(store *pstore.Store, parentID int64, c dirtySaver) error {
	if !c.IsDirty() {
		return nil
	}
	return c.SaveIfDirty(store, parentID, paramset.RowFromContainer(c))
}

// Persist is the device-level "save()" the periodic save loop calls:
// cheap (no store round-trip) for a clean device, otherwise flushes the
// device's own row plus every dirty behaviour and scene row beneath it.
func (d *Device) Persist(store *pstore.Store) error {
	if err := persistOne(store, 0, d); err != nil {
		return err
	}
	for _, o := range d.Outputs {
		if err := persistOne(store, d.RowID, o); err != nil {
			return err
		}
	}
	for _, b := range d.Buttons {
		if err := persistOne(store, d.RowID, b); err != nil {
			return err
		}
	}
	for _, b := range d.BinaryInputs {
		if err := persistOne(store, d.RowID, b); err != nil {
			return err
		}
	}
	for _, s := range d.Sensors {
		if err := persistOne(store, d.RowID, s); err != nil {
			return err
		}
	}
	for _, sc := range d.Scenes.All() {
		if !sc.IsDirty() {
			continue
		}
		rowid, err := store.Save(scenesTable, sc.RowID, d.RowID, pstore.Row(sc.Row()))
		if err != nil {
			return err
		}
		sc.RowID = rowid
		sc.ClearDirty()
	}
	return nil
}

// Forget deletes every persisted row belonging to this device: its own
// settings row, each behaviour's row, and every promoted scene row.
// Children go first so a failure part-way never leaves orphans pointing
// at an already-deleted parent.
func (d *Device) Forget(store *pstore.Store) error {
	if store == nil {
		return nil
	}
	for _, o := range d.Outputs {
		if err := o.Forget(store); err != nil {
			return err
		}
	}
	for _, b := range d.Buttons {
		if err := b.Forget(store); err != nil {
			return err
		}
	}
	for _, b := range d.BinaryInputs {
		if err := b.Forget(store); err != nil {
			return err
		}
	}
	for _, s := range d.Sensors {
		if err := s.Forget(store); err != nil {
			return err
		}
	}
	for _, sc := range d.Scenes.All() {
		if sc.RowID == 0 {
			continue
		}
		if err := store.Forget(scenesTable, sc.RowID); err != nil {
			return err
		}
		sc.RowID = 0
	}
	return d.Base.Forget(store)
}

const scenesTable = "scenes"
