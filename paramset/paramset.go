// Package paramset provides the Base every persisted, property-addressable
// object embeds: a proptree.Container implementation backed by a pstore
// row, a dirty flag set whenever a write lands, and the stable rowid
// assigned on first save.
package paramset

import (
	"vdchost/proptree"
	"vdchost/pstore"
)

// Base is embedded by Behaviour, Device, Scene and every other ParamSet.
// It does not itself implement proptree.Container — the embedding type
// still supplies Descriptors/AccessField/GetContainer — but it carries
// the bookkeeping those implementations share, plus the WrittenProperty
// notification every proptree.Container must have.
type Base struct {
	Table  string
	RowID  int64
	dirty  bool
	fields pstore.Row
}

// MarkDirty flags this ParamSet as needing a save. Embedding types call
// this from their AccessField on a successful write, and proptree calls
// the WrittenProperty hook (which types typically forward into MarkDirty)
// when a write reaches a sub-container this Base owns.
func (b *Base) MarkDirty() { b.dirty = true }

// IsDirty reports whether SaveIfDirty would actually touch the store.
func (b *Base) IsDirty() bool { return b.dirty }

// ClearDirty is called after a successful save.
func (b *Base) ClearDirty() { b.dirty = false }

// WrittenProperty is the default proptree.Container hook: any write that
// reached a sub-container owned by this Base marks it dirty. Embedding
// types needing finer-grained bookkeeping can shadow this method.
func (b *Base) WrittenProperty(d proptree.Descriptor, idx int, sub proptree.Container) {
	b.MarkDirty()
}

// Load populates fields from the store by rowid (0 means "no persisted
// row yet", a normal state for a freshly discovered object before its
// first save). cols lists the column set the caller's schema expects.
func (b *Base) Load(store *pstore.Store, rowid int64, cols []string) error {
	if rowid == 0 {
		b.fields = nil
		b.RowID = 0
		return nil
	}
	row, err := store.Load(b.Table, rowid, cols)
	if err != nil {
		return err
	}
	b.RowID = rowid
	b.fields = row
	return nil
}

// LoadField returns a previously loaded column value, or nil if unset.
func (b *Base) LoadField(name string) any {
	if b.fields == nil {
		return nil
	}
	return b.fields[name]
}

// SaveIfDirty persists values (the embedding type's current column state)
// if and only if the dirty flag is set, and clears it on success. Saving
// a child ParamSet collection must always pass the already-saved parent's
// RowID as parentID, never 0, so children cannot dangle from a parent row
// that hasn't been assigned an identity yet.
func (b *Base) SaveIfDirty(store *pstore.Store, parentID int64, values pstore.Row) error {
	if !b.dirty {
		return nil
	}
	rowid, err := store.Save(b.Table, b.RowID, parentID, values)
	if err != nil {
		return err
	}
	b.RowID = rowid
	b.dirty = false
	return nil
}

// RowFromContainer builds a pstore.Row from a Container's own scalar
// fields, by reading every non-array, non-object/proxy descriptor through
// AccessField. Array and sub-container fields are owned by their own
// ParamSet rows (parented by this one's RowID) and are never flattened in.
func RowFromContainer(c proptree.Container) pstore.Row {
	row := make(pstore.Row)
	for _, d := range c.Descriptors() {
		if d.IsArray || d.Type == proptree.TObject || d.Type == proptree.TProxy {
			continue
		}
		if v, err := c.AccessField(false, nil, d, 0); err == nil {
			row[d.Name] = v
		}
	}
	return row
}

// Forget deletes this ParamSet's persisted row, if any.
func (b *Base) Forget(store *pstore.Store) error {
	if b.RowID == 0 {
		return nil
	}
	if err := store.Forget(b.Table, b.RowID); err != nil {
		return err
	}
	b.RowID = 0
	return nil
}
