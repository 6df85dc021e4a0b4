package device

import (
	"testing"

	"vdchost/behaviour"
	"vdchost/ident"
	"vdchost/pstore"
)

func openMemStore(t *testing.T) *pstore.Store {
	t.Helper()
	s, err := pstore.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPersistCleanDeviceIsNoop(t *testing.T) {
	store := openMemStore(t)
	if err := store.EnsureTable("devices", []pstore.Column{{Name: "name", SQLType: "TEXT"}}); err != nil {
		t.Fatal(err)
	}
	d := New(ident.SetClassic(0, 1))
	if err := d.Persist(store); err != nil {
		t.Fatal(err)
	}
	if d.RowID != 0 {
		t.Fatalf("expected no row assigned for clean device, got %d", d.RowID)
	}
}

func TestPersistDirtyDeviceAssignsRowID(t *testing.T) {
	store := openMemStore(t)
	if err := store.EnsureTable("devices", []pstore.Column{{Name: "name", SQLType: "TEXT"}, {Name: "zoneID", SQLType: "INTEGER"}}); err != nil {
		t.Fatal(err)
	}
	d := New(ident.SetClassic(0, 1))
	d.Name = "kitchen light"
	d.MarkDirty()

	if err := d.Persist(store); err != nil {
		t.Fatal(err)
	}
	if d.RowID == 0 {
		t.Fatal("expected a row assigned after persisting dirty device")
	}
	if d.IsDirty() {
		t.Fatal("expected dirty flag cleared after save")
	}

	loaded, err := store.Load("devices", d.RowID, []string{"name"})
	if err != nil {
		t.Fatal(err)
	}
	if loaded["name"] != "kitchen light" {
		t.Fatalf("expected persisted name, got %+v", loaded)
	}
}

func TestPersistDirtyOutputBehaviourSavesUnderDeviceRow(t *testing.T) {
	store := openMemStore(t)
	if err := store.EnsureTable("devices", []pstore.Column{{Name: "name", SQLType: "TEXT"}, {Name: "zoneID", SQLType: "INTEGER"}}); err != nil {
		t.Fatal(err)
	}
	if err := store.EnsureTable("outputSettings", []pstore.Column{{Name: "name", SQLType: "TEXT"}, {Name: "type", SQLType: "TEXT"}}); err != nil {
		t.Fatal(err)
	}

	ch := behaviour.NewChannel(0, 100, 1, false)
	out := behaviour.NewOutputBehaviour(0, ch)
	out.Name = "dimmer"
	out.MarkDirty()

	d := New(ident.SetClassic(0, 1))
	d.Name = "lamp"
	d.MarkDirty()
	d.Outputs = []*behaviour.OutputBehaviour{out}

	if err := d.Persist(store); err != nil {
		t.Fatal(err)
	}
	if out.RowID == 0 {
		t.Fatal("expected output behaviour row assigned")
	}

	children, err := store.LoadChildren("outputSettings", d.RowID, []string{"name"})
	if err != nil {
		t.Fatal(err)
	}
	if len(children) != 1 || children[0]["name"] != "dimmer" {
		t.Fatalf("expected child row parented to device, got %+v", children)
	}
}

func TestPersistDirtySceneSavesRow(t *testing.T) {
	store := openMemStore(t)
	if err := store.EnsureTable("devices", []pstore.Column{{Name: "name", SQLType: "TEXT"}, {Name: "zoneID", SQLType: "INTEGER"}}); err != nil {
		t.Fatal(err)
	}
	if err := store.EnsureTable("scenes", []pstore.Column{
		{Name: "sceneNo", SQLType: "INTEGER"},
		{Name: "value", SQLType: "REAL"},
		{Name: "effect", SQLType: "TEXT"},
		{Name: "ignoreLocalPriority", SQLType: "INTEGER"},
		{Name: "dontCare", SQLType: "INTEGER"},
		{Name: "cmd", SQLType: "TEXT"},
		{Name: "area", SQLType: "INTEGER"},
	}); err != nil {
		t.Fatal(err)
	}

	d := New(ident.SetClassic(0, 1))
	d.Name = "lamp"
	d.MarkDirty()
	sc := d.Scenes.GetScene(5)
	sc.Value = 42
	d.Scenes.UpdateScene(sc)

	if err := d.Persist(store); err != nil {
		t.Fatal(err)
	}
	if sc.RowID == 0 {
		t.Fatal("expected scene row assigned")
	}
	if sc.IsDirty() {
		t.Fatal("expected scene dirty flag cleared")
	}
}
