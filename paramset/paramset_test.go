package paramset

import (
	"testing"

	"vdchost/pstore"
)

func TestSaveIfDirtyNoopWhenClean(t *testing.T) {
	var b Base
	b.Table = "widgets"
	if err := b.SaveIfDirty(nil, 0, nil); err != nil {
		t.Fatalf("expected no-op on clean Base, got %v", err)
	}
}

func TestMarkDirtyThenSaveAssignsRowID(t *testing.T) {
	s, err := pstore.Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.EnsureTable("widgets", []pstore.Column{{Name: "name", SQLType: "TEXT"}}); err != nil {
		t.Fatal(err)
	}

	var b Base
	b.Table = "widgets"
	b.MarkDirty()
	if !b.IsDirty() {
		t.Fatal("expected dirty after MarkDirty")
	}

	if err := b.SaveIfDirty(s, 0, pstore.Row{"name": "a"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if b.RowID == 0 {
		t.Fatal("expected nonzero RowID after save")
	}
	if b.IsDirty() {
		t.Fatal("expected clean after save")
	}
}

func TestLoadZeroRowIDIsNoRow(t *testing.T) {
	var b Base
	b.Table = "widgets"
	if err := b.Load(nil, 0, []string{"name"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.LoadField("name") != nil {
		t.Fatalf("expected nil field on unloaded Base")
	}
}
