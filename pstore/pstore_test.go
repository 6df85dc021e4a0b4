package pstore

import "testing"

func openMem(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEnsureTableIdempotentAndAdditive(t *testing.T) {
	s := openMem(t)
	cols := []Column{{Name: "name", SQLType: "TEXT"}}
	if err := s.EnsureTable("widgets", cols); err != nil {
		t.Fatalf("first EnsureTable: %v", err)
	}
	// Re-running with the same columns must not fail (duplicate-column
	// ALTER errors are swallowed), and adding a new column must succeed.
	cols = append(cols, Column{Name: "enabled", SQLType: "INTEGER"})
	if err := s.EnsureTable("widgets", cols); err != nil {
		t.Fatalf("second EnsureTable: %v", err)
	}
}

func TestSaveInsertThenUpdate(t *testing.T) {
	s := openMem(t)
	cols := []Column{{Name: "name", SQLType: "TEXT"}}
	if err := s.EnsureTable("widgets", cols); err != nil {
		t.Fatal(err)
	}

	rowid, err := s.Save("widgets", 0, 0, Row{"name": "a"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if rowid == 0 {
		t.Fatal("expected nonzero rowid after insert")
	}

	if _, err := s.Save("widgets", rowid, 0, Row{"name": "b"}); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := s.Load("widgets", rowid, []string{"name"})
	if err != nil {
		t.Fatal(err)
	}
	if got["name"] != "b" {
		t.Fatalf("name = %v, want b", got["name"])
	}
}

func TestLoadMissingRowReturnsNilNotError(t *testing.T) {
	s := openMem(t)
	if err := s.EnsureTable("widgets", []Column{{Name: "name", SQLType: "TEXT"}}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load("widgets", 999, []string{"name"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil row, got %v", got)
	}
}

func TestParentChildOrdering(t *testing.T) {
	s := openMem(t)
	if err := s.EnsureTable("scenes", []Column{{Name: "sceneNo", SQLType: "INTEGER"}}); err != nil {
		t.Fatal(err)
	}
	parentID := int64(42)
	for _, no := range []int{5, 1, 9} {
		if _, err := s.Save("scenes", 0, parentID, Row{"sceneNo": no}); err != nil {
			t.Fatal(err)
		}
	}
	rows, err := s.LoadChildren("scenes", parentID, []string{"sceneNo"})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	for i, want := range []int64{5, 1, 9} {
		if rows[i]["sceneNo"] != want {
			t.Fatalf("row %d sceneNo = %v, want %d (insertion order)", i, rows[i]["sceneNo"], want)
		}
	}
}

func TestForget(t *testing.T) {
	s := openMem(t)
	if err := s.EnsureTable("widgets", []Column{{Name: "name", SQLType: "TEXT"}}); err != nil {
		t.Fatal(err)
	}
	rowid, err := s.Save("widgets", 0, 0, Row{"name": "a"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Forget("widgets", rowid); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load("widgets", rowid, []string{"name"})
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("expected row gone, got %v", got)
	}
	// Forgetting an already-gone row is not an error.
	if err := s.Forget("widgets", rowid); err != nil {
		t.Fatalf("re-forget: %v", err)
	}
}
