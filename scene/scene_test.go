package scene

import (
	"strings"
	"testing"
)

func TestDefaultSceneRow0IsOffInvoke(t *testing.T) {
	s := NewDefaultScene(0)
	if s.Value != 0 || s.Cmd != CmdOff || s.DontCare || s.IgnoreLocalPriority {
		t.Fatalf("unexpected row 0: %+v", s)
	}
}

func TestDefaultSceneAreaOnHasIgnoreLocalPriority(t *testing.T) {
	s := NewDefaultScene(6) // Area 1 On
	if !s.IgnoreLocalPriority || s.Area != 1 || s.Value != 100 {
		t.Fatalf("unexpected row 6: %+v", s)
	}
}

func TestDefaultSceneAboveRangeUsesCatchAll(t *testing.T) {
	s100 := NewDefaultScene(100)
	s79 := NewDefaultScene(79)
	if s100.Value != s79.Value || s100.Cmd != s79.Cmd || s100.DontCare != s79.DontCare {
		t.Fatalf("scene 100 should match catch-all row 79: %+v vs %+v", s100, s79)
	}
}

func TestGetSceneReturnsDefaultWhenUnset(t *testing.T) {
	tbl := NewTable(nil)
	s := tbl.GetScene(5)
	if s.Value != 100 || s.SceneNo != 5 {
		t.Fatalf("expected default row 5, got %+v", s)
	}
}

func TestUpdateSceneMarksDirtyAndNotifiesOnFirstRow(t *testing.T) {
	notified := false
	tbl := NewTable(func() { notified = true })
	s := tbl.GetScene(5)
	s.Value = 42
	tbl.UpdateScene(s)
	if !notified {
		t.Fatal("expected onDirty notification for first scene row")
	}
	if !tbl.GetScene(5).IsDirty() {
		t.Fatal("expected updated scene to be dirty")
	}

	notified = false
	s2 := tbl.GetScene(6)
	tbl.UpdateScene(s2)
	if notified {
		t.Fatal("expected no second notification once table is non-empty")
	}
}

func TestResetSceneRevertsToDefault(t *testing.T) {
	tbl := NewTable(nil)
	s := tbl.GetScene(5)
	s.Value = 1
	tbl.UpdateScene(s)
	tbl.ResetScene(5)
	if tbl.GetScene(5).Value != 100 {
		t.Fatal("expected default value after reset")
	}
}

func TestNormalizeDimScenes(t *testing.T) {
	if cmd, ok := Normalize(11); !ok || cmd != CmdDecrement {
		t.Fatalf("scene 11 should normalize to decrement, got %v,%v", cmd, ok)
	}
	if _, ok := Normalize(5); ok {
		t.Fatal("scene 5 should not normalize as a dim scene")
	}
}

func TestCSVOverlayMergeRespectsOverrideAcrossLevels(t *testing.T) {
	deviceLevel, err := ParseCSV(strings.NewReader("5,value=10\n"))
	if err != nil {
		t.Fatal(err)
	}
	classLevel, err := ParseCSV(strings.NewReader("!5,value=99\n"))
	if err != nil {
		t.Fatal(err)
	}
	merged := MergeOverlays([]Overlay{deviceLevel, classLevel})
	if merged[5]["value"] != "99" {
		t.Fatalf("expected override from less-specific level to win, got %v", merged[5])
	}
}

func TestApplyOverlaySetsChannelValues(t *testing.T) {
	s := NewDefaultScene(5)
	ApplyOverlay(s, map[string]string{"ch0": "55", "ch0_dontCare": "true"})
	if s.ChannelValues[0] != 55 || !s.ChannelDontCare[0] {
		t.Fatalf("expected channel overlay applied, got %+v %+v", s.ChannelValues, s.ChannelDontCare)
	}
}
