package consolevdc

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"vdchost/buttonfsm"
	"vdchost/ident"
)

func TestDiscoverBuildsConfiguredKeys(t *testing.T) {
	var out bytes.Buffer
	c := NewCollector(&out, ident.SetClassic(1, 3))
	c.AddKey(KeyConfig{Key: "a", Mode: ModeIn})
	c.AddKey(KeyConfig{Key: "b", Mode: ModeOut})
	c.AddKey(KeyConfig{Key: "c", Mode: ModeIO})

	found, err := c.Discover(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 3 {
		t.Fatalf("expected 3 devices, got %d", len(found))
	}
	byKind := map[string][2]int{} // key -> (buttons, outputs)
	for _, disc := range found {
		d := disc.Build()
		byKind[strings.TrimPrefix(d.Name, "console ")] = [2]int{len(d.Buttons), len(d.Outputs)}
	}
	if byKind["a"] != [2]int{1, 0} || byKind["b"] != [2]int{0, 1} || byKind["c"] != [2]int{1, 1} {
		t.Fatalf("unexpected behaviour layout: %v", byKind)
	}
}

func TestKeyTipEmission(t *testing.T) {
	var out bytes.Buffer
	c := NewCollector(&out, ident.SetClassic(1, 3))
	c.AddKey(KeyConfig{Key: "a", Mode: ModeIn})
	found, _ := c.Discover(context.Background(), false)
	found[0].Build()

	var clicks []buttonfsm.ClickType
	c.Clicks = func(key string, ct buttonfsm.ClickType) {
		if key == "a" {
			clicks = append(clicks, ct)
		}
	}

	t0 := time.Unix(100, 0)
	c.FeedKey("a", true, t0)
	c.FeedKey("a", false, t0.Add(150*time.Millisecond))
	c.Tick(t0.Add(150*time.Millisecond + buttonfsm.TTipTimeout))

	if len(clicks) != 1 || clicks[0] != buttonfsm.Tip1x {
		t.Fatalf("expected [tip_1x], got %v", clicks)
	}
	if !strings.Contains(out.String(), "tip_1x") {
		t.Fatalf("emission should be printed, got %q", out.String())
	}
}

func TestRepeatedSameDirectionEdgeIsDropped(t *testing.T) {
	var out bytes.Buffer
	c := NewCollector(&out, ident.SetClassic(1, 3))
	c.AddKey(KeyConfig{Key: "a", Mode: ModeIn})
	found, _ := c.Discover(context.Background(), false)
	found[0].Build()

	var clicks int
	c.Clicks = func(string, buttonfsm.ClickType) { clicks++ }

	t0 := time.Unix(100, 0)
	c.FeedKey("a", true, t0)
	c.FeedKey("a", true, t0.Add(10*time.Millisecond)) // duplicate press
	c.FeedKey("a", false, t0.Add(150*time.Millisecond))
	c.Tick(t0.Add(150*time.Millisecond + buttonfsm.TTipTimeout))

	if clicks != 1 {
		t.Fatalf("duplicate press must not restart the press, got %d emissions", clicks)
	}
}

func TestOutputValuePrinted(t *testing.T) {
	var out bytes.Buffer
	c := NewCollector(&out, ident.SetClassic(1, 3))
	c.AddKey(KeyConfig{Key: "lamp", Mode: ModeOut})
	found, _ := c.Discover(context.Background(), false)
	d := found[0].Build()

	d.Outputs[0].Channels[0].SetChannelValue(42, 0, false)
	c.ApplyPending(context.Background())

	if !strings.Contains(out.String(), "console[lamp]: value 42.0") {
		t.Fatalf("expected printed value, got %q", out.String())
	}
	if d.Outputs[0].Channels[0].NeedsApplying() {
		t.Fatal("channel should be applied after printing")
	}

	out.Reset()
	c.ApplyPending(context.Background())
	if out.Len() != 0 {
		t.Fatalf("clean channel must not print again, got %q", out.String())
	}
}

func TestRebuildUsesPersistedMode(t *testing.T) {
	var out bytes.Buffer
	c := NewCollector(&out, ident.SetClassic(1, 3))

	disc, err := c.Rebuild(map[string]any{"consoleKey": "x", "mode": "io"})
	if err != nil {
		t.Fatal(err)
	}
	d := disc.Build()
	if len(d.Buttons) != 1 || len(d.Outputs) != 1 {
		t.Fatalf("io key should rebuild with button and output, got %d/%d", len(d.Buttons), len(d.Outputs))
	}
}

func TestUnknownKeyIgnored(t *testing.T) {
	var out bytes.Buffer
	c := NewCollector(&out, ident.SetClassic(1, 3))
	c.FeedKey("nope", true, time.Unix(0, 0)) // must not panic
}
