package behaviour

import (
	"testing"

	"vdchost/proptree"
)

func TestOutputBehaviourDescriptorsAndChannelAccess(t *testing.T) {
	ch := NewChannel(0, 100, 1, false)
	o := NewOutputBehaviour(0, ch)
	o.Name = "light"

	v, err := proptree.Access(o, false, nil, "name", 0, 0)
	if err != nil || v != "light" {
		t.Fatalf("read name = %v, %v", v, err)
	}

	n, err := proptree.Access(o, false, nil, "channels", proptree.ArraySize, 0)
	if err != nil || n.(int) != 1 {
		t.Fatalf("channels size = %v, %v", n, err)
	}

	if _, err := proptree.Access(o, true, map[string]any{"value": 42.0}, "channels", 0, 0); err != nil {
		t.Fatalf("write channel 0 value: %v", err)
	}
	if ch.GetChannelValue() != 42 {
		t.Fatalf("channel value = %v, want 42", ch.GetChannelValue())
	}
}

func TestOutputBehaviourCaptureAndApplyScene(t *testing.T) {
	ch := NewChannel(0, 100, 1, false)
	ch.SetChannelValue(30, 0, true)
	ch.ChannelValueApplied(false)
	o := NewOutputBehaviour(0, ch)

	var captured []float64
	o.CaptureScene(func(values []float64, err error) {
		captured = values
	})
	if len(captured) != 1 || captured[0] != 30 {
		t.Fatalf("captured = %v, want [30]", captured)
	}

	o.ApplyScene([]float64{80}, 0)
	if ch.GetChannelValue() != 80 {
		t.Fatalf("apply scene = %v, want 80", ch.GetChannelValue())
	}
}

func TestButtonBehaviourLocalEnabledWrite(t *testing.T) {
	b := NewButtonBehaviour(0)
	if _, err := proptree.Access(b, true, true, "localEnabled", 0, 0); err != nil {
		t.Fatal(err)
	}
	if !b.LocalEnabled {
		t.Fatal("expected localEnabled set")
	}
	if !b.IsDirty() {
		t.Fatal("expected dirty after settings write")
	}
}

func TestBinaryInputLevelReadOnly(t *testing.T) {
	b := NewBinaryInputBehaviour(0, "motion")
	b.SetLevel(true)
	v, err := proptree.Access(b, false, nil, "level", 0, 0)
	if err != nil || v != true {
		t.Fatalf("read level = %v, %v", v, err)
	}
	if _, err := proptree.Access(b, true, false, "level", 0, 0); err == nil {
		t.Fatal("expected read-only error writing level")
	}
}

func TestSensorValueReadOnly(t *testing.T) {
	s := NewSensorBehaviour(0, -40, 0, 0.01, 60)
	s.SetValue(-20.08)
	v, err := proptree.Access(s, false, nil, "value", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := v.(float64); got < -20.09 || got > -20.07 {
		t.Fatalf("value = %v, want ~-20.08", got)
	}
}
