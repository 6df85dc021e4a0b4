package enoceanvdc

import (
	"context"
	"testing"
	"time"

	"vdchost/buttonfsm"
	"vdchost/enocean"
	"vdchost/ident"
)

func radioPacket(rorg enocean.RORG, userData []byte, sender uint32, status byte) *enocean.Packet {
	data := []byte{byte(rorg)}
	data = append(data, userData...)
	data = append(data, byte(sender>>24), byte(sender>>16), byte(sender>>8), byte(sender))
	data = append(data, status)
	return &enocean.Packet{Type: enocean.PTRadio, Data: data}
}

func TestTeachInQueuedOnlyWhileLearning(t *testing.T) {
	c := NewCollector(ident.SetClassic(1, 1))
	pkt := radioPacket(enocean.RORGRPS, []byte{0x00}, 0x01020304, 0x20) // T21=1,NU=0,d7=0 -> 2-rocker

	c.HandlePacket(pkt, time.Now())
	found, err := c.Discover(context.Background(), false)
	if err != nil || len(found) != 0 {
		t.Fatalf("expected no discovery while not learning, got %v %v", found, err)
	}

	c.SetLearning(true)
	c.HandlePacket(pkt, time.Now())
	found, err = c.Discover(context.Background(), false)
	if err != nil || len(found) != 1 {
		t.Fatalf("expected one discovery, got %v %v", found, err)
	}
	dev := found[0].Build()
	if len(dev.Buttons) != 4 {
		t.Fatalf("expected 4 button behaviours (2 rockers x 2 halves), got %d", len(dev.Buttons))
	}
}

func TestRockerPressThenReleaseEmitsTip(t *testing.T) {
	c := NewCollector(ident.SetClassic(1, 1))
	c.SetLearning(true)
	teach := radioPacket(enocean.RORGRPS, []byte{0x00}, 0x0A0B0C0D, 0x20)
	c.HandlePacket(teach, time.Now())
	found, _ := c.Discover(context.Background(), false)
	if len(found) != 1 {
		t.Fatalf("expected discovery")
	}
	found[0].Build()

	var emitted int
	c.mu.Lock()
	route := c.routes[0x0A0B0C0D]
	c.mu.Unlock()
	route.rockers[0][0].fsm.Emit = func(buttonfsm.ClickType) { emitted++ }

	now := time.Now()
	// N-message: rocker 0, down half, pressed (d4=1), second action invalid (bit0=0).
	press := radioPacket(enocean.RORGRPS, []byte{0x10}, 0x0A0B0C0D, 0x30) // NU=1
	c.HandlePacket(press, now)
	if !route.rockers[0][0].pending {
		t.Fatal("expected a pending FSM deadline after press")
	}

	// U-message mass release, 200ms later: long enough to count as a tip,
	// which then waits out TTipTimeout for a possible second tip.
	release := radioPacket(enocean.RORGRPS, []byte{0x00}, 0x0A0B0C0D, 0x20)
	c.HandlePacket(release, now.Add(200*time.Millisecond))
	if !route.rockers[0][0].pending {
		t.Fatal("expected the FSM to still be waiting out the tip timeout after release")
	}

	c.Tick(now.Add(1200 * time.Millisecond))
	if route.rockers[0][0].pending {
		t.Fatal("expected the tip timeout to fire and reset the FSM")
	}
	if emitted != 1 {
		t.Fatalf("expected exactly one tip emission, got %d", emitted)
	}
}

func TestBinaryTeachInAndDataDeliver(t *testing.T) {
	c := NewCollector(ident.SetClassic(1, 1))
	c.SetLearning(true)
	teach := radioPacket(enocean.RORG1BS, []byte{0x00}, 0x11223344, 0) // bit3=0 -> teach-in
	c.HandlePacket(teach, time.Now())
	found, _ := c.Discover(context.Background(), false)
	if len(found) != 1 {
		t.Fatalf("expected discovery")
	}
	dev := found[0].Build()
	if len(dev.BinaryInputs) != 1 {
		t.Fatalf("expected one binary input behaviour")
	}

	data := radioPacket(enocean.RORG1BS, []byte{0x09}, 0x11223344, 0) // bit3 set -> data, bit0 set -> level 1
	c.HandlePacket(data, time.Now())
	if !dev.BinaryInputs[0].Level {
		t.Fatal("expected binary input level to go true")
	}
}
