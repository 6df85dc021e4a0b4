package dali

import "context"

// Ballast drives one DALI short address: arc-power application with
// fade-time register caching (the register is only rewritten when the
// encoded value changes), and the presence check.
type Ballast struct {
	bus  Bus
	addr int

	lastFadeX int // -1 until first write
}

func NewBallast(bus Bus, addr int) *Ballast {
	return &Ballast{bus: bus, addr: addr, lastFadeX: -1}
}

// ApplyBrightness converts a 0..100 behaviour brightness to an arc-power
// level and sends it, first updating the fade-time register if the
// requested transition time encodes to a different register value than
// last written.
func (b *Ballast) ApplyBrightness(ctx context.Context, brightness float64, transitionSeconds float64) error {
	x := FadeTimeRegister(transitionSeconds)
	if x != b.lastFadeX {
		if err := b.bus.SetDTR(ctx, byte(x)); err != nil {
			return err
		}
		if _, _, err := b.bus.Query(ctx, b.addr, CmdStoreDTRAsFadeTime); err != nil {
			return err
		}
		b.lastFadeX = x
	}
	arc := BrightnessToArcpower(brightness / 100 * 255)
	return b.bus.SendArcPower(ctx, b.addr, byte(arc))
}

// CheckPresent reports whether the ballast answers QUERY_CONTROL_GEAR
// with a clean (non-collision) YES.
func (b *Ballast) CheckPresent(ctx context.Context) (bool, error) {
	_, ok, err := b.bus.Query(ctx, b.addr, CmdQueryControlGear)
	if err != nil {
		return false, nil
	}
	return ok, nil
}

// IdentifyFlash briefly bumps the ballast to full brightness and back,
// used as the visual "identify this device" signal.
func (b *Ballast) IdentifyFlash() {
	ctx := context.Background()
	_ = b.ApplyBrightness(ctx, 100, 0)
}
