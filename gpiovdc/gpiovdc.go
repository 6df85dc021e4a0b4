// Package gpiovdc implements the digital-IO technology vdc: each
// configured GPIO line is one static device, either a binary input
// (debounced edge watcher) or a switch output (a single on/off channel
// driven straight to the pin).
package gpiovdc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"

	"vdchost/behaviour"
	"vdchost/device"
	"vdchost/ident"
	"vdchost/pstore"
	"vdchost/vdc"
)

// Pin is the narrow subset of periph.io's gpio.PinIO this package
// drives. A real pin (from gpioreg.ByName, resolved in cmd/vdchostd,
// the only place host-specific pin lookup happens) satisfies it
// directly; tests supply a fake.
type Pin interface {
	In(pull gpio.Pull, edge gpio.Edge) error
	Out(l gpio.Level) error
	Read() gpio.Level
	WaitForEdge(timeout time.Duration) bool
}

// Direction selects a configured line's role.
type Direction int

const (
	DirIn Direction = iota
	DirOut
)

const (
	colKey = "pinKey"
	colDir = "direction"
)

// KnownDeviceColumns is this technology's persisted identity columns.
func KnownDeviceColumns() []pstore.Column {
	return []pstore.Column{
		{Name: colKey, SQLType: "TEXT"},
		{Name: colDir, SQLType: "INTEGER"},
	}
}

// PinConfig is one configured digital-IO line.
type PinConfig struct {
	Key       string // the CLI's pin identifier, also the UUIDv5 "config" namespace component
	Pin       Pin
	Direction Direction
}

// outputSwitch bridges one output Channel onto a driven pin: set by
// ApplyPending whenever the channel has a pending setpoint.
type outputSwitch struct {
	pin Pin
	ch  *behaviour.Channel
}

func (s *outputSwitch) apply() {
	if !s.ch.NeedsApplying() {
		return
	}
	level := gpio.Low
	if s.ch.GetChannelValue() != 0 {
		level = gpio.High
	}
	_ = s.pin.Out(level)
	s.ch.ChannelValueApplied(false)
}

// Collector is a static, config-enumerated vdc.Discoverer: there is no
// bus to scan, the device set is exactly the configured pins, so
// Discover always returns the full configured set and the owning Vdc's
// own dedup-by-Ident drops repeats.
type Collector struct {
	ClassContainerID ident.Ident

	mu       sync.Mutex
	pins     map[string]PinConfig
	switches []*outputSwitch
	inputs   map[string]*behaviour.BinaryInputBehaviour
}

func NewCollector(classContainerID ident.Ident) *Collector {
	return &Collector{
		ClassContainerID: classContainerID,
		pins:             make(map[string]PinConfig),
		inputs:           make(map[string]*behaviour.BinaryInputBehaviour),
	}
}

// AddPin registers one configured line; call once per --digitalio flag
// before the first CollectDevices.
func (c *Collector) AddPin(cfg PinConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pins[cfg.Key] = cfg
}

// identFor derives a static device's Ident from the class-container id
// and its config key via the UUIDv5 name-in-namespace construction, so
// the same configuration always yields the same identity.
func (c *Collector) identFor(key string) ident.Ident {
	return ident.SetNameInNamespace(key, c.ClassContainerID)
}

func (c *Collector) Discover(ctx context.Context, exhaustive bool) ([]vdc.Discovered, error) {
	c.mu.Lock()
	pins := make([]PinConfig, 0, len(c.pins))
	for _, cfg := range c.pins {
		pins = append(pins, cfg)
	}
	c.mu.Unlock()

	out := make([]vdc.Discovered, 0, len(pins))
	for _, cfg := range pins {
		cfg := cfg
		id := c.identFor(cfg.Key)
		out = append(out, vdc.Discovered{
			Ident: id,
			Known: pstore.Row{colKey: cfg.Key, colDir: int64(cfg.Direction)},
			Build: func() *device.Device { return c.buildDevice(cfg) },
		})
	}
	return out, nil
}

func (c *Collector) Rebuild(row pstore.Row) (vdc.Discovered, error) {
	key, _ := row[colKey].(string)
	c.mu.Lock()
	cfg, ok := c.pins[key]
	c.mu.Unlock()
	if !ok {
		return vdc.Discovered{}, fmt.Errorf("gpiovdc: configured pin %q not found", key)
	}
	id := c.identFor(key)
	return vdc.Discovered{Ident: id, Build: func() *device.Device { return c.buildDevice(cfg) }}, nil
}

func (c *Collector) buildDevice(cfg PinConfig) *device.Device {
	id := c.identFor(cfg.Key)
	d := device.New(id)
	d.IsPublicDS = true
	d.Presence = func(ctx context.Context) (bool, error) { return true, nil }

	switch cfg.Direction {
	case DirIn:
		bi := behaviour.NewBinaryInputBehaviour(0, "generic")
		d.BinaryInputs = []*behaviour.BinaryInputBehaviour{bi}
		if err := cfg.Pin.In(gpio.PullUp, gpio.BothEdges); err == nil {
			go c.watchInput(cfg.Pin, bi)
		}
		c.mu.Lock()
		c.inputs[cfg.Key] = bi
		c.mu.Unlock()

	case DirOut:
		// Resolution below 1 so a 0<->1 change exceeds it and registers.
		ch := behaviour.NewChannel(0, 1, 0.5, false)
		out := behaviour.NewOutputBehaviour(0, ch)
		sw := &outputSwitch{pin: cfg.Pin, ch: ch}
		out.IdentifyFlash = func() {
			_ = cfg.Pin.Out(gpio.High)
			time.Sleep(150 * time.Millisecond)
			sw.apply()
		}
		d.Outputs = []*behaviour.OutputBehaviour{out}
		c.mu.Lock()
		c.switches = append(c.switches, sw)
		c.mu.Unlock()
	}

	d.MarkDirty()
	return d
}

// watchInput waits for edge events on pin (in debounce-length waits) and
// delivers each level change to bi as soon as the edge is seen; edges
// that leave the level unchanged are dropped. There is no settle delay.
func (c *Collector) watchInput(pin Pin, bi *behaviour.BinaryInputBehaviour) {
	const debounce = 10 * time.Millisecond
	level := pin.Read() == gpio.High
	for {
		if !pin.WaitForEdge(debounce) {
			continue
		}
		newLevel := pin.Read() == gpio.High
		if newLevel == level {
			continue
		}
		level = newLevel
		bi.UpdateSensorValue(boolToFloat(level))
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// ApplyPending drives every output switch whose channel has a pending
// setpoint straight onto its pin. The host's main loop calls this once
// per tick, the same pattern DALI's ballast apply would use once wired
// into a real polling loop.
func (c *Collector) ApplyPending(ctx context.Context) {
	c.mu.Lock()
	switches := append([]*outputSwitch(nil), c.switches...)
	c.mu.Unlock()
	for _, s := range switches {
		s.apply()
	}
}
