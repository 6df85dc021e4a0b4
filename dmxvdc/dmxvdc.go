// Package dmxvdc implements the DMX/OLA lighting technology vdc. The OLA
// streaming client is an external collaborator; this package only
// consumes the narrow UniverseWriter interface and maintains the 512-slot
// frame the configured fixtures are patched into.
package dmxvdc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vdchost/behaviour"
	"vdchost/device"
	"vdchost/ident"
	"vdchost/pstore"
	"vdchost/vdc"
	"vdchost/x/ramp"
)

// UniverseSize is the DMX slot count per universe.
const UniverseSize = 512

// UniverseWriter sends one complete frame to the transmitter. Tests
// supply a fake; the real OLA client lives outside this repository.
type UniverseWriter interface {
	SendDMX(universe int, frame []byte) error
}

// FixtureKind selects how a fixture's channels map onto DMX slots.
type FixtureKind string

const (
	KindDimmer FixtureKind = "dimmer" // one slot, one brightness channel
	KindRGB    FixtureKind = "rgb"    // three consecutive slots, three channels
)

// FixtureConfig is one patched fixture.
type FixtureConfig struct {
	FirstChannel int // 1-based DMX start address
	Kind         FixtureKind
}

const (
	colFirstChannel = "firstChannel"
	colNumChannels  = "numChannels"
	colDeviceConfig = "deviceconfig"
)

// KnownDeviceColumns is this technology's persisted identity columns.
func KnownDeviceColumns() []pstore.Column {
	return []pstore.Column{
		{Name: colFirstChannel, SQLType: "INTEGER"},
		{Name: colNumChannels, SQLType: "INTEGER"},
		{Name: colDeviceConfig, SQLType: "TEXT"},
	}
}

func (k FixtureKind) slots() int {
	if k == KindRGB {
		return 3
	}
	return 1
}

// fixture is the per-device apply state: the output channels plus the
// frame slots they drive.
type fixture struct {
	first    int
	channels []*behaviour.Channel

	fading []func() // per-slot cancel for an in-flight ramp
}

// Collector implements vdc.Discoverer for DMX fixtures. There is no bus
// to scan; the device set is exactly the configured patch list.
type Collector struct {
	ClassContainerID ident.Ident
	Writer           UniverseWriter
	Universe         int

	mu       sync.Mutex
	configs  map[int]FixtureConfig // keyed by FirstChannel
	fixtures []*fixture
	frame    [UniverseSize]byte
	dirty    bool
}

func NewCollector(w UniverseWriter, universe int, classContainerID ident.Ident) *Collector {
	return &Collector{
		ClassContainerID: classContainerID,
		Writer:           w,
		Universe:         universe,
		configs:          make(map[int]FixtureConfig),
	}
}

// AddFixture registers one patched fixture; call before the first
// CollectDevices.
func (c *Collector) AddFixture(cfg FixtureConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.configs[cfg.FirstChannel] = cfg
}

func (c *Collector) identFor(cfg FixtureConfig) ident.Ident {
	return ident.SetNameInNamespace(fmt.Sprintf("%s@%d", cfg.Kind, cfg.FirstChannel), c.ClassContainerID)
}

func (c *Collector) Discover(ctx context.Context, exhaustive bool) ([]vdc.Discovered, error) {
	c.mu.Lock()
	configs := make([]FixtureConfig, 0, len(c.configs))
	for _, cfg := range c.configs {
		configs = append(configs, cfg)
	}
	c.mu.Unlock()

	out := make([]vdc.Discovered, 0, len(configs))
	for _, cfg := range configs {
		cfg := cfg
		out = append(out, vdc.Discovered{
			Ident: c.identFor(cfg),
			Known: pstore.Row{
				colFirstChannel: int64(cfg.FirstChannel),
				colNumChannels:  int64(cfg.Kind.slots()),
				colDeviceConfig: string(cfg.Kind),
			},
			Build: func() *device.Device { return c.buildDevice(cfg) },
		})
	}
	return out, nil
}

func (c *Collector) Rebuild(row pstore.Row) (vdc.Discovered, error) {
	first, _ := row[colFirstChannel].(int64)
	kind, _ := row[colDeviceConfig].(string)
	cfg := FixtureConfig{FirstChannel: int(first), Kind: FixtureKind(kind)}
	if cfg.Kind == "" {
		cfg.Kind = KindDimmer
	}
	c.mu.Lock()
	if stored, ok := c.configs[cfg.FirstChannel]; ok {
		cfg = stored
	}
	c.mu.Unlock()
	return vdc.Discovered{
		Ident: c.identFor(cfg),
		Build: func() *device.Device { return c.buildDevice(cfg) },
	}, nil
}

func (c *Collector) buildDevice(cfg FixtureConfig) *device.Device {
	d := device.New(c.identFor(cfg))
	d.IsPublicDS = true

	n := cfg.Kind.slots()
	channels := make([]*behaviour.Channel, n)
	for i := range channels {
		channels[i] = behaviour.NewChannel(0, 100, 100.0/255, false)
	}
	out := behaviour.NewOutputBehaviour(0, channels...)

	fx := &fixture{first: cfg.FirstChannel, channels: channels, fading: make([]func(), n)}
	out.IdentifyFlash = func() {
		for _, slot := range fx.slotIndexes() {
			c.setSlot(slot, 255)
		}
		c.Flush()
		time.Sleep(200 * time.Millisecond)
		for i, slot := range fx.slotIndexes() {
			c.setSlot(slot, percentToSlot(channels[i].GetChannelValue()))
		}
		c.Flush()
	}
	d.Outputs = []*behaviour.OutputBehaviour{out}
	d.Presence = func(ctx context.Context) (bool, error) { return true, nil }

	c.mu.Lock()
	c.fixtures = append(c.fixtures, fx)
	c.mu.Unlock()

	d.MarkDirty()
	return d
}

func (f *fixture) slotIndexes() []int {
	out := make([]int, len(f.channels))
	for i := range f.channels {
		out[i] = f.first - 1 + i
	}
	return out
}

func (c *Collector) setSlot(idx int, v byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx < 0 || idx >= UniverseSize {
		return
	}
	if c.frame[idx] != v {
		c.frame[idx] = v
		c.dirty = true
	}
}

func percentToSlot(v float64) byte {
	if v <= 0 {
		return 0
	}
	if v >= 100 {
		return 255
	}
	return byte(v*255/100 + 0.5)
}

// ApplyPending starts a ramp for every channel with an unapplied
// setpoint. Every changed setpoint ramps from the slot's current level
// over FadeTime in a background goroutine, and the frame is flushed on
// every step; the channel's own transition time is not used.
func (c *Collector) ApplyPending(ctx context.Context) {
	c.mu.Lock()
	fixtures := append([]*fixture(nil), c.fixtures...)
	c.mu.Unlock()

	for _, fx := range fixtures {
		for i, ch := range fx.channels {
			if !ch.NeedsApplying() {
				continue
			}
			slot := fx.first - 1 + i
			if fx.fading[i] != nil {
				fx.fading[i]()
				fx.fading[i] = nil
			}
			c.startRamp(ctx, fx, i, slot, ch)
			ch.ChannelValueApplied(false)
		}
	}
	c.Flush()
}

// FadeTime is the fixed duration of every ramp; nothing scales it.
const FadeTime = 300 * time.Millisecond

func (c *Collector) startRamp(ctx context.Context, fx *fixture, chIdx, slot int, ch *behaviour.Channel) {
	from := uint16(c.currentSlot(slot))
	to := uint16(percentToSlot(ch.GetChannelValue()))
	if from == to {
		return
	}
	rctx, cancel := context.WithCancel(ctx)
	fx.fading[chIdx] = cancel
	go func() {
		defer cancel()
		ramp.StartLinear(from, to, 255, uint32(FadeTime/time.Millisecond), 16,
			func(d time.Duration) bool {
				select {
				case <-rctx.Done():
					return false
				case <-time.After(d):
					return true
				}
			},
			func(level uint16) {
				c.setSlot(slot, byte(level))
				c.Flush()
			})
	}()
}

func (c *Collector) currentSlot(idx int) byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx < 0 || idx >= UniverseSize {
		return 0
	}
	return c.frame[idx]
}

// Flush sends the frame if any slot changed since the last send.
func (c *Collector) Flush() {
	c.mu.Lock()
	if !c.dirty {
		c.mu.Unlock()
		return
	}
	frame := c.frame
	c.dirty = false
	c.mu.Unlock()
	_ = c.Writer.SendDMX(c.Universe, frame[:])
}
