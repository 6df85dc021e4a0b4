// Package consolevdc implements the console test-stub technology vdc:
// each configured key is one static device. "in" keys act as a button
// fed by simulated press/release edges, "out" keys print channel value
// changes to a writer, "io" keys do both. The point of this technology
// is testability of the full device pipeline with no hardware at all.
package consolevdc

import (
	"context"
	"io"
	"sync"
	"time"

	"vdchost/behaviour"
	"vdchost/buttonfsm"
	"vdchost/device"
	"vdchost/ident"
	"vdchost/pstore"
	"vdchost/vdc"
	"vdchost/x/fmtx"
)

// Mode selects a configured key's role.
type Mode string

const (
	ModeIn  Mode = "in"
	ModeOut Mode = "out"
	ModeIO  Mode = "io"
)

// KeyConfig is one configured console device.
type KeyConfig struct {
	Key  string
	Mode Mode
}

const (
	colKey  = "consoleKey"
	colMode = "mode"
)

// KnownDeviceColumns is this technology's persisted identity columns.
func KnownDeviceColumns() []pstore.Column {
	return []pstore.Column{
		{Name: colKey, SQLType: "TEXT"},
		{Name: colMode, SQLType: "TEXT"},
	}
}

// route is the per-key runtime state: the button FSM for "in" halves,
// the output channel for "out" halves.
type route struct {
	key string

	fsm      *buttonfsm.FSM
	deadline time.Time
	pending  bool
	pressed  bool

	ch *behaviour.Channel
}

// Collector implements vdc.Discoverer for console keys.
type Collector struct {
	ClassContainerID ident.Ident
	Out              io.Writer

	mu     sync.Mutex
	keys   map[string]KeyConfig
	routes map[string]*route

	// Clicks receives every ClickType an "in" key's FSM emits, tagged
	// with its key; nil until a consumer installs one.
	Clicks func(key string, c buttonfsm.ClickType)
}

func NewCollector(out io.Writer, classContainerID ident.Ident) *Collector {
	return &Collector{
		ClassContainerID: classContainerID,
		Out:              out,
		keys:             make(map[string]KeyConfig),
		routes:           make(map[string]*route),
	}
}

// AddKey registers one configured key; call before the first
// CollectDevices.
func (c *Collector) AddKey(cfg KeyConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys[cfg.Key] = cfg
}

func (c *Collector) identFor(key string) ident.Ident {
	return ident.SetNameInNamespace(key, c.ClassContainerID)
}

func (c *Collector) Discover(ctx context.Context, exhaustive bool) ([]vdc.Discovered, error) {
	c.mu.Lock()
	keys := make([]KeyConfig, 0, len(c.keys))
	for _, cfg := range c.keys {
		keys = append(keys, cfg)
	}
	c.mu.Unlock()

	out := make([]vdc.Discovered, 0, len(keys))
	for _, cfg := range keys {
		cfg := cfg
		out = append(out, vdc.Discovered{
			Ident: c.identFor(cfg.Key),
			Known: pstore.Row{colKey: cfg.Key, colMode: string(cfg.Mode)},
			Build: func() *device.Device { return c.buildDevice(cfg) },
		})
	}
	return out, nil
}

func (c *Collector) Rebuild(row pstore.Row) (vdc.Discovered, error) {
	key, _ := row[colKey].(string)
	mode, _ := row[colMode].(string)
	cfg := KeyConfig{Key: key, Mode: Mode(mode)}
	c.mu.Lock()
	if stored, ok := c.keys[key]; ok {
		cfg = stored
	}
	c.mu.Unlock()
	return vdc.Discovered{
		Ident: c.identFor(cfg.Key),
		Build: func() *device.Device { return c.buildDevice(cfg) },
	}, nil
}

func (c *Collector) buildDevice(cfg KeyConfig) *device.Device {
	d := device.New(c.identFor(cfg.Key))
	d.Name = "console " + cfg.Key
	d.IsPublicDS = true
	d.Presence = func(ctx context.Context) (bool, error) { return true, nil }

	rt := &route{key: cfg.Key}

	if cfg.Mode == ModeIn || cfg.Mode == ModeIO {
		bb := behaviour.NewButtonBehaviour(0)
		d.Buttons = []*behaviour.ButtonBehaviour{bb}
		key := cfg.Key
		rt.fsm = buttonfsm.New(func(ct buttonfsm.ClickType) {
			fmtx.Fprintf(c.Out, "console[%s]: %v\n", key, ct)
			c.mu.Lock()
			emit := c.Clicks
			c.mu.Unlock()
			if emit != nil {
				emit(key, ct)
			}
		})
	}

	if cfg.Mode == ModeOut || cfg.Mode == ModeIO {
		ch := behaviour.NewChannel(0, 100, 1, false)
		out := behaviour.NewOutputBehaviour(0, ch)
		out.Name = cfg.Key
		key := cfg.Key
		out.IdentifyFlash = func() {
			fmtx.Fprintf(c.Out, "console[%s]: identify\n", key)
		}
		d.Outputs = []*behaviour.OutputBehaviour{out}
		rt.ch = ch
	}

	c.mu.Lock()
	c.routes[cfg.Key] = rt
	c.mu.Unlock()

	d.MarkDirty()
	return d
}

// FeedKey injects one simulated edge for key. Unknown keys and repeated
// same-direction edges are dropped.
func (c *Collector) FeedKey(key string, pressed bool, now time.Time) {
	c.mu.Lock()
	rt, ok := c.routes[key]
	c.mu.Unlock()
	if !ok || rt.fsm == nil || rt.pressed == pressed {
		return
	}
	rt.pressed = pressed
	if pressed {
		rt.deadline, rt.pending = rt.fsm.Press(now)
	} else {
		rt.deadline, rt.pending = rt.fsm.Release(now)
	}
}

// Tick drives every pending FSM deadline that has come due.
func (c *Collector) Tick(now time.Time) {
	c.mu.Lock()
	routes := make([]*route, 0, len(c.routes))
	for _, rt := range c.routes {
		routes = append(routes, rt)
	}
	c.mu.Unlock()
	for _, rt := range routes {
		if rt.fsm == nil || !rt.pending || now.Before(rt.deadline) {
			continue
		}
		rt.deadline, rt.pending = rt.fsm.Tick(now)
	}
}

// ApplyPending prints every output channel's unapplied setpoint. Called
// once per host-loop tick.
func (c *Collector) ApplyPending(ctx context.Context) {
	c.mu.Lock()
	routes := make([]*route, 0, len(c.routes))
	for _, rt := range c.routes {
		routes = append(routes, rt)
	}
	c.mu.Unlock()
	for _, rt := range routes {
		if rt.ch == nil || !rt.ch.NeedsApplying() {
			continue
		}
		fmtx.Fprintf(c.Out, "console[%s]: value %.1f\n", rt.key, rt.ch.GetChannelValue())
		rt.ch.ChannelValueApplied(false)
	}
}
