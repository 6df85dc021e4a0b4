// Package huevdc implements the hue-lamp technology vdc. The bridge's
// HTTP API is an external collaborator; this package only consumes the
// narrow Bridge interface and maps each lamp onto a device with a single
// brightness output channel.
package huevdc

import (
	"context"
	"sync"
	"time"

	"vdchost/behaviour"
	"vdchost/device"
	"vdchost/ident"
	"vdchost/pstore"
	"vdchost/vdc"
	"vdchost/x/mathx"
)

// LightInfo is one lamp as the bridge reports it.
type LightInfo struct {
	ID         string // bridge-local light id ("1", "2", …)
	UniqueID   string // stable zigbee identity, survives bridge renumbering
	Name       string
	On         bool
	Brightness int // bridge units, 0..254
	Reachable  bool
}

// Bridge is the subset of the hue bridge API this vdc drives. The
// concrete HTTP client lives outside this repository; tests supply a
// fake.
type Bridge interface {
	Lights(ctx context.Context) ([]LightInfo, error)
	SetLightState(ctx context.Context, id string, on bool, brightness int, transition time.Duration) error
	GetLight(ctx context.Context, id string) (LightInfo, error)
}

const (
	colLightID  = "lightID"
	colUniqueID = "uniqueID"
	colName     = "lightName"
)

// KnownDeviceColumns is this technology's persisted identity columns.
func KnownDeviceColumns() []pstore.Column {
	return []pstore.Column{
		{Name: colLightID, SQLType: "TEXT"},
		{Name: colUniqueID, SQLType: "TEXT"},
		{Name: colName, SQLType: "TEXT"},
	}
}

const bridgeMaxBri = 254

// lamp is the per-device apply state: the brightness channel plus the
// bridge-local id it is driven through.
type lamp struct {
	lightID    string
	ch         *behaviour.Channel
	transition time.Duration
}

// Collector implements vdc.Discoverer for hue lamps.
type Collector struct {
	ClassContainerID ident.Ident
	Bridge           Bridge

	mu    sync.Mutex
	lamps []*lamp
}

func NewCollector(bridge Bridge, classContainerID ident.Ident) *Collector {
	return &Collector{ClassContainerID: classContainerID, Bridge: bridge}
}

// identFor derives a lamp's Ident from its stable zigbee uniqueID, not
// the bridge-local light number, so re-pairing the bridge keeps device
// identity.
func (c *Collector) identFor(uniqueID string) ident.Ident {
	return ident.SetNameInNamespace(uniqueID, c.ClassContainerID)
}

// Discover enumerates the bridge's current lamp list.
func (c *Collector) Discover(ctx context.Context, exhaustive bool) ([]vdc.Discovered, error) {
	lights, err := c.Bridge.Lights(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]vdc.Discovered, 0, len(lights))
	for _, li := range lights {
		li := li
		out = append(out, vdc.Discovered{
			Ident: c.identFor(li.UniqueID),
			Known: pstore.Row{colLightID: li.ID, colUniqueID: li.UniqueID, colName: li.Name},
			Build: func() *device.Device { return c.buildDevice(li) },
		})
	}
	return out, nil
}

// Rebuild reconstructs a known lamp from its persisted row without
// waiting for the bridge to answer a scan. Brightness is not read back
// from the bridge; the rebuilt lamp's channel starts at 0 until a value
// is applied.
func (c *Collector) Rebuild(row pstore.Row) (vdc.Discovered, error) {
	lightID, _ := row[colLightID].(string)
	uniqueID, _ := row[colUniqueID].(string)
	name, _ := row[colName].(string)
	li := LightInfo{ID: lightID, UniqueID: uniqueID, Name: name}
	return vdc.Discovered{
		Ident: c.identFor(uniqueID),
		Build: func() *device.Device { return c.buildDevice(li) },
	}, nil
}

func (c *Collector) buildDevice(li LightInfo) *device.Device {
	d := device.New(c.identFor(li.UniqueID))
	d.Name = li.Name
	d.IsPublicDS = true

	ch := behaviour.NewChannel(0, 100, 0.4, false)
	if li.On {
		ch.SyncChannelValue(briToPercent(li.Brightness), true)
	}
	out := behaviour.NewOutputBehaviour(0, ch)
	out.Name = li.Name

	lp := &lamp{lightID: li.ID, ch: ch, transition: 400 * time.Millisecond}
	out.IdentifyFlash = func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = c.Bridge.SetLightState(ctx, lp.lightID, true, bridgeMaxBri, 0)
		time.Sleep(300 * time.Millisecond)
		c.applyLamp(ctx, lp, true)
	}
	d.Outputs = []*behaviour.OutputBehaviour{out}

	d.Presence = func(ctx context.Context) (bool, error) {
		cur, err := c.Bridge.GetLight(ctx, lp.lightID)
		if err != nil {
			return false, err
		}
		return cur.Reachable, nil
	}

	c.mu.Lock()
	c.lamps = append(c.lamps, lp)
	c.mu.Unlock()

	d.MarkDirty()
	return d
}

// ApplyPending pushes every lamp whose channel carries an unapplied
// setpoint to the bridge. Called once per host-loop tick.
func (c *Collector) ApplyPending(ctx context.Context) {
	c.mu.Lock()
	lamps := append([]*lamp(nil), c.lamps...)
	c.mu.Unlock()
	for _, lp := range lamps {
		c.applyLamp(ctx, lp, false)
	}
}

func (c *Collector) applyLamp(ctx context.Context, lp *lamp, force bool) {
	if !force && !lp.ch.NeedsApplying() {
		return
	}
	v := lp.ch.GetChannelValue()
	on := v > 0
	if err := c.Bridge.SetLightState(ctx, lp.lightID, on, percentToBri(v), lp.transition); err != nil {
		return
	}
	lp.ch.ChannelValueApplied(force)
}

func percentToBri(v float64) int {
	return int(mathx.Clamp(v, 0, 100)*bridgeMaxBri/100 + 0.5)
}

func briToPercent(bri int) float64 {
	return float64(mathx.Clamp(bri, 0, bridgeMaxBri)) * 100 / bridgeMaxBri
}
