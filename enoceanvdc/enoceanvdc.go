// Package enoceanvdc wires the ESP3/EEP protocol layer in package enocean
// into a vdc.Discoverer: it turns teach-in telegrams into discovered
// devices, builds the button/binaryInput/sensor behaviours each profile
// needs, and routes every subsequent radio telegram to the right device by
// sender address: every non-teach-in telegram is delivered to every
// handler of every device whose address matches the sender.
package enoceanvdc

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"vdchost/behaviour"
	"vdchost/buttonfsm"
	"vdchost/device"
	"vdchost/enocean"
	"vdchost/ident"
	"vdchost/pstore"
	"vdchost/vdc"
	"vdchost/x/conv"
)

const (
	colAddress = "enoceanAddress"
	colRorg    = "eeRorg"
	colFunc    = "eeFunc"
	colType    = "eeType"
	colMfr     = "eeManufacturer"
)

// PresenceTimeout is how long a device may go unheard before
// CheckPresence reports it absent. EnOcean devices only transmit on
// state change or (for battery sensors) a slow heartbeat, so this is
// generous compared to DALI's synchronous presence check.
const PresenceTimeout = 2 * time.Hour

// button is one rocker half's button behaviour plus its FSM and pending
// tick deadline.
type button struct {
	behaviour *behaviour.ButtonBehaviour
	fsm       *buttonfsm.FSM
	deadline  time.Time
	pending   bool
}

// deviceRoute is the per-address dispatch state for one built device.
type deviceRoute struct {
	lastSeen time.Time

	rockerMirror enocean.RockerState
	rockers      [4][2]*button // [rockerIndex][half], half 1 = up

	binaryInput *behaviour.BinaryInputBehaviour
	handlers    []enocean.ChannelHandler
}

// teachIn is a pending, not-yet-materialized discovery queued by
// HandlePacket until the next Discover call drains it (CollectDevices
// is the only place a new vdc.Discovered is actually turned into a
// device; HandlePacket itself never builds one directly).
type teachIn struct {
	address uint64
	eep     enocean.EEP
}

// Collector implements vdc.Discoverer for the EnOcean technology.
type Collector struct {
	ClassContainerID ident.Ident
	SensorTable      []enocean.SensorDescriptor

	mu       sync.Mutex
	learning bool
	seen     map[uint64]bool
	pending  []teachIn
	routes   map[uint64]*deviceRoute
}

func NewCollector(classContainerID ident.Ident) *Collector {
	return &Collector{
		ClassContainerID: classContainerID,
		SensorTable:      enocean.DefaultSensorTable,
		seen:             make(map[uint64]bool),
		routes:           make(map[uint64]*deviceRoute),
	}
}

// SetLearning enables or disables teach-in capture. Outside learning
// mode, teach-in telegrams from addresses not already known are simply
// dropped.
func (c *Collector) SetLearning(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.learning = on
}

// Discover drains whatever teach-ins HandlePacket queued since the last
// call. exhaustive has no extra meaning here: unlike DALI's bus scan,
// EnOcean discovery is inherently event-driven, not poll-driven.
func (c *Collector) Discover(ctx context.Context, exhaustive bool) ([]vdc.Discovered, error) {
	c.mu.Lock()
	batch := c.pending
	c.pending = nil
	c.mu.Unlock()

	out := make([]vdc.Discovered, 0, len(batch))
	for _, t := range batch {
		t := t
		id := c.identFor(t.address)
		out = append(out, vdc.Discovered{
			Ident: id,
			Known: pstore.Row{
				colAddress: int64(t.address),
				colRorg:    int64(t.eep.Rorg),
				colFunc:    int64(t.eep.Func),
				colType:    int64(t.eep.Type),
				colMfr:     int64(0),
			},
			Build: func() *device.Device { return c.buildDevice(id, t.address, t.eep) },
		})
	}
	return out, nil
}

// Rebuild reconstructs a previously-taught-in device from its persisted
// knownDevices row, without re-listening for a teach-in telegram.
func (c *Collector) Rebuild(row pstore.Row) (vdc.Discovered, error) {
	addr, _ := row[colAddress].(int64)
	rorg, _ := row[colRorg].(int64)
	fn, _ := row[colFunc].(int64)
	typ, _ := row[colType].(int64)
	address := uint64(addr)
	eep := enocean.EEP{Rorg: enocean.RORG(rorg), Func: byte(fn), Type: byte(typ)}
	id := c.identFor(address)
	return vdc.Discovered{
		Ident: id,
		Build: func() *device.Device { return c.buildDevice(id, address, eep) },
	}, nil
}

// KnownDeviceColumns is this technology's persisted identity columns.
func KnownDeviceColumns() []pstore.Column {
	return []pstore.Column{
		{Name: colAddress, SQLType: "INTEGER"},
		{Name: colRorg, SQLType: "INTEGER"},
		{Name: colFunc, SQLType: "INTEGER"},
		{Name: colType, SQLType: "INTEGER"},
		{Name: colMfr, SQLType: "INTEGER"},
	}
}

// identFor derives a device's Ident from the sender address alone, as a
// MAC-style Classic96 id (SetClassicMAC); the class-container id is not
// used;
// every behaviour this address owns lives on the single resulting
// device rather than being split across several, so subIndex is
// always 0.
func (c *Collector) identFor(address uint64) ident.Ident {
	return ident.SetClassicMAC(address, 0)
}

func (c *Collector) buildDevice(id ident.Ident, address uint64, eep enocean.EEP) *device.Device {
	d := device.New(id)
	var hexbuf [8]byte
	d.Name = "enocean " + string(conv.U32Hex(hexbuf[:], uint32(address)))
	d.IsPublicDS = true
	route := &deviceRoute{}

	switch eep.Rorg {
	case enocean.RORGRPS:
		numRockers := 0
		switch eep.Func {
		case 0x02:
			numRockers = 2
		case 0x03:
			numRockers = 4
		}
		idx := 0
		for r := 0; r < numRockers; r++ {
			for half := 0; half < 2; half++ {
				btn := behaviour.NewButtonBehaviour(idx)
				b := &button{behaviour: btn}
				b.fsm = buttonfsm.New(func(buttonfsm.ClickType) { btn.MarkDirty() })
				route.rockers[r][half] = b
				d.Buttons = append(d.Buttons, btn)
				idx++
			}
		}

	case enocean.RORG1BS:
		bi := behaviour.NewBinaryInputBehaviour(0, "generic")
		d.BinaryInputs = append(d.BinaryInputs, bi)
		route.binaryInput = bi

	case enocean.RORG4BS:
		if desc, ok := enocean.LookupSensor(c.SensorTable, eep); ok {
			switch desc.BehaviourKind {
			case "binaryInput":
				bi := behaviour.NewBinaryInputBehaviour(desc.SubdeviceIdx, "generic")
				d.BinaryInputs = append(d.BinaryInputs, bi)
				route.handlers = append(route.handlers, enocean.ChannelHandler{Descriptor: desc, Target: bi})
			default:
				sb := behaviour.NewSensorBehaviour(desc.SubdeviceIdx, desc.Min, desc.Max, 0.1, desc.UpdateIntervalSec)
				d.Sensors = append(d.Sensors, sb)
				route.handlers = append(route.handlers, enocean.ChannelHandler{Descriptor: desc, Target: sb})
			}
		}
	}

	d.Presence = func(ctx context.Context) (bool, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		return !route.lastSeen.IsZero() && time.Since(route.lastSeen) < PresenceTimeout, nil
	}
	d.MarkDirty()

	c.mu.Lock()
	c.routes[address] = route
	c.seen[address] = true
	c.mu.Unlock()
	return d
}

// radioLayout splits an ESP3 pt_radio packet's data field,
// [RORG][userData*][sender:4][status:1], into its parts.
func radioLayout(data []byte) (rorg enocean.RORG, userData []byte, sender uint32, status byte, ok bool) {
	if len(data) < 6 {
		return 0, nil, 0, 0, false
	}
	rorg = enocean.RORG(data[0])
	status = data[len(data)-1]
	sender = binary.BigEndian.Uint32(data[len(data)-5 : len(data)-1])
	userData = data[1 : len(data)-5]
	return rorg, userData, sender, status, true
}

// optionalDBm extracts the signal strength byte from a pt_radio packet's
// optional data block, `[subtel][dest:4][dBm:1][secLevel:1]`.
func optionalDBm(opt []byte) (int, bool) {
	if len(opt) < 2 {
		return 0, false
	}
	return int(int8(opt[len(opt)-2])), true
}

// HandlePacket routes one assembled ESP3 radio packet: teach-in
// telegrams (while learning) are queued for the next Discover, and data
// telegrams from already-known addresses are delivered to that device's
// behaviours.
func (c *Collector) HandlePacket(pkt *enocean.Packet, now time.Time) {
	if pkt.Type != enocean.PTRadio {
		return
	}
	rorg, userData, sender, status, ok := radioLayout(pkt.Data)
	if !ok {
		return
	}
	address := uint64(sender)

	switch rorg {
	case enocean.RORGRPS:
		if len(userData) < 1 {
			return
		}
		data0 := userData[0]
		c.maybeLearnRPS(address, status, data0, pkt.Opt)
		c.routeRPS(address, data0, status, now)

	case enocean.RORG1BS:
		if len(userData) < 1 {
			return
		}
		data0 := userData[0]
		if enocean.Is1BSTeachIn(data0) {
			c.maybeQueueTeachIn(address, enocean.EEP{Rorg: enocean.RORG1BS})
			return
		}
		c.routeBinary(address, data0, now)

	case enocean.RORG4BS:
		if len(userData) < 4 {
			return
		}
		var ud [4]byte
		copy(ud[:], userData[:4])
		if enocean.Is4BSTeachIn(ud) {
			eep, _ := enocean.Classify4BS(ud)
			c.maybeQueueTeachIn(address, eep)
			return
		}
		c.route4BS(address, ud, now)
	}
}

func (c *Collector) maybeLearnRPS(address uint64, status, data0 byte, opt []byte) {
	eep, ok := enocean.ClassifyRPS(status, data0)
	if !ok {
		return
	}
	if dBm, have := optionalDBm(opt); have && dBm < enocean.MinLearnDBM {
		return
	}
	c.maybeQueueTeachIn(address, eep)
}

func (c *Collector) maybeQueueTeachIn(address uint64, eep enocean.EEP) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.learning || c.seen[address] {
		return
	}
	c.pending = append(c.pending, teachIn{address: address, eep: eep})
	c.seen[address] = true // avoid re-queueing every retransmission before the next Discover drains it
}

const statusNUBit = 0x10

func (c *Collector) routeRPS(address uint64, data0, status byte, now time.Time) {
	c.mu.Lock()
	route, known := c.routes[address]
	c.mu.Unlock()
	if !known {
		return
	}
	route.lastSeen = now
	nu := status&statusNUBit != 0
	actions := enocean.DecodeRPSRocker(data0, nu)
	for _, a := range actions {
		if a.Rocker >= len(route.rockers) {
			continue
		}
		if !route.rockerMirror.Apply(a) {
			continue
		}
		half := 0
		if a.Up {
			half = 1
		}
		b := route.rockers[a.Rocker][half]
		if b == nil {
			continue
		}
		var deadline time.Time
		var need bool
		if a.Pressed {
			deadline, need = b.fsm.Press(now)
		} else {
			deadline, need = b.fsm.Release(now)
		}
		b.deadline, b.pending = deadline, need
	}
}

func (c *Collector) routeBinary(address uint64, data0 byte, now time.Time) {
	c.mu.Lock()
	route, known := c.routes[address]
	c.mu.Unlock()
	if !known || route.binaryInput == nil {
		return
	}
	route.lastSeen = now
	level := 0.0
	if data0&0x01 != 0 {
		level = 1
	}
	route.binaryInput.UpdateSensorValue(level)
}

func (c *Collector) route4BS(address uint64, ud [4]byte, now time.Time) {
	c.mu.Lock()
	route, known := c.routes[address]
	c.mu.Unlock()
	if !known {
		return
	}
	route.lastSeen = now
	for _, h := range route.handlers {
		h.HandleRadio(ud)
	}
}

// Tick drives every button FSM's pending hold/tip timer. The host's main
// loop calls this once per tick with the current time; a single
// cooperative loop drives all timers, no per-button goroutine.
func (c *Collector) Tick(now time.Time) {
	c.mu.Lock()
	routes := make([]*deviceRoute, 0, len(c.routes))
	for _, r := range c.routes {
		routes = append(routes, r)
	}
	c.mu.Unlock()

	for _, route := range routes {
		for _, half := range route.rockers {
			for _, b := range half {
				if b == nil || !b.pending || now.Before(b.deadline) {
					continue
				}
				deadline, need := b.fsm.Tick(now)
				b.deadline, b.pending = deadline, need
			}
		}
	}
}
