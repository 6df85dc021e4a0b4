package dali

import (
	"context"

	"vdchost/behaviour"
	"vdchost/device"
	"vdchost/ident"
	"vdchost/pstore"
	"vdchost/vdc"
)

// addrCol is the knownDevices column recording a rebuilt device's short
// address, the minimum state needed to reconstruct it without a rescan.
const (
	addrCol   = "shortAddress"
	gtinCol   = "gtin"
	serialCol = "serial"
)

// KnownDeviceColumns is this technology's persisted identity columns.
func KnownDeviceColumns() []pstore.Column {
	return []pstore.Column{
		{Name: addrCol, SQLType: "INTEGER"},
		{Name: gtinCol, SQLType: "INTEGER"},
		{Name: serialCol, SQLType: "INTEGER"},
	}
}

// Collector performs DALI bus discovery: a full or quick scan for short
// addresses, followed by a device-info read per address. It
// implements vdc.Discoverer.
type Collector struct {
	Bus              Bus
	ClassContainerID ident.Ident
}

func NewCollector(bus Bus, classContainerID ident.Ident) *Collector {
	return &Collector{Bus: bus, ClassContainerID: classContainerID}
}

// Discover scans the bus and reads each address's device-info block,
// degrading to address-only identity on ErrMissingData rather than
// dropping the device.
func (c *Collector) Discover(ctx context.Context, exhaustive bool) ([]vdc.Discovered, error) {
	addrs, err := c.Bus.Scan(ctx, exhaustive)
	if err != nil {
		return nil, err
	}
	out := make([]vdc.Discovered, 0, len(addrs))
	for _, addr := range addrs {
		addr := addr
		info, infoErr := c.Bus.ReadInfo(ctx, addr)
		var id ident.Ident
		if infoErr == ErrMissingData {
			id = c.degradedIdent(addr)
			info = DeviceInfo{}
		} else if infoErr != nil {
			return nil, infoErr
		} else {
			id = ident.SetSgtin(info.GTIN, 0, info.Serial)
		}
		out = append(out, vdc.Discovered{
			Ident: id,
			Known: pstore.Row{
				addrCol:   int64(addr),
				gtinCol:   int64(info.GTIN),
				serialCol: int64(info.Serial),
			},
			Build: func() *device.Device { return c.buildDevice(id, addr) },
		})
	}
	return out, nil
}

// Rebuild reconstructs a previously-taught-in device from its persisted
// knownDevices row, without re-scanning the bus.
func (c *Collector) Rebuild(row pstore.Row) (vdc.Discovered, error) {
	addr, _ := row[addrCol].(int64)
	id := c.degradedIdent(int(addr))
	if gtin, ok := row["gtin"].(int64); ok && gtin != 0 {
		serial, _ := row["serial"].(int64)
		id = ident.SetSgtin(uint64(gtin), 0, uint64(serial))
	}
	return vdc.Discovered{
		Ident: id,
		Build: func() *device.Device { return c.buildDevice(id, int(addr)) },
	}, nil
}

// degradedIdent derives an Ident from the class-container id plus short
// address alone, used when a device-info read came back MissingData.
func (c *Collector) degradedIdent(addr int) ident.Ident {
	return ident.SetClassic(c.ClassContainerID.ObjectClass(), uint64(addr))
}

func (c *Collector) buildDevice(id ident.Ident, addr int) *device.Device {
	d := device.New(id)
	d.IsPublicDS = true
	light := NewBallast(c.Bus, addr)
	ch := behaviour.NewChannel(0, 100, 1, false)
	out := behaviour.NewOutputBehaviour(0, ch)
	out.IdentifyFlash = light.IdentifyFlash
	d.Outputs = []*behaviour.OutputBehaviour{out}
	d.Presence = light.CheckPresent
	d.MarkDirty()
	return d
}
