// Package vdc implements the per-technology device-class container: device
// discovery/teach-in, the known-devices reconstruction path, and removal.
package vdc

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"vdchost/device"
	"vdchost/ident"
	"vdchost/pstore"
)

// Discovered is one device a technology-specific scan turned up: its
// identity plus a constructor producing the fully-built Device (channels,
// behaviours, presence hook all wired to the technology's handles).
// Known, when non-nil, carries the identity columns the owning Vdc
// persists into its knownDevices table so the device can be rebuilt
// after a restart without re-running teach-in.
type Discovered struct {
	Ident ident.Ident
	Known pstore.Row
	Build func() *device.Device
}

// Discoverer performs the technology-specific bus scan (EnOcean teach-in
// listen, DALI bus scan, static-device config enumeration, …) and can
// reconstruct a device purely from its persisted knownDevices row, without
// re-running teach-in.
type Discoverer interface {
	Discover(ctx context.Context, exhaustive bool) ([]Discovered, error)
	Rebuild(row pstore.Row) (Discovered, error)
}

// KnownDevicesTable is the fixed name of the per-technology table recording
// devices once they've been taught in, so restarts don't require re-learning.
const KnownDevicesTable = "knownDevices"

// Vdc owns one technology's devices: its own identity (the class-container
// id every static/namespace-derived device Ident is built from), the
// discovery hook, and the live device map keyed by Ident.
type Vdc struct {
	InstanceID       string
	ClassContainerID ident.Ident
	LearningMode     bool

	discoverer Discoverer
	store      *pstore.Store
	knownCols  []string
	knownDefs  []pstore.Column
	knownReady bool

	mu        sync.Mutex
	devices   map[ident.Ident]*device.Device
	knownRows map[ident.Ident]int64
	log       zerolog.Logger
}

func New(instanceID string, classContainerID ident.Ident, disc Discoverer, store *pstore.Store, knownCols []pstore.Column) *Vdc {
	names := make([]string, len(knownCols))
	for i, c := range knownCols {
		names[i] = c.Name
	}
	return &Vdc{
		InstanceID:       instanceID,
		ClassContainerID: classContainerID,
		discoverer:       disc,
		store:            store,
		knownCols:        names,
		knownDefs:        knownCols,
		devices:          make(map[ident.Ident]*device.Device),
		knownRows:        make(map[ident.Ident]int64),
		log:              zerolog.Nop(),
	}
}

// SetLogger installs this Vdc's logger; the zero-value Vdc logs nowhere.
func (v *Vdc) SetLogger(log zerolog.Logger) { v.log = log }

// Devices returns every device currently owned by this Vdc.
func (v *Vdc) Devices() []*device.Device {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]*device.Device, 0, len(v.devices))
	for _, d := range v.devices {
		out = append(out, d)
	}
	return out
}

func (v *Vdc) Lookup(id ident.Ident) (*device.Device, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	d, ok := v.devices[id]
	return d, ok
}

// CollectDevices runs the teach-in/discovery pipeline.
//
// If !incremental, the in-memory device list is dropped first (and, if
// clearSettings, each dropped device's persisted rows are forgotten too).
// Previously known devices are reconstructed from their knownDevices row
// without re-invoking teach-in; only devices absent from that table go
// through the technology-specific Discover scan.
func (v *Vdc) CollectDevices(ctx context.Context, incremental, exhaustive, clearSettings bool) ([]*device.Device, error) {
	if !incremental {
		v.mu.Lock()
		old := v.devices
		v.devices = make(map[ident.Ident]*device.Device)
		v.mu.Unlock()
		if clearSettings {
			for _, d := range old {
				_ = d.Forget(v.store)
			}
		}
	}

	var added []*device.Device

	if v.store != nil && len(v.knownCols) > 0 {
		if !v.knownReady {
			if err := v.store.EnsureTable(KnownDevicesTable, v.knownDefs); err != nil {
				return nil, err
			}
			v.knownReady = true
		}
		rows, err := v.store.LoadChildren(KnownDevicesTable, 0, v.knownCols)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			disc, err := v.discoverer.Rebuild(row)
			if err != nil {
				continue
			}
			if d := v.addDiscovered(disc, false); d != nil {
				if rid, ok := row["rowid"].(int64); ok {
					v.mu.Lock()
					v.knownRows[disc.Ident] = rid
					v.mu.Unlock()
				}
				added = append(added, d)
			}
		}
	}

	found, err := v.discoverer.Discover(ctx, exhaustive)
	if err != nil {
		return added, err
	}
	for _, disc := range found {
		if d := v.addDiscovered(disc, true); d != nil {
			added = append(added, d)
		}
	}
	return added, nil
}

// addDiscovered builds and registers a discovered device. For a fresh
// discovery (not a knownDevices rebuild) the identity row is persisted so
// the device survives a restart without re-teaching.
func (v *Vdc) addDiscovered(disc Discovered, fresh bool) *device.Device {
	v.mu.Lock()
	if _, exists := v.devices[disc.Ident]; exists {
		v.mu.Unlock()
		return nil
	}
	d := disc.Build()
	v.devices[disc.Ident] = d
	v.mu.Unlock()
	v.log.Info().Str("device", disc.Ident.String()).Msg("device added")

	v.mu.Lock()
	_, alreadyKnown := v.knownRows[disc.Ident]
	v.mu.Unlock()
	if fresh && !alreadyKnown && disc.Known != nil && v.store != nil && len(v.knownCols) > 0 {
		if !v.knownReady {
			if err := v.store.EnsureTable(KnownDevicesTable, v.knownDefs); err != nil {
				v.log.Error().Err(err).Msg("knownDevices table unavailable")
				return d
			}
			v.knownReady = true
		}
		rid, err := v.store.Save(KnownDevicesTable, 0, 0, disc.Known)
		if err != nil {
			v.log.Error().Err(err).Str("device", disc.Ident.String()).Msg("persisting knownDevices row failed")
			return d
		}
		v.mu.Lock()
		v.knownRows[disc.Ident] = rid
		v.mu.Unlock()
	}
	return d
}

// RemoveDevice drops dev from this Vdc's live list. If forget, its
// persisted settings rows and its knownDevices row are deleted too.
func (v *Vdc) RemoveDevice(dev *device.Device, forget bool) error {
	v.mu.Lock()
	delete(v.devices, dev.Ident)
	knownRowID, hadKnown := v.knownRows[dev.Ident]
	delete(v.knownRows, dev.Ident)
	v.mu.Unlock()
	v.log.Info().Str("device", dev.Ident.String()).Bool("forget", forget).Msg("device removed")

	if !forget {
		return nil
	}
	if err := dev.Forget(v.store); err != nil {
		return err
	}
	if v.store != nil && hadKnown {
		return v.store.Forget(KnownDevicesTable, knownRowID)
	}
	return nil
}
